package task

import (
	"testing"
	"time"
)

func TestInstance_Validate(t *testing.T) {
	created := time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)
	started := created.Add(time.Hour)
	completed := created.Add(2 * time.Hour)

	tests := []struct {
		name    string
		inst    Instance
		wantErr bool
	}{
		{
			name:    "pending clean",
			inst:    Instance{InstanceID: "i1", Status: StatusPending, CreatedAt: created},
			wantErr: false,
		},
		{
			name:    "in progress with started_at",
			inst:    Instance{InstanceID: "i2", Status: StatusInProgress, StartedAt: &started, CreatedAt: created},
			wantErr: false,
		},
		{
			name:    "completed with completed_at",
			inst:    Instance{InstanceID: "i3", Status: StatusCompleted, StartedAt: &started, CompletedAt: &completed, CreatedAt: created},
			wantErr: false,
		},
		{
			name:    "empty id",
			inst:    Instance{Status: StatusPending, CreatedAt: created},
			wantErr: true,
		},
		{
			name:    "pending with started_at",
			inst:    Instance{InstanceID: "i4", Status: StatusPending, StartedAt: &started, CreatedAt: created},
			wantErr: true,
		},
		{
			name:    "in progress without started_at",
			inst:    Instance{InstanceID: "i5", Status: StatusInProgress, CreatedAt: created},
			wantErr: true,
		},
		{
			name:    "in progress with completed_at",
			inst:    Instance{InstanceID: "i6", Status: StatusInProgress, StartedAt: &started, CompletedAt: &completed, CreatedAt: created},
			wantErr: true,
		},
		{
			name:    "completed without completed_at",
			inst:    Instance{InstanceID: "i7", Status: StatusCompleted, StartedAt: &started, CreatedAt: created},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.inst.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInstance_MainSub(t *testing.T) {
	main := Instance{InstanceID: "m"}
	sub := Instance{InstanceID: "s", ParentInstanceID: "m"}

	if !main.IsMain() || main.IsSub() {
		t.Error("instance without parent should be main")
	}
	if sub.IsMain() || !sub.IsSub() {
		t.Error("instance with parent should be sub")
	}
}
