package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/propsync/fieldtask/pkg/domain/task"
)

func TestDispatcher_RoutesByType(t *testing.T) {
	d := NewDispatcher()

	var started, completed, all int
	d.Register("started", func(ctx context.Context, e Event) error {
		started++
		return nil
	}, TypeTaskStarted)
	d.Register("completed", func(ctx context.Context, e Event) error {
		completed++
		return nil
	}, TypeTaskCompleted)
	d.RegisterWildcard("audit", func(ctx context.Context, e Event) error {
		all++
		return nil
	})

	inst := task.Instance{InstanceID: "i1", WorkerID: "w1"}
	now := time.Now()

	if err := d.Dispatch(context.Background(), TaskStarted(inst, now)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := d.Dispatch(context.Background(), TaskCompleted(inst, now)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if started != 1 || completed != 1 || all != 2 {
		t.Errorf("counts = started %d completed %d all %d, want 1/1/2", started, completed, all)
	}
}

func TestDispatcher_StopsOnFirstErrorByDefault(t *testing.T) {
	d := NewDispatcher()
	boom := errors.New("boom")
	var second bool

	d.Register("first", func(ctx context.Context, e Event) error { return boom }, TypeTaskStarted)
	d.Register("second", func(ctx context.Context, e Event) error {
		second = true
		return nil
	}, TypeTaskStarted)

	err := d.Dispatch(context.Background(), Event{Type: TypeTaskStarted})
	if !errors.Is(err, boom) {
		t.Fatalf("Dispatch error = %v, want wrapped boom", err)
	}
	if second {
		t.Error("second handler ran after first failed")
	}
}

func TestDispatcher_ContinueOnErrorJoins(t *testing.T) {
	d := NewDispatcher()
	d.ContinueOnError = true
	boom := errors.New("boom")
	var second bool

	d.Register("first", func(ctx context.Context, e Event) error { return boom }, TypeTaskStarted)
	d.Register("second", func(ctx context.Context, e Event) error {
		second = true
		return nil
	}, TypeTaskStarted)

	err := d.Dispatch(context.Background(), Event{Type: TypeTaskStarted})
	if !errors.Is(err, boom) {
		t.Fatalf("Dispatch error = %v, want joined boom", err)
	}
	if !second {
		t.Error("second handler should run with ContinueOnError")
	}
}

func TestDispatcher_NoHandlersIsNoop(t *testing.T) {
	d := NewDispatcher()
	if err := d.Dispatch(context.Background(), Event{Type: "unknown"}); err != nil {
		t.Errorf("Dispatch with no handlers = %v, want nil", err)
	}
	if d.HasHandlers("unknown") {
		t.Error("HasHandlers(unknown) = true, want false")
	}
}

func TestEventConstructors(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	inst := task.Instance{
		InstanceID: "i1",
		WorkerID:   "w1",
		Definition: task.Definition{ID: "d1"},
		Evidence:   &task.Evidence{ScanCode: "GATE-3"},
	}

	e := TaskCompleted(inst, now)
	if e.Type != TypeTaskCompleted || e.InstanceID != "i1" || e.WorkerID != "w1" {
		t.Errorf("TaskCompleted event = %+v", e)
	}
	if e.Metadata["has_scan"] != true {
		t.Errorf("has_scan = %v, want true", e.Metadata["has_scan"])
	}

	g := GeofenceRejected(inst, 11100, 1000, now)
	if g.Type != TypeGeofenceRejected {
		t.Errorf("type = %s", g.Type)
	}
	if g.Metadata["distance_meters"] != 11100.0 {
		t.Errorf("distance = %v", g.Metadata["distance_meters"])
	}
}
