package cli

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/propsync/fieldtask/pkg/domain/device"
	"github.com/propsync/fieldtask/pkg/domain/task"
)

func TestCLIError(t *testing.T) {
	t.Run("Error with cause", func(t *testing.T) {
		cause := errors.New("root cause")
		e := NewCLIError("something failed", "try this", cause)
		if e.Error() != "something failed: root cause" {
			t.Fatalf("unexpected: %s", e.Error())
		}
		if e.ExitCode != 1 {
			t.Fatalf("expected exit code 1, got %d", e.ExitCode)
		}
	})

	t.Run("Error without cause", func(t *testing.T) {
		e := NewCLIError("something failed", "try this", nil)
		if e.Error() != "something failed" {
			t.Fatalf("unexpected: %s", e.Error())
		}
	})

	t.Run("Unwrap returns cause", func(t *testing.T) {
		cause := errors.New("root")
		e := NewCLIError("msg", "", cause)
		if !errors.Is(e, cause) {
			t.Fatal("errors.Is should match wrapped cause")
		}
	})
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantHint string
		wantCLI  bool
	}{
		{
			name: "nil returns nil",
			err:  nil,
		},
		{
			name:     "instance not found",
			err:      task.ErrInstanceNotFound,
			wantHint: "Run 'fieldtask task list --user <id>' to list instances",
			wantCLI:  true,
		},
		{
			name:     "generation conflict",
			err:      fmt.Errorf("generate: %w", task.ErrGenerationConflict),
			wantHint: "Run 'fieldtask task list' to see the existing set",
			wantCLI:  true,
		},
		{
			name:     "position unavailable",
			err:      task.ErrPositionUnavailable,
			wantHint: "Pass --lat and --lon with the completion",
			wantCLI:  true,
		},
		{
			name:     "missing evidence lists fields",
			err:      &task.MissingEvidenceError{InstanceID: "inst-1", Missing: []string{"photo_before", "photo_after"}},
			wantHint: "Attach photo_before, photo_after and retry",
			wantCLI:  true,
		},
		{
			name:     "geofence rejection names the distance",
			err:      &task.GeofenceError{InstanceID: "inst-1", DistanceMeters: 250, MaxDistanceMeters: 100},
			wantHint: "You are 250m from the task location",
			wantCLI:  true,
		},
		{
			name:     "transition error names the state",
			err:      &task.TransitionError{InstanceID: "inst-1", FromStatus: task.StatusCompleted, Event: "start"},
			wantHint: "Instance 'inst-1' is 'completed'",
			wantCLI:  true,
		},
		{
			name:     "capability error uses remediation",
			err:      &device.CapabilityError{Capability: "geolocation", Remediation: "enable location services and retry", Err: device.ErrHardwareUnavailable},
			wantHint: "enable location services and retry",
			wantCLI:  true,
		},
		{
			name: "unknown errors pass through",
			err:  errors.New("disk on fire"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if tt.err == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}

			var cliErr *CLIError
			isCLI := errors.As(got, &cliErr)
			if isCLI != tt.wantCLI {
				t.Fatalf("wantCLI=%v, got %v (%v)", tt.wantCLI, isCLI, got)
			}
			if tt.wantCLI {
				if !strings.Contains(cliErr.Hint, tt.wantHint) {
					t.Fatalf("hint %q does not contain %q", cliErr.Hint, tt.wantHint)
				}
				if !errors.Is(got, tt.err) {
					t.Fatalf("mapped error lost its cause: %v", got)
				}
			}
		})
	}
}
