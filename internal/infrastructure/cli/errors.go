package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/propsync/fieldtask/pkg/domain/device"
	"github.com/propsync/fieldtask/pkg/domain/task"
)

// CLIError wraps domain errors with user-facing messages and actionable hints.
type CLIError struct {
	Message  string
	Hint     string
	Err      error
	ExitCode int
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a CLIError with a default exit code of 1.
func NewCLIError(msg, hint string, err error) *CLIError {
	return &CLIError{
		Message:  msg,
		Hint:     hint,
		Err:      err,
		ExitCode: 1,
	}
}

// MapError converts known domain errors into CLIErrors with actionable hints.
// Unmapped errors are returned as-is.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	var missingErr *task.MissingEvidenceError
	if errors.As(err, &missingErr) {
		return NewCLIError(
			missingErr.Error(),
			fmt.Sprintf("Attach %s and retry", strings.Join(missingErr.Missing, ", ")),
			err,
		)
	}

	var geoErr *task.GeofenceError
	if errors.As(err, &geoErr) {
		return NewCLIError(
			geoErr.Error(),
			fmt.Sprintf("You are %.0fm from the task location (max %.0fm) — move closer and rescan", geoErr.DistanceMeters, geoErr.MaxDistanceMeters),
			err,
		)
	}

	var transErr *task.TransitionError
	if errors.As(err, &transErr) {
		return NewCLIError(
			transErr.Error(),
			fmt.Sprintf("Instance '%s' is '%s' — check its state with 'fieldtask task list'", transErr.InstanceID, transErr.FromStatus),
			err,
		)
	}

	var capErr *device.CapabilityError
	if errors.As(err, &capErr) {
		return NewCLIError(capErr.Error(), capErr.Remediation, err)
	}

	switch {
	case errors.Is(err, task.ErrInstanceNotFound):
		return NewCLIError("task instance not found", "Run 'fieldtask task list --user <id>' to list instances", err)
	case errors.Is(err, task.ErrGenerationConflict):
		return NewCLIError("tasks already generated for that day", "Run 'fieldtask task list' to see the existing set", err)
	case errors.Is(err, task.ErrPositionUnavailable):
		return NewCLIError("live position unavailable", "Pass --lat and --lon with the completion", err)
	}

	return err
}
