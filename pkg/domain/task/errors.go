package task

import (
	"errors"
	"fmt"
)

// Domain errors for the completion workflow. All of these are locally
// recoverable; none should end a workflow session.
var (
	// ErrInvalidTransition indicates a start/complete attempt from the wrong state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrMissingEvidence indicates a validation/scan requirement is not satisfied.
	ErrMissingEvidence = errors.New("required evidence missing")

	// ErrGeofenceRejected indicates the submit-time position check failed.
	// The worker must re-scan at the correct location; retryable.
	ErrGeofenceRejected = errors.New("position outside geofence")

	// ErrPositionUnavailable indicates a geofenced completion was attempted
	// without a usable live position.
	ErrPositionUnavailable = errors.New("live position unavailable")

	// ErrInstanceNotFound indicates the instance does not exist in the store.
	ErrInstanceNotFound = errors.New("task instance not found")

	// ErrGenerationConflict indicates instances were already generated for
	// the period. Callers treat this as success, not failure.
	ErrGenerationConflict = errors.New("task instances already generated")
)

// TransitionError provides details about an invalid transition.
type TransitionError struct {
	InstanceID string
	FromStatus Status
	Event      string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s instance %s in status %s", e.Event, e.InstanceID, e.FromStatus)
}

// Is allows errors.Is to match ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// MissingEvidenceError lists the evidence fields the worker must supply
// before resubmitting.
type MissingEvidenceError struct {
	InstanceID string
	Missing    []string
}

func (e *MissingEvidenceError) Error() string {
	return fmt.Sprintf("instance %s missing evidence: %v", e.InstanceID, e.Missing)
}

// Is allows errors.Is to match ErrMissingEvidence.
func (e *MissingEvidenceError) Is(target error) bool {
	return target == ErrMissingEvidence
}

// GeofenceError reports how far outside the fence the submit-time position was.
type GeofenceError struct {
	InstanceID        string
	DistanceMeters    float64
	MaxDistanceMeters float64
}

func (e *GeofenceError) Error() string {
	return fmt.Sprintf("instance %s position is %.0fm from target, limit %.0fm",
		e.InstanceID, e.DistanceMeters, e.MaxDistanceMeters)
}

// Is allows errors.Is to match ErrGeofenceRejected.
func (e *GeofenceError) Is(target error) bool {
	return target == ErrGeofenceRejected
}
