package task

import (
	"encoding/json"
	"fmt"
)

// Status is the lifecycle state of a task instance. Instances only move
// forward; there is no transition out of StatusCompleted.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// validTransitions defines the allowed state transitions and their events.
// Map: currentStatus -> event -> targetStatus. The pending->completed edge
// exists only for definitions with neither evidence requirement; Lifecycle
// guards it.
var validTransitions = map[Status]map[string]Status{
	StatusPending: {
		EventStart:    StatusInProgress,
		EventComplete: StatusCompleted,
	},
	StatusInProgress: {
		EventComplete: StatusCompleted,
	},
	StatusCompleted: {},
}

// AllStatuses returns every valid instance status.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusCompleted}
}

// IsValid returns true if the status is a known instance status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// CanTransitionWith returns true if the given event can trigger a transition
// from this status.
func (s Status) CanTransitionWith(event string) bool {
	transitions, ok := validTransitions[s]
	if !ok {
		return false
	}
	_, ok = transitions[event]
	return ok
}

// TransitionWith returns the target status for a given event, or an error if
// the event is not allowed from this status.
func (s Status) TransitionWith(event string) (Status, error) {
	transitions, ok := validTransitions[s]
	if !ok {
		return s, fmt.Errorf("no transitions defined for status: %s", s)
	}
	target, ok := transitions[event]
	if !ok {
		return s, fmt.Errorf("event '%s' not allowed from status '%s'", event, s)
	}
	return target, nil
}

// IsTerminal returns true if no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// IsCompleted returns true if the instance finished its work.
func (s Status) IsCompleted() bool {
	return s == StatusCompleted
}

// IsInProgress returns true if the instance has started but not finished.
func (s Status) IsInProgress() bool {
	return s == StatusInProgress
}

// IsPending returns true if the instance has not started.
func (s Status) IsPending() bool {
	return s == StatusPending
}

// DisplayName returns a human-readable name for the status badge.
func (s Status) DisplayName() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

// ParseStatus parses a string into a Status.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid task status: %s", s)
	}
	return status, nil
}

// MarshalJSON implements json.Marshaler.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler. An empty string is accepted as
// pending so persisted instances from before explicit statuses load cleanly.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if str == "" {
		*s = StatusPending
		return nil
	}
	status := Status(str)
	if !status.IsValid() {
		return fmt.Errorf("invalid task status: %s", str)
	}
	*s = status
	return nil
}
