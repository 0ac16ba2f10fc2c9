package task

import (
	"fmt"
	"time"
)

// Instance is one materialized occurrence of a definition for a worker on a
// calendar day. Instances are created exclusively by the generator, move only
// forward, and are never deleted by this core.
//
// Invariants: Status == completed iff CompletedAt is set; Status ==
// in_progress iff StartedAt is set and CompletedAt is not.
type Instance struct {
	InstanceID       string     `json:"instance_id"`
	WorkerID         string     `json:"worker_id"`
	Definition       Definition `json:"task"`
	ParentInstanceID string     `json:"parent_instance_id,omitempty"`
	Status           Status     `json:"status"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	Evidence         *Evidence  `json:"evidence,omitempty"`
}

// IsMain reports whether this is a main task instance (no parent). Main
// instances are the line items a worker sees, one per definition per day.
func (i Instance) IsMain() bool {
	return i.ParentInstanceID == ""
}

// IsSub reports whether this instance contributes to a parent.
func (i Instance) IsSub() bool {
	return i.ParentInstanceID != ""
}

// Validate checks the status/timestamp invariants.
func (i Instance) Validate() error {
	if i.InstanceID == "" {
		return fmt.Errorf("instance ID cannot be empty")
	}
	if !i.Status.IsValid() {
		return fmt.Errorf("invalid status %q on instance %s", i.Status, i.InstanceID)
	}
	switch i.Status {
	case StatusPending:
		if i.StartedAt != nil || i.CompletedAt != nil {
			return fmt.Errorf("pending instance %s must not carry timestamps", i.InstanceID)
		}
	case StatusInProgress:
		if i.StartedAt == nil {
			return fmt.Errorf("in-progress instance %s missing started_at", i.InstanceID)
		}
		if i.CompletedAt != nil {
			return fmt.Errorf("in-progress instance %s must not carry completed_at", i.InstanceID)
		}
	case StatusCompleted:
		if i.CompletedAt == nil {
			return fmt.Errorf("completed instance %s missing completed_at", i.InstanceID)
		}
	}
	return nil
}

// ChildrenOf returns the direct sub-task instances of the given main
// instance within the provided set.
func ChildrenOf(instances []Instance, parentID string) []Instance {
	var children []Instance
	for _, inst := range instances {
		if inst.ParentInstanceID == parentID {
			children = append(children, inst)
		}
	}
	return children
}
