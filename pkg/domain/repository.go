// Package domain holds the persistence and audit contracts shared across
// the workflow services.
package domain

import (
	"github.com/propsync/fieldtask/pkg/domain/task"
)

// InstanceRepository handles persistence of task instances. The backing
// store is opaque to the core; the filesystem implementation in pkg/storage
// is the reference one.
type InstanceRepository interface {
	Initialize() error
	IsInitialized() bool

	// ListInstances returns every instance belonging to a worker.
	ListInstances(workerID string) ([]task.Instance, error)

	// GetInstance returns one instance by ID, or task.ErrInstanceNotFound.
	GetInstance(instanceID string) (task.Instance, error)

	// SaveInstance persists a mutated instance.
	SaveInstance(inst task.Instance) error

	// SaveGeneratedSet atomically records a generation run for one worker
	// and calendar date. A second run for the same worker and date returns
	// task.ErrGenerationConflict and leaves the stored set untouched.
	SaveGeneratedSet(workerID, date string, instances []task.Instance) error

	// HasGenerated reports whether a generation run already happened for
	// the worker and calendar date.
	HasGenerated(workerID, date string) (bool, error)

	// RecordEvent appends an audit event to the trail.
	RecordEvent(event AuditEvent) error

	// LoadAuditEvents returns the full audit trail in append order.
	LoadAuditEvents() ([]AuditEvent, error)
}
