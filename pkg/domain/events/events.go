// Package events defines workflow domain events and an in-process
// dispatcher. Events record transitions after they commit; handlers feed the
// audit trail and outgoing webhooks.
package events

import (
	"time"

	"github.com/propsync/fieldtask/pkg/domain/task"
)

// Event types emitted by the completion workflow.
const (
	TypeInstancesGenerated = "task.instances_generated"
	TypeTaskStarted        = "task.started"
	TypeTaskCompleted      = "task.completed"
	TypeGeofenceRejected   = "task.geofence_rejected"
)

// Event is one workflow occurrence. ID is assigned by the emitter.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	WorkerID   string         `json:"worker_id,omitempty"`
	InstanceID string         `json:"instance_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// InstancesGenerated builds the event recorded after a generation run
// materializes a day's instances.
func InstancesGenerated(workerID, date string, count int, at time.Time) Event {
	return Event{
		Type:      TypeInstancesGenerated,
		WorkerID:  workerID,
		Timestamp: at,
		Metadata: map[string]any{
			"date":  date,
			"count": count,
		},
	}
}

// TaskStarted builds the event recorded after a start transition commits.
func TaskStarted(inst task.Instance, at time.Time) Event {
	return Event{
		Type:       TypeTaskStarted,
		WorkerID:   inst.WorkerID,
		InstanceID: inst.InstanceID,
		Timestamp:  at,
		Metadata: map[string]any{
			"definition_id": inst.Definition.ID,
		},
	}
}

// TaskCompleted builds the event recorded after a completion commits.
func TaskCompleted(inst task.Instance, at time.Time) Event {
	md := map[string]any{
		"definition_id": inst.Definition.ID,
	}
	if inst.Evidence != nil {
		md["has_photos"] = inst.Evidence.PhotoBeforeURL != "" || inst.Evidence.PhotoAfterURL != ""
		md["has_scan"] = inst.Evidence.ScanCode != ""
	}
	return Event{
		Type:       TypeTaskCompleted,
		WorkerID:   inst.WorkerID,
		InstanceID: inst.InstanceID,
		Timestamp:  at,
		Metadata:   md,
	}
}

// GeofenceRejected builds the event recorded when a submit-time position
// check fails. The instance stays in_progress; the worker re-scans on site.
func GeofenceRejected(inst task.Instance, distanceMeters, maxMeters float64, at time.Time) Event {
	return Event{
		Type:       TypeGeofenceRejected,
		WorkerID:   inst.WorkerID,
		InstanceID: inst.InstanceID,
		Timestamp:  at,
		Metadata: map[string]any{
			"distance_meters": distanceMeters,
			"max_meters":      maxMeters,
		},
	}
}
