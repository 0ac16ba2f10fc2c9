package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/propsync/fieldtask/pkg/domain"
	"github.com/propsync/fieldtask/pkg/domain/device"
	"github.com/propsync/fieldtask/pkg/domain/events"
	"github.com/propsync/fieldtask/pkg/domain/geo"
	"github.com/propsync/fieldtask/pkg/domain/scan"
	"github.com/propsync/fieldtask/pkg/domain/task"
)

// EvidenceSubmission is one completion request's payload: optional notes,
// fresh photo captures, and a scanned code. File contents arrive as bytes
// from the multipart request and are uploaded through the evidence store.
type EvidenceSubmission struct {
	Notes      string
	ScanCode   string
	FileBefore []byte
	FileAfter  []byte
	FileScan   []byte
}

// ScanCheck is the informational at-scan validation result shown to the
// worker before submission. The authoritative check re-runs at submit time.
type ScanCheck struct {
	Payload scan.Payload `json:"payload"`
	Fence   *geo.Result  `json:"fence,omitempty"`
}

// WorkflowService drives start/complete transitions over stored instances.
// It guarantees at most one in-flight transition per instance at a time via
// per-instance locking.
type WorkflowService struct {
	repo      domain.InstanceRepository
	lifecycle *task.Lifecycle
	fence     geo.Fence
	locator   device.Locator
	evidence  device.EvidenceStore
	dispatch  *events.Dispatcher
	audit     domain.AuditLogger
	log       *slog.Logger
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewWorkflowService creates a WorkflowService. locator, evidence, dispatch
// and audit may be nil; completion of geofenced tasks requires a locator.
func NewWorkflowService(
	repo domain.InstanceRepository,
	fence geo.Fence,
	locator device.Locator,
	evidence device.EvidenceStore,
	dispatch *events.Dispatcher,
	audit domain.AuditLogger,
) *WorkflowService {
	return &WorkflowService{
		repo:      repo,
		lifecycle: task.NewLifecycle(fence),
		fence:     fence,
		locator:   locator,
		evidence:  evidence,
		dispatch:  dispatch,
		audit:     audit,
		log:       slog.Default(),
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
}

// WithClock overrides the time source for the service and its lifecycle.
// Used in tests.
func (s *WorkflowService) WithClock(now func() time.Time) *WorkflowService {
	s.now = now
	s.lifecycle.WithClock(now)
	return s
}

// WithLogger overrides the logger for dispatch and audit failures.
func (s *WorkflowService) WithLogger(logger *slog.Logger) *WorkflowService {
	if logger != nil {
		s.log = logger
	}
	return s
}

// UpdateFence replaces the geofence policy, applied to subsequent
// completions and scan checks. Used by the policy file hot reload.
func (s *WorkflowService) UpdateFence(fence geo.Fence) {
	s.mu.Lock()
	s.fence = fence
	s.mu.Unlock()
	s.lifecycle.SetFence(fence)
}

func (s *WorkflowService) currentFence() geo.Fence {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fence
}

// lockFor returns the mutex serializing transitions on one instance.
// Concurrent duplicate submissions (a retried network call racing a second
// tap) queue here instead of racing the store.
func (s *WorkflowService) lockFor(instanceID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[instanceID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[instanceID] = lock
	}
	return lock
}

// StartTask moves a pending instance to in_progress.
func (s *WorkflowService) StartTask(ctx context.Context, instanceID string) (task.Instance, error) {
	lock := s.lockFor(instanceID)
	lock.Lock()
	defer lock.Unlock()

	inst, err := s.repo.GetInstance(instanceID)
	if err != nil {
		return task.Instance{}, err
	}

	if err := s.lifecycle.Start(&inst); err != nil {
		return task.Instance{}, err
	}
	if err := s.repo.SaveInstance(inst); err != nil {
		return task.Instance{}, err
	}

	now := s.now()
	s.emit(ctx, events.TaskStarted(inst, now))
	s.auditLog("task.start", inst, nil)
	return inst, nil
}

// CompleteTask completes an instance with notes only. This is the path for
// directly-completable tasks and for resubmissions whose evidence is
// already attached.
func (s *WorkflowService) CompleteTask(ctx context.Context, instanceID, notes string) (task.Instance, error) {
	return s.complete(ctx, instanceID, task.Evidence{Notes: notes})
}

// CompleteTaskWithEvidence uploads the submission's captures, then completes
// the instance with the resulting evidence bundle.
func (s *WorkflowService) CompleteTaskWithEvidence(ctx context.Context, instanceID string, sub EvidenceSubmission) (task.Instance, error) {
	ev, err := s.uploadSubmission(ctx, instanceID, sub)
	if err != nil {
		return task.Instance{}, err
	}
	return s.complete(ctx, instanceID, ev)
}

func (s *WorkflowService) complete(ctx context.Context, instanceID string, ev task.Evidence) (task.Instance, error) {
	lock := s.lockFor(instanceID)
	lock.Lock()
	defer lock.Unlock()

	inst, err := s.repo.GetInstance(instanceID)
	if err != nil {
		return task.Instance{}, err
	}

	// Retry of an acknowledged-after-the-fact completion: return the stored
	// terminal state untouched.
	if inst.Status.IsCompleted() {
		return inst, nil
	}

	live, err := s.livePositionIfNeeded(ctx, inst, ev)
	if err != nil {
		return task.Instance{}, err
	}

	if err := s.lifecycle.Complete(&inst, ev, live); err != nil {
		var geoErr *task.GeofenceError
		if errors.As(err, &geoErr) {
			s.emit(ctx, events.GeofenceRejected(inst, geoErr.DistanceMeters, geoErr.MaxDistanceMeters, s.now()))
		}
		return task.Instance{}, err
	}

	if err := s.repo.SaveInstance(inst); err != nil {
		return task.Instance{}, err
	}

	s.emit(ctx, events.TaskCompleted(inst, s.now()))
	s.auditLog("task.complete", inst, map[string]interface{}{
		"has_scan": inst.Evidence != nil && inst.Evidence.ScanCode != "",
	})
	return inst, nil
}

// livePositionIfNeeded reads the device position only when the submission's
// scan payload embeds a target. The read is the authoritative submit-time
// validation point; the position from scan time is never reused because the
// device may have moved between scan and submit.
func (s *WorkflowService) livePositionIfNeeded(ctx context.Context, inst task.Instance, ev task.Evidence) (*geo.Point, error) {
	if !inst.Definition.RequiresScan {
		return nil, nil
	}

	code := ev.ScanCode
	if code == "" && inst.Evidence != nil {
		code = inst.Evidence.ScanCode
	}
	if code == "" {
		return nil, nil
	}

	payload := scan.Parse(code)
	if !payload.HasTarget() {
		return nil, nil
	}

	if s.locator == nil {
		return nil, &device.CapabilityError{
			Capability:  "geolocation",
			Remediation: "enable location services and retry",
			Err:         device.ErrHardwareUnavailable,
		}
	}

	live, err := s.locator.ReadPosition(ctx)
	if err != nil {
		return nil, err
	}
	return &live, nil
}

// CheckScan runs the informational at-scan validation: decode the code and,
// when it embeds a target, measure the current distance so the client can
// warn the worker early. Position failures degrade to payload-only — the
// submit-time check remains the gate.
func (s *WorkflowService) CheckScan(ctx context.Context, rawCode string) (ScanCheck, error) {
	check := ScanCheck{Payload: scan.Parse(rawCode)}
	if !check.Payload.HasTarget() {
		return check, nil
	}
	if s.locator == nil {
		return check, nil
	}

	live, err := s.locator.ReadPosition(ctx)
	if err != nil {
		return check, nil
	}
	result := s.currentFence().Validate(*check.Payload.Target, live)
	check.Fence = &result
	return check, nil
}

// uploadSubmission pushes fresh captures to the evidence store and returns
// the bundle for the completion. Uploads happen before the instance lock is
// taken so slow uploads never serialize other workers' transitions.
func (s *WorkflowService) uploadSubmission(ctx context.Context, instanceID string, sub EvidenceSubmission) (task.Evidence, error) {
	ev := task.Evidence{
		Notes:    sub.Notes,
		ScanCode: sub.ScanCode,
	}

	uploads := []struct {
		data []byte
		name string
		dest *string
	}{
		{sub.FileBefore, instanceID + "-before", &ev.PhotoBeforeURL},
		{sub.FileAfter, instanceID + "-after", &ev.PhotoAfterURL},
		{sub.FileScan, instanceID + "-scan", &ev.ScanPhotoURL},
	}

	for _, u := range uploads {
		if len(u.data) == 0 {
			continue
		}
		if s.evidence == nil {
			return task.Evidence{}, &device.CapabilityError{
				Capability:  "evidence upload",
				Remediation: "retry when the upload service is reachable",
				Err:         device.ErrHardwareUnavailable,
			}
		}
		url, err := s.evidence.UploadEvidence(ctx, u.name, u.data)
		if err != nil {
			return task.Evidence{}, fmt.Errorf("upload %s: %w", u.name, err)
		}
		*u.dest = url
	}

	return ev, nil
}

// emit fans the event out to registered handlers. Handler failures never
// block or roll back the transition; they are logged and the event is
// considered delivered.
func (s *WorkflowService) emit(ctx context.Context, event events.Event) {
	if s.dispatch == nil {
		return
	}
	if err := s.dispatch.Dispatch(ctx, event); err != nil {
		s.log.Warn("event dispatch failed",
			"event_type", event.Type,
			"instance_id", event.InstanceID,
			"error", err)
	}
}

func (s *WorkflowService) auditLog(action string, inst task.Instance, extra map[string]interface{}) {
	if s.audit == nil {
		return
	}
	md := map[string]interface{}{
		"instance_id":   inst.InstanceID,
		"definition_id": inst.Definition.ID,
		"status":        string(inst.Status),
	}
	for k, v := range extra {
		md[k] = v
	}
	if err := s.audit.Log(action, inst.WorkerID, md); err != nil {
		s.log.Warn("audit write failed",
			"action", action,
			"instance_id", inst.InstanceID,
			"error", err)
	}
}
