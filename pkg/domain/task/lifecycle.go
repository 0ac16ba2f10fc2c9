package task

import (
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/statekit"

	"github.com/propsync/fieldtask/pkg/domain/geo"
	"github.com/propsync/fieldtask/pkg/domain/scan"
)

// Transition events.
const (
	EventStart    = "start"
	EventComplete = "complete"
)

// State constants for statekit integration.
// These must remain untyped string constants for statekit.StateID
// compatibility and are kept in sync with the Status values in status.go.
const (
	statePending    = "pending"
	stateInProgress = "in_progress"
	stateCompleted  = "completed"
)

// init validates at startup that FSM state constants match Status values.
func init() {
	stateMap := map[string]Status{
		statePending:    StatusPending,
		stateInProgress: StatusInProgress,
		stateCompleted:  StatusCompleted,
	}
	for fsmState, status := range stateMap {
		if fsmState != string(status) {
			panic(fmt.Sprintf("FSM state %q does not match Status %q - constants are out of sync", fsmState, status))
		}
	}
}

// instanceContext carries the per-instance data the FSM guards need.
type instanceContext struct {
	InstanceID string
	// Direct is true for definitions with neither evidence requirement;
	// those instances skip the explicit start step and complete directly
	// from pending.
	Direct bool
}

// newInstanceMachine builds a statekit interpreter for one instance.
func newInstanceMachine(inst *Instance) (*statekit.Interpreter[instanceContext], error) {
	builder := statekit.NewMachine[instanceContext]("task-instance").
		WithInitial(statekit.StateID(inst.Status)).
		WithContext(instanceContext{
			InstanceID: inst.InstanceID,
			Direct:     !inst.Definition.SelfGoverned(),
		}).
		WithGuard("selfGoverned", func(ctx instanceContext, e statekit.Event) bool {
			return !ctx.Direct
		}).
		WithGuard("directOnly", func(ctx instanceContext, e statekit.Event) bool {
			return ctx.Direct
		})

	builder.State(statePending).
		On(EventStart).Target(stateInProgress).Guard("selfGoverned").
		On(EventComplete).Target(stateCompleted).Guard("directOnly").
		Done()

	builder.State(stateInProgress).
		On(EventComplete).Target(stateCompleted).
		Done()

	// Terminal: no transitions out of completed.
	builder.State(stateCompleted).
		Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build state machine: %w", err)
	}

	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()
	return interpreter, nil
}

// Lifecycle applies start/complete transitions to instances, enforcing which
// transitions are legal and what evidence each requires. The geofence
// threshold is deployment policy injected at construction.
type Lifecycle struct {
	mu    sync.RWMutex
	fence geo.Fence
	now   func() time.Time
}

// NewLifecycle creates a Lifecycle using the given geofence policy.
func NewLifecycle(fence geo.Fence) *Lifecycle {
	return &Lifecycle{fence: fence, now: time.Now}
}

// WithClock overrides the time source. Used in tests.
func (l *Lifecycle) WithClock(now func() time.Time) *Lifecycle {
	l.now = now
	return l
}

// SetFence replaces the geofence policy. Safe to call while transitions run;
// an in-flight completion uses whichever policy it read first.
func (l *Lifecycle) SetFence(fence geo.Fence) {
	l.mu.Lock()
	l.fence = fence
	l.mu.Unlock()
}

func (l *Lifecycle) currentFence() geo.Fence {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.fence
}

// transition drives the FSM with one event and reports whether the state
// changed. statekit leaves the state untouched when no transition matches or
// a guard fails.
func (l *Lifecycle) transition(inst *Instance, event string) (Status, error) {
	sm, err := newInstanceMachine(inst)
	if err != nil {
		return inst.Status, err
	}

	before := sm.State().Value
	sm.Send(statekit.Event{Type: statekit.EventType(event)})
	after := sm.State().Value

	if before == after {
		return inst.Status, &TransitionError{
			InstanceID: inst.InstanceID,
			FromStatus: inst.Status,
			Event:      event,
		}
	}
	return Status(after), nil
}

// Start moves a pending instance to in_progress and stamps started_at.
// Only instances whose definition carries an evidence requirement have an
// explicit start step.
func (l *Lifecycle) Start(inst *Instance) error {
	next, err := l.transition(inst, EventStart)
	if err != nil {
		return err
	}

	now := l.now()
	inst.Status = next
	inst.StartedAt = &now
	return nil
}

// Complete moves an instance to completed, stamping completed_at, after all
// evidence preconditions hold. live is the worker's position read at submit
// time; it is only consulted when the scanned payload embeds a target.
//
// Complete is idempotent-safe under retry: completing an already-completed
// instance is a no-op returning nil, because network retries after a
// successful-but-unacknowledged completion are expected.
func (l *Lifecycle) Complete(inst *Instance, ev Evidence, live *geo.Point) error {
	if inst.Status.IsCompleted() {
		return nil
	}

	next, err := l.transition(inst, EventComplete)
	if err != nil {
		return err
	}

	merged := mergeEvidence(inst.Evidence, ev)
	if missing := merged.missingFor(inst.Definition); len(missing) > 0 {
		return &MissingEvidenceError{InstanceID: inst.InstanceID, Missing: missing}
	}

	if inst.Definition.RequiresScan {
		if err := l.checkGeofence(inst, merged.ScanCode, live); err != nil {
			return err
		}
	}

	now := l.now()
	inst.Status = next
	inst.CompletedAt = &now
	inst.Evidence = &merged
	return nil
}

// checkGeofence is the authoritative submit-time validation point. A plain
// code without an embedded target passes through without consulting the
// fence.
func (l *Lifecycle) checkGeofence(inst *Instance, scanCode string, live *geo.Point) error {
	payload := scan.Parse(scanCode)
	if !payload.HasTarget() {
		return nil
	}
	if live == nil {
		return fmt.Errorf("instance %s: %w", inst.InstanceID, ErrPositionUnavailable)
	}
	fence := l.currentFence()
	res := fence.Validate(*payload.Target, *live)
	if !res.Valid {
		return &GeofenceError{
			InstanceID:        inst.InstanceID,
			DistanceMeters:    res.DistanceMeters,
			MaxDistanceMeters: fence.MaxDistanceMeters,
		}
	}
	return nil
}

// mergeEvidence overlays a fresh submission on evidence already attached to
// the instance. Completion may arrive as a single multipart bundle with
// fresh captures alongside previously uploaded ones.
func mergeEvidence(existing *Evidence, fresh Evidence) Evidence {
	if existing == nil {
		return fresh
	}
	merged := *existing
	if fresh.Notes != "" {
		merged.Notes = fresh.Notes
	}
	if fresh.PhotoBeforeURL != "" {
		merged.PhotoBeforeURL = fresh.PhotoBeforeURL
	}
	if fresh.PhotoAfterURL != "" {
		merged.PhotoAfterURL = fresh.PhotoAfterURL
	}
	if fresh.ScanCode != "" {
		merged.ScanCode = fresh.ScanCode
	}
	if fresh.ScanPhotoURL != "" {
		merged.ScanPhotoURL = fresh.ScanPhotoURL
	}
	return merged
}
