package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/propsync/fieldtask/pkg/domain"
	"github.com/propsync/fieldtask/pkg/domain/events"
	"github.com/propsync/fieldtask/pkg/domain/stats"
	"github.com/propsync/fieldtask/pkg/domain/task"
)

// PlannedTask is one main task the external scheduler wants materialized,
// together with its sub-tasks.
type PlannedTask struct {
	Definition task.Definition
	SubTasks   []task.Definition
}

// InstanceGenerator is the external scheduler contract. PlanDay returns the
// tasks a worker is due on the given day; the core owns turning the plan
// into instances and the idempotency of doing so.
type InstanceGenerator interface {
	PlanDay(ctx context.Context, workerID string, day time.Time) ([]PlannedTask, error)
}

// GenerationService materializes a worker's task instances for a calendar
// day, at most once per worker per day. Duplicate requests surface the
// existing set, never duplicates.
type GenerationService struct {
	repo      domain.InstanceRepository
	generator InstanceGenerator
	agg       stats.Aggregator
	dispatch  *events.Dispatcher
	log       *slog.Logger
	now       func() time.Time
}

// NewGenerationService creates a GenerationService. dispatch may be nil.
func NewGenerationService(repo domain.InstanceRepository, generator InstanceGenerator, agg stats.Aggregator, dispatch *events.Dispatcher) *GenerationService {
	return &GenerationService{
		repo:      repo,
		generator: generator,
		agg:       agg,
		dispatch:  dispatch,
		log:       slog.Default(),
		now:       time.Now,
	}
}

// WithClock overrides the time source. Used in tests.
func (s *GenerationService) WithClock(now func() time.Time) *GenerationService {
	s.now = now
	return s
}

// Generate materializes the worker's instances for the given day. The
// returned bool is true when this call created the set; false means the day
// was already generated and the existing set is returned — callers treat
// both as "instances now exist, proceed to list".
func (s *GenerationService) Generate(ctx context.Context, workerID string, day time.Time) ([]task.Instance, bool, error) {
	date := s.agg.DateOf(day)

	generated, err := s.repo.HasGenerated(workerID, date)
	if err != nil {
		return nil, false, err
	}
	if generated {
		existing, err := s.instancesForDate(workerID, date)
		return existing, false, err
	}

	plan, err := s.generator.PlanDay(ctx, workerID, day)
	if err != nil {
		return nil, false, fmt.Errorf("plan day %s for worker %s: %w", date, workerID, err)
	}

	// Instances are stamped with the requested day, not the wall clock, so
	// their calendar grouping always matches the generation key even when a
	// day is generated ahead of time.
	instances := s.materialize(workerID, plan, day)

	if err := s.repo.SaveGeneratedSet(workerID, date, instances); err != nil {
		// A concurrent caller won the race: their set is the set.
		if errors.Is(err, task.ErrGenerationConflict) {
			existing, loadErr := s.instancesForDate(workerID, date)
			return existing, false, loadErr
		}
		return nil, false, err
	}

	if s.dispatch != nil {
		event := events.InstancesGenerated(workerID, date, len(instances), s.now())
		if err := s.dispatch.Dispatch(ctx, event); err != nil {
			s.log.Warn("event dispatch failed",
				"event_type", event.Type,
				"worker_id", workerID,
				"error", err)
		}
	}

	return instances, true, nil
}

// materialize assigns IDs and initial state to the planned tasks. Sub-task
// instances reference their parent's fresh instance ID.
func (s *GenerationService) materialize(workerID string, plan []PlannedTask, createdAt time.Time) []task.Instance {
	var instances []task.Instance
	for _, planned := range plan {
		main := task.Instance{
			InstanceID: uuid.New().String(),
			WorkerID:   workerID,
			Definition: planned.Definition,
			Status:     task.StatusPending,
			CreatedAt:  createdAt,
		}
		instances = append(instances, main)

		for _, sub := range planned.SubTasks {
			instances = append(instances, task.Instance{
				InstanceID:       uuid.New().String(),
				WorkerID:         workerID,
				Definition:       sub,
				ParentInstanceID: main.InstanceID,
				Status:           task.StatusPending,
				CreatedAt:        createdAt,
			})
		}
	}
	return instances
}

func (s *GenerationService) instancesForDate(workerID, date string) ([]task.Instance, error) {
	all, err := s.repo.ListInstances(workerID)
	if err != nil {
		return nil, err
	}
	var matched []task.Instance
	for _, inst := range all {
		if s.agg.DateOf(inst.CreatedAt) == date {
			matched = append(matched, inst)
		}
	}
	return matched, nil
}
