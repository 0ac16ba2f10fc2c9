package application_test

import (
	"context"
	"time"

	"github.com/propsync/fieldtask/pkg/application"
	"github.com/propsync/fieldtask/pkg/domain"
	"github.com/propsync/fieldtask/pkg/domain/geo"
	"github.com/propsync/fieldtask/pkg/domain/task"
)

type MockRepo struct {
	Instances   []task.Instance
	Generated   map[string]bool
	Events      []domain.AuditEvent
	Initialized bool
	SaveError   error
	LoadError   error
}

func (m *MockRepo) Initialize() error   { m.Initialized = true; return nil }
func (m *MockRepo) IsInitialized() bool { return m.Initialized }

func (m *MockRepo) ListInstances(workerID string) ([]task.Instance, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	var out []task.Instance
	for _, inst := range m.Instances {
		if inst.WorkerID == workerID {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (m *MockRepo) GetInstance(instanceID string) (task.Instance, error) {
	if m.LoadError != nil {
		return task.Instance{}, m.LoadError
	}
	for _, inst := range m.Instances {
		if inst.InstanceID == instanceID {
			return inst, nil
		}
	}
	return task.Instance{}, task.ErrInstanceNotFound
}

func (m *MockRepo) SaveInstance(inst task.Instance) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	for i := range m.Instances {
		if m.Instances[i].InstanceID == inst.InstanceID {
			m.Instances[i] = inst
			return nil
		}
	}
	m.Instances = append(m.Instances, inst)
	return nil
}

func (m *MockRepo) SaveGeneratedSet(workerID, date string, instances []task.Instance) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	if m.Generated == nil {
		m.Generated = make(map[string]bool)
	}
	key := workerID + "/" + date
	if m.Generated[key] {
		return task.ErrGenerationConflict
	}
	m.Generated[key] = true
	m.Instances = append(m.Instances, instances...)
	return nil
}

func (m *MockRepo) HasGenerated(workerID, date string) (bool, error) {
	if m.LoadError != nil {
		return false, m.LoadError
	}
	return m.Generated[workerID+"/"+date], nil
}

func (m *MockRepo) RecordEvent(e domain.AuditEvent) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.Events = append(m.Events, e)
	return nil
}

func (m *MockRepo) LoadAuditEvents() ([]domain.AuditEvent, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	return m.Events, nil
}

type MockGenerator struct {
	Plan  []application.PlannedTask
	Err   error
	Calls int
}

func (m *MockGenerator) PlanDay(ctx context.Context, workerID string, day time.Time) ([]application.PlannedTask, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Plan, nil
}

type MockLocator struct {
	Position geo.Point
	Err      error
	Calls    int
}

func (m *MockLocator) ReadPosition(ctx context.Context) (geo.Point, error) {
	m.Calls++
	if m.Err != nil {
		return geo.Point{}, m.Err
	}
	return m.Position, nil
}

type MockEvidenceStore struct {
	Uploads map[string][]byte
	Err     error
}

func (m *MockEvidenceStore) UploadEvidence(ctx context.Context, name string, data []byte) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if m.Uploads == nil {
		m.Uploads = make(map[string][]byte)
	}
	m.Uploads[name] = data
	return "https://evidence.local/" + name, nil
}
