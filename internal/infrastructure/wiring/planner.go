package wiring

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/propsync/fieldtask/pkg/application"
	"github.com/propsync/fieldtask/pkg/domain/task"
	"github.com/propsync/fieldtask/pkg/storage"
)

const catalogFile = "catalog.yaml"

// catalogDocument is the on-disk task catalog: the definitions every worker
// is due each day. Real deployments replace CatalogPlanner with a scheduler
// integration; the catalog keeps single-site deployments self-contained.
type catalogDocument struct {
	Tasks []catalogTask `yaml:"tasks"`
}

type catalogTask struct {
	ID                 string        `yaml:"id"`
	Name               string        `yaml:"name"`
	DurationMinutes    int           `yaml:"duration_minutes"`
	RequiresValidation bool          `yaml:"requires_validation"`
	RequiresScan       bool          `yaml:"requires_scan"`
	SubTasks           []catalogTask `yaml:"sub_tasks,omitempty"`
}

// CatalogPlanner plans each day from the workspace task catalog. The file is
// re-read on every plan so catalog edits apply without a restart.
type CatalogPlanner struct {
	root string
}

func NewCatalogPlanner(root string) *CatalogPlanner {
	return &CatalogPlanner{root: root}
}

// PlanDay returns the catalog's tasks. Every worker receives the same plan;
// worker-specific scheduling is the external scheduler's concern.
func (p *CatalogPlanner) PlanDay(ctx context.Context, workerID string, day time.Time) ([]application.PlannedTask, error) {
	repo := storage.NewFilesystemRepository(p.root)
	path, err := repo.ResolvePath(catalogFile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is resolved inside the workspace
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no task catalog at %s", path)
		}
		return nil, fmt.Errorf("failed to read task catalog: %w", err)
	}

	var doc catalogDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task catalog: %w", err)
	}

	var plan []application.PlannedTask
	for _, ct := range doc.Tasks {
		planned := application.PlannedTask{Definition: ct.definition(true)}
		for _, sub := range ct.SubTasks {
			planned.SubTasks = append(planned.SubTasks, sub.definition(false))
		}
		plan = append(plan, planned)
	}
	return plan, nil
}

func (ct catalogTask) definition(main bool) task.Definition {
	return task.Definition{
		ID:                 ct.ID,
		Name:               ct.Name,
		DurationMinutes:    ct.DurationMinutes,
		RequiresValidation: ct.RequiresValidation,
		RequiresScan:       ct.RequiresScan,
		IsMainTask:         main,
	}
}
