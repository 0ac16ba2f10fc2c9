// Package wiring constructs the application services for a data root.
package wiring

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/propsync/fieldtask/internal/infrastructure/webhook"
	"github.com/propsync/fieldtask/pkg/application"
	"github.com/propsync/fieldtask/pkg/domain/device"
	"github.com/propsync/fieldtask/pkg/domain/events"
	"github.com/propsync/fieldtask/pkg/domain/geo"
	"github.com/propsync/fieldtask/pkg/domain/stats"
	"github.com/propsync/fieldtask/pkg/storage"
)

// Options carries the deployment knobs the services need beyond the data
// root. Locator and Evidence default to the context locator and the local
// filesystem store.
type Options struct {
	GeofenceMaxMeters float64
	PositionTimeout   time.Duration
	Webhooks          []events.WebhookEndpoint
	Locator           device.Locator
	Evidence          device.EvidenceStore
}

// AppServices exposes the application layer services wired together for a
// data root.
type AppServices struct {
	Repo       *storage.FilesystemRepository
	Dispatcher *events.Dispatcher
	Notifier   *webhook.Notifier
	Audit      *application.AuditService
	Generation *application.GenerationService
	Workflow   *application.WorkflowService
	Stats      *application.StatsService
	Fence      geo.Fence
}

// BuildAppServices constructs the full service graph for a data root.
func BuildAppServices(root string, opts Options) (*AppServices, error) {
	fence, err := geo.NewFence(opts.GeofenceMaxMeters)
	if err != nil {
		return nil, fmt.Errorf("geofence policy: %w", err)
	}

	repo := storage.NewFilesystemRepository(root)
	if err := repo.Initialize(); err != nil {
		return nil, err
	}

	dispatcher := events.NewDispatcher()

	var notifier *webhook.Notifier
	if len(opts.Webhooks) > 0 {
		dlPath := filepath.Join(root, storage.FieldtaskDir, storage.DeadLetterFile)
		notifier = webhook.NewNotifier(opts.Webhooks, webhook.NewDeadLetterLog(dlPath))
		dispatcher.RegisterWildcard("webhooks", func(ctx context.Context, event events.Event) error {
			notifier.Notify(ctx, event)
			return nil
		})
	}

	locator := opts.Locator
	if locator == nil {
		locator = device.NewResilientLocator(device.ContextLocator{}, opts.PositionTimeout)
	}
	evidence := opts.Evidence
	if evidence == nil {
		evidence = storage.NewLocalEvidenceStore(root)
	}

	auditSvc := application.NewAuditService(repo)

	return &AppServices{
		Repo:       repo,
		Dispatcher: dispatcher,
		Notifier:   notifier,
		Audit:      auditSvc,
		Generation: application.NewGenerationService(repo, NewCatalogPlanner(root), stats.NewAggregator(nil), dispatcher),
		Workflow:   application.NewWorkflowService(repo, fence, locator, evidence, dispatcher, auditSvc),
		Stats:      application.NewStatsService(repo),
		Fence:      fence,
	}, nil
}
