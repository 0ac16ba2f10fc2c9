package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/propsync/fieldtask/internal/infrastructure/config"
	"github.com/propsync/fieldtask/internal/infrastructure/httpapi"
	"github.com/propsync/fieldtask/internal/infrastructure/watch"
	"github.com/propsync/fieldtask/internal/infrastructure/wiring"
	"github.com/propsync/fieldtask/pkg/domain/geo"
	"github.com/spf13/cobra"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the fieldtask HTTP server",
	Long: `Start the HTTP server exposing the task workflow API.

The server exposes the worker-facing endpoints:
  - POST /user-tasks/generate
  - GET  /user-tasks
  - POST /user-tasks/{id}/start
  - POST /user-tasks/{id}/complete
  - GET  /user-tasks/stats
  - GET  /user-tasks/stats/{date}
  - POST /scans/check

The geofence policy file in the data root is watched while the server
runs; edits apply to subsequent completions without a restart.`,
	Example: `  # Start with a config file
  fieldtask serve --config fieldtask.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(serveConfigPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		services, err := wiring.BuildAppServices(cfg.DataRoot, wiring.Options{
			GeofenceMaxMeters: cfg.Geofence.MaxDistanceMeters,
			PositionTimeout:   cfg.PositionTimeout,
			Webhooks:          cfg.Webhooks,
		})
		if err != nil {
			return fmt.Errorf("build services: %w", err)
		}

		logger := slog.Default()
		server := httpapi.NewServer(cfg.ListenAddr, services.Generation, services.Workflow, services.Stats, logger)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// The workspace policy file overrides the config threshold while
		// the server runs.
		watcher, err := watch.NewPolicyWatcher(cfg.DataRoot, 500*time.Millisecond, func(policy config.GeofenceConfig) {
			fence, ferr := geo.NewFence(policy.MaxDistanceMeters)
			if ferr != nil {
				logger.Warn("ignoring invalid geofence policy", "error", ferr)
				return
			}
			services.Workflow.UpdateFence(fence)
			logger.Info("geofence policy reloaded", "max_distance_meters", policy.MaxDistanceMeters)
		})
		if err != nil {
			logger.Warn("geofence policy watch unavailable", "error", err)
		} else {
			go func() {
				if werr := watcher.Run(ctx); werr != nil && ctx.Err() == nil {
					logger.Warn("geofence policy watch stopped", "error", werr)
				}
			}()
		}

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

		go func() {
			<-stop
			fmt.Println("\nShutting down...")
			cancel()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = server.Shutdown(shutdownCtx)
		}()

		fmt.Printf("Fieldtask server listening on %s (data root %s)\n", cfg.ListenAddr, cfg.DataRoot)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "fieldtask.yaml", "Path to the configuration file")
	RootCmd.AddCommand(serveCmd)
}
