package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/propsync/fieldtask/internal/infrastructure/config"
	"github.com/propsync/fieldtask/internal/infrastructure/wiring"
)

func getProjectRoot() (string, error) {
	if projectPath != "" {
		abs, err := filepath.Abs(projectPath)
		if err != nil {
			return "", fmt.Errorf("invalid workspace path %q: %w", projectPath, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return "", fmt.Errorf("workspace path %q: %w", abs, err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("workspace path %q is not a directory", abs)
		}
		return abs, nil
	}
	return os.Getwd()
}

// loadServices builds the service graph for a workspace, reading its
// geofence policy file. The policy is mandatory: a workspace without one is
// not initialized.
func loadServices(root string) (*wiring.AppServices, error) {
	policy, err := config.LoadGeofence(root)
	if err != nil {
		return nil, fmt.Errorf("load geofence policy: %w", err)
	}
	if policy == nil {
		return nil, NewCLIError(
			"no geofence policy found",
			"Run 'fieldtask init' to initialize the workspace",
			nil,
		)
	}
	return wiring.BuildAppServices(root, wiring.Options{
		GeofenceMaxMeters: policy.MaxDistanceMeters,
	})
}

func loadServicesForCurrentDir() (*wiring.AppServices, error) {
	root, err := getProjectRoot()
	if err != nil {
		return nil, err
	}
	return loadServices(root)
}
