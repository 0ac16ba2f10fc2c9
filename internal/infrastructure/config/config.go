// Package config loads the server and workflow configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/propsync/fieldtask/pkg/domain/events"
	"github.com/propsync/fieldtask/pkg/storage"
)

const geofenceConfigFile = "geofence.yaml"

// Config is the full server configuration.
type Config struct {
	ListenAddr      string                   `yaml:"listen_addr"`
	DataRoot        string                   `yaml:"data_root"`
	Geofence        GeofenceConfig           `yaml:"geofence"`
	PositionTimeout time.Duration            `yaml:"position_timeout"`
	Webhooks        []events.WebhookEndpoint `yaml:"webhooks,omitempty"`
}

// GeofenceConfig carries the deployment's geofence policy. The threshold has
// no default: a deployment that geofences must say how strictly.
type GeofenceConfig struct {
	MaxDistanceMeters float64 `yaml:"max_distance_meters"`
}

// Load reads the configuration file at path and applies defaults for the
// optional fields. The geofence threshold is mandatory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator's own flag
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.DataRoot == "" {
		c.DataRoot = "."
	}
	if c.PositionTimeout <= 0 {
		c.PositionTimeout = 10 * time.Second
	}
	if c.Geofence.MaxDistanceMeters <= 0 {
		return fmt.Errorf("geofence.max_distance_meters must be set to a positive value")
	}
	return nil
}

// LoadGeofence reads the standalone geofence policy file under the data
// root's workspace directory. A missing file returns nil, nil; the caller
// keeps its current policy.
func LoadGeofence(root string) (*GeofenceConfig, error) {
	repo := storage.NewFilesystemRepository(root)
	path, err := repo.ResolvePath(geofenceConfigFile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is resolved inside the workspace
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read geofence config: %w", err)
	}

	var cfg GeofenceConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal geofence config: %w", err)
	}
	if cfg.MaxDistanceMeters <= 0 {
		return nil, fmt.Errorf("geofence.max_distance_meters must be positive, got %v", cfg.MaxDistanceMeters)
	}
	return &cfg, nil
}

// SaveGeofence writes the geofence policy file under the data root.
func SaveGeofence(root string, cfg *GeofenceConfig) error {
	if cfg == nil {
		return fmt.Errorf("geofence config is nil")
	}

	repo := storage.NewFilesystemRepository(root)
	path, err := repo.ResolvePath(geofenceConfigFile)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal geofence config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// GeofencePath returns the on-disk location of the geofence policy file,
// for the hot-reload watcher.
func GeofencePath(root string) (string, error) {
	repo := storage.NewFilesystemRepository(root)
	return repo.ResolvePath(geofenceConfigFile)
}
