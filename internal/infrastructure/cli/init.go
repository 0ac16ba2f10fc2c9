package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/propsync/fieldtask/internal/infrastructure/config"
	"github.com/propsync/fieldtask/pkg/storage"
	"github.com/spf13/cobra"
)

var initMaxDistance float64

const sampleCatalog = `# Task catalog: the definitions every worker is due each day.
tasks:
  - id: def-example
    name: Example routine task
    duration_minutes: 30
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a fieldtask workspace",
	Long: `Initialize a fieldtask workspace in the target directory.

Creates the .fieldtask/ data directory with the geofence policy and a
sample task catalog. The geofence threshold is mandatory deployment
policy; there is no built-in default.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := getProjectRoot()
		if err != nil {
			return err
		}

		repo := storage.NewFilesystemRepository(root)
		if err := repo.Initialize(); err != nil {
			return fmt.Errorf("initialize workspace: %w", err)
		}

		if err := config.SaveGeofence(root, &config.GeofenceConfig{MaxDistanceMeters: initMaxDistance}); err != nil {
			return fmt.Errorf("write geofence policy: %w", err)
		}

		catalogPath := filepath.Join(root, storage.FieldtaskDir, "catalog.yaml")
		if _, err := os.Stat(catalogPath); os.IsNotExist(err) {
			if err := os.WriteFile(catalogPath, []byte(sampleCatalog), 0o600); err != nil {
				return fmt.Errorf("write sample catalog: %w", err)
			}
		}

		fmt.Printf("Initialized fieldtask workspace in %s\n", filepath.Join(root, storage.FieldtaskDir))
		fmt.Printf("Geofence threshold: %.0fm\n", initMaxDistance)
		fmt.Println("Edit .fieldtask/catalog.yaml to define the daily task catalog.")
		return nil
	},
}

func init() {
	initCmd.Flags().Float64Var(&initMaxDistance, "max-distance", 100, "Geofence threshold in meters")
	RootCmd.AddCommand(initCmd)
}
