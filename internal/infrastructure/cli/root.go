package cli

import (
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var projectPath string

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "fieldtask",
	Version: Version,
	Short:   "Field-work task completion for property operations",
	Long: `Fieldtask tracks the daily routine tasks of on-site workers.
It materializes each worker's task list per calendar day, walks every
task through its lifecycle with the evidence it requires, and reports
day-by-day completion statistics.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().StringVar(&projectPath, "path", "", "Workspace directory (defaults to the current directory)")
}
