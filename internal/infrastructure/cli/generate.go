package cli

import (
	"fmt"
	"time"

	"github.com/propsync/fieldtask/pkg/domain/stats"
	"github.com/spf13/cobra"
)

var (
	generateUser string
	generateDate string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Materialize a worker's task instances for a day",
	Long: `Materialize a worker's task instances for a calendar day from the
workspace task catalog. Generation is idempotent: a day that was already
generated surfaces the existing instance set unchanged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}

		day := time.Now().In(stats.ReportingZone)
		if generateDate != "" {
			day, err = time.ParseInLocation(stats.DateFormat, generateDate, stats.ReportingZone)
			if err != nil {
				return fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", generateDate, err)
			}
		}

		instances, created, err := services.Generation.Generate(cmd.Context(), generateUser, day)
		if err != nil {
			return MapError(fmt.Errorf("generate tasks: %w", err))
		}

		if !created {
			fmt.Printf("Tasks for %s on %s already generated (%d instances).\n",
				generateUser, day.Format(stats.DateFormat), len(instances))
			return nil
		}

		fmt.Printf("Generated %d task instances for %s on %s:\n",
			len(instances), generateUser, day.Format(stats.DateFormat))
		for _, inst := range instances {
			marker := " "
			if inst.IsSub() {
				marker = "  -"
			}
			fmt.Printf("%s %s  %s\n", marker, inst.InstanceID, inst.Definition.Name)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVarP(&generateUser, "user", "u", "", "Worker ID to generate for")
	generateCmd.Flags().StringVarP(&generateDate, "date", "d", "", "Calendar day (YYYY-MM-DD, default today)")
	_ = generateCmd.MarkFlagRequired("user")
	RootCmd.AddCommand(generateCmd)
}
