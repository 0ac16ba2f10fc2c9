package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	statsUser string
	statsFrom string
	statsTo   string
	statsJSON bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show day-by-day completion statistics",
	Long: `Show a worker's day-by-day completion rollups, most recent day
first. Days are grouped in the product's fixed reporting calendar.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}

		summaries, err := services.Stats.Daily(cmd.Context(), statsUser, statsFrom, statsTo)
		if err != nil {
			return MapError(fmt.Errorf("daily stats: %w", err))
		}

		if statsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summaries)
		}

		fmt.Printf("Daily completion for %s\n", statsUser)
		fmt.Println(strings.Repeat("-", 44))
		fmt.Printf("%-12s %6s %10s %8s %5s\n", "Date", "Total", "Completed", "Pending", "%")
		for _, day := range summaries {
			fmt.Printf("%-12s %6d %10d %8d %4d%%\n", day.Date, day.Total, day.Completed, day.Pending, day.Percentage)
		}
		if len(summaries) == 0 {
			fmt.Println("  (no tasks in range)")
		}
		return nil
	},
}

var statsDayCmd = &cobra.Command{
	Use:   "day <date>",
	Short: "Show one day's task list with per-task badges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}

		detail, err := services.Stats.DayDetail(cmd.Context(), statsUser, args[0])
		if err != nil {
			return MapError(fmt.Errorf("day detail: %w", err))
		}

		if statsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(detail)
		}

		fmt.Printf("Tasks on %s for %s (%d)\n", detail.Date, statsUser, len(detail.Entries))
		fmt.Println(strings.Repeat("-", 40))
		for _, entry := range detail.Entries {
			indent := "  "
			if entry.Instance.IsSub() {
				indent = "    - "
			}
			fmt.Printf("%s%s  [%s] %s\n", indent, entry.Instance.InstanceID, entry.Badge, entry.Instance.Definition.Name)
		}
		if len(detail.Entries) == 0 {
			fmt.Println("  (none)")
		}
		return nil
	},
}

func init() {
	statsCmd.PersistentFlags().StringVarP(&statsUser, "user", "u", "", "Worker ID")
	statsCmd.PersistentFlags().BoolVar(&statsJSON, "json", false, "Output in JSON format")
	statsCmd.Flags().StringVar(&statsFrom, "from", "", "Start date (YYYY-MM-DD, inclusive)")
	statsCmd.Flags().StringVar(&statsTo, "to", "", "End date (YYYY-MM-DD, inclusive)")
	_ = statsCmd.MarkPersistentFlagRequired("user")

	statsCmd.AddCommand(statsDayCmd)
	RootCmd.AddCommand(statsCmd)
}
