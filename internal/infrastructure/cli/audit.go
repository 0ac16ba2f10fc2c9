package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit and verify the workspace transition history",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the integrity of the audit trail",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}

		fmt.Println("Verifying audit trail integrity...")
		violations, err := services.Audit.VerifyIntegrity()
		if err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}

		if len(violations) == 0 {
			fmt.Println("Audit trail is intact and verified.")
			return nil
		}

		fmt.Printf("Found %d integrity violations:\n", len(violations))
		for _, v := range violations {
			fmt.Printf("  - %s\n", v)
		}
		os.Exit(1)
		return nil
	},
}

var auditTimelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Show the recorded transitions in order",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}

		events, err := services.Audit.GetTimeline()
		if err != nil {
			return fmt.Errorf("load timeline: %w", err)
		}

		for _, event := range events {
			fmt.Printf("%s  %-20s %s\n", event.Timestamp.Format("2006-01-02 15:04:05"), event.Action, event.Actor)
			if id, ok := event.Metadata["instance_id"]; ok {
				fmt.Printf("    instance: %v\n", id)
			}
		}
		if len(events) == 0 {
			fmt.Println("(no recorded transitions)")
		}
		return nil
	},
}

func init() {
	auditCmd.AddCommand(auditVerifyCmd, auditTimelineCmd)
	RootCmd.AddCommand(auditCmd)
}
