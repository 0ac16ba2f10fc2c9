package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/propsync/fieldtask/pkg/application"
	"github.com/propsync/fieldtask/pkg/domain/device"
	"github.com/propsync/fieldtask/pkg/domain/geo"
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Work a task instance through its lifecycle",
}

var taskListUser string
var taskListJSON bool

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a worker's task instances with effective statuses",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}

		views, err := services.Stats.List(cmd.Context(), taskListUser, "", "")
		if err != nil {
			return MapError(fmt.Errorf("list tasks: %w", err))
		}

		if taskListJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(views)
		}

		fmt.Printf("Tasks for %s (%d)\n", taskListUser, len(views))
		fmt.Println(strings.Repeat("-", 40))
		for _, v := range views {
			fmt.Printf("  %s  [%s] %s\n", v.InstanceID, v.EffectiveStatus, v.Definition.Name)
			for _, sub := range v.SubTasks {
				fmt.Printf("    - %s  [%s] %s\n", sub.InstanceID, sub.Status, sub.Definition.Name)
			}
		}
		if len(views) == 0 {
			fmt.Println("  (none)")
		}
		return nil
	},
}

var taskStartCmd = &cobra.Command{
	Use:   "start <instance-id>",
	Short: "Start a pending task instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}

		inst, err := services.Workflow.StartTask(cmd.Context(), args[0])
		if err != nil {
			return MapError(fmt.Errorf("start task: %w", err))
		}
		fmt.Printf("Started %s (%s) at %s.\n", inst.InstanceID, inst.Definition.Name, inst.StartedAt.Format("15:04:05"))
		return nil
	},
}

var (
	completeNotes       string
	completeScanCode    string
	completeLatitude    float64
	completeLongitude   float64
	completePhotoBefore string
	completePhotoAfter  string
	completePhotoScan   string
)

var taskCompleteCmd = &cobra.Command{
	Use:   "complete <instance-id>",
	Short: "Complete a task instance with its evidence",
	Long: `Complete a task instance. Evidence flags attach what the task's
definition requires: before/after photos for validation tasks, a scanned
code (plus scan photo) for scan tasks. Geofenced codes additionally need
the live position via --lat and --lon.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}

		ctx, err := contextWithPosition(cmd)
		if err != nil {
			return err
		}

		sub := application.EvidenceSubmission{
			Notes:    completeNotes,
			ScanCode: completeScanCode,
		}
		if sub.FileBefore, err = readEvidenceFile(completePhotoBefore); err != nil {
			return err
		}
		if sub.FileAfter, err = readEvidenceFile(completePhotoAfter); err != nil {
			return err
		}
		if sub.FileScan, err = readEvidenceFile(completePhotoScan); err != nil {
			return err
		}

		inst, err := services.Workflow.CompleteTaskWithEvidence(ctx, args[0], sub)
		if err != nil {
			return MapError(fmt.Errorf("complete task: %w", err))
		}
		fmt.Printf("Completed %s (%s) at %s.\n", inst.InstanceID, inst.Definition.Name, inst.CompletedAt.Format("15:04:05"))
		return nil
	},
}

var checkScanCmd = &cobra.Command{
	Use:   "check-scan <code>",
	Short: "Check a scanned code before submitting",
	Long: `Decode a scanned code and, when it embeds a task location, measure
the current distance to it. This check is informational: the completion
itself re-validates the position at submit time.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}

		ctx, err := contextWithPosition(cmd)
		if err != nil {
			return err
		}

		check, err := services.Workflow.CheckScan(ctx, args[0])
		if err != nil {
			return MapError(fmt.Errorf("check scan: %w", err))
		}

		fmt.Printf("Code: %s\n", check.Payload.Code)
		if !check.Payload.HasTarget() {
			fmt.Println("No embedded location; the code passes without a geofence check.")
			return nil
		}
		fmt.Printf("Target: %.4f, %.4f\n", check.Payload.Target.Latitude, check.Payload.Target.Longitude)
		if check.Fence == nil {
			fmt.Println("Current position unknown; the geofence will be checked at submit time.")
			return nil
		}
		if check.Fence.Valid {
			fmt.Printf("Within the geofence (%.0fm away).\n", check.Fence.DistanceMeters)
		} else {
			fmt.Printf("Outside the geofence (%.0fm away) — move closer before submitting.\n", check.Fence.DistanceMeters)
		}
		return nil
	},
}

// contextWithPosition stashes the --lat/--lon position in the command
// context when both flags were set. The workflow's locator reads it from
// there; without it geofenced completions fail with a capability error.
func contextWithPosition(cmd *cobra.Command) (context.Context, error) {
	ctx := cmd.Context()
	if !cmd.Flags().Changed("lat") && !cmd.Flags().Changed("lon") {
		return ctx, nil
	}
	p, err := geo.NewPoint(completeLatitude, completeLongitude)
	if err != nil {
		return nil, fmt.Errorf("invalid position: %w", err)
	}
	return device.WithPosition(ctx, p), nil
}

func readEvidenceFile(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator's own flag
	if err != nil {
		return nil, fmt.Errorf("read evidence file: %w", err)
	}
	return data, nil
}

func addPositionFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&completeLatitude, "lat", 0, "Current latitude in decimal degrees")
	cmd.Flags().Float64Var(&completeLongitude, "lon", 0, "Current longitude in decimal degrees")
}

func init() {
	taskListCmd.Flags().StringVarP(&taskListUser, "user", "u", "", "Worker ID to list")
	taskListCmd.Flags().BoolVar(&taskListJSON, "json", false, "Output in JSON format")
	_ = taskListCmd.MarkFlagRequired("user")

	taskCompleteCmd.Flags().StringVarP(&completeNotes, "notes", "n", "", "Free-text completion notes")
	taskCompleteCmd.Flags().StringVarP(&completeScanCode, "scan-code", "s", "", "Scanned code content")
	taskCompleteCmd.Flags().StringVar(&completePhotoBefore, "photo-before", "", "Path to the before photo")
	taskCompleteCmd.Flags().StringVar(&completePhotoAfter, "photo-after", "", "Path to the after photo")
	taskCompleteCmd.Flags().StringVar(&completePhotoScan, "photo-scan", "", "Path to the scan photo")
	addPositionFlags(taskCompleteCmd)
	addPositionFlags(checkScanCmd)

	taskCmd.AddCommand(taskListCmd, taskStartCmd, taskCompleteCmd, checkScanCmd)
	RootCmd.AddCommand(taskCmd)
}
