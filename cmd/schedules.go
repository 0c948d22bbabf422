package cmd

import (
	"context"

	"github.com/huangsam/skysched/internal/bridge"
	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/outwriter"
	"github.com/huangsam/skysched/schema"
	"github.com/spf13/cobra"
)

// schedulesCmd lists stored schedules.
var schedulesCmd = &cobra.Command{
	Use:   "schedules",
	Short: "List stored schedules",
	Long: `Show every stored schedule, newest first, with its block count and scheduling rate.

Examples:
  # List schedules
  skysched schedules

  # Machine-readable listing
  skysched schedules --output json`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		list, err := bridge.Call(rootCtx, app.bridge, app.store.ListSchedules)
		if err != nil {
			contract.LogFatal("Cannot list schedules", err)
		}
		if err := write(outwriter.SchedulesReport(list, cfg)); err != nil {
			contract.LogFatal("Cannot write schedules", err)
		}
	},
}

// schedulesValidationCmd prints the stored validation report of a schedule.
var schedulesValidationCmd = &cobra.Command{
	Use:   "validation <schedule-id>",
	Short: "Show the per-block validation report of a schedule",
	Long: `Print the validation results written when the schedule was uploaded.

Blocks with less visibility than they request are reported as impossible,
negative priorities as errors and very low elevation limits as warnings.

Examples:
  skysched schedules validation 3`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		id, err := parseScheduleID(args[0])
		if err != nil {
			contract.LogFatal("Invalid argument", err)
		}
		results, err := bridge.Call(rootCtx, app.bridge, func(ctx context.Context) ([]schema.ValidationResult, error) {
			return app.store.FetchValidationResults(ctx, id)
		})
		if err != nil {
			contract.LogFatal("Cannot fetch validation results", err)
		}
		if err := write(outwriter.ValidationReport(results)); err != nil {
			contract.LogFatal("Cannot write validation results", err)
		}
	},
}
