package cmd

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/huangsam/skysched/core"
	"github.com/huangsam/skysched/internal/bridge"
	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/ingest"
	"github.com/huangsam/skysched/internal/outwriter"
	"github.com/huangsam/skysched/schema"
	"github.com/spf13/cobra"
)

// uploadCmd ingests one schedule.
var uploadCmd = &cobra.Command{
	Use:   "upload <schedule.json>",
	Short: "Ingest a schedule and populate its analytics",
	Long: `Parse, validate and store a schedule, then precompute its analytics.

The schedule is stored once per checksum: uploading identical content again
returns the existing schedule id without writing anything.

Steps:
- Normalize the payload and collect every validation violation
- Store the deduplicated targets, constraints and blocks in one transaction
- Write the per-block validation report
- Populate block rows, the summary row and all bins

Examples:
  # Upload with visibility and dark periods
  skysched upload schedule.json --possible-periods possible.json --dark-periods dark.json

  # Store only; queries answer by recomputing until analytics are refreshed
  skysched upload schedule.json --skip-refresh`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("name")
		possible, _ := cmd.Flags().GetString("possible-periods")
		dark, _ := cmd.Flags().GetString("dark-periods")
		skip, _ := cmd.Flags().GetBool("skip-refresh")

		in, err := ingest.LoadInput(name, args[0], possible, dark)
		if err != nil {
			contract.LogFatal("Cannot read upload", err)
		}
		app.uploader.SkipRefresh = skip
		res, err := bridge.Call(rootCtx, app.bridge, func(ctx context.Context) (*core.UploadResult, error) {
			return app.uploader.Upload(ctx, in)
		})
		if err != nil {
			contract.LogFatal("Upload failed", err)
		}
		if err := write(uploadReport(res)); err != nil {
			contract.LogFatal("Cannot write upload result", err)
		}
	},
}

func uploadReport(res *core.UploadResult) outwriter.Report {
	pairs := [][2]string{
		{"Schedule ID", strconv.FormatInt(res.ScheduleID, 10)},
		{"Name", res.Name},
		{"Checksum", res.Checksum},
		{"Duplicate", strconv.FormatBool(res.Duplicate)},
	}
	if !res.Duplicate {
		s := res.Summary
		pairs = append(pairs,
			[2]string{"Blocks", strconv.Itoa(s.Blocks)},
			[2]string{"Scheduled blocks", strconv.Itoa(s.ScheduledBlocks)},
			[2]string{"Unique targets", strconv.Itoa(s.UniqueTargets)},
			[2]string{"Unique constraints", strconv.Itoa(s.UniqueConstraints)},
			[2]string{"Visibility periods", strconv.Itoa(s.VisibilityPeriods)},
			[2]string{"Dark periods", strconv.Itoa(s.DarkPeriods)},
		)
		statuses := make([]string, 0, len(res.Validation))
		for status := range res.Validation {
			statuses = append(statuses, string(status))
		}
		sort.Strings(statuses)
		for _, status := range statuses {
			pairs = append(pairs, [2]string{"Validation " + status, strconv.Itoa(res.Validation[schema.ValidationStatus(status)])})
		}
		if res.Refresh != nil {
			pairs = append(pairs,
				[2]string{"Analytics run", res.Refresh.RunID},
				[2]string{"Analytics rows", strconv.Itoa(res.Refresh.BlockRows)},
			)
		}
	}
	pairs = append(pairs, [2]string{"Elapsed", res.Elapsed.Round(time.Millisecond).String()})
	r := outwriter.KeyValueReport("", pairs, res)
	if res.Duplicate {
		r.Footer = fmt.Sprintf("Schedule already stored as %d", res.ScheduleID)
	}
	return r
}
