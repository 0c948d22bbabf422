package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/huangsam/skysched/internal/bridge"
	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/outwriter"
	"github.com/huangsam/skysched/internal/parquet"
	"github.com/huangsam/skysched/schema"
	"github.com/spf13/cobra"
)

// analyticsCmd groups the analytics commands.
var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Refresh, query and export precomputed schedule analytics",
	Long: `Work with the analytics tiers precomputed for every stored schedule.

Queries answer from the precomputed rows when they are present and recompute
from the stored schedule otherwise; the footer reports which path answered.

Subcommands:
  refresh   - Rebuild the analytics of one, several or all schedules
  metrics   - Aggregate counts, rates and ranges
  summary   - Full summary row including correlations and conflicts
  priority  - Scheduling rate per integer priority
  bins      - Scheduling rate per visibility bin
  heatmap   - Visibility by requested duration grid
  trends    - Smoothed scheduling rate curves
  conflicts - Overlapping scheduled blocks
  blocks    - Denormalized block rows for one dashboard view
  compare   - Scheduling changes between two schedules
  export    - Write block rows and summary to Parquet
  status    - Row counts per repository table`,
}

// withScheduleID parses the first argument and runs fn with it.
func withScheduleID(fn func(id int64) error) func(*cobra.Command, []string) {
	return func(_ *cobra.Command, args []string) {
		id, err := parseScheduleID(args[0])
		if err != nil {
			contract.LogFatal("Invalid argument", err)
		}
		if err := fn(id); err != nil {
			contract.LogFatal("Analytics query failed", err)
		}
	}
}

// binsFlag returns the --bins flag or the configured visibility bin count.
func binsFlag(cmd *cobra.Command) int {
	n, _ := cmd.Flags().GetInt("bins")
	if n < 1 {
		return cfg.VisibilityBins
	}
	return n
}

// analyticsRefreshCmd rebuilds analytics.
var analyticsRefreshCmd = &cobra.Command{
	Use:   "refresh [schedule-id...]",
	Short: "Rebuild every analytics tier of the given schedules",
	Long: `Clear and rebuild the block rows, summary row and bins of each schedule.

Refreshes of one schedule are serialized; different schedules refresh in
parallel up to --workers at a time. --tier blocks rebuilds only the block rows
(which clears the summary tier); --tier summary rebuilds the summary and bins
from the stored block rows with --bins visibility bins.

Examples:
  skysched analytics refresh 3
  skysched analytics refresh --all --workers 8
  skysched analytics refresh 3 --tier summary --bins 20`,
	PreRunE: sharedSetupWrapper,
	Run: func(cmd *cobra.Command, args []string) {
		all, _ := cmd.Flags().GetBool("all")
		ids := make([]int64, 0, len(args))
		for _, arg := range args {
			id, err := parseScheduleID(arg)
			if err != nil {
				contract.LogFatal("Invalid argument", err)
			}
			ids = append(ids, id)
		}
		if all {
			list, err := app.store.ListSchedules(rootCtx)
			if err != nil {
				contract.LogFatal("Cannot list schedules", err)
			}
			for _, s := range list {
				ids = append(ids, s.ID)
			}
		}
		if len(ids) == 0 {
			contract.LogFatal("Nothing to refresh", fmt.Errorf("pass schedule ids or --all"))
		}

		tier, _ := cmd.Flags().GetString("tier")
		events, err := bridge.Call(rootCtx, app.bridge, func(ctx context.Context) ([]schema.RefreshEvent, error) {
			return refreshTier(ctx, tier, ids, binsFlag(cmd))
		})
		if err != nil {
			contract.LogFatal("Refresh failed", err)
		}
		rows := make([][]string, 0, len(events))
		for _, e := range events {
			rows = append(rows, []string{
				fmt.Sprint(e.ScheduleID), e.RunID, fmt.Sprint(e.BlockRows), fmt.Sprintf("%.1f", e.DurationMs),
			})
		}
		r := outwriter.Report{
			Header: []string{"Schedule", "Run", "Block Rows", "Duration (ms)"},
			Rows:   rows,
			Data:   events,
		}
		if err := write(r); err != nil {
			contract.LogFatal("Cannot write refresh result", err)
		}
	},
}

// refreshTier rebuilds all tiers, or only the block or summary tier of each schedule.
func refreshTier(ctx context.Context, tier string, ids []int64, nBins int) ([]schema.RefreshEvent, error) {
	if tier == "" || tier == "all" {
		return app.populator.RefreshAll(ctx, ids)
	}
	events := make([]schema.RefreshEvent, 0, len(ids))
	for _, id := range ids {
		start := time.Now()
		event := schema.RefreshEvent{ScheduleID: id}
		switch tier {
		case "blocks":
			n, err := app.repo.PopulateBlockAnalytics(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("schedule %d: %w", id, err)
			}
			event.BlockRows = n
		case "summary":
			if err := app.repo.PopulateSummaryAnalytics(ctx, id, nBins); err != nil {
				return nil, fmt.Errorf("schedule %d: %w", id, err)
			}
		default:
			return nil, fmt.Errorf("invalid tier %q (expected all, blocks or summary)", tier)
		}
		event.DurationMs = float64(time.Since(start).Microseconds()) / 1000
		events = append(events, event)
	}
	return events, nil
}

var analyticsMetricsCmd = &cobra.Command{
	Use:     "metrics <schedule-id>",
	Short:   "Aggregate counts, scheduling rate and value ranges",
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: withScheduleID(func(id int64) error {
		m, path, err := callQuery(func(ctx context.Context) (schema.ScheduleMetrics, schema.QueryPath, error) {
			return app.queries.Metrics(ctx, id)
		})
		if err != nil {
			return err
		}
		return write(outwriter.MetricsReport(m, path, cfg))
	}),
}

var analyticsSummaryCmd = &cobra.Command{
	Use:     "summary <schedule-id>",
	Short:   "Full summary row including correlations and conflicts",
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: withScheduleID(func(id int64) error {
		s, path, err := callQuery(func(ctx context.Context) (schema.SummaryAnalytics, schema.QueryPath, error) {
			return app.queries.Summary(ctx, id)
		})
		if err != nil {
			return err
		}
		return write(outwriter.SummaryReport(s, path, cfg))
	}),
}

var analyticsPriorityCmd = &cobra.Command{
	Use:     "priority <schedule-id>",
	Short:   "Scheduling rate per integer priority",
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: withScheduleID(func(id int64) error {
		bins, path, err := callQuery(func(ctx context.Context) ([]schema.PriorityRateBin, schema.QueryPath, error) {
			return app.queries.PriorityRates(ctx, id)
		})
		if err != nil {
			return err
		}
		return write(outwriter.PriorityRatesReport(bins, path, cfg))
	}),
}

var analyticsBinsCmd = &cobra.Command{
	Use:   "bins <schedule-id>",
	Short: "Scheduling rate per equal-width visibility bin",
	Long: `Bin blocks by total visibility hours and report the scheduling rate per bin.

A bin count other than the one analytics were populated with is recomputed.

Examples:
  skysched analytics bins 3
  skysched analytics bins 3 --bins 20`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(cmd *cobra.Command, args []string) {
		nBins := binsFlag(cmd)
		withScheduleID(func(id int64) error {
			bins, path, err := callQuery(func(ctx context.Context) ([]schema.RateBin, schema.QueryPath, error) {
				return app.queries.VisibilityBins(ctx, id, nBins)
			})
			if err != nil {
				return err
			}
			return write(outwriter.RateBinsReport(bins, path, cfg))
		})(cmd, args)
	},
}

var analyticsHeatmapCmd = &cobra.Command{
	Use:     "heatmap <schedule-id>",
	Short:   "Scheduling rate over a visibility by requested duration grid",
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: withScheduleID(func(id int64) error {
		bins, path, err := callQuery(func(ctx context.Context) ([]schema.HeatmapBin, schema.QueryPath, error) {
			return app.queries.Heatmap(ctx, id)
		})
		if err != nil {
			return err
		}
		return write(outwriter.HeatmapReport(bins, path, cfg))
	}),
}

var analyticsTrendsCmd = &cobra.Command{
	Use:     "trends <schedule-id>",
	Short:   "Binned and kernel-smoothed scheduling rate curves",
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(cmd *cobra.Command, args []string) {
		nBins := binsFlag(cmd)
		withScheduleID(func(id int64) error {
			t, path, err := callQuery(func(ctx context.Context) (schema.Trends, schema.QueryPath, error) {
				return app.queries.Trends(ctx, id, nBins)
			})
			if err != nil {
				return err
			}
			return write(outwriter.TrendsReport(t, path, cfg))
		})(cmd, args)
	},
}

var analyticsConflictsCmd = &cobra.Command{
	Use:     "conflicts <schedule-id>",
	Short:   "Pairs of scheduled blocks with overlapping periods",
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: withScheduleID(func(id int64) error {
		conflicts, path, err := callQuery(func(ctx context.Context) ([]schema.Conflict, schema.QueryPath, error) {
			return app.queries.Conflicts(ctx, id)
		})
		if err != nil {
			return err
		}
		return write(outwriter.ConflictsReport(conflicts, path, cfg))
	}),
}

var analyticsBlocksCmd = &cobra.Command{
	Use:   "blocks <schedule-id>",
	Short: "Denormalized block rows for one dashboard view",
	Long: `Print the block rows with the columns one dashboard view needs.

Views: sky_map, distribution, timeline, insights (every column), trends.

Examples:
  skysched analytics blocks 3 --view timeline --limit 20`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(cmd *cobra.Command, args []string) {
		viewName, _ := cmd.Flags().GetString("view")
		limit, _ := cmd.Flags().GetInt("limit")
		view, err := schema.ParseAnalyticsView(viewName)
		if err != nil {
			contract.LogFatal("Invalid view", err)
		}
		withScheduleID(func(id int64) error {
			rows, path, err := callQuery(func(ctx context.Context) ([]schema.AnalyticsBlockRow, schema.QueryPath, error) {
				return app.queries.Blocks(ctx, id, view)
			})
			if err != nil {
				return err
			}
			if limit > 0 && len(rows) > limit {
				rows = rows[:limit]
			}
			return write(outwriter.BlocksReport(rows, view, path, cfg))
		})(cmd, args)
	},
}

// analyticsCompareCmd compares two stored schedules.
var analyticsCompareCmd = &cobra.Command{
	Use:   "compare <current-id> <comparison-id>",
	Short: "Compare the scheduling outcome of two stored schedules",
	Long: `Match the blocks of two schedules by original block id and report how the
scheduling outcome changed.

Ideal for:
- Scheduler runs - see what a new run scheduled that the previous one did not
- Parameter tuning - compare priorities and hours won by each configuration
- Idle time - check whether the gaps between observations shrank

The table shows scheduled counts, priority sum, mean and median, scheduled
hours and gap statistics for each side with the delta. The footer counts the
blocks only one side has and the blocks whose scheduled state flipped.
--changes lists those blocks instead.

Examples:
  skysched analytics compare 3 4
  skysched analytics compare 3 4 --changes
  skysched analytics compare 3 4 --output json --output-file compare.json`,
	Args:    cobra.ExactArgs(2),
	PreRunE: sharedSetupWrapper,
	Run: func(cmd *cobra.Command, args []string) {
		currentID, err := parseScheduleID(args[0])
		if err != nil {
			contract.LogFatal("Invalid argument", err)
		}
		comparisonID, err := parseScheduleID(args[1])
		if err != nil {
			contract.LogFatal("Invalid argument", err)
		}
		changes, _ := cmd.Flags().GetBool("changes")

		c, err := bridge.Call(rootCtx, app.bridge, func(ctx context.Context) (schema.ScheduleComparison, error) {
			return app.queries.Compare(ctx, currentID, comparisonID)
		})
		if err != nil {
			contract.LogFatal("Cannot compare schedules", err)
		}
		r := outwriter.CompareReport(c, cfg)
		if changes {
			r = outwriter.CompareChangesReport(c, cfg)
		}
		if err := write(r); err != nil {
			contract.LogFatal("Cannot write comparison", err)
		}
	},
}

// analyticsExportCmd exports analytics to Parquet files.
var analyticsExportCmd = &cobra.Command{
	Use:   "export <schedule-id>",
	Short: "Export block rows and the summary to Parquet",
	Long: `Write the analytics of a schedule to two Parquet files in the --output-file directory:
blocks.parquet with every block row and summary.parquet with the summary row.

Examples:
  skysched analytics export 3 --output-file ./export
  duckdb -c "SELECT priority_bucket, avg(is_scheduled::int) FROM read_parquet('export/blocks.parquet') GROUP BY 1"`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: withScheduleID(func(id int64) error {
		dir := cfg.OutputFile
		if dir == "" {
			return fmt.Errorf("--output-file is required for export")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}

		rows, _, err := callQuery(func(ctx context.Context) ([]schema.AnalyticsBlockRow, schema.QueryPath, error) {
			return app.queries.Blocks(ctx, id, schema.InsightsView)
		})
		if err != nil {
			return err
		}
		summary, _, err := callQuery(func(ctx context.Context) (schema.SummaryAnalytics, schema.QueryPath, error) {
			return app.queries.Summary(ctx, id)
		})
		if err != nil {
			return err
		}

		blocksPath := filepath.Join(dir, "blocks.parquet")
		if err := parquet.WriteBlockRowsParquet(parquet.ConvertBlockRows(rows), blocksPath); err != nil {
			return err
		}
		summaryPath := filepath.Join(dir, "summary.parquet")
		if err := parquet.WriteSummaryParquet([]parquet.Summary{parquet.ConvertSummary(summary, time.Now().UTC())}, summaryPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "💾 Wrote %d block rows to %s and the summary to %s\n", len(rows), blocksPath, summaryPath)
		return nil
	}),
}

// analyticsStatusCmd shows repository row counts.
var analyticsStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Display repository backend and row counts per table",
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := bridge.Call(rootCtx, app.bridge, app.store.Status)
		if err != nil {
			contract.LogFatal("Failed to get repository status", err)
		}
		if err := write(outwriter.StatusReport(status)); err != nil {
			contract.LogFatal("Cannot write status", err)
		}
	},
}
