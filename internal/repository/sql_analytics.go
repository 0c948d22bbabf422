package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/schema"
)

var analyticsTables = []string{
	analyticsBlocksTable, analyticsSummaryTable, analyticsPriorityTable,
	analyticsVisibilityTable, analyticsHeatmapTable,
}

var priorityRateColumns = []string{
	"schedule_id", "priority_value", "total_count", "scheduled_count",
	"scheduling_rate", "visibility_mean_hours", "requested_mean_hours",
}

var visibilityBinColumns = []string{
	"schedule_id", "bin_index", "label", "min_value", "max_value", "mid_value",
	"total_count", "scheduled_count", "scheduling_rate",
}

var heatmapBinColumns = []string{
	"schedule_id", "x_index", "y_index", "x_mean", "y_mean",
	"total_count", "scheduled_count", "scheduling_rate",
}

type summaryField struct {
	name string
	ptr  any
}

// summaryFields maps the summary columns onto the fields of s.
func summaryFields(s *schema.SummaryAnalytics) []summaryField {
	return []summaryField{
		{"schedule_id", &s.ScheduleID},
		{"total_blocks", &s.TotalBlocks},
		{"scheduled_blocks", &s.ScheduledBlocks},
		{"unscheduled_blocks", &s.UnscheduledBlocks},
		{"impossible_blocks", &s.ImpossibleBlocks},
		{"scheduling_rate", &s.SchedulingRate},
		{"priority_min", &s.PriorityMin},
		{"priority_max", &s.PriorityMax},
		{"priority_mean", &s.PriorityMean},
		{"priority_median", &s.PriorityMedian},
		{"priority_scheduled_mean", &s.PriorityScheduledMean},
		{"priority_unscheduled_mean", &s.PriorityUnscheduledMean},
		{"visibility_total_hours", &s.VisibilityTotalHours},
		{"visibility_min_hours", &s.VisibilityMinHours},
		{"visibility_max_hours", &s.VisibilityMaxHours},
		{"visibility_mean_hours", &s.VisibilityMeanHours},
		{"requested_total_hours", &s.RequestedTotalHours},
		{"requested_min_hours", &s.RequestedMinHours},
		{"requested_max_hours", &s.RequestedMaxHours},
		{"requested_mean_hours", &s.RequestedMeanHours},
		{"scheduled_total_hours", &s.ScheduledTotalHours},
		{"corr_priority_visibility", &s.CorrPriorityVisibility},
		{"corr_priority_requested", &s.CorrPriorityRequested},
		{"corr_visibility_requested", &s.CorrVisibilityRequested},
		{"conflict_count", &s.ConflictCount},
		{"visibility_bin_count", &s.VisibilityBinCount},
		{"heatmap_bin_count", &s.HeatmapBinCount},
	}
}

func (s *SQLStore) requireSchedule(ctx context.Context, q queryer, id int64) error {
	var found int64
	err := s.queryRow(ctx, q, "SELECT id FROM schedules WHERE id = ?", id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return &contract.NotFoundError{Entity: "schedule", ID: id}
	}
	return err
}

func (s *SQLStore) clearAnalyticsTx(ctx context.Context, tx *sql.Tx, scheduleID int64, tables []string) error {
	for _, table := range tables {
		if _, err := s.exec(ctx, tx, fmt.Sprintf("DELETE FROM %s WHERE schedule_id = ?", table), scheduleID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// ReplaceBlockAnalytics clears every analytics tier and writes the block rows.
func (s *SQLStore) ReplaceBlockAnalytics(ctx context.Context, scheduleID int64, rows []schema.AnalyticsBlockRow) (int, error) {
	err := s.inTx(ctx, "replace_block_analytics", func(ctx context.Context, tx *sql.Tx) error {
		if err := s.requireSchedule(ctx, tx, scheduleID); err != nil {
			return err
		}
		if err := s.clearAnalyticsTx(ctx, tx, scheduleID, analyticsTables); err != nil {
			return err
		}
		return s.insertBlockRowsTx(ctx, tx, scheduleID, rows)
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ReplaceSummaryAnalytics replaces the summary row and every bin of the schedule.
func (s *SQLStore) ReplaceSummaryAnalytics(ctx context.Context, scheduleID int64, bundle *schema.SummaryBundle) error {
	if bundle == nil {
		return nilBundleError()
	}
	return s.inTx(ctx, "replace_summary_analytics", func(ctx context.Context, tx *sql.Tx) error {
		if err := s.requireSchedule(ctx, tx, scheduleID); err != nil {
			return err
		}
		tables := []string{analyticsSummaryTable, analyticsPriorityTable, analyticsVisibilityTable, analyticsHeatmapTable}
		if err := s.clearAnalyticsTx(ctx, tx, scheduleID, tables); err != nil {
			return err
		}
		return s.insertSummaryTx(ctx, tx, scheduleID, bundle)
	})
}

// ReplaceAnalytics clears every tier and writes block rows, summary and bins in one transaction.
func (s *SQLStore) ReplaceAnalytics(ctx context.Context, scheduleID int64, rows []schema.AnalyticsBlockRow, bundle *schema.SummaryBundle) (int, error) {
	if bundle == nil {
		return 0, nilBundleError()
	}
	err := s.inTx(ctx, "replace_analytics", func(ctx context.Context, tx *sql.Tx) error {
		if err := s.requireSchedule(ctx, tx, scheduleID); err != nil {
			return err
		}
		if err := s.clearAnalyticsTx(ctx, tx, scheduleID, analyticsTables); err != nil {
			return err
		}
		if err := s.insertBlockRowsTx(ctx, tx, scheduleID, rows); err != nil {
			return err
		}
		return s.insertSummaryTx(ctx, tx, scheduleID, bundle)
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func nilBundleError() error {
	return &contract.ValidationError{Violations: []contract.Violation{{Field: "summary", Message: "is nil"}}}
}

func (s *SQLStore) insertBlockRowsTx(ctx context.Context, tx *sql.Tx, scheduleID int64, rows []schema.AnalyticsBlockRow) error {
	return s.bulkInsert(ctx, tx, analyticsBlocksTable, schema.BlockRowColumns, len(rows), func(i int) []any {
		values := rows[i].Values()
		values[0] = scheduleID
		return values
	})
}

func (s *SQLStore) insertSummaryTx(ctx context.Context, tx *sql.Tx, scheduleID int64, bundle *schema.SummaryBundle) error {
	summary := bundle.Summary
	summary.ScheduleID = scheduleID
	fields := summaryFields(&summary)
	cols := make([]string, len(fields))
	values := make([]any, len(fields))
	for i, f := range fields {
		cols[i] = f.name
		values[i] = derefSummary(f.ptr)
	}
	if err := s.bulkInsert(ctx, tx, analyticsSummaryTable, cols, 1, func(int) []any { return values }); err != nil {
		return err
	}
	rates := bundle.PriorityRates
	err := s.bulkInsert(ctx, tx, analyticsPriorityTable, priorityRateColumns, len(rates), func(i int) []any {
		r := rates[i]
		return []any{scheduleID, r.PriorityValue, r.TotalCount, r.ScheduledCount, r.SchedulingRate, r.VisibilityMeanHours, r.RequestedMeanHours}
	})
	if err != nil {
		return err
	}
	bins := bundle.VisibilityBins
	err = s.bulkInsert(ctx, tx, analyticsVisibilityTable, visibilityBinColumns, len(bins), func(i int) []any {
		b := bins[i]
		return []any{scheduleID, b.BinIndex, b.Label, b.MinValue, b.MaxValue, b.MidValue, b.TotalCount, b.ScheduledCount, b.SchedulingRate}
	})
	if err != nil {
		return err
	}
	cells := bundle.HeatmapBins
	return s.bulkInsert(ctx, tx, analyticsHeatmapTable, heatmapBinColumns, len(cells), func(i int) []any {
		c := cells[i]
		return []any{scheduleID, c.XIndex, c.YIndex, c.XMean, c.YMean, c.TotalCount, c.ScheduledCount, c.SchedulingRate}
	})
}

func derefSummary(p any) any {
	switch v := p.(type) {
	case *int64:
		return *v
	case *int:
		return *v
	case *float64:
		return *v
	}
	return nil
}

// ClearAnalytics deletes every analytics row of the schedule.
func (s *SQLStore) ClearAnalytics(ctx context.Context, scheduleID int64) error {
	return s.inTx(ctx, "clear_analytics", func(ctx context.Context, tx *sql.Tx) error {
		return s.clearAnalyticsTx(ctx, tx, scheduleID, analyticsTables)
	})
}

// FetchAnalyticsBlocks returns the block rows projected to the view's columns.
func (s *SQLStore) FetchAnalyticsBlocks(ctx context.Context, scheduleID int64, view schema.AnalyticsView) ([]schema.AnalyticsBlockRow, error) {
	cols := view.Columns()
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = s.dialect.quote(c)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE schedule_id = ? ORDER BY block_id",
		strings.Join(quoted, ", "), analyticsBlocksTable)

	var out []schema.AnalyticsBlockRow
	err := s.withRetry(ctx, "fetch_analytics_blocks", func(ctx context.Context) error {
		out = []schema.AnalyticsBlockRow{}
		rows, err := s.query(ctx, s.db, query, scheduleID)
		if err != nil {
			return fmt.Errorf("failed to query analytics blocks: %w", err)
		}
		return scanAll(rows, func(r *sql.Rows) error {
			var row schema.AnalyticsBlockRow
			dest := make([]any, len(cols))
			for i, c := range cols {
				dest[i] = row.FieldPtr(c)
			}
			if err := r.Scan(dest...); err != nil {
				return err
			}
			out = append(out, row)
			return nil
		})
	})
	return out, err
}

// FetchScheduleSummary returns the summary row, or nil when it was never written.
func (s *SQLStore) FetchScheduleSummary(ctx context.Context, scheduleID int64) (*schema.SummaryAnalytics, error) {
	var summary schema.SummaryAnalytics
	fields := summaryFields(&summary)
	cols := make([]string, len(fields))
	dest := make([]any, len(fields))
	for i, f := range fields {
		cols[i] = f.name
		dest[i] = f.ptr
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE schedule_id = ?", strings.Join(cols, ", "), analyticsSummaryTable)

	found := false
	err := s.withRetry(ctx, "fetch_schedule_summary", func(ctx context.Context) error {
		err := s.queryRow(ctx, s.db, query, scheduleID).Scan(dest...)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to query summary: %w", err)
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return nil, err
	}
	return &summary, nil
}

// FetchPriorityRates returns priority bins ordered by priority.
func (s *SQLStore) FetchPriorityRates(ctx context.Context, scheduleID int64) ([]schema.PriorityRateBin, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE schedule_id = ? ORDER BY priority_value",
		strings.Join(priorityRateColumns[1:], ", "), analyticsPriorityTable)
	var out []schema.PriorityRateBin
	err := s.withRetry(ctx, "fetch_priority_rates", func(ctx context.Context) error {
		out = []schema.PriorityRateBin{}
		rows, err := s.query(ctx, s.db, query, scheduleID)
		if err != nil {
			return fmt.Errorf("failed to query priority rates: %w", err)
		}
		return scanAll(rows, func(r *sql.Rows) error {
			var b schema.PriorityRateBin
			if err := r.Scan(&b.PriorityValue, &b.TotalCount, &b.ScheduledCount, &b.SchedulingRate, &b.VisibilityMeanHours, &b.RequestedMeanHours); err != nil {
				return err
			}
			out = append(out, b)
			return nil
		})
	})
	return out, err
}

// FetchVisibilityBins returns visibility bins ordered by bin index.
func (s *SQLStore) FetchVisibilityBins(ctx context.Context, scheduleID int64) ([]schema.RateBin, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE schedule_id = ? ORDER BY bin_index",
		strings.Join(visibilityBinColumns[1:], ", "), analyticsVisibilityTable)
	var out []schema.RateBin
	err := s.withRetry(ctx, "fetch_visibility_bins", func(ctx context.Context) error {
		out = []schema.RateBin{}
		rows, err := s.query(ctx, s.db, query, scheduleID)
		if err != nil {
			return fmt.Errorf("failed to query visibility bins: %w", err)
		}
		return scanAll(rows, func(r *sql.Rows) error {
			var b schema.RateBin
			if err := r.Scan(&b.BinIndex, &b.Label, &b.MinValue, &b.MaxValue, &b.MidValue, &b.TotalCount, &b.ScheduledCount, &b.SchedulingRate); err != nil {
				return err
			}
			out = append(out, b)
			return nil
		})
	})
	return out, err
}

// FetchHeatmapBins returns heatmap cells ordered by x then y index.
func (s *SQLStore) FetchHeatmapBins(ctx context.Context, scheduleID int64) ([]schema.HeatmapBin, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE schedule_id = ? ORDER BY x_index, y_index",
		strings.Join(heatmapBinColumns[1:], ", "), analyticsHeatmapTable)
	var out []schema.HeatmapBin
	err := s.withRetry(ctx, "fetch_heatmap_bins", func(ctx context.Context) error {
		out = []schema.HeatmapBin{}
		rows, err := s.query(ctx, s.db, query, scheduleID)
		if err != nil {
			return fmt.Errorf("failed to query heatmap bins: %w", err)
		}
		return scanAll(rows, func(r *sql.Rows) error {
			var b schema.HeatmapBin
			if err := r.Scan(&b.XIndex, &b.YIndex, &b.XMean, &b.YMean, &b.TotalCount, &b.ScheduledCount, &b.SchedulingRate); err != nil {
				return err
			}
			out = append(out, b)
			return nil
		})
	})
	return out, err
}
