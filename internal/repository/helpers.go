package repository

import (
	"fmt"

	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/schema"
)

// Table names shared by every backend.
const (
	schedulesTable           = "schedules"
	targetsTable             = "targets"
	altitudesTable           = "altitude_constraints"
	azimuthsTable            = "azimuth_constraints"
	constraintsTable         = "block_constraints"
	blocksTable              = "scheduling_blocks"
	scheduleBlocksTable      = "schedule_scheduling_blocks"
	analyticsBlocksTable     = "analytics_blocks"
	analyticsSummaryTable    = "analytics_summary"
	analyticsPriorityTable   = "analytics_priority_rates"
	analyticsVisibilityTable = "analytics_visibility_bins"
	analyticsHeatmapTable    = "analytics_heatmap_bins"
	validationTable          = "validation_results"
)

// allTables lists every table in dependency order.
var allTables = []string{
	schedulesTable, targetsTable, altitudesTable, azimuthsTable, constraintsTable, blocksTable,
	scheduleBlocksTable, analyticsBlocksTable, analyticsSummaryTable, analyticsPriorityTable,
	analyticsVisibilityTable, analyticsHeatmapTable, validationTable,
}

// checkStorable rejects schedules that cannot be written as one graph.
func checkStorable(s *schema.Schedule) error {
	if s == nil {
		return &contract.ValidationError{Violations: []contract.Violation{{Field: "schedule", Message: "is nil"}}}
	}
	var vs []contract.Violation
	if s.Name == "" {
		vs = append(vs, contract.Violation{Field: "name", Message: "is required"})
	}
	if s.Checksum == "" {
		vs = append(vs, contract.Violation{Field: "checksum", Message: "is required"})
	}
	seen := make(map[string]struct{}, len(s.Blocks))
	for i := range s.Blocks {
		id := s.Blocks[i].OriginalID
		if id == "" {
			vs = append(vs, contract.Violation{Block: fmt.Sprintf("#%d", i), Field: "original_block_id", Message: "is required"})
			continue
		}
		if _, dup := seen[id]; dup {
			vs = append(vs, contract.Violation{Block: id, Field: "original_block_id", Message: "is duplicated"})
		}
		seen[id] = struct{}{}
	}
	if len(vs) > 0 {
		return &contract.ValidationError{Violations: vs}
	}
	return nil
}

// cloneSchedule deep-copies a schedule so callers never share memory with a store.
func cloneSchedule(s *schema.Schedule) *schema.Schedule {
	out := *s
	out.DarkPeriods = append([]schema.Period{}, s.DarkPeriods...)
	out.Blocks = make([]schema.SchedulingBlock, len(s.Blocks))
	for i := range s.Blocks {
		out.Blocks[i] = cloneBlock(&s.Blocks[i])
	}
	return &out
}

func cloneBlock(b *schema.SchedulingBlock) schema.SchedulingBlock {
	out := *b
	out.Constraint = cloneConstraint(b.Constraint)
	out.VisibilityPeriods = append([]schema.Period{}, b.VisibilityPeriods...)
	if b.ScheduledPeriod != nil {
		p := *b.ScheduledPeriod
		out.ScheduledPeriod = &p
	}
	return out
}

func cloneConstraint(c schema.Constraint) schema.Constraint {
	out := c
	if c.TimeWindow != nil {
		w := *c.TimeWindow
		out.TimeWindow = &w
	}
	if c.Altitude != nil {
		a := *c.Altitude
		out.Altitude = &a
	}
	if c.Azimuth != nil {
		a := *c.Azimuth
		out.Azimuth = &a
	}
	return out
}

// projectRows applies the column projection of a view.
func projectRows(rows []schema.AnalyticsBlockRow, view schema.AnalyticsView) []schema.AnalyticsBlockRow {
	cols := view.Columns()
	out := make([]schema.AnalyticsBlockRow, len(rows))
	for i := range rows {
		out[i] = rows[i].Project(cols)
	}
	return out
}
