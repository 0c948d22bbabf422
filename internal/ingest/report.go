package ingest

import (
	"fmt"

	"github.com/huangsam/skysched/schema"
)

const (
	// minVisibleHours is the visibility below which a block can never be observed.
	minVisibleHours = 0.001
	// narrowElevationDeg flags elevation ranges that leave little room to schedule.
	narrowElevationDeg = 5.0
	// scheduledOverrun tolerates scheduler rounding when comparing with the request.
	scheduledOverrun = 1.01
	// windowEpsilonDays is the slack when checking a scheduled period against its window.
	windowEpsilonDays = 0.0001
)

// ValidateSchedule inspects a stored schedule and reports per-block issues that do not
// block ingestion: impossible blocks, suspicious priorities and constraints, and
// scheduled periods that disagree with their request. Blocks with no issue get one
// "valid" result. Block ids must already be assigned.
func ValidateSchedule(s *schema.Schedule) []schema.ValidationResult {
	var out []schema.ValidationResult
	for i := range s.Blocks {
		out = append(out, validateBlock(s.ID, &s.Blocks[i])...)
	}
	return out
}

func validateBlock(scheduleID int64, b *schema.SchedulingBlock) []schema.ValidationResult {
	var out []schema.ValidationResult
	issue := func(status schema.ValidationStatus, category schema.ValidationCategory, crit schema.Criticality,
		issueType, field, current, expected, description string) {
		out = append(out, schema.ValidationResult{
			ScheduleID:    scheduleID,
			BlockID:       b.ID,
			Status:        status,
			IssueType:     issueType,
			Category:      category,
			Criticality:   crit,
			FieldName:     field,
			CurrentValue:  current,
			ExpectedValue: expected,
			Description:   description,
		})
	}

	visible, _ := b.VisibilitySummary()
	requested := b.RequestedHours()
	minObs := b.MinObservationHours()

	// Visibility
	if visible < minVisibleHours {
		issue(schema.StatusImpossible, schema.CategoryVisibility, schema.CriticalityCritical,
			"No visibility periods available", "total_visibility_hours",
			fmt.Sprintf("%.6f", visible), "> 0",
			"The block has no time window in which its target is visible")
	} else {
		if visible < requested {
			issue(schema.StatusImpossible, schema.CategoryVisibility, schema.CriticalityCritical,
				"Visibility less than requested duration", "total_visibility_hours",
				fmt.Sprintf("%.2f", visible), fmt.Sprintf(">= %.2f", requested),
				fmt.Sprintf("Needs %.2fh but only %.2fh available", requested, visible))
		}
		if visible < minObs {
			issue(schema.StatusImpossible, schema.CategoryVisibility, schema.CriticalityCritical,
				"Visibility less than minimum observation time", "total_visibility_hours",
				fmt.Sprintf("%.2f", visible), fmt.Sprintf(">= %.2f", minObs),
				fmt.Sprintf("Minimum %.2fh required but only %.2fh available", minObs, visible))
		}
	}

	// Priority
	if b.Priority < 0 {
		issue(schema.StatusError, schema.CategoryPriority, schema.CriticalityHigh,
			"Negative priority", "priority",
			fmt.Sprintf("%.2f", b.Priority), ">= 0",
			"Priority values must be non-negative")
	}

	// Constraints
	if alt := b.Constraint.Altitude; alt != nil {
		span := alt.MaxDeg - alt.MinDeg
		switch {
		case span > 180:
			issue(schema.StatusError, schema.CategoryConstraint, schema.CriticalityMedium,
				"Physically impossible elevation range", "elevation_range",
				fmt.Sprintf("%.1f", span), "0-180",
				fmt.Sprintf("Elevation range %.1f° is physically impossible", span))
		case span > 0 && span < narrowElevationDeg:
			issue(schema.StatusWarning, schema.CategoryConstraint, schema.CriticalityMedium,
				"Very narrow elevation range", "elevation_range",
				fmt.Sprintf("%.1f", span), "",
				fmt.Sprintf("Elevation range of %.1f° may make scheduling difficult", span))
		}
	}
	if w := b.Constraint.TimeWindow; w != nil {
		windowHours := w.DurationHours()
		if windowHours+minVisibleHours < requested {
			issue(schema.StatusError, schema.CategoryConstraint, schema.CriticalityHigh,
				"Time constraint duration less than requested duration", "constraint_duration",
				fmt.Sprintf("%.2fh", windowHours), fmt.Sprintf(">= %.2fh", requested),
				fmt.Sprintf("Time constraint allows %.2fh but %.2fh requested", windowHours, requested))
		}
	}

	// Scheduled period
	if sp := b.ScheduledPeriod; sp != nil && sp.Valid() {
		scheduledHours := sp.DurationHours()
		if scheduledHours > requested*scheduledOverrun {
			issue(schema.StatusWarning, schema.CategoryScheduledPeriod, schema.CriticalityLow,
				"Scheduled duration exceeds requested duration", "scheduled_duration",
				fmt.Sprintf("%.2fh", scheduledHours), "",
				fmt.Sprintf("Scheduled for %.2fh but only %.2fh requested", scheduledHours, requested))
		}
		if w := b.Constraint.TimeWindow; w != nil &&
			(sp.Start < w.Start-windowEpsilonDays || sp.Stop > w.Stop+windowEpsilonDays) {
			issue(schema.StatusError, schema.CategoryScheduledPeriod, schema.CriticalityHigh,
				"Scheduled period outside time constraint", "scheduled_period",
				fmt.Sprintf("[%.2f, %.2f]", sp.Start, sp.Stop), fmt.Sprintf("[%.2f, %.2f]", w.Start, w.Stop),
				fmt.Sprintf("Scheduled [%.2f, %.2f] MJD is outside constraint [%.2f, %.2f] MJD", sp.Start, sp.Stop, w.Start, w.Stop))
		}
	}

	if len(out) == 0 {
		out = append(out, schema.ValidationResult{
			ScheduleID: scheduleID,
			BlockID:    b.ID,
			Status:     schema.StatusValid,
		})
	}
	return out
}

// CountByStatus tallies validation results per status.
func CountByStatus(results []schema.ValidationResult) map[schema.ValidationStatus]int {
	counts := make(map[schema.ValidationStatus]int)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}
