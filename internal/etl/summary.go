package etl

import (
	"github.com/huangsam/skysched/internal/stats"
	"github.com/huangsam/skysched/schema"
)

// VisibilityLabel prefixes the labels of stored visibility bins.
const VisibilityLabel = "Visibility"

// BuildSummary computes the summary row and every bin from block rows. Rows are
// processed in block id order, so the result does not depend on how they were read.
func BuildSummary(scheduleID int64, rows []schema.AnalyticsBlockRow, visibilityBins, heatmapBins int) *schema.SummaryBundle {
	ordered := append([]schema.AnalyticsBlockRow(nil), rows...)
	sortRows(ordered)
	samples := stats.FromRows(ordered)

	m := stats.ComputeMetrics(samples)
	priorities := stats.Column(samples, stats.Priority)
	visibility := stats.Column(samples, stats.Visibility)
	requested := stats.Column(samples, stats.Requested)

	summary := schema.SummaryAnalytics{
		ScheduleID:        scheduleID,
		TotalBlocks:       m.TotalCount,
		ScheduledBlocks:   m.ScheduledCount,
		UnscheduledBlocks: m.TotalCount - m.ScheduledCount,
		ImpossibleBlocks:  m.ZeroVisibilityCount,
		SchedulingRate:    m.SchedulingRate,

		PriorityMin:    m.PriorityMin,
		PriorityMax:    m.PriorityMax,
		PriorityMean:   m.PriorityMean,
		PriorityMedian: stats.Median(priorities),

		VisibilityMinHours:  m.VisibilityMin,
		VisibilityMaxHours:  m.VisibilityMax,
		VisibilityMeanHours: m.VisibilityMean,

		RequestedMinHours:  m.RequestedMin,
		RequestedMaxHours:  m.RequestedMax,
		RequestedMeanHours: m.RequestedMean,

		CorrPriorityVisibility:  stats.Spearman(priorities, visibility),
		CorrPriorityRequested:   stats.Spearman(priorities, requested),
		CorrVisibilityRequested: stats.Spearman(visibility, requested),
		ConflictCount:           len(stats.FindConflicts(samples)),
	}

	var scheduledSum, unscheduledSum float64
	for _, s := range samples {
		summary.VisibilityTotalHours += s.VisibilityHours
		summary.RequestedTotalHours += s.RequestedHours
		if s.Scheduled {
			scheduledSum += s.Priority
			if s.ScheduledPeriod != nil {
				summary.ScheduledTotalHours += s.ScheduledPeriod.DurationHours()
			}
		} else {
			unscheduledSum += s.Priority
		}
	}
	if summary.ScheduledBlocks > 0 {
		summary.PriorityScheduledMean = scheduledSum / float64(summary.ScheduledBlocks)
	}
	if summary.UnscheduledBlocks > 0 {
		summary.PriorityUnscheduledMean = unscheduledSum / float64(summary.UnscheduledBlocks)
	}

	bundle := &schema.SummaryBundle{
		PriorityRates:  nonNil(stats.ComputeByPriority(samples)),
		VisibilityBins: nonNil(stats.ComputeByBins(samples, stats.Visibility, visibilityBins, VisibilityLabel)),
		HeatmapBins:    nonNil(stats.ComputeHeatmapBins(samples, stats.Visibility, stats.Requested, heatmapBins)),
	}
	summary.VisibilityBinCount = visibilityBins
	summary.HeatmapBinCount = heatmapBins
	bundle.Summary = summary
	return bundle
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
