// Package stats is the statistics and trends engine. Every function is pure: it reads
// a slice of samples and returns new values without touching shared state.
package stats

import (
	"math"
	"sort"

	"github.com/huangsam/skysched/schema"
)

// Sample is the per-block view the engine works on.
type Sample struct {
	ID              int64
	OriginalID      string
	Priority        float64
	VisibilityHours float64
	RequestedHours  float64
	Scheduled       bool
	ScheduledPeriod *schema.Period
}

// Feature extracts one numeric column from a sample.
type Feature func(Sample) float64

// Common features.
var (
	Priority   Feature = func(s Sample) float64 { return s.Priority }
	Visibility Feature = func(s Sample) float64 { return s.VisibilityHours }
	Requested  Feature = func(s Sample) float64 { return s.RequestedHours }
)

// FromRows converts analytics block rows into samples, keeping their order.
func FromRows(rows []schema.AnalyticsBlockRow) []Sample {
	samples := make([]Sample, len(rows))
	for i := range rows {
		r := &rows[i]
		s := Sample{
			ID:              r.BlockID,
			OriginalID:      r.OriginalBlockID,
			Priority:        r.Priority,
			VisibilityHours: r.TotalVisibilityHours,
			RequestedHours:  r.RequestedHours,
			Scheduled:       r.IsScheduled,
		}
		if p, ok := r.ScheduledPeriod(); ok {
			s.ScheduledPeriod = &p
		}
		samples[i] = s
	}
	return samples
}

// ComputeMetrics computes counts, rate and min/max/mean of priority, visibility and
// requested hours in one pass. An empty input yields zero values.
func ComputeMetrics(samples []Sample) schema.ScheduleMetrics {
	var m schema.ScheduleMetrics
	if len(samples) == 0 {
		return m
	}

	var sumPriority, sumVisibility, sumRequested float64
	for i, s := range samples {
		if s.Scheduled {
			m.ScheduledCount++
		}
		if s.VisibilityHours == 0 {
			m.ZeroVisibilityCount++
		}
		sumPriority += s.Priority
		sumVisibility += s.VisibilityHours
		sumRequested += s.RequestedHours

		if i == 0 {
			m.PriorityMin, m.PriorityMax = s.Priority, s.Priority
			m.VisibilityMin, m.VisibilityMax = s.VisibilityHours, s.VisibilityHours
			m.RequestedMin, m.RequestedMax = s.RequestedHours, s.RequestedHours
			continue
		}
		m.PriorityMin = math.Min(m.PriorityMin, s.Priority)
		m.PriorityMax = math.Max(m.PriorityMax, s.Priority)
		m.VisibilityMin = math.Min(m.VisibilityMin, s.VisibilityHours)
		m.VisibilityMax = math.Max(m.VisibilityMax, s.VisibilityHours)
		m.RequestedMin = math.Min(m.RequestedMin, s.RequestedHours)
		m.RequestedMax = math.Max(m.RequestedMax, s.RequestedHours)
	}

	n := float64(len(samples))
	m.TotalCount = len(samples)
	m.SchedulingRate = float64(m.ScheduledCount) / n
	m.PriorityMean = sumPriority / n
	m.VisibilityMean = sumVisibility / n
	m.RequestedMean = sumRequested / n
	return m
}

// ComputeByPriority groups samples by rounded integer priority, sorted ascending.
func ComputeByPriority(samples []Sample) []schema.PriorityRateBin {
	type acc struct {
		total, scheduled int
		visibility       float64
		requested        float64
	}
	groups := make(map[int]*acc)
	for _, s := range samples {
		key := int(math.Round(s.Priority))
		g, ok := groups[key]
		if !ok {
			g = &acc{}
			groups[key] = g
		}
		g.total++
		if s.Scheduled {
			g.scheduled++
		}
		g.visibility += s.VisibilityHours
		g.requested += s.RequestedHours
	}

	out := make([]schema.PriorityRateBin, 0, len(groups))
	for key, g := range groups {
		n := float64(g.total)
		out = append(out, schema.PriorityRateBin{
			PriorityValue:       key,
			TotalCount:          g.total,
			ScheduledCount:      g.scheduled,
			SchedulingRate:      float64(g.scheduled) / n,
			VisibilityMeanHours: g.visibility / n,
			RequestedMeanHours:  g.requested / n,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PriorityValue < out[j].PriorityValue
	})
	return out
}

// Median returns the median of values, 0 for an empty input.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// Column extracts a feature from every sample.
func Column(samples []Sample, get Feature) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = get(s)
	}
	return out
}

// finite reports whether v is neither NaN nor infinite.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
