package stats

import (
	"context"
	"math"
	"testing"

	"github.com/huangsam/skysched/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exampleSamples is the four-block schedule: priorities 1..4, visibility 0/5/10/15,
// priorities 2 and 4 scheduled.
func exampleSamples() []Sample {
	return []Sample{
		{ID: 1, Priority: 1, VisibilityHours: 0, RequestedHours: 1},
		{ID: 2, Priority: 2, VisibilityHours: 5, RequestedHours: 2, Scheduled: true},
		{ID: 3, Priority: 3, VisibilityHours: 10, RequestedHours: 3},
		{ID: 4, Priority: 4, VisibilityHours: 15, RequestedHours: 4, Scheduled: true},
	}
}

func TestComputeMetrics_Example(t *testing.T) {
	m := ComputeMetrics(exampleSamples())
	assert.Equal(t, 4, m.TotalCount)
	assert.Equal(t, 2, m.ScheduledCount)
	assert.Equal(t, 0.5, m.SchedulingRate)
	assert.Equal(t, 1, m.ZeroVisibilityCount)
	assert.Equal(t, 1.0, m.PriorityMin)
	assert.Equal(t, 4.0, m.PriorityMax)
	assert.Equal(t, 2.5, m.PriorityMean)
	assert.Equal(t, 0.0, m.VisibilityMin)
	assert.Equal(t, 15.0, m.VisibilityMax)
	assert.Equal(t, 7.5, m.VisibilityMean)
	assert.Equal(t, 2.5, m.RequestedMean)
}

func TestComputeMetrics_Empty(t *testing.T) {
	assert.Equal(t, schema.ScheduleMetrics{}, ComputeMetrics(nil))
}

func TestComputeByBins_Example(t *testing.T) {
	bins := ComputeByBins(exampleSamples(), Visibility, 3, "")
	require.Len(t, bins, 3)

	assert.Equal(t, []int{1, 1, 2}, []int{bins[0].TotalCount, bins[1].TotalCount, bins[2].TotalCount})
	assert.Equal(t, 0.0, bins[0].MinValue)
	assert.Equal(t, 5.0, bins[0].MaxValue)
	assert.Equal(t, 2.5, bins[0].MidValue)
	assert.Equal(t, "[0.0, 5.0)", bins[0].Label)
	assert.Equal(t, "[10.0, 15.0]", bins[2].Label)
	assert.Equal(t, 15.0, bins[2].MaxValue)
	assert.Equal(t, 0.5, bins[2].SchedulingRate)
	assert.Equal(t, 1.0, bins[1].SchedulingRate)
}

func TestComputeByBins_Coverage(t *testing.T) {
	samples := make([]Sample, 0, 101)
	for i := 0; i <= 100; i++ {
		samples = append(samples, Sample{VisibilityHours: math.Sqrt(float64(i)) * 3.3, Scheduled: i%3 == 0})
	}
	samples = append(samples, Sample{VisibilityHours: math.NaN()})

	for _, n := range []int{1, 2, 7, 10, 33} {
		bins := ComputeByBins(samples, Visibility, n, "Visibility")
		total := 0
		for _, b := range bins {
			assert.Positive(t, b.TotalCount, "empty bins are omitted")
			total += b.TotalCount
		}
		assert.Equal(t, 101, total, "n_bins=%d", n)
	}
}

func TestComputeByBins_ZeroRange(t *testing.T) {
	samples := []Sample{{Priority: 3, Scheduled: true}, {Priority: 3}}
	bins := ComputeByBins(samples, Priority, 10, "Priority")
	require.Len(t, bins, 1)
	assert.Equal(t, 2, bins[0].TotalCount)
	assert.Equal(t, "Priority [3.0]", bins[0].Label)
	assert.Equal(t, 0.5, bins[0].SchedulingRate)
}

func TestComputeByBins_Empty(t *testing.T) {
	assert.Nil(t, ComputeByBins(nil, Visibility, 10, ""))
}

func TestComputeByPriority(t *testing.T) {
	samples := []Sample{
		{Priority: 2.4, VisibilityHours: 2, Scheduled: true},
		{Priority: 1.6, VisibilityHours: 4},
		{Priority: 0.9, VisibilityHours: 6, RequestedHours: 1},
	}
	got := ComputeByPriority(samples)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].PriorityValue)
	assert.Equal(t, 1, got[0].TotalCount)
	assert.Equal(t, 0.0, got[0].SchedulingRate)
	assert.Equal(t, 2, got[1].PriorityValue)
	assert.Equal(t, 2, got[1].TotalCount)
	assert.Equal(t, 0.5, got[1].SchedulingRate)
	assert.Equal(t, 3.0, got[1].VisibilityMeanHours)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
}

func TestComputeHeatmapBins(t *testing.T) {
	samples := exampleSamples()
	cells := ComputeHeatmapBins(samples, Visibility, Requested, 2)
	total := 0
	for _, c := range cells {
		total += c.TotalCount
	}
	assert.Equal(t, len(samples), total)
	require.Len(t, cells, 2)
	assert.Equal(t, 0, cells[0].XIndex)
	assert.Equal(t, 0, cells[0].YIndex)
	assert.Equal(t, 2.5, cells[0].XMean)
	assert.Equal(t, 1.5, cells[0].YMean)
	assert.Equal(t, 0.5, cells[0].SchedulingRate)
	assert.Equal(t, 1, cells[1].XIndex)
	assert.Equal(t, 1, cells[1].YIndex)
}

func TestComputeHeatmapBins_ZeroRangeAxis(t *testing.T) {
	samples := []Sample{{VisibilityHours: 1, RequestedHours: 2}, {VisibilityHours: 3, RequestedHours: 2}}
	cells := ComputeHeatmapBins(samples, Visibility, Requested, 15)
	require.Len(t, cells, 2)
	assert.Equal(t, 0, cells[0].YIndex)
	assert.Equal(t, 0, cells[1].YIndex)
}

func TestComputeSmoothedTrend_WideBandwidthIsGlobalRate(t *testing.T) {
	samples := exampleSamples()
	points := ComputeSmoothedTrend(samples, Visibility, 1e9, 7)
	require.Len(t, points, 7)
	assert.Equal(t, 0.0, points[0].X)
	assert.Equal(t, 15.0, points[6].X)
	for _, p := range points {
		assert.InDelta(t, 0.5, p.Rate, 1e-9)
		assert.Equal(t, 4, p.Samples)
	}
}

func TestComputeSmoothedTrend_NarrowBandwidthIsNearestNeighbour(t *testing.T) {
	samples := exampleSamples()
	// evaluation points: 0, 3.75, 7.5, 11.25, 15
	points := ComputeSmoothedTrend(samples, Visibility, 1e-6, 5)
	require.Len(t, points, 5)
	assert.Equal(t, 0.0, points[0].Rate)  // nearest: 0 (unscheduled)
	assert.Equal(t, 1.0, points[1].Rate)  // nearest: 5 (scheduled)
	assert.Equal(t, 0.5, points[2].Rate)  // 5 and 10 tie
	assert.Equal(t, 0.0, points[3].Rate)  // nearest: 10 (unscheduled)
	assert.Equal(t, 1.0, points[4].Rate)  // nearest: 15 (scheduled)
	assert.Equal(t, 1, points[0].Samples) // only the exact hit has weight above 0.01
	assert.Equal(t, 0, points[1].Samples)

	zero := ComputeSmoothedTrend(samples, Visibility, 0, 5)
	for i := range zero {
		assert.Equal(t, points[i].Rate, zero[i].Rate)
	}
}

func TestComputeSmoothedTrend_Degenerate(t *testing.T) {
	assert.Nil(t, ComputeSmoothedTrend(nil, Visibility, 1, 10))
	assert.Nil(t, ComputeSmoothedTrend(exampleSamples(), Visibility, 1, 0))

	same := []Sample{{VisibilityHours: 2, Scheduled: true}, {VisibilityHours: 2}}
	points := ComputeSmoothedTrend(same, Visibility, 1, 10)
	require.Len(t, points, 1)
	assert.Equal(t, 2.0, points[0].X)
	assert.Equal(t, 0.5, points[0].Rate)
}

func TestAutoBandwidth(t *testing.T) {
	assert.Equal(t, 1.5, AutoBandwidth(exampleSamples(), Visibility))
	assert.Equal(t, 1.0, AutoBandwidth(nil, Visibility))
}

func TestFindConflicts(t *testing.T) {
	t.Run("overlapping", func(t *testing.T) {
		samples := []Sample{
			{ID: 2, Scheduled: true, ScheduledPeriod: &schema.Period{Start: 5, Stop: 15}},
			{ID: 1, Scheduled: true, ScheduledPeriod: &schema.Period{Start: 0, Stop: 10}},
		}
		conflicts := FindConflicts(samples)
		require.Len(t, conflicts, 1)
		assert.Equal(t, int64(1), conflicts[0].BlockA)
		assert.Equal(t, int64(2), conflicts[0].BlockB)
		assert.Equal(t, 5.0, conflicts[0].Overlap)
		assert.Equal(t, 120.0, conflicts[0].OverlapHours)
	})

	t.Run("disjoint", func(t *testing.T) {
		samples := []Sample{
			{ID: 1, Scheduled: true, ScheduledPeriod: &schema.Period{Start: 0, Stop: 10}},
			{ID: 2, Scheduled: true, ScheduledPeriod: &schema.Period{Start: 20, Stop: 30}},
		}
		assert.Empty(t, FindConflicts(samples))
	})

	t.Run("touching and unscheduled", func(t *testing.T) {
		samples := []Sample{
			{ID: 1, Scheduled: true, ScheduledPeriod: &schema.Period{Start: 0, Stop: 10}},
			{ID: 2, Scheduled: true, ScheduledPeriod: &schema.Period{Start: 10, Stop: 12}},
			{ID: 3, Scheduled: false, ScheduledPeriod: &schema.Period{Start: 1, Stop: 2}},
		}
		assert.Empty(t, FindConflicts(samples))
	})

	t.Run("nested", func(t *testing.T) {
		samples := []Sample{
			{ID: 1, Scheduled: true, ScheduledPeriod: &schema.Period{Start: 0, Stop: 10}},
			{ID: 2, Scheduled: true, ScheduledPeriod: &schema.Period{Start: 2, Stop: 3}},
			{ID: 3, Scheduled: true, ScheduledPeriod: &schema.Period{Start: 4, Stop: 12}},
		}
		conflicts := FindConflicts(samples)
		require.Len(t, conflicts, 2)
		assert.Equal(t, 1.0, conflicts[0].Overlap)
		assert.Equal(t, 6.0, conflicts[1].Overlap)
	})
}

func TestSpearman(t *testing.T) {
	assert.InDelta(t, 1.0, Spearman([]float64{1, 2, 3, 4}, []float64{10, 20, 30, 40}), 1e-12)
	assert.InDelta(t, -1.0, Spearman([]float64{1, 2, 3, 4}, []float64{9, 4, 1, 0}), 1e-12)
	assert.InDelta(t, 1.0, Spearman([]float64{1, 2, 3}, []float64{1, 8, 27}), 1e-12, "monotone but not linear")
	assert.Equal(t, 0.0, Spearman([]float64{1}, []float64{1}))
	assert.Equal(t, 0.0, Spearman([]float64{1, 2}, []float64{5, 5}))
	assert.Equal(t, 0.0, Spearman([]float64{1, 2}, []float64{1}))
}

func TestAverageRanks_Ties(t *testing.T) {
	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, averageRanks([]float64{1, 2, 2, 3}))
	assert.Equal(t, []float64{2, 2, 2}, averageRanks([]float64{7, 7, 7}))
}

func TestComputeTrends(t *testing.T) {
	samples := exampleSamples()
	trends, err := ComputeTrends(context.Background(), samples, TrendOptions{Bins: 3, Points: 4})
	require.NoError(t, err)
	assert.Equal(t, ComputeMetrics(samples), trends.Metrics)
	assert.Equal(t, ComputeByPriority(samples), trends.ByPriority)
	assert.Equal(t, ComputeByBins(samples, Visibility, 3, "Visibility"), trends.ByVisibility)
	assert.Len(t, trends.SmoothedVisibility, 4)
	assert.Len(t, trends.SmoothedRequested, 4)
}

func TestFromRows(t *testing.T) {
	rows := []schema.AnalyticsBlockRow{{
		BlockID:              5,
		OriginalBlockID:      "b5",
		Priority:             3,
		TotalVisibilityHours: 4,
		RequestedHours:       1,
		IsScheduled:          true,
		ScheduledStartMJD:    schema.FloatPtr(1),
		ScheduledStopMJD:     schema.FloatPtr(2),
	}}
	samples := FromRows(rows)
	require.Len(t, samples, 1)
	assert.Equal(t, int64(5), samples[0].ID)
	require.NotNil(t, samples[0].ScheduledPeriod)
	assert.Equal(t, schema.Period{Start: 1, Stop: 2}, *samples[0].ScheduledPeriod)
}
