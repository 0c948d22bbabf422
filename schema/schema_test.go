package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriod(t *testing.T) {
	p := Period{Start: 60000, Stop: 60000.5}
	assert.True(t, p.Valid())
	assert.InDelta(t, 12.0, p.DurationHours(), 1e-9)
	assert.False(t, Period{Start: 1, Stop: 1}.Valid())
}

func TestSchedulingBlock_VisibilitySummary(t *testing.T) {
	b := SchedulingBlock{
		VisibilityPeriods: []Period{{Start: 0, Stop: 1}, {Start: 2, Stop: 2.5}},
		ScheduledPeriod:   &Period{Start: 3, Stop: 2},
	}
	total, count := b.VisibilitySummary()
	assert.InDelta(t, 36.0, total, 1e-9)
	assert.Equal(t, 2, count)
	assert.False(t, b.IsScheduled(), "inverted scheduled period is not scheduled")
}

func TestConstraintKey(t *testing.T) {
	a := Constraint{Altitude: &AltitudeConstraint{MinDeg: 30, MaxDeg: 90}}
	b := Constraint{ID: 9, Altitude: &AltitudeConstraint{ID: 4, MinDeg: 30, MaxDeg: 90}}
	c := Constraint{Azimuth: &AzimuthConstraint{MinDeg: 30, MaxDeg: 90}}
	assert.Equal(t, a.Key(), b.Key(), "identity does not take part in the natural key")
	assert.NotEqual(t, a.Key(), c.Key())
	assert.Equal(t, ConstraintKey("w:|alt:30,90|az:"), a.Key())
}

func TestAnalyticsView_Columns(t *testing.T) {
	assert.Equal(t, BlockRowColumns, InsightsView.Columns())
	cols := TrendsView.Columns()
	assert.Equal(t, []string{ColScheduleID, ColBlockID, ColOriginalBlockID, ColPriority, ColTotalVisibilityHours, ColRequestedHours, ColIsScheduled}, cols)

	_, err := ParseAnalyticsView("nope")
	assert.Error(t, err)
	v, err := ParseAnalyticsView("timeline")
	require.NoError(t, err)
	assert.Equal(t, TimelineView, v)
}

func TestAnalyticsBlockRow_Project(t *testing.T) {
	row := AnalyticsBlockRow{
		ScheduleID:        1,
		BlockID:           2,
		OriginalBlockID:   "b-2",
		TargetName:        "M31",
		Priority:          7.5,
		PriorityBucket:    3,
		IsScheduled:       true,
		ScheduledStartMJD: FloatPtr(10),
		ScheduledStopMJD:  FloatPtr(11),
		RequestedHours:    2,
	}
	got := row.Project(SkyMapView.Columns())
	assert.Equal(t, "M31", got.TargetName)
	assert.Equal(t, 3, got.PriorityBucket)
	require.NotNil(t, got.ScheduledStartMJD)
	assert.Equal(t, 10.0, *got.ScheduledStartMJD)
	assert.Zero(t, got.RequestedHours, "requested hours are not part of the sky map view")

	*got.ScheduledStartMJD = 99
	assert.Equal(t, 10.0, *row.ScheduledStartMJD, "projection copies nullable fields")
}

func TestAnalyticsBlockRow_Values(t *testing.T) {
	row := AnalyticsBlockRow{ScheduleID: 1, MinAltitudeDeg: FloatPtr(20)}
	vals := row.Values()
	require.Len(t, vals, len(BlockRowColumns))
	assert.Equal(t, int64(1), vals[0])
	assert.Equal(t, 20.0, vals[10])
	assert.Nil(t, vals[11])
}
