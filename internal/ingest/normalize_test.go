package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/schema"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func fixtureInput(t *testing.T) Input {
	return Input{
		Name:            "fixture",
		Schedule:        readFixture(t, "schedule.json"),
		PossiblePeriods: readFixture(t, "possible_periods.json"),
		DarkPeriods:     readFixture(t, "dark_periods.json"),
		UploadedAt:      time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestNormalize_Fixture(t *testing.T) {
	s, err := Normalize(fixtureInput(t))
	require.NoError(t, err)

	assert.Equal(t, "fixture", s.Name)
	assert.Len(t, s.Checksum, 64)
	assert.Len(t, s.DarkPeriods, 3)
	require.Len(t, s.Blocks, 3)

	b1 := s.Blocks[0]
	assert.Equal(t, "1000001", b1.OriginalID)
	assert.Equal(t, 8.5, b1.Priority)
	assert.Equal(t, 1200.0, b1.MinObservationSec)
	assert.Equal(t, 3600.0, b1.RequestedDurationSec)
	assert.Equal(t, "M31", b1.Target.Name)
	assert.Equal(t, 2000.0, b1.Target.Equinox)
	require.NotNil(t, b1.Constraint.Altitude)
	assert.Equal(t, 30.0, b1.Constraint.Altitude.MinDeg)
	assert.Nil(t, b1.Constraint.TimeWindow)
	assert.True(t, b1.IsScheduled())
	assert.Len(t, b1.VisibilityPeriods, 2)
	hours, count := b1.VisibilitySummary()
	assert.InDelta(t, 9.0, hours, 1e-9)
	assert.Equal(t, 2, count)

	b2 := s.Blocks[1]
	assert.Equal(t, "1000002", b2.OriginalID, "string ids are kept as-is")
	assert.Zero(t, b2.MinObservationSec, "missing min observation time defaults to zero")
	require.NotNil(t, b2.Constraint.TimeWindow)
	assert.Equal(t, schema.Period{Start: 61000, Stop: 61002}, *b2.Constraint.TimeWindow)
	assert.False(t, b2.IsScheduled())
	assert.Empty(t, b2.VisibilityPeriods)
}

func TestNormalize_Summarize(t *testing.T) {
	s, err := Normalize(fixtureInput(t))
	require.NoError(t, err)

	sum := Summarize(s)
	assert.Equal(t, Summary{
		Blocks:            3,
		ScheduledBlocks:   2,
		UniqueTargets:     2,
		UniqueConstraints: 2,
		UniqueAltitudes:   1,
		UniqueAzimuths:    1,
		VisibilityPeriods: 3,
		DarkPeriods:       3,
	}, sum)
}

func TestNormalize_ChecksumIsContentAddressed(t *testing.T) {
	in := fixtureInput(t)
	a, err := Normalize(in)
	require.NoError(t, err)

	in.Name = "renamed"
	b, err := Normalize(in)
	require.NoError(t, err)
	assert.Equal(t, a.Checksum, b.Checksum)

	in.PossiblePeriods = nil
	c, err := Normalize(in)
	require.NoError(t, err)
	assert.NotEqual(t, a.Checksum, c.Checksum)
	assert.Equal(t, Checksum(in.Schedule), Checksum(in.Schedule, nil, nil))
}

func TestNormalize_CollectsEveryViolation(t *testing.T) {
	payload := `{"SchedulingBlock": [
		{"schedulingBlockId": 1, "priority": 1,
		 "target": {"position_": {"coord": {"celestial": {"raInDeg": 360.0, "decInDeg": -91}}}},
		 "schedulingBlockConfiguration_": {"constraints_": {
			"timeConstraint_": {"minObservationTimeInSec": 100, "requestedDurationSec": 50, "fixedStartTime": [{"value": 5}], "fixedStopTime": [{"value": 4}]},
			"elevationConstraint_": {"minElevationAngleInDeg": 80, "maxElevationAngleInDeg": 10},
			"azimuthConstraint_": {"minAzimuthAngleInDeg": 200, "maxAzimuthAngleInDeg": 100}}},
		 "scheduled_period": {"startTime": {"value": 10}, "stopTime": {"value": 10}}},
		{"schedulingBlockId": 1,
		 "target": {"position_": {"coord": {"celestial": {"raInDeg": 1, "decInDeg": 1}}}},
		 "schedulingBlockConfiguration_": {"constraints_": {"timeConstraint_": {"requestedDurationSec": -1}}}}
	]}`
	possible := `{"SchedulingBlock": {"1": [{"startTime": {"value": 3}, "stopTime": {"value": 2}}]}}`

	_, err := Normalize(Input{Name: "bad", Schedule: []byte(payload), PossiblePeriods: []byte(possible)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, contract.ErrValidation))

	var verr *contract.ValidationError
	require.True(t, errors.As(err, &verr))

	fields := make([]string, 0, len(verr.Violations))
	for _, v := range verr.Violations {
		fields = append(fields, v.Field)
	}
	joined := strings.Join(fields, " ")
	for _, want := range []string{
		"target.position_.coord.celestial.raInDeg",
		"target.position_.coord.celestial.decInDeg",
		"minObservationTimeInSec",
		"elevationConstraint_",
		"azimuthConstraint_",
		"timeConstraint_.fixedTime",
		"scheduled_period",
		"possiblePeriods[0]",
		"priority",
		"schedulingBlockConfiguration_.constraints_.timeConstraint_.requestedDurationSec",
		"schedulingBlockId",
	} {
		assert.Contains(t, joined, want)
	}
	assert.GreaterOrEqual(t, len(verr.Violations), 11)
}

func TestNormalize_BadPayloads(t *testing.T) {
	tests := []struct {
		name  string
		input Input
	}{
		{"syntax", Input{Name: "x", Schedule: []byte(`{"SchedulingBlock": [`)}},
		{"missing key", Input{Name: "x", Schedule: []byte(`{"Blocks": []}`)}},
		{"missing name", Input{Schedule: []byte(`{"SchedulingBlock": []}`)}},
		{"bad dark periods", Input{Name: "x", Schedule: []byte(`{"SchedulingBlock": []}`), DarkPeriods: []byte(`{"x": 1}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.input)
			assert.ErrorIs(t, err, contract.ErrValidation)
		})
	}
}

func TestNormalize_EmptySchedule(t *testing.T) {
	s, err := Normalize(Input{Name: "empty", Schedule: []byte(`{"SchedulingBlock": []}`)})
	require.NoError(t, err)
	assert.Empty(t, s.Blocks)
	assert.False(t, s.UploadedAt.IsZero())
}

func TestKeyCache_GetOrCreate(t *testing.T) {
	c := NewKeyCache[schema.AngleKey]()
	c.Put(schema.AngleKey{Min: 0, Max: 360}, 7)

	calls := 0
	create := func(_ context.Context) (int64, error) {
		calls++
		return int64(100 + calls), nil
	}

	id, err := c.GetOrCreate(t.Context(), schema.AngleKey{Min: 0, Max: 360}, create)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	id, err = c.GetOrCreate(t.Context(), schema.AngleKey{Min: 10, Max: 20}, create)
	require.NoError(t, err)
	assert.Equal(t, int64(101), id)

	id, err = c.GetOrCreate(t.Context(), schema.AngleKey{Min: 10, Max: 20}, create)
	require.NoError(t, err)
	assert.Equal(t, int64(101), id)

	assert.Equal(t, 1, calls)
	hits, misses := c.Stats()
	assert.Equal(t, 2, hits)
	assert.Equal(t, 1, misses)
	assert.Equal(t, 2, c.Len())
}

func TestKeyCache_CreateError(t *testing.T) {
	c := NewKeyCache[string]()
	boom := errors.New("boom")
	_, err := c.GetOrCreate(t.Context(), "k", func(context.Context) (int64, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get("k")
	assert.False(t, ok)
}
