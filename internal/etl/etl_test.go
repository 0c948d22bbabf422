package etl

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/repository"
	"github.com/huangsam/skysched/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSchedule(checksum string) *schema.Schedule {
	alt := &schema.AltitudeConstraint{MinDeg: 30, MaxDeg: 90}
	az := &schema.AzimuthConstraint{MinDeg: 0, MaxDeg: 360}
	m31 := schema.Target{Name: "M31", RADeg: 10.6847, DecDeg: 41.2689, Equinox: 2000}
	vega := schema.Target{Name: "Vega", RADeg: 279.2347, DecDeg: 38.7837, Equinox: 2000}
	return &schema.Schedule{
		Name:       "run-a",
		UploadedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Checksum:   checksum,
		Blocks: []schema.SchedulingBlock{
			{
				OriginalID: "1000001", Priority: 8.5, MinObservationSec: 1200, RequestedDurationSec: 3600,
				Target:            m31,
				Constraint:        schema.Constraint{Altitude: alt, Azimuth: az},
				VisibilityPeriods: []schema.Period{{Start: 61000.0, Stop: 61000.25}, {Start: 61001.0, Stop: 61001.125}},
				ScheduledPeriod:   &schema.Period{Start: 61000.10, Stop: 61000.15},
			},
			{
				OriginalID: "1000002", Priority: 3, RequestedDurationSec: 1800,
				Target:     m31,
				Constraint: schema.Constraint{Altitude: alt, Azimuth: az},
			},
			{
				OriginalID: "1000003", Priority: 5.25, MinObservationSec: 600, RequestedDurationSec: 7200,
				Target:            vega,
				Constraint:        schema.Constraint{TimeWindow: &schema.Period{Start: 61000, Stop: 61002}, Altitude: alt},
				VisibilityPeriods: []schema.Period{{Start: 61000.125, Stop: 61000.3125}},
				ScheduledPeriod:   &schema.Period{Start: 61000.12, Stop: 61000.20},
			},
		},
	}
}

func newSQLiteStore(t *testing.T) contract.Store {
	t.Helper()
	pool := contract.DefaultPoolConfig()
	pool.RetryDelay = time.Millisecond
	store, err := repository.NewSQLStore(context.Background(), schema.SQLiteBackend, ":memory:", pool)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func forEachStore(t *testing.T, fn func(t *testing.T, store contract.Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, repository.NewMemoryStore()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLiteStore(t)) })
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []schema.RefreshEvent
	err    error
}

func (p *recordingPublisher) PublishRefreshed(_ context.Context, event schema.RefreshEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func TestPriorityBucket(t *testing.T) {
	tests := []struct {
		name     string
		priority float64
		lo, hi   float64
		want     int
	}{
		{"minimum", 0, 0, 10, 1},
		{"just below first quartile", 2.49, 0, 10, 1},
		{"first quartile", 2.5, 0, 10, 2},
		{"middle", 5, 0, 10, 3},
		{"third quartile", 7.5, 0, 10, 4},
		{"maximum stays in top bucket", 10, 0, 10, 4},
		{"zero range", 7, 7, 7, 1},
		{"below range clamps", -1, 0, 10, 1},
		{"above range clamps", 11, 0, 10, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PriorityBucket(tt.priority, tt.lo, tt.hi))
		})
	}
}

func TestDenormalize_UniformQuartiles(t *testing.T) {
	s := &schema.Schedule{ID: 1}
	for i := 0; i < 100; i++ {
		s.Blocks = append(s.Blocks, schema.SchedulingBlock{ID: int64(i + 1), OriginalID: fmt.Sprint(i), Priority: float64(i)})
	}
	counts := map[int]int{}
	for _, row := range Denormalize(s) {
		counts[row.PriorityBucket]++
	}
	assert.Equal(t, map[int]int{1: 25, 2: 25, 3: 25, 4: 25}, counts)
}

func TestDenormalize_Fields(t *testing.T) {
	s := sampleSchedule("x")
	s.ID = 7
	for i := range s.Blocks {
		s.Blocks[i].ID = int64(30 - i) // reversed ids to check ordering
	}
	rows := Denormalize(s)
	require.Len(t, rows, 3)
	assert.Equal(t, []int64{28, 29, 30}, []int64{rows[0].BlockID, rows[1].BlockID, rows[2].BlockID})

	vega, unscheduled, m31 := rows[0], rows[1], rows[2]
	assert.Equal(t, int64(7), m31.ScheduleID)
	assert.Equal(t, "M31", m31.TargetName)
	assert.Equal(t, 4, m31.PriorityBucket)
	assert.InDelta(t, 9.0, m31.TotalVisibilityHours, 1e-9)
	assert.Equal(t, 2, m31.VisibilityPeriodCount)
	assert.True(t, m31.IsScheduled)
	require.NotNil(t, m31.ScheduledStartMJD)
	assert.Equal(t, 61000.10, *m31.ScheduledStartMJD)
	assert.Equal(t, 30.0, *m31.MinAltitudeDeg)
	assert.Equal(t, 360.0, *m31.MaxAzimuthDeg)
	assert.Nil(t, m31.ConstraintStartMJD)
	assert.InDelta(t, 1.0, m31.RequestedHours, 1e-12)

	assert.Equal(t, 1, unscheduled.PriorityBucket)
	assert.False(t, unscheduled.IsScheduled)
	assert.True(t, unscheduled.IsImpossible)
	assert.Nil(t, unscheduled.ScheduledStartMJD)

	assert.Equal(t, 2, vega.PriorityBucket)
	assert.Nil(t, vega.MinAzimuthDeg)
	require.NotNil(t, vega.ConstraintStopMJD)
	assert.Equal(t, 61002.0, *vega.ConstraintStopMJD)
	assert.InDelta(t, 4.5, vega.TotalVisibilityHours, 1e-9)
}

func TestDenormalize_SinglePriority(t *testing.T) {
	s := &schema.Schedule{Blocks: []schema.SchedulingBlock{{ID: 1, Priority: 4}, {ID: 2, Priority: 4}}}
	for _, row := range Denormalize(s) {
		assert.Equal(t, 1, row.PriorityBucket)
	}
	assert.Empty(t, Denormalize(&schema.Schedule{}))
}

func TestBuildSummary_Values(t *testing.T) {
	s := sampleSchedule("x")
	for i := range s.Blocks {
		s.Blocks[i].ID = int64(i + 1)
	}
	bundle := BuildSummary(3, Denormalize(s), 10, 15)
	sum := bundle.Summary

	assert.Equal(t, int64(3), sum.ScheduleID)
	assert.Equal(t, 3, sum.TotalBlocks)
	assert.Equal(t, 2, sum.ScheduledBlocks)
	assert.Equal(t, 1, sum.UnscheduledBlocks)
	assert.Equal(t, 1, sum.ImpossibleBlocks)
	assert.InDelta(t, 2.0/3.0, sum.SchedulingRate, 1e-12)
	assert.Equal(t, 3.0, sum.PriorityMin)
	assert.Equal(t, 8.5, sum.PriorityMax)
	assert.Equal(t, 5.25, sum.PriorityMedian)
	assert.InDelta(t, 6.875, sum.PriorityScheduledMean, 1e-12)
	assert.InDelta(t, 3.0, sum.PriorityUnscheduledMean, 1e-12)
	assert.InDelta(t, 13.5, sum.VisibilityTotalHours, 1e-9)
	assert.InDelta(t, 3.5, sum.RequestedTotalHours, 1e-12)
	assert.InDelta(t, (0.05+0.08)*24, sum.ScheduledTotalHours, 1e-6)
	assert.Equal(t, 1, sum.ConflictCount)

	require.Len(t, bundle.PriorityRates, 3)
	assert.Equal(t, []int{3, 5, 9}, []int{
		bundle.PriorityRates[0].PriorityValue,
		bundle.PriorityRates[1].PriorityValue,
		bundle.PriorityRates[2].PriorityValue,
	})
	assert.Equal(t, 10, sum.VisibilityBinCount)
	assert.Equal(t, 15, sum.HeatmapBinCount)
	assert.LessOrEqual(t, len(bundle.VisibilityBins), 10)

	total := 0
	for _, b := range bundle.VisibilityBins {
		total += b.TotalCount
	}
	assert.Equal(t, 3, total)
}

func TestBuildSummary_OrderIndependent(t *testing.T) {
	s := sampleSchedule("x")
	for i := range s.Blocks {
		s.Blocks[i].ID = int64(i + 1)
	}
	rows := Denormalize(s)
	reversed := []schema.AnalyticsBlockRow{rows[2], rows[1], rows[0]}
	assert.Equal(t, BuildSummary(1, rows, 10, 15), BuildSummary(1, reversed, 10, 15))
}

func TestBuildSummary_Empty(t *testing.T) {
	bundle := BuildSummary(1, nil, 10, 15)
	assert.Equal(t, 0, bundle.Summary.TotalBlocks)
	assert.NotNil(t, bundle.PriorityRates)
	assert.NotNil(t, bundle.VisibilityBins)
	assert.NotNil(t, bundle.HeatmapBins)
}

func TestRefresh_IsIdempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, store contract.Store) {
		ctx := context.Background()
		repo := NewRepository(store, DefaultOptions())
		id, _, err := repo.StoreSchedule(ctx, sampleSchedule("idem"))
		require.NoError(t, err)

		first, err := repo.Populator().Refresh(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 3, first.BlockRows)
		assert.NotEmpty(t, first.RunID)

		rows1, err := repo.FetchAnalyticsBlocks(ctx, id, schema.InsightsView)
		require.NoError(t, err)
		sum1, err := repo.FetchScheduleSummary(ctx, id)
		require.NoError(t, err)
		bins1, err := repo.FetchVisibilityBins(ctx, id)
		require.NoError(t, err)

		second, err := repo.Populator().Refresh(ctx, id)
		require.NoError(t, err)
		assert.NotEqual(t, first.RunID, second.RunID)

		rows2, err := repo.FetchAnalyticsBlocks(ctx, id, schema.InsightsView)
		require.NoError(t, err)
		sum2, err := repo.FetchScheduleSummary(ctx, id)
		require.NoError(t, err)
		bins2, err := repo.FetchVisibilityBins(ctx, id)
		require.NoError(t, err)

		assert.Equal(t, rows1, rows2)
		assert.Equal(t, sum1, sum2)
		assert.Equal(t, bins1, bins2)
		require.NotNil(t, sum2)
		assert.Equal(t, 3, sum2.TotalBlocks)
	})
}

func TestRefresh_DuplicateUploadKeepsOneCopy(t *testing.T) {
	forEachStore(t, func(t *testing.T, store contract.Store) {
		ctx := context.Background()
		repo := NewRepository(store, DefaultOptions())
		id1, _, err := repo.StoreSchedule(ctx, sampleSchedule("dup"))
		require.NoError(t, err)
		id2, _, err := repo.StoreSchedule(ctx, sampleSchedule("dup"))
		require.NoError(t, err)
		assert.Equal(t, id1, id2)

		n, err := repo.PopulateBlockAnalytics(ctx, id1)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		list, err := repo.ListSchedules(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestPopulateSummaryAnalytics(t *testing.T) {
	forEachStore(t, func(t *testing.T, store contract.Store) {
		ctx := context.Background()
		repo := NewRepository(store, DefaultOptions())
		id, _, err := repo.StoreSchedule(ctx, sampleSchedule("summary"))
		require.NoError(t, err)

		// Without the block tier the rows are derived on the fly and not written.
		require.NoError(t, repo.PopulateSummaryAnalytics(ctx, id, 4))
		sum, err := repo.FetchScheduleSummary(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, sum)
		assert.Equal(t, 3, sum.TotalBlocks)
		assert.Equal(t, 4, sum.VisibilityBinCount)
		rows, err := repo.FetchAnalyticsBlocks(ctx, id, schema.SkyMapView)
		require.NoError(t, err)
		assert.Empty(t, rows)

		// The block phase clears every tier.
		_, err = repo.PopulateBlockAnalytics(ctx, id)
		require.NoError(t, err)
		sum, err = repo.FetchScheduleSummary(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, sum)

		require.NoError(t, repo.PopulateSummaryAnalytics(ctx, id, 0))
		sum, err = repo.FetchScheduleSummary(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, sum)
		assert.Equal(t, 1, sum.ConflictCount)
	})
}

// failingAnalytics rejects the combined analytics write and records any split writes.
type failingAnalytics struct {
	contract.Store
	err        error
	splitCalls int
}

func (f *failingAnalytics) ReplaceAnalytics(context.Context, int64, []schema.AnalyticsBlockRow, *schema.SummaryBundle) (int, error) {
	return 0, f.err
}

func (f *failingAnalytics) ReplaceBlockAnalytics(ctx context.Context, id int64, rows []schema.AnalyticsBlockRow) (int, error) {
	f.splitCalls++
	return f.Store.ReplaceBlockAnalytics(ctx, id, rows)
}

func (f *failingAnalytics) ReplaceSummaryAnalytics(ctx context.Context, id int64, bundle *schema.SummaryBundle) error {
	f.splitCalls++
	return f.Store.ReplaceSummaryAnalytics(ctx, id, bundle)
}

func TestRefresh_FailureKeepsPreviousAnalytics(t *testing.T) {
	forEachStore(t, func(t *testing.T, store contract.Store) {
		ctx := context.Background()
		id, _, err := store.StoreSchedule(ctx, sampleSchedule("keep"))
		require.NoError(t, err)
		_, err = NewPopulator(store, DefaultOptions()).Refresh(ctx, id)
		require.NoError(t, err)
		rows, err := store.FetchAnalyticsBlocks(ctx, id, schema.InsightsView)
		require.NoError(t, err)
		summary, err := store.FetchScheduleSummary(ctx, id)
		require.NoError(t, err)

		failing := &failingAnalytics{Store: store, err: fmt.Errorf("disk full")}
		pub := &recordingPublisher{}
		opts := DefaultOptions()
		opts.Publisher = pub
		_, err = NewPopulator(failing, opts).Refresh(ctx, id)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		assert.Zero(t, failing.splitCalls, "refresh writes every tier in one call")
		assert.Empty(t, pub.events)

		after, err := store.FetchAnalyticsBlocks(ctx, id, schema.InsightsView)
		require.NoError(t, err)
		assert.Equal(t, rows, after)
		afterSummary, err := store.FetchScheduleSummary(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, summary, afterSummary)
	})
}

func TestRefresh_NotFound(t *testing.T) {
	p := NewPopulator(repository.NewMemoryStore(), Options{})
	_, err := p.Refresh(context.Background(), 404)
	assert.ErrorIs(t, err, contract.ErrNotFound)
}

func TestRefresh_Publishes(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	pub := &recordingPublisher{err: fmt.Errorf("broker down")}
	opts := DefaultOptions()
	opts.Publisher = pub
	p := NewPopulator(store, opts)

	id, _, err := store.StoreSchedule(ctx, sampleSchedule("pub"))
	require.NoError(t, err)

	// A publish failure does not fail the refresh.
	event, err := p.Refresh(ctx, id)
	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	assert.Equal(t, event, pub.events[0])
	assert.Equal(t, id, event.ScheduleID)
}

func TestRefreshAll_Concurrent(t *testing.T) {
	forEachStore(t, func(t *testing.T, store contract.Store) {
		ctx := context.Background()
		opts := DefaultOptions()
		opts.Workers = 3
		p := NewPopulator(store, opts)

		var ids []int64
		for i := 0; i < 4; i++ {
			id, _, err := store.StoreSchedule(ctx, sampleSchedule(fmt.Sprintf("all-%d", i)))
			require.NoError(t, err)
			ids = append(ids, id)
		}
		// Repeat one schedule so refreshes of the same id contend for its lock.
		ids = append(ids, ids[0], ids[0])

		events, err := p.RefreshAll(ctx, ids)
		require.NoError(t, err)
		require.Len(t, events, len(ids))
		for i, event := range events {
			assert.Equal(t, ids[i], event.ScheduleID)
			assert.Equal(t, 3, event.BlockRows)
		}
		for _, id := range ids {
			rows, err := store.FetchAnalyticsBlocks(ctx, id, schema.TimelineView)
			require.NoError(t, err)
			assert.Len(t, rows, 3)
		}
	})
}

func TestRefreshAll_StopsOnError(t *testing.T) {
	store := repository.NewMemoryStore()
	p := NewPopulator(store, DefaultOptions())
	_, err := p.RefreshAll(context.Background(), []int64{99})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule 99")
	assert.ErrorIs(t, err, contract.ErrNotFound)
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	ctx := context.Background()

	unlock, err := k.lock(ctx, 1)
	require.NoError(t, err)

	// Other keys are independent.
	unlockOther, err := k.lock(ctx, 2)
	require.NoError(t, err)
	unlockOther()

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = k.lock(waitCtx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock, err = k.lock(ctx, 1)
	require.NoError(t, err)
	unlock()

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.locks)
}
