package core

import (
	"context"
	"errors"
	"testing"

	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/metrics"
	"github.com/huangsam/skysched/internal/repository"
	"github.com/huangsam/skysched/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// answers collects every query shape for one schedule.
type answers struct {
	metrics    schema.ScheduleMetrics
	summary    schema.SummaryAnalytics
	priority   []schema.PriorityRateBin
	visibility []schema.RateBin
	heatmap    []schema.HeatmapBin
	trends     schema.Trends
	conflicts  []schema.Conflict
	blocks     map[schema.AnalyticsView][]schema.AnalyticsBlockRow
}

func collect(t *testing.T, q *QueryService, id int64, want schema.QueryPath) answers {
	t.Helper()
	ctx := context.Background()
	var a answers
	var path schema.QueryPath
	var err error

	a.metrics, path, err = q.Metrics(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, want, path, "metrics")
	a.summary, path, err = q.Summary(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, want, path, "summary")
	a.priority, path, err = q.PriorityRates(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, want, path, "priority rates")
	a.visibility, path, err = q.VisibilityBins(ctx, id, 0)
	require.NoError(t, err)
	assert.Equal(t, want, path, "visibility bins")
	a.heatmap, path, err = q.Heatmap(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, want, path, "heatmap")
	a.trends, path, err = q.Trends(ctx, id, 0)
	require.NoError(t, err)
	assert.Equal(t, want, path, "trends")
	a.conflicts, path, err = q.Conflicts(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, want, path, "conflicts")

	a.blocks = make(map[schema.AnalyticsView][]schema.AnalyticsBlockRow)
	for _, view := range schema.AllAnalyticsViews {
		a.blocks[view], path, err = q.Blocks(ctx, id, view)
		require.NoError(t, err)
		assert.Equal(t, want, path, "blocks %s", view)
	}
	return a
}

func TestQueryService_FastAndSlowPathsAgree(t *testing.T) {
	forEachStore(t, func(t *testing.T, store contract.Store) {
		id := storeFixture(t, store)
		q := NewQueryService(store, DefaultQueryOptions())

		slow := collect(t, q, id, schema.SlowPath)
		_, err := newPopulator(store).Refresh(context.Background(), id)
		require.NoError(t, err)
		fast := collect(t, q, id, schema.FastPath)

		assert.Equal(t, slow, fast)

		assert.Equal(t, 3, fast.metrics.TotalCount)
		assert.Equal(t, 2, fast.metrics.ScheduledCount)
		assert.Equal(t, 1, fast.metrics.ZeroVisibilityCount)
		require.Len(t, fast.conflicts, 1)
		assert.Equal(t, "1000001", fast.conflicts[0].OriginalA)
		assert.Len(t, fast.blocks[schema.InsightsView], 3)
		assert.Equal(t, "M31", fast.blocks[schema.SkyMapView][0].TargetName)
		assert.Empty(t, fast.blocks[schema.TrendsView][0].TargetName, "trends view does not carry names")
	})
}

func TestQueryService_VisibilityBinsWithOtherCount(t *testing.T) {
	store := repository.NewMemoryStore()
	id := storeFixture(t, store)
	_, err := newPopulator(store).Refresh(context.Background(), id)
	require.NoError(t, err)
	q := NewQueryService(store, DefaultQueryOptions())

	bins, path, err := q.VisibilityBins(context.Background(), id, 2)
	require.NoError(t, err)
	assert.Equal(t, schema.SlowPath, path, "stored bins were computed with the default count")
	assert.LessOrEqual(t, len(bins), 2)

	_, path, err = q.VisibilityBins(context.Background(), id, contract.DefaultVisibilityBins)
	require.NoError(t, err)
	assert.Equal(t, schema.FastPath, path)
}

func TestQueryService_NotFound(t *testing.T) {
	q := NewQueryService(repository.NewMemoryStore(), DefaultQueryOptions())
	_, _, err := q.Metrics(context.Background(), 404)
	assert.ErrorIs(t, err, contract.ErrNotFound)
	_, _, err = q.Blocks(context.Background(), 404, schema.SkyMapView)
	assert.ErrorIs(t, err, contract.ErrNotFound)
	assert.Equal(t, gobreaker.StateClosed, q.BreakerState())
}

func TestQueryService_FastPathFailureOpensBreaker(t *testing.T) {
	ctx := context.Background()
	sched := &schema.Schedule{ID: 1, Blocks: []schema.SchedulingBlock{
		{ID: 10, OriginalID: "a", Priority: 2, ScheduledPeriod: &schema.Period{Start: 1, Stop: 2}},
		{ID: 11, OriginalID: "b", Priority: 4},
	}}
	store := &repository.MockStore{}
	store.On("FetchScheduleSummary", mock.Anything, int64(1)).Return(nil, errors.New("analytics offline"))
	store.On("GetSchedule", mock.Anything, int64(1)).Return(sched, nil)

	opts := DefaultQueryOptions()
	opts.BreakerFailures = 2
	q := NewQueryService(store, opts)

	slowBefore := testutil.ToFloat64(metrics.QueryPathTotal.WithLabelValues(shapeMetrics, string(schema.SlowPath)))
	for i := 0; i < 3; i++ {
		m, path, err := q.Metrics(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, schema.SlowPath, path)
		assert.Equal(t, 2, m.TotalCount)
		assert.Equal(t, 0.5, m.SchedulingRate)
	}

	assert.Equal(t, gobreaker.StateOpen, q.BreakerState())
	store.AssertNumberOfCalls(t, "FetchScheduleSummary", 2)
	store.AssertNumberOfCalls(t, "GetSchedule", 3)
	assert.Equal(t, slowBefore+3, testutil.ToFloat64(metrics.QueryPathTotal.WithLabelValues(shapeMetrics, string(schema.SlowPath))))
}

func TestQueryService_CanceledContext(t *testing.T) {
	store := repository.NewMemoryStore()
	id := storeFixture(t, store)
	q := NewQueryService(store, DefaultQueryOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := q.Trends(ctx, id, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
