package core

import (
	"context"
	"errors"
	"time"

	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/etl"
	"github.com/huangsam/skysched/internal/logging"
	"github.com/huangsam/skysched/internal/metrics"
	"github.com/huangsam/skysched/internal/stats"
	"github.com/huangsam/skysched/schema"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Query shapes, used as metric labels.
const (
	shapeMetrics    = "metrics"
	shapeSummary    = "summary"
	shapePriority   = "priority_rates"
	shapeVisibility = "visibility_bins"
	shapeHeatmap    = "heatmap"
	shapeTrends     = "trends"
	shapeBlocks     = "blocks"
	shapeConflicts  = "conflicts"
)

const fastPathBreaker = "analytics-fast-path"

// QueryOptions controls the query service.
type QueryOptions struct {
	VisibilityBins int
	HeatmapBins    int
	TrendPoints    int
	TrendBandwidth float64

	// BreakerFailures consecutive fast path errors open the breaker for BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultQueryOptions returns the query defaults. Bin counts match the populator's.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{
		VisibilityBins:  contract.DefaultVisibilityBins,
		HeatmapBins:     contract.DefaultHeatmapBins,
		TrendPoints:     contract.DefaultTrendPoints,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// QueryOptionsFromConfig derives query options from the runtime configuration.
func QueryOptionsFromConfig(cfg *contract.Config) QueryOptions {
	opts := DefaultQueryOptions()
	if cfg.VisibilityBins > 0 {
		opts.VisibilityBins = cfg.VisibilityBins
	}
	if cfg.HeatmapBins > 0 {
		opts.HeatmapBins = cfg.HeatmapBins
	}
	if cfg.TrendPoints > 0 {
		opts.TrendPoints = cfg.TrendPoints
	}
	opts.TrendBandwidth = cfg.TrendBandwidth
	return opts
}

// QueryService answers analytics questions. Each query first reads the precomputed
// analytics (fast path); when they are missing or unreadable it recomputes the answer
// from the normalized schedule (slow path). Both paths run the same functions over the
// same rows, so they return identical values.
type QueryService struct {
	store   contract.Store
	opts    QueryOptions
	breaker *gobreaker.CircuitBreaker[any]
	log     zerolog.Logger
}

// NewQueryService returns a query service over store.
func NewQueryService(store contract.Store, opts QueryOptions) *QueryService {
	def := DefaultQueryOptions()
	if opts.VisibilityBins < 1 {
		opts.VisibilityBins = def.VisibilityBins
	}
	if opts.HeatmapBins < 1 {
		opts.HeatmapBins = def.HeatmapBins
	}
	if opts.TrendPoints < 1 {
		opts.TrendPoints = def.TrendPoints
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = def.BreakerFailures
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = def.BreakerTimeout
	}

	log := logging.With("query")
	metrics.CircuitBreakerState.Set(0)
	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        fastPathBreaker,
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailures
		},
		// Missing rows and caller cancellation say nothing about the store's health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, contract.ErrNotFound) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("fast path breaker changed state")
			metrics.CircuitBreakerState.Set(breakerStateValue(to))
		},
	})
	return &QueryService{store: store, opts: opts, breaker: breaker, log: log}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}

// BreakerState reports the fast path breaker state.
func (q *QueryService) BreakerState() gobreaker.State { return q.breaker.State() }

// fastResult carries a fast path answer through the breaker. ok is false when the
// analytics tables cannot answer.
type fastResult[T any] struct {
	value T
	ok    bool
}

// runQuery tries fast, then falls back to slow over the denormalized rows of the
// schedule projected to view.
func runQuery[T any](
	ctx context.Context,
	q *QueryService,
	shape string,
	scheduleID int64,
	view schema.AnalyticsView,
	fast func(ctx context.Context) (T, bool, error),
	slow func(rows []schema.AnalyticsBlockRow) (T, error),
) (T, schema.QueryPath, error) {
	var zero T
	start := time.Now()
	log := q.log.With().Str("shape", shape).Int64("schedule_id", scheduleID).Logger()

	res, err := q.breaker.Execute(func() (any, error) {
		v, ok, err := fast(ctx)
		return fastResult[T]{value: v, ok: ok}, err
	})
	if err == nil {
		if r, _ := res.(fastResult[T]); r.ok {
			q.record(log, shape, schema.FastPath, start)
			return r.value, schema.FastPath, nil
		}
	} else {
		log.Warn().Err(err).Msg("fast path failed, recomputing")
	}

	if err := ctx.Err(); err != nil {
		return zero, "", err
	}
	sched, err := q.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return zero, "", err
	}
	rows := projectRows(etl.Denormalize(sched), view)
	v, err := slow(rows)
	if err != nil {
		return zero, "", err
	}
	q.record(log, shape, schema.SlowPath, start)
	return v, schema.SlowPath, nil
}

func (q *QueryService) record(log zerolog.Logger, shape string, path schema.QueryPath, start time.Time) {
	metrics.QueryPathTotal.WithLabelValues(shape, string(path)).Inc()
	log.Debug().Str("path", string(path)).Dur("elapsed", time.Since(start)).Msg("query answered")
}

func projectRows(rows []schema.AnalyticsBlockRow, view schema.AnalyticsView) []schema.AnalyticsBlockRow {
	cols := view.Columns()
	out := make([]schema.AnalyticsBlockRow, len(rows))
	for i := range rows {
		out[i] = rows[i].Project(cols)
	}
	return out
}

// summaryFast returns the stored summary, reporting ok=false when analytics were never
// populated.
func (q *QueryService) summaryFast(ctx context.Context, scheduleID int64) (*schema.SummaryAnalytics, bool, error) {
	summary, err := q.store.FetchScheduleSummary(ctx, scheduleID)
	if err != nil || summary == nil {
		return nil, false, err
	}
	return summary, true, nil
}

// Metrics returns the aggregate metrics of a schedule.
func (q *QueryService) Metrics(ctx context.Context, scheduleID int64) (schema.ScheduleMetrics, schema.QueryPath, error) {
	return runQuery(ctx, q, shapeMetrics, scheduleID, schema.InsightsView,
		func(ctx context.Context) (schema.ScheduleMetrics, bool, error) {
			summary, ok, err := q.summaryFast(ctx, scheduleID)
			if !ok {
				return schema.ScheduleMetrics{}, false, err
			}
			return summary.Metrics(), true, nil
		},
		func(rows []schema.AnalyticsBlockRow) (schema.ScheduleMetrics, error) {
			return stats.ComputeMetrics(stats.FromRows(rows)), nil
		})
}

// Summary returns the full summary row of a schedule.
func (q *QueryService) Summary(ctx context.Context, scheduleID int64) (schema.SummaryAnalytics, schema.QueryPath, error) {
	return runQuery(ctx, q, shapeSummary, scheduleID, schema.InsightsView,
		func(ctx context.Context) (schema.SummaryAnalytics, bool, error) {
			summary, ok, err := q.summaryFast(ctx, scheduleID)
			if !ok {
				return schema.SummaryAnalytics{}, false, err
			}
			return *summary, true, nil
		},
		func(rows []schema.AnalyticsBlockRow) (schema.SummaryAnalytics, error) {
			return etl.BuildSummary(scheduleID, rows, q.opts.VisibilityBins, q.opts.HeatmapBins).Summary, nil
		})
}

// PriorityRates returns the scheduling rate per rounded integer priority.
func (q *QueryService) PriorityRates(ctx context.Context, scheduleID int64) ([]schema.PriorityRateBin, schema.QueryPath, error) {
	return runQuery(ctx, q, shapePriority, scheduleID, schema.DistributionView,
		func(ctx context.Context) ([]schema.PriorityRateBin, bool, error) {
			summary, ok, err := q.summaryFast(ctx, scheduleID)
			if !ok {
				return nil, false, err
			}
			bins, err := q.store.FetchPriorityRates(ctx, scheduleID)
			if err != nil {
				return nil, false, err
			}
			return nonEmpty(bins), len(bins) > 0 || summary.TotalBlocks == 0, nil
		},
		func(rows []schema.AnalyticsBlockRow) ([]schema.PriorityRateBin, error) {
			return nonEmpty(stats.ComputeByPriority(stats.FromRows(rows))), nil
		})
}

// VisibilityBins returns the scheduling rate per equal-width visibility bin. Stored bins
// answer only when they were computed with the same bin count.
func (q *QueryService) VisibilityBins(ctx context.Context, scheduleID int64, nBins int) ([]schema.RateBin, schema.QueryPath, error) {
	if nBins < 1 {
		nBins = q.opts.VisibilityBins
	}
	return runQuery(ctx, q, shapeVisibility, scheduleID, schema.DistributionView,
		func(ctx context.Context) ([]schema.RateBin, bool, error) {
			summary, ok, err := q.summaryFast(ctx, scheduleID)
			if !ok || summary.VisibilityBinCount != nBins {
				return nil, false, err
			}
			bins, err := q.store.FetchVisibilityBins(ctx, scheduleID)
			if err != nil {
				return nil, false, err
			}
			return nonEmpty(bins), len(bins) > 0 || summary.TotalBlocks == 0, nil
		},
		func(rows []schema.AnalyticsBlockRow) ([]schema.RateBin, error) {
			samples := stats.FromRows(rows)
			return nonEmpty(stats.ComputeByBins(samples, stats.Visibility, nBins, etl.VisibilityLabel)), nil
		})
}

// Heatmap returns the visibility by requested hours grid.
func (q *QueryService) Heatmap(ctx context.Context, scheduleID int64) ([]schema.HeatmapBin, schema.QueryPath, error) {
	return runQuery(ctx, q, shapeHeatmap, scheduleID, schema.DistributionView,
		func(ctx context.Context) ([]schema.HeatmapBin, bool, error) {
			summary, ok, err := q.summaryFast(ctx, scheduleID)
			if !ok || summary.HeatmapBinCount != q.opts.HeatmapBins {
				return nil, false, err
			}
			bins, err := q.store.FetchHeatmapBins(ctx, scheduleID)
			if err != nil {
				return nil, false, err
			}
			return nonEmpty(bins), len(bins) > 0 || summary.TotalBlocks == 0, nil
		},
		func(rows []schema.AnalyticsBlockRow) ([]schema.HeatmapBin, error) {
			samples := stats.FromRows(rows)
			return nonEmpty(stats.ComputeHeatmapBins(samples, stats.Visibility, stats.Requested, q.opts.HeatmapBins)), nil
		})
}

// Trends returns the curves behind the trends view. nBins < 1 uses the default
// visibility bin count.
func (q *QueryService) Trends(ctx context.Context, scheduleID int64, nBins int) (schema.Trends, schema.QueryPath, error) {
	if nBins < 1 {
		nBins = q.opts.VisibilityBins
	}
	opts := stats.TrendOptions{Bins: nBins, Points: q.opts.TrendPoints, Bandwidth: q.opts.TrendBandwidth}
	compute := func(ctx context.Context, rows []schema.AnalyticsBlockRow) (schema.Trends, error) {
		return stats.ComputeTrends(ctx, stats.FromRows(rows), opts)
	}
	return runQuery(ctx, q, shapeTrends, scheduleID, schema.TrendsView,
		func(ctx context.Context) (schema.Trends, bool, error) {
			rows, ok, err := q.blocksFast(ctx, scheduleID, schema.TrendsView)
			if !ok {
				return schema.Trends{}, false, err
			}
			trends, err := compute(ctx, rows)
			return trends, err == nil, err
		},
		func(rows []schema.AnalyticsBlockRow) (schema.Trends, error) {
			return compute(ctx, rows)
		})
}

// Blocks returns the block analytics rows projected to the columns of view.
func (q *QueryService) Blocks(ctx context.Context, scheduleID int64, view schema.AnalyticsView) ([]schema.AnalyticsBlockRow, schema.QueryPath, error) {
	return runQuery(ctx, q, shapeBlocks, scheduleID, view,
		func(ctx context.Context) ([]schema.AnalyticsBlockRow, bool, error) {
			return q.blocksFast(ctx, scheduleID, view)
		},
		func(rows []schema.AnalyticsBlockRow) ([]schema.AnalyticsBlockRow, error) {
			return rows, nil
		})
}

// Conflicts returns every pair of scheduled blocks whose scheduled periods overlap.
func (q *QueryService) Conflicts(ctx context.Context, scheduleID int64) ([]schema.Conflict, schema.QueryPath, error) {
	return runQuery(ctx, q, shapeConflicts, scheduleID, schema.TimelineView,
		func(ctx context.Context) ([]schema.Conflict, bool, error) {
			rows, ok, err := q.blocksFast(ctx, scheduleID, schema.TimelineView)
			if !ok {
				return nil, false, err
			}
			return nonEmpty(stats.FindConflicts(stats.FromRows(rows))), true, nil
		},
		func(rows []schema.AnalyticsBlockRow) ([]schema.Conflict, error) {
			return nonEmpty(stats.FindConflicts(stats.FromRows(rows))), nil
		})
}

// blocksFast reads stored block rows. An empty result cannot be told apart from a
// schedule that was never populated, so it falls back.
func (q *QueryService) blocksFast(ctx context.Context, scheduleID int64, view schema.AnalyticsView) ([]schema.AnalyticsBlockRow, bool, error) {
	rows, err := q.store.FetchAnalyticsBlocks(ctx, scheduleID, view)
	if err != nil || len(rows) == 0 {
		return nil, false, err
	}
	return rows, true, nil
}

func nonEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
