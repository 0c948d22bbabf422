// Package etl turns the normalized schedule graph into the three precomputed
// analytics tiers: block rows, the summary row and the bins.
package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/logging"
	"github.com/huangsam/skysched/internal/metrics"
	"github.com/huangsam/skysched/schema"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Options controls the populator.
type Options struct {
	VisibilityBins int
	HeatmapBins    int
	Workers        int // schedules refreshed concurrently by RefreshAll

	// Publisher, when set, is told about every completed refresh.
	Publisher contract.EventPublisher
}

// DefaultOptions returns the populator defaults.
func DefaultOptions() Options {
	return Options{
		VisibilityBins: contract.DefaultVisibilityBins,
		HeatmapBins:    contract.DefaultHeatmapBins,
		Workers:        contract.DefaultWorkers,
	}
}

// OptionsFromConfig derives populator options from the runtime configuration.
func OptionsFromConfig(cfg *contract.Config, publisher contract.EventPublisher) Options {
	opts := DefaultOptions()
	if cfg.VisibilityBins > 0 {
		opts.VisibilityBins = cfg.VisibilityBins
	}
	if cfg.HeatmapBins > 0 {
		opts.HeatmapBins = cfg.HeatmapBins
	}
	if cfg.Workers > 0 {
		opts.Workers = cfg.Workers
	}
	opts.Publisher = publisher
	return opts
}

// Populator rebuilds analytics through the store's transactional write primitives.
// Runs for one schedule are serialized; runs for different schedules are independent.
type Populator struct {
	store contract.Store
	opts  Options
	locks *keyedMutex
	log   zerolog.Logger
}

// NewPopulator returns a populator writing through store.
func NewPopulator(store contract.Store, opts Options) *Populator {
	def := DefaultOptions()
	if opts.VisibilityBins < 1 {
		opts.VisibilityBins = def.VisibilityBins
	}
	if opts.HeatmapBins < 1 {
		opts.HeatmapBins = def.HeatmapBins
	}
	if opts.Workers < 1 {
		opts.Workers = def.Workers
	}
	return &Populator{store: store, opts: opts, locks: newKeyedMutex(), log: logging.With("etl")}
}

// PopulateBlockAnalytics clears every tier of the schedule and rewrites the block rows.
func (p *Populator) PopulateBlockAnalytics(ctx context.Context, scheduleID int64) (int, error) {
	unlock, err := p.locks.lock(ctx, scheduleID)
	if err != nil {
		return 0, err
	}
	defer unlock()
	rows, err := p.populateBlocks(ctx, scheduleID)
	return len(rows), err
}

// PopulateSummaryAnalytics rewrites the summary row and bins from the block rows.
func (p *Populator) PopulateSummaryAnalytics(ctx context.Context, scheduleID int64, nBins int) error {
	unlock, err := p.locks.lock(ctx, scheduleID)
	if err != nil {
		return err
	}
	defer unlock()

	rows, err := p.store.FetchAnalyticsBlocks(ctx, scheduleID, schema.InsightsView)
	if err != nil {
		return fmt.Errorf("failed to read block analytics: %w", err)
	}
	if len(rows) == 0 {
		// The block tier was never built; derive rows without writing them.
		sched, err := p.store.GetSchedule(ctx, scheduleID)
		if err != nil {
			return err
		}
		rows = Denormalize(sched)
	}
	_, err = p.populateSummary(ctx, scheduleID, rows, nBins)
	return err
}

// Refresh rebuilds every tier of one schedule in a single store transaction, so a
// failed run leaves the previous analytics in place.
func (p *Populator) Refresh(ctx context.Context, scheduleID int64) (schema.RefreshEvent, error) {
	runID := uuid.NewString()
	log := p.log.With().Str("run_id", runID).Int64("schedule_id", scheduleID).Logger()
	start := time.Now()

	unlock, err := p.locks.lock(ctx, scheduleID)
	if err != nil {
		return schema.RefreshEvent{}, err
	}
	defer unlock()

	rows, err := p.populateAll(ctx, scheduleID)
	if err != nil {
		log.Error().Err(err).Msg("analytics refresh failed")
		return schema.RefreshEvent{}, err
	}

	event := schema.RefreshEvent{
		RunID:      runID,
		ScheduleID: scheduleID,
		BlockRows:  len(rows),
		DurationMs: float64(time.Since(start).Microseconds()) / 1000,
	}
	log.Info().Int("block_rows", event.BlockRows).Float64("duration_ms", event.DurationMs).Msg("analytics refreshed")

	if p.opts.Publisher != nil {
		if err := p.opts.Publisher.PublishRefreshed(ctx, event); err != nil {
			log.Warn().Err(err).Msg("failed to publish refresh event")
		}
	}
	return event, nil
}

// RefreshAll refreshes several schedules concurrently, bounded by the worker count.
// The first failure cancels the remaining runs.
func (p *Populator) RefreshAll(ctx context.Context, scheduleIDs []int64) ([]schema.RefreshEvent, error) {
	events := make([]schema.RefreshEvent, len(scheduleIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, id := range scheduleIDs {
		g.Go(func() error {
			event, err := p.Refresh(gctx, id)
			if err != nil {
				return fmt.Errorf("schedule %d: %w", id, err)
			}
			events[i] = event
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return events, nil
}

func (p *Populator) populateAll(ctx context.Context, scheduleID int64) ([]schema.AnalyticsBlockRow, error) {
	start := time.Now()
	defer metrics.ObserveETL("refresh", start)

	sched, err := p.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		metrics.ETLErrors.WithLabelValues("refresh").Inc()
		return nil, err
	}
	rows := Denormalize(sched)
	bundle := BuildSummary(scheduleID, rows, p.opts.VisibilityBins, p.opts.HeatmapBins)
	if _, err := p.store.ReplaceAnalytics(ctx, scheduleID, rows, bundle); err != nil {
		metrics.ETLErrors.WithLabelValues("refresh").Inc()
		return nil, fmt.Errorf("failed to write analytics: %w", err)
	}
	recordBundleRows(len(rows), bundle)
	return rows, nil
}

func recordBundleRows(blockRows int, bundle *schema.SummaryBundle) {
	if blockRows > 0 {
		metrics.ETLRows.WithLabelValues("blocks").Add(float64(blockRows))
	}
	metrics.ETLRows.WithLabelValues("summary").Inc()
	metrics.ETLRows.WithLabelValues("priority_rates").Add(float64(len(bundle.PriorityRates)))
	metrics.ETLRows.WithLabelValues("visibility_bins").Add(float64(len(bundle.VisibilityBins)))
	metrics.ETLRows.WithLabelValues("heatmap_bins").Add(float64(len(bundle.HeatmapBins)))
}

func (p *Populator) populateBlocks(ctx context.Context, scheduleID int64) ([]schema.AnalyticsBlockRow, error) {
	start := time.Now()
	defer metrics.ObserveETL("blocks", start)

	sched, err := p.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		metrics.ETLErrors.WithLabelValues("blocks").Inc()
		return nil, err
	}
	rows := Denormalize(sched)
	n, err := p.store.ReplaceBlockAnalytics(ctx, scheduleID, rows)
	if err != nil {
		metrics.ETLErrors.WithLabelValues("blocks").Inc()
		return nil, fmt.Errorf("failed to write block analytics: %w", err)
	}
	metrics.ETLRows.WithLabelValues("blocks").Add(float64(n))
	return rows, nil
}

func (p *Populator) populateSummary(ctx context.Context, scheduleID int64, rows []schema.AnalyticsBlockRow, nBins int) (*schema.SummaryBundle, error) {
	start := time.Now()
	defer metrics.ObserveETL("summary", start)

	if nBins < 1 {
		nBins = p.opts.VisibilityBins
	}
	bundle := BuildSummary(scheduleID, rows, nBins, p.opts.HeatmapBins)
	if err := p.store.ReplaceSummaryAnalytics(ctx, scheduleID, bundle); err != nil {
		metrics.ETLErrors.WithLabelValues("summary").Inc()
		return nil, fmt.Errorf("failed to write summary analytics: %w", err)
	}
	recordBundleRows(0, bundle)
	return bundle, nil
}
