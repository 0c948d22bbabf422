package contract

import (
	"context"

	"github.com/huangsam/skysched/schema"
)

// ScheduleRepository stores and reads the normalized schedule graph.
type ScheduleRepository interface {
	// StoreSchedule atomically writes the full normalized graph of a schedule and
	// reports whether it created the row. A schedule whose checksum already exists is
	// not written again; its id is returned with created false.
	StoreSchedule(ctx context.Context, s *schema.Schedule) (id int64, created bool, err error)

	// GetSchedule returns a schedule with all blocks, targets and constraints resolved.
	GetSchedule(ctx context.Context, id int64) (*schema.Schedule, error)

	// ListSchedules returns every stored schedule, newest first.
	ListSchedules(ctx context.Context) ([]schema.ScheduleInfo, error)

	// FetchDarkPeriods returns the dark periods stored with a schedule.
	FetchDarkPeriods(ctx context.Context, id int64) ([]schema.Period, error)

	// FetchPossiblePeriods returns every visibility period of every block in a schedule.
	FetchPossiblePeriods(ctx context.Context, id int64) ([]schema.BlockPeriod, error)
}

// AnalyticsRepository reads and replaces the derived analytics tiers.
type AnalyticsRepository interface {
	// ReplaceBlockAnalytics clears every analytics tier of the schedule and writes the
	// block rows in one transaction. It returns the number of rows written.
	ReplaceBlockAnalytics(ctx context.Context, scheduleID int64, rows []schema.AnalyticsBlockRow) (int, error)

	// ReplaceSummaryAnalytics replaces the summary row and all bins of the schedule in one transaction.
	ReplaceSummaryAnalytics(ctx context.Context, scheduleID int64, bundle *schema.SummaryBundle) error

	// ReplaceAnalytics clears every tier and writes block rows, summary and bins in
	// one transaction. It returns the number of block rows written.
	ReplaceAnalytics(ctx context.Context, scheduleID int64, rows []schema.AnalyticsBlockRow, bundle *schema.SummaryBundle) (int, error)

	// ClearAnalytics deletes every analytics row of the schedule.
	ClearAnalytics(ctx context.Context, scheduleID int64) error

	// FetchAnalyticsBlocks returns block rows projected to the columns of the view, ordered by block id.
	FetchAnalyticsBlocks(ctx context.Context, scheduleID int64, view schema.AnalyticsView) ([]schema.AnalyticsBlockRow, error)

	// FetchScheduleSummary returns the summary row, or nil when analytics were never populated.
	FetchScheduleSummary(ctx context.Context, scheduleID int64) (*schema.SummaryAnalytics, error)

	// FetchPriorityRates returns priority bins ordered by priority.
	FetchPriorityRates(ctx context.Context, scheduleID int64) ([]schema.PriorityRateBin, error)

	// FetchVisibilityBins returns visibility bins ordered by bin index.
	FetchVisibilityBins(ctx context.Context, scheduleID int64) ([]schema.RateBin, error)

	// FetchHeatmapBins returns heatmap cells ordered by x then y index.
	FetchHeatmapBins(ctx context.Context, scheduleID int64) ([]schema.HeatmapBin, error)
}

// ValidationRepository stores per-block validation reports.
type ValidationRepository interface {
	// InsertValidationResults writes all results in one transaction.
	InsertValidationResults(ctx context.Context, results []schema.ValidationResult) error

	// FetchValidationResults returns the stored results of a schedule.
	FetchValidationResults(ctx context.Context, scheduleID int64) ([]schema.ValidationResult, error)
}

// Store is what a storage backend implements.
type Store interface {
	ScheduleRepository
	AnalyticsRepository
	ValidationRepository

	// HealthCheck reports whether the backend answers.
	HealthCheck(ctx context.Context) bool

	// Backend returns the backend kind.
	Backend() schema.DatabaseBackend

	// Status returns row counts per table.
	Status(ctx context.Context) (schema.StoreStatus, error)

	// Close releases the connection pool.
	Close() error
}

// Repository is the storage-agnostic contract used by the core. It adds the
// analytics population entry points on top of a Store.
type Repository interface {
	Store

	// PopulateBlockAnalytics rebuilds the block analytics tier and returns the row count.
	PopulateBlockAnalytics(ctx context.Context, scheduleID int64) (int, error)

	// PopulateSummaryAnalytics rebuilds the summary row and bins with nBins visibility bins.
	PopulateSummaryAnalytics(ctx context.Context, scheduleID int64, nBins int) error
}

// EventPublisher announces analytics lifecycle events.
type EventPublisher interface {
	// PublishRefreshed announces that a schedule's analytics were rebuilt.
	PublishRefreshed(ctx context.Context, event schema.RefreshEvent) error

	// Close flushes and releases the publisher.
	Close() error
}
