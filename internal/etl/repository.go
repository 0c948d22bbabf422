package etl

import (
	"context"

	"github.com/huangsam/skysched/internal/contract"
)

// Repository is a Store with the analytics population entry points attached.
type Repository struct {
	contract.Store
	populator *Populator
}

var _ contract.Repository = &Repository{} // Compile-time check

// NewRepository wraps store with a populator built from opts.
func NewRepository(store contract.Store, opts Options) *Repository {
	return &Repository{Store: store, populator: NewPopulator(store, opts)}
}

// Populator returns the populator behind the repository.
func (r *Repository) Populator() *Populator { return r.populator }

// PopulateBlockAnalytics implements contract.Repository.
func (r *Repository) PopulateBlockAnalytics(ctx context.Context, scheduleID int64) (int, error) {
	return r.populator.PopulateBlockAnalytics(ctx, scheduleID)
}

// PopulateSummaryAnalytics implements contract.Repository.
func (r *Repository) PopulateSummaryAnalytics(ctx context.Context, scheduleID int64, nBins int) error {
	return r.populator.PopulateSummaryAnalytics(ctx, scheduleID, nBins)
}
