package repository

import (
	"context"

	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/schema"
	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of contract.Store for testing.
type MockStore struct {
	mock.Mock
}

var _ contract.Store = &MockStore{} // Compile-time check

// StoreSchedule implements the Store interface.
func (m *MockStore) StoreSchedule(ctx context.Context, s *schema.Schedule) (int64, bool, error) {
	args := m.Called(ctx, s)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

// GetSchedule implements the Store interface.
func (m *MockStore) GetSchedule(ctx context.Context, id int64) (*schema.Schedule, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*schema.Schedule)
	return s, args.Error(1)
}

// ListSchedules implements the Store interface.
func (m *MockStore) ListSchedules(ctx context.Context) ([]schema.ScheduleInfo, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]schema.ScheduleInfo)
	return out, args.Error(1)
}

// FetchDarkPeriods implements the Store interface.
func (m *MockStore) FetchDarkPeriods(ctx context.Context, id int64) ([]schema.Period, error) {
	args := m.Called(ctx, id)
	out, _ := args.Get(0).([]schema.Period)
	return out, args.Error(1)
}

// FetchPossiblePeriods implements the Store interface.
func (m *MockStore) FetchPossiblePeriods(ctx context.Context, id int64) ([]schema.BlockPeriod, error) {
	args := m.Called(ctx, id)
	out, _ := args.Get(0).([]schema.BlockPeriod)
	return out, args.Error(1)
}

// ReplaceBlockAnalytics implements the Store interface.
func (m *MockStore) ReplaceBlockAnalytics(ctx context.Context, scheduleID int64, rows []schema.AnalyticsBlockRow) (int, error) {
	args := m.Called(ctx, scheduleID, rows)
	return args.Int(0), args.Error(1)
}

// ReplaceSummaryAnalytics implements the Store interface.
func (m *MockStore) ReplaceSummaryAnalytics(ctx context.Context, scheduleID int64, bundle *schema.SummaryBundle) error {
	args := m.Called(ctx, scheduleID, bundle)
	return args.Error(0)
}

// ReplaceAnalytics implements the Store interface.
func (m *MockStore) ReplaceAnalytics(ctx context.Context, scheduleID int64, rows []schema.AnalyticsBlockRow, bundle *schema.SummaryBundle) (int, error) {
	args := m.Called(ctx, scheduleID, rows, bundle)
	return args.Int(0), args.Error(1)
}

// ClearAnalytics implements the Store interface.
func (m *MockStore) ClearAnalytics(ctx context.Context, scheduleID int64) error {
	args := m.Called(ctx, scheduleID)
	return args.Error(0)
}

// FetchAnalyticsBlocks implements the Store interface.
func (m *MockStore) FetchAnalyticsBlocks(ctx context.Context, scheduleID int64, view schema.AnalyticsView) ([]schema.AnalyticsBlockRow, error) {
	args := m.Called(ctx, scheduleID, view)
	out, _ := args.Get(0).([]schema.AnalyticsBlockRow)
	return out, args.Error(1)
}

// FetchScheduleSummary implements the Store interface.
func (m *MockStore) FetchScheduleSummary(ctx context.Context, scheduleID int64) (*schema.SummaryAnalytics, error) {
	args := m.Called(ctx, scheduleID)
	out, _ := args.Get(0).(*schema.SummaryAnalytics)
	return out, args.Error(1)
}

// FetchPriorityRates implements the Store interface.
func (m *MockStore) FetchPriorityRates(ctx context.Context, scheduleID int64) ([]schema.PriorityRateBin, error) {
	args := m.Called(ctx, scheduleID)
	out, _ := args.Get(0).([]schema.PriorityRateBin)
	return out, args.Error(1)
}

// FetchVisibilityBins implements the Store interface.
func (m *MockStore) FetchVisibilityBins(ctx context.Context, scheduleID int64) ([]schema.RateBin, error) {
	args := m.Called(ctx, scheduleID)
	out, _ := args.Get(0).([]schema.RateBin)
	return out, args.Error(1)
}

// FetchHeatmapBins implements the Store interface.
func (m *MockStore) FetchHeatmapBins(ctx context.Context, scheduleID int64) ([]schema.HeatmapBin, error) {
	args := m.Called(ctx, scheduleID)
	out, _ := args.Get(0).([]schema.HeatmapBin)
	return out, args.Error(1)
}

// InsertValidationResults implements the Store interface.
func (m *MockStore) InsertValidationResults(ctx context.Context, results []schema.ValidationResult) error {
	args := m.Called(ctx, results)
	return args.Error(0)
}

// FetchValidationResults implements the Store interface.
func (m *MockStore) FetchValidationResults(ctx context.Context, scheduleID int64) ([]schema.ValidationResult, error) {
	args := m.Called(ctx, scheduleID)
	out, _ := args.Get(0).([]schema.ValidationResult)
	return out, args.Error(1)
}

// HealthCheck implements the Store interface.
func (m *MockStore) HealthCheck(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

// Backend implements the Store interface.
func (m *MockStore) Backend() schema.DatabaseBackend {
	return schema.MemoryBackend
}

// Status implements the Store interface.
func (m *MockStore) Status(ctx context.Context) (schema.StoreStatus, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).(schema.StoreStatus)
	return out, args.Error(1)
}

// Close implements the Store interface.
func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
