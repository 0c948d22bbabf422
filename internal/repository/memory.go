package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/ingest"
	"github.com/huangsam/skysched/schema"
)

// MemoryStore keeps every table in process memory. Reads and writes copy values so
// callers never alias stored state.
type MemoryStore struct {
	mu     sync.RWMutex
	closed bool
	nextID int64

	schedules  map[int64]*schema.Schedule
	byChecksum map[string]int64

	targets       map[int64]schema.Target
	targetIDs     map[schema.TargetKey]int64
	altitudeIDs   map[schema.AngleKey]int64
	azimuthIDs    map[schema.AngleKey]int64
	constraintIDs map[schema.ConstraintKey]int64

	analytics   map[int64]*memAnalytics
	validations map[int64][]schema.ValidationResult
}

type memAnalytics struct {
	rows   []schema.AnalyticsBlockRow
	bundle *schema.SummaryBundle
}

var _ contract.Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		schedules:     make(map[int64]*schema.Schedule),
		byChecksum:    make(map[string]int64),
		targets:       make(map[int64]schema.Target),
		targetIDs:     make(map[schema.TargetKey]int64),
		altitudeIDs:   make(map[schema.AngleKey]int64),
		azimuthIDs:    make(map[schema.AngleKey]int64),
		constraintIDs: make(map[schema.ConstraintKey]int64),
		analytics:     make(map[int64]*memAnalytics),
		validations:   make(map[int64][]schema.ValidationResult),
	}
}

func (m *MemoryStore) allocID() int64 {
	m.nextID++
	return m.nextID
}

// StoreSchedule implements contract.ScheduleRepository.
func (m *MemoryStore) StoreSchedule(ctx context.Context, s *schema.Schedule) (int64, bool, error) {
	if err := checkStorable(s); err != nil {
		return 0, false, err
	}
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byChecksum[s.Checksum]; ok {
		return id, false, nil
	}

	caches := m.preload()
	newTargets := make(map[int64]schema.Target)
	staged := cloneSchedule(s)
	staged.UploadedAt = staged.UploadedAt.UTC().Truncate(time.Millisecond)
	for i := range staged.Blocks {
		if err := m.stageBlock(ctx, caches, newTargets, &staged.Blocks[i]); err != nil {
			return 0, false, err
		}
	}
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	staged.ID = m.allocID()
	m.commitCaches(caches)
	for id, t := range newTargets {
		m.targets[id] = t
	}
	m.schedules[staged.ID] = staged
	m.byChecksum[staged.Checksum] = staged.ID
	return staged.ID, true, nil
}

func (m *MemoryStore) preload() *ingest.Caches {
	c := ingest.NewCaches()
	for k, id := range m.targetIDs {
		c.Targets.Put(k, id)
	}
	for k, id := range m.altitudeIDs {
		c.Altitudes.Put(k, id)
	}
	for k, id := range m.azimuthIDs {
		c.Azimuths.Put(k, id)
	}
	for k, id := range m.constraintIDs {
		c.Constraints.Put(k, id)
	}
	return c
}

// stageBlock assigns identities to the block and its entities. The first stored name
// of a target wins, as it does in the SQL store.
func (m *MemoryStore) stageBlock(ctx context.Context, c *ingest.Caches, newTargets map[int64]schema.Target, b *schema.SchedulingBlock) error {
	create := func(context.Context) (int64, error) { return m.allocID(), nil }

	id, err := c.Targets.GetOrCreate(ctx, b.Target.Key(), func(ctx context.Context) (int64, error) {
		id, _ := create(ctx)
		t := b.Target
		t.ID = id
		newTargets[id] = t
		return id, nil
	})
	if err != nil {
		return err
	}
	if t, ok := m.targets[id]; ok {
		b.Target = t
	} else {
		b.Target = newTargets[id]
	}
	if a := b.Constraint.Altitude; a != nil {
		if a.ID, err = c.Altitudes.GetOrCreate(ctx, a.Key(), create); err != nil {
			return err
		}
	}
	if a := b.Constraint.Azimuth; a != nil {
		if a.ID, err = c.Azimuths.GetOrCreate(ctx, a.Key(), create); err != nil {
			return err
		}
	}
	if b.Constraint.ID, err = c.Constraints.GetOrCreate(ctx, b.Constraint.Key(), create); err != nil {
		return err
	}
	b.ID = m.allocID()
	return nil
}

// commitCaches copies every identity created during staging into the store maps.
func (m *MemoryStore) commitCaches(c *ingest.Caches) {
	c.Targets.Each(func(k schema.TargetKey, id int64) { m.targetIDs[k] = id })
	c.Altitudes.Each(func(k schema.AngleKey, id int64) { m.altitudeIDs[k] = id })
	c.Azimuths.Each(func(k schema.AngleKey, id int64) { m.azimuthIDs[k] = id })
	c.Constraints.Each(func(k schema.ConstraintKey, id int64) { m.constraintIDs[k] = id })
}

func (m *MemoryStore) schedule(id int64) (*schema.Schedule, error) {
	s, ok := m.schedules[id]
	if !ok {
		return nil, &contract.NotFoundError{Entity: "schedule", ID: id}
	}
	return s, nil
}

// GetSchedule implements contract.ScheduleRepository.
func (m *MemoryStore) GetSchedule(ctx context.Context, id int64) (*schema.Schedule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, err := m.schedule(id)
	if err != nil {
		return nil, err
	}
	return cloneSchedule(s), nil
}

// ListSchedules implements contract.ScheduleRepository.
func (m *MemoryStore) ListSchedules(ctx context.Context) ([]schema.ScheduleInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schema.ScheduleInfo, 0, len(m.schedules))
	for _, s := range m.schedules {
		info := schema.ScheduleInfo{
			ID:         s.ID,
			Name:       s.Name,
			UploadedAt: s.UploadedAt,
			Checksum:   s.Checksum,
			BlockCount: len(s.Blocks),
		}
		for i := range s.Blocks {
			if s.Blocks[i].IsScheduled() {
				info.ScheduledCount++
			}
		}
		out = append(out, info)
	}
	sortScheduleInfos(out)
	return out, nil
}

// FetchDarkPeriods implements contract.ScheduleRepository.
func (m *MemoryStore) FetchDarkPeriods(ctx context.Context, id int64) ([]schema.Period, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, err := m.schedule(id)
	if err != nil {
		return nil, err
	}
	return append([]schema.Period{}, s.DarkPeriods...), nil
}

// FetchPossiblePeriods implements contract.ScheduleRepository.
func (m *MemoryStore) FetchPossiblePeriods(ctx context.Context, id int64) ([]schema.BlockPeriod, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, err := m.schedule(id)
	if err != nil {
		return nil, err
	}
	out := []schema.BlockPeriod{}
	for i := range s.Blocks {
		b := &s.Blocks[i]
		for _, p := range b.VisibilityPeriods {
			out = append(out, schema.BlockPeriod{BlockID: b.ID, OriginalBlockID: b.OriginalID, Period: p})
		}
	}
	return out, nil
}

// ReplaceBlockAnalytics implements contract.AnalyticsRepository.
func (m *MemoryStore) ReplaceBlockAnalytics(ctx context.Context, scheduleID int64, rows []schema.AnalyticsBlockRow) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.schedule(scheduleID); err != nil {
		return 0, err
	}
	m.analytics[scheduleID] = &memAnalytics{rows: storedRows(scheduleID, rows)}
	return len(rows), nil
}

func storedRows(scheduleID int64, rows []schema.AnalyticsBlockRow) []schema.AnalyticsBlockRow {
	stored := make([]schema.AnalyticsBlockRow, len(rows))
	for i := range rows {
		stored[i] = rows[i].Project(schema.BlockRowColumns)
		stored[i].ScheduleID = scheduleID
	}
	sort.SliceStable(stored, func(i, j int) bool { return stored[i].BlockID < stored[j].BlockID })
	return stored
}

// ReplaceAnalytics implements contract.AnalyticsRepository.
func (m *MemoryStore) ReplaceAnalytics(ctx context.Context, scheduleID int64, rows []schema.AnalyticsBlockRow, bundle *schema.SummaryBundle) (int, error) {
	if bundle == nil {
		return 0, &contract.ValidationError{Violations: []contract.Violation{{Field: "summary", Message: "is nil"}}}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.schedule(scheduleID); err != nil {
		return 0, err
	}
	a := &memAnalytics{rows: storedRows(scheduleID, rows), bundle: cloneBundle(bundle)}
	a.bundle.Summary.ScheduleID = scheduleID
	m.analytics[scheduleID] = a
	return len(rows), nil
}

// ReplaceSummaryAnalytics implements contract.AnalyticsRepository.
func (m *MemoryStore) ReplaceSummaryAnalytics(ctx context.Context, scheduleID int64, bundle *schema.SummaryBundle) error {
	if bundle == nil {
		return &contract.ValidationError{Violations: []contract.Violation{{Field: "summary", Message: "is nil"}}}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.schedule(scheduleID); err != nil {
		return err
	}
	a, ok := m.analytics[scheduleID]
	if !ok {
		a = &memAnalytics{}
		m.analytics[scheduleID] = a
	}
	a.bundle = cloneBundle(bundle)
	a.bundle.Summary.ScheduleID = scheduleID
	return nil
}

// ClearAnalytics implements contract.AnalyticsRepository.
func (m *MemoryStore) ClearAnalytics(ctx context.Context, scheduleID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.analytics, scheduleID)
	return nil
}

// FetchAnalyticsBlocks implements contract.AnalyticsRepository.
func (m *MemoryStore) FetchAnalyticsBlocks(ctx context.Context, scheduleID int64, view schema.AnalyticsView) ([]schema.AnalyticsBlockRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.analytics[scheduleID]
	if !ok {
		return []schema.AnalyticsBlockRow{}, nil
	}
	return projectRows(a.rows, view), nil
}

// FetchScheduleSummary implements contract.AnalyticsRepository.
func (m *MemoryStore) FetchScheduleSummary(ctx context.Context, scheduleID int64) (*schema.SummaryAnalytics, error) {
	b, err := m.bundle(ctx, scheduleID)
	if err != nil || b == nil {
		return nil, err
	}
	summary := b.Summary
	return &summary, nil
}

// FetchPriorityRates implements contract.AnalyticsRepository.
func (m *MemoryStore) FetchPriorityRates(ctx context.Context, scheduleID int64) ([]schema.PriorityRateBin, error) {
	b, err := m.bundle(ctx, scheduleID)
	if err != nil || b == nil {
		return []schema.PriorityRateBin{}, err
	}
	return b.PriorityRates, nil
}

// FetchVisibilityBins implements contract.AnalyticsRepository.
func (m *MemoryStore) FetchVisibilityBins(ctx context.Context, scheduleID int64) ([]schema.RateBin, error) {
	b, err := m.bundle(ctx, scheduleID)
	if err != nil || b == nil {
		return []schema.RateBin{}, err
	}
	return b.VisibilityBins, nil
}

// FetchHeatmapBins implements contract.AnalyticsRepository.
func (m *MemoryStore) FetchHeatmapBins(ctx context.Context, scheduleID int64) ([]schema.HeatmapBin, error) {
	b, err := m.bundle(ctx, scheduleID)
	if err != nil || b == nil {
		return []schema.HeatmapBin{}, err
	}
	return b.HeatmapBins, nil
}

// bundle returns a copy of the summary tier, or nil when it was never written.
func (m *MemoryStore) bundle(ctx context.Context, scheduleID int64) (*schema.SummaryBundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.analytics[scheduleID]
	if !ok || a.bundle == nil {
		return nil, nil
	}
	return cloneBundle(a.bundle), nil
}

// InsertValidationResults implements contract.ValidationRepository.
func (m *MemoryStore) InsertValidationResults(ctx context.Context, results []schema.ValidationResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range results {
		if _, err := m.schedule(r.ScheduleID); err != nil {
			return err
		}
	}
	for _, r := range results {
		m.validations[r.ScheduleID] = append(m.validations[r.ScheduleID], r)
	}
	return nil
}

// FetchValidationResults implements contract.ValidationRepository.
func (m *MemoryStore) FetchValidationResults(ctx context.Context, scheduleID int64) ([]schema.ValidationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]schema.ValidationResult{}, m.validations[scheduleID]...), nil
}

// HealthCheck reports whether the store is still open.
func (m *MemoryStore) HealthCheck(context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.closed
}

// Backend returns schema.MemoryBackend.
func (m *MemoryStore) Backend() schema.DatabaseBackend { return schema.MemoryBackend }

// Status returns row counts using the same table names as the SQL store.
func (m *MemoryStore) Status(ctx context.Context) (schema.StoreStatus, error) {
	if err := ctx.Err(); err != nil {
		return schema.StoreStatus{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	tables := make(map[string]int64, len(allTables))
	for _, t := range allTables {
		tables[t] = 0
	}
	tables[schedulesTable] = int64(len(m.schedules))
	tables[targetsTable] = int64(len(m.targetIDs))
	tables[altitudesTable] = int64(len(m.altitudeIDs))
	tables[azimuthsTable] = int64(len(m.azimuthIDs))
	tables[constraintsTable] = int64(len(m.constraintIDs))
	for _, s := range m.schedules {
		tables[blocksTable] += int64(len(s.Blocks))
		tables[scheduleBlocksTable] += int64(len(s.Blocks))
	}
	for _, a := range m.analytics {
		tables[analyticsBlocksTable] += int64(len(a.rows))
		if a.bundle != nil {
			tables[analyticsSummaryTable]++
			tables[analyticsPriorityTable] += int64(len(a.bundle.PriorityRates))
			tables[analyticsVisibilityTable] += int64(len(a.bundle.VisibilityBins))
			tables[analyticsHeatmapTable] += int64(len(a.bundle.HeatmapBins))
		}
	}
	for _, v := range m.validations {
		tables[validationTable] += int64(len(v))
	}
	return schema.StoreStatus{Backend: schema.MemoryBackend, Connected: !m.closed, Tables: tables}, nil
}

// Close marks the store closed. Data stays readable.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func cloneBundle(b *schema.SummaryBundle) *schema.SummaryBundle {
	return &schema.SummaryBundle{
		Summary:        b.Summary,
		PriorityRates:  append([]schema.PriorityRateBin{}, b.PriorityRates...),
		VisibilityBins: append([]schema.RateBin{}, b.VisibilityBins...),
		HeatmapBins:    append([]schema.HeatmapBin{}, b.HeatmapBins...),
	}
}

func sortScheduleInfos(out []schema.ScheduleInfo) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].ID > out[j].ID
	})
}
