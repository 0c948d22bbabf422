package core

import (
	"context"
	"sync"
	"testing"

	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/etl"
	"github.com/huangsam/skysched/internal/repository"
	"github.com/huangsam/skysched/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []schema.RefreshEvent
}

func (p *recordingPublisher) PublishRefreshed(_ context.Context, event schema.RefreshEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestUploader_Upload(t *testing.T) {
	forEachStore(t, func(t *testing.T, store contract.Store) {
		ctx := context.Background()
		pub := &recordingPublisher{}
		opts := etl.DefaultOptions()
		opts.Publisher = pub
		up := NewUploader(store, etl.NewPopulator(store, opts))

		res, err := up.Upload(ctx, fixtureInput(t))
		require.NoError(t, err)
		assert.False(t, res.Duplicate)
		assert.Greater(t, res.ScheduleID, int64(0))
		assert.Equal(t, "fixture", res.Name)
		assert.Equal(t, 3, res.Summary.Blocks)
		assert.Equal(t, 2, res.Summary.UniqueTargets)
		require.NotNil(t, res.Refresh)
		assert.Equal(t, 3, res.Refresh.BlockRows)
		require.Len(t, pub.events, 1)
		assert.Equal(t, res.ScheduleID, pub.events[0].ScheduleID)
		assert.Positive(t, res.Validation[schema.StatusImpossible])

		stored, err := store.FetchValidationResults(ctx, res.ScheduleID)
		require.NoError(t, err)
		assert.NotEmpty(t, stored)

		summary, err := store.FetchScheduleSummary(ctx, res.ScheduleID)
		require.NoError(t, err)
		require.NotNil(t, summary)
		assert.Equal(t, 3, summary.TotalBlocks)

		// The same payload again is recognized and not reprocessed.
		again, err := up.Upload(ctx, fixtureInput(t))
		require.NoError(t, err)
		assert.True(t, again.Duplicate)
		assert.Equal(t, res.ScheduleID, again.ScheduleID)
		assert.Nil(t, again.Refresh)
		assert.Len(t, pub.events, 1)

		list, err := store.ListSchedules(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestUploader_SkipRefresh(t *testing.T) {
	store := repository.NewMemoryStore()
	up := NewUploader(store, newPopulator(store))
	up.SkipRefresh = true

	res, err := up.Upload(context.Background(), fixtureInput(t))
	require.NoError(t, err)
	assert.Nil(t, res.Refresh)

	summary, err := store.FetchScheduleSummary(context.Background(), res.ScheduleID)
	require.NoError(t, err)
	assert.Nil(t, summary)

	_, path, err := NewQueryService(store, DefaultQueryOptions()).Metrics(context.Background(), res.ScheduleID)
	require.NoError(t, err)
	assert.Equal(t, schema.SlowPath, path)
}

func TestUploader_InvalidPayloadStoresNothing(t *testing.T) {
	store := repository.NewMemoryStore()
	up := NewUploader(store, newPopulator(store))

	in := fixtureInput(t)
	in.Schedule = []byte(`{"SchedulingBlock":[{"schedulingBlockId":1,"priority":1,
		"target":{"position_":{"coord":{"celestial":{"raInDeg":400,"decInDeg":95}}}}}]}`)
	_, err := up.Upload(context.Background(), in)
	require.Error(t, err)
	assert.ErrorIs(t, err, contract.ErrValidation)

	var verr *contract.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.GreaterOrEqual(t, len(verr.Violations), 2)

	list, err := store.ListSchedules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUploader_DuplicateRepopulatesMissingAnalytics(t *testing.T) {
	forEachStore(t, func(t *testing.T, store contract.Store) {
		ctx := context.Background()
		first := NewUploader(store, newPopulator(store))
		first.SkipRefresh = true
		res, err := first.Upload(ctx, fixtureInput(t))
		require.NoError(t, err)
		require.False(t, res.Duplicate)

		up := NewUploader(store, newPopulator(store))
		again, err := up.Upload(ctx, fixtureInput(t))
		require.NoError(t, err)
		assert.True(t, again.Duplicate)
		assert.Equal(t, res.ScheduleID, again.ScheduleID)
		require.NotNil(t, again.Refresh, "missing analytics are rebuilt")
		assert.Equal(t, 3, again.Refresh.BlockRows)

		summary, err := store.FetchScheduleSummary(ctx, res.ScheduleID)
		require.NoError(t, err)
		require.NotNil(t, summary)

		// Populated analytics are left alone.
		third, err := up.Upload(ctx, fixtureInput(t))
		require.NoError(t, err)
		assert.True(t, third.Duplicate)
		assert.Nil(t, third.Refresh)
	})
}

func TestUploader_ConcurrentIdenticalUploads(t *testing.T) {
	forEachStore(t, func(t *testing.T, store contract.Store) {
		ctx := context.Background()
		up := NewUploader(store, newPopulator(store))

		in := fixtureInput(t)
		const n = 4
		results := make([]*UploadResult, n)
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], errs[i] = up.Upload(ctx, in)
			}()
		}
		wg.Wait()

		created := 0
		var validations int
		for i := 0; i < n; i++ {
			require.NoError(t, errs[i])
			assert.Equal(t, results[0].ScheduleID, results[i].ScheduleID)
			if !results[i].Duplicate {
				created++
				for _, count := range results[i].Validation {
					validations += count
				}
			}
		}
		assert.Equal(t, 1, created, "exactly one upload stores the schedule")

		stored, err := store.FetchValidationResults(ctx, results[0].ScheduleID)
		require.NoError(t, err)
		assert.Len(t, stored, validations, "validation results are written once")

		list, err := store.ListSchedules(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}
