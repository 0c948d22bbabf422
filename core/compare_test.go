package core

import (
	"context"
	"testing"

	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/ingest"
	"github.com/huangsam/skysched/internal/repository"
	"github.com/huangsam/skysched/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeVariant stores a rescheduled copy of the fixture: 1000001 loses its slot,
// 1000002 gains one a day later and 1000003 is replaced by 1000004.
func storeVariant(t *testing.T, store contract.Store) int64 {
	t.Helper()
	sched, err := ingest.Normalize(fixtureInput(t))
	require.NoError(t, err)
	sched.Name = "variant"
	sched.Checksum = "variant"
	for i := range sched.Blocks {
		b := &sched.Blocks[i]
		switch b.OriginalID {
		case "1000001":
			b.ScheduledPeriod = nil
		case "1000002":
			b.ScheduledPeriod = &schema.Period{Start: 61001, Stop: 61001.25}
		case "1000003":
			b.OriginalID = "1000004"
		}
	}
	id, created, err := store.StoreSchedule(context.Background(), sched)
	require.NoError(t, err)
	require.True(t, created)
	return id
}

func TestQueryService_Compare(t *testing.T) {
	forEachStore(t, func(t *testing.T, store contract.Store) {
		ctx := context.Background()
		current := storeFixture(t, store)
		comparison := storeVariant(t, store)
		q := NewQueryService(store, DefaultQueryOptions())

		slow, err := q.Compare(ctx, current, comparison)
		require.NoError(t, err)
		assert.Equal(t, schema.SlowPath, slow.CurrentPath)
		assert.Equal(t, schema.SlowPath, slow.ComparisonPath)

		assert.Equal(t, "fixture", slow.CurrentName)
		assert.Equal(t, "variant", slow.ComparisonName)
		assert.Equal(t, 3, slow.CurrentBlocks)
		assert.Equal(t, 3, slow.ComparisonBlocks)
		assert.Equal(t, []string{"1000001", "1000002"}, slow.CommonIDs)
		assert.Equal(t, []string{"1000003"}, slow.OnlyInCurrent)
		assert.Equal(t, []string{"1000004"}, slow.OnlyInComparison)
		assert.Equal(t, []schema.SchedulingChange{
			{BlockID: "1000002", Priority: 3, ChangeType: schema.NewlyScheduled},
			{BlockID: "1000001", Priority: 8.5, ChangeType: schema.NewlyUnscheduled},
		}, slow.SchedulingChanges)

		cur := slow.CurrentStats
		assert.Equal(t, 2, cur.ScheduledCount)
		assert.Equal(t, 1, cur.UnscheduledCount)
		assert.Equal(t, 13.75, cur.TotalPriority)
		assert.Equal(t, 6.875, cur.MedianPriority)
		assert.InDelta(t, 3.0, cur.TotalHours, 1e-9)
		assert.Nil(t, cur.GapCount, "the fixture's scheduled periods overlap")

		cmp := slow.ComparisonStats
		assert.Equal(t, 2, cmp.ScheduledCount)
		assert.Equal(t, 8.25, cmp.TotalPriority)
		assert.InDelta(t, 2.5, cmp.TotalHours, 1e-9)
		require.NotNil(t, cmp.GapCount)
		assert.Equal(t, 1, *cmp.GapCount)
		assert.InDelta(t, 19.2, *cmp.GapMeanHours, 1e-6)
		assert.InDelta(t, 19.2, *cmp.GapMedianHours, 1e-6)

		// Stored analytics answer the populated side with the same result.
		_, err = newPopulator(store).Refresh(ctx, current)
		require.NoError(t, err)
		fast, err := q.Compare(ctx, current, comparison)
		require.NoError(t, err)
		assert.Equal(t, schema.FastPath, fast.CurrentPath)
		assert.Equal(t, schema.SlowPath, fast.ComparisonPath)
		fast.CurrentPath = schema.SlowPath
		assert.Equal(t, slow, fast)
	})
}

func TestQueryService_CompareWithItself(t *testing.T) {
	store := repository.NewMemoryStore()
	id := storeFixture(t, store)
	q := NewQueryService(store, DefaultQueryOptions())

	c, err := q.Compare(context.Background(), id, id)
	require.NoError(t, err)
	assert.Len(t, c.CommonIDs, 3)
	assert.Empty(t, c.OnlyInCurrent)
	assert.Empty(t, c.OnlyInComparison)
	assert.Empty(t, c.SchedulingChanges)
	assert.Equal(t, c.CurrentStats, c.ComparisonStats)
}

func TestQueryService_CompareMissingSchedule(t *testing.T) {
	store := repository.NewMemoryStore()
	id := storeFixture(t, store)
	q := NewQueryService(store, DefaultQueryOptions())

	_, err := q.Compare(context.Background(), id, 404)
	assert.ErrorIs(t, err, contract.ErrNotFound)
	_, err = q.Compare(context.Background(), 404, id)
	assert.ErrorIs(t, err, contract.ErrNotFound)
}
