package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/etl"
	"github.com/huangsam/skysched/internal/ingest"
	"github.com/huangsam/skysched/internal/repository"
	"github.com/huangsam/skysched/schema"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T, pool contract.PoolConfig) contract.Store {
	t.Helper()
	store, err := repository.NewSQLStore(context.Background(), schema.SQLiteBackend, ":memory:", pool)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// forEachStore runs fn against every backend that needs no external server.
func forEachStore(t *testing.T, fn func(t *testing.T, store contract.Store)) {
	pool := contract.DefaultPoolConfig()
	pool.RetryDelay = time.Millisecond

	t.Run("memory", func(t *testing.T) {
		fn(t, repository.NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		fn(t, newSQLiteStore(t, pool))
	})
	t.Run("sqlite_small_chunks", func(t *testing.T) {
		small := pool
		small.MaxParamsPerStatement = 10
		fn(t, newSQLiteStore(t, small))
	})
}

// fixtureInput is the three-block schedule shipped with the ingest tests.
func fixtureInput(t *testing.T) ingest.Input {
	t.Helper()
	read := func(name string) []byte {
		data, err := os.ReadFile(filepath.Join("..", "internal", "ingest", "testdata", name))
		require.NoError(t, err)
		return data
	}
	return ingest.Input{
		Name:            "fixture",
		Schedule:        read("schedule.json"),
		PossiblePeriods: read("possible_periods.json"),
		DarkPeriods:     read("dark_periods.json"),
		UploadedAt:      time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// storeFixture normalizes and stores the fixture without populating analytics.
func storeFixture(t *testing.T, store contract.Store) int64 {
	t.Helper()
	sched, err := ingest.Normalize(fixtureInput(t))
	require.NoError(t, err)
	id, created, err := store.StoreSchedule(context.Background(), sched)
	require.NoError(t, err)
	require.True(t, created)
	return id
}

func newPopulator(store contract.Store) *etl.Populator {
	return etl.NewPopulator(store, etl.DefaultOptions())
}
