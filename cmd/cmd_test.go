package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/skysched/core"
	"github.com/huangsam/skysched/internal/etl"
	"github.com/huangsam/skysched/internal/ingest"
	"github.com/huangsam/skysched/internal/repository"
	"github.com/huangsam/skysched/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScheduleID(t *testing.T) {
	id, err := parseScheduleID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-3", "abc", "1.5"} {
		_, err := parseScheduleID(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestUploadReport(t *testing.T) {
	res := &core.UploadResult{
		ScheduleID: 7,
		Name:       "run-a",
		Checksum:   "abc",
		Summary:    ingest.Summary{Blocks: 3, UniqueTargets: 2},
		Validation: map[schema.ValidationStatus]int{schema.StatusValid: 2, schema.StatusImpossible: 1},
		Refresh:    &schema.RefreshEvent{RunID: "run-1", BlockRows: 3},
		Elapsed:    1500 * time.Microsecond,
	}
	r := uploadReport(res)

	values := map[string]string{}
	for _, row := range r.Rows {
		values[row[0]] = row[1]
	}
	assert.Equal(t, "7", values["Schedule ID"])
	assert.Equal(t, "2", values["Unique targets"])
	assert.Equal(t, "1", values["Validation impossible"])
	assert.Equal(t, "2", values["Validation valid"])
	assert.Equal(t, "run-1", values["Analytics run"])
	assert.Equal(t, "2ms", values["Elapsed"])
	assert.Empty(t, r.Footer)
	assert.Same(t, res, r.Data)
}

func TestUploadReportDuplicate(t *testing.T) {
	r := uploadReport(&core.UploadResult{ScheduleID: 4, Duplicate: true})

	assert.Len(t, r.Rows, 5)
	assert.Equal(t, "Schedule already stored as 4", r.Footer)
}

func TestRootCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"upload", "schedules", "analytics", "migrate", "mcp", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}

	sub := map[string]bool{}
	for _, c := range analyticsCmd.Commands() {
		sub[c.Name()] = true
	}
	for _, want := range []string{"refresh", "metrics", "summary", "priority", "bins", "heatmap", "trends", "conflicts", "blocks", "compare", "export", "status"} {
		assert.True(t, sub[want], "missing analytics subcommand %s", want)
	}
}

func TestRefreshTier(t *testing.T) {
	ctx := context.Background()
	read := func(name string) []byte {
		data, err := os.ReadFile(filepath.Join("..", "internal", "ingest", "testdata", name))
		require.NoError(t, err)
		return data
	}
	sched, err := ingest.Normalize(ingest.Input{
		Name:            "tiers",
		Schedule:        read("schedule.json"),
		PossiblePeriods: read("possible_periods.json"),
		DarkPeriods:     read("dark_periods.json"),
	})
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	id, _, err := store.StoreSchedule(ctx, sched)
	require.NoError(t, err)

	saved := app
	t.Cleanup(func() { app = saved })
	app.repo = etl.NewRepository(store, etl.DefaultOptions())
	app.store = app.repo
	app.populator = app.repo.Populator()

	events, err := refreshTier(ctx, "blocks", []int64{id}, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 3, events[0].BlockRows)
	summary, err := store.FetchScheduleSummary(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, summary)

	_, err = refreshTier(ctx, "summary", []int64{id}, 4)
	require.NoError(t, err)
	summary, err = store.FetchScheduleSummary(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 4, summary.VisibilityBinCount)

	events, err = refreshTier(ctx, "all", []int64{id}, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, events[0].RunID)

	_, err = refreshTier(ctx, "bins", []int64{id}, 0)
	assert.ErrorContains(t, err, "invalid tier")
}
