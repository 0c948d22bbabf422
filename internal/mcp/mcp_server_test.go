package mcp_test

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/huangsam/skysched/core"
	"github.com/huangsam/skysched/internal/bridge"
	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/etl"
	mcp_internal "github.com/huangsam/skysched/internal/mcp"
	"github.com/huangsam/skysched/internal/repository"
	"github.com/huangsam/skysched/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *server.MCPServer {
	t.Helper()
	store := repository.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	populator := etl.NewPopulator(store, etl.DefaultOptions())
	cfg := &contract.Config{VisibilityBins: contract.DefaultVisibilityBins}
	return mcp_internal.NewMCPServer(cfg, mcp_internal.Deps{
		Store:     store,
		Queries:   core.NewQueryService(store, core.DefaultQueryOptions()),
		Populator: populator,
		Uploader:  core.NewUploader(store, populator),
		Bridge:    bridge.New(2, 10*time.Second),
	})
}

func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool := s.GetTool(name)
	require.NotNil(t, tool, "Tool %s should exist", name)

	req := mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}}
	res, err := tool.Handler(context.Background(), req)
	require.NoError(t, err, "The MCP handler should not return a raw error for tool logic failures")
	require.NotNil(t, res)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	return res.Content[0].(mcp.TextContent).Text
}

func uploadFixture(t *testing.T, s *server.MCPServer) int64 {
	t.Helper()
	res := callTool(t, s, "upload_schedule", map[string]any{
		"schedule_path":         "../ingest/testdata/schedule.json",
		"possible_periods_path": "../ingest/testdata/possible_periods.json",
		"dark_periods_path":     "../ingest/testdata/dark_periods.json",
	})
	require.False(t, res.IsError, text(t, res))

	var uploaded struct {
		ScheduleID int64  `json:"schedule_id"`
		Name       string `json:"name"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &uploaded))
	assert.Equal(t, "schedule", uploaded.Name, "name should default to the file name")
	return uploaded.ScheduleID
}

func TestMCPServerTools(t *testing.T) {
	s := newTestServer(t)
	id := uploadFixture(t, s)

	t.Run("list_schedules", func(t *testing.T) {
		res := callTool(t, s, "list_schedules", nil)
		require.False(t, res.IsError)

		var list []schema.ScheduleInfo
		require.NoError(t, json.Unmarshal([]byte(text(t, res)), &list))
		require.Len(t, list, 1)
		assert.Equal(t, id, list[0].ID)
	})

	t.Run("get_schedule_summary uses precomputed analytics", func(t *testing.T) {
		res := callTool(t, s, "get_schedule_summary", map[string]any{"schedule_id": float64(id)})
		require.False(t, res.IsError, text(t, res))

		var out struct {
			Path   schema.QueryPath        `json:"path"`
			Result schema.SummaryAnalytics `json:"result"`
		}
		require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
		assert.Equal(t, schema.FastPath, out.Path)
		assert.Equal(t, id, out.Result.ScheduleID)
		assert.Positive(t, out.Result.TotalBlocks)
	})

	t.Run("get_visibility_bins with another bin count", func(t *testing.T) {
		res := callTool(t, s, "get_visibility_bins", map[string]any{"schedule_id": float64(id), "bins": 3.0})
		require.False(t, res.IsError, text(t, res))
		assert.Contains(t, text(t, res), `"path": "slow"`)
	})

	t.Run("get_blocks with limit", func(t *testing.T) {
		res := callTool(t, s, "get_blocks", map[string]any{"schedule_id": float64(id), "view": "timeline", "limit": 1.0})
		require.False(t, res.IsError, text(t, res))

		var out struct {
			Result []schema.AnalyticsBlockRow `json:"result"`
		}
		require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
		assert.Len(t, out.Result, 1)
	})

	t.Run("compare_schedules with itself", func(t *testing.T) {
		res := callTool(t, s, "compare_schedules", map[string]any{"schedule_id": float64(id), "comparison_id": float64(id)})
		require.False(t, res.IsError, text(t, res))

		var out schema.ScheduleComparison
		require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
		assert.Len(t, out.CommonIDs, 3)
		assert.Empty(t, out.SchedulingChanges)
		assert.Equal(t, "schedule", out.ComparisonName)
	})

	t.Run("refresh_analytics", func(t *testing.T) {
		res := callTool(t, s, "refresh_analytics", map[string]any{"schedule_id": float64(id)})
		require.False(t, res.IsError, text(t, res))

		var event schema.RefreshEvent
		require.NoError(t, json.Unmarshal([]byte(text(t, res)), &event))
		assert.Equal(t, id, event.ScheduleID)
		assert.NotEmpty(t, event.RunID)
	})
}

func TestMCPServerHandlers_ValidationErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"missing schedule_id", "get_heatmap", map[string]any{}, "schedule_id must be a positive integer"},
		{"zero bins", "get_trends", map[string]any{"schedule_id": 1.0, "bins": 0.0}, "bins must be at least 1"},
		{"unknown view", "get_blocks", map[string]any{"schedule_id": 1.0, "view": "galaxy"}, "invalid analytics view"},
		{"unknown schedule", "get_conflicts", map[string]any{"schedule_id": 999.0}, "not_found"},
		{"missing schedule file", "upload_schedule", map[string]any{"schedule_path": "does-not-exist.json"}, "failed to read schedule"},
		{"refresh unknown schedule", "refresh_analytics", map[string]any{"schedule_id": 42.0}, "not_found"},
		{"missing comparison_id", "compare_schedules", map[string]any{"schedule_id": 1.0}, "comparison_id must be a positive integer"},
		{"compare unknown schedule", "compare_schedules", map[string]any{"schedule_id": 7.0, "comparison_id": 8.0}, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := callTool(t, s, tt.tool, tt.args)
			assert.True(t, res.IsError, "The response should indicate an error state")
			assert.Contains(t, text(t, res), tt.want)
		})
	}
}
