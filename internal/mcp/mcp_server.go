// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/skysched/core"
	"github.com/huangsam/skysched/internal/bridge"
	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/etl"
	"github.com/huangsam/skysched/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Deps are the services the tools run against.
type Deps struct {
	Store     contract.Store
	Queries   *core.QueryService
	Populator *etl.Populator
	Uploader  *core.Uploader
	Bridge    *bridge.Bridge
}

func viewNames() []string {
	out := make([]string, len(schema.AllAnalyticsViews))
	for i, v := range schema.AllAnalyticsViews {
		out[i] = string(v)
	}
	return out
}

// NewMCPServer initializes and configures the skysched MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"Skysched Analytics Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{baseCfg: baseCfg, deps: deps}
	scheduleID := mcp.WithNumber("schedule_id", mcp.Description("Id of a stored schedule."), mcp.Required())

	s.AddTool(mcp.NewTool("list_schedules",
		mcp.WithDescription("List stored schedules with block and scheduled counts."),
	), h.handleListSchedules)

	s.AddTool(mcp.NewTool("upload_schedule",
		mcp.WithDescription("Ingest a schedule JSON file, validate it and populate its analytics."),
		mcp.WithString("schedule_path", mcp.Description("Path to the schedule JSON file."), mcp.Required()),
		mcp.WithString("name", mcp.Description("Schedule name (defaults to the file name).")),
		mcp.WithString("possible_periods_path", mcp.Description("Path to a possible periods JSON file.")),
		mcp.WithString("dark_periods_path", mcp.Description("Path to a dark periods JSON file.")),
	), h.handleUploadSchedule)

	s.AddTool(mcp.NewTool("get_schedule_summary",
		mcp.WithDescription("Summary statistics of a schedule: counts, scheduling rate, priority and time aggregates, correlations and conflicts."),
		scheduleID,
	), h.handleGetSummary)

	s.AddTool(mcp.NewTool("get_priority_rates",
		mcp.WithDescription("Scheduling rate per integer priority."),
		scheduleID,
	), h.handleGetPriorityRates)

	s.AddTool(mcp.NewTool("get_visibility_bins",
		mcp.WithDescription("Scheduling rate per equal-width bin of total visibility hours."),
		scheduleID,
		mcp.WithNumber("bins", mcp.Description("Number of bins. Defaults to the configured count.")),
	), h.handleGetVisibilityBins)

	s.AddTool(mcp.NewTool("get_heatmap",
		mcp.WithDescription("Scheduling rate over a visibility by requested duration grid."),
		scheduleID,
	), h.handleGetHeatmap)

	s.AddTool(mcp.NewTool("get_trends",
		mcp.WithDescription("Binned and kernel-smoothed scheduling rate curves."),
		scheduleID,
		mcp.WithNumber("bins", mcp.Description("Number of bins. Defaults to the configured count.")),
	), h.handleGetTrends)

	s.AddTool(mcp.NewTool("get_conflicts",
		mcp.WithDescription("Pairs of scheduled blocks whose scheduled periods overlap."),
		scheduleID,
	), h.handleGetConflicts)

	s.AddTool(mcp.NewTool("get_blocks",
		mcp.WithDescription("Denormalized block rows with the columns a dashboard view needs."),
		scheduleID,
		mcp.WithString("view", mcp.Description("Analytics view. Defaults to 'insights'."), mcp.Enum(viewNames()...)),
		mcp.WithNumber("limit", mcp.Description("Limit the number of rows returned.")),
	), h.handleGetBlocks)

	s.AddTool(mcp.NewTool("compare_schedules",
		mcp.WithDescription("Match the blocks of two schedules by original id: set differences, blocks whose scheduled state flipped and per side priority, hours and gap statistics."),
		scheduleID,
		mcp.WithNumber("comparison_id", mcp.Description("Id of the stored schedule to compare against."), mcp.Required()),
	), h.handleCompareSchedules)

	s.AddTool(mcp.NewTool("refresh_analytics",
		mcp.WithDescription("Rebuild every analytics tier of a schedule."),
		scheduleID,
	), h.handleRefreshAnalytics)

	return s
}

// StartMCPServer serves the tools over stdio until the client disconnects.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, deps Deps) error {
	s := NewMCPServer(baseCfg, deps)
	return server.ServeStdio(s)
}
