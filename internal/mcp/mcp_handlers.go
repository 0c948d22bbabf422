package mcp

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/huangsam/skysched/core"
	"github.com/huangsam/skysched/internal/bridge"
	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/ingest"
	"github.com/huangsam/skysched/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	deps    Deps
}

// answered is the JSON shape of a query tool result.
type answered[T any] struct {
	Path   schema.QueryPath `json:"path"`
	Result T                `json:"result"`
}

func textResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

func failure(action string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", action, bridge.Translate(err)))
}

func scheduleIDArg(request mcp.CallToolRequest) (int64, error) {
	id := request.GetInt("schedule_id", 0)
	if id < 1 {
		return 0, fmt.Errorf("schedule_id must be a positive integer")
	}
	return int64(id), nil
}

// query runs one query service call through the bridge.
func query[T any](ctx context.Context, h *toolHandler, request mcp.CallToolRequest, action string,
	fn func(ctx context.Context, id int64) (T, schema.QueryPath, error),
) (*mcp.CallToolResult, error) {
	id, err := scheduleIDArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := bridge.Call(ctx, h.deps.Bridge, func(ctx context.Context) (answered[T], error) {
		v, path, err := fn(ctx, id)
		return answered[T]{Path: path, Result: v}, err
	})
	if err != nil {
		return failure(action, err), nil
	}
	return textResult(res)
}

func (h *toolHandler) binsArg(request mcp.CallToolRequest) (int, error) {
	n := request.GetInt("bins", h.baseCfg.VisibilityBins)
	if n < 1 {
		return 0, fmt.Errorf("bins must be at least 1")
	}
	return n, nil
}

func (h *toolHandler) handleListSchedules(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := bridge.Call(ctx, h.deps.Bridge, h.deps.Store.ListSchedules)
	if err != nil {
		return failure("listing schedules", err), nil
	}
	return textResult(list)
}

func (h *toolHandler) handleUploadSchedule(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	schedulePath := request.GetString("schedule_path", "")
	if schedulePath == "" {
		return mcp.NewToolResultError("schedule_path is required"), nil
	}
	in, err := ingest.LoadInput(request.GetString("name", ""), schedulePath,
		request.GetString("possible_periods_path", ""),
		request.GetString("dark_periods_path", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := bridge.Call(ctx, h.deps.Bridge, func(ctx context.Context) (*core.UploadResult, error) {
		return h.deps.Uploader.Upload(ctx, in)
	})
	if err != nil {
		return failure("upload", err), nil
	}
	return textResult(res)
}

func (h *toolHandler) handleGetSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return query(ctx, h, request, "summary", h.deps.Queries.Summary)
}

func (h *toolHandler) handleGetPriorityRates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return query(ctx, h, request, "priority rates", h.deps.Queries.PriorityRates)
}

func (h *toolHandler) handleGetVisibilityBins(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nBins, err := h.binsArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return query(ctx, h, request, "visibility bins", func(ctx context.Context, id int64) ([]schema.RateBin, schema.QueryPath, error) {
		return h.deps.Queries.VisibilityBins(ctx, id, nBins)
	})
}

func (h *toolHandler) handleGetHeatmap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return query(ctx, h, request, "heatmap", h.deps.Queries.Heatmap)
}

func (h *toolHandler) handleGetTrends(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nBins, err := h.binsArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return query(ctx, h, request, "trends", func(ctx context.Context, id int64) (schema.Trends, schema.QueryPath, error) {
		return h.deps.Queries.Trends(ctx, id, nBins)
	})
}

func (h *toolHandler) handleGetConflicts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return query(ctx, h, request, "conflicts", h.deps.Queries.Conflicts)
}

func (h *toolHandler) handleGetBlocks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view, err := schema.ParseAnalyticsView(request.GetString("view", string(schema.InsightsView)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := request.GetInt("limit", 0)
	return query(ctx, h, request, "blocks", func(ctx context.Context, id int64) ([]schema.AnalyticsBlockRow, schema.QueryPath, error) {
		rows, path, err := h.deps.Queries.Blocks(ctx, id, view)
		if limit > 0 && len(rows) > limit {
			rows = rows[:limit]
		}
		return rows, path, err
	})
}

func (h *toolHandler) handleCompareSchedules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := scheduleIDArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	comparisonID := request.GetInt("comparison_id", 0)
	if comparisonID < 1 {
		return mcp.NewToolResultError("comparison_id must be a positive integer"), nil
	}
	res, err := bridge.Call(ctx, h.deps.Bridge, func(ctx context.Context) (schema.ScheduleComparison, error) {
		return h.deps.Queries.Compare(ctx, id, int64(comparisonID))
	})
	if err != nil {
		return failure("compare", err), nil
	}
	return textResult(res)
}

func (h *toolHandler) handleRefreshAnalytics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := scheduleIDArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	event, err := bridge.Call(ctx, h.deps.Bridge, func(ctx context.Context) (schema.RefreshEvent, error) {
		return h.deps.Populator.Refresh(ctx, id)
	})
	if err != nil {
		return failure("refresh", err), nil
	}
	return textResult(event)
}
