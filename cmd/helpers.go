package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/huangsam/skysched/internal/bridge"
	"github.com/huangsam/skysched/internal/outwriter"
	"github.com/huangsam/skysched/schema"
)

// parseScheduleID reads a schedule id argument.
func parseScheduleID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid schedule id %q", arg)
	}
	return id, nil
}

type answer[T any] struct {
	value T
	path  schema.QueryPath
}

// callQuery runs one query service call through the bridge.
func callQuery[T any](fn func(ctx context.Context) (T, schema.QueryPath, error)) (T, schema.QueryPath, error) {
	a, err := bridge.Call(rootCtx, app.bridge, func(ctx context.Context) (answer[T], error) {
		v, path, err := fn(ctx)
		return answer[T]{value: v, path: path}, err
	})
	return a.value, a.path, err
}

// write prints a report with the configured output settings.
func write(r outwriter.Report) error {
	return outwriter.Write(r, cfg)
}
