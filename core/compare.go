package core

import (
	"context"

	"github.com/huangsam/skysched/internal/stats"
	"github.com/huangsam/skysched/schema"
	"golang.org/x/sync/errgroup"
)

// compareView carries every column the comparison reads: ids, priority, requested
// hours, scheduled flag and scheduled period.
const compareView = schema.TimelineView

// Compare matches the blocks of two stored schedules by original block id. Each side
// is read through Blocks, so stored analytics answer when present and the normalized
// schedule is recomputed otherwise.
func (q *QueryService) Compare(ctx context.Context, currentID, comparisonID int64) (schema.ScheduleComparison, error) {
	var (
		currentRows, comparisonRows []schema.AnalyticsBlockRow
		currentPath, comparisonPath schema.QueryPath
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		currentRows, currentPath, err = q.Blocks(gctx, currentID, compareView)
		return err
	})
	g.Go(func() (err error) {
		comparisonRows, comparisonPath, err = q.Blocks(gctx, comparisonID, compareView)
		return err
	})
	if err := g.Wait(); err != nil {
		return schema.ScheduleComparison{}, err
	}

	out := stats.CompareSchedules(stats.FromRows(currentRows), stats.FromRows(comparisonRows))
	out.CurrentID, out.ComparisonID = currentID, comparisonID
	out.CurrentPath, out.ComparisonPath = currentPath, comparisonPath

	list, err := q.store.ListSchedules(ctx)
	if err != nil {
		return schema.ScheduleComparison{}, err
	}
	for _, s := range list {
		switch s.ID {
		case currentID:
			out.CurrentName = s.Name
		case comparisonID:
			out.ComparisonName = s.Name
		}
	}

	q.log.Debug().
		Int64("current_id", currentID).
		Int64("comparison_id", comparisonID).
		Int("common", len(out.CommonIDs)).
		Int("changes", len(out.SchedulingChanges)).
		Msg("schedules compared")
	return out, nil
}
