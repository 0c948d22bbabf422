package stats

import (
	"context"

	"github.com/huangsam/skysched/schema"
	"golang.org/x/sync/errgroup"
)

// TrendOptions controls ComputeTrends.
type TrendOptions struct {
	Bins      int
	Points    int
	Bandwidth float64 // 0 picks AutoBandwidth per feature
}

// ComputeTrends computes the curves of the trends view. The independent curves are
// evaluated concurrently.
func ComputeTrends(ctx context.Context, samples []Sample, opts TrendOptions) (schema.Trends, error) {
	var out schema.Trends
	g, gctx := errgroup.WithContext(ctx)

	bandwidth := func(get Feature) float64 {
		if opts.Bandwidth > 0 {
			return opts.Bandwidth
		}
		return AutoBandwidth(samples, get)
	}

	g.Go(func() error {
		out.Metrics = ComputeMetrics(samples)
		out.ByPriority = ComputeByPriority(samples)
		return gctx.Err()
	})
	g.Go(func() error {
		out.ByVisibility = ComputeByBins(samples, Visibility, opts.Bins, "Visibility")
		return gctx.Err()
	})
	g.Go(func() error {
		out.ByRequested = ComputeByBins(samples, Requested, opts.Bins, "Requested")
		return gctx.Err()
	})
	g.Go(func() error {
		out.SmoothedVisibility = ComputeSmoothedTrend(samples, Visibility, bandwidth(Visibility), opts.Points)
		return gctx.Err()
	})
	g.Go(func() error {
		out.SmoothedRequested = ComputeSmoothedTrend(samples, Requested, bandwidth(Requested), opts.Points)
		return gctx.Err()
	})

	if err := g.Wait(); err != nil {
		return schema.Trends{}, err
	}
	return out, nil
}
