package stats

import (
	"math"

	"github.com/huangsam/skysched/schema"
)

// minContributingWeight is the kernel weight above which a sample counts toward
// the confidence of an evaluation point.
const minContributingWeight = 0.01

// ComputeSmoothedTrend evaluates a Gaussian-kernel weighted average of the scheduled
// outcome at nPoints evenly spaced points spanning the observed range of the feature.
//
// Weights are normalised by the weight of the nearest sample before summing, which
// leaves the ratio unchanged and keeps a bandwidth near zero from underflowing: the
// estimate then tends to nearest-neighbour interpolation. A non-positive bandwidth is
// treated as that limit. Samples reports how many raw weights exceed 0.01.
func ComputeSmoothedTrend(samples []Sample, get Feature, bandwidth float64, nPoints int) []schema.SmoothedPoint {
	if nPoints < 1 {
		return nil
	}
	xs := make([]float64, 0, len(samples))
	ys := make([]float64, 0, len(samples))
	for _, s := range samples {
		x := get(s)
		if !finite(x) {
			continue
		}
		xs = append(xs, x)
		if s.Scheduled {
			ys = append(ys, 1)
		} else {
			ys = append(ys, 0)
		}
	}
	if len(xs) == 0 {
		return nil
	}

	xMin, xMax := xs[0], xs[0]
	for _, x := range xs[1:] {
		xMin, xMax = math.Min(xMin, x), math.Max(xMax, x)
	}
	if xMin == xMax || nPoints == 1 {
		return []schema.SmoothedPoint{kernelEstimate(xs, ys, xMin, bandwidth)}
	}

	step := (xMax - xMin) / float64(nPoints-1)
	out := make([]schema.SmoothedPoint, nPoints)
	for i := range out {
		x := xMin + float64(i)*step
		if i == nPoints-1 {
			x = xMax
		}
		out[i] = kernelEstimate(xs, ys, x, bandwidth)
	}
	return out
}

// kernelEstimate computes the smoothed rate at one evaluation point.
func kernelEstimate(xs, ys []float64, at, bandwidth float64) schema.SmoothedPoint {
	twoH2 := 2 * bandwidth * bandwidth
	if bandwidth <= 0 || math.IsNaN(bandwidth) {
		twoH2 = 0
	}

	sqMin := math.Inf(1)
	for _, x := range xs {
		d := x - at
		sqMin = math.Min(sqMin, d*d)
	}

	var num, den float64
	contributing := 0
	for i, x := range xs {
		d := x - at
		sq := d * d

		raw := 1.0
		if sq > 0 {
			raw = math.Exp(-sq / twoH2)
		}
		if raw > minContributingWeight {
			contributing++
		}

		w := 1.0
		if sq > sqMin {
			w = math.Exp(-(sq - sqMin) / twoH2)
		}
		num += w * ys[i]
		den += w
	}

	if den == 0 {
		return schema.SmoothedPoint{X: at, Rate: 0, Samples: 0}
	}
	return schema.SmoothedPoint{X: at, Rate: num / den, Samples: contributing}
}

// AutoBandwidth returns a tenth of the feature range, or 1 when the range is empty.
func AutoBandwidth(samples []Sample, get Feature) float64 {
	first := true
	var lo, hi float64
	for _, s := range samples {
		v := get(s)
		if !finite(v) {
			continue
		}
		if first {
			lo, hi, first = v, v, false
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if first || hi == lo {
		return 1
	}
	return (hi - lo) / 10
}
