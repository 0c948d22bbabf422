package stats

import (
	"fmt"
	"math"

	"github.com/huangsam/skysched/schema"
)

// ComputeByBins splits the feature range into nBins equal-width bins and returns the
// non-empty ones. The maximum value falls into the last bin. A zero range gives a
// single bin. Non-finite values are skipped.
func ComputeByBins(samples []Sample, get Feature, nBins int, labelPrefix string) []schema.RateBin {
	if nBins < 1 {
		nBins = 1
	}

	// 1. Collect finite values and their range
	values := make([]float64, 0, len(samples))
	scheduled := make([]bool, 0, len(samples))
	for _, s := range samples {
		v := get(s)
		if !finite(v) {
			continue
		}
		values = append(values, v)
		scheduled = append(scheduled, s.Scheduled)
	}
	if len(values) == 0 {
		return nil
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}

	// 2. Degenerate range: everything in one bin
	if minVal == maxVal {
		count, sched := len(values), countTrue(scheduled)
		return []schema.RateBin{{
			BinIndex:       0,
			Label:          fmt.Sprintf("%s[%.1f]", prefix(labelPrefix), minVal),
			MinValue:       minVal,
			MaxValue:       maxVal,
			MidValue:       minVal,
			TotalCount:     count,
			ScheduledCount: sched,
			SchedulingRate: float64(sched) / float64(count),
		}}
	}

	// 3. Assign values to bins
	width := (maxVal - minVal) / float64(nBins)
	totals := make([]int, nBins)
	scheds := make([]int, nBins)
	for i, v := range values {
		idx := binIndex(v, minVal, width, nBins)
		totals[idx]++
		if scheduled[i] {
			scheds[idx]++
		}
	}

	// 4. Emit non-empty bins
	var out []schema.RateBin
	for i := 0; i < nBins; i++ {
		if totals[i] == 0 {
			continue
		}
		start := minVal + float64(i)*width
		end := start + width
		last := i == nBins-1
		if last {
			end = maxVal
		}
		out = append(out, schema.RateBin{
			BinIndex:       i,
			Label:          binLabel(labelPrefix, start, end, last),
			MinValue:       start,
			MaxValue:       end,
			MidValue:       (start + end) / 2,
			TotalCount:     totals[i],
			ScheduledCount: scheds[i],
			SchedulingRate: float64(scheds[i]) / float64(totals[i]),
		})
	}
	return out
}

// binIndex maps v into [0, nBins) for an equal-width grid starting at minVal.
func binIndex(v, minVal, width float64, nBins int) int {
	if width <= 0 {
		return 0
	}
	idx := int(math.Floor((v - minVal) / width))
	if idx < 0 {
		return 0
	}
	if idx >= nBins {
		return nBins - 1
	}
	return idx
}

func binLabel(labelPrefix string, start, end float64, last bool) string {
	closing := ")"
	if last {
		closing = "]"
	}
	return fmt.Sprintf("%s[%.1f, %.1f%s", prefix(labelPrefix), start, end, closing)
}

func prefix(p string) string {
	if p == "" {
		return ""
	}
	return p + " "
}

func countTrue(values []bool) int {
	n := 0
	for _, v := range values {
		if v {
			n++
		}
	}
	return n
}
