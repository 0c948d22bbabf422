package stats

import (
	"math"
	"sort"

	"github.com/huangsam/skysched/schema"
)

// FindConflicts reports every pair of scheduled samples whose scheduled periods
// overlap. All blocks of a schedule compete for the same telescope time, so any
// overlap is a conflict. Periods that only touch at an endpoint do not conflict.
func FindConflicts(samples []Sample) []schema.Conflict {
	// 1. Keep scheduled samples with a valid period
	scheduled := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if s.Scheduled && s.ScheduledPeriod != nil && s.ScheduledPeriod.Valid() {
			scheduled = append(scheduled, s)
		}
	}

	// 2. Sort by start, then stop, then id for a stable report
	sort.Slice(scheduled, func(i, j int) bool {
		a, b := scheduled[i].ScheduledPeriod, scheduled[j].ScheduledPeriod
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.Stop != b.Stop {
			return a.Stop < b.Stop
		}
		return scheduled[i].ID < scheduled[j].ID
	})

	// 3. Sweep: only later starts before the current stop can overlap
	var out []schema.Conflict
	for i := range scheduled {
		a := scheduled[i]
		for j := i + 1; j < len(scheduled); j++ {
			b := scheduled[j]
			if b.ScheduledPeriod.Start >= a.ScheduledPeriod.Stop {
				break
			}
			start := b.ScheduledPeriod.Start
			stop := math.Min(a.ScheduledPeriod.Stop, b.ScheduledPeriod.Stop)
			overlap := stop - start
			out = append(out, schema.Conflict{
				BlockA:       a.ID,
				BlockB:       b.ID,
				OriginalA:    a.OriginalID,
				OriginalB:    b.OriginalID,
				OverlapStart: start,
				OverlapStop:  stop,
				Overlap:      overlap,
				OverlapHours: overlap * schema.HoursPerDay,
			})
		}
	}
	return out
}
