package stats

import (
	"sort"
	"strconv"

	"github.com/huangsam/skysched/schema"
)

// compareKey identifies a block across schedules by its original id, falling back to
// the stored id when the source carried none.
func compareKey(s Sample) string {
	if s.OriginalID != "" {
		return s.OriginalID
	}
	return strconv.FormatInt(s.ID, 10)
}

// ComputeCompareStats summarizes the scheduled samples: counts, priority sum, mean and
// median, requested hours and the gaps between consecutive scheduled periods.
func ComputeCompareStats(samples []Sample) schema.CompareStats {
	var st schema.CompareStats
	priorities := make([]float64, 0, len(samples))
	for _, s := range samples {
		if !s.Scheduled {
			st.UnscheduledCount++
			continue
		}
		st.ScheduledCount++
		st.TotalPriority += s.Priority
		st.TotalHours += s.RequestedHours
		priorities = append(priorities, s.Priority)
	}
	if st.ScheduledCount > 0 {
		st.MeanPriority = st.TotalPriority / float64(st.ScheduledCount)
		st.MedianPriority = Median(priorities)
	}

	if gaps := ScheduleGaps(samples); len(gaps) > 0 {
		count := len(gaps)
		var sum float64
		for _, g := range gaps {
			sum += g
		}
		mean := sum / float64(count)
		median := Median(gaps)
		st.GapCount = &count
		st.GapMeanHours = &mean
		st.GapMedianHours = &median
	}
	return st
}

// ScheduleGaps returns the positive idle hours between consecutive scheduled periods,
// ordered by period start. Overlapping or touching neighbours leave no gap.
func ScheduleGaps(samples []Sample) []float64 {
	periods := make([]schema.Period, 0, len(samples))
	for _, s := range samples {
		if s.Scheduled && s.ScheduledPeriod != nil && s.ScheduledPeriod.Valid() {
			periods = append(periods, *s.ScheduledPeriod)
		}
	}
	sort.Slice(periods, func(i, j int) bool {
		if periods[i].Start != periods[j].Start {
			return periods[i].Start < periods[j].Start
		}
		return periods[i].Stop < periods[j].Stop
	})

	var gaps []float64
	for i := 1; i < len(periods); i++ {
		if d := periods[i].Start - periods[i-1].Stop; d > 0 {
			gaps = append(gaps, d*schema.HoursPerDay)
		}
	}
	return gaps
}

// CompareSchedules matches blocks of two schedules by original id. It reports the ids
// only one side has, the ids both share and every shared block whose scheduled state
// flipped. Ids and changes are sorted so the result is deterministic.
func CompareSchedules(current, comparison []Sample) schema.ScheduleComparison {
	currentByKey := make(map[string]Sample, len(current))
	for _, s := range current {
		currentByKey[compareKey(s)] = s
	}
	comparisonByKey := make(map[string]Sample, len(comparison))
	for _, s := range comparison {
		comparisonByKey[compareKey(s)] = s
	}

	out := schema.ScheduleComparison{
		CurrentBlocks:     len(current),
		ComparisonBlocks:  len(comparison),
		CurrentStats:      ComputeCompareStats(current),
		ComparisonStats:   ComputeCompareStats(comparison),
		CommonIDs:         []string{},
		OnlyInCurrent:     []string{},
		OnlyInComparison:  []string{},
		SchedulingChanges: []schema.SchedulingChange{},
	}

	for key, cur := range currentByKey {
		cmp, ok := comparisonByKey[key]
		if !ok {
			out.OnlyInCurrent = append(out.OnlyInCurrent, key)
			continue
		}
		out.CommonIDs = append(out.CommonIDs, key)
		switch {
		case !cur.Scheduled && cmp.Scheduled:
			out.SchedulingChanges = append(out.SchedulingChanges, schema.SchedulingChange{
				BlockID: key, Priority: cmp.Priority, ChangeType: schema.NewlyScheduled,
			})
		case cur.Scheduled && !cmp.Scheduled:
			out.SchedulingChanges = append(out.SchedulingChanges, schema.SchedulingChange{
				BlockID: key, Priority: cur.Priority, ChangeType: schema.NewlyUnscheduled,
			})
		}
	}
	for key := range comparisonByKey {
		if _, ok := currentByKey[key]; !ok {
			out.OnlyInComparison = append(out.OnlyInComparison, key)
		}
	}

	sort.Strings(out.CommonIDs)
	sort.Strings(out.OnlyInCurrent)
	sort.Strings(out.OnlyInComparison)
	sort.Slice(out.SchedulingChanges, func(i, j int) bool {
		a, b := out.SchedulingChanges[i], out.SchedulingChanges[j]
		if a.ChangeType != b.ChangeType {
			return a.ChangeType < b.ChangeType
		}
		return a.BlockID < b.BlockID
	})
	return out
}
