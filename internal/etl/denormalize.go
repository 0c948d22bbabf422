package etl

import (
	"math"
	"sort"

	"github.com/huangsam/skysched/schema"
)

// maxBucketFraction keeps the maximum priority inside the top bucket.
const maxBucketFraction = 0.999999

// PriorityRange returns the minimum and maximum priority of the blocks. ok is false
// when there are no blocks.
func PriorityRange(blocks []schema.SchedulingBlock) (lo, hi float64, ok bool) {
	for i := range blocks {
		p := blocks[i].Priority
		if !ok {
			lo, hi, ok = p, p, true
			continue
		}
		lo, hi = math.Min(lo, p), math.Max(hi, p)
	}
	return lo, hi, ok
}

// PriorityBucket maps a priority to its quartile bucket 1..4 within [lo, hi].
// A zero or undefined range puts every block in bucket 1.
func PriorityBucket(priority, lo, hi float64) int {
	span := hi - lo
	if !(span > 0) || math.IsInf(span, 0) {
		return 1
	}
	frac := (priority - lo) / span
	frac = math.Max(0, math.Min(frac, maxBucketFraction))
	return 1 + int(math.Floor(schema.NumPriorityBuckets*frac))
}

// Denormalize flattens every block of the schedule into an analytics row, ordered by
// block id. It reads the schedule only.
func Denormalize(s *schema.Schedule) []schema.AnalyticsBlockRow {
	lo, hi, _ := PriorityRange(s.Blocks)

	rows := make([]schema.AnalyticsBlockRow, len(s.Blocks))
	for i := range s.Blocks {
		b := &s.Blocks[i]
		visibility, periods := b.VisibilitySummary()
		row := schema.AnalyticsBlockRow{
			ScheduleID:            s.ID,
			BlockID:               b.ID,
			OriginalBlockID:       b.OriginalID,
			TargetName:            b.Target.Name,
			RADeg:                 b.Target.RADeg,
			DecDeg:                b.Target.DecDeg,
			Priority:              b.Priority,
			PriorityBucket:        PriorityBucket(b.Priority, lo, hi),
			RequestedHours:        b.RequestedHours(),
			MinObservationHours:   b.MinObservationHours(),
			IsScheduled:           b.IsScheduled(),
			TotalVisibilityHours:  visibility,
			VisibilityPeriodCount: periods,
			IsImpossible:          visibility == 0,
		}
		if a := b.Constraint.Altitude; a != nil {
			row.MinAltitudeDeg = schema.FloatPtr(a.MinDeg)
			row.MaxAltitudeDeg = schema.FloatPtr(a.MaxDeg)
		}
		if a := b.Constraint.Azimuth; a != nil {
			row.MinAzimuthDeg = schema.FloatPtr(a.MinDeg)
			row.MaxAzimuthDeg = schema.FloatPtr(a.MaxDeg)
		}
		if w := b.Constraint.TimeWindow; w != nil {
			row.ConstraintStartMJD = schema.FloatPtr(w.Start)
			row.ConstraintStopMJD = schema.FloatPtr(w.Stop)
		}
		if row.IsScheduled {
			row.ScheduledStartMJD = schema.FloatPtr(b.ScheduledPeriod.Start)
			row.ScheduledStopMJD = schema.FloatPtr(b.ScheduledPeriod.Stop)
		}
		rows[i] = row
	}
	sortRows(rows)
	return rows
}

func sortRows(rows []schema.AnalyticsBlockRow) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].BlockID < rows[j].BlockID })
}
