package schema

import "fmt"

// Block analytics column names, in storage order.
const (
	ColScheduleID            = "schedule_id"
	ColBlockID               = "block_id"
	ColOriginalBlockID       = "original_block_id"
	ColTargetName            = "target_name"
	ColRADeg                 = "ra_deg"
	ColDecDeg                = "dec_deg"
	ColPriority              = "priority"
	ColPriorityBucket        = "priority_bucket"
	ColRequestedHours        = "requested_hours"
	ColMinObservationHours   = "min_observation_hours"
	ColMinAltitudeDeg        = "min_altitude_deg"
	ColMaxAltitudeDeg        = "max_altitude_deg"
	ColMinAzimuthDeg         = "min_azimuth_deg"
	ColMaxAzimuthDeg         = "max_azimuth_deg"
	ColConstraintStartMJD    = "constraint_start_mjd"
	ColConstraintStopMJD     = "constraint_stop_mjd"
	ColIsScheduled           = "is_scheduled"
	ColScheduledStartMJD     = "scheduled_start_mjd"
	ColScheduledStopMJD      = "scheduled_stop_mjd"
	ColTotalVisibilityHours  = "total_visibility_hours"
	ColVisibilityPeriodCount = "visibility_period_count"
	ColIsImpossible          = "is_impossible"
)

// BlockRowColumns lists every block analytics column.
var BlockRowColumns = []string{
	ColScheduleID, ColBlockID, ColOriginalBlockID, ColTargetName, ColRADeg, ColDecDeg,
	ColPriority, ColPriorityBucket, ColRequestedHours, ColMinObservationHours,
	ColMinAltitudeDeg, ColMaxAltitudeDeg, ColMinAzimuthDeg, ColMaxAzimuthDeg,
	ColConstraintStartMJD, ColConstraintStopMJD, ColIsScheduled, ColScheduledStartMJD,
	ColScheduledStopMJD, ColTotalVisibilityHours, ColVisibilityPeriodCount, ColIsImpossible,
}

var identityColumns = []string{ColScheduleID, ColBlockID, ColOriginalBlockID}

var viewColumns = map[AnalyticsView][]string{
	SkyMapView: {
		ColTargetName, ColRADeg, ColDecDeg, ColPriority, ColPriorityBucket,
		ColIsScheduled, ColScheduledStartMJD, ColScheduledStopMJD,
	},
	DistributionView: {
		ColPriority, ColPriorityBucket, ColTotalVisibilityHours, ColRequestedHours,
		ColIsScheduled, ColIsImpossible,
	},
	TimelineView: {
		ColPriority, ColIsScheduled, ColScheduledStartMJD, ColScheduledStopMJD,
		ColTotalVisibilityHours, ColRequestedHours,
	},
	TrendsView: {
		ColPriority, ColTotalVisibilityHours, ColRequestedHours, ColIsScheduled,
	},
}

// Columns returns the block analytics columns the view needs.
// Unknown views and the insights view get every column.
func (v AnalyticsView) Columns() []string {
	cols, ok := viewColumns[v]
	if !ok {
		return BlockRowColumns
	}
	out := make([]string, 0, len(identityColumns)+len(cols))
	out = append(out, identityColumns...)
	return append(out, cols...)
}

// ParseAnalyticsView validates a view name.
func ParseAnalyticsView(s string) (AnalyticsView, error) {
	for _, v := range AllAnalyticsViews {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid analytics view %q", s)
}

// FieldPtr returns a pointer to the row field backing the given column, or nil.
func (r *AnalyticsBlockRow) FieldPtr(col string) any {
	switch col {
	case ColScheduleID:
		return &r.ScheduleID
	case ColBlockID:
		return &r.BlockID
	case ColOriginalBlockID:
		return &r.OriginalBlockID
	case ColTargetName:
		return &r.TargetName
	case ColRADeg:
		return &r.RADeg
	case ColDecDeg:
		return &r.DecDeg
	case ColPriority:
		return &r.Priority
	case ColPriorityBucket:
		return &r.PriorityBucket
	case ColRequestedHours:
		return &r.RequestedHours
	case ColMinObservationHours:
		return &r.MinObservationHours
	case ColMinAltitudeDeg:
		return &r.MinAltitudeDeg
	case ColMaxAltitudeDeg:
		return &r.MaxAltitudeDeg
	case ColMinAzimuthDeg:
		return &r.MinAzimuthDeg
	case ColMaxAzimuthDeg:
		return &r.MaxAzimuthDeg
	case ColConstraintStartMJD:
		return &r.ConstraintStartMJD
	case ColConstraintStopMJD:
		return &r.ConstraintStopMJD
	case ColIsScheduled:
		return &r.IsScheduled
	case ColScheduledStartMJD:
		return &r.ScheduledStartMJD
	case ColScheduledStopMJD:
		return &r.ScheduledStopMJD
	case ColTotalVisibilityHours:
		return &r.TotalVisibilityHours
	case ColVisibilityPeriodCount:
		return &r.VisibilityPeriodCount
	case ColIsImpossible:
		return &r.IsImpossible
	}
	return nil
}

// Values returns the row values in BlockRowColumns order.
func (r *AnalyticsBlockRow) Values() []any {
	out := make([]any, len(BlockRowColumns))
	for i, col := range BlockRowColumns {
		out[i] = derefField(r.FieldPtr(col))
	}
	return out
}

// Project returns a copy of the row keeping only the given columns.
func (r *AnalyticsBlockRow) Project(cols []string) AnalyticsBlockRow {
	var out AnalyticsBlockRow
	for _, col := range cols {
		switch dst := out.FieldPtr(col).(type) {
		case *int64:
			*dst = *r.FieldPtr(col).(*int64)
		case *int:
			*dst = *r.FieldPtr(col).(*int)
		case *string:
			*dst = *r.FieldPtr(col).(*string)
		case *float64:
			*dst = *r.FieldPtr(col).(*float64)
		case *bool:
			*dst = *r.FieldPtr(col).(*bool)
		case **float64:
			if src := *r.FieldPtr(col).(**float64); src != nil {
				v := *src
				*dst = &v
			}
		}
	}
	return out
}

func derefField(p any) any {
	switch v := p.(type) {
	case *int64:
		return *v
	case *int:
		return *v
	case *string:
		return *v
	case *float64:
		return *v
	case *bool:
		return *v
	case **float64:
		if *v == nil {
			return nil
		}
		return **v
	}
	return nil
}

// FloatPtr returns a pointer to a copy of v.
func FloatPtr(v float64) *float64 {
	return &v
}
