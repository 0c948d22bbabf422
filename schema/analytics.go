package schema

// AnalyticsBlockRow is the denormalized, precomputed view of one scheduling block.
// Nullable columns use pointers.
type AnalyticsBlockRow struct {
	ScheduleID            int64    `json:"schedule_id"`
	BlockID               int64    `json:"block_id"`
	OriginalBlockID       string   `json:"original_block_id"`
	TargetName            string   `json:"target_name"`
	RADeg                 float64  `json:"ra_deg"`
	DecDeg                float64  `json:"dec_deg"`
	Priority              float64  `json:"priority"`
	PriorityBucket        int      `json:"priority_bucket"`
	RequestedHours        float64  `json:"requested_hours"`
	MinObservationHours   float64  `json:"min_observation_hours"`
	MinAltitudeDeg        *float64 `json:"min_altitude_deg,omitempty"`
	MaxAltitudeDeg        *float64 `json:"max_altitude_deg,omitempty"`
	MinAzimuthDeg         *float64 `json:"min_azimuth_deg,omitempty"`
	MaxAzimuthDeg         *float64 `json:"max_azimuth_deg,omitempty"`
	ConstraintStartMJD    *float64 `json:"constraint_start_mjd,omitempty"`
	ConstraintStopMJD     *float64 `json:"constraint_stop_mjd,omitempty"`
	IsScheduled           bool     `json:"is_scheduled"`
	ScheduledStartMJD     *float64 `json:"scheduled_start_mjd,omitempty"`
	ScheduledStopMJD      *float64 `json:"scheduled_stop_mjd,omitempty"`
	TotalVisibilityHours  float64  `json:"total_visibility_hours"`
	VisibilityPeriodCount int      `json:"visibility_period_count"`
	IsImpossible          bool     `json:"is_impossible"`
}

// ScheduledPeriod returns the scheduled period of the row when both ends are present.
func (r *AnalyticsBlockRow) ScheduledPeriod() (Period, bool) {
	if r.ScheduledStartMJD == nil || r.ScheduledStopMJD == nil {
		return Period{}, false
	}
	return Period{Start: *r.ScheduledStartMJD, Stop: *r.ScheduledStopMJD}, true
}

// SummaryAnalytics is the schedule-level aggregate row.
type SummaryAnalytics struct {
	ScheduleID int64 `json:"schedule_id"`

	TotalBlocks       int     `json:"total_blocks"`
	ScheduledBlocks   int     `json:"scheduled_blocks"`
	UnscheduledBlocks int     `json:"unscheduled_blocks"`
	ImpossibleBlocks  int     `json:"impossible_blocks"`
	SchedulingRate    float64 `json:"scheduling_rate"`

	PriorityMin             float64 `json:"priority_min"`
	PriorityMax             float64 `json:"priority_max"`
	PriorityMean            float64 `json:"priority_mean"`
	PriorityMedian          float64 `json:"priority_median"`
	PriorityScheduledMean   float64 `json:"priority_scheduled_mean"`
	PriorityUnscheduledMean float64 `json:"priority_unscheduled_mean"`

	VisibilityTotalHours float64 `json:"visibility_total_hours"`
	VisibilityMinHours   float64 `json:"visibility_min_hours"`
	VisibilityMaxHours   float64 `json:"visibility_max_hours"`
	VisibilityMeanHours  float64 `json:"visibility_mean_hours"`

	RequestedTotalHours float64 `json:"requested_total_hours"`
	RequestedMinHours   float64 `json:"requested_min_hours"`
	RequestedMaxHours   float64 `json:"requested_max_hours"`
	RequestedMeanHours  float64 `json:"requested_mean_hours"`

	ScheduledTotalHours float64 `json:"scheduled_total_hours"`

	CorrPriorityVisibility  float64 `json:"corr_priority_visibility"`
	CorrPriorityRequested   float64 `json:"corr_priority_requested"`
	CorrVisibilityRequested float64 `json:"corr_visibility_requested"`

	ConflictCount int `json:"conflict_count"`

	// Bin counts the bins were computed with.
	VisibilityBinCount int `json:"visibility_bin_count"`
	HeatmapBinCount    int `json:"heatmap_bin_count"`
}

// Metrics returns the aggregate metrics stored in the summary row.
func (s *SummaryAnalytics) Metrics() ScheduleMetrics {
	return ScheduleMetrics{
		TotalCount:          s.TotalBlocks,
		ScheduledCount:      s.ScheduledBlocks,
		ZeroVisibilityCount: s.ImpossibleBlocks,
		SchedulingRate:      s.SchedulingRate,
		PriorityMin:         s.PriorityMin,
		PriorityMax:         s.PriorityMax,
		PriorityMean:        s.PriorityMean,
		VisibilityMin:       s.VisibilityMinHours,
		VisibilityMax:       s.VisibilityMaxHours,
		VisibilityMean:      s.VisibilityMeanHours,
		RequestedMin:        s.RequestedMinHours,
		RequestedMax:        s.RequestedMaxHours,
		RequestedMean:       s.RequestedMeanHours,
	}
}

// PriorityRateBin aggregates blocks sharing one rounded integer priority.
type PriorityRateBin struct {
	PriorityValue       int     `json:"priority_value"`
	TotalCount          int     `json:"total_count"`
	ScheduledCount      int     `json:"scheduled_count"`
	SchedulingRate      float64 `json:"scheduling_rate"`
	VisibilityMeanHours float64 `json:"visibility_mean_hours"`
	RequestedMeanHours  float64 `json:"requested_mean_hours"`
}

// RateBin is one non-empty equal-width bin with its empirical scheduling rate.
type RateBin struct {
	BinIndex       int     `json:"bin_index"`
	Label          string  `json:"label"`
	MinValue       float64 `json:"min_value"`
	MaxValue       float64 `json:"max_value"`
	MidValue       float64 `json:"mid_value"`
	TotalCount     int     `json:"total_count"`
	ScheduledCount int     `json:"scheduled_count"`
	SchedulingRate float64 `json:"scheduling_rate"`
}

// HeatmapBin is one non-empty cell of a two-dimensional equal-width grid.
type HeatmapBin struct {
	XIndex         int     `json:"x_index"`
	YIndex         int     `json:"y_index"`
	XMean          float64 `json:"x_mean"`
	YMean          float64 `json:"y_mean"`
	TotalCount     int     `json:"total_count"`
	ScheduledCount int     `json:"scheduled_count"`
	SchedulingRate float64 `json:"scheduling_rate"`
}

// SummaryBundle is everything the summary phase writes for one schedule.
type SummaryBundle struct {
	Summary        SummaryAnalytics  `json:"summary"`
	PriorityRates  []PriorityRateBin `json:"priority_rates"`
	VisibilityBins []RateBin         `json:"visibility_bins"`
	HeatmapBins    []HeatmapBin      `json:"heatmap_bins"`
}

// StoreStatus holds row counts per table and backend information.
type StoreStatus struct {
	Backend   DatabaseBackend  `json:"backend"`
	Connected bool             `json:"connected"`
	Tables    map[string]int64 `json:"tables"`
}

// RefreshEvent describes one completed analytics refresh.
type RefreshEvent struct {
	RunID      string  `json:"run_id"`
	ScheduleID int64   `json:"schedule_id"`
	BlockRows  int     `json:"block_rows"`
	DurationMs float64 `json:"duration_ms"`
}
