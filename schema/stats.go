package schema

// ScheduleMetrics are the one-pass aggregate metrics of a set of blocks.
type ScheduleMetrics struct {
	TotalCount          int     `json:"total_count"`
	ScheduledCount      int     `json:"scheduled_count"`
	ZeroVisibilityCount int     `json:"zero_visibility_count"`
	SchedulingRate      float64 `json:"scheduling_rate"`
	PriorityMin         float64 `json:"priority_min"`
	PriorityMax         float64 `json:"priority_max"`
	PriorityMean        float64 `json:"priority_mean"`
	VisibilityMin       float64 `json:"visibility_min"`
	VisibilityMax       float64 `json:"visibility_max"`
	VisibilityMean      float64 `json:"visibility_mean"`
	RequestedMin        float64 `json:"requested_min"`
	RequestedMax        float64 `json:"requested_max"`
	RequestedMean       float64 `json:"requested_mean"`
}

// SmoothedPoint is one evaluation point of a kernel-smoothed scheduling rate curve.
type SmoothedPoint struct {
	X       float64 `json:"x"`
	Rate    float64 `json:"rate"`
	Samples int     `json:"samples"`
}

// Conflict is a pair of scheduled blocks whose scheduled periods overlap.
type Conflict struct {
	BlockA       int64   `json:"block_a"`
	BlockB       int64   `json:"block_b"`
	OriginalA    string  `json:"original_a"`
	OriginalB    string  `json:"original_b"`
	OverlapStart float64 `json:"overlap_start"`
	OverlapStop  float64 `json:"overlap_stop"`
	Overlap      float64 `json:"overlap"`
	OverlapHours float64 `json:"overlap_hours"`
}

// Trends bundles the curves behind the trends view.
type Trends struct {
	Metrics            ScheduleMetrics   `json:"metrics"`
	ByPriority         []PriorityRateBin `json:"by_priority"`
	ByVisibility       []RateBin         `json:"by_visibility"`
	ByRequested        []RateBin         `json:"by_requested"`
	SmoothedVisibility []SmoothedPoint   `json:"smoothed_visibility"`
	SmoothedRequested  []SmoothedPoint   `json:"smoothed_requested"`
}
