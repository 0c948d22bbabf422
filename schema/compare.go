package schema

// ChangeType says how a block common to both schedules changed state.
type ChangeType string

// Scheduling state changes between the current and the comparison schedule.
const (
	NewlyScheduled   ChangeType = "newly_scheduled"
	NewlyUnscheduled ChangeType = "newly_unscheduled"
)

// CompareStats summarizes the scheduled blocks of one side of a comparison.
type CompareStats struct {
	ScheduledCount   int     `json:"scheduled_count"`
	UnscheduledCount int     `json:"unscheduled_count"`
	TotalPriority    float64 `json:"total_priority"`  // Sum over scheduled blocks
	MeanPriority     float64 `json:"mean_priority"`   // Mean over scheduled blocks
	MedianPriority   float64 `json:"median_priority"` // Median over scheduled blocks
	TotalHours       float64 `json:"total_hours"`     // Requested hours of scheduled blocks

	// Idle time between consecutive scheduled observations. Nil when no gap exists.
	GapCount       *int     `json:"gap_count,omitempty"`
	GapMeanHours   *float64 `json:"gap_mean_hours,omitempty"`
	GapMedianHours *float64 `json:"gap_median_hours,omitempty"`
}

// SchedulingChange is a block present in both schedules whose scheduled state flipped.
type SchedulingChange struct {
	BlockID    string     `json:"block_id"` // Original block id shared by both schedules
	Priority   float64    `json:"priority"` // Priority on the side where it is scheduled
	ChangeType ChangeType `json:"change_type"`
}

// ScheduleComparison holds the block set differences, state changes and per side
// statistics of two schedules. Block ids are sorted.
type ScheduleComparison struct {
	CurrentID        int64  `json:"current_id"`
	ComparisonID     int64  `json:"comparison_id"`
	CurrentName      string `json:"current_name"`
	ComparisonName   string `json:"comparison_name"`
	CurrentBlocks    int    `json:"current_blocks"`
	ComparisonBlocks int    `json:"comparison_blocks"`

	CurrentStats    CompareStats `json:"current_stats"`
	ComparisonStats CompareStats `json:"comparison_stats"`

	CommonIDs         []string           `json:"common_ids"`
	OnlyInCurrent     []string           `json:"only_in_current"`
	OnlyInComparison  []string           `json:"only_in_comparison"`
	SchedulingChanges []SchedulingChange `json:"scheduling_changes"`

	// Query path that answered each side.
	CurrentPath    QueryPath `json:"current_path"`
	ComparisonPath QueryPath `json:"comparison_path"`
}

// Changes returns the scheduling changes of the given type.
func (c *ScheduleComparison) Changes(t ChangeType) []SchedulingChange {
	var out []SchedulingChange
	for _, ch := range c.SchedulingChanges {
		if ch.ChangeType == t {
			out = append(out, ch)
		}
	}
	return out
}
