// Package parquet exports precomputed schedule analytics to Parquet files
// using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"time"

	"github.com/huangsam/skysched/schema"
	"github.com/parquet-go/parquet-go"
)

// BlockRow is one analytics block row.
// This struct maps to the analytics_blocks table.
type BlockRow struct {
	ScheduleID      int64   `parquet:"schedule_id,snappy"`
	BlockID         int64   `parquet:"block_id,snappy"`
	OriginalBlockID string  `parquet:"original_block_id,snappy,dict"`
	TargetName      string  `parquet:"target_name,snappy,dict"`
	RADeg           float64 `parquet:"ra_deg,snappy"`
	DecDeg          float64 `parquet:"dec_deg,snappy"`
	Priority        float64 `parquet:"priority,snappy"`
	PriorityBucket  int32   `parquet:"priority_bucket,snappy"`

	RequestedHours      float64 `parquet:"requested_hours,snappy"`
	MinObservationHours float64 `parquet:"min_observation_hours,snappy"`

	// Constraint bounds are null when the block has no such constraint
	MinAltitudeDeg     *float64 `parquet:"min_altitude_deg,optional,snappy"`
	MaxAltitudeDeg     *float64 `parquet:"max_altitude_deg,optional,snappy"`
	MinAzimuthDeg      *float64 `parquet:"min_azimuth_deg,optional,snappy"`
	MaxAzimuthDeg      *float64 `parquet:"max_azimuth_deg,optional,snappy"`
	ConstraintStartMJD *float64 `parquet:"constraint_start_mjd,optional,snappy"`
	ConstraintStopMJD  *float64 `parquet:"constraint_stop_mjd,optional,snappy"`

	IsScheduled       bool     `parquet:"is_scheduled,snappy"`
	ScheduledStartMJD *float64 `parquet:"scheduled_start_mjd,optional,snappy"`
	ScheduledStopMJD  *float64 `parquet:"scheduled_stop_mjd,optional,snappy"`

	TotalVisibilityHours  float64 `parquet:"total_visibility_hours,snappy"`
	VisibilityPeriodCount int32   `parquet:"visibility_period_count,snappy"`
	IsImpossible          bool    `parquet:"is_impossible,snappy"`
}

// Summary is the schedule-level summary row plus when it was exported.
// This struct maps to the analytics_summary table.
type Summary struct {
	ScheduleID int64     `parquet:"schedule_id,snappy"`
	ExportedAt time.Time `parquet:"exported_at,snappy"`

	TotalBlocks       int32   `parquet:"total_blocks,snappy"`
	ScheduledBlocks   int32   `parquet:"scheduled_blocks,snappy"`
	UnscheduledBlocks int32   `parquet:"unscheduled_blocks,snappy"`
	ImpossibleBlocks  int32   `parquet:"impossible_blocks,snappy"`
	SchedulingRate    float64 `parquet:"scheduling_rate,snappy"`

	PriorityMin             float64 `parquet:"priority_min,snappy"`
	PriorityMax             float64 `parquet:"priority_max,snappy"`
	PriorityMean            float64 `parquet:"priority_mean,snappy"`
	PriorityMedian          float64 `parquet:"priority_median,snappy"`
	PriorityScheduledMean   float64 `parquet:"priority_scheduled_mean,snappy"`
	PriorityUnscheduledMean float64 `parquet:"priority_unscheduled_mean,snappy"`

	VisibilityTotalHours float64 `parquet:"visibility_total_hours,snappy"`
	RequestedTotalHours  float64 `parquet:"requested_total_hours,snappy"`
	ScheduledTotalHours  float64 `parquet:"scheduled_total_hours,snappy"`

	CorrPriorityVisibility  float64 `parquet:"corr_priority_visibility,snappy"`
	CorrPriorityRequested   float64 `parquet:"corr_priority_requested,snappy"`
	CorrVisibilityRequested float64 `parquet:"corr_visibility_requested,snappy"`

	ConflictCount int32 `parquet:"conflict_count,snappy"`
}

// WriteBlockRowsParquet writes block rows to a Parquet file.
func WriteBlockRowsParquet(data []BlockRow, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteSummaryParquet writes summary rows to a Parquet file.
func WriteSummaryParquet(data []Summary, outputPath string) error {
	return writeParquet(data, outputPath)
}

// writeParquet writes rows with the schema inferred from the struct tags of T.
func writeParquet[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// ConvertBlockRows converts analytics block rows for Parquet export.
func ConvertBlockRows(rows []schema.AnalyticsBlockRow) []BlockRow {
	result := make([]BlockRow, len(rows))
	for i, r := range rows {
		result[i] = BlockRow{
			ScheduleID:            r.ScheduleID,
			BlockID:               r.BlockID,
			OriginalBlockID:       r.OriginalBlockID,
			TargetName:            r.TargetName,
			RADeg:                 r.RADeg,
			DecDeg:                r.DecDeg,
			Priority:              r.Priority,
			PriorityBucket:        int32(r.PriorityBucket),
			RequestedHours:        r.RequestedHours,
			MinObservationHours:   r.MinObservationHours,
			MinAltitudeDeg:        r.MinAltitudeDeg,
			MaxAltitudeDeg:        r.MaxAltitudeDeg,
			MinAzimuthDeg:         r.MinAzimuthDeg,
			MaxAzimuthDeg:         r.MaxAzimuthDeg,
			ConstraintStartMJD:    r.ConstraintStartMJD,
			ConstraintStopMJD:     r.ConstraintStopMJD,
			IsScheduled:           r.IsScheduled,
			ScheduledStartMJD:     r.ScheduledStartMJD,
			ScheduledStopMJD:      r.ScheduledStopMJD,
			TotalVisibilityHours:  r.TotalVisibilityHours,
			VisibilityPeriodCount: int32(r.VisibilityPeriodCount),
			IsImpossible:          r.IsImpossible,
		}
	}
	return result
}

// ConvertSummary converts a summary row for Parquet export.
func ConvertSummary(s schema.SummaryAnalytics, exportedAt time.Time) Summary {
	return Summary{
		ScheduleID:              s.ScheduleID,
		ExportedAt:              exportedAt,
		TotalBlocks:             int32(s.TotalBlocks),
		ScheduledBlocks:         int32(s.ScheduledBlocks),
		UnscheduledBlocks:       int32(s.UnscheduledBlocks),
		ImpossibleBlocks:        int32(s.ImpossibleBlocks),
		SchedulingRate:          s.SchedulingRate,
		PriorityMin:             s.PriorityMin,
		PriorityMax:             s.PriorityMax,
		PriorityMean:            s.PriorityMean,
		PriorityMedian:          s.PriorityMedian,
		PriorityScheduledMean:   s.PriorityScheduledMean,
		PriorityUnscheduledMean: s.PriorityUnscheduledMean,
		VisibilityTotalHours:    s.VisibilityTotalHours,
		RequestedTotalHours:     s.RequestedTotalHours,
		ScheduledTotalHours:     s.ScheduledTotalHours,
		CorrPriorityVisibility:  s.CorrPriorityVisibility,
		CorrPriorityRequested:   s.CorrPriorityRequested,
		CorrVisibilityRequested: s.CorrVisibilityRequested,
		ConflictCount:           int32(s.ConflictCount),
	}
}
