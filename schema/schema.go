// Package schema has the domain model, analytics rows and shared result types for skysched.
package schema

import (
	"strconv"
	"strings"
	"time"
)

// Period is a time window in Modified Julian Date days.
type Period struct {
	Start float64 `json:"start"`
	Stop  float64 `json:"stop"`
}

// Valid reports whether the period has start < stop.
func (p Period) Valid() bool {
	return p.Start < p.Stop
}

// DurationHours returns the period length in hours.
func (p Period) DurationHours() float64 {
	return (p.Stop - p.Start) * HoursPerDay
}

// Target is a celestial source that scheduling blocks observe.
type Target struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	RADeg   float64 `json:"ra_deg"`
	DecDeg  float64 `json:"dec_deg"`
	PMRA    float64 `json:"pm_ra_mas_yr"`
	PMDec   float64 `json:"pm_dec_mas_yr"`
	Equinox float64 `json:"equinox"`
}

// TargetKey is the natural key of a target.
type TargetKey struct {
	RADeg   float64
	DecDeg  float64
	PMRA    float64
	PMDec   float64
	Equinox float64
}

// Key returns the natural key of the target.
func (t Target) Key() TargetKey {
	return TargetKey{RADeg: t.RADeg, DecDeg: t.DecDeg, PMRA: t.PMRA, PMDec: t.PMDec, Equinox: t.Equinox}
}

// AltitudeConstraint bounds the elevation angle of an observation.
type AltitudeConstraint struct {
	ID     int64   `json:"id"`
	MinDeg float64 `json:"min_deg"`
	MaxDeg float64 `json:"max_deg"`
}

// AzimuthConstraint bounds the azimuth angle of an observation.
type AzimuthConstraint struct {
	ID     int64   `json:"id"`
	MinDeg float64 `json:"min_deg"`
	MaxDeg float64 `json:"max_deg"`
}

// AngleKey is the natural key of an altitude or azimuth constraint.
type AngleKey struct {
	Min float64
	Max float64
}

// Key returns the natural key of the altitude constraint.
func (a AltitudeConstraint) Key() AngleKey { return AngleKey{Min: a.MinDeg, Max: a.MaxDeg} }

// Key returns the natural key of the azimuth constraint.
func (a AzimuthConstraint) Key() AngleKey { return AngleKey{Min: a.MinDeg, Max: a.MaxDeg} }

// Constraint groups an optional fixed time window with optional angle constraints.
type Constraint struct {
	ID         int64               `json:"id"`
	TimeWindow *Period             `json:"time_window,omitempty"`
	Altitude   *AltitudeConstraint `json:"altitude,omitempty"`
	Azimuth    *AzimuthConstraint  `json:"azimuth,omitempty"`
}

// ConstraintKey is the natural key of a constraint: the full value tuple.
type ConstraintKey string

// Key returns the canonical natural key of the constraint.
// Floats are formatted with the shortest exact representation so equal values map to equal keys.
func (c Constraint) Key() ConstraintKey {
	var sb strings.Builder
	sb.WriteString("w:")
	if c.TimeWindow != nil {
		sb.WriteString(formatKeyFloat(c.TimeWindow.Start))
		sb.WriteByte(',')
		sb.WriteString(formatKeyFloat(c.TimeWindow.Stop))
	}
	sb.WriteString("|alt:")
	if c.Altitude != nil {
		sb.WriteString(formatKeyFloat(c.Altitude.MinDeg))
		sb.WriteByte(',')
		sb.WriteString(formatKeyFloat(c.Altitude.MaxDeg))
	}
	sb.WriteString("|az:")
	if c.Azimuth != nil {
		sb.WriteString(formatKeyFloat(c.Azimuth.MinDeg))
		sb.WriteByte(',')
		sb.WriteString(formatKeyFloat(c.Azimuth.MaxDeg))
	}
	return ConstraintKey(sb.String())
}

func formatKeyFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// SchedulingBlock is an atomic observation request.
type SchedulingBlock struct {
	ID                   int64      `json:"id"`
	OriginalID           string     `json:"original_id"`
	Priority             float64    `json:"priority"`
	MinObservationSec    float64    `json:"min_observation_sec"`
	RequestedDurationSec float64    `json:"requested_duration_sec"`
	Target               Target     `json:"target"`
	Constraint           Constraint `json:"constraint"`
	VisibilityPeriods    []Period   `json:"visibility_periods"`
	ScheduledPeriod      *Period    `json:"scheduled_period,omitempty"`
}

// IsScheduled reports whether the block has a valid scheduled period.
func (b *SchedulingBlock) IsScheduled() bool {
	return b.ScheduledPeriod != nil && b.ScheduledPeriod.Valid()
}

// RequestedHours returns the requested duration in hours.
func (b *SchedulingBlock) RequestedHours() float64 {
	return b.RequestedDurationSec / SecondsPerHour
}

// MinObservationHours returns the minimum observation time in hours.
func (b *SchedulingBlock) MinObservationHours() float64 {
	return b.MinObservationSec / SecondsPerHour
}

// VisibilitySummary returns total visible hours and the number of visibility periods.
func (b *SchedulingBlock) VisibilitySummary() (float64, int) {
	total := 0.0
	for _, p := range b.VisibilityPeriods {
		total += p.DurationHours()
	}
	return total, len(b.VisibilityPeriods)
}

// Schedule is one uploaded scheduling run with all of its blocks.
type Schedule struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	UploadedAt  time.Time         `json:"uploaded_at"`
	Checksum    string            `json:"checksum"`
	DarkPeriods []Period          `json:"dark_periods,omitempty"`
	Blocks      []SchedulingBlock `json:"blocks"`
}

// ScheduleInfo is the listing view of a stored schedule.
type ScheduleInfo struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	UploadedAt     time.Time `json:"uploaded_at"`
	Checksum       string    `json:"checksum"`
	BlockCount     int       `json:"block_count"`
	ScheduledCount int       `json:"scheduled_count"`
}

// BlockPeriod is a visibility period tagged with the block it belongs to.
type BlockPeriod struct {
	BlockID         int64  `json:"block_id"`
	OriginalBlockID string `json:"original_block_id"`
	Period
}
