package ingest

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// blockID accepts a scheduling block id written either as a string or as a number.
type blockID string

func (b *blockID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*b = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = blockID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("schedulingBlockId must be a string or a number: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*b = blockID(strconv.FormatInt(i, 10))
		return nil
	}
	*b = blockID(n.String())
	return nil
}

type timeValue struct {
	Value *float64 `json:"value" validate:"required"`
}

type rawPeriod struct {
	StartTime timeValue `json:"startTime"`
	StopTime  timeValue `json:"stopTime"`
}

type rawCelestial struct {
	RAInDeg  *float64 `json:"raInDeg" validate:"required,gte=0,lt=360"`
	DecInDeg *float64 `json:"decInDeg" validate:"required,gte=-90,lte=90"`
	RAPM     float64  `json:"raProperMotionInMarcsecYear"`
	DecPM    float64  `json:"decProperMotionInMarcsecYear"`
	Equinox  float64  `json:"equinox"`
}

type rawCoord struct {
	Celestial rawCelestial `json:"celestial"`
}

type rawPosition struct {
	Coord rawCoord `json:"coord"`
}

type rawTarget struct {
	ID       *int64      `json:"id_"`
	Name     string      `json:"name"`
	Position rawPosition `json:"position_"`
}

type rawAzimuth struct {
	Min *float64 `json:"minAzimuthAngleInDeg" validate:"required"`
	Max *float64 `json:"maxAzimuthAngleInDeg" validate:"required"`
}

type rawElevation struct {
	Min *float64 `json:"minElevationAngleInDeg" validate:"required"`
	Max *float64 `json:"maxElevationAngleInDeg" validate:"required"`
}

type rawTimeConstraint struct {
	MinObservationSec *float64    `json:"minObservationTimeInSec" validate:"omitempty,gte=0"`
	RequestedSec      *float64    `json:"requestedDurationSec" validate:"required,gte=0"`
	FixedStart        []timeValue `json:"fixedStartTime" validate:"dive"`
	FixedStop         []timeValue `json:"fixedStopTime" validate:"dive"`
}

type rawConstraints struct {
	Azimuth   *rawAzimuth       `json:"azimuthConstraint_"`
	Elevation *rawElevation     `json:"elevationConstraint_"`
	Time      rawTimeConstraint `json:"timeConstraint_"`
}

type rawConfiguration struct {
	Constraints rawConstraints `json:"constraints_"`
}

type rawBlock struct {
	ID              blockID          `json:"schedulingBlockId" validate:"required"`
	Priority        *float64         `json:"priority" validate:"required"`
	Target          rawTarget        `json:"target"`
	Configuration   rawConfiguration `json:"schedulingBlockConfiguration_"`
	ScheduledPeriod *rawPeriod       `json:"scheduled_period"`
}

type rawSchedule struct {
	Blocks *[]rawBlock `json:"SchedulingBlock"`
}

type rawPossiblePeriods struct {
	Blocks map[string][]rawPeriod `json:"SchedulingBlock"`
}

// parseSchedulePayload decodes the schedule payload.
func parseSchedulePayload(data []byte) ([]rawBlock, error) {
	var raw rawSchedule
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid schedule JSON: %w", err)
	}
	if raw.Blocks == nil {
		return nil, fmt.Errorf("schedule JSON must contain a %q key", "SchedulingBlock")
	}
	return *raw.Blocks, nil
}

// parsePossiblePeriods decodes the visibility payload keyed by original block id.
// The map may sit under a "SchedulingBlock" key or be the document itself.
func parsePossiblePeriods(data []byte) (map[string][]rawPeriod, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var wrapped rawPossiblePeriods
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Blocks != nil {
		return wrapped.Blocks, nil
	}
	var bare map[string][]rawPeriod
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, fmt.Errorf("invalid possible periods JSON: %w", err)
	}
	return bare, nil
}
