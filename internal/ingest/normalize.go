// Package ingest turns raw scheduling payloads into validated schedule graphs.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/huangsam/skysched/schema"
)

// Input is one upload: the schedule payload plus its optional companion payloads.
type Input struct {
	Name            string
	Schedule        []byte
	PossiblePeriods []byte
	DarkPeriods     []byte
	UploadedAt      time.Time
}

// Summary describes a normalized schedule after deduplication.
type Summary struct {
	Blocks            int
	ScheduledBlocks   int
	UniqueTargets     int
	UniqueConstraints int
	UniqueAltitudes   int
	UniqueAzimuths    int
	VisibilityPeriods int
	DarkPeriods       int
}

// Normalize parses and validates an upload. Every rule violation is collected into one
// *contract.ValidationError. Nothing is written anywhere.
func Normalize(in Input) (*schema.Schedule, error) {
	var v violations

	if in.Name == "" {
		v.add("", "name", "is required")
	}
	rawBlocks, err := parseSchedulePayload(in.Schedule)
	if err != nil {
		v.add("", "schedule", "%v", err)
		return nil, v.err()
	}
	possible, err := parsePossiblePeriods(in.PossiblePeriods)
	if err != nil {
		v.add("", "possiblePeriods", "%v", err)
	}
	var dark []schema.Period
	if len(in.DarkPeriods) > 0 {
		if dark, err = ParseDarkPeriods(in.DarkPeriods); err != nil {
			v.add("", "darkPeriods", "%v", err)
		}
	}

	seen := make(map[string]int, len(rawBlocks))
	blocks := make([]schema.SchedulingBlock, 0, len(rawBlocks))
	for i := range rawBlocks {
		raw := &rawBlocks[i]
		label := string(raw.ID)
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}
		v.checkStruct(label, raw)
		if raw.ID != "" {
			if first, dup := seen[label]; dup {
				v.add(label, "schedulingBlockId", "duplicates block at index %d", first)
			} else {
				seen[label] = i
			}
		}

		block, ok := buildBlock(raw, possible[string(raw.ID)], &v, label)
		if !ok {
			continue
		}
		v.checkBlock(&block)
		blocks = append(blocks, block)
	}

	if err := v.err(); err != nil {
		return nil, err
	}

	uploadedAt := in.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now().UTC()
	}
	return &schema.Schedule{
		Name:        in.Name,
		UploadedAt:  uploadedAt,
		Checksum:    Checksum(in.Schedule, in.PossiblePeriods, in.DarkPeriods),
		DarkPeriods: dark,
		Blocks:      blocks,
	}, nil
}

// buildBlock converts a raw block into the domain type. It returns false when a
// required value is missing; the struct check has already reported it.
func buildBlock(raw *rawBlock, periods []rawPeriod, v *violations, label string) (schema.SchedulingBlock, bool) {
	celestial := raw.Target.Position.Coord.Celestial
	tc := raw.Configuration.Constraints.Time
	if raw.Priority == nil || celestial.RAInDeg == nil || celestial.DecInDeg == nil || tc.RequestedSec == nil {
		return schema.SchedulingBlock{}, false
	}

	block := schema.SchedulingBlock{
		OriginalID:           string(raw.ID),
		Priority:             *raw.Priority,
		RequestedDurationSec: *tc.RequestedSec,
		Target: schema.Target{
			Name:    raw.Target.Name,
			RADeg:   *celestial.RAInDeg,
			DecDeg:  *celestial.DecInDeg,
			PMRA:    celestial.RAPM,
			PMDec:   celestial.DecPM,
			Equinox: celestial.Equinox,
		},
	}
	if block.Target.Name == "" {
		block.Target.Name = "SB " + string(raw.ID)
	}
	if tc.MinObservationSec != nil {
		block.MinObservationSec = *tc.MinObservationSec
	}

	c := raw.Configuration.Constraints
	if c.Elevation != nil && c.Elevation.Min != nil && c.Elevation.Max != nil {
		block.Constraint.Altitude = &schema.AltitudeConstraint{MinDeg: *c.Elevation.Min, MaxDeg: *c.Elevation.Max}
	}
	if c.Azimuth != nil && c.Azimuth.Min != nil && c.Azimuth.Max != nil {
		block.Constraint.Azimuth = &schema.AzimuthConstraint{MinDeg: *c.Azimuth.Min, MaxDeg: *c.Azimuth.Max}
	}
	if len(tc.FixedStart) > 0 && len(tc.FixedStop) > 0 && tc.FixedStart[0].Value != nil && tc.FixedStop[0].Value != nil {
		block.Constraint.TimeWindow = &schema.Period{Start: *tc.FixedStart[0].Value, Stop: *tc.FixedStop[0].Value}
	}

	if sp := raw.ScheduledPeriod; sp != nil && sp.StartTime.Value != nil && sp.StopTime.Value != nil {
		block.ScheduledPeriod = &schema.Period{Start: *sp.StartTime.Value, Stop: *sp.StopTime.Value}
	}

	for i, p := range periods {
		if p.StartTime.Value == nil || p.StopTime.Value == nil {
			v.add(label, fmt.Sprintf("possiblePeriods[%d]", i), "startTime and stopTime are required")
			continue
		}
		block.VisibilityPeriods = append(block.VisibilityPeriods, schema.Period{Start: *p.StartTime.Value, Stop: *p.StopTime.Value})
	}
	return block, true
}

// Summarize counts blocks and the distinct natural keys a schedule would store.
func Summarize(s *schema.Schedule) Summary {
	targets := make(map[schema.TargetKey]struct{})
	constraints := make(map[schema.ConstraintKey]struct{})
	altitudes := make(map[schema.AngleKey]struct{})
	azimuths := make(map[schema.AngleKey]struct{})

	sum := Summary{Blocks: len(s.Blocks), DarkPeriods: len(s.DarkPeriods)}
	for i := range s.Blocks {
		b := &s.Blocks[i]
		targets[b.Target.Key()] = struct{}{}
		constraints[b.Constraint.Key()] = struct{}{}
		if b.Constraint.Altitude != nil {
			altitudes[b.Constraint.Altitude.Key()] = struct{}{}
		}
		if b.Constraint.Azimuth != nil {
			azimuths[b.Constraint.Azimuth.Key()] = struct{}{}
		}
		if b.IsScheduled() {
			sum.ScheduledBlocks++
		}
		sum.VisibilityPeriods += len(b.VisibilityPeriods)
	}
	sum.UniqueTargets = len(targets)
	sum.UniqueConstraints = len(constraints)
	sum.UniqueAltitudes = len(altitudes)
	sum.UniqueAzimuths = len(azimuths)
	return sum
}

// Checksum returns the hex SHA-256 of the payloads. Empty companion payloads do not
// change the digest of the schedule payload alone.
func Checksum(payloads ...[]byte) string {
	h := sha256.New()
	for i, p := range payloads {
		if len(p) == 0 {
			continue
		}
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
