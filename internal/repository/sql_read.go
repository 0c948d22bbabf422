package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/schema"
)

const blockGraphQuery = `
SELECT b.id, b.original_block_id, b.priority, b.min_observation_sec, b.requested_duration_sec, b.visibility_periods,
	t.id, t.name, t.ra_deg, t.dec_deg, t.pm_ra, t.pm_dec, t.equinox,
	c.id, c.start_mjd, c.stop_mjd,
	a.id, a.min_deg, a.max_deg,
	z.id, z.min_deg, z.max_deg,
	sb.scheduled_start_mjd, sb.scheduled_stop_mjd
FROM schedule_scheduling_blocks sb
JOIN scheduling_blocks b ON b.id = sb.scheduling_block_id
JOIN targets t ON t.id = b.target_id
JOIN block_constraints c ON c.id = b.constraint_id
LEFT JOIN altitude_constraints a ON a.id = c.altitude_constraint_id
LEFT JOIN azimuth_constraints z ON z.id = c.azimuth_constraint_id
WHERE sb.schedule_id = ?
ORDER BY b.id`

// GetSchedule loads a schedule with every block, target and constraint resolved.
// Blocks are ordered by id, which is upload order.
func (s *SQLStore) GetSchedule(ctx context.Context, id int64) (*schema.Schedule, error) {
	var out *schema.Schedule
	err := s.withRetry(ctx, "get_schedule", func(ctx context.Context) error {
		sched, dark, err := s.scheduleRow(ctx, id)
		if err != nil {
			return err
		}
		if sched.DarkPeriods, err = decodePeriods(dark); err != nil {
			return fmt.Errorf("failed to decode dark periods: %w", err)
		}

		rows, err := s.query(ctx, s.db, blockGraphQuery, id)
		if err != nil {
			return fmt.Errorf("failed to query blocks: %w", err)
		}
		sched.Blocks = []schema.SchedulingBlock{}
		err = scanAll(rows, func(r *sql.Rows) error {
			b, err := scanBlock(r)
			if err != nil {
				return err
			}
			sched.Blocks = append(sched.Blocks, b)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read blocks: %w", err)
		}
		out = sched
		return nil
	})
	return out, err
}

func (s *SQLStore) scheduleRow(ctx context.Context, id int64) (*schema.Schedule, string, error) {
	var sched schema.Schedule
	var uploaded int64
	var dark string
	err := s.queryRow(ctx, s.db,
		"SELECT id, name, uploaded_at, checksum, dark_periods FROM schedules WHERE id = ?", id,
	).Scan(&sched.ID, &sched.Name, &uploaded, &sched.Checksum, &dark)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", &contract.NotFoundError{Entity: "schedule", ID: id}
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to query schedule: %w", err)
	}
	sched.UploadedAt = time.UnixMilli(uploaded).UTC()
	return &sched, dark, nil
}

func scanBlock(r *sql.Rows) (schema.SchedulingBlock, error) {
	var b schema.SchedulingBlock
	var vis string
	var winStart, winStop sql.NullFloat64
	var altID, azID sql.NullInt64
	var altMin, altMax, azMin, azMax sql.NullFloat64
	var schedStart, schedStop sql.NullFloat64

	err := r.Scan(
		&b.ID, &b.OriginalID, &b.Priority, &b.MinObservationSec, &b.RequestedDurationSec, &vis,
		&b.Target.ID, &b.Target.Name, &b.Target.RADeg, &b.Target.DecDeg, &b.Target.PMRA, &b.Target.PMDec, &b.Target.Equinox,
		&b.Constraint.ID, &winStart, &winStop,
		&altID, &altMin, &altMax,
		&azID, &azMin, &azMax,
		&schedStart, &schedStop,
	)
	if err != nil {
		return b, err
	}
	if b.VisibilityPeriods, err = decodePeriods(vis); err != nil {
		return b, fmt.Errorf("failed to decode visibility periods of block %s: %w", b.OriginalID, err)
	}
	if winStart.Valid && winStop.Valid {
		b.Constraint.TimeWindow = &schema.Period{Start: winStart.Float64, Stop: winStop.Float64}
	}
	if altID.Valid {
		b.Constraint.Altitude = &schema.AltitudeConstraint{ID: altID.Int64, MinDeg: altMin.Float64, MaxDeg: altMax.Float64}
	}
	if azID.Valid {
		b.Constraint.Azimuth = &schema.AzimuthConstraint{ID: azID.Int64, MinDeg: azMin.Float64, MaxDeg: azMax.Float64}
	}
	if schedStart.Valid && schedStop.Valid {
		b.ScheduledPeriod = &schema.Period{Start: schedStart.Float64, Stop: schedStop.Float64}
	}
	return b, nil
}

// ListSchedules returns every schedule with block counts, newest first.
func (s *SQLStore) ListSchedules(ctx context.Context) ([]schema.ScheduleInfo, error) {
	const query = `
SELECT s.id, s.name, s.uploaded_at, s.checksum, COUNT(sb.scheduling_block_id),
	COALESCE(SUM(CASE WHEN sb.scheduled_stop_mjd > sb.scheduled_start_mjd THEN 1 ELSE 0 END), 0)
FROM schedules s
LEFT JOIN schedule_scheduling_blocks sb ON sb.schedule_id = s.id
GROUP BY s.id, s.name, s.uploaded_at, s.checksum
ORDER BY s.uploaded_at DESC, s.id DESC`

	var out []schema.ScheduleInfo
	err := s.withRetry(ctx, "list_schedules", func(ctx context.Context) error {
		out = []schema.ScheduleInfo{}
		rows, err := s.query(ctx, s.db, query)
		if err != nil {
			return fmt.Errorf("failed to list schedules: %w", err)
		}
		return scanAll(rows, func(r *sql.Rows) error {
			var info schema.ScheduleInfo
			var uploaded int64
			if err := r.Scan(&info.ID, &info.Name, &uploaded, &info.Checksum, &info.BlockCount, &info.ScheduledCount); err != nil {
				return err
			}
			info.UploadedAt = time.UnixMilli(uploaded).UTC()
			out = append(out, info)
			return nil
		})
	})
	return out, err
}

// FetchDarkPeriods returns the dark periods stored with a schedule.
func (s *SQLStore) FetchDarkPeriods(ctx context.Context, id int64) ([]schema.Period, error) {
	var out []schema.Period
	err := s.withRetry(ctx, "fetch_dark_periods", func(ctx context.Context) error {
		_, dark, err := s.scheduleRow(ctx, id)
		if err != nil {
			return err
		}
		out, err = decodePeriods(dark)
		return err
	})
	return out, err
}

// FetchPossiblePeriods returns every visibility period of the schedule's blocks.
func (s *SQLStore) FetchPossiblePeriods(ctx context.Context, id int64) ([]schema.BlockPeriod, error) {
	const query = `
SELECT b.id, b.original_block_id, b.visibility_periods
FROM schedule_scheduling_blocks sb
JOIN scheduling_blocks b ON b.id = sb.scheduling_block_id
WHERE sb.schedule_id = ?
ORDER BY b.id`

	var out []schema.BlockPeriod
	err := s.withRetry(ctx, "fetch_possible_periods", func(ctx context.Context) error {
		if _, _, err := s.scheduleRow(ctx, id); err != nil {
			return err
		}
		out = []schema.BlockPeriod{}
		rows, err := s.query(ctx, s.db, query, id)
		if err != nil {
			return fmt.Errorf("failed to query visibility periods: %w", err)
		}
		return scanAll(rows, func(r *sql.Rows) error {
			var blockID int64
			var original, vis string
			if err := r.Scan(&blockID, &original, &vis); err != nil {
				return err
			}
			periods, err := decodePeriods(vis)
			if err != nil {
				return err
			}
			for _, p := range periods {
				out = append(out, schema.BlockPeriod{BlockID: blockID, OriginalBlockID: original, Period: p})
			}
			return nil
		})
	})
	return out, err
}

func decodePeriods(raw string) ([]schema.Period, error) {
	out := []schema.Period{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}
