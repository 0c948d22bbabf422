package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/ingest"
	"github.com/huangsam/skysched/schema"
)

var blockColumns = []string{
	"original_block_id", "target_id", "constraint_id", "priority",
	"min_observation_sec", "requested_duration_sec", "visibility_periods",
}

var scheduleBlockColumns = []string{
	"schedule_id", "scheduling_block_id", "scheduled_start_mjd", "scheduled_stop_mjd",
}

// StoreSchedule writes the schedule, its deduplicated entities, its blocks and the
// schedule-block links in one transaction.
func (s *SQLStore) StoreSchedule(ctx context.Context, sched *schema.Schedule) (int64, bool, error) {
	if err := checkStorable(sched); err != nil {
		return 0, false, err
	}
	dark, err := json.Marshal(nonNilPeriods(sched.DarkPeriods))
	if err != nil {
		return 0, false, fmt.Errorf("failed to encode dark periods: %w", err)
	}

	var scheduleID int64
	var created bool
	err = s.inTx(ctx, "store_schedule", func(ctx context.Context, tx *sql.Tx) error {
		scheduleID, created = 0, false
		id, found, err := s.scheduleByChecksum(ctx, tx, sched.Checksum)
		if err != nil {
			return err
		}
		if found {
			scheduleID = id
			return nil
		}

		id, err = s.insertSchedule(ctx, tx, sched, string(dark))
		if err != nil {
			return err
		}
		if id == 0 {
			// A concurrent upload of the same checksum won.
			scheduleID, _, err = s.scheduleByChecksum(ctx, tx, sched.Checksum)
			return err
		}

		caches, err := s.preload(ctx, tx)
		if err != nil {
			return err
		}
		refs := make([]blockRefs, len(sched.Blocks))
		for i := range sched.Blocks {
			if refs[i], err = s.resolveBlock(ctx, tx, caches, &sched.Blocks[i]); err != nil {
				return err
			}
		}
		blockIDs, err := s.insertBlocks(ctx, tx, sched.Blocks, refs)
		if err != nil {
			return err
		}
		err = s.bulkInsert(ctx, tx, scheduleBlocksTable, scheduleBlockColumns, len(sched.Blocks), func(i int) []any {
			var start, stop any
			if p := sched.Blocks[i].ScheduledPeriod; p != nil {
				start, stop = p.Start, p.Stop
			}
			return []any{id, blockIDs[i], start, stop}
		})
		if err != nil {
			return err
		}
		scheduleID, created = id, true
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("failed to store schedule %q: %w", sched.Name, err)
	}
	return scheduleID, created, nil
}

func (s *SQLStore) scheduleByChecksum(ctx context.Context, q queryer, checksum string) (int64, bool, error) {
	var id int64
	err := s.queryRow(ctx, q, "SELECT id FROM schedules WHERE checksum = ?", checksum).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up checksum: %w", err)
	}
	return id, true, nil
}

// insertSchedule returns 0 without error when the checksum already exists.
func (s *SQLStore) insertSchedule(ctx context.Context, tx *sql.Tx, sched *schema.Schedule, dark string) (int64, error) {
	var id int64
	err := s.savepoint(ctx, tx, "sp_schedule", func() error {
		var err error
		id, err = s.insertReturningID(ctx, tx,
			"INSERT INTO schedules (name, uploaded_at, checksum, dark_periods) VALUES (?, ?, ?, ?)",
			sched.Name, uploadedAtMillis(sched.UploadedAt), sched.Checksum, dark)
		return err
	})
	if s.dialect.isUniqueViolation(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert schedule: %w", err)
	}
	return id, nil
}

// insertReturningID runs an INSERT and returns the generated id.
func (s *SQLStore) insertReturningID(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	if s.dialect.supportsReturning() {
		var id int64
		err := s.queryRow(ctx, tx, query+" RETURNING id", args...).Scan(&id)
		return id, err
	}
	res, err := s.exec(ctx, tx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// savepoint runs fn inside a savepoint. When fn fails the transaction is rolled back
// to the savepoint, so the enclosing transaction stays usable, and fn's error is returned.
func (s *SQLStore) savepoint(ctx context.Context, tx *sql.Tx, name string, fn func() error) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}
	if err := fn(); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

// getOrCreate looks an entity up by its natural key and inserts it when absent. A
// uniqueness violation means a concurrent writer created it first, so the lookup runs
// once more.
func (s *SQLStore) getOrCreate(ctx context.Context, tx *sql.Tx, entity, key string,
	lookup func(ctx context.Context) (int64, bool, error), insert func(ctx context.Context) (int64, error),
) (int64, error) {
	if id, found, err := lookup(ctx); err != nil || found {
		return id, err
	}
	var id int64
	err := s.savepoint(ctx, tx, "sp_"+entity, func() error {
		var err error
		id, err = insert(ctx)
		return err
	})
	if err == nil {
		return id, nil
	}
	if !s.dialect.isUniqueViolation(err) {
		return 0, fmt.Errorf("failed to insert %s: %w", entity, err)
	}
	id, found, lerr := lookup(ctx)
	if lerr != nil {
		return 0, lerr
	}
	if !found {
		return 0, &contract.ConflictError{Entity: entity, Key: key, Err: err}
	}
	return id, nil
}

// preload fills the natural-key caches with every stored entity.
func (s *SQLStore) preload(ctx context.Context, tx *sql.Tx) (*ingest.Caches, error) {
	c := ingest.NewCaches()

	rows, err := s.query(ctx, tx, "SELECT id, ra_deg, dec_deg, pm_ra, pm_dec, equinox FROM targets")
	if err != nil {
		return nil, fmt.Errorf("failed to preload targets: %w", err)
	}
	err = scanAll(rows, func(r *sql.Rows) error {
		var id int64
		var k schema.TargetKey
		if err := r.Scan(&id, &k.RADeg, &k.DecDeg, &k.PMRA, &k.PMDec, &k.Equinox); err != nil {
			return err
		}
		c.Targets.Put(k, id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to preload targets: %w", err)
	}

	for _, angle := range []struct {
		table string
		cache *ingest.KeyCache[schema.AngleKey]
	}{{altitudesTable, c.Altitudes}, {azimuthsTable, c.Azimuths}} {
		rows, err := s.query(ctx, tx, fmt.Sprintf("SELECT id, min_deg, max_deg FROM %s", angle.table))
		if err != nil {
			return nil, fmt.Errorf("failed to preload %s: %w", angle.table, err)
		}
		cache := angle.cache
		err = scanAll(rows, func(r *sql.Rows) error {
			var id int64
			var k schema.AngleKey
			if err := r.Scan(&id, &k.Min, &k.Max); err != nil {
				return err
			}
			cache.Put(k, id)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to preload %s: %w", angle.table, err)
		}
	}

	rows, err = s.query(ctx, tx, "SELECT id, natural_key FROM block_constraints")
	if err != nil {
		return nil, fmt.Errorf("failed to preload constraints: %w", err)
	}
	err = scanAll(rows, func(r *sql.Rows) error {
		var id int64
		var k string
		if err := r.Scan(&id, &k); err != nil {
			return err
		}
		c.Constraints.Put(schema.ConstraintKey(k), id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to preload constraints: %w", err)
	}
	return c, nil
}

type blockRefs struct {
	targetID     int64
	constraintID int64
}

// resolveBlock returns the identities of the block's target and constraint, creating
// them on first sight.
func (s *SQLStore) resolveBlock(ctx context.Context, tx *sql.Tx, c *ingest.Caches, b *schema.SchedulingBlock) (blockRefs, error) {
	var refs blockRefs
	var err error

	t := b.Target
	refs.targetID, err = c.Targets.GetOrCreate(ctx, t.Key(), func(ctx context.Context) (int64, error) {
		const where = "ra_deg = ? AND dec_deg = ? AND pm_ra = ? AND pm_dec = ? AND equinox = ?"
		keyArgs := []any{t.RADeg, t.DecDeg, t.PMRA, t.PMDec, t.Equinox}
		return s.getOrCreate(ctx, tx, "target", fmt.Sprint(t.Key()),
			s.lookupID(tx, "SELECT id FROM targets WHERE "+where, keyArgs...),
			func(ctx context.Context) (int64, error) {
				return s.insertReturningID(ctx, tx,
					"INSERT INTO targets (name, ra_deg, dec_deg, pm_ra, pm_dec, equinox) VALUES (?, ?, ?, ?, ?, ?)",
					append([]any{t.Name}, keyArgs...)...)
			})
	})
	if err != nil {
		return refs, err
	}

	var altID, azID any
	if a := b.Constraint.Altitude; a != nil {
		id, err := s.resolveAngle(ctx, tx, c.Altitudes, altitudesTable, a.Key())
		if err != nil {
			return refs, err
		}
		altID = id
	}
	if a := b.Constraint.Azimuth; a != nil {
		id, err := s.resolveAngle(ctx, tx, c.Azimuths, azimuthsTable, a.Key())
		if err != nil {
			return refs, err
		}
		azID = id
	}

	key := b.Constraint.Key()
	var start, stop any
	if w := b.Constraint.TimeWindow; w != nil {
		start, stop = w.Start, w.Stop
	}
	refs.constraintID, err = c.Constraints.GetOrCreate(ctx, key, func(ctx context.Context) (int64, error) {
		return s.getOrCreate(ctx, tx, "constraint", string(key),
			s.lookupID(tx, "SELECT id FROM block_constraints WHERE natural_key = ?", string(key)),
			func(ctx context.Context) (int64, error) {
				return s.insertReturningID(ctx, tx,
					"INSERT INTO block_constraints (natural_key, start_mjd, stop_mjd, altitude_constraint_id, azimuth_constraint_id) VALUES (?, ?, ?, ?, ?)",
					string(key), start, stop, altID, azID)
			})
	})
	return refs, err
}

func (s *SQLStore) resolveAngle(ctx context.Context, tx *sql.Tx, cache *ingest.KeyCache[schema.AngleKey], table string, k schema.AngleKey) (int64, error) {
	return cache.GetOrCreate(ctx, k, func(ctx context.Context) (int64, error) {
		return s.getOrCreate(ctx, tx, table, fmt.Sprintf("[%g, %g]", k.Min, k.Max),
			s.lookupID(tx, fmt.Sprintf("SELECT id FROM %s WHERE min_deg = ? AND max_deg = ?", table), k.Min, k.Max),
			func(ctx context.Context) (int64, error) {
				return s.insertReturningID(ctx, tx,
					fmt.Sprintf("INSERT INTO %s (min_deg, max_deg) VALUES (?, ?)", table), k.Min, k.Max)
			})
	})
}

func (s *SQLStore) lookupID(q queryer, query string, args ...any) func(ctx context.Context) (int64, bool, error) {
	return func(ctx context.Context) (int64, bool, error) {
		var id int64
		err := s.queryRow(ctx, q, query, args...).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, err
		}
		return id, true, nil
	}
}

// insertBlocks writes the blocks and returns their identities in input order.
func (s *SQLStore) insertBlocks(ctx context.Context, tx *sql.Tx, blocks []schema.SchedulingBlock, refs []blockRefs) ([]int64, error) {
	values := make([][]any, len(blocks))
	for i := range blocks {
		b := &blocks[i]
		vis, err := json.Marshal(nonNilPeriods(b.VisibilityPeriods))
		if err != nil {
			return nil, fmt.Errorf("failed to encode visibility periods of block %s: %w", b.OriginalID, err)
		}
		values[i] = []any{
			b.OriginalID, refs[i].targetID, refs[i].constraintID, b.Priority,
			b.MinObservationSec, b.RequestedDurationSec, string(vis),
		}
	}

	ids := make([]int64, len(blocks))
	if !s.dialect.supportsReturning() {
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", blocksTable, strings.Join(blockColumns, ", "), placeholders(len(blockColumns)))
		for i := range values {
			res, err := s.exec(ctx, tx, query, values[i]...)
			if err != nil {
				return nil, fmt.Errorf("failed to insert block %s: %w", blocks[i].OriginalID, err)
			}
			if ids[i], err = res.LastInsertId(); err != nil {
				return nil, err
			}
		}
		return ids, nil
	}

	// Original ids are unique within a schedule, so RETURNING rows map back by them.
	index := make(map[string]int, len(blocks))
	for i := range blocks {
		index[blocks[i].OriginalID] = i
	}
	perChunk := max(1, s.pool.MaxParamsPerStatement/len(blockColumns))
	for start := 0; start < len(values); start += perChunk {
		end := min(start+perChunk, len(values))
		rowMarks := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*len(blockColumns))
		for i := start; i < end; i++ {
			rowMarks = append(rowMarks, placeholders(len(blockColumns)))
			args = append(args, values[i]...)
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s RETURNING id, original_block_id",
			blocksTable, strings.Join(blockColumns, ", "), strings.Join(rowMarks, ", "))
		rows, err := s.query(ctx, tx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to insert blocks: %w", err)
		}
		err = scanAll(rows, func(r *sql.Rows) error {
			var id int64
			var original string
			if err := r.Scan(&id, &original); err != nil {
				return err
			}
			i, ok := index[original]
			if !ok {
				return fmt.Errorf("unexpected block %s returned", original)
			}
			ids[i] = id
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read block ids: %w", err)
		}
	}
	return ids, nil
}

// scanAll calls fn for each row and closes rows.
func scanAll(rows *sql.Rows, fn func(*sql.Rows) error) error {
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func uploadedAtMillis(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UnixMilli()
}

func nonNilPeriods(p []schema.Period) []schema.Period {
	if p == nil {
		return []schema.Period{}
	}
	return p
}
