package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/logging"
	"github.com/huangsam/skysched/schema"
	"github.com/rs/zerolog"
)

// SQLStore implements contract.Store on database/sql for PostgreSQL, MySQL and SQLite.
type SQLStore struct {
	db      *sql.DB
	backend schema.DatabaseBackend
	dialect dialect
	pool    contract.PoolConfig
	log     zerolog.Logger
}

var _ contract.Store = &SQLStore{} // Compile-time check

// NewSQLStore opens a pooled connection for backend, migrates it to the latest schema
// version and returns the store.
func NewSQLStore(ctx context.Context, backend schema.DatabaseBackend, connStr string, pool contract.PoolConfig) (*SQLStore, error) {
	if pool.MaxParamsPerStatement <= 0 {
		pool.MaxParamsPerStatement = contract.DefaultMaxParamsPerStatement
	}

	// Server backends migrate on a dedicated connection, because the migrate drivers
	// pin a connection until they are closed and closing them closes the pool.
	if backend != schema.SQLiteBackend {
		if _, err := Migrate(ctx, backend, connStr, pool, -1); err != nil {
			return nil, err
		}
	}

	db, err := openDB(ctx, backend, connStr, pool)
	if err != nil {
		return nil, err
	}

	// SQLite may be in-memory, where a second connection sees a different database.
	if backend == schema.SQLiteBackend {
		m, err := newMigrator(db, backend)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		if _, err := runMigrations(m, -1); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return newSQLStore(db, backend, pool), nil
}

func newSQLStore(db *sql.DB, backend schema.DatabaseBackend, pool contract.PoolConfig) *SQLStore {
	return &SQLStore{
		db:      db,
		backend: backend,
		dialect: dialect{backend: backend},
		pool:    pool,
		log:     logging.With("repository").With().Str("backend", string(backend)).Logger(),
	}
}

// Backend returns the backend kind.
func (s *SQLStore) Backend() schema.DatabaseBackend { return s.backend }

// HealthCheck pings the database once.
func (s *SQLStore) HealthCheck(ctx context.Context) bool {
	ctx, cancel := s.attemptContext(ctx)
	defer cancel()
	return s.db.PingContext(ctx) == nil
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Status returns row counts per table.
func (s *SQLStore) Status(ctx context.Context) (schema.StoreStatus, error) {
	status := schema.StoreStatus{Backend: s.backend, Connected: s.HealthCheck(ctx), Tables: map[string]int64{}}
	if !status.Connected {
		return status, nil
	}
	err := s.withRetry(ctx, "status", func(ctx context.Context) error {
		for _, table := range allTables {
			var n int64
			query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.dialect.quote(table))
			if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
				return fmt.Errorf("failed to count rows in %s: %w", table, err)
			}
			status.Tables[table] = n
		}
		return nil
	})
	return status, err
}

// inTx runs fn inside one transaction, retried as a whole on transient failures.
func (s *SQLStore) inTx(ctx context.Context, op string, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return s.withRetry(ctx, op, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := fn(ctx, tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) exec(ctx context.Context, q queryer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, q queryer, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, q queryer, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

// bulkInsert writes rows into table in chunks bounded by MaxParamsPerStatement.
func (s *SQLStore) bulkInsert(ctx context.Context, tx *sql.Tx, table string, cols []string, n int, values func(i int) []any) error {
	if n == 0 {
		return nil
	}
	perChunk := max(1, s.pool.MaxParamsPerStatement/len(cols))
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = s.dialect.quote(c)
	}
	head := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", s.dialect.quote(table), strings.Join(quoted, ", "))
	row := placeholders(len(cols))

	for start := 0; start < n; start += perChunk {
		end := min(start+perChunk, n)
		rows := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*len(cols))
		for i := start; i < end; i++ {
			rows = append(rows, row)
			args = append(args, values(i)...)
		}
		if _, err := s.exec(ctx, tx, head+strings.Join(rows, ", "), args...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}
	return nil
}
