package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/logging"
	"github.com/huangsam/skysched/schema"
)

//go:embed migrations
var migrationsFS embed.FS

// LatestSchemaVersion is the newest migration shipped in migrations/.
const LatestSchemaVersion = 1

// MigrationResult reports the schema version before and after a migration.
type MigrationResult struct {
	From    uint
	To      uint
	Changed bool
}

// Migrate moves the database behind connStr to targetVersion.
//   - If targetVersion < 0, it migrates to the latest version.
//   - If targetVersion == 0, it rolls back every migration.
//   - If targetVersion > 0, it migrates to that version.
func Migrate(ctx context.Context, backend schema.DatabaseBackend, connStr string, pool contract.PoolConfig, targetVersion int) (MigrationResult, error) {
	if backend == schema.MemoryBackend {
		return MigrationResult{}, fmt.Errorf("migrations are not supported for the memory backend")
	}
	db, err := openDB(ctx, backend, connStr, pool)
	if err != nil {
		return MigrationResult{}, err
	}
	m, err := newMigrator(db, backend)
	if err != nil {
		_ = db.Close()
		return MigrationResult{}, err
	}
	// Closing the migrator closes db as well.
	defer func() { _, _ = m.Close() }()
	return runMigrations(m, targetVersion)
}

// newMigrator wraps db in a migrate instance reading the embedded dialect directory.
func newMigrator(db *sql.DB, backend schema.DatabaseBackend) (*migrate.Migrate, error) {
	var driver database.Driver
	var err error
	var dir string

	switch backend {
	case schema.PostgreSQLBackend:
		dir = "migrations/postgres"
		driver, err = pgx.WithInstance(db, &pgx.Config{})
	case schema.MySQLBackend:
		dir = "migrations/mysql"
		driver, err = mysql.WithInstance(db, &mysql.Config{})
	case schema.SQLiteBackend:
		dir = "migrations/sqlite"
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s migrate driver: %w", backend, err)
	}

	sub, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access migrations directory: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, string(backend), driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

func runMigrations(m *migrate.Migrate, targetVersion int) (MigrationResult, error) {
	current, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrationResult{}, fmt.Errorf("failed to get current migration version: %w", err)
	}
	if dirty {
		return MigrationResult{}, fmt.Errorf("database is in a dirty state at version %d. Please fix manually or force version", current)
	}

	switch {
	case targetVersion < 0:
		err = m.Up()
	case targetVersion == 0:
		err = m.Down()
	default:
		err = m.Migrate(uint(targetVersion))
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return MigrationResult{From: current, To: current}, nil
	}
	if err != nil {
		return MigrationResult{}, fmt.Errorf("failed to migrate to version %d: %w", targetVersion, err)
	}

	next, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrationResult{}, fmt.Errorf("failed to read migrated version: %w", err)
	}
	log := logging.With("repository")
	log.Info().Uint("from", current).Uint("to", next).Msg("schema migrated")
	return MigrationResult{From: current, To: next, Changed: true}, nil
}
