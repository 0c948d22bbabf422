// Package repository implements the storage backends behind contract.Store: one
// database/sql store speaking the PostgreSQL, MySQL and SQLite dialects, and an
// in-memory store for tests and local use.
package repository

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/logging"
	"github.com/huangsam/skysched/schema"
)

// EnvDatabaseURL is the conventional fallback for the connection string.
const EnvDatabaseURL = "DATABASE_URL"

// ResolveBackend picks a backend: an explicit selection wins, then the shape of the
// connection string, then the in-memory default.
func ResolveBackend(backend schema.DatabaseBackend, connStr string) (schema.DatabaseBackend, error) {
	if backend != "" {
		if _, ok := schema.ValidDatabaseBackends[backend]; !ok {
			return "", fmt.Errorf("unsupported backend: %s", backend)
		}
		return backend, nil
	}
	if connStr == "" {
		return schema.MemoryBackend, nil
	}
	return InferBackend(connStr)
}

// InferBackend guesses the dialect from a connection string.
func InferBackend(connStr string) (schema.DatabaseBackend, error) {
	s := strings.TrimSpace(connStr)
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"),
		strings.Contains(lower, "host="):
		return schema.PostgreSQLBackend, nil
	case strings.HasPrefix(lower, "mysql://"), strings.Contains(s, "@tcp("), strings.Contains(s, "@unix("):
		return schema.MySQLBackend, nil
	case strings.HasPrefix(lower, "sqlite://"), strings.HasPrefix(lower, "file:"), s == ":memory:",
		strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"), strings.HasSuffix(lower, ".sqlite3"):
		return schema.SQLiteBackend, nil
	}
	return "", fmt.Errorf("cannot infer backend from connection string; set backend explicitly")
}

// Open builds the store selected by cfg. The persistent backends are migrated to the
// latest schema version before they are returned.
func Open(ctx context.Context, cfg *contract.Config) (contract.Store, error) {
	connStr := cfg.DatabaseURL
	if connStr == "" && cfg.Backend != schema.MemoryBackend {
		connStr = os.Getenv(EnvDatabaseURL)
	}
	backend, err := ResolveBackend(cfg.Backend, connStr)
	if err != nil {
		return nil, err
	}

	log := logging.With("repository")
	log.Debug().Str("backend", string(backend)).Msg("opening store")

	if backend == schema.MemoryBackend {
		return NewMemoryStore(), nil
	}
	return NewSQLStore(ctx, backend, connStr, cfg.Pool)
}
