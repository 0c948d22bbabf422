package cmd

import (
	"fmt"

	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/repository"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// migrateSetup loads configuration without opening the store.
func migrateSetup(_ *cobra.Command, _ []string) error {
	return loadConfig()
}

// migrateCmd runs database migrations for the persistent backends.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage schema versions of the persistent repository backends.

Opening a store already migrates it to the latest version; use this command to
roll back or to pin a specific version. The memory backend has no schema.

Examples:
  # Migrate to latest version (default)
  skysched migrate --backend postgresql --database-url postgres://localhost/skysched

  # Migrate to specific version
  skysched migrate --target-version 1

  # Rollback every migration
  skysched migrate --target-version 0`,
	PreRunE: migrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		backend, err := repository.ResolveBackend(cfg.Backend, cfg.DatabaseURL)
		if err != nil {
			contract.LogFatal("Cannot resolve backend", err)
		}
		targetVersion := viper.GetInt("target-version")
		res, err := repository.Migrate(rootCtx, backend, cfg.DatabaseURL, cfg.Pool, targetVersion)
		if err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
		if !res.Changed {
			fmt.Printf("Schema already at version %d.\n", res.To)
			return
		}
		fmt.Printf("Migrated %s schema from version %d to %d.\n", backend, res.From, res.To)
	},
}
