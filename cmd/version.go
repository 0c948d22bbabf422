package cmd

import (
	"runtime"
	"slices"
	"strings"

	"github.com/huangsam/skysched/internal/repository"
	"github.com/huangsam/skysched/schema"
	"github.com/spf13/cobra"
)

// versionCmd prints build details along with the storage schema the binary expects.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build and schema version details.",
	Long: `Display the release version, commit and build date of skysched, the Go
runtime it was built with, the schema version its migrations produce and the
repository backends it can talk to.`,
	Run: func(cmd *cobra.Command, _ []string) {
		backends := make([]string, 0, len(schema.ValidDatabaseBackends))
		for b := range schema.ValidDatabaseBackends {
			backends = append(backends, string(b))
		}
		slices.Sort(backends)

		cmd.Printf("skysched %s (commit %s, built %s)\n", version, commit, date)
		cmd.Printf("  Go:       %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		cmd.Printf("  Schema:   v%d\n", repository.LatestSchemaVersion)
		cmd.Printf("  Backends: %s\n", strings.Join(backends, ", "))
	},
}
