// Package cmd defines the command-line interface for skysched.
package cmd

import (
	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/notify"
	"github.com/huangsam/skysched/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(schedulesCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	schedulesCmd.AddCommand(schedulesValidationCmd)

	analyticsCmd.AddCommand(analyticsRefreshCmd)
	analyticsCmd.AddCommand(analyticsMetricsCmd)
	analyticsCmd.AddCommand(analyticsSummaryCmd)
	analyticsCmd.AddCommand(analyticsPriorityCmd)
	analyticsCmd.AddCommand(analyticsBinsCmd)
	analyticsCmd.AddCommand(analyticsHeatmapCmd)
	analyticsCmd.AddCommand(analyticsTrendsCmd)
	analyticsCmd.AddCommand(analyticsConflictsCmd)
	analyticsCmd.AddCommand(analyticsBlocksCmd)
	analyticsCmd.AddCommand(analyticsCompareCmd)
	analyticsCmd.AddCommand(analyticsExportCmd)
	analyticsCmd.AddCommand(analyticsStatusCmd)

	// Bind all persistent flags of rootCmd to Viper
	pf := rootCmd.PersistentFlags()
	pf.String("backend", string(schema.SQLiteBackend), "Repository backend: memory or sqlite or mysql or postgresql or persistent")
	pf.String("database-url", "", "Connection string for the backend (defaults to ~/.skysched.db for sqlite)")
	pf.Int("pool-min", contract.DefaultPoolMinConns, "Minimum pooled connections")
	pf.Int("pool-max", contract.DefaultPoolMaxConns, "Maximum pooled connections")
	pf.Duration("connect-timeout", contract.DefaultConnectTimeout, "Timeout for establishing a connection")
	pf.Duration("idle-timeout", contract.DefaultIdleTimeout, "How long an idle connection is kept")
	pf.Duration("query-timeout", contract.DefaultQueryTimeout, "Timeout for one repository attempt")
	pf.Int("max-retries", contract.DefaultMaxRetries, "Retries for transient repository failures")
	pf.Duration("retry-delay", contract.DefaultRetryDelay, "Delay between retries")
	pf.Bool("retry-backoff", false, "Grow the retry delay exponentially")
	pf.Int("max-params-per-statement", contract.DefaultMaxParamsPerStatement, "Bind parameter cap for bulk inserts")
	pf.Int("visibility-bins", contract.DefaultVisibilityBins, "Number of visibility bins")
	pf.Int("heatmap-bins", contract.DefaultHeatmapBins, "Number of heatmap bins per axis")
	pf.Int("trend-points", contract.DefaultTrendPoints, "Evaluation points of the smoothed trend curves")
	pf.Float64("trend-bandwidth", 0, "Kernel bandwidth of the trend curves (0 = a tenth of the range)")
	pf.Int("workers", contract.DefaultWorkers, "Number of concurrent workers")
	pf.Duration("call-timeout", contract.DefaultCallTimeout, "Timeout for one blocking call")
	pf.String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	pf.String("output-file", "", "Optional path to write output to")
	pf.Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	pf.String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	pf.String("log-level", "info", "Log level: trace or debug or info or warn or error or disabled")
	pf.String("log-format", "console", "Log format: console or json")
	pf.String("nats-url", "", "NATS server that receives analytics refresh events")
	pf.String("nats-subject", notify.DefaultSubject, "Subject for analytics refresh events")
	pf.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g., :9090)")
	pf.String("profile", "", "Enable profiling and write profiles to files with this prefix")
	pf.String("config", "", "Path to config file")
	if err := viper.BindPFlags(pf); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	uploadCmd.Flags().String("name", "", "Schedule name (defaults to the file name)")
	uploadCmd.Flags().String("possible-periods", "", "Path to the possible periods JSON file")
	uploadCmd.Flags().String("dark-periods", "", "Path to the dark periods JSON file")
	uploadCmd.Flags().Bool("skip-refresh", false, "Store without populating analytics")

	analyticsRefreshCmd.Flags().Bool("all", false, "Refresh every stored schedule")
	analyticsRefreshCmd.Flags().String("tier", "all", "Tiers to rebuild: all or blocks or summary")
	analyticsRefreshCmd.Flags().Int("bins", 0, "Visibility bins for --tier summary (defaults to visibility-bins)")
	analyticsBinsCmd.Flags().Int("bins", 0, "Number of bins (defaults to visibility-bins)")
	analyticsTrendsCmd.Flags().Int("bins", 0, "Number of bins (defaults to visibility-bins)")
	analyticsBlocksCmd.Flags().String("view", string(schema.InsightsView), "Analytics view: sky_map or distribution or timeline or insights or trends")
	analyticsBlocksCmd.Flags().Int("limit", 0, "Number of rows to display (0 = all)")
	analyticsCompareCmd.Flags().Bool("changes", false, "List the blocks whose scheduled state flipped")

	migrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(migrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding migrate flags", err)
	}
}
