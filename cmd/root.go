package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/huangsam/skysched/core"
	"github.com/huangsam/skysched/internal/bridge"
	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/etl"
	"github.com/huangsam/skysched/internal/logging"
	"github.com/huangsam/skysched/internal/metrics"
	"github.com/huangsam/skysched/internal/notify"
	"github.com/huangsam/skysched/internal/outwriter"
	"github.com/huangsam/skysched/internal/repository"
	"github.com/huangsam/skysched/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Build metadata, overridden with -ldflags at release time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// app holds the services built from cfg by sharedSetup.
var app struct {
	store     contract.Store
	repo      *etl.Repository
	publisher contract.EventPublisher
	populator *etl.Populator
	queries   *core.QueryService
	uploader  *core.Uploader
	bridge    *bridge.Bridge
	server    *http.Server
}

// profilePrefix is set when CPU and memory profiles should be written.
var profilePrefix string

// startProfiling starts CPU profiling if enabled.
func startProfiling() error {
	if profilePrefix == "" {
		return nil
	}
	cpuFile, err := os.Create(profilePrefix + ".cpu.prof")
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuFile); err != nil {
		return fmt.Errorf("could not start CPU profiling: %w", err)
	}
	logging.Info().Str("prefix", profilePrefix).Msg("profiling enabled")
	return nil
}

// stopProfiling stops profiling and writes the memory profile.
func stopProfiling() error {
	if profilePrefix == "" {
		return nil
	}
	pprof.StopCPUProfile()

	memFile, err := os.Create(profilePrefix + ".mem.prof")
	if err != nil {
		return fmt.Errorf("could not create memory profile: %w", err)
	}
	defer func() { _ = memFile.Close() }()
	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("could not write memory profile: %w", err)
	}
	return nil
}

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:                "skysched",
	Short:              "Ingest telescope schedules and explore their scheduling analytics.",
	Long:               `Skysched stores observation schedules, precomputes their analytics and answers dashboard queries from them.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Check if a specific config file is provided
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		// Set config file name and paths
		viper.SetConfigName(".skysched") // Name of config file (without extension)
		viper.SetConfigType("yaml")      // We'll use YAML format
		viper.AddConfigPath(".")         // Look in the current directory
		viper.AddConfigPath("$HOME")     // Look in the home directory
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("SKYSCHED")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // Read in environment variables that match

	// Set defaults in Viper; the CLI persists to SQLite unless told otherwise
	viper.SetDefault("backend", schema.SQLiteBackend)
	viper.SetDefault("workers", contract.DefaultWorkers)
	viper.SetDefault("precision", contract.DefaultPrecision)
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("visibility-bins", contract.DefaultVisibilityBins)
	viper.SetDefault("heatmap-bins", contract.DefaultHeatmapBins)
	viper.SetDefault("trend-points", contract.DefaultTrendPoints)
	viper.SetDefault("nats-subject", notify.DefaultSubject)
	viper.SetDefault("log-level", "info")
	viper.SetDefault("log-format", "console")
	viper.SetDefault("color", "yes")
}

// loadConfig merges file, env and flags into cfg.
func loadConfig() error {
	// 1. Read config file. This merges defaults, file, env, and flags.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			// Config file was found but another error was produced
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}

	// 2. Unmarshal all resolved values from Viper into our raw input struct.
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	// 3. Run all validation and complex parsing.
	if err := contract.ProcessAndValidate(cfg, input); err != nil {
		return err
	}
	// 4. Fill in the default database file for the SQLite backend.
	if cfg.Backend == schema.SQLiteBackend && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = contract.GetDBFilePath()
	}

	// 5. Apply logging and color settings before any command output.
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	outwriter.SetColors(cfg.UseColors)
	return nil
}

// sharedSetup validates config and builds every service the commands use.
func sharedSetup(ctx context.Context, _ *cobra.Command, _ []string) error {
	profilePrefix = viper.GetString("profile")
	if err := loadConfig(); err != nil {
		return err
	}
	if err := startProfiling(); err != nil {
		return fmt.Errorf("failed to start profiling: %w", err)
	}

	// Open the repository and the event publisher
	store, err := repository.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open repository: %w", err)
	}
	publisher, err := notify.New(cfg)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to connect event publisher: %w", err)
	}

	// Build the services every command shares
	app.repo = etl.NewRepository(store, etl.OptionsFromConfig(cfg, publisher))
	app.store = app.repo
	app.publisher = publisher
	app.populator = app.repo.Populator()
	app.queries = core.NewQueryService(store, core.QueryOptionsFromConfig(cfg))
	app.uploader = core.NewUploader(store, app.populator)
	app.bridge = bridge.FromConfig(cfg)

	// Serve metrics and health only when an address is configured
	if cfg.MetricsAddr != "" {
		app.server = metrics.StartServer(cfg.MetricsAddr, metrics.NewRouter(store.HealthCheck))
	}
	return nil
}

// sharedSetupWrapper wraps sharedSetup to provide context for Cobra's PreRunE.
func sharedSetupWrapper(cmd *cobra.Command, args []string) error {
	return sharedSetup(rootCtx, cmd, args)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// Shutdown releases everything sharedSetup opened.
func Shutdown() error {
	var errs []error
	if app.server != nil {
		ctx, cancel := context.WithTimeout(rootCtx, 5*time.Second)
		errs = append(errs, app.server.Shutdown(ctx))
		cancel()
	}
	if app.publisher != nil {
		errs = append(errs, app.publisher.Close())
	}
	if app.store != nil {
		errs = append(errs, app.store.Close())
	}
	errs = append(errs, stopProfiling())
	return errors.Join(errs...)
}
