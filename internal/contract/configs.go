package contract

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/huangsam/skysched/schema"
)

// Default values for configuration.
const (
	DefaultPoolMinConns          = 1
	DefaultPoolMaxConns          = 10
	DefaultConnectTimeout        = 30 * time.Second
	DefaultIdleTimeout           = 10 * time.Minute
	DefaultQueryTimeout          = 30 * time.Second
	DefaultMaxRetries            = 3
	DefaultRetryDelay            = 500 * time.Millisecond
	DefaultMaxParamsPerStatement = 32000
	DefaultVisibilityBins        = 10
	DefaultHeatmapBins           = 15
	DefaultTrendPoints           = 50
	DefaultCallTimeout           = 2 * time.Minute
	DefaultPrecision             = 2
)

// DefaultWorkers is the default number of concurrent workers to use.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// PoolConfig holds connection pool and retry settings for persistent backends.
type PoolConfig struct {
	MinConns       int
	MaxConns       int
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
	QueryTimeout   time.Duration

	MaxRetries   int
	RetryDelay   time.Duration
	RetryBackoff bool // exponential instead of fixed delay

	// MaxParamsPerStatement caps bind parameters in one bulk statement.
	MaxParamsPerStatement int
}

// DefaultPoolConfig returns the pool settings used when nothing is configured.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MinConns:              DefaultPoolMinConns,
		MaxConns:              DefaultPoolMaxConns,
		ConnectTimeout:        DefaultConnectTimeout,
		IdleTimeout:           DefaultIdleTimeout,
		QueryTimeout:          DefaultQueryTimeout,
		MaxRetries:            DefaultMaxRetries,
		RetryDelay:            DefaultRetryDelay,
		MaxParamsPerStatement: DefaultMaxParamsPerStatement,
	}
}

// Config holds the runtime configuration.
// This struct is the "final, validated" config.
type Config struct {
	Backend     schema.DatabaseBackend // empty means "decide from the connection string"
	DatabaseURL string                 // Please use env var as this is plaintext
	Pool        PoolConfig

	VisibilityBins int
	HeatmapBins    int
	TrendPoints    int
	TrendBandwidth float64 // 0 means a tenth of the observed range

	Workers     int
	CallTimeout time.Duration

	Output     schema.OutputMode
	OutputFile string
	Precision  int
	UseColors  bool

	LogLevel  string
	LogFormat string

	NatsURL     string
	NatsSubject string
	MetricsAddr string
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	Backend               string        `mapstructure:"backend"`
	DatabaseURL           string        `mapstructure:"database-url"`
	PoolMin               int           `mapstructure:"pool-min"`
	PoolMax               int           `mapstructure:"pool-max"`
	ConnectTimeout        time.Duration `mapstructure:"connect-timeout"`
	IdleTimeout           time.Duration `mapstructure:"idle-timeout"`
	QueryTimeout          time.Duration `mapstructure:"query-timeout"`
	MaxRetries            int           `mapstructure:"max-retries"`
	RetryDelay            time.Duration `mapstructure:"retry-delay"`
	RetryBackoff          bool          `mapstructure:"retry-backoff"`
	MaxParamsPerStatement int           `mapstructure:"max-params-per-statement"`

	VisibilityBins int     `mapstructure:"visibility-bins"`
	HeatmapBins    int     `mapstructure:"heatmap-bins"`
	TrendPoints    int     `mapstructure:"trend-points"`
	TrendBandwidth float64 `mapstructure:"trend-bandwidth"`

	Workers     int           `mapstructure:"workers"`
	CallTimeout time.Duration `mapstructure:"call-timeout"`

	Output     string `mapstructure:"output"`
	OutputFile string `mapstructure:"output-file"`
	Precision  int    `mapstructure:"precision"`
	Color      string `mapstructure:"color"`

	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`

	NatsURL     string `mapstructure:"nats-url"`
	NatsSubject string `mapstructure:"nats-subject"`
	MetricsAddr string `mapstructure:"metrics-addr"`
}

// Clone returns a copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateBackendConfig(cfg, input); err != nil {
		return err
	}
	if err := processPoolConfig(cfg, input); err != nil {
		return err
	}
	if err := processAnalyticsConfig(cfg, input); err != nil {
		return err
	}
	return validateSimpleInputs(cfg, input)
}

// ParseBackend maps user-facing backend names to a backend kind.
// "persistent" returns an empty backend so the connection string decides the dialect.
func ParseBackend(s string) (schema.DatabaseBackend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "memory", "in-memory", "inmemory", "local":
		return schema.MemoryBackend, nil
	case "postgresql", "postgres", "pg":
		return schema.PostgreSQLBackend, nil
	case "mysql":
		return schema.MySQLBackend, nil
	case "sqlite", "sqlite3":
		return schema.SQLiteBackend, nil
	case "persistent":
		return "", nil
	}
	return "", fmt.Errorf("invalid backend '%s'. must be memory, postgresql, mysql, sqlite or persistent", s)
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.MemoryBackend, "":
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("database-url is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("database-url is required when using %s backend", backend)
		}
		isURL := strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://")
		if !isURL && !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must be a postgres:// URL or contain 'host=' parameter")
		}
	}
	return nil
}

// validateBackendConfig validates backend selection and its connection string.
func validateBackendConfig(cfg *Config, input *ConfigRawInput) error {
	backend, err := ParseBackend(input.Backend)
	if err != nil {
		return err
	}
	cfg.Backend = backend
	cfg.DatabaseURL = input.DatabaseURL
	return ValidateDatabaseConnectionString(cfg.Backend, cfg.DatabaseURL)
}

// processPoolConfig fills pool settings, falling back to defaults for zero values.
func processPoolConfig(cfg *Config, input *ConfigRawInput) error {
	pool := DefaultPoolConfig()
	if input.PoolMin > 0 {
		pool.MinConns = input.PoolMin
	}
	if input.PoolMax > 0 {
		pool.MaxConns = input.PoolMax
	}
	if pool.MinConns > pool.MaxConns {
		return fmt.Errorf("pool-min (%d) must not exceed pool-max (%d)", pool.MinConns, pool.MaxConns)
	}
	if input.ConnectTimeout > 0 {
		pool.ConnectTimeout = input.ConnectTimeout
	}
	if input.IdleTimeout > 0 {
		pool.IdleTimeout = input.IdleTimeout
	}
	if input.QueryTimeout > 0 {
		pool.QueryTimeout = input.QueryTimeout
	}
	if input.MaxRetries < 0 {
		return fmt.Errorf("max-retries must be at least 0")
	}
	pool.MaxRetries = input.MaxRetries
	if input.RetryDelay > 0 {
		pool.RetryDelay = input.RetryDelay
	}
	pool.RetryBackoff = input.RetryBackoff
	if input.MaxParamsPerStatement < 0 {
		return fmt.Errorf("max-params-per-statement must be positive")
	}
	if input.MaxParamsPerStatement > 0 {
		pool.MaxParamsPerStatement = input.MaxParamsPerStatement
	}
	cfg.Pool = pool
	return nil
}

// processAnalyticsConfig validates bin counts and trend settings.
func processAnalyticsConfig(cfg *Config, input *ConfigRawInput) error {
	cfg.VisibilityBins = orDefault(input.VisibilityBins, DefaultVisibilityBins)
	cfg.HeatmapBins = orDefault(input.HeatmapBins, DefaultHeatmapBins)
	cfg.TrendPoints = orDefault(input.TrendPoints, DefaultTrendPoints)
	if cfg.VisibilityBins < 1 || cfg.HeatmapBins < 1 || cfg.TrendPoints < 1 {
		return fmt.Errorf("bin and point counts must be at least 1")
	}
	if input.TrendBandwidth < 0 {
		return fmt.Errorf("trend-bandwidth must not be negative")
	}
	cfg.TrendBandwidth = input.TrendBandwidth
	return nil
}

// validateSimpleInputs processes the remaining output, logging and worker fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.NatsURL = input.NatsURL
	cfg.NatsSubject = input.NatsSubject
	cfg.MetricsAddr = input.MetricsAddr
	cfg.LogLevel = input.LogLevel
	cfg.LogFormat = input.LogFormat

	cfg.Workers = orDefault(input.Workers, DefaultWorkers)
	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	cfg.CallTimeout = DefaultCallTimeout
	if input.CallTimeout > 0 {
		cfg.CallTimeout = input.CallTimeout
	}

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if cfg.Output == "" {
		cfg.Output = schema.TextOut
	}
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output mode '%s'. must be text, csv, json or parquet", input.Output)
	}
	if cfg.Output == schema.ParquetOut && cfg.OutputFile == "" {
		return fmt.Errorf("--output-file is required for parquet output")
	}

	cfg.Precision = input.Precision
	if cfg.Precision < 0 || cfg.Precision > 6 {
		return fmt.Errorf("precision must be between 0 and 6")
	}

	cfg.UseColors = true
	if input.Color != "" {
		useColors, err := ParseBoolString(input.Color)
		if err != nil {
			return fmt.Errorf("invalid color value: %w", err)
		}
		cfg.UseColors = useColors
	}
	return nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
