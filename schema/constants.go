package schema

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the storage backend behind the repository.
	DatabaseBackend string

	// AnalyticsView selects which denormalized block fields a consumer needs.
	AnalyticsView string

	// QueryPath reports whether a query was answered from precomputed analytics.
	QueryPath string

	// ValidationStatus is the outcome of a per-block validation check.
	ValidationStatus string

	// ValidationCategory groups validation checks by the data they inspect.
	ValidationCategory string

	// Criticality ranks how much a validation issue matters.
	Criticality string
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All repository backends supported.
const (
	MemoryBackend     DatabaseBackend = "memory" // default
	PostgreSQLBackend DatabaseBackend = "postgresql"
	MySQLBackend      DatabaseBackend = "mysql"
	SQLiteBackend     DatabaseBackend = "sqlite"
)

// Analytics views used by different dashboard pages.
const (
	SkyMapView       AnalyticsView = "sky_map"
	DistributionView AnalyticsView = "distribution"
	TimelineView     AnalyticsView = "timeline"
	InsightsView     AnalyticsView = "insights"
	TrendsView       AnalyticsView = "trends"
)

// Query paths.
const (
	FastPath QueryPath = "fast"
	SlowPath QueryPath = "slow"
)

// Validation statuses.
const (
	StatusValid      ValidationStatus = "valid"
	StatusImpossible ValidationStatus = "impossible"
	StatusError      ValidationStatus = "error"
	StatusWarning    ValidationStatus = "warning"
)

// Validation categories.
const (
	CategoryVisibility      ValidationCategory = "visibility"
	CategoryConstraint      ValidationCategory = "constraint"
	CategoryCoordinate      ValidationCategory = "coordinate"
	CategoryPriority        ValidationCategory = "priority"
	CategoryDuration        ValidationCategory = "duration"
	CategoryScheduledPeriod ValidationCategory = "scheduled_period"
)

// Criticality levels.
const (
	CriticalityLow      Criticality = "low"
	CriticalityMedium   Criticality = "medium"
	CriticalityHigh     Criticality = "high"
	CriticalityCritical Criticality = "critical"
)

// Unit conversions.
const (
	HoursPerDay    = 24.0
	SecondsPerHour = 3600.0
)

// NumPriorityBuckets is the number of quartile buckets for block priorities.
const NumPriorityBuckets = 4

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid repository backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	MemoryBackend:     {},
	PostgreSQLBackend: {},
	MySQLBackend:      {},
	SQLiteBackend:     {},
}

// AllAnalyticsViews returns every supported analytics view.
var AllAnalyticsViews = []AnalyticsView{SkyMapView, DistributionView, TimelineView, InsightsView, TrendsView}
