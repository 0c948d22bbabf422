// Package metrics holds the Prometheus collectors for skysched.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ETLDuration tracks how long each populator phase takes.
	ETLDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skysched_etl_duration_seconds",
			Help:    "Duration of analytics populator phases in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"}, // "blocks", "summary"
	)

	// ETLRows counts analytics rows written per tier.
	ETLRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skysched_etl_rows_total",
			Help: "Total number of analytics rows written",
		},
		[]string{"tier"}, // "blocks", "summary", "priority_rates", "visibility_bins", "heatmap_bins"
	)

	// ETLErrors counts failed populator phases.
	ETLErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skysched_etl_errors_total",
			Help: "Total number of failed analytics populator phases",
		},
		[]string{"phase"},
	)

	// QueryPathTotal counts which path answered each analytics query.
	QueryPathTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skysched_query_path_total",
			Help: "Analytics queries answered per shape and path (fast or slow)",
		},
		[]string{"shape", "path"},
	)

	// RepositoryRetries counts retried backend operations.
	RepositoryRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skysched_repository_retries_total",
			Help: "Total number of retried repository operations",
		},
		[]string{"operation"},
	)

	// RepositoryQueryDuration tracks backend operation latency.
	RepositoryQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skysched_repository_query_duration_seconds",
			Help:    "Duration of repository operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	// BridgeCalls counts blocking boundary calls by outcome.
	BridgeCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skysched_bridge_calls_total",
			Help: "Total number of bridge calls by outcome",
		},
		[]string{"outcome"}, // "ok" or an error kind
	)

	// CircuitBreakerState reports the fast path breaker state (0 closed, 1 half-open, 2 open).
	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skysched_fast_path_breaker_state",
			Help: "State of the analytics fast path circuit breaker",
		},
	)
)

// ObserveETL records the duration of one populator phase.
func ObserveETL(phase string, start time.Time) {
	ETLDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}

// ObserveRepository records the duration of one repository operation.
func ObserveRepository(backend, operation string, start time.Time) {
	RepositoryQueryDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
