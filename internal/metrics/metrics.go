package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSize       *prometheus.HistogramVec
	HTTPResponseSize      *prometheus.HistogramVec
	HTTPActiveConnections *prometheus.GaugeVec

	// Cache metrics
	CacheHitsTotal         *prometheus.CounterVec
	CacheMissesTotal       *prometheus.CounterVec
	CacheOperationsTotal   *prometheus.CounterVec
	CacheOperationDuration *prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitExceededTotal *prometheus.CounterVec

	// Database metrics
	DatabaseQueryDuration   *prometheus.HistogramVec
	DatabaseQueriesTotal    *prometheus.CounterVec
	DatabaseConnectionsOpen *prometheus.GaugeVec

	// Prefetch metrics
	PrefetchRecommendationsTotal *prometheus.CounterVec
	PrefetchBaseCount            *prometheus.HistogramVec
	PrefetchEstimatedSize        *prometheus.HistogramVec
	PrefetchDuration             *prometheus.HistogramVec
	CandidateFailuresTotal       *prometheus.CounterVec
	CandidateFetchDuration       *prometheus.HistogramVec
	GorseErrors                  *prometheus.CounterVec

	// Outcome logging metrics
	OutcomeRecordsTotal *prometheus.CounterVec
	OutcomeQueueDepth   prometheus.Gauge
	FeedbackTotal       *prometheus.CounterVec

	// Alert metrics
	AlertsTriggeredTotal *prometheus.CounterVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			// HTTP metrics
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestSize: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_size_bytes",
					Help:    "HTTP request body size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 5),
				},
				[]string{"method", "path"},
			),
			HTTPResponseSize: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_response_size_bytes",
					Help:    "HTTP response size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 5),
				},
				[]string{"method", "path", "status"},
			),
			HTTPActiveConnections: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "http_active_connections",
					Help: "Number of currently active HTTP connections",
				},
				[]string{"method", "path"},
			),

			// Cache metrics
			CacheHitsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_hits_total",
					Help: "Total number of cache hits",
				},
				[]string{"cache_name"},
			),
			CacheMissesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_misses_total",
					Help: "Total number of cache misses",
				},
				[]string{"cache_name"},
			),
			CacheOperationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_operations_total",
					Help: "Total number of cache operations",
				},
				[]string{"operation", "cache_name"},
			),
			CacheOperationDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "cache_operation_duration_seconds",
					Help:    "Cache operation latency in seconds",
					Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
				},
				[]string{"operation", "cache_name"},
			),

			// Rate limiting metrics
			RateLimitExceededTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Total number of rate limit violations",
				},
				[]string{"endpoint", "method"},
			),

			// Database metrics
			DatabaseQueryDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "database_query_duration_seconds",
					Help:    "Database query latency in seconds",
					Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"query_type", "table"},
			),
			DatabaseQueriesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "database_queries_total",
					Help: "Total number of database queries",
				},
				[]string{"query_type", "table", "status"},
			),
			DatabaseConnectionsOpen: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "database_connections_open",
					Help: "Number of currently open database connections",
				},
				[]string{"database"},
			),

			// Prefetch metrics
			PrefetchRecommendationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "prefetch_recommendations_total",
					Help: "Total number of prefetch recommendations by network type and fallback reason",
				},
				[]string{"network_type", "fallback"},
			),
			PrefetchBaseCount: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "prefetch_base_count",
					Help:    "Number of videos the strategy asked to prefetch",
					Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8},
				},
				[]string{"network_type"},
			),
			PrefetchEstimatedSize: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "prefetch_estimated_size_mb",
					Help:    "Estimated transfer size of a recommendation in megabytes",
					Buckets: []float64{0, 2, 5, 10, 15, 20, 30, 50},
				},
				[]string{"network_type"},
			),
			PrefetchDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "prefetch_recommendation_duration_seconds",
					Help:    "Time to build a prefetch recommendation in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .15, .25, .5},
				},
				[]string{"network_type"},
			),
			CandidateFailuresTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "prefetch_candidate_failures_total",
					Help: "Total number of recommendations that fell back to an empty list",
				},
				[]string{"reason"},
			),
			CandidateFetchDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "prefetch_candidate_fetch_duration_seconds",
					Help:    "Candidate source latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .15, .25, .5},
				},
				[]string{"source", "status"},
			),
			GorseErrors: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gorse_errors_total",
					Help: "Total number of Gorse errors",
				},
				[]string{"error_type"},
			),

			// Outcome logging metrics
			OutcomeRecordsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "prefetch_outcome_records_total",
					Help: "Outcome records by final status (persisted, dropped, failed)",
				},
				[]string{"status"},
			),
			OutcomeQueueDepth: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "prefetch_outcome_queue_depth",
					Help: "Outcome records waiting to be persisted",
				},
			),
			FeedbackTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "prefetch_feedback_total",
					Help: "Total number of viewed-video feedback reports",
				},
				[]string{"status"},
			),

			// Alert metrics
			AlertsTriggeredTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "prefetch_alerts_triggered_total",
					Help: "Total number of prefetch health alerts raised",
				},
				[]string{"type", "level"},
			),

			// Error metrics
			ErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "errors_total",
					Help: "Total number of errors by type",
				},
				[]string{"error_type", "endpoint"},
			),
		}
	})
	return instance
}

// Get returns the global metrics instance
func Get() *Metrics {
	if instance == nil {
		return Initialize()
	}
	return instance
}
