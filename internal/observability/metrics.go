package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathfinder_api_requests_total",
			Help: "HTTP requests by route, method and status class.",
		},
		[]string{"route", "method", "status"},
	)

	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pathfinder_api_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	APIInflight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pathfinder_api_inflight_requests",
			Help: "HTTP requests currently being served.",
		},
	)

	// RankingCache counts fingerprint cache lookups. result is hit, miss or error.
	RankingCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathfinder_ranking_cache_lookups_total",
			Help: "Ranking cache lookups by backend and result.",
		},
		[]string{"backend", "result"},
	)

	RankingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pathfinder_ranking_duration_seconds",
			Help:    "End-to-end personalized ranking latency by source.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"source"},
	)

	OracleRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathfinder_oracle_requests_total",
			Help: "Ranking oracle calls by outcome.",
		},
		[]string{"outcome"},
	)

	OracleLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pathfinder_oracle_request_duration_seconds",
			Help:    "Ranking oracle call latency.",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 45, 90},
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pathfinder_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathfinder_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions.",
		},
		[]string{"name", "from", "to"},
	)

	CatalogSyncItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathfinder_catalog_sync_items_total",
			Help: "Catalog rows processed by the sync, by action.",
		},
		[]string{"action"},
	)
)

// StatusClass folds an HTTP status into 2xx/3xx/4xx/5xx.
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
