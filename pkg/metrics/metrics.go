// Package metrics defines the Prometheus collectors used by the contract
// search services and the server that exposes them for scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	HTTPRequestsInFlight   prometheus.Gauge
	SearchQueriesTotal     *prometheus.CounterVec
	SearchLatency          *prometheus.HistogramVec
	SearchMatchCount       prometheus.Histogram
	StageLatency           *prometheus.HistogramVec
	AggregationDegraded    *prometheus.CounterVec
	CacheHitsTotal         prometheus.Counter
	CacheMissesTotal       prometheus.Counter
	StatsRefreshTotal      *prometheus.CounterVec
	SearchEventsPublished  *prometheus.CounterVec
	ContractsDeletedTotal  prometheus.Counter
	ContractsInsertedTotal prometheus.Counter
	CircuitBreakerState    *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. A nil reg uses
// the default registerer; tests pass their own prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contract_search_queries_total",
				Help: "Total searches by outcome (ok, zero_result, invalid, error).",
			},
			[]string{"outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contract_search_latency_seconds",
				Help:    "End-to-end search latency in seconds.",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"cache_status"},
		),
		SearchMatchCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "contract_search_match_count",
				Help:    "Size of the full match set per search.",
				Buckets: prometheus.ExponentialBuckets(1, 10, 7),
			},
		),
		StageLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contract_search_stage_latency_seconds",
				Help:    "Latency of each search stage (totals, suppliers, institutions, years, facets, page).",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"stage"},
		),
		AggregationDegraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contract_aggregation_degraded_total",
				Help: "Aggregation or facet stages replaced by zero values after a failure.",
			},
			[]string{"stage"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of response cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of response cache misses.",
			},
		),
		StatsRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contract_stats_refresh_total",
				Help: "Statistics cache recomputations by status.",
			},
			[]string{"status"},
		),
		SearchEventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_events_published_total",
				Help: "Search-history events handed to Kafka by status.",
			},
			[]string{"status"},
		),
		ContractsDeletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "contracts_duplicates_deleted_total",
				Help: "Duplicate contract rows removed by cleanup runs.",
			},
		),
		ContractsInsertedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "contracts_inserted_total",
				Help: "Contract rows inserted by bulk loads.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchMatchCount,
		m.StageLatency,
		m.AggregationDegraded,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.StatsRefreshTotal,
		m.SearchEventsPublished,
		m.ContractsDeletedTotal,
		m.ContractsInsertedTotal,
		m.CircuitBreakerState,
	)

	return m
}
