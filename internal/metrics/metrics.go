// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

// Package metrics holds the Prometheus collectors for Affinity.
//
// Collectors are registered on the default registry via promauto and served
// on /metrics by the api package.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline Metrics
	PipelineRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_pipeline_requests_total",
			Help: "Recommendation pipeline invocations by outcome",
		},
		[]string{"category", "outcome"}, // "cache_hit", "generated", "empty", "ineligible", "parse_error", "failed"
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "affinity_pipeline_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45},
		},
		[]string{"stage"}, // "traits", "intent", "aggregate", "explain", "persist"
	)

	PipelineItemsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "affinity_pipeline_items_returned",
			Help:    "Number of items in generated recommendation sets",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 6, 7, 8},
		},
	)

	DegenerateCacheRegenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_degenerate_cache_regenerations_total",
			Help: "Cached results discarded because every item lacked an image",
		},
		[]string{"category"},
	)

	PersistFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_persist_failures_total",
			Help: "Per-user result store write failures",
		},
		[]string{"kind"}, // "latest", "history"
	)

	// Generation Service Metrics
	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_llm_requests_total",
			Help: "Structured generation calls by schema and result",
		},
		[]string{"schema", "result"}, // result: "ok", "error", "parse_error"
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "affinity_llm_request_duration_seconds",
			Help:    "Duration of structured generation calls in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		},
		[]string{"schema"},
	)

	ExplainerFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affinity_explainer_fallbacks_total",
			Help: "Explanation stage failures that fell back to unexplained items",
		},
	)

	// Search Cache Metrics
	SearchCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_search_cache_hits_total",
			Help: "Global search cache hits by tier",
		},
		[]string{"tier"}, // "memory", "badger"
	)

	SearchCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affinity_search_cache_misses_total",
			Help: "Global search cache misses",
		},
	)

	SearchCacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_search_cache_errors_total",
			Help: "Global search cache storage errors",
		},
		[]string{"operation"}, // "get", "put"
	)

	// Catalog Metrics
	CatalogRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_catalog_requests_total",
			Help: "Catalog search calls by source and result",
		},
		[]string{"source", "result"}, // result: "ok", "empty", "error", "rate_limited", "circuit_open"
	)

	CatalogRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "affinity_catalog_request_duration_seconds",
			Help:    "Catalog search call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	RateLimitWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "affinity_ratelimit_wait_seconds",
			Help:    "Time spent waiting for a catalog rate limit slot",
			Buckets: []float64{0, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"service"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Storage Metrics
	BadgerGCRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_badger_gc_runs_total",
			Help: "Badger value log GC passes by result",
		},
		[]string{"result"}, // "rewritten", "noop", "error"
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "affinity_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordPipelineOutcome counts one pipeline invocation.
func RecordPipelineOutcome(category, outcome string) {
	PipelineRequests.WithLabelValues(category, outcome).Inc()
}

// ObserveStage records the latency of a pipeline stage.
func ObserveStage(stage string, duration time.Duration) {
	PipelineStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordLLMRequest records a structured generation call.
func RecordLLMRequest(schema, result string, duration time.Duration) {
	LLMRequests.WithLabelValues(schema, result).Inc()
	LLMRequestDuration.WithLabelValues(schema).Observe(duration.Seconds())
}

// RecordCatalogRequest records a catalog search call.
func RecordCatalogRequest(source, result string, duration time.Duration) {
	CatalogRequests.WithLabelValues(source, result).Inc()
	CatalogRequestDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
