// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

/*
Package middleware provides HTTP middleware shared by the API router.

Key Components:

  - Request ID: reuses an upstream X-Request-ID or generates one, and puts it
    (plus a fresh correlation id) into the logging context
  - Prometheus Metrics: request count and latency per method, route pattern
    and status
  - Access Log: one structured line per request

Middleware Stack:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)

Endpoint labels use the chi route pattern (for example
/api/v1/recommendations/{category}) rather than the raw path, so metric
cardinality is bounded by the route table.
*/
package middleware
