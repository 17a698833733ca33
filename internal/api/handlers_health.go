// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package api

import (
	"context"
	"net/http"
	"time"
)

// readinessTimeout bounds the store ping in HealthReady.
const readinessTimeout = 2 * time.Second

// HealthLive handles liveness probe requests.
// Returns 200 OK if the process is alive, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probe requests.
// Returns 200 OK only if the store answers; 503 otherwise.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if h.store == nil {
		WriteError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Store not configured")
		return
	}
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("readiness check failed")
		WriteError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Store not ready")
		return
	}

	WriteSuccess(w, r, map[string]interface{}{
		"ready":  true,
		"checks": map[string]string{"store": "ok"},
	})
}
