// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/affinity/internal/recommend"
)

// GenerateRecommendations handles POST /api/v1/recommendations/{category}.
func (h *Handler) GenerateRecommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	req, err := decodeGenerateRequest(w, r)
	if err != nil {
		rw.BadRequest("Request body must be JSON like {\"force_refresh\": true}")
		return
	}
	req.UserID = UserIDFromContext(r.Context())
	if verr := validateRequest(&req); verr != nil {
		rw.ValidationError(verr.Message, verr.Details)
		return
	}

	category := recommend.Category(chi.URLParam(r, "category"))
	resp, err := h.recommender.Generate(r.Context(), req.UserID, category, req.ForceRefresh)
	if err != nil {
		h.respondPipelineError(rw, r, err)
		return
	}

	if !resp.Persisted && len(resp.Recommendations) > 0 {
		w.Header().Set("Warning", `199 - "recommendations were not saved"`)
	}
	count := len(resp.Recommendations)
	rw.SuccessWithMeta(resp, &APIMeta{Count: &count})
}

// RecommendationHistory handles GET /api/v1/recommendations/{category}/history.
func (h *Handler) RecommendationHistory(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	limit, err := parseLimit(r)
	if err != nil {
		rw.BadRequest("limit must be an integer")
		return
	}
	req := HistoryRequest{UserID: UserIDFromContext(r.Context()), Limit: limit}
	if verr := validateRequest(&req); verr != nil {
		rw.ValidationError(verr.Message, verr.Details)
		return
	}

	category := recommend.Category(chi.URLParam(r, "category"))
	entries, err := h.recommender.History(r.Context(), req.UserID, category, req.Limit)
	if err != nil {
		h.respondPipelineError(rw, r, err)
		return
	}

	count := len(entries)
	rw.SuccessWithMeta(entries, &APIMeta{Count: &count})
}
