// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/affinity/internal/validation"
)

// maxGenerateBodyBytes bounds the generate request body.
const maxGenerateBodyBytes = 1 << 10

// GenerateRequest is the body of POST /recommendations/{category}. An empty
// body is equivalent to {"force_refresh": false}.
type GenerateRequest struct {
	UserID       string `json:"-" validate:"userid"`
	ForceRefresh bool   `json:"force_refresh"`
}

// HistoryRequest holds the validated history query. Limit 0 selects the
// server default; values above the server maximum are capped.
type HistoryRequest struct {
	UserID string `validate:"userid"`
	Limit  int    `validate:"min=0,max=1000"`
}

// decodeGenerateRequest reads the optional JSON body.
func decodeGenerateRequest(w http.ResponseWriter, r *http.Request) (GenerateRequest, error) {
	var req GenerateRequest
	body := http.MaxBytesReader(w, r.Body, maxGenerateBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return GenerateRequest{}, err
	}
	return req, nil
}

// parseLimit parses the limit query parameter; empty means 0.
func parseLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// validateRequest runs struct validation and converts the result to the
// API error shape.
func validateRequest(s interface{}) *validation.APIError {
	if verr := validation.ValidateStruct(s); verr != nil {
		return verr.ToAPIError()
	}
	return nil
}
