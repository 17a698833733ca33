// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/affinity/internal/logging"
	"github.com/tomtom215/affinity/internal/recommend"
)

// respondPipelineError maps a pipeline error to a response. Only the
// user-facing message of the error is sent; the cause is logged.
func (h *Handler) respondPipelineError(rw *ResponseWriter, r *http.Request, err error) {
	logger := logging.Ctx(r.Context())

	if errors.Is(err, recommend.ErrUnknownCategory) {
		rw.NotFound("Unknown category")
		return
	}

	var eligibility *recommend.EligibilityError
	if errors.As(err, &eligibility) {
		rw.ErrorWithDetails(eligibility.HTTPStatus(), ErrCodeNotEligible, eligibility.UserMessage(), map[string]int{
			"required": eligibility.Required,
			"have":     eligibility.Have,
			"missing":  eligibility.Missing(),
		})
		return
	}

	var parseErr *recommend.UpstreamParseError
	if errors.As(err, &parseErr) {
		logger.Warn().Err(err).Str("stage", parseErr.Stage).Msg("generation output unusable")
		rw.Error(parseErr.HTTPStatus(), ErrCodeUpstreamFailed, parseErr.UserMessage())
		return
	}

	var userErr recommend.UserError
	if errors.As(err, &userErr) {
		logger.Error().Err(err).Msg("pipeline dependency failed")
		rw.Error(userErr.HTTPStatus(), ErrCodeServiceUnavailable, userErr.UserMessage())
		return
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logger.Info().Err(err).Msg("request ended before the pipeline finished")
		rw.ServiceUnavailable("Request was cancelled, please try again")
		return
	}

	logger.Error().Err(err).Msg("unexpected pipeline error")
	rw.InternalError("An unexpected error occurred")
}
