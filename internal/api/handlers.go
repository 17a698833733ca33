// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package api

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/affinity/internal/recommend"
)

// Recommender is the part of recommend.Pipeline the handlers use.
type Recommender interface {
	Generate(ctx context.Context, userID string, category recommend.Category, forceRefresh bool) (*recommend.Response, error)
	History(ctx context.Context, userID string, category recommend.Category, limit int) ([]recommend.HistoryEntry, error)
}

// Pinger reports whether a dependency can serve requests.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the API endpoints.
type Handler struct {
	recommender Recommender
	store       Pinger
	startTime   time.Time
	logger      zerolog.Logger
}

// NewHandler creates a handler.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewHandler(recommender Recommender, store Pinger, logger zerolog.Logger) *Handler {
	return &Handler{
		recommender: recommender,
		store:       store,
		startTime:   time.Now(),
		logger:      logger.With().Str("component", "api").Logger(),
	}
}
