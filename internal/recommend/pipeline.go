// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/affinity/internal/catalog"
	"github.com/tomtom215/affinity/internal/llm"
	"github.com/tomtom215/affinity/internal/logging"
	"github.com/tomtom215/affinity/internal/metrics"
)

// TraitSource returns a user's traits sorted by confidence, highest first,
// with at most one record per label.
type TraitSource interface {
	GetTraits(ctx context.Context, userID string) ([]TraitRecord, error)
}

// ResultRepository stores the latest result and the history per
// (user, category).
type ResultRepository interface {
	GetLatest(ctx context.Context, userID string, category Category) (*Result, bool, error)
	PutLatest(ctx context.Context, userID string, category Category, result *Result) error
	AppendHistory(ctx context.Context, userID string, category Category, entry *HistoryEntry) error
	// ListHistory returns at most limit entries, newest first.
	ListHistory(ctx context.Context, userID string, category Category, limit int) ([]HistoryEntry, error)
}

// Dependencies are the collaborators of a Pipeline.
type Dependencies struct {
	Traits    TraitSource
	Results   ResultRepository
	Generator llm.Generator
	Cache     SearchCache
	Adapters  map[Category]catalog.Adapter

	// Now defaults to time.Now.
	Now func() time.Time
}

// Pipeline generates, caches and archives recommendations.
// It is safe for concurrent use.
type Pipeline struct {
	cfg        *Config
	traits     TraitSource
	results    ResultRepository
	intent     *IntentDeriver
	aggregator *Aggregator
	explainer  *Explainer
	now        func() time.Time
	logger     zerolog.Logger
}

// NewPipeline creates a pipeline.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewPipeline(cfg *Config, deps Dependencies, logger zerolog.Logger) (*Pipeline, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	switch {
	case deps.Traits == nil:
		return nil, errors.New("trait source is required")
	case deps.Results == nil:
		return nil, errors.New("result repository is required")
	case deps.Generator == nil:
		return nil, errors.New("generator is required")
	case deps.Cache == nil:
		return nil, errors.New("search cache is required")
	}
	for _, cat := range Categories {
		if deps.Adapters[cat] == nil {
			return nil, fmt.Errorf("no catalog adapter for category %s", cat)
		}
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Pipeline{
		cfg:        cfg,
		traits:     deps.Traits,
		results:    deps.Results,
		intent:     NewIntentDeriver(deps.Generator, cfg.IntentTraits, logger),
		aggregator: NewAggregator(deps.Cache, deps.Adapters, cfg.MaxQueries, cfg.ItemsPerQuery, logger),
		explainer:  NewExplainer(deps.Generator, cfg.ExplainTraits, cfg.MaxItems, logger),
		now:        now,
		logger:     logger.With().Str("component", "pipeline").Logger(),
	}, nil
}

// Generate returns the user's recommendations for category.
//
// Without forceRefresh a stored, non-degenerate latest result is returned
// as is. Otherwise the pipeline regenerates; with forceRefresh the previous
// latest result is archived to history before the new one replaces it. An
// empty regeneration is returned but never stored.
func (p *Pipeline) Generate(ctx context.Context, userID string, category Category, forceRefresh bool) (*Response, error) {
	start := time.Now()
	resp, err := p.generate(ctx, userID, category, forceRefresh)

	outcome := "generated"
	switch {
	case err != nil:
		outcome = outcomeLabel(err)
	case resp.FromCache:
		outcome = "cache_hit"
	case len(resp.Recommendations) == 0:
		outcome = "empty"
	}
	label := category.String()
	if !category.Valid() {
		label = "unknown"
	}
	metrics.RecordPipelineOutcome(label, outcome)
	metrics.ObserveStage("total", time.Since(start))
	return resp, err
}

func (p *Pipeline) generate(ctx context.Context, userID string, category Category, forceRefresh bool) (*Response, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	logger := p.requestLogger(ctx, userID, category)

	stageStart := time.Now()
	traits, err := p.traits.GetTraits(ctx, userID)
	metrics.ObserveStage("traits", time.Since(stageStart))
	if err != nil {
		return nil, &PipelineError{Stage: "traits", Cause: err}
	}
	if required := p.cfg.Thresholds[category]; len(traits) < required {
		logger.Info().Int("required", required).Int("have", len(traits)).Msg("not enough traits")
		return nil, &EligibilityError{Category: category, Required: required, Have: len(traits)}
	}

	latest, found, err := p.results.GetLatest(ctx, userID, category)
	if err != nil {
		logger.Warn().Err(err).Msg("latest result read failed, regenerating")
		found = false
	}

	if found && !forceRefresh {
		if len(latest.Items) > 0 && !latest.IsDegenerate() {
			logger.Debug().Int("items", len(latest.Items)).Msg("served latest result")
			resp := responseFromResult(latest)
			resp.FromCache = true
			resp.Persisted = true
			return resp, nil
		}
		if latest.IsDegenerate() {
			metrics.DegenerateCacheRegenerations.WithLabelValues(category.String()).Inc()
			logger.Info().Int("items", len(latest.Items)).Msg("latest result has no images, regenerating")
		}
	}

	result, degraded, err := p.regenerate(ctx, logger, traits, category)
	if err != nil {
		return nil, err
	}

	resp := responseFromResult(result)
	resp.Degraded = degraded
	if len(result.Items) == 0 {
		logger.Warn().Msg("regeneration produced no items, keeping previous result")
		return resp, nil
	}

	// The previous result is archived only once a replacement exists, so a
	// failed or empty forced run leaves history untouched.
	if found && forceRefresh {
		p.archive(ctx, logger, userID, category, latest)
	}

	if err := p.results.PutLatest(ctx, userID, category, result); err != nil {
		metrics.PersistFailures.WithLabelValues("latest").Inc()
		logger.Error().Err(err).Msg("latest result write failed")
		return resp, nil
	}
	resp.Persisted = true

	switch {
	case forceRefresh:
	case result.IsDegenerate():
		// Regenerated on the next read; archiving it would add one entry per request.
		logger.Info().Int("items", len(result.Items)).Msg("new result has no images, not archived")
	default:
		p.archive(ctx, logger, userID, category, result)
	}
	return resp, nil
}

// regenerate runs intent derivation, aggregation and explanation. Only the
// intent stage can fail the request.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (p *Pipeline) regenerate(ctx context.Context, logger zerolog.Logger, traits []TraitRecord, category Category) (*Result, bool, error) {
	stageStart := time.Now()
	intent, err := p.intent.Derive(ctx, traits, category)
	metrics.ObserveStage("intent", time.Since(stageStart))
	if err != nil {
		logger.Error().Err(err).Msg("intent derivation failed")
		return nil, false, err
	}
	logger.Info().
		Int("queries", len(intent.Queries)).
		Dur("duration", time.Since(stageStart)).
		Msg("intent derived")

	stageStart = time.Now()
	agg := p.aggregator.Aggregate(ctx, category, intent.Queries)
	metrics.ObserveStage("aggregate", time.Since(stageStart))
	logger.Info().
		Int("queries_run", agg.QueriesRun).
		Int("cache_hits", agg.CacheHits).
		Int("source_calls", agg.SourceCalls).
		Int("empty_queries", agg.EmptyQueries).
		Int("duplicates", agg.Duplicates).
		Int("items", len(agg.Items)).
		Dur("duration", time.Since(stageStart)).
		Msg("items aggregated")

	stageStart = time.Now()
	exp := p.explainer.Explain(ctx, traits, agg.Items)
	metrics.ObserveStage("explain", time.Since(stageStart))
	logger.Info().
		Bool("fallback", exp.Fallback).
		Int("explained", exp.Explained).
		Int("items", len(exp.Items)).
		Dur("duration", time.Since(stageStart)).
		Msg("items explained")

	items := exp.Items
	if len(items) > p.cfg.MaxItems {
		items = items[:p.cfg.MaxItems]
	}
	metrics.PipelineItemsReturned.Observe(float64(len(items)))

	used := len(traits)
	if used > p.cfg.IntentTraits {
		used = p.cfg.IntentTraits
	}

	return &Result{
		Items:              items,
		PersonalityContext: intent.PersonalityContext,
		TraitsUsedCount:    used,
		GeneratedAt:        p.now().UTC(),
	}, exp.Fallback, nil
}

// archive appends result to history. Failures are logged only.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (p *Pipeline) archive(ctx context.Context, logger zerolog.Logger, userID string, category Category, result *Result) {
	entry := &HistoryEntry{Result: *result, ArchivedAt: p.now().UTC()}
	if err := p.results.AppendHistory(ctx, userID, category, entry); err != nil {
		metrics.PersistFailures.WithLabelValues("history").Inc()
		logger.Warn().Err(err).Msg("history append failed")
	}
}

// History returns archived results, newest first. limit <= 0 selects the
// default; larger values are capped.
func (p *Pipeline) History(ctx context.Context, userID string, category Category, limit int) ([]HistoryEntry, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	entries, err := p.results.ListHistory(ctx, userID, category, p.cfg.clampHistoryLimit(limit))
	if err != nil {
		return nil, &PipelineError{Stage: "history", Cause: err}
	}
	if entries == nil {
		entries = []HistoryEntry{}
	}
	return entries, nil
}

func (p *Pipeline) requestLogger(ctx context.Context, userID string, category Category) zerolog.Logger {
	lc := p.logger.With().
		Str("user_id", userID).
		Str("category", category.String())
	if id := logging.RequestIDFromContext(ctx); id != "" {
		lc = lc.Str("request_id", id)
	}
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		lc = lc.Str("correlation_id", id)
	}
	return lc.Logger()
}
