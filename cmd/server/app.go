// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/affinity/internal/api"
	"github.com/tomtom215/affinity/internal/cache"
	"github.com/tomtom215/affinity/internal/catalog"
	"github.com/tomtom215/affinity/internal/config"
	"github.com/tomtom215/affinity/internal/llm"
	"github.com/tomtom215/affinity/internal/logging"
	"github.com/tomtom215/affinity/internal/ratelimit"
	"github.com/tomtom215/affinity/internal/recommend"
	"github.com/tomtom215/affinity/internal/store"
	"github.com/tomtom215/affinity/internal/supervisor"
	"github.com/tomtom215/affinity/internal/supervisor/services"
)

// app holds the wired components.
type app struct {
	db       *store.DB
	pipeline *recommend.Pipeline
	handler  http.Handler
	tree     *supervisor.Tree
}

// newApp wires every component from cfg. On error nothing is left open.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func newApp(cfg *config.Config, logger zerolog.Logger) (*app, error) {
	db, err := store.Open(store.Options{
		Path:           cfg.Storage.Path,
		InMemory:       cfg.Storage.InMemory,
		GCDiscardRatio: cfg.Storage.GCDiscardRatio,
	}, logger)
	if err != nil {
		return nil, err
	}

	pipeline, err := newPipeline(cfg, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	handler := api.NewRouter(
		api.NewHandler(pipeline, db, logger),
		api.NewChiMiddleware(&api.ChiMiddlewareConfig{
			CORSAllowedOrigins: cfg.Server.CORSOrigins,
			CORSMaxAge:         86400,
			UserHeader:         cfg.Server.UserHeader,
			GenerateRateLimit:  cfg.Server.GenerateRateLimit,
			GenerateRateWindow: cfg.Server.GenerateRateWindow,
			RateLimitRequests:  300,
			RateLimitWindow:    time.Minute,
		}),
	).SetupChi()

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout + 5*time.Second,
	})
	tree.AddDataService(services.NewBadgerGCService(db, cfg.Storage.GCInterval, logger))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout, logger))

	return &app{db: db, pipeline: pipeline, handler: handler, tree: tree}, nil
}

// newPipeline builds the catalog adapters, generator and pipeline on db.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func newPipeline(cfg *config.Config, db *store.DB, logger zerolog.Logger) (*recommend.Pipeline, error) {
	generator, err := llm.NewOpenAIGenerator(llm.OpenAIConfig{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		Timeout:         cfg.LLM.Timeout,
		MaxRetries:      cfg.LLM.MaxRetries,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}

	searchCache := cache.NewSearchCache(store.NewSearchStore(db), cfg.Pipeline.SearchCacheLRUSize, logger)

	pipeline, err := recommend.NewPipeline(pipelineConfig(cfg.Pipeline), recommend.Dependencies{
		Traits:    store.NewTraitStore(db),
		Results:   store.NewResultStore(db),
		Generator: generator,
		Cache:     searchCache,
		Adapters:  newAdapters(cfg, logger),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	return pipeline, nil
}

// newAdapters builds one adapter per category. Goods and skills share the
// marketplace adapter and so its rate limit.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func newAdapters(cfg *config.Config, logger zerolog.Logger) map[recommend.Category]catalog.Adapter {
	limiter := ratelimit.New(map[string]time.Duration{
		ratelimit.ServiceMarketplace: cfg.RateLimit.Marketplace,
		ratelimit.ServiceBooks:       cfg.RateLimit.Books,
		ratelimit.ServiceMovies:      cfg.RateLimit.Movies,
	}, nil, logger)

	httpClient := &http.Client{}
	clientCfg := func(timeout time.Duration) catalog.ClientConfig {
		return catalog.ClientConfig{
			Timeout:    timeout,
			MaxRetries: cfg.Catalog.MaxRetries,
			MaxBackoff: cfg.Catalog.MaxBackoff,
			Breaker: catalog.BreakerConfig{
				MaxRequests:      cfg.Catalog.Breaker.MaxRequests,
				Interval:         cfg.Catalog.Breaker.Interval,
				Timeout:          cfg.Catalog.Breaker.Timeout,
				FailureThreshold: cfg.Catalog.Breaker.FailureThreshold,
			},
		}
	}

	mc := cfg.Catalog.Marketplace
	marketplace := catalog.NewMarketplaceAdapter(catalog.MarketplaceConfig{
		BaseURL:           mc.BaseURL,
		AppID:             mc.AppID,
		AffiliateID:       mc.AffiliateID,
		BookGenrePrefixes: mc.BookGenrePrefixes,
		BookURLPatterns:   mc.BookURLPatterns,
	}, clientCfg(mc.Timeout), httpClient, limiter, ratelimit.ServiceMarketplace, logger)

	bc := cfg.Catalog.Books
	books := catalog.NewBookAdapter(catalog.BooksConfig{
		BaseURL:     bc.BaseURL,
		AppID:       bc.AppID,
		AffiliateID: bc.AffiliateID,
	}, clientCfg(bc.Timeout), httpClient, limiter, ratelimit.ServiceBooks, logger)

	vc := cfg.Catalog.Movies
	movies := catalog.NewMovieAdapter(catalog.MoviesConfig{
		BaseURL:        vc.BaseURL,
		ImageBaseURL:   vc.ImageBaseURL,
		WebBaseURL:     vc.WebBaseURL,
		APIKey:         vc.APIKey,
		Language:       vc.Language,
		MinVoteAverage: vc.MinVoteAverage,
	}, clientCfg(vc.Timeout), httpClient, limiter, ratelimit.ServiceMovies, logger)

	return map[recommend.Category]catalog.Adapter{
		recommend.CategoryGoods:  marketplace,
		recommend.CategorySkills: marketplace,
		recommend.CategoryBooks:  books,
		recommend.CategoryMovies: movies,
	}
}

func pipelineConfig(pc config.PipelineConfig) *recommend.Config {
	return &recommend.Config{
		Thresholds: map[recommend.Category]int{
			recommend.CategoryBooks:  pc.Thresholds.Books,
			recommend.CategoryMovies: pc.Thresholds.Movies,
			recommend.CategoryGoods:  pc.Thresholds.Goods,
			recommend.CategorySkills: pc.Thresholds.Skills,
		},
		IntentTraits:        pc.IntentTraits,
		ExplainTraits:       pc.ExplainTraits,
		MaxQueries:          pc.MaxQueries,
		ItemsPerQuery:       pc.ItemsPerQuery,
		MaxItems:            pc.MaxItems,
		HistoryDefaultLimit: pc.HistoryDefaultLimit,
		HistoryMaxLimit:     pc.HistoryMaxLimit,
	}
}

// purgeSearchCache empties the global search cache and reports how many
// entries it held.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func purgeSearchCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (int, error) {
	db, err := store.Open(store.Options{
		Path:     cfg.Storage.Path,
		InMemory: cfg.Storage.InMemory,
	}, logger)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()

	return cache.NewSearchCache(store.NewSearchStore(db), cfg.Pipeline.SearchCacheLRUSize, logger).Purge(ctx)
}

// Run serves until ctx is cancelled.
func (a *app) Run(ctx context.Context) error {
	return a.tree.Serve(ctx)
}

// Close closes the store.
func (a *app) Close() error {
	return a.db.Close()
}
