// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

// Package main is the entry point for the Affinity server.
//
// Affinity turns a user's extracted personality traits into product, book,
// movie and skill recommendations. A structured-generation model derives
// search intents from the traits, catalog services are searched through a
// shared cache, and the model then explains each candidate.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: defaults, optional YAML file, environment (Koanf v2)
//  2. Store: one BadgerDB for the search cache, results, history and traits
//  3. Catalog adapters behind a per-service rate limiter and circuit breakers
//  4. Generation client (OpenAI Responses API, strict JSON schemas)
//  5. Recommendation pipeline
//  6. HTTP API and supervisor tree (HTTP server + badger GC)
//
// # Configuration
//
// Required environment for a production run:
//
//	export LLM_API_KEY=sk-...
//	export MARKETPLACE_APP_ID=...
//	export TMDB_API_KEY=...
//	export BADGER_PATH=/data/affinity
//	./affinity
//
// See internal/config for the full list of keys.
//
// # Administration
//
// With -purge-search-cache the binary empties the global search cache and
// exits. Badger locks its directory, so run it while the server is stopped.
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the supervisor tree: the HTTP server drains
// in-flight requests within server.shutdown_timeout, then the store closes.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/affinity/internal/config"
	"github.com/tomtom215/affinity/internal/logging"
)

func main() {
	purge := flag.Bool("purge-search-cache", false, "remove every global search cache entry and exit")
	flag.Parse()

	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("badger_path", cfg.Storage.Path).
		Bool("in_memory", cfg.Storage.InMemory).
		Str("model", cfg.LLM.Model).
		Msg("Starting Affinity")

	if *purge {
		n, err := purgeSearchCache(context.Background(), cfg, logging.Logger())
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to purge search cache")
		}
		logging.Info().Int("entries", n).Msg("Search cache purged")
		return
	}

	app, err := newApp(cfg, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer func() {
		if err := app.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("Supervisor stopped unexpectedly")
	}

	if report, err := app.tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}
	logging.Info().Msg("Affinity stopped")
}
