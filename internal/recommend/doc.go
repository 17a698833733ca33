// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

// Package recommend turns a user's extracted traits into an explained list of
// catalog items.
//
// # Stages
//
// A generation runs four stages in sequence, each feeding the next:
//
//   - IntentDeriver asks the language model for 1 to 8 search queries and a
//     short personality summary built from the top traits.
//   - Aggregator resolves the first queries against the global search cache
//     or the category's catalog adapter, takes a few items per query and
//     dedupes them by id.
//   - Explainer asks the language model for a per-item reason and score, and
//     falls back to the query-level reasons when that fails.
//   - Pipeline persists the result as the user's latest result for the
//     category and maintains the append-only history.
//
// Stage results are explicit outcome structs (AggregateOutcome,
// ExplainOutcome) so the degrade-or-abort decision is made where the stage is
// called rather than inside it.
//
// # Caching
//
// Two caches are involved. The global search cache maps a normalized keyword
// and category to the catalog's full result list and is shared by all users;
// its entries never expire. The per-user latest result is returned directly
// on the next request unless it is degenerate (no item has an image), in
// which case it is regenerated.
//
// # Errors
//
// Only *EligibilityError, *UpstreamParseError and *PipelineError end a
// request without a result. Catalog failures reduce the item count, and
// explainer failures produce un-scored items. Every terminal error has a
// UserMessage safe to show to clients.
//
// # Usage
//
//	p, err := recommend.NewPipeline(cfg, recommend.Dependencies{
//	    Traits:    traitStore,
//	    Results:   resultStore,
//	    Generator: generator,
//	    Cache:     searchCache,
//	    Adapters:  adapters,
//	}, logger)
//
//	resp, err := p.Generate(ctx, userID, recommend.CategoryGoods, false)
package recommend
