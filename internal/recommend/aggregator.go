// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package recommend

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tomtom215/affinity/internal/catalog"
)

// SearchCache is the global (keyword, category) -> items cache.
type SearchCache interface {
	Get(ctx context.Context, keyword, category string) ([]catalog.Item, bool, error)
	Put(ctx context.Context, keyword, category string, items []catalog.Item) error
}

// AggregateOutcome is the result of one aggregation.
type AggregateOutcome struct {
	Items []RecommendedItem

	// QueriesRun is how many queries were processed (at most MaxQueries).
	QueriesRun int

	// CacheHits counts queries served by the search cache.
	CacheHits int

	// SourceCalls counts adapter searches.
	SourceCalls int

	// EmptyQueries counts queries that contributed no items.
	EmptyQueries int

	// CacheErrors counts failed cache reads and writes.
	CacheErrors int

	// Duplicates counts items dropped by id dedup.
	Duplicates int
}

// Aggregator resolves search queries to catalog items.
//
// Queries run sequentially so a cache write from one query is visible to a
// later query with the same keyword, and so catalog rate limits are not
// contended by a single request.
type Aggregator struct {
	cache         SearchCache
	adapters      map[Category]catalog.Adapter
	maxQueries    int
	itemsPerQuery int
	logger        zerolog.Logger
}

// NewAggregator creates an aggregator.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewAggregator(cache SearchCache, adapters map[Category]catalog.Adapter, maxQueries, itemsPerQuery int, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		cache:         cache,
		adapters:      adapters,
		maxQueries:    maxQueries,
		itemsPerQuery: itemsPerQuery,
		logger:        logger.With().Str("component", "aggregator").Logger(),
	}
}

// Aggregate runs the first MaxQueries queries and returns their items
// deduplicated by id in first-seen order. It never fails: adapter and cache
// failures only reduce the item count.
func (a *Aggregator) Aggregate(ctx context.Context, category Category, queries []SearchQuery) AggregateOutcome {
	var out AggregateOutcome
	if len(queries) > a.maxQueries {
		queries = queries[:a.maxQueries]
	}

	working := make([]RecommendedItem, 0, len(queries)*a.itemsPerQuery)
	for _, q := range queries {
		if ctx.Err() != nil {
			break
		}
		out.QueriesRun++

		items := a.resolve(ctx, category, q, &out)
		if len(items) == 0 {
			out.EmptyQueries++
			continue
		}
		if len(items) > a.itemsPerQuery {
			items = items[:a.itemsPerQuery]
		}
		for _, it := range items {
			working = append(working, RecommendedItem{
				Item:               it,
				Reason:             q.Rationale,
				MatchedTraitLabels: q.MatchedTraitLabels,
			})
		}
	}

	out.Items = dedupeByID(working)
	out.Duplicates = len(working) - len(out.Items)
	return out
}

// resolve returns the full item list for one query from the cache or the
// adapter. A non-empty adapter result is written to the cache whole.
func (a *Aggregator) resolve(ctx context.Context, category Category, q SearchQuery, out *AggregateOutcome) []catalog.Item {
	cat := category.String()

	cached, hit, err := a.cache.Get(ctx, q.Keyword, cat)
	switch {
	case err != nil:
		out.CacheErrors++
		a.logger.Warn().
			Err(err).
			Str("category", cat).
			Str("keyword", q.Keyword).
			Msg("search cache read failed, treating as miss")
	case hit:
		out.CacheHits++
		return cached
	}

	adapter, ok := a.adapters[category]
	if !ok {
		a.logger.Error().Str("category", cat).Msg("no catalog adapter for category")
		return nil
	}

	out.SourceCalls++
	items := adapter.Search(ctx, catalogQuery(category, q))
	if len(items) == 0 {
		return nil
	}

	if err := a.cache.Put(ctx, q.Keyword, cat, items); err != nil {
		out.CacheErrors++
		a.logger.Warn().
			Err(err).
			Str("category", cat).
			Str("keyword", q.Keyword).
			Msg("search cache write failed")
	}
	return items
}

// catalogQuery maps a derived query onto the category's adapter.
func catalogQuery(category Category, q SearchQuery) catalog.Query {
	cq := catalog.Query{
		Keyword:   q.Keyword,
		GenreHint: q.GenreHint,
	}
	if category == CategoryGoods || category == CategorySkills {
		cq.ExcludeBooks = true
	}
	return cq
}

func dedupeByID(items []RecommendedItem) []RecommendedItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]RecommendedItem, 0, len(items))
	for _, it := range items {
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out
}
