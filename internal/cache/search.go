// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package cache

import (
	"context"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/tomtom215/affinity/internal/catalog"
	"github.com/tomtom215/affinity/internal/metrics"
)

// Backend is the persistent tier of the search cache.
type Backend interface {
	GetSearch(ctx context.Context, category, keyword string) ([]catalog.Item, bool, error)
	PutSearch(ctx context.Context, category, keyword string, items []catalog.Item) error
	DeleteAllSearches(ctx context.Context) (int, error)
}

// SearchCache maps (keyword, category) to the full item list a catalog
// returned for it, shared by all users. Entries never expire; a hit is
// authoritative and suppresses the catalog call.
//
// Reads go to the in-process LRU first, then the backend; backend hits are
// promoted into the LRU. Writes go to the backend, then the LRU.
type SearchCache struct {
	backend Backend
	front   *LRU[string, []catalog.Item]
	logger  zerolog.Logger
}

// NewSearchCache creates a cache over backend with an LRU front of lruSize entries.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSearchCache(backend Backend, lruSize int, logger zerolog.Logger) *SearchCache {
	return &SearchCache{
		backend: backend,
		front:   NewLRU[string, []catalog.Item](lruSize),
		logger:  logger.With().Str("component", "search_cache").Logger(),
	}
}

// NormalizeKeyword folds a keyword to its cache identity: NFKC, lower case,
// trimmed, internal whitespace collapsed to single spaces.
func NormalizeKeyword(keyword string) string {
	k := norm.NFKC.String(keyword)
	k = strings.ToLower(k)
	return strings.Join(strings.FieldsFunc(k, unicode.IsSpace), " ")
}

func frontKey(category, keyword string) string {
	return category + "\x00" + keyword
}

// Get returns the cached items for (keyword, category).
func (c *SearchCache) Get(ctx context.Context, keyword, category string) ([]catalog.Item, bool, error) {
	kw := NormalizeKeyword(keyword)
	if kw == "" {
		return nil, false, nil
	}
	fk := frontKey(category, kw)

	if items, ok := c.front.Get(fk); ok {
		metrics.SearchCacheHits.WithLabelValues("memory").Inc()
		return cloneItems(items), true, nil
	}

	items, ok, err := c.backend.GetSearch(ctx, category, kw)
	if err != nil {
		metrics.SearchCacheErrors.WithLabelValues("get").Inc()
		return nil, false, err
	}
	if !ok {
		metrics.SearchCacheMisses.Inc()
		return nil, false, nil
	}

	metrics.SearchCacheHits.WithLabelValues("badger").Inc()
	c.front.Add(fk, cloneItems(items))
	return items, true, nil
}

// Put replaces the entry for (keyword, category). Empty lists are not
// stored: an empty entry would permanently shadow the catalog.
func (c *SearchCache) Put(ctx context.Context, keyword, category string, items []catalog.Item) error {
	kw := NormalizeKeyword(keyword)
	if kw == "" || len(items) == 0 {
		return nil
	}

	if err := c.backend.PutSearch(ctx, category, kw, items); err != nil {
		metrics.SearchCacheErrors.WithLabelValues("put").Inc()
		return err
	}
	c.front.Add(frontKey(category, kw), cloneItems(items))
	return nil
}

// Purge removes every entry. Administrative use only.
func (c *SearchCache) Purge(ctx context.Context) (int, error) {
	c.front.Clear()
	n, err := c.backend.DeleteAllSearches(ctx)
	if err != nil {
		return n, err
	}
	c.logger.Info().Int("entries", n).Msg("search cache purged")
	return n, nil
}

// cloneItems copies the slice so callers cannot mutate cached entries.
func cloneItems(items []catalog.Item) []catalog.Item {
	if items == nil {
		return nil
	}
	out := make([]catalog.Item, len(items))
	copy(out, items)
	return out
}
