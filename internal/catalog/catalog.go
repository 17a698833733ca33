// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

// Package catalog queries the external catalogs recommendations are drawn from.
//
// Three adapters share one contract: Search never fails. Transport errors,
// non-2xx responses, undecodable payloads and open circuit breakers are
// logged as *SourceFetchError and yield an empty slice. Callers that need the
// error use Fetch instead.
//
// Every outbound request first takes a slot from the shared rate limiter for
// the adapter's service, and HTTP 429 responses are retried with exponential
// backoff that honours Retry-After.
package catalog

import (
	"context"
	"fmt"
	"strings"
)

// Source identifies the catalog an item came from.
type Source string

const (
	SourceMarketplace     Source = "marketplace"
	SourceBookMarketplace Source = "bookMarketplace"
	SourceMovieMetadata   Source = "movieMetadata"
)

// ID prefixes keep ids from different sources disjoint.
const (
	idPrefixMarketplace = "mkt:"
	idPrefixBook        = "book:"
	idPrefixMovie       = "movie:"
)

// Item is a single catalog result normalized across sources.
type Item struct {
	ID           string   `json:"id"`
	Source       Source   `json:"source"`
	Name         string   `json:"name"`
	Price        *float64 `json:"price,omitempty"`
	ImageURL     *string  `json:"image_url,omitempty"`
	ActionURL    string   `json:"action_url"`
	ReferenceURL string   `json:"reference_url"`
	Rating       *float64 `json:"rating,omitempty"`
}

// HasImage reports whether the item carries a usable image URL.
func (it Item) HasImage() bool {
	return it.ImageURL != nil && strings.TrimSpace(*it.ImageURL) != ""
}

// Query is a single catalog search.
type Query struct {
	Keyword string

	// GenreHint is source specific; empty means none.
	GenreHint string

	// Limit is the number of results requested from the source.
	Limit int

	// ExcludeBooks drops book-like listings from general marketplace results.
	ExcludeBooks bool
}

// DefaultLimit is used when Query.Limit is not positive.
const DefaultLimit = 10

func (q Query) limit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	if q.Limit > 30 {
		return 30
	}
	return q.Limit
}

// Adapter searches one external catalog.
type Adapter interface {
	Source() Source
	// Search returns matching items, or an empty slice on any failure.
	Search(ctx context.Context, q Query) []Item
}

// SourceFetchError describes a failed catalog call. It is logged and
// recovered from; it never reaches API clients.
type SourceFetchError struct {
	Source  Source
	Keyword string
	Status  int
	Err     error
}

func (e *SourceFetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("catalog %s: search %q: status %d: %v", e.Source, e.Keyword, e.Status, e.Err)
	}
	return fmt.Sprintf("catalog %s: search %q: %v", e.Source, e.Keyword, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

func strPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func floatPtr(f float64) *float64 { return &f }
