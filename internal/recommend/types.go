// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package recommend

import (
	"sort"
	"time"

	"github.com/tomtom215/affinity/internal/catalog"
)

// Category is a recommendation domain.
type Category string

const (
	CategoryBooks  Category = "books"
	CategoryMovies Category = "movies"
	CategoryGoods  Category = "goods"
	CategorySkills Category = "skills"
)

// Categories lists every supported category in display order.
var Categories = []Category{CategoryBooks, CategoryMovies, CategoryGoods, CategorySkills}

// Valid reports whether c is a supported category.
func (c Category) Valid() bool {
	switch c {
	case CategoryBooks, CategoryMovies, CategoryGoods, CategorySkills:
		return true
	}
	return false
}

func (c Category) String() string { return string(c) }

// TraitRecord is a personal attribute produced by the external trait extractor.
type TraitRecord struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Confidence  float64   `json:"confidence"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// SearchQuery is one derived catalog search. It lives for a single request.
type SearchQuery struct {
	Keyword string `json:"keyword"`

	// GenreHint is passed to the adapter as-is; empty means none.
	GenreHint string `json:"genre_hint,omitempty"`

	// Rationale is at most 50 runes.
	Rationale          string   `json:"rationale"`
	MatchedTraitLabels []string `json:"matched_trait_labels"`
}

// RecommendedItem is a catalog item personalized for a user.
type RecommendedItem struct {
	catalog.Item

	// Reason is at most 50 runes.
	Reason             string   `json:"reason"`
	MatchedTraitLabels []string `json:"matched_trait_labels"`

	// Score is in [0, 1]. Zero when the explainer did not score the item.
	Score float64 `json:"score"`
}

// Result is the latest generated recommendation set for a (user, category).
type Result struct {
	Items              []RecommendedItem `json:"items"`
	PersonalityContext string            `json:"personality_context"`
	TraitsUsedCount    int               `json:"traits_used_count"`
	GeneratedAt        time.Time         `json:"generated_at"`
}

// IsDegenerate reports whether a non-empty result has no item with an image.
// Such a result is treated as absent and regenerated.
func (r *Result) IsDegenerate() bool {
	if r == nil || len(r.Items) == 0 {
		return false
	}
	for i := range r.Items {
		if r.Items[i].HasImage() {
			return false
		}
	}
	return true
}

// HistoryEntry is an immutable archived copy of a Result.
type HistoryEntry struct {
	ID string `json:"id"`
	Result
	ArchivedAt time.Time `json:"archived_at"`
}

// Response is returned by Pipeline.Generate.
type Response struct {
	Recommendations    []RecommendedItem `json:"recommendations"`
	PersonalityContext string            `json:"personality_context"`
	TraitsUsedCount    int               `json:"traits_used_count"`
	GeneratedAt        time.Time         `json:"generated_at"`
	FromCache          bool              `json:"from_cache"`

	// Persisted is false when the result was not saved as the latest result,
	// either because it was empty or because the write failed. A result that
	// was not persisted is regenerated on the next request.
	Persisted bool `json:"persisted"`

	// Degraded is set when the explainer failed and items carry query-level
	// reasons without scores.
	Degraded bool `json:"degraded"`
}

func responseFromResult(r *Result) *Response {
	items := r.Items
	if items == nil {
		items = []RecommendedItem{}
	}
	return &Response{
		Recommendations:    items,
		PersonalityContext: r.PersonalityContext,
		TraitsUsedCount:    r.TraitsUsedCount,
		GeneratedAt:        r.GeneratedAt,
	}
}

// topTraits returns up to n traits ordered by confidence, highest first.
// The input is not modified.
func topTraits(traits []TraitRecord, n int) []TraitRecord {
	sorted := make([]TraitRecord, len(traits))
	copy(sorted, traits)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
