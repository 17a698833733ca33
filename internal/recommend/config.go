// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package recommend

import (
	"fmt"
)

// Config contains all tunables of the pipeline.
type Config struct {
	// Thresholds is the minimum trait count per category.
	Thresholds map[Category]int

	// IntentTraits is how many top traits feed the intent deriver.
	IntentTraits int

	// ExplainTraits is how many top traits feed the explainer.
	ExplainTraits int

	// MaxQueries bounds how many derived queries the aggregator runs.
	MaxQueries int

	// ItemsPerQuery bounds how many items each query contributes.
	ItemsPerQuery int

	// MaxItems bounds explained and returned items.
	MaxItems int

	// HistoryDefaultLimit applies when History is called with limit <= 0.
	HistoryDefaultLimit int

	// HistoryMaxLimit caps the History limit.
	HistoryMaxLimit int
}

// Limits on derived queries. The deriver accepts fewer than minQueries
// (logged) but never more than maxDerivedQueries.
const (
	minQueries        = 5
	maxDerivedQueries = 8

	maxRationaleRunes = 50
	maxContextRunes   = 100
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Thresholds: map[Category]int{
			CategoryBooks:  10,
			CategoryMovies: 10,
			CategoryGoods:  10,
			CategorySkills: 10,
		},
		IntentTraits:        20,
		ExplainTraits:       15,
		MaxQueries:          4,
		ItemsPerQuery:       3,
		MaxItems:            8,
		HistoryDefaultLimit: 10,
		HistoryMaxLimit:     50,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	for _, cat := range Categories {
		t, ok := c.Thresholds[cat]
		if !ok {
			return fmt.Errorf("thresholds: missing category %s", cat)
		}
		if t < 0 {
			return fmt.Errorf("thresholds: %s must be non-negative, got %d", cat, t)
		}
	}
	if c.IntentTraits < 1 {
		return fmt.Errorf("intent_traits must be positive, got %d", c.IntentTraits)
	}
	if c.ExplainTraits < 1 {
		return fmt.Errorf("explain_traits must be positive, got %d", c.ExplainTraits)
	}
	if c.MaxQueries < 1 || c.MaxQueries > maxDerivedQueries {
		return fmt.Errorf("max_queries must be in [1, %d], got %d", maxDerivedQueries, c.MaxQueries)
	}
	if c.ItemsPerQuery < 1 {
		return fmt.Errorf("items_per_query must be positive, got %d", c.ItemsPerQuery)
	}
	if c.MaxItems < 1 {
		return fmt.Errorf("max_items must be positive, got %d", c.MaxItems)
	}
	if c.HistoryDefaultLimit < 1 || c.HistoryMaxLimit < c.HistoryDefaultLimit {
		return fmt.Errorf("history limits invalid: default %d, max %d", c.HistoryDefaultLimit, c.HistoryMaxLimit)
	}
	return nil
}

// clampHistoryLimit applies the default and upper bound to a History limit.
func (c *Config) clampHistoryLimit(limit int) int {
	if limit <= 0 {
		return c.HistoryDefaultLimit
	}
	if limit > c.HistoryMaxLimit {
		return c.HistoryMaxLimit
	}
	return limit
}
