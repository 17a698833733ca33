// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateRateLimit(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	return c.validatePipeline()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.UserHeader) == "" {
		return fmt.Errorf("USER_ID_HEADER must not be empty")
	}
	if c.Server.GenerateRateLimit < 0 {
		return fmt.Errorf("GENERATE_RATE_LIMIT must not be negative, got %d", c.Server.GenerateRateLimit)
	}
	if c.Server.GenerateRateLimit > 0 && c.Server.GenerateRateWindow <= 0 {
		return fmt.Errorf("GENERATE_RATE_WINDOW must be positive when GENERATE_RATE_LIMIT is set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, panic, disabled; got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateStorage() error {
	if !c.Storage.InMemory && strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("BADGER_PATH is required unless BADGER_IN_MEMORY=true")
	}
	if c.Storage.GCDiscardRatio <= 0 || c.Storage.GCDiscardRatio >= 1 {
		return fmt.Errorf("BADGER_GC_DISCARD_RATIO must be in (0, 1), got %v", c.Storage.GCDiscardRatio)
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("LLM_MODEL must not be empty")
	}
	if c.LLM.BaseURL != "" {
		if err := validateHTTPURL("LLM_BASE_URL", c.LLM.BaseURL); err != nil {
			return err
		}
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	if c.RateLimit.Marketplace < 0 || c.RateLimit.Books < 0 || c.RateLimit.Movies < 0 {
		return fmt.Errorf("rate limit intervals must not be negative")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if c.Catalog.Marketplace.AppID == "" {
		return fmt.Errorf("MARKETPLACE_APP_ID is required")
	}
	if c.Catalog.Books.AppID == "" {
		// The book search shares the marketplace application id unless overridden.
		c.Catalog.Books.AppID = c.Catalog.Marketplace.AppID
	}
	if c.Catalog.Movies.APIKey == "" {
		return fmt.Errorf("TMDB_API_KEY is required")
	}

	urls := map[string]string{
		"MARKETPLACE_BASE_URL": c.Catalog.Marketplace.BaseURL,
		"BOOKS_BASE_URL":       c.Catalog.Books.BaseURL,
		"TMDB_BASE_URL":        c.Catalog.Movies.BaseURL,
	}
	for name, raw := range urls {
		if err := validateHTTPURL(name, raw); err != nil {
			return err
		}
	}

	if c.Catalog.MaxRetries < 0 {
		return fmt.Errorf("CATALOG_MAX_RETRIES must not be negative")
	}
	if c.Catalog.Breaker.FailureThreshold == 0 {
		return fmt.Errorf("CATALOG_BREAKER_FAILURES must be at least 1")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	p := c.Pipeline
	thresholds := map[string]int{
		"books":  p.Thresholds.Books,
		"movies": p.Thresholds.Movies,
		"goods":  p.Thresholds.Goods,
		"skills": p.Thresholds.Skills,
	}
	for category, n := range thresholds {
		if n < 0 {
			return fmt.Errorf("pipeline threshold for %s must not be negative, got %d", category, n)
		}
	}
	if p.MaxQueries < 1 || p.ItemsPerQuery < 1 || p.MaxItems < 1 {
		return fmt.Errorf("pipeline max_queries, items_per_query and max_items must be at least 1")
	}
	if p.IntentTraits < 1 || p.ExplainTraits < 1 {
		return fmt.Errorf("pipeline intent_traits and explain_traits must be at least 1")
	}
	if p.HistoryDefaultLimit < 1 || p.HistoryMaxLimit < p.HistoryDefaultLimit {
		return fmt.Errorf("HISTORY_DEFAULT_LIMIT must be at least 1 and not exceed HISTORY_MAX_LIMIT")
	}
	return nil
}

func validateHTTPURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", name, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}
