// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

// Package config loads Affinity configuration.
//
// Values are layered with koanf: built-in defaults, then an optional YAML
// file, then environment variables. Only environment variables listed in
// envTransformFunc are read; anything else in the environment is ignored.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Storage   StorageConfig   `koanf:"storage"`
	LLM       LLMConfig       `koanf:"llm"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`

	// UserHeader carries the authenticated user id set by the auth proxy.
	UserHeader string `koanf:"user_header"`

	// GenerateRateLimit is the number of generation requests a single user
	// may make per GenerateRateWindow. Zero disables the throttle.
	GenerateRateLimit  int           `koanf:"generate_rate_limit"`
	GenerateRateWindow time.Duration `koanf:"generate_rate_window"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// StorageConfig configures the badger database shared by the search cache,
// result store and trait store.
type StorageConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`

	GCInterval     time.Duration `koanf:"gc_interval"`
	GCDiscardRatio float64       `koanf:"gc_discard_ratio"`
}

// LLMConfig configures the generation service.
type LLMConfig struct {
	APIKey          string        `koanf:"api_key"`
	BaseURL         string        `koanf:"base_url"`
	Model           string        `koanf:"model"`
	MaxOutputTokens int64         `koanf:"max_output_tokens"`
	Timeout         time.Duration `koanf:"timeout"`
	MaxRetries      int           `koanf:"max_retries"`
}

// RateLimitConfig holds the minimum spacing between calls per catalog service.
type RateLimitConfig struct {
	Marketplace time.Duration `koanf:"marketplace"`
	Books       time.Duration `koanf:"books"`
	Movies      time.Duration `koanf:"movies"`
}

// CatalogConfig configures the three catalog adapters.
type CatalogConfig struct {
	Marketplace MarketplaceConfig `koanf:"marketplace"`
	Books       BooksConfig       `koanf:"books"`
	Movies      MoviesConfig      `koanf:"movies"`

	// MaxRetries bounds retries of HTTP 429 responses.
	MaxRetries int           `koanf:"max_retries"`
	MaxBackoff time.Duration `koanf:"max_backoff"`

	Breaker BreakerConfig `koanf:"breaker"`
}

// MarketplaceConfig configures the general marketplace adapter.
type MarketplaceConfig struct {
	BaseURL     string        `koanf:"base_url"`
	AppID       string        `koanf:"app_id"`
	AffiliateID string        `koanf:"affiliate_id"`
	Timeout     time.Duration `koanf:"timeout"`

	// Items matching either list are treated as books and dropped from
	// non-book categories.
	BookGenrePrefixes []string `koanf:"book_genre_prefixes"`
	BookURLPatterns   []string `koanf:"book_url_patterns"`
}

// BooksConfig configures the book marketplace adapter.
type BooksConfig struct {
	BaseURL     string        `koanf:"base_url"`
	AppID       string        `koanf:"app_id"`
	AffiliateID string        `koanf:"affiliate_id"`
	Timeout     time.Duration `koanf:"timeout"`
}

// MoviesConfig configures the movie metadata adapter.
type MoviesConfig struct {
	BaseURL        string        `koanf:"base_url"`
	ImageBaseURL   string        `koanf:"image_base_url"`
	WebBaseURL     string        `koanf:"web_base_url"`
	APIKey         string        `koanf:"api_key"`
	Language       string        `koanf:"language"`
	MinVoteAverage float64       `koanf:"min_vote_average"`
	Timeout        time.Duration `koanf:"timeout"`
}

// BreakerConfig configures the per-source circuit breakers.
type BreakerConfig struct {
	MaxRequests      uint32        `koanf:"max_requests"`
	Interval         time.Duration `koanf:"interval"`
	Timeout          time.Duration `koanf:"timeout"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
}

// PipelineConfig tunes the recommendation pipeline.
type PipelineConfig struct {
	Thresholds ThresholdConfig `koanf:"thresholds"`

	IntentTraits  int `koanf:"intent_traits"`
	ExplainTraits int `koanf:"explain_traits"`
	MaxQueries    int `koanf:"max_queries"`
	ItemsPerQuery int `koanf:"items_per_query"`
	MaxItems      int `koanf:"max_items"`

	SearchCacheLRUSize int `koanf:"search_cache_lru_size"`

	HistoryDefaultLimit int `koanf:"history_default_limit"`
	HistoryMaxLimit     int `koanf:"history_max_limit"`
}

// ThresholdConfig is the minimum trait count per category.
type ThresholdConfig struct {
	Books  int `koanf:"books"`
	Movies int `koanf:"movies"`
	Goods  int `koanf:"goods"`
	Skills int `koanf:"skills"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
