// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/affinity/config.yaml",
	"/etc/affinity/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all defaults applied.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       90 * time.Second, // a full regeneration can take a minute
			IdleTimeout:        60 * time.Second,
			ShutdownTimeout:    15 * time.Second,
			CORSOrigins:        []string{"*"},
			UserHeader:         "X-User-ID",
			GenerateRateLimit:  10,
			GenerateRateWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Storage: StorageConfig{
			Path:           "/data/affinity",
			InMemory:       false,
			GCInterval:     10 * time.Minute,
			GCDiscardRatio: 0.5,
		},
		LLM: LLMConfig{
			Model:           "gpt-4.1-mini",
			MaxOutputTokens: 2048,
			Timeout:         45 * time.Second,
			MaxRetries:      2,
		},
		RateLimit: RateLimitConfig{
			Marketplace: 1100 * time.Millisecond,
			Books:       1100 * time.Millisecond,
			Movies:      250 * time.Millisecond,
		},
		Catalog: CatalogConfig{
			Marketplace: MarketplaceConfig{
				BaseURL:           "https://app.rakuten.co.jp/services/api/IchibaItem/Search/20220601",
				Timeout:           10 * time.Second,
				BookGenrePrefixes: []string{"200162"},
				BookURLPatterns:   []string{"books.rakuten.co.jp", "/rb/"},
			},
			Books: BooksConfig{
				BaseURL: "https://app.rakuten.co.jp/services/api/BooksTotal/Search/20170404",
				Timeout: 10 * time.Second,
			},
			Movies: MoviesConfig{
				BaseURL:        "https://api.themoviedb.org/3",
				ImageBaseURL:   "https://image.tmdb.org/t/p/w500",
				WebBaseURL:     "https://www.themoviedb.org/movie",
				Language:       "ja-JP",
				MinVoteAverage: 6.0,
				Timeout:        10 * time.Second,
			},
			MaxRetries: 3,
			MaxBackoff: 8 * time.Second,
			Breaker: BreakerConfig{
				MaxRequests:      1,
				Interval:         time.Minute,
				Timeout:          30 * time.Second,
				FailureThreshold: 5,
			},
		},
		Pipeline: PipelineConfig{
			Thresholds: ThresholdConfig{
				Books:  10,
				Movies: 10,
				Goods:  10,
				Skills: 10,
			},
			IntentTraits:        20,
			ExplainTraits:       15,
			MaxQueries:          4,
			ItemsPerQuery:       3,
			MaxItems:            8,
			SearchCacheLRUSize:  1024,
			HistoryDefaultLimit: 10,
			HistoryMaxLimit:     50,
		},
	}
}

// Default returns the built-in defaults, unvalidated.
func Default() *Config {
	return defaultConfig()
}

// LoadWithKoanf loads configuration with precedence ENV > file > defaults,
// then validates it.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables, e.g. TMDB_API_KEY -> catalog.movies.api_key
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are parsed from comma-separated strings when set via env.
var sliceConfigPaths = []string{
	"server.cors_origins",
	"catalog.marketplace.book_genre_prefixes",
	"catalog.marketplace.book_url_patterns",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_host":            "server.host",
	"http_port":            "server.port",
	"http_read_timeout":    "server.read_timeout",
	"http_write_timeout":   "server.write_timeout",
	"http_idle_timeout":    "server.idle_timeout",
	"shutdown_timeout":     "server.shutdown_timeout",
	"cors_origins":         "server.cors_origins",
	"user_id_header":       "server.user_header",
	"generate_rate_limit":  "server.generate_rate_limit",
	"generate_rate_window": "server.generate_rate_window",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Storage
	"badger_path":             "storage.path",
	"badger_in_memory":        "storage.in_memory",
	"badger_gc_interval":      "storage.gc_interval",
	"badger_gc_discard_ratio": "storage.gc_discard_ratio",

	// Generation service
	"llm_api_key":           "llm.api_key",
	"llm_base_url":          "llm.base_url",
	"llm_model":             "llm.model",
	"llm_max_output_tokens": "llm.max_output_tokens",
	"llm_timeout":           "llm.timeout",
	"llm_max_retries":       "llm.max_retries",

	// Rate limits
	"ratelimit_marketplace": "ratelimit.marketplace",
	"ratelimit_books":       "ratelimit.books",
	"ratelimit_movies":      "ratelimit.movies",

	// Catalogs
	"marketplace_base_url":            "catalog.marketplace.base_url",
	"marketplace_app_id":              "catalog.marketplace.app_id",
	"marketplace_affiliate_id":        "catalog.marketplace.affiliate_id",
	"marketplace_timeout":             "catalog.marketplace.timeout",
	"marketplace_book_genre_prefixes": "catalog.marketplace.book_genre_prefixes",
	"marketplace_book_url_patterns":   "catalog.marketplace.book_url_patterns",
	"books_base_url":                  "catalog.books.base_url",
	"books_app_id":                    "catalog.books.app_id",
	"books_affiliate_id":              "catalog.books.affiliate_id",
	"books_timeout":                   "catalog.books.timeout",
	"tmdb_base_url":                   "catalog.movies.base_url",
	"tmdb_image_base_url":             "catalog.movies.image_base_url",
	"tmdb_api_key":                    "catalog.movies.api_key",
	"tmdb_language":                   "catalog.movies.language",
	"tmdb_min_vote_average":           "catalog.movies.min_vote_average",
	"tmdb_timeout":                    "catalog.movies.timeout",
	"catalog_max_retries":             "catalog.max_retries",
	"catalog_max_backoff":             "catalog.max_backoff",
	"catalog_breaker_failures":        "catalog.breaker.failure_threshold",
	"catalog_breaker_timeout":         "catalog.breaker.timeout",

	// Pipeline
	"threshold_books":       "pipeline.thresholds.books",
	"threshold_movies":      "pipeline.thresholds.movies",
	"threshold_goods":       "pipeline.thresholds.goods",
	"threshold_skills":      "pipeline.thresholds.skills",
	"search_cache_lru_size": "pipeline.search_cache_lru_size",
	"history_default_limit": "pipeline.history_default_limit",
	"history_max_limit":     "pipeline.history_max_limit",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped variables return "" and are skipped.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
