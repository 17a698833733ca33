// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package recommend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/tomtom215/affinity/internal/catalog"
)

func TestCategory_Valid(t *testing.T) {
	t.Parallel()

	for _, c := range Categories {
		if !c.Valid() {
			t.Errorf("%q should be valid", c)
		}
	}
	for _, c := range []Category{"", "music", "Books"} {
		if c.Valid() {
			t.Errorf("%q should be invalid", c)
		}
	}
}

func TestResult_IsDegenerate(t *testing.T) {
	t.Parallel()

	img := "https://img.example/a.jpg"
	blank := "  "
	withImage := RecommendedItem{Item: catalog.Item{ID: "mkt:1", ImageURL: &img}}
	noImage := RecommendedItem{Item: catalog.Item{ID: "mkt:2"}}
	blankImage := RecommendedItem{Item: catalog.Item{ID: "mkt:3", ImageURL: &blank}}

	tests := []struct {
		name   string
		result *Result
		want   bool
	}{
		{"nil", nil, false},
		{"empty", &Result{}, false},
		{"all images", &Result{Items: []RecommendedItem{withImage, withImage}}, false},
		{"some images", &Result{Items: []RecommendedItem{noImage, withImage}}, false},
		{"no images", &Result{Items: []RecommendedItem{noImage, noImage}}, true},
		{"blank image urls", &Result{Items: []RecommendedItem{blankImage, noImage}}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.result.IsDegenerate(); got != tt.want {
				t.Errorf("IsDegenerate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 3, "hel"},
		{"こんにちは世界", 5, "こんにちは"},
		{"abc", 0, ""},
		{"", 5, ""},
	}
	for _, tt := range tests {
		if got := truncateRunes(tt.in, tt.n); got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestTopTraits(t *testing.T) {
	t.Parallel()

	traits := []TraitRecord{
		{Label: "low", Confidence: 0.1},
		{Label: "high", Confidence: 0.9},
		{Label: "mid-a", Confidence: 0.5},
		{Label: "mid-b", Confidence: 0.5},
	}

	got := topTraits(traits, 3)
	labels := make([]string, len(got))
	for i, tr := range got {
		labels[i] = tr.Label
	}
	if want := "high,mid-a,mid-b"; strings.Join(labels, ",") != want {
		t.Errorf("topTraits = %v, want %s", labels, want)
	}
	if traits[0].Label != "low" {
		t.Error("topTraits reordered its input")
	}
	if n := len(topTraits(traits, 10)); n != 4 {
		t.Errorf("len = %d, want 4", n)
	}
}

func TestErrors_UserMessages(t *testing.T) {
	t.Parallel()

	upstream := errors.New("dial tcp 10.0.0.1:443: connection refused")

	tests := []struct {
		name        string
		err         UserError
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "eligibility plural",
			err:         &EligibilityError{Category: CategoryGoods, Required: 10, Have: 7},
			wantStatus:  http.StatusUnprocessableEntity,
			wantMessage: "3 more traits needed",
		},
		{
			name:        "eligibility singular",
			err:         &EligibilityError{Category: CategoryBooks, Required: 10, Have: 9},
			wantStatus:  http.StatusUnprocessableEntity,
			wantMessage: "1 more trait needed",
		},
		{
			name:        "parse",
			err:         &UpstreamParseError{Stage: "intent", Attempts: 2, Cause: upstream},
			wantStatus:  http.StatusBadGateway,
			wantMessage: "try again",
		},
		{
			name:        "pipeline",
			err:         &PipelineError{Stage: "traits", Cause: upstream},
			wantStatus:  http.StatusServiceUnavailable,
			wantMessage: "try again later",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.wantStatus)
			}
			msg := tt.err.UserMessage()
			if !strings.Contains(msg, tt.wantMessage) {
				t.Errorf("UserMessage() = %q, want it to contain %q", msg, tt.wantMessage)
			}
			if strings.Contains(msg, "10.0.0.1") {
				t.Errorf("UserMessage() leaks upstream detail: %q", msg)
			}
		})
	}
}

func TestOutcomeLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: %q", ErrUnknownCategory, "music"), "unknown_category"},
		{&EligibilityError{}, "ineligible"},
		{fmt.Errorf("wrapped: %w", &UpstreamParseError{}), "parse_error"},
		{&PipelineError{Stage: "traits"}, "dependency_error"},
		{errors.New("other"), "error"},
	}
	for _, tt := range tests {
		if got := outcomeLabel(tt.err); got != tt.want {
			t.Errorf("outcomeLabel(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing threshold", func(c *Config) { delete(c.Thresholds, CategorySkills) }},
		{"negative threshold", func(c *Config) { c.Thresholds[CategoryBooks] = -1 }},
		{"zero intent traits", func(c *Config) { c.IntentTraits = 0 }},
		{"too many queries", func(c *Config) { c.MaxQueries = 9 }},
		{"zero items per query", func(c *Config) { c.ItemsPerQuery = 0 }},
		{"zero max items", func(c *Config) { c.MaxItems = 0 }},
		{"history max below default", func(c *Config) { c.HistoryMaxLimit = 5 }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestConfig_ClampHistoryLimit(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	for in, want := range map[int]int{-3: 10, 0: 10, 1: 1, 25: 25, 50: 50, 51: 50, 1000: 50} {
		if got := cfg.clampHistoryLimit(in); got != want {
			t.Errorf("clampHistoryLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
