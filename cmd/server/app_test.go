// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tomtom215/affinity/internal/catalog"
	"github.com/tomtom215/affinity/internal/config"
	"github.com/tomtom215/affinity/internal/recommend"
	"github.com/tomtom215/affinity/internal/store"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Storage.InMemory = true
	cfg.LLM.APIKey = "test-key"
	cfg.Catalog.Marketplace.AppID = "test-app"
	cfg.Catalog.Books.AppID = "test-app"
	cfg.Catalog.Movies.APIKey = "test-key"
	return cfg
}

func TestNewApp_WiresRoutes(t *testing.T) {
	a, err := newApp(testConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	tests := []struct {
		method, path, user string
		want               int
	}{
		{http.MethodGet, "/api/v1/health/live", "", http.StatusOK},
		{http.MethodGet, "/api/v1/health/ready", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/api/v1/recommendations/books/history", "u1", http.StatusOK},
		{http.MethodGet, "/api/v1/recommendations/books/history", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/recommendations/jewelry/history", "u1", http.StatusNotFound},
		// No traits stored, so the eligibility gate answers without any
		// external call.
		{http.MethodPost, "/api/v1/recommendations/goods", "u1", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(""))
		if tt.user != "" {
			req.Header.Set("X-User-ID", tt.user)
		}
		rec := httptest.NewRecorder()
		a.handler.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s %s: status = %d, want %d (body %s)", tt.method, tt.path, rec.Code, tt.want, rec.Body.String())
		}
	}
}

func TestNewApp_PipelineUsesTraitStore(t *testing.T) {
	a, err := newApp(testConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	traits := store.NewTraitStore(a.db)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if err := traits.PutTrait(ctx, "u1", &recommend.TraitRecord{
			Label:      string(rune('a' + i)),
			Confidence: 0.5,
		}); err != nil {
			t.Fatal(err)
		}
	}

	_, err = a.pipeline.Generate(ctx, "u1", recommend.CategoryMovies, false)
	var elig *recommend.EligibilityError
	if !errors.As(err, &elig) {
		t.Fatalf("Generate() error = %v, want EligibilityError", err)
	}
	if elig.Have != 4 || elig.Missing() != 6 {
		t.Errorf("have %d missing %d, want 4 and 6", elig.Have, elig.Missing())
	}
}

func TestNewApp_MissingAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.APIKey = ""
	if _, err := newApp(cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected error without an API key")
	}
}

func TestPipelineConfig(t *testing.T) {
	t.Parallel()
	pc := config.Default().Pipeline
	pc.Thresholds.Skills = 3

	got := pipelineConfig(pc)
	if err := got.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got.Thresholds[recommend.CategorySkills] != 3 || got.Thresholds[recommend.CategoryBooks] != 10 {
		t.Errorf("thresholds = %v", got.Thresholds)
	}
	if got.MaxItems != 8 || got.MaxQueries != 4 {
		t.Errorf("limits = %+v", got)
	}
}

func TestPurgeSearchCache(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.InMemory = false
	cfg.Storage.Path = t.TempDir()
	ctx := context.Background()

	db, err := store.Open(store.Options{Path: cfg.Storage.Path}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	searches := store.NewSearchStore(db)
	for _, kw := range []string{"tent", "stove"} {
		if err := searches.PutSearch(ctx, "goods", kw, []catalog.Item{{ID: "mkt:" + kw, Name: kw}}); err != nil {
			t.Fatal(err)
		}
	}
	traits := store.NewTraitStore(db)
	if err := traits.PutTrait(ctx, "u1", &recommend.TraitRecord{Label: "curious", Confidence: 0.9}); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	n, err := purgeSearchCache(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("purgeSearchCache() error = %v", err)
	}
	if n != 2 {
		t.Errorf("purged %d entries, want 2", n)
	}

	db, err = store.Open(store.Options{Path: cfg.Storage.Path}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, found, _ := store.NewSearchStore(db).GetSearch(ctx, "goods", "tent"); found {
		t.Error("search entry survived purge")
	}
	got, err := store.NewTraitStore(db).GetTraits(ctx, "u1")
	if err != nil || len(got) != 1 {
		t.Errorf("traits after purge = %v, %v; want one trait", got, err)
	}
}
