// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordPipelineOutcome(t *testing.T) {
	before := testutil.ToFloat64(PipelineRequests.WithLabelValues("books", "cache_hit"))
	RecordPipelineOutcome("books", "cache_hit")
	RecordPipelineOutcome("books", "cache_hit")

	if got := testutil.ToFloat64(PipelineRequests.WithLabelValues("books", "cache_hit")) - before; got != 2 {
		t.Errorf("cache_hit delta = %v, want 2", got)
	}
}

func TestRecordCatalogRequest(t *testing.T) {
	before := testutil.ToFloat64(CatalogRequests.WithLabelValues("movieMetadata", "ok"))
	RecordCatalogRequest("movieMetadata", "ok", 120*time.Millisecond)

	if got := testutil.ToFloat64(CatalogRequests.WithLabelValues("movieMetadata", "ok")) - before; got != 1 {
		t.Errorf("catalog ok delta = %v, want 1", got)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/api/v1/recommendations/{category}", "200"))
	RecordAPIRequest("POST", "/api/v1/recommendations/{category}", 200, 50*time.Millisecond)

	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/api/v1/recommendations/{category}", "200"))
	if after-before != 1 {
		t.Errorf("api request delta = %v, want 1", after-before)
	}
}

func TestRecordLLMRequest(t *testing.T) {
	before := testutil.ToFloat64(LLMRequests.WithLabelValues("search_intent", "parse_error"))
	RecordLLMRequest("search_intent", "parse_error", time.Second)

	if got := testutil.ToFloat64(LLMRequests.WithLabelValues("search_intent", "parse_error")) - before; got != 1 {
		t.Errorf("llm parse_error delta = %v, want 1", got)
	}
}

func TestCollectorsRegistered(t *testing.T) {
	ObserveStage("intent", 10*time.Millisecond)
	if n := testutil.CollectAndCount(PipelineStageDuration); n == 0 {
		t.Error("expected stage histogram to have at least one series")
	}
}
