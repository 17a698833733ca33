// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package recommend

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/affinity/internal/catalog"
	"github.com/tomtom215/affinity/internal/llm"
)

// reply is one scripted generator response.
type reply struct {
	text string
	err  error
}

// mockGenerator returns scripted replies per request name. When a script is
// exhausted its last reply repeats.
type mockGenerator struct {
	mu       sync.Mutex
	scripts  map[string][]reply
	calls    map[string]int
	requests []llm.Request
}

func newMockGenerator() *mockGenerator {
	return &mockGenerator{
		scripts: make(map[string][]reply),
		calls:   make(map[string]int),
	}
}

func (m *mockGenerator) on(name string, replies ...reply) *mockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[name] = replies
	return m
}

func (m *mockGenerator) GenerateStructured(_ context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	n := m.calls[req.Name]
	m.calls[req.Name] = n + 1

	script := m.scripts[req.Name]
	if len(script) == 0 {
		return "", fmt.Errorf("no script for %s", req.Name)
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	return script[n].text, script[n].err
}

func (m *mockGenerator) callCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *mockGenerator) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *mockGenerator) lastRequest(name string) (llm.Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.requests) - 1; i >= 0; i-- {
		if m.requests[i].Name == name {
			return m.requests[i], true
		}
	}
	return llm.Request{}, false
}

// intentJSON renders an intent payload with one query per keyword.
func intentJSON(keywords ...string) string {
	queries := make([]intentQuery, len(keywords))
	for i, k := range keywords {
		queries[i] = intentQuery{
			Keyword:            k,
			Rationale:          "because " + k,
			MatchedTraitLabels: []string{"trait-0"},
		}
	}
	b, _ := json.Marshal(intentOutput{SearchQueries: queries, PersonalityContext: "curious and active"})
	return string(b)
}

// explainJSON scores item i with scores[i].
func explainJSON(scores ...float64) string {
	exps := make([]explanation, len(scores))
	for i, s := range scores {
		exps[i] = explanation{
			Index:              i,
			Reason:             fmt.Sprintf("reason %d", i),
			MatchedTraitLabels: []string{"trait-1"},
			Score:              s,
		}
	}
	b, _ := json.Marshal(explainOutput{Explanations: exps})
	return string(b)
}

func makeTraits(n int) []TraitRecord {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	traits := make([]TraitRecord, n)
	for i := 0; i < n; i++ {
		traits[i] = TraitRecord{
			ID:          fmt.Sprintf("t%d", i),
			Label:       fmt.Sprintf("trait-%d", i),
			Category:    "personality",
			Description: fmt.Sprintf("description %d", i),
			Confidence:  1 - float64(i)/100,
			ExtractedAt: base.Add(time.Duration(i) * time.Hour),
		}
	}
	return traits
}

// mockTraits serves a fixed trait list per user.
type mockTraits struct {
	mu     sync.Mutex
	traits map[string][]TraitRecord
	err    error
	calls  int
}

func (m *mockTraits) GetTraits(_ context.Context, userID string) ([]TraitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.traits[userID], nil
}

type resultKey struct {
	user     string
	category Category
}

// mockResults is an in-memory ResultRepository that counts writes.
type mockResults struct {
	mu         sync.Mutex
	latest     map[resultKey]*Result
	history    map[resultKey][]HistoryEntry
	writes     int
	getErr     error
	putErr     error
	historyErr error
}

func newMockResults() *mockResults {
	return &mockResults{
		latest:  make(map[resultKey]*Result),
		history: make(map[resultKey][]HistoryEntry),
	}
}

func (m *mockResults) GetLatest(_ context.Context, userID string, category Category) (*Result, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	r, ok := m.latest[resultKey{userID, category}]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

func (m *mockResults) PutLatest(_ context.Context, userID string, category Category, result *Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.putErr != nil {
		return m.putErr
	}
	cp := *result
	m.latest[resultKey{userID, category}] = &cp
	return nil
}

func (m *mockResults) AppendHistory(_ context.Context, userID string, category Category, entry *HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.historyErr != nil {
		return m.historyErr
	}
	k := resultKey{userID, category}
	e := *entry
	e.ID = fmt.Sprintf("h%d", len(m.history[k]))
	m.history[k] = append(m.history[k], e)
	return nil
}

func (m *mockResults) ListHistory(_ context.Context, userID string, category Category, limit int) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.history[resultKey{userID, category}]
	out := make([]HistoryEntry, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (m *mockResults) historyFor(userID string, category Category) []HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]HistoryEntry(nil), m.history[resultKey{userID, category}]...)
}

func (m *mockResults) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// mockCache is an in-memory SearchCache keyed by lower-cased keyword.
type mockCache struct {
	mu      sync.Mutex
	entries map[string][]catalog.Item
	puts    []string
	getErr  error
	putErr  error
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string][]catalog.Item)}
}

func cacheKey(keyword, category string) string {
	return category + "|" + strings.ToLower(strings.TrimSpace(keyword))
}

func (m *mockCache) seed(keyword string, category Category, items []catalog.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[cacheKey(keyword, string(category))] = items
}

func (m *mockCache) Get(_ context.Context, keyword, category string) ([]catalog.Item, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	items, ok := m.entries[cacheKey(keyword, category)]
	return items, ok, nil
}

func (m *mockCache) Put(_ context.Context, keyword, category string, items []catalog.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts = append(m.puts, keyword)
	if m.putErr != nil {
		return m.putErr
	}
	m.entries[cacheKey(keyword, category)] = items
	return nil
}

func (m *mockCache) stored(keyword string, category Category) ([]catalog.Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items, ok := m.entries[cacheKey(keyword, string(category))]
	return items, ok
}

// mockAdapter returns scripted items per keyword and records queries.
type mockAdapter struct {
	mu      sync.Mutex
	source  catalog.Source
	results map[string][]catalog.Item
	queries []catalog.Query
}

func newMockAdapter(source catalog.Source) *mockAdapter {
	return &mockAdapter{source: source, results: make(map[string][]catalog.Item)}
}

func (m *mockAdapter) Source() catalog.Source { return m.source }

func (m *mockAdapter) Search(_ context.Context, q catalog.Query) []catalog.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	items := m.results[q.Keyword]
	if items == nil {
		return []catalog.Item{}
	}
	return items
}

func (m *mockAdapter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

func (m *mockAdapter) callsFor(keyword string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, q := range m.queries {
		if q.Keyword == keyword {
			n++
		}
	}
	return n
}

// makeItems builds catalog items with ids prefix-0..prefix-(n-1), all with images.
func makeItems(prefix string, n int) []catalog.Item {
	out := make([]catalog.Item, n)
	for i := 0; i < n; i++ {
		img := fmt.Sprintf("https://img.example/%s-%d.jpg", prefix, i)
		out[i] = catalog.Item{
			ID:        fmt.Sprintf("mkt:%s-%d", prefix, i),
			Source:    catalog.SourceMarketplace,
			Name:      fmt.Sprintf("%s item %d", prefix, i),
			ImageURL:  &img,
			ActionURL: "https://shop.example/" + prefix,
		}
	}
	return out
}

func withoutImages(in []catalog.Item) []catalog.Item {
	out := make([]catalog.Item, len(in))
	copy(out, in)
	for i := range out {
		out[i].ImageURL = nil
	}
	return out
}
