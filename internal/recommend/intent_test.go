// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package recommend

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/tomtom215/affinity/internal/llm"
)

func TestIntentDeriver_Success(t *testing.T) {
	t.Parallel()

	gen := newMockGenerator().on("search_intent", reply{
		text: "```json\n" + intentJSON("camping stove", "trail shoes", "headlamp", "tent", "water filter") + "\n```",
	})
	d := NewIntentDeriver(gen, 20, zerolog.Nop())

	intent, err := d.Derive(context.Background(), makeTraits(12), CategoryGoods)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if len(intent.Queries) != 5 {
		t.Fatalf("queries = %d, want 5", len(intent.Queries))
	}
	if intent.Queries[0].Keyword != "camping stove" || intent.Queries[0].Rationale != "because camping stove" {
		t.Errorf("first query = %+v", intent.Queries[0])
	}
	if intent.PersonalityContext != "curious and active" {
		t.Errorf("context = %q", intent.PersonalityContext)
	}
	if gen.callCount("search_intent") != 1 {
		t.Errorf("calls = %d, want 1", gen.callCount("search_intent"))
	}
}

func TestIntentDeriver_UsesTopTraits(t *testing.T) {
	t.Parallel()

	gen := newMockGenerator().on("search_intent", reply{text: intentJSON("tent")})
	d := NewIntentDeriver(gen, 20, zerolog.Nop())

	traits := makeTraits(25)
	// Reverse so the store order is not the confidence order.
	for i, j := 0, len(traits)-1; i < j; i, j = i+1, j-1 {
		traits[i], traits[j] = traits[j], traits[i]
	}

	if _, err := d.Derive(context.Background(), traits, CategoryGoods); err != nil {
		t.Fatalf("Derive: %v", err)
	}
	req, _ := gen.lastRequest("search_intent")
	if !strings.Contains(req.Prompt, "trait-19") {
		t.Error("prompt is missing the 20th most confident trait")
	}
	if strings.Contains(req.Prompt, "trait-20") || strings.Contains(req.Prompt, "trait-24") {
		t.Error("prompt includes traits beyond the top 20")
	}
	if req.Schema == nil {
		t.Error("request has no schema")
	}
}

func TestIntentDeriver_RetriesOnceOnParseFailure(t *testing.T) {
	t.Parallel()

	gen := newMockGenerator().on("search_intent",
		reply{text: "I'm sorry, here are some ideas: tents and stoves"},
		reply{text: intentJSON("tent", "stove")},
	)
	d := NewIntentDeriver(gen, 20, zerolog.Nop())

	intent, err := d.Derive(context.Background(), makeTraits(12), CategoryGoods)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if len(intent.Queries) != 2 {
		t.Errorf("queries = %d, want 2", len(intent.Queries))
	}
	if gen.callCount("search_intent") != 2 {
		t.Errorf("calls = %d, want 2", gen.callCount("search_intent"))
	}
}

func TestIntentDeriver_SecondParseFailure(t *testing.T) {
	t.Parallel()

	gen := newMockGenerator().on("search_intent",
		reply{text: "not json"},
		reply{text: `{"search_queries": [{"keyword": "  "}], "personality_context": ""}`},
		reply{text: intentJSON("never reached")},
	)
	d := NewIntentDeriver(gen, 20, zerolog.Nop())

	_, err := d.Derive(context.Background(), makeTraits(12), CategoryGoods)
	var parseErr *UpstreamParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("err = %v, want *UpstreamParseError", err)
	}
	if parseErr.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", parseErr.Attempts)
	}
	if !errors.Is(err, llm.ErrMalformedOutput) {
		t.Error("cause should wrap llm.ErrMalformedOutput")
	}
	if gen.callCount("search_intent") != 2 {
		t.Errorf("calls = %d, want 2", gen.callCount("search_intent"))
	}
}

func TestIntentDeriver_TransportFailureNotRetried(t *testing.T) {
	t.Parallel()

	boom := errors.New("upstream 500")
	gen := newMockGenerator().on("search_intent", reply{err: boom})
	d := NewIntentDeriver(gen, 20, zerolog.Nop())

	_, err := d.Derive(context.Background(), makeTraits(12), CategoryGoods)
	var pipeErr *PipelineError
	if !errors.As(err, &pipeErr) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want *PipelineError wrapping %v", err, boom)
	}
	if gen.callCount("search_intent") != 1 {
		t.Errorf("calls = %d, want 1", gen.callCount("search_intent"))
	}
}

func TestParseIntent_Sanitizes(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("あ", 80)
	text := `{
		"search_queries": [
			{"keyword": "", "genre_hint": "", "rationale": "x", "matched_trait_labels": []},
			{"keyword": " tent ", "genre_hint": " Drama ", "rationale": "` + long + `", "matched_trait_labels": ["a", "a", " ", "b"]},
			{"keyword": "q3", "genre_hint": "", "rationale": "", "matched_trait_labels": []},
			{"keyword": "q4", "genre_hint": "", "rationale": "", "matched_trait_labels": []},
			{"keyword": "q5", "genre_hint": "", "rationale": "", "matched_trait_labels": []},
			{"keyword": "q6", "genre_hint": "", "rationale": "", "matched_trait_labels": []},
			{"keyword": "q7", "genre_hint": "", "rationale": "", "matched_trait_labels": []},
			{"keyword": "q8", "genre_hint": "", "rationale": "", "matched_trait_labels": []},
			{"keyword": "q9", "genre_hint": "", "rationale": "", "matched_trait_labels": []},
			{"keyword": "q10", "genre_hint": "", "rationale": "", "matched_trait_labels": []}
		],
		"personality_context": "` + strings.Repeat("z", 150) + `"
	}`

	intent, err := parseIntent(text, CategoryMovies)
	if err != nil {
		t.Fatalf("parseIntent: %v", err)
	}
	if len(intent.Queries) != maxDerivedQueries {
		t.Fatalf("queries = %d, want %d", len(intent.Queries), maxDerivedQueries)
	}
	q := intent.Queries[0]
	if q.Keyword != "tent" || q.GenreHint != "Drama" {
		t.Errorf("query not trimmed: %+v", q)
	}
	if n := utf8.RuneCountInString(q.Rationale); n != maxRationaleRunes {
		t.Errorf("rationale runes = %d, want %d", n, maxRationaleRunes)
	}
	if strings.Join(q.MatchedTraitLabels, ",") != "a,b" {
		t.Errorf("labels = %v, want [a b]", q.MatchedTraitLabels)
	}
	if n := utf8.RuneCountInString(intent.PersonalityContext); n != maxContextRunes {
		t.Errorf("context runes = %d, want %d", n, maxContextRunes)
	}
	if intent.Queries[len(intent.Queries)-1].Keyword != "q9" {
		t.Errorf("last query = %q, want q9", intent.Queries[len(intent.Queries)-1].Keyword)
	}
}

func TestParseIntent_SkillsExcludesTextMaterial(t *testing.T) {
	t.Parallel()

	text := intentJSON("guitar practice amp", "Guitar Textbook", "sketchbook", "ギター 教本", "jazz books", "metronome")

	intent, err := parseIntent(text, CategorySkills)
	if err != nil {
		t.Fatalf("parseIntent: %v", err)
	}
	var got []string
	for _, q := range intent.Queries {
		got = append(got, q.Keyword)
	}
	if want := "guitar practice amp,sketchbook,metronome"; strings.Join(got, ",") != want {
		t.Errorf("keywords = %v, want %s", got, want)
	}

	// The same queries are kept for other categories.
	intent, err = parseIntent(text, CategoryGoods)
	if err != nil {
		t.Fatalf("parseIntent: %v", err)
	}
	if len(intent.Queries) != 6 {
		t.Errorf("goods queries = %d, want 6", len(intent.Queries))
	}
}

func TestParseIntent_SkillsAllTextMaterialIsParseFailure(t *testing.T) {
	t.Parallel()

	_, err := parseIntent(intentJSON("piano book", "drum workbook"), CategorySkills)
	if !errors.Is(err, llm.ErrMalformedOutput) {
		t.Errorf("err = %v, want ErrMalformedOutput", err)
	}
}

func TestIntentInstructions_CategorySteering(t *testing.T) {
	t.Parallel()

	skills := intentInstructions(CategorySkills)
	for _, want := range []string{"practice equipment", "Never suggest books"} {
		if !strings.Contains(skills, want) {
			t.Errorf("skills instructions missing %q", want)
		}
	}
	if strings.Contains(intentInstructions(CategoryBooks), "Never suggest books") {
		t.Error("books instructions exclude books")
	}
	for _, c := range Categories {
		if categorySteering[c] == "" {
			t.Errorf("no steering for %s", c)
		}
	}
}
