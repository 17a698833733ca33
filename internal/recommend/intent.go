// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package recommend

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/affinity/internal/llm"
	"github.com/tomtom215/affinity/internal/metrics"
)

// intentAttempts is the initial call plus one retry on unparseable output.
const intentAttempts = 2

// Intent is the output of the intent deriver.
type Intent struct {
	Queries            []SearchQuery
	PersonalityContext string
}

type intentOutput struct {
	SearchQueries      []intentQuery `json:"search_queries" jsonschema:"description=Catalog search queries for the category"`
	PersonalityContext string        `json:"personality_context" jsonschema:"description=One sentence describing the person"`
}

type intentQuery struct {
	Keyword            string   `json:"keyword" jsonschema:"description=Search keyword for the catalog"`
	GenreHint          string   `json:"genre_hint" jsonschema:"description=Optional genre name or id; empty string for none"`
	Rationale          string   `json:"rationale" jsonschema:"description=Why this fits the person"`
	MatchedTraitLabels []string `json:"matched_trait_labels" jsonschema:"description=Labels of the traits this query is based on"`
}

var intentSchema = llm.GenerateSchema[intentOutput]()

// categorySteering holds per-category instructions appended to the prompt.
var categorySteering = map[Category]string{
	CategoryBooks: "Search a book store. Keywords should be subjects, themes, " +
		"authors or well-known titles. Leave genre_hint empty unless you know a numeric book genre id.",
	CategoryMovies: "Search a film database. For a genre-driven query put an English genre name " +
		"(for example Drama, Science Fiction, Documentary) in genre_hint; for a title or theme " +
		"query leave genre_hint empty and put the title or theme in keyword.",
	CategoryGoods: "Search a general online marketplace for physical products. " +
		"Do not suggest books, e-books or magazines. Leave genre_hint empty.",
	CategorySkills: "Search a general online marketplace for physical practice equipment, tools and " +
		"kits that help the person build a skill hands-on. Never suggest books, textbooks, " +
		"workbooks, manuals, e-books, courses or any other text material. Leave genre_hint empty.",
}

// Words and substrings that mark a skills query for reading material.
// English words match whole fields so "sketchbook" survives.
var (
	textMaterialWords = map[string]struct{}{
		"book": {}, "books": {}, "textbook": {}, "textbooks": {}, "workbook": {}, "workbooks": {},
		"ebook": {}, "ebooks": {}, "e-book": {}, "e-books": {}, "novel": {}, "novels": {},
		"magazine": {}, "magazines": {}, "guidebook": {}, "guidebooks": {},
	}
	textMaterialSubstrings = []string{"教本", "参考書", "問題集", "テキスト", "書籍", "雑誌", "入門書"}
)

// IntentDeriver derives catalog search queries from a user's traits.
type IntentDeriver struct {
	gen       llm.Generator
	maxTraits int
	logger    zerolog.Logger
}

// NewIntentDeriver creates a deriver that uses the top maxTraits traits.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewIntentDeriver(gen llm.Generator, maxTraits int, logger zerolog.Logger) *IntentDeriver {
	return &IntentDeriver{
		gen:       gen,
		maxTraits: maxTraits,
		logger:    logger.With().Str("component", "intent").Logger(),
	}
}

// Derive runs one structured generation call, retrying once if the output
// cannot be parsed. A transport failure returns *PipelineError; a second
// parse failure returns *UpstreamParseError.
func (d *IntentDeriver) Derive(ctx context.Context, traits []TraitRecord, category Category) (*Intent, error) {
	top := topTraits(traits, d.maxTraits)
	req := llm.Request{
		Name:         "search_intent",
		Description:  "Catalog search queries derived from personal traits",
		Instructions: intentInstructions(category),
		Prompt:       formatTraits(top),
		Schema:       intentSchema,
	}

	var lastErr error
	for attempt := 1; attempt <= intentAttempts; attempt++ {
		start := time.Now()
		text, err := d.gen.GenerateStructured(ctx, req)
		if err != nil {
			return nil, &PipelineError{Stage: "intent", Cause: err}
		}

		intent, err := parseIntent(text, category)
		if err == nil {
			if len(intent.Queries) < minQueries {
				d.logger.Warn().
					Str("category", category.String()).
					Int("queries", len(intent.Queries)).
					Msg("fewer search queries than requested")
			}
			d.logger.Debug().
				Str("category", category.String()).
				Int("attempt", attempt).
				Int("queries", len(intent.Queries)).
				Dur("duration", time.Since(start)).
				Msg("intent derived")
			return intent, nil
		}

		lastErr = err
		metrics.LLMRequests.WithLabelValues(req.Name, "parse_error").Inc()
		d.logger.Warn().
			Err(err).
			Str("category", category.String()).
			Int("attempt", attempt).
			Msg("intent output unparseable")
	}

	return nil, &UpstreamParseError{Stage: "intent", Attempts: intentAttempts, Cause: lastErr}
}

// parseIntent decodes and sanitizes generation output. Queries with empty
// keywords are dropped; skills queries for reading material are dropped.
// No usable query is a parse failure.
func parseIntent(text string, category Category) (*Intent, error) {
	var out intentOutput
	if err := llm.DecodeJSON(text, &out); err != nil {
		return nil, err
	}

	queries := make([]SearchQuery, 0, len(out.SearchQueries))
	for _, q := range out.SearchQueries {
		keyword := strings.TrimSpace(q.Keyword)
		if keyword == "" {
			continue
		}
		if category == CategorySkills && isTextMaterial(keyword) {
			continue
		}
		queries = append(queries, SearchQuery{
			Keyword:            keyword,
			GenreHint:          strings.TrimSpace(q.GenreHint),
			Rationale:          truncateRunes(strings.TrimSpace(q.Rationale), maxRationaleRunes),
			MatchedTraitLabels: cleanLabels(q.MatchedTraitLabels),
		})
		if len(queries) == maxDerivedQueries {
			break
		}
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("%w: no usable search queries", llm.ErrMalformedOutput)
	}

	return &Intent{
		Queries:            queries,
		PersonalityContext: truncateRunes(strings.TrimSpace(out.PersonalityContext), maxContextRunes),
	}, nil
}

func isTextMaterial(keyword string) bool {
	k := strings.ToLower(keyword)
	for _, field := range strings.Fields(k) {
		if _, ok := textMaterialWords[field]; ok {
			return true
		}
	}
	for _, sub := range textMaterialSubstrings {
		if strings.Contains(k, sub) {
			return true
		}
	}
	return false
}

func cleanLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

func intentInstructions(category Category) string {
	var b strings.Builder
	b.WriteString("You turn a person's traits into catalog search queries for personalized recommendations. ")
	fmt.Fprintf(&b, "Return between %d and %d search queries for the %q category. ", minQueries, maxDerivedQueries, category)
	fmt.Fprintf(&b, "Each rationale is at most %d characters. ", maxRationaleRunes)
	fmt.Fprintf(&b, "personality_context is at most %d characters. ", maxContextRunes)
	b.WriteString("matched_trait_labels must use the exact trait labels given. ")
	b.WriteString(categorySteering[category])
	return b.String()
}

// formatTraits renders traits one per line for the prompt.
func formatTraits(traits []TraitRecord) string {
	var b strings.Builder
	b.WriteString("Traits (highest confidence first):\n")
	for _, t := range traits {
		b.WriteString("- ")
		b.WriteString(t.Label)
		if t.Category != "" {
			b.WriteString(" [")
			b.WriteString(t.Category)
			b.WriteString("]")
		}
		b.WriteString(" confidence=")
		b.WriteString(strconv.FormatFloat(t.Confidence, 'f', 2, 64))
		if d := strings.TrimSpace(t.Description); d != "" {
			b.WriteString(": ")
			b.WriteString(d)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// isParseFailure reports whether err came from decoding model output.
func isParseFailure(err error) bool {
	return errors.Is(err, llm.ErrMalformedOutput)
}
