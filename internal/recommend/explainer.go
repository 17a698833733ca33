// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tomtom215/affinity/internal/llm"
	"github.com/tomtom215/affinity/internal/metrics"
)

// errNoExplanations marks output that decoded but explained no item.
var errNoExplanations = errors.New("no usable explanations")

// ExplainOutcome is the result of one explanation pass.
type ExplainOutcome struct {
	// Items holds at most MaxItems items. On success they are ordered by
	// score, highest first; on fallback they are in aggregation order with
	// query-level reasons.
	Items []RecommendedItem

	// Fallback is set when the explainer could not be used.
	Fallback bool

	// Err is the cause of a fallback.
	Err error

	// Explained counts items that received a model explanation.
	Explained int
}

type explainOutput struct {
	Explanations []explanation `json:"explanations" jsonschema:"description=One entry per item"`
}

type explanation struct {
	Index              int      `json:"index" jsonschema:"description=Zero-based item index from the list"`
	Reason             string   `json:"reason" jsonschema:"description=Why this item suits the person"`
	MatchedTraitLabels []string `json:"matched_trait_labels" jsonschema:"description=Labels of the traits the item matches"`
	Score              float64  `json:"score" jsonschema:"description=Relevance between 0 and 1"`
}

var explainSchema = llm.GenerateSchema[explainOutput]()

// Explainer assigns a personalized reason and relevance score to items.
type Explainer struct {
	gen       llm.Generator
	maxTraits int
	maxItems  int
	logger    zerolog.Logger
}

// NewExplainer creates an explainer using the top maxTraits traits for at
// most maxItems items.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewExplainer(gen llm.Generator, maxTraits, maxItems int, logger zerolog.Logger) *Explainer {
	return &Explainer{
		gen:       gen,
		maxTraits: maxTraits,
		maxItems:  maxItems,
		logger:    logger.With().Str("component", "explainer").Logger(),
	}
}

// Explain never fails. On any error the first MaxItems items are returned
// unmodified with Fallback set.
func (e *Explainer) Explain(ctx context.Context, traits []TraitRecord, items []RecommendedItem) ExplainOutcome {
	if len(items) > e.maxItems {
		items = items[:e.maxItems]
	}
	if len(items) == 0 {
		return ExplainOutcome{Items: []RecommendedItem{}}
	}

	req := llm.Request{
		Name:         "item_explanations",
		Description:  "Personalized reasons and scores for catalog items",
		Instructions: explainInstructions,
		Prompt:       formatTraits(topTraits(traits, e.maxTraits)) + "\n" + formatItems(items),
		Schema:       explainSchema,
	}

	text, err := e.gen.GenerateStructured(ctx, req)
	if err != nil {
		return e.fallback(items, fmt.Errorf("explain: %w", err))
	}

	var out explainOutput
	if err := llm.DecodeJSON(text, &out); err != nil {
		metrics.LLMRequests.WithLabelValues(req.Name, "parse_error").Inc()
		return e.fallback(items, err)
	}

	explained, n := applyExplanations(items, out.Explanations)
	if n == 0 {
		return e.fallback(items, errNoExplanations)
	}
	return ExplainOutcome{Items: explained, Explained: n}
}

func (e *Explainer) fallback(items []RecommendedItem, err error) ExplainOutcome {
	metrics.ExplainerFallbacks.Inc()
	e.logger.Warn().
		Err(err).
		Bool("parse_failure", isParseFailure(err) || errors.Is(err, errNoExplanations)).
		Int("items", len(items)).
		Msg("explainer failed, using query-level reasons")

	out := make([]RecommendedItem, len(items))
	copy(out, items)
	return ExplainOutcome{Items: out, Fallback: true, Err: err}
}

// applyExplanations copies items and applies each explanation to the item at
// its index. Out-of-range and repeated indexes are ignored. Scores are
// clamped to [0, 1]; an empty reason keeps the query-level reason. The
// result is stably sorted by score, highest first.
func applyExplanations(items []RecommendedItem, exps []explanation) ([]RecommendedItem, int) {
	out := make([]RecommendedItem, len(items))
	copy(out, items)

	seen := make(map[int]struct{}, len(exps))
	applied := 0
	for _, ex := range exps {
		if ex.Index < 0 || ex.Index >= len(out) {
			continue
		}
		if _, dup := seen[ex.Index]; dup {
			continue
		}
		seen[ex.Index] = struct{}{}
		applied++

		it := &out[ex.Index]
		if reason := truncateRunes(strings.TrimSpace(ex.Reason), maxRationaleRunes); reason != "" {
			it.Reason = reason
		}
		if labels := cleanLabels(ex.MatchedTraitLabels); len(labels) > 0 {
			it.MatchedTraitLabels = labels
		}
		it.Score = clampScore(ex.Score)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out, applied
}

func clampScore(s float64) float64 {
	switch {
	case math.IsNaN(s), s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

const explainInstructions = "You explain why catalog items suit a person, based on their traits. " +
	"For each numbered item return its index, a reason of at most 50 characters addressed to the person, " +
	"the exact labels of the traits it matches and a relevance score between 0 and 1."

// formatItems renders items by index with name and source only.
func formatItems(items []RecommendedItem) string {
	var b strings.Builder
	b.WriteString("Items:\n")
	for i, it := range items {
		b.WriteString(strconv.Itoa(i))
		b.WriteString(". ")
		b.WriteString(it.Name)
		b.WriteString(" (")
		b.WriteString(string(it.Source))
		b.WriteString(")\n")
	}
	return b.String()
}
