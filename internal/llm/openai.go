// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/rs/zerolog"

	"github.com/tomtom215/affinity/internal/metrics"
)

// OpenAIConfig configures OpenAIGenerator.
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	MaxOutputTokens int64
	Timeout         time.Duration
	MaxRetries      int
}

// OpenAIGenerator calls the Responses API with a strict JSON schema output format.
type OpenAIGenerator struct {
	client    openai.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewOpenAIGenerator creates a generator. Transport retries (429, 5xx) are
// handled by the client itself, bounded by cfg.MaxRetries.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewOpenAIGenerator(cfg OpenAIConfig, logger zerolog.Logger) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm: model is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIGenerator{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxOutputTokens,
		timeout:   cfg.Timeout,
		logger:    logger.With().Str("component", "llm").Str("model", cfg.Model).Logger(),
	}, nil
}

// GenerateStructured implements Generator.
func (g *OpenAIGenerator) GenerateStructured(ctx context.Context, req Request) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	description := req.Description
	if description == "" {
		description = req.Name + " JSON"
	}

	format := responses.ResponseFormatTextConfigUnionParam{
		OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
			Name:        req.Name,
			Schema:      req.Schema,
			Strict:      openai.Bool(true),
			Description: openai.String(description),
			Type:        "json_schema",
		},
	}

	params := responses.ResponseNewParams{
		Model:        g.model,
		Instructions: openai.String(req.Instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(req.Prompt, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: format,
		},
	}
	if g.maxTokens > 0 {
		params.MaxOutputTokens = openai.Int(g.maxTokens)
	}

	start := time.Now()
	resp, err := g.client.Responses.New(ctx, params)
	if err != nil {
		metrics.RecordLLMRequest(req.Name, "error", time.Since(start))
		g.logger.Warn().Err(err).Str("schema", req.Name).Dur("duration", time.Since(start)).Msg("generation request failed")
		return "", fmt.Errorf("generate %s: %w", req.Name, err)
	}

	metrics.RecordLLMRequest(req.Name, "ok", time.Since(start))
	g.logger.Debug().
		Str("schema", req.Name).
		Dur("duration", time.Since(start)).
		Int64("output_tokens", resp.Usage.OutputTokens).
		Msg("generation complete")

	return resp.OutputText(), nil
}
