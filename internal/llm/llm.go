// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

// Package llm wraps the language-generation service used to derive search
// intents and explanations.
//
// Callers describe the expected output with a JSON schema and decode the
// returned text with DecodeJSON. A decoding failure wraps ErrMalformedOutput
// so it can be told apart from a transport failure:
//
//	text, err := gen.GenerateStructured(ctx, req)
//	if err != nil {
//	    return err // transport
//	}
//	if err := llm.DecodeJSON(text, &out); err != nil {
//	    // errors.Is(err, llm.ErrMalformedOutput)
//	}
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// ErrMalformedOutput marks generation output that could not be decoded.
var ErrMalformedOutput = errors.New("malformed model output")

// Request is a single structured generation call.
type Request struct {
	// Name identifies the schema (also used as a metrics label).
	Name        string
	Description string

	Instructions string
	Prompt       string
	Schema       map[string]interface{}
}

// Generator produces text that should conform to Request.Schema.
type Generator interface {
	GenerateStructured(ctx context.Context, req Request) (string, error)
}

// DecodeJSON decodes model output into v. Output that is not a bare JSON
// object (code fences, leading prose) is reduced to the span between the
// first '{' and the last '}' before decoding.
func DecodeJSON(output string, v interface{}) error {
	s := strings.TrimSpace(output)
	if s == "" {
		return fmt.Errorf("%w: empty output", ErrMalformedOutput)
	}

	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end <= start {
		return fmt.Errorf("%w: no JSON object found (len=%d)", ErrMalformedOutput, len(s))
	}

	sub := s[start : end+1]
	if err := json.Unmarshal([]byte(sub), v); err != nil {
		return fmt.Errorf("%w: extracted JSON (len=%d): %v", ErrMalformedOutput, len(sub), err)
	}
	return nil
}
