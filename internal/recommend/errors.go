// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package recommend

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnknownCategory is returned for a category outside Categories.
var ErrUnknownCategory = errors.New("unknown category")

// UserError is implemented by errors that carry a client-safe message.
type UserError interface {
	error
	UserMessage() string
	HTTPStatus() int
}

// EligibilityError means the user has fewer traits than the category needs.
// No external call or write happened.
type EligibilityError struct {
	Category Category
	Required int
	Have     int
}

// Error implements the error interface.
func (e *EligibilityError) Error() string {
	return fmt.Sprintf("category %s requires %d traits, have %d", e.Category, e.Required, e.Have)
}

// Missing returns how many more traits are needed.
func (e *EligibilityError) Missing() int {
	if n := e.Required - e.Have; n > 0 {
		return n
	}
	return 0
}

// UserMessage returns a client-safe message.
func (e *EligibilityError) UserMessage() string {
	if e.Missing() == 1 {
		return "1 more trait needed for recommendations"
	}
	return fmt.Sprintf("%d more traits needed for recommendations", e.Missing())
}

// HTTPStatus returns 422.
func (e *EligibilityError) HTTPStatus() int { return http.StatusUnprocessableEntity }

// UpstreamParseError means the language model output could not be parsed,
// including on the retry.
type UpstreamParseError struct {
	Stage    string
	Attempts int
	Cause    error
}

// Error implements the error interface.
func (e *UpstreamParseError) Error() string {
	return fmt.Sprintf("%s: unparseable model output after %d attempts: %v", e.Stage, e.Attempts, e.Cause)
}

// Unwrap returns the underlying cause for error unwrapping.
func (e *UpstreamParseError) Unwrap() error { return e.Cause }

// UserMessage returns a client-safe message.
func (e *UpstreamParseError) UserMessage() string {
	return "Could not generate recommendations right now, please try again"
}

// HTTPStatus returns 502.
func (e *UpstreamParseError) HTTPStatus() int { return http.StatusBadGateway }

// PipelineError is a terminal dependency failure: the trait store or the
// language model transport.
type PipelineError struct {
	Stage string
	Cause error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Cause)
}

// Unwrap returns the underlying cause for error unwrapping.
func (e *PipelineError) Unwrap() error { return e.Cause }

// UserMessage returns a client-safe message.
func (e *PipelineError) UserMessage() string {
	return "Recommendations are temporarily unavailable, please try again later"
}

// HTTPStatus returns 503.
func (e *PipelineError) HTTPStatus() int { return http.StatusServiceUnavailable }

// outcomeLabel maps a Generate error to the pipeline metrics outcome label.
func outcomeLabel(err error) string {
	var (
		eligibility *EligibilityError
		parse       *UpstreamParseError
		pipeline    *PipelineError
	)
	switch {
	case errors.Is(err, ErrUnknownCategory):
		return "unknown_category"
	case errors.As(err, &eligibility):
		return "ineligible"
	case errors.As(err, &parse):
		return "parse_error"
	case errors.As(err, &pipeline):
		return "dependency_error"
	default:
		return "error"
	}
}
