// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/affinity/internal/metrics"
)

// maxErrorBodySize caps how much of an error response body is kept.
const maxErrorBodySize = 4 * 1024

// maxResponseSize caps successful response bodies.
const maxResponseSize = 8 << 20

// ErrRateLimited is returned when a source keeps answering HTTP 429.
var ErrRateLimited = errors.New("rate limit exceeded")

// Waiter hands out outbound request slots per service.
type Waiter interface {
	Wait(ctx context.Context, service string) error
}

// ClientConfig holds the transport settings shared by all adapters.
type ClientConfig struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	MaxBackoff     time.Duration
	Breaker        BreakerConfig
}

// httpStatusError carries the status of a non-2xx response.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

// sourceClient performs rate limited, retried, circuit-broken GETs for one source.
type sourceClient struct {
	source  Source
	service string
	http    *http.Client
	limiter Waiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  zerolog.Logger

	timeout        time.Duration
	maxRetries     int
	retryBaseDelay time.Duration
	maxBackoff     time.Duration
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func newSourceClient(source Source, service string, httpClient *http.Client, limiter Waiter, cfg ClientConfig, logger zerolog.Logger) *sourceClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 8 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &sourceClient{
		source:         source,
		service:        service,
		http:           httpClient,
		limiter:        limiter,
		breaker:        newBreaker(string(source), cfg.Breaker, logger),
		logger:         logger,
		timeout:        cfg.Timeout,
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: cfg.RetryBaseDelay,
		maxBackoff:     cfg.MaxBackoff,
	}
}

// get fetches reqURL and returns the body of a 2xx response.
func (c *sourceClient) get(ctx context.Context, reqURL string, header http.Header) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doWithRetry(ctx, reqURL, header)
	})
	recordBreakerResult(c.breaker, err)
	return body, err
}

// doWithRetry retries HTTP 429 with exponential backoff (base, 2x base, ...)
// bounded by maxBackoff, honouring Retry-After. Every attempt takes its own
// rate limiter slot.
func (c *sourceClient) doWithRetry(ctx context.Context, reqURL string, header http.Header) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, c.service); err != nil {
				return nil, fmt.Errorf("rate limiter: %w", err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", redactURLError(err))
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			if attempt >= c.maxRetries {
				return nil, fmt.Errorf("%w after %d retries (HTTP 429)", ErrRateLimited, c.maxRetries)
			}

			delay := c.backoff(attempt, resp.Header.Get("Retry-After"))
			c.logger.Debug().
				Int("attempt", attempt+1).
				Dur("delay", delay).
				Msg("rate limited by source, backing off")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}

		return readResponse(resp)
	}
}

func (c *sourceClient) backoff(attempt int, retryAfter string) time.Duration {
	delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
	if d, ok := parseRetryAfter(retryAfter, time.Now()); ok {
		delay = d
	}
	if delay > c.maxBackoff {
		delay = c.maxBackoff
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// parseRetryAfter accepts delta-seconds or an HTTP date (RFC 9110).
func parseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		return t.Sub(now), true
	}
	return 0, false
}

func readResponse(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &httpStatusError{status: resp.StatusCode, body: string(readBodyForError(resp.Body))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// readBodyForError reads a bounded prefix of an error response body.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("... (truncated)")...)
	}
	return body
}

// redactURLError drops the request URL from transport errors; catalog URLs
// carry application ids and API keys in the query string.
func redactURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}

// statusOf extracts the HTTP status from an error chain, or 0.
func statusOf(err error) int {
	var se *httpStatusError
	if errors.As(err, &se) {
		return se.status
	}
	return 0
}

// resultLabel maps a fetch outcome to the catalog metrics result label.
func resultLabel(items int, err error) string {
	switch {
	case err == nil && items == 0:
		return "empty"
	case err == nil:
		return "ok"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "error"
	}
}

// finish logs and records a fetch outcome and applies the never-fail contract.
func finish(logger zerolog.Logger, source Source, q Query, started time.Time, items []Item, err error) []Item {
	metrics.RecordCatalogRequest(string(source), resultLabel(len(items), err), time.Since(started))
	if err != nil {
		logger.Warn().Err(err).
			Str("keyword", q.Keyword).
			Str("genre_hint", q.GenreHint).
			Msg("catalog search failed")
		return []Item{}
	}
	logger.Debug().
		Str("keyword", q.Keyword).
		Int("items", len(items)).
		Dur("duration", time.Since(started)).
		Msg("catalog search complete")
	return items
}
