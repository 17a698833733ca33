// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// DefaultUserHeader is the header the auth proxy uses for the user id.
const DefaultUserHeader = "X-User-ID"

// ChiMiddlewareConfig holds configuration for the middleware factories.
type ChiMiddlewareConfig struct {
	// CORS configuration
	CORSAllowedOrigins []string
	CORSMaxAge         int // seconds

	// UserHeader carries the authenticated user id.
	UserHeader string

	// GenerateRateLimit is the per-user budget for generation requests per
	// GenerateRateWindow. Zero disables the throttle.
	GenerateRateLimit  int
	GenerateRateWindow time.Duration

	// RateLimitRequests/RateLimitWindow is the per-IP limit on all API routes.
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// DefaultChiMiddlewareConfig returns a secure default configuration.
// CORS origins default to empty, requiring explicit configuration.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSMaxAge:         86400,
		UserHeader:         DefaultUserHeader,
		GenerateRateLimit:  10,
		GenerateRateWindow: time.Minute,
		RateLimitRequests:  300,
		RateLimitWindow:    time.Minute,
	}
}

// ChiMiddleware provides chi-compatible middleware factories.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware creates a middleware factory with the given configuration.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}
	if config.UserHeader == "" {
		config.UserHeader = DefaultUserHeader
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   config.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", config.UserHeader, "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Warning"},
		AllowCredentials: false,
		MaxAge:           config.CORSMaxAge,
	})

	return &ChiMiddleware{
		config: config,
		cors:   corsHandler,
	}
}

// CORS returns the go-chi/cors middleware.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns a per-IP limiter for all API routes.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	if m.config.RateLimitRequests <= 0 {
		return passthrough
	}
	return httprate.Limit(
		m.config.RateLimitRequests,
		m.config.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(limitExceeded),
	)
}

// GenerateThrottle limits generation requests per user. Each generation
// may cost two upstream model calls and several catalog searches, so it is
// throttled separately from reads. Must run after RequireUser.
func (m *ChiMiddleware) GenerateThrottle() func(http.Handler) http.Handler {
	if m.config.GenerateRateLimit <= 0 {
		return passthrough
	}
	return httprate.Limit(
		m.config.GenerateRateLimit,
		m.config.GenerateRateWindow,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return "user:" + UserIDFromContext(r.Context()), nil
		}),
		httprate.WithLimitHandler(limitExceeded),
	)
}

// RequireUser reads the user id set by the auth proxy. Requests without one
// are rejected with 401. Format checks happen in the handlers.
func (m *ChiMiddleware) RequireUser() func(http.Handler) http.Handler {
	header := m.config.UserHeader
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(header))
			if userID == "" {
				NewResponseWriter(w, r).Unauthorized("Authentication required")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

// APISecurityHeaders adds security headers to API responses.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Cache-Control", "no-store")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			next.ServeHTTP(w, r)
		})
	}
}

func passthrough(next http.Handler) http.Handler {
	return next
}

func limitExceeded(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).TooManyRequests("Too many requests, please slow down")
}

type userIDKey struct{}

// ContextWithUserID stores the authenticated user id.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the authenticated user id or "".
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey{}).(string); ok {
		return id
	}
	return ""
}
