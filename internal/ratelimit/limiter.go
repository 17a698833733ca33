// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

// Package ratelimit spaces outbound calls to each catalog service.
//
// Every service has a minimum interval between granted slots. The first call
// for a service is immediate; later calls wait until the interval has passed
// since the previous grant. Concurrent callers for the same service are
// serialized in reservation order.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/affinity/internal/metrics"
)

// Service names used by the catalog adapters.
const (
	ServiceMarketplace = "marketplace"
	ServiceBooks       = "books"
	ServiceMovies      = "movies"
)

// ErrUnknownService is returned by Wait for a service with no configured interval.
var ErrUnknownService = errors.New("ratelimit: unknown service")

// Clock abstracts time so tests can run without sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// Limiter holds one token bucket per service.
type Limiter struct {
	clock  Clock
	logger zerolog.Logger

	mu       sync.Mutex
	limiters map[string]*bucket
}

// bucket pairs a token bucket with the lock that makes reading the clock
// and reserving a slot one step. Reservations must be taken in clock order.
type bucket struct {
	mu  sync.Mutex
	lim *rate.Limiter
}

// reserve reads the clock and takes the next slot under b.mu.
func (b *bucket) reserve(clock Clock) (*rate.Reservation, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := clock.Now()
	return b.lim.ReserveN(now, 1), now
}

// New creates a Limiter from per-service intervals. A zero interval disables
// limiting for that service. A nil clock uses the wall clock.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(intervals map[string]time.Duration, clock Clock, logger zerolog.Logger) *Limiter {
	if clock == nil {
		clock = RealClock()
	}
	l := &Limiter{
		clock:    clock,
		logger:   logger.With().Str("component", "ratelimit").Logger(),
		limiters: make(map[string]*bucket, len(intervals)),
	}
	for service, interval := range intervals {
		l.limiters[service] = newBucket(interval)
	}
	return l
}

func newBucket(interval time.Duration) *bucket {
	if interval <= 0 {
		return &bucket{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	return &bucket{lim: rate.NewLimiter(rate.Every(interval), 1)}
}

// SetInterval changes or adds the interval for service.
func (l *Limiter) SetInterval(service string, interval time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.limiters[service]; ok {
		existing.mu.Lock()
		defer existing.mu.Unlock()
		if interval <= 0 {
			existing.lim.SetLimitAt(l.clock.Now(), rate.Inf)
		} else {
			existing.lim.SetLimitAt(l.clock.Now(), rate.Every(interval))
		}
		return
	}
	l.limiters[service] = newBucket(interval)
}

func (l *Limiter) lookup(service string) (*bucket, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.limiters[service]
	return b, ok
}

// Wait blocks until a slot for service is granted or ctx is done. A
// cancelled wait gives its reservation back so later callers are not delayed
// by it.
func (l *Limiter) Wait(ctx context.Context, service string) error {
	b, ok := l.lookup(service)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownService, service)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	r, now := b.reserve(l.clock)
	if !r.OK() {
		// Only possible with burst 0, which newBucket never creates.
		return fmt.Errorf("ratelimit: reservation for %q not possible", service)
	}

	delay := r.DelayFrom(now)
	metrics.RateLimitWait.WithLabelValues(service).Observe(delay.Seconds())
	if delay <= 0 {
		return nil
	}

	l.logger.Debug().
		Str("service", service).
		Dur("delay", delay).
		Msg("waiting for rate limit slot")

	select {
	case <-l.clock.After(delay):
		return nil
	case <-ctx.Done():
		r.CancelAt(l.clock.Now())
		return ctx.Err()
	}
}
