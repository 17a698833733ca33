// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package catalog

import (
	"context"
	"sync"
	"time"
)

// countingWaiter records limiter calls per service.
type countingWaiter struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func newCountingWaiter() *countingWaiter {
	return &countingWaiter{calls: make(map[string]int)}
}

func (w *countingWaiter) Wait(_ context.Context, service string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls[service]++
	return w.err
}

func (w *countingWaiter) Calls(service string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls[service]
}

func testClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:        2 * time.Second,
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		Breaker: BreakerConfig{
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          time.Minute,
			FailureThreshold: 3,
		},
	}
}
