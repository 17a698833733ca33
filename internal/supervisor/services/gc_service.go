// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// GarbageCollector is satisfied by *store.DB.
type GarbageCollector interface {
	RunGC() (int, error)
}

// BadgerGCService runs value log GC on a fixed interval. GC errors are
// logged and retried on the next tick rather than restarting the service.
type BadgerGCService struct {
	gc       GarbageCollector
	interval time.Duration
	logger   zerolog.Logger
}

// NewBadgerGCService creates the service. A non-positive interval means 10m.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewBadgerGCService(gc GarbageCollector, interval time.Duration, logger zerolog.Logger) *BadgerGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &BadgerGCService{
		gc:       gc,
		interval: interval,
		logger:   logger.With().Str("component", "badger-gc").Logger(),
	}
}

// Serve implements suture.Service.
func (s *BadgerGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *BadgerGCService) runOnce() {
	start := time.Now()
	rewritten, err := s.gc.RunGC()
	if err != nil {
		s.logger.Warn().Err(err).Int("rewritten", rewritten).Msg("value log GC failed")
		return
	}
	s.logger.Debug().
		Int("rewritten", rewritten).
		Dur("duration", time.Since(start)).
		Msg("value log GC finished")
}

// String implements fmt.Stringer for suture's logs.
func (s *BadgerGCService) String() string {
	return "badger-gc"
}
