// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

// Package store persists Affinity state in a single BadgerDB instance.
//
// Four logically separate collections share the database, separated by key
// prefix:
//
//	search:<category>:<keyword>                       global search cache
//	latest:<user>:<category>                          latest result per user
//	history:<user>:<category>:<inverted-ts>:<id>      append-only history
//	trait:<user>:<trait-id>                           trait records
//
// User ids never contain ':' (enforced at the API boundary), so every
// prefix scan is unambiguous. History keys embed an inverted timestamp so a
// forward iteration yields the newest entry first.
//
// Values are JSON. Every operation touches a single key or a single prefix;
// badger provides the per-key atomicity the pipeline relies on.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/tomtom215/affinity/internal/metrics"
)

// Key prefixes.
const (
	searchPrefix  = "search:"
	latestPrefix  = "latest:"
	historyPrefix = "history:"
	traitPrefix   = "trait:"
)

// ErrClosed is returned by operations on a closed DB.
var ErrClosed = errors.New("store is closed")

// Options configures Open.
type Options struct {
	// Path is the badger directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps all data in memory; used by tests and ephemeral runs.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// GCDiscardRatio is passed to RunValueLogGC. Defaults to 0.5.
	GCDiscardRatio float64
}

// DB wraps the shared badger instance.
type DB struct {
	db      *badger.DB
	opts    Options
	logger  zerolog.Logger
	mu      sync.RWMutex
	closed  bool
	gcMu    sync.Mutex
	lastGC  time.Time
	gcCount int
}

// Open opens (or creates) the database.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func Open(opts Options, logger zerolog.Logger) (*DB, error) {
	if !opts.InMemory && opts.Path == "" {
		return nil, errors.New("store: path is required")
	}
	if opts.GCDiscardRatio <= 0 || opts.GCDiscardRatio >= 1 {
		opts.GCDiscardRatio = 0.5
	}

	logger = logger.With().Str("component", "store").Logger()

	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badger.DefaultOptions(opts.Path)
	}
	bopts.SyncWrites = opts.SyncWrites
	bopts.Logger = &badgerLogger{logger: logger.With().Str("subsystem", "badger").Logger()}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logger.Info().
		Str("path", opts.Path).
		Bool("in_memory", opts.InMemory).
		Bool("sync_writes", opts.SyncWrites).
		Msg("store opened")

	return &DB{db: db, opts: opts, logger: logger}, nil
}

// Badger exposes the underlying handle for components sharing it.
func (d *DB) Badger() *badger.DB {
	return d.db
}

// Close closes the database. Safe to call more than once.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	d.logger.Info().Msg("store closed")
	return nil
}

// Ping verifies the database can serve a read transaction.
func (d *DB) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	return d.db.View(func(_ *badger.Txn) error { return nil })
}

// RunGC rewrites value log files until badger reports nothing left to
// reclaim. It returns the number of files rewritten.
func (d *DB) RunGC() (int, error) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return 0, ErrClosed
	}
	d.mu.RUnlock()

	d.gcMu.Lock()
	defer d.gcMu.Unlock()

	rewritten := 0
	for {
		err := d.db.RunValueLogGC(d.opts.GCDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			break
		}
		if err != nil {
			metrics.BadgerGCRuns.WithLabelValues("error").Inc()
			return rewritten, fmt.Errorf("run GC: %w", err)
		}
		rewritten++
	}

	d.lastGC = time.Now()
	d.gcCount++
	if rewritten > 0 {
		metrics.BadgerGCRuns.WithLabelValues("rewritten").Inc()
	} else {
		metrics.BadgerGCRuns.WithLabelValues("noop").Inc()
	}
	return rewritten, nil
}

// Stats reports database sizes and GC state.
type Stats struct {
	LSMSize  int64     `json:"lsm_size"`
	VLogSize int64     `json:"vlog_size"`
	LastGC   time.Time `json:"last_gc"`
	GCRuns   int       `json:"gc_runs"`
	InMemory bool      `json:"in_memory"`
}

// Stats returns current database statistics.
func (d *DB) Stats() Stats {
	lsm, vlog := d.db.Size()
	d.gcMu.Lock()
	defer d.gcMu.Unlock()
	return Stats{
		LSMSize:  lsm,
		VLogSize: vlog,
		LastGC:   d.lastGC,
		GCRuns:   d.gcCount,
		InMemory: d.opts.InMemory,
	}
}

// countPrefix counts keys under prefix.
func (d *DB) countPrefix(prefix []byte) (int, error) {
	n := 0
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// badgerLogger routes badger's internal logging through zerolog. Badger is
// chatty at info level, so info is demoted to debug.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(trimNewline(format), args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(trimNewline(format), args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msgf(trimNewline(format), args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Trace().Msgf(trimNewline(format), args...)
}

func trimNewline(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		return s[:n-1]
	}
	return s
}
