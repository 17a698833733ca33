// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/affinity/internal/recommend"
)

// ResultStore holds the latest result and the history per (user, category).
// It implements recommend.ResultRepository.
type ResultStore struct {
	db  *DB
	now func() time.Time
}

// NewResultStore creates a result store on db.
func NewResultStore(db *DB) *ResultStore {
	return &ResultStore{db: db, now: time.Now}
}

func latestKey(userID string, category recommend.Category) []byte {
	return []byte(latestPrefix + userID + ":" + string(category))
}

func historyScanPrefix(userID string, category recommend.Category) []byte {
	return []byte(historyPrefix + userID + ":" + string(category) + ":")
}

// historyKey orders entries newest first under forward iteration. The id
// suffix keeps entries archived in the same nanosecond distinct.
func historyKey(userID string, category recommend.Category, archivedAt time.Time, id string) []byte {
	inverted := math.MaxInt64 - archivedAt.UnixNano()
	return []byte(fmt.Sprintf("%s%019d:%s", historyScanPrefix(userID, category), inverted, id))
}

// GetLatest returns the latest result, if any.
func (s *ResultStore) GetLatest(ctx context.Context, userID string, category recommend.Category) (*recommend.Result, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var result recommend.Result
	found := false
	err := s.db.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(latestKey(userID, category))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get latest result: %w", err)
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &result)
		})
	})
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	return &result, true, nil
}

// PutLatest overwrites the latest result. Empty results are rejected.
func (s *ResultStore) PutLatest(ctx context.Context, userID string, category recommend.Category, result *recommend.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if result == nil || len(result.Items) == 0 {
		return errors.New("refusing to store an empty result")
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal latest result: %w", err)
	}
	return s.db.db.Update(func(txn *badger.Txn) error {
		return txn.Set(latestKey(userID, category), data)
	})
}

// AppendHistory stores entry as a new history record. It assigns entry.ID
// and, when unset, entry.ArchivedAt.
func (s *ResultStore) AppendHistory(ctx context.Context, userID string, category recommend.Category, entry *recommend.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry == nil {
		return errors.New("nil history entry")
	}
	if entry.ArchivedAt.IsZero() {
		entry.ArchivedAt = s.now().UTC()
	}
	entry.ID = uuid.NewString()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	return s.db.db.Update(func(txn *badger.Txn) error {
		return txn.Set(historyKey(userID, category, entry.ArchivedAt, entry.ID), data)
	})
}

// ListHistory returns up to limit entries, newest first.
func (s *ResultStore) ListHistory(ctx context.Context, userID string, category recommend.Category, limit int) ([]recommend.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []recommend.HistoryEntry{}, nil
	}

	entries := make([]recommend.HistoryEntry, 0, limit)
	err := s.db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = historyScanPrefix(userID, category)
		if limit < opts.PrefetchSize {
			opts.PrefetchSize = limit
		}
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid() && len(entries) < limit; it.Next() {
			var entry recommend.HistoryEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return fmt.Errorf("decode history entry %q: %w", it.Item().Key(), err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
