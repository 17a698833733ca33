// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/affinity/internal/catalog"
)

// searchEntry is the stored form of a global search cache entry.
type searchEntry struct {
	Items    []catalog.Item `json:"items"`
	StoredAt time.Time      `json:"stored_at"`
}

// SearchStore is the persistent tier of the global search cache. Keywords
// arrive already normalized.
type SearchStore struct {
	db  *DB
	now func() time.Time
}

// NewSearchStore creates a search store on db.
func NewSearchStore(db *DB) *SearchStore {
	return &SearchStore{db: db, now: time.Now}
}

func searchKey(category, keyword string) []byte {
	return []byte(searchPrefix + category + ":" + keyword)
}

// GetSearch returns the items stored for (category, keyword).
func (s *SearchStore) GetSearch(ctx context.Context, category, keyword string) ([]catalog.Item, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var entry searchEntry
	found := false
	err := s.db.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(searchKey(category, keyword))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get search entry: %w", err)
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	return entry.Items, true, nil
}

// PutSearch replaces the entry for (category, keyword).
func (s *SearchStore) PutSearch(ctx context.Context, category, keyword string, items []catalog.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(searchEntry{Items: items, StoredAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal search entry: %w", err)
	}
	return s.db.db.Update(func(txn *badger.Txn) error {
		return txn.Set(searchKey(category, keyword), data)
	})
}

// DeleteAllSearches drops every search entry and returns how many existed.
func (s *SearchStore) DeleteAllSearches(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	prefix := []byte(searchPrefix)
	n, err := s.db.countPrefix(prefix)
	if err != nil {
		return 0, fmt.Errorf("count search entries: %w", err)
	}
	if err := s.db.db.DropPrefix(prefix); err != nil {
		return 0, fmt.Errorf("drop search entries: %w", err)
	}
	return n, nil
}
