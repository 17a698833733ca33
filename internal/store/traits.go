// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/affinity/internal/recommend"
)

// TraitStore reads trait records written by the external extractor.
// It implements recommend.TraitSource.
type TraitStore struct {
	db  *DB
	now func() time.Time
}

// NewTraitStore creates a trait store on db.
func NewTraitStore(db *DB) *TraitStore {
	return &TraitStore{db: db, now: time.Now}
}

func traitScanPrefix(userID string) []byte {
	return []byte(traitPrefix + userID + ":")
}

func traitKey(userID, traitID string) []byte {
	return []byte(traitPrefix + userID + ":" + traitID)
}

// PutTrait stores a trait record, assigning an id and extraction time when
// they are missing.
func (s *TraitStore) PutTrait(ctx context.Context, userID string, trait *recommend.TraitRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if trait == nil || strings.TrimSpace(trait.Label) == "" {
		return errors.New("trait label is required")
	}
	if trait.Confidence < 0 || trait.Confidence > 1 {
		return fmt.Errorf("trait confidence %v out of range [0, 1]", trait.Confidence)
	}
	if trait.ID == "" {
		trait.ID = uuid.NewString()
	}
	if trait.ExtractedAt.IsZero() {
		trait.ExtractedAt = s.now().UTC()
	}

	data, err := json.Marshal(trait)
	if err != nil {
		return fmt.Errorf("marshal trait: %w", err)
	}
	return s.db.db.Update(func(txn *badger.Txn) error {
		return txn.Set(traitKey(userID, trait.ID), data)
	})
}

// DeleteTrait removes one trait record.
func (s *TraitStore) DeleteTrait(ctx context.Context, userID, traitID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(traitKey(userID, traitID))
	})
}

// GetTraits returns the user's traits, one per label (the most recently
// extracted wins), sorted by confidence, highest first.
func (s *TraitStore) GetTraits(ctx context.Context, userID string) ([]recommend.TraitRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	byLabel := make(map[string]recommend.TraitRecord)
	err := s.db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = traitScanPrefix(userID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var t recommend.TraitRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &t)
			}); err != nil {
				return fmt.Errorf("decode trait %q: %w", it.Item().Key(), err)
			}
			label := normalizeLabel(t.Label)
			if prev, ok := byLabel[label]; ok && !t.ExtractedAt.After(prev.ExtractedAt) {
				continue
			}
			byLabel[label] = t
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	traits := make([]recommend.TraitRecord, 0, len(byLabel))
	for _, t := range byLabel {
		traits = append(traits, t)
	}
	sort.Slice(traits, func(i, j int) bool {
		if traits[i].Confidence != traits[j].Confidence {
			return traits[i].Confidence > traits[j].Confidence
		}
		if !traits[i].ExtractedAt.Equal(traits[j].ExtractedAt) {
			return traits[i].ExtractedAt.After(traits[j].ExtractedAt)
		}
		return traits[i].ID < traits[j].ID
	})
	return traits, nil
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(label), " "))
}
