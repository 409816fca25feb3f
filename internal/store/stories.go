// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

package store

import (
	"context"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/parleychat/parley/internal/fault"
	"github.com/parleychat/parley/internal/metrics"
	"github.com/parleychat/parley/internal/models"
)

// Stories stores story records with a storage-level TTL. An expired story
// simply stops existing: reads return not-found without any sweeper.
type Stories struct {
	db *badger.DB
}

func storyKey(id string) []byte { return []byte(storyKeyPrefix + id) }

// setStory writes the story with its remaining TTL so updates never extend
// the original 24-hour lifetime.
func setStory(txn *badger.Txn, story *models.Story) error {
	data, err := json.Marshal(story)
	if err != nil {
		return err
	}
	ttl := time.Until(story.ExpiresAt)
	if ttl <= 0 {
		return fault.NotFound("story")
	}
	return txn.SetEntry(badger.NewEntry(storyKey(story.ID), data).WithTTL(ttl))
}

// Create persists a new story. A missing ID is assigned; ExpiresAt is
// derived from CreatedAt when unset.
func (s *Stories) Create(ctx context.Context, story *models.Story) error {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("story", "create", time.Since(start)) }()

	if story.ID == "" {
		story.ID = uuid.NewString()
	}
	if story.CreatedAt.IsZero() {
		story.CreatedAt = time.Now().UTC()
	}
	if story.ExpiresAt.IsZero() {
		story.ExpiresAt = story.CreatedAt.Add(models.StoryTTL)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return setStory(txn, story)
	})
	if err != nil {
		return fault.Storage(err)
	}
	return nil
}

// Get returns the story by ID. Expired stories are not found.
func (s *Stories) Get(ctx context.Context, id string) (*models.Story, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("story", "get", time.Since(start)) }()

	var story models.Story
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, storyKey(id), &story)
	})
	if err != nil {
		return nil, notFound(err, "story")
	}
	return &story, nil
}

// Update applies fn to the stored story inside a transaction, retrying on
// conflict. The remaining TTL is preserved across the rewrite.
func (s *Stories) Update(ctx context.Context, id string, fn func(*models.Story) error) (*models.Story, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("story", "update", time.Since(start)) }()

	var updated models.Story
	err := updateWithRetry(s.db, func(txn *badger.Txn) error {
		var story models.Story
		if err := getJSON(txn, storyKey(id), &story); err != nil {
			return notFound(err, "story")
		}
		if err := fn(&story); err != nil {
			return err
		}
		if err := setStory(txn, &story); err != nil {
			return err
		}
		updated = story
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// List returns all live stories, newest first.
func (s *Stories) List(ctx context.Context) ([]models.Story, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("story", "list", time.Since(start)) }()

	prefix := []byte(storyKeyPrefix)
	var stories []models.Story

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var story models.Story
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &story)
			}); err != nil {
				return err
			}
			stories = append(stories, story)
		}
		return nil
	})
	if err != nil {
		return nil, fault.Storage(err)
	}

	sort.Slice(stories, func(i, j int) bool {
		return stories[i].CreatedAt.After(stories[j].CreatedAt)
	})
	return stories, nil
}

// Delete removes the story.
func (s *Stories) Delete(ctx context.Context, id string) error {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("story", "delete", time.Since(start)) }()

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(storyKey(id)); err != nil {
			return err
		}
		return txn.Delete(storyKey(id))
	})
	if err != nil {
		return notFound(err, "story")
	}
	return nil
}
