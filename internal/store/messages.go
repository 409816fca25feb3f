// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/parleychat/parley/internal/fault"
	"github.com/parleychat/parley/internal/metrics"
	"github.com/parleychat/parley/internal/models"
)

// Messages stores message records plus a per-room index ordered by creation
// time, which gives history reads chronological order for free.
type Messages struct {
	db *badger.DB
}

func messageKey(id string) []byte { return []byte(messageKeyPrefix + id) }

// roomIndexKey orders messages within a room by creation time. The
// zero-padded nanosecond timestamp keeps lexicographic and chronological
// order aligned; the ID suffix disambiguates same-instant messages.
func roomIndexKey(roomID string, createdAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", roomIndexPrefix, roomID, createdAt.UnixNano(), id))
}

// Create persists a new message and its room index entry. A missing ID is
// assigned.
func (m *Messages) Create(ctx context.Context, msg *models.Message) error {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("message", "create", time.Since(start)) }()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now

	err := m.db.Update(func(txn *badger.Txn) error {
		if err := putJSON(txn, messageKey(msg.ID), msg); err != nil {
			return err
		}
		return txn.Set(roomIndexKey(msg.RoomID, msg.CreatedAt, msg.ID), []byte(msg.ID))
	})
	if err != nil {
		return fault.Storage(err)
	}
	return nil
}

// Get returns the message by ID.
func (m *Messages) Get(ctx context.Context, id string) (*models.Message, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("message", "get", time.Since(start)) }()

	var msg models.Message
	err := m.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, messageKey(id), &msg)
	})
	if err != nil {
		return nil, notFound(err, "message")
	}
	return &msg, nil
}

// Update applies fn to the stored message inside a transaction, retrying on
// conflict so concurrent reaction and read-receipt writers all land. fn
// returning an error aborts without writing.
func (m *Messages) Update(ctx context.Context, id string, fn func(*models.Message) error) (*models.Message, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("message", "update", time.Since(start)) }()

	var updated models.Message
	err := updateWithRetry(m.db, func(txn *badger.Txn) error {
		var msg models.Message
		if err := getJSON(txn, messageKey(id), &msg); err != nil {
			return notFound(err, "message")
		}
		if err := fn(&msg); err != nil {
			return err
		}
		msg.UpdatedAt = time.Now().UTC()
		if err := putJSON(txn, messageKey(id), &msg); err != nil {
			return err
		}
		updated = msg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// ByRoom returns the room's messages in chronological order. limit <= 0
// returns all.
func (m *Messages) ByRoom(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("message", "by_room", time.Since(start)) }()

	prefix := []byte(roomIndexPrefix + roomID + ":")
	var msgs []models.Message

	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(msgs) >= limit {
				break
			}
			var id string
			if err := it.Item().Value(func(val []byte) error {
				id = string(val)
				return nil
			}); err != nil {
				return err
			}

			var msg models.Message
			if err := getJSON(txn, messageKey(id), &msg); err != nil {
				// Index entry outliving its record is tolerated.
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			msgs = append(msgs, msg)
		}
		return nil
	})
	if err != nil {
		return nil, fault.Storage(err)
	}
	return msgs, nil
}
