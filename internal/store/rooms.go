// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

package store

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/parleychat/parley/internal/fault"
	"github.com/parleychat/parley/internal/metrics"
	"github.com/parleychat/parley/internal/models"
)

// Rooms stores room records.
type Rooms struct {
	db *badger.DB
}

func roomKey(id string) []byte { return []byte(roomKeyPrefix + id) }

// Create persists a new room. A missing ID is assigned.
func (r *Rooms) Create(ctx context.Context, room *models.Room) error {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("room", "create", time.Since(start)) }()

	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now

	err := r.db.Update(func(txn *badger.Txn) error {
		return putJSON(txn, roomKey(room.ID), room)
	})
	if err != nil {
		return fault.Storage(err)
	}
	return nil
}

// Get returns the room by ID.
func (r *Rooms) Get(ctx context.Context, id string) (*models.Room, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("room", "get", time.Since(start)) }()

	var room models.Room
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, roomKey(id), &room)
	})
	if err != nil {
		return nil, notFound(err, "room")
	}
	return &room, nil
}

// SetLatestMessage updates the room's latest-message cache pointer.
func (r *Rooms) SetLatestMessage(ctx context.Context, roomID, messageID string) error {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("room", "set_latest", time.Since(start)) }()

	return updateWithRetry(r.db, func(txn *badger.Txn) error {
		var room models.Room
		if err := getJSON(txn, roomKey(roomID), &room); err != nil {
			return notFound(err, "room")
		}
		room.LatestMessageID = messageID
		room.UpdatedAt = time.Now().UTC()
		return putJSON(txn, roomKey(roomID), &room)
	})
}

// Members returns the room's member user IDs.
func (r *Rooms) Members(ctx context.Context, roomID string) ([]string, error) {
	room, err := r.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return room.Members, nil
}
