// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

// Package store is the badger-backed document store: per-entity CRUD for
// users, rooms, messages and stories. Read-modify-write updates run inside
// badger transactions and retry on conflict, which gives the per-record
// atomicity concurrent reaction and read-receipt writers rely on. Stories
// are written with a storage TTL so expiry needs no in-process sweeper.
package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/parleychat/parley/internal/config"
	"github.com/parleychat/parley/internal/fault"
	"github.com/parleychat/parley/internal/metrics"
)

// Key prefixes for badger storage.
const (
	userKeyPrefix     = "user:"
	usernameKeyPrefix = "username:"
	roomKeyPrefix     = "room:"
	messageKeyPrefix  = "message:"
	roomIndexPrefix   = "room_messages:"
	storyKeyPrefix    = "story:"
)

// maxTxnRetries bounds conflict retries on concurrent record updates.
const maxTxnRetries = 8

// Store owns the badger database and hands out typed entity stores.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store at the configured path. With InMemory
// set, badger runs without disk persistence; tests use this mode.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	// Badger's own logger is too chatty for this deployment; zerolog already
	// covers store-level errors.
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is usable. Used by readiness checks.
func (s *Store) Ping() error {
	if s.db.IsClosed() {
		return errors.New("store: database is closed")
	}
	return nil
}

// Users returns the user entity store.
func (s *Store) Users() *Users { return &Users{db: s.db} }

// Rooms returns the room entity store.
func (s *Store) Rooms() *Rooms { return &Rooms{db: s.db} }

// Messages returns the message entity store.
func (s *Store) Messages() *Messages { return &Messages{db: s.db} }

// Stories returns the story entity store.
func (s *Store) Stories() *Stories { return &Stories{db: s.db} }

// putJSON marshals v and sets it under key within txn.
func putJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", key, err)
	}
	return txn.Set(key, data)
}

// getJSON loads key into v. Returns badger.ErrKeyNotFound unchanged so
// callers can translate it into the right entity's not-found fault.
func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

// updateWithRetry runs fn in a read-modify-write transaction, retrying on
// write conflicts so concurrent updates to the same record all land.
func updateWithRetry(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxTxnRetries; i++ {
		err = db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		metrics.StoreConflictRetries.Inc()
	}
	return fault.Storage(fmt.Errorf("transaction conflict persisted after %d retries: %w", maxTxnRetries, err))
}

// notFound translates a badger key miss into an entity-level fault and
// wraps anything else as a storage fault.
func notFound(err error, entity string) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fault.NotFound(entity)
	}
	return fault.Storage(err)
}
