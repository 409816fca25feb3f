// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

package store

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/parleychat/parley/internal/fault"
	"github.com/parleychat/parley/internal/metrics"
	"github.com/parleychat/parley/internal/models"
)

// Users stores user records plus a username index used for mention
// resolution.
type Users struct {
	db *badger.DB
}

func userKey(id string) []byte       { return []byte(userKeyPrefix + id) }
func usernameKey(name string) []byte { return []byte(usernameKeyPrefix + name) }

// Create persists a new user and its username index entry. A missing ID is
// assigned.
func (u *Users) Create(ctx context.Context, user *models.User) error {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("user", "create", time.Since(start)) }()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	err := u.db.Update(func(txn *badger.Txn) error {
		if err := putJSON(txn, userKey(user.ID), user); err != nil {
			return err
		}
		return txn.Set(usernameKey(user.Username), []byte(user.ID))
	})
	if err != nil {
		return fault.Storage(err)
	}
	return nil
}

// Get returns the user by ID.
func (u *Users) Get(ctx context.Context, id string) (*models.User, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("user", "get", time.Since(start)) }()

	var user models.User
	err := u.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(id), &user)
	})
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

// Update applies fn to the stored user inside a transaction, retrying on
// conflict. fn returning an error aborts without writing.
func (u *Users) Update(ctx context.Context, id string, fn func(*models.User) error) error {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("user", "update", time.Since(start)) }()

	return updateWithRetry(u.db, func(txn *badger.Txn) error {
		var user models.User
		if err := getJSON(txn, userKey(id), &user); err != nil {
			return notFound(err, "user")
		}
		if err := fn(&user); err != nil {
			return err
		}
		return putJSON(txn, userKey(id), &user)
	})
}

// FindByUsernames resolves handles to users via the username index. Handles
// that resolve to no user are silently dropped; mentioning a nonexistent
// user is not an error.
func (u *Users) FindByUsernames(ctx context.Context, names []string) ([]models.User, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("user", "find_by_usernames", time.Since(start)) }()

	users := make([]models.User, 0, len(names))
	err := u.db.View(func(txn *badger.Txn) error {
		for _, name := range names {
			item, err := txn.Get(usernameKey(name))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			var id string
			if err := item.Value(func(val []byte) error {
				id = string(val)
				return nil
			}); err != nil {
				return err
			}

			var user models.User
			if err := getJSON(txn, userKey(id), &user); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			users = append(users, user)
		}
		return nil
	})
	if err != nil {
		return nil, fault.Storage(err)
	}
	return users, nil
}

// DeviceToken returns the user's push token, empty when none is registered.
func (u *Users) DeviceToken(ctx context.Context, id string) (string, error) {
	user, err := u.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return user.DeviceToken, nil
}
