// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

// Package presence maintains per-user online state derived from connection
// lifecycle. State is written through the user store so it survives the
// process and is visible to the REST surface.
package presence

import (
	"context"
	"time"

	"github.com/parleychat/parley/internal/logging"
	"github.com/parleychat/parley/internal/models"
)

// UserUpdater is the slice of the user store presence needs.
type UserUpdater interface {
	Update(ctx context.Context, id string, fn func(*models.User) error) error
}

// Tracker flips users online and offline as their connections come and go.
type Tracker struct {
	users UserUpdater
}

// NewTracker creates a Tracker backed by the given user store.
func NewTracker(users UserUpdater) *Tracker {
	return &Tracker{users: users}
}

// SetOnline marks the user online and stamps LastSeen. Idempotent: a second
// connection for the same user rewrites the same state.
func (t *Tracker) SetOnline(ctx context.Context, userID string) {
	t.set(ctx, userID, true)
}

// SetOffline marks the user offline and stamps LastSeen.
func (t *Tracker) SetOffline(ctx context.Context, userID string) {
	t.set(ctx, userID, false)
}

func (t *Tracker) set(ctx context.Context, userID string, online bool) {
	err := t.users.Update(ctx, userID, func(u *models.User) error {
		u.Online = online
		u.LastSeen = time.Now().UTC()
		return nil
	})
	if err != nil {
		// Presence is best-effort; a failed write never tears down the
		// connection that triggered it.
		logging.Warn().Err(err).Str("user_id", userID).Bool("online", online).
			Msg("Failed to persist presence change")
	}
}
