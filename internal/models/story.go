// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

package models

import "time"

// StoryTTL is the fixed lifetime of a story. Expiry is enforced by the
// storage engine's TTL, not by an in-process sweeper.
const StoryTTL = 24 * time.Hour

// Story is ephemeral content visible to all users, not scoped to a room.
// Content is stored emoji-normalized plaintext. Views holds unique viewers;
// Reactions is keyed by viewer ID with last-write-wins semantics.
type Story struct {
	ID      string `json:"id"`
	Owner   string `json:"user"`
	Content string `json:"content"`

	Views     []string          `json:"views,omitempty"`
	Reactions map[string]string `json:"reactions,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ViewedBy reports whether userID already viewed the story.
func (s *Story) ViewedBy(userID string) bool {
	for _, id := range s.Views {
		if id == userID {
			return true
		}
	}
	return false
}
