// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

package models

import "time"

// Room is a direct (2-member) or group conversation. Role data for group
// rooms is owned by the external group-management service; this core only
// needs membership to compute fan-out.
type Room struct {
	ID      string   `json:"id"`
	IsGroup bool     `json:"isGroup"`
	Name    string   `json:"name,omitempty"`
	Members []string `json:"members"`

	// LatestMessageID is a cache pointer, not authoritative.
	LatestMessageID string `json:"latestMessage,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasMember reports whether userID is a member of the room.
func (r *Room) HasMember(userID string) bool {
	for _, m := range r.Members {
		if m == userID {
			return true
		}
	}
	return false
}
