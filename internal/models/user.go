// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

package models

import "time"

// User is the slice of the externally-owned user entity this core reads and
// mutates: identity, push token, and presence. Profile fields (email,
// avatar, privacy settings) belong to the external profile service.
type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DeviceToken string    `json:"deviceToken,omitempty"`
	Online      bool      `json:"online"`
	LastSeen    time.Time `json:"lastSeen"`
	CreatedAt   time.Time `json:"createdAt"`
}
