// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

// Package models defines the persisted documents (users, rooms, messages,
// stories) and the wire events exchanged over the realtime channel.
package models
