// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

// Package moderation is the content gate every user-authored text passes
// before entering the pipeline: blocklist check, emoji-token normalization,
// and mention extraction. Order matters: the blocklist runs against raw
// input, before normalization.
package moderation

import (
	"regexp"
	"strings"

	"github.com/enescakir/emoji"

	"github.com/parleychat/parley/internal/fault"
)

// mentionPattern matches @handle tokens: "@" followed by word characters.
var mentionPattern = regexp.MustCompile(`@(\w+)`)

// Gate applies moderation and text normalization.
type Gate struct {
	blocklist []string
}

// NewGate creates a Gate with the configured blocklist. Matching is
// case-sensitive substring containment, deliberately not word-boundary
// aware; a false positive on a substring hit is expected behavior.
func NewGate(blocklist []string) *Gate {
	return &Gate{blocklist: blocklist}
}

// Check rejects text containing any blocklisted substring. The returned
// error carries fault.KindModeration so clients can render a specific
// message; nothing is persisted or relayed after a rejection.
func (g *Gate) Check(text string) error {
	for _, word := range g.blocklist {
		if word != "" && strings.Contains(text, word) {
			return fault.Moderation("content contains inappropriate language")
		}
	}
	return nil
}

// Normalize expands emoji tokens (":wave:" style) to their unicode form.
func (g *Gate) Normalize(text string) string {
	return emoji.Parse(text)
}

// ExtractMentions returns the deduplicated handles referenced by @handle
// tokens in text, without the leading "@". Resolution of handles to user
// identities is the caller's concern.
func (g *Gate) ExtractMentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	handles := make([]string, 0, len(matches))
	for _, m := range matches {
		handle := m[1]
		if _, dup := seen[handle]; dup {
			continue
		}
		seen[handle] = struct{}{}
		handles = append(handles, handle)
	}
	return handles
}
