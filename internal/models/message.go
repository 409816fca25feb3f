// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

package models

import "time"

// Message payload kinds. A message carries at least one of text, media
// reference, or voice reference.
const (
	MessageTypeText    = "text"
	MessageTypeImage   = "image"
	MessageTypeVideo   = "video"
	MessageTypeFile    = "file"
	MessageTypeVoice   = "voice"
	MessageTypeSticker = "sticker"
	MessageTypeGif     = "gif"
)

// TombstoneText is the fixed replacement shown for a soft-deleted message.
const TombstoneText = "This message was deleted"

// UnavailableText is shown when a message's ciphertext cannot be decrypted.
const UnavailableText = "Message unavailable"

// EncryptedText is an at-rest encrypted text payload: base64 nonce and
// ciphertext as produced by the cipher.
type EncryptedText struct {
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Message is the persisted chat message document. Text is stored encrypted;
// Reactions is keyed by user ID so a user's later reaction replaces the
// earlier one and concurrent writers cannot accumulate duplicates.
type Message struct {
	ID       string         `json:"id"`
	Sender   string         `json:"sender"`
	RoomID   string         `json:"roomId"`
	Text     *EncryptedText `json:"text,omitempty"`
	Media    string         `json:"media,omitempty"`
	Voice    string         `json:"voiceMessage,omitempty"`
	Type     string         `json:"messageType"`
	Mentions []string       `json:"mentions,omitempty"`

	Reactions map[string]string `json:"reactions,omitempty"`
	ReadBy    []string          `json:"readBy,omitempty"`

	Edited  bool `json:"edited"`
	Deleted bool `json:"deleted"`
	Pinned  bool `json:"pinned"`

	// ParentID references the message this one replies to. Fixed at
	// creation, never reassigned; replies form a forest.
	ParentID string `json:"parentMessage,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ReadByContains reports whether userID already marked the message read.
func (m *Message) ReadByContains(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// MessageView is the plaintext-equivalent view broadcast to connections and
// returned by the REST surface. Text is decrypted; deleted messages carry
// the tombstone regardless of stored ciphertext.
type MessageView struct {
	ID          string            `json:"id"`
	Sender      string            `json:"sender"`
	SenderName  string            `json:"senderName,omitempty"`
	RoomID      string            `json:"roomId"`
	Text        string            `json:"text,omitempty"`
	Media       string            `json:"media,omitempty"`
	Voice       string            `json:"voiceMessage,omitempty"`
	Type        string            `json:"messageType"`
	Mentions    []string          `json:"mentions,omitempty"`
	Reactions   map[string]string `json:"reactions,omitempty"`
	ReadBy      []string          `json:"readBy,omitempty"`
	Edited      bool              `json:"edited"`
	Deleted     bool              `json:"deleted"`
	Pinned      bool              `json:"pinned"`
	ParentID    string            `json:"parentMessage,omitempty"`
	Unavailable bool              `json:"unavailable,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}
