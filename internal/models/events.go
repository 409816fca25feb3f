// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

package models

// Outbound event types emitted to attached connections.
const (
	EventMessage         = "message"
	EventDeliveryReceipt = "deliveryReceipt"
	EventTyping          = "typing"
	EventMessageRead     = "messageRead"
	EventNewStory        = "newStory"
	EventStoryReaction   = "storyReaction"
	EventStoryViewed     = "storyViewed"
	EventNotification    = "notification"
	EventError           = "error"
)

// Event is a single frame on the realtime channel.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// DeliveryReceipt acknowledges that a message reached the delivery layer.
type DeliveryReceipt struct {
	MessageID string `json:"messageId"`
	RoomID    string `json:"roomId"`
}

// TypingNotice relays a typing indicator; never persisted.
type TypingNotice struct {
	UserID string `json:"userId"`
	RoomID string `json:"roomId"`
}

// ReadReceipt notifies a sender that one recipient read their message.
type ReadReceipt struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
}

// StoryReactionNotice announces a reaction on a story.
type StoryReactionNotice struct {
	StoryID  string `json:"storyId"`
	UserID   string `json:"userId"`
	Reaction string `json:"reaction"`
}

// StoryViewNotice announces a first-time view of a story.
type StoryViewNotice struct {
	StoryID string `json:"storyId"`
	UserID  string `json:"userId"`
	Views   int    `json:"views"`
}

// NotificationNotice is an in-app notification delivered to a user's live
// connections, mirroring the push payload sent to their device.
type NotificationNotice struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	RoomID string `json:"roomId,omitempty"`
}

// ErrorNotice is sent on a connection when an inbound event is rejected.
type ErrorNotice struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
