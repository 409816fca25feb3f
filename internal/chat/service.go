// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

// Package chat implements the message lifecycle: send, reply, edit, delete,
// pin, reactions, read receipts, history and search. Persistence is the
// source of truth; a message is only broadcast after it is stored, and a
// failed broadcast after a successful store surfaces as delivery-uncertain
// rather than an operation failure.
package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/parleychat/parley/internal/cipher"
	"github.com/parleychat/parley/internal/fault"
	"github.com/parleychat/parley/internal/logging"
	"github.com/parleychat/parley/internal/metrics"
	"github.com/parleychat/parley/internal/moderation"
	"github.com/parleychat/parley/internal/models"
	"github.com/parleychat/parley/internal/store"
)

// previewLimit caps the plaintext carried in a push notification body.
const previewLimit = 120

// Broadcaster is the slice of the connection registry the chat service
// needs.
type Broadcaster interface {
	Broadcast(roomID string, event models.Event) error
	NotifyUser(userID string, event models.Event) error
}

// Notifier queues push notifications. Calls must not block on provider I/O.
type Notifier interface {
	NotifyRoomMembers(ctx context.Context, members []string, sender, preview string)
	NotifyMentioned(ctx context.Context, userIDs []string, sender, senderName string)
}

// Service orchestrates the message lifecycle.
type Service struct {
	messages *store.Messages
	rooms    *store.Rooms
	users    *store.Users
	gate     *moderation.Gate
	cipher   *cipher.Cipher
	bcast    Broadcaster
	notifier Notifier
}

// NewService wires the chat service.
func NewService(
	messages *store.Messages,
	rooms *store.Rooms,
	users *store.Users,
	gate *moderation.Gate,
	c *cipher.Cipher,
	bcast Broadcaster,
	notifier Notifier,
) *Service {
	return &Service{
		messages: messages,
		rooms:    rooms,
		users:    users,
		gate:     gate,
		cipher:   c,
		bcast:    bcast,
		notifier: notifier,
	}
}

// SendInput is a new message as submitted by a client.
type SendInput struct {
	RoomID   string `json:"roomId" validate:"required"`
	Text     string `json:"text" validate:"max=10000"`
	Media    string `json:"media"`
	Voice    string `json:"voiceMessage"`
	Type     string `json:"messageType" validate:"omitempty,oneof=text image video file voice sticker gif"`
	ParentID string `json:"parentMessage"`
}

// Send runs the full outbound pipeline: validate, moderate, normalize,
// extract mentions, encrypt, persist, broadcast, queue notifications.
// A non-nil view together with a delivery-uncertain error means the message
// was stored but may not have reached every attached connection.
func (s *Service) Send(ctx context.Context, actor string, in SendInput) (*models.MessageView, error) {
	if strings.TrimSpace(in.Text) == "" && in.Media == "" && in.Voice == "" {
		return nil, fault.Validation("message must carry text, media, or a voice recording")
	}

	room, err := s.rooms.Get(ctx, in.RoomID)
	if err != nil {
		return nil, err
	}
	if !room.HasMember(actor) {
		return nil, fault.Authorization("sender is not a member of the room")
	}

	if in.ParentID != "" {
		parent, err := s.messages.Get(ctx, in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.RoomID != in.RoomID {
			return nil, fault.Validation("parent message belongs to another room")
		}
	}

	text, mentionIDs, err := s.prepareText(ctx, in.Text)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		Sender:   actor,
		RoomID:   in.RoomID,
		Media:    in.Media,
		Voice:    in.Voice,
		Type:     messageType(in),
		Mentions: mentionIDs,
		ParentID: in.ParentID,
	}
	if text != "" {
		enc, err := s.cipher.Encrypt(text)
		if err != nil {
			return nil, fault.Storage(err)
		}
		msg.Text = enc
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	metrics.MessagesPersisted.WithLabelValues(msg.Type).Inc()

	// Cache pointer only; a failed update never fails the send.
	if err := s.rooms.SetLatestMessage(ctx, room.ID, msg.ID); err != nil {
		logging.Warn().Err(err).Str("room_id", room.ID).Msg("Failed to update latest-message pointer")
	}

	view := s.render(ctx, msg)
	view.Text = text

	s.notifier.NotifyRoomMembers(ctx, room.Members, actor, preview(text, msg.Type))
	if len(mentionIDs) > 0 {
		s.notifier.NotifyMentioned(ctx, mentionIDs, actor, s.senderName(ctx, actor))
	}

	// Mentioned users with live connections also get an in-app notice;
	// best-effort, a drop here never taints the send result.
	notice := models.NotificationNotice{Title: "You were mentioned", Body: preview(text, msg.Type), RoomID: room.ID}
	for _, id := range mentionIDs {
		if id == actor {
			continue
		}
		_ = s.bcast.NotifyUser(id, models.Event{Type: models.EventNotification, Data: notice})
	}

	if err := s.broadcastMessage(room.ID, view); err != nil {
		return view, err
	}
	if err := s.bcast.Broadcast(room.ID, models.Event{
		Type: models.EventDeliveryReceipt,
		Data: models.DeliveryReceipt{MessageID: msg.ID, RoomID: room.ID},
	}); err != nil {
		return view, err
	}
	return view, nil
}

// prepareText moderates raw text, normalizes emoji tokens, and resolves
// mention handles to user IDs. The moderation gate sees the raw input.
func (s *Service) prepareText(ctx context.Context, raw string) (string, []string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil, nil
	}
	if err := s.gate.Check(raw); err != nil {
		metrics.ModerationRejections.Inc()
		return "", nil, err
	}

	text := s.gate.Normalize(raw)

	handles := s.gate.ExtractMentions(text)
	if len(handles) == 0 {
		return text, nil, nil
	}
	mentioned, err := s.users.FindByUsernames(ctx, handles)
	if err != nil {
		return "", nil, err
	}
	ids := make([]string, 0, len(mentioned))
	for _, u := range mentioned {
		ids = append(ids, u.ID)
	}
	return text, ids, nil
}

// Typing relays a typing indicator to the room. Never persisted.
func (s *Service) Typing(ctx context.Context, actor, roomID string) error {
	return s.bcast.Broadcast(roomID, models.Event{
		Type: models.EventTyping,
		Data: models.TypingNotice{UserID: actor, RoomID: roomID},
	})
}

// React records the actor's reaction on a message. A user holds at most one
// reaction per message; a second reaction replaces the first.
func (s *Service) React(ctx context.Context, actor, messageID, reaction string) (*models.MessageView, error) {
	if strings.TrimSpace(reaction) == "" {
		return nil, fault.Validation("reaction must not be empty")
	}
	token := s.gate.Normalize(reaction)

	msg, err := s.messages.Update(ctx, messageID, func(m *models.Message) error {
		if m.Reactions == nil {
			m.Reactions = make(map[string]string)
		}
		m.Reactions[actor] = token
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := s.render(ctx, msg)
	if err := s.broadcastMessage(msg.RoomID, view); err != nil {
		return view, err
	}
	return view, nil
}

// Unreact removes the actor's reaction when it matches the given token.
// Removing an absent reaction is a no-op.
func (s *Service) Unreact(ctx context.Context, actor, messageID, reaction string) (*models.MessageView, error) {
	token := s.gate.Normalize(reaction)

	msg, err := s.messages.Update(ctx, messageID, func(m *models.Message) error {
		if m.Reactions[actor] == token {
			delete(m.Reactions, actor)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := s.render(ctx, msg)
	if err := s.broadcastMessage(msg.RoomID, view); err != nil {
		return view, err
	}
	return view, nil
}

// MarkRead adds the actor to the message's read set. The first marking
// notifies the sender's connections; repeats are no-ops and notify nobody.
func (s *Service) MarkRead(ctx context.Context, actor, messageID string) error {
	added := false
	msg, err := s.messages.Update(ctx, messageID, func(m *models.Message) error {
		if m.ReadByContains(actor) {
			return nil
		}
		m.ReadBy = append(m.ReadBy, actor)
		added = true
		return nil
	})
	if err != nil {
		return err
	}
	if !added {
		return nil
	}

	return s.bcast.NotifyUser(msg.Sender, models.Event{
		Type: models.EventMessageRead,
		Data: models.ReadReceipt{MessageID: msg.ID, UserID: actor},
	})
}

// Edit replaces the message text. Only the sender may edit; the replacement
// is moderated and normalized like a new message, but the original mention
// set is kept — editing never re-targets notifications.
func (s *Service) Edit(ctx context.Context, actor, messageID, text string) (*models.MessageView, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fault.Validation("edited text must not be empty")
	}
	if err := s.gate.Check(text); err != nil {
		metrics.ModerationRejections.Inc()
		return nil, err
	}

	normalized := s.gate.Normalize(text)
	enc, err := s.cipher.Encrypt(normalized)
	if err != nil {
		return nil, fault.Storage(err)
	}

	msg, err := s.messages.Update(ctx, messageID, func(m *models.Message) error {
		if m.Sender != actor {
			return fault.Authorization("only the sender can edit a message")
		}
		if m.Deleted {
			return fault.Validation("cannot edit a deleted message")
		}
		m.Text = enc
		m.Edited = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := s.render(ctx, msg)
	view.Text = normalized
	if err := s.broadcastMessage(msg.RoomID, view); err != nil {
		return view, err
	}
	return view, nil
}

// Delete soft-deletes the message: content is cleared, the record remains,
// and readers see a fixed tombstone. Only the sender may delete.
func (s *Service) Delete(ctx context.Context, actor, messageID string) (*models.MessageView, error) {
	msg, err := s.messages.Update(ctx, messageID, func(m *models.Message) error {
		if m.Sender != actor {
			return fault.Authorization("only the sender can delete a message")
		}
		m.Deleted = true
		m.Text = nil
		m.Media = ""
		m.Voice = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := s.render(ctx, msg)
	if err := s.broadcastMessage(msg.RoomID, view); err != nil {
		return view, err
	}
	return view, nil
}

// Pin marks the message pinned. Only the sender may pin.
func (s *Service) Pin(ctx context.Context, actor, messageID string) (*models.MessageView, error) {
	return s.setPinned(ctx, actor, messageID, true)
}

// Unpin clears the pinned mark. Only the sender may unpin.
func (s *Service) Unpin(ctx context.Context, actor, messageID string) (*models.MessageView, error) {
	return s.setPinned(ctx, actor, messageID, false)
}

func (s *Service) setPinned(ctx context.Context, actor, messageID string, pinned bool) (*models.MessageView, error) {
	msg, err := s.messages.Update(ctx, messageID, func(m *models.Message) error {
		if m.Sender != actor {
			return fault.Authorization("only the sender can pin a message")
		}
		m.Pinned = pinned
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := s.render(ctx, msg)
	if err := s.broadcastMessage(msg.RoomID, view); err != nil {
		return view, err
	}
	return view, nil
}

// History returns the room's messages in chronological order, rendered for
// the reading client. limit <= 0 returns all.
func (s *Service) History(ctx context.Context, actor, roomID string, limit int) ([]models.MessageView, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasMember(actor) {
		return nil, fault.Authorization("not a member of the room")
	}

	msgs, err := s.messages.ByRoom(ctx, roomID, limit)
	if err != nil {
		return nil, err
	}

	views := make([]models.MessageView, 0, len(msgs))
	for i := range msgs {
		views = append(views, *s.render(ctx, &msgs[i]))
	}
	return views, nil
}

// Search returns the room's messages whose decrypted text contains query,
// case-insensitively. Records that fail to decrypt are skipped, not
// surfaced as errors.
func (s *Service) Search(ctx context.Context, actor, roomID, query string) ([]models.MessageView, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fault.Validation("search query must not be empty")
	}

	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasMember(actor) {
		return nil, fault.Authorization("not a member of the room")
	}

	msgs, err := s.messages.ByRoom(ctx, roomID, 0)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	var views []models.MessageView
	for i := range msgs {
		msg := &msgs[i]
		if msg.Deleted || msg.Text == nil {
			continue
		}
		text, err := s.cipher.Decrypt(msg.Text)
		if err != nil {
			if errors.Is(err, cipher.ErrDecrypt) {
				continue
			}
			return nil, fault.Storage(err)
		}
		if !strings.Contains(strings.ToLower(text), needle) {
			continue
		}
		view := s.render(ctx, msg)
		view.Text = text
		views = append(views, *view)
	}
	return views, nil
}

// broadcastMessage fans a rendered message out to the room.
func (s *Service) broadcastMessage(roomID string, view *models.MessageView) error {
	return s.bcast.Broadcast(roomID, models.Event{Type: models.EventMessage, Data: view})
}

// render builds the client-facing view of a message. Deleted messages carry
// the tombstone regardless of stored content; undecryptable text renders as
// unavailable instead of failing the read.
func (s *Service) render(ctx context.Context, msg *models.Message) *models.MessageView {
	view := &models.MessageView{
		ID:        msg.ID,
		Sender:    msg.Sender,
		RoomID:    msg.RoomID,
		Media:     msg.Media,
		Voice:     msg.Voice,
		Type:      msg.Type,
		Mentions:  msg.Mentions,
		Reactions: msg.Reactions,
		ReadBy:    msg.ReadBy,
		Edited:    msg.Edited,
		Deleted:   msg.Deleted,
		Pinned:    msg.Pinned,
		ParentID:  msg.ParentID,
		CreatedAt: msg.CreatedAt,
		UpdatedAt: msg.UpdatedAt,
	}
	view.SenderName = s.senderName(ctx, msg.Sender)

	if msg.Deleted {
		view.Text = models.TombstoneText
		return view
	}
	if msg.Text != nil {
		text, err := s.cipher.Decrypt(msg.Text)
		if err != nil {
			view.Text = models.UnavailableText
			view.Unavailable = true
		} else {
			view.Text = text
		}
	}
	return view
}

// senderName resolves a user ID to its username, falling back to the ID.
func (s *Service) senderName(ctx context.Context, userID string) string {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return userID
	}
	return user.Username
}

func messageType(in SendInput) string {
	if in.Type != "" {
		return in.Type
	}
	switch {
	case in.Voice != "":
		return models.MessageTypeVoice
	case in.Media != "":
		return models.MessageTypeImage
	default:
		return models.MessageTypeText
	}
}

func preview(text, msgType string) string {
	if text == "" {
		switch msgType {
		case models.MessageTypeVoice:
			return "Sent a voice message"
		default:
			return "Sent an attachment"
		}
	}
	if runes := []rune(text); len(runes) > previewLimit {
		return string(runes[:previewLimit])
	}
	return text
}
