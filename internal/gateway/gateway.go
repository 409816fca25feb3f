// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

// Package gateway terminates websocket connections: it verifies the
// credential once at attach time, registers the connection, and dispatches
// inbound events to the chat and story services. Inbound events are
// rate-limited per connection; a rejected event produces an error frame on
// that connection only, the connection itself stays up.
package gateway

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/parleychat/parley/internal/auth"
	"github.com/parleychat/parley/internal/chat"
	"github.com/parleychat/parley/internal/config"
	"github.com/parleychat/parley/internal/fault"
	"github.com/parleychat/parley/internal/logging"
	"github.com/parleychat/parley/internal/metrics"
	"github.com/parleychat/parley/internal/models"
	"github.com/parleychat/parley/internal/presence"
	"github.com/parleychat/parley/internal/registry"
	"github.com/parleychat/parley/internal/story"
	"github.com/parleychat/parley/internal/validation"
)

// Inbound event types accepted on the realtime channel.
const (
	inboundJoin         = "join"
	inboundLeave        = "leave"
	inboundSendMessage  = "sendMessage"
	inboundTyping       = "typing"
	inboundMessageRead  = "messageRead"
	inboundPostStory    = "postStory"
	inboundReactToStory = "reactToStory"
	inboundViewStory    = "viewStory"
)

// envelope is one inbound frame: a type tag and a type-specific payload.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Gateway owns the websocket endpoint.
type Gateway struct {
	verifier auth.Verifier
	registry *registry.Registry
	presence *presence.Tracker
	chat     *chat.Service
	stories  *story.Service
	upgrader websocket.Upgrader
	cfg      config.GatewayConfig
}

// New wires the gateway.
func New(
	verifier auth.Verifier,
	reg *registry.Registry,
	tracker *presence.Tracker,
	chatSvc *chat.Service,
	storySvc *story.Service,
	cfg config.GatewayConfig,
) *Gateway {
	return &Gateway{
		verifier: verifier,
		registry: reg,
		presence: tracker,
		chat:     chatSvc,
		stories:  storySvc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin enforcement happens in the CORS middleware ahead of the
			// upgrade; the handshake itself accepts any origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		cfg: cfg,
	}
}

// Handle upgrades an HTTP request to a websocket connection. The credential
// is verified exactly once, before the upgrade; everything the connection
// does afterwards runs as that user.
func (g *Gateway) Handle(w http.ResponseWriter, r *http.Request) {
	credential := r.URL.Query().Get("token")
	if credential == "" {
		if header := r.Header.Get("Authorization"); len(header) > 7 && header[:7] == "Bearer " {
			credential = header[7:]
		}
	}
	if credential == "" {
		http.Error(w, "missing credentials", http.StatusUnauthorized)
		return
	}

	userID, err := g.verifier.Verify(r.Context(), credential)
	if err != nil {
		logging.Debug().Err(err).Msg("Websocket credential rejected")
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	conn := newConn(g, ws, userID)
	g.registry.Register(conn)
	g.presence.SetOnline(r.Context(), userID)
	conn.start()

	logging.Info().Uint64("conn_id", conn.ID()).Str("user_id", userID).
		Msg("Websocket connection established")
}

// dispatch routes one inbound frame. Failures become error frames on the
// originating connection; the room never sees another member's mistakes.
func (g *Gateway) dispatch(c *Conn, env envelope) {
	if !c.limiter.Allow() {
		metrics.InboundEvents.WithLabelValues(env.Type, "rate_limited").Inc()
		g.sendError(c, fault.Validation("too many events, slow down"))
		return
	}

	var err error
	switch env.Type {
	case inboundJoin:
		err = g.handleJoin(c, env.Data)
	case inboundLeave:
		err = g.handleLeave(c, env.Data)
	case inboundSendMessage:
		err = g.handleSendMessage(c, env.Data)
	case inboundTyping:
		err = g.handleTyping(c, env.Data)
	case inboundMessageRead:
		err = g.handleMessageRead(c, env.Data)
	case inboundPostStory:
		err = g.handlePostStory(c, env.Data)
	case inboundReactToStory:
		err = g.handleReactToStory(c, env.Data)
	case inboundViewStory:
		err = g.handleViewStory(c, env.Data)
	default:
		err = fault.Validation("unknown event type: " + env.Type)
	}

	if err != nil {
		// Delivery-uncertain means the operation itself succeeded; some
		// recipient just had a full buffer. Not the sender's problem.
		if fault.Is(err, fault.KindDeliveryUncertain) {
			metrics.InboundEvents.WithLabelValues(env.Type, "ok").Inc()
			return
		}
		metrics.InboundEvents.WithLabelValues(env.Type, "rejected").Inc()
		g.sendError(c, err)
		return
	}
	metrics.InboundEvents.WithLabelValues(env.Type, "ok").Inc()
}

type joinPayload struct {
	RoomID string `json:"roomId" validate:"required"`
}

func (g *Gateway) handleJoin(c *Conn, data json.RawMessage) error {
	var p joinPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	g.registry.Join(c, p.RoomID)
	// Joining a room refreshes presence; a long-lived connection keeps its
	// lastSeen current through room activity, not just the initial attach.
	g.presence.SetOnline(c.ctx, c.userID)
	return nil
}

func (g *Gateway) handleLeave(c *Conn, data json.RawMessage) error {
	var p joinPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	g.registry.Leave(c, p.RoomID)
	return nil
}

func (g *Gateway) handleSendMessage(c *Conn, data json.RawMessage) error {
	var in chat.SendInput
	if err := decode(data, &in); err != nil {
		return err
	}
	_, err := g.chat.Send(c.ctx, c.userID, in)
	return err
}

func (g *Gateway) handleTyping(c *Conn, data json.RawMessage) error {
	var p joinPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	return g.chat.Typing(c.ctx, c.userID, p.RoomID)
}

type messageReadPayload struct {
	MessageID string `json:"messageId" validate:"required"`
}

func (g *Gateway) handleMessageRead(c *Conn, data json.RawMessage) error {
	var p messageReadPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	return g.chat.MarkRead(c.ctx, c.userID, p.MessageID)
}

type postStoryPayload struct {
	Content string `json:"content" validate:"required"`
}

func (g *Gateway) handlePostStory(c *Conn, data json.RawMessage) error {
	var p postStoryPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	_, err := g.stories.Post(c.ctx, c.userID, p.Content)
	return err
}

type storyReactionPayload struct {
	StoryID  string `json:"storyId" validate:"required"`
	Reaction string `json:"reaction" validate:"required"`
}

func (g *Gateway) handleReactToStory(c *Conn, data json.RawMessage) error {
	var p storyReactionPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	_, err := g.stories.React(c.ctx, c.userID, p.StoryID, p.Reaction)
	return err
}

type viewStoryPayload struct {
	StoryID string `json:"storyId" validate:"required"`
}

func (g *Gateway) handleViewStory(c *Conn, data json.RawMessage) error {
	var p viewStoryPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	_, err := g.stories.View(c.ctx, c.userID, p.StoryID)
	return err
}

// decode unmarshals and validates an inbound payload.
func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fault.Validation("missing event payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fault.Validation("malformed event payload")
	}
	if verr := validation.ValidateStruct(v); verr != nil {
		return fault.Validation(verr.Error())
	}
	return nil
}

// sendError emits an error frame on the originating connection.
func (g *Gateway) sendError(c *Conn, err error) {
	notice := models.ErrorNotice{Kind: string(fault.KindOf(err)), Message: err.Error()}
	if !c.Send(models.Event{Type: models.EventError, Data: notice}) {
		logging.Debug().Uint64("conn_id", c.ID()).Msg("Dropped error frame for slow connection")
	}
}
