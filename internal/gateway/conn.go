// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/parleychat/parley/internal/logging"
	"github.com/parleychat/parley/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// connIDCounter generates unique, monotonically increasing connection IDs.
// DETERMINISM: the registry sorts recipients by this ID so broadcast order
// does not depend on map iteration.
var connIDCounter atomic.Uint64

// Conn is one authenticated websocket connection: the read pump dispatches
// inbound events, the write pump drains the send buffer.
type Conn struct {
	id     uint64
	userID string
	ws     *websocket.Conn
	gw     *Gateway

	send    chan models.Event
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	closed    atomic.Bool
	closeOnce sync.Once
}

func newConn(gw *Gateway, ws *websocket.Conn, userID string) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		id:      connIDCounter.Add(1),
		userID:  userID,
		ws:      ws,
		gw:      gw,
		send:    make(chan models.Event, gw.cfg.SendBuffer),
		limiter: rate.NewLimiter(rate.Limit(gw.cfg.EventsPerSecond), gw.cfg.EventBurst),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ID returns the connection's unique identifier for deterministic ordering.
func (c *Conn) ID() uint64 { return c.id }

// UserID returns the authenticated user behind the connection.
func (c *Conn) UserID() string { return c.userID }

// Send enqueues an event without blocking. It reports false when the
// connection is closed or its buffer is full; the caller treats a false as
// a dropped delivery, never as a reason to stall.
func (c *Conn) Send(event models.Event) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

// start begins reading and writing for the connection.
func (c *Conn) start() {
	go c.writePump()
	go c.readPump()
}

// close tears the connection down exactly once: detach from every room,
// flip presence offline, stop the pumps.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.cancel()
		c.gw.registry.Unregister(c)
		c.gw.presence.SetOffline(context.Background(), c.userID)
		_ = c.ws.Close()
	})
}

// readPump pumps inbound events from the websocket to the dispatcher.
func (c *Conn) readPump() {
	defer c.close()

	c.ws.SetReadLimit(c.gw.cfg.MaxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Uint64("conn_id", c.id).Msg("unexpected websocket close error")
			}
			return
		}

		c.gw.dispatch(c, env)
	}
}

// writePump pumps outbound events from the send buffer to the websocket.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err == nil {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			}
			return

		case event := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if err := c.ws.WriteJSON(event); err != nil {
				logging.Error().Err(err).Uint64("conn_id", c.id).Msg("failed to write event")
				return
			}

		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
