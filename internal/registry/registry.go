// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

// Package registry tracks which connections are attached to which rooms and
// fans events out to them. Membership is keyed by connection, not user: one
// user with two devices holds two independent attachments.
//
// Broadcast iterates recipients in ascending connection-ID order so delivery
// attempts are deterministic, and sends never block: a connection whose send
// buffer is full has that event dropped rather than stalling the room.
package registry

import (
	"sort"
	"sync"

	"github.com/parleychat/parley/internal/fault"
	"github.com/parleychat/parley/internal/logging"
	"github.com/parleychat/parley/internal/metrics"
	"github.com/parleychat/parley/internal/models"
)

// Conn is one attached realtime connection. Send must not block; it reports
// whether the event was accepted into the connection's send buffer.
type Conn interface {
	ID() uint64
	UserID() string
	Send(event models.Event) bool
}

// Registry is the in-memory connection/room attachment table.
type Registry struct {
	mu sync.RWMutex

	conns  map[Conn]struct{}
	rooms  map[string]map[Conn]struct{}
	byConn map[Conn]map[string]struct{}
	byUser map[string]map[Conn]struct{}
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		conns:  make(map[Conn]struct{}),
		rooms:  make(map[string]map[Conn]struct{}),
		byConn: make(map[Conn]map[string]struct{}),
		byUser: make(map[string]map[Conn]struct{}),
	}
}

// Register adds a connection to the registry. It starts attached to no rooms.
func (r *Registry) Register(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[conn] = struct{}{}
	r.byConn[conn] = make(map[string]struct{})
	if r.byUser[conn.UserID()] == nil {
		r.byUser[conn.UserID()] = make(map[Conn]struct{})
	}
	r.byUser[conn.UserID()][conn] = struct{}{}

	metrics.ActiveConnections.Inc()
	logging.Debug().Uint64("conn_id", conn.ID()).Str("user_id", conn.UserID()).
		Msg("Connection registered")
}

// Unregister removes a connection and all of its room attachments. After it
// returns, no broadcast can reach the connection.
func (r *Registry) Unregister(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[conn]; !ok {
		return
	}

	for roomID := range r.byConn[conn] {
		r.detachLocked(conn, roomID)
	}
	delete(r.byConn, conn)
	delete(r.conns, conn)

	if set := r.byUser[conn.UserID()]; set != nil {
		delete(set, conn)
		if len(set) == 0 {
			delete(r.byUser, conn.UserID())
		}
	}

	metrics.ActiveConnections.Dec()
	logging.Debug().Uint64("conn_id", conn.ID()).Str("user_id", conn.UserID()).
		Msg("Connection unregistered")
}

// Join attaches the connection to a room. Joining twice is a no-op.
func (r *Registry) Join(conn Conn, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[conn]; !ok {
		return
	}
	if _, ok := r.byConn[conn][roomID]; ok {
		return
	}

	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[Conn]struct{})
	}
	r.rooms[roomID][conn] = struct{}{}
	r.byConn[conn][roomID] = struct{}{}
	metrics.RoomAttachments.Inc()
}

// Leave detaches the connection from a room. Leaving a room the connection
// never joined is a no-op.
func (r *Registry) Leave(conn Conn, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byConn[conn][roomID]; !ok {
		return
	}
	r.detachLocked(conn, roomID)
	delete(r.byConn[conn], roomID)
}

// detachLocked removes conn from a room's member set. Caller holds mu.
func (r *Registry) detachLocked(conn Conn, roomID string) {
	set := r.rooms[roomID]
	if set == nil {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(r.rooms, roomID)
	}
	metrics.RoomAttachments.Dec()
}

// Rooms returns the rooms the connection is currently attached to.
func (r *Registry) Rooms(conn Conn) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]string, 0, len(r.byConn[conn]))
	for roomID := range r.byConn[conn] {
		rooms = append(rooms, roomID)
	}
	sort.Strings(rooms)
	return rooms
}

// Broadcast sends event to every connection attached to the room. It returns
// a delivery-uncertain fault when at least one attached connection could not
// accept the event; the caller decides whether that matters.
func (r *Registry) Broadcast(roomID string, event models.Event) error {
	recipients := r.snapshot(func() map[Conn]struct{} { return r.rooms[roomID] })
	return r.deliver(recipients, event)
}

// BroadcastAll sends event to every registered connection regardless of room
// attachment. Used for global announcements such as new stories.
func (r *Registry) BroadcastAll(event models.Event) error {
	recipients := r.snapshot(func() map[Conn]struct{} { return r.conns })
	return r.deliver(recipients, event)
}

// NotifyUser sends event to every connection belonging to one user.
func (r *Registry) NotifyUser(userID string, event models.Event) error {
	recipients := r.snapshot(func() map[Conn]struct{} { return r.byUser[userID] })
	return r.deliver(recipients, event)
}

// snapshot copies a recipient set under the read lock and sorts it by
// connection ID for deterministic delivery order.
func (r *Registry) snapshot(pick func() map[Conn]struct{}) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := pick()
	recipients := make([]Conn, 0, len(set))
	for conn := range set {
		recipients = append(recipients, conn)
	}
	sort.Slice(recipients, func(i, j int) bool {
		return recipients[i].ID() < recipients[j].ID()
	})
	return recipients
}

func (r *Registry) deliver(recipients []Conn, event models.Event) error {
	metrics.BroadcastEvents.WithLabelValues(event.Type).Inc()

	dropped := 0
	for _, conn := range recipients {
		if !conn.Send(event) {
			dropped++
			metrics.BroadcastDropped.Inc()
			logging.Warn().Uint64("conn_id", conn.ID()).Str("event", event.Type).
				Msg("Dropped event for slow connection")
		}
	}
	if dropped > 0 {
		return fault.DeliveryUncertain(nil)
	}
	return nil
}
