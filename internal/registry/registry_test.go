// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

package registry

import (
	"io"
	"sync/atomic"
	"testing"

	"github.com/parleychat/parley/internal/fault"
	"github.com/parleychat/parley/internal/logging"
	"github.com/parleychat/parley/internal/models"
)

func init() {
	logging.Init(logging.Config{Level: "error", Format: "console", Output: io.Discard})
}

var fakeConnIDs atomic.Uint64

// fakeConn records delivered events; full simulates a saturated send buffer.
type fakeConn struct {
	id     uint64
	userID string
	events []models.Event
	full   bool
}

func newFakeConn(userID string) *fakeConn {
	return &fakeConn{id: fakeConnIDs.Add(1), userID: userID}
}

func (c *fakeConn) ID() uint64     { return c.id }
func (c *fakeConn) UserID() string { return c.userID }

func (c *fakeConn) Send(event models.Event) bool {
	if c.full {
		return false
	}
	c.events = append(c.events, event)
	return true
}

func TestJoinIsIdempotent(t *testing.T) {
	r := New()
	conn := newFakeConn("alice")
	r.Register(conn)

	r.Join(conn, "room-1")
	r.Join(conn, "room-1")

	if err := r.Broadcast("room-1", models.Event{Type: models.EventTyping}); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if len(conn.events) != 1 {
		t.Errorf("double join caused %d deliveries, want 1", len(conn.events))
	}
}

func TestBroadcastReachesOnlyRoomMembers(t *testing.T) {
	r := New()
	in := newFakeConn("alice")
	out := newFakeConn("bob")
	r.Register(in)
	r.Register(out)
	r.Join(in, "room-1")
	r.Join(out, "room-2")

	if err := r.Broadcast("room-1", models.Event{Type: models.EventMessage}); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if len(in.events) != 1 {
		t.Errorf("member got %d events, want 1", len(in.events))
	}
	if len(out.events) != 0 {
		t.Errorf("non-member got %d events, want 0", len(out.events))
	}
}

func TestUnregisterDetachesEverywhere(t *testing.T) {
	r := New()
	conn := newFakeConn("alice")
	r.Register(conn)
	r.Join(conn, "room-1")
	r.Join(conn, "room-2")

	r.Unregister(conn)

	for _, roomID := range []string{"room-1", "room-2"} {
		_ = r.Broadcast(roomID, models.Event{Type: models.EventMessage})
	}
	if len(conn.events) != 0 {
		t.Errorf("unregistered connection received %d events", len(conn.events))
	}
	if rooms := r.Rooms(conn); len(rooms) != 0 {
		t.Errorf("unregistered connection still attached to %v", rooms)
	}

	// Unregistering twice must not panic or corrupt state.
	r.Unregister(conn)
}

func TestLeaveUnknownRoomIsNoOp(t *testing.T) {
	r := New()
	conn := newFakeConn("alice")
	r.Register(conn)

	r.Leave(conn, "never-joined")

	r.Join(conn, "room-1")
	r.Leave(conn, "room-1")
	if err := r.Broadcast("room-1", models.Event{Type: models.EventMessage}); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if len(conn.events) != 0 {
		t.Errorf("left connection received %d events", len(conn.events))
	}
}

func TestBroadcastDeterministicOrder(t *testing.T) {
	r := New()
	conns := make([]*fakeConn, 5)
	for i := range conns {
		conns[i] = newFakeConn("user")
		r.Register(conns[i])
		r.Join(conns[i], "room-1")
	}

	var order []uint64
	probe := func() {
		order = order[:0]
		for _, c := range r.snapshot(func() map[Conn]struct{} { return r.rooms["room-1"] }) {
			order = append(order, c.ID())
		}
	}
	probe()
	for i := 1; i < len(order); i++ {
		if order[i-1] >= order[i] {
			t.Fatalf("recipients not ID-sorted: %v", order)
		}
	}
}

func TestBroadcastReportsDrops(t *testing.T) {
	r := New()
	ok := newFakeConn("alice")
	slow := newFakeConn("bob")
	slow.full = true
	r.Register(ok)
	r.Register(slow)
	r.Join(ok, "room-1")
	r.Join(slow, "room-1")

	err := r.Broadcast("room-1", models.Event{Type: models.EventMessage})
	if !fault.Is(err, fault.KindDeliveryUncertain) {
		t.Fatalf("expected delivery-uncertain, got %v", err)
	}
	// The healthy connection still got the event.
	if len(ok.events) != 1 {
		t.Errorf("healthy connection got %d events, want 1", len(ok.events))
	}
}

func TestNotifyUserHitsAllDevices(t *testing.T) {
	r := New()
	phone := newFakeConn("alice")
	laptop := newFakeConn("alice")
	other := newFakeConn("bob")
	for _, c := range []*fakeConn{phone, laptop, other} {
		r.Register(c)
	}

	if err := r.NotifyUser("alice", models.Event{Type: models.EventMessageRead}); err != nil {
		t.Fatalf("NotifyUser: %v", err)
	}
	if len(phone.events) != 1 || len(laptop.events) != 1 {
		t.Error("expected both of alice's connections to be notified")
	}
	if len(other.events) != 0 {
		t.Error("bob must not receive alice's receipts")
	}
}

func TestBroadcastAll(t *testing.T) {
	r := New()
	a := newFakeConn("alice")
	b := newFakeConn("bob")
	r.Register(a)
	r.Register(b)
	r.Join(a, "room-1")
	// b joined no room at all.

	if err := r.BroadcastAll(models.Event{Type: models.EventNewStory}); err != nil {
		t.Fatalf("BroadcastAll: %v", err)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Error("expected every registered connection to receive the story")
	}
}
