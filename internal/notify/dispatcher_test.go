// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

package notify

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/parleychat/parley/internal/config"
	"github.com/parleychat/parley/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "error", Format: "console", Output: io.Discard})
}

type fakeTokens struct {
	tokens map[string]string
}

func (f *fakeTokens) DeviceToken(ctx context.Context, userID string) (string, error) {
	token, ok := f.tokens[userID]
	if !ok {
		return "", errors.New("user not found")
	}
	return token, nil
}

type pushCall struct {
	token, title, body string
}

type fakeClient struct {
	mu    sync.Mutex
	calls []pushCall
	err   error
	ch    chan pushCall
}

func newFakeClient() *fakeClient {
	return &fakeClient{ch: make(chan pushCall, 16)}
}

func (f *fakeClient) Push(ctx context.Context, token, title, body string) error {
	f.mu.Lock()
	call := pushCall{token: token, title: title, body: body}
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	f.ch <- call
	if f.err != nil {
		return f.err
	}
	return nil
}

func startDispatcher(t *testing.T, tokens *fakeTokens, client *fakeClient) *Dispatcher {
	t.Helper()
	d := NewDispatcher(config.PushConfig{Enabled: true, QueueBuffer: 16}, tokens, client)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = d.Close()
	})
	// Give the subscriber a moment to attach before tests publish.
	time.Sleep(20 * time.Millisecond)
	return d
}

func waitForPush(t *testing.T, client *fakeClient) pushCall {
	t.Helper()
	select {
	case call := <-client.ch:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push delivery")
		return pushCall{}
	}
}

func assertNoPush(t *testing.T, client *fakeClient) {
	t.Helper()
	select {
	case call := <-client.ch:
		t.Fatalf("unexpected push: %+v", call)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotifyRoomMembersExcludesSender(t *testing.T) {
	tokens := &fakeTokens{tokens: map[string]string{
		"alice": "token-a",
		"bob":   "token-b",
	}}
	client := newFakeClient()
	d := startDispatcher(t, tokens, client)

	d.NotifyRoomMembers(context.Background(), []string{"alice", "bob"}, "alice", "hi there")

	call := waitForPush(t, client)
	if call.token != "token-b" || call.title != "New Message" || call.body != "hi there" {
		t.Errorf("push = %+v", call)
	}
	assertNoPush(t, client)
}

func TestAbsentTokenIsSkipped(t *testing.T) {
	tokens := &fakeTokens{tokens: map[string]string{"bob": ""}}
	client := newFakeClient()
	d := startDispatcher(t, tokens, client)

	d.NotifyRoomMembers(context.Background(), []string{"bob"}, "alice", "hi")
	assertNoPush(t, client)
}

func TestProviderFailureIsNonFatal(t *testing.T) {
	tokens := &fakeTokens{tokens: map[string]string{
		"bob":   "token-b",
		"carol": "token-c",
	}}
	client := newFakeClient()
	client.err = errors.New("provider down")
	d := startDispatcher(t, tokens, client)

	// Both jobs are attempted despite the first failing.
	d.NotifyRoomMembers(context.Background(), []string{"bob", "carol"}, "alice", "hi")
	waitForPush(t, client)
	waitForPush(t, client)
}

func TestNotifyMentioned(t *testing.T) {
	tokens := &fakeTokens{tokens: map[string]string{"bob": "token-b"}}
	client := newFakeClient()
	d := startDispatcher(t, tokens, client)

	d.NotifyMentioned(context.Background(), []string{"bob", "alice"}, "alice", "alice")

	call := waitForPush(t, client)
	if call.title != "You were mentioned" {
		t.Errorf("title = %q", call.title)
	}
	assertNoPush(t, client)
}

func TestDisabledDispatcherPublishesNothing(t *testing.T) {
	tokens := &fakeTokens{tokens: map[string]string{"bob": "token-b"}}
	client := newFakeClient()
	d := NewDispatcher(config.PushConfig{Enabled: false, QueueBuffer: 16}, tokens, client)
	t.Cleanup(func() { _ = d.Close() })

	d.NotifyRoomMembers(context.Background(), []string{"bob"}, "alice", "hi")
	assertNoPush(t, client)
}
