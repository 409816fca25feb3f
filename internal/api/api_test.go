// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/parleychat/parley/internal/auth"
	"github.com/parleychat/parley/internal/chat"
	"github.com/parleychat/parley/internal/cipher"
	"github.com/parleychat/parley/internal/config"
	"github.com/parleychat/parley/internal/gateway"
	"github.com/parleychat/parley/internal/logging"
	"github.com/parleychat/parley/internal/moderation"
	"github.com/parleychat/parley/internal/models"
	"github.com/parleychat/parley/internal/notify"
	"github.com/parleychat/parley/internal/presence"
	"github.com/parleychat/parley/internal/registry"
	"github.com/parleychat/parley/internal/store"
	"github.com/parleychat/parley/internal/story"
)

func init() {
	logging.Init(logging.Config{Level: "error", Format: "console", Output: io.Discard})
}

const testSecret = "0123456789abcdef0123456789abcdef"

type testServer struct {
	handler  http.Handler
	verifier *auth.JWTVerifier
	db       *store.Store
	alice    *models.User
	bob      *models.User
	room     *models.Room
}

func newTestServer(t *testing.T, blocklist []string) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := store.Open(config.DatabaseConfig{InMemory: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	msgCipher, err := cipher.New("test-message-secret")
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	verifier, err := auth.NewJWTVerifier(testSecret)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	alice := &models.User{Username: "alice"}
	bob := &models.User{Username: "bob"}
	for _, u := range []*models.User{alice, bob} {
		if err := db.Users().Create(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	room := &models.Room{Members: []string{alice.ID, bob.ID}}
	if err := db.Rooms().Create(ctx, room); err != nil {
		t.Fatalf("create room: %v", err)
	}

	gate := moderation.NewGate(blocklist)
	reg := registry.New()
	tracker := presence.NewTracker(db.Users())
	dispatcher := notify.NewDispatcher(config.PushConfig{Enabled: false}, db.Users(), notify.LogClient{})
	t.Cleanup(func() { _ = dispatcher.Close() })

	chatSvc := chat.NewService(db.Messages(), db.Rooms(), db.Users(), gate, msgCipher, reg, dispatcher)
	storySvc := story.NewService(db.Stories(), gate, reg)
	gw := gateway.New(verifier, reg, tracker, chatSvc, storySvc, config.GatewayConfig{
		EventsPerSecond: 100, EventBurst: 100, SendBuffer: 16, MaxMessageSize: 64 * 1024,
	})

	router := NewRouter(NewHandler(chatSvc, storySvc, db), gw, verifier, config.SecurityConfig{
		RateLimitReqs:   1000,
		RateLimitWindow: time.Minute,
		CORSOrigins:     []string{"*"},
	})

	return &testServer{
		handler:  router.Setup(),
		verifier: verifier,
		db:       db,
		alice:    alice,
		bob:      bob,
		room:     room,
	}
}

func (ts *testServer) request(t *testing.T, method, path string, body any, actor *models.User) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = strings.NewReader(string(data))
	}

	req := httptest.NewRequest(method, path, reader)
	if actor != nil {
		token, err := ts.verifier.Mint(actor.ID, actor.Username, time.Hour)
		if err != nil {
			t.Fatalf("mint token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) *models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return &resp
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.request(t, http.MethodGet, "/api/v1/health/live", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("live status = %d", rec.Code)
	}
	rec = ts.request(t, http.MethodGet, "/api/v1/health/ready", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("ready status = %d", rec.Code)
	}
}

func TestAuthenticationRequired(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.request(t, http.MethodGet, "/api/v1/stories", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestSendAndHistory(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.request(t, http.MethodPost, "/api/v1/messages",
		map[string]string{"roomId": ts.room.ID, "text": "hello"}, ts.alice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("send status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if resp.Status != "success" {
		t.Errorf("status = %q", resp.Status)
	}

	rec = ts.request(t, http.MethodGet, "/api/v1/rooms/"+ts.room.ID+"/messages", nil, ts.bob)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	var views []models.MessageView
	raw, _ := json.Marshal(decodeResponse(t, rec).Data)
	if err := json.Unmarshal(raw, &views); err != nil {
		t.Fatalf("decode views: %v", err)
	}
	if len(views) != 1 || views[0].Text != "hello" {
		t.Errorf("history = %+v", views)
	}
}

func TestSendValidationAndModeration(t *testing.T) {
	ts := newTestServer(t, []string{"badword"})

	rec := ts.request(t, http.MethodPost, "/api/v1/messages",
		map[string]string{"text": "no room"}, ts.alice)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing room status = %d", rec.Code)
	}
	if decodeResponse(t, rec).Error.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q", decodeResponse(t, rec).Error.Code)
	}

	rec = ts.request(t, http.MethodPost, "/api/v1/messages",
		map[string]string{"roomId": ts.room.ID, "text": "a badword"}, ts.alice)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("moderation status = %d", rec.Code)
	}
	if decodeResponse(t, rec).Error.Code != "MODERATION_REJECTED" {
		t.Errorf("code = %q", decodeResponse(t, rec).Error.Code)
	}
}

func TestEditAuthorization(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.request(t, http.MethodPost, "/api/v1/messages",
		map[string]string{"roomId": ts.room.ID, "text": "mine"}, ts.alice)
	var view models.MessageView
	raw, _ := json.Marshal(decodeResponse(t, rec).Data)
	_ = json.Unmarshal(raw, &view)

	rec = ts.request(t, http.MethodPut, "/api/v1/messages/"+view.ID,
		map[string]string{"text": "hijacked"}, ts.bob)
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-sender edit status = %d", rec.Code)
	}
	if decodeResponse(t, rec).Error.Code != "AUTHORIZATION_ERROR" {
		t.Errorf("code = %q", decodeResponse(t, rec).Error.Code)
	}

	rec = ts.request(t, http.MethodPut, "/api/v1/messages/"+view.ID,
		map[string]string{"text": "fixed"}, ts.alice)
	if rec.Code != http.StatusOK {
		t.Errorf("sender edit status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDeleteRendersTombstone(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.request(t, http.MethodPost, "/api/v1/messages",
		map[string]string{"roomId": ts.room.ID, "text": "gone soon"}, ts.alice)
	var view models.MessageView
	raw, _ := json.Marshal(decodeResponse(t, rec).Data)
	_ = json.Unmarshal(raw, &view)

	rec = ts.request(t, http.MethodDelete, "/api/v1/messages/"+view.ID, nil, ts.alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	var deleted models.MessageView
	raw, _ = json.Marshal(decodeResponse(t, rec).Data)
	_ = json.Unmarshal(raw, &deleted)
	if !deleted.Deleted || deleted.Text != models.TombstoneText {
		t.Errorf("deleted view = %+v", deleted)
	}
}

func TestMessageNotFound(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.request(t, http.MethodPost, "/api/v1/messages/nope/read", nil, ts.alice)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if decodeResponse(t, rec).Error.Code != "NOT_FOUND" {
		t.Errorf("code = %q", decodeResponse(t, rec).Error.Code)
	}
}

func TestStoryLifecycleOverREST(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.request(t, http.MethodPost, "/api/v1/stories",
		map[string]string{"content": "my day"}, ts.alice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("post status = %d: %s", rec.Code, rec.Body.String())
	}
	var st models.Story
	raw, _ := json.Marshal(decodeResponse(t, rec).Data)
	_ = json.Unmarshal(raw, &st)

	rec = ts.request(t, http.MethodPost, "/api/v1/stories/"+st.ID+"/views", nil, ts.bob)
	if rec.Code != http.StatusOK {
		t.Errorf("view status = %d", rec.Code)
	}

	rec = ts.request(t, http.MethodPost, "/api/v1/stories/"+st.ID+"/reactions",
		map[string]string{"reaction": "fire"}, ts.bob)
	if rec.Code != http.StatusOK {
		t.Errorf("react status = %d", rec.Code)
	}

	rec = ts.request(t, http.MethodGet, "/api/v1/stories", nil, ts.bob)
	var stories []models.Story
	raw, _ = json.Marshal(decodeResponse(t, rec).Data)
	_ = json.Unmarshal(raw, &stories)
	if len(stories) != 1 || len(stories[0].Views) != 1 {
		t.Errorf("stories = %+v", stories)
	}

	// Non-owner cannot delete.
	rec = ts.request(t, http.MethodDelete, "/api/v1/stories/"+st.ID, nil, ts.bob)
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-owner delete status = %d", rec.Code)
	}
	rec = ts.request(t, http.MethodDelete, "/api/v1/stories/"+st.ID, nil, ts.alice)
	if rec.Code != http.StatusOK {
		t.Errorf("owner delete status = %d", rec.Code)
	}
}

func TestSearchOverREST(t *testing.T) {
	ts := newTestServer(t, nil)

	_ = ts.request(t, http.MethodPost, "/api/v1/messages",
		map[string]string{"roomId": ts.room.ID, "text": "Find The Needle"}, ts.alice)
	_ = ts.request(t, http.MethodPost, "/api/v1/messages",
		map[string]string{"roomId": ts.room.ID, "text": "hay"}, ts.alice)

	rec := ts.request(t, http.MethodGet,
		"/api/v1/rooms/"+ts.room.ID+"/messages/search?q=needle", nil, ts.bob)
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d", rec.Code)
	}
	var views []models.MessageView
	raw, _ := json.Marshal(decodeResponse(t, rec).Data)
	_ = json.Unmarshal(raw, &views)
	if len(views) != 1 || views[0].Text != "Find The Needle" {
		t.Errorf("search results = %+v", views)
	}
}
