// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

// Package api is the REST surface over the chat and story services plus the
// websocket attach point. Every handler resolves the acting user from the
// verified request identity; nothing trusts a user ID from the payload.
package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/parleychat/parley/internal/auth"
	"github.com/parleychat/parley/internal/chat"
	"github.com/parleychat/parley/internal/fault"
	"github.com/parleychat/parley/internal/story"
	"github.com/parleychat/parley/internal/validation"
)

// Pinger reports backend health for the readiness endpoint.
type Pinger interface {
	Ping() error
}

// Handler holds the services the REST surface calls into.
type Handler struct {
	chat    *chat.Service
	stories *story.Service
	db      Pinger
}

// NewHandler wires the REST handlers.
func NewHandler(chatSvc *chat.Service, storySvc *story.Service, db Pinger) *Handler {
	return &Handler{chat: chatSvc, stories: storySvc, db: db}
}

// HealthLive always reports alive while the process runs.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady reports ready once the document store is usable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(); err != nil {
		respondError(w, http.StatusServiceUnavailable, "NOT_READY", err.Error())
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"status": "ready"})
}

// SendMessage handles POST /messages. A body with parentMessage set is a
// reply; the parent is validated inside the service.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var in chat.SendInput
	if err := decodeBody(r, &in); err != nil {
		respondFault(w, err, nil, 0)
		return
	}
	if verr := validation.ValidateStruct(&in); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message)
		return
	}

	view, err := h.chat.Send(r.Context(), auth.Identity(r.Context()), in)
	if err != nil {
		respondFault(w, err, view, http.StatusCreated)
		return
	}
	respondSuccess(w, http.StatusCreated, view)
}

// RoomHistory handles GET /rooms/{roomID}/messages.
func (h *Handler) RoomHistory(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	views, err := h.chat.History(r.Context(), auth.Identity(r.Context()), roomID, limit)
	if err != nil {
		respondFault(w, err, nil, 0)
		return
	}
	respondSuccess(w, http.StatusOK, views)
}

// SearchMessages handles GET /rooms/{roomID}/messages/search?q=term.
func (h *Handler) SearchMessages(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	query := r.URL.Query().Get("q")

	views, err := h.chat.Search(r.Context(), auth.Identity(r.Context()), roomID, query)
	if err != nil {
		respondFault(w, err, nil, 0)
		return
	}
	respondSuccess(w, http.StatusOK, views)
}

type reactionRequest struct {
	Reaction string `json:"reaction" validate:"required"`
}

// ReactToMessage handles POST /messages/{id}/reactions.
func (h *Handler) ReactToMessage(w http.ResponseWriter, r *http.Request) {
	var req reactionRequest
	if err := decodeBody(r, &req); err != nil {
		respondFault(w, err, nil, 0)
		return
	}

	view, err := h.chat.React(r.Context(), auth.Identity(r.Context()), chi.URLParam(r, "id"), req.Reaction)
	if err != nil {
		respondFault(w, err, view, http.StatusOK)
		return
	}
	respondSuccess(w, http.StatusOK, view)
}

// UnreactToMessage handles DELETE /messages/{id}/reactions?reaction=token.
func (h *Handler) UnreactToMessage(w http.ResponseWriter, r *http.Request) {
	reaction := r.URL.Query().Get("reaction")
	if reaction == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "reaction query parameter is required")
		return
	}

	view, err := h.chat.Unreact(r.Context(), auth.Identity(r.Context()), chi.URLParam(r, "id"), reaction)
	if err != nil {
		respondFault(w, err, view, http.StatusOK)
		return
	}
	respondSuccess(w, http.StatusOK, view)
}

// MarkMessageRead handles POST /messages/{id}/read.
func (h *Handler) MarkMessageRead(w http.ResponseWriter, r *http.Request) {
	err := h.chat.MarkRead(r.Context(), auth.Identity(r.Context()), chi.URLParam(r, "id"))
	if err != nil && !fault.Is(err, fault.KindDeliveryUncertain) {
		respondFault(w, err, nil, 0)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]bool{"read": true})
}

type editRequest struct {
	Text string `json:"text" validate:"required,max=10000"`
}

// EditMessage handles PUT /messages/{id}.
func (h *Handler) EditMessage(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := decodeBody(r, &req); err != nil {
		respondFault(w, err, nil, 0)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message)
		return
	}

	view, err := h.chat.Edit(r.Context(), auth.Identity(r.Context()), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		respondFault(w, err, view, http.StatusOK)
		return
	}
	respondSuccess(w, http.StatusOK, view)
}

// DeleteMessage handles DELETE /messages/{id}. Soft delete: readers see a
// tombstone, the record stays.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	view, err := h.chat.Delete(r.Context(), auth.Identity(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondFault(w, err, view, http.StatusOK)
		return
	}
	respondSuccess(w, http.StatusOK, view)
}

// PinMessage handles POST /messages/{id}/pin.
func (h *Handler) PinMessage(w http.ResponseWriter, r *http.Request) {
	view, err := h.chat.Pin(r.Context(), auth.Identity(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondFault(w, err, view, http.StatusOK)
		return
	}
	respondSuccess(w, http.StatusOK, view)
}

// UnpinMessage handles DELETE /messages/{id}/pin.
func (h *Handler) UnpinMessage(w http.ResponseWriter, r *http.Request) {
	view, err := h.chat.Unpin(r.Context(), auth.Identity(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondFault(w, err, view, http.StatusOK)
		return
	}
	respondSuccess(w, http.StatusOK, view)
}

type postStoryRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

// PostStory handles POST /stories.
func (h *Handler) PostStory(w http.ResponseWriter, r *http.Request) {
	var req postStoryRequest
	if err := decodeBody(r, &req); err != nil {
		respondFault(w, err, nil, 0)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message)
		return
	}

	st, err := h.stories.Post(r.Context(), auth.Identity(r.Context()), req.Content)
	if err != nil {
		respondFault(w, err, st, http.StatusCreated)
		return
	}
	respondSuccess(w, http.StatusCreated, st)
}

// ListStories handles GET /stories.
func (h *Handler) ListStories(w http.ResponseWriter, r *http.Request) {
	stories, err := h.stories.List(r.Context())
	if err != nil {
		respondFault(w, err, nil, 0)
		return
	}
	respondSuccess(w, http.StatusOK, stories)
}

// ReactToStory handles POST /stories/{id}/reactions.
func (h *Handler) ReactToStory(w http.ResponseWriter, r *http.Request) {
	var req reactionRequest
	if err := decodeBody(r, &req); err != nil {
		respondFault(w, err, nil, 0)
		return
	}

	st, err := h.stories.React(r.Context(), auth.Identity(r.Context()), chi.URLParam(r, "id"), req.Reaction)
	if err != nil {
		respondFault(w, err, st, http.StatusOK)
		return
	}
	respondSuccess(w, http.StatusOK, st)
}

// ViewStory handles POST /stories/{id}/views. Idempotent per user.
func (h *Handler) ViewStory(w http.ResponseWriter, r *http.Request) {
	st, err := h.stories.View(r.Context(), auth.Identity(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondFault(w, err, st, http.StatusOK)
		return
	}
	respondSuccess(w, http.StatusOK, st)
}

// DeleteStory handles DELETE /stories/{id}.
func (h *Handler) DeleteStory(w http.ResponseWriter, r *http.Request) {
	err := h.stories.Delete(r.Context(), auth.Identity(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondFault(w, err, nil, 0)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]bool{"deleted": true})
}
