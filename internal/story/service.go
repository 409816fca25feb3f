// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

// Package story implements ephemeral stories: post, react, view, delete.
// Stories are global rather than room-scoped, so their announcements go to
// every registered connection, and they vanish after a fixed 24-hour TTL
// enforced by the store.
package story

import (
	"context"
	"strings"
	"time"

	"github.com/parleychat/parley/internal/fault"
	"github.com/parleychat/parley/internal/metrics"
	"github.com/parleychat/parley/internal/moderation"
	"github.com/parleychat/parley/internal/models"
	"github.com/parleychat/parley/internal/store"
)

// Broadcaster is the slice of the connection registry the story service
// needs. Stories announce globally, never per-room.
type Broadcaster interface {
	BroadcastAll(event models.Event) error
}

// Service orchestrates the story lifecycle.
type Service struct {
	stories *store.Stories
	gate    *moderation.Gate
	bcast   Broadcaster
}

// NewService wires the story service.
func NewService(stories *store.Stories, gate *moderation.Gate, bcast Broadcaster) *Service {
	return &Service{stories: stories, gate: gate, bcast: bcast}
}

// Post stores a new story with a 24-hour lifetime and announces it to all
// connections. Content passes the moderation gate and emoji normalization.
func (s *Service) Post(ctx context.Context, actor, content string) (*models.Story, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fault.Validation("story content must not be empty")
	}
	if err := s.gate.Check(content); err != nil {
		metrics.ModerationRejections.Inc()
		return nil, err
	}

	now := time.Now().UTC()
	st := &models.Story{
		Owner:     actor,
		Content:   s.gate.Normalize(content),
		CreatedAt: now,
		ExpiresAt: now.Add(models.StoryTTL),
	}
	if err := s.stories.Create(ctx, st); err != nil {
		return nil, err
	}
	metrics.StoriesPosted.Inc()

	if err := s.bcast.BroadcastAll(models.Event{Type: models.EventNewStory, Data: st}); err != nil {
		return st, err
	}
	return st, nil
}

// React records the actor's reaction on a story. One reaction per user per
// story; a later reaction replaces the earlier one.
func (s *Service) React(ctx context.Context, actor, storyID, reaction string) (*models.Story, error) {
	if strings.TrimSpace(reaction) == "" {
		return nil, fault.Validation("reaction must not be empty")
	}
	token := s.gate.Normalize(reaction)

	st, err := s.stories.Update(ctx, storyID, func(st *models.Story) error {
		if st.Reactions == nil {
			st.Reactions = make(map[string]string)
		}
		st.Reactions[actor] = token
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.bcast.BroadcastAll(models.Event{
		Type: models.EventStoryReaction,
		Data: models.StoryReactionNotice{StoryID: st.ID, UserID: actor, Reaction: token},
	})
	if err != nil {
		return st, err
	}
	return st, nil
}

// View records the actor as a viewer. Only the first view by a user changes
// state and announces; repeats are silent no-ops.
func (s *Service) View(ctx context.Context, actor, storyID string) (*models.Story, error) {
	added := false
	st, err := s.stories.Update(ctx, storyID, func(st *models.Story) error {
		if st.ViewedBy(actor) {
			return nil
		}
		st.Views = append(st.Views, actor)
		added = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !added {
		return st, nil
	}

	err = s.bcast.BroadcastAll(models.Event{
		Type: models.EventStoryViewed,
		Data: models.StoryViewNotice{StoryID: st.ID, UserID: actor, Views: len(st.Views)},
	})
	if err != nil {
		return st, err
	}
	return st, nil
}

// Delete removes a story before its natural expiry. Only the owner may
// delete.
func (s *Service) Delete(ctx context.Context, actor, storyID string) error {
	st, err := s.stories.Get(ctx, storyID)
	if err != nil {
		return err
	}
	if st.Owner != actor {
		return fault.Authorization("only the owner can delete a story")
	}
	return s.stories.Delete(ctx, storyID)
}

// List returns all live stories, newest first.
func (s *Service) List(ctx context.Context) ([]models.Story, error) {
	return s.stories.List(ctx)
}
