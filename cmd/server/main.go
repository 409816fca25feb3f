// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

// Package main is the entry point for the Parley server.
//
// Parley is the realtime delivery layer of a chat platform: it fans messages,
// presence, receipts, reactions and stories out to websocket-attached clients
// grouped by room, persists the canonical record, and queues push
// notifications for users without a live connection. Identity, profiles and
// group management belong to external services; Parley only verifies tokens
// they mint.
//
// # Startup order
//
//  1. Configuration: koanf v2 (defaults, config.yaml, PARLEY_ env overrides)
//  2. Logging: zerolog global logger
//  3. Store: badger document store (users, rooms, messages, stories)
//  4. Core services: registry, presence, moderation gate, cipher, chat, story
//  5. Push dispatcher: watermill queue, circuit-breaker-guarded provider
//  6. Supervision tree: realtime layer + API layer under one root
//
// # Configuration
//
// Required:
//   - PARLEY_SECURITY__JWT_SECRET: 32+ character token verification secret
//   - PARLEY_SECURITY__MESSAGE_SECRET: at-rest encryption passphrase
//
// # Signal handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains with
// a timeout, the dispatcher stops consuming, and the store closes last.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/parleychat/parley/internal/api"
	"github.com/parleychat/parley/internal/auth"
	"github.com/parleychat/parley/internal/chat"
	"github.com/parleychat/parley/internal/cipher"
	"github.com/parleychat/parley/internal/config"
	"github.com/parleychat/parley/internal/gateway"
	"github.com/parleychat/parley/internal/logging"
	"github.com/parleychat/parley/internal/moderation"
	"github.com/parleychat/parley/internal/notify"
	"github.com/parleychat/parley/internal/presence"
	"github.com/parleychat/parley/internal/registry"
	"github.com/parleychat/parley/internal/store"
	"github.com/parleychat/parley/internal/story"
	"github.com/parleychat/parley/internal/supervisor"
	"github.com/parleychat/parley/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("addr", cfg.Server.Addr()).Msg("Starting Parley server")

	db, err := store.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close store")
		}
	}()

	msgCipher, err := cipher.New(cfg.Security.MessageSecret)
	if err != nil {
		return fmt.Errorf("init cipher: %w", err)
	}
	verifier, err := auth.NewJWTVerifier(cfg.Security.JWTSecret)
	if err != nil {
		return fmt.Errorf("init verifier: %w", err)
	}

	gate := moderation.NewGate(cfg.Moderation.Blocklist)
	reg := registry.New()
	tracker := presence.NewTracker(db.Users())

	dispatcher := notify.NewDispatcher(cfg.Push, db.Users(), notify.LogClient{})
	defer func() {
		if err := dispatcher.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close dispatcher")
		}
	}()

	chatSvc := chat.NewService(db.Messages(), db.Rooms(), db.Users(), gate, msgCipher, reg, dispatcher)
	storySvc := story.NewService(db.Stories(), gate, reg)

	gw := gateway.New(verifier, reg, tracker, chatSvc, storySvc, cfg.Gateway)
	handler := api.NewHandler(chatSvc, storySvc, db)
	router := api.NewRouter(handler, gw, verifier, cfg.Security)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		// Websocket connections outlive any write timeout; the gateway's
		// ping/pong deadlines govern them instead.
		IdleTimeout: 0,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)
	if cfg.Push.Enabled {
		tree.AddRealtimeService(dispatcher)
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}
	logging.Info().Msg("Server stopped")
	return nil
}
