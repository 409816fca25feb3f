// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parleychat/parley/internal/auth"
	"github.com/parleychat/parley/internal/config"
	"github.com/parleychat/parley/internal/gateway"
	"github.com/parleychat/parley/internal/middleware"
)

// Router assembles the HTTP surface.
type Router struct {
	handler  *Handler
	gateway  *gateway.Gateway
	verifier auth.Verifier
	cfg      config.SecurityConfig
}

// NewRouter wires the router.
func NewRouter(handler *Handler, gw *gateway.Gateway, verifier auth.Verifier, cfg config.SecurityConfig) *Router {
	return &Router{handler: handler, gateway: gw, verifier: verifier, cfg: cfg}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   router.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health and metrics stay unauthenticated for probes and scrapers.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})
	r.Handle("/metrics", promhttp.Handler())

	// Websocket attach point. Credential verification happens inside the
	// gateway so clients can pass the token as a query parameter.
	r.Get("/api/v1/ws", router.gateway.Handle)

	// REST surface: per-IP rate limit, metrics, then authentication.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(router.cfg.RateLimitReqs, router.cfg.RateLimitWindow))
		r.Use(middleware.PrometheusMetrics)
		r.Use(auth.Middleware(router.verifier))

		r.Route("/messages", func(r chi.Router) {
			r.Post("/", router.handler.SendMessage)
			r.Put("/{id}", router.handler.EditMessage)
			r.Delete("/{id}", router.handler.DeleteMessage)
			r.Post("/{id}/reactions", router.handler.ReactToMessage)
			r.Delete("/{id}/reactions", router.handler.UnreactToMessage)
			r.Post("/{id}/read", router.handler.MarkMessageRead)
			r.Post("/{id}/pin", router.handler.PinMessage)
			r.Delete("/{id}/pin", router.handler.UnpinMessage)
		})

		r.Route("/rooms/{roomID}/messages", func(r chi.Router) {
			r.Get("/", router.handler.RoomHistory)
			r.Get("/search", router.handler.SearchMessages)
		})

		r.Route("/stories", func(r chi.Router) {
			r.Post("/", router.handler.PostStory)
			r.Get("/", router.handler.ListStories)
			r.Post("/{id}/reactions", router.handler.ReactToStory)
			r.Post("/{id}/views", router.handler.ViewStory)
			r.Delete("/{id}", router.handler.DeleteStory)
		})
	})

	return r
}
