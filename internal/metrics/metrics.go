// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

// Package metrics exposes Prometheus instrumentation for the delivery
// layer: connection counts, fan-out volume, lifecycle operations, and the
// push dispatcher including its circuit breaker.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Gateway metrics
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "parley_active_connections",
			Help: "Current number of authenticated websocket connections",
		},
	)

	InboundEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_inbound_events_total",
			Help: "Total inbound realtime events by type and outcome",
		},
		[]string{"event", "outcome"}, // outcome: ok, rejected, rate_limited
	)

	// Registry metrics
	RoomAttachments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "parley_room_attachments",
			Help: "Current number of connection-to-room attachments",
		},
	)

	BroadcastEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_broadcast_events_total",
			Help: "Total events broadcast to rooms by type",
		},
		[]string{"event"},
	)

	BroadcastDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_broadcast_dropped_total",
			Help: "Events dropped because a connection's send buffer was full",
		},
	)

	// Lifecycle metrics
	MessagesPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_messages_persisted_total",
			Help: "Total messages persisted by payload type",
		},
		[]string{"type"},
	)

	ModerationRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_moderation_rejections_total",
			Help: "Messages rejected by the content gate",
		},
	)

	StoriesPosted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_stories_posted_total",
			Help: "Total stories posted",
		},
	)

	// Store metrics
	StoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parley_store_op_duration_seconds",
			Help:    "Duration of document store operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entity", "op"},
	)

	StoreConflictRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_store_conflict_retries_total",
			Help: "Transaction retries caused by concurrent record updates",
		},
	)

	// Push dispatcher metrics
	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_notifications_total",
			Help: "Push notification attempts by outcome",
		},
		[]string{"outcome"}, // outcome: sent, skipped, failed, rejected
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "parley_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// HTTP metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_api_requests_total",
			Help: "Total REST API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parley_api_request_duration_seconds",
			Help:    "REST API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordAPIRequest records one completed REST request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordStoreOp records one document store operation.
func RecordStoreOp(entity, op string, duration time.Duration) {
	StoreOpDuration.WithLabelValues(entity, op).Observe(duration.Seconds())
}
