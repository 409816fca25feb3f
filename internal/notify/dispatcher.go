// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

// Package notify dispatches push notifications for users who may not have a
// live connection. Dispatch is decoupled from the message pipeline by an
// in-process watermill queue: the pipeline publishes jobs and returns; the
// dispatcher consumes them on its own goroutine. Delivery is fire-and-forget,
// a provider failure is logged and counted, never retried and never surfaced
// to the sender.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/parleychat/parley/internal/config"
	"github.com/parleychat/parley/internal/logging"
	"github.com/parleychat/parley/internal/metrics"
)

// dispatchTopic is the internal queue topic for push jobs.
const dispatchTopic = "push.dispatch"

// breakerName labels the push provider circuit breaker in metrics and logs.
const breakerName = "push-provider"

// job is one queued push notification.
type job struct {
	UserID string `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// PushClient delivers one notification to a device token. Implementations
// wrap the actual provider (FCM or similar).
type PushClient interface {
	Push(ctx context.Context, token, title, body string) error
}

// TokenSource resolves a user ID to their registered device token. An empty
// token means the user has no push-capable device.
type TokenSource interface {
	DeviceToken(ctx context.Context, userID string) (string, error)
}

// Dispatcher queues and delivers push notifications.
type Dispatcher struct {
	pubsub  *gochannel.GoChannel
	tokens  TokenSource
	client  PushClient
	cb      *gobreaker.CircuitBreaker[any]
	enabled bool
}

// NewDispatcher wires the queue and the circuit-breaker-guarded provider
// client.
func NewDispatcher(cfg config.PushConfig, tokens TokenSource, client PushClient) *Dispatcher {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: int64(cfg.QueueBuffer)},
		watermill.NewStdLogger(false, false),
	)

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		// Opens when failure rate >= 60% with minimum 10 requests.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &Dispatcher{
		pubsub:  pubsub,
		tokens:  tokens,
		client:  client,
		cb:      cb,
		enabled: cfg.Enabled,
	}
}

// NotifyRoomMembers queues a "New Message" notification for every listed
// member except the sender.
func (d *Dispatcher) NotifyRoomMembers(ctx context.Context, members []string, sender, preview string) {
	for _, userID := range members {
		if userID == sender {
			continue
		}
		d.publish(job{UserID: userID, Title: "New Message", Body: preview})
	}
}

// NotifyMentioned queues a mention notification for every listed user except
// the sender. Mentioned users may also receive the room-member notification;
// deduplication is deliberately not attempted.
func (d *Dispatcher) NotifyMentioned(ctx context.Context, userIDs []string, sender, senderName string) {
	for _, userID := range userIDs {
		if userID == sender {
			continue
		}
		d.publish(job{UserID: userID, Title: "You were mentioned", Body: senderName + " mentioned you in a message"})
	}
}

func (d *Dispatcher) publish(j job) {
	if !d.enabled {
		return
	}
	payload, err := json.Marshal(j)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal push job")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := d.pubsub.Publish(dispatchTopic, msg); err != nil {
		logging.Warn().Err(err).Str("user_id", j.UserID).Msg("Failed to queue push job")
	}
}

// Serve consumes queued jobs until ctx is canceled. It satisfies the suture
// service contract and runs under the realtime supervisor subtree.
func (d *Dispatcher) Serve(ctx context.Context) error {
	msgs, err := d.pubsub.Subscribe(ctx, dispatchTopic)
	if err != nil {
		return err
	}

	logging.Info().Msg("Push dispatcher started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			d.handle(ctx, msg)
			// Fire-and-forget: every job is acked exactly once regardless of
			// delivery outcome.
			msg.Ack()
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, msg *message.Message) {
	var j job
	if err := json.Unmarshal(msg.Payload, &j); err != nil {
		logging.Error().Err(err).Str("message_id", msg.UUID).Msg("Malformed push job")
		return
	}

	token, err := d.tokens.DeviceToken(ctx, j.UserID)
	if err != nil {
		logging.Warn().Err(err).Str("user_id", j.UserID).Msg("Failed to resolve device token")
		metrics.NotificationsDispatched.WithLabelValues("failed").Inc()
		return
	}
	if token == "" {
		metrics.NotificationsDispatched.WithLabelValues("skipped").Inc()
		return
	}

	_, err = d.cb.Execute(func() (any, error) {
		return nil, d.client.Push(ctx, token, j.Title, j.Body)
	})
	switch {
	case err == nil:
		metrics.NotificationsDispatched.WithLabelValues("sent").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.NotificationsDispatched.WithLabelValues("rejected").Inc()
		logging.Warn().Str("user_id", j.UserID).Msg("Push rejected by open circuit breaker")
	default:
		metrics.NotificationsDispatched.WithLabelValues("failed").Inc()
		logging.Warn().Err(err).Str("user_id", j.UserID).Msg("Push delivery failed")
	}
}

// String identifies the service in supervisor logs.
func (d *Dispatcher) String() string {
	return "push-dispatcher"
}

// Close shuts the queue down. Pending jobs are dropped.
func (d *Dispatcher) Close() error {
	return d.pubsub.Close()
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
