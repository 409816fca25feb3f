// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

package notify

import (
	"context"

	"github.com/parleychat/parley/internal/logging"
)

// LogClient is a PushClient that records deliveries in the log instead of
// calling a provider. Used when no provider credentials are configured.
type LogClient struct{}

// Push logs the notification and reports success.
func (LogClient) Push(ctx context.Context, token, title, body string) error {
	logging.Debug().Str("title", title).Msg("Push notification (log-only client)")
	return nil
}
