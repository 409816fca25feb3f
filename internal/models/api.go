// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

package models

import "time"

// APIResponse is the envelope for every REST response.
//
// Success:
//
//	{"status": "success", "data": {...}, "metadata": {"timestamp": "..."}}
//
// Error:
//
//	{"status": "error", "error": {"code": "NOT_FOUND", "message": "room not found"}}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`

	// DeliveryUncertain marks a mutation that was persisted but whose
	// realtime fan-out may not have reached every connection. Clients
	// reconcile by reloading history.
	DeliveryUncertain bool `json:"delivery_uncertain,omitempty"`
}

// APIError is a structured error body with a machine-readable code.
//
// Common error codes:
//   - VALIDATION_ERROR: Invalid input parameters
//   - MODERATION_REJECTED: Content rejected by the moderation gate
//   - AUTHORIZATION_ERROR: Actor lacks rights over the target entity
//   - NOT_FOUND: Resource doesn't exist
//   - STORAGE_ERROR: Persistence failure
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
