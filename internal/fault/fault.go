// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

// Package fault defines the error taxonomy shared by the realtime and REST
// surfaces. Every user-visible failure carries a Kind so transports can map
// it to the right status code or error frame without string matching.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	// KindValidation means the input was malformed or empty.
	KindValidation Kind = "validation"

	// KindAuthorization means the actor lacks rights over the target entity.
	KindAuthorization Kind = "authorization"

	// KindNotFound means a referenced entity is absent.
	KindNotFound Kind = "not_found"

	// KindModeration means content was rejected by the moderation gate.
	// Distinct from validation so clients can render a specific message.
	KindModeration Kind = "moderation"

	// KindStorage means the persistence collaborator failed.
	KindStorage Kind = "storage"

	// KindDeliveryUncertain means the entity was persisted but broadcast or
	// notification afterwards failed. Non-fatal; clients reconcile via
	// history reload.
	KindDeliveryUncertain Kind = "delivery_uncertain"
)

// Error is a classified error. Use the constructors below rather than
// building one by hand.
type Error struct {
	kind Kind
	msg  string
	err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

// Unwrap supports errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.err }

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

// New creates a classified error with a plain message.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{kind: kind, msg: msg, err: err}
}

// Validation creates a validation error.
func Validation(msg string) *Error { return New(KindValidation, msg) }

// Authorization creates an authorization error.
func Authorization(msg string) *Error { return New(KindAuthorization, msg) }

// NotFound creates a not-found error for the named entity.
func NotFound(entity string) *Error { return Newf(KindNotFound, "%s not found", entity) }

// Moderation creates a moderation rejection.
func Moderation(msg string) *Error { return New(KindModeration, msg) }

// Storage wraps a persistence failure.
func Storage(err error) *Error { return Wrap(KindStorage, "storage", err) }

// DeliveryUncertain wraps a post-persistence delivery failure.
func DeliveryUncertain(err error) *Error {
	return Wrap(KindDeliveryUncertain, "persisted but delivery uncertain", err)
}

// KindOf returns the Kind of err, or KindStorage when err carries no
// classification (an unclassified failure is treated as infrastructure).
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.kind
	}
	return KindStorage
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.kind == kind
}
