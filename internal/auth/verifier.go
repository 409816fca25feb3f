// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

// Package auth verifies connection credentials and carries the resulting
// identity through request contexts. The delivery layer does not issue
// credentials; it only verifies tokens minted by the external identity
// service.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier turns an opaque credential into a user identity. A single
// verification happens per connection or request; a failure means the
// credential is rejected outright.
type Verifier interface {
	Verify(ctx context.Context, credential string) (string, error)
}

// Claims are the JWT claims this layer reads. The subject claim is the
// canonical user identity; Username travels along for display.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HMAC-SHA256 signed tokens.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier for the shared signing secret.
func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	return &JWTVerifier{secret: []byte(secret)}, nil
}

// Verify parses and validates the token and returns the subject claim.
// Tokens signed with any non-HMAC algorithm are rejected to prevent
// algorithm confusion.
func (v *JWTVerifier) Verify(ctx context.Context, credential string) (string, error) {
	token, err := jwt.ParseWithClaims(credential, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("auth: parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", errors.New("auth: invalid token claims")
	}
	if claims.Subject == "" {
		return "", errors.New("auth: token missing subject")
	}
	return claims.Subject, nil
}

// Mint signs a token for the given user. Only used by tests and local
// tooling; production tokens come from the identity service.
func (v *JWTVerifier) Mint(userID, username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}
