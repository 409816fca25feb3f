// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestVerifyRoundTrip(t *testing.T) {
	v, err := NewJWTVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewJWTVerifier: %v", err)
	}

	token, err := v.Mint("user-1", "alice", time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	userID, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("subject = %q, want user-1", userID)
	}
}

func TestVerifyRejections(t *testing.T) {
	v, _ := NewJWTVerifier(testSecret)
	other, _ := NewJWTVerifier("another-secret-another-secret-xx")

	expired, _ := v.Mint("user-1", "alice", -time.Hour)
	foreign, _ := other.Mint("user-1", "alice", time.Hour)

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	noSubjectToken, _ := noSubject.SignedString([]byte(testSecret))

	tests := []struct {
		name       string
		credential string
	}{
		{"garbage", "not-a-token"},
		{"empty", ""},
		{"expired", expired},
		{"wrong secret", foreign},
		{"missing subject", noSubjectToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.Verify(context.Background(), tt.credential); err == nil {
				t.Error("expected rejection")
			}
		})
	}
}

func TestNewJWTVerifierRequiresSecret(t *testing.T) {
	if _, err := NewJWTVerifier(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestMiddleware(t *testing.T) {
	v, _ := NewJWTVerifier(testSecret)
	token, _ := v.Mint("user-7", "alice", time.Hour)

	var gotIdentity string
	handler := Middleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity = Identity(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
	}{
		{"bearer header", "Bearer " + token, "", http.StatusNoContent},
		{"query fallback", "", token, http.StatusNoContent},
		{"missing", "", "", http.StatusUnauthorized},
		{"bad token", "Bearer junk", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotIdentity = ""
			url := "/x"
			if tt.query != "" {
				url += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusNoContent && gotIdentity != "user-7" {
				t.Errorf("identity = %q", gotIdentity)
			}
		})
	}
}

func TestIdentityUnauthenticated(t *testing.T) {
	if id := Identity(context.Background()); id != "" {
		t.Errorf("identity = %q, want empty", id)
	}
}
