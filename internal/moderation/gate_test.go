// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

package moderation

import (
	"reflect"
	"testing"

	"github.com/parleychat/parley/internal/fault"
)

func TestCheck(t *testing.T) {
	gate := NewGate([]string{"badword", "slur"})

	tests := []struct {
		name     string
		text     string
		rejected bool
	}{
		{"clean text", "hello there", false},
		{"exact match", "badword", true},
		{"substring match", "xbadwordx", true},
		{"case sensitive", "BADWORD", false},
		{"second entry", "that is a slur", true},
		{"empty text", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.Check(tt.text)
			if tt.rejected {
				if !fault.Is(err, fault.KindModeration) {
					t.Errorf("expected moderation rejection, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected rejection: %v", err)
			}
		})
	}
}

func TestCheckEmptyBlocklist(t *testing.T) {
	gate := NewGate(nil)
	if err := gate.Check("anything goes"); err != nil {
		t.Errorf("unexpected rejection with empty blocklist: %v", err)
	}
}

func TestNormalize(t *testing.T) {
	gate := NewGate(nil)

	got := gate.Normalize("hello :wave:")
	if got == "hello :wave:" {
		t.Error("expected emoji token to be expanded")
	}

	// Text without tokens passes through untouched.
	if got := gate.Normalize("plain text"); got != "plain text" {
		t.Errorf("plain text changed: %q", got)
	}
}

func TestExtractMentions(t *testing.T) {
	gate := NewGate(nil)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"none", "no mentions here", nil},
		{"single", "hey @alice", []string{"alice"}},
		{"multiple", "@alice meet @bob", []string{"alice", "bob"}},
		{"deduplicated", "@alice @alice @alice", []string{"alice"}},
		{"order preserved", "@zoe then @alice", []string{"zoe", "alice"}},
		{"underscores and digits", "ping @user_42", []string{"user_42"}},
		{"bare at sign", "price @ 10", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := gate.ExtractMentions(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractMentions(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
