// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

package validation

import (
	"strings"
	"testing"
)

type sendRequest struct {
	RoomID string `validate:"required"`
	Text   string `validate:"max=10"`
	Type   string `validate:"omitempty,oneof=text image voice"`
}

func TestValidateStructPasses(t *testing.T) {
	req := sendRequest{RoomID: "r1", Text: "hi", Type: "text"}
	if err := ValidateStruct(&req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateStructSingleError(t *testing.T) {
	req := sendRequest{Text: "hi"}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected validation error")
	}

	errs := verr.Errors()
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	if errs[0].Field() != "RoomID" || errs[0].Tag() != "required" {
		t.Errorf("error = field %q tag %q", errs[0].Field(), errs[0].Tag())
	}

	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "RoomID is required") {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestValidateStructMultipleErrors(t *testing.T) {
	req := sendRequest{Text: "far too long for the limit", Type: "weird"}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected validation errors")
	}
	if len(verr.Errors()) != 3 {
		t.Fatalf("got %d errors, want 3", len(verr.Errors()))
	}

	apiErr := verr.ToAPIError()
	if apiErr.Details["fields"] == nil {
		t.Error("expected per-field details for multiple errors")
	}
}

func TestTranslatedMessages(t *testing.T) {
	req := sendRequest{RoomID: "r1", Text: "far too long for the limit"}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(verr.Error(), "at most 10 characters") {
		t.Errorf("message = %q", verr.Error())
	}
}

func TestGetValidatorIsSingleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("expected the same validator instance")
	}
}
