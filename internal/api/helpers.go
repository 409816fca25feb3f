// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/parleychat/parley/internal/fault"
	"github.com/parleychat/parley/internal/logging"
	"github.com/parleychat/parley/internal/models"
)

// respondJSON sends a JSON response with proper headers.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondSuccess wraps data in the success envelope.
func respondSuccess(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, &models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// respondFault maps a classified error onto the wire. Delivery-uncertain is
// the exception: the mutation succeeded, so the entity is returned with a
// success status and the uncertainty flagged in metadata.
func respondFault(w http.ResponseWriter, err error, data interface{}, successStatus int) {
	kind := fault.KindOf(err)
	if kind == fault.KindDeliveryUncertain {
		if successStatus == 0 {
			successStatus = http.StatusOK
		}
		respondJSON(w, successStatus, &models.APIResponse{
			Status: "success",
			Data:   data,
			Metadata: models.Metadata{
				Timestamp:         time.Now().UTC(),
				DeliveryUncertain: true,
			},
		})
		return
	}

	status, code := faultStatus(kind)
	respondError(w, status, code, err.Error())
}

// faultStatus maps an error kind to HTTP status and error code.
func faultStatus(kind fault.Kind) (int, string) {
	switch kind {
	case fault.KindValidation:
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case fault.KindModeration:
		return http.StatusBadRequest, "MODERATION_REJECTED"
	case fault.KindAuthorization:
		return http.StatusForbidden, "AUTHORIZATION_ERROR"
	case fault.KindNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	default:
		return http.StatusInternalServerError, "STORAGE_ERROR"
	}
}

// decodeBody unmarshals a request body into v.
func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fault.Validation("malformed request body")
	}
	return nil
}
