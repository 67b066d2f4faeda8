// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"

	"github.com/tomtom215/ultrawide/internal/clients/weather"
	"github.com/tomtom215/ultrawide/internal/integration"
	"github.com/tomtom215/ultrawide/internal/logging"
	"github.com/tomtom215/ultrawide/internal/orchestrator"
)

// APIResponse is the envelope of every JSON endpoint.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError represents an error response.
type APIError struct {
	// Code is a machine-readable error code
	Code string `json:"code"`

	// Message is a human-readable error message
	Message string `json:"message"`

	// Details contains additional error details (optional)
	Details interface{} `json:"details,omitempty"`

	// RequestID is the request ID for tracing
	RequestID string `json:"request_id,omitempty"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error codes for API responses
const (
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeTooManyRequests     = "TOO_MANY_REQUESTS"
	ErrCodeInternalError       = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	ErrCodeGatewayTimeout      = "GATEWAY_TIMEOUT"
	ErrCodeValidationFailed    = "VALIDATION_ERROR"
	ErrCodeExternalServiceFail = "EXTERNAL_SERVICE_FAILED"
)

// respondJSON writes a success envelope. GET responses carry an ETag and
// answer a matching If-None-Match with 304.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeEnvelope(w, r, status, &APIResponse{
		Success: true,
		Data:    data,
		Meta:    newMeta(r),
	})
}

// respondError writes an error envelope.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, details interface{}) {
	meta := newMeta(r)
	writeEnvelope(w, r, status, &APIResponse{
		Success: false,
		Error: &APIError{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: meta.RequestID,
		},
		Meta: meta,
	})
}

func newMeta(r *http.Request) *APIMeta {
	return &APIMeta{
		RequestID: logging.RequestIDFromContext(r.Context()),
		Timestamp: time.Now().UTC(),
	}
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, response *APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if r.Method == http.MethodGet && status == http.StatusOK && response.Success {
		etag := generateETag(response.Data)
		w.Header().Set("ETag", etag)
		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

// generateETag hashes the payload only; the meta block changes per request.
func generateETag(data interface{}) string {
	raw, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return `"` + strconv.FormatUint(xxhash.Sum64(raw), 16) + `"`
}

// respondIntegrationError maps orchestrator and client errors onto statuses.
func respondIntegrationError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status  int
		code    string
		details interface{}
	)
	switch {
	case errors.Is(err, orchestrator.ErrUnknownIntegration), errors.Is(err, weather.ErrUnknownLocation):
		status, code = http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, orchestrator.ErrDisabled):
		status, code = http.StatusConflict, ErrCodeConflict
	case errors.Is(err, integration.ErrNotConnected):
		status, code = http.StatusServiceUnavailable, ErrCodeServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, ErrCodeGatewayTimeout
	default:
		status, code = http.StatusBadGateway, ErrCodeExternalServiceFail
		details = map[string]string{"kind": integration.Kind(err)}
		logging.Warn().Err(err).Str("path", sanitizeLogValue(r.URL.Path)).Msg("Integration request failed")
	}
	respondError(w, r, status, code, err.Error(), details)
}
