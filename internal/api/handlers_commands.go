// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/ultrawide/internal/logging"
)

// Home Assistant service actions accepted by ServiceCall.
const (
	actionToggle  = "toggle"
	actionTurnOn  = "turn_on"
	actionTurnOff = "turn_off"
	actionScene   = "scene"
)

// ServiceRequest is the body of POST /api/v1/homeassistant/services/{action}.
// For scenes a bare id ("movie_night") is accepted and prefixed with "scene.".
type ServiceRequest struct {
	EntityID string                 `json:"entity_id" validate:"required,max=255,entityid"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// ServiceResponse echoes the executed call.
type ServiceResponse struct {
	Action   string `json:"action"`
	EntityID string `json:"entity_id"`
}

// CoordinatesRequest is the body of POST /api/v1/weather/locations/{id}/coordinates.
type CoordinatesRequest struct {
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lon *float64 `json:"lon" validate:"required,longitude"`
}

// ServiceCall runs a Home Assistant service against one entity.
func (h *Handler) ServiceCall(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	switch action {
	case actionToggle, actionTurnOn, actionTurnOff, actionScene:
	default:
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "unknown service action: "+action, nil)
		return
	}

	var req ServiceRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}
	if action == actionScene && req.EntityID != "" && !strings.Contains(req.EntityID, ".") {
		req.EntityID = "scene." + req.EntityID
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	ha, err := h.backend.HomeAssistant()
	if err != nil {
		respondIntegrationError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	switch action {
	case actionToggle:
		err = ha.Toggle(ctx, req.EntityID)
	case actionTurnOn:
		err = ha.TurnOn(ctx, req.EntityID, req.Data)
	case actionTurnOff:
		err = ha.TurnOff(ctx, req.EntityID)
	case actionScene:
		err = ha.ActivateScene(ctx, req.EntityID)
	}
	if err != nil {
		respondIntegrationError(w, r, err)
		return
	}

	logging.Info().Str("action", action).Str("entity_id", req.EntityID).Msg("[homeassistant] Service call executed")
	respondJSON(w, r, http.StatusOK, ServiceResponse{Action: action, EntityID: req.EntityID})
}

// StartSpeedTest starts a UniFi gateway speed test. The result is polled
// with SpeedTestStatus.
func (h *Handler) StartSpeedTest(w http.ResponseWriter, r *http.Request) {
	tester, err := h.backend.UniFi()
	if err != nil {
		respondIntegrationError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	if err := tester.RunSpeedTest(ctx); err != nil {
		respondIntegrationError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusAccepted, map[string]bool{"started": true})
}

// SpeedTestStatus returns the latest UniFi speed test.
func (h *Handler) SpeedTestStatus(w http.ResponseWriter, r *http.Request) {
	tester, err := h.backend.UniFi()
	if err != nil {
		respondIntegrationError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	status, err := tester.SpeedTestStatus(ctx)
	if err != nil {
		respondIntegrationError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, status)
}

// SetWeatherCoordinates pins a weather location to coordinates reported by
// the browser. The next refresh uses them.
func (h *Handler) SetWeatherCoordinates(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req CoordinatesRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	setter, err := h.backend.Weather()
	if err != nil {
		respondIntegrationError(w, r, err)
		return
	}
	if err := setter.SetCoordinates(id, *req.Lat, *req.Lon); err != nil {
		respondIntegrationError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"id":  id,
		"lat": *req.Lat,
		"lon": *req.Lon,
	})
}
