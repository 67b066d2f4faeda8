// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/ultrawide/internal/logging"
)

// SnapshotResponse wraps one integration's snapshot.
type SnapshotResponse struct {
	Integration string      `json:"integration"`
	Snapshot    interface{} `json:"snapshot"`
}

// VisibilityRequest is the optional body of POST /api/v1/visibility.
type VisibilityRequest struct {
	Visible *bool `json:"visible"`
}

// VisibilityResponse reports how many integrations started a refresh.
type VisibilityResponse struct {
	Refreshed int `json:"refreshed"`
}

// Integrations returns the status table.
func (h *Handler) Integrations(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, h.backend.Status())
}

// IntegrationSnapshot returns the latest snapshot of one integration. The
// last known snapshot is served even while the client is reconnecting.
func (h *Handler) IntegrationSnapshot(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snap, ok, err := h.backend.Snapshot(name)
	if err != nil {
		respondIntegrationError(w, r, err)
		return
	}
	if !ok {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"no snapshot available yet for "+name, nil)
		return
	}
	respondJSON(w, r, http.StatusOK, SnapshotResponse{Integration: name, Snapshot: snap})
}

// RefreshIntegration runs one immediate refresh and returns the resulting
// snapshot.
func (h *Handler) RefreshIntegration(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	if err := h.backend.Refresh(ctx, name); err != nil {
		respondIntegrationError(w, r, err)
		return
	}

	snap, _, err := h.backend.Snapshot(name)
	if err != nil {
		respondIntegrationError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, SnapshotResponse{Integration: name, Snapshot: snap})
}

// Visibility triggers a refresh of every integration when the dashboard tab
// becomes visible. An empty body counts as visible.
func (h *Handler) Visibility(w http.ResponseWriter, r *http.Request) {
	var req VisibilityRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}
	if req.Visible != nil && !*req.Visible {
		respondJSON(w, r, http.StatusOK, VisibilityResponse{})
		return
	}

	n := h.backend.RefreshAll()
	logging.Debug().Int("refreshed", n).Msg("Visibility refresh requested over HTTP")
	respondJSON(w, r, http.StatusOK, VisibilityResponse{Refreshed: n})
}
