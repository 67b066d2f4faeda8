// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package api

import (
	"net/http"
	"time"
)

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status           string  `json:"status"`
	Version          string  `json:"version"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	Enabled          int     `json:"integrations_enabled"`
	Connected        int     `json:"integrations_connected"`
	WebSocketClients int     `json:"websocket_clients"`
}

// Health reports liveness. It always answers 200; status is "degraded" while
// an enabled integration is not connected.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}
	for _, st := range h.backend.Status() {
		if !st.Enabled {
			continue
		}
		resp.Enabled++
		if st.Connected {
			resp.Connected++
		}
	}
	if resp.Connected < resp.Enabled {
		resp.Status = "degraded"
	}
	if h.wsHub != nil {
		resp.WebSocketClients = h.wsHub.GetClientCount()
	}

	respondJSON(w, r, http.StatusOK, resp)
}
