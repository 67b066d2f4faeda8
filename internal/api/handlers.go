// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/ultrawide/internal/clients/unifi"
	"github.com/tomtom215/ultrawide/internal/config"
	"github.com/tomtom215/ultrawide/internal/logging"
	"github.com/tomtom215/ultrawide/internal/orchestrator"
	ws "github.com/tomtom215/ultrawide/internal/websocket"
)

// HomeAssistantCommander is the command surface of the Home Assistant client.
type HomeAssistantCommander interface {
	Toggle(ctx context.Context, entityID string) error
	TurnOn(ctx context.Context, entityID string, data map[string]any) error
	TurnOff(ctx context.Context, entityID string) error
	ActivateScene(ctx context.Context, sceneID string) error
}

// SpeedTester is the speed test surface of the UniFi client.
type SpeedTester interface {
	RunSpeedTest(ctx context.Context) error
	SpeedTestStatus(ctx context.Context) (unifi.SpeedTestStatus, error)
}

// CoordinateSetter pins weather locations to browser-reported positions.
type CoordinateSetter interface {
	SetCoordinates(id string, lat, lon float64) error
}

// Backend is what the handlers need from the orchestrator.
type Backend interface {
	Status() []orchestrator.IntegrationStatus
	Snapshot(name string) (any, bool, error)
	Refresh(ctx context.Context, name string) error
	RefreshAll() int
	HomeAssistant() (HomeAssistantCommander, error)
	UniFi() (SpeedTester, error)
	Weather() (CoordinateSetter, error)
}

// orchestratorBackend narrows the orchestrator's typed accessors to the
// handler interfaces.
type orchestratorBackend struct {
	*orchestrator.Orchestrator
}

// NewOrchestratorBackend adapts an orchestrator to Backend.
func NewOrchestratorBackend(o *orchestrator.Orchestrator) Backend {
	return orchestratorBackend{o}
}

func (b orchestratorBackend) HomeAssistant() (HomeAssistantCommander, error) {
	c, err := b.Orchestrator.HomeAssistant()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (b orchestratorBackend) UniFi() (SpeedTester, error) {
	c, err := b.Orchestrator.UniFi()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (b orchestratorBackend) Weather() (CoordinateSetter, error) {
	c, err := b.Orchestrator.Weather()
	if err != nil {
		return nil, err
	}
	return c, nil
}

// commandTimeout bounds synchronous upstream calls made on behalf of a request.
const commandTimeout = 15 * time.Second

// Handler serves the HTTP API.
type Handler struct {
	backend   Backend
	wsHub     *ws.Hub
	config    *config.Config
	version   string
	startTime time.Time
}

// NewHandler creates a Handler. cfg may be nil in tests; the websocket
// origin check then allows every origin.
func NewHandler(backend Backend, hub *ws.Hub, cfg *config.Config, version string) *Handler {
	return &Handler{
		backend:   backend,
		wsHub:     hub,
		config:    cfg,
		version:   version,
		startTime: time.Now(),
	}
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Browsers always send Origin on websocket handshakes.
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	if h.config == nil {
		return true
	}

	// Same-origin dashboards need no CORS entry.
	if origin == "http://"+r.Host || origin == "https://"+r.Host {
		return true
	}

	for _, allowedOrigin := range h.config.Security.CORSOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// WebSocket upgrades the request and registers a dashboard client.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logging.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	h.wsHub.Register <- client
	client.Start()
}
