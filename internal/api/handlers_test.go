// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/ultrawide/internal/clients/unifi"
	"github.com/tomtom215/ultrawide/internal/clients/weather"
	"github.com/tomtom215/ultrawide/internal/events"
	"github.com/tomtom215/ultrawide/internal/integration"
	"github.com/tomtom215/ultrawide/internal/orchestrator"
	ws "github.com/tomtom215/ultrawide/internal/websocket"
)

// ========================================
// Fakes
// ========================================

type serviceCall struct {
	method   string
	entityID string
	data     map[string]any
}

type fakeHA struct {
	mu    sync.Mutex
	calls []serviceCall
	err   error
}

func (f *fakeHA) record(method, entityID string, data map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, serviceCall{method: method, entityID: entityID, data: data})
	return f.err
}

func (f *fakeHA) Toggle(_ context.Context, entityID string) error {
	return f.record("toggle", entityID, nil)
}

func (f *fakeHA) TurnOn(_ context.Context, entityID string, data map[string]any) error {
	return f.record("turn_on", entityID, data)
}

func (f *fakeHA) TurnOff(_ context.Context, entityID string) error {
	return f.record("turn_off", entityID, nil)
}

func (f *fakeHA) ActivateScene(_ context.Context, sceneID string) error {
	return f.record("scene", sceneID, nil)
}

type fakeSpeedTester struct {
	started int
	status  unifi.SpeedTestStatus
	err     error
}

func (f *fakeSpeedTester) RunSpeedTest(context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.started++
	return nil
}

func (f *fakeSpeedTester) SpeedTestStatus(context.Context) (unifi.SpeedTestStatus, error) {
	return f.status, f.err
}

type fakeWeather struct {
	known  map[string]bool
	pinned map[string][2]float64
}

func (f *fakeWeather) SetCoordinates(id string, lat, lon float64) error {
	if !f.known[id] {
		return fmt.Errorf("%w: %s", weather.ErrUnknownLocation, id)
	}
	if f.pinned == nil {
		f.pinned = make(map[string][2]float64)
	}
	f.pinned[id] = [2]float64{lat, lon}
	return nil
}

type fakeBackend struct {
	status     []orchestrator.IntegrationStatus
	snapshots  map[string]any
	disabled   map[string]bool
	refreshErr error
	refreshed  []string
	visible    int

	ha         *fakeHA
	haErr      error
	speed      *fakeSpeedTester
	speedErr   error
	weather    *fakeWeather
	weatherErr error
}

func (f *fakeBackend) Status() []orchestrator.IntegrationStatus { return f.status }

func (f *fakeBackend) lookup(name string) error {
	if f.disabled[name] {
		return fmt.Errorf("%w: %s", orchestrator.ErrDisabled, name)
	}
	if _, ok := f.snapshots[name]; ok {
		return nil
	}
	for _, known := range orchestrator.Names() {
		if known == name {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", orchestrator.ErrUnknownIntegration, name)
}

func (f *fakeBackend) Snapshot(name string) (any, bool, error) {
	if err := f.lookup(name); err != nil {
		return nil, false, err
	}
	snap, ok := f.snapshots[name]
	return snap, ok, nil
}

func (f *fakeBackend) Refresh(_ context.Context, name string) error {
	if err := f.lookup(name); err != nil {
		return err
	}
	if f.refreshErr != nil {
		return f.refreshErr
	}
	f.refreshed = append(f.refreshed, name)
	return nil
}

func (f *fakeBackend) RefreshAll() int {
	f.visible++
	return len(f.snapshots)
}

func (f *fakeBackend) HomeAssistant() (HomeAssistantCommander, error) {
	if f.haErr != nil {
		return nil, f.haErr
	}
	return f.ha, nil
}

func (f *fakeBackend) UniFi() (SpeedTester, error) {
	if f.speedErr != nil {
		return nil, f.speedErr
	}
	return f.speed, nil
}

func (f *fakeBackend) Weather() (CoordinateSetter, error) {
	if f.weatherErr != nil {
		return nil, f.weatherErr
	}
	return f.weather, nil
}

// ========================================
// Helpers
// ========================================

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func newTestBackend() *fakeBackend {
	return &fakeBackend{
		status: []orchestrator.IntegrationStatus{
			{Name: "homeassistant", Enabled: true, State: integration.StateConnected, Connected: true},
			{Name: "sonarr", Enabled: true, State: integration.StateReconnecting, LastError: "dial tcp: refused", ErrorKind: "network"},
			{Name: "proxmox", State: integration.StateDisconnected},
		},
		snapshots: map[string]any{
			"homeassistant": map[string]int{"entities": 42},
		},
		disabled: map[string]bool{"proxmox": true},
		ha:       &fakeHA{},
		speed:    &fakeSpeedTester{status: unifi.SpeedTestStatus{XputDownload: 940.5, XputUpload: 38.2, Latency: 7}},
		weather:  &fakeWeather{known: map[string]bool{"home": true}},
	}
}

func newTestRouter(t *testing.T, backend Backend) http.Handler {
	t.Helper()
	hub := ws.NewHub()
	h := NewHandler(backend, hub, nil, "test")
	mw := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitDisabled: true})
	return NewRouter(h, mw, nil).SetupChi()
}

func do(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	}
	return rec, env
}

// ========================================
// Status and snapshots
// ========================================

func TestHealth(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, newTestBackend())

	rec, env := do(t, router, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(env.Data, &health))
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "test", health.Version)
	assert.Equal(t, 2, health.Enabled)
	assert.Equal(t, 1, health.Connected)
	assert.Equal(t, 0, health.WebSocketClients)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, rec.Header().Get("X-Request-ID"), env.Meta.RequestID)
}

func TestIntegrations(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, newTestBackend())

	rec, env := do(t, router, http.MethodGet, "/api/v1/integrations", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []orchestrator.IntegrationStatus
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "sonarr", rows[1].Name)
	assert.Equal(t, integration.StateReconnecting, rows[1].State)
	assert.Equal(t, "network", rows[1].ErrorKind)

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/integrations", nil)
	req.Header.Set("If-None-Match", etag)
	cached := httptest.NewRecorder()
	router.ServeHTTP(cached, req)
	assert.Equal(t, http.StatusNotModified, cached.Code)
	assert.Zero(t, cached.Body.Len())
}

func TestIntegrationSnapshot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantErr  string
	}{
		{"available", "/api/v1/integrations/homeassistant/snapshot", http.StatusOK, ""},
		{"unknown integration", "/api/v1/integrations/jellyfin/snapshot", http.StatusNotFound, ErrCodeNotFound},
		{"disabled integration", "/api/v1/integrations/proxmox/snapshot", http.StatusConflict, ErrCodeConflict},
		{"no snapshot yet", "/api/v1/integrations/sonarr/snapshot", http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			router := newTestRouter(t, newTestBackend())

			rec, env := do(t, router, http.MethodGet, tt.path, "")
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantErr != "" {
				require.NotNil(t, env.Error)
				assert.False(t, env.Success)
				assert.Equal(t, tt.wantErr, env.Error.Code)
				return
			}
			var snap struct {
				Integration string         `json:"integration"`
				Snapshot    map[string]int `json:"snapshot"`
			}
			require.NoError(t, json.Unmarshal(env.Data, &snap))
			assert.Equal(t, "homeassistant", snap.Integration)
			assert.Equal(t, 42, snap.Snapshot["entities"])
		})
	}
}

func TestRefreshIntegration(t *testing.T) {
	t.Parallel()

	t.Run("success returns the snapshot", func(t *testing.T) {
		t.Parallel()
		backend := newTestBackend()
		router := newTestRouter(t, backend)

		rec, env := do(t, router, http.MethodPost, "/api/v1/integrations/homeassistant/refresh", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, env.Success)
		assert.Equal(t, []string{"homeassistant"}, backend.refreshed)
	})

	t.Run("not connected", func(t *testing.T) {
		t.Parallel()
		backend := newTestBackend()
		backend.refreshErr = integration.ErrNotConnected
		router := newTestRouter(t, backend)

		rec, env := do(t, router, http.MethodPost, "/api/v1/integrations/homeassistant/refresh", "")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, ErrCodeServiceUnavailable, env.Error.Code)
	})

	t.Run("upstream failure carries the error kind", func(t *testing.T) {
		t.Parallel()
		backend := newTestBackend()
		backend.refreshErr = integration.Network("GET /api/states", errors.New("connection refused"))
		router := newTestRouter(t, backend)

		rec, env := do(t, router, http.MethodPost, "/api/v1/integrations/homeassistant/refresh", "")
		require.Equal(t, http.StatusBadGateway, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, ErrCodeExternalServiceFail, env.Error.Code)
		assert.Equal(t, map[string]interface{}{"kind": "network"}, env.Error.Details)
		assert.Contains(t, env.Error.Message, "connection refused")
	})

	t.Run("GET is not allowed", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(t, newTestBackend())

		rec, _ := do(t, router, http.MethodGet, "/api/v1/integrations/homeassistant/refresh", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestVisibility(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		body        string
		wantCode    int
		wantRefresh int
	}{
		{"empty body counts as visible", "", http.StatusOK, 1},
		{"visible true", `{"visible":true}`, http.StatusOK, 1},
		{"visible false is a no-op", `{"visible":false}`, http.StatusOK, 0},
		{"invalid json", `{"visible":`, http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			backend := newTestBackend()
			router := newTestRouter(t, backend)

			rec, _ := do(t, router, http.MethodPost, "/api/v1/visibility", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantRefresh, backend.visible)
		})
	}
}

// ========================================
// Commands
// ========================================

func TestServiceCall(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		action   string
		body     string
		haErr    error
		callErr  error
		wantCode int
		wantErr  string
		wantCall *serviceCall
	}{
		{
			name:     "toggle",
			action:   "toggle",
			body:     `{"entity_id":"light.office"}`,
			wantCode: http.StatusOK,
			wantCall: &serviceCall{method: "toggle", entityID: "light.office"},
		},
		{
			name:     "turn_on passes service data",
			action:   "turn_on",
			body:     `{"entity_id":"light.office","data":{"brightness":128}}`,
			wantCode: http.StatusOK,
			wantCall: &serviceCall{method: "turn_on", entityID: "light.office", data: map[string]any{"brightness": float64(128)}},
		},
		{
			name:     "turn_off",
			action:   "turn_off",
			body:     `{"entity_id":"switch.fan"}`,
			wantCode: http.StatusOK,
			wantCall: &serviceCall{method: "turn_off", entityID: "switch.fan"},
		},
		{
			name:     "scene accepts a bare id",
			action:   "scene",
			body:     `{"entity_id":"movie_night"}`,
			wantCode: http.StatusOK,
			wantCall: &serviceCall{method: "scene", entityID: "scene.movie_night"},
		},
		{
			name:     "unknown action",
			action:   "explode",
			body:     `{"entity_id":"light.office"}`,
			wantCode: http.StatusNotFound,
			wantErr:  ErrCodeNotFound,
		},
		{
			name:     "invalid entity id",
			action:   "toggle",
			body:     `{"entity_id":"Light Office"}`,
			wantCode: http.StatusBadRequest,
			wantErr:  ErrCodeValidationFailed,
		},
		{
			name:     "missing body",
			action:   "toggle",
			wantCode: http.StatusBadRequest,
			wantErr:  ErrCodeBadRequest,
		},
		{
			name:     "integration disabled",
			action:   "toggle",
			body:     `{"entity_id":"light.office"}`,
			haErr:    fmt.Errorf("%w: homeassistant", orchestrator.ErrDisabled),
			wantCode: http.StatusConflict,
			wantErr:  ErrCodeConflict,
		},
		{
			name:     "service rejected upstream",
			action:   "toggle",
			body:     `{"entity_id":"light.office"}`,
			callErr:  errors.New("call_service failed: Entity not found (not_found)"),
			wantCode: http.StatusBadGateway,
			wantErr:  ErrCodeExternalServiceFail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			backend := newTestBackend()
			backend.haErr = tt.haErr
			backend.ha.err = tt.callErr
			router := newTestRouter(t, backend)

			rec, env := do(t, router, http.MethodPost, "/api/v1/homeassistant/services/"+tt.action, tt.body)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantErr != "" {
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.wantErr, env.Error.Code)
			}
			if tt.wantCall != nil {
				require.Len(t, backend.ha.calls, 1)
				assert.Equal(t, *tt.wantCall, backend.ha.calls[0])
			}
		})
	}
}

func TestSpeedTest(t *testing.T) {
	t.Parallel()

	t.Run("start", func(t *testing.T) {
		t.Parallel()
		backend := newTestBackend()
		router := newTestRouter(t, backend)

		rec, env := do(t, router, http.MethodPost, "/api/v1/unifi/speedtest", "")
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.True(t, env.Success)
		assert.Equal(t, 1, backend.speed.started)
	})

	t.Run("status", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(t, newTestBackend())

		rec, env := do(t, router, http.MethodGet, "/api/v1/unifi/speedtest", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var status unifi.SpeedTestStatus
		require.NoError(t, json.Unmarshal(env.Data, &status))
		assert.InDelta(t, 940.5, status.XputDownload, 0.001)
		assert.InDelta(t, 38.2, status.XputUpload, 0.001)
	})

	t.Run("not connected", func(t *testing.T) {
		t.Parallel()
		backend := newTestBackend()
		backend.speed.err = integration.ErrNotConnected
		router := newTestRouter(t, backend)

		rec, _ := do(t, router, http.MethodGet, "/api/v1/unifi/speedtest", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestSetWeatherCoordinates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		id       string
		body     string
		wantCode int
		wantErr  string
	}{
		{"pins a known location", "home", `{"lat":51.5074,"lon":-0.1278}`, http.StatusOK, ""},
		{"zero coordinates are valid", "home", `{"lat":0,"lon":0}`, http.StatusOK, ""},
		{"missing lon", "home", `{"lat":51.5}`, http.StatusBadRequest, ErrCodeValidationFailed},
		{"latitude out of range", "home", `{"lat":123,"lon":0}`, http.StatusBadRequest, ErrCodeValidationFailed},
		{"unknown location", "cabin", `{"lat":1,"lon":2}`, http.StatusNotFound, ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			backend := newTestBackend()
			router := newTestRouter(t, backend)

			rec, env := do(t, router, http.MethodPost, "/api/v1/weather/locations/"+tt.id+"/coordinates", tt.body)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantErr != "" {
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.wantErr, env.Error.Code)
				return
			}
			_, ok := backend.weather.pinned[tt.id]
			assert.True(t, ok)
		})
	}
}

func TestSanitizeLogValue(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `line\x0aforged`, sanitizeLogValue("line\nforged"))
	assert.Equal(t, "plain", sanitizeLogValue("plain"))
}

type nopPublisher struct{}

func (nopPublisher) PublishSnapshot(events.SnapshotEvent) error { return nil }
func (nopPublisher) PublishStatus(events.StatusEvent) error { return nil }

func TestOrchestratorBackend_DisabledIntegrations(t *testing.T) {
	t.Parallel()

	orch := orchestrator.New(nopPublisher{}, time.Hour, orchestrator.Options{})
	defer orch.Close()
	backend := NewOrchestratorBackend(orch)

	_, err := backend.HomeAssistant()
	assert.ErrorIs(t, err, orchestrator.ErrDisabled)
	_, err = backend.UniFi()
	assert.ErrorIs(t, err, orchestrator.ErrDisabled)
	_, err = backend.Weather()
	assert.ErrorIs(t, err, orchestrator.ErrDisabled)

	rows := backend.Status()
	assert.Len(t, rows, len(orchestrator.Names()))
	for _, row := range rows {
		assert.False(t, row.Enabled, row.Name)
	}
}
