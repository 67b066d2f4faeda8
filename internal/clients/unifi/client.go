// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

// Package unifi polls a UniFi Network controller for devices, clients and
// subsystem health.
//
// Two controller layouts are supported. Self-hosted controllers log in at
// /api/login and serve /api/s/{site}/...; UniFi OS consoles (UDM, UCG) log
// in at /api/auth/login and serve /proxy/network/api/s/{site}/.... Cookie
// sessions carry an X-CSRF-Token captured at login; UniFi OS also accepts an
// X-API-KEY header instead of a session.
//
// An expired session (HTTP 401) triggers one re-login shared by all
// concurrent requests, then a single retry. A second 401 is terminal.
package unifi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/ultrawide/internal/integration"
	"github.com/tomtom215/ultrawide/internal/logging"
)

// Name is the integration name.
const Name = "unifi"

// Snapshot sections.
const (
	SectionDevices = "devices"
	SectionClients = "clients"
	SectionHealth  = "health"
)

const csrfHeader = "X-CSRF-Token"

// Client is the UniFi integration client.
type Client struct {
	*integration.Client[Config, Snapshot]
	adapter *adapter
}

// New creates a dormant client using transport for all controller calls.
func New(opts integration.Options, transport integration.Transport) *Client {
	if opts.Name == "" {
		opts.Name = Name
	}
	a := &adapter{transport: transport}
	return &Client{Client: integration.New[Config, Snapshot](opts, a), adapter: a}
}

// RunSpeedTest starts a gateway speed test.
func (c *Client) RunSpeedTest(ctx context.Context) error {
	if !c.IsConnected() {
		return integration.ErrNotConnected
	}
	return c.adapter.devmgr(ctx, "speedtest", nil)
}

// SpeedTestStatus returns the most recent speed test result.
func (c *Client) SpeedTestStatus(ctx context.Context) (SpeedTestStatus, error) {
	if !c.IsConnected() {
		return SpeedTestStatus{}, integration.ErrNotConnected
	}
	var rows []rawSpeedTest
	if err := c.adapter.devmgr(ctx, "speedtest-status", &rows); err != nil {
		return SpeedTestStatus{}, err
	}
	if len(rows) == 0 {
		return SpeedTestStatus{}, &integration.MalformedResponseError{Msg: "speedtest-status returned no rows"}
	}
	r := rows[0]
	status := SpeedTestStatus{
		Running:      r.StatusSummary != 0,
		Latency:      r.Latency,
		XputDownload: r.XputDownload,
		XputUpload:   r.XputUpload,
		RunDate:      r.RunDate,
	}
	if status.Running {
		status.StatusText = "running"
	} else {
		status.StatusText = "idle"
	}
	return status, nil
}

type adapter struct {
	transport integration.Transport
	logins    singleflight.Group

	mu      sync.Mutex
	cfg     Config
	cookie  string
	csrf    string
	version string
	last    Snapshot
}

func (a *adapter) Validate(cfg Config) error {
	if strings.TrimSpace(cfg.URL) == "" {
		return integration.Configurationf("UniFi controller URL is required")
	}
	switch cfg.Variant {
	case "", VariantSelfHosted, VariantUDM:
	default:
		return integration.Configurationf("unknown UniFi variant %q (selfhosted or udm)", cfg.Variant)
	}
	switch cfg.AuthMode {
	case "", AuthCookie:
		if cfg.Username == "" || cfg.Password == "" {
			return integration.Configurationf("username and password are required")
		}
	case AuthAPIKey:
		if cfg.APIKey == "" {
			return integration.Configurationf("API key is required")
		}
		if cfg.Variant != VariantUDM {
			return integration.Configurationf("API key access requires a UniFi OS console (variant udm)")
		}
	default:
		return integration.Configurationf("unknown UniFi auth mode %q (cookie or apikey)", cfg.AuthMode)
	}
	return nil
}

// Reset drops the sections kept from earlier refreshes.
func (a *adapter) Reset() {
	a.mu.Lock()
	a.last = Snapshot{Health: map[string]Subsystem{}}
	a.mu.Unlock()
}

func (a *adapter) Handshake(ctx context.Context, cfg Config) error {
	if cfg.Site == "" {
		cfg.Site = "default"
	}
	a.mu.Lock()
	a.cfg = cfg
	a.cookie, a.csrf, a.version = "", "", ""
	if a.last.Health == nil {
		a.last.Health = map[string]Subsystem{}
	}
	a.mu.Unlock()

	if cfg.AuthMode != AuthAPIKey {
		if err := a.login(ctx); err != nil {
			return err
		}
	}

	var info []sysinfo
	if err := a.siteGet(ctx, "stat/sysinfo", &info); err != nil {
		return err
	}
	if len(info) > 0 {
		a.mu.Lock()
		a.version = info[0].Version
		a.mu.Unlock()
	}
	return nil
}

func (a *adapter) ConnectMeta() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return map[string]any{"version": a.version, "site": a.cfg.Site}
}

// FetchSnapshot loads the three sections concurrently. A failed section
// keeps its previous data and is listed in Snapshot.Errors.
func (a *adapter) FetchSnapshot(ctx context.Context) (Snapshot, error) {
	var (
		devices []Device
		clients []Station
		health  []Subsystem
	)
	err := integration.RunIsolated(ctx,
		integration.Task{Name: SectionDevices, Run: func(ctx context.Context) error {
			return a.siteGet(ctx, "stat/device", &devices)
		}},
		integration.Task{Name: SectionClients, Run: func(ctx context.Context) error {
			return a.siteGet(ctx, "stat/sta", &clients)
		}},
		integration.Task{Name: SectionHealth, Run: func(ctx context.Context) error {
			return a.siteGet(ctx, "stat/health", &health)
		}},
	)
	var partial *integration.PartialFailure
	if err != nil && !errors.As(err, &partial) {
		return Snapshot{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	next := Snapshot{
		Devices: a.last.Devices,
		Clients: a.last.Clients,
		Health:  a.last.Health,
	}
	if partial == nil || !partial.Failed(SectionDevices) {
		sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })
		next.Devices = devices
	}
	if partial == nil || !partial.Failed(SectionClients) {
		sort.Slice(clients, func(i, j int) bool { return clients[i].DisplayName() < clients[j].DisplayName() })
		next.Clients = clients
	}
	if partial == nil || !partial.Failed(SectionHealth) {
		next.Health = make(map[string]Subsystem, len(health))
		for _, h := range health {
			next.Health[h.Subsystem] = h
		}
	}
	if partial != nil {
		next.Errors = make(map[string]string, len(partial.Sections))
		for section, serr := range partial.Sections {
			next.Errors[section] = serr.Error()
		}
	}
	a.last = next

	if partial != nil {
		return next, partial
	}
	return next, nil
}

func (a *adapter) Close() error {
	a.mu.Lock()
	a.cookie, a.csrf = "", ""
	a.mu.Unlock()
	return nil
}

func (a *adapter) config() Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

func (a *adapter) sitePath(path string) string {
	cfg := a.config()
	prefix := "/api/s/" + cfg.Site + "/"
	if cfg.Variant == VariantUDM {
		prefix = "/proxy/network" + prefix
	}
	return integration.JoinURL(cfg.URL, prefix+path)
}

func (a *adapter) loginURL() string {
	cfg := a.config()
	if cfg.Variant == VariantUDM {
		return integration.JoinURL(cfg.URL, "/api/auth/login")
	}
	return integration.JoinURL(cfg.URL, "/api/login")
}

func (a *adapter) siteGet(ctx context.Context, path string, out any) error {
	return a.call(ctx, http.MethodGet, a.sitePath(path), nil, out)
}

func (a *adapter) devmgr(ctx context.Context, cmd string, out any) error {
	body, err := json.Marshal(map[string]string{"cmd": cmd})
	if err != nil {
		return err
	}
	return a.call(ctx, http.MethodPost, a.sitePath("cmd/devmgr"), body, out)
}

// call performs one controller request. On 401 it logs in again, unless a
// concurrent request already replaced the session it used, then retries once.
func (a *adapter) call(ctx context.Context, method, url string, body []byte, out any) error {
	sent, err := a.callOnce(ctx, method, url, body, out)
	if !integration.IsAuthentication(err) || a.config().AuthMode == AuthAPIKey {
		return err
	}

	if a.sessionCookie() == sent {
		logging.Debug().Str("url", url).Msg("[unifi] Session expired, logging in again")
		if lerr := a.login(ctx); lerr != nil {
			return lerr
		}
	}
	_, err = a.callOnce(ctx, method, url, body, out)
	if integration.IsAuthentication(err) {
		return &integration.AuthenticationError{StatusCode: http.StatusUnauthorized, Msg: "session rejected after re-login"}
	}
	return err
}

func (a *adapter) sessionCookie() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cookie
}

// callOnce sends one request and returns the session cookie it used.
func (a *adapter) callOnce(ctx context.Context, method, url string, body []byte, out any) (string, error) {
	a.mu.Lock()
	cfg, cookie, csrf := a.cfg, a.cookie, a.csrf
	a.mu.Unlock()

	req := &integration.Request{
		Method: method,
		URL:    url,
		Header: map[string]string{"Accept": "application/json"},
		Body:   body,
		Cookie: cookie,
	}
	if body != nil {
		req.Header["Content-Type"] = "application/json"
	}
	if cfg.AuthMode == AuthAPIKey {
		req.Header["X-API-KEY"] = cfg.APIKey
	} else if csrf != "" {
		req.Header[csrfHeader] = csrf
	}

	var env envelope
	resp, err := integration.DoJSON(ctx, a.transport, req, &env)
	if err != nil {
		return cookie, err
	}
	a.captureCSRF(resp)

	if env.Meta.RC != "" && env.Meta.RC != "ok" {
		if strings.Contains(env.Meta.Msg, "LoginRequired") {
			return cookie, &integration.AuthenticationError{StatusCode: http.StatusUnauthorized, Msg: env.Meta.Msg}
		}
		return cookie, fmt.Errorf("controller error: %s", env.Meta.Msg)
	}
	if out == nil || len(env.Data) == 0 {
		return cookie, nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return cookie, &integration.MalformedResponseError{Msg: "unexpected data shape", Snippet: integration.Snippet(env.Data), Err: err}
	}
	return cookie, nil
}

// login establishes a cookie session. Concurrent callers share one request.
func (a *adapter) login(ctx context.Context) error {
	_, err, _ := a.logins.Do("login", func() (any, error) {
		cfg := a.config()
		body, err := json.Marshal(map[string]any{
			"username": cfg.Username,
			"password": cfg.Password,
			"remember": true,
		})
		if err != nil {
			return nil, err
		}
		req := &integration.Request{
			Method: http.MethodPost,
			URL:    a.loginURL(),
			Header: map[string]string{"Content-Type": "application/json", "Accept": "application/json"},
			Body:   body,
		}
		resp, err := integration.DoJSON(ctx, a.transport, req, nil)
		if err != nil {
			if integration.IsAuthentication(err) {
				return nil, &integration.AuthenticationError{StatusCode: resp.StatusCode, Msg: "login rejected, check username and password"}
			}
			return nil, err
		}
		cookie := integration.CookieHeader(resp.SetCookies)
		if cookie == "" {
			return nil, &integration.MalformedResponseError{Msg: "login succeeded but no session cookie was returned (check the controller variant)"}
		}
		a.mu.Lock()
		a.cookie = cookie
		a.mu.Unlock()
		a.captureCSRF(resp)
		return nil, nil
	})
	return err
}

func (a *adapter) captureCSRF(resp *integration.Response) {
	token := resp.Header.Get(csrfHeader)
	if token == "" {
		token = resp.Header.Get("X-Updated-Csrf-Token")
	}
	if token == "" {
		return
	}
	a.mu.Lock()
	a.csrf = token
	a.mu.Unlock()
}
