// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

/*
Package dnsfilter polls a Pi-hole (v5 or v6) or AdGuard Home instance and
normalizes its counters into one Snapshot shape.

Each backend converts its native responses itself; the adapter only picks
the backend, auto-detecting it when Config.Backend is "auto":

	GET /control/status          AdGuard Home (JSON, or 401 with Basic challenge)
	GET /api/auth                Pi-hole v6 (JSON body with a "session" object)
	GET /admin/api.php?versions  Pi-hole v5
*/
package dnsfilter

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ultrawide/internal/integration"
	"github.com/tomtom215/ultrawide/internal/logging"
)

// Name is the integration name.
const Name = "dnsfilter"

// DefaultPollInterval is the refresh period.
const DefaultPollInterval = 30 * time.Second

// Optional sections; their failure keeps the previous values.
const (
	sectionTop       = "top_domains"
	sectionBlocklist = "blocklist"
)

// backend is one provider's adapter from its native API to Snapshot.
type backend interface {
	kind() Backend
	login(ctx context.Context) error
	ping(ctx context.Context) error
	fetch(ctx context.Context) (Snapshot, error)
}

// Client is the DNS filter integration client.
type Client struct {
	*integration.Client[Config, Snapshot]
}

// New creates a dormant client.
func New(opts integration.Options, transport integration.Transport) *Client {
	if opts.Name == "" {
		opts.Name = Name
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Client{Client: integration.New[Config, Snapshot](opts, &adapter{transport: transport})}
}

type adapter struct {
	transport integration.Transport

	mu      sync.Mutex
	backend backend
	last    Snapshot
}

func (a *adapter) Validate(cfg Config) error {
	if strings.TrimSpace(cfg.URL) == "" {
		return integration.Configurationf("DNS filter URL is required")
	}
	switch cfg.Backend {
	case "", BackendAuto, BackendPiHole6:
	case BackendPiHole5:
		if cfg.APIToken == "" {
			return integration.Configurationf("Pi-hole v5 requires an API token")
		}
	case BackendAdGuard:
		if cfg.Username == "" || cfg.Password == "" {
			return integration.Configurationf("AdGuard Home requires a username and password")
		}
	default:
		return integration.Configurationf("unknown DNS filter backend %q", cfg.Backend)
	}
	return nil
}

func (a *adapter) Handshake(ctx context.Context, cfg Config) error {
	kind := cfg.Backend
	if kind == "" || kind == BackendAuto {
		detected, err := detect(ctx, a.transport, cfg.URL)
		if err != nil {
			return err
		}
		logging.Info().Str("backend", string(detected)).Msg("[dnsfilter] Detected backend")
		kind = detected
	}

	b := newBackend(kind, a.transport, cfg)
	if err := b.login(ctx); err != nil {
		return err
	}
	if err := b.ping(ctx); err != nil {
		return err
	}

	a.mu.Lock()
	a.backend = b
	a.mu.Unlock()
	return nil
}

func (a *adapter) Reset() {
	a.mu.Lock()
	a.last = Snapshot{}
	a.mu.Unlock()
}

func (a *adapter) FetchSnapshot(ctx context.Context) (Snapshot, error) {
	a.mu.Lock()
	b := a.backend
	a.mu.Unlock()
	if b == nil {
		return Snapshot{}, integration.ErrNotConnected
	}

	snap, err := b.fetch(ctx)
	var partial *integration.PartialFailure
	if err != nil && !errors.As(err, &partial) {
		return Snapshot{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if partial != nil {
		if partial.Failed(sectionTop) {
			snap.TopQueries, snap.TopBlocked = a.last.TopQueries, a.last.TopBlocked
		}
		if partial.Failed(sectionBlocklist) {
			snap.DomainsOnBlocklist = a.last.DomainsOnBlocklist
		}
	}
	if snap.TopQueries == nil {
		snap.TopQueries = []DomainCount{}
	}
	if snap.TopBlocked == nil {
		snap.TopBlocked = []DomainCount{}
	}
	a.last = snap
	if partial != nil {
		return snap, partial
	}
	return snap, nil
}

func (a *adapter) Close() error {
	a.mu.Lock()
	a.backend = nil
	a.mu.Unlock()
	return nil
}

func (a *adapter) ConnectMeta() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.backend == nil {
		return nil
	}
	return map[string]any{"backend": string(a.backend.kind())}
}

func newBackend(kind Backend, t integration.Transport, cfg Config) backend {
	switch kind {
	case BackendPiHole5:
		return &piHole5{transport: t, cfg: cfg}
	case BackendAdGuard:
		return &adGuard{transport: t, cfg: cfg}
	default:
		return &piHole6{transport: t, cfg: cfg}
	}
}

// detect probes the well-known endpoints of each backend. Transport
// failures abort detection so an unreachable host is reported as such.
func detect(ctx context.Context, t integration.Transport, baseURL string) (Backend, error) {
	probe := func(path string) (*integration.Response, error) {
		return t.Do(ctx, &integration.Request{
			Method: http.MethodGet,
			URL:    integration.JoinURL(baseURL, path),
			Header: map[string]string{"Accept": "application/json"},
		})
	}

	resp, err := probe("/control/status")
	if err != nil {
		return "", err
	}
	if isAdGuard(resp) {
		return BackendAdGuard, nil
	}

	if resp, err = probe("/api/auth"); err != nil {
		return "", err
	}
	if hasJSONKey(resp, "session") {
		return BackendPiHole6, nil
	}

	if resp, err = probe("/admin/api.php?versions"); err != nil {
		return "", err
	}
	if resp.StatusCode == http.StatusOK && !integration.LooksLikeHTML(resp) && json.Valid(resp.Body) {
		return BackendPiHole5, nil
	}

	return "", &integration.MalformedResponseError{
		Msg:     "no Pi-hole or AdGuard Home API found at " + baseURL + ", check the URL",
		Snippet: integration.Snippet(resp.Body),
	}
}

func isAdGuard(resp *integration.Response) bool {
	switch resp.StatusCode {
	case http.StatusOK:
		return hasJSONKey(resp, "protection_enabled")
	case http.StatusUnauthorized, http.StatusForbidden:
		return strings.HasPrefix(resp.Header.Get("WWW-Authenticate"), "Basic")
	}
	return false
}

func hasJSONKey(resp *integration.Response, key string) bool {
	if integration.LooksLikeHTML(resp) {
		return false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body, &obj); err != nil {
		return false
	}
	_, ok := obj[key]
	return ok
}
