// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

// Package uptimekuma reads a public Uptime Kuma status page. It needs no
// credentials: the page configuration lists the monitors and a second
// endpoint carries their heartbeats and 24h uptime.
package uptimekuma

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/ultrawide/internal/integration"
)

// Name is the integration name.
const Name = "uptimekuma"

// DefaultPollInterval is the refresh period.
const DefaultPollInterval = 30 * time.Second

// Client is the Uptime Kuma integration client.
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

	mu  sync.Mutex
	cfg Config
}

func (a *adapter) Validate(cfg Config) error {
	if strings.TrimSpace(cfg.URL) == "" || strings.TrimSpace(cfg.Slug) == "" {
		return integration.Configurationf("Uptime Kuma URL and status page slug are required")
	}
	return nil
}

// Handshake only records the config; the first fetch decides whether the
// slug resolves to a usable page.
func (a *adapter) Handshake(_ context.Context, cfg Config) error {
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
	return nil
}

func (a *adapter) FetchSnapshot(ctx context.Context) (Snapshot, error) {
	a.mu.Lock()
	cfg := a.cfg
	a.mu.Unlock()

	var (
		page  statusPage
		beats heartbeats
		g     errgroup.Group
	)
	slug := url.PathEscape(cfg.Slug)
	g.Go(func() error { return a.get(ctx, cfg, "/api/status-page/"+slug, &page) })
	g.Go(func() error { return a.get(ctx, cfg, "/api/status-page/heartbeat/"+slug, &beats) })
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	snap := merge(page, beats)
	if len(snap.Monitors) == 0 {
		return Snapshot{}, integration.Configurationf(
			"status page %q has no monitors; add monitors to the status page in Uptime Kuma", cfg.Slug)
	}
	return snap, nil
}

func (a *adapter) Close() error { return nil }

func (a *adapter) get(ctx context.Context, cfg Config, path string, out any) error {
	_, err := integration.DoJSON(ctx, a.transport, &integration.Request{
		Method: http.MethodGet,
		URL:    integration.JoinURL(cfg.URL, path),
		Header: map[string]string{"Accept": "application/json"},
	}, out)
	var mal *integration.MalformedResponseError
	if errors.As(err, &mal) && strings.Contains(mal.Msg, "HTTP 404") {
		return integration.Configurationf("status page %q not found", cfg.Slug)
	}
	return err
}

// merge joins page monitors with their newest heartbeat by monitor id,
// keeping page order.
func merge(page statusPage, beats heartbeats) Snapshot {
	snap := Snapshot{Title: page.Config.Title, Monitors: []Monitor{}}
	for _, group := range page.PublicGroupList {
		for _, m := range group.MonitorList {
			id := strconv.Itoa(m.ID)
			mon := Monitor{ID: m.ID, Name: m.Name, Group: group.Name, Type: m.Type, Status: StatusUnknown}
			if list := beats.HeartbeatList[id]; len(list) > 0 {
				last := list[len(list)-1]
				mon.Status = statusName(last.Status)
				mon.LastPing = last.Ping
				mon.LastMessage = last.Msg
				mon.LastCheck = last.Time
			}
			if v, ok := beats.UptimeList[id+"_24"]; ok {
				if f, err := v.Float64(); err == nil {
					mon.Uptime24h = f
				}
			}
			snap.Monitors = append(snap.Monitors, mon)
		}
	}
	return snap
}

func statusName(code int) string {
	switch code {
	case 0:
		return StatusDown
	case 1:
		return StatusUp
	case 2:
		return StatusPending
	case 3:
		return StatusMaintenance
	default:
		return StatusUnknown
	}
}
