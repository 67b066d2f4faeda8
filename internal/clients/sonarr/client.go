// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

// Package sonarr polls the Sonarr v3 calendar for upcoming episodes.
package sonarr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/ultrawide/internal/integration"
)

// Name is the integration name.
const Name = "sonarr"

const (
	// DefaultPollInterval is the calendar refresh period.
	DefaultPollInterval = 5 * time.Minute

	// DefaultDaysAhead is the calendar window past today.
	DefaultDaysAhead = 14
)

// Client is the Sonarr integration client.
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
	now := time.Now
	if opts.Clock != nil {
		now = opts.Clock.Now
	}
	a := &adapter{transport: transport, now: now}
	return &Client{Client: integration.New[Config, Snapshot](opts, a)}
}

type adapter struct {
	transport integration.Transport
	now       func() time.Time

	mu      sync.Mutex
	cfg     Config
	version string
}

func (a *adapter) Validate(cfg Config) error {
	if strings.TrimSpace(cfg.URL) == "" || strings.TrimSpace(cfg.APIKey) == "" {
		return integration.Configurationf("URL and API key are required")
	}
	if cfg.DaysAhead < 0 {
		return integration.Configurationf("days_ahead must not be negative")
	}
	return nil
}

func (a *adapter) Handshake(ctx context.Context, cfg Config) error {
	if cfg.DaysAhead == 0 {
		cfg.DaysAhead = DefaultDaysAhead
	}
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()

	var status systemStatus
	if err := a.get(ctx, "/api/v3/system/status", nil, &status); err != nil {
		return err
	}
	a.mu.Lock()
	a.version = status.Version
	a.mu.Unlock()
	return nil
}

func (a *adapter) FetchSnapshot(ctx context.Context) (Snapshot, error) {
	a.mu.Lock()
	days, version := a.cfg.DaysAhead, a.version
	a.mu.Unlock()

	start, end := calendarWindow(a.now(), days)
	q := url.Values{
		"start":         {start.Format(time.DateOnly)},
		"end":           {end.Format(time.DateOnly)},
		"includeSeries": {"true"},
	}
	var episodes []Episode
	if err := a.get(ctx, "/api/v3/calendar", q, &episodes); err != nil {
		return Snapshot{}, err
	}
	sort.SliceStable(episodes, func(i, j int) bool {
		return episodes[i].AirDateUTC.Before(episodes[j].AirDateUTC)
	})
	if episodes == nil {
		episodes = []Episode{}
	}
	return Snapshot{Version: version, Start: start, End: end, Episodes: episodes}, nil
}

func (a *adapter) Close() error { return nil }

func (a *adapter) ConnectMeta() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return map[string]any{"version": a.version}
}

func (a *adapter) get(ctx context.Context, path string, q url.Values, out any) error {
	a.mu.Lock()
	cfg := a.cfg
	a.mu.Unlock()

	target := integration.JoinURL(cfg.URL, path)
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	_, err := integration.DoJSON(ctx, a.transport, &integration.Request{
		Method: http.MethodGet,
		URL:    target,
		Header: map[string]string{"Accept": "application/json"},
		APIKey: cfg.APIKey,
	}, out)
	return err
}

// calendarWindow returns yesterday's midnight through days after today, in
// the local zone of now.
func calendarWindow(now time.Time, days int) (time.Time, time.Time) {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return today.AddDate(0, 0, -1), today.AddDate(0, 0, days)
}

func seasonEpisode(season, episode int) string {
	return fmt.Sprintf("S%02dE%02d", season, episode)
}
