// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

/*
Package tautulli polls Tautulli for Plex activity, recently added items,
watch history and home statistics.

Connect validates the URL and API key with the no-op "arnold" command. Each
refresh issues get_activity, get_recently_added, get_history and
get_home_stats concurrently; a failing command keeps its previous section.

Requests are paced with a token bucket and HTTP 429 responses are retried
after the Retry-After delay (at most maxRateLimitRetries times).
*/
package tautulli

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/ultrawide/internal/integration"
	"github.com/tomtom215/ultrawide/internal/logging"
)

// Name is the integration name.
const Name = "tautulli"

// DefaultPollInterval is the refresh period.
const DefaultPollInterval = 10 * time.Second

// Snapshot sections, named after their commands.
const (
	SectionActivity      = "get_activity"
	SectionRecentlyAdded = "get_recently_added"
	SectionHistory       = "get_history"
	SectionHomeStats     = "get_home_stats"
)

const (
	maxRateLimitRetries = 3
	maxRetryAfter       = 5 * time.Second
	recentlyAddedCount  = 12
	historyLength       = 15
	homeStatsDays       = 30
)

// Client is the Tautulli integration client.
type Client struct {
	*integration.Client[Config, Snapshot]
}

// New creates a dormant client. requestsPerSecond paces outbound calls;
// zero or less disables pacing.
func New(opts integration.Options, transport integration.Transport, requestsPerSecond float64) *Client {
	if opts.Name == "" {
		opts.Name = Name
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 4)
	}
	a := &adapter{transport: transport, limiter: limiter}
	return &Client{Client: integration.New[Config, Snapshot](opts, a)}
}

type adapter struct {
	transport integration.Transport
	limiter   *rate.Limiter

	mu   sync.Mutex
	cfg  Config
	last Snapshot
}

func (a *adapter) Validate(cfg Config) error {
	if strings.TrimSpace(cfg.URL) == "" || strings.TrimSpace(cfg.APIKey) == "" {
		return integration.Configurationf("URL and API key are required")
	}
	return nil
}

func (a *adapter) Handshake(ctx context.Context, cfg Config) error {
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
	return a.command(ctx, "arnold", nil, nil)
}

func (a *adapter) Reset() {
	a.mu.Lock()
	a.last = Snapshot{}
	a.mu.Unlock()
}

func (a *adapter) FetchSnapshot(ctx context.Context) (Snapshot, error) {
	var (
		activity Activity
		recent   recentlyAddedData
		history  historyData
		stats    []StatGroup
	)
	err := integration.RunIsolated(ctx,
		integration.Task{Name: SectionActivity, Run: func(ctx context.Context) error {
			return a.command(ctx, SectionActivity, nil, &activity)
		}},
		integration.Task{Name: SectionRecentlyAdded, Run: func(ctx context.Context) error {
			return a.command(ctx, SectionRecentlyAdded, url.Values{"count": {strconv.Itoa(recentlyAddedCount)}}, &recent)
		}},
		integration.Task{Name: SectionHistory, Run: func(ctx context.Context) error {
			return a.command(ctx, SectionHistory, url.Values{"length": {strconv.Itoa(historyLength)}}, &history)
		}},
		integration.Task{Name: SectionHomeStats, Run: func(ctx context.Context) error {
			return a.command(ctx, SectionHomeStats, url.Values{"time_range": {strconv.Itoa(homeStatsDays)}}, &stats)
		}},
	)
	var partial *integration.PartialFailure
	if err != nil && !errors.As(err, &partial) {
		return Snapshot{}, err
	}
	ok := func(section string) bool { return partial == nil || !partial.Failed(section) }

	a.mu.Lock()
	defer a.mu.Unlock()

	next := a.last
	next.Errors = nil
	if ok(SectionActivity) {
		next.Activity = activity
	}
	if ok(SectionRecentlyAdded) {
		next.RecentlyAdded = recent.RecentlyAdded
	}
	if ok(SectionHistory) {
		next.History = history.Data
	}
	if ok(SectionHomeStats) {
		next.HomeStats = stats
	}
	if partial != nil {
		next.Errors = make(map[string]string, len(partial.Sections))
		for section, serr := range partial.Sections {
			next.Errors[section] = serr.Error()
		}
		a.last = next
		return next, partial
	}
	a.last = next
	return next, nil
}

func (a *adapter) Close() error { return nil }

// command runs one /api/v2 command and decodes response.data into out.
func (a *adapter) command(ctx context.Context, cmd string, params url.Values, out any) error {
	a.mu.Lock()
	cfg := a.cfg
	a.mu.Unlock()

	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", cfg.APIKey)
	params.Set("cmd", cmd)
	req := &integration.Request{
		Method: http.MethodGet,
		URL:    integration.JoinURL(cfg.URL, "/api/v2") + "?" + params.Encode(),
		Header: map[string]string{"Accept": "application/json"},
	}

	resp, err := a.doWithRateLimit(ctx, req)
	if err != nil {
		return err
	}
	if err := integration.CheckStatus(resp); err != nil {
		return err
	}
	var env envelope
	if err := integration.DecodeJSON(resp, &env); err != nil {
		return err
	}
	if env.Response.Result != "success" {
		msg := "unknown error"
		if env.Response.Message != nil {
			msg = *env.Response.Message
		}
		if strings.Contains(strings.ToLower(msg), "apikey") {
			return &integration.AuthenticationError{StatusCode: resp.StatusCode, Msg: "Tautulli rejected the API key: " + msg}
		}
		return &integration.MalformedResponseError{Msg: cmd + " failed: " + msg}
	}
	if out == nil || len(env.Response.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Response.Data, out); err != nil {
		return &integration.MalformedResponseError{Msg: cmd + " returned unexpected data", Snippet: integration.Snippet(env.Response.Data), Err: err}
	}
	return nil
}

// doWithRateLimit paces the request and retries HTTP 429 responses after
// their Retry-After delay.
func (a *adapter) doWithRateLimit(ctx context.Context, req *integration.Request) (*integration.Response, error) {
	for attempt := 0; ; attempt++ {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, integration.Network("rate limiter", err)
		}
		resp, err := a.transport.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt == maxRateLimitRetries {
			return resp, nil
		}

		delay := retryAfter(resp.Header.Get("Retry-After"), time.Second<<attempt)
		logging.Warn().Dur("retry_delay", delay).Int("attempt", attempt+1).
			Msg("[tautulli] Rate limited (HTTP 429), retrying")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, integration.Network("rate limit wait", ctx.Err())
		}
	}
}

// retryAfter parses a Retry-After value in seconds, capped at maxRetryAfter.
func retryAfter(header string, fallback time.Duration) time.Duration {
	delay := fallback
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && secs >= 0 {
		delay = time.Duration(secs) * time.Second
	}
	if delay > maxRetryAfter {
		delay = maxRetryAfter
	}
	return delay
}
