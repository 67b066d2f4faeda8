// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package tautulli

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/ultrawide/internal/integration"
	"github.com/tomtom215/ultrawide/internal/logging"
)

func init() {
	logging.SetLogger(logging.NewTestLogger(io.Discard))
}

type mockTautulli struct {
	server *httptest.Server

	mu        sync.Mutex
	calls     map[string]int
	fail      map[string]bool
	throttle  map[string]int
	badAPIKey bool
}

func newMockTautulli(t *testing.T) *mockTautulli {
	t.Helper()
	m := &mockTautulli{calls: map[string]int{}, fail: map[string]bool{}, throttle: map[string]int{}}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockTautulli) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/v2" {
		http.NotFound(w, r)
		return
	}
	cmd := r.URL.Query().Get("cmd")

	m.mu.Lock()
	m.calls[cmd]++
	fail := m.fail[cmd]
	throttled := m.throttle[cmd] > 0
	if throttled {
		m.throttle[cmd]--
	}
	bad := m.badAPIKey || r.URL.Query().Get("apikey") != "k"
	m.mu.Unlock()

	switch {
	case throttled:
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
		return
	case bad:
		writeResponse(w, "error", "Invalid apikey", nil)
		return
	case fail:
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}

	switch cmd {
	case "arnold":
		writeResponse(w, "success", "", "You're not Arnold.")
	case SectionActivity:
		writeResponse(w, "success", "", map[string]any{
			"stream_count": 1, "total_bandwidth": 8000,
			"sessions": []map[string]any{{"session_key": "7", "user": "alice", "full_title": "Dune", "state": "playing", "progress_percent": 42}},
		})
	case SectionRecentlyAdded:
		writeResponse(w, "success", "", map[string]any{
			"recently_added": []map[string]any{{"rating_key": "1", "title": "Arrival", "media_type": "movie", "year": 2016}},
		})
	case SectionHistory:
		writeResponse(w, "success", "", map[string]any{
			"data": []map[string]any{{"date": 1760000000, "user": "bob", "full_title": "Heat", "percent_complete": 100}},
		})
	case SectionHomeStats:
		writeResponse(w, "success", "", []map[string]any{
			{"stat_id": "top_movies", "stat_title": "Most Watched Movies", "rows": []map[string]any{{"title": "Heat", "total_plays": 3}}},
		})
	default:
		writeResponse(w, "error", "Unknown command", nil)
	}
}

func writeResponse(w http.ResponseWriter, result, message string, data any) {
	body := map[string]any{"result": result, "data": data}
	if message != "" {
		body["message"] = message
	} else {
		body["message"] = nil
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"response": body})
}

func (m *mockTautulli) count(cmd string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[cmd]
}

func (m *mockTautulli) set(fn func(m *mockTautulli)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

func newClient(t *testing.T, clock integration.Clock) *Client {
	t.Helper()
	c := New(integration.Options{Clock: clock}, integration.NewDirectTransport(5*time.Second), 0)
	t.Cleanup(c.Disconnect)
	return c
}

func TestConnect_LoadsAllSections(t *testing.T) {
	m := newMockTautulli(t)
	c := newClient(t, integration.NewFakeClock())

	_, err := c.Connect(context.Background(), Config{URL: m.server.URL, APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, 1, m.count("arnold"))

	snap, ok := c.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 1, snap.Activity.StreamCount)
	require.Len(t, snap.Activity.Sessions, 1)
	assert.Equal(t, "Dune", snap.Activity.Sessions[0].FullTitle)
	require.Len(t, snap.RecentlyAdded, 1)
	assert.Equal(t, 2016, snap.RecentlyAdded[0].Year)
	require.Len(t, snap.History, 1)
	assert.Equal(t, "bob", snap.History[0].User)
	require.Len(t, snap.HomeStats, 1)
	assert.Equal(t, "top_movies", snap.HomeStats[0].StatID)
	assert.Empty(t, snap.Errors)
}

func TestConnect_MissingConfig(t *testing.T) {
	c := newClient(t, integration.NewFakeClock())
	_, err := c.Connect(context.Background(), Config{URL: "http://tautulli"})
	require.Error(t, err)
	assert.True(t, integration.IsConfiguration(err))
}

func TestConnect_BadAPIKey(t *testing.T) {
	m := newMockTautulli(t)
	c := newClient(t, integration.NewFakeClock())

	_, err := c.Connect(context.Background(), Config{URL: m.server.URL, APIKey: "wrong"})
	require.Error(t, err)
	assert.True(t, integration.IsAuthentication(err))
	assert.Contains(t, err.Error(), "Invalid apikey")
}

func TestPolling_EachTickFetchesAll(t *testing.T) {
	m := newMockTautulli(t)
	clock := integration.NewFakeClock()
	c := newClient(t, clock)

	_, err := c.Connect(context.Background(), Config{URL: m.server.URL, APIKey: "k"})
	require.NoError(t, err)
	require.Equal(t, 1, m.count(SectionActivity))

	for i := 2; i <= 4; i++ {
		clock.Advance(DefaultPollInterval)
		want := i
		require.Eventually(t, func() bool {
			return m.count(SectionHomeStats) == want && m.count(SectionActivity) == want
		}, 2*time.Second, 5*time.Millisecond)
	}
	assert.Equal(t, 4, m.count(SectionRecentlyAdded))
	assert.Equal(t, 4, m.count(SectionHistory))
}

func TestRefresh_RetriesAfterRateLimit(t *testing.T) {
	m := newMockTautulli(t)
	c := newClient(t, integration.NewFakeClock())
	_, err := c.Connect(context.Background(), Config{URL: m.server.URL, APIKey: "k"})
	require.NoError(t, err)

	m.set(func(m *mockTautulli) { m.throttle[SectionActivity] = 2 })
	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, 1+3, m.count(SectionActivity), "two throttled attempts then success")

	snap, _ := c.Snapshot()
	assert.Empty(t, snap.Errors)
}

func TestRefresh_PartialFailureKeepsSection(t *testing.T) {
	m := newMockTautulli(t)
	c := newClient(t, integration.NewFakeClock())
	_, err := c.Connect(context.Background(), Config{URL: m.server.URL, APIKey: "k"})
	require.NoError(t, err)

	m.set(func(m *mockTautulli) { m.fail[SectionHistory] = true })
	require.NoError(t, c.Refresh(context.Background()))

	snap, _ := c.Snapshot()
	assert.Len(t, snap.History, 1, "history kept from the previous refresh")
	assert.Contains(t, snap.Errors, SectionHistory)
	assert.Len(t, snap.Errors, 1)
	assert.True(t, c.IsConnected())

	var partial *integration.PartialFailure
	assert.ErrorAs(t, c.LastError(), &partial)
}

func TestReconnect_KeepsPreviousSections(t *testing.T) {
	m := newMockTautulli(t)
	clock := integration.NewFakeClock()
	c := newClient(t, clock)
	_, err := c.Connect(context.Background(), Config{URL: m.server.URL, APIKey: "k"})
	require.NoError(t, err)

	m.set(func(m *mockTautulli) {
		for _, cmd := range []string{SectionActivity, SectionRecentlyAdded, SectionHistory, SectionHomeStats} {
			m.fail[cmd] = true
		}
	})
	require.Error(t, c.Refresh(context.Background()))
	require.Equal(t, integration.StateDisconnected, c.State())

	m.set(func(m *mockTautulli) {
		m.fail = map[string]bool{SectionHistory: true}
	})
	clock.Advance(DefaultPollInterval)
	require.Eventually(t, c.IsConnected, 2*time.Second, 5*time.Millisecond)

	snap, _ := c.Snapshot()
	assert.Len(t, snap.History, 1, "history kept across the reconnect")
	assert.Contains(t, snap.Errors, SectionHistory)
	assert.Equal(t, 2, m.count("arnold"))
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 2*time.Second, retryAfter("2", time.Second))
	assert.Equal(t, time.Second, retryAfter("", time.Second))
	assert.Equal(t, time.Second, retryAfter("soon", time.Second))
	assert.Equal(t, maxRetryAfter, retryAfter("3600", time.Second))
}
