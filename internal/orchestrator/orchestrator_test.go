// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package orchestrator

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/ultrawide/internal/config"
	"github.com/tomtom215/ultrawide/internal/events"
	"github.com/tomtom215/ultrawide/internal/integration"
	"github.com/tomtom215/ultrawide/internal/logging"
)

func init() {
	logging.SetLogger(logging.NewTestLogger(io.Discard))
}

const kumaPage = `{"config":{"slug":"home","title":"Home Lab"},"publicGroupList":[
	{"id":1,"name":"Core","monitorList":[{"id":3,"name":"Router","type":"ping"}]}
]}`

const kumaHeartbeats = `{"heartbeatList":{"3":[{"status":1,"time":"2026-01-01 12:00:00","msg":"","ping":3}]},"uptimeList":{"3_24":1}}`

type recordingPublisher struct {
	mu        sync.Mutex
	snapshots []events.SnapshotEvent
	statuses  []events.StatusEvent
}

func (p *recordingPublisher) PublishSnapshot(ev events.SnapshotEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, ev)
	return nil
}

func (p *recordingPublisher) PublishStatus(ev events.StatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, ev)
	return nil
}

func (p *recordingPublisher) snapshotCount(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.snapshots {
		if ev.Integration == name {
			n++
		}
	}
	return n
}

func (p *recordingPublisher) statusCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.statuses)
}

func (p *recordingPublisher) lastStatus(t *testing.T) []IntegrationStatus {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.statuses)
	var rows []IntegrationStatus
	var raw []map[string]any
	require.NoError(t, json.Unmarshal(p.statuses[len(p.statuses)-1].Payload, &raw))
	for _, r := range raw {
		row := IntegrationStatus{Name: r["name"].(string)}
		row.Enabled, _ = r["enabled"].(bool)
		row.Connected, _ = r["connected"].(bool)
		row.LastError, _ = r["last_error"].(string)
		rows = append(rows, row)
	}
	return rows
}

type mockKuma struct {
	server *httptest.Server
	hits   atomic.Int32
	down   atomic.Bool
}

func newMockKuma(t *testing.T) *mockKuma {
	t.Helper()
	m := &mockKuma{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status-page/home", func(w http.ResponseWriter, _ *http.Request) {
		m.hits.Add(1)
		if m.down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(kumaPage))
	})
	mux.HandleFunc("/api/status-page/heartbeat/home", func(w http.ResponseWriter, _ *http.Request) {
		if m.down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(kumaHeartbeats))
	})
	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

func baseConfig(kumaURL string) *config.Config {
	return &config.Config{
		Proxy: config.ProxyConfig{Mode: "direct", Timeout: 5 * time.Second},
		UptimeKuma: config.UptimeKumaConfig{
			Enabled:      true,
			URL:          kumaURL,
			Slug:         "home",
			PollInterval: time.Hour,
		},
	}
}

func newTestOrchestrator(t *testing.T, pub Publisher, opts Options) *Orchestrator {
	t.Helper()
	if opts.Clock == nil {
		opts.Clock = integration.NewFakeClock()
	}
	o := New(pub, time.Hour, opts)
	t.Cleanup(o.Close)
	return o
}

func statusOf(t *testing.T, o *Orchestrator, name string) IntegrationStatus {
	t.Helper()
	for _, st := range o.Status() {
		if st.Name == name {
			return st
		}
	}
	t.Fatalf("no status row for %s", name)
	return IntegrationStatus{}
}

func TestApply_ConnectsEnabledAndPublishes(t *testing.T) {
	kuma := newMockKuma(t)
	pub := &recordingPublisher{}
	o := newTestOrchestrator(t, pub, Options{})

	require.NoError(t, o.Apply(context.Background(), baseConfig(kuma.server.URL)))

	st := statusOf(t, o, "uptimekuma")
	assert.True(t, st.Enabled)
	assert.True(t, st.Connected)
	assert.Equal(t, integration.StateConnected, st.State)
	assert.NotNil(t, st.LastRefresh)

	assert.Equal(t, 1, pub.snapshotCount("uptimekuma"))
	rows := pub.lastStatus(t)
	require.Len(t, rows, len(Names()))
	for _, r := range rows {
		if r.Name == "uptimekuma" {
			assert.True(t, r.Connected)
		} else {
			assert.False(t, r.Enabled, "%s should be disabled", r.Name)
		}
	}

	snap, ok, err := o.Snapshot("uptimekuma")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotNil(t, snap)
}

func TestApply_UnchangedConfigKeepsClient(t *testing.T) {
	kuma := newMockKuma(t)
	o := newTestOrchestrator(t, &recordingPublisher{}, Options{})
	cfg := baseConfig(kuma.server.URL)

	require.NoError(t, o.Apply(context.Background(), cfg))
	before, err := o.client("uptimekuma")
	require.NoError(t, err)
	hits := kuma.hits.Load()

	// Unrelated sections and proxy.enabled do not affect the hash.
	cfg.Logging.Level = "debug"
	cfg.Proxy.Enabled = true
	require.NoError(t, o.Apply(context.Background(), cfg))

	after, err := o.client("uptimekuma")
	require.NoError(t, err)
	assert.Same(t, before, after)
	assert.Equal(t, hits, kuma.hits.Load())
}

func TestApply_ChangedConfigReusesClient(t *testing.T) {
	kuma := newMockKuma(t)
	moved := newMockKuma(t)
	pub := &recordingPublisher{}
	o := newTestOrchestrator(t, pub, Options{})
	cfg := baseConfig(kuma.server.URL)

	require.NoError(t, o.Apply(context.Background(), cfg))
	before, err := o.client("uptimekuma")
	require.NoError(t, err)

	cfg.UptimeKuma.URL = moved.server.URL
	require.NoError(t, o.Apply(context.Background(), cfg))

	after, err := o.client("uptimekuma")
	require.NoError(t, err)
	assert.Same(t, before, after)
	assert.True(t, after.IsConnected())
	assert.EqualValues(t, 1, kuma.hits.Load())
	assert.EqualValues(t, 1, moved.hits.Load())
	assert.Equal(t, 2, pub.snapshotCount("uptimekuma"), "snapshot subscription survives the reconnect")
}

func TestApply_ChangedPollIntervalRebuildsClient(t *testing.T) {
	kuma := newMockKuma(t)
	o := newTestOrchestrator(t, &recordingPublisher{}, Options{})
	cfg := baseConfig(kuma.server.URL)

	require.NoError(t, o.Apply(context.Background(), cfg))
	before, err := o.client("uptimekuma")
	require.NoError(t, err)

	cfg.UptimeKuma.PollInterval = 2 * time.Hour
	require.NoError(t, o.Apply(context.Background(), cfg))

	after, err := o.client("uptimekuma")
	require.NoError(t, err)
	assert.NotSame(t, before, after)
	assert.False(t, before.IsConnected(), "old client must be disconnected")
	assert.True(t, after.IsConnected())
	assert.EqualValues(t, 2, kuma.hits.Load())
}

func TestConnect_SkipsStoppedEntry(t *testing.T) {
	kuma := newMockKuma(t)
	kuma.down.Store(true)
	o := newTestOrchestrator(t, &recordingPublisher{}, Options{})

	require.Error(t, o.Apply(context.Background(), baseConfig(kuma.server.URL)))
	e, err := o.lookup("uptimekuma")
	require.NoError(t, err)
	require.True(t, e.retry.Load())
	version, ctx := e.retryTarget()

	// A retry scheduled before the entry was removed runs afterwards.
	o.stop(e)
	kuma.down.Store(false)
	hits := kuma.hits.Load()

	require.NoError(t, o.connect(ctx, e, version))
	assert.False(t, e.client.IsConnected())
	assert.Equal(t, hits, kuma.hits.Load())
	assert.False(t, e.retry.Load())
	_, err = o.client("uptimekuma")
	require.ErrorIs(t, err, ErrDisabled)
}

func TestConnect_SkipsRetryFromBeforeRebind(t *testing.T) {
	kuma := newMockKuma(t)
	kuma.down.Store(true)
	moved := newMockKuma(t)
	o := newTestOrchestrator(t, &recordingPublisher{}, Options{})
	cfg := baseConfig(kuma.server.URL)

	require.Error(t, o.Apply(context.Background(), cfg))
	e, err := o.lookup("uptimekuma")
	require.NoError(t, err)
	version, ctx := e.retryTarget()
	require.NoError(t, ctx.Err())

	cfg.UptimeKuma.URL = moved.server.URL
	require.NoError(t, o.Apply(context.Background(), cfg))
	require.ErrorIs(t, ctx.Err(), context.Canceled)

	kuma.down.Store(false)
	hits := kuma.hits.Load()
	require.NoError(t, o.connect(context.Background(), e, version))
	assert.Equal(t, hits, kuma.hits.Load(), "stale config must not be used")
	assert.True(t, e.client.IsConnected())
}

func TestApply_DisableDisconnects(t *testing.T) {
	kuma := newMockKuma(t)
	var removed []string
	o := newTestOrchestrator(t, &recordingPublisher{}, Options{
		OnRemoved: func(name string) { removed = append(removed, name) },
	})
	cfg := baseConfig(kuma.server.URL)
	require.NoError(t, o.Apply(context.Background(), cfg))
	client, err := o.client("uptimekuma")
	require.NoError(t, err)

	cfg.UptimeKuma.Enabled = false
	require.NoError(t, o.Apply(context.Background(), cfg))

	assert.False(t, client.IsConnected())
	assert.Equal(t, []string{"uptimekuma"}, removed)
	st := statusOf(t, o, "uptimekuma")
	assert.False(t, st.Enabled)
	assert.Equal(t, integration.StateDisconnected, st.State)

	require.ErrorIs(t, o.Refresh(context.Background(), "uptimekuma"), ErrDisabled)
	_, _, err = o.Snapshot("uptimekuma")
	require.ErrorIs(t, err, ErrDisabled)
}

func TestApply_ConfigurationErrorIsReportedNotRetried(t *testing.T) {
	o := newTestOrchestrator(t, &recordingPublisher{}, Options{})
	cfg := baseConfig("")
	cfg.UptimeKuma.Slug = ""

	err := o.Apply(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, integration.IsConfiguration(err))

	st := statusOf(t, o, "uptimekuma")
	assert.True(t, st.Enabled)
	assert.False(t, st.Connected)
	assert.Equal(t, "configuration", st.ErrorKind)

	e, lookupErr := o.lookup("uptimekuma")
	require.NoError(t, lookupErr)
	assert.False(t, e.retry.Load())
}

func TestServe_RetriesFailedConnect(t *testing.T) {
	kuma := newMockKuma(t)
	kuma.down.Store(true)
	clock := integration.NewFakeClock()
	pub := &recordingPublisher{}
	o := newTestOrchestrator(t, pub, Options{
		Clock:          clock,
		StatusInterval: time.Minute,
		RetryInterval:  time.Minute,
	})

	err := o.Apply(context.Background(), baseConfig(kuma.server.URL))
	require.Error(t, err)
	assert.True(t, integration.IsConnectionLost(err))
	e, err := o.lookup("uptimekuma")
	require.NoError(t, err)
	require.True(t, e.retry.Load())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = o.Serve(ctx) }()
	require.Eventually(t, func() bool { return clock.Tickers() >= 2 }, time.Second, 5*time.Millisecond)

	kuma.down.Store(false)
	clock.Advance(time.Minute)

	require.Eventually(t, func() bool {
		return statusOf(t, o, "uptimekuma").Connected
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, e.retry.Load())
	assert.Equal(t, 1, pub.snapshotCount("uptimekuma"))
}

func TestServe_AppliesReload(t *testing.T) {
	kuma := newMockKuma(t)
	o := newTestOrchestrator(t, &recordingPublisher{}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Serve(ctx) }()

	disabled := baseConfig(kuma.server.URL)
	disabled.UptimeKuma.Enabled = false
	o.Reload(disabled)
	o.Reload(baseConfig(kuma.server.URL)) // newest pending config wins

	require.Eventually(t, func() bool {
		return statusOf(t, o, "uptimekuma").Connected
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.True(t, statusOf(t, o, "uptimekuma").Connected, "integrations outlive Serve")
}

func TestRefresh(t *testing.T) {
	kuma := newMockKuma(t)
	o := newTestOrchestrator(t, &recordingPublisher{}, Options{})
	require.NoError(t, o.Apply(context.Background(), baseConfig(kuma.server.URL)))

	require.NoError(t, o.Refresh(context.Background(), "uptimekuma"))
	assert.EqualValues(t, 2, kuma.hits.Load())

	require.ErrorIs(t, o.Refresh(context.Background(), "plex"), ErrUnknownIntegration)
}

func TestRefreshAll_OnlyConnected(t *testing.T) {
	kuma := newMockKuma(t)
	o := newTestOrchestrator(t, &recordingPublisher{}, Options{})
	cfg := baseConfig(kuma.server.URL)
	cfg.Sonarr = config.SonarrConfig{Enabled: true, URL: "", PollInterval: time.Hour, DaysAhead: 14}
	require.Error(t, o.Apply(context.Background(), cfg))

	assert.Equal(t, 1, o.RefreshAll())
	require.Eventually(t, func() bool { return kuma.hits.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestTypedAccessors(t *testing.T) {
	o := newTestOrchestrator(t, &recordingPublisher{}, Options{})

	_, err := o.HomeAssistant()
	require.ErrorIs(t, err, ErrDisabled)
	_, err = o.UniFi()
	require.ErrorIs(t, err, ErrDisabled)

	cfg := baseConfig("")
	cfg.UptimeKuma.Enabled = false
	cfg.Weather = config.WeatherConfig{Enabled: true, PollInterval: time.Hour}
	require.Error(t, o.Apply(context.Background(), cfg))

	w, err := o.Weather()
	require.NoError(t, err)
	assert.Equal(t, "weather", w.Name())
}

func TestSectionHash(t *testing.T) {
	direct := config.ProxyConfig{Mode: "direct", Timeout: time.Second}
	proxied := config.ProxyConfig{Mode: "proxy", Endpoint: "http://edge:8080/api/proxy", Timeout: time.Second}
	section := config.SonarrConfig{Enabled: true, URL: "http://sonarr:8989", APIKey: "k"}

	a, err := sectionHash(direct, section)
	require.NoError(t, err)
	b, err := sectionHash(direct, section)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := sectionHash(proxied, section)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	section.APIKey = "k2"
	d, err := sectionHash(direct, section)
	require.NoError(t, err)
	assert.NotEqual(t, a, d)

	toggled := direct
	toggled.Enabled = true
	e, err := sectionHash(toggled, config.SonarrConfig{Enabled: true, URL: "http://sonarr:8989", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, a, e)
}

func TestStatusFingerprint_IgnoresLastRefresh(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	rows := []IntegrationStatus{{Name: "sonarr", Enabled: true, State: integration.StateConnected, LastRefresh: &t1}}
	later := []IntegrationStatus{{Name: "sonarr", Enabled: true, State: integration.StateConnected, LastRefresh: &t2}}
	failed := []IntegrationStatus{{Name: "sonarr", Enabled: true, State: integration.StateConnected, LastError: "boom"}}

	assert.Equal(t, statusFingerprint(rows), statusFingerprint(later))
	assert.NotEqual(t, statusFingerprint(rows), statusFingerprint(failed))
}

func TestPublishStatus_Deduplicates(t *testing.T) {
	pub := &recordingPublisher{}
	o := newTestOrchestrator(t, pub, Options{})

	o.publishStatus(false)
	o.publishStatus(false)
	assert.Equal(t, 1, pub.statusCount())

	o.publishStatus(true)
	assert.Equal(t, 2, pub.statusCount())
}

func TestTransportFor(t *testing.T) {
	_, ok := transportFor(config.ProxyConfig{Mode: "direct", Timeout: time.Second}).(*integration.DirectTransport)
	assert.True(t, ok)
	pt, ok := transportFor(config.ProxyConfig{Mode: "proxy", Endpoint: "http://edge/api/proxy", Timeout: time.Second}).(*integration.ProxyTransport)
	require.True(t, ok)
	assert.Equal(t, "http://edge/api/proxy", pt.Endpoint)
}
