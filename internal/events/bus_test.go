// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package events

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/ultrawide/internal/logging"
)

func init() {
	logging.SetLogger(logging.NewTestLogger(io.Discard))
}

var testTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type recordingSink struct {
	mu        sync.Mutex
	snapshots []SnapshotEvent
	statuses  []StatusEvent
}

func (r *recordingSink) BroadcastSnapshot(ev SnapshotEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, ev)
}

func (r *recordingSink) BroadcastStatus(ev StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, ev)
}

func (r *recordingSink) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots), len(r.statuses)
}

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	bus := NewBus(BusConfig{Persistent: true}, logging.NewWatermillAdapter())
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestNewSnapshotEvent(t *testing.T) {
	ev, err := NewSnapshotEvent("sonarr", map[string]int{"episodes": 3}, testTime)
	require.NoError(t, err)
	assert.Equal(t, "sonarr", ev.Integration)
	assert.JSONEq(t, `{"episodes":3}`, string(ev.Payload))
	assert.Equal(t, testTime, ev.At)

	_, err = NewSnapshotEvent("", nil, testTime)
	require.Error(t, err)

	_, err = NewSnapshotEvent("weather", func() {}, testTime)
	require.Error(t, err)
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.Subscribe(ctx, TopicSnapshots)
	require.NoError(t, err)

	ev, err := NewSnapshotEvent("proxmox", map[string]any{"nodes": []string{"pve1"}}, testTime)
	require.NoError(t, err)
	require.NoError(t, bus.PublishSnapshot(ev))

	select {
	case msg := <-msgs:
		var got SnapshotEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		msg.Ack()
		assert.Equal(t, "proxmox", got.Integration)
		assert.Equal(t, "proxmox", msg.Metadata.Get("integration"))
		assert.JSONEq(t, `{"nodes":["pve1"]}`, string(got.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
	}
	assert.EqualValues(t, 1, bus.Published())
}

func TestBus_Closed(t *testing.T) {
	bus := NewBus(BusConfig{}, nil)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	err := bus.PublishStatus(StatusEvent{Payload: json.RawMessage(`[]`), At: testTime})
	require.ErrorIs(t, err, ErrBusClosed)

	_, err = bus.Subscribe(context.Background(), TopicStatus)
	require.ErrorIs(t, err, ErrBusClosed)
}

func TestBridge_ForwardsBothTopics(t *testing.T) {
	bus := newTestBus(t)
	sink := &recordingSink{}
	bridge, err := NewBridge(bus, sink, logging.NewWatermillAdapter())
	require.NoError(t, err)

	snap, err := NewSnapshotEvent("tautulli", map[string]int{"streams": 2}, testTime)
	require.NoError(t, err)
	status, err := NewStatusEvent([]map[string]string{{"name": "tautulli", "state": "connected"}}, testTime)
	require.NoError(t, err)
	require.NoError(t, bus.PublishSnapshot(snap))
	require.NoError(t, bus.PublishStatus(status))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bridge.Serve(ctx) }()

	require.Eventually(t, func() bool {
		s, st := sink.counts()
		return s == 1 && st == 1
	}, 2*time.Second, 10*time.Millisecond)

	sink.mu.Lock()
	assert.Equal(t, "tautulli", sink.snapshots[0].Integration)
	assert.JSONEq(t, `{"streams":2}`, string(sink.snapshots[0].Payload))
	assert.JSONEq(t, `[{"name":"tautulli","state":"connected"}]`, string(sink.statuses[0].Payload))
	sink.mu.Unlock()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop")
	}

	stats := bridge.Stats()
	assert.EqualValues(t, 2, stats.Received)
	assert.EqualValues(t, 2, stats.Forwarded)
	assert.Zero(t, stats.Malformed)
}

func TestBridge_MalformedIsAckedAndCounted(t *testing.T) {
	bus := newTestBus(t)
	sink := &recordingSink{}
	bridge, err := NewBridge(bus, sink, nil)
	require.NoError(t, err)

	require.NoError(t, bus.pubsub.Publish(TopicSnapshots, message.NewMessage(uuid.NewString(), []byte("{not json"))))
	require.NoError(t, bus.pubsub.Publish(TopicSnapshots, message.NewMessage(uuid.NewString(), []byte(`{"payload":{}}`))))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bridge.Serve(ctx) }()

	require.Eventually(t, func() bool {
		return bridge.Stats().Malformed == 2
	}, 2*time.Second, 10*time.Millisecond)
	s, _ := sink.counts()
	assert.Zero(t, s)
}

func TestBridge_BusClosedStopsServe(t *testing.T) {
	bus := NewBus(BusConfig{}, nil)
	bridge, err := NewBridge(bus, &recordingSink{}, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- bridge.Serve(context.Background()) }()

	// Serve may not have subscribed yet when Close runs; both paths end
	// with ErrBusClosed.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, bus.Close())

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrBusClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop after bus close")
	}
}

func TestNewBridge_RequiresCollaborators(t *testing.T) {
	_, err := NewBridge(nil, &recordingSink{}, nil)
	require.Error(t, err)
	_, err = NewBridge(NewBus(BusConfig{}, nil), nil, nil)
	require.Error(t, err)
}
