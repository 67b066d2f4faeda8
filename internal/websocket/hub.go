// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ultrawide/internal/events"
	"github.com/tomtom215/ultrawide/internal/logging"
	"github.com/tomtom215/ultrawide/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during
	// shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types for WebSocket communication
const (
	MessageTypeSnapshot   = "snapshot"
	MessageTypeStatus     = "status"
	MessageTypePing       = "ping"
	MessageTypePong       = "pong"
	MessageTypeVisibility = "visibility"
)

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SnapshotData is the payload of a snapshot message.
type SnapshotData struct {
	Integration string          `json:"integration"`
	Snapshot    json.RawMessage `json:"snapshot"`
	At          time.Time       `json:"at"`
}

// StatusData is the payload of a status message.
type StatusData struct {
	Integrations json.RawMessage `json:"integrations"`
	At           time.Time       `json:"at"`
}

// VisibilityData is sent by the dashboard when the tab is shown or hidden.
type VisibilityData struct {
	Visible bool `json:"visible"`
}

// Hub maintains the set of active clients and broadcasts messages to the
// clients. It remembers the newest snapshot of every integration and the
// newest status table so a client that joins late starts with a full view.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	cacheMu sync.RWMutex
	latest  map[string]SnapshotData
	status  *StatusData

	visibilityMu sync.RWMutex
	onVisible    func()
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		latest:     make(map[string]SnapshotData),
	}
}

// OnVisible sets the callback run when a client reports {visible: true}.
func (h *Hub) OnVisible(fn func()) {
	h.visibilityMu.Lock()
	defer h.visibilityMu.Unlock()
	h.onVisible = fn
}

func (h *Hub) visible() {
	h.visibilityMu.RLock()
	fn := h.onVisible
	h.visibilityMu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Serve implements suture.Service.
func (h *Hub) Serve(ctx context.Context) error {
	return h.RunWithContext(ctx)
}

// String names the service in supervisor logs.
func (h *Hub) String() string { return "websocket-hub" }

// RunWithContext runs the hub until ctx is canceled, then closes every
// client and returns ctx.Err().
//
// Selection is prioritized: shutdown first, then client lifecycle events,
// then broadcasts. A client registered before a broadcast is dequeued
// always receives it.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(total))

	replayed := h.replay(client)
	logging.Info().
		Str("session", client.session).
		Int("total_clients", total).
		Int("replayed", replayed).
		Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(total))
	logging.Info().Str("session", client.session).Int("total_clients", total).Msg("websocket client disconnected")
}

// replay queues the cached status and snapshots, ordered by integration
// name, on a newly registered client.
func (h *Hub) replay(client *Client) int {
	h.cacheMu.RLock()
	msgs := make([]Message, 0, len(h.latest)+1)
	if h.status != nil {
		msgs = append(msgs, Message{Type: MessageTypeStatus, Data: *h.status})
	}
	names := make([]string, 0, len(h.latest))
	for name := range h.latest {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		msgs = append(msgs, Message{Type: MessageTypeSnapshot, Data: h.latest[name]})
	}
	h.cacheMu.RUnlock()

	sent := 0
	for _, msg := range msgs {
		select {
		case client.send <- msg:
			sent++
		default:
			logging.Warn().Str("session", client.session).Msg("client buffer full during replay")
			return sent
		}
	}
	return sent
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	// ctx.Err() is expected here and deliberately not logged as an error.
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// sortedClientsLocked returns clients ordered by id. h.mu must be held.
func (h *Hub) sortedClientsLocked() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// broadcastToClients sends a message to every client in id order. A client
// whose buffer is full is dropped.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var toRemove []*Client
	for _, client := range h.sortedClientsLocked() {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		logging.Warn().Str("session", client.session).Msg("dropping slow websocket client")
	}
	if len(toRemove) > 0 {
		metrics.WSConnections.Set(float64(len(h.clients)))
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClientsLocked() {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WSConnections.Set(0)
}

// BroadcastSnapshot caches and broadcasts an integration snapshot. Events
// older than the cached one are dropped; the bus does not guarantee order.
func (h *Hub) BroadcastSnapshot(ev events.SnapshotEvent) {
	data := SnapshotData{Integration: ev.Integration, Snapshot: ev.Payload, At: ev.At}

	h.cacheMu.Lock()
	if prev, ok := h.latest[ev.Integration]; ok && prev.At.After(ev.At) {
		h.cacheMu.Unlock()
		logging.Debug().Str("integration", ev.Integration).Msg("dropping out-of-order snapshot")
		return
	}
	h.latest[ev.Integration] = data
	h.cacheMu.Unlock()

	h.enqueue(Message{Type: MessageTypeSnapshot, Data: data})
}

// BroadcastStatus caches and broadcasts the integration status table.
func (h *Hub) BroadcastStatus(ev events.StatusEvent) {
	data := StatusData{Integrations: ev.Payload, At: ev.At}

	h.cacheMu.Lock()
	if h.status != nil && h.status.At.After(ev.At) {
		h.cacheMu.Unlock()
		return
	}
	h.status = &data
	h.cacheMu.Unlock()

	h.enqueue(Message{Type: MessageTypeStatus, Data: data})
}

// Forget drops the cached snapshot of an integration, e.g. after it was
// disabled, so late joiners no longer see it.
func (h *Hub) Forget(integration string) {
	h.cacheMu.Lock()
	defer h.cacheMu.Unlock()
	delete(h.latest, integration)
}

// Latest returns the cached snapshot of an integration.
func (h *Hub) Latest(integration string) (SnapshotData, bool) {
	h.cacheMu.RLock()
	defer h.cacheMu.RUnlock()
	data, ok := h.latest[integration]
	return data, ok
}

// BroadcastJSON sends an arbitrary typed message to all clients.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	h.enqueue(Message{Type: messageType, Data: data})
}

func (h *Hub) enqueue(message Message) {
	select {
	case h.broadcast <- message:
		logging.Debug().Int("clients", h.GetClientCount()).Str("type", message.Type).Msg("broadcast queued")
	default:
		logging.Warn().Str("type", message.Type).Msg("broadcast channel full, dropping message")
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
