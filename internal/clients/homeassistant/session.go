// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package homeassistant

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/ultrawide/internal/integration"
	"github.com/tomtom215/ultrawide/internal/logging"
)

const (
	handshakeTimeout = 10 * time.Second
	readLimit        = 32 << 20
)

var errSessionClosed = errors.New("home assistant socket closed")

// session is one authenticated websocket connection. It is created by
// Handshake and discarded on Close; reconnecting builds a new session.
type session struct {
	conn      *websocket.Conn
	haVersion string

	commandTimeout time.Duration

	writeMu sync.Mutex

	pendingMu sync.Mutex
	nextID    int64
	pending   map[int64]chan inbound

	entitiesMu sync.Mutex
	entities   map[string]Entity

	onChange func(Snapshot)
	onLost   func(error)

	done      chan struct{}
	closeOnce sync.Once
	closing   bool
	wg        sync.WaitGroup
}

// websocketURL converts the configured base URL to the websocket endpoint.
func websocketURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", integration.Configurationf("invalid Home Assistant URL %q: %v", raw, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", integration.Configurationf("Home Assistant URL must start with http:// or https://, got %q", raw)
	}
	if u.Host == "" {
		return "", integration.Configurationf("Home Assistant URL %q has no host", raw)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/websocket"
	u.RawQuery = ""
	return u.String(), nil
}

// dial opens the socket and completes the auth exchange. A socket that
// closes before auth_ok is reported as a NetworkError and never retried by
// the caller; auth_invalid is an AuthenticationError.
func dial(ctx context.Context, dialer *websocket.Dialer, cfg Config) (*session, error) {
	wsURL, err := websocketURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, integration.Network("websocket dial", fmt.Errorf("status %d: %w", resp.StatusCode, err))
		}
		return nil, integration.Network("websocket dial", err)
	}
	conn.SetReadLimit(readLimit)

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	s := &session{conn: conn, pending: make(map[int64]chan inbound), done: make(chan struct{})}
	if err := s.authenticate(cfg.Token); err != nil {
		stop()
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil, integration.Network("websocket handshake", ctx.Err())
		}
		return nil, err
	}
	if !stop() {
		return nil, integration.Network("websocket handshake", ctx.Err())
	}

	_ = conn.SetReadDeadline(time.Time{})
	_ = conn.SetWriteDeadline(time.Time{})
	return s, nil
}

func (s *session) authenticate(token string) error {
	msg, err := s.readMessage()
	if err != nil {
		return integration.Network("waiting for auth_required", err)
	}
	if msg.Type != msgAuthRequired {
		return &integration.MalformedResponseError{Msg: fmt.Sprintf("expected auth_required, got %q", msg.Type)}
	}
	s.haVersion = msg.HAVersion

	if err := s.write(authMessage{Type: msgAuth, AccessToken: token}); err != nil {
		return integration.Network("sending auth", err)
	}

	msg, err = s.readMessage()
	if err != nil {
		return integration.Network("waiting for auth result", err)
	}
	switch msg.Type {
	case msgAuthOK:
		if msg.HAVersion != "" {
			s.haVersion = msg.HAVersion
		}
		return nil
	case msgAuthInvalid:
		return integration.Authenticationf("Invalid access token: %s", msg.Message)
	default:
		return &integration.MalformedResponseError{Msg: fmt.Sprintf("unexpected auth response %q", msg.Type)}
	}
}

func (s *session) readMessage() (inbound, error) {
	var msg inbound
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, &integration.MalformedResponseError{Msg: "invalid websocket frame", Snippet: integration.Snippet(data), Err: err}
	}
	return msg, nil
}

func (s *session) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// start runs the read loop and keepalive once callbacks are in place.
func (s *session) start(pingInterval time.Duration) {
	s.wg.Add(2)
	go s.readLoop()
	go s.pingLoop(pingInterval)
}

func (s *session) readLoop() {
	defer s.wg.Done()
	for {
		msg, err := s.readMessage()
		if err != nil {
			var malformed *integration.MalformedResponseError
			if errors.As(err, &malformed) {
				logging.Warn().Err(err).Msg("[homeassistant] Ignoring malformed frame")
				continue
			}
			s.shutdown(err)
			return
		}

		switch msg.Type {
		case msgResult, msgPong:
			s.resolve(msg)
		case msgEvent:
			if msg.Event != nil && msg.Event.EventType == eventStateChanged {
				s.applyStateChange(msg.Event.Data)
			}
		default:
			logging.Debug().Str("type", msg.Type).Msg("[homeassistant] Unhandled message")
		}
	}
}

func (s *session) pingLoop(interval time.Duration) {
	defer s.wg.Done()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.commandTimeout)
			_, err := s.roundTrip(ctx, command{Type: msgPing})
			cancel()
			if err != nil && !errors.Is(err, errSessionClosed) {
				logging.Warn().Err(err).Msg("[homeassistant] Keepalive failed, dropping socket")
				_ = s.conn.Close()
				return
			}
		}
	}
}

// roundTrip sends cmd with a fresh id and waits for the matching result.
// The pending entry is removed on result, timeout or close.
func (s *session) roundTrip(ctx context.Context, cmd command) (inbound, error) {
	ch := make(chan inbound, 1)

	s.pendingMu.Lock()
	if s.pending == nil {
		s.pendingMu.Unlock()
		return inbound{}, integration.Network(cmd.Type, errSessionClosed)
	}
	s.nextID++
	cmd.ID = s.nextID
	s.pending[cmd.ID] = ch
	s.pendingMu.Unlock()

	defer func() {
		s.pendingMu.Lock()
		if s.pending != nil {
			delete(s.pending, cmd.ID)
		}
		s.pendingMu.Unlock()
	}()

	if err := s.write(cmd); err != nil {
		return inbound{}, integration.Network(cmd.Type, err)
	}

	timer := time.NewTimer(s.commandTimeout)
	defer timer.Stop()

	select {
	case msg := <-ch:
		if msg.Type == msgResult && !msg.Success {
			if msg.Error != nil {
				return msg, fmt.Errorf("%s failed: %s (%s)", cmd.Type, msg.Error.Message, msg.Error.Code)
			}
			return msg, fmt.Errorf("%s failed", cmd.Type)
		}
		return msg, nil
	case <-timer.C:
		return inbound{}, integration.Network(cmd.Type, fmt.Errorf("no response within %s", s.commandTimeout))
	case <-ctx.Done():
		return inbound{}, integration.Network(cmd.Type, ctx.Err())
	case <-s.done:
		return inbound{}, integration.Network(cmd.Type, errSessionClosed)
	}
}

func (s *session) resolve(msg inbound) {
	s.pendingMu.Lock()
	ch, ok := s.pending[msg.ID]
	s.pendingMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- msg:
	default:
	}
}

func (s *session) pendingCount() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return len(s.pending)
}

// loadStates replaces the entity map from a get_states result.
func (s *session) loadStates(raw json.RawMessage) (Snapshot, error) {
	var states []Entity
	if err := json.Unmarshal(raw, &states); err != nil {
		return Snapshot{}, &integration.MalformedResponseError{Msg: "invalid get_states result", Snippet: integration.Snippet(raw), Err: err}
	}
	entities := make(map[string]Entity, len(states))
	for _, e := range states {
		entities[e.EntityID] = e
	}

	s.entitiesMu.Lock()
	s.entities = entities
	snap := s.snapshotLocked()
	s.entitiesMu.Unlock()
	return snap, nil
}

// applyStateChange updates one entity; a nil new_state removes it.
func (s *session) applyStateChange(data stateChangeData) {
	s.entitiesMu.Lock()
	if s.entities == nil {
		s.entitiesMu.Unlock()
		return
	}
	if data.NewState == nil {
		delete(s.entities, data.EntityID)
	} else {
		s.entities[data.EntityID] = *data.NewState
	}
	snap := s.snapshotLocked()
	s.entitiesMu.Unlock()

	if s.onChange != nil {
		s.onChange(snap)
	}
}

func (s *session) snapshotLocked() Snapshot {
	entities := make(map[string]Entity, len(s.entities))
	for id, e := range s.entities {
		entities[id] = e
	}
	return Snapshot{Entities: entities}
}

// shutdown fails pending commands and reports the loss unless Close
// initiated it.
func (s *session) shutdown(cause error) {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()

		s.pendingMu.Lock()
		s.pending = nil
		intentional := s.closing
		s.pendingMu.Unlock()

		if !intentional && s.onLost != nil {
			s.onLost(cause)
		}
	})
}

// close tears the session down and waits for its goroutines.
func (s *session) close() {
	s.pendingMu.Lock()
	s.closing = true
	s.pendingMu.Unlock()

	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()

	s.shutdown(errSessionClosed)
	s.wg.Wait()
}
