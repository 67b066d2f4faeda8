// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

/*
Package homeassistant is the push-based Home Assistant integration.

The client keeps one authenticated websocket open to /api/websocket:

	server: auth_required
	client: auth {access_token}
	server: auth_ok | auth_invalid
	client: subscribe_events {event_type: state_changed}
	client: get_states

get_states seeds the entity map; state_changed events then update it in place
and publish a fresh snapshot. Service calls (toggle, turn_on, turn_off, scene
activation) are sent on the same socket with increasing ids and a 10 second
timeout.

A socket that closes before auth_ok fails Connect with no retry. A socket that
drops later triggers a bounded backoff: five attempts, waiting 1s, 2s, 3s, 4s
then 5s.
*/
package homeassistant

import (
	"context"
	"crypto/tls"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/ultrawide/internal/integration"
	"github.com/tomtom215/ultrawide/internal/logging"
)

// Name is the integration name used in logs, metrics and the API.
const Name = "homeassistant"

const (
	defaultCommandTimeout = 10 * time.Second
	defaultPingInterval   = 30 * time.Second
)

// ReconnectPolicy is the socket reconnect backoff.
var ReconnectPolicy = integration.Backoff(5, time.Second, 5*time.Second)

// Option customizes a Client.
type Option func(*adapter)

// WithCommandTimeout overrides the per-command timeout.
func WithCommandTimeout(d time.Duration) Option {
	return func(a *adapter) { a.commandTimeout = d }
}

// WithPingInterval overrides the keepalive interval; 0 disables keepalive.
func WithPingInterval(d time.Duration) Option {
	return func(a *adapter) { a.pingInterval = d }
}

// Client is the Home Assistant integration client.
type Client struct {
	*integration.Client[Config, Snapshot]
	adapter *adapter
}

// New creates a dormant client. opts.Name and opts.Reconnect are filled in
// when unset.
func New(opts integration.Options, options ...Option) *Client {
	if opts.Name == "" {
		opts.Name = Name
	}
	if opts.Reconnect.MaxAttempts == 0 {
		opts.Reconnect = ReconnectPolicy
	}
	a := &adapter{
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
			TLSClientConfig:  &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // self-signed home-lab certificates
		},
		commandTimeout: defaultCommandTimeout,
		pingInterval:   defaultPingInterval,
	}
	for _, o := range options {
		o(a)
	}
	return &Client{Client: integration.New[Config, Snapshot](opts, a), adapter: a}
}

// Toggle flips an entity using its own domain's toggle service.
func (c *Client) Toggle(ctx context.Context, entityID string) error {
	return c.CallService(ctx, domainOf(entityID), "toggle", entityID, nil)
}

// TurnOn turns an entity on with optional service data (brightness, color).
func (c *Client) TurnOn(ctx context.Context, entityID string, data map[string]any) error {
	return c.CallService(ctx, domainOf(entityID), "turn_on", entityID, data)
}

// TurnOff turns an entity off.
func (c *Client) TurnOff(ctx context.Context, entityID string) error {
	return c.CallService(ctx, domainOf(entityID), "turn_off", entityID, nil)
}

// ActivateScene activates a scene entity.
func (c *Client) ActivateScene(ctx context.Context, sceneID string) error {
	if !strings.HasPrefix(sceneID, "scene.") {
		sceneID = "scene." + sceneID
	}
	return c.CallService(ctx, "scene", "turn_on", sceneID, nil)
}

// CallService sends call_service and waits for its result.
func (c *Client) CallService(ctx context.Context, domain, service, entityID string, data map[string]any) error {
	s := c.adapter.current()
	if s == nil || !c.IsConnected() {
		return integration.ErrNotConnected
	}
	cmd := command{
		Type:        cmdCallService,
		Domain:      domain,
		Service:     service,
		ServiceData: data,
	}
	if entityID != "" {
		cmd.Target = &target{EntityID: entityID}
	}
	_, err := s.roundTrip(ctx, cmd)
	if err != nil {
		logging.Warn().Err(err).Str("domain", domain).Str("service", service).Str("entity_id", entityID).
			Msg("[homeassistant] Service call failed")
	}
	return err
}

// pendingCommands reports commands awaiting a result.
func (c *Client) pendingCommands() int {
	if s := c.adapter.current(); s != nil {
		return s.pendingCount()
	}
	return 0
}

func domainOf(entityID string) string {
	return Entity{EntityID: entityID}.Domain()
}

// adapter implements integration.Adapter over a websocket session.
type adapter struct {
	dialer         *websocket.Dialer
	commandTimeout time.Duration
	pingInterval   time.Duration

	mu   sync.Mutex
	sess *session
	sink integration.Sink[Snapshot]
}

func (a *adapter) Bind(sink integration.Sink[Snapshot]) {
	a.mu.Lock()
	a.sink = sink
	a.mu.Unlock()
}

func (a *adapter) current() *session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sess
}

func (a *adapter) Validate(cfg Config) error {
	if strings.TrimSpace(cfg.URL) == "" || strings.TrimSpace(cfg.Token) == "" {
		return integration.Configurationf("URL and token are required")
	}
	_, err := websocketURL(cfg.URL)
	return err
}

func (a *adapter) Handshake(ctx context.Context, cfg Config) error {
	s, err := dial(ctx, a.dialer, cfg)
	if err != nil {
		return err
	}
	s.commandTimeout = a.commandTimeout

	a.mu.Lock()
	sink := a.sink
	a.sess = s
	a.mu.Unlock()

	if sink != nil {
		s.onChange = sink.Publish
		s.onLost = sink.ConnectionLost
	}
	s.start(a.pingInterval)

	if _, err := s.roundTrip(ctx, command{Type: cmdSubscribeEvents, EventType: eventStateChanged}); err != nil {
		return err
	}
	logging.Info().Str("ha_version", s.haVersion).Msg("[homeassistant] Authenticated")
	return nil
}

func (a *adapter) FetchSnapshot(ctx context.Context) (Snapshot, error) {
	s := a.current()
	if s == nil {
		return Snapshot{}, integration.Network(cmdGetStates, errSessionClosed)
	}
	msg, err := s.roundTrip(ctx, command{Type: cmdGetStates})
	if err != nil {
		return Snapshot{}, err
	}
	return s.loadStates(msg.Result)
}

func (a *adapter) Close() error {
	a.mu.Lock()
	s := a.sess
	a.sess = nil
	a.mu.Unlock()
	if s != nil {
		s.close()
	}
	return nil
}

func (a *adapter) ConnectMeta() map[string]any {
	s := a.current()
	if s == nil {
		return nil
	}
	return map[string]any{"ha_version": s.haVersion}
}
