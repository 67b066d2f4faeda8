// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

/*
Package integration implements the connection lifecycle shared by every
service client: connect and handshake, scheduled polling, visibility-return
refresh, reconnect on connection loss, and replay-last-value subscriptions.

Each service contributes an Adapter with three steps (validate, handshake,
fetch snapshot) and a Close. Client[C, S] owns everything else: the single
poll ticker, the state machine, the circuit breaker, and the subscriber set.

# Generations

Every Connect or Disconnect starts a new generation. Background work (the
poll loop, reconnect loops, visibility refreshes) belongs to exactly one
generation and is cancelled and awaited before the next one starts, so a
client never runs two poll tickers and a result fetched for an old
configuration is discarded instead of published.

# Failure handling

A failed refresh keeps the last snapshot. A NetworkError additionally marks
the client Disconnected and schedules a reconnect according to the
ReconnectPolicy. An AuthenticationError marks the client Disconnected with no
automatic reconnect; only a new Connect (for example after a configuration
change) or an explicit Reconnect clears it. Subscribers only ever receive
snapshots, never errors; State and LastError carry the degraded status.
*/
package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/ultrawide/internal/logging"
	"github.com/tomtom215/ultrawide/internal/metrics"
)

// ErrNotConnected is returned by Refresh when no connection is established.
var ErrNotConnected = errors.New("integration is not connected")

// ErrSuperseded is returned by Connect when a concurrent Connect or
// Disconnect replaced the configuration before the handshake completed.
var ErrSuperseded = errors.New("connect superseded by a newer lifecycle call")

// Adapter is the per-service part of an integration client.
//
// The Client serializes Handshake, FetchSnapshot and Close; an adapter never
// sees two of them concurrently. Handshake receives the configuration and
// keeps whatever session state later fetches need. FetchSnapshot must return
// a value the caller may keep (no aliasing of internal maps or slices).
type Adapter[C any, S any] interface {
	Validate(cfg C) error
	Handshake(ctx context.Context, cfg C) error
	FetchSnapshot(ctx context.Context) (S, error)
	Close() error
}

// Sink is handed to push-based adapters that implement Binder.
type Sink[S any] interface {
	Publish(snapshot S)
	ConnectionLost(err error)
}

// Binder is implemented by adapters that push snapshots (websocket based).
type Binder[S any] interface {
	Bind(sink Sink[S])
}

// Resetter is implemented by adapters that carry data between refreshes,
// such as the previous value of each section. Reset runs when Connect or
// Disconnect discards the configuration. Reconnects keep that data.
type Resetter interface {
	Reset()
}

// MetaProvider is implemented by adapters that report service metadata
// (server version, site name) in the ConnectResult.
type MetaProvider interface {
	ConnectMeta() map[string]any
}

// ConnectResult is returned by a successful Connect.
type ConnectResult struct {
	Success bool           `json:"success"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Client runs the lifecycle of one integration.
type Client[C any, S any] struct {
	opts    Options
	adapter Adapter[C, S]
	clock   Clock
	limiter *rate.Limiter

	// lifecycleMu serializes Connect and Disconnect.
	lifecycleMu sync.Mutex
	// fetchMu serializes adapter calls.
	fetchMu sync.Mutex
	workers sync.WaitGroup

	mu            sync.Mutex
	state         State
	cfg           C
	hasCfg        bool
	snapshot      S
	hasSnapshot   bool
	lastErr       error
	lastRefresh   time.Time
	generation    uint64
	genCtx        context.Context
	genCancel     context.CancelFunc
	breaker       *gobreaker.CircuitBreaker[S]
	wantReconnect bool

	reconnecting atomic.Bool

	subs subscriberSet[S]
}

// New creates a dormant client. Nothing happens until Connect.
func New[C any, S any](opts Options, adapter Adapter[C, S]) *Client[C, S] {
	opts = opts.withDefaults()
	c := &Client[C, S]{
		opts:    opts,
		adapter: adapter,
		clock:   opts.Clock,
		limiter: rate.NewLimiter(rate.Every(opts.VisibilityWindow), 1),
	}
	c.subs.name = opts.Name
	c.genCtx, c.genCancel = context.WithCancel(context.Background())
	c.genCancel()
	if b, ok := adapter.(Binder[S]); ok {
		b.Bind(c)
	}
	metrics.SetIntegrationState(opts.Name, int(StateDisconnected))
	return c
}

// Name returns the integration name.
func (c *Client[C, S]) Name() string { return c.opts.Name }

// Connect validates cfg, performs the handshake, seeds the snapshot and
// starts polling. Calling Connect on a connected client first tears down the
// previous generation.
func (c *Client[C, S]) Connect(ctx context.Context, cfg C) (ConnectResult, error) {
	// Abort an in-flight Connect so this call does not wait for its handshake.
	c.cancelGeneration()

	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	c.teardown()

	if err := c.adapter.Validate(cfg); err != nil {
		if !IsConfiguration(err) {
			err = &ConfigurationError{Msg: err.Error()}
		}
		c.fail(err)
		return ConnectResult{}, err
	}

	gen, genCtx := c.beginGeneration(cfg)
	c.setState(StateConnecting)
	logging.Info().Str("integration", c.opts.Name).Msg("[" + c.opts.Name + "] Connecting")

	snap, err := c.establish(ctx, genCtx, cfg)
	if err != nil {
		c.fetchMu.Lock()
		_ = c.adapter.Close()
		c.fetchMu.Unlock()
		if genCtx.Err() != nil && ctx.Err() == nil {
			err = ErrSuperseded
		}
		c.fail(err)
		c.cancelGeneration()
		logging.Warn().Err(err).Str("integration", c.opts.Name).Str("kind", Kind(err)).
			Msg("[" + c.opts.Name + "] Connect failed")
		return ConnectResult{}, err
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return ConnectResult{}, ErrSuperseded
	}
	c.snapshot, c.hasSnapshot = snap, true
	c.lastRefresh = c.clock.Now()
	c.lastErr = nil
	c.wantReconnect = false
	c.setStateLocked(StateConnected)
	c.mu.Unlock()

	c.startPollLoop(gen)
	c.subs.notify(snap)

	result := ConnectResult{Success: true}
	if mp, ok := c.adapter.(MetaProvider); ok {
		result.Meta = mp.ConnectMeta()
	}
	logging.Info().Str("integration", c.opts.Name).Dur("poll_interval", c.opts.PollInterval).
		Msg("[" + c.opts.Name + "] Connected")
	return result, nil
}

// establish runs the handshake and the first fetch under the adapter lock.
// A PartialFailure on the first fetch still counts as connected.
func (c *Client[C, S]) establish(ctx, genCtx context.Context, cfg C) (S, error) {
	var zero S

	hctx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()
	stop := context.AfterFunc(genCtx, cancel)
	defer stop()

	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	if err := c.adapter.Handshake(hctx, cfg); err != nil {
		return zero, err
	}

	fctx, fcancel := context.WithTimeout(genCtx, c.opts.FetchTimeout)
	defer fcancel()
	snap, err := c.adapter.FetchSnapshot(fctx)
	var pf *PartialFailure
	if err != nil && !errors.As(err, &pf) {
		return zero, err
	}
	if pf != nil {
		logging.Warn().Err(pf).Str("integration", c.opts.Name).Msg("[" + c.opts.Name + "] Initial refresh incomplete")
	}
	return snap, nil
}

// Disconnect stops polling, closes the adapter and resets state and
// snapshot. Subscribers stay registered and resume receiving snapshots after
// the next successful Connect.
func (c *Client[C, S]) Disconnect() {
	c.cancelGeneration()

	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	c.teardown()

	c.mu.Lock()
	var zeroCfg C
	c.cfg, c.hasCfg = zeroCfg, false
	c.generation++
	c.mu.Unlock()

	logging.Info().Str("integration", c.opts.Name).Msg("[" + c.opts.Name + "] Disconnected")
}

// teardown cancels and awaits the current generation, closes and resets the
// adapter and clears the snapshot. Must hold lifecycleMu.
func (c *Client[C, S]) teardown() {
	c.cancelGeneration()
	c.workers.Wait()

	c.fetchMu.Lock()
	_ = c.adapter.Close()
	if r, ok := c.adapter.(Resetter); ok {
		r.Reset()
	}
	c.fetchMu.Unlock()

	c.mu.Lock()
	var zero S
	c.snapshot, c.hasSnapshot = zero, false
	c.lastErr = nil
	c.lastRefresh = time.Time{}
	c.wantReconnect = false
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()
}

func (c *Client[C, S]) cancelGeneration() {
	c.mu.Lock()
	c.genCancel()
	c.mu.Unlock()
}

func (c *Client[C, S]) beginGeneration(cfg C) (uint64, context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.genCtx, c.genCancel = context.WithCancel(context.Background())
	c.cfg, c.hasCfg = cfg, true
	c.breaker = newBreaker[S](c.opts)
	return c.generation, c.genCtx
}

// spawn runs fn as a worker of generation gen. It refuses once the
// generation has been cancelled so teardown's Wait cannot race an Add.
func (c *Client[C, S]) spawn(gen uint64, fn func(ctx context.Context)) bool {
	c.mu.Lock()
	if c.generation != gen || c.genCtx.Err() != nil {
		c.mu.Unlock()
		return false
	}
	ctx := c.genCtx
	c.workers.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.workers.Done()
		fn(ctx)
	}()
	return true
}

func (c *Client[C, S]) startPollLoop(gen uint64) {
	if c.opts.PollInterval <= 0 {
		return
	}
	// Created synchronously so the ticker exists when Connect returns.
	ticker := c.clock.NewTicker(c.opts.PollInterval)
	started := c.spawn(gen, func(ctx context.Context) {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				c.tick(ctx, gen)
			}
		}
	})
	if !started {
		ticker.Stop()
	}
}

// tick is one scheduled poll: a refresh when connected, a reconnect attempt
// when the connection was lost under the next-tick policy.
func (c *Client[C, S]) tick(ctx context.Context, gen uint64) {
	c.mu.Lock()
	state, want := c.state, c.wantReconnect
	c.mu.Unlock()

	switch {
	case state == StateConnected:
		_ = c.refresh(ctx, gen)
	case state == StateDisconnected && want && !c.opts.Reconnect.usesBackoff():
		c.tryReconnect(ctx, gen)
	}
}

// Refresh performs one out-of-band fetchAll in the caller's goroutine.
func (c *Client[C, S]) Refresh(ctx context.Context) error {
	c.mu.Lock()
	gen, genCtx, state := c.generation, c.genCtx, c.state
	c.mu.Unlock()

	if state != StateConnected || genCtx.Err() != nil {
		return ErrNotConnected
	}

	rctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(genCtx, cancel)
	defer stop()
	return c.refresh(rctx, gen)
}

// RefreshNow is the visibility-return hook: an immediate asynchronous
// refresh, or a reconnect attempt if the connection was lost. Bursts are
// collapsed by a rate limiter; it reports whether a refresh was started.
//
// Under a backoff policy a failed attempt starts a new backoff cycle, so a
// client whose earlier cycle ran out of attempts recovers once the service
// is back. Nothing starts while a cycle is still running.
func (c *Client[C, S]) RefreshNow() bool {
	c.mu.Lock()
	gen, state, want := c.generation, c.state, c.wantReconnect
	c.mu.Unlock()

	switch {
	case state == StateConnected:
	case state == StateDisconnected && want:
		if c.opts.Reconnect.usesBackoff() && c.reconnecting.Load() {
			return false
		}
	default:
		return false
	}
	if !c.limiter.Allow() {
		return false
	}

	switch {
	case state == StateConnected:
		return c.spawn(gen, func(ctx context.Context) { _ = c.refresh(ctx, gen) })
	case c.opts.Reconnect.usesBackoff():
		return c.restartBackoff(gen)
	default:
		return c.spawn(gen, func(ctx context.Context) { c.tryReconnect(ctx, gen) })
	}
}

// restartBackoff tries to reconnect immediately and falls back to a fresh
// backoff cycle when that attempt fails with a retryable error.
func (c *Client[C, S]) restartBackoff(gen uint64) bool {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return false
	}
	started := c.spawn(gen, func(ctx context.Context) {
		defer c.reconnecting.Store(false)
		err := c.reconnectOnce(ctx, gen)
		metrics.RecordReconnect(c.opts.Name, err)
		if err == nil || !c.recoverable(err) || ctx.Err() != nil {
			return
		}
		c.backoffLoop(ctx, gen)
	})
	if !started {
		c.reconnecting.Store(false)
	}
	return started
}

// recoverable reports whether a failed reconnect may succeed later without
// a configuration change.
func (c *Client[C, S]) recoverable(err error) bool {
	return !IsAuthentication(err) && !IsConfiguration(err) && !errors.Is(err, ErrSuperseded)
}

// refresh fetches one snapshot through the breaker and applies the outcome.
func (c *Client[C, S]) refresh(ctx context.Context, gen uint64) error {
	c.mu.Lock()
	cb := c.breaker
	c.mu.Unlock()

	start := time.Now()
	var partial *PartialFailure

	snap, err := cb.Execute(func() (S, error) {
		c.fetchMu.Lock()
		defer c.fetchMu.Unlock()

		fctx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
		defer cancel()
		s, ferr := c.adapter.FetchSnapshot(fctx)
		if errors.As(ferr, &partial) {
			return s, nil
		}
		return s, ferr
	})

	if isBreakerRejection(err) {
		metrics.RecordRefreshSkipped(c.opts.Name)
		logging.Debug().Str("integration", c.opts.Name).Msg("[" + c.opts.Name + "] Circuit open, skipping refresh")
		return err
	}
	metrics.RecordRefresh(c.opts.Name, time.Since(start), err)

	c.mu.Lock()
	if c.generation != gen || c.genCtx.Err() != nil {
		// Result belongs to a configuration that no longer exists.
		c.mu.Unlock()
		return err
	}

	if err == nil {
		c.snapshot, c.hasSnapshot = snap, true
		c.lastRefresh = c.clock.Now()
		if partial != nil {
			c.lastErr = partial
		} else {
			c.lastErr = nil
		}
		c.mu.Unlock()

		if partial != nil {
			logging.Warn().Err(partial).Str("integration", c.opts.Name).Msg("[" + c.opts.Name + "] Partial refresh, stale sections kept")
		}
		c.subs.notify(snap)
		return nil
	}

	c.lastErr = err
	lost := IsConnectionLost(err)
	auth := IsAuthentication(err)
	if (lost || auth) && c.state == StateConnected {
		c.setStateLocked(StateDisconnected)
		c.wantReconnect = lost
	}
	c.mu.Unlock()

	switch {
	case lost:
		logging.Warn().Err(err).Str("integration", c.opts.Name).Msg("[" + c.opts.Name + "] Connection lost, keeping stale data")
		c.scheduleReconnect(gen)
	case auth:
		logging.Error().Err(err).Str("integration", c.opts.Name).Msg("[" + c.opts.Name + "] Authentication rejected, check credentials")
	default:
		logging.Warn().Err(err).Str("integration", c.opts.Name).Str("kind", Kind(err)).
			Msg("[" + c.opts.Name + "] Refresh failed, keeping stale data")
	}
	return err
}

// Publish replaces the snapshot from a push-based adapter and notifies
// subscribers.
func (c *Client[C, S]) Publish(snapshot S) {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	c.snapshot, c.hasSnapshot = snapshot, true
	c.lastRefresh = c.clock.Now()
	c.mu.Unlock()

	c.subs.notify(snapshot)
}

// ConnectionLost is called by push-based adapters when an established
// connection drops. It is ignored unless the client is Connected, so an
// adapter closing its own socket during reconnect does not recurse.
func (c *Client[C, S]) ConnectionLost(err error) {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	gen := c.generation
	c.lastErr = Network("connection closed", err)
	c.wantReconnect = true
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	logging.Warn().Err(err).Str("integration", c.opts.Name).Msg("[" + c.opts.Name + "] Connection lost")
	c.scheduleReconnect(gen)
}

// scheduleReconnect starts the backoff loop for backoff policies. Next-tick
// policies leave wantReconnect set for the poll loop to act on.
func (c *Client[C, S]) scheduleReconnect(gen uint64) {
	if !c.opts.Reconnect.usesBackoff() {
		return
	}
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	started := c.spawn(gen, func(ctx context.Context) {
		defer c.reconnecting.Store(false)
		c.backoffLoop(ctx, gen)
	})
	if !started {
		c.reconnecting.Store(false)
	}
}

func (c *Client[C, S]) backoffLoop(ctx context.Context, gen uint64) {
	policy := c.opts.Reconnect
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		delay := policy.Delay(attempt)
		logging.Info().Str("integration", c.opts.Name).Int("attempt", attempt).Dur("delay", delay).
			Msg("[" + c.opts.Name + "] Scheduling reconnect")

		select {
		case <-ctx.Done():
			return
		case <-c.clock.After(delay):
		}

		err := c.reconnectOnce(ctx, gen)
		metrics.RecordReconnect(c.opts.Name, err)
		if err == nil || ctx.Err() != nil {
			return
		}
		if !c.recoverable(err) {
			c.mu.Lock()
			c.wantReconnect = false
			c.mu.Unlock()
			return
		}
	}

	// wantReconnect stays set: the next visibility refresh starts a new cycle.
	logging.Error().Str("integration", c.opts.Name).Int("attempts", policy.MaxAttempts).
		Msg("[" + c.opts.Name + "] Reconnect attempts exhausted, waiting for the next visibility refresh")
}

// Reconnect attempts one reconnect now. It returns false without doing
// anything when another reconnect is already in flight or the client has no
// connection to restore.
func (c *Client[C, S]) Reconnect() bool {
	c.mu.Lock()
	gen, hasCfg, state := c.generation, c.hasCfg, c.state
	c.mu.Unlock()
	if !hasCfg || state == StateConnecting {
		return false
	}
	if !c.reconnecting.CompareAndSwap(false, true) {
		return false
	}
	started := c.spawn(gen, func(ctx context.Context) {
		defer c.reconnecting.Store(false)
		err := c.reconnectOnce(ctx, gen)
		metrics.RecordReconnect(c.opts.Name, err)
	})
	if !started {
		c.reconnecting.Store(false)
	}
	return started
}

// tryReconnect is the next-tick reconnect, gated by the re-entrancy flag and
// the circuit breaker.
func (c *Client[C, S]) tryReconnect(ctx context.Context, gen uint64) {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	defer c.reconnecting.Store(false)

	c.mu.Lock()
	cb := c.breaker
	c.mu.Unlock()

	_, err := cb.Execute(func() (S, error) {
		var zero S
		return zero, c.reconnectOnce(ctx, gen)
	})
	if isBreakerRejection(err) {
		metrics.RecordRefreshSkipped(c.opts.Name)
		return
	}
	metrics.RecordReconnect(c.opts.Name, err)
}

// reconnectOnce re-runs handshake and fetch with the retained config.
func (c *Client[C, S]) reconnectOnce(ctx context.Context, gen uint64) error {
	c.mu.Lock()
	if c.generation != gen || !c.hasCfg {
		c.mu.Unlock()
		return ErrSuperseded
	}
	cfg := c.cfg
	c.setStateLocked(StateReconnecting)
	c.mu.Unlock()

	c.fetchMu.Lock()
	_ = c.adapter.Close()
	c.fetchMu.Unlock()

	snap, err := c.establish(ctx, ctx, cfg)

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		c.lastErr = err
		c.setStateLocked(StateDisconnected)
		if IsAuthentication(err) || IsConfiguration(err) {
			c.wantReconnect = false
		}
		c.mu.Unlock()
		logging.Warn().Err(err).Str("integration", c.opts.Name).Msg("[" + c.opts.Name + "] Reconnect failed")
		return err
	}
	c.snapshot, c.hasSnapshot = snap, true
	c.lastRefresh = c.clock.Now()
	c.lastErr = nil
	c.wantReconnect = false
	c.setStateLocked(StateConnected)
	c.mu.Unlock()

	logging.Info().Str("integration", c.opts.Name).Msg("[" + c.opts.Name + "] Reconnected")
	c.subs.notify(snap)
	return nil
}

func (c *Client[C, S]) fail(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()
}

func (c *Client[C, S]) setState(s State) {
	c.mu.Lock()
	c.setStateLocked(s)
	c.mu.Unlock()
}

func (c *Client[C, S]) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	metrics.SetIntegrationState(c.opts.Name, int(s))
}

// Subscribe registers fn and, if a snapshot exists, calls it synchronously
// with that snapshot before returning. The returned function removes exactly
// this registration and may be called any number of times. fn must not call
// Subscribe.
func (c *Client[C, S]) Subscribe(fn func(S)) (unsubscribe func()) {
	return c.subs.add(fn, func() (S, bool) {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.snapshot, c.hasSnapshot
	})
}

// SubscribeAny is Subscribe for callers that handle many snapshot types.
func (c *Client[C, S]) SubscribeAny(fn func(any)) (unsubscribe func()) {
	return c.Subscribe(func(s S) { fn(s) })
}

// IsConnected reports whether the client is Connected.
func (c *Client[C, S]) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected
}

// State returns the current connection state.
func (c *Client[C, S]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the last snapshot and whether one exists.
func (c *Client[C, S]) Snapshot() (S, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot, c.hasSnapshot
}

// SnapshotAny is Snapshot for heterogeneous callers.
func (c *Client[C, S]) SnapshotAny() (any, bool) {
	s, ok := c.Snapshot()
	return s, ok
}

// Config returns the retained configuration.
func (c *Client[C, S]) Config() (C, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg, c.hasCfg
}

// LastError returns the most recent connect or refresh error, nil after a
// clean refresh.
func (c *Client[C, S]) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// LastRefresh returns when the snapshot was last replaced.
func (c *Client[C, S]) LastRefresh() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRefresh
}

// String implements fmt.Stringer.
func (c *Client[C, S]) String() string {
	return fmt.Sprintf("%s(%s)", c.opts.Name, c.State())
}

// Subscribers returns the number of registered callbacks.
func (c *Client[C, S]) Subscribers() int {
	return c.subs.len()
}
