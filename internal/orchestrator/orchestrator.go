// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/ultrawide/internal/cache"
	"github.com/tomtom215/ultrawide/internal/clients/weather"
	"github.com/tomtom215/ultrawide/internal/config"
	"github.com/tomtom215/ultrawide/internal/events"
	"github.com/tomtom215/ultrawide/internal/integration"
	"github.com/tomtom215/ultrawide/internal/logging"
)

// Defaults for Options.
const (
	DefaultStatusInterval = 2 * time.Second
	DefaultRetryInterval  = 30 * time.Second
)

// Errors returned by per-integration operations.
var (
	ErrUnknownIntegration = errors.New("unknown integration")
	ErrDisabled           = errors.New("integration is disabled")
)

// Integration is the type-erased view of a client.
type Integration interface {
	Name() string
	IsConnected() bool
	State() integration.State
	LastError() error
	LastRefresh() time.Time
	SnapshotAny() (any, bool)
	SubscribeAny(fn func(any)) (unsubscribe func())
	Refresh(ctx context.Context) error
	RefreshNow() bool
	Disconnect()
}

// Publisher receives events for the dashboard.
type Publisher interface {
	PublishSnapshot(ev events.SnapshotEvent) error
	PublishStatus(ev events.StatusEvent) error
}

// Options configures an Orchestrator.
type Options struct {
	// StatusInterval is how often Serve checks for status changes.
	StatusInterval time.Duration

	// RetryInterval is how often Serve retries failed initial connects.
	RetryInterval time.Duration

	// OnRemoved runs after an integration is disabled.
	OnRemoved func(name string)

	Clock integration.Clock
}

func (o Options) withDefaults() Options {
	if o.StatusInterval <= 0 {
		o.StatusInterval = DefaultStatusInterval
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = DefaultRetryInterval
	}
	if o.Clock == nil {
		o.Clock = integration.RealClock{}
	}
	return o
}

// entry is one running integration.
type entry struct {
	name        string
	client      Integration
	unsubscribe func()

	// connMu serializes Connect calls on client.
	connMu sync.Mutex

	// mu guards the fields below. version changes whenever the entry is
	// rebound or stopped; a connect scheduled for an older version is
	// dropped.
	mu        sync.Mutex
	hash      uint64
	buildHash uint64
	connectFn connectFunc
	version   uint64
	stopped   bool
	ctx       context.Context
	cancel    context.CancelFunc

	// retry is set while the last Connect failed with a retryable error;
	// retrying guards against overlapping attempts.
	retry    atomic.Bool
	retrying atomic.Bool
}

// rebind swaps in a new connect func and cancels pending retries. It
// returns the new version.
func (e *entry) rebind(hash, buildHash uint64, fn connectFunc) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.hash, e.buildHash, e.connectFn = hash, buildHash, fn
	e.version++
	e.retry.Store(false)
	return e.version
}

func (e *entry) hashes() (hash, buildHash uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hash, e.buildHash
}

// current returns the connect func for version, or nil once the entry
// was rebound or stopped.
func (e *entry) current(version uint64) connectFunc {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped || e.version != version {
		return nil
	}
	return e.connectFn
}

// retryTarget returns the version and context a retry should use.
func (e *entry) retryTarget() (uint64, context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version, e.ctx
}

// Orchestrator owns the integration clients.
type Orchestrator struct {
	opts      Options
	publisher Publisher
	geocodes  *cache.LRU[weather.Coordinates]

	applyMu sync.Mutex

	mu      sync.RWMutex
	entries map[string]*entry

	reload     chan *config.Config
	statusHash atomic.Uint64
}

// New creates an orchestrator with no running integrations. geocodeTTL
// sizes the weather geocode cache shared by every weather client it builds.
func New(publisher Publisher, geocodeTTL time.Duration, opts Options) *Orchestrator {
	opts = opts.withDefaults()
	if geocodeTTL <= 0 {
		geocodeTTL = weather.DefaultGeocodeTTL
	}
	return &Orchestrator{
		opts:      opts,
		publisher: publisher,
		geocodes:  cache.NewLRU[weather.Coordinates](256, geocodeTTL).WithClock(opts.Clock.Now),
		entries:   make(map[string]*entry),
		reload:    make(chan *config.Config, 1),
	}
}

// Apply brings the running integrations in line with cfg. It returns the
// joined Connect errors of integrations that were (re)started; those
// integrations stay registered and show the error in Status.
func (o *Orchestrator) Apply(ctx context.Context, cfg *config.Config) error {
	o.applyMu.Lock()
	defer o.applyMu.Unlock()

	var (
		g       errgroup.Group
		errsMu  sync.Mutex
		errs    []error
		started []*entry
	)

	for _, f := range factories {
		enabled := f.enabled(cfg)
		hash, err := sectionHash(cfg.Proxy, f.section(cfg))
		if err != nil {
			return fmt.Errorf("hash %s config: %w", f.name, err)
		}
		buildHash, err := sectionHash(cfg.Proxy, f.inputs(cfg))
		if err != nil {
			return fmt.Errorf("hash %s build inputs: %w", f.name, err)
		}

		o.mu.RLock()
		current := o.entries[f.name]
		o.mu.RUnlock()

		if current == nil && !enabled {
			continue
		}

		var (
			e       *entry
			version uint64
		)
		switch {
		case current == nil:
			e, version = o.start(f, cfg, hash, buildHash)
		case !enabled:
			o.stop(current)
			logging.Info().Str("integration", f.name).Msg("[orchestrator] Integration disabled")
			if o.opts.OnRemoved != nil {
				o.opts.OnRemoved(f.name)
			}
			continue
		default:
			curHash, curBuild := current.hashes()
			if curHash == hash {
				continue
			}
			if curBuild == buildHash {
				logging.Info().Str("integration", f.name).Msg("[orchestrator] Configuration changed, reconnecting")
				e = current
				version = e.rebind(hash, buildHash, f.bind(cfg, e.client))
				break
			}
			o.stop(current)
			logging.Info().Str("integration", f.name).Msg("[orchestrator] Configuration changed, rebuilding client")
			e, version = o.start(f, cfg, hash, buildHash)
		}

		started = append(started, e)
		g.Go(func() error {
			if err := o.connect(ctx, e, version); err != nil {
				errsMu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
				errsMu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()
	logging.Info().Int("started", len(started)).Int("failed", len(errs)).Msg("[orchestrator] Configuration applied")
	o.publishStatus(true)
	return errors.Join(errs...)
}

// start builds and registers a client for f.
func (o *Orchestrator) start(f factory, cfg *config.Config, hash, buildHash uint64) (*entry, uint64) {
	client := f.build(cfg, o.clientOptions(f.name), transportFor(cfg.Proxy), o)
	e := &entry{name: f.name, client: client}
	version := e.rebind(hash, buildHash, f.bind(cfg, client))
	e.unsubscribe = client.SubscribeAny(func(snap any) { o.publishSnapshot(e.name, snap) })

	o.mu.Lock()
	o.entries[f.name] = e
	o.mu.Unlock()
	return e, version
}

// stop disconnects and unregisters e. It waits for an in-flight Connect so
// that nothing reconnects the client afterwards.
func (o *Orchestrator) stop(e *entry) {
	e.mu.Lock()
	e.stopped = true
	e.version++
	e.cancel()
	e.mu.Unlock()
	e.retry.Store(false)

	e.connMu.Lock()
	e.unsubscribe()
	e.client.Disconnect()
	e.connMu.Unlock()

	o.mu.Lock()
	if o.entries[e.name] == e {
		delete(o.entries, e.name)
	}
	o.mu.Unlock()
}

// connect runs e's Connect for version and records whether a retry is
// warranted. It does nothing once e was rebound or stopped.
func (o *Orchestrator) connect(ctx context.Context, e *entry, version uint64) error {
	e.connMu.Lock()
	defer e.connMu.Unlock()

	fn := e.current(version)
	if fn == nil {
		return nil
	}
	_, err := fn(ctx)
	if e.current(version) == nil {
		return nil
	}
	switch {
	case err == nil:
		e.retry.Store(false)
	case errors.Is(err, integration.ErrSuperseded):
		e.retry.Store(false)
	default:
		e.retry.Store(retryable(err))
	}
	return err
}

// retryable reports whether a failed Connect may succeed without a config
// change.
func retryable(err error) bool {
	return !integration.IsConfiguration(err) && !integration.IsAuthentication(err)
}

// retryFailed reconnects entries whose last Connect failed.
func (o *Orchestrator) retryFailed() {
	for _, e := range o.snapshotEntries() {
		if !e.retry.Load() || e.client.IsConnected() {
			continue
		}
		if !e.retrying.CompareAndSwap(false, true) {
			continue
		}
		version, ctx := e.retryTarget()
		go func() {
			defer e.retrying.Store(false)
			logging.Debug().Str("integration", e.name).Msg("[orchestrator] Retrying connect")
			_ = o.connect(ctx, e, version)
		}()
	}
}

func (o *Orchestrator) publishSnapshot(name string, snap any) {
	if o.publisher == nil {
		return
	}
	ev, err := events.NewSnapshotEvent(name, snap, o.opts.Clock.Now())
	if err != nil {
		logging.Error().Err(err).Str("integration", name).Msg("[orchestrator] Failed to encode snapshot")
		return
	}
	if err := o.publisher.PublishSnapshot(ev); err != nil {
		logging.Debug().Err(err).Str("integration", name).Msg("[orchestrator] Failed to publish snapshot")
	}
}

// Reload queues cfg for Serve to apply. Only the newest pending config is
// kept.
func (o *Orchestrator) Reload(cfg *config.Config) {
	for {
		select {
		case o.reload <- cfg:
			return
		default:
		}
		select {
		case <-o.reload:
		default:
		}
	}
}

// Serve applies reloaded configs, publishes status changes and retries
// failed connects until ctx is canceled. It implements suture.Service.
// Integrations keep running when Serve returns; Close stops them.
func (o *Orchestrator) Serve(ctx context.Context) error {
	status := o.opts.Clock.NewTicker(o.opts.StatusInterval)
	defer status.Stop()
	retry := o.opts.Clock.NewTicker(o.opts.RetryInterval)
	defer retry.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cfg := <-o.reload:
			if err := o.Apply(ctx, cfg); err != nil {
				logging.Warn().Err(err).Msg("[orchestrator] Some integrations failed to connect after reload")
			}
		case <-status.C():
			o.publishStatus(false)
		case <-retry.C():
			o.retryFailed()
		}
	}
}

// String names the service in supervisor logs.
func (o *Orchestrator) String() string { return "orchestrator" }

// Close disconnects every integration.
func (o *Orchestrator) Close() {
	o.applyMu.Lock()
	defer o.applyMu.Unlock()
	for _, e := range o.snapshotEntries() {
		o.stop(e)
	}
}

// snapshotEntries returns the running entries in factory order.
func (o *Orchestrator) snapshotEntries() []*entry {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*entry, 0, len(o.entries))
	for _, f := range factories {
		if e, ok := o.entries[f.name]; ok {
			out = append(out, e)
		}
	}
	return out
}

func (o *Orchestrator) lookup(name string) (*entry, error) {
	if !knownIntegration(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIntegration, name)
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	e, ok := o.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDisabled, name)
	}
	return e, nil
}

// Refresh runs one immediate refresh of a named integration.
func (o *Orchestrator) Refresh(ctx context.Context, name string) error {
	e, err := o.lookup(name)
	if err != nil {
		return err
	}
	return e.client.Refresh(ctx)
}

// RefreshAll asks every integration for a visibility refresh and returns
// how many started one. Clients rate-limit these themselves and reconnect
// instead when their connection was lost.
func (o *Orchestrator) RefreshAll() int {
	n := 0
	for _, e := range o.snapshotEntries() {
		if e.client.RefreshNow() {
			n++
		}
	}
	logging.Debug().Int("refreshed", n).Msg("[orchestrator] Visibility refresh")
	return n
}

// Snapshot returns the current snapshot of a named integration.
func (o *Orchestrator) Snapshot(name string) (any, bool, error) {
	e, err := o.lookup(name)
	if err != nil {
		return nil, false, err
	}
	snap, ok := e.client.SnapshotAny()
	return snap, ok, nil
}

// client returns the running client of a named integration.
func (o *Orchestrator) client(name string) (Integration, error) {
	e, err := o.lookup(name)
	if err != nil {
		return nil, err
	}
	return e.client, nil
}

// sectionHash fingerprints a config section together with the proxy
// routing that the client's transport depends on.
func sectionHash(proxy config.ProxyConfig, section any) (uint64, error) {
	payload, err := json.Marshal(struct {
		Mode     string        `json:"mode"`
		Endpoint string        `json:"endpoint"`
		Timeout  time.Duration `json:"timeout"`
		Section  any           `json:"section"`
	}{proxy.Mode, proxy.Endpoint, proxy.Timeout, section})
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(payload), nil
}

// transportFor picks how clients reach their services.
func transportFor(p config.ProxyConfig) integration.Transport {
	if p.Mode == "proxy" {
		return integration.NewProxyTransport(p.Endpoint, p.Timeout)
	}
	return integration.NewDirectTransport(p.Timeout)
}

func (o *Orchestrator) clientOptions(name string) integration.Options {
	return integration.Options{Name: name, Clock: o.opts.Clock}
}
