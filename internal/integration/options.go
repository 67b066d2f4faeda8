// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package integration

import "time"

// Default timeouts shared by all clients.
const (
	DefaultConnectTimeout   = 10 * time.Second
	DefaultFetchTimeout     = 15 * time.Second
	DefaultVisibilityWindow = 2 * time.Second
	DefaultBreakerThreshold = 5
	DefaultBreakerTimeout   = 2 * time.Minute
)

// ReconnectPolicy controls what happens after the connection is lost.
//
// The zero value retries on the next poll tick for as long as the client
// stays connected-in-intent, gated by the circuit breaker. A policy with
// MaxAttempts > 0 runs a dedicated backoff loop instead: attempt n waits
// Step*n, capped at Max, and the loop gives up after MaxAttempts failures.
type ReconnectPolicy struct {
	MaxAttempts int
	Step        time.Duration
	Max         time.Duration
}

// Backoff returns a bounded linear backoff policy.
func Backoff(maxAttempts int, step, maxDelay time.Duration) ReconnectPolicy {
	return ReconnectPolicy{MaxAttempts: maxAttempts, Step: step, Max: maxDelay}
}

// Delay returns the wait before the given 1-based attempt.
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.Step * time.Duration(attempt)
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	return d
}

// TotalBudget is the summed delay of every attempt, the longest a client
// waits before giving up.
func (p ReconnectPolicy) TotalBudget() time.Duration {
	var total time.Duration
	for i := 1; i <= p.MaxAttempts; i++ {
		total += p.Delay(i)
	}
	return total
}

func (p ReconnectPolicy) usesBackoff() bool {
	return p.MaxAttempts > 0
}

// Options configures a Client.
type Options struct {
	// Name identifies the integration in logs, metrics and API payloads.
	Name string

	// PollInterval is the refresh period. Zero disables polling; push-based
	// adapters publish snapshots themselves.
	PollInterval time.Duration

	ConnectTimeout time.Duration
	FetchTimeout   time.Duration

	// VisibilityWindow is the minimum spacing between visibility refreshes.
	VisibilityWindow time.Duration

	Reconnect ReconnectPolicy

	// BreakerThreshold consecutive failed refreshes open the breaker for
	// BreakerTimeout, during which poll ticks are skipped.
	BreakerThreshold uint32
	BreakerTimeout   time.Duration

	Clock Clock
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.VisibilityWindow <= 0 {
		o.VisibilityWindow = DefaultVisibilityWindow
	}
	if o.BreakerThreshold == 0 {
		o.BreakerThreshold = DefaultBreakerThreshold
	}
	if o.BreakerTimeout <= 0 {
		o.BreakerTimeout = DefaultBreakerTimeout
	}
	if o.Clock == nil {
		o.Clock = RealClock{}
	}
	return o
}
