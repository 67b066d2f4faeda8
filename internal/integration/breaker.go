// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package integration

import (
	"errors"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/ultrawide/internal/logging"
	"github.com/tomtom215/ultrawide/internal/metrics"
)

// newBreaker builds the per-generation circuit breaker that gates steady-state
// refreshes and next-tick reconnects. A permanently broken integration stops
// polling at full frequency once the breaker opens.
//
// Configuration errors and partial failures never count against the breaker.
func newBreaker[S any](opts Options) *gobreaker.CircuitBreaker[S] {
	name := opts.Name
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[S](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= opts.BreakerThreshold
			if trip {
				logging.Warn().
					Str("integration", name).
					Uint32("consecutive_failures", counts.ConsecutiveFailures).
					Dur("open_for", opts.BreakerTimeout).
					Msg("[CIRCUIT BREAKER] Opening circuit, polls paused")
			}
			return trip
		},
		IsSuccessful: func(err error) bool {
			var pf *PartialFailure
			return err == nil || errors.As(err, &pf) || IsConfiguration(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("integration", name).
				Str("from", breakerStateString(from)).
				Str("to", breakerStateString(to)).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, breakerStateString(from), breakerStateString(to)).Inc()
		},
	})
}

// isBreakerRejection reports whether the breaker refused to run the call.
func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func breakerStateFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func breakerStateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
