// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package integration

import (
	"slices"
	"sync"

	"github.com/tomtom215/ultrawide/internal/logging"
	"github.com/tomtom215/ultrawide/internal/metrics"
)

// subscriberSet delivers snapshots to callbacks in registration order.
// Deliveries are serialized with registration so a late subscriber never
// sees its replay after a newer snapshot.
type subscriberSet[S any] struct {
	name string

	// deliverMu orders replays and notifications.
	deliverMu sync.Mutex

	mu     sync.Mutex
	nextID uint64
	subs   []subscriber[S]
}

type subscriber[S any] struct {
	id uint64
	fn func(S)
}

func (s *subscriberSet[S]) add(fn func(S), current func() (S, bool)) func() {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber[S]{id: id, fn: fn})
	metrics.IntegrationSubscribers.WithLabelValues(s.name).Set(float64(len(s.subs)))
	s.mu.Unlock()

	if snap, ok := current(); ok {
		s.call(fn, snap)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.subs = slices.DeleteFunc(s.subs, func(sub subscriber[S]) bool { return sub.id == id })
			metrics.IntegrationSubscribers.WithLabelValues(s.name).Set(float64(len(s.subs)))
			s.mu.Unlock()
		})
	}
}

func (s *subscriberSet[S]) notify(snap S) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	fns := make([]func(S), 0, len(s.subs))
	for _, sub := range s.subs {
		fns = append(fns, sub.fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		s.call(fn, snap)
	}
}

func (s *subscriberSet[S]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// call isolates one subscriber's panic from the rest.
func (s *subscriberSet[S]) call(fn func(S), snap S) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Str("integration", s.name).Msg("[" + s.name + "] Subscriber panicked")
		}
	}()
	fn(snap)
}
