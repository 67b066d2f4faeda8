// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package events

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
)

// Broadcaster receives decoded events. The websocket hub implements it.
type Broadcaster interface {
	BroadcastSnapshot(ev SnapshotEvent)
	BroadcastStatus(ev StatusEvent)
}

// Bridge forwards bus events to a Broadcaster. It implements
// suture.Service.
type Bridge struct {
	bus    *Bus
	sink   Broadcaster
	logger watermill.LoggerAdapter

	received  atomic.Int64
	forwarded atomic.Int64
	malformed atomic.Int64
}

// BridgeStats holds runtime counters.
type BridgeStats struct {
	Received  int64
	Forwarded int64
	Malformed int64
}

// NewBridge creates a bridge from bus to sink.
func NewBridge(bus *Bus, sink Broadcaster, logger watermill.LoggerAdapter) (*Bridge, error) {
	if bus == nil {
		return nil, fmt.Errorf("bus required")
	}
	if sink == nil {
		return nil, fmt.Errorf("broadcaster required")
	}
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}
	return &Bridge{bus: bus, sink: sink, logger: logger}, nil
}

// Serve subscribes to both topics and forwards until ctx is canceled.
func (b *Bridge) Serve(ctx context.Context) error {
	snapshots, err := b.bus.Subscribe(ctx, TopicSnapshots)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicSnapshots, err)
	}
	status, err := b.bus.Subscribe(ctx, TopicStatus)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicStatus, err)
	}
	b.logger.Info("Event bridge started", nil)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-snapshots:
			if !ok {
				return b.closedErr(ctx)
			}
			b.handleSnapshot(msg)
		case msg, ok := <-status:
			if !ok {
				return b.closedErr(ctx)
			}
			b.handleStatus(msg)
		}
	}
}

func (b *Bridge) closedErr(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return ErrBusClosed
}

// handleSnapshot always acks: a broadcast failure must not cause redelivery.
func (b *Bridge) handleSnapshot(msg *message.Message) {
	defer msg.Ack()
	b.received.Add(1)

	var ev SnapshotEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil || ev.Integration == "" {
		b.malformed.Add(1)
		b.logger.Error("Failed to parse snapshot event", err, watermill.LogFields{"message_uuid": msg.UUID})
		return
	}
	b.sink.BroadcastSnapshot(ev)
	b.forwarded.Add(1)
}

func (b *Bridge) handleStatus(msg *message.Message) {
	defer msg.Ack()
	b.received.Add(1)

	var ev StatusEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		b.malformed.Add(1)
		b.logger.Error("Failed to parse status event", err, watermill.LogFields{"message_uuid": msg.UUID})
		return
	}
	b.sink.BroadcastStatus(ev)
	b.forwarded.Add(1)
}

// Stats returns current counters.
func (b *Bridge) Stats() BridgeStats {
	return BridgeStats{
		Received:  b.received.Load(),
		Forwarded: b.forwarded.Load(),
		Malformed: b.malformed.Load(),
	}
}

// String names the service in supervisor logs.
func (b *Bridge) String() string { return "event-bridge" }
