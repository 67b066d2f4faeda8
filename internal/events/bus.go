// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package events

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// DefaultBufferSize is the per-subscriber output buffer.
const DefaultBufferSize = 256

// ErrBusClosed is returned by Publish and Subscribe after Close.
var ErrBusClosed = errors.New("event bus closed")

// BusConfig configures the in-memory bus.
type BusConfig struct {
	// BufferSize is the per-subscriber channel buffer.
	BufferSize int64

	// Persistent keeps every message for late subscribers. Memory grows
	// without bound, so only tests set it.
	Persistent bool
}

// Bus publishes integration events over a watermill gochannel.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter
	closed atomic.Bool

	published atomic.Int64
}

// NewBus creates an in-memory bus. A nil logger uses watermill's std logger.
func NewBus(cfg BusConfig, logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: cfg.BufferSize,
			Persistent:          cfg.Persistent,
		}, logger),
		logger: logger,
	}
}

// PublishSnapshot publishes ev on TopicSnapshots.
func (b *Bus) PublishSnapshot(ev SnapshotEvent) error {
	return b.publish(TopicSnapshots, ev, ev.Integration)
}

// PublishStatus publishes ev on TopicStatus.
func (b *Bus) PublishStatus(ev StatusEvent) error {
	return b.publish(TopicStatus, ev, "")
}

func (b *Bus) publish(topic string, v any, integration string) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	if integration != "" {
		msg.Metadata.Set("integration", integration)
	}
	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	b.published.Add(1)
	return nil
}

// Subscribe returns the message channel for topic. The channel closes when
// ctx is canceled or the bus is closed. Every message must be acked.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if b.closed.Load() {
		return nil, ErrBusClosed
	}
	msgs, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil && b.closed.Load() {
		return nil, ErrBusClosed
	}
	return msgs, err
}

// Published reports how many events were handed to the pub/sub.
func (b *Bus) Published() int64 {
	return b.published.Load()
}

// Close stops the pub/sub and closes every subscription channel.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.pubsub.Close()
}
