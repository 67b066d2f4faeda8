// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Topics.
const (
	TopicSnapshots = "integration.snapshots"
	TopicStatus    = "integration.status"
)

// SnapshotEvent is one integration's latest snapshot, already encoded.
type SnapshotEvent struct {
	Integration string          `json:"integration"`
	Payload     json.RawMessage `json:"payload"`
	At          time.Time       `json:"at"`
}

// StatusEvent is the encoded connection table of every integration.
type StatusEvent struct {
	Payload json.RawMessage `json:"payload"`
	At      time.Time       `json:"at"`
}

// NewSnapshotEvent encodes snapshot for integration.
func NewSnapshotEvent(integration string, snapshot any, at time.Time) (SnapshotEvent, error) {
	if integration == "" {
		return SnapshotEvent{}, fmt.Errorf("snapshot event: integration name required")
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return SnapshotEvent{}, fmt.Errorf("encode %s snapshot: %w", integration, err)
	}
	return SnapshotEvent{Integration: integration, Payload: payload, At: at.UTC()}, nil
}

// NewStatusEvent encodes a status table.
func NewStatusEvent(status any, at time.Time) (StatusEvent, error) {
	payload, err := json.Marshal(status)
	if err != nil {
		return StatusEvent{}, fmt.Errorf("encode status: %w", err)
	}
	return StatusEvent{Payload: payload, At: at.UTC()}, nil
}
