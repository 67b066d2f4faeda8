// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package homeassistant

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Config holds the Home Assistant connection parameters.
type Config struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// Entity is one Home Assistant entity state.
type Entity struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

// Domain returns the part of the entity id before the dot ("light").
func (e Entity) Domain() string {
	domain, _, _ := strings.Cut(e.EntityID, ".")
	return domain
}

// FriendlyName returns the friendly_name attribute, or the entity id.
func (e Entity) FriendlyName() string {
	if name, ok := e.Attributes["friendly_name"].(string); ok && name != "" {
		return name
	}
	return e.EntityID
}

// Snapshot is the entity map keyed by entity id.
type Snapshot struct {
	Entities map[string]Entity `json:"entities"`
}

// Entity looks up one entity.
func (s Snapshot) Entity(id string) (Entity, bool) {
	e, ok := s.Entities[id]
	return e, ok
}

// Wire message types of the websocket API.
const (
	msgAuthRequired = "auth_required"
	msgAuth         = "auth"
	msgAuthOK       = "auth_ok"
	msgAuthInvalid  = "auth_invalid"
	msgResult       = "result"
	msgEvent        = "event"
	msgPing         = "ping"
	msgPong         = "pong"

	cmdSubscribeEvents = "subscribe_events"
	cmdGetStates       = "get_states"
	cmdCallService     = "call_service"

	eventStateChanged = "state_changed"
)

// inbound covers every message the server sends.
type inbound struct {
	ID        int64           `json:"id,omitempty"`
	Type      string          `json:"type"`
	Success   bool            `json:"success,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *resultError    `json:"error,omitempty"`
	Event     *event          `json:"event,omitempty"`
	HAVersion string          `json:"ha_version,omitempty"`
	Message   string          `json:"message,omitempty"`
}

type resultError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type event struct {
	EventType string          `json:"event_type"`
	Data      stateChangeData `json:"data"`
}

type stateChangeData struct {
	EntityID string  `json:"entity_id"`
	NewState *Entity `json:"new_state"`
}

type authMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

type command struct {
	ID          int64          `json:"id"`
	Type        string         `json:"type"`
	EventType   string         `json:"event_type,omitempty"`
	Domain      string         `json:"domain,omitempty"`
	Service     string         `json:"service,omitempty"`
	ServiceData map[string]any `json:"service_data,omitempty"`
	Target      *target        `json:"target,omitempty"`
}

type target struct {
	EntityID string `json:"entity_id"`
}
