// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

/*
Package main is the entry point of the Ultrawide backend.

Ultrawide drives an ultrawide home-lab dashboard. It keeps live connections
to Home Assistant, UniFi, Tautulli, Sonarr, Pi-hole/AdGuard Home, Proxmox VE,
weather providers and Uptime Kuma, normalizes their data into snapshots and
pushes those to browsers over a websocket.

# Application Architecture

	config (koanf) ──► orchestrator ──► integration clients
	                        │
	                        ▼ snapshots, status
	                 event bus (watermill gochannel)
	                        │
	                        ▼
	                 event bridge ──► websocket hub ──► browsers
	                                       ▲
	HTTP API (chi) ────────────────────────┘

Everything long-lived runs under the suture tree from internal/supervisor.

# Configuration

Defaults, then an optional YAML file (CONFIG_PATH, ./config.yaml or
/etc/ultrawide/config.yaml), then environment variables:

	export HOMEASSISTANT_ENABLED=true
	export HOMEASSISTANT_URL=http://homeassistant.lan:8123
	export HOMEASSISTANT_TOKEN=long-lived-token
	export TAUTULLI_ENABLED=true
	export TAUTULLI_URL=http://tautulli.lan:8181
	export TAUTULLI_API_KEY=your-api-key
	./ultrawide

When a config file is in use it is watched; edits reconnect only the
integrations whose section changed.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains, the
hub closes websocket clients, every integration disconnects and the event
bus is closed.
*/
package main
