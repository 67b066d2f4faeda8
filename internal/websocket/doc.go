// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

/*
Package websocket pushes integration updates to connected dashboards.

The hub owns the client set and a cache of the newest snapshot per
integration plus the newest status table. Each client has two goroutines:
readPump handles inbound messages and writePump serializes outbound ones
and sends keepalive pings.

Outbound message types:

	snapshot  {integration, snapshot, at}   one integration refreshed
	status    {integrations, at}            connection table changed
	pong      reply to a client ping

Inbound message types:

	ping                        answered with pong
	visibility {visible: bool}  visible=true triggers the OnVisible callback

A client that connects late receives the cached status and then every
cached snapshot, ordered by integration name, before any live broadcast.
Snapshots older than the cached one for the same integration are dropped.

Usage:

	hub := websocket.NewHub()
	hub.OnVisible(orchestrator.RefreshAll)
	supervisor.Add(hub)

	conn, _ := upgrader.Upgrade(w, r, nil)
	client := websocket.NewClient(hub, conn)
	hub.Register <- client
	client.Start()
*/
package websocket
