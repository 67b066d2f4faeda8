// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

/*
Package events carries integration updates from the orchestrator to the
dashboard websocket hub.

The bus is an in-memory watermill gochannel pub/sub. It is not durable: a
message published while nobody is subscribed is dropped, and a restart
starts from the next refresh. Two topics exist:

	TopicSnapshots  SnapshotEvent, one per successful refresh
	TopicStatus     StatusEvent, the per-integration connection table

Bridge is a suture service that subscribes to both topics and hands each
decoded event to a Broadcaster (the websocket hub). Malformed messages are
acked and counted so they are never redelivered.
*/
package events
