// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

/*
Package orchestrator owns the integration clients and keeps them in line
with the configuration.

Apply compares each integration's config section with what is running. The
comparison is an xxhash of the section's JSON encoding together with the
proxy routing settings:

	unchanged hash             nothing happens
	changed, enabled           old client disconnected, new client connected
	disabled                   client disconnected and dropped

Clients are rebuilt rather than reconnected so poll intervals and the
transport (direct or through the proxy endpoint) always match the config.
Connects run in parallel. A client whose first Connect failed with a
network or malformed-response error is retried on RetryInterval;
configuration and authentication failures wait for a config change.

Every snapshot a client produces is published to the event bus. Serve also
publishes the status table whenever a state or error changes.
*/
package orchestrator
