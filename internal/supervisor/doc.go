// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

/*
Package supervisor runs the long-lived parts of the backend under a suture v4
supervisor tree.

	RootSupervisor ("ultrawide")
	├── "event-layer"
	│   ├── websocket-hub        (*websocket.Hub)
	│   └── event-bridge         (*events.Bridge)
	├── "integration-layer"
	│   ├── orchestrator         (*orchestrator.Orchestrator)
	│   └── config-watcher       (services.ConfigWatchService, when a file is used)
	└── "api-layer"
	    └── http-server          (services.HTTPServerService)

The hub, bridge and orchestrator implement suture.Service directly
(Serve(ctx) error plus String). A crashed service is restarted with
suture's backoff; the other layers keep running, so the HTTP API stays up
while a panicking bridge is restarted.

Supervisor events are logged through sutureslog into the zerolog-backed
slog handler from internal/logging:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddEventService(hub)
	tree.AddEventService(bridge)
	tree.AddIntegrationService(orch)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	errCh := tree.ServeBackground(ctx)

Subpackage services holds adapters for components that do not have a
Serve(ctx) method of their own.
*/
package supervisor
