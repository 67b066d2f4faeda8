// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

/*
Package api exposes the dashboard backend over HTTP using the chi router.

Routes:

	GET  /api/health                              liveness plus integration counts
	GET  /api/v1/integrations                     status table
	GET  /api/v1/integrations/{name}/snapshot     latest snapshot of one integration
	POST /api/v1/integrations/{name}/refresh      immediate refresh
	POST /api/v1/visibility                       tab became visible, refresh everything
	POST /api/v1/homeassistant/services/{action}  toggle, turn_on, turn_off, scene
	POST /api/v1/unifi/speedtest                  start a gateway speed test
	GET  /api/v1/unifi/speedtest                  latest speed test result
	POST /api/v1/weather/locations/{id}/coordinates
	GET  /api/v1/ws                               dashboard websocket
	*    /api/proxy                               same-origin relay (when enabled)
	GET  /metrics                                 Prometheus exposition

JSON endpoints answer with the APIResponse envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "..."}}
	{"success": false, "error": {"code": "NOT_FOUND", "message": "..."}}

Integration errors map to statuses by taxonomy: unknown integration 404,
disabled 409, not connected 503, upstream failures 502.
*/
package api
