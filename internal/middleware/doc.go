// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

/*
Package middleware provides chi-compatible HTTP middleware shared by the API
router.

  - RequestID: X-Request-ID propagation plus request and correlation ids in
    the logging context
  - PrometheusMetrics: request count and latency per route pattern

Both wrap the ResponseWriter with chi's WrapResponseWriter so websocket
upgrades (http.Hijacker) and streamed proxy bodies (http.Flusher) keep
working underneath them.
*/
package middleware
