// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

// Package services adapts components without a Serve(ctx) method of their
// own to suture.Service: the HTTP server and the config file watcher.
package services
