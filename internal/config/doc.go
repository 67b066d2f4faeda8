// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

/*
Package config loads the dashboard backend configuration.

Sources are layered with koanf, later layers overriding earlier ones:

 1. Built-in defaults (defaultConfig)
 2. Optional YAML file (CONFIG_PATH, then config.yaml, config.yml,
    /etc/ultrawide/config.yaml)
 3. Environment variables, mapped explicitly by envTransformFunc

Each integration has its own section with an Enabled flag. Sections are
compared by content hash in the orchestrator, so editing one section of the
file only reconnects that integration.

Credentials that an enabled integration still lacks are not a load error: the
integration reports a configuration error through its status instead, which
keeps the other integrations running.

Example config.yaml:

	server:
	  port: 8080
	homeassistant:
	  enabled: true
	  url: http://homeassistant.local:8123
	  token: eyJhbGciOi...
	weather:
	  enabled: true
	  locations:
	    - id: home
	      city: Berlin
	      api_key: abc123
	      units: metric
*/
package config
