// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package config

import (
	"errors"
	"fmt"

	"github.com/tomtom215/ultrawide/internal/validation"
)

// Validate checks field formats with struct tags, then the cross-field
// rules the tags cannot express.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	validators := []func() error{
		c.validateProxy,
		c.validateUniFi,
		c.validateProxmox,
		c.validateWeather,
	}
	var errs []error
	for _, validate := range validators {
		if err := validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Config) validateProxy() error {
	if c.Proxy.Mode == "proxy" && c.Proxy.Endpoint == "" {
		return fmt.Errorf("proxy.endpoint is required when proxy.mode is proxy")
	}
	return nil
}

func (c *Config) validateUniFi() error {
	if !c.UniFi.Enabled || c.UniFi.AuthMode != "apikey" {
		return nil
	}
	if c.UniFi.Variant != "udm" {
		return fmt.Errorf("unifi.auth_mode apikey requires unifi.variant udm")
	}
	return nil
}

func (c *Config) validateProxmox() error {
	if c.Proxmox.TokenID != "" && c.Proxmox.TokenSecret == "" {
		return fmt.Errorf("proxmox.token_secret is required when proxmox.token_id is set")
	}
	return nil
}

// validateWeather rejects duplicate location ids; ids key per-location
// results and errors in the snapshot.
func (c *Config) validateWeather() error {
	seen := make(map[string]struct{}, len(c.Weather.Locations))
	for i, loc := range c.Weather.Locations {
		id := loc.ID
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("weather.locations[%d]: duplicate id %q", i, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
