// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package orchestrator

import (
	"context"
	"fmt"

	"github.com/tomtom215/ultrawide/internal/clients/dnsfilter"
	"github.com/tomtom215/ultrawide/internal/clients/homeassistant"
	"github.com/tomtom215/ultrawide/internal/clients/proxmox"
	"github.com/tomtom215/ultrawide/internal/clients/sonarr"
	"github.com/tomtom215/ultrawide/internal/clients/tautulli"
	"github.com/tomtom215/ultrawide/internal/clients/unifi"
	"github.com/tomtom215/ultrawide/internal/clients/uptimekuma"
	"github.com/tomtom215/ultrawide/internal/clients/weather"
	"github.com/tomtom215/ultrawide/internal/config"
	"github.com/tomtom215/ultrawide/internal/integration"
)

type connectFunc func(ctx context.Context) (integration.ConnectResult, error)

// factory describes how one integration is configured and built. A client
// is rebuilt only when its build inputs change; any other change to its
// section reconnects the same client with the new config.
type factory struct {
	name    string
	enabled func(cfg *config.Config) bool
	section func(cfg *config.Config) any
	inputs  func(cfg *config.Config) any
	build   func(cfg *config.Config, opts integration.Options, t integration.Transport, o *Orchestrator) Integration
	bind    func(cfg *config.Config, client Integration) connectFunc
}

// connector is a client that can Connect with its own config type.
type connector[C any] interface {
	Integration
	Connect(ctx context.Context, cfg C) (integration.ConnectResult, error)
}

func bind[C any](client Integration, cfg C) connectFunc {
	conn := client.(connector[C])
	return func(ctx context.Context) (integration.ConnectResult, error) {
		return conn.Connect(ctx, cfg)
	}
}

// factories in display order.
var factories = []factory{
	{
		name:    homeassistant.Name,
		enabled: func(c *config.Config) bool { return c.HomeAssistant.Enabled },
		section: func(c *config.Config) any { return c.HomeAssistant },
		inputs:  func(c *config.Config) any { return nil },
		build: func(_ *config.Config, opts integration.Options, _ integration.Transport, _ *Orchestrator) Integration {
			return homeassistant.New(opts)
		},
		bind: func(c *config.Config, client Integration) connectFunc {
			return bind(client, homeassistant.Config{URL: c.HomeAssistant.URL, Token: c.HomeAssistant.Token})
		},
	},
	{
		name:    unifi.Name,
		enabled: func(c *config.Config) bool { return c.UniFi.Enabled },
		section: func(c *config.Config) any { return c.UniFi },
		inputs:  func(c *config.Config) any { return c.UniFi.PollInterval },
		build: func(c *config.Config, opts integration.Options, t integration.Transport, _ *Orchestrator) Integration {
			opts.PollInterval = c.UniFi.PollInterval
			return unifi.New(opts, t)
		},
		bind: func(c *config.Config, client Integration) connectFunc {
			u := c.UniFi
			return bind(client, unifi.Config{
				URL:      u.URL,
				Variant:  u.Variant,
				Site:     u.Site,
				AuthMode: u.AuthMode,
				Username: u.Username,
				Password: u.Password,
				APIKey:   u.APIKey,
			})
		},
	},
	{
		name:    tautulli.Name,
		enabled: func(c *config.Config) bool { return c.Tautulli.Enabled },
		section: func(c *config.Config) any { return c.Tautulli },
		inputs: func(c *config.Config) any {
			return []any{c.Tautulli.PollInterval, c.Tautulli.RequestsPerSecond}
		},
		build: func(c *config.Config, opts integration.Options, t integration.Transport, _ *Orchestrator) Integration {
			opts.PollInterval = c.Tautulli.PollInterval
			return tautulli.New(opts, t, c.Tautulli.RequestsPerSecond)
		},
		bind: func(c *config.Config, client Integration) connectFunc {
			return bind(client, tautulli.Config{URL: c.Tautulli.URL, APIKey: c.Tautulli.APIKey})
		},
	},
	{
		name:    sonarr.Name,
		enabled: func(c *config.Config) bool { return c.Sonarr.Enabled },
		section: func(c *config.Config) any { return c.Sonarr },
		inputs:  func(c *config.Config) any { return c.Sonarr.PollInterval },
		build: func(c *config.Config, opts integration.Options, t integration.Transport, _ *Orchestrator) Integration {
			opts.PollInterval = c.Sonarr.PollInterval
			return sonarr.New(opts, t)
		},
		bind: func(c *config.Config, client Integration) connectFunc {
			return bind(client, sonarr.Config{URL: c.Sonarr.URL, APIKey: c.Sonarr.APIKey, DaysAhead: c.Sonarr.DaysAhead})
		},
	},
	{
		name:    dnsfilter.Name,
		enabled: func(c *config.Config) bool { return c.DNSFilter.Enabled },
		section: func(c *config.Config) any { return c.DNSFilter },
		inputs:  func(c *config.Config) any { return c.DNSFilter.PollInterval },
		build: func(c *config.Config, opts integration.Options, t integration.Transport, _ *Orchestrator) Integration {
			opts.PollInterval = c.DNSFilter.PollInterval
			return dnsfilter.New(opts, t)
		},
		bind: func(c *config.Config, client Integration) connectFunc {
			d := c.DNSFilter
			return bind(client, dnsfilter.Config{
				Backend:  dnsfilter.Backend(d.Backend),
				URL:      d.URL,
				Username: d.Username,
				Password: d.Password,
				APIToken: d.APIToken,
			})
		},
	},
	{
		name:    proxmox.Name,
		enabled: func(c *config.Config) bool { return c.Proxmox.Enabled },
		section: func(c *config.Config) any { return c.Proxmox },
		inputs:  func(c *config.Config) any { return c.Proxmox.PollInterval },
		build: func(c *config.Config, opts integration.Options, t integration.Transport, _ *Orchestrator) Integration {
			opts.PollInterval = c.Proxmox.PollInterval
			return proxmox.New(opts, t)
		},
		bind: func(c *config.Config, client Integration) connectFunc {
			p := c.Proxmox
			return bind(client, proxmox.Config{URL: p.URL, TokenID: p.TokenID, TokenSecret: p.TokenSecret})
		},
	},
	{
		name:    weather.Name,
		enabled: func(c *config.Config) bool { return c.Weather.Enabled },
		section: func(c *config.Config) any { return c.Weather },
		inputs:  func(c *config.Config) any { return c.Weather.PollInterval },
		build: func(c *config.Config, opts integration.Options, t integration.Transport, o *Orchestrator) Integration {
			opts.PollInterval = c.Weather.PollInterval
			return weather.New(opts, t, weather.WithGeocodeCache(o.geocodes))
		},
		bind: func(c *config.Config, client Integration) connectFunc {
			return bind(client, weatherConfig(c.Weather))
		},
	},
	{
		name:    uptimekuma.Name,
		enabled: func(c *config.Config) bool { return c.UptimeKuma.Enabled },
		section: func(c *config.Config) any { return c.UptimeKuma },
		inputs:  func(c *config.Config) any { return c.UptimeKuma.PollInterval },
		build: func(c *config.Config, opts integration.Options, t integration.Transport, _ *Orchestrator) Integration {
			opts.PollInterval = c.UptimeKuma.PollInterval
			return uptimekuma.New(opts, t)
		},
		bind: func(c *config.Config, client Integration) connectFunc {
			return bind(client, uptimekuma.Config{URL: c.UptimeKuma.URL, Slug: c.UptimeKuma.Slug})
		},
	},
}

func weatherConfig(w config.WeatherConfig) weather.Config {
	locs := make([]weather.Location, 0, len(w.Locations))
	for _, l := range w.Locations {
		locs = append(locs, weather.Location{
			ID:          l.ID,
			Name:        l.Name,
			Provider:    l.Provider,
			APIKey:      l.APIKey,
			City:        l.City,
			Lat:         l.Lat,
			Lon:         l.Lon,
			Units:       l.Units,
			URLTemplate: l.URLTemplate,
		})
	}
	return weather.Config{Locations: locs}
}

func knownIntegration(name string) bool {
	for _, f := range factories {
		if f.name == name {
			return true
		}
	}
	return false
}

// Names lists every integration in display order.
func Names() []string {
	names := make([]string, len(factories))
	for i, f := range factories {
		names[i] = f.name
	}
	return names
}

func typed[T Integration](o *Orchestrator, name string) (T, error) {
	var zero T
	c, err := o.client(name)
	if err != nil {
		return zero, err
	}
	t, ok := c.(T)
	if !ok {
		return zero, fmt.Errorf("%s client has unexpected type %T", name, c)
	}
	return t, nil
}

// HomeAssistant returns the running Home Assistant client for commands.
func (o *Orchestrator) HomeAssistant() (*homeassistant.Client, error) {
	return typed[*homeassistant.Client](o, homeassistant.Name)
}

// UniFi returns the running UniFi client for speed tests.
func (o *Orchestrator) UniFi() (*unifi.Client, error) {
	return typed[*unifi.Client](o, unifi.Name)
}

// Weather returns the running weather client for coordinate overrides.
func (o *Orchestrator) Weather() (*weather.Client, error) {
	return typed[*weather.Client](o, weather.Name)
}
