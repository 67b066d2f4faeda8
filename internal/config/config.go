// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package config

import (
	"fmt"
	"time"
)

// Config is the complete backend configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Security SecurityConfig `koanf:"security"`
	Proxy    ProxyConfig    `koanf:"proxy"`

	HomeAssistant HomeAssistantConfig `koanf:"homeassistant"`
	UniFi         UniFiConfig         `koanf:"unifi"`
	Tautulli      TautulliConfig      `koanf:"tautulli"`
	Sonarr        SonarrConfig        `koanf:"sonarr"`
	DNSFilter     DNSFilterConfig     `koanf:"dnsfilter"`
	Proxmox       ProxmoxConfig       `koanf:"proxmox"`
	Weather       WeatherConfig       `koanf:"weather"`
	UptimeKuma    UptimeKumaConfig    `koanf:"uptimekuma"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// SecurityConfig holds CORS and rate limiting for the HTTP API.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"min=1s"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// ProxyConfig controls the /api/proxy pass-through and how integration
// clients reach their services.
//
// Mode "direct" calls services straight from the backend. Mode "proxy" routes
// every call through Endpoint using the url/headers/cookie/apiKey/token query
// convention, which is useful when another instance sits closer to the LAN.
type ProxyConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Mode           string        `koanf:"mode" validate:"oneof=direct proxy"`
	Endpoint       string        `koanf:"endpoint" validate:"omitempty,baseurl"`
	Timeout        time.Duration `koanf:"timeout" validate:"min=1s"`
	MaxBufferBytes int64         `koanf:"max_buffer_bytes" validate:"min=1024"`
}

// HomeAssistantConfig configures the Home Assistant websocket client.
type HomeAssistantConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url" validate:"omitempty,baseurl"`
	Token   string `koanf:"token"`
}

// UniFiConfig configures the UniFi Network controller client.
type UniFiConfig struct {
	Enabled      bool          `koanf:"enabled"`
	URL          string        `koanf:"url" validate:"omitempty,baseurl"`
	Variant      string        `koanf:"variant" validate:"oneof=selfhosted udm"`
	Site         string        `koanf:"site"`
	AuthMode     string        `koanf:"auth_mode" validate:"oneof=cookie apikey"`
	Username     string        `koanf:"username"`
	Password     string        `koanf:"password"`
	APIKey       string        `koanf:"api_key"`
	PollInterval time.Duration `koanf:"poll_interval" validate:"min=1s"`
}

// TautulliConfig configures the Tautulli client.
type TautulliConfig struct {
	Enabled      bool          `koanf:"enabled"`
	URL          string        `koanf:"url" validate:"omitempty,baseurl"`
	APIKey       string        `koanf:"api_key"`
	PollInterval time.Duration `koanf:"poll_interval" validate:"min=1s"`
	// RequestsPerSecond paces outbound calls; 0 disables pacing.
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gte=0"`
}

// SonarrConfig configures the Sonarr calendar client.
type SonarrConfig struct {
	Enabled      bool          `koanf:"enabled"`
	URL          string        `koanf:"url" validate:"omitempty,baseurl"`
	APIKey       string        `koanf:"api_key"`
	PollInterval time.Duration `koanf:"poll_interval" validate:"min=1s"`
	DaysAhead    int           `koanf:"days_ahead" validate:"min=1,max=90"`
}

// DNSFilterConfig configures the Pi-hole / AdGuard Home client.
type DNSFilterConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Backend      string        `koanf:"backend" validate:"oneof=auto pihole5 pihole6 adguard"`
	URL          string        `koanf:"url" validate:"omitempty,baseurl"`
	Username     string        `koanf:"username"`
	Password     string        `koanf:"password"`
	APIToken     string        `koanf:"api_token"`
	PollInterval time.Duration `koanf:"poll_interval" validate:"min=1s"`
}

// ProxmoxConfig configures the Proxmox VE client.
type ProxmoxConfig struct {
	Enabled      bool          `koanf:"enabled"`
	URL          string        `koanf:"url" validate:"omitempty,baseurl"`
	TokenID      string        `koanf:"token_id"`
	TokenSecret  string        `koanf:"token_secret"`
	PollInterval time.Duration `koanf:"poll_interval" validate:"min=1s"`
}

// WeatherConfig configures the multi-location weather client.
type WeatherConfig struct {
	Enabled      bool              `koanf:"enabled"`
	PollInterval time.Duration     `koanf:"poll_interval" validate:"min=1s"`
	GeocodeTTL   time.Duration     `koanf:"geocode_ttl" validate:"min=1m"`
	Locations    []WeatherLocation `koanf:"locations" validate:"dive"`
}

// WeatherLocation is one configured place.
type WeatherLocation struct {
	ID          string  `koanf:"id"`
	Name        string  `koanf:"name"`
	Provider    string  `koanf:"provider" validate:"omitempty,oneof=openweathermap custom"`
	APIKey      string  `koanf:"api_key"`
	City        string  `koanf:"city"`
	Lat         float64 `koanf:"lat" validate:"latitude"`
	Lon         float64 `koanf:"lon" validate:"longitude"`
	Units       string  `koanf:"units" validate:"omitempty,oneof=metric imperial standard"`
	URLTemplate string  `koanf:"url_template"`
}

// UptimeKumaConfig configures the Uptime Kuma status page client.
type UptimeKumaConfig struct {
	Enabled      bool          `koanf:"enabled"`
	URL          string        `koanf:"url" validate:"omitempty,baseurl"`
	Slug         string        `koanf:"slug" validate:"omitempty,slug"`
	PollInterval time.Duration `koanf:"poll_interval" validate:"min=1s"`
}

// EnabledIntegrations lists the names of enabled integration sections.
func (c *Config) EnabledIntegrations() []string {
	var names []string
	add := func(enabled bool, name string) {
		if enabled {
			names = append(names, name)
		}
	}
	add(c.HomeAssistant.Enabled, "homeassistant")
	add(c.UniFi.Enabled, "unifi")
	add(c.Tautulli.Enabled, "tautulli")
	add(c.Sonarr.Enabled, "sonarr")
	add(c.DNSFilter.Enabled, "dnsfilter")
	add(c.Proxmox.Enabled, "proxmox")
	add(c.Weather.Enabled, "weather")
	add(c.UptimeKuma.Enabled, "uptimekuma")
	return names
}
