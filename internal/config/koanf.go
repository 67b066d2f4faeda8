// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/ultrawide/config.yaml",
	"/etc/ultrawide/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    0, // streamed proxy responses and websockets outlive any fixed deadline
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
		},
		Proxy: ProxyConfig{
			Enabled:        true,
			Mode:           "direct",
			Timeout:        30 * time.Second,
			MaxBufferBytes: 16 << 20,
		},
		HomeAssistant: HomeAssistantConfig{},
		UniFi: UniFiConfig{
			Variant:      "selfhosted",
			Site:         "default",
			AuthMode:     "cookie",
			PollInterval: 30 * time.Second,
		},
		Tautulli: TautulliConfig{
			PollInterval:      10 * time.Second,
			RequestsPerSecond: 5,
		},
		Sonarr: SonarrConfig{
			PollInterval: 5 * time.Minute,
			DaysAhead:    14,
		},
		DNSFilter: DNSFilterConfig{
			Backend:      "auto",
			PollInterval: 30 * time.Second,
		},
		Proxmox: ProxmoxConfig{
			PollInterval: 15 * time.Second,
		},
		Weather: WeatherConfig{
			PollInterval: 10 * time.Minute,
			GeocodeTTL:   24 * time.Hour,
		},
		UptimeKuma: UptimeKumaConfig{
			PollInterval: 30 * time.Second,
		},
	}
}

// LoadWithKoanf loads defaults, then the optional YAML file, then the
// environment, and validates the result.
func LoadWithKoanf() (*Config, error) {
	return loadFrom(FindConfigFile())
}

// LoadFile is LoadWithKoanf with an explicit file path; an empty path skips
// the file layer. Used by the hot-reload watcher.
func LoadFile(path string) (*Config, error) {
	return loadFrom(path)
}

func loadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// HOMEASSISTANT_TOKEN -> homeassistant.token
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// FindConfigFile returns CONFIG_PATH if it exists, else the first existing
// default path, else "".
func FindConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields splits comma-separated env values for slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Security
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	// Proxy
	"proxy_enabled":          "proxy.enabled",
	"proxy_mode":             "proxy.mode",
	"proxy_endpoint":         "proxy.endpoint",
	"proxy_timeout":          "proxy.timeout",
	"proxy_max_buffer_bytes": "proxy.max_buffer_bytes",

	// Home Assistant
	"homeassistant_enabled": "homeassistant.enabled",
	"homeassistant_url":     "homeassistant.url",
	"homeassistant_token":   "homeassistant.token",

	// UniFi
	"unifi_enabled":       "unifi.enabled",
	"unifi_url":           "unifi.url",
	"unifi_variant":       "unifi.variant",
	"unifi_site":          "unifi.site",
	"unifi_auth_mode":     "unifi.auth_mode",
	"unifi_username":      "unifi.username",
	"unifi_password":      "unifi.password",
	"unifi_api_key":       "unifi.api_key",
	"unifi_poll_interval": "unifi.poll_interval",

	// Tautulli
	"tautulli_enabled":             "tautulli.enabled",
	"tautulli_url":                 "tautulli.url",
	"tautulli_api_key":             "tautulli.api_key",
	"tautulli_poll_interval":       "tautulli.poll_interval",
	"tautulli_requests_per_second": "tautulli.requests_per_second",

	// Sonarr
	"sonarr_enabled":       "sonarr.enabled",
	"sonarr_url":           "sonarr.url",
	"sonarr_api_key":       "sonarr.api_key",
	"sonarr_poll_interval": "sonarr.poll_interval",
	"sonarr_days_ahead":    "sonarr.days_ahead",

	// Pi-hole / AdGuard
	"dnsfilter_enabled":       "dnsfilter.enabled",
	"dnsfilter_backend":       "dnsfilter.backend",
	"dnsfilter_url":           "dnsfilter.url",
	"dnsfilter_username":      "dnsfilter.username",
	"dnsfilter_password":      "dnsfilter.password",
	"dnsfilter_api_token":     "dnsfilter.api_token",
	"dnsfilter_poll_interval": "dnsfilter.poll_interval",

	// Proxmox
	"proxmox_enabled":       "proxmox.enabled",
	"proxmox_url":           "proxmox.url",
	"proxmox_token_id":      "proxmox.token_id",
	"proxmox_token_secret":  "proxmox.token_secret",
	"proxmox_poll_interval": "proxmox.poll_interval",

	// Weather (locations come from the config file)
	"weather_enabled":       "weather.enabled",
	"weather_poll_interval": "weather.poll_interval",
	"weather_geocode_ttl":   "weather.geocode_ttl",

	// Uptime Kuma
	"uptimekuma_enabled":       "uptimekuma.enabled",
	"uptimekuma_url":           "uptimekuma.url",
	"uptimekuma_slug":          "uptimekuma.slug",
	"uptimekuma_poll_interval": "uptimekuma.poll_interval",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped variables return "" and are skipped so unrelated environment
// does not leak into the config.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Watcher reloads the configuration when the file changes.
type Watcher struct {
	provider *file.File
}

// WatchConfigFile calls onChange with a freshly loaded config each time path
// changes. Load failures go to onError and the previous config stays in use.
func WatchConfigFile(path string, onChange func(*Config), onError func(error)) (*Watcher, error) {
	provider := file.Provider(path)
	err := provider.Watch(func(event interface{}, err error) {
		if err != nil {
			onError(fmt.Errorf("config watch: %w", err))
			return
		}
		cfg, loadErr := LoadFile(path)
		if loadErr != nil {
			onError(loadErr)
			return
		}
		onChange(cfg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}
	return &Watcher{provider: provider}, nil
}

// Stop ends the file watch.
func (w *Watcher) Stop() error {
	return w.provider.Unwatch()
}
