// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Tautulli.PollInterval != 10*time.Second {
		t.Errorf("Tautulli.PollInterval = %v, want 10s", cfg.Tautulli.PollInterval)
	}
	if cfg.Sonarr.PollInterval != 5*time.Minute {
		t.Errorf("Sonarr.PollInterval = %v, want 5m", cfg.Sonarr.PollInterval)
	}
	if cfg.Proxmox.PollInterval != 15*time.Second {
		t.Errorf("Proxmox.PollInterval = %v, want 15s", cfg.Proxmox.PollInterval)
	}
	if cfg.Weather.PollInterval != 10*time.Minute {
		t.Errorf("Weather.PollInterval = %v, want 10m", cfg.Weather.PollInterval)
	}
	if cfg.UptimeKuma.PollInterval != 30*time.Second {
		t.Errorf("UptimeKuma.PollInterval = %v, want 30s", cfg.UptimeKuma.PollInterval)
	}
	if cfg.UniFi.Site != "default" {
		t.Errorf("UniFi.Site = %q, want default", cfg.UniFi.Site)
	}
	if len(cfg.EnabledIntegrations()) != 0 {
		t.Errorf("no integration should be enabled by default, got %v", cfg.EnabledIntegrations())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"HOMEASSISTANT_TOKEN", "homeassistant.token"},
		{"TAUTULLI_URL", "tautulli.url"},
		{"UNIFI_AUTH_MODE", "unifi.auth_mode"},
		{"HTTP_PORT", "server.port"},
		{"CORS_ORIGINS", "security.cors_origins"},
		{"PATH", ""},
		{"HOME", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestFindConfigFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	t.Setenv(ConfigPathEnvVar, path)
	if got := FindConfigFile(); got != path {
		t.Errorf("FindConfigFile() = %q, want %q", got, path)
	}

	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Chdir(t.TempDir())
	if got := FindConfigFile(); got != "" {
		t.Errorf("FindConfigFile() = %q, want empty", got)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
homeassistant:
  enabled: true
  url: http://homeassistant.local:8123
  token: abc
weather:
  enabled: true
  poll_interval: 15m
  locations:
    - id: home
      city: Berlin
      api_key: k
      units: metric
    - id: cabin
      lat: 61.5
      lon: 23.7
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if !cfg.HomeAssistant.Enabled || cfg.HomeAssistant.Token != "abc" {
		t.Errorf("HomeAssistant = %+v", cfg.HomeAssistant)
	}
	if cfg.Weather.PollInterval != 15*time.Minute {
		t.Errorf("Weather.PollInterval = %v", cfg.Weather.PollInterval)
	}
	if len(cfg.Weather.Locations) != 2 || cfg.Weather.Locations[1].Lat != 61.5 {
		t.Errorf("Weather.Locations = %+v", cfg.Weather.Locations)
	}
	if cfg.Tautulli.PollInterval != 10*time.Second {
		t.Errorf("unset sections keep defaults, Tautulli.PollInterval = %v", cfg.Tautulli.PollInterval)
	}
	want := []string{"homeassistant", "weather"}
	if got := cfg.EnabledIntegrations(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("EnabledIntegrations() = %v, want %v", got, want)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "tautulli:\n  enabled: true\n  url: http://file:8181\n  api_key: filekey\n")
	t.Setenv("TAUTULLI_URL", "http://env:8181")
	t.Setenv("CORS_ORIGINS", "http://a.lan, http://b.lan")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Tautulli.URL != "http://env:8181" {
		t.Errorf("Tautulli.URL = %q, env should win", cfg.Tautulli.URL)
	}
	if cfg.Tautulli.APIKey != "filekey" {
		t.Errorf("Tautulli.APIKey = %q, file value should remain", cfg.Tautulli.APIKey)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "http://b.lan" {
		t.Errorf("CORSOrigins = %v", cfg.Security.CORSOrigins)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "Port"},
		{"bad url", func(c *Config) { c.Sonarr.URL = "sonarr.lan" }, "URL"},
		{"bad slug", func(c *Config) { c.UptimeKuma.Slug = "My Page" }, "Slug"},
		{"bad backend", func(c *Config) { c.DNSFilter.Backend = "bind" }, "Backend"},
		{"poll too short", func(c *Config) { c.Tautulli.PollInterval = time.Millisecond }, "PollInterval"},
		{"proxy mode without endpoint", func(c *Config) { c.Proxy.Mode = "proxy" }, "proxy.endpoint"},
		{"unifi apikey on selfhosted", func(c *Config) {
			c.UniFi.Enabled = true
			c.UniFi.AuthMode = "apikey"
		}, "variant udm"},
		{"proxmox secret missing", func(c *Config) { c.Proxmox.TokenID = "root@pam!dash" }, "token_secret"},
		{"duplicate weather id", func(c *Config) {
			c.Weather.Locations = []WeatherLocation{{ID: "a"}, {ID: "a"}}
		}, "duplicate id"},
		{"bad latitude", func(c *Config) {
			c.Weather.Locations = []WeatherLocation{{ID: "a", Lat: 120}}
		}, "latitude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile_InvalidFails(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: verbose\n")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected validation error for unknown log level")
	}
}
