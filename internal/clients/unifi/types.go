// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package unifi

import "github.com/goccy/go-json"

// Controller variants.
const (
	VariantSelfHosted = "selfhosted"
	VariantUDM        = "udm"
)

// Auth modes.
const (
	AuthCookie = "cookie"
	AuthAPIKey = "apikey"
)

// Config holds the UniFi Network controller connection parameters.
type Config struct {
	URL      string `json:"url"`
	Variant  string `json:"variant"`
	Site     string `json:"site"`
	AuthMode string `json:"auth_mode"`
	Username string `json:"username"`
	Password string `json:"password"`
	APIKey   string `json:"api_key"`
}

// Device is an adopted UniFi device (gateway, switch, access point).
type Device struct {
	MAC        string  `json:"mac"`
	Name       string  `json:"name"`
	Model      string  `json:"model"`
	Type       string  `json:"type"`
	Version    string  `json:"version"`
	IP         string  `json:"ip"`
	State      int     `json:"state"`
	Uptime     int64   `json:"uptime"`
	NumClients int     `json:"num_sta"`
	CPU        float64 `json:"cpu"`
	Mem        float64 `json:"mem"`
}

// Online reports whether the controller sees the device as connected.
func (d Device) Online() bool { return d.State == 1 }

// Station is a connected network client.
type Station struct {
	MAC      string `json:"mac"`
	Hostname string `json:"hostname"`
	Name     string `json:"name"`
	IP       string `json:"ip"`
	Network  string `json:"network"`
	IsWired  bool   `json:"is_wired"`
	Signal   int    `json:"signal"`
	RxBytes  int64  `json:"rx_bytes"`
	TxBytes  int64  `json:"tx_bytes"`
	Uptime   int64  `json:"uptime"`
}

// DisplayName prefers the alias, then the hostname, then the MAC.
func (s Station) DisplayName() string {
	switch {
	case s.Name != "":
		return s.Name
	case s.Hostname != "":
		return s.Hostname
	default:
		return s.MAC
	}
}

// Subsystem is one row of stat/health (wan, lan, wlan, www, vpn).
type Subsystem struct {
	Subsystem string  `json:"subsystem"`
	Status    string  `json:"status"`
	NumUser   int     `json:"num_user"`
	NumAP     int     `json:"num_ap,omitempty"`
	NumSW     int     `json:"num_sw,omitempty"`
	WANIP     string  `json:"wan_ip,omitempty"`
	Latency   float64 `json:"latency,omitempty"`
	XputUp    float64 `json:"xput_up,omitempty"`
	XputDown  float64 `json:"xput_down,omitempty"`
}

// Snapshot is the merged controller view. Errors holds the message of each
// section that failed in the latest refresh; that section keeps its
// previous data.
type Snapshot struct {
	Devices []Device             `json:"devices"`
	Clients []Station            `json:"clients"`
	Health  map[string]Subsystem `json:"health"`
	Errors  map[string]string    `json:"errors,omitempty"`
}

// OnlineDevices counts connected devices.
func (s Snapshot) OnlineDevices() int {
	n := 0
	for _, d := range s.Devices {
		if d.Online() {
			n++
		}
	}
	return n
}

// SpeedTestStatus is the latest gateway speed test.
type SpeedTestStatus struct {
	Running      bool    `json:"running"`
	StatusText   string  `json:"status_summary,omitempty"`
	Latency      float64 `json:"latency"`
	XputDownload float64 `json:"xput_download"`
	XputUpload   float64 `json:"xput_upload"`
	RunDate      int64   `json:"rundate"`
}

// envelope is the controller's {meta, data} wrapper.
type envelope struct {
	Meta struct {
		RC  string `json:"rc"`
		Msg string `json:"msg"`
	} `json:"meta"`
	Data json.RawMessage `json:"data"`
}

type rawSpeedTest struct {
	StatusSummary int     `json:"status_summary"`
	Latency       float64 `json:"latency"`
	XputDownload  float64 `json:"xput_download"`
	XputUpload    float64 `json:"xput_upload"`
	RunDate       int64   `json:"rundate"`
}

type sysinfo struct {
	Version string `json:"version"`
	Name    string `json:"name"`
}
