// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package uptimekuma

import "github.com/goccy/go-json"

// Config identifies a public status page.
type Config struct {
	URL  string `json:"url"`
	Slug string `json:"slug"`
}

// Monitor statuses as normalized strings.
const (
	StatusDown        = "down"
	StatusUp          = "up"
	StatusPending     = "pending"
	StatusMaintenance = "maintenance"
	StatusUnknown     = "unknown"
)

// Monitor is one status-page monitor merged with its latest heartbeat.
type Monitor struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Group       string  `json:"group"`
	Type        string  `json:"type,omitempty"`
	Status      string  `json:"status"`
	Uptime24h   float64 `json:"uptime_24h"`
	LastPing    *int    `json:"last_ping,omitempty"`
	LastMessage string  `json:"last_message,omitempty"`
	LastCheck   string  `json:"last_check,omitempty"`
}

// Snapshot is the status page title plus its monitors in page order.
type Snapshot struct {
	Title    string    `json:"title"`
	Monitors []Monitor `json:"monitors"`
}

// Counts returns how many monitors are up and down.
func (s Snapshot) Counts() (up, down int) {
	for _, m := range s.Monitors {
		switch m.Status {
		case StatusUp:
			up++
		case StatusDown:
			down++
		}
	}
	return up, down
}

type statusPage struct {
	Config struct {
		Slug  string `json:"slug"`
		Title string `json:"title"`
	} `json:"config"`
	PublicGroupList []struct {
		ID          int    `json:"id"`
		Name        string `json:"name"`
		MonitorList []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"monitorList"`
	} `json:"publicGroupList"`
}

type heartbeat struct {
	Status int    `json:"status"`
	Time   string `json:"time"`
	Msg    string `json:"msg"`
	Ping   *int   `json:"ping"`
}

// heartbeats keys both maps by monitor id; uptimeList keys are
// "<id>_24".
type heartbeats struct {
	HeartbeatList map[string][]heartbeat `json:"heartbeatList"`
	UptimeList    map[string]json.Number `json:"uptimeList"`
}
