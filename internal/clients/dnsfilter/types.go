// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package dnsfilter

// Backend selects the DNS filter implementation.
type Backend string

const (
	BackendAuto    Backend = "auto"
	BackendPiHole5 Backend = "pihole5"
	BackendPiHole6 Backend = "pihole6"
	BackendAdGuard Backend = "adguard"
)

// Config holds the connection parameters. Pi-hole v5 uses APIToken, Pi-hole
// v6 uses Password (empty when the web UI has no password), AdGuard Home
// uses Username and Password.
type Config struct {
	Backend  Backend `json:"backend"`
	URL      string  `json:"url"`
	Username string  `json:"username,omitempty"`
	Password string  `json:"password,omitempty"`
	APIToken string  `json:"api_token,omitempty"`
}

// DomainCount is one entry of a top-domains list.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// Snapshot is the normalized summary shared by every backend.
type Snapshot struct {
	Backend            Backend       `json:"backend"`
	Status             string        `json:"status"`
	TotalQueries       int           `json:"total_queries"`
	BlockedQueries     int           `json:"blocked_queries"`
	PercentBlocked     float64       `json:"percent_blocked"`
	DomainsOnBlocklist int           `json:"domains_on_blocklist"`
	TopQueries         []DomainCount `json:"top_queries"`
	TopBlocked         []DomainCount `json:"top_blocked"`
}

// Status values.
const (
	StatusEnabled  = "enabled"
	StatusDisabled = "disabled"
)

// topCount bounds the top-domain lists.
const topCount = 10
