// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package dnsfilter

import (
	"context"
	"encoding/base64"
	"net/http"
	"sort"

	"github.com/tomtom215/ultrawide/internal/integration"
)

// adGuard talks to AdGuard Home's /control API with basic auth.
type adGuard struct {
	transport integration.Transport
	cfg       Config
}

type adGuardStatus struct {
	ProtectionEnabled bool   `json:"protection_enabled"`
	Running           bool   `json:"running"`
	Version           string `json:"version"`
}

// adGuardStats top lists are arrays of single-key objects.
type adGuardStats struct {
	NumDNSQueries       int              `json:"num_dns_queries"`
	NumBlockedFiltering int              `json:"num_blocked_filtering"`
	TopQueriedDomains   []map[string]int `json:"top_queried_domains"`
	TopBlockedDomains   []map[string]int `json:"top_blocked_domains"`
}

type adGuardFiltering struct {
	Filters []struct {
		Enabled    bool `json:"enabled"`
		RulesCount int  `json:"rules_count"`
	} `json:"filters"`
}

func (a *adGuard) kind() Backend { return BackendAdGuard }

func (a *adGuard) login(context.Context) error { return nil }

func (a *adGuard) ping(ctx context.Context) error {
	var s adGuardStatus
	return a.get(ctx, "/control/status", &s)
}

func (a *adGuard) fetch(ctx context.Context) (Snapshot, error) {
	var (
		status adGuardStatus
		stats  adGuardStats
	)
	if err := a.get(ctx, "/control/status", &status); err != nil {
		return Snapshot{}, err
	}
	if err := a.get(ctx, "/control/stats", &stats); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Backend:        BackendAdGuard,
		Status:         StatusDisabled,
		TotalQueries:   stats.NumDNSQueries,
		BlockedQueries: stats.NumBlockedFiltering,
		TopQueries:     flattenCounts(stats.TopQueriedDomains),
		TopBlocked:     flattenCounts(stats.TopBlockedDomains),
	}
	if status.ProtectionEnabled {
		snap.Status = StatusEnabled
	}
	if stats.NumDNSQueries > 0 {
		snap.PercentBlocked = float64(stats.NumBlockedFiltering) * 100 / float64(stats.NumDNSQueries)
	}

	var filtering adGuardFiltering
	if err := a.get(ctx, "/control/filtering/status", &filtering); err != nil {
		return snap, &integration.PartialFailure{Sections: map[string]error{sectionBlocklist: err}}
	}
	for _, f := range filtering.Filters {
		if f.Enabled {
			snap.DomainsOnBlocklist += f.RulesCount
		}
	}
	return snap, nil
}

func (a *adGuard) get(ctx context.Context, path string, out any) error {
	_, err := integration.DoJSON(ctx, a.transport, &integration.Request{
		Method: http.MethodGet,
		URL:    integration.JoinURL(a.cfg.URL, path),
		Header: basicAuth(a.cfg.Username, a.cfg.Password),
	}, out)
	return err
}

func basicAuth(user, pass string) map[string]string {
	h := map[string]string{"Accept": "application/json"}
	if user != "" || pass != "" {
		h["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
	}
	return h
}

// flattenCounts turns [{"a.com": 3}, {"b.com": 1}] into DomainCounts,
// keeping the server's order.
func flattenCounts(entries []map[string]int) []DomainCount {
	out := make([]DomainCount, 0, len(entries))
	for _, entry := range entries {
		keys := make([]string, 0, len(entry))
		for k := range entry {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, DomainCount{Domain: k, Count: entry[k]})
		}
	}
	return out
}
