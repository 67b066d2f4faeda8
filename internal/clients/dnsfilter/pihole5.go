// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package dnsfilter

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/tomtom215/ultrawide/internal/integration"
)

// piHole5 talks to the legacy admin/api.php endpoint.
type piHole5 struct {
	transport integration.Transport
	cfg       Config
}

type piHole5Summary struct {
	DomainsBeingBlocked int     `json:"domains_being_blocked"`
	DNSQueriesToday     int     `json:"dns_queries_today"`
	AdsBlockedToday     int     `json:"ads_blocked_today"`
	AdsPercentageToday  float64 `json:"ads_percentage_today"`
	Status              string  `json:"status"`
}

type piHole5TopItems struct {
	TopQueries map[string]int `json:"top_queries"`
	TopAds     map[string]int `json:"top_ads"`
}

func (p *piHole5) kind() Backend { return BackendPiHole5 }

func (p *piHole5) login(context.Context) error { return nil }

func (p *piHole5) ping(ctx context.Context) error {
	var s piHole5Summary
	return p.get(ctx, url.Values{"summaryRaw": {""}}, &s)
}

func (p *piHole5) fetch(ctx context.Context) (Snapshot, error) {
	var summary piHole5Summary
	if err := p.get(ctx, url.Values{"summaryRaw": {""}}, &summary); err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Backend:            BackendPiHole5,
		Status:             summary.Status,
		TotalQueries:       summary.DNSQueriesToday,
		BlockedQueries:     summary.AdsBlockedToday,
		PercentBlocked:     summary.AdsPercentageToday,
		DomainsOnBlocklist: summary.DomainsBeingBlocked,
	}

	var top piHole5TopItems
	if err := p.get(ctx, url.Values{"topItems": {strconv.Itoa(topCount)}}, &top); err != nil {
		return snap, &integration.PartialFailure{Sections: map[string]error{sectionTop: err}}
	}
	snap.TopQueries = sortedCounts(top.TopQueries)
	snap.TopBlocked = sortedCounts(top.TopAds)
	return snap, nil
}

// get calls api.php. An unauthorized v5 request answers 200 with an empty
// JSON array instead of the object.
func (p *piHole5) get(ctx context.Context, q url.Values, out any) error {
	if p.cfg.APIToken != "" {
		q.Set("auth", p.cfg.APIToken)
	}
	resp, err := p.transport.Do(ctx, &integration.Request{
		Method: http.MethodGet,
		URL:    integration.JoinURL(p.cfg.URL, "/admin/api.php") + "?" + q.Encode(),
	})
	if err != nil {
		return err
	}
	if err := integration.CheckStatus(resp); err != nil {
		return err
	}
	if bytes.Equal(bytes.TrimSpace(resp.Body), []byte("[]")) {
		return integration.Authenticationf("Pi-hole rejected the API token")
	}
	return integration.DecodeJSON(resp, out)
}

// sortedCounts orders a domain→count map by descending count, then domain.
func sortedCounts(m map[string]int) []DomainCount {
	out := make([]DomainCount, 0, len(m))
	for domain, count := range m {
		out = append(out, DomainCount{Domain: domain, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Domain < out[j].Domain
	})
	return out
}
