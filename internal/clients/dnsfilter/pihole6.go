// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package dnsfilter

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ultrawide/internal/integration"
)

// piHole6 talks to the v6 REST API with a session id from POST /api/auth.
type piHole6 struct {
	transport integration.Transport
	cfg       Config

	mu  sync.Mutex
	sid string
}

type piHole6Auth struct {
	Session struct {
		Valid   bool   `json:"valid"`
		SID     string `json:"sid"`
		Message string `json:"message"`
	} `json:"session"`
}

type piHole6Summary struct {
	Queries struct {
		Total          int     `json:"total"`
		Blocked        int     `json:"blocked"`
		PercentBlocked float64 `json:"percent_blocked"`
	} `json:"queries"`
	Gravity struct {
		DomainsBeingBlocked int `json:"domains_being_blocked"`
	} `json:"gravity"`
}

type piHole6Blocking struct {
	Blocking string `json:"blocking"`
}

type piHole6Top struct {
	Domains []DomainCount `json:"domains"`
}

func (p *piHole6) kind() Backend { return BackendPiHole6 }

// login obtains a session id. Installs without a web password answer with
// a valid session and an empty sid.
func (p *piHole6) login(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{"password": p.cfg.Password})
	if err != nil {
		return err
	}
	resp, err := p.transport.Do(ctx, &integration.Request{
		Method: http.MethodPost,
		URL:    integration.JoinURL(p.cfg.URL, "/api/auth"),
		Header: map[string]string{"Content-Type": "application/json"},
		Body:   body,
	})
	if err != nil {
		return err
	}
	var auth piHole6Auth
	if resp.StatusCode == http.StatusUnauthorized {
		_ = json.Unmarshal(resp.Body, &auth)
		return integration.Authenticationf("Pi-hole rejected the password: %s", auth.Session.Message)
	}
	if err := integration.CheckStatus(resp); err != nil {
		return err
	}
	if err := integration.DecodeJSON(resp, &auth); err != nil {
		return err
	}
	if !auth.Session.Valid {
		return integration.Authenticationf("Pi-hole rejected the password: %s", auth.Session.Message)
	}

	p.mu.Lock()
	p.sid = auth.Session.SID
	p.mu.Unlock()
	return nil
}

func (p *piHole6) ping(ctx context.Context) error {
	var b piHole6Blocking
	return p.get(ctx, "/api/dns/blocking", &b)
}

func (p *piHole6) fetch(ctx context.Context) (Snapshot, error) {
	var (
		summary  piHole6Summary
		blocking piHole6Blocking
	)
	if err := p.get(ctx, "/api/stats/summary", &summary); err != nil {
		return Snapshot{}, err
	}
	if err := p.get(ctx, "/api/dns/blocking", &blocking); err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Backend:            BackendPiHole6,
		Status:             blocking.Blocking,
		TotalQueries:       summary.Queries.Total,
		BlockedQueries:     summary.Queries.Blocked,
		PercentBlocked:     summary.Queries.PercentBlocked,
		DomainsOnBlocklist: summary.Gravity.DomainsBeingBlocked,
	}

	var queries, blocked piHole6Top
	count := strconv.Itoa(topCount)
	err := integration.RunIsolated(ctx,
		integration.Task{Name: "top_queries", Run: func(ctx context.Context) error {
			return p.get(ctx, "/api/stats/top_domains?count="+count, &queries)
		}},
		integration.Task{Name: "top_blocked", Run: func(ctx context.Context) error {
			return p.get(ctx, "/api/stats/top_domains?blocked=true&count="+count, &blocked)
		}},
	)
	if err != nil {
		return snap, &integration.PartialFailure{Sections: map[string]error{sectionTop: err}}
	}
	snap.TopQueries = queries.Domains
	snap.TopBlocked = blocked.Domains
	return snap, nil
}

// get sends the session id and renews it once on 401.
func (p *piHole6) get(ctx context.Context, path string, out any) error {
	p.mu.Lock()
	sid := p.sid
	p.mu.Unlock()

	resp, err := p.do(ctx, path, sid)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		if err := p.renew(ctx, sid); err != nil {
			return err
		}
		p.mu.Lock()
		sid = p.sid
		p.mu.Unlock()
		if resp, err = p.do(ctx, path, sid); err != nil {
			return err
		}
	}
	if err := integration.CheckStatus(resp); err != nil {
		return err
	}
	return integration.DecodeJSON(resp, out)
}

// renew logs in again unless another request already replaced stale.
func (p *piHole6) renew(ctx context.Context, stale string) error {
	p.mu.Lock()
	current := p.sid
	p.mu.Unlock()
	if current != stale {
		return nil
	}
	return p.login(ctx)
}

func (p *piHole6) do(ctx context.Context, path, sid string) (*integration.Response, error) {
	header := map[string]string{"Accept": "application/json"}
	if sid != "" {
		header["X-FTL-SID"] = sid
	}
	return p.transport.Do(ctx, &integration.Request{
		Method: http.MethodGet,
		URL:    integration.JoinURL(p.cfg.URL, path),
		Header: header,
	})
}
