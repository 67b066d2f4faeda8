// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

/*
Package proxmox polls a Proxmox VE cluster with an API token.

A refresh is two-level: GET /api2/json/nodes, then the qemu and lxc guest
lists of every online node in parallel. Offline nodes are skipped; a node
whose guest fetch fails contributes no guests and is listed in
Snapshot.Errors.
*/
package proxmox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/ultrawide/internal/integration"
)

// Name is the integration name.
const Name = "proxmox"

// DefaultPollInterval is the refresh period.
const DefaultPollInterval = 15 * time.Second

// maxNodeFetches bounds concurrent per-node requests.
const maxNodeFetches = 8

// Client is the Proxmox integration client.
type Client struct {
	*integration.Client[Config, Snapshot]
}

// New creates a dormant client.
func New(opts integration.Options, transport integration.Transport) *Client {
	if opts.Name == "" {
		opts.Name = Name
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Client{Client: integration.New[Config, Snapshot](opts, &adapter{transport: transport})}
}

type adapter struct {
	transport integration.Transport

	mu    sync.Mutex
	cfg   Config
	nodes int
}

func (a *adapter) Validate(cfg Config) error {
	if strings.TrimSpace(cfg.URL) == "" {
		return integration.Configurationf("Proxmox URL is required")
	}
	if cfg.TokenID == "" || cfg.TokenSecret == "" {
		return integration.Configurationf("API token ID and secret are required")
	}
	if !strings.Contains(cfg.TokenID, "!") {
		return integration.Configurationf("token ID must look like user@realm!tokenname, got %q", cfg.TokenID)
	}
	return nil
}

func (a *adapter) Handshake(ctx context.Context, cfg Config) error {
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()

	nodes, err := a.listNodes(ctx)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.nodes = len(nodes)
	a.mu.Unlock()
	return nil
}

func (a *adapter) FetchSnapshot(ctx context.Context) (Snapshot, error) {
	nodes, err := a.listNodes(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Node < nodes[j].Node })

	var (
		g      errgroup.Group
		mu     sync.Mutex
		guests = []Guest{}
		failed = map[string]error{}
	)
	g.SetLimit(maxNodeFetches)
	for _, node := range nodes {
		if !node.Online() {
			continue
		}
		g.Go(func() error {
			list, err := a.nodeGuests(ctx, node.Node)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[node.Node] = err
				return nil
			}
			guests = append(guests, list...)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(guests, func(i, j int) bool { return guests[i].VMID < guests[j].VMID })
	snap := Snapshot{Nodes: nodes, Guests: guests}
	if len(failed) == 0 {
		return snap, nil
	}
	snap.Errors = make(map[string]string, len(failed))
	for node, err := range failed {
		snap.Errors[node] = err.Error()
	}
	return snap, &integration.PartialFailure{Sections: failed}
}

func (a *adapter) Close() error { return nil }

func (a *adapter) ConnectMeta() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return map[string]any{"nodes": a.nodes}
}

func (a *adapter) listNodes(ctx context.Context) ([]Node, error) {
	var env envelope[[]Node]
	if err := a.get(ctx, "/api2/json/nodes", &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// nodeGuests fetches the qemu and lxc lists of one node.
func (a *adapter) nodeGuests(ctx context.Context, node string) ([]Guest, error) {
	var out []Guest
	for _, kind := range []string{GuestQEMU, GuestLXC} {
		var env envelope[[]Guest]
		path := fmt.Sprintf("/api2/json/nodes/%s/%s", url.PathEscape(node), kind)
		if err := a.get(ctx, path, &env); err != nil {
			return nil, fmt.Errorf("%s guests: %w", kind, err)
		}
		for _, g := range env.Data {
			g.Node, g.Type = node, kind
			out = append(out, g)
		}
	}
	return out, nil
}

// get issues an authenticated GET and rewrites failures into the messages
// users act on.
func (a *adapter) get(ctx context.Context, path string, out any) error {
	a.mu.Lock()
	cfg := a.cfg
	a.mu.Unlock()

	_, err := integration.DoJSON(ctx, a.transport, &integration.Request{
		Method: http.MethodGet,
		URL:    integration.JoinURL(cfg.URL, path),
		Header: map[string]string{
			"Accept":        "application/json",
			"Authorization": "PVEAPIToken=" + cfg.TokenID + "=" + cfg.TokenSecret,
		},
	}, out)
	return describe(err, cfg.URL)
}

func describe(err error, host string) error {
	var (
		authErr *integration.AuthenticationError
		netErr  *integration.NetworkError
		malErr  *integration.MalformedResponseError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &authErr):
		authErr.Msg = "Proxmox rejected the API token (check token ID, secret and privileges)"
		return authErr
	case errors.As(err, &netErr) && netErr.Op != "upstream":
		return &integration.NetworkError{Op: "cannot reach Proxmox host " + host, Err: netErr.Err}
	case errors.As(err, &malErr) && strings.HasPrefix(malErr.Msg, "received HTML"):
		malErr.Msg = "Proxmox returned an HTML page instead of JSON (is the URL pointing at the API port 8006?)"
		return malErr
	}
	return err
}
