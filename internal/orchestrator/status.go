// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package orchestrator

import (
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/tomtom215/ultrawide/internal/events"
	"github.com/tomtom215/ultrawide/internal/integration"
	"github.com/tomtom215/ultrawide/internal/logging"
)

// IntegrationStatus is one row of the status table.
type IntegrationStatus struct {
	Name        string            `json:"name"`
	Enabled     bool              `json:"enabled"`
	State       integration.State `json:"state"`
	Connected   bool              `json:"connected"`
	LastError   string            `json:"last_error,omitempty"`
	ErrorKind   string            `json:"error_kind,omitempty"`
	LastRefresh *time.Time        `json:"last_refresh,omitempty"`
}

// Status returns a row for every known integration in display order.
// Disabled integrations report enabled=false and state disconnected.
func (o *Orchestrator) Status() []IntegrationStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]IntegrationStatus, 0, len(factories))
	for _, f := range factories {
		st := IntegrationStatus{Name: f.name, State: integration.StateDisconnected}
		if e, ok := o.entries[f.name]; ok {
			st.Enabled = true
			st.State = e.client.State()
			st.Connected = e.client.IsConnected()
			if err := e.client.LastError(); err != nil {
				st.LastError = err.Error()
				st.ErrorKind = integration.Kind(err)
			}
			if t := e.client.LastRefresh(); !t.IsZero() {
				st.LastRefresh = &t
			}
		}
		out = append(out, st)
	}
	return out
}

// statusFingerprint hashes the parts of the table that warrant a push.
// LastRefresh is left out; snapshots already carry freshness.
func statusFingerprint(rows []IntegrationStatus) uint64 {
	d := xxhash.New()
	for _, r := range rows {
		_, _ = d.WriteString(r.Name)
		if r.Enabled {
			_, _ = d.WriteString("|on|")
		} else {
			_, _ = d.WriteString("|off|")
		}
		_, _ = d.WriteString(r.State.String())
		_, _ = d.WriteString("|")
		_, _ = d.WriteString(r.LastError)
		_, _ = d.WriteString("\n")
	}
	return d.Sum64()
}

// publishStatus publishes the table when it changed, or always when force
// is set.
func (o *Orchestrator) publishStatus(force bool) {
	rows := o.Status()
	fp := statusFingerprint(rows)
	if old := o.statusHash.Swap(fp); old == fp && !force {
		return
	}
	if o.publisher == nil {
		return
	}
	ev, err := events.NewStatusEvent(rows, o.opts.Clock.Now())
	if err != nil {
		logging.Error().Err(err).Msg("[orchestrator] Failed to encode status")
		return
	}
	if err := o.publisher.PublishStatus(ev); err != nil {
		logging.Debug().Err(err).Msg("[orchestrator] Failed to publish status")
	}
}
