// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRefresh(t *testing.T) {
	tests := []struct {
		name        string
		integration string
		err         error
		result      string
	}{
		{"successful refresh", "metrics-test-ok", nil, "success"},
		{"failed refresh", "metrics-test-fail", errors.New("connection refused"), "failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(IntegrationRefreshes.WithLabelValues(tt.integration, tt.result))
			RecordRefresh(tt.integration, 25*time.Millisecond, tt.err)
			after := testutil.ToFloat64(IntegrationRefreshes.WithLabelValues(tt.integration, tt.result))
			if after-before != 1 {
				t.Errorf("expected %s counter to increase by 1, got %v", tt.result, after-before)
			}
		})
	}

	if ts := testutil.ToFloat64(IntegrationLastSuccess.WithLabelValues("metrics-test-ok")); ts == 0 {
		t.Error("expected last success timestamp to be set")
	}
}

func TestRecordReconnect(t *testing.T) {
	RecordReconnect("metrics-test-rc", nil)
	RecordReconnect("metrics-test-rc", errors.New("dial tcp: timeout"))
	RecordReconnect("metrics-test-rc", errors.New("dial tcp: timeout"))

	if got := testutil.ToFloat64(IntegrationReconnects.WithLabelValues("metrics-test-rc", "success")); got != 1 {
		t.Errorf("success reconnects = %v, want 1", got)
	}
	if got := testutil.ToFloat64(IntegrationReconnects.WithLabelValues("metrics-test-rc", "failure")); got != 2 {
		t.Errorf("failure reconnects = %v, want 2", got)
	}
}

func TestSetIntegrationState(t *testing.T) {
	SetIntegrationState("metrics-test-state", 2)
	if got := testutil.ToFloat64(IntegrationState.WithLabelValues("metrics-test-state")); got != 2 {
		t.Errorf("state gauge = %v, want 2", got)
	}
}

func TestRecordRefreshSkipped(t *testing.T) {
	RecordRefreshSkipped("metrics-test-skip")
	if got := testutil.ToFloat64(IntegrationRefreshes.WithLabelValues("metrics-test-skip", "skipped")); got != 1 {
		t.Errorf("skipped = %v, want 1", got)
	}
}
