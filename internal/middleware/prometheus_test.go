// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/ultrawide/internal/metrics"
)

func TestPrometheusMetrics_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Get("/api/v1/integrations/{name}/snapshot", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Post("/api/v1/visibility", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/integrations/{name}/snapshot", "404")
	before := testutil.ToFloat64(counter)

	for _, name := range []string{"sonarr", "proxmox"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/integrations/"+name+"/snapshot", nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("pattern counter delta = %v, want 2", got)
	}

	// A handler that never calls WriteHeader is recorded as 200.
	okCounter := metrics.APIRequestsTotal.WithLabelValues(http.MethodPost, "/api/v1/visibility", "200")
	before = testutil.ToFloat64(okCounter)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/visibility", nil))
	if got := testutil.ToFloat64(okCounter) - before; got != 1 {
		t.Errorf("implicit 200 counter delta = %v, want 1", got)
	}
}

func TestRoutePattern_Unmatched(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	if got := routePattern(req); got != unmatchedRoute {
		t.Errorf("routePattern() = %q, want %q", got, unmatchedRoute)
	}
}
