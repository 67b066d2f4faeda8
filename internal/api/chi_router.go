// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/ultrawide/internal/middleware"
)

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	proxy         http.Handler
}

// NewRouter creates a Router. proxy may be nil, in which case /api/proxy is
// not mounted.
func NewRouter(handler *Handler, mw *ChiMiddleware, proxy http.Handler) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{
		handler:       handler,
		chiMiddleware: mw,
		proxy:         proxy,
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	// Global middleware, in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "no route for "+r.URL.Path, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", r.Method+" not allowed on "+r.URL.Path, nil)
	})

	r.With(APISecurityHeaders()).Get("/api/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders())

		// Long-lived; must not sit behind the compressor or the limiter.
		r.Get("/ws", h.WebSocket)

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Use(chimiddleware.Compress(5, "application/json"))

			r.Get("/integrations", h.Integrations)
			r.Get("/integrations/{name}/snapshot", h.IntegrationSnapshot)
			r.Post("/integrations/{name}/refresh", h.RefreshIntegration)
			r.Post("/visibility", h.Visibility)

			r.Post("/homeassistant/services/{action}", h.ServiceCall)
			r.Post("/unifi/speedtest", h.StartSpeedTest)
			r.Get("/unifi/speedtest", h.SpeedTestStatus)
			r.Post("/weather/locations/{id}/coordinates", h.SetWeatherCoordinates)
		})
	})

	if router.proxy != nil {
		r.With(router.chiMiddleware.RateLimit()).Handle("/api/proxy", router.proxy)
	}

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
