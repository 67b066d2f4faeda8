// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

// Package metrics exposes Prometheus instrumentation for integration clients,
// the HTTP API, the proxy and the dashboard websocket hub.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Integration Metrics
	IntegrationState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "integration_connection_state",
			Help: "Connection state per integration (0=disconnected, 1=connecting, 2=connected, 3=reconnecting)",
		},
		[]string{"integration"},
	)

	IntegrationRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "integration_refreshes_total",
			Help: "Total number of snapshot refreshes",
		},
		[]string{"integration", "result"}, // result: "success", "failure", "skipped"
	)

	IntegrationRefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "integration_refresh_duration_seconds",
			Help:    "Duration of snapshot refreshes in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		},
		[]string{"integration"},
	)

	IntegrationReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "integration_reconnects_total",
			Help: "Total number of autonomous reconnect attempts",
		},
		[]string{"integration", "result"},
	)

	IntegrationLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "integration_last_success_timestamp",
			Help: "Unix timestamp of the last successful refresh",
		},
		[]string{"integration"},
	)

	IntegrationSubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "integration_subscribers",
			Help: "Current number of snapshot subscribers",
		},
		[]string{"integration"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Proxy Metrics
	ProxyRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_requests_total",
			Help: "Total number of proxied requests",
		},
		[]string{"mode", "status"}, // mode: "buffered", "stream", "error"
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active dashboard WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)
)

// RecordRefresh records the outcome of one snapshot refresh.
func RecordRefresh(integration string, duration time.Duration, err error) {
	IntegrationRefreshDuration.WithLabelValues(integration).Observe(duration.Seconds())
	if err != nil {
		IntegrationRefreshes.WithLabelValues(integration, "failure").Inc()
		return
	}
	IntegrationRefreshes.WithLabelValues(integration, "success").Inc()
	IntegrationLastSuccess.WithLabelValues(integration).Set(float64(time.Now().Unix()))
}

// RecordRefreshSkipped records a poll tick dropped by an open circuit breaker.
func RecordRefreshSkipped(integration string) {
	IntegrationRefreshes.WithLabelValues(integration, "skipped").Inc()
}

// RecordReconnect records an autonomous reconnect attempt.
func RecordReconnect(integration string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	IntegrationReconnects.WithLabelValues(integration, result).Inc()
}

// SetIntegrationState publishes the numeric connection state.
func SetIntegrationState(integration string, state int) {
	IntegrationState.WithLabelValues(integration).Set(float64(state))
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordProxyRequest records one proxied request by delivery mode.
func RecordProxyRequest(mode string, status int) {
	ProxyRequests.WithLabelValues(mode, strconv.Itoa(status)).Inc()
}
