// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/ultrawide/internal/api"
	"github.com/tomtom215/ultrawide/internal/config"
	"github.com/tomtom215/ultrawide/internal/events"
	"github.com/tomtom215/ultrawide/internal/logging"
	"github.com/tomtom215/ultrawide/internal/orchestrator"
	"github.com/tomtom215/ultrawide/internal/proxy"
	"github.com/tomtom215/ultrawide/internal/supervisor"
	"github.com/tomtom215/ultrawide/internal/supervisor/services"
	ws "github.com/tomtom215/ultrawide/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, config.FindConfigFile()); err != nil {
		logging.Fatal().Err(err).Msg("Ultrawide stopped with an error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

// run wires the components, serves until ctx is canceled and then tears
// everything down in reverse order.
func run(ctx context.Context, cfg *config.Config, configPath string) error {
	logging.Info().
		Str("version", version).
		Strs("enabled", cfg.EnabledIntegrations()).
		Str("proxy_mode", cfg.Proxy.Mode).
		Str("config_file", configPath).
		Msg("Starting Ultrawide")

	bus := events.NewBus(events.BusConfig{}, logging.NewWatermillAdapter())
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing event bus")
		}
	}()

	hub := ws.NewHub()
	orch := orchestrator.New(bus, cfg.Weather.GeocodeTTL, orchestrator.Options{
		OnRemoved: hub.Forget,
	})
	defer orch.Close()

	hub.OnVisible(func() { orch.RefreshAll() })

	bridge, err := events.NewBridge(bus, hub, logging.NewWatermillAdapter())
	if err != nil {
		return err
	}

	var proxyHandler http.Handler
	if cfg.Proxy.Enabled {
		proxyHandler = proxy.NewHandler(cfg.Proxy.Timeout, cfg.Proxy.MaxBufferBytes)
		logging.Info().Msg("Proxy endpoint enabled at /api/proxy")
	}

	handler := api.NewHandler(api.NewOrchestratorBackend(orch), hub, cfg, version)
	router := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(cfg.Security)), proxyHandler)

	server := &http.Server{
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}

	tree.AddEventService(hub)
	tree.AddEventService(bridge)
	tree.AddIntegrationService(orch)
	if configPath != "" {
		tree.AddIntegrationService(services.NewConfigWatchService(configPath, func(next *config.Config) {
			logging.SetLevelString(next.Logging.Level)
			orch.Reload(next)
		}))
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.Addr(), cfg.Server.ShutdownTimeout))

	// Serve applies the queued config as its first step.
	orch.Reload(cfg)

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	var runErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for supervisor to finish")
		runErr = <-errCh
	case runErr = <-errCh:
	}
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	return runErr
}
