// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package services

import (
	"context"

	"github.com/tomtom215/ultrawide/internal/config"
	"github.com/tomtom215/ultrawide/internal/logging"
)

// Stopper ends a file watch.
type Stopper interface {
	Stop() error
}

// WatchFunc starts watching path. It matches config.WatchConfigFile apart
// from the concrete return type.
type WatchFunc func(path string, onChange func(*config.Config), onError func(error)) (Stopper, error)

// ConfigWatchService keeps a koanf file watch alive for as long as the
// supervisor runs it and hands every successfully reloaded config to
// onChange. Load errors are logged; the previous config stays in effect.
type ConfigWatchService struct {
	path     string
	onChange func(*config.Config)
	watch    WatchFunc
}

// NewConfigWatchService watches path with config.WatchConfigFile.
func NewConfigWatchService(path string, onChange func(*config.Config)) *ConfigWatchService {
	return NewConfigWatchServiceWithWatcher(path, onChange, func(p string, change func(*config.Config), fail func(error)) (Stopper, error) {
		w, err := config.WatchConfigFile(p, change, fail)
		if err != nil {
			return nil, err
		}
		return w, nil
	})
}

// NewConfigWatchServiceWithWatcher uses a custom watch function.
func NewConfigWatchServiceWithWatcher(path string, onChange func(*config.Config), watch WatchFunc) *ConfigWatchService {
	return &ConfigWatchService{path: path, onChange: onChange, watch: watch}
}

// Serve starts the watch and blocks until ctx is canceled.
func (s *ConfigWatchService) Serve(ctx context.Context) error {
	w, err := s.watch(s.path, s.changed, s.failed)
	if err != nil {
		return err
	}
	logging.Info().Str("path", s.path).Msg("Watching config file for changes")

	<-ctx.Done()
	if err := w.Stop(); err != nil {
		logging.Debug().Err(err).Msg("Config watch stop failed")
	}
	return ctx.Err()
}

func (s *ConfigWatchService) changed(cfg *config.Config) {
	logging.Info().Str("path", s.path).Strs("enabled", cfg.EnabledIntegrations()).Msg("Config file changed, applying")
	s.onChange(cfg)
}

func (s *ConfigWatchService) failed(err error) {
	logging.Warn().Err(err).Str("path", s.path).Msg("Config reload failed, keeping previous configuration")
}

// String names the service in supervisor logs.
func (s *ConfigWatchService) String() string {
	return "config-watcher"
}
