package config

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watch reloads the RBAC config file whenever it changes on disk. Invalid
// files are logged and skipped; the previous config stays active. Watch
// blocks until the context is cancelled.
func (h *Holder) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				log.Warn().Err(err).Str("file", path).Msg("ignoring invalid rbac config")
				continue
			}
			if err := h.Swap(cfg); err != nil {
				log.Warn().Err(err).Str("file", path).Msg("ignoring invalid rbac config")
				continue
			}
			log.Info().Int("version", h.Current().Version).Msg("rbac config reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("rbac config watcher error")
		}
	}
}
