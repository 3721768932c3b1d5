package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch monitors a config file and invokes onReload with the freshly loaded
// configuration whenever the file changes. Invalid replacements are logged
// and skipped; the previous configuration stays in effect.
//
// Editors often replace files via rename, so the parent directory is watched
// rather than the file itself.
func Watch(ctx context.Context, logger *zap.Logger, configPath string, onReload func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(configPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(configPath) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}

				cfg, err := LoadFromFile(configPath)
				if err != nil {
					logger.Warn("Ignoring config reload, file unreadable",
						zap.String("path", configPath),
						zap.Error(err))
					continue
				}
				if err := cfg.Validate(); err != nil {
					logger.Warn("Ignoring config reload, validation failed",
						zap.String("path", configPath),
						zap.Error(err))
					continue
				}

				logger.Info("Configuration reloaded", zap.String("path", configPath))
				onReload(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Config watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}
