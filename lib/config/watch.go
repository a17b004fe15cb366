package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher is called with the previous and the freshly loaded configuration.
type Watcher func(oldConfig, newConfig *Config)

const reloadDebounce = 250 * time.Millisecond

// Watch reloads path whenever it is written and hands the result to each
// watcher. It blocks until ctx is done. The parent directory is watched so
// editors that replace the file on save are picked up too.
func Watch(ctx context.Context, path string, current *Config, logger *slog.Logger, watchers ...Watcher) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer func() {
		if err := w.Close(); err != nil {
			logger.Error("Failed to close config watcher", slog.Any("error", err))
		}
	}()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(reloadDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Config watcher error", slog.Any("error", err))
		case <-pending:
			pending = nil
			next, err := Load(path)
			if err != nil {
				logger.Error("Failed to reload config", slog.String("path", path), slog.Any("error", err))
				continue
			}
			logger.Info("Reloaded config", slog.String("path", path))
			for _, fn := range watchers {
				fn(current, next)
			}
			current = next
		}
	}
}
