package annotation

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchConfig reloads the config file whenever it changes on disk and hands
// the result to onChange. Invalid edits are logged and skipped. It blocks
// until ctx is done.
func WatchConfig(ctx context.Context, filename string, logger *zap.Logger, onChange func(*Config)) error {
	logger = logger.Named("watch")
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("while creating config watcher: %w", err)
	}
	defer watcher.Close()

	// editors replace the file on save, so watch its folder
	if err := watcher.Add(filepath.Dir(filename)); err != nil {
		return fmt.Errorf("while watching %s: %w", filename, err)
	}
	target := filepath.Clean(filename)

	const debounce = 200 * time.Millisecond
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))
		case <-timer.C:
			cfg, err := LoadConfig(filename)
			if err != nil {
				logger.Warn("config reload failed", zap.String("file", filename), zap.Error(err))
				continue
			}
			logger.Info("config reloaded", zap.String("file", filename))
			onChange(cfg)
		}
	}
}
