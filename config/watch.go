package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch re-reads cfile whenever it is written or replaced and passes every
// valid result to onChange. Invalid files are logged and skipped. The
// directory is watched rather than the file so editors that save by rename
// keep working. Watch returns once the watcher is set up; it stops when ctx
// is done.
func Watch(ctx context.Context, cfile string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	target := filepath.Clean(cfile)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", target, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("Config watcher error", "error", err)
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				conf, err := ReadConfig(target)
				if err != nil {
					slog.Warn("Ignoring config change", "file", target, "error", err)
					continue
				}
				slog.Info("Config change detected", "file", target)
				onChange(conf)
			}
		}
	}()
	return nil
}
