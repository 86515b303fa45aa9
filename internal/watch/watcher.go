// Package watch reloads the catalog when its file is edited outside keycat.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/keycat/internal/apperr"
)

// DefaultDebounce is how long the file must stay quiet before a reload.
const DefaultDebounce = 200 * time.Millisecond

// Reloader re-reads the catalog when the file content changed.
type Reloader interface {
	ReloadIfChanged(ctx context.Context) (bool, error)
}

// Watch observes the directory holding path and calls r.ReloadIfChanged once
// writes to path settle, until ctx is cancelled. Watching the directory keeps
// working across atomic rename-into-place saves.
func Watch(ctx context.Context, r Reloader, path string, debounce time.Duration, logger *slog.Logger) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch: resolve %s: %w", path, err)
	}
	dir, name := filepath.Split(abs)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", dir, err)
	}
	logger.Info("watcher: started", slog.String("path", abs))

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			reloaded, err := r.ReloadIfChanged(ctx)
			switch {
			case errors.Is(err, apperr.ErrIO):
				logger.Debug("watcher: catalog unreadable", slog.String("error", err.Error()))
			case err != nil:
				logger.Warn("watcher: reload failed", slog.String("error", err.Error()))
			case reloaded:
				logger.Debug("watcher: catalog reloaded", slog.String("path", abs))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
