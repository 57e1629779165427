package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sheetwise/gateway/internal/observability"
)

// debounceDelay coalesces the editor write/rename bursts a single save
// produces.
const debounceDelay = 250 * time.Millisecond

// Watcher reloads the configuration file on change and hands the new
// config to the callback. Only hot-reloadable settings should be
// applied from the callback; the rest require a restart.
type Watcher struct {
	path     string
	onReload func(*Config)
	logger   observability.Logger
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a config file watcher. The parent directory is
// watched rather than the file itself so atomic renames keep working.
func NewWatcher(path string, onReload func(*Config), logger observability.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		path:     path,
		onReload: onReload,
		logger:   logger,
		watcher:  fsw,
	}, nil
}

// Run processes file events until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceDelay)
				timerC = timer.C
			} else {
				timer.Reset(debounceDelay)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", observability.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		// A bad file keeps the running config; operators see the error.
		w.logger.Error("config reload failed, keeping current config",
			observability.String("path", w.path),
			observability.Error(err),
		)
		return
	}
	w.logger.Info("config reloaded", observability.String("path", w.path))
	w.onReload(cfg)
}
