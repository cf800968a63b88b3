package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/oshokin/morning-glow/internal/logger"
)

// defaultDebounce collapses the burst of events editors produce on save.
const defaultDebounce = 300 * time.Millisecond

// Watcher reloads the settings file when it changes on disk.
type Watcher struct {
	// path is the settings file being followed.
	path string
	// debounce delays a reload until writes settle.
	debounce time.Duration
	// onChange receives every successfully validated reload.
	onChange func(context.Context, *Config)

	mu      sync.Mutex
	current *Config
}

// NewWatcher creates a watcher for path. onChange runs on the watcher goroutine.
func NewWatcher(path string, initial *Config, onChange func(context.Context, *Config)) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: defaultDebounce,
		onChange: onChange,
		current:  initial,
	}
}

// Current returns the last valid settings.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.current
}

// Reload reads the file once. An invalid file keeps the previous settings.
func (w *Watcher) Reload(ctx context.Context) error {
	cfg, err := Load(w.path)
	if err != nil {
		return fmt.Errorf("reload settings: %w", err)
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	if w.onChange != nil {
		w.onChange(ctx, cfg)
	}

	return nil
}

// Run watches the directory of the settings file until ctx is canceled.
// The directory is watched rather than the file, since editors replace files by rename.
func (w *Watcher) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "config-watcher")

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	defer func() {
		_ = fsw.Close()
	}()

	if err = fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch settings directory: %w", err)
	}

	logger.InfoKV(ctx, "Watching settings file", "path", w.path)

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != w.path ||
				!(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}

			pending = timer.C
		case <-pending:
			pending = nil

			if err := w.Reload(ctx); err != nil {
				logger.ErrorKV(ctx, "Settings reload failed, keeping previous settings", "error", err)
				continue
			}

			logger.Info(ctx, "Settings reloaded")
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}

			logger.ErrorKV(ctx, "Settings watcher error", "error", err)
		}
	}
}
