package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 200 * time.Millisecond

// Watcher reloads the configuration file when it changes on disk
type Watcher struct {
	logger  *zap.Logger
	path    string
	updates chan Config

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher for the file cfg was loaded from.
// Without a file it never emits.
func NewWatcher(logger *zap.Logger, cfg Config) *Watcher {
	return &Watcher{
		logger:  logger,
		path:    cfg.Path,
		updates: make(chan Config, 1),
	}
}

// Updates delivers successfully reloaded configurations
func (w *Watcher) Updates() <-chan Config {
	return w.updates
}

// Start begins watching. It returns immediately.
func (w *Watcher) Start(ctx context.Context) error {
	if w.path == "" {
		w.logger.Debug("No configuration file, hot reload disabled")
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	// editors replace the file, so watch the directory
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.mu.Lock()
	w.watcher = fw
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(watchCtx, fw)

	w.logger.Info("Watching configuration file", zap.String("path", w.path))
	return nil
}

// Stop ends the watch
func (w *Watcher) Stop(context.Context) error {
	w.mu.Lock()
	fw, cancel := w.watcher, w.cancel
	w.watcher, w.cancel = nil, nil
	w.mu.Unlock()

	if fw == nil {
		return nil
	}
	cancel()
	err := fw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer w.wg.Done()

	timer := time.NewTimer(reloadDebounce)
	timer.Stop() // Start with stopped timer
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				timer.Reset(reloadDebounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", zap.Error(err))

		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("Configuration reload failed, keeping previous settings", zap.Error(err))
		return
	}

	select {
	case <-w.updates:
	default:
	}
	w.updates <- cfg

	w.logger.Info("Configuration reloaded",
		zap.String("path", w.path),
		zap.String("fontFamily", cfg.Font.Family))
}
