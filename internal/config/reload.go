package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// ReloadableSettings watches the settings file and swaps in a new Settings
// value whenever it changes and still validates. Invalid edits are logged and
// the previous settings stay active.
type ReloadableSettings struct {
	path      string
	current   atomic.Pointer[Settings]
	mu        sync.RWMutex
	watchers  []func(old, new *Settings)
	watcher   *fsnotify.Watcher
	logger    *slog.Logger
	stopCh    chan struct{}
	closeOnce sync.Once
	reloading atomic.Bool
}

// NewReloadable loads path and starts watching it.
func NewReloadable(path string, logger *slog.Logger) (*ReloadableSettings, error) {
	s, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("initial settings load: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &ReloadableSettings{
		path:   filepath.Clean(path),
		logger: logger,
		stopCh: make(chan struct{}),
	}
	r.current.Store(s)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Editors usually replace the file, so watch the directory.
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch settings dir: %w", err)
	}

	r.watcher = watcher
	go r.watchLoop()

	return r, nil
}

// Get returns the current settings.
func (r *ReloadableSettings) Get() *Settings {
	return r.current.Load()
}

// Watch registers a callback run after every successful reload.
func (r *ReloadableSettings) Watch(fn func(old, new *Settings)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers = append(r.watchers, fn)
}

// Reload forces a reload from disk.
func (r *ReloadableSettings) Reload() error {
	if !r.reloading.CompareAndSwap(false, true) {
		return fmt.Errorf("reload already in progress")
	}
	defer r.reloading.Store(false)

	next, err := Load(r.path)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	old := r.current.Swap(next)

	r.mu.RLock()
	watchers := make([]func(old, new *Settings), len(r.watchers))
	copy(watchers, r.watchers)
	r.mu.RUnlock()

	for _, fn := range watchers {
		go fn(old, next)
	}
	return nil
}

func (r *ReloadableSettings) watchLoop() {
	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != r.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := r.Reload(); err != nil {
				r.logger.Warn("settings reload failed", "path", r.path, "err", err)
				continue
			}
			r.logger.Info("settings reloaded", "path", r.path)
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("settings watcher error", "err", err)
		case <-r.stopCh:
			return
		}
	}
}

// Close stops the file watcher.
func (r *ReloadableSettings) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.stopCh)
		err = r.watcher.Close()
	})
	return err
}
