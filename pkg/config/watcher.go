package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/helmsmanhq/helmsman/pkg/observability"
)

// ProvidersWatcher reloads the providers file when it changes on
// disk. An edit that fails validation keeps the previous document in
// place.
type ProvidersWatcher struct {
	path    string
	log     *observability.Logger
	watcher *fsnotify.Watcher
	onLoad  func(*Providers)

	mu      sync.RWMutex
	current *Providers
	done    chan struct{}
}

// WatchProviders loads the file once and starts watching it. The
// onLoad callback runs for the initial load and after every
// successful reload.
func WatchProviders(path string, log *observability.Logger, onLoad func(*Providers)) (*ProvidersWatcher, error) {
	providers, err := LoadProviders(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// watch the directory: editors replace files, which drops a watch
	// on the file itself
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	w := &ProvidersWatcher{
		path:    path,
		log:     log,
		watcher: fsw,
		onLoad:  onLoad,
		current: providers,
		done:    make(chan struct{}),
	}
	if onLoad != nil {
		onLoad(providers)
	}
	go w.loop()
	return w, nil
}

// Current returns the most recently loaded valid document
func (w *ProvidersWatcher) Current() *Providers {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Close stops watching
func (w *ProvidersWatcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *ProvidersWatcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("providers file watcher error")
		}
	}
}

func (w *ProvidersWatcher) reload() {
	providers, err := LoadProviders(w.path)
	if err != nil {
		w.log.WithError(err).Error("rejected providers file update")
		return
	}

	w.mu.Lock()
	w.current = providers
	w.mu.Unlock()

	w.log.Info("providers file reloaded")
	if w.onLoad != nil {
		w.onLoad(providers)
	}
}
