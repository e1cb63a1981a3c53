package plugin

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// SourceWatcher watches loaded module source files and notifies the
// registry when one is rewritten, so an edited plugin takes effect
// without touching the config file.
type SourceWatcher struct {
	fsw    *fsnotify.Watcher
	logger *slog.Logger

	// onChange receives the changed path and the routes it backs.
	onChange func(path string, routes []string)

	mu     sync.Mutex
	routes map[string][]string // source path → routes
	done   chan struct{}
}

// NewSourceWatcher creates a watcher delivering change notifications
// to onChange on the watcher goroutine.
func NewSourceWatcher(onChange func(path string, routes []string), logger *slog.Logger) (*SourceWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &SourceWatcher{
		fsw:      fsw,
		logger:   logger,
		onChange: onChange,
		routes:   make(map[string][]string),
		done:     make(chan struct{}),
	}

	go w.loop()
	return w, nil
}

// Track associates a route with its module source path and begins
// watching the path.
func (w *SourceWatcher) Track(path, route string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, r := range w.routes[abs] {
		if r == route {
			return
		}
	}
	w.routes[abs] = append(w.routes[abs], route)

	if len(w.routes[abs]) == 1 {
		if err := w.fsw.Add(abs); err != nil {
			w.logger.Warn("cannot watch api source", "path", abs, "error", err)
		}
	}
}

// Untrack removes a route's association with a source path, dropping
// the watch when no routes remain.
func (w *SourceWatcher) Untrack(path, route string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	routes := w.routes[abs]
	for i, r := range routes {
		if r == route {
			routes = append(routes[:i], routes[i+1:]...)
			break
		}
	}

	if len(routes) == 0 {
		delete(w.routes, abs)
		_ = w.fsw.Remove(abs)
		return
	}
	w.routes[abs] = routes
}

// Close stops the watcher.
func (w *SourceWatcher) Close() {
	close(w.done)
	_ = w.fsw.Close()
}

func (w *SourceWatcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.notify(event.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("api source watch error", "error", err)
		}
	}
}

func (w *SourceWatcher) notify(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}

	w.mu.Lock()
	routes := make([]string, len(w.routes[abs]))
	copy(routes, w.routes[abs])
	w.mu.Unlock()

	if len(routes) > 0 {
		w.onChange(abs, routes)
	}
}
