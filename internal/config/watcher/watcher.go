// Package watcher provides mtime-based file watching for configuration
// hot reload.
//
// The watcher polls watched files on a fixed interval and invokes
// handlers when a file's modification time differs from the last
// observed one. An unchanged mtime produces no event, so an unchanged
// config file is never re-parsed.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Operation is the kind of change detected on a watched file.
type Operation int

const (
	// OpWrite indicates the file's modification time changed.
	OpWrite Operation = iota

	// OpCreate indicates a previously missing file appeared.
	OpCreate

	// OpRemove indicates the file was deleted.
	OpRemove
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Event describes one detected change.
type Event struct {
	// Path is the absolute path of the changed file.
	Path string

	// Op is the kind of change.
	Op Operation

	// ModTime is the file's modification time after the change, or the
	// zero time for OpRemove.
	ModTime time.Time
}

// Handler is called when a file change is detected.
type Handler func(event Event)

// Watcher polls files for mtime changes.
type Watcher struct {
	mu sync.RWMutex

	// Watched files and their last observed modification times. A zero
	// time marks a file that does not exist yet.
	files map[string]time.Time

	handlers []Handler
	interval time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// New creates a new file watcher. The default interval is 4 seconds.
func New(opts ...Option) *Watcher {
	w := &Watcher{
		files:    make(map[string]time.Time),
		interval: 4 * time.Second,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Watch adds a file to the watch list. A file that does not exist yet
// is watched for creation.
func (w *Watcher) Watch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			w.files[absPath] = time.Time{}
			return nil
		}
		return err
	}

	w.files[absPath] = info.ModTime()
	return nil
}

// Unwatch removes a file from the watch list.
func (w *Watcher) Unwatch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.files, absPath)
	return nil
}

// OnChange registers a handler for change events.
func (w *Watcher) OnChange(handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Start begins polling. It is a no-op if the watcher is running.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.pollLoop()
}

// Stop stops polling and waits for the poll goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.cancel()
	w.running = false
	w.mu.Unlock()

	w.wg.Wait()
}

// IsRunning reports whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Poll checks all watched files once, emitting events for changes.
// The poll loop calls this on every tick; tests call it directly.
func (w *Watcher) Poll() {
	w.mu.RLock()
	files := make(map[string]time.Time, len(w.files))
	for path, modTime := range w.files {
		files[path] = modTime
	}
	w.mu.RUnlock()

	for path, lastMod := range files {
		if event := w.checkFile(path, lastMod); event != nil {
			w.emit(*event)
		}
	}
}

func (w *Watcher) pollLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.Poll()
		}
	}
}

// checkFile compares a file's current mtime against the last observed
// one and returns the corresponding event, or nil if unchanged.
func (w *Watcher) checkFile(path string, lastMod time.Time) *Event {
	info, err := os.Stat(path)

	if os.IsNotExist(err) {
		if lastMod.IsZero() {
			return nil
		}
		w.record(path, time.Time{})
		return &Event{Path: path, Op: OpRemove}
	}
	if err != nil {
		return nil
	}

	currentMod := info.ModTime()

	if lastMod.IsZero() {
		w.record(path, currentMod)
		return &Event{Path: path, Op: OpCreate, ModTime: currentMod}
	}

	if !currentMod.Equal(lastMod) {
		w.record(path, currentMod)
		return &Event{Path: path, Op: OpWrite, ModTime: currentMod}
	}

	return nil
}

func (w *Watcher) record(path string, mod time.Time) {
	w.mu.Lock()
	w.files[path] = mod
	w.mu.Unlock()
}

// emit calls all handlers with the event. A panicking handler must not
// kill the poll goroutine.
func (w *Watcher) emit(event Event) {
	w.mu.RLock()
	handlers := make([]Handler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.RUnlock()

	for _, handler := range handlers {
		func() {
			defer func() { _ = recover() }()
			handler(event)
		}()
	}
}
