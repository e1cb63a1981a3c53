package config

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samualtnorman/apex-web-server/internal/config/loader"
	"github.com/samualtnorman/apex-web-server/internal/config/watcher"
)

// ReloadFunc is called with the new snapshot after every successful
// reload, including the initial Load.
type ReloadFunc func(cfg *Config)

// Store holds the process-wide configuration snapshot and reloads it
// from disk when the file's modification time changes.
//
// Readers take a snapshot once per request via Snapshot and complete
// against it; reloads swap the whole snapshot atomically and never
// mutate a published Config.
type Store struct {
	path     string
	interval time.Duration
	logger   *slog.Logger

	current atomic.Pointer[Config]
	w       *watcher.Watcher

	mu       sync.Mutex
	onReload []ReloadFunc
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithReloadInterval sets the mtime polling interval.
func WithReloadInterval(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets the logger for reload warnings and errors.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a store reading from the given config file path.
// The store starts out holding the default snapshot.
func NewStore(path string, opts ...StoreOption) *Store {
	s := &Store{
		path:     path,
		interval: 4 * time.Second,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.current.Store(Default())

	s.w = watcher.New(watcher.WithInterval(s.interval))
	s.w.OnChange(s.handleFileChange)

	return s
}

// Snapshot returns the current configuration snapshot. The returned
// value is shared and must not be mutated.
func (s *Store) Snapshot() *Config {
	return s.current.Load()
}

// OnReload registers a function to run after every successful reload.
// Registered functions run on the reload goroutine, in order.
func (s *Store) OnReload(fn ReloadFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReload = append(s.onReload, fn)
}

// Load performs the initial load and begins watching the file. A
// missing config file is not an error: the default snapshot stays
// active and the file is watched for creation.
func (s *Store) Load() error {
	if err := s.w.Watch(s.path); err != nil {
		return err
	}

	s.reload()
	s.w.Start()
	return nil
}

// Close stops the reload loop.
func (s *Store) Close() {
	s.w.Stop()
}

// handleFileChange reacts to watcher events for the config file. A
// removed file keeps the previous snapshot active.
func (s *Store) handleFileChange(event watcher.Event) {
	if event.Op == watcher.OpRemove {
		s.logger.Warn("config file removed, keeping previous configuration", "path", s.path)
		return
	}
	s.reload()
}

// reload re-reads and re-validates the config file, swapping in the
// new snapshot on success. A parse failure keeps the previous snapshot
// untouched.
func (s *Store) reload() {
	doc, err := loader.ForPath(s.path).Load()
	if err != nil {
		s.logger.Error("config reload failed, keeping previous configuration",
			"path", s.path, "error", err)
		return
	}
	if doc == nil {
		// First load with no file on disk: defaults stay active.
		s.logger.Warn("config file not found, using defaults", "path", s.path)
		s.notify(s.Snapshot())
		return
	}

	cfg, diags := Parse(doc)
	for _, d := range diags {
		s.logger.Warn("config: "+d.Message, "field", d.Field)
	}

	s.current.Store(cfg)
	s.logger.Info("configuration loaded", "path", s.path,
		"redirects", len(cfg.Redirects), "symlinks", len(cfg.Symlinks), "apis", len(cfg.APIs))

	s.notify(cfg)
}

func (s *Store) notify(cfg *Config) {
	s.mu.Lock()
	fns := make([]ReloadFunc, len(s.onReload))
	copy(fns, s.onReload)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(cfg)
	}
}
