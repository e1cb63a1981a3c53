// Package plugin implements the POST API registry: Lua modules loaded
// by name, bound to host+path routes, and reconciled against the
// configuration's api table on every reload.
package plugin

import (
	"encoding/json"
	"log/slog"
	"path/filepath"
	"sync"
)

// Failure envelopes sent verbatim as POST response bodies.
var (
	// EnvelopeNoRoute is sent when no API is bound to the route.
	EnvelopeNoRoute = []byte(`{"ok":false,"msg":"no api on this url"}`)

	// EnvelopeLoadFailed is the fallback handler's fixed payload for a
	// route whose module failed to load.
	EnvelopeLoadFailed = []byte(`{"ok":false,"msg":"this api failed to load"}`)

	// EnvelopeInternalError is sent when a handler errors out.
	EnvelopeInternalError = []byte(`{"ok":false,"msg":"internal server error"}`)
)

// entry is one registered route. A nil host marks a route whose module
// failed to load; it stays routable and answers with the fixed failure
// payload rather than becoming a dead URL.
type entry struct {
	module string
	host   *Host
}

// Registry maps POST routes to loaded plugin hosts. The reload
// goroutine is the only writer (via Reconcile); request handlers are
// concurrent readers.
type Registry struct {
	loader *Loader
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]*entry

	watcher *SourceWatcher
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLoader sets the module loader.
func WithLoader(l *Loader) RegistryOption {
	return func(r *Registry) {
		r.loader = l
	}
}

// WithRegistryLogger sets the logger.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		loader:  NewLoader(),
		logger:  slog.Default(),
		entries: make(map[string]*entry),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Reconcile brings the registry in line with the given api table
// (route → module name). Routes present with an unchanged module name
// are left untouched; new or renamed routes are loaded; routes absent
// from the table are dropped. Reconciling the same table twice is a
// no-op the second time.
func (r *Registry) Reconcile(apis map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for route, e := range r.entries {
		if _, keep := apis[route]; !keep {
			r.logger.Info("api route removed", "route", route, "module", e.module)
			r.dropLocked(route, e)
		}
	}

	for route, module := range apis {
		if e, ok := r.entries[route]; ok {
			if e.module == module {
				continue
			}
			r.dropLocked(route, e)
		}
		r.entries[route] = r.load(route, module)
	}
}

// load resolves and loads a module, falling back to a failure entry
// when the module is missing or broken.
func (r *Registry) load(route, module string) *entry {
	path, err := r.loader.Resolve(module)
	if err != nil {
		r.logger.Error("api module not found, installing fallback", "route", route, "module", module)
		return &entry{module: module}
	}

	host := NewHost(module, path)
	if err := host.Load(); err != nil {
		r.logger.Error("api module failed to load, installing fallback",
			"route", route, "module", module, "error", err)
		return &entry{module: module}
	}

	r.logger.Info("api route loaded", "route", route, "module", module, "path", path)
	if r.watcher != nil {
		r.watcher.Track(path, route)
	}
	return &entry{module: module, host: host}
}

func (r *Registry) dropLocked(route string, e *entry) {
	if e.host != nil {
		if r.watcher != nil {
			r.watcher.Untrack(e.host.Path(), route)
		}
		e.host.Close()
	}
	delete(r.entries, route)
}

// Routes returns the registered routes, for introspection and tests.
func (r *Registry) Routes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make([]string, 0, len(r.entries))
	for route := range r.entries {
		routes = append(routes, route)
	}
	return routes
}

// Invoke dispatches a POST body to the route's handler and returns the
// JSON response body. ok is false when no API is bound to the route;
// the caller sends EnvelopeNoRoute in that case.
func (r *Registry) Invoke(route string, pctx Context, body string) (payload []byte, ok bool) {
	r.mu.RLock()
	e, ok := r.entries[route]
	r.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if e.host == nil {
		return EnvelopeLoadFailed, true
	}

	result, err := e.host.Invoke(pctx, body)
	if err != nil {
		r.logger.Error("api handler failed", "route", route, "module", e.module, "error", err)
		return EnvelopeInternalError, true
	}

	data, err := json.Marshal(result)
	if err != nil {
		r.logger.Error("api result not serializable", "route", route, "module", e.module, "error", err)
		return EnvelopeInternalError, true
	}

	return data, true
}

// reloadSource reloads every route backed by the given source file.
// Called by the source watcher when a loaded module's file changes.
func (r *Registry) reloadSource(path string, routes []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, route := range routes {
		e, ok := r.entries[route]
		if !ok || e.host == nil || !samePath(e.host.Path(), path) {
			continue
		}
		if err := e.host.Reload(); err != nil {
			r.logger.Error("api module reload failed, keeping previous version",
				"route", route, "module", e.module, "error", err)
			continue
		}
		r.logger.Info("api module reloaded", "route", route, "module", e.module)
	}
}

// samePath compares two file paths after resolving both to absolute
// form; the watcher reports absolute paths while hosts may hold the
// loader's relative ones.
func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}

// WatchSources starts watching loaded module source files and reloads
// their routes on change. Watch failures are non-fatal; reconciliation
// on config reloads still applies.
func (r *Registry) WatchSources() error {
	w, err := NewSourceWatcher(r.reloadSource, r.logger)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.watcher = w
	for route, e := range r.entries {
		if e.host != nil {
			w.Track(e.host.Path(), route)
		}
	}
	r.mu.Unlock()

	return nil
}

// Close drops all entries and stops the source watcher.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for route, e := range r.entries {
		r.dropLocked(route, e)
	}
	if r.watcher != nil {
		r.watcher.Close()
		r.watcher = nil
	}
}
