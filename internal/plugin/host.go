package plugin

import (
	"fmt"
	"sync"

	"github.com/samualtnorman/apex-web-server/internal/config"
	plua "github.com/samualtnorman/apex-web-server/internal/plugin/lua"
	lua "github.com/yuin/gopher-lua"
)

// handlerName is the global function every API module must define.
const handlerName = "handle"

// Context carries per-request information into a plugin handler.
type Context struct {
	// IsLocal reports whether the client address is loopback/private.
	IsLocal bool

	// ClientIP is the resolved client address.
	ClientIP string

	// Config is the configuration snapshot the request is being served
	// against.
	Config *config.Config
}

// Host owns one plugin module's Lua state.
//
// The mutex serializes invocations: an LState is single-threaded, so
// concurrent requests to the same route run their handlers one at a
// time.
type Host struct {
	name string
	path string

	mu     sync.Mutex
	state  *plua.State
	bridge *plua.Bridge
}

// NewHost creates a host for the module with the given resolved source
// path. The module is not loaded until Load is called.
func NewHost(name, path string) *Host {
	return &Host{name: name, path: path}
}

// Name returns the module name.
func (h *Host) Name() string {
	return h.name
}

// Path returns the module's source file path.
func (h *Host) Path() string {
	return h.path
}

// Load executes the module source in a fresh Lua state and verifies it
// defines a callable handle function. On any failure the state is torn
// down and the host stays unloaded.
func (h *Host) Load() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	state := plua.NewState()
	if err := state.DoFile(h.path); err != nil {
		state.Close()
		return fmt.Errorf("loading module %s: %w", h.name, err)
	}

	if !state.HasFunction(handlerName) {
		state.Close()
		return fmt.Errorf("module %s: %w", h.name, ErrNoHandler)
	}

	if h.state != nil {
		h.state.Close()
	}
	h.state = state
	h.bridge = plua.NewBridge(state.L)
	return nil
}

// Reload replaces the running state with a freshly loaded one. The old
// state keeps serving until the new one loads successfully.
func (h *Host) Reload() error {
	return h.Load()
}

// Invoke calls the module's handle function with the raw request body
// and a context table {isLocal, ip, config}. The handler's return
// value is bridged back to a Go value for JSON serialization.
func (h *Host) Invoke(pctx Context, body string) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == nil {
		return nil, ErrNotLoaded
	}

	ctxTable := h.state.L.NewTable()
	ctxTable.RawSetString("isLocal", lua.LBool(pctx.IsLocal))
	ctxTable.RawSetString("ip", lua.LString(pctx.ClientIP))
	if pctx.Config != nil {
		ctxTable.RawSetString("config", h.bridge.ToLua(pctx.Config.Values()))
	}

	ret, err := h.state.Call(handlerName, lua.LString(body), ctxTable)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", h.name, err)
	}

	return h.bridge.ToGo(ret), nil
}

// Close releases the Lua state.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != nil {
		h.state.Close()
		h.state = nil
	}
}
