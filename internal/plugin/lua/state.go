package lua

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// State wraps a gopher-lua LState for plugin execution.
//
// An LState is not goroutine-safe; the mutex serializes all access so
// concurrent requests to the same plugin route execute one at a time.
type State struct {
	L *lua.LState

	mu     sync.Mutex
	closed bool
}

// NewState creates a Lua state with the standard libraries and the
// json helper module installed.
func NewState() *State {
	L := lua.NewState()
	registerJSON(L)
	return &State{L: L}
}

// DoFile executes a Lua file in the state.
func (s *State) DoFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	return s.withRecovery(func() error {
		return s.L.DoFile(path)
	})
}

// DoString executes a Lua chunk in the state.
func (s *State) DoString(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	return s.withRecovery(func() error {
		return s.L.DoString(code)
	})
}

// HasFunction reports whether a global with the given name exists and
// is callable.
func (s *State) HasFunction(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	return s.L.GetGlobal(name).Type() == lua.LTFunction
}

// Call invokes the named global function and returns its first return
// value. Lua errors and panics surface as Go errors.
func (s *State) Call(fn string, args ...lua.LValue) (lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil, ErrStateClosed
	}

	fnVal := s.L.GetGlobal(fn)
	if fnVal == lua.LNil {
		return lua.LNil, fmt.Errorf("%w: %q", ErrFunctionNotFound, fn)
	}
	if fnVal.Type() != lua.LTFunction {
		return lua.LNil, fmt.Errorf("%w: %q is a %s", ErrNotAFunction, fn, fnVal.Type())
	}

	var ret lua.LValue = lua.LNil
	err := s.withRecovery(func() error {
		if err := s.L.CallByParam(lua.P{
			Fn:      fnVal,
			NRet:    1,
			Protect: true,
		}, args...); err != nil {
			return err
		}
		ret = s.L.Get(-1)
		s.L.Pop(1)
		return nil
	})
	if err != nil {
		return lua.LNil, err
	}

	return ret, nil
}

// IsClosed reports whether the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the underlying LState. Safe to call twice.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.L.Close()
	s.closed = true
}

// withRecovery converts panics out of the Lua runtime into errors.
func (s *State) withRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}
