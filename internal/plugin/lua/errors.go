package lua

import "errors"

// Errors returned by the Lua runtime wrapper.
var (
	// ErrStateClosed is returned when using a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrNotAFunction is returned when a named global is not callable.
	ErrNotAFunction = errors.New("global is not a function")

	// ErrFunctionNotFound is returned when a named global is absent.
	ErrFunctionNotFound = errors.New("function not found")
)
