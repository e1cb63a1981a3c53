package plugin

import "errors"

// Plugin system errors.
var (
	// ErrModuleNotFound is returned when no source file matches a
	// module name in any search path.
	ErrModuleNotFound = errors.New("plugin module not found")

	// ErrNoHandler is returned when a module loads but does not define
	// a callable global handle function.
	ErrNoHandler = errors.New("plugin does not define a handle function")

	// ErrNotLoaded is returned when invoking a host that failed to load.
	ErrNotLoaded = errors.New("plugin is not loaded")
)
