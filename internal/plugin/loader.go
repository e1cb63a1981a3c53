package plugin

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultSearchPath is where API modules live relative to the working
// directory when no explicit path is configured.
const DefaultSearchPath = "apis"

// Loader resolves module names to Lua source files.
//
// A module named "echo" resolves to the first of "echo.lua" or
// "echo/init.lua" found under the search paths, checked in order.
type Loader struct {
	paths []string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPaths sets the module search paths.
func WithPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.paths = paths
	}
}

// NewLoader creates a module loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		paths: []string{DefaultSearchPath},
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Paths returns the configured search paths.
func (l *Loader) Paths() []string {
	return l.paths
}

// Resolve returns the source file path for a module name.
func (l *Loader) Resolve(name string) (string, error) {
	for _, base := range l.paths {
		single := filepath.Join(base, name+".lua")
		if info, err := os.Stat(single); err == nil && !info.IsDir() {
			return single, nil
		}

		entry := filepath.Join(base, name, "init.lua")
		if info, err := os.Stat(entry); err == nil && !info.IsDir() {
			return entry, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrModuleNotFound, name)
}
