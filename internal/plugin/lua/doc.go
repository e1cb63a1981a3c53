// Package lua wraps the gopher-lua runtime for API plugin execution.
//
// Each plugin runs in its own LState. Plugins are trusted code: the
// full Lua standard library is available. The package provides the
// state lifecycle, a Go/Lua value bridge used to serialize handler
// results, and a json helper module exposed to plugin code.
package lua
