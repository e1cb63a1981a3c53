// Package loader provides configuration file loading.
//
// Loaders parse a file into an untyped document (mapping/sequence/
// scalar tree); typing the document is the schema validator's job.
package loader

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Loader is the interface for configuration loaders.
type Loader interface {
	// Load reads the source and returns an untyped document.
	// Returns nil, nil if the source doesn't exist (not an error).
	Load() (map[string]any, error)
}

// ReaderLoader is implemented by loaders that can parse from a stream.
type ReaderLoader interface {
	// LoadFromReader reads a document from a reader.
	LoadFromReader(r io.Reader) (map[string]any, error)
}

// ForPath returns a loader for the given path based on its extension.
// ".toml" selects the TOML loader; anything else is treated as YAML
// (which also covers JSON documents).
func ForPath(path string) Loader {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return NewTOMLLoader(path)
	}
	return NewYAMLLoader(path)
}

// FileSystem is an abstraction for file system reads, allowing tests
// to substitute an in-memory file system.
type FileSystem interface {
	fs.FS
	// ReadFile reads the entire file at path.
	ReadFile(path string) ([]byte, error)
}

// OSFS implements FileSystem using the real OS file system.
type OSFS struct{}

// Open implements fs.FS.
func (OSFS) Open(name string) (fs.File, error) {
	return os.Open(name)
}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// DefaultFS returns the default file system (OS).
func DefaultFS() FileSystem {
	return OSFS{}
}

// ParseError represents an error while parsing a configuration file.
type ParseError struct {
	Path    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}
