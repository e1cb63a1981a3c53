// Package config holds the server configuration: the typed snapshot,
// the schema it is validated against, and the store that hot-reloads
// it from disk.
package config

import (
	"github.com/samualtnorman/apex-web-server/internal/config/schema"
)

// Default listen ports and content root.
const (
	DefaultHTTPPort     = 80
	DefaultHTTPSPort    = 443
	DefaultWebDirectory = "web"
)

// Config is one immutable configuration snapshot. A snapshot is built
// fresh on every reload and swapped into the Store as a whole; fields
// are never mutated after construction.
type Config struct {
	// Redirects maps an exact hostname to a target origin URL used as
	// a literal prefix for the redirect Location.
	Redirects map[string]string

	// Symlinks maps a hostname to an alias directory segment used in
	// place of the hostname when resolving files on disk.
	Symlinks map[string]string

	// APIs maps a POST route (host+path) to a plugin module name.
	APIs map[string]string

	// Headers are applied to every static file response.
	Headers map[string]string

	// HTTPPort is the plaintext listen port.
	HTTPPort int

	// HTTPSPort is the TLS listen port.
	HTTPSPort int

	// WebDirectory is the root directory for static content.
	WebDirectory string

	// LogHeaders toggles verbose request header logging.
	LogHeaders bool
}

// Default returns a snapshot with every field at its default value.
func Default() *Config {
	return &Config{
		Redirects:    map[string]string{},
		Symlinks:     map[string]string{},
		APIs:         map[string]string{},
		Headers:      map[string]string{},
		HTTPPort:     DefaultHTTPPort,
		HTTPSPort:    DefaultHTTPSPort,
		WebDirectory: DefaultWebDirectory,
		LogHeaders:   false,
	}
}

// Schema describes the recognized top-level fields, their shapes and
// defaults. It is consumed by the generic schema validator.
func Schema() *schema.Schema {
	return schema.New(
		schema.Field{Name: "redirects", Kind: schema.KindStringMap, Default: map[string]string{}},
		schema.Field{Name: "symlinks", Kind: schema.KindStringMap, Default: map[string]string{}},
		schema.Field{Name: "apis", Kind: schema.KindStringMap, Default: map[string]string{}},
		schema.Field{Name: "headers", Kind: schema.KindStringMap, Default: map[string]string{}},
		schema.Field{Name: "httpPort", Kind: schema.KindInt, Default: DefaultHTTPPort},
		schema.Field{Name: "httpsPort", Kind: schema.KindInt, Default: DefaultHTTPSPort},
		schema.Field{Name: "webDirectory", Kind: schema.KindString, Default: DefaultWebDirectory},
		schema.Field{Name: "logHeaders", Kind: schema.KindBool, Default: false},
	)
}

// Parse validates an untyped document into a snapshot. Validation is a
// per-field best-effort merge: a malformed field keeps its default and
// produces a diagnostic, it never invalidates sibling fields.
func Parse(doc map[string]any) (*Config, []schema.Diagnostic) {
	values, diags := Schema().Apply(doc)

	cfg := &Config{
		Redirects:    values["redirects"].(map[string]string),
		Symlinks:     values["symlinks"].(map[string]string),
		APIs:         values["apis"].(map[string]string),
		Headers:      values["headers"].(map[string]string),
		HTTPPort:     values["httpPort"].(int),
		HTTPSPort:    values["httpsPort"].(int),
		WebDirectory: values["webDirectory"].(string),
		LogHeaders:   values["logHeaders"].(bool),
	}
	return cfg, diags
}

// Values returns the snapshot as a plain map, for handing to plugin
// runtimes that work with untyped trees.
func (c *Config) Values() map[string]any {
	return map[string]any{
		"redirects":    copyStringMap(c.Redirects),
		"symlinks":     copyStringMap(c.Symlinks),
		"apis":         copyStringMap(c.APIs),
		"headers":      copyStringMap(c.Headers),
		"httpPort":     c.HTTPPort,
		"httpsPort":    c.HTTPSPort,
		"webDirectory": c.WebDirectory,
		"logHeaders":   c.LogHeaders,
	}
}

func copyStringMap(src map[string]string) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
