// Package schema provides a generic structural validator for untyped
// configuration documents.
//
// A Schema is a list of recognized fields with an expected shape and a
// default value. Applying a schema to a parsed document is a per-field
// best-effort merge, not a pass/fail validation: a field with the wrong
// type keeps its default and yields a diagnostic, and never invalidates
// the fields around it.
package schema

// Kind is the expected shape of a field value.
type Kind int

const (
	// KindString expects a string scalar.
	KindString Kind = iota

	// KindInt expects an integer scalar.
	KindInt

	// KindBool expects a boolean scalar.
	KindBool

	// KindStringMap expects a mapping of string to string.
	KindStringMap
)

// String returns the kind name used in diagnostics.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindBool:
		return "boolean"
	case KindStringMap:
		return "mapping of strings"
	default:
		return "unknown"
	}
}

// Field describes one recognized top-level configuration key.
type Field struct {
	// Name is the top-level key in the document.
	Name string

	// Kind is the expected shape of the value.
	Kind Kind

	// Default is used when the key is absent or malformed. Its dynamic
	// type must match Kind (map[string]string for KindStringMap).
	Default any
}

// Schema is an ordered list of recognized fields.
type Schema struct {
	fields []Field
}

// New builds a schema from the given fields.
func New(fields ...Field) *Schema {
	return &Schema{fields: fields}
}

// Fields returns the recognized fields in declaration order.
func (s *Schema) Fields() []Field {
	return s.fields
}
