package schema

import "fmt"

// Diagnostic reports one problem found while applying a schema. It is
// a warning, not an error: the field it names fell back to its default
// while the rest of the document was adopted.
type Diagnostic struct {
	// Field is the top-level key, or "key.entry" for a bad map entry.
	Field string

	// Message describes the problem.
	Message string
}

// String formats the diagnostic for logging.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Field, d.Message)
}

// Apply validates doc against the schema and returns the merged values
// keyed by field name, along with diagnostics for every malformed or
// unrecognized entry.
//
// For each recognized field: a well-typed value is adopted; a missing
// key silently keeps the default; a wrongly-typed value keeps the
// default and yields a diagnostic. Remaining top-level keys in doc are
// reported as unrecognized. A nil doc yields pure defaults.
func (s *Schema) Apply(doc map[string]any) (map[string]any, []Diagnostic) {
	values := make(map[string]any, len(s.fields))
	var diags []Diagnostic

	seen := make(map[string]bool, len(s.fields))
	for _, f := range s.fields {
		seen[f.Name] = true

		raw, ok := doc[f.Name]
		if !ok {
			values[f.Name] = f.Default
			continue
		}

		v, fieldDiags := coerce(f, raw)
		values[f.Name] = v
		diags = append(diags, fieldDiags...)
	}

	for key := range doc {
		if !seen[key] {
			diags = append(diags, Diagnostic{Field: key, Message: "unrecognized entry"})
		}
	}

	return values, diags
}

// coerce checks raw against the field's kind. On mismatch it returns
// the default plus a diagnostic.
func coerce(f Field, raw any) (any, []Diagnostic) {
	switch f.Kind {
	case KindString:
		if s, ok := raw.(string); ok {
			return s, nil
		}
	case KindInt:
		if n, ok := toInt(raw); ok {
			return n, nil
		}
	case KindBool:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
	case KindStringMap:
		if m, ok := raw.(map[string]any); ok {
			return coerceStringMap(f.Name, m)
		}
	}

	return f.Default, []Diagnostic{{
		Field:   f.Name,
		Message: fmt.Sprintf("expected %s, got %T", f.Kind, raw),
	}}
}

// coerceStringMap adopts the string-valued entries of m. An entry with
// a non-string value is skipped with a diagnostic; its siblings are
// kept.
func coerceStringMap(field string, m map[string]any) (map[string]string, []Diagnostic) {
	out := make(map[string]string, len(m))
	var diags []Diagnostic
	for key, val := range m {
		s, ok := val.(string)
		if !ok {
			diags = append(diags, Diagnostic{
				Field:   field + "." + key,
				Message: fmt.Sprintf("expected string, got %T", val),
			})
			continue
		}
		out[key] = s
	}
	return out, diags
}

// toInt accepts the integer representations produced by the YAML and
// TOML parsers.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if float64(int(n)) == n {
			return int(n), true
		}
	}
	return 0, false
}
