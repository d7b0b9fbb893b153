// Package store implements the in-memory relational store backing the mock
// backend. Tables are ordered row lists keyed by "schema.table"; rows are
// schemaless JSON-shaped maps, so heterogeneous values per column are allowed.
package store

import (
	"github.com/spf13/cast"
)

// Row is one record: column name to JSON-shaped value. Values are restricted
// by construction to the JSON universe: nil, bool, float64, string, []any and
// map[string]any. Embedded relation data arrives pre-denormalized from the
// caller as a nested map (to-one) or a slice of maps (to-many).
type Row = map[string]any

// IsNull reports whether v is a null value.
func IsNull(v any) bool {
	return v == nil
}

// AsSlice returns v as a sequence if it holds one.
func AsSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

// AsMap returns v as a mapping if it holds one.
func AsMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// Stringify renders a scalar value the way it appears on the wire, so that
// eq/neq/in comparisons tolerate mixed numeric/string representation.
// float64(2) and "2" stringify identically.
func Stringify(v any) string {
	if v == nil {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return s
}

// CloneValue deep-copies a JSON-shaped value.
func CloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = CloneValue(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = CloneValue(elem)
		}
		return out
	default:
		return val
	}
}

// CloneRow deep-copies a row, including embedded relation data.
func CloneRow(r Row) Row {
	if r == nil {
		return nil
	}
	return CloneValue(map[string]any(r)).(map[string]any)
}
