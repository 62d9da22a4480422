package wire

import (
	"strings"
	"unicode"
)

// Lookup returns the value stored under key in either naming convention.
//
// key is given in snake_case. When both spellings hold a non-null value, the
// snake_case value wins. A null under one spelling does not hide a value
// under the other.
func Lookup(m map[string]any, key string) (any, bool) {
	if m == nil {
		return nil, false
	}

	snake, hasSnake := m[key]
	if hasSnake && snake != nil {
		return snake, true
	}

	if camel := SnakeToCamel(key); camel != key {
		if v, ok := m[camel]; ok && (v != nil || !hasSnake) {
			return v, true
		}
	}

	return nil, hasSnake
}

// String returns the string stored under key, or "" when absent or not a string.
func String(m map[string]any, key string) string {
	v, _ := Lookup(m, key)
	s, _ := v.(string)

	return s
}

// StringPtr returns a pointer to the string stored under key, or nil.
func StringPtr(m map[string]any, key string) *string {
	v, _ := Lookup(m, key)

	s, ok := v.(string)
	if !ok {
		return nil
	}

	return &s
}

// Map returns the object stored under key, or nil.
func Map(m map[string]any, key string) map[string]any {
	v, _ := Lookup(m, key)
	obj, _ := v.(map[string]any)

	return obj
}

// Slice returns the array stored under key, or nil.
func Slice(m map[string]any, key string) []any {
	v, _ := Lookup(m, key)
	arr, _ := v.([]any)

	return arr
}

// Bool returns the boolean stored under key, or false.
func Bool(m map[string]any, key string) bool {
	v, _ := Lookup(m, key)
	b, _ := v.(bool)

	return b
}

// Int returns the number stored under key as an int.
//
// JSON numbers decode as float64; integer types are accepted for values
// built in Go.
func Int(m map[string]any, key string) (int, bool) {
	v, ok := Lookup(m, key)
	if !ok {
		return 0, false
	}

	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}

// SnakeToCamel converts snake_case to camelCase.
func SnakeToCamel(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}

	var b strings.Builder

	b.Grow(len(s))

	upper := false

	for _, r := range s {
		if r == '_' {
			upper = b.Len() > 0

			continue
		}

		if upper {
			b.WriteRune(unicode.ToUpper(r))

			upper = false

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

// CamelToSnake converts camelCase to snake_case.
func CamelToSnake(s string) string {
	var b strings.Builder

	b.Grow(len(s) + 4)

	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}

			b.WriteRune(unicode.ToLower(r))

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

// CamelKeys returns a deep copy of v with every object key converted to
// camelCase. Values that are not objects or arrays are returned unchanged.
func CamelKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[SnakeToCamel(k)] = CamelKeys(item)
		}

		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CamelKeys(item)
		}

		return out
	default:
		return v
	}
}
