// Package attrs reads slog-style key/value attribute lists.
package attrs

import "fmt"

// ExtractString extracts a string value from a key-value attribute slice.
// The slice should be formatted as [key1, value1, key2, value2, ...].
// Returns empty string if the key is not found or the value is not a string
// (or a named string type such as an id).
func ExtractString(attrs []any, key string) string {
	for i := 0; i+1 < len(attrs); i += 2 {
		if k, ok := attrs[i].(string); ok && k == key {
			return asString(attrs[i+1])
		}
	}
	return ""
}

// ToStringMap flattens the pairs into a map, dropping keys listed in skip.
// Non-string values are formatted with %v.
func ToStringMap(attrs []any, skip ...string) map[string]string {
	out := make(map[string]string, len(attrs)/2)
	for i := 0; i+1 < len(attrs); i += 2 {
		k, ok := attrs[i].(string)
		if !ok || contains(skip, k) {
			continue
		}
		out[k] = asString(attrs[i+1])
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
