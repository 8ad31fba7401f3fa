// Package strings normalizes operator-supplied string lists such as actor
// rosters and webhook event filters.
package strings

import "strings"

// Unique trims each value, applies fold when non-nil, and drops blanks and
// repeats. First occurrence wins, so order is preserved.
func Unique(values []string, fold func(string) string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if fold != nil {
			v = fold(v)
		}
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
