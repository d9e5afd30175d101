// Package strings holds small string-slice helpers shared by the config
// loader and the HTTP handlers.
package strings

import "strings"

// DedupeAndTrim trims every element, drops empties, and removes duplicates
// while preserving first-seen order. Comparison is case-sensitive: identity
// hex and broker addresses are canonical as given.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
