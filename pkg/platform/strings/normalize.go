// Package strings holds small text helpers shared by stores and services.
package strings

import (
	"slices"
	"strings"
)

// NormalizeTags trims, lowercases and dedupes tags, dropping empties. The
// result is sorted so equal tag sets compare equal.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		norm := strings.ToLower(strings.TrimSpace(t))
		if norm == "" {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	slices.Sort(out)
	return out
}

// ContainsFold reports whether needle occurs in haystack ignoring case.
// An empty needle always matches.
func ContainsFold(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// NormalizeName collapses whitespace runs and trims, for name comparisons.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
