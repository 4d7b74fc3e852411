package utils

import "strings"

// MaskSecret keeps the first four characters of a token so it can be recognized
// in output. Short secrets are masked entirely.
func MaskSecret(s string) string {
	const keep = 4
	if s == "" {
		return ""
	}
	if len(s) <= 2*keep {
		return strings.Repeat("*", 8)
	}
	return s[:keep] + strings.Repeat("*", 8)
}
