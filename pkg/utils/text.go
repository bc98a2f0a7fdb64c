// Package utils provides shared helpers for text, vectors, and logging.
package utils

// Truncate returns s cut to maxLen runes with "..." appended if it was longer.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
