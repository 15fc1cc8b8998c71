// Package utils provides shared utilities for text, math, and logging.
package utils

// Truncate returns s truncated to maxRunes characters, with "..." appended
// if truncated. Truncation is rune-aware so multibyte content is never cut
// mid-character. If maxRunes is 0 or negative, returns s unchanged.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || len(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}
