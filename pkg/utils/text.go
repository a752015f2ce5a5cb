package utils

import (
	"strings"
	"unicode/utf8"
)

// Excerpt returns at most maxLen runes of s around the first occurrence of
// term (case-insensitive), with an ellipsis on truncated sides. When term is
// absent or empty the excerpt is the head of s.
func Excerpt(s, term string, maxLen int) string {
	if maxLen <= 0 || s == "" {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	start := 0
	if term != "" {
		if i := strings.Index(strings.ToLower(s), strings.ToLower(term)); i >= 0 {
			// Center the window on the match.
			pos := utf8.RuneCountInString(s[:i])
			start = pos - maxLen/2
			if start < 0 {
				start = 0
			}
		}
	}
	end := start + maxLen
	if end > len(runes) {
		end = len(runes)
		start = end - maxLen
		if start < 0 {
			start = 0
		}
	}
	out := string(runes[start:end])
	if start > 0 {
		out = "…" + out
	}
	if end < len(runes) {
		out = out + "…"
	}
	return out
}

// Clamp01 clamps v to the closed interval [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
