package search

import (
	"regexp"
	"strings"
)

// CompilePathPattern translates a glob path pattern into a regular
// expression: `**` matches zero or more path segments, `*` matches within a
// segment, `?` matches a single character. The pattern anchors to the whole
// path, so `*.py` matches `a.py` but not `a/b.py`, while `**/*.py` matches
// at any depth.
func CompilePathPattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	i := 0
	for i < len(pattern) {
		switch {
		case strings.HasPrefix(pattern[i:], "**/"):
			// Zero or more whole segments.
			b.WriteString("(?:[^/]+/)*")
			i += 3
		case strings.HasPrefix(pattern[i:], "**"):
			b.WriteString(".*")
			i += 2
		case pattern[i] == '*':
			b.WriteString("[^/]*")
			i++
		case pattern[i] == '?':
			b.WriteString(".")
			i++
		default:
			b.WriteString(regexp.QuoteMeta(string(pattern[i])))
			i++
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
