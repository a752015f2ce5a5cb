package search

import "testing"

func TestCompilePathPattern(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		// *.py matches only without a slash.
		{"*.py", "a.py", true},
		{"*.py", "a/b.py", false},
		// **/*.py matches at any depth.
		{"**/*.py", "a.py", true},
		{"**/*.py", "a/b.py", true},
		{"**/*.py", "a/b/c/d.py", true},
		{"**/*.py", "a/b.go", false},
		// Prefixed doublestar.
		{"services/**/*.py", "services/api/handlers.py", true},
		{"services/**/*.py", "services/deep/ly/nested.py", true},
		{"services/**/*.py", "services/x.py", true},
		{"services/**/*.py", "lib/x.py", false},
		// Single-char wildcard.
		{"a?.py", "ab.py", true},
		{"a?.py", "abc.py", false},
		// Literal dots are not wildcards.
		{"a.py", "axpy", false},
	}
	for _, tt := range tests {
		re, err := CompilePathPattern(tt.pattern)
		if err != nil {
			t.Fatalf("CompilePathPattern(%q): %v", tt.pattern, err)
		}
		if got := re.MatchString(tt.path); got != tt.want {
			t.Errorf("pattern %q vs %q = %v, want %v", tt.pattern, tt.path, got, tt.want)
		}
	}
}
