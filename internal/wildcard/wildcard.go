package wildcard

import (
	"regexp"
	"strings"
)

// PatternToRegex converts a wildcard pattern like "openai/*" into a
// compiled anchored regex: "^openai/(.*)$". Every "*" matches any run of
// characters; all other regex metacharacters are escaped.
func PatternToRegex(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteByte('^')
	for _, ch := range pattern {
		switch ch {
		case '*':
			b.WriteString("(.*)")
		case '.', '+', '?', '(', ')', '[', ']', '{', '}', '\\', '^', '$', '|':
			b.WriteByte('\\')
			b.WriteRune(ch)
		default:
			b.WriteRune(ch)
		}
	}
	b.WriteByte('$')
	return regexp.MustCompile(b.String())
}

// Match reports whether value matches a pattern containing "*".
// Patterns without a wildcard never match here; exact comparison is the
// caller's concern.
func Match(pattern, value string) bool {
	if !strings.Contains(pattern, "*") {
		return false
	}
	return PatternToRegex(pattern).MatchString(value)
}

// MatchesAny reports whether value matches any of the wildcard patterns.
func MatchesAny(patterns []string, value string) bool {
	for _, p := range patterns {
		if Match(p, value) {
			return true
		}
	}
	return false
}
