package syntax

import (
	"regexp"
	"strings"
)

// Placeholder matches any snippet placeholder, "${ name }".
var Placeholder = regexp.MustCompile(`\$\{\s*([^{}]*?)\s*\}`)

// HasPlaceholder reports whether s contains a placeholder-shaped substring.
func HasPlaceholder(s string) bool {
	return Placeholder.MatchString(s)
}

// PlaceholderFor returns a pattern matching the placeholder for key,
// tolerating whitespace inside the braces.
func PlaceholderFor(key string) *regexp.Regexp {
	return regexp.MustCompile(`\$\{\s*` + regexp.QuoteMeta(strings.TrimSpace(key)) + `\s*\}`)
}

// Placeholders returns the distinct placeholder names found in s, in order of
// first appearance.
func Placeholders(s string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range Placeholder.FindAllStringSubmatch(s, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}
