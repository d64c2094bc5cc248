// Package strutil holds small string helpers shared by the CLI and the
// connection layer.
package strutil

import (
	"strings"
)

// LevenshteinDistance returns the case-insensitive edit distance between two
// strings, using two rows instead of the full matrix.
func LevenshteinDistance(s1, s2 string) int {
	a := []rune(strings.ToLower(s1))
	b := []rune(strings.ToLower(s2))

	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(
				curr[j-1]+1,    // insertion
				prev[j]+1,      // deletion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// Closest returns the candidate nearest to input and its distance. The
// candidate is empty when nothing is within maxDistance.
func Closest(input string, candidates []string, maxDistance int) (string, int) {
	if len(candidates) == 0 {
		return "", -1
	}

	closest := ""
	best := maxDistance + 1
	for _, c := range candidates {
		if d := LevenshteinDistance(input, c); d < best {
			best = d
			closest = c
		}
	}

	if best <= maxDistance {
		return closest, best
	}
	return "", best
}

// Suggest formats a "did you mean" hint, or returns "" when no candidate is
// close enough. The allowed distance grows with the input length.
func Suggest(input string, candidates []string) string {
	maxDistance := 2
	if n := len([]rune(input)); n > 8 {
		maxDistance = n / 4
	}
	if match, _ := Closest(input, candidates, maxDistance); match != "" {
		return match
	}
	return ""
}

// Mask hides all but the last two characters of a secret.
func Mask(secret string) string {
	r := []rune(secret)
	if len(r) <= 2 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-2) + string(r[len(r)-2:])
}
