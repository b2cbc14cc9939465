package conflict

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Similarity returns the sequence-matcher ratio of a and b, compared
// case-insensitively rune by rune. Identical strings score 1, disjoint 0.
func Similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	m := difflib.NewMatcher(runes(strings.ToLower(a)), runes(strings.ToLower(b)))
	return m.Ratio()
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
