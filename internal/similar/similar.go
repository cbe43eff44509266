// Package similar ranks candidate names by edit-distance similarity.
package similar

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// DefaultMax is the suggestion cap used when max <= 0.
const DefaultMax = 5

// Threshold is the score at or below which a candidate is dropped.
const Threshold = 0.3

// Match is a ranked candidate.
type Match struct {
	Name  string
	Score float64
}

// Score returns the normalized Levenshtein similarity of a and b, ignoring
// case: (maxLen - distance) / maxLen. Two empty strings score 0.
func Score(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 0
	}
	dist := edlib.LevenshteinDistance(a, b)
	return float64(maxLen-dist) / float64(maxLen)
}

// Rank scores every candidate against target, drops those at or below
// Threshold, and returns at most max survivors by descending score. Equal
// scores keep candidate order.
func Rank(target string, candidates []string, max int) []Match {
	if max <= 0 {
		max = DefaultMax
	}
	var out []Match
	for _, c := range candidates {
		if s := Score(target, c); s > Threshold {
			out = append(out, Match{Name: c, Score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > max {
		out = out[:max]
	}
	return out
}

// Find is Rank returning names only.
func Find(target string, candidates []string, max int) []string {
	ranked := Rank(target, candidates, max)
	names := make([]string, len(ranked))
	for i, m := range ranked {
		names[i] = m.Name
	}
	return names
}
