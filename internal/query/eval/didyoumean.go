package eval

import "strings"

// suggest picks a "did you mean" candidate for name out of candidates: an
// exact prefix match first, otherwise the nearest Levenshtein match within
// distance 3 (spec §3.2, §4.3.2). Returns "" when nothing qualifies.
func suggest(name string, candidates map[string]struct{}) string {
	for c := range candidates {
		if strings.HasPrefix(c, name) || strings.HasPrefix(name, c) {
			return c
		}
	}

	best := ""
	bestDist := 4 // anything >3 disqualifies
	for c := range candidates {
		d := levenshtein(name, c)
		if d < bestDist || (d == bestDist && c < best) {
			bestDist = d
			best = c
		}
	}
	if bestDist > 3 {
		return ""
	}
	return best
}

// levenshtein computes the classic edit distance between a and b using a
// two-row dynamic-programming matrix (spec §9: "a 15-line textbook
// algorithm; no retrieved example or common Go idiom exists for it").
func levenshtein(a, b string) int {
	ar, br := []rune(a), []rune(b)
	prev := make([]int, len(br)+1)
	curr := make([]int, len(br)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ar); i++ {
		curr[0] = i
		for j := 1; j <= len(br); j++ {
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			curr[j] = m
		}
		prev, curr = curr, prev
	}
	return prev[len(br)]
}
