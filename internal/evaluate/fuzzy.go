package evaluate

import (
	"math"
	"sort"
	"strings"
)

// IndelDistance returns the number of single-character insertions and deletions
// needed to turn a into b. A substitution counts as a deletion plus an insertion.
func IndelDistance(a, b string) int {
	if a == b {
		return 0
	}
	runesA := []rune(a)
	runesB := []rune(b)
	lenA := len(runesA)
	lenB := len(runesB)
	if lenA == 0 {
		return lenB
	}
	if lenB == 0 {
		return lenA
	}

	// Two rows of the edit matrix.
	prev := make([]int, lenB+1)
	curr := make([]int, lenB+1)
	for j := 0; j <= lenB; j++ {
		prev[j] = j
	}

	for i := 1; i <= lenA; i++ {
		curr[0] = i
		for j := 1; j <= lenB; j++ {
			cost := 0
			if runesA[i-1] != runesB[j-1] {
				cost = 2
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[lenB]
}

// Ratio returns the 0-100 similarity of a and b from their indel distance.
// Equal strings score 100; an empty side scores 0.
func Ratio(a, b string) int {
	if a == b {
		return 100
	}
	total := len([]rune(a)) + len([]rune(b))
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	similarity := float64(total-IndelDistance(a, b)) / float64(total)
	return int(math.RoundToEven(100 * similarity))
}

// TokenSetRatio compares a and b as sets of words. Both are lower-cased, stripped of
// non-ASCII runes and punctuation, split into unique tokens, and scored by the best
// Ratio among the shared tokens and each side's shared-plus-remaining tokens.
// Word order and repeated words do not affect the score.
func TokenSetRatio(a, b string) int {
	pa := normalize(a)
	pb := normalize(b)
	if pa == "" || pb == "" {
		return 0
	}

	tokensA := tokenSet(pa)
	tokensB := tokenSet(pb)

	var shared, onlyA, onlyB []string
	for t := range tokensA {
		if tokensB[t] {
			shared = append(shared, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range tokensB {
		if !tokensA[t] {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(shared)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	sect := strings.Join(shared, " ")
	combinedA := strings.TrimSpace(sect + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(sect + " " + strings.Join(onlyB, " "))

	return max(
		Ratio(sect, combinedA),
		Ratio(sect, combinedB),
		Ratio(combinedA, combinedB),
	)
}

// normalize lower-cases s, drops non-ASCII runes and turns anything that is not a
// letter or digit into a space.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r > 127:
			continue
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Fields(s) {
		set[t] = true
	}
	return set
}
