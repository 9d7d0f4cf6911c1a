// Package similarity computes a normalized lexical closeness score
// between two strings using Dice's coefficient over character bigrams.
// The listing endpoints use it to re-rank fuzzy-filtered pages.
package similarity

import "strings"

// Score returns a closeness score in [0, 1] for a and b, case-insensitive.
// Equal strings score exactly 1.0 and strings shorter than two characters
// carry no bigrams, so a pair of unequal single-character (or empty)
// strings scores 0.0.
func Score(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	if a == b {
		return 1.0
	}

	runesA := []rune(a)
	runesB := []rune(b)
	if len(runesA) == 0 || len(runesB) == 0 {
		return 0.0
	}

	bigramsA := make(map[string]struct{})
	count := 0

	for i := 0; i+1 < len(runesA); i++ {
		bigramsA[string(runesA[i:i+2])] = struct{}{}
		count++
	}

	intersection := 0
	for i := 0; i+1 < len(runesB); i++ {
		if _, ok := bigramsA[string(runesB[i:i+2])]; ok {
			intersection++
		}
		count++
	}

	if count == 0 {
		return 0.0
	}

	return 2 * float64(intersection) / float64(count)
}
