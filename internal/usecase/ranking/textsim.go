package ranking

import (
	"math"
	"strings"
	"unicode"
)

// TextSimilarity returns the cosine similarity of the term-frequency vectors of a and b.
// Tokens are maximal runs of letters and digits, case-folded. Empty input scores 0.
func TextSimilarity(a, b string) float64 {
	ta, tb := termFrequencies(a), termFrequencies(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var dot, na, nb float64
	for term, ca := range ta {
		na += float64(ca * ca)
		if cb, ok := tb[term]; ok {
			dot += float64(ca * cb)
		}
	}
	for _, cb := range tb {
		nb += float64(cb * cb)
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim > 1 {
		return 1
	}
	return sim
}

func termFrequencies(s string) map[string]int {
	tokens := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(tokens) == 0 {
		return nil
	}
	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}
	return tf
}
