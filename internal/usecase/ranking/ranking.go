// Package ranking re-scores retrieved candidates with a weighted multi-factor formula.
package ranking

import (
	"cmp"
	"slices"
	"strings"

	"github.com/kailas-cloud/vecshop/internal/domain/search/candidate"
	"github.com/kailas-cloud/vecshop/internal/domain/search/filter"
	"github.com/kailas-cloud/vecshop/internal/domain/search/result"
	"github.com/kailas-cloud/vecshop/internal/domain/search/weights"
)

// Query is the part of a search request the ranker scores against.
type Query struct {
	Text    string
	Filters filter.Filters
}

// Rank scores every candidate and returns them best first.
//
// Score = w.vector·similarity + w.color·colorMatch + w.category·categoryMatch + w.text·titleSimilarity.
// Weights are validated before anything is scored and renormalized to sum to 1.
// A color or category match only counts when the corresponding filter is set.
// Ties fall back to higher similarity, then ascending id.
func Rank(
	cands []candidate.Candidate, q Query, w weights.Weights, debug bool,
) ([]result.Result, error) {
	w, err := w.Normalized()
	if err != nil {
		return nil, err
	}

	color, hasColor := q.Filters.Color()
	category, hasCategory := q.Filters.Category()
	queryText := strings.TrimSpace(q.Text)

	out := make([]result.Result, 0, len(cands))
	for _, c := range cands {
		bd := result.Breakdown{
			VectorScore: c.Similarity(),
			Weights:     w,
		}
		if hasColor && filter.Equal(color, c.Color()) {
			bd.ColorScore = 1
		}
		if hasCategory && filter.Equal(category, c.Category()) {
			bd.CategoryScore = 1
		}
		if queryText != "" {
			bd.TextScore = TextSimilarity(queryText, c.Title())
		}

		score := finalScore(bd)
		if debug {
			out = append(out, result.New(c, score, &bd))
		} else {
			out = append(out, result.New(c, score, nil))
		}
	}

	slices.SortFunc(out, compare)
	return out, nil
}

// TopK returns the first k results. k <= 0 yields an empty slice.
func TopK(results []result.Result, k int) []result.Result {
	if k <= 0 {
		return results[:0]
	}
	if len(results) > k {
		return results[:k]
	}
	return results
}

func finalScore(bd result.Breakdown) float64 {
	s := bd.Weights.Vector*bd.VectorScore +
		bd.Weights.Color*bd.ColorScore +
		bd.Weights.Category*bd.CategoryScore +
		bd.Weights.Text*bd.TextScore
	return min(max(s, 0), 1)
}

func compare(a, b result.Result) int {
	if c := cmp.Compare(b.Score(), a.Score()); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Similarity(), a.Similarity()); c != 0 {
		return c
	}
	return strings.Compare(a.ID(), b.ID())
}
