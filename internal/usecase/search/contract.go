package search

import (
	"context"

	"github.com/kailas-cloud/vecshop/internal/domain/search/candidate"
	"github.com/kailas-cloud/vecshop/internal/domain/search/filter"
	"github.com/kailas-cloud/vecshop/internal/domain/vector"
)

// Retriever fetches the over-sized candidate set for a fused query vector.
type Retriever interface {
	Retrieve(
		ctx context.Context, vec vector.Vector, filters filter.Filters, topK, overfetchFactor int,
	) ([]candidate.Candidate, error)
}
