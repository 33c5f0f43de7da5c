package retrieval

import (
	"context"

	"github.com/kailas-cloud/vecshop/internal/domain/search/candidate"
	"github.com/kailas-cloud/vecshop/internal/domain/search/filter"
	"github.com/kailas-cloud/vecshop/internal/domain/vector"
)

// VectorStore runs an approximate nearest-neighbor search with filters applied
// server-side. Results are ordered by descending similarity and never exceed limit.
type VectorStore interface {
	Search(ctx context.Context, vec vector.Vector, filters filter.Filters, limit int) ([]candidate.Candidate, error)
}
