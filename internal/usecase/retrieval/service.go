// Package retrieval fetches an over-sized candidate set from the vector store.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/vecshop/internal/domain"
	"github.com/kailas-cloud/vecshop/internal/domain/search/candidate"
	"github.com/kailas-cloud/vecshop/internal/domain/search/filter"
	"github.com/kailas-cloud/vecshop/internal/domain/search/request"
	"github.com/kailas-cloud/vecshop/internal/domain/vector"
)

// DefaultTimeout bounds a single vector store call.
const DefaultTimeout = 2 * time.Second

// Service orchestrates the over-fetch query against a VectorStore.
type Service struct {
	store   VectorStore
	timeout time.Duration
}

// New creates a retrieval service. A non-positive timeout selects DefaultTimeout.
func New(store VectorStore, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{store: store, timeout: timeout}
}

// Retrieve asks the store for topK × overfetchFactor candidates.
// An overfetchFactor of 0 selects the default (3). Filters are applied by the
// store only; results come back in store order.
func (s *Service) Retrieve(
	ctx context.Context, vec vector.Vector, filters filter.Filters, topK, overfetchFactor int,
) ([]candidate.Candidate, error) {
	if topK <= 0 {
		return nil, domain.ValidationErrorf("top_k must be positive, got %d", topK)
	}
	if overfetchFactor == 0 {
		overfetchFactor = request.DefaultOverfetchFactor
	}
	if overfetchFactor < 0 {
		return nil, domain.ValidationErrorf("overfetch_factor must be positive, got %d", overfetchFactor)
	}
	limit := FetchLimit(topK, overfetchFactor)

	if err := ctx.Err(); err != nil {
		return nil, domain.NewRetrievalError(limit, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cands, err := s.store.Search(ctx, vec, filters, limit)
	if err != nil {
		return nil, domain.NewRetrievalError(limit, err)
	}
	// A store that answered after the deadline still counts as timed out.
	if err = ctx.Err(); err != nil {
		return nil, domain.NewRetrievalError(limit, err)
	}
	if len(cands) > limit {
		return nil, domain.NewRetrievalError(limit,
			fmt.Errorf("store returned %d candidates", len(cands)))
	}
	return cands, nil
}

// FetchLimit returns the number of candidates requested from the store.
func FetchLimit(topK, overfetchFactor int) int {
	return topK * overfetchFactor
}
