package vecshop

import "github.com/kailas-cloud/vecshop/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInput       = domain.ErrInput
	ErrValidation  = domain.ErrValidation
	ErrRetrieval   = domain.ErrRetrieval
	ErrEmbedding   = domain.ErrEmbedding
	ErrRateLimited = domain.ErrRateLimited
)

// RetrievalError carries the fetch limit of a failed vector store call.
type RetrievalError = domain.RetrievalError
