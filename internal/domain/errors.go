package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInput signals a caller-fixable problem with the query itself (no vectors, bad dims).
	ErrInput = errors.New("invalid input")
	// ErrValidation signals a rejected configuration value (e.g. a negative ranking weight).
	ErrValidation = errors.New("validation failed")
	// ErrRetrieval signals a failed or timed out vector store call.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrEmbedding signals an embedding provider failure.
	ErrEmbedding = errors.New("embedding provider error")
	// ErrRateLimited signals a local rate limit hit toward the embedding provider.
	ErrRateLimited = errors.New("rate limited")
)

// RetrievalError wraps ErrRetrieval with the requested fetch limit and the store failure.
type RetrievalError struct {
	Limit int
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("%s (limit %d): %v", ErrRetrieval.Error(), e.Limit, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *RetrievalError) Unwrap() []error { return []error{ErrRetrieval, e.Err} }

// NewRetrievalError creates a retrieval error for a store call with the given limit.
func NewRetrievalError(limit int, err error) error {
	return &RetrievalError{Limit: limit, Err: err}
}

// InputErrorf formats a message wrapped with ErrInput.
func InputErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInput, fmt.Sprintf(format, args...))
}

// ValidationErrorf formats a message wrapped with ErrValidation.
func ValidationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
