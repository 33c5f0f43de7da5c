package domain

import (
	"context"
	"fmt"
)

// Embedder is the text vectorization contract of the embedding provider.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// PromptEmbedder wraps query text into a prompt template such as "a photo of {query}"
// before embedding.
type PromptEmbedder struct {
	inner  Embedder
	prefix string
}

// NewPromptEmbedder creates a decorator that prepends prefix to every text.
func NewPromptEmbedder(inner Embedder, prefix string) *PromptEmbedder {
	return &PromptEmbedder{inner: inner, prefix: prefix}
}

// Embed prepends the prompt prefix and delegates to the inner embedder.
func (e *PromptEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	result, err := e.inner.Embed(ctx, e.prefix+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("prompt embed: %w", err)
	}
	return result, nil
}
