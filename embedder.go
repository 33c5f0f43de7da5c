package vecshop

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/vecshop/internal/domain"
)

// Embedder converts query text into the same vector space as product images.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// HealthChecker is optionally implemented by an Embedder. When present,
// Client.Health probes it and reports "degraded" on failure.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// newEmbedderAdapter keeps the HealthChecker side of e visible to the pipeline.
func newEmbedderAdapter(e Embedder) domain.Embedder {
	a := &embedderAdapter{inner: e}
	if hc, ok := e.(HealthChecker); ok {
		return &checkedEmbedderAdapter{embedderAdapter: a, hc: hc}
	}
	return a
}

// checkedEmbedderAdapter also satisfies domain.HealthChecker.
type checkedEmbedderAdapter struct {
	*embedderAdapter
	hc HealthChecker
}

func (a *checkedEmbedderAdapter) HealthCheck(ctx context.Context) error {
	if err := a.hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedder health: %w", err)
	}
	return nil
}

// embedderAdapter wraps a public Embedder to satisfy domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}
