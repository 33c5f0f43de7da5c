package domain

import "context"

type embeddingUsageKey struct{}

// EmbeddingUsage collects embedding usage for a single search request.
// The front door puts a pointer into the context before vectorizing the query text;
// the embedder chain writes to it; the front door reads it for response headers.
type EmbeddingUsage struct {
	TotalTokens int
	Used        bool // embedding was requested, even when served from cache
	CacheHit    bool
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records consumed tokens.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u != nil {
		u.TotalTokens += n
		u.Used = true
	}
}

// MarkCacheHit records that the embedding was served from cache.
func (u *EmbeddingUsage) MarkCacheHit() {
	if u != nil {
		u.Used = true
		u.CacheHit = true
	}
}
