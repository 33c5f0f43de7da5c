package vecshop

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshop/internal/domain"
	"github.com/kailas-cloud/vecshop/internal/domain/search/filter"
	"github.com/kailas-cloud/vecshop/internal/domain/search/request"
	"github.com/kailas-cloud/vecshop/internal/domain/search/result"
	"github.com/kailas-cloud/vecshop/internal/domain/search/weights"
	"github.com/kailas-cloud/vecshop/internal/logger"
)

// Weights are the ranking component weights. They must be non-negative and
// are rescaled to sum to 1.
type Weights = weights.Weights

// DefaultWeights returns {vector: 0.5, color: 0.2, category: 0.2, text: 0.1}.
func DefaultWeights() Weights { return weights.Default() }

// Breakdown holds each component's raw score and the normalized weights applied.
type Breakdown struct {
	VectorScore   float64
	ColorScore    float64
	CategoryScore float64
	TextScore     float64
	Weights       Weights
}

// Result is a ranked product.
type Result struct {
	ID         string
	Score      float64
	Similarity float64
	Distance   float64 // 1 - Similarity
	Properties map[string]any
	Breakdown  *Breakdown // nil unless Debug was set
}

// SearchResponse is the outcome of a search.
type SearchResponse struct {
	RequestID string
	Results   []Result
	// Modality is "text", "image" or "multimodal".
	Modality        string
	EmbeddingTokens int
	EmbeddingCached bool
}

// SearchBuilder assembles a search query. Zero values select the client defaults.
type SearchBuilder struct {
	client    *Client
	requestID string
	category  string
	color     string
	params    request.Params
}

// Text sets the free text query. It is embedded when no text vector is given
// and always feeds the title text score.
func (b *SearchBuilder) Text(q string) *SearchBuilder {
	b.params.Query = q
	return b
}

// TextVector sets a precomputed text embedding.
func (b *SearchBuilder) TextVector(v []float32) *SearchBuilder {
	b.params.TextVector = v
	return b
}

// Image sets the image embedding.
func (b *SearchBuilder) Image(v []float32) *SearchBuilder {
	b.params.ImageVector = v
	return b
}

// ImageWeight sets the fusion weight of the image vector.
func (b *SearchBuilder) ImageWeight(w float64) *SearchBuilder {
	b.params.ImageWeight = &w
	return b
}

// TextWeight sets the fusion weight of the text vector.
func (b *SearchBuilder) TextWeight(w float64) *SearchBuilder {
	b.params.TextWeight = &w
	return b
}

// Category restricts results to an exact category.
func (b *SearchBuilder) Category(c string) *SearchBuilder {
	b.category = c
	return b
}

// Color restricts results to an exact color.
func (b *SearchBuilder) Color(c string) *SearchBuilder {
	b.color = c
	return b
}

// Weights overrides the ranking weights.
func (b *SearchBuilder) Weights(w Weights) *SearchBuilder {
	b.params.Weights = &w
	return b
}

// TopK sets the number of results.
func (b *SearchBuilder) TopK(k int) *SearchBuilder {
	b.params.TopK = k
	return b
}

// Overfetch sets the candidate multiplier.
func (b *SearchBuilder) Overfetch(factor int) *SearchBuilder {
	b.params.OverfetchFactor = factor
	return b
}

// Debug attaches a score breakdown to every result.
func (b *SearchBuilder) Debug() *SearchBuilder {
	b.params.Debug = true
	return b
}

// RequestID sets the id used in logs. A random one is generated otherwise.
func (b *SearchBuilder) RequestID(id string) *SearchBuilder {
	b.requestID = id
	return b
}

// Do runs the search.
func (b *SearchBuilder) Do(ctx context.Context) (resp *SearchResponse, err error) {
	start := time.Now()
	defer func() { b.client.obs.observe("search", start, err) }()

	id := b.requestID
	if id == "" {
		id = uuid.NewString()
	}
	ctx = logger.ContextWithLogger(ctx, b.client.logger.With(zap.String("request_id", id)))
	ctx, usage := domain.NewContextWithUsage(ctx)

	f, err := filter.New(b.category, b.color)
	if err != nil {
		return nil, err
	}
	p := b.params
	p.Filters = f
	req, err := request.New(p, b.client.app.Limits)
	if err != nil {
		return nil, err
	}

	a := b.client.app
	if a.Prepare != nil {
		if req, err = a.Prepare.Prepare(ctx, req); err != nil {
			return nil, err
		}
	}
	results, err := a.Search.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	resp = &SearchResponse{
		RequestID:       id,
		Results:         make([]Result, 0, len(results)),
		Modality:        string(req.Modality()),
		EmbeddingTokens: usage.TotalTokens,
		EmbeddingCached: usage.CacheHit,
	}
	for i := range results {
		resp.Results = append(resp.Results, toResult(&results[i]))
	}
	return resp, nil
}

func toResult(r *result.Result) Result {
	out := Result{
		ID:         r.ID(),
		Score:      r.Score(),
		Similarity: r.Similarity(),
		Distance:   r.Distance(),
		Properties: r.Properties(),
	}
	if bd := r.Breakdown(); bd != nil {
		out.Breakdown = &Breakdown{
			VectorScore:   bd.VectorScore,
			ColorScore:    bd.ColorScore,
			CategoryScore: bd.CategoryScore,
			TextScore:     bd.TextScore,
			Weights:       bd.Weights,
		}
	}
	return out
}
