package chi

import (
	"github.com/kailas-cloud/vecshop/internal/domain/search/result"
	"github.com/kailas-cloud/vecshop/internal/domain/search/weights"
)

// ErrorCode is a machine-readable error kind in ErrorResponse.
type ErrorCode string

// Error codes returned by the API.
const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeUnauthorized     ErrorCode = "unauthorized"
	ErrorCodeInvalidInput     ErrorCode = "invalid_input"
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeEmbeddingFailed  ErrorCode = "embedding_provider_error"
	ErrorCodeRateLimited      ErrorCode = "rate_limited"
	ErrorCodeRetrievalFailed  ErrorCode = "retrieval_failed"
	ErrorCodeRetrievalTimeout ErrorCode = "retrieval_timeout"
	ErrorCodeInternal         ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// FiltersBody holds the optional exact-match attribute filters.
type FiltersBody struct {
	Category string `json:"category,omitempty"`
	Color    string `json:"color,omitempty"`
}

// SearchRequest is the POST /v1/search body.
type SearchRequest struct {
	Query           string           `json:"query,omitempty"`
	TextVector      []float32        `json:"text_vector,omitempty"`
	ImageVector     []float32        `json:"image_vector,omitempty"`
	ImageWeight     *float64         `json:"image_weight,omitempty"`
	TextWeight      *float64         `json:"text_weight,omitempty"`
	Filters         *FiltersBody     `json:"filters,omitempty"`
	Weights         *weights.Weights `json:"weights,omitempty"`
	TopK            int              `json:"top_k,omitempty"`
	OverfetchFactor int              `json:"overfetch_factor,omitempty"`
	Debug           bool             `json:"debug,omitempty"`
}

// SearchParams are the GET /v1/search query parameters.
type SearchParams struct {
	Q               *string
	Category        *string
	Color           *string
	TopK            *int
	OverfetchFactor *int
	Debug           *bool
}

// Breakdown explains how a result's score was composed.
type Breakdown struct {
	VectorScore   float64         `json:"vector_score"`
	ColorScore    float64         `json:"color_score"`
	CategoryScore float64         `json:"category_score"`
	TextScore     float64         `json:"text_score"`
	Weights       weights.Weights `json:"weights"`
}

// SearchResultItem is one ranked product.
type SearchResultItem struct {
	ID         string         `json:"id"`
	Score      float64        `json:"score"`
	Similarity float64        `json:"similarity"`
	Distance   float64        `json:"distance"`
	Properties map[string]any `json:"properties"`
	Breakdown  *Breakdown     `json:"breakdown,omitempty"`
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Items    []SearchResultItem `json:"items"`
	Total    int                `json:"total"`
	TopK     int                `json:"top_k"`
	Modality string             `json:"modality"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// NewSearchResultItem converts a ranked result to its wire form.
func NewSearchResultItem(r *result.Result) SearchResultItem {
	item := SearchResultItem{
		ID:         r.ID(),
		Score:      r.Score(),
		Similarity: r.Similarity(),
		Distance:   r.Distance(),
		Properties: r.Properties(),
	}
	if item.Properties == nil {
		item.Properties = map[string]any{}
	}
	if bd := r.Breakdown(); bd != nil {
		item.Breakdown = &Breakdown{
			VectorScore:   bd.VectorScore,
			ColorScore:    bd.ColorScore,
			CategoryScore: bd.CategoryScore,
			TextScore:     bd.TextScore,
			Weights:       bd.Weights,
		}
	}
	return item
}
