package result

import (
	"github.com/kailas-cloud/vecshop/internal/domain/search/candidate"
	"github.com/kailas-cloud/vecshop/internal/domain/search/weights"
)

// Breakdown holds each component's raw score and the weights applied to it.
type Breakdown struct {
	VectorScore   float64
	ColorScore    float64
	CategoryScore float64
	TextScore     float64
	Weights       weights.Weights
}

// Result is a ranked search hit.
type Result struct {
	candidate candidate.Candidate
	score     float64
	breakdown *Breakdown
}

// New creates a ranked result. breakdown may be nil.
func New(c candidate.Candidate, score float64, breakdown *Breakdown) Result {
	return Result{candidate: c, score: score, breakdown: breakdown}
}

// Candidate returns the underlying retrieved product.
func (r Result) Candidate() candidate.Candidate { return r.candidate }

// ID returns the product identifier.
func (r Result) ID() string { return r.candidate.ID() }

// Properties returns the product attributes.
func (r Result) Properties() map[string]any { return r.candidate.Properties() }

// Similarity returns the raw vector similarity.
func (r Result) Similarity() float64 { return r.candidate.Similarity() }

// Distance returns 1 - Similarity.
func (r Result) Distance() float64 { return r.candidate.Distance() }

// Score returns the final weighted score.
func (r Result) Score() float64 { return r.score }

// Breakdown returns the score breakdown, or nil outside debug mode.
func (r Result) Breakdown() *Breakdown { return r.breakdown }
