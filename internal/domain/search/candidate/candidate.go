// Package candidate defines a product returned by the vector store, before re-ranking.
package candidate

import (
	"maps"
	"math"

	"github.com/kailas-cloud/vecshop/internal/domain/search/filter"
)

// Well-known product properties.
const (
	PropTitle       = "title"
	PropDescription = "description"
	PropColor       = filter.FieldColor
	PropCategory    = filter.FieldCategory
	PropPrice       = "price"
)

// Candidate is one retrieved product. It is immutable once created.
type Candidate struct {
	id         string
	properties map[string]any
	similarity float64
}

// New creates a candidate. Similarity is clamped to [0, 1]; NaN becomes 0.
// The properties map is copied.
func New(id string, properties map[string]any, similarity float64) Candidate {
	return Candidate{
		id:         id,
		properties: maps.Clone(properties),
		similarity: clamp01(similarity),
	}
}

// ID returns the product identifier.
func (c Candidate) ID() string { return c.id }

// Properties returns a copy of the product attributes.
func (c Candidate) Properties() map[string]any { return maps.Clone(c.properties) }

// Similarity returns the cosine similarity to the query vector, in [0, 1].
func (c Candidate) Similarity() float64 { return c.similarity }

// Distance returns 1 - Similarity.
func (c Candidate) Distance() float64 { return 1 - c.similarity }

// Text returns a string property. Missing or non-string values report false.
func (c Candidate) Text(key string) (string, bool) {
	v, ok := c.properties[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Title returns the product title or "".
func (c Candidate) Title() string {
	s, _ := c.Text(PropTitle)
	return s
}

// Color returns the product color or "".
func (c Candidate) Color() string {
	s, _ := c.Text(PropColor)
	return s
}

// Category returns the product category or "".
func (c Candidate) Category() string {
	s, _ := c.Text(PropCategory)
	return s
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
