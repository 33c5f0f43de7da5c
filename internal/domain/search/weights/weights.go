// Package weights holds the per-component ranking weights.
package weights

import (
	"math"

	"github.com/kailas-cloud/vecshop/internal/domain"
)

// sumTolerance is how far the weight sum may drift from 1 before renormalization.
const sumTolerance = 1e-9

// Weights are the non-negative multipliers of each ranking component.
type Weights struct {
	Vector   float64 `json:"vector" yaml:"vector"`
	Color    float64 `json:"color" yaml:"color"`
	Category float64 `json:"category" yaml:"category"`
	Text     float64 `json:"text" yaml:"text"`
}

// Default returns {vector: 0.5, color: 0.2, category: 0.2, text: 0.1}.
func Default() Weights {
	return Weights{Vector: 0.5, Color: 0.2, Category: 0.2, Text: 0.1}
}

// Sum returns the total of all components.
func (w Weights) Sum() float64 {
	return w.Vector + w.Color + w.Category + w.Text
}

// Validate rejects negative, non-finite, or all-zero weights.
func (w Weights) Validate() error {
	for _, c := range []struct {
		name  string
		value float64
	}{
		{"vector", w.Vector},
		{"color", w.Color},
		{"category", w.Category},
		{"text", w.Text},
	} {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return domain.ValidationErrorf("weight %q is not finite", c.name)
		}
		if c.value < 0 {
			return domain.ValidationErrorf("weight %q is negative (%v)", c.name, c.value)
		}
	}
	if w.Sum() == 0 {
		return domain.ValidationErrorf("weights sum to zero")
	}
	return nil
}

// Normalized validates w and rescales it proportionally so the components sum to 1.
// Weights already summing to 1 are returned as is.
func (w Weights) Normalized() (Weights, error) {
	if err := w.Validate(); err != nil {
		return Weights{}, err
	}
	sum := w.Sum()
	if math.Abs(sum-1) <= sumTolerance {
		return w, nil
	}
	return Weights{
		Vector:   w.Vector / sum,
		Color:    w.Color / sum,
		Category: w.Category / sum,
		Text:     w.Text / sum,
	}, nil
}
