// Package vector holds the query vector type and its normalization.
package vector

import (
	"fmt"
	"math"
)

// Vector is a fixed-dimension embedding in the shared image-text space.
type Vector []float32

// Dim returns the number of components.
func (v Vector) Dim() int { return len(v) }

// Norm returns the Euclidean (L2) norm, accumulated in float64.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v. The receiver is left untouched.
func (v Vector) Normalize() (Vector, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("cannot normalize empty vector")
	}
	n := v.Norm()
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, fmt.Errorf("cannot normalize vector with norm %v", n)
	}
	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out, nil
}
