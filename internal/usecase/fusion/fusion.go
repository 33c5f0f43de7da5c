// Package fusion combines text and image query embeddings into one search vector.
package fusion

import (
	"math"

	"github.com/kailas-cloud/vecshop/internal/domain"
	"github.com/kailas-cloud/vecshop/internal/domain/vector"
)

// WeightTolerance is how far imageWeight+textWeight may drift from 1 before
// both weights are rescaled.
const WeightTolerance = 0.01

// Fuse builds a unit-norm query vector from an optional image and text embedding.
// With a single vector it returns that vector normalized. With both it returns the
// normalized weighted sum, rescaling the weights to sum to 1 when they drift past
// WeightTolerance.
func Fuse(image, text vector.Vector, imageWeight, textWeight float64) (vector.Vector, error) {
	hasImage, hasText := len(image) > 0, len(text) > 0

	switch {
	case !hasImage && !hasText:
		return nil, domain.InputErrorf("no image or text vector to fuse")
	case !hasText:
		return normalize("image", image)
	case !hasImage:
		return normalize("text", text)
	}

	if image.Dim() != text.Dim() {
		return nil, domain.InputErrorf("image vector has %d dimensions, text vector has %d",
			image.Dim(), text.Dim())
	}

	iw, tw, err := rescale(imageWeight, textWeight)
	if err != nil {
		return nil, err
	}

	// Normalize inputs so the weights act on directions, not magnitudes.
	in, err := normalize("image", image)
	if err != nil {
		return nil, err
	}
	tn, err := normalize("text", text)
	if err != nil {
		return nil, err
	}

	sum := make(vector.Vector, in.Dim())
	for i := range sum {
		sum[i] = float32(iw*float64(in[i]) + tw*float64(tn[i]))
	}
	out, err := sum.Normalize()
	if err != nil {
		return nil, domain.InputErrorf("fused vector is degenerate: %v", err)
	}
	return out, nil
}

// rescale returns the weights unchanged when they sum to 1 within WeightTolerance,
// otherwise scaled proportionally to sum to 1.
func rescale(imageWeight, textWeight float64) (float64, float64, error) {
	for _, w := range []float64{imageWeight, textWeight} {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return 0, 0, domain.InputErrorf("fusion weights must be non-negative numbers, got %v/%v",
				imageWeight, textWeight)
		}
	}
	sum := imageWeight + textWeight
	if sum == 0 {
		return 0, 0, domain.InputErrorf("fusion weights sum to zero")
	}
	if math.Abs(sum-1) > WeightTolerance {
		return imageWeight / sum, textWeight / sum, nil
	}
	return imageWeight, textWeight, nil
}

func normalize(name string, v vector.Vector) (vector.Vector, error) {
	out, err := v.Normalize()
	if err != nil {
		return nil, domain.InputErrorf("%s vector: %v", name, err)
	}
	return out, nil
}
