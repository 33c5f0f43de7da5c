package domain

// KeyPrefix is the default key namespace for product hashes and cached query embeddings.
const KeyPrefix = "vecshop:"

// VectorConfig holds the shared embedding space settings, not exposed to clients.
type VectorConfig struct {
	Model          string
	Dimensions     int
	DistanceMetric string
	TextPrompt     string
}

// DefaultVectorConfig returns the defaults for a CLIP ViT-B/32 style image-text space.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:          "clip-vit-base-patch32",
		Dimensions:     512,
		DistanceMetric: "cosine",
		TextPrompt:     "a photo of ",
	}
}
