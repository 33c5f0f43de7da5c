package mode

// Modality describes which query signals a search carries.
type Modality string

// Modality constants.
const (
	Text  Modality = "text"
	Image Modality = "image"
	// Multimodal carries both a text and an image vector, fused before retrieval.
	Multimodal Modality = "multimodal"
	None       Modality = "none"
)

// Of derives the modality from the presence of each query vector.
func Of(hasText, hasImage bool) Modality {
	switch {
	case hasText && hasImage:
		return Multimodal
	case hasText:
		return Text
	case hasImage:
		return Image
	default:
		return None
	}
}

