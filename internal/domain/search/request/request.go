package request

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/vecshop/internal/domain"
	"github.com/kailas-cloud/vecshop/internal/domain/search/filter"
	"github.com/kailas-cloud/vecshop/internal/domain/search/mode"
	"github.com/kailas-cloud/vecshop/internal/domain/search/weights"
	"github.com/kailas-cloud/vecshop/internal/domain/vector"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed query text length in characters.
	MaxQueryLength         = 4096
	DefaultTopK            = 10
	MaxTopK                = 500
	DefaultOverfetchFactor = 3
	MaxOverfetchFactor     = 20
	DefaultModalityWeight  = 0.5
)

// Limits carries the deployment defaults applied to every request.
type Limits struct {
	DefaultTopK        int
	MaxTopK            int
	DefaultOverfetch   int
	MaxOverfetch       int
	Dimensions         int // 0 disables the dimension check
	DefaultWeights     weights.Weights
	DefaultImageWeight float64
	DefaultTextWeight  float64
}

// DefaultLimits returns the built-in limits.
func DefaultLimits() Limits {
	return Limits{
		DefaultTopK:        DefaultTopK,
		MaxTopK:            MaxTopK,
		DefaultOverfetch:   DefaultOverfetchFactor,
		MaxOverfetch:       MaxOverfetchFactor,
		DefaultWeights:     weights.Default(),
		DefaultImageWeight: DefaultModalityWeight,
		DefaultTextWeight:  DefaultModalityWeight,
	}
}

// Params are the raw caller inputs. Zero values select defaults.
type Params struct {
	Query           string
	TextVector      vector.Vector
	ImageVector     vector.Vector
	ImageWeight     *float64
	TextWeight      *float64
	Filters         filter.Filters
	Weights         *weights.Weights
	TopK            int
	OverfetchFactor int
	Debug           bool
}

// Request is a validated, immutable search query.
type Request struct {
	query       string
	textVector  vector.Vector
	imageVector vector.Vector
	imageWeight float64
	textWeight  float64
	filters     filter.Filters
	weights     weights.Weights
	topK        int
	overfetch   int
	debug       bool
	dims        int
}

// New validates p against lim and fills defaults.
// Either query text or at least one vector is required. Text-only requests
// must get a text vector through WithTextVector before fusion.
func New(p Params, lim Limits) (Request, error) {
	query := strings.TrimSpace(p.Query)
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return Request{}, domain.InputErrorf("query too long (max %d chars)", MaxQueryLength)
	}
	if query == "" && len(p.TextVector) == 0 && len(p.ImageVector) == 0 {
		return Request{}, domain.InputErrorf("query text or a vector is required")
	}
	if err := checkDims("text_vector", p.TextVector, lim.Dimensions); err != nil {
		return Request{}, err
	}
	if err := checkDims("image_vector", p.ImageVector, lim.Dimensions); err != nil {
		return Request{}, err
	}

	topK, err := bounded("top_k", p.TopK, lim.DefaultTopK, lim.MaxTopK)
	if err != nil {
		return Request{}, err
	}
	overfetch, err := bounded("overfetch_factor", p.OverfetchFactor, lim.DefaultOverfetch, lim.MaxOverfetch)
	if err != nil {
		return Request{}, err
	}

	w := lim.DefaultWeights
	if p.Weights != nil {
		w = *p.Weights
	}
	if err := w.Validate(); err != nil {
		return Request{}, err
	}

	imageWeight, err := modalityWeight("image_weight", p.ImageWeight, lim.DefaultImageWeight)
	if err != nil {
		return Request{}, err
	}
	textWeight, err := modalityWeight("text_weight", p.TextWeight, lim.DefaultTextWeight)
	if err != nil {
		return Request{}, err
	}

	return Request{
		query:       query,
		textVector:  p.TextVector,
		imageVector: p.ImageVector,
		imageWeight: imageWeight,
		textWeight:  textWeight,
		filters:     p.Filters,
		weights:     w,
		topK:        topK,
		overfetch:   overfetch,
		debug:       p.Debug,
		dims:        lim.Dimensions,
	}, nil
}

// WithTextVector returns a copy of r carrying an embedded query vector.
func (r Request) WithTextVector(v vector.Vector) (Request, error) {
	if err := checkDims("text_vector", v, r.dims); err != nil {
		return Request{}, err
	}
	r.textVector = v
	return r, nil
}

// Query returns the free text used for lexical scoring.
func (r Request) Query() string { return r.query }

// TextVector returns the text embedding, if any.
func (r Request) TextVector() vector.Vector { return r.textVector }

// ImageVector returns the image embedding, if any.
func (r Request) ImageVector() vector.Vector { return r.imageVector }

// ImageWeight returns the fusion weight of the image vector.
func (r Request) ImageWeight() float64 { return r.imageWeight }

// TextWeight returns the fusion weight of the text vector.
func (r Request) TextWeight() float64 { return r.textWeight }

// Filters returns the pushed-down attribute filters.
func (r Request) Filters() filter.Filters { return r.filters }

// Weights returns the ranking weights as supplied (not renormalized).
func (r Request) Weights() weights.Weights { return r.weights }

// TopK returns the number of results to return.
func (r Request) TopK() int { return r.topK }

// OverfetchFactor returns the candidate multiplier.
func (r Request) OverfetchFactor() int { return r.overfetch }

// FetchLimit returns TopK × OverfetchFactor.
func (r Request) FetchLimit() int { return r.topK * r.overfetch }

// Debug reports whether score breakdowns are requested.
func (r Request) Debug() bool { return r.debug }

// Modality reports which vectors the request carries.
func (r Request) Modality() mode.Modality {
	return mode.Of(len(r.textVector) > 0, len(r.imageVector) > 0)
}

func checkDims(name string, v vector.Vector, dims int) error {
	if len(v) == 0 || dims <= 0 {
		return nil
	}
	if v.Dim() != dims {
		return domain.InputErrorf("%s has %d dimensions, expected %d", name, v.Dim(), dims)
	}
	return nil
}

func bounded(name string, v, def, maxV int) (int, error) {
	if v < 0 {
		return 0, domain.ValidationErrorf("%s must be positive", name)
	}
	if v == 0 {
		v = def
	}
	if maxV > 0 && v > maxV {
		v = maxV
	}
	if v <= 0 {
		return 0, domain.ValidationErrorf("%s must be positive", name)
	}
	return v, nil
}

func modalityWeight(name string, v *float64, def float64) (float64, error) {
	if v == nil {
		return def, nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		return 0, domain.ValidationErrorf("%s must be a non-negative number", name)
	}
	return *v, nil
}
