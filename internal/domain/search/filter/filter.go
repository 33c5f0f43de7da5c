package filter

import (
	"strings"

	"github.com/kailas-cloud/vecshop/internal/domain"
)

// Filterable product attributes.
const (
	FieldCategory = "category"
	FieldColor    = "color"
)

// MaxValueLength is the maximum length of a single filter value.
const MaxValueLength = 256

// Filters holds optional exact-match constraints. An unset field means no constraint.
// Values are stored normalized (trimmed, lower-cased).
type Filters struct {
	category string
	color    string
}

// New validates and normalizes filter values. Blank values are treated as unset.
func New(category, color string) (Filters, error) {
	category = Normalize(category)
	color = Normalize(color)
	if len(category) > MaxValueLength {
		return Filters{}, domain.InputErrorf("category filter too long (max %d chars)", MaxValueLength)
	}
	if len(color) > MaxValueLength {
		return Filters{}, domain.InputErrorf("color filter too long (max %d chars)", MaxValueLength)
	}
	return Filters{category: category, color: color}, nil
}

// Category returns the category constraint and whether it is set.
func (f Filters) Category() (string, bool) { return f.category, f.category != "" }

// Color returns the color constraint and whether it is set.
func (f Filters) Color() (string, bool) { return f.color, f.color != "" }

// IsEmpty reports whether no constraint is set.
func (f Filters) IsEmpty() bool { return f.category == "" && f.color == "" }

// Condition is a single field = value constraint, ready to be pushed down to a store.
type Condition struct {
	Key   string
	Value string
}

// Conditions returns the set constraints in a fixed order (category, then color).
func (f Filters) Conditions() []Condition {
	var out []Condition
	if f.category != "" {
		out = append(out, Condition{Key: FieldCategory, Value: f.category})
	}
	if f.color != "" {
		out = append(out, Condition{Key: FieldColor, Value: f.color})
	}
	return out
}

// Normalize trims and lower-cases an attribute value for comparison.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Equal compares two attribute values case-insensitively after trimming.
// An empty side never matches.
func Equal(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	return na != "" && na == nb
}
