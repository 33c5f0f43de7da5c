// Package search adapts a db.Searcher into the vector store the retrieval stage queries.
package search

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/kailas-cloud/vecshop/internal/db"
	"github.com/kailas-cloud/vecshop/internal/domain"
	"github.com/kailas-cloud/vecshop/internal/domain/search/candidate"
	"github.com/kailas-cloud/vecshop/internal/domain/search/filter"
	"github.com/kailas-cloud/vecshop/internal/domain/vector"
)

// DefaultReturnFields are the product properties loaded with every hit.
var DefaultReturnFields = []string{
	candidate.PropTitle,
	candidate.PropDescription,
	candidate.PropColor,
	candidate.PropCategory,
	candidate.PropPrice,
}

// DefaultNumericFields are parsed to float64 when loading properties.
var DefaultNumericFields = []string{candidate.PropPrice}

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Config describes where products live in the store.
type Config struct {
	Index         string   // FT index name or SQL table
	KeyPrefix     string   // stripped from hit keys to get product ids
	ReturnFields  []string // default DefaultReturnFields
	NumericFields []string // default DefaultNumericFields
}

// Repo implements retrieval.VectorStore.
type Repo struct {
	store        store
	index        string
	keyPrefix    string
	returnFields []string
	numeric      []string
}

// New creates a search repository.
func New(s store, cfg Config) *Repo {
	r := &Repo{
		store:        s,
		index:        cfg.Index,
		keyPrefix:    cfg.KeyPrefix,
		returnFields: cfg.ReturnFields,
		numeric:      cfg.NumericFields,
	}
	if r.index == "" {
		r.index = domain.KeyPrefix + "products:idx"
	}
	if len(r.returnFields) == 0 {
		r.returnFields = DefaultReturnFields
	}
	if r.numeric == nil {
		r.numeric = DefaultNumericFields
	}
	return r
}

// Search runs a filtered KNN query for at most limit products.
func (r *Repo) Search(
	ctx context.Context, vec vector.Vector, filters filter.Filters, limit int,
) ([]candidate.Candidate, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.index,
		Filters:      filters,
		Vector:       vec,
		K:            limit,
		ReturnFields: r.returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", r.index, err)
	}
	return r.toCandidates(sr), nil
}

func (r *Repo) toCandidates(sr *db.SearchResult) []candidate.Candidate {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}
	out := make([]candidate.Candidate, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		id := strings.TrimPrefix(e.Key, r.keyPrefix)
		out = append(out, candidate.New(id, r.properties(e.Fields), e.Score))
	}
	return out
}

func (r *Repo) properties(fields map[string]string) map[string]any {
	props := make(map[string]any, len(fields))
	for k, v := range fields {
		if slices.Contains(r.numeric, k) {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				props[k] = f
				continue
			}
		}
		props[k] = v
	}
	return props
}
