package db

import "github.com/kailas-cloud/vecshop/internal/domain/search/filter"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string // FT index or SQL table
	Filters      filter.Filters
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit. Score is cosine similarity (1 - cosine distance),
// not yet clamped.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
