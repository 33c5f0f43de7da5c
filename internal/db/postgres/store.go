// Package postgres implements the vector store on PostgreSQL with pgvector.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/vecshop/internal/db"
	"github.com/kailas-cloud/vecshop/internal/domain/search/filter"
)

var _ db.Store = (*Store)(nil)

// Config holds connection and table layout settings.
type Config struct {
	DSN             string
	IDColumn        string // default "id"
	EmbeddingColumn string // default "embedding"
	MaxOpenConns    int
}

// Store runs KNN queries with the pgvector cosine distance operator.
type Store struct {
	db        *sql.DB
	idCol     string
	vectorCol string
}

// NewStore opens a connection pool. The connection is verified lazily; use WaitForReady.
func NewStore(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	conn, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
		conn.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	return newStore(conn, cfg), nil
}

func newStore(conn *sql.DB, cfg Config) *Store {
	s := &Store{db: conn, idCol: cfg.IDColumn, vectorCol: cfg.EmbeddingColumn}
	if s.idCol == "" {
		s.idCol = "id"
	}
	if s.vectorCol == "" {
		s.vectorCol = "embedding"
	}
	return s
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() {
	_ = s.db.Close()
}

// WaitForReady polls Ping until the database responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitForReady(ctx, s, timeout)
}

// SearchKNN returns the K nearest rows of table q.IndexName by cosine distance.
// Filters compare lower(trim(column)) for equality.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("table name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	query, args := buildKNNSQL(q.IndexName, s.idCol, s.vectorCol, q.ReturnFields, q.Filters)
	args = append([]any{pgvector.NewVector(q.Vector)}, args...)
	args = append(args, q.K)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "42P01" { // undefined_table
			return nil, &db.Error{Op: db.OpQuery, Err: fmt.Errorf("%s: %w", q.IndexName, db.ErrIndexNotFound)}
		}
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	defer rows.Close()

	var entries []db.SearchEntry
	for rows.Next() {
		var (
			id    string
			vals  = make([]sql.NullString, len(q.ReturnFields))
			score float64
		)
		dest := make([]any, 0, len(vals)+2)
		dest = append(dest, &id)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		dest = append(dest, &score)

		if err = rows.Scan(dest...); err != nil {
			return nil, &db.Error{Op: db.OpQuery, Err: fmt.Errorf("scan row: %w", err)}
		}
		fields := make(map[string]string, len(vals))
		for i, v := range vals {
			if v.Valid {
				fields[q.ReturnFields[i]] = v.String
			}
		}
		entries = append(entries, db.SearchEntry{Key: id, Score: score, Fields: fields})
	}
	if err = rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

// buildKNNSQL renders the KNN query. $1 is the query vector, filter values follow,
// the limit is last. The returned args hold only the filter values.
func buildKNNSQL(table, idCol, vectorCol string, fields []string, f filter.Filters) (string, []any) {
	vec := pq.QuoteIdentifier(vectorCol)

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(pq.QuoteIdentifier(idCol))
	b.WriteString("::text")
	for _, name := range fields {
		b.WriteString(", ")
		b.WriteString(pq.QuoteIdentifier(name))
		b.WriteString("::text")
	}
	fmt.Fprintf(&b, ", 1 - (%s <=> $1) AS similarity FROM %s", vec, quoteTable(table))

	var args []any
	for i, c := range f.Conditions() {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		args = append(args, c.Value)
		fmt.Fprintf(&b, "lower(trim(%s)) = $%d", pq.QuoteIdentifier(c.Key), len(args)+1)
	}
	fmt.Fprintf(&b, " ORDER BY %s <=> $1 LIMIT $%d", vec, len(args)+2)
	return b.String(), args
}

// quoteTable quotes an optionally schema-qualified table name.
func quoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}
