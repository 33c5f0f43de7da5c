package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshop/internal/config"
	"github.com/kailas-cloud/vecshop/internal/db"
	"github.com/kailas-cloud/vecshop/internal/domain"
	"github.com/kailas-cloud/vecshop/internal/domain/search/filter"
	"github.com/kailas-cloud/vecshop/internal/domain/search/request"
	healthuc "github.com/kailas-cloud/vecshop/internal/usecase/health"
)

type memStore struct {
	mu      sync.Mutex
	kv      map[string][]byte
	lastQ   *db.KNNQuery
	pingErr error
	closed  bool
}

func newMemStore() *memStore { return &memStore{kv: map[string][]byte{}} }

func (s *memStore) Ping(context.Context) error { return s.pingErr }
func (s *memStore) Close()                     { s.closed = true }

func (s *memStore) WaitForReady(context.Context, time.Duration) error { return s.pingErr }

func (s *memStore) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	s.lastQ = q
	return &db.SearchResult{Total: 2, Entries: []db.SearchEntry{
		{Key: "vecshop:product:a", Score: 0.9, Fields: map[string]string{"title": "Red Leather Shoes", "color": "red"}},
		{Key: "vecshop:product:b", Score: 0.8, Fields: map[string]string{"title": "Blue Canvas Shoes", "color": "blue"}},
	}}, nil
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = value
	return nil
}

func (s *memStore) SetWithTTL(ctx context.Context, key string, value []byte, _ time.Duration) error {
	return s.Set(ctx, key, value)
}

type countingEmbedder struct {
	mu    sync.Mutex
	texts []string
}

func (e *countingEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.texts = append(e.texts, text)
	return domain.EmbeddingResult{Embedding: []float32{3, 4}, TotalTokens: 5}, nil
}

func testConfig() config.Config {
	cfg := config.Config{
		Database:  config.DatabaseConfig{Addrs: []string{"unused:6379"}},
		Embedding: config.EmbeddingConfig{Model: "clip", Dimensions: 2, TextPrompt: "a photo of "},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestBuild_TextQueryEndToEnd(t *testing.T) {
	store := newMemStore()
	emb := &countingEmbedder{}
	cfg := testConfig()

	a, err := Build(context.Background(), cfg, zap.NewNop(), Options{Store: store, Embedder: emb})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if a.Prepare == nil {
		t.Fatal("expected a query embedder")
	}

	f, _ := filter.New("", "red")
	req, err := request.New(request.Params{Query: "red leather shoes", Filters: f, TopK: 2}, a.Limits)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	for range 2 {
		results, err := a.Run(context.Background(), req)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(results) != 2 || results[0].ID() != "a" {
			t.Fatalf("results = %v", results)
		}
	}

	if len(emb.texts) != 1 {
		t.Errorf("provider called %d times, want 1 (second query served from cache)", len(emb.texts))
	}
	if emb.texts[0] != "a photo of red leather shoes" {
		t.Errorf("embedded %q", emb.texts[0])
	}
	if store.lastQ.K != 6 || store.lastQ.IndexName != "vecshop:products:idx" {
		t.Errorf("query = %+v", store.lastQ)
	}
}

func TestBuild_WithoutEmbedder(t *testing.T) {
	cfg := testConfig()
	cfg.Embedding.Model = ""
	store := newMemStore()

	a, err := Build(context.Background(), cfg, zap.NewNop(), Options{Store: store})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if a.Prepare != nil {
		t.Fatal("expected no query embedder")
	}

	req, _ := request.New(request.Params{Query: "shoes"}, a.Limits)
	if _, err := a.Run(context.Background(), req); !errors.Is(err, domain.ErrInput) {
		t.Fatalf("expected ErrInput for text-only query, got %v", err)
	}

	report := a.Health.Check(context.Background())
	if report.Status != healthuc.Healthy {
		t.Errorf("status = %s", report.Status)
	}
	if _, ok := report.Checks[healthuc.ComponentEmbedding]; ok {
		t.Error("embedding check must be absent")
	}
}

func TestBuild_StoreNotReady(t *testing.T) {
	store := newMemStore()
	store.pingErr = errors.New("connection refused")

	_, err := Build(context.Background(), testConfig(), zap.NewNop(), Options{Store: store})
	if err == nil {
		t.Fatal("expected error")
	}
	if !store.closed {
		t.Error("store must be closed on failure")
	}
}

func TestNewStore_UnknownDriver(t *testing.T) {
	if _, err := NewStore(config.DatabaseConfig{Driver: "mongo"}, config.IndexConfig{}); err == nil {
		t.Fatal("expected error")
	}
	if _, err := NewStore(config.DatabaseConfig{Driver: config.DriverPostgres}, config.IndexConfig{}); err == nil {
		t.Fatal("expected error for missing dsn")
	}
}

func TestPostgresConfig_CarriesTableLayout(t *testing.T) {
	cfg, err := config.Parse([]byte(`
http:
  port: 8080
database:
  driver: postgres
  dsn: postgres://localhost/shop
  max_open_conns: 4
index:
  name: catalog.items
  id_column: sku
  embedding_column: clip_vec
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	pc := postgresConfig(cfg.Database, cfg.Index)
	if pc.DSN != "postgres://localhost/shop" || pc.MaxOpenConns != 4 {
		t.Errorf("connection = %+v", pc)
	}
	if pc.IDColumn != "sku" || pc.EmbeddingColumn != "clip_vec" {
		t.Errorf("columns = %q/%q, want sku/clip_vec", pc.IDColumn, pc.EmbeddingColumn)
	}

	s, err := NewStore(cfg.Database, cfg.Index)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	s.Close()
}
