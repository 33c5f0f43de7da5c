package vecshop

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshop/internal/db"
)

type memStore struct {
	mu        sync.Mutex
	kv        map[string][]byte
	entries   []db.SearchEntry
	lastQ     *db.KNNQuery
	searchErr error
	pingErr   error
	closed    bool
}

func newMemStore() *memStore {
	return &memStore{
		kv: map[string][]byte{},
		entries: []db.SearchEntry{
			{Key: "vecshop:product:a", Score: 0.9, Fields: map[string]string{
				"title": "Red Leather Shoes", "color": "red", "category": "shoes", "price": "89.5",
			}},
			{Key: "vecshop:product:b", Score: 0.8, Fields: map[string]string{
				"title": "Blue Canvas Shoes", "color": "blue", "category": "shoes", "price": "40",
			}},
		},
	}
}

func (s *memStore) Ping(context.Context) error { return s.pingErr }
func (s *memStore) Close()                     { s.closed = true }

func (s *memStore) WaitForReady(context.Context, time.Duration) error { return nil }

func (s *memStore) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQ = q
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return &db.SearchResult{Total: len(s.entries), Entries: s.entries}, nil
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

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

func newTestClient(t *testing.T, store *memStore, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{withStore(store), WithDimensions(2)}, opts...)
	c, err := New(context.Background(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestNew_NoStore(t *testing.T) {
	_, err := New(context.Background())
	if err == nil {
		t.Fatal("expected error when no store is configured")
	}
}

func TestNew_MissingPostgresDSN(t *testing.T) {
	_, err := New(context.Background(), WithPostgres(""))
	if err == nil || !strings.Contains(err.Error(), "dsn") {
		t.Fatalf("expected dsn error, got %v", err)
	}
}

func TestNew_InvalidDefaultWeights(t *testing.T) {
	_, err := New(context.Background(), withStore(newMemStore()),
		WithDefaultWeights(Weights{Vector: -1, Color: 1}))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestClientOptions(t *testing.T) {
	cc := &clientConfig{}
	for _, o := range []Option{
		WithRedis("redis:6379", "secret"),
		WithIndex("shop:idx", "shop:item:"),
		WithReturnFields("title", "color"),
		WithTextPrompt("a photo of "),
		WithOverfetch(5),
		WithRetrievalTimeout(750 * time.Millisecond),
		WithEmbeddingCache(-time.Second),
		WithRateLimit(10, 20),
		WithModalityWeights(0.7, 0.3),
	} {
		o.apply(cc)
	}

	cfg := cc.cfg
	if cfg.Database.Driver != "redis" || cfg.Database.Addrs[0] != "redis:6379" || cfg.Database.Password != "secret" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Index.Name != "shop:idx" || cfg.Index.KeyPrefix != "shop:item:" || len(cfg.Index.ReturnFields) != 2 {
		t.Errorf("index = %+v", cfg.Index)
	}
	if cfg.Embedding.TextPrompt != "a photo of " || cfg.Embedding.CacheTTLSec != -1 {
		t.Errorf("embedding = %+v", cfg.Embedding)
	}
	if cfg.Embedding.RateLimitRPS != 10 || cfg.Embedding.RateLimitBurst != 20 {
		t.Errorf("rate limit = %v/%d", cfg.Embedding.RateLimitRPS, cfg.Embedding.RateLimitBurst)
	}
	if cfg.Search.OverfetchFactor != 5 || cfg.Search.RetrievalTimeoutMs != 750 {
		t.Errorf("search = %+v", cfg.Search)
	}
	if cfg.Search.ImageWeight != 0.7 || cfg.Search.TextWeight != 0.3 {
		t.Errorf("modality weights = %v/%v", cfg.Search.ImageWeight, cfg.Search.TextWeight)
	}
}

func TestSearch_TextQuery(t *testing.T) {
	store := newMemStore()
	var texts []string
	emb := &mockEmbedder{fn: func(_ context.Context, text string) (EmbeddingResult, error) {
		texts = append(texts, text)
		return EmbeddingResult{Embedding: []float32{3, 4}, TotalTokens: 7}, nil
	}}
	c := newTestClient(t, store, WithEmbedder(emb), WithTextPrompt("a photo of "))

	resp, err := c.Search().Text("red leather shoes").Color("Red").TopK(2).Do(context.Background())
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.Modality != "text" {
		t.Errorf("modality = %q", resp.Modality)
	}
	if len(resp.Results) != 2 || resp.Results[0].ID != "a" {
		t.Fatalf("results = %+v", resp.Results)
	}
	if resp.Results[0].Breakdown != nil {
		t.Error("breakdown must be nil without Debug")
	}
	if d := resp.Results[0].Distance; math.Abs(d-0.1) > 1e-9 {
		t.Errorf("distance = %v, want 0.1", d)
	}
	if resp.Results[0].Properties["price"] != 89.5 {
		t.Errorf("price = %v", resp.Results[0].Properties["price"])
	}
	if resp.EmbeddingTokens != 7 || resp.EmbeddingCached {
		t.Errorf("usage = %d/%v", resp.EmbeddingTokens, resp.EmbeddingCached)
	}
	if resp.RequestID == "" {
		t.Error("expected a generated request id")
	}
	if store.lastQ.K != 6 {
		t.Errorf("fetch limit = %d, want 6", store.lastQ.K)
	}
	if len(texts) != 1 || texts[0] != "a photo of red leather shoes" {
		t.Errorf("embedded %q", texts)
	}

	resp, err = c.Search().Text("red leather shoes").TopK(2).Do(context.Background())
	if err != nil {
		t.Fatalf("second Do: %v", err)
	}
	if !resp.EmbeddingCached || resp.EmbeddingTokens != 0 {
		t.Errorf("second usage = %d/%v", resp.EmbeddingTokens, resp.EmbeddingCached)
	}
	if len(texts) != 1 {
		t.Errorf("provider called %d times, want 1", len(texts))
	}
}

func TestSearch_ImageDebug(t *testing.T) {
	c := newTestClient(t, newMemStore())

	resp, err := c.Search().
		Image([]float32{0, 1}).
		Category("shoes").
		Weights(Weights{Vector: 1, Color: 1}).
		RequestID("req-1").
		Debug().
		Do(context.Background())
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.Modality != "image" || resp.RequestID != "req-1" {
		t.Errorf("resp = %+v", resp)
	}
	bd := resp.Results[0].Breakdown
	if bd == nil {
		t.Fatal("expected breakdown")
	}
	if bd.Weights.Vector != 0.5 || bd.Weights.Color != 0.5 {
		t.Errorf("weights not normalized: %+v", bd.Weights)
	}
	if bd.CategoryScore != 1 || bd.ColorScore != 0 {
		t.Errorf("breakdown = %+v", bd)
	}
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func(c *Client) *SearchBuilder
		store func(s *memStore)
		want  error
	}{
		{
			name:  "no query",
			build: func(c *Client) *SearchBuilder { return c.Search() },
			want:  ErrInput,
		},
		{
			name:  "text without embedder",
			build: func(c *Client) *SearchBuilder { return c.Search().Text("shoes") },
			want:  ErrInput,
		},
		{
			name:  "wrong dimensions",
			build: func(c *Client) *SearchBuilder { return c.Search().Image([]float32{1, 2, 3}) },
			want:  ErrInput,
		},
		{
			name:  "filter too long",
			build: func(c *Client) *SearchBuilder { return c.Search().Image([]float32{1, 0}).Color(strings.Repeat("x", 300)) },
			want:  ErrInput,
		},
		{
			name: "negative weight",
			build: func(c *Client) *SearchBuilder {
				return c.Search().Image([]float32{1, 0}).Weights(Weights{Vector: 1, Text: -0.1})
			},
			want: ErrValidation,
		},
		{
			name:  "store failure",
			build: func(c *Client) *SearchBuilder { return c.Search().Image([]float32{1, 0}) },
			store: func(s *memStore) { s.searchErr = db.ErrIndexNotFound },
			want:  ErrRetrieval,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			if tc.store != nil {
				tc.store(store)
			}
			c := newTestClient(t, store)

			_, err := tc.build(c).Do(context.Background())
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSearch_RetrievalErrorCarriesLimit(t *testing.T) {
	store := newMemStore()
	store.searchErr = db.ErrIndexNotFound
	c := newTestClient(t, store)

	_, err := c.Search().Image([]float32{1, 0}).TopK(4).Overfetch(2).Do(context.Background())
	var re *RetrievalError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RetrievalError, got %v", err)
	}
	if re.Limit != 8 {
		t.Errorf("limit = %d, want 8", re.Limit)
	}
}

func TestClient_PingAndHealth(t *testing.T) {
	store := newMemStore()
	c := newTestClient(t, store)

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if h := c.Health(context.Background()); h.Status != "ok" || h.Checks["vector_store"] != "ok" {
		t.Errorf("health = %+v", h)
	}

	store.pingErr = errors.New("connection refused")
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error")
	}
	if h := c.Health(context.Background()); h.Status != "error" {
		t.Errorf("status = %q, want error", h.Status)
	}
}

type checkedEmbedder struct {
	mockEmbedder
	healthErr error
}

func (e *checkedEmbedder) HealthCheck(context.Context) error { return e.healthErr }

func TestClient_HealthProbesCustomEmbedder(t *testing.T) {
	emb := &checkedEmbedder{mockEmbedder: mockEmbedder{fn: func(context.Context, string) (EmbeddingResult, error) {
		return EmbeddingResult{Embedding: []float32{1, 0}}, nil
	}}}
	c := newTestClient(t, newMemStore(), WithEmbedder(emb))

	if h := c.Health(context.Background()); h.Status != "ok" || h.Checks["embedding"] != "ok" {
		t.Errorf("health = %+v", h)
	}

	emb.healthErr = errors.New("model offline")
	if h := c.Health(context.Background()); h.Status != "degraded" || h.Checks["embedding"] != "error" {
		t.Errorf("health = %+v, want degraded", h)
	}
}

func TestClient_HealthWithoutEmbedderCheck(t *testing.T) {
	emb := &mockEmbedder{fn: func(context.Context, string) (EmbeddingResult, error) {
		return EmbeddingResult{Embedding: []float32{1, 0}}, nil
	}}
	c := newTestClient(t, newMemStore(), WithEmbedder(emb))

	if _, ok := c.Health(context.Background()).Checks["embedding"]; ok {
		t.Error("embedding check must be absent when the embedder cannot be probed")
	}
}

func TestClient_Close(t *testing.T) {
	store := newMemStore()
	c, err := New(context.Background(), withStore(store))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Close()
	if !store.closed {
		t.Error("store not closed")
	}
}

func TestEmbedderAdapter_Error(t *testing.T) {
	a := &embedderAdapter{inner: &mockEmbedder{fn: func(context.Context, string) (EmbeddingResult, error) {
		return EmbeddingResult{}, errors.New("model offline")
	}}}
	if _, err := a.Embed(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "model offline") {
		t.Fatalf("err = %v", err)
	}
}

func TestObserver_NilSafe(t *testing.T) {
	var obs *observer
	obs.observe("test", time.Now(), nil)
	obs.observe("test", time.Now(), errors.New("err"))
}

func TestObserver_WithPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(zap.NewNop(), reg)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}

	obs.observe("search", time.Now().Add(-10*time.Millisecond), nil)
	obs.observe("search", time.Now(), errors.New("fail"))

	if got := testutil.ToFloat64(obs.metrics.operations.WithLabelValues("search", "ok")); got != 1 {
		t.Errorf("ok count = %v", got)
	}
	if got := testutil.ToFloat64(obs.metrics.operations.WithLabelValues("search", "error")); got != 1 {
		t.Errorf("error count = %v", got)
	}

	// A second client on the same registry reuses the collectors.
	again, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("second newObserver: %v", err)
	}
	if again.metrics.operations != obs.metrics.operations {
		t.Error("expected the registered counter to be reused")
	}
}

func TestSearch_ObservedInMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newTestClient(t, newMemStore(), WithPrometheus(reg), WithLogger(zap.NewNop()))

	if _, err := c.Search().Image([]float32{1, 0}).Do(context.Background()); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if _, err := c.Search().Do(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	ops := c.obs.metrics.operations
	if testutil.ToFloat64(ops.WithLabelValues("search", "ok")) != 1 ||
		testutil.ToFloat64(ops.WithLabelValues("search", "error")) != 1 {
		t.Error("search outcomes not counted")
	}
}
