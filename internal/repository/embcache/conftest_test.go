package embcache

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshop/internal/db"
	"github.com/kailas-cloud/vecshop/internal/domain"
)

type mockEmbedder struct {
	mu      sync.Mutex
	result  domain.EmbeddingResult
	err     error
	calls   int
	gate    chan struct{}
	entered chan struct{} // signaled when a call starts waiting on gate
}

func (m *mockEmbedder) Embed(ctx context.Context, _ string) (domain.EmbeddingResult, error) {
	if m.entered != nil {
		select {
		case m.entered <- struct{}{}:
		default:
		}
	}
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return domain.EmbeddingResult{}, ctx.Err()
		}
	}
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.result, m.err
}

// memKV is an in-memory kv for tests.
type memKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	lastTTL time.Duration
	getErr  error
	setErr  error
}

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memKV) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.lastTTL = ttl
	return nil
}

func newTestEmbedder(t *testing.T, inner *mockEmbedder) (*Embedder, *memKV) {
	t.Helper()
	store := newMemKV()
	return New(inner, store, "clip", time.Hour, nil, zap.NewNop()), store
}
