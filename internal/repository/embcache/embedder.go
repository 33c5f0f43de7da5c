// Package embcache caches query embeddings in the key-value side of the vector store.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/vecshop/internal/db"
	"github.com/kailas-cloud/vecshop/internal/domain"
)

// DefaultTTL is how long a cached query embedding lives.
const DefaultTTL = 24 * time.Hour

// DefaultCallTimeout bounds a shared provider call. It is detached from the
// caller that started it, so one canceled request cannot fail the others.
const DefaultCallTimeout = 30 * time.Second

// kv is the slice of db.KVStore the cache needs.
type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Embedder caches embeddings per (model, text) and collapses concurrent misses
// for the same text into one provider call.
type Embedder struct {
	inner       domain.Embedder
	store       kv
	model       string
	ttl         time.Duration
	callTimeout time.Duration
	group       singleflight.Group
	cacheTotal  *prometheus.CounterVec
	logger      *zap.Logger
}

// New creates a caching decorator. cacheTotal (label "result": hit/miss) may be nil.
// A non-positive ttl selects DefaultTTL.
func New(
	inner domain.Embedder,
	store kv,
	model string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *Embedder {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Embedder{
		inner:       inner,
		store:       store,
		model:       model,
		ttl:         ttl,
		callTimeout: DefaultCallTimeout,
		cacheTotal:  cacheTotal,
		logger:      logger,
	}
}

// Embed returns a cached embedding or calls the inner embedder.
// Cache hits report zero tokens and mark the request usage as a hit.
func (c *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.key(text)

	if vec, ok := c.get(ctx, key); ok {
		c.count("hit")
		domain.UsageFromContext(ctx).MarkCacheHit()
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	c.count("miss")

	var ran bool
	ch := c.group.DoChan(key, func() (any, error) {
		ran = true
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.callTimeout)
		defer cancel()

		res, err := c.inner.Embed(callCtx, text)
		if err != nil {
			return domain.EmbeddingResult{}, err
		}
		c.put(callCtx, key, res.Embedding)
		return res, nil
	})

	select {
	case <-ctx.Done():
		return domain.EmbeddingResult{}, fmt.Errorf("embed query: %w", ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return domain.EmbeddingResult{}, fmt.Errorf("embed query: %w", r.Err)
		}
		res := r.Val.(domain.EmbeddingResult) //nolint:errcheck,forcetypeassert // group only stores EmbeddingResult
		if !ran {
			// Tokens are billed to the caller whose function ran.
			res.PromptTokens, res.TotalTokens = 0, 0
		}
		return res, nil
	}
}

func (c *Embedder) count(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *Embedder) key(text string) string {
	h := sha256.Sum256([]byte(c.model + "\x00" + text))
	return domain.KeyPrefix + "emb:" + hex.EncodeToString(h[:])
}

func (c *Embedder) get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	vec, err := decode(data)
	if err != nil {
		c.logger.Warn("Embedding cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (c *Embedder) put(ctx context.Context, key string, vec []float32) {
	if err := c.store.SetWithTTL(ctx, key, encode(vec), c.ttl); err != nil {
		c.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func encode(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decode(data []byte) ([]float32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid cached embedding length %d", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
