package vecshop

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshop/internal/config"
	"github.com/kailas-cloud/vecshop/internal/db"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	cfg        config.Config
	store      db.Store
	embedder   Embedder
	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithValkey connects to a Valkey instance with the search module.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Database.Driver = config.DriverValkey
		c.cfg.Database.Addrs = []string{addr}
		c.cfg.Database.Password = password
	})
}

// WithRedis connects to a Redis 8 instance (RESP2).
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Database.Driver = config.DriverRedis
		c.cfg.Database.Addrs = []string{addr}
		c.cfg.Database.Password = password
	})
}

// WithPostgres connects to Postgres with the pgvector extension.
func WithPostgres(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Database.Driver = config.DriverPostgres
		c.cfg.Database.DSN = dsn
	})
}

// WithIndex names the product index (FT index or SQL table) and the key prefix
// stripped from hit keys.
func WithIndex(name, keyPrefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Index.Name = name
		c.cfg.Index.KeyPrefix = keyPrefix
	})
}

// WithReturnFields sets the product properties loaded with every hit.
func WithReturnFields(fields ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Index.ReturnFields = fields
	})
}

// WithEmbedder sets the query text encoder. Without one, searches need a vector.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithOpenAI uses an OpenAI-compatible embeddings endpoint as the query text encoder.
func WithOpenAI(baseURL, apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Embedding.BaseURL = baseURL
		c.cfg.Embedding.APIKey = apiKey
		c.cfg.Embedding.Model = model
	})
}

// WithDimensions sets the embedding space dimension. Default 512.
func WithDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Embedding.Dimensions = dim
	})
}

// WithTextPrompt wraps every query text, e.g. "a photo of ".
func WithTextPrompt(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Embedding.TextPrompt = prefix
	})
}

// WithRateLimit caps query embedding calls per second. rps <= 0 disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Embedding.RateLimitRPS = rps
		c.cfg.Embedding.RateLimitBurst = burst
	})
}

// WithEmbeddingCache sets the query embedding cache TTL. A negative ttl disables it.
// Only Valkey and Redis can cache.
func WithEmbeddingCache(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		if ttl < 0 {
			c.cfg.Embedding.CacheTTLSec = -1
			return
		}
		c.cfg.Embedding.CacheTTLSec = int(ttl / time.Second)
	})
}

// WithDefaultWeights sets the ranking weights used when a search sets none.
func WithDefaultWeights(w Weights) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Search.Weights = w
	})
}

// WithModalityWeights sets the default image/text fusion weights. Default 0.5/0.5.
func WithModalityWeights(image, text float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Search.ImageWeight = image
		c.cfg.Search.TextWeight = text
	})
}

// WithOverfetch sets the default over-fetch factor. Default 3.
func WithOverfetch(factor int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Search.OverfetchFactor = factor
	})
}

// WithRetrievalTimeout bounds each vector store call. Default 2s.
func WithRetrievalTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Search.RetrievalTimeoutMs = int(d / time.Millisecond)
	})
}

// WithLogger enables structured logging. Default: no logging.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (searches by status, duration)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

// withStore injects a ready store; used by tests.
func withStore(s db.Store) Option {
	return optionFunc(func(c *clientConfig) {
		c.store = s
	})
}
