// Package app assembles the search pipeline from configuration. It is the
// composition root shared by the server, the CLI and the library client.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshop/internal/config"
	"github.com/kailas-cloud/vecshop/internal/db"
	dbPostgres "github.com/kailas-cloud/vecshop/internal/db/postgres"
	dbValkey "github.com/kailas-cloud/vecshop/internal/db/valkey"
	"github.com/kailas-cloud/vecshop/internal/domain"
	"github.com/kailas-cloud/vecshop/internal/domain/search/request"
	"github.com/kailas-cloud/vecshop/internal/domain/search/result"
	"github.com/kailas-cloud/vecshop/internal/metrics"
	"github.com/kailas-cloud/vecshop/internal/repository/embcache"
	searchrepo "github.com/kailas-cloud/vecshop/internal/repository/search"
	openaiEmb "github.com/kailas-cloud/vecshop/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/vecshop/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/vecshop/internal/usecase/health"
	"github.com/kailas-cloud/vecshop/internal/usecase/retrieval"
	searchuc "github.com/kailas-cloud/vecshop/internal/usecase/search"
	"github.com/kailas-cloud/vecshop/internal/usecase/vectorize"
)

// Options override parts of the configured wiring.
type Options struct {
	// Store replaces the configured database driver.
	Store db.Store
	// Embedder replaces the OpenAI-compatible provider. It is still cached,
	// rate limited and prompt-wrapped like the built-in one.
	Embedder domain.Embedder
}

// App is the assembled pipeline.
type App struct {
	Store   db.Store
	Search  *searchuc.Service
	Prepare *vectorize.Service // nil when no embedder is configured
	Health  *healthuc.Service
	Limits  request.Limits
}

// Build connects the store, waits for it and wires every service.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	store := opts.Store
	if store == nil {
		s, err := NewStore(cfg.Database, cfg.Index)
		if err != nil {
			return nil, err
		}
		store = s
	}

	readiness := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, readiness); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to vector store", zap.String("driver", cfg.Database.Driver))

	repo := searchrepo.New(store, searchrepo.Config{
		Index:         cfg.Index.Name,
		KeyPrefix:     cfg.Index.KeyPrefix,
		ReturnFields:  cfg.Index.ReturnFields,
		NumericFields: cfg.Index.NumericFields,
	})
	a := &App{
		Store:  store,
		Search: searchuc.New(retrieval.New(repo, cfg.RetrievalTimeout())),
		Limits: cfg.Limits(),
	}

	var checker healthuc.EmbeddingChecker
	if embedder, hc := buildEmbedder(cfg.Embedding, store, opts.Embedder, logger); embedder != nil {
		a.Prepare = vectorize.New(embedder, cfg.Embedding.Dimensions)
		checker = hc
		logger.Info("Query embedder created",
			zap.String("provider", cfg.Embedding.Provider),
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", cfg.Embedding.Dimensions),
		)
	}
	if a.Prepare == nil && !cfg.EmbeddingEnabled() {
		logger.Warn("No embedding model configured, text queries must carry a text vector")
	}
	a.Health = healthuc.New(store, checker)
	return a, nil
}

// Run embeds the query text when needed and runs the pipeline.
func (a *App) Run(ctx context.Context, req request.Request) ([]result.Result, error) {
	if a.Prepare != nil {
		prepared, err := a.Prepare.Prepare(ctx, req)
		if err != nil {
			return nil, err
		}
		req = prepared
	}
	return a.Search.Search(ctx, req)
}

// Close releases the store connection.
func (a *App) Close() {
	if a.Store != nil {
		a.Store.Close()
	}
}

// NewStore creates the vector store for the configured driver.
// idx supplies the table layout for postgres.
func NewStore(cfg config.DatabaseConfig, idx config.IndexConfig) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverValkey, config.DriverRedis:
		s, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
			RESP2:    cfg.Driver == config.DriverRedis,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
		}
		return s, nil
	case config.DriverPostgres:
		s, err := dbPostgres.NewStore(postgresConfig(cfg, idx))
		if err != nil {
			return nil, fmt.Errorf("create postgres store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func postgresConfig(cfg config.DatabaseConfig, idx config.IndexConfig) dbPostgres.Config {
	return dbPostgres.Config{
		DSN:             cfg.DSN,
		IDColumn:        idx.IDColumn,
		EmbeddingColumn: idx.EmbeddingColumn,
		MaxOpenConns:    cfg.MaxOpenConns,
	}
}

// buildEmbedder assembles the decorator chain:
// provider -> Instrumented (rate limit) -> Cached -> Prompt.
// The cache sits outside the limiter so hits never spend rate budget.
// Returns nil when neither a model nor a custom embedder is configured.
func buildEmbedder(
	cfg config.EmbeddingConfig,
	store db.Store,
	custom domain.Embedder,
	logger *zap.Logger,
) (domain.Embedder, healthuc.EmbeddingChecker) {
	var (
		base    domain.Embedder
		checker healthuc.EmbeddingChecker
	)
	switch {
	case custom != nil:
		base = custom
		if hc, ok := custom.(domain.HealthChecker); ok {
			checker = hc
		}
	case cfg.Model != "":
		oa := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Provider:   cfg.Provider,
			MaxRetries: cfg.MaxRetries,
			Logger:     logger,
		})
		base, checker = oa, oa
	default:
		return nil, nil
	}

	var embedder domain.Embedder = embeddinguc.NewInstrumentedEmbedder(
		base, cfg.Provider, cfg.Model,
		embeddinguc.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst), logger,
	)

	if kv, ok := store.(db.KVStore); ok && cfg.CacheTTLSec >= 0 {
		ttl := time.Duration(cfg.CacheTTLSec) * time.Second
		embedder = embcache.New(embedder, kv, cfg.Model, ttl, metrics.EmbeddingCacheTotal, logger)
	}

	if cfg.TextPrompt != "" {
		embedder = domain.NewPromptEmbedder(embedder, cfg.TextPrompt)
	}
	return embedder, checker
}
