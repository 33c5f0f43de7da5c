package vecshop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshop/internal/app"
	"github.com/kailas-cloud/vecshop/internal/domain"
)

// Client is the vecshop library entry point. It is safe for concurrent use.
type Client struct {
	app    *app.App
	logger *zap.Logger
	obs    *observer
}

// New creates a Client and connects to the vector store.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cc := &clientConfig{}
	for _, o := range opts {
		o.apply(cc)
	}

	if cc.store == nil && cc.cfg.Database.Driver == "" {
		return nil, errors.New("vecshop: vector store required (use WithValkey, WithRedis or WithPostgres)")
	}

	cfg := cc.cfg
	cfg.ApplyDefaults()
	validate := cfg.ValidatePipeline
	if cc.store != nil {
		validate = cfg.ValidateSearch
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("vecshop: %w", err)
	}

	logger := cc.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	obs, err := newObserver(logger, cc.metricsReg)
	if err != nil {
		return nil, err
	}

	var embedder domain.Embedder
	if cc.embedder != nil {
		embedder = newEmbedderAdapter(cc.embedder)
	}

	a, err := app.Build(ctx, cfg, logger, app.Options{Store: cc.store, Embedder: embedder})
	if err != nil {
		return nil, fmt.Errorf("vecshop: %w", err)
	}
	return &Client{app: a, logger: logger, obs: obs}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	c.app.Close()
}

// Ping checks vector store connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.app.Store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Search starts a new search query.
func (c *Client) Search() *SearchBuilder {
	return &SearchBuilder{client: c}
}
