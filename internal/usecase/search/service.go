package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshop/internal/domain/search/request"
	"github.com/kailas-cloud/vecshop/internal/domain/search/result"
	"github.com/kailas-cloud/vecshop/internal/logger"
	"github.com/kailas-cloud/vecshop/internal/metrics"
	"github.com/kailas-cloud/vecshop/internal/usecase/fusion"
	"github.com/kailas-cloud/vecshop/internal/usecase/ranking"
)

// Service runs fuse → retrieve → rank → truncate for a single request.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	retriever Retriever
}

// New creates the search pipeline.
func New(retriever Retriever) *Service {
	return &Service{retriever: retriever}
}

// Search executes the pipeline. The first stage error is returned unchanged.
// An empty candidate set yields an empty, non-nil result.
func (s *Service) Search(ctx context.Context, req request.Request) ([]result.Result, error) {
	log := logger.FromContext(ctx)
	start := time.Now()
	stage := StageReceived

	if err := ctx.Err(); err != nil {
		return nil, s.fail(log, stage, err)
	}

	t := time.Now()
	vec, err := fusion.Fuse(req.ImageVector(), req.TextVector(), req.ImageWeight(), req.TextWeight())
	if err != nil {
		return nil, s.fail(log, stage, err)
	}
	metrics.ObserveStage(stage.step(), t)
	stage = StageFused
	log.Debug("Query fused",
		zap.Stringer("stage", stage),
		zap.String("modality", string(req.Modality())),
		zap.Int("dimensions", vec.Dim()),
	)

	if err = ctx.Err(); err != nil {
		return nil, s.fail(log, stage, err)
	}

	t = time.Now()
	cands, err := s.retriever.Retrieve(ctx, vec, req.Filters(), req.TopK(), req.OverfetchFactor())
	if err != nil {
		return nil, s.fail(log, stage, err)
	}
	metrics.ObserveStage(stage.step(), t)
	metrics.SearchCandidates.Observe(float64(len(cands)))
	stage = StageRetrieved
	log.Debug("Candidates retrieved",
		zap.Stringer("stage", stage),
		zap.Int("candidates", len(cands)),
		zap.Int("fetch_limit", req.FetchLimit()),
	)

	t = time.Now()
	ranked, err := ranking.Rank(
		cands,
		ranking.Query{Text: req.Query(), Filters: req.Filters()},
		req.Weights(),
		req.Debug(),
	)
	if err != nil {
		return nil, s.fail(log, stage, err)
	}
	metrics.ObserveStage(stage.step(), t)
	stage = StageRanked

	out := ranking.TopK(ranked, req.TopK())
	stage = StageReturned

	metrics.SearchRequestsTotal.WithLabelValues("ok").Inc()
	log.Info("Search completed",
		zap.Stringer("stage", stage),
		zap.Int("candidates", len(cands)),
		zap.Int("returned", len(out)),
		zap.Bool("debug", req.Debug()),
		zap.Duration("latency", time.Since(start)),
	)
	return out, nil
}

// fail records a failure at the given stage and returns err as is.
func (s *Service) fail(log *zap.Logger, at Stage, err error) error {
	metrics.SearchRequestsTotal.WithLabelValues("error_" + at.step()).Inc()
	log.Warn("Search failed",
		zap.Stringer("stage", StageFailed),
		zap.Stringer("failed_after", at),
		zap.String("step", at.step()),
		zap.Error(err),
	)
	return err
}
