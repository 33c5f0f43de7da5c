// Package chi serves the search pipeline over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshop/internal/domain"
	"github.com/kailas-cloud/vecshop/internal/domain/search/filter"
	"github.com/kailas-cloud/vecshop/internal/domain/search/request"
	"github.com/kailas-cloud/vecshop/internal/domain/search/result"
	"github.com/kailas-cloud/vecshop/internal/metrics"
	healthuc "github.com/kailas-cloud/vecshop/internal/usecase/health"
)

// maxBodyBytes bounds POST /v1/search bodies; two 2048-dim vectors fit comfortably.
const maxBodyBytes = 1 << 20

type searcher interface {
	Search(ctx context.Context, req request.Request) ([]result.Result, error)
}

// preparer turns query text into a text vector.
type preparer interface {
	Prepare(ctx context.Context, req request.Request) (request.Request, error)
}

type healthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server exposes the search pipeline over HTTP.
type Server struct {
	search  searcher
	prepare preparer
	health  healthChecker
	limits  request.Limits
	logger  *zap.Logger
}

// NewServer creates an HTTP API server. prepare may be nil when no embedding
// provider is configured; text-only queries then fail with an input error.
func NewServer(
	search searcher,
	prepare preparer,
	health healthChecker,
	limits request.Limits,
	logger *zap.Logger,
) *Server {
	return &Server{
		search:  search,
		prepare: prepare,
		health:  health,
		limits:  limits,
		logger:  logger,
	}
}

// Router wires middleware and routes.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Post("/v1/search", s.SearchPost)
	r.Get("/v1/search", s.SearchGet)
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// SearchPost handles POST /v1/search.
func (s *Server) SearchPost(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	var category, color string
	if body.Filters != nil {
		category, color = body.Filters.Category, body.Filters.Color
	}
	filters, err := filter.New(category, color)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	req, err := request.New(request.Params{
		Query:           body.Query,
		TextVector:      body.TextVector,
		ImageVector:     body.ImageVector,
		ImageWeight:     body.ImageWeight,
		TextWeight:      body.TextWeight,
		Filters:         filters,
		Weights:         body.Weights,
		TopK:            body.TopK,
		OverfetchFactor: body.OverfetchFactor,
		Debug:           body.Debug,
	}, s.limits)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	s.run(w, r, req)
}

// SearchGet handles GET /v1/search?q=&category=&color=&top_k=&overfetch_factor=&debug=.
func (s *Server) SearchGet(w http.ResponseWriter, r *http.Request) {
	params, err := bindSearchParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}

	filters, err := filter.New(deref(params.Category), deref(params.Color))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	req, err := request.New(request.Params{
		Query:           deref(params.Q),
		Filters:         filters,
		TopK:            deref(params.TopK),
		OverfetchFactor: deref(params.OverfetchFactor),
		Debug:           deref(params.Debug),
	}, s.limits)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	s.run(w, r, req)
}

func (s *Server) run(w http.ResponseWriter, r *http.Request, req request.Request) {
	ctx, usage := domain.NewContextWithUsage(r.Context())

	if s.prepare != nil {
		prepared, err := s.prepare.Prepare(ctx, req)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		req = prepared
	}

	results, err := s.search.Search(ctx, req)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	items := make([]SearchResultItem, len(results))
	for i := range results {
		items[i] = NewSearchResultItem(&results[i])
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, SearchResponse{
		Items:    items,
		Total:    len(items),
		TopK:     req.TopK(),
		Modality: string(req.Modality()),
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, HealthResponse{Status: string(report.Status), Checks: checks})
}

func bindSearchParams(r *http.Request) (SearchParams, error) {
	var p SearchParams
	q := r.URL.Query()
	binds := []struct {
		name string
		dest any
	}{
		{"q", &p.Q},
		{"category", &p.Category},
		{"color", &p.Color},
		{"top_k", &p.TopK},
		{"overfetch_factor", &p.OverfetchFactor},
		{"debug", &p.Debug},
	}
	for _, b := range binds {
		if err := runtime.BindQueryParameter("form", true, false, b.name, q, b.dest); err != nil {
			return SearchParams{}, err //nolint:wrapcheck // runtime errors name the parameter
		}
	}
	return p, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage == nil || !usage.Used {
		return
	}
	w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	if usage.CacheHit {
		w.Header().Set("X-Embedding-Cache", "hit")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
