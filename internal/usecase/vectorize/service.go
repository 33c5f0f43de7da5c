// Package vectorize turns the free-text part of a search into a text query vector.
package vectorize

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/vecshop/internal/domain"
	"github.com/kailas-cloud/vecshop/internal/domain/search/request"
	"github.com/kailas-cloud/vecshop/internal/domain/vector"
)

// Service embeds query text through the configured provider chain.
type Service struct {
	embed domain.Embedder
	dims  int
}

// New creates the service. dims <= 0 disables the dimension check.
func New(embed domain.Embedder, dims int) *Service {
	return &Service{embed: embed, dims: dims}
}

// Prepare fills in the text vector from the query text when the caller did not
// supply one. Requests without text, or that already carry a text vector, pass through.
func (s *Service) Prepare(ctx context.Context, req request.Request) (request.Request, error) {
	if req.Query() == "" || len(req.TextVector()) > 0 {
		return req, nil
	}
	vec, err := s.Text(ctx, req.Query())
	if err != nil {
		return request.Request{}, err
	}
	out, err := req.WithTextVector(vec)
	if err != nil {
		return request.Request{}, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	return out, nil
}

// Text embeds a single text and returns it as a unit-norm vector.
func (s *Service) Text(ctx context.Context, text string) (vector.Vector, error) {
	res, err := s.embed.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, domain.ErrEmbedding) || errors.Is(err, domain.ErrRateLimited) {
			return nil, fmt.Errorf("vectorize query: %w", err)
		}
		return nil, fmt.Errorf("vectorize query: %w: %w", domain.ErrEmbedding, err)
	}

	vec := vector.Vector(res.Embedding)
	if s.dims > 0 && vec.Dim() != s.dims {
		return nil, fmt.Errorf("%w: provider returned %d dimensions, expected %d",
			domain.ErrEmbedding, vec.Dim(), s.dims)
	}
	vec, err = vec.Normalize()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	return vec, nil
}
