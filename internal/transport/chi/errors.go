package chi

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshop/internal/domain"
	"github.com/kailas-cloud/vecshop/internal/logger"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// errorHandlers are tried in order; the first match wins.
var errorHandlers = []errorHandler{
	sentinelHandler(domain.ErrInput, http.StatusBadRequest, ErrorCodeInvalidInput),
	sentinelHandler(domain.ErrValidation, http.StatusBadRequest, ErrorCodeValidationFailed),
	sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, ErrorCodeRateLimited),
	sentinelHandler(domain.ErrEmbedding, http.StatusBadGateway, ErrorCodeEmbeddingFailed),
	retrievalHandler,
}

// safeMessage keeps the sentinel text and drops internals (store addresses, provider bodies).
// Input and validation messages are caller-facing, so they are returned as is.
func safeMessage(err error) string {
	if errors.Is(err, domain.ErrInput) || errors.Is(err, domain.ErrValidation) {
		return err.Error()
	}
	for _, s := range []error{domain.ErrRateLimited, domain.ErrEmbedding, domain.ErrRetrieval} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, safeMessage(err))
		return true
	}
}

// retrievalHandler maps store failures to 503, or 504 when the store call ran out of time.
func retrievalHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrRetrieval) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusGatewayTimeout, ErrorCodeRetrievalTimeout, safeMessage(err))
		return true
	}
	writeError(w, http.StatusServiceUnavailable, ErrorCodeRetrievalFailed, safeMessage(err))
	return true
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	for _, h := range errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternal, "internal error")
}
