package httpadapter

import (
	"net/http"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput), domain.IsKind(err, domain.ErrQueryRequired):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrInferenceNotConfigured):
		return http.StatusPreconditionFailed
	case domain.IsKind(err, domain.ErrNotFound), domain.IsKind(err, domain.ErrNoProductsFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrSearchTimeout):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
