package metrics

import "github.com/kirillkom/shopping-assistant/internal/core/domain"

// SearchOutcome is the outcome label recorded for a finished search.
func SearchOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case domain.IsKind(err, domain.ErrNotAuthenticated):
		return "not_authenticated"
	case domain.IsKind(err, domain.ErrInferenceNotConfigured):
		return "not_configured"
	case domain.IsKind(err, domain.ErrQueryRequired), domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid"
	case domain.IsKind(err, domain.ErrRateLimitExceeded):
		return "rate_limited"
	case domain.IsKind(err, domain.ErrNoProductsFound):
		return "no_products_found"
	case domain.IsKind(err, domain.ErrSearchTimeout):
		return "timeout"
	default:
		return "error"
	}
}
