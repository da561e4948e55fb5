package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthenticated       = errors.New("not authenticated")
	ErrInferenceNotConfigured = errors.New("inference not configured")
	ErrQueryRequired          = errors.New("query required")
	ErrRateLimitExceeded      = errors.New("rate limit exceeded")
	ErrNoProductsFound        = errors.New("no products found")
	ErrSearchTimeout          = errors.New("search timed out")

	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrTemporary    = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// PublicMessage reduces an error to the message a caller is allowed to see.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, kind := range []error{
		ErrNotAuthenticated,
		ErrInferenceNotConfigured,
		ErrQueryRequired,
		ErrRateLimitExceeded,
		ErrSearchTimeout,
		ErrNoProductsFound,
	} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrNotFound) {
		return err.Error()
	}
	return "search failed"
}
