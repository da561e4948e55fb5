package openai

import (
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
	"github.com/kirillkom/shopping-assistant/internal/infrastructure/resilience"
)

// classifyInferenceError retries transient API statuses and network failures.
// Client errors such as a rejected key are not counted against the breaker.
func classifyInferenceError(err error) resilience.ErrorClassification {
	if status, ok := apiStatusCode(err); ok {
		return resilience.ClassifyStatus(status)
	}
	return resilience.ClassifyTransport(err)
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	class := classifyInferenceError(err)
	if class.Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func apiStatusCode(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}

// describeAPIError keeps the provider's message next to the status code.
func describeAPIError(operation string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: api error %d: %s: %w", operation, apiErr.HTTPStatusCode, strings.TrimSpace(apiErr.Message), err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		body := strings.TrimSpace(string(reqErr.Body))
		if len(body) > 512 {
			body = body[:512]
		}
		return fmt.Errorf("%s: request error %d: %s: %w", operation, reqErr.HTTPStatusCode, body, err)
	}
	return fmt.Errorf("%s: %w", operation, err)
}
