package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/quizrag/internal/domain"
)

// parseAPIError maps a go-openai failure onto the provider error taxonomy:
// 429 rate limited, 408 and deadlines timed out, 5xx and connection failures
// unavailable, everything else rejected.
func parseAPIError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrProviderTimeout, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("%s: API error %d: %s: %w", op, reqErr.HTTPStatusCode, detail, statusError(reqErr.HTTPStatusCode))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: API error %d: %s: %w", op, apiErr.HTTPStatusCode, apiErr.Message, statusError(apiErr.HTTPStatusCode))
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%s: %w: %w", op, domain.ErrProviderTimeout, err)
		}
		return fmt.Errorf("%s: %w: %w", op, domain.ErrProviderUnavailable, err)
	}

	return fmt.Errorf("%s: %w: %w", op, domain.ErrProviderUnavailable, err)
}

func statusError(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return domain.ErrProviderTimeout
	case code >= http.StatusInternalServerError:
		return domain.ErrProviderUnavailable
	default:
		return domain.ErrProviderRejected
	}
}

// errorType labels provider failures in metrics.
func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrProviderTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrProviderUnavailable):
		return "unavailable"
	default:
		return "rejected"
	}
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
