package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration signals a fatal sizing or wiring error. Never retried.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrVectorDimMismatch signals vectors of different dimensionality in one index.
	ErrVectorDimMismatch = fmt.Errorf("vector dimension mismatch: %w", ErrInvalidConfiguration)
	// ErrInvalidQuery signals a malformed index query or filter.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")

	// ErrEmbeddingUnavailable signals that embeddings could not be produced after retries.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrGenerationProvider signals that the generative model failed after retries.
	ErrGenerationProvider = errors.New("generation provider error")
	// ErrInsufficientContext signals that retrieval found nothing above the threshold.
	ErrInsufficientContext = errors.New("insufficient context")
	// ErrGenerationQuality signals that every regeneration attempt failed validation.
	ErrGenerationQuality = errors.New("generation quality error")

	// ErrRateLimited signals a provider rate limit hit (transient).
	ErrRateLimited = errors.New("rate limited")
	// ErrProviderTimeout signals a provider call that exceeded its deadline (transient).
	ErrProviderTimeout = errors.New("provider timeout")
	// ErrProviderUnavailable signals a 5xx or connection failure (transient).
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrProviderRejected signals a non-retryable provider failure (bad request, auth).
	ErrProviderRejected = errors.New("provider rejected request")
)

// IsTransient reports whether err is a provider failure worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrProviderTimeout) ||
		errors.Is(err, ErrProviderUnavailable)
}
