package quizrag

import "github.com/kailas-cloud/quizrag/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidConfiguration = domain.ErrInvalidConfiguration
	ErrVectorDimMismatch    = domain.ErrVectorDimMismatch
	ErrInvalidQuery         = domain.ErrInvalidQuery
	ErrNotFound             = domain.ErrNotFound
	ErrEmbeddingUnavailable = domain.ErrEmbeddingUnavailable
	ErrGenerationProvider   = domain.ErrGenerationProvider
	ErrInsufficientContext  = domain.ErrInsufficientContext
	ErrGenerationQuality    = domain.ErrGenerationQuality
	ErrRateLimited          = domain.ErrRateLimited
	ErrProviderTimeout      = domain.ErrProviderTimeout
	ErrProviderUnavailable  = domain.ErrProviderUnavailable
	ErrProviderRejected     = domain.ErrProviderRejected
)
