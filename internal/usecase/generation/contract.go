package generation

import (
	"context"

	"github.com/kailas-cloud/quizrag/internal/domain"
	domret "github.com/kailas-cloud/quizrag/internal/domain/retrieval"
	"github.com/kailas-cloud/quizrag/internal/usecase/retrieval"
)

// Retriever finds passages for a question.
type Retriever interface {
	Retrieve(ctx context.Context, q retrieval.Query) (domret.Result, error)
}

// Completer sends a prompt to the generative model.
type Completer = domain.Completer
