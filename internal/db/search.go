package db

import "github.com/kailas-cloud/quizrag/internal/domain/filter"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Filters      filter.Expression
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
// For KNN queries Score is cosine similarity (1 - distance).
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
