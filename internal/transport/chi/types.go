package chi

import "time"

// ErrorCode is the machine-readable error code in ErrorResponse.
type ErrorCode string

// Error codes returned by the API.
const (
	CodeBadRequest          ErrorCode = "bad_request"
	CodeUnauthorized        ErrorCode = "unauthorized"
	CodeValidationFailed    ErrorCode = "validation_failed"
	CodeInvalidQuery        ErrorCode = "invalid_query"
	CodeNotFound            ErrorCode = "not_found"
	CodeVectorDimMismatch   ErrorCode = "vector_dim_mismatch"
	CodeRateLimited         ErrorCode = "rate_limited"
	CodeEmbeddingProvider   ErrorCode = "embedding_provider_error"
	CodeGenerationProvider  ErrorCode = "generation_provider_error"
	CodeInsufficientContext ErrorCode = "insufficient_context"
	CodeGenerationQuality   ErrorCode = "generation_quality_error"
	CodeTimeout             ErrorCode = "timeout"
	CodeCanceled            ErrorCode = "canceled"
	CodeInternalError       ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DocumentRequest is a document to ingest.
type DocumentRequest struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Source  string `json:"source,omitempty"`
	Subject string `json:"subject,omitempty"`
	Unit    string `json:"unit,omitempty"`
}

// IngestResponse reports a single ingested document.
type IngestResponse struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
}

// BatchIngestRequest is the body of POST /documents/batch.
type BatchIngestRequest struct {
	Items []DocumentRequest `json:"items"`
}

// BatchIngestItem is the per-document outcome of a batch ingest.
type BatchIngestItem struct {
	ID     string         `json:"id"`
	Status string         `json:"status"`
	Chunks int            `json:"chunks,omitempty"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

// BatchIngestResponse is the body returned by POST /documents/batch.
type BatchIngestResponse struct {
	Items     []BatchIngestItem `json:"items"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Chunks    int               `json:"chunks"`
}

// PassageResponse is a retrieved chunk.
type PassageResponse struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	Relevance  float64 `json:"relevance,omitempty"`
	Source     string  `json:"source,omitempty"`
	Subject    string  `json:"subject,omitempty"`
	Unit       string  `json:"unit,omitempty"`
}

// RetrieveResponse is the body returned by GET /passages.
type RetrieveResponse struct {
	Items   []PassageResponse `json:"items"`
	Total   int               `json:"total"`
	Context string            `json:"context"`
}

// MixRequest is a difficulty distribution.
type MixRequest struct {
	Easy   int `json:"easy"`
	Medium int `json:"medium"`
	Hard   int `json:"hard"`
}

// GenerateRequest is the body of POST /questions.
// Difficulty wins over Preset; with neither, the balanced preset applies.
type GenerateRequest struct {
	Count      int         `json:"count"`
	Difficulty *MixRequest `json:"difficulty,omitempty"`
	Preset     string      `json:"preset,omitempty"`
	Subject    string      `json:"subject,omitempty"`
	Unit       string      `json:"unit,omitempty"`
	Topic      string      `json:"topic,omitempty"`
	Hints      bool        `json:"hints,omitempty"`
}

// QuestionResponse is a generated question. CorrectAnswer is 1-based.
type QuestionResponse struct {
	ID            string           `json:"id"`
	Question      string           `json:"question"`
	Options       []string         `json:"options"`
	CorrectAnswer int              `json:"correct_answer"`
	Explanation   string           `json:"explanation"`
	Hints         []string         `json:"hints,omitempty"`
	Difficulty    string           `json:"difficulty"`
	Type          string           `json:"type"`
	Subject       string           `json:"subject,omitempty"`
	Unit          string           `json:"unit,omitempty"`
	Tags          []string         `json:"tags,omitempty"`
	ChunkIDs      []string         `json:"chunk_ids"`
	Model         string           `json:"model"`
	GeneratedAt   time.Time        `json:"generated_at"`
	Quality       *QualityResponse `json:"quality,omitempty"`
}

// QualityResponse is the model-graded assessment of a question.
type QualityResponse struct {
	Scores  map[string]int `json:"scores"`
	Average float64        `json:"average"`
	Summary string         `json:"summary,omitempty"`
}

// FailureResponse is one entry of the failure manifest.
type FailureResponse struct {
	Position   int       `json:"position"`
	Difficulty string    `json:"difficulty"`
	Code       ErrorCode `json:"code"`
	Reason     string    `json:"reason"`
}

// StatsResponse summarizes a batch.
type StatsResponse struct {
	Requested     int            `json:"requested"`
	Generated     int            `json:"generated"`
	Failed        int            `json:"failed"`
	Regenerations int            `json:"regenerations"`
	ByDifficulty  map[string]int `json:"by_difficulty"`
	BySubject     map[string]int `json:"by_subject"`
	ByUnit        map[string]int `json:"by_unit"`
}

// GenerateResponse is the body returned by POST /questions.
type GenerateResponse struct {
	ID        string             `json:"id"`
	Questions []QuestionResponse `json:"questions"`
	Failures  []FailureResponse  `json:"failures"`
	Stats     StatsResponse      `json:"stats"`
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}
