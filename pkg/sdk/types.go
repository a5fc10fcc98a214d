package quizrag

import "time"

// Document is a source text to index.
type Document struct {
	ID      string
	Text    string
	Source  string
	Subject string
	Unit    string
}

// IngestResult is the per-document outcome of a batch ingest.
type IngestResult struct {
	ID     string
	OK     bool
	Chunks int
	Err    error
}

// Query is a retrieval request.
type Query struct {
	Text    string
	K       int
	Subject string
	Unit    string
	// Threshold is the minimum cosine similarity. Nil uses the client default.
	Threshold *float64
}

// Passage is a retrieved chunk with its similarity score.
type Passage struct {
	ChunkID    string
	DocumentID string
	Text       string
	Source     string
	Subject    string
	Unit       string
	Start      int
	End        int
	Score      float64
	// Relevance is the reranker score in [0, 1]; zero without WithReranking.
	Relevance float64
}

// Mix is a difficulty distribution expressed as relative weights.
type Mix struct {
	Easy   int
	Medium int
	Hard   int
}

// GenerateRequest describes a batch of questions.
// Mix wins over Preset; with neither the balanced preset is used.
type GenerateRequest struct {
	Count   int
	Mix     *Mix
	Preset  string
	Subject string
	Unit    string
	Topic   string
	Hints   bool
}

// Question is a validated five-option multiple-choice item.
// Correct is a 0-based index into Options.
type Question struct {
	ID          string
	Stem        string
	Options     []string
	Correct     int
	Explanation string
	Hints       []string
	Tags        []string
	Difficulty  string
	Kind        string
	Subject     string
	Unit        string
	ChunkIDs    []string
	Model       string
	GeneratedAt time.Time
	// Quality is set when WithQualityAssessment graded the question.
	Quality *Quality
}

// Quality is a model-graded assessment. Scores are 1-5 per criterion.
type Quality struct {
	Scores  map[string]int
	Average float64
	Summary string
}

// Failure is a question position that produced no question.
type Failure struct {
	Position   int
	Difficulty string
	Reason     string
	Err        error
}

// Stats summarizes a batch.
type Stats struct {
	Requested     int
	Generated     int
	Failed        int
	Regenerations int
	ByDifficulty  map[string]int
	BySubject     map[string]int
	ByUnit        map[string]int
}

// Batch is the outcome of a generate call. Failures never void successful questions.
type Batch struct {
	ID        string
	Questions []Question
	Failures  []Failure
	Stats     Stats
}

// HealthReport is the aggregated component status.
type HealthReport struct {
	Status string
	Checks map[string]string
}
