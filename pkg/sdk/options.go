package quizrag

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	password string
	dsn      string

	embedder  Embedder
	completer Completer
	openAI    *OpenAIConfig

	vectorDimensions int
	hnswM            int
	hnswEFConstruct  int
	chunkSize        int
	chunkOverlap     int
	cacheSize        int
	threshold        float64
	rerank           bool
	assess           bool
	minQuality       float64

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// OpenAIConfig configures OpenAI-compatible embedding and chat endpoints.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // empty = api.openai.com
	// EmbeddingModel is required; Dimensions is sent when the model supports truncation.
	EmbeddingModel string
	Dimensions     int
	ChatModel      string
	// RequestsPerSecond paces chat requests; zero disables pacing.
	RequestsPerSecond float64
}

// WithRedis stores chunks in a Redis 8+ or Valkey instance with search modules.
// Without it the index lives in process memory.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithPostgres stores chunks in a PostgreSQL table with the pgvector
// extension. Cannot be combined with WithRedis.
func WithPostgres(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.dsn = dsn
	})
}

// WithEmbedder sets the text embedding provider.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithCompleter sets the generative model used to draft questions.
func WithCompleter(cm Completer) Option {
	return optionFunc(func(c *clientConfig) {
		c.completer = cm
	})
}

// WithOpenAI uses OpenAI-compatible endpoints for both embeddings and
// generation. WithEmbedder and WithCompleter take precedence when also set.
func WithOpenAI(cfg OpenAIConfig) Option {
	return optionFunc(func(c *clientConfig) {
		c.openAI = &cfg
	})
}

// WithVectorDimensions pins the embedding size. Required with WithRedis and WithPostgres.
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorDimensions = dim
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithChunking sets chunk size and overlap in runes. Defaults: 1000/200.
func WithChunking(size, overlap int) Option {
	return optionFunc(func(c *clientConfig) {
		c.chunkSize = size
		c.chunkOverlap = overlap
	})
}

// WithEmbeddingCache sets the in-memory embedding cache capacity.
// Zero disables caching. Default: 10000.
func WithEmbeddingCache(entries int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheSize = entries
	})
}

// WithThreshold sets the default minimum similarity of retrieved passages.
func WithThreshold(t float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.threshold = t
	})
}

// WithReranking reorders retrieved passages by asking the completer to
// score their relevance to the query. Failures keep the vector order.
func WithReranking() Option {
	return optionFunc(func(c *clientConfig) {
		c.rerank = true
	})
}

// WithQualityAssessment grades every validated question with the completer
// and regenerates those averaging below minScore (1-5). Zero uses 3.5.
func WithQualityAssessment(minScore float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.assess = true
		c.minQuality = minScore
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
