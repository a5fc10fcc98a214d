package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/quizrag/internal/domain"
	"github.com/kailas-cloud/quizrag/internal/retry"
)

// Config holds the quizrag service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Index      IndexConfig      `yaml:"index"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Prompts    PromptsConfig    `yaml:"prompts"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds vector store connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, postgres, memory (default: redis)
	Addrs            []string `yaml:"addrs"`
	DSN              string   `yaml:"dsn"`   // postgres only
	Table            string   `yaml:"table"` // postgres only
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// ProviderConfig holds an OpenAI-compatible endpoint.
type ProviderConfig struct {
	Name              string  `yaml:"name"` // metric label only
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int     `yaml:"burst"`
}

// RetryConfig bounds retries of provider calls.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMs int `yaml:"base_delay_ms"`
	MaxDelayMs  int `yaml:"max_delay_ms"`
	TimeoutSec  int `yaml:"timeout_sec"`
}

// Policy converts the settings to a retry policy.
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   time.Duration(r.BaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(r.MaxDelayMs) * time.Millisecond,
		Timeout:     time.Duration(r.TimeoutSec) * time.Second,
	}
}

// EmbeddingCacheConfig selects the embedding cache backend.
type EmbeddingCacheConfig struct {
	Backend  string `yaml:"backend"` // memory, redis, none (default: memory)
	Capacity int    `yaml:"capacity"`
	TTLSec   int    `yaml:"ttl_sec"` // 0 = no expiry
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Provider            ProviderConfig       `yaml:"provider"`
	Model               string               `yaml:"model"`
	Dimensions          int                  `yaml:"dimensions"`
	DocumentInstruction string               `yaml:"document_instruction"`
	QueryInstruction    string               `yaml:"query_instruction"`
	MaxBatchSize        int                  `yaml:"max_batch_size"`
	Cache               EmbeddingCacheConfig `yaml:"cache"`
	Retry               RetryConfig          `yaml:"retry"`
}

// GenerationConfig holds question generation settings.
type GenerationConfig struct {
	Provider            ProviderConfig `yaml:"provider"`
	Model               string         `yaml:"model"`
	Temperature         float32        `yaml:"temperature"`
	MaxTokens           int            `yaml:"max_tokens"`
	MaxRegenerations    int            `yaml:"max_regenerations"`
	MinExplanationRunes int            `yaml:"min_explanation_runes"`
	DuplicateThreshold  float64        `yaml:"duplicate_threshold"`
	Concurrency         int            `yaml:"concurrency"`
	Passages            int            `yaml:"passages"`
	MaxCount            int            `yaml:"max_count"`
	Assess              bool           `yaml:"assess"`
	MinQuality          float64        `yaml:"min_quality"` // 1-5, used when assess is on
	Retry               RetryConfig    `yaml:"retry"`
}

// ChunkingConfig holds chunker settings, in runes.
type ChunkingConfig struct {
	Size     int `yaml:"size"`
	Overlap  int `yaml:"overlap"`
	Lookback int `yaml:"lookback"` // 0 = size/4
}

// RetrievalConfig holds retriever settings.
type RetrievalConfig struct {
	K         int     `yaml:"k"`
	OverFetch int     `yaml:"over_fetch"`
	Threshold float64 `yaml:"threshold"`
	Rerank    bool    `yaml:"rerank"` // LLM reranking of vector hits
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	Algorithm       string `yaml:"algorithm"` // hnsw, flat (default: hnsw)
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
}

// IngestConfig holds ingestion settings.
type IngestConfig struct {
	MaxBatchSize int `yaml:"max_batch_size"`
	Concurrency  int `yaml:"concurrency"`
}

// PromptsConfig overrides the built-in prompt templates. Empty fields keep the defaults.
type PromptsConfig struct {
	System     string `yaml:"system"`
	Question   string `yaml:"question"`
	Hints      string `yaml:"hints"`
	Assessment string `yaml:"assessment"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file next to the working directory is loaded first; it never
// overrides variables already set in the process environment.
func Load(env string) (Config, error) {
	if fileExists(".env") {
		if err := godotenv.Load(".env"); err != nil {
			return Config{}, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands ${VAR} references, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w: %w", domain.ErrInvalidConfiguration, err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120 // batch generation is slow
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	if c.Embedding.Provider.Name == "" {
		c.Embedding.Provider.Name = "openai"
	}
	if c.Embedding.MaxBatchSize <= 0 {
		c.Embedding.MaxBatchSize = 256
	}
	if c.Embedding.Cache.Backend == "" {
		c.Embedding.Cache.Backend = "memory"
	}
	if c.Embedding.Cache.Capacity <= 0 {
		c.Embedding.Cache.Capacity = 10000
	}
	applyRetryDefaults(&c.Embedding.Retry, 30)

	if c.Generation.Provider.Name == "" {
		c.Generation.Provider.Name = "openai"
	}
	if c.Generation.Temperature <= 0 {
		c.Generation.Temperature = 0.7
	}
	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = 1000
	}
	if c.Generation.MaxRegenerations <= 0 {
		c.Generation.MaxRegenerations = 2
	}
	if c.Generation.MinExplanationRunes <= 0 {
		c.Generation.MinExplanationRunes = 10
	}
	if c.Generation.DuplicateThreshold <= 0 {
		c.Generation.DuplicateThreshold = 0.8
	}
	if c.Generation.Concurrency <= 0 {
		c.Generation.Concurrency = 4
	}
	if c.Generation.Passages <= 0 {
		c.Generation.Passages = 3
	}
	if c.Generation.MaxCount <= 0 {
		c.Generation.MaxCount = 50
	}
	if c.Generation.MinQuality <= 0 {
		c.Generation.MinQuality = 3.5
	}
	applyRetryDefaults(&c.Generation.Retry, 60)

	if c.Chunking.Size <= 0 {
		c.Chunking.Size = 1000
	}
	if c.Chunking.Overlap == 0 {
		c.Chunking.Overlap = c.Chunking.Size / 5
	}

	if c.Retrieval.K <= 0 {
		c.Retrieval.K = 5
	}
	if c.Retrieval.OverFetch <= 0 {
		c.Retrieval.OverFetch = 2
	}
	if c.Retrieval.Threshold == 0 {
		c.Retrieval.Threshold = 0.3
	}

	if c.Index.Algorithm == "" {
		c.Index.Algorithm = "hnsw"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}

	if c.Ingest.MaxBatchSize <= 0 {
		c.Ingest.MaxBatchSize = 100
	}
	if c.Ingest.Concurrency <= 0 {
		c.Ingest.Concurrency = 4
	}
}

func applyRetryDefaults(r *RetryConfig, timeoutSec int) {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 3
	}
	if r.BaseDelayMs <= 0 {
		r.BaseDelayMs = 200
	}
	if r.MaxDelayMs <= 0 {
		r.MaxDelayMs = 5000
	}
	if r.TimeoutSec <= 0 {
		r.TimeoutSec = timeoutSec
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be \"redis\", \"postgres\" or \"memory\", got %q", c.Database.Driver)
	}

	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative")
	}
	switch c.Embedding.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("embedding.cache.backend must be \"memory\", \"redis\" or \"none\", got %q", c.Embedding.Cache.Backend)
	}
	if c.Embedding.Cache.Backend == "redis" && c.Database.Driver != "redis" {
		return fmt.Errorf("embedding.cache.backend \"redis\" requires database.driver \"redis\"")
	}
	if c.Database.Driver != "memory" && c.Embedding.Dimensions == 0 {
		return fmt.Errorf("embedding.dimensions is required for the %s vector index", c.Database.Driver)
	}

	if c.Generation.Model == "" {
		return fmt.Errorf("generation.model is required")
	}
	if c.Generation.DuplicateThreshold > 1 {
		return fmt.Errorf("generation.duplicate_threshold must be in (0, 1], got %g", c.Generation.DuplicateThreshold)
	}
	if c.Generation.MinQuality < 1 || c.Generation.MinQuality > 5 {
		return fmt.Errorf("generation.min_quality must be in [1, 5], got %g", c.Generation.MinQuality)
	}

	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, size), got %d (size %d)", c.Chunking.Overlap, c.Chunking.Size)
	}
	if c.Chunking.Lookback < 0 {
		return fmt.Errorf("chunking.lookback must not be negative")
	}

	if c.Retrieval.Threshold < 0 || c.Retrieval.Threshold > 1 {
		return fmt.Errorf("retrieval.threshold must be in [0, 1], got %g", c.Retrieval.Threshold)
	}
	switch c.Index.Algorithm {
	case "hnsw", "flat":
	default:
		return fmt.Errorf("index.algorithm must be \"hnsw\" or \"flat\", got %q", c.Index.Algorithm)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
