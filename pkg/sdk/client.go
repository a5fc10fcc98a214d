package quizrag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/quizrag/internal/chunker"
	"github.com/kailas-cloud/quizrag/internal/db"
	dbRedis "github.com/kailas-cloud/quizrag/internal/db/redis"
	"github.com/kailas-cloud/quizrag/internal/domain"
	dombatch "github.com/kailas-cloud/quizrag/internal/domain/batch"
	domchunk "github.com/kailas-cloud/quizrag/internal/domain/chunk"
	domdoc "github.com/kailas-cloud/quizrag/internal/domain/document"
	"github.com/kailas-cloud/quizrag/internal/domain/filter"
	"github.com/kailas-cloud/quizrag/internal/domain/index"
	"github.com/kailas-cloud/quizrag/internal/domain/question"
	domret "github.com/kailas-cloud/quizrag/internal/domain/retrieval"
	chunkrepo "github.com/kailas-cloud/quizrag/internal/repository/chunk"
	"github.com/kailas-cloud/quizrag/internal/repository/memory"
	pgrepo "github.com/kailas-cloud/quizrag/internal/repository/postgres"
	"github.com/kailas-cloud/quizrag/internal/retry"
	openaiTransport "github.com/kailas-cloud/quizrag/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/quizrag/internal/usecase/embedding"
	generationuc "github.com/kailas-cloud/quizrag/internal/usecase/generation"
	healthuc "github.com/kailas-cloud/quizrag/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/quizrag/internal/usecase/ingest"
	retrievaluc "github.com/kailas-cloud/quizrag/internal/usecase/retrieval"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultChunkSize        = 1000
	defaultChunkOverlap     = 200
	defaultCacheSize        = 10000
	defaultCacheTTL         = 24 * time.Hour
)

// Внутренние интерфейсы для подмены в тестах.
type ingestUseCase interface {
	Ingest(ctx context.Context, doc domdoc.Document) (int, error)
	IngestMany(ctx context.Context, docs []domdoc.Document) []dombatch.Result
}

type retrievalUseCase interface {
	Retrieve(ctx context.Context, q retrievaluc.Query) (domret.Result, error)
}

type generationUseCase interface {
	Generate(ctx context.Context, spec question.Spec) (question.BatchResult, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

type vectorIndex interface {
	Upsert(ctx context.Context, records []domchunk.Record) error
	Query(ctx context.Context, vector []float32, k int, f filter.Expression) ([]index.Hit, error)
	Delete(ctx context.Context, ids []string) error
	PruneDocument(ctx context.Context, docID string, keep []string) (int, error)
}

// database is the connection behind a persistent index. Nil for the in-memory index.
type database interface {
	Ping(ctx context.Context) error
	Close()
}

// pgDatabase adapts the Postgres repository to database.
type pgDatabase struct{ *pgrepo.Repo }

func (p pgDatabase) Close() { _ = p.Repo.Close() }

// Client is the quizrag SDK entry point.
type Client struct {
	conn         database
	ingestSvc    ingestUseCase
	retrievalSvc retrievalUseCase
	genSvc       generationUseCase
	healthSvc    healthUseCase
	obs          *observer
}

// New creates a quizrag Client. With WithRedis or WithPostgres it connects to
// the database, using ctx for the readiness check, and creates the chunk index
// if missing.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		chunkSize:    defaultChunkSize,
		chunkOverlap: defaultChunkOverlap,
		cacheSize:    defaultCacheSize,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	emb, cm, err := providers(cfg)
	if err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	conn, idx, err := openIndex(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c, err := wireClient(conn, idx, emb, cm, cfg, obs)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, err
	}
	return c, nil
}

// openIndex connects the configured backend and prepares its index.
func openIndex(ctx context.Context, cfg *clientConfig) (database, vectorIndex, error) {
	if len(cfg.addrs) > 0 && cfg.dsn != "" {
		return nil, nil, fmt.Errorf("quizrag: WithRedis and WithPostgres are exclusive: %w", ErrInvalidConfiguration)
	}
	if len(cfg.addrs) == 0 && cfg.dsn == "" {
		return nil, memory.New(), nil
	}
	if cfg.vectorDimensions <= 0 {
		return nil, nil, fmt.Errorf("quizrag: vector dimensions required with a persistent index: %w", ErrInvalidConfiguration)
	}
	if cfg.dsn != "" {
		return openPostgres(ctx, cfg)
	}
	return openRedis(ctx, cfg)
}

func openRedis(ctx context.Context, cfg *clientConfig) (database, vectorIndex, error) {
	s, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.addrs, Password: cfg.password})
	if err != nil {
		return nil, nil, fmt.Errorf("quizrag: create redis store: %w", err)
	}
	if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("quizrag: database not ready: %w", err)
	}
	repo := chunkrepo.New(s, chunkrepo.Config{
		Dimensions: cfg.vectorDimensions,
		Model:      embeddingModel(cfg),
		Algorithm:  db.VectorHNSW,
		HNSW:       chunkrepo.HNSWConfig{M: cfg.hnswM, EFConstruct: cfg.hnswEFConstruct},
	})
	if err := repo.EnsureIndex(ctx); err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("quizrag: ensure chunk index: %w", err)
	}
	return s, repo, nil
}

func openPostgres(ctx context.Context, cfg *clientConfig) (database, vectorIndex, error) {
	readyCtx, cancel := context.WithTimeout(ctx, defaultReadinessTimeout)
	defer cancel()
	repo, err := pgrepo.Open(readyCtx, cfg.dsn, pgrepo.Config{
		Dimensions: cfg.vectorDimensions,
		Model:      embeddingModel(cfg),
		HNSW:       pgrepo.HNSWConfig{M: cfg.hnswM, EFConstruct: cfg.hnswEFConstruct},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("quizrag: database not ready: %w", err)
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = repo.Close()
		return nil, nil, fmt.Errorf("quizrag: ensure chunk table: %w", err)
	}
	return pgDatabase{repo}, repo, nil
}

// embeddingModel names the vector model stored with every chunk. Custom
// embedders share one name.
func embeddingModel(cfg *clientConfig) string {
	if cfg.openAI != nil && cfg.embedder == nil {
		return cfg.openAI.EmbeddingModel
	}
	return "sdk"
}

// providers resolves the embedder and completer from options.
func providers(cfg *clientConfig) (*embedderAdapter, *completerAdapter, error) {
	var (
		emb Embedder
		cm  Completer
	)
	if cfg.openAI != nil {
		oc := openaiTransport.Config{
			APIKey:     cfg.openAI.APIKey,
			BaseURL:    cfg.openAI.BaseURL,
			Model:      cfg.openAI.EmbeddingModel,
			Dimensions: cfg.openAI.Dimensions,
			Provider:   "openai",
			Logger:     zap.NewNop(),
		}
		emb = &openAIEmbedder{inner: openaiTransport.NewEmbedder(&oc)}
		oc.Model = cfg.openAI.ChatModel
		oc.RequestsPerSecond = cfg.openAI.RequestsPerSecond
		cm = &openAICompleter{inner: openaiTransport.NewCompleter(&oc)}
	}
	if cfg.embedder != nil {
		emb = cfg.embedder
	}
	if cfg.completer != nil {
		cm = cfg.completer
	}
	if emb == nil {
		return nil, nil, errors.New("quizrag: embedder required (use WithEmbedder or WithOpenAI)")
	}
	if cm == nil {
		return nil, nil, errors.New("quizrag: completer required (use WithCompleter or WithOpenAI)")
	}
	return &embedderAdapter{inner: emb}, &completerAdapter{inner: cm}, nil
}

func wireClient(
	conn database, idx vectorIndex, emb *embedderAdapter, cm *completerAdapter, cfg *clientConfig, obs *observer,
) (*Client, error) {
	logger := zap.NewNop()

	ch, err := chunker.New(cfg.chunkSize, cfg.chunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("quizrag: %w", err)
	}

	var cache embeddinguc.Cache
	if cfg.cacheSize > 0 {
		cache = embeddinguc.NewLRUCache(cfg.cacheSize, defaultCacheTTL, nil)
	}
	manager := embeddinguc.NewManager(emb, cache, embeddinguc.Config{
		Model:      embeddingModel(cfg),
		Dimensions: cfg.vectorDimensions,
		Retry:      retry.Default(),
	}, logger)

	ingestSvc := ingestuc.New(ch, manager, idx, logger)
	retrievalCfg := retrievaluc.Config{Threshold: cfg.threshold}
	if cfg.rerank {
		retrievalCfg.Reranker = retrievaluc.NewLLMReranker(cm, retry.Default(), logger)
	}
	retrievalSvc := retrievaluc.New(manager, idx, retrievalCfg)

	prompts, err := generationuc.NewPrompts(generationuc.Templates{})
	if err != nil {
		return nil, fmt.Errorf("quizrag: %w", err)
	}
	chatModel := "sdk"
	if cfg.openAI != nil && cfg.completer == nil {
		chatModel = cfg.openAI.ChatModel
	}
	genSvc := generationuc.New(retrievalSvc, cm, prompts, generationuc.Config{
		Model:      chatModel,
		Assess:     cfg.assess,
		MinQuality: cfg.minQuality,
	}, logger)

	components := []healthuc.Component{
		{Name: "embedding", Checker: healthuc.CheckFunc(emb.HealthCheck)},
		{Name: "generation", Checker: healthuc.CheckFunc(cm.HealthCheck)},
	}
	if conn != nil {
		components = append(components, healthuc.Component{
			Name: "database", Checker: healthuc.CheckFunc(conn.Ping), Required: true,
		})
	}

	return &Client{
		conn:         conn,
		ingestSvc:    ingestSvc,
		retrievalSvc: retrievalSvc,
		genSvc:       genSvc,
		healthSvc:    healthuc.New(logger, components...),
		obs:          obs,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// Ping checks database connectivity. Always nil for the in-memory index.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if c.conn == nil {
		return nil
	}
	if err = c.conn.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Documents returns the document ingest service.
func (c *Client) Documents() *DocumentService {
	return &DocumentService{svc: c.ingestSvc, obs: c.obs}
}

// Questions returns the question generation service.
func (c *Client) Questions() *QuestionService {
	return &QuestionService{svc: c.genSvc, obs: c.obs}
}

// Retrieve returns up to q.K passages above the similarity threshold,
// ordered by descending score. No match is an empty slice, not an error.
func (c *Client) Retrieve(ctx context.Context, q Query) (_ []Passage, err error) {
	start := time.Now()
	defer func() { c.obs.observe("retrieve", start, err, "k", q.K) }()

	res, err := c.retrievalSvc.Retrieve(ctx, retrievaluc.Query{
		Text: q.Text, K: q.K, Subject: q.Subject, Unit: q.Unit, Threshold: q.Threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	out := make([]Passage, len(res.Passages))
	for i, p := range res.Passages {
		out[i] = fromInternalPassage(p)
	}
	return out, nil
}

// Health checks all components. The database is required, providers only degrade.
func (c *Client) Health(ctx context.Context) HealthReport {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthReport{Status: string(report.Status), Checks: checks}
}

// openAIEmbedder exposes the transport embedder through the public interface.
type openAIEmbedder struct {
	inner *openaiTransport.Embedder
}

func (e *openAIEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	res, err := e.inner.BatchEmbed(ctx, texts)
	if err != nil {
		return BatchEmbeddingResult{}, err //nolint:wrapcheck // adapter wraps
	}
	return BatchEmbeddingResult{
		Embeddings: res.Embeddings, PromptTokens: res.PromptTokens, TotalTokens: res.TotalTokens,
	}, nil
}

func (e *openAIEmbedder) HealthCheck(ctx context.Context) error {
	return e.inner.HealthCheck(ctx) //nolint:wrapcheck // adapter wraps
}

type openAICompleter struct {
	inner *openaiTransport.Completer
}

func (c *openAICompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	return c.inner.Complete(ctx, domain.Prompt{ //nolint:wrapcheck // adapter wraps
		System: p.System, User: p.User, JSON: p.JSON,
		Temperature: p.Temperature, MaxTokens: p.MaxTokens,
	})
}

func (c *openAICompleter) HealthCheck(ctx context.Context) error {
	return c.inner.HealthCheck(ctx) //nolint:wrapcheck // adapter wraps
}
