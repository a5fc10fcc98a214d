package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/quizrag/internal/chunker"
	"github.com/kailas-cloud/quizrag/internal/config"
	"github.com/kailas-cloud/quizrag/internal/db"
	dbRedis "github.com/kailas-cloud/quizrag/internal/db/redis"
	domchunk "github.com/kailas-cloud/quizrag/internal/domain/chunk"
	"github.com/kailas-cloud/quizrag/internal/domain/filter"
	"github.com/kailas-cloud/quizrag/internal/domain/index"
	logpkg "github.com/kailas-cloud/quizrag/internal/logger"
	"github.com/kailas-cloud/quizrag/internal/metrics"
	chunkrepo "github.com/kailas-cloud/quizrag/internal/repository/chunk"
	"github.com/kailas-cloud/quizrag/internal/repository/embcache"
	"github.com/kailas-cloud/quizrag/internal/repository/memory"
	pgrepo "github.com/kailas-cloud/quizrag/internal/repository/postgres"
	chiTransport "github.com/kailas-cloud/quizrag/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/quizrag/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/quizrag/internal/usecase/embedding"
	generationuc "github.com/kailas-cloud/quizrag/internal/usecase/generation"
	healthuc "github.com/kailas-cloud/quizrag/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/quizrag/internal/usecase/ingest"
	retrievaluc "github.com/kailas-cloud/quizrag/internal/usecase/retrieval"
	"github.com/kailas-cloud/quizrag/internal/version"
)

// vectorIndex is what the Redis, Postgres and in-memory indexes provide.
type vectorIndex interface {
	Upsert(ctx context.Context, records []domchunk.Record) error
	Query(ctx context.Context, vector []float32, k int, f filter.Expression) ([]index.Hit, error)
	Delete(ctx context.Context, ids []string) error
	PruneDocument(ctx context.Context, docID string, keep []string) (int, error)
	Count(ctx context.Context) (int, error)
}

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(logpkg.Options{Env: env, Level: cfg.Logging.Level})
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting quizrag API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	ctx := context.Background()

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterProviderMetrics()
	metrics.RegisterGenerationMetrics()

	var store db.Store
	if cfg.Database.Driver == "redis" {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Username: cfg.Database.Username,
			Password: cfg.Database.Password,
			DB:       cfg.Database.DB,
		})
		if err != nil {
			logger.Fatal("Failed to create database store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Database not ready", zap.Error(err))
		}
		logger.Info("Connected to database")
	}

	var pg *pgrepo.Repo
	if cfg.Database.Driver == "postgres" {
		readyCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second)
		pg, err = pgrepo.Open(readyCtx, cfg.Database.DSN, pgrepo.Config{
			Dimensions: cfg.Embedding.Dimensions,
			Model:      cfg.Embedding.Model,
			Table:      cfg.Database.Table,
			HNSW: pgrepo.HNSWConfig{
				M:           cfg.Index.HNSWM,
				EFConstruct: cfg.Index.HNSWEFConstruct,
			},
		})
		cancel()
		if err != nil {
			logger.Fatal("Database not ready", zap.Error(err))
		}
		defer func() { _ = pg.Close() }()
		logger.Info("Connected to postgres")
	}

	idx, err := buildIndex(ctx, cfg, store, pg)
	if err != nil {
		logger.Fatal("Failed to prepare vector index", zap.Error(err))
	}
	if n, err := idx.Count(ctx); err == nil {
		logger.Info("Vector index ready", zap.Int("chunks", n))
	}

	// Embedding: one provider, one cache, separate document/query managers.
	embProvider := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:            cfg.Embedding.Provider.APIKey,
		BaseURL:           cfg.Embedding.Provider.BaseURL,
		Model:             cfg.Embedding.Model,
		Dimensions:        cfg.Embedding.Dimensions,
		Provider:          cfg.Embedding.Provider.Name,
		RequestsPerSecond: cfg.Embedding.Provider.RequestsPerSecond,
		Burst:             cfg.Embedding.Provider.Burst,
		Logger:            logger,
	})
	cache := buildEmbeddingCache(cfg.Embedding.Cache, store)
	docEmbedder := embeddinguc.NewManager(embProvider, cache,
		embeddingConfig(cfg.Embedding, cfg.Embedding.DocumentInstruction), logger)
	queryEmbedder := embeddinguc.NewManager(embProvider, cache,
		embeddingConfig(cfg.Embedding, cfg.Embedding.QueryInstruction), logger)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider.Name),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.String("cache", cfg.Embedding.Cache.Backend),
	)

	var chunkOpts []chunker.Option
	if cfg.Chunking.Lookback > 0 {
		chunkOpts = append(chunkOpts, chunker.WithLookback(cfg.Chunking.Lookback))
	}
	ch, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap, chunkOpts...)
	if err != nil {
		logger.Fatal("Invalid chunker settings", zap.Error(err))
	}

	ingestSvc := ingestuc.New(ch, docEmbedder, idx, logger).
		WithMaxBatchSize(cfg.Ingest.MaxBatchSize).
		WithConcurrency(cfg.Ingest.Concurrency)
	completer := openaiTransport.NewCompleter(&openaiTransport.Config{
		APIKey:            cfg.Generation.Provider.APIKey,
		BaseURL:           cfg.Generation.Provider.BaseURL,
		Model:             cfg.Generation.Model,
		Provider:          cfg.Generation.Provider.Name,
		RequestsPerSecond: cfg.Generation.Provider.RequestsPerSecond,
		Burst:             cfg.Generation.Provider.Burst,
		Logger:            logger,
	})
	retrievalCfg := retrievaluc.Config{
		K:              cfg.Retrieval.K,
		OverFetch:      cfg.Retrieval.OverFetch,
		Threshold:      cfg.Retrieval.Threshold,
		Passages:       metrics.RetrievalPassages,
		RerankFailures: metrics.RerankFailures,
	}
	if cfg.Retrieval.Rerank {
		retrievalCfg.Reranker = retrievaluc.NewLLMReranker(completer, cfg.Generation.Retry.Policy(), logger)
	}
	retrievalSvc := retrievaluc.New(queryEmbedder, idx, retrievalCfg).WithLogger(logger)

	prompts, err := generationuc.NewPrompts(generationuc.Templates{
		System:     cfg.Prompts.System,
		Question:   cfg.Prompts.Question,
		Hints:      cfg.Prompts.Hints,
		Assessment: cfg.Prompts.Assessment,
	})
	if err != nil {
		logger.Fatal("Invalid prompt templates", zap.Error(err))
	}
	generationSvc := generationuc.New(retrievalSvc, completer, prompts, generationuc.Config{
		Model:               completer.Model(),
		MaxRegenerations:    cfg.Generation.MaxRegenerations,
		MinExplanationRunes: cfg.Generation.MinExplanationRunes,
		DuplicateThreshold:  cfg.Generation.DuplicateThreshold,
		Concurrency:         cfg.Generation.Concurrency,
		Passages:            cfg.Generation.Passages,
		Temperature:         cfg.Generation.Temperature,
		MaxTokens:           cfg.Generation.MaxTokens,
		Retry:               cfg.Generation.Retry.Policy(),
		Assess:              cfg.Generation.Assess,
		MinQuality:          cfg.Generation.MinQuality,
		Questions:           metrics.QuestionsTotal,
	}, logger)

	// Health: the vector store is required, providers only degrade.
	components := []healthuc.Component{
		{Name: "embedding", Checker: healthuc.CheckFunc(embProvider.HealthCheck)},
		{Name: "generation", Checker: healthuc.CheckFunc(completer.HealthCheck)},
	}
	if store != nil {
		components = append(components, healthuc.Component{
			Name: "database", Checker: healthuc.CheckFunc(store.Ping), Required: true,
		})
	}
	if pg != nil {
		components = append(components, healthuc.Component{
			Name: "database", Checker: healthuc.CheckFunc(pg.Ping), Required: true,
		})
	}
	healthSvc := healthuc.New(logger, components...)

	server := chiTransport.NewServer(ingestSvc, retrievalSvc, generationSvc, healthSvc, logger).
		WithMaxQuestions(cfg.Generation.MaxCount)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuth(cfg.Auth.APIKeys, chiTransport.PublicPaths...))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildIndex returns the Redis FT index or the pgvector table when one is
// configured, otherwise a process-local index that is lost on restart.
func buildIndex(ctx context.Context, cfg config.Config, store db.Store, pg *pgrepo.Repo) (vectorIndex, error) {
	if pg != nil {
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure chunk table: %w", err)
		}
		return pg, nil
	}
	if store == nil {
		return memory.New(), nil
	}
	algo := db.VectorHNSW
	if cfg.Index.Algorithm == "flat" {
		algo = db.VectorFlat
	}
	repo := chunkrepo.New(store, chunkrepo.Config{
		Dimensions: cfg.Embedding.Dimensions,
		Model:      cfg.Embedding.Model,
		Algorithm:  algo,
		HNSW: chunkrepo.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		},
	})
	if err := repo.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("ensure chunk index: %w", err)
	}
	return repo, nil
}

// buildEmbeddingCache picks the cache backend. Returns a nil interface when
// caching is disabled.
func buildEmbeddingCache(cfg config.EmbeddingCacheConfig, store db.Store) embeddinguc.Cache {
	ttl := time.Duration(cfg.TTLSec) * time.Second
	switch cfg.Backend {
	case "redis":
		return embcache.New(store, ttl, metrics.EmbeddingCacheTotal)
	case "memory":
		return embeddinguc.NewLRUCache(cfg.Capacity, ttl, metrics.EmbeddingCacheTotal)
	default:
		return nil
	}
}

func embeddingConfig(cfg config.EmbeddingConfig, instruction string) embeddinguc.Config {
	return embeddinguc.Config{
		Model:        cfg.Model,
		Dimensions:   cfg.Dimensions,
		MaxBatchSize: cfg.MaxBatchSize,
		Retry:        cfg.Retry.Policy(),
		Instruction:  instruction,
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logpkg.FromContext(r.Context(), logger).Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.CodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			ctx := logpkg.WithRequestID(r.Context(), logger, requestID)
			reqLogger := logpkg.FromContext(ctx)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
