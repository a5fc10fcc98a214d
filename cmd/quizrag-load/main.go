// Command quizrag-load bulk loads a textbook corpus into the quizrag index.
//
// The corpus directory may contain .txt and .md files laid out as
// <subject>/<unit>/<file>, and .parquet files with id, text, source, subject
// and unit columns. Text files in UTF-8, EUC-KR/CP949 or Latin-1 are accepted.
// Progress is saved to a cursor file so an interrupted load resumes.
//
// Usage:
//
//	quizrag-load -dir ./corpus -workers 4 -batch-size 20
//
// Env vars:
//
//	REDIS_ADDR           Redis address (default: localhost:6379)
//	REDIS_PASSWORD       Redis password
//	DATABASE_URL         Postgres DSN; when set, chunks go to pgvector instead of Redis
//	OPENAI_API_KEY       provider API key
//	OPENAI_BASE_URL      OpenAI-compatible endpoint (default: api.openai.com)
//	EMBEDDING_MODEL      embedding model (default: text-embedding-3-small)
//	EMBEDDING_DIMENSIONS vector size (default: 1536)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/quizrag/internal/logger"
	"github.com/kailas-cloud/quizrag/internal/version"
	quizrag "github.com/kailas-cloud/quizrag/pkg/sdk"
)

type config struct {
	dir            string
	stateDir       string
	subject        string
	unit           string
	workers        int
	batchSize      int
	metricsPort    string
	cursorInterval int
	reset          bool
	logLevel       string
}

func parseFlags() config {
	cfg := config{}
	flag.StringVar(&cfg.dir, "dir", "./corpus", "corpus directory")
	flag.StringVar(&cfg.stateDir, "state-dir", "", "directory for the cursor file (default: -dir)")
	flag.StringVar(&cfg.subject, "subject", "", "subject tag for every document (overrides directory layout)")
	flag.StringVar(&cfg.unit, "unit", "", "unit tag for every document (overrides directory layout)")
	flag.IntVar(&cfg.workers, "workers", 4, "parallel ingest workers")
	flag.IntVar(&cfg.batchSize, "batch-size", 20, "documents per ingest batch")
	flag.StringVar(&cfg.metricsPort, "metrics-port", "", "Prometheus metrics port (empty disables)")
	flag.IntVar(&cfg.cursorInterval, "cursor-interval", 100, "save cursor every N documents")
	flag.BoolVar(&cfg.reset, "reset", false, "discard the cursor and start from scratch")
	flag.StringVar(&cfg.logLevel, "log-level", "info", "log level")
	flag.Parse()
	if cfg.stateDir == "" {
		cfg.stateDir = cfg.dir
	}
	return cfg
}

func main() {
	cfg := parseFlags()

	logger, err := logpkg.New(logpkg.Options{Env: "local", Level: cfg.logLevel, Service: "quizrag-load"})
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("quizrag-load starting", zap.String("version", version.String()), zap.String("dir", cfg.dir))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		cancel()
		logger.Fatal("Load failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	if cfg.workers <= 0 || cfg.batchSize <= 0 {
		return fmt.Errorf("workers and batch-size must be positive")
	}

	reg := prometheus.NewRegistry()
	metrics := newLoaderMetrics(reg)
	if srv := serveMetrics(cfg.metricsPort, reg, logger); srv != nil {
		defer func() {
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutCancel()
			_ = srv.Shutdown(shutCtx)
		}()
	}

	cursor, err := newCursorTracker(cfg.stateDir, cfg.cursorInterval, logger)
	if err != nil {
		return fmt.Errorf("cursor: %w", err)
	}
	if cfg.reset {
		cursor.Reset()
		logger.Info("Cursor reset, starting from scratch")
	}
	if cursor.Get().Done {
		logger.Info("Corpus already loaded; use -reset to load again")
		return nil
	}

	c, err := newCorpus(cfg.dir, cfg.subject, cfg.unit)
	if err != nil {
		return err
	}
	logger.Info("Corpus scanned", zap.String("dir", cfg.dir), zap.Int("files", len(c.files)))

	client, err := connect(ctx, reg)
	if err != nil {
		return err
	}
	defer client.Close()

	ing := &ingester{
		docs:      client.Documents(),
		workers:   cfg.workers,
		batchSize: cfg.batchSize,
		metrics:   metrics,
		cursor:    cursor,
		logger:    logger,
	}
	res, err := ing.Run(ctx, c)
	if err != nil {
		return fmt.Errorf("ingest corpus: %w", err)
	}
	if ctx.Err() == nil {
		cursor.Finish()
	}

	logger.Info("Load finished",
		zap.Int64("processed", res.Processed),
		zap.Int64("failed", res.Failed),
		zap.Int64("chunks", res.Chunks),
		zap.Duration("duration", res.Duration.Round(time.Second)),
	)
	return nil
}

func connect(ctx context.Context, reg prometheus.Registerer) (*quizrag.Client, error) {
	dims, err := strconv.Atoi(env("EMBEDDING_DIMENSIONS", "1536"))
	if err != nil {
		return nil, fmt.Errorf("EMBEDDING_DIMENSIONS: %w", err)
	}
	backend := quizrag.WithRedis(env("REDIS_ADDR", "localhost:6379"), os.Getenv("REDIS_PASSWORD"))
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		backend = quizrag.WithPostgres(dsn)
	}
	client, err := quizrag.New(ctx,
		backend,
		quizrag.WithOpenAI(quizrag.OpenAIConfig{
			APIKey:         os.Getenv("OPENAI_API_KEY"),
			BaseURL:        os.Getenv("OPENAI_BASE_URL"),
			EmbeddingModel: env("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimensions:     dims,
			ChatModel:      env("CHAT_MODEL", "gpt-4o-mini"),
		}),
		quizrag.WithVectorDimensions(dims),
		quizrag.WithPrometheus(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("quizrag connect: %w", err)
	}
	return client, nil
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
