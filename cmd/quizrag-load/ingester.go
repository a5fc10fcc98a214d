package main

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	quizrag "github.com/kailas-cloud/quizrag/pkg/sdk"
)

// documentIngester is the slice of the SDK the loader needs.
type documentIngester interface {
	IngestMany(ctx context.Context, docs []quizrag.Document) []quizrag.IngestResult
}

// ingester fans corpus records out to workers: reader -> batches -> IngestMany.
type ingester struct {
	docs      documentIngester
	workers   int
	batchSize int
	metrics   *loaderMetrics
	cursor    *cursorTracker
	logger    *zap.Logger
}

// batchItem is one batch plus the cursor position just past its last record.
type batchItem struct {
	docs      []quizrag.Document
	fileIndex int
	rowOffset int
}

type ingestResult struct {
	Processed int64
	Failed    int64
	Chunks    int64
	Duration  time.Duration
}

// Run loads the corpus from the saved cursor position.
func (ing *ingester) Run(ctx context.Context, c *corpus) (ingestResult, error) {
	cur := ing.cursor.Get()
	batches := make(chan batchItem, ing.workers*2)

	var (
		wg                        sync.WaitGroup
		processed, failed, chunks atomic.Int64
	)
	start := time.Now()

	for id := range ing.workers {
		wg.Go(func() {
			for b := range batches {
				ing.processBatch(ctx, id, b, &processed, &failed, &chunks)
			}
		})
	}

	readErr := ing.produce(ctx, c, cur.FileIndex, cur.RowOffset, batches, &failed)
	close(batches)
	wg.Wait()

	return ingestResult{
		Processed: processed.Load(),
		Failed:    failed.Load(),
		Chunks:    chunks.Load(),
		Duration:  time.Since(start),
	}, readErr
}

func (ing *ingester) produce(
	ctx context.Context, c *corpus, fileIndex, rowOffset int, out chan<- batchItem, failed *atomic.Int64,
) error {
	batch := make([]quizrag.Document, 0, ing.batchSize)
	var lastFile, lastRow int

	flush := func() {
		if len(batch) == 0 {
			return
		}
		out <- batchItem{docs: batch, fileIndex: lastFile, rowOffset: lastRow}
		batch = make([]quizrag.Document, 0, ing.batchSize)
	}

	err := c.Read(fileIndex, rowOffset, func(rec record) bool {
		if ctx.Err() != nil {
			return false
		}
		if ing.metrics != nil {
			ing.metrics.cursorFile.Set(float64(rec.file))
		}
		lastFile, lastRow = rec.file, rec.row+1
		if rec.err != nil {
			ing.logger.Warn("Skipping document", zap.String("doc_id", rec.doc.ID), zap.Error(rec.err))
			failed.Add(1)
			if ing.metrics != nil {
				ing.metrics.documentsFailed.WithLabelValues("invalid").Inc()
			}
			// counted only; the position moves with the batches
			ing.cursor.Advance(0, 0, 0, 1)
			return true
		}
		batch = append(batch, rec.doc)
		if len(batch) >= ing.batchSize {
			flush()
		}
		return true
	})
	flush()
	return err
}

func (ing *ingester) processBatch(
	ctx context.Context, id int, b batchItem, processed, failed, chunks *atomic.Int64,
) {
	start := time.Now()
	results := ing.docs.IngestMany(ctx, b.docs)

	if ing.metrics != nil {
		ing.metrics.batchesTotal.Inc()
		ing.metrics.batchDuration.Observe(time.Since(start).Seconds())
	}

	ok, bad := 0, 0
	for _, r := range results {
		if r.OK {
			ok++
			chunks.Add(int64(r.Chunks))
			if ing.metrics != nil {
				ing.metrics.chunks.Add(float64(r.Chunks))
			}
			continue
		}
		bad++
		if bad == 1 {
			ing.logger.Warn("Document failed",
				zap.Int("worker", id), zap.String("doc_id", r.ID), zap.Error(r.Err))
		}
	}
	processed.Add(int64(ok))
	failed.Add(int64(bad))
	if ing.metrics != nil {
		ing.metrics.documentsProcessed.Add(float64(ok))
		if bad > 0 {
			ing.metrics.documentsFailed.WithLabelValues("ingest").Add(float64(bad))
		}
	}

	ing.cursor.Advance(b.fileIndex, b.rowOffset, ok, bad)
	ing.logger.Debug("Batch ingested",
		zap.Int("worker", id), zap.Int("ok", ok), zap.Int("failed", bad),
		zap.Int64("total", processed.Load()))
}
