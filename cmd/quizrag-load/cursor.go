package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const cursorFile = "quizrag-load.cursor.json"

// Cursor is the resume position of a load.
type Cursor struct {
	FileIndex      int       `json:"file_index"`
	RowOffset      int       `json:"row_offset"`
	TotalProcessed int       `json:"total_processed"`
	TotalFailed    int       `json:"total_failed"`
	Done           bool      `json:"done"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// cursorTracker persists the cursor every saveEvery documents.
type cursorTracker struct {
	mu        sync.Mutex
	cursor    Cursor
	path      string
	saveEvery int
	dirty     bool
	logger    *zap.Logger
}

// newCursorTracker loads a previous cursor from stateDir when present.
func newCursorTracker(stateDir string, saveEvery int, logger *zap.Logger) (*cursorTracker, error) {
	ct := &cursorTracker{
		path:      filepath.Join(filepath.Clean(stateDir), cursorFile),
		saveEvery: max(saveEvery, 1),
		logger:    logger,
	}

	data, err := os.ReadFile(ct.path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &ct.cursor); err != nil {
			return nil, fmt.Errorf("parse cursor %s: %w", ct.path, err)
		}
		logger.Info("Resuming from cursor",
			zap.Int("file_index", ct.cursor.FileIndex),
			zap.Int("row_offset", ct.cursor.RowOffset),
			zap.Int("processed", ct.cursor.TotalProcessed),
		)
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read cursor %s: %w", ct.path, err)
	}
	return ct, nil
}

// Get returns a copy of the cursor.
func (ct *cursorTracker) Get() Cursor {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return ct.cursor
}

// Advance moves the cursor past a finished batch. Positions only move forward.
func (ct *cursorTracker) Advance(fileIndex, rowOffset, processed, failed int) {
	ct.mu.Lock()
	if fileIndex > ct.cursor.FileIndex ||
		(fileIndex == ct.cursor.FileIndex && rowOffset > ct.cursor.RowOffset) {
		ct.cursor.FileIndex = fileIndex
		ct.cursor.RowOffset = rowOffset
	}
	before := ct.cursor.TotalProcessed + ct.cursor.TotalFailed
	ct.cursor.TotalProcessed += processed
	ct.cursor.TotalFailed += failed
	ct.cursor.UpdatedAt = time.Now()
	ct.dirty = true
	shouldSave := before/ct.saveEvery != (before+processed+failed)/ct.saveEvery
	ct.mu.Unlock()

	if shouldSave {
		ct.save()
	}
}

// Finish marks the load complete and saves.
func (ct *cursorTracker) Finish() {
	ct.mu.Lock()
	ct.cursor.Done = true
	ct.cursor.UpdatedAt = time.Now()
	ct.dirty = true
	ct.mu.Unlock()
	ct.save()
}

// Reset discards the saved position.
func (ct *cursorTracker) Reset() {
	ct.mu.Lock()
	ct.cursor = Cursor{}
	ct.dirty = true
	ct.mu.Unlock()
	ct.save()
}

// save writes the cursor atomically through a temp file.
func (ct *cursorTracker) save() {
	ct.mu.Lock()
	if !ct.dirty {
		ct.mu.Unlock()
		return
	}
	data, err := json.MarshalIndent(ct.cursor, "", "  ")
	ct.dirty = false
	ct.mu.Unlock()
	if err != nil {
		ct.logger.Error("Cursor marshal failed", zap.Error(err))
		return
	}

	tmp := ct.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err == nil {
		err = os.Rename(tmp, ct.path)
		if err == nil {
			return
		}
		ct.logger.Warn("Cursor rename failed", zap.Error(err))
	} else {
		ct.logger.Warn("Cursor write failed", zap.Error(err))
	}
	ct.mu.Lock()
	ct.dirty = true
	ct.mu.Unlock()
}
