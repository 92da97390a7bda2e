package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/csvflow/ingestd/internal/domain"
	"github.com/csvflow/ingestd/internal/repository"

	"github.com/fsnotify/fsnotify"
)

// fileProcessor is the coordinator-facing hand-off contract.
type fileProcessor interface {
	Process(ctx context.Context, filePath string, entry domain.FileEntry)
}

// Watcher observes a directory for newly delivered data files. Each
// genuinely new filename gets exactly one lifecycle record and one
// asynchronous hand-off to the coordinator; everything else is logged and
// dropped.
type Watcher struct {
	dir       string
	files     repository.FileEntryRepository
	processor fileProcessor
	logger    *slog.Logger

	// settleInterval paces the size-stability probe that keeps the watcher
	// from ingesting a file still being written.
	settleInterval time.Duration
	settleAttempts int
}

// NewWatcher wires a watcher over the given directory.
func NewWatcher(dir string, files repository.FileEntryRepository, processor fileProcessor, logger *slog.Logger) *Watcher {
	return &Watcher{
		dir:            dir,
		files:          files,
		processor:      processor,
		logger:         logger,
		settleInterval: 200 * time.Millisecond,
		settleAttempts: 150,
	}
}

// Run blocks delivering filesystem events until ctx is cancelled or the
// underlying watch fails to start.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	w.logger.Info("watching for data files", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			w.handleCreate(ctx, event.Name)
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "dir", w.dir, "error", watchErr)
		}
	}
}

func (w *Watcher) handleCreate(ctx context.Context, path string) {
	resolved, err := filepath.Abs(path)
	if err != nil {
		w.logger.Error("failed to resolve path", "path", path, "error", err)
		return
	}
	filename := filepath.Base(resolved)

	if strings.HasPrefix(filename, ".") {
		return
	}

	info, err := os.Stat(resolved)
	if err != nil {
		w.logger.Error("failed to stat new file", "file", filename, "error", err)
		return
	}
	if info.IsDir() {
		return
	}

	if err := w.waitForSettle(ctx, resolved); err != nil {
		w.logger.Error("file never settled", "file", filename, "error", err)
		return
	}

	// Sole guard against re-processing: an existing entry means the file is
	// already ingested or in flight.
	_, err = w.files.GetByFilename(ctx, filename)
	if err == nil {
		w.logger.Info("file already known, skipping", "file", filename)
		return
	}
	if !errors.Is(err, repository.ErrNotFound) {
		w.logger.Error("failed to check file entry", "file", filename, "error", err)
		return
	}

	entry, err := w.files.Create(ctx, domain.NewFileEntry(filename, filepath.Dir(resolved)))
	if err != nil {
		w.logger.Error("failed to create file entry", "file", filename, "error", err)
		return
	}

	w.logger.Info("new file detected", "file", filename)

	// Fire and forget; the coordinator owns the rest of the lifecycle.
	go w.processor.Process(ctx, resolved, entry)
}

// waitForSettle polls the file size until it stops changing, so a file
// still being copied in is not read half-written.
func (w *Watcher) waitForSettle(ctx context.Context, path string) error {
	var lastSize int64 = -1
	stable := 0

	for attempt := 0; attempt < w.settleAttempts; attempt++ {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}

		if info.Size() == lastSize {
			stable++
			if stable >= 2 {
				return nil
			}
		} else {
			stable = 0
			lastSize = info.Size()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.settleInterval):
		}
	}

	return fmt.Errorf("size still changing after %d checks", w.settleAttempts)
}
