package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/csvflow/ingestd/internal/domain"

	"github.com/google/uuid"
)

// Assignment fixes the contiguous slice of a file one worker owns: data
// rows with ordinal in (StartLine, EndLine], counted after the header.
type Assignment struct {
	FilePath  string
	StartLine int64
	EndLine   int64
	Index     int
	Workers   int
}

// Report is a worker's single terminal message back to its coordinator.
type Report struct {
	Index     int
	Processed int64
	Err       error
}

type worker struct {
	assignment  Assignment
	ownerID     uuid.UUID
	fileEntryID uuid.UUID
	batchSize   int
	committer   batchCommitter
	logger      *slog.Logger
}

// run executes the assignment and delivers exactly one report. The reports
// channel must be buffered so a late report never blocks a coordinator that
// has already given up on this worker.
func (w *worker) run(ctx context.Context, reports chan<- Report) {
	reports <- w.process(ctx)
}

func (w *worker) process(ctx context.Context) (report Report) {
	report.Index = w.assignment.Index

	defer func() {
		if p := recover(); p != nil {
			report.Err = fmt.Errorf("worker panic: %v", p)
		}
	}()

	source, err := openRowSource(w.assignment.FilePath)
	if err != nil {
		report.Err = err
		return report
	}
	defer source.Close()

	// Header row establishes the column layout for the whole file.
	header, err := source.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return report
		}
		report.Err = fmt.Errorf("failed to read header: %w", err)
		return report
	}
	parser := NewParser(header, w.ownerID, w.fileEntryID)

	batch := make([]domain.SalesRecord, 0, w.batchSize)
	var line int64

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			report.Err = ctxErr
			return report
		}

		row, err := source.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// Stream is unusable; rows already committed stay committed.
			report.Err = fmt.Errorf("stream error at line %d: %w", line, err)
			return report
		}

		line++
		if line <= w.assignment.StartLine {
			continue
		}
		if line > w.assignment.EndLine {
			break
		}

		record, parseErr := parser.Parse(row)
		if parseErr != nil {
			continue
		}
		batch = append(batch, record)

		if len(batch) >= w.batchSize {
			report.Processed += w.flush(ctx, batch)
			batch = batch[:0]
		}
	}

	report.Processed += w.flush(ctx, batch)

	return report
}

// flush commits one batch and returns the rows credited to this worker. A
// failed batch is logged and credited zero; the worker moves on.
func (w *worker) flush(ctx context.Context, batch []domain.SalesRecord) int64 {
	if len(batch) == 0 {
		return 0
	}

	result, err := w.committer.Commit(ctx, batch)
	if err != nil {
		w.logger.Error("batch commit failed",
			"file", w.assignment.FilePath,
			"worker", w.assignment.Index,
			"rows", len(batch),
			"error", err,
		)
		return 0
	}

	if result.Duplicates > 0 || result.Invalid > 0 {
		w.logger.Debug("batch committed with skipped rows",
			"worker", w.assignment.Index,
			"inserted", result.Inserted,
			"updated", result.Updated,
			"duplicates", result.Duplicates,
			"invalid", result.Invalid,
		)
	}

	return int64(result.Processed())
}
