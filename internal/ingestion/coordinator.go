package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/csvflow/ingestd/internal/domain"
	"github.com/csvflow/ingestd/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Options tunes a coordinator. Zero values fall back to the defaults below.
type Options struct {
	WorkerCount          int
	BatchSize            int
	WorkerTimeout        time.Duration
	MaxConcurrentWorkers int64
}

const (
	defaultWorkerCount          = 4
	defaultBatchSize            = 5000
	defaultWorkerTimeout        = 10 * time.Minute
	defaultMaxConcurrentWorkers = 16
)

// Coordinator fans a detected file out to parallel range workers,
// aggregates their reports, and finalizes the file's lifecycle record. It
// is the sole writer of a file entry's terminal state.
type Coordinator struct {
	files   repository.FileEntryRepository
	sales   repository.SalesRecordRepository
	ownerID uuid.UUID

	workerCount   int
	batchSize     int
	workerTimeout time.Duration

	// workerSlots bounds running workers across all in-flight files so a
	// burst of deliveries cannot spawn unbounded goroutine pools.
	workerSlots *semaphore.Weighted

	logger *slog.Logger
}

// NewCoordinator wires a coordinator. The owner id is an explicit input:
// every record ingested through this coordinator belongs to that account.
func NewCoordinator(
	files repository.FileEntryRepository,
	sales repository.SalesRecordRepository,
	ownerID uuid.UUID,
	opts Options,
	logger *slog.Logger,
) *Coordinator {
	if opts.WorkerCount < 1 {
		opts.WorkerCount = defaultWorkerCount
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.WorkerTimeout <= 0 {
		opts.WorkerTimeout = defaultWorkerTimeout
	}
	if opts.MaxConcurrentWorkers < 1 {
		opts.MaxConcurrentWorkers = defaultMaxConcurrentWorkers
	}

	return &Coordinator{
		files:         files,
		sales:         sales,
		ownerID:       ownerID,
		workerCount:   opts.WorkerCount,
		batchSize:     opts.BatchSize,
		workerTimeout: opts.WorkerTimeout,
		workerSlots:   semaphore.NewWeighted(opts.MaxConcurrentWorkers),
		logger:        logger,
	}
}

// Process ingests one detected file and finalizes its entry: on full
// success the entry is marked processed with the aggregated record count
// and the source file is deleted; on any worker failure the entry keeps
// processed=false with an error log and the file is preserved.
func (c *Coordinator) Process(ctx context.Context, filePath string, entry domain.FileEntry) {
	start := time.Now()

	totalRows, err := countDataRows(filePath)
	if err != nil {
		c.finalizeFailure(ctx, entry, fmt.Sprintf("failed to scan file: %v", err))
		return
	}

	c.logger.Info("processing file",
		"file", entry.Filename,
		"rows", totalRows,
		"workers", c.workerCount,
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	reports := make(chan Report, c.workerCount)
	for i := 0; i < c.workerCount; i++ {
		assignment := Assignment{
			FilePath:  filePath,
			StartLine: totalRows * int64(i) / int64(c.workerCount),
			EndLine:   totalRows * int64(i+1) / int64(c.workerCount),
			Index:     i,
			Workers:   c.workerCount,
		}
		go c.runWorker(runCtx, assignment, entry.ID, reports)
	}

	var totalProcessed int64
	var failures []string
	received := 0

	deadline := time.NewTimer(c.workerTimeout)
	defer deadline.Stop()

	for received < c.workerCount {
		select {
		case report := <-reports:
			received++
			if report.Err != nil {
				failures = append(failures, fmt.Sprintf("worker %d: %v", report.Index, report.Err))
				c.logger.Error("worker failed",
					"file", entry.Filename,
					"worker", report.Index,
					"error", report.Err,
				)
				continue
			}
			totalProcessed += report.Processed
			c.logger.Info("worker finished",
				"file", entry.Filename,
				"worker", report.Index,
				"processed", report.Processed,
			)
		case <-deadline.C:
			missing := c.workerCount - received
			failures = append(failures, fmt.Sprintf("%d worker(s) missed the %s deadline", missing, c.workerTimeout))
			received = c.workerCount
			cancel()
		}
	}

	if len(failures) > 0 {
		c.finalizeFailure(ctx, entry, strings.Join(failures, "; "))
		return
	}

	if err := c.files.MarkProcessed(ctx, entry.ID, totalProcessed, time.Now()); err != nil {
		// The entry never reached a durable processed state, so the source
		// file must survive for a re-run.
		c.logger.Error("failed to finalize file entry", "file", entry.Filename, "error", err)
		return
	}

	if err := os.Remove(filePath); err != nil {
		c.logger.Error("failed to delete source file", "file", filePath, "error", err)
	}

	c.logger.Info("file processed",
		"file", entry.Filename,
		"records", totalProcessed,
		"duration", time.Since(start).Round(time.Millisecond),
	)
}

func (c *Coordinator) runWorker(ctx context.Context, assignment Assignment, fileEntryID uuid.UUID, reports chan<- Report) {
	if err := c.workerSlots.Acquire(ctx, 1); err != nil {
		reports <- Report{Index: assignment.Index, Err: fmt.Errorf("worker slot: %w", err)}
		return
	}
	defer c.workerSlots.Release(1)

	w := &worker{
		assignment:  assignment,
		ownerID:     c.ownerID,
		fileEntryID: fileEntryID,
		batchSize:   c.batchSize,
		committer:   NewCommitter(c.sales, c.logger),
		logger:      c.logger,
	}
	w.run(ctx, reports)
}

func (c *Coordinator) finalizeFailure(ctx context.Context, entry domain.FileEntry, errorLog string) {
	c.logger.Error("file ingestion failed", "file", entry.Filename, "error", errorLog)
	if err := c.files.MarkFailed(ctx, entry.ID, errorLog); err != nil {
		c.logger.Error("failed to record ingestion failure", "file", entry.Filename, "error", err)
	}
}

// countDataRows counts rows after the header so the coordinator can carve
// the file into contiguous, disjoint worker ranges.
func countDataRows(path string) (int64, error) {
	source, err := openRowSource(path)
	if err != nil {
		return 0, err
	}
	defer source.Close()

	var count int64 = -1 // header row does not count
	for {
		if _, err := source.Next(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
		count++
	}

	if count < 0 {
		count = 0
	}
	return count, nil
}
