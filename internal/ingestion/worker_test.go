package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/csvflow/ingestd/internal/domain"

	"github.com/google/uuid"
)

// writeSalesCSV writes a file whose order ids equal their data line numbers
// (1-based), so range assertions can reason about coverage directly.
func writeSalesCSV(t *testing.T, dir string, name string, rows int) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("Region,Country,Item Type,Sales Channel,Order Priority,Order Date,Order ID,Ship Date,Units Sold,Unit Price,Unit Cost,Total Revenue,Total Cost,Total Profit\n")
	for i := 1; i <= rows; i++ {
		fmt.Fprintf(&b, "Europe,Norway,Cereal,Online,M,1/15/2015,%d,1/20/2015,10,2.5,1.5,25,15,10\n", i)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

type recordingCommitter struct {
	mu         sync.Mutex
	batchSizes []int
	orderIDs   []int64
	err        error
}

func (c *recordingCommitter) Commit(ctx context.Context, batch []domain.SalesRecord) (CommitResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(batch) == 0 {
		return CommitResult{}, nil
	}
	if c.err != nil {
		return CommitResult{}, c.err
	}
	c.batchSizes = append(c.batchSizes, len(batch))
	for _, record := range batch {
		c.orderIDs = append(c.orderIDs, record.OrderID)
	}
	return CommitResult{Inserted: len(batch)}, nil
}

func newTestWorker(path string, start, end int64, batchSize int, committer batchCommitter) *worker {
	return &worker{
		assignment: Assignment{
			FilePath:  path,
			StartLine: start,
			EndLine:   end,
			Index:     0,
			Workers:   1,
		},
		ownerID:     uuid.New(),
		fileEntryID: uuid.New(),
		batchSize:   batchSize,
		committer:   committer,
		logger:      testLogger(),
	}
}

func TestWorkerProcessesAssignedRange(t *testing.T) {
	path := writeSalesCSV(t, t.TempDir(), "data.csv", 10)
	committer := &recordingCommitter{}
	w := newTestWorker(path, 3, 7, 100, committer)

	report := w.process(context.Background())
	if report.Err != nil {
		t.Fatalf("worker reported error: %v", report.Err)
	}
	if report.Processed != 4 {
		t.Fatalf("expected 4 processed rows, got %d", report.Processed)
	}

	want := []int64{4, 5, 6, 7}
	if len(committer.orderIDs) != len(want) {
		t.Fatalf("unexpected committed rows: %v", committer.orderIDs)
	}
	for i, id := range want {
		if committer.orderIDs[i] != id {
			t.Fatalf("expected order ids %v in file order, got %v", want, committer.orderIDs)
		}
	}
}

func TestWorkerFlushesAtBatchSize(t *testing.T) {
	path := writeSalesCSV(t, t.TempDir(), "data.csv", 10)
	committer := &recordingCommitter{}
	w := newTestWorker(path, 0, 10, 4, committer)

	report := w.process(context.Background())
	if report.Err != nil {
		t.Fatalf("worker reported error: %v", report.Err)
	}
	if report.Processed != 10 {
		t.Fatalf("expected 10 processed rows, got %d", report.Processed)
	}

	want := []int{4, 4, 2}
	if len(committer.batchSizes) != len(want) {
		t.Fatalf("expected batches %v, got %v", want, committer.batchSizes)
	}
	for i, size := range want {
		if committer.batchSizes[i] != size {
			t.Fatalf("expected batches %v, got %v", want, committer.batchSizes)
		}
	}
}

func TestWorkerContinuesAfterBatchError(t *testing.T) {
	path := writeSalesCSV(t, t.TempDir(), "data.csv", 6)
	committer := &recordingCommitter{err: errors.New("store unavailable")}
	w := newTestWorker(path, 0, 6, 2, committer)

	report := w.process(context.Background())
	if report.Err != nil {
		t.Fatalf("batch errors must not fail the worker: %v", report.Err)
	}
	if report.Processed != 0 {
		t.Fatalf("failed batches earn zero credit, got %d", report.Processed)
	}
}

func TestWorkerUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.txt")
	if err := os.WriteFile(path, []byte("not a table"), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	w := newTestWorker(path, 0, 10, 5, &recordingCommitter{})
	report := w.process(context.Background())

	if report.Err == nil {
		t.Fatalf("expected error for unsupported format")
	}
	if !errors.Is(report.Err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", report.Err)
	}
}

func TestWorkerHeaderOnlyFile(t *testing.T) {
	path := writeSalesCSV(t, t.TempDir(), "data.csv", 0)
	committer := &recordingCommitter{}
	w := newTestWorker(path, 0, 0, 5, committer)

	report := w.process(context.Background())
	if report.Err != nil {
		t.Fatalf("worker reported error: %v", report.Err)
	}
	if report.Processed != 0 {
		t.Fatalf("expected zero processed rows, got %d", report.Processed)
	}
	if len(committer.batchSizes) != 0 {
		t.Fatalf("no batch should have been committed: %v", committer.batchSizes)
	}
}

func TestWorkerCancelledContext(t *testing.T) {
	path := writeSalesCSV(t, t.TempDir(), "data.csv", 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := newTestWorker(path, 0, 5, 5, &recordingCommitter{})
	report := w.process(ctx)

	if !errors.Is(report.Err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", report.Err)
	}
}
