package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/csvflow/ingestd/internal/domain"
)

type stubProcessor struct {
	mu    sync.Mutex
	calls []string
	done  chan struct{}
}

func newStubProcessor() *stubProcessor {
	return &stubProcessor{done: make(chan struct{}, 8)}
}

func (p *stubProcessor) Process(ctx context.Context, filePath string, entry domain.FileEntry) {
	p.mu.Lock()
	p.calls = append(p.calls, entry.Filename)
	p.mu.Unlock()
	p.done <- struct{}{}
}

func (p *stubProcessor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func startWatcher(t *testing.T, dir string, files *stubFileRepo, processor *stubProcessor) context.CancelFunc {
	t.Helper()

	watcher := NewWatcher(dir, files, processor, testLogger())
	watcher.settleInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = watcher.Run(ctx)
	}()

	// Give the fsnotify watch a moment to attach before events fire.
	time.Sleep(100 * time.Millisecond)
	return cancel
}

func TestWatcherHandsOffNewFile(t *testing.T) {
	dir := t.TempDir()
	files := newStubFileRepo()
	processor := newStubProcessor()

	cancel := startWatcher(t, dir, files, processor)
	defer cancel()

	writeSalesCSV(t, dir, "fresh.csv", 3)

	select {
	case <-processor.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("coordinator was never invoked")
	}

	if len(files.created) != 1 {
		t.Fatalf("expected exactly one file entry, got %d", len(files.created))
	}
	if files.created[0].Filename != "fresh.csv" {
		t.Fatalf("unexpected filename: %q", files.created[0].Filename)
	}
	if files.created[0].Processed {
		t.Fatalf("new entry must start unprocessed")
	}
}

func TestWatcherSkipsKnownFilename(t *testing.T) {
	dir := t.TempDir()
	files := newStubFileRepo()
	files.entries["known.csv"] = domain.NewFileEntry("known.csv", dir)
	processor := newStubProcessor()

	cancel := startWatcher(t, dir, files, processor)
	defer cancel()

	writeSalesCSV(t, dir, "known.csv", 3)

	time.Sleep(500 * time.Millisecond)

	if got := processor.callCount(); got != 0 {
		t.Fatalf("known file must not be reprocessed, got %d calls", got)
	}
	if len(files.created) != 0 {
		t.Fatalf("known file must not get a second entry, got %d", len(files.created))
	}
}

func TestWatcherIgnoresDotfiles(t *testing.T) {
	dir := t.TempDir()
	files := newStubFileRepo()
	processor := newStubProcessor()

	cancel := startWatcher(t, dir, files, processor)
	defer cancel()

	writeSalesCSV(t, dir, ".hidden.csv", 2)

	time.Sleep(500 * time.Millisecond)

	if got := processor.callCount(); got != 0 {
		t.Fatalf("dotfiles must be ignored, got %d calls", got)
	}
}

func TestWatcherDropsEventOnEntryCreateError(t *testing.T) {
	dir := t.TempDir()
	files := newStubFileRepo()
	files.createErr = os.ErrPermission
	processor := newStubProcessor()

	cancel := startWatcher(t, dir, files, processor)
	defer cancel()

	path := writeSalesCSV(t, dir, "unlucky.csv", 2)

	time.Sleep(500 * time.Millisecond)

	if got := processor.callCount(); got != 0 {
		t.Fatalf("failed detection must not reach the coordinator, got %d calls", got)
	}
	// The file stays for operator re-delivery.
	if _, err := os.Stat(filepath.Clean(path)); err != nil {
		t.Fatalf("dropped file should remain on disk: %v", err)
	}
}
