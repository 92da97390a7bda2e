package ingestion

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/csvflow/ingestd/internal/domain"
)

func TestHandlerListsFileEntries(t *testing.T) {
	files := newStubFileRepo()
	files.entries["a.csv"] = domain.NewFileEntry("a.csv", "/uploads")
	files.entries["b.csv"] = domain.NewFileEntry("b.csv", "/uploads")

	handler := NewHTTPHandler(files)

	req := httptest.NewRequest(http.MethodGet, "/files", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var entries []domain.FileEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestHandlerFiltersByProcessed(t *testing.T) {
	files := newStubFileRepo()
	done := domain.NewFileEntry("done.csv", "/uploads")
	done.Processed = true
	files.entries["done.csv"] = done
	files.entries["pending.csv"] = domain.NewFileEntry("pending.csv", "/uploads")

	handler := NewHTTPHandler(files)

	req := httptest.NewRequest(http.MethodGet, "/files?processed=true", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var entries []domain.FileEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(entries) != 1 || entries[0].Filename != "done.csv" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestHandlerRejectsNonGet(t *testing.T) {
	handler := NewHTTPHandler(newStubFileRepo())

	req := httptest.NewRequest(http.MethodPost, "/files", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandlerRejectsBadProcessedFilter(t *testing.T) {
	handler := NewHTTPHandler(newStubFileRepo())

	req := httptest.NewRequest(http.MethodGet, "/files?processed=maybe", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
