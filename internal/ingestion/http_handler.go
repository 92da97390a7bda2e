package ingestion

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/csvflow/ingestd/internal/repository"
)

// Handler exposes the file ingestion lifecycle as a read-only endpoint so
// operators can inspect progress and failures.
type Handler struct {
	files repository.FileEntryRepository
}

// NewHTTPHandler wraps the file entry store with a GET endpoint.
func NewHTTPHandler(files repository.FileEntryRepository) http.Handler {
	return &Handler{files: files}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var processed *bool
	if raw := strings.TrimSpace(r.URL.Query().Get("processed")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "invalid processed filter", http.StatusBadRequest)
			return
		}
		processed = &value
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.files.List(r.Context(), processed, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
