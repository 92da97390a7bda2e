package repository

import (
	"context"
	"errors"
	"time"

	"github.com/csvflow/ingestd/internal/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// FileEntryRepository persists the ingestion lifecycle of watched files.
type FileEntryRepository interface {
	Create(ctx context.Context, entry domain.FileEntry) (domain.FileEntry, error)
	GetByFilename(ctx context.Context, filename string) (domain.FileEntry, error)
	// MarkProcessed finalizes a successful run: processed flag, timestamp and
	// the number of rows committed across all workers.
	MarkProcessed(ctx context.Context, id uuid.UUID, recordCount int64, processedAt time.Time) error
	// MarkFailed finalizes a failed run, leaving the entry unprocessed with
	// an error description for operator inspection.
	MarkFailed(ctx context.Context, id uuid.UUID, errorLog string) error
	List(ctx context.Context, processed *bool, limit int, offset int) ([]domain.FileEntry, error)
}

// UpsertResult breaks down the outcome of one bulk write.
type UpsertResult struct {
	Inserted   int
	Updated    int
	Duplicates int
}

// SalesRecordRepository performs deduplicating bulk writes of parsed rows.
type SalesRecordRepository interface {
	// UpsertBatch inserts or updates each record keyed by (order_id, user_id).
	// Records whose stored values already match are counted as duplicates.
	// The batch must not contain two records with the same natural key.
	UpsertBatch(ctx context.Context, records []domain.SalesRecord) (UpsertResult, error)
}

// UserRepository resolves the owner account records are ingested under.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	// First returns the oldest account in the store.
	First(ctx context.Context) (domain.User, error)
}
