package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/csvflow/ingestd/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type fileEntryRepository struct {
	pool *pgxpool.Pool
}

// NewFileEntryRepository wires a repository backed by pgxpool.
func NewFileEntryRepository(pool *pgxpool.Pool) FileEntryRepository {
	return &fileEntryRepository{pool: pool}
}

func (r *fileEntryRepository) Create(ctx context.Context, entry domain.FileEntry) (domain.FileEntry, error) {
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO file_entries (id, filename, folder_path, upload_date, processed, record_count)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID,
		entry.Filename,
		entry.FolderPath,
		entry.UploadDate,
		entry.Processed,
		entry.RecordCount,
	)
	if err != nil {
		return domain.FileEntry{}, fmt.Errorf("failed to create file entry: %w", err)
	}

	return entry, nil
}

func (r *fileEntryRepository) GetByFilename(ctx context.Context, filename string) (domain.FileEntry, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT id, filename, folder_path, upload_date, processed, processed_at, record_count, error_log, created_at, updated_at
		 FROM file_entries
		 WHERE filename = $1`,
		filename,
	)

	entry, err := scanFileEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FileEntry{}, ErrNotFound
		}
		return domain.FileEntry{}, fmt.Errorf("failed to get file entry: %w", err)
	}

	return entry, nil
}

func (r *fileEntryRepository) MarkProcessed(ctx context.Context, id uuid.UUID, recordCount int64, processedAt time.Time) error {
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE file_entries
		 SET processed = TRUE, processed_at = $2, record_count = $3, error_log = NULL, updated_at = now()
		 WHERE id = $1`,
		id,
		processedAt,
		recordCount,
	)
	if err != nil {
		return fmt.Errorf("failed to mark file entry processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *fileEntryRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorLog string) error {
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE file_entries
		 SET processed = FALSE, error_log = $2, updated_at = now()
		 WHERE id = $1`,
		id,
		errorLog,
	)
	if err != nil {
		return fmt.Errorf("failed to mark file entry failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *fileEntryRepository) List(ctx context.Context, processed *bool, limit int, offset int) ([]domain.FileEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	var processedFilter any
	if processed != nil {
		processedFilter = *processed
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, filename, folder_path, upload_date, processed, processed_at, record_count, error_log, created_at, updated_at
		 FROM file_entries
		 WHERE ($1::boolean IS NULL OR processed = $1)
		 ORDER BY upload_date DESC
		 LIMIT $2 OFFSET $3`,
		processedFilter,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list file entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.FileEntry{}
	for rows.Next() {
		entry, scanErr := scanFileEntry(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan file entry: %w", scanErr)
		}
		entries = append(entries, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate file entries: %w", rowsErr)
	}

	return entries, nil
}

func scanFileEntry(row pgx.Row) (domain.FileEntry, error) {
	var (
		entry       domain.FileEntry
		processedAt pgtype.Timestamptz
		errorLog    pgtype.Text
	)
	if err := row.Scan(
		&entry.ID,
		&entry.Filename,
		&entry.FolderPath,
		&entry.UploadDate,
		&entry.Processed,
		&processedAt,
		&entry.RecordCount,
		&errorLog,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	); err != nil {
		return domain.FileEntry{}, err
	}

	if processedAt.Valid {
		value := processedAt.Time
		entry.ProcessedAt = &value
	}
	if errorLog.Valid {
		value := errorLog.String
		entry.ErrorLog = &value
	}

	return entry, nil
}
