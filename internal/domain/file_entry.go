package domain

import (
	"time"

	"github.com/google/uuid"
)

// FileEntry tracks the ingestion lifecycle of one file dropped into the
// watched directory. An entry is created once, at detection time, and
// mutated once more when the coordinator finalizes the run.
type FileEntry struct {
	ID          uuid.UUID  `json:"id"`
	Filename    string     `json:"filename"`
	FolderPath  string     `json:"folder_path"`
	UploadDate  time.Time  `json:"upload_date"`
	Processed   bool       `json:"processed"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	RecordCount int64      `json:"record_count"`
	ErrorLog    *string    `json:"error_log,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewFileEntry creates a lifecycle record for a newly detected file.
func NewFileEntry(filename, folderPath string) FileEntry {
	now := time.Now()
	return FileEntry{
		ID:         uuid.New(),
		Filename:   filename,
		FolderPath: folderPath,
		UploadDate: now,
		Processed:  false,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
