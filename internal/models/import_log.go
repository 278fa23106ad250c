package models

import (
	"time"

	"github.com/google/uuid"
)

type ImportStatus string

const (
	ImportPending            ImportStatus = "PENDING"
	ImportProcessing         ImportStatus = "PROCESSING"
	ImportCompleted          ImportStatus = "COMPLETED"
	ImportPartiallyCompleted ImportStatus = "PARTIALLY_COMPLETED"
	ImportFailed             ImportStatus = "FAILED"
	ImportCancelled          ImportStatus = "CANCELLED"
)

func (s ImportStatus) IsTerminal() bool {
	switch s {
	case ImportCompleted, ImportPartiallyCompleted, ImportFailed, ImportCancelled:
		return true
	}
	return false
}

func (s ImportStatus) Valid() bool {
	return s == ImportPending || s == ImportProcessing || s.IsTerminal()
}

// FinalImportStatus derives the terminal status from the batch counts.
func FinalImportStatus(success, failed int) ImportStatus {
	switch {
	case success == 0 && failed > 0:
		return ImportFailed
	case failed > 0:
		return ImportPartiallyCompleted
	default:
		return ImportCompleted
	}
}

type ImportLog struct {
	ID               uuid.UUID     `json:"id"`
	TopicID          uuid.UUID     `json:"topic_id"`
	TopicName        string        `json:"topic_name,omitempty"`
	UserID           uuid.UUID     `json:"user_id"`
	OriginalFileName string        `json:"original_file_name"`
	Status           ImportStatus  `json:"status"`
	TotalRows        int           `json:"total_rows"`
	SuccessfulRows   int           `json:"successful_rows"`
	FailedRows       int           `json:"failed_rows"`
	ErrorDetails     *ErrorDetails `json:"error_details,omitempty"`
	StartedAt        time.Time     `json:"started_at"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
}

func (l *ImportLog) Prepare() {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Status == "" {
		l.Status = ImportPending
	}
	if l.StartedAt.IsZero() {
		l.StartedAt = time.Now()
	}
}

// ImportLogUpdate moves a log out of FromStatus. The update only applies while
// the stored status still equals FromStatus.
type ImportLogUpdate struct {
	ID             uuid.UUID
	FromStatus     ImportStatus
	Status         ImportStatus
	TotalRows      *int
	SuccessfulRows *int
	FailedRows     *int
	ErrorDetails   *ErrorDetails
}

type ImportLogFilter struct {
	// UserID restricts the listing to one user. uuid.Nil lists everyone's.
	UserID    uuid.UUID
	TopicID   *uuid.UUID
	Status    *ImportStatus
	StartDate *time.Time
	EndDate   *time.Time
	SortDesc  bool
	Limit     int
	Offset    int
}

type FailedImportRow struct {
	ID              uuid.UUID      `json:"id"`
	ImportLogID     uuid.UUID      `json:"import_log_id"`
	RowNumberInFile int            `json:"row_number_in_file"`
	RowData         map[string]any `json:"row_data"`
	ErrorMessage    string         `json:"error_message"`
	CreatedAt       time.Time      `json:"created_at"`
}
