package models

import (
	"time"

	"github.com/google/uuid"
)

// DeletionLog is an append-only record of one deleted target row. IsRolledBack
// only ever moves from false to true.
type DeletionLog struct {
	ID                    uuid.UUID   `json:"id"`
	TopicID               uuid.UUID   `json:"topic_id"`
	UserID                uuid.UUID   `json:"user_id"`
	TargetTableName       string      `json:"target_table_name"`
	RecordPrimaryKeyValue string      `json:"record_primary_key_value"`
	DeletedRecordData     RowSnapshot `json:"deleted_record_data"`
	DeletionBatchID       uuid.UUID   `json:"deletion_batch_id"`
	DeletedAt             time.Time   `json:"deleted_at"`
	IsRolledBack          bool        `json:"is_rolled_back"`
	RolledBackAt          *time.Time  `json:"rolled_back_at,omitempty"`
	RolledBackByID        *uuid.UUID  `json:"rolled_back_by_id,omitempty"`
}

func (l *DeletionLog) Prepare() {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.DeletedAt.IsZero() {
		l.DeletedAt = time.Now()
	}
}

// RollbackSelector picks deletion logs either by id or by batch.
type RollbackSelector struct {
	DeletionLogIDs  []uuid.UUID
	DeletionBatchID *uuid.UUID
}

func (s RollbackSelector) Empty() bool {
	return len(s.DeletionLogIDs) == 0 && s.DeletionBatchID == nil
}

type DeletionLogFilter struct {
	TopicID      uuid.UUID
	IsRolledBack *bool
	SortDesc     bool
	Limit        int
	Offset       int
}
