package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	LogStatusSuccess = "SUCCESS"
	LogStatusFailure = "FAILURE"
)

const (
	ActionFileImport              = "FILE_IMPORT"
	ActionFileImportFailure       = "FILE_IMPORT_FAILURE"
	ActionImportSchemaWarning     = "IMPORT_SCHEMA_WARNING"
	ActionDataView                = "DATA_VIEW"
	ActionDataDelete              = "DATA_DELETE"
	ActionDataDeleteFailure       = "DATA_DELETE_FAILURE"
	ActionDataRollback            = "DATA_ROLLBACK"
	ActionDataRollbackFailure     = "DATA_ROLLBACK_FAILURE"
	ActionTargetTableEnsure       = "TARGET_TABLE_ENSURE"
	ActionTargetTableEnsureFailed = "TARGET_TABLE_ENSURE_FAILURE"
	ActionTopicCreate             = "TOPIC_CREATE"
	ActionTopicDelete             = "TOPIC_DELETE"
	ActionTopicUpdate             = "TOPIC_UPDATE"
	ActionTopicRevalidateWarn     = "TOPIC_TARGET_TABLE_REVALIDATE_WARN"
	ActionPermissionGrant         = "PERMISSION_GRANT"
	ActionUserLogin               = "USER_LOGIN"
	ActionUserCreate              = "USER_CREATE"
)

type SystemLog struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       *uuid.UUID        `gorm:"type:uuid" json:"user_id,omitempty"`
	ActionType   string            `gorm:"type:text;not null" json:"action_type"`
	Details      datatypes.JSONMap `gorm:"type:jsonb" json:"details,omitempty"`
	IPAddress    *string           `gorm:"type:text" json:"ip_address,omitempty"`
	Status       string            `gorm:"type:text;not null" json:"status"`
	ErrorMessage *string           `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time         `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
}

func (SystemLog) TableName() string {
	return "system_logs"
}

func (l *SystemLog) Prepare() {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Status == "" {
		l.Status = LogStatusSuccess
	}
}

// SystemLogFilter selects audit entries. ActionType matches as a substring.
type SystemLogFilter struct {
	UserID     *uuid.UUID
	ActionType string
	Status     string
	StartDate  *time.Time
	EndDate    *time.Time
	SortDesc   bool
	Limit      int
	Offset     int
}
