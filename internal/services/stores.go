// Package services holds the request-level flows: permission checks, topic
// administration, imports, data access, deletion and rollback. Services depend
// on the small interfaces below so the flows can be exercised with in-memory
// ledgers and a file-backed sqlite target.
package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"topic_importer/internal/models"
	"topic_importer/internal/target"
)

type TopicStore interface {
	Create(ctx context.Context, topic *models.Topic, mappings []models.ColumnMapping) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Topic, error)
	GetMappings(ctx context.Context, topicID uuid.UUID) ([]models.ColumnMapping, error)
	List(ctx context.Context) ([]models.Topic, error)
	ListAvailable(ctx context.Context, userID uuid.UUID) ([]models.Topic, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	// Update keeps the stored mappings when mappings is nil.
	Update(ctx context.Context, topic *models.Topic, mappings []models.ColumnMapping) (bool, error)
}

type ImportLogStore interface {
	Create(ctx context.Context, log *models.ImportLog) error
	Update(ctx context.Context, u models.ImportLogUpdate) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ImportLog, error)
	List(ctx context.Context, f models.ImportLogFilter) ([]models.ImportLog, int64, error)
}

type FailedRowStore interface {
	InsertMany(ctx context.Context, importLogID uuid.UUID, failures []models.RowFailure) (int64, error)
	ListByImportLog(ctx context.Context, importLogID uuid.UUID, limit int) ([]models.FailedImportRow, error)
}

type DeletionLogStore interface {
	CreateMany(ctx context.Context, logs []models.DeletionLog) error
	FindEligible(ctx context.Context, topicID uuid.UUID, sel models.RollbackSelector) ([]models.DeletionLog, error)
	MarkRolledBack(ctx context.Context, ids []uuid.UUID, userID uuid.UUID) ([]uuid.UUID, error)
	ListByTopic(ctx context.Context, f models.DeletionLogFilter) ([]models.DeletionLog, error)
}

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	CountUsers(ctx context.Context) (int64, error)
}

type PermissionStore interface {
	Get(ctx context.Context, userID, topicID uuid.UUID) (*models.UserTopicPermission, error)
	Upsert(ctx context.Context, perm *models.UserTopicPermission) error
	ListByTopic(ctx context.Context, topicID uuid.UUID) ([]models.UserTopicPermission, error)
}

type SystemLogStore interface {
	Create(ctx context.Context, entry *models.SystemLog) error
	List(ctx context.Context, f models.SystemLogFilter) ([]models.SystemLog, int64, error)
}

// TargetEngine is the part of *target.Engine the services use.
type TargetEngine interface {
	EnsureTableExists(ctx context.Context, desc models.TargetDescriptor, mappings []models.ColumnMapping) error
	InsertBatch(ctx context.Context, desc models.TargetDescriptor, rows []models.SourceRow, mappings []models.ColumnMapping) (*target.BatchResult, error)
	Query(ctx context.Context, desc models.TargetDescriptor, mappings []models.ColumnMapping, opts target.QueryOptions) (*target.QueryResult, error)
	FetchByPK(ctx context.Context, desc models.TargetDescriptor, mappings []models.ColumnMapping, pkColumn string, values []any) (map[string]models.RowSnapshot, error)
	DeleteByPK(ctx context.Context, desc models.TargetDescriptor, mappings []models.ColumnMapping, pkColumn string, values []any) (*target.DeleteResult, error)
}

var _ TargetEngine = (*target.Engine)(nil)
