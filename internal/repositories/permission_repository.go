package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"topic_importer/internal/models"
)

type PermissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// Get returns nil when the user has no row for the topic.
func (r *PermissionRepository) Get(ctx context.Context, userID, topicID uuid.UUID) (*models.UserTopicPermission, error) {
	var perm models.UserTopicPermission
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND topic_id = ?", userID, topicID).
		First(&perm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &perm, nil
}

// Upsert replaces the capability flags of an existing row.
func (r *PermissionRepository) Upsert(ctx context.Context, perm *models.UserTopicPermission) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "topic_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"can_import", "can_view_data", "can_delete_data", "updated_at"}),
	}).Create(perm).Error
}

func (r *PermissionRepository) ListByTopic(ctx context.Context, topicID uuid.UUID) ([]models.UserTopicPermission, error) {
	perms := []models.UserTopicPermission{}
	err := r.db.WithContext(ctx).Where("topic_id = ?", topicID).Order("created_at").Find(&perms).Error
	return perms, err
}
