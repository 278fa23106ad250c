package repositories

import (
	"context"

	"gorm.io/gorm"

	"topic_importer/internal/models"
)

type SystemLogRepository struct {
	db *gorm.DB
}

func NewSystemLogRepository(db *gorm.DB) *SystemLogRepository {
	return &SystemLogRepository{db: db}
}

func (r *SystemLogRepository) Create(ctx context.Context, entry *models.SystemLog) error {
	entry.Prepare()
	return r.db.WithContext(ctx).Create(entry).Error
}

// List returns one page of audit entries and the total matching count.
func (r *SystemLogRepository) List(ctx context.Context, f models.SystemLogFilter) ([]models.SystemLog, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.SystemLog{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.ActionType != "" {
		q = q.Where("action_type LIKE ?", "%"+f.ActionType+"%")
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.StartDate != nil {
		q = q.Where("created_at >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		q = q.Where("created_at <= ?", *f.EndDate)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at ASC"
	if f.SortDesc {
		order = "created_at DESC"
	}
	logs := []models.SystemLog{}
	err := q.Order(order).Limit(f.Limit).Offset(f.Offset).Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
