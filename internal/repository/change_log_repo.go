package repository

import (
	"context"

	"gorm.io/gorm"

	"opencampus/backend/internal/model"
)

// ChangeLogRepository 状态变更日志数据访问接口（仅追加）
type ChangeLogRepository interface {
	Create(ctx context.Context, log *model.ChangeLog) error
	ListByEntity(ctx context.Context, entityType, entityID string, offset, limit int) ([]model.ChangeLog, int64, error)
}

type changeLogRepo struct {
	db *gorm.DB
}

// NewChangeLogRepo 创建 ChangeLogRepository 实例
func NewChangeLogRepo(db *gorm.DB) ChangeLogRepository {
	return &changeLogRepo{db: db}
}

func (r *changeLogRepo) Create(ctx context.Context, log *model.ChangeLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *changeLogRepo) ListByEntity(ctx context.Context, entityType, entityID string, offset, limit int) ([]model.ChangeLog, int64, error) {
	q := r.db.WithContext(ctx).
		Model(&model.ChangeLog{}).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []model.ChangeLog
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&logs).Error
	return logs, total, err
}
