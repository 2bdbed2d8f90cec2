package repository

import (
	"context"

	"gorm.io/gorm"

	"opencampus/backend/internal/model"
)

// ExamRoomFilter 考场列表过滤条件
type ExamRoomFilter struct {
	ActiveOnly bool
	CompanyID  string
}

// ExamRoomRepository 考场数据访问接口
type ExamRoomRepository interface {
	Create(ctx context.Context, room *model.ExamRoom) error
	GetByID(ctx context.Context, id string) (*model.ExamRoom, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.ExamRoom, error)
	List(ctx context.Context, filter ExamRoomFilter, offset, limit int) ([]model.ExamRoom, int64, error)
	Update(ctx context.Context, room *model.ExamRoom) error
}

type examRoomRepo struct {
	db *gorm.DB
}

// NewExamRoomRepo 创建 ExamRoomRepository 实例
func NewExamRoomRepo(db *gorm.DB) ExamRoomRepository {
	return &examRoomRepo{db: db}
}

func (r *examRoomRepo) Create(ctx context.Context, room *model.ExamRoom) error {
	return r.db.WithContext(ctx).Create(room).Error
}

func (r *examRoomRepo) GetByID(ctx context.Context, id string) (*model.ExamRoom, error) {
	var room model.ExamRoom
	err := r.db.WithContext(ctx).
		Preload("Classroom").
		Where("exam_room_id = ?", id).
		First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// ListByIDs 返回顺序不保证与 ids 一致，由调用方按需重排
func (r *examRoomRepo) ListByIDs(ctx context.Context, ids []string) ([]model.ExamRoom, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rooms []model.ExamRoom
	err := r.db.WithContext(ctx).
		Where("exam_room_id IN ?", ids).
		Find(&rooms).Error
	return rooms, err
}

func (r *examRoomRepo) List(ctx context.Context, filter ExamRoomFilter, offset, limit int) ([]model.ExamRoom, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.ExamRoom{})
	if filter.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	if filter.CompanyID != "" {
		q = q.Where("company_id = ?", filter.CompanyID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rooms []model.ExamRoom
	err := q.Order("name ASC").Offset(offset).Limit(limit).Find(&rooms).Error
	return rooms, total, err
}

func (r *examRoomRepo) Update(ctx context.Context, room *model.ExamRoom) error {
	return r.db.WithContext(ctx).
		Model(room).
		Where("exam_room_id = ?", room.RoomID).
		Updates(map[string]interface{}{
			"name":       room.Name,
			"capacity":   room.Capacity,
			"active":     room.Active,
			"updated_by": room.UpdatedBy,
		}).Error
}
