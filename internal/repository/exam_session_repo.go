package repository

import (
	"context"

	"gorm.io/gorm"

	"opencampus/backend/internal/model"
	pkgerrors "opencampus/backend/pkg/errors"
)

// ExamSessionFilter 考试场次列表过滤条件
type ExamSessionFilter struct {
	State     string
	CourseID  string
	BatchID   string
	CompanyID string
}

// ExamSessionRepository 考试场次数据访问接口
type ExamSessionRepository interface {
	Create(ctx context.Context, session *model.ExamSession) error
	GetByID(ctx context.Context, id string) (*model.ExamSession, error)
	List(ctx context.Context, filter ExamSessionFilter, offset, limit int) ([]model.ExamSession, int64, error)
	Update(ctx context.Context, session *model.ExamSession) error
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
}

type examSessionRepo struct {
	db *gorm.DB
}

// NewExamSessionRepo 创建 ExamSessionRepository 实例
func NewExamSessionRepo(db *gorm.DB) ExamSessionRepository {
	return &examSessionRepo{db: db}
}

func (r *examSessionRepo) Create(ctx context.Context, session *model.ExamSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *examSessionRepo) GetByID(ctx context.Context, id string) (*model.ExamSession, error) {
	var session model.ExamSession
	err := r.db.WithContext(ctx).
		Where("exam_session_id = ?", id).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *examSessionRepo) List(ctx context.Context, filter ExamSessionFilter, offset, limit int) ([]model.ExamSession, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.ExamSession{})
	if filter.State != "" {
		q = q.Where("state = ?", filter.State)
	}
	if filter.CourseID != "" {
		q = q.Where("course_id = ?", filter.CourseID)
	}
	if filter.BatchID != "" {
		q = q.Where("batch_id = ?", filter.BatchID)
	}
	if filter.CompanyID != "" {
		q = q.Where("company_id = ?", filter.CompanyID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sessions []model.ExamSession
	err := q.Order("start_date DESC, created_at DESC").
		Offset(offset).Limit(limit).
		Find(&sessions).Error
	return sessions, total, err
}

func (r *examSessionRepo) Update(ctx context.Context, session *model.ExamSession) error {
	oldVersion := session.Version
	result := r.db.WithContext(ctx).
		Model(session).
		Where("exam_session_id = ? AND version = ?", session.SessionID, oldVersion).
		Updates(map[string]interface{}{
			"name":            session.Name,
			"exam_code":       session.ExamCode,
			"course_id":       session.CourseID,
			"batch_id":        session.BatchID,
			"exam_type_id":    session.ExamTypeID,
			"evaluation_type": session.EvaluationType,
			"start_date":      session.StartDate,
			"end_date":        session.EndDate,
			"venue":           session.Venue,
			"state":           session.State,
			"updated_by":      session.UpdatedBy,
			"version":         oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	session.Version = oldVersion + 1
	return nil
}

func (r *examSessionRepo) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	q := r.db.WithContext(ctx).Model(&model.ExamSession{}).Where("exam_code = ?", code)
	if excludeID != "" {
		q = q.Where("exam_session_id <> ?", excludeID)
	}
	var count int64
	err := q.Count(&count).Error
	return count > 0, err
}
