package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"opencampus/backend/internal/model"
	pkgerrors "opencampus/backend/pkg/errors"
)

// ExamFilter 考试列表过滤条件
type ExamFilter struct {
	SessionID string
	SubjectID string
	State     string
	CompanyID string
}

// ExamRepository 考试数据访问接口
type ExamRepository interface {
	Create(ctx context.Context, exam *model.Exam) error
	GetByID(ctx context.Context, id string) (*model.Exam, error)
	// GetForUpdate 行级锁读取（SELECT ... FOR UPDATE），仅在事务内有意义
	GetForUpdate(ctx context.Context, id string) (*model.Exam, error)
	List(ctx context.Context, filter ExamFilter, offset, limit int) ([]model.Exam, int64, error)
	ListBySession(ctx context.Context, sessionID string) ([]model.Exam, error)
	Update(ctx context.Context, exam *model.Exam) error
	Archive(ctx context.Context, id string, deletedBy string) error
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	// ListOverlappingBySubject 同科目、时间重叠、状态不在 excludeStates 内的考试
	ListOverlappingBySubject(ctx context.Context, subjectID string, interval model.TimeInterval, excludeID string, excludeStates []string) ([]model.Exam, error)
}

type examRepo struct {
	db *gorm.DB
}

// NewExamRepo 创建 ExamRepository 实例
func NewExamRepo(db *gorm.DB) ExamRepository {
	return &examRepo{db: db}
}

func (r *examRepo) Create(ctx context.Context, exam *model.Exam) error {
	return r.db.WithContext(ctx).Create(exam).Error
}

func (r *examRepo) GetByID(ctx context.Context, id string) (*model.Exam, error) {
	var exam model.Exam
	err := r.db.WithContext(ctx).
		Preload("Session").
		Where("exam_id = ?", id).
		First(&exam).Error
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

func (r *examRepo) GetForUpdate(ctx context.Context, id string) (*model.Exam, error) {
	var exam model.Exam
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("exam_id = ?", id).
		First(&exam).Error
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

func (r *examRepo) List(ctx context.Context, filter ExamFilter, offset, limit int) ([]model.Exam, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Exam{})
	if filter.SessionID != "" {
		q = q.Where("exam_session_id = ?", filter.SessionID)
	}
	if filter.SubjectID != "" {
		q = q.Where("subject_id = ?", filter.SubjectID)
	}
	if filter.State != "" {
		q = q.Where("state = ?", filter.State)
	}
	if filter.CompanyID != "" {
		q = q.Where("company_id = ?", filter.CompanyID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var exams []model.Exam
	err := q.Order("start_time ASC NULLS LAST, created_at ASC").
		Offset(offset).Limit(limit).
		Find(&exams).Error
	return exams, total, err
}

func (r *examRepo) ListBySession(ctx context.Context, sessionID string) ([]model.Exam, error) {
	var exams []model.Exam
	err := r.db.WithContext(ctx).
		Where("exam_session_id = ?", sessionID).
		Order("start_time ASC NULLS LAST").
		Find(&exams).Error
	return exams, err
}

func (r *examRepo) Update(ctx context.Context, exam *model.Exam) error {
	oldVersion := exam.Version
	result := r.db.WithContext(ctx).
		Model(exam).
		Where("exam_id = ? AND version = ?", exam.ExamID, oldVersion).
		Updates(map[string]interface{}{
			"subject_id":  exam.SubjectID,
			"exam_code":   exam.ExamCode,
			"name":        exam.Name,
			"start_time":  exam.StartTime,
			"end_time":    exam.EndTime,
			"total_marks": exam.TotalMarks,
			"min_marks":   exam.MinMarks,
			"state":       exam.State,
			"note":        exam.Note,
			"updated_by":  exam.UpdatedBy,
			"version":     oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	exam.Version = oldVersion + 1
	return nil
}

func (r *examRepo) Archive(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.Exam{}).
		Where("exam_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}

func (r *examRepo) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	q := r.db.WithContext(ctx).Model(&model.Exam{}).Where("exam_code = ?", code)
	if excludeID != "" {
		q = q.Where("exam_id <> ?", excludeID)
	}
	var count int64
	err := q.Count(&count).Error
	return count > 0, err
}

func (r *examRepo) ListOverlappingBySubject(ctx context.Context, subjectID string, interval model.TimeInterval, excludeID string, excludeStates []string) ([]model.Exam, error) {
	q := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Where("start_time < ? AND end_time > ?", interval.End, interval.Start)
	if excludeID != "" {
		q = q.Where("exam_id <> ?", excludeID)
	}
	if len(excludeStates) > 0 {
		q = q.Where("state NOT IN ?", excludeStates)
	}
	var exams []model.Exam
	err := q.Find(&exams).Error
	return exams, err
}
