package repository

import (
	"context"

	"gorm.io/gorm"

	"opencampus/backend/internal/model"
)

// AcademicRepository 教务基础数据只读接口（课程、班级、科目、教室、学生、花名册）
type AcademicRepository interface {
	GetCourse(ctx context.Context, id string) (*model.Course, error)
	GetBatch(ctx context.Context, id string) (*model.Batch, error)
	GetSubject(ctx context.Context, id string) (*model.Subject, error)
	GetClassroom(ctx context.Context, id string) (*model.Classroom, error)
	GetExamType(ctx context.Context, id string) (*model.ExamType, error)
	ListStudentsByIDs(ctx context.Context, ids []string) ([]model.Student, error)
	// ListActiveStudentIDs 花名册：课程+班级下在读且启用的学生，按学生 ID 排序
	ListActiveStudentIDs(ctx context.Context, courseID, batchID string) ([]string, error)
}

type academicRepo struct {
	db *gorm.DB
}

// NewAcademicRepo 创建 AcademicRepository 实例
func NewAcademicRepo(db *gorm.DB) AcademicRepository {
	return &academicRepo{db: db}
}

func (r *academicRepo) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	var course model.Course
	if err := r.db.WithContext(ctx).Where("course_id = ?", id).First(&course).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *academicRepo) GetBatch(ctx context.Context, id string) (*model.Batch, error) {
	var batch model.Batch
	if err := r.db.WithContext(ctx).Where("batch_id = ?", id).First(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *academicRepo) GetSubject(ctx context.Context, id string) (*model.Subject, error) {
	var subject model.Subject
	if err := r.db.WithContext(ctx).Where("subject_id = ?", id).First(&subject).Error; err != nil {
		return nil, err
	}
	return &subject, nil
}

func (r *academicRepo) GetClassroom(ctx context.Context, id string) (*model.Classroom, error) {
	var classroom model.Classroom
	if err := r.db.WithContext(ctx).Where("classroom_id = ?", id).First(&classroom).Error; err != nil {
		return nil, err
	}
	return &classroom, nil
}

func (r *academicRepo) GetExamType(ctx context.Context, id string) (*model.ExamType, error) {
	var examType model.ExamType
	if err := r.db.WithContext(ctx).Where("exam_type_id = ?", id).First(&examType).Error; err != nil {
		return nil, err
	}
	return &examType, nil
}

func (r *academicRepo) ListStudentsByIDs(ctx context.Context, ids []string) ([]model.Student, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var students []model.Student
	err := r.db.WithContext(ctx).
		Preload("Partner").
		Where("student_id IN ?", ids).
		Find(&students).Error
	return students, err
}

func (r *academicRepo) ListActiveStudentIDs(ctx context.Context, courseID, batchID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Table("student_courses AS sc").
		Joins("JOIN students s ON s.student_id = sc.student_id").
		Where("sc.course_id = ? AND sc.batch_id = ?", courseID, batchID).
		Where("sc.state = ? AND s.active = ?", "running", true).
		Order("sc.student_id ASC").
		Distinct().
		Pluck("sc.student_id", &ids).Error
	return ids, err
}
