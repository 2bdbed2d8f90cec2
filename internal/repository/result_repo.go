package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"opencampus/backend/internal/model"
	pkgerrors "opencampus/backend/pkg/errors"
)

// ── 等级配置 ──

// GradeConfigurationRepository 等级配置数据访问接口
type GradeConfigurationRepository interface {
	Create(ctx context.Context, grade *model.GradeConfiguration) error
	List(ctx context.Context, companyID string, offset, limit int) ([]model.GradeConfiguration, int64, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.GradeConfiguration, error)
}

type gradeConfigurationRepo struct {
	db *gorm.DB
}

// NewGradeConfigurationRepo 创建 GradeConfigurationRepository 实例
func NewGradeConfigurationRepo(db *gorm.DB) GradeConfigurationRepository {
	return &gradeConfigurationRepo{db: db}
}

func (r *gradeConfigurationRepo) Create(ctx context.Context, grade *model.GradeConfiguration) error {
	return r.db.WithContext(ctx).Create(grade).Error
}

func (r *gradeConfigurationRepo) List(ctx context.Context, companyID string, offset, limit int) ([]model.GradeConfiguration, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.GradeConfiguration{})
	if companyID != "" {
		q = q.Where("company_id = ?", companyID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var grades []model.GradeConfiguration
	err := q.Order("min_per DESC").Offset(offset).Limit(limit).Find(&grades).Error
	return grades, total, err
}

func (r *gradeConfigurationRepo) ListByIDs(ctx context.Context, ids []string) ([]model.GradeConfiguration, error) {
	var grades []model.GradeConfiguration
	if len(ids) == 0 {
		return grades, nil
	}
	err := r.db.WithContext(ctx).
		Where("grade_configuration_id IN ?", ids).
		Order("min_per DESC").
		Find(&grades).Error
	return grades, err
}

// ── 成绩模板 ──

// ResultTemplateFilter 成绩模板列表过滤条件
type ResultTemplateFilter struct {
	SessionID string
	State     string
	CompanyID string
}

// ResultTemplateRepository 成绩模板数据访问接口
type ResultTemplateRepository interface {
	// Create 同时写入模板与等级配置的关联
	Create(ctx context.Context, template *model.ResultTemplate) error
	// GetByID 预加载等级配置
	GetByID(ctx context.Context, id string) (*model.ResultTemplate, error)
	// GetForUpdate 行级锁读取（SELECT ... FOR UPDATE），不加载关联，仅在事务内有意义
	GetForUpdate(ctx context.Context, id string) (*model.ResultTemplate, error)
	List(ctx context.Context, filter ResultTemplateFilter, offset, limit int) ([]model.ResultTemplate, int64, error)
	ListGrades(ctx context.Context, templateID string) ([]model.GradeConfiguration, error)
	UpdateState(ctx context.Context, template *model.ResultTemplate) error
}

type resultTemplateRepo struct {
	db *gorm.DB
}

// NewResultTemplateRepo 创建 ResultTemplateRepository 实例
func NewResultTemplateRepo(db *gorm.DB) ResultTemplateRepository {
	return &resultTemplateRepo{db: db}
}

func (r *resultTemplateRepo) Create(ctx context.Context, template *model.ResultTemplate) error {
	// 等级配置已存在，只写关联表
	return r.db.WithContext(ctx).
		Omit("Grades.*").
		Create(template).Error
}

func (r *resultTemplateRepo) GetByID(ctx context.Context, id string) (*model.ResultTemplate, error) {
	var template model.ResultTemplate
	err := r.db.WithContext(ctx).
		Preload("Grades", func(db *gorm.DB) *gorm.DB { return db.Order("min_per DESC") }).
		Where("result_template_id = ?", id).
		First(&template).Error
	if err != nil {
		return nil, err
	}
	return &template, nil
}

func (r *resultTemplateRepo) GetForUpdate(ctx context.Context, id string) (*model.ResultTemplate, error) {
	var template model.ResultTemplate
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("result_template_id = ?", id).
		First(&template).Error
	if err != nil {
		return nil, err
	}
	return &template, nil
}

func (r *resultTemplateRepo) List(ctx context.Context, filter ResultTemplateFilter, offset, limit int) ([]model.ResultTemplate, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.ResultTemplate{})
	if filter.SessionID != "" {
		q = q.Where("exam_session_id = ?", filter.SessionID)
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

	var templates []model.ResultTemplate
	err := q.Preload("Grades").
		Order("result_date DESC, created_at DESC").
		Offset(offset).Limit(limit).
		Find(&templates).Error
	return templates, total, err
}

func (r *resultTemplateRepo) ListGrades(ctx context.Context, templateID string) ([]model.GradeConfiguration, error) {
	var grades []model.GradeConfiguration
	err := r.db.WithContext(ctx).
		Joins("JOIN result_template_grades rtg ON rtg.grade_configuration_id = grade_configurations.grade_configuration_id").
		Where("rtg.result_template_id = ?", templateID).
		Order("min_per DESC").
		Find(&grades).Error
	return grades, err
}

func (r *resultTemplateRepo) UpdateState(ctx context.Context, template *model.ResultTemplate) error {
	oldVersion := template.Version
	result := r.db.WithContext(ctx).
		Model(&model.ResultTemplate{}).
		Where("result_template_id = ? AND version = ?", template.TemplateID, oldVersion).
		Updates(map[string]interface{}{
			"state":      template.State,
			"updated_by": template.UpdatedBy,
			"version":    oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	template.Version = oldVersion + 1
	return nil
}

// ── 成绩单 ──

// MarksheetRepository 成绩单数据访问接口
type MarksheetRepository interface {
	// Create 级联写入成绩单明细与单科成绩
	Create(ctx context.Context, register *model.MarksheetRegister) error
	// GetByID 预加载明细、单科成绩与学生姓名
	GetByID(ctx context.Context, id string) (*model.MarksheetRegister, error)
}

type marksheetRepo struct {
	db *gorm.DB
}

// NewMarksheetRepo 创建 MarksheetRepository 实例
func NewMarksheetRepo(db *gorm.DB) MarksheetRepository {
	return &marksheetRepo{db: db}
}

func (r *marksheetRepo) Create(ctx context.Context, register *model.MarksheetRegister) error {
	return r.db.WithContext(ctx).Create(register).Error
}

func (r *marksheetRepo) GetByID(ctx context.Context, id string) (*model.MarksheetRegister, error) {
	var register model.MarksheetRegister
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("percentage DESC, student_id") }).
		Preload("Lines.Results").
		Preload("Lines.Student.Partner").
		Where("marksheet_register_id = ?", id).
		First(&register).Error
	if err != nil {
		return nil, err
	}
	return &register, nil
}
