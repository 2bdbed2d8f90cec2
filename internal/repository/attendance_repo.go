package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"opencampus/backend/internal/model"
	pkgerrors "opencampus/backend/pkg/errors"
)

// ── 考勤登记簿 ──

// AttendanceRegisterFilter 登记簿列表过滤条件
type AttendanceRegisterFilter struct {
	CourseID  string
	BatchID   string
	CompanyID string
}

// AttendanceRegisterRepository 考勤登记簿数据访问接口
type AttendanceRegisterRepository interface {
	Create(ctx context.Context, register *model.AttendanceRegister) error
	GetByID(ctx context.Context, id string) (*model.AttendanceRegister, error)
	List(ctx context.Context, filter AttendanceRegisterFilter, offset, limit int) ([]model.AttendanceRegister, int64, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	// ExistsByScope (course, batch, subject) 是否已有登记簿；subjectID 为 nil 表示不区分科目
	ExistsByScope(ctx context.Context, courseID, batchID string, subjectID *string, excludeID string) (bool, error)
}

// ── 考勤表 ──

// AttendanceSheetFilter 考勤表列表过滤条件
type AttendanceSheetFilter struct {
	RegisterID string
	State      string
	DateFrom   *time.Time
	DateTo     *time.Time
	CompanyID  string
}

// AttendanceSheetRepository 考勤表数据访问接口
type AttendanceSheetRepository interface {
	Create(ctx context.Context, sheet *model.AttendanceSheet) error
	GetByID(ctx context.Context, id string) (*model.AttendanceSheet, error)
	// GetForUpdate 行级锁读取（SELECT ... FOR UPDATE），仅在事务内有意义
	GetForUpdate(ctx context.Context, id string) (*model.AttendanceSheet, error)
	List(ctx context.Context, filter AttendanceSheetFilter, offset, limit int) ([]model.AttendanceSheet, int64, error)
	Update(ctx context.Context, sheet *model.AttendanceSheet) error
	// FindByRegisterAndDate 登记簿在某日的第一张考勤表，不存在返回 gorm.ErrRecordNotFound
	FindByRegisterAndDate(ctx context.Context, registerID string, date time.Time) (*model.AttendanceSheet, error)
	// ExistsDuplicate (register, session, date) 是否已存在考勤表
	ExistsDuplicate(ctx context.Context, registerID string, sessionID *string, date time.Time, excludeID string) (bool, error)
	CountByRegister(ctx context.Context, registerID string) (int64, error)
}

// ── 考勤明细 ──

// AttendanceLineRepository 考勤明细数据访问接口
type AttendanceLineRepository interface {
	BatchCreate(ctx context.Context, lines []model.AttendanceLine) error
	GetByID(ctx context.Context, id string) (*model.AttendanceLine, error)
	Update(ctx context.Context, line *model.AttendanceLine) error
	ListBySheet(ctx context.Context, sheetID string) ([]model.AttendanceLine, error)
	StudentIDsBySheet(ctx context.Context, sheetID string) ([]string, error)
	CountBySheet(ctx context.Context, sheetID string) (int64, error)
}

// ── AttendanceRegister Repository 实现 ──

type attendanceRegisterRepo struct {
	db *gorm.DB
}

// NewAttendanceRegisterRepo 创建 AttendanceRegisterRepository 实例
func NewAttendanceRegisterRepo(db *gorm.DB) AttendanceRegisterRepository {
	return &attendanceRegisterRepo{db: db}
}

func (r *attendanceRegisterRepo) Create(ctx context.Context, register *model.AttendanceRegister) error {
	return r.db.WithContext(ctx).Create(register).Error
}

func (r *attendanceRegisterRepo) GetByID(ctx context.Context, id string) (*model.AttendanceRegister, error) {
	var register model.AttendanceRegister
	err := r.db.WithContext(ctx).
		Where("attendance_register_id = ?", id).
		First(&register).Error
	if err != nil {
		return nil, err
	}
	return &register, nil
}

func (r *attendanceRegisterRepo) List(ctx context.Context, filter AttendanceRegisterFilter, offset, limit int) ([]model.AttendanceRegister, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.AttendanceRegister{})
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

	var registers []model.AttendanceRegister
	err := q.Order("code ASC").Offset(offset).Limit(limit).Find(&registers).Error
	return registers, total, err
}

func (r *attendanceRegisterRepo) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	q := r.db.WithContext(ctx).Model(&model.AttendanceRegister{}).Where("code = ?", code)
	if excludeID != "" {
		q = q.Where("attendance_register_id <> ?", excludeID)
	}
	var count int64
	err := q.Count(&count).Error
	return count > 0, err
}

func (r *attendanceRegisterRepo) ExistsByScope(ctx context.Context, courseID, batchID string, subjectID *string, excludeID string) (bool, error) {
	q := r.db.WithContext(ctx).Model(&model.AttendanceRegister{}).
		Where("course_id = ? AND batch_id = ?", courseID, batchID)
	if subjectID != nil {
		q = q.Where("subject_id = ?", *subjectID)
	} else {
		q = q.Where("subject_id IS NULL")
	}
	if excludeID != "" {
		q = q.Where("attendance_register_id <> ?", excludeID)
	}
	var count int64
	err := q.Count(&count).Error
	return count > 0, err
}

// ── AttendanceSheet Repository 实现 ──

type attendanceSheetRepo struct {
	db *gorm.DB
}

// NewAttendanceSheetRepo 创建 AttendanceSheetRepository 实例
func NewAttendanceSheetRepo(db *gorm.DB) AttendanceSheetRepository {
	return &attendanceSheetRepo{db: db}
}

func (r *attendanceSheetRepo) Create(ctx context.Context, sheet *model.AttendanceSheet) error {
	return r.db.WithContext(ctx).Create(sheet).Error
}

func (r *attendanceSheetRepo) GetByID(ctx context.Context, id string) (*model.AttendanceSheet, error) {
	var sheet model.AttendanceSheet
	err := r.db.WithContext(ctx).
		Preload("Register").
		Where("attendance_sheet_id = ?", id).
		First(&sheet).Error
	if err != nil {
		return nil, err
	}
	return &sheet, nil
}

func (r *attendanceSheetRepo) GetForUpdate(ctx context.Context, id string) (*model.AttendanceSheet, error) {
	var sheet model.AttendanceSheet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("attendance_sheet_id = ?", id).
		First(&sheet).Error
	if err != nil {
		return nil, err
	}
	return &sheet, nil
}

func (r *attendanceSheetRepo) List(ctx context.Context, filter AttendanceSheetFilter, offset, limit int) ([]model.AttendanceSheet, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.AttendanceSheet{})
	if filter.RegisterID != "" {
		q = q.Where("attendance_register_id = ?", filter.RegisterID)
	}
	if filter.State != "" {
		q = q.Where("state = ?", filter.State)
	}
	if filter.DateFrom != nil {
		q = q.Where("attendance_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		q = q.Where("attendance_date <= ?", *filter.DateTo)
	}
	if filter.CompanyID != "" {
		q = q.Where("company_id = ?", filter.CompanyID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sheets []model.AttendanceSheet
	err := q.Order("attendance_date DESC, name DESC").Offset(offset).Limit(limit).Find(&sheets).Error
	return sheets, total, err
}

func (r *attendanceSheetRepo) Update(ctx context.Context, sheet *model.AttendanceSheet) error {
	oldVersion := sheet.Version
	result := r.db.WithContext(ctx).
		Model(sheet).
		Where("attendance_sheet_id = ? AND version = ?", sheet.SheetID, oldVersion).
		Updates(map[string]interface{}{
			"faculty_id": sheet.FacultyID,
			"state":      sheet.State,
			"updated_by": sheet.UpdatedBy,
			"version":    oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	sheet.Version = oldVersion + 1
	return nil
}

func (r *attendanceSheetRepo) FindByRegisterAndDate(ctx context.Context, registerID string, date time.Time) (*model.AttendanceSheet, error) {
	var sheet model.AttendanceSheet
	err := r.db.WithContext(ctx).
		Where("attendance_register_id = ? AND attendance_date = ?", registerID, date.Format("2006-01-02")).
		Order("created_at ASC").
		First(&sheet).Error
	if err != nil {
		return nil, err
	}
	return &sheet, nil
}

func (r *attendanceSheetRepo) ExistsDuplicate(ctx context.Context, registerID string, sessionID *string, date time.Time, excludeID string) (bool, error) {
	q := r.db.WithContext(ctx).Model(&model.AttendanceSheet{}).
		Where("attendance_register_id = ? AND attendance_date = ?", registerID, date.Format("2006-01-02"))
	if sessionID != nil {
		q = q.Where("session_id = ?", *sessionID)
	} else {
		q = q.Where("session_id IS NULL")
	}
	if excludeID != "" {
		q = q.Where("attendance_sheet_id <> ?", excludeID)
	}
	var count int64
	err := q.Count(&count).Error
	return count > 0, err
}

func (r *attendanceSheetRepo) CountByRegister(ctx context.Context, registerID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.AttendanceSheet{}).
		Where("attendance_register_id = ?", registerID).
		Count(&count).Error
	return count, err
}

// ── AttendanceLine Repository 实现 ──

type attendanceLineRepo struct {
	db *gorm.DB
}

// NewAttendanceLineRepo 创建 AttendanceLineRepository 实例
func NewAttendanceLineRepo(db *gorm.DB) AttendanceLineRepository {
	return &attendanceLineRepo{db: db}
}

func (r *attendanceLineRepo) BatchCreate(ctx context.Context, lines []model.AttendanceLine) error {
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&lines, 200).Error
}

func (r *attendanceLineRepo) GetByID(ctx context.Context, id string) (*model.AttendanceLine, error) {
	var line model.AttendanceLine
	err := r.db.WithContext(ctx).
		Where("attendance_line_id = ?", id).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *attendanceLineRepo) Update(ctx context.Context, line *model.AttendanceLine) error {
	return r.db.WithContext(ctx).
		Model(line).
		Where("attendance_line_id = ?", line.LineID).
		Updates(map[string]interface{}{
			"status":     line.Status,
			"remark":     line.Remark,
			"updated_by": line.UpdatedBy,
		}).Error
}

func (r *attendanceLineRepo) ListBySheet(ctx context.Context, sheetID string) ([]model.AttendanceLine, error) {
	var lines []model.AttendanceLine
	err := r.db.WithContext(ctx).
		Preload("Student").Preload("Student.Partner").
		Where("attendance_sheet_id = ?", sheetID).
		Order("created_at ASC, attendance_line_id ASC").
		Find(&lines).Error
	return lines, err
}

func (r *attendanceLineRepo) StudentIDsBySheet(ctx context.Context, sheetID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.AttendanceLine{}).
		Where("attendance_sheet_id = ?", sheetID).
		Pluck("student_id", &ids).Error
	return ids, err
}

func (r *attendanceLineRepo) CountBySheet(ctx context.Context, sheetID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.AttendanceLine{}).
		Where("attendance_sheet_id = ?", sheetID).
		Count(&count).Error
	return count, err
}
