package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	Academic           AcademicRepository
	ExamSession        ExamSessionRepository
	Exam               ExamRepository
	ExamAttendee       ExamAttendeeRepository
	ExamRoom           ExamRoomRepository
	AttendanceRegister AttendanceRegisterRepository
	AttendanceSheet    AttendanceSheetRepository
	AttendanceLine     AttendanceLineRepository
	Sequence           SequenceRepository
	ChangeLog          ChangeLogRepository
	GradeConfiguration GradeConfigurationRepository
	ResultTemplate     ResultTemplateRepository
	Marksheet          MarksheetRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:                 db,
		Academic:           NewAcademicRepo(db),
		ExamSession:        NewExamSessionRepo(db),
		Exam:               NewExamRepo(db),
		ExamAttendee:       NewExamAttendeeRepo(db),
		ExamRoom:           NewExamRoomRepo(db),
		AttendanceRegister: NewAttendanceRegisterRepo(db),
		AttendanceSheet:    NewAttendanceSheetRepo(db),
		AttendanceLine:     NewAttendanceLineRepo(db),
		Sequence:           NewSequenceRepo(db),
		ChangeLog:          NewChangeLogRepo(db),
		GradeConfiguration: NewGradeConfigurationRepo(db),
		ResultTemplate:     NewResultTemplateRepo(db),
		Marksheet:          NewMarksheetRepo(db),
	}
}

// WithTx 返回绑定到指定事务的 Repository 聚合
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return NewRepository(tx)
}

// Transaction 在单个数据库事务中执行 fn，fn 返回错误或 panic 时整体回滚。
// 聚合未绑定数据库（单元测试用 mock 组装）时直接以自身执行 fn。
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
