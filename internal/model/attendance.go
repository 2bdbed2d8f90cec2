package model

import "time"

// ── 考勤表状态 ──

const (
	SheetStateDraft  = "draft"
	SheetStateStart  = "start"
	SheetStateDone   = "done"
	SheetStateCancel = "cancel"
)

// ── 考勤明细状态：四选一 ──

const (
	LineStatusPresent = "present"
	LineStatusExcused = "excused"
	LineStatusAbsent  = "absent"
	LineStatusLate    = "late"
)

// LineStatuses 合法的考勤明细状态
var LineStatuses = []string{LineStatusPresent, LineStatusExcused, LineStatusAbsent, LineStatusLate}

// IsValidLineStatus 判断考勤状态是否合法
func IsValidLineStatus(status string) bool {
	for _, s := range LineStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// AttendanceRegister 考勤登记簿 — 对应 attendance_registers
// code 唯一；(course, batch, subject) 唯一
type AttendanceRegister struct {
	RegisterID string  `gorm:"column:attendance_register_id;type:uuid;primaryKey;default:gen_random_uuid()" json:"attendance_register_id"`
	Name       string  `gorm:"type:varchar(128);not null"                     json:"name"`
	Code       string  `gorm:"type:varchar(32);not null;uniqueIndex"          json:"code"`
	CourseID   string  `gorm:"type:uuid;not null"                             json:"course_id"`
	BatchID    string  `gorm:"type:uuid;not null"                             json:"batch_id"`
	SubjectID  *string `gorm:"type:uuid"                                      json:"subject_id,omitempty"`
	Active     bool    `gorm:"not null;default:true"                          json:"active"`
	CompanyScoped
	SoftDeleteModel
}

func (AttendanceRegister) TableName() string { return "attendance_registers" }

// AttendanceSheet 考勤表 — 对应 attendance_sheets
// (register, session, attendance_date) 唯一；CourseID / BatchID 从登记簿复制
type AttendanceSheet struct {
	SheetID        string    `gorm:"column:attendance_sheet_id;type:uuid;primaryKey;default:gen_random_uuid()" json:"attendance_sheet_id"`
	Name           string    `gorm:"type:varchar(64);not null"                      json:"name"`
	RegisterID     string    `gorm:"column:attendance_register_id;type:uuid;not null;index" json:"attendance_register_id"`
	SessionID      *string   `gorm:"column:session_id;type:uuid"                    json:"session_id,omitempty"` // 课节（外部排课系统）
	CourseID       string    `gorm:"type:uuid;not null"                             json:"course_id"`
	BatchID        string    `gorm:"type:uuid;not null"                             json:"batch_id"`
	FacultyID      *string   `gorm:"type:uuid"                                      json:"faculty_id,omitempty"`
	AttendanceDate time.Time `gorm:"type:date;not null"                             json:"attendance_date"`
	State          string    `gorm:"type:varchar(20);not null;default:'draft'"      json:"state"`
	CompanyScoped
	VersionedModel

	// 关联
	Register *AttendanceRegister `gorm:"foreignKey:RegisterID;references:RegisterID" json:"register,omitempty"`
	Lines    []AttendanceLine    `gorm:"foreignKey:SheetID;references:SheetID"       json:"lines,omitempty"`
}

func (AttendanceSheet) TableName() string { return "attendance_sheets" }

// AttendanceLine 考勤明细 — 对应 attendance_lines，(student, sheet, attendance_date) 唯一
// AttendanceDate 为考勤表日期的冗余副本
type AttendanceLine struct {
	LineID         string    `gorm:"column:attendance_line_id;type:uuid;primaryKey;default:gen_random_uuid()" json:"attendance_line_id"`
	SheetID        string    `gorm:"column:attendance_sheet_id;type:uuid;not null;index" json:"attendance_sheet_id"`
	StudentID      string    `gorm:"type:uuid;not null"                             json:"student_id"`
	Status         string    `gorm:"type:varchar(20);not null;default:'absent'"     json:"status"`
	Remark         string    `gorm:"type:varchar(500)"                              json:"remark,omitempty"`
	AttendanceDate time.Time `gorm:"type:date;not null"                             json:"attendance_date"`
	CourseID       string    `gorm:"type:uuid;not null"                             json:"course_id"`
	BatchID        string    `gorm:"type:uuid;not null"                             json:"batch_id"`
	BaseModel

	// 关联
	Student *Student `gorm:"foreignKey:StudentID;references:StudentID" json:"student,omitempty"`
}

func (AttendanceLine) TableName() string { return "attendance_lines" }
