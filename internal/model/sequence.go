package model

import (
	"fmt"
	"time"
)

// Sequence 编号序列 — 对应 sequences，每个 code 一个独立计数器
type Sequence struct {
	SequenceID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"sequence_id"`
	Code       string `gorm:"type:varchar(64);not null;uniqueIndex"          json:"code"`
	Prefix     string `gorm:"type:varchar(32);not null;default:''"           json:"prefix"`
	Padding    int    `gorm:"not null;default:5"                             json:"padding"`
	NextNumber int64  `gorm:"not null;default:1"                             json:"next_number"`
	BaseModel
}

func (Sequence) TableName() string { return "sequences" }

// Format 按前缀与补零位数格式化编号
func (s *Sequence) Format(n int64) string {
	return fmt.Sprintf("%s%0*d", s.Prefix, s.Padding, n)
}

// ── 状态变更日志 ──

const (
	EntityExam            = "exam"
	EntityExamSession     = "exam_session"
	EntityAttendanceSheet = "attendance_sheet"
	EntityResultTemplate  = "result_template"
)

// ChangeLog 状态变更日志 — 对应 change_logs（仅追加）
type ChangeLog struct {
	ChangeLogID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"change_log_id"`
	EntityType  string    `gorm:"type:varchar(32);not null"                      json:"entity_type"`
	EntityID    string    `gorm:"type:uuid;not null"                             json:"entity_id"`
	FromState   string    `gorm:"type:varchar(20)"                               json:"from_state,omitempty"`
	ToState     string    `gorm:"type:varchar(20)"                               json:"to_state,omitempty"`
	Message     string    `gorm:"type:varchar(500)"                              json:"message,omitempty"`
	ActorID     string    `gorm:"type:uuid;not null"                             json:"actor_id"`
	CompanyID   *string   `gorm:"type:uuid"                                      json:"company_id,omitempty"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (ChangeLog) TableName() string { return "change_logs" }
