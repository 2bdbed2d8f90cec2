package model

import "time"

// ── 成绩模板状态 ──

const (
	TemplateStateDraft           = "draft"
	TemplateStateResultGenerated = "result_generated"
)

// ── 成绩单状态 ──

const (
	MarksheetStateDraft     = "draft"
	MarksheetStateValidated = "validated"
	MarksheetStateCancelled = "cancelled"
)

// ── 成绩结论 ──

const (
	ResultStatusPass = "pass"
	ResultStatusFail = "fail"
)

// ResultExamStates 生成成绩单前场次内所有考试必须处于的状态
var ResultExamStates = []string{ExamStateHeld, ExamStateResultUpdated, ExamStateDone}

// GradeConfiguration 等级配置表 — 对应 grade_configurations
// 百分比区间 [MinPer, MaxPer] 两端闭合
type GradeConfiguration struct {
	GradeID string `gorm:"column:grade_configuration_id;type:uuid;primaryKey;default:gen_random_uuid()" json:"grade_configuration_id"`
	Name    string `gorm:"type:varchar(64);not null"                      json:"name"`
	MinPer  int    `gorm:"not null"                                       json:"min_per"`
	MaxPer  int    `gorm:"not null"                                       json:"max_per"`
	Result  string `gorm:"type:varchar(32);not null"                      json:"result"`
	CompanyScoped
	BaseModel
}

func (GradeConfiguration) TableName() string { return "grade_configurations" }

// Contains 百分比是否落在区间内
func (g *GradeConfiguration) Contains(percentage float64) bool {
	return percentage >= float64(g.MinPer) && percentage <= float64(g.MaxPer)
}

// Overlaps 两个区间是否有交集（端点重合也算）
func (g *GradeConfiguration) Overlaps(other *GradeConfiguration) bool {
	return g.MinPer <= other.MaxPer && other.MinPer <= g.MaxPer
}

// ResultTemplate 成绩模板表 — 对应 result_templates
type ResultTemplate struct {
	TemplateID string    `gorm:"column:result_template_id;type:uuid;primaryKey;default:gen_random_uuid()" json:"result_template_id"`
	SessionID  string    `gorm:"column:exam_session_id;type:uuid;not null;index" json:"exam_session_id"`
	Name       string    `gorm:"type:varchar(128);not null"                     json:"name"`
	ResultDate time.Time `gorm:"type:date;not null"                             json:"result_date"`
	State      string    `gorm:"type:varchar(20);not null;default:'draft'"      json:"state"`
	Active     bool      `gorm:"not null;default:true"                          json:"active"`
	CompanyScoped
	VersionedModel

	// 关联
	Session *ExamSession         `gorm:"foreignKey:SessionID;references:SessionID" json:"session,omitempty"`
	Grades  []GradeConfiguration `gorm:"many2many:result_template_grades;joinForeignKey:ResultTemplateID;joinReferences:GradeConfigurationID" json:"grades,omitempty"`
}

func (ResultTemplate) TableName() string { return "result_templates" }

// MarksheetRegister 成绩单表 — 对应 marksheet_registers
type MarksheetRegister struct {
	RegisterID    string    `gorm:"column:marksheet_register_id;type:uuid;primaryKey;default:gen_random_uuid()" json:"marksheet_register_id"`
	SessionID     string    `gorm:"column:exam_session_id;type:uuid;not null;index" json:"exam_session_id"`
	TemplateID    string    `gorm:"column:result_template_id;type:uuid;not null;uniqueIndex" json:"result_template_id"`
	Name          string    `gorm:"type:varchar(200);not null"                     json:"name"`
	GeneratedDate time.Time `gorm:"type:date;not null"                             json:"generated_date"`
	GeneratedBy   string    `gorm:"type:uuid;not null"                             json:"generated_by"`
	State         string    `gorm:"type:varchar(20);not null;default:'draft'"      json:"state"`
	CompanyScoped
	BaseModel

	// 关联
	Lines []MarksheetLine `gorm:"foreignKey:RegisterID;references:RegisterID" json:"lines,omitempty"`
}

func (MarksheetRegister) TableName() string { return "marksheet_registers" }

// MarksheetLine 成绩单明细表 — 对应 marksheet_lines，每个学生一行
type MarksheetLine struct {
	LineID     string  `gorm:"column:marksheet_line_id;type:uuid;primaryKey;default:gen_random_uuid()" json:"marksheet_line_id"`
	RegisterID string  `gorm:"column:marksheet_register_id;type:uuid;not null;index" json:"marksheet_register_id"`
	StudentID  string  `gorm:"type:uuid;not null"                             json:"student_id"`
	TotalMarks int     `gorm:"not null;default:0"                             json:"total_marks"`
	Percentage float64 `gorm:"type:numeric(5,2);not null;default:0"           json:"percentage"`
	Grade      string  `gorm:"type:varchar(32)"                               json:"grade,omitempty"`
	Status     string  `gorm:"type:varchar(20);not null"                      json:"status"`
	BaseModel

	// 关联
	Results []ResultLine `gorm:"foreignKey:LineID;references:LineID" json:"results,omitempty"`
	Student *Student     `gorm:"foreignKey:StudentID;references:StudentID" json:"student,omitempty"`
}

func (MarksheetLine) TableName() string { return "marksheet_lines" }

// ResultLine 单科成绩表 — 对应 result_lines，每个考生记录一行
type ResultLine struct {
	ResultLineID string `gorm:"column:result_line_id;type:uuid;primaryKey;default:gen_random_uuid()" json:"result_line_id"`
	LineID       string `gorm:"column:marksheet_line_id;type:uuid;not null;index" json:"marksheet_line_id"`
	ExamID       string `gorm:"type:uuid;not null"                             json:"exam_id"`
	StudentID    string `gorm:"type:uuid;not null"                             json:"student_id"`
	Marks        int    `gorm:"not null;default:0"                             json:"marks"`
	Status       string `gorm:"type:varchar(20);not null"                      json:"status"`
	BaseModel
}

func (ResultLine) TableName() string { return "result_lines" }
