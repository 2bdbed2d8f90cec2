package dto

// ── 等级配置 ──

// CreateGradeConfigurationRequest 创建等级配置请求，百分比区间两端闭合
type CreateGradeConfigurationRequest struct {
	Name   string `json:"name"    binding:"required,max=64"`
	MinPer int    `json:"min_per" binding:"min=0,max=100"`
	MaxPer int    `json:"max_per" binding:"min=0,max=100"`
	Result string `json:"result"  binding:"required,max=32"`
}

// GradeConfigurationResponse 等级配置响应
type GradeConfigurationResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	MinPer int    `json:"min_per"`
	MaxPer int    `json:"max_per"`
	Result string `json:"result"`
}

// ── 成绩模板 ──

// CreateResultTemplateRequest 创建成绩模板请求
type CreateResultTemplateRequest struct {
	SessionID  string   `json:"exam_session_id" binding:"required"`
	Name       string   `json:"name"            binding:"required,min=2,max=128"`
	ResultDate string   `json:"result_date"` // 缺省为当天
	GradeIDs   []string `json:"grade_ids"       binding:"required,min=1,dive,required"`
}

// ResultTemplateListRequest 成绩模板列表查询参数
type ResultTemplateListRequest struct {
	PaginationRequest
	SessionID string `form:"exam_session_id"`
	State     string `form:"state" binding:"omitempty,oneof=draft result_generated"`
}

// ResultTemplateResponse 成绩模板响应
type ResultTemplateResponse struct {
	ID             string                       `json:"id"`
	SessionID      string                       `json:"exam_session_id"`
	EvaluationType string                       `json:"evaluation_type"`
	Name           string                       `json:"name"`
	ResultDate     string                       `json:"result_date"`
	State          string                       `json:"state"`
	Grades         []GradeConfigurationResponse `json:"grades"`
	Version        int                          `json:"version"`
}

// ── 成绩单 ──

// ResultLineResponse 单科成绩
type ResultLineResponse struct {
	ExamID string `json:"exam_id"`
	Marks  int    `json:"marks"`
	Status string `json:"status"`
}

// MarksheetLineResponse 学生成绩行
type MarksheetLineResponse struct {
	ID          string               `json:"id"`
	StudentID   string               `json:"student_id"`
	StudentName string               `json:"student_name,omitempty"`
	TotalMarks  int                  `json:"total_marks"`
	Percentage  float64              `json:"percentage"`
	Grade       string               `json:"grade,omitempty"`
	Status      string               `json:"status"`
	Results     []ResultLineResponse `json:"results"`
}

// MarksheetRegisterResponse 成绩单响应
type MarksheetRegisterResponse struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	SessionID     string                  `json:"exam_session_id"`
	TemplateID    string                  `json:"result_template_id"`
	GeneratedDate string                  `json:"generated_date"`
	GeneratedBy   string                  `json:"generated_by"`
	State         string                  `json:"state"`
	TotalPass     int                     `json:"total_pass"`
	TotalFailed   int                     `json:"total_failed"`
	Lines         []MarksheetLineResponse `json:"lines"`
}
