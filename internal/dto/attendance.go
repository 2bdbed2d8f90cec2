package dto

// ── 考勤登记簿 ──

// CreateAttendanceRegisterRequest 创建考勤登记簿请求
type CreateAttendanceRegisterRequest struct {
	Name      string  `json:"name"       binding:"required,min=2,max=128"`
	Code      string  `json:"code"       binding:"required,max=32"`
	CourseID  string  `json:"course_id"  binding:"required"`
	BatchID   string  `json:"batch_id"   binding:"required"`
	SubjectID *string `json:"subject_id"`
}

// AttendanceRegisterListRequest 登记簿列表查询参数
type AttendanceRegisterListRequest struct {
	PaginationRequest
	CourseID string `form:"course_id"`
	BatchID  string `form:"batch_id"`
}

// AttendanceRegisterResponse 登记簿响应
type AttendanceRegisterResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Code          string  `json:"code"`
	CourseID      string  `json:"course_id"`
	BatchID       string  `json:"batch_id"`
	SubjectID     *string `json:"subject_id,omitempty"`
	SheetCount    int64   `json:"sheet_count"`
	TotalStudents int     `json:"total_students"`
}

// ── 考勤表 ──

// CreateAttendanceSheetRequest 创建考勤表请求
type CreateAttendanceSheetRequest struct {
	RegisterID     string  `json:"attendance_register_id" binding:"required"`
	SessionID      *string `json:"session_id"`
	FacultyID      *string `json:"faculty_id"`
	AttendanceDate string  `json:"attendance_date"        binding:"required"` // "2026-06-01"
}

// AttendanceSheetListRequest 考勤表列表查询参数
type AttendanceSheetListRequest struct {
	PaginationRequest
	RegisterID string `form:"attendance_register_id"`
	State      string `form:"state"     binding:"omitempty,oneof=draft start done cancel"`
	DateFrom   string `form:"date_from"`
	DateTo     string `form:"date_to"`
}

// AttendanceSheetResponse 考勤表响应
type AttendanceSheetResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	RegisterID     string  `json:"attendance_register_id"`
	SessionID      *string `json:"session_id,omitempty"`
	CourseID       string  `json:"course_id"`
	BatchID        string  `json:"batch_id"`
	FacultyID      *string `json:"faculty_id,omitempty"`
	AttendanceDate string  `json:"attendance_date"`
	State          string  `json:"state"`
	LineCount      int64   `json:"line_count"`
	Version        int     `json:"version"`
}

// AttendanceSheetDetailResponse 考勤表详情（含明细）
type AttendanceSheetDetailResponse struct {
	AttendanceSheetResponse
	Lines []AttendanceLineResponse `json:"lines"`
}

// ── 考勤明细 ──

// MarkAttendanceLineRequest 登记考勤状态
type MarkAttendanceLineRequest struct {
	Status string  `json:"status" binding:"required,line_status"`
	Remark *string `json:"remark" binding:"omitempty,max=500"`
}

// AttendanceLineResponse 考勤明细响应
type AttendanceLineResponse struct {
	ID             string `json:"id"`
	SheetID        string `json:"attendance_sheet_id"`
	StudentID      string `json:"student_id"`
	StudentName    string `json:"student_name,omitempty"`
	Status         string `json:"status"`
	Remark         string `json:"remark,omitempty"`
	AttendanceDate string `json:"attendance_date"`
}

// GenerateResponse 批量生成结果
type GenerateResponse struct {
	Created int `json:"created"`
}
