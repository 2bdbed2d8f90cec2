package dto

import "time"

// ── 考试场次 ──

// CreateExamSessionRequest 创建考试场次请求
type CreateExamSessionRequest struct {
	Name           string `json:"name"            binding:"required,min=2,max=128"`
	ExamCode       string `json:"exam_code"       binding:"required,max=32"`
	CourseID       string `json:"course_id"       binding:"required"`
	BatchID        string `json:"batch_id"        binding:"required"`
	ExamTypeID     string `json:"exam_type_id"`
	EvaluationType string `json:"evaluation_type" binding:"omitempty,oneof=normal grade"`
	StartDate      string `json:"start_date"      binding:"required"` // "2026-06-01"
	EndDate        string `json:"end_date"        binding:"required"`
	Venue          string `json:"venue"           binding:"omitempty,max=200"`
}

// UpdateExamSessionRequest 更新考试场次请求（仅草稿状态）
type UpdateExamSessionRequest struct {
	Name           *string `json:"name"            binding:"omitempty,min=2,max=128"`
	ExamCode       *string `json:"exam_code"       binding:"omitempty,max=32"`
	ExamTypeID     *string `json:"exam_type_id"`
	EvaluationType *string `json:"evaluation_type" binding:"omitempty,oneof=normal grade"`
	StartDate      *string `json:"start_date"`
	EndDate        *string `json:"end_date"`
	Venue          *string `json:"venue"           binding:"omitempty,max=200"`
}

// ExamSessionListRequest 考试场次列表查询参数
type ExamSessionListRequest struct {
	PaginationRequest
	State    string `form:"state"     binding:"omitempty,oneof=draft scheduled held done cancelled"`
	CourseID string `form:"course_id"`
	BatchID  string `form:"batch_id"`
}

// ExamSessionResponse 考试场次响应
type ExamSessionResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ExamCode       string `json:"exam_code"`
	CourseID       string `json:"course_id"`
	BatchID        string `json:"batch_id"`
	ExamTypeID     string `json:"exam_type_id,omitempty"`
	EvaluationType string `json:"evaluation_type"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	Venue          string `json:"venue,omitempty"`
	State          string `json:"state"`
	ExamCount      int    `json:"exam_count"`
	Version        int    `json:"version"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// ── 考试 ──

// CreateExamRequest 创建考试请求；起止时间可在排考前补齐
type CreateExamRequest struct {
	SessionID  string     `json:"exam_session_id" binding:"required"`
	SubjectID  string     `json:"subject_id"      binding:"required"`
	ExamCode   string     `json:"exam_code"       binding:"required,max=32"`
	Name       string     `json:"name"            binding:"required,min=2,max=128"`
	StartTime  *time.Time `json:"start_time"`
	EndTime    *time.Time `json:"end_time"`
	TotalMarks int        `json:"total_marks"     binding:"required"`
	MinMarks   int        `json:"min_marks"       binding:"required"`
	Note       string     `json:"note"`
}

// UpdateExamRequest 更新考试请求
type UpdateExamRequest struct {
	SubjectID  *string    `json:"subject_id"`
	ExamCode   *string    `json:"exam_code"   binding:"omitempty,max=32"`
	Name       *string    `json:"name"        binding:"omitempty,min=2,max=128"`
	StartTime  *time.Time `json:"start_time"`
	EndTime    *time.Time `json:"end_time"`
	TotalMarks *int       `json:"total_marks"`
	MinMarks   *int       `json:"min_marks"`
	Note       *string    `json:"note"`
}

// ExamListRequest 考试列表查询参数
type ExamListRequest struct {
	PaginationRequest
	SessionID string `form:"exam_session_id"`
	SubjectID string `form:"subject_id"`
	State     string `form:"state" binding:"omitempty,oneof=draft scheduled held result_updated done cancelled"`
}

// ExamResponse 考试响应（含派生统计）
type ExamResponse struct {
	ID             string  `json:"id"`
	SessionID      string  `json:"exam_session_id"`
	CourseID       string  `json:"course_id"`
	BatchID        string  `json:"batch_id"`
	SubjectID      string  `json:"subject_id"`
	ExamCode       string  `json:"exam_code"`
	Name           string  `json:"name"`
	StartTime      *string `json:"start_time,omitempty"`
	EndTime        *string `json:"end_time,omitempty"`
	TotalMarks     int     `json:"total_marks"`
	MinMarks       int     `json:"min_marks"`
	State          string  `json:"state"`
	Note           string  `json:"note,omitempty"`
	AttendeesCount int64   `json:"attendees_count"`
	ResultsEntered int64   `json:"results_entered"`
	Version        int     `json:"version"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// ── 考生 ──

// AddAttendeeRequest 手动添加考生
type AddAttendeeRequest struct {
	StudentID string  `json:"student_id" binding:"required"`
	RoomID    *string `json:"exam_room_id"`
	Status    string  `json:"status"     binding:"omitempty,oneof=present absent"`
}

// UpdateAttendeeRequest 更新考生出勤与成绩
type UpdateAttendeeRequest struct {
	Status *string `json:"status"       binding:"omitempty,oneof=present absent"`
	Marks  *int    `json:"marks"`
	Note   *string `json:"note"         binding:"omitempty,max=500"`
	RoomID *string `json:"exam_room_id"`
}

// AttendeeResponse 考生响应
type AttendeeResponse struct {
	ID          string   `json:"id"`
	ExamID      string   `json:"exam_id"`
	StudentID   string   `json:"student_id"`
	StudentName string   `json:"student_name,omitempty"`
	RoomID      string   `json:"exam_room_id,omitempty"`
	RoomName    string   `json:"exam_room_name,omitempty"`
	Status      string   `json:"status"`
	Marks       *int     `json:"marks,omitempty"`
	Percentage  *float64 `json:"percentage,omitempty"`
	Result      string   `json:"result,omitempty"` // pass | fail，未录入成绩时为空
	Note        string   `json:"note,omitempty"`
}

// ── 考场 ──

// CreateExamRoomRequest 创建考场请求
type CreateExamRoomRequest struct {
	Name        string `json:"name"         binding:"required,min=1,max=128"`
	ClassroomID string `json:"classroom_id" binding:"required"`
	Capacity    int    `json:"capacity"     binding:"min=0"`
}

// UpdateExamRoomRequest 更新考场请求
type UpdateExamRoomRequest struct {
	Name     *string `json:"name"     binding:"omitempty,min=1,max=128"`
	Capacity *int    `json:"capacity" binding:"omitempty,min=0"`
	Active   *bool   `json:"active"`
}

// ExamRoomListRequest 考场列表查询参数
type ExamRoomListRequest struct {
	PaginationRequest
	ActiveOnly bool `form:"active_only"`
}

// ExamRoomResponse 考场响应（含占用统计）
type ExamRoomResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ClassroomID    string `json:"classroom_id"`
	Capacity       int    `json:"capacity"`
	AllocatedCount int64  `json:"allocated_count"`
	AvailableSeats int64  `json:"available_seats"`
	Active         bool   `json:"active"`
}

// ── 考场分配 ──

// AllocateRoomsRequest 考场分配请求；考场与学生均按给定顺序依次填充
type AllocateRoomsRequest struct {
	RoomIDs    []string `json:"exam_room_ids"`
	StudentIDs []string `json:"student_ids"`
}

// RoomAllocationResponse 单个考场的分配结果
type RoomAllocationResponse struct {
	RoomID     string   `json:"exam_room_id"`
	RoomName   string   `json:"exam_room_name"`
	Capacity   int      `json:"capacity"`
	StudentIDs []string `json:"student_ids"`
}

// AllocationResponse 考场分配结果
type AllocationResponse struct {
	ExamID        string                   `json:"exam_id"`
	State         string                   `json:"state"`
	TotalStudents int                      `json:"total_students"`
	Rooms         []RoomAllocationResponse `json:"rooms"`
}

// AllocationDefaultsResponse 考场分配表单默认值
type AllocationDefaultsResponse struct {
	ExamID     string             `json:"exam_id"`
	StudentIDs []string           `json:"student_ids"`
	Rooms      []ExamRoomResponse `json:"rooms"`
}

// ConflictCheckRequest 冲突检测请求
type ConflictCheckRequest struct {
	StartTime     time.Time `json:"start_time" binding:"required"`
	EndTime       time.Time `json:"end_time"   binding:"required"`
	RoomIDs       []string  `json:"exam_room_ids"`
	StudentIDs    []string  `json:"student_ids"`
	ExcludeExamID string    `json:"exclude_exam_id"`
}

// ConflictCheckResponse 冲突检测结果
type ConflictCheckResponse struct {
	HasConflict bool     `json:"has_conflict"`
	RoomIDs     []string `json:"exam_room_ids"`
	StudentIDs  []string `json:"student_ids"`
}
