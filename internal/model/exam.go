package model

import "time"

// ── 考试状态 ──

const (
	ExamStateDraft         = "draft"
	ExamStateScheduled     = "scheduled"
	ExamStateHeld          = "held"
	ExamStateResultUpdated = "result_updated"
	ExamStateDone          = "done"
	ExamStateCancelled     = "cancelled"
)

// ActiveExamStates 占用考场与考生时间的考试状态。
// result_updated 之后成绩已定，考场视为已释放。
var ActiveExamStates = []string{ExamStateScheduled, ExamStateHeld}

// ── 考试场次状态 ──

const (
	SessionStateDraft     = "draft"
	SessionStateScheduled = "scheduled"
	SessionStateHeld      = "held"
	SessionStateDone      = "done"
	SessionStateCancelled = "cancelled"
)

// ── 考生出勤状态 ──

const (
	AttendeeStatusPresent = "present"
	AttendeeStatusAbsent  = "absent"
)

// ExamType 考试类型表 — 对应 exam_types
type ExamType struct {
	ExamTypeID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"exam_type_id"`
	Name       string `gorm:"type:varchar(128);not null"                     json:"name"`
	Code       string `gorm:"type:varchar(32);not null;uniqueIndex"          json:"code"`
	BaseModel
}

func (ExamType) TableName() string { return "exam_types" }

// ExamSession 考试场次表 — 对应 exam_sessions
type ExamSession struct {
	SessionID      string    `gorm:"column:exam_session_id;type:uuid;primaryKey;default:gen_random_uuid()" json:"exam_session_id"`
	Name           string    `gorm:"type:varchar(128);not null"                     json:"name"`
	ExamCode       string    `gorm:"type:varchar(32);not null;uniqueIndex"          json:"exam_code"`
	CourseID       string    `gorm:"type:uuid;not null"                             json:"course_id"`
	BatchID        string    `gorm:"type:uuid;not null"                             json:"batch_id"`
	ExamTypeID     *string   `gorm:"type:uuid"                                      json:"exam_type_id,omitempty"`
	EvaluationType string    `gorm:"type:varchar(20);not null;default:'normal'"     json:"evaluation_type"` // normal | grade
	StartDate      time.Time `gorm:"type:date;not null"                             json:"start_date"`
	EndDate        time.Time `gorm:"type:date;not null"                             json:"end_date"`
	Venue          string    `gorm:"type:varchar(200)"                              json:"venue,omitempty"`
	State          string    `gorm:"type:varchar(20);not null;default:'draft'"      json:"state"`
	CompanyScoped
	VersionedModel

	// 关联
	Exams []Exam `gorm:"foreignKey:SessionID;references:SessionID" json:"exams,omitempty"`
}

func (ExamSession) TableName() string { return "exam_sessions" }

// DateRange 场次覆盖的时间范围：开始日 00:00 至结束日 23:59:59
func (s *ExamSession) DateRange() TimeInterval {
	return DayRange(s.StartDate, s.EndDate)
}

// Exam 考试表 — 对应 exams
// CourseID / BatchID 为冗余字段，创建时从所属场次复制
type Exam struct {
	ExamID     string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"exam_id"`
	SessionID  string     `gorm:"column:exam_session_id;type:uuid;not null;index" json:"exam_session_id"`
	CourseID   string     `gorm:"type:uuid;not null"                             json:"course_id"`
	BatchID    string     `gorm:"type:uuid;not null"                             json:"batch_id"`
	SubjectID  string     `gorm:"type:uuid;not null"                             json:"subject_id"`
	ExamCode   string     `gorm:"type:varchar(32);not null;uniqueIndex"          json:"exam_code"`
	Name       string     `gorm:"type:varchar(128);not null"                     json:"name"`
	StartTime  *time.Time `gorm:"type:timestamptz"                               json:"start_time,omitempty"`
	EndTime    *time.Time `gorm:"type:timestamptz"                               json:"end_time,omitempty"`
	TotalMarks int        `gorm:"not null"                                       json:"total_marks"`
	MinMarks   int        `gorm:"not null"                                       json:"min_marks"`
	State      string     `gorm:"type:varchar(20);not null;default:'draft'"      json:"state"`
	Note       string     `gorm:"type:text"                                      json:"note,omitempty"`
	CompanyScoped
	VersionedModel

	// 关联
	Session   *ExamSession   `gorm:"foreignKey:SessionID;references:SessionID" json:"session,omitempty"`
	Attendees []ExamAttendee `gorm:"foreignKey:ExamID;references:ExamID"       json:"attendees,omitempty"`
}

func (Exam) TableName() string { return "exams" }

// Interval 考试时间区间；起止时间未设置时 ok=false
func (e *Exam) Interval() (TimeInterval, bool) {
	if e.StartTime == nil || e.EndTime == nil {
		return TimeInterval{}, false
	}
	return TimeInterval{Start: *e.StartTime, End: *e.EndTime}, true
}

// ExamAttendee 考生表 — 对应 exam_attendees，(student_id, exam_id) 唯一
type ExamAttendee struct {
	AttendeeID string  `gorm:"column:exam_attendee_id;type:uuid;primaryKey;default:gen_random_uuid()" json:"exam_attendee_id"`
	ExamID     string  `gorm:"type:uuid;not null;uniqueIndex:uq_attendee_student_exam,priority:2"     json:"exam_id"`
	StudentID  string  `gorm:"type:uuid;not null;uniqueIndex:uq_attendee_student_exam,priority:1"     json:"student_id"`
	RoomID     *string `gorm:"column:exam_room_id;type:uuid"                                          json:"exam_room_id,omitempty"`
	Status     string  `gorm:"type:varchar(20);not null;default:'present'"                            json:"status"`
	Marks      *int    `json:"marks,omitempty"`
	Note       string  `gorm:"type:varchar(500)"                                                      json:"note,omitempty"`
	CourseID   string  `gorm:"type:uuid;not null"                                                     json:"course_id"`
	BatchID    string  `gorm:"type:uuid;not null"                                                     json:"batch_id"`
	BaseModel

	// 关联
	Student *Student  `gorm:"foreignKey:StudentID;references:StudentID" json:"student,omitempty"`
	Room    *ExamRoom `gorm:"foreignKey:RoomID;references:RoomID"       json:"room,omitempty"`
}

func (ExamAttendee) TableName() string { return "exam_attendees" }

// ExamRoom 考场表 — 对应 exam_rooms，容量不得超过所在教室容量
type ExamRoom struct {
	RoomID      string `gorm:"column:exam_room_id;type:uuid;primaryKey;default:gen_random_uuid()" json:"exam_room_id"`
	Name        string `gorm:"type:varchar(128);not null"                     json:"name"`
	ClassroomID string `gorm:"type:uuid;not null"                             json:"classroom_id"`
	Capacity    int    `gorm:"not null;default:0"                             json:"capacity"`
	Active      bool   `gorm:"not null;default:true"                          json:"active"`
	CompanyScoped
	SoftDeleteModel

	// 关联
	Classroom *Classroom `gorm:"foreignKey:ClassroomID;references:ClassroomID" json:"classroom,omitempty"`
}

func (ExamRoom) TableName() string { return "exam_rooms" }

// RoomBooking 考场/考生占用视图：考生记录 + 所属考试的时间与状态（非持久化实体）
type RoomBooking struct {
	AttendeeID string    `json:"exam_attendee_id"`
	ExamID     string    `json:"exam_id"`
	StudentID  string    `json:"student_id"`
	RoomID     *string   `json:"exam_room_id,omitempty"`
	ExamState  string    `json:"exam_state"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

// Interval 占用时间区间
func (b *RoomBooking) Interval() TimeInterval {
	return TimeInterval{Start: b.StartTime, End: b.EndTime}
}
