package model

// 教务基础数据由教务主数据服务维护，本服务只读取排考与考勤所需的最小字段。

// Course 课程表 — 对应 courses
type Course struct {
	CourseID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"course_id"`
	Name     string `gorm:"type:varchar(128);not null"                     json:"name"`
	Code     string `gorm:"type:varchar(32);not null;uniqueIndex"          json:"code"`
	CompanyScoped
	BaseModel
}

func (Course) TableName() string { return "courses" }

// Batch 班级（批次）表 — 对应 batches，隶属某个课程
type Batch struct {
	BatchID  string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"batch_id"`
	CourseID string `gorm:"type:uuid;not null;index"                       json:"course_id"`
	Name     string `gorm:"type:varchar(128);not null"                     json:"name"`
	Code     string `gorm:"type:varchar(32);not null"                      json:"code"`
	BaseModel
}

func (Batch) TableName() string { return "batches" }

// Subject 科目表 — 对应 subjects
type Subject struct {
	SubjectID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"subject_id"`
	Name      string `gorm:"type:varchar(128);not null"                     json:"name"`
	Code      string `gorm:"type:varchar(32);not null"                      json:"code"`
	BaseModel
}

func (Subject) TableName() string { return "subjects" }

// Classroom 教室表 — 对应 classrooms
type Classroom struct {
	ClassroomID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"classroom_id"`
	Name        string `gorm:"type:varchar(128);not null"                     json:"name"`
	Code        string `gorm:"type:varchar(32);not null"                      json:"code"`
	Capacity    int    `gorm:"not null;default:0"                             json:"capacity"`
	BaseModel
}

func (Classroom) TableName() string { return "classrooms" }

// Partner 联系人身份记录 — 对应 partners
type Partner struct {
	PartnerID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"partner_id"`
	Name      string `gorm:"type:varchar(128);not null"                     json:"name"`
	Email     string `gorm:"type:varchar(255)"                              json:"email,omitempty"`
	Phone     string `gorm:"type:varchar(32)"                               json:"phone,omitempty"`
	BaseModel
}

func (Partner) TableName() string { return "partners" }

// Student 学生表 — 对应 students
// 学生持有一个 Partner 引用而非继承它，姓名等身份信息从 Partner 读取
type Student struct {
	StudentID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"student_id"`
	PartnerID string `gorm:"type:uuid;not null"                             json:"partner_id"`
	GRNo      string `gorm:"column:gr_no;type:varchar(32)"                  json:"gr_no,omitempty"`
	Active    bool   `gorm:"not null;default:true"                          json:"active"`
	CompanyScoped
	BaseModel

	// 关联
	Partner *Partner `gorm:"foreignKey:PartnerID;references:PartnerID" json:"partner,omitempty"`
}

func (Student) TableName() string { return "students" }

// DisplayName 学生展示名（未加载 Partner 时回退为 ID）
func (s *Student) DisplayName() string {
	if s.Partner != nil && s.Partner.Name != "" {
		return s.Partner.Name
	}
	return s.StudentID
}

// StudentCourse 学生选课（花名册）表 — 对应 student_courses
type StudentCourse struct {
	StudentCourseID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"student_course_id"`
	StudentID       string `gorm:"type:uuid;not null"                             json:"student_id"`
	CourseID        string `gorm:"type:uuid;not null"                             json:"course_id"`
	BatchID         string `gorm:"type:uuid;not null"                             json:"batch_id"`
	State           string `gorm:"type:varchar(20);not null;default:'running'"    json:"state"` // running | finished | cancelled
	BaseModel

	// 关联
	Student *Student `gorm:"foreignKey:StudentID;references:StudentID" json:"student,omitempty"`
}

func (StudentCourse) TableName() string { return "student_courses" }
