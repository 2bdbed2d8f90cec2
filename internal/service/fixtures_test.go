package service

import (
	"time"

	"go.uber.org/zap"

	"opencampus/backend/config"
	"opencampus/backend/internal/model"
	"opencampus/backend/internal/repository"
)

// ── 测试数据 ──

const (
	testCourse    = "course-1"
	testBatch     = "batch-1"
	otherBatch    = "batch-other"
	testMath      = "subj-math"
	testPhysics   = "subj-physics"
	testClassroom = "cls-1"
	testExamType  = "type-final"
)

var examDay = time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)

// at 考试日当天的 hh:mm
func at(hour, minute int) time.Time {
	return examDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func testConfig() *config.Config {
	return &config.Config{
		Exam: config.ExamConfig{
			AllocationLockKey: "lock:exam-allocation",
			AllocationLockTTL: 30 * time.Second,
		},
		Attendance: config.AttendanceConfig{
			SheetSequenceCode: "op.attendance.sheet",
			FailOnEmptyRoster: true,
		},
	}
}

type testEnv struct {
	db    *mockDB
	repo  *repository.Repository
	cfg   *config.Config
	svc   *Service
	actor Actor
}

func newTestEnv() *testEnv {
	db := newMockDB()
	seedAcademic(db)
	cfg := testConfig()
	repo := db.repository()
	return &testEnv{
		db:    db,
		repo:  repo,
		cfg:   cfg,
		svc:   NewService(cfg, repo, nil, zap.NewNop()),
		actor: Actor{UserID: "admin-001", Role: "admin"},
	}
}

// seedAcademic 课程 course-1 / 班级 batch-1 下 stu-1..stu-5 在读，stu-6 已停用
func seedAcademic(db *mockDB) {
	db.courses[testCourse] = &model.Course{CourseID: testCourse, Name: "计算机科学", Code: "CS"}
	db.courses["course-2"] = &model.Course{CourseID: "course-2", Name: "数学", Code: "MATH"}
	db.batches[testBatch] = &model.Batch{BatchID: testBatch, CourseID: testCourse, Name: "2026级1班", Code: "CS-2026-1"}
	db.batches[otherBatch] = &model.Batch{BatchID: otherBatch, CourseID: "course-2", Name: "数学1班", Code: "M-1"}
	db.subjects[testMath] = &model.Subject{SubjectID: testMath, Name: "高等数学", Code: "M101"}
	db.subjects[testPhysics] = &model.Subject{SubjectID: testPhysics, Name: "大学物理", Code: "P101"}
	db.classrooms[testClassroom] = &model.Classroom{ClassroomID: testClassroom, Name: "A101", Code: "A101", Capacity: 40}
	db.examTypes[testExamType] = &model.ExamType{ExamTypeID: testExamType, Name: "期末考试", Code: "FINAL"}

	for i := 1; i <= 6; i++ {
		id := studentID(i)
		db.students[id] = &model.Student{
			StudentID: id,
			PartnerID: "partner-" + id,
			Active:    i != 6,
			Partner:   &model.Partner{PartnerID: "partner-" + id, Name: "学生" + id[len(id)-1:]},
		}
		db.enrollments = append(db.enrollments, model.StudentCourse{
			StudentID: id, CourseID: testCourse, BatchID: testBatch, State: "running",
		})
	}

	db.sequences["op.attendance.sheet"] = &model.Sequence{Code: "op.attendance.sheet", Prefix: "/", Padding: 4, NextNumber: 1}
}

func studentID(i int) string {
	return "stu-" + string(rune('0'+i))
}

func students(n int) []string {
	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		ids = append(ids, studentID(i))
	}
	return ids
}

// ── 直接写入数据集的构造器 ──

func (e *testEnv) addSession(id, state string) *model.ExamSession {
	typeID := testExamType
	s := &model.ExamSession{
		SessionID:      id,
		Name:           "期末考试 " + id,
		ExamCode:       "ES-" + id,
		CourseID:       testCourse,
		BatchID:        testBatch,
		ExamTypeID:     &typeID,
		EvaluationType: "normal",
		StartDate:      time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC),
		State:          state,
	}
	s.Version = 1
	e.db.sessions[id] = s
	return s
}

func (e *testEnv) addExam(id, sessionID, subjectID string, start, end *time.Time, state string) *model.Exam {
	ex := &model.Exam{
		ExamID:     id,
		SessionID:  sessionID,
		CourseID:   testCourse,
		BatchID:    testBatch,
		SubjectID:  subjectID,
		ExamCode:   "EX-" + id,
		Name:       "考试 " + id,
		StartTime:  start,
		EndTime:    end,
		TotalMarks: 100,
		MinMarks:   40,
		State:      state,
	}
	ex.Version = 1
	e.db.exams[id] = ex
	return ex
}

func (e *testEnv) addRoom(id, name string, capacity int) *model.ExamRoom {
	r := &model.ExamRoom{RoomID: id, Name: name, ClassroomID: testClassroom, Capacity: capacity, Active: true}
	e.db.rooms[id] = r
	return r
}

func (e *testEnv) addAttendee(examID, studentID string, roomID *string) *model.ExamAttendee {
	a := &model.ExamAttendee{
		AttendeeID: e.db.nextID("attendee"),
		ExamID:     examID,
		StudentID:  studentID,
		RoomID:     roomID,
		Status:     model.AttendeeStatusPresent,
		CourseID:   testCourse,
		BatchID:    testBatch,
	}
	e.db.attendees[a.AttendeeID] = a
	return a
}

func (e *testEnv) addRegister(id, code string) *model.AttendanceRegister {
	r := &model.AttendanceRegister{RegisterID: id, Name: "登记簿 " + code, Code: code, CourseID: testCourse, BatchID: testBatch, Active: true}
	e.db.registers[id] = r
	return r
}

func (e *testEnv) addSheet(id, registerID string, date time.Time, state string) *model.AttendanceSheet {
	s := &model.AttendanceSheet{
		SheetID:        id,
		Name:           "SHEET-" + id,
		RegisterID:     registerID,
		CourseID:       testCourse,
		BatchID:        testBatch,
		AttendanceDate: date,
		State:          state,
	}
	s.Version = 1
	e.db.sheets[id] = s
	return s
}

func (e *testEnv) attendeesOf(examID string) []*model.ExamAttendee {
	var result []*model.ExamAttendee
	for _, a := range e.db.attendees {
		if a.ExamID == examID {
			result = append(result, a)
		}
	}
	return result
}

func ptr[T any](v T) *T { return &v }
