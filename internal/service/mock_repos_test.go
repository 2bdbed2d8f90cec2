package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"opencampus/backend/internal/model"
	"opencampus/backend/internal/repository"
	pkgerrors "opencampus/backend/pkg/errors"
)

// ── 内存数据集 ──
// 所有 mock repo 共享同一份数据，读取时返回副本，行为贴近数据库。

type mockDB struct {
	courses     map[string]*model.Course
	batches     map[string]*model.Batch
	subjects    map[string]*model.Subject
	classrooms  map[string]*model.Classroom
	examTypes   map[string]*model.ExamType
	students    map[string]*model.Student
	enrollments []model.StudentCourse

	sessions  map[string]*model.ExamSession
	exams     map[string]*model.Exam
	attendees map[string]*model.ExamAttendee
	rooms     map[string]*model.ExamRoom

	registers map[string]*model.AttendanceRegister
	sheets    map[string]*model.AttendanceSheet
	lines     map[string]*model.AttendanceLine

	sequences  map[string]*model.Sequence
	changeLogs []model.ChangeLog

	grades         map[string]*model.GradeConfiguration
	templates      map[string]*model.ResultTemplate
	templateGrades map[string][]string
	marksheets     map[string]*model.MarksheetRegister

	counter int
}

func newMockDB() *mockDB {
	return &mockDB{
		courses:    make(map[string]*model.Course),
		batches:    make(map[string]*model.Batch),
		subjects:   make(map[string]*model.Subject),
		classrooms: make(map[string]*model.Classroom),
		examTypes:  make(map[string]*model.ExamType),
		students:   make(map[string]*model.Student),
		sessions:   make(map[string]*model.ExamSession),
		exams:      make(map[string]*model.Exam),
		attendees:  make(map[string]*model.ExamAttendee),
		rooms:      make(map[string]*model.ExamRoom),
		registers:  make(map[string]*model.AttendanceRegister),
		sheets:     make(map[string]*model.AttendanceSheet),
		lines:      make(map[string]*model.AttendanceLine),
		sequences:  make(map[string]*model.Sequence),

		grades:         make(map[string]*model.GradeConfiguration),
		templates:      make(map[string]*model.ResultTemplate),
		templateGrades: make(map[string][]string),
		marksheets:     make(map[string]*model.MarksheetRegister),
	}
}

func (db *mockDB) nextID(prefix string) string {
	db.counter++
	return fmt.Sprintf("%s-%03d", prefix, db.counter)
}

// repository 组装不绑定数据库的聚合，Transaction 直接执行回调
func (db *mockDB) repository() *repository.Repository {
	return &repository.Repository{
		Academic:           &mockAcademicRepo{db},
		ExamSession:        &mockExamSessionRepo{db},
		Exam:               &mockExamRepo{db},
		ExamAttendee:       &mockExamAttendeeRepo{db},
		ExamRoom:           &mockExamRoomRepo{db},
		AttendanceRegister: &mockAttendanceRegisterRepo{db},
		AttendanceSheet:    &mockAttendanceSheetRepo{db},
		AttendanceLine:     &mockAttendanceLineRepo{db},
		Sequence:           &mockSequenceRepo{db},
		ChangeLog:          &mockChangeLogRepo{db},
		GradeConfiguration: &mockGradeConfigurationRepo{db},
		ResultTemplate:     &mockResultTemplateRepo{db},
		Marksheet:          &mockMarksheetRepo{db},
	}
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// ── Mock AcademicRepository ──

type mockAcademicRepo struct{ db *mockDB }

func (m *mockAcademicRepo) GetCourse(_ context.Context, id string) (*model.Course, error) {
	if c, ok := m.db.courses[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAcademicRepo) GetBatch(_ context.Context, id string) (*model.Batch, error) {
	if b, ok := m.db.batches[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAcademicRepo) GetSubject(_ context.Context, id string) (*model.Subject, error) {
	if s, ok := m.db.subjects[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAcademicRepo) GetClassroom(_ context.Context, id string) (*model.Classroom, error) {
	if c, ok := m.db.classrooms[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAcademicRepo) GetExamType(_ context.Context, id string) (*model.ExamType, error) {
	if t, ok := m.db.examTypes[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAcademicRepo) ListStudentsByIDs(_ context.Context, ids []string) ([]model.Student, error) {
	var result []model.Student
	for _, id := range ids {
		if s, ok := m.db.students[id]; ok {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (m *mockAcademicRepo) ListActiveStudentIDs(_ context.Context, courseID, batchID string) ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, e := range m.db.enrollments {
		if e.CourseID != courseID || e.BatchID != batchID || e.State != "running" {
			continue
		}
		st, ok := m.db.students[e.StudentID]
		if !ok || !st.Active {
			continue
		}
		if _, dup := seen[e.StudentID]; dup {
			continue
		}
		seen[e.StudentID] = struct{}{}
		ids = append(ids, e.StudentID)
	}
	sort.Strings(ids)
	return ids, nil
}

// ── Mock ExamSessionRepository ──

type mockExamSessionRepo struct{ db *mockDB }

func (m *mockExamSessionRepo) Create(_ context.Context, session *model.ExamSession) error {
	if session.SessionID == "" {
		session.SessionID = m.db.nextID("session")
	}
	session.Version = 1
	cp := *session
	m.db.sessions[session.SessionID] = &cp
	return nil
}

func (m *mockExamSessionRepo) GetByID(_ context.Context, id string) (*model.ExamSession, error) {
	if s, ok := m.db.sessions[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockExamSessionRepo) List(_ context.Context, filter repository.ExamSessionFilter, offset, limit int) ([]model.ExamSession, int64, error) {
	var result []model.ExamSession
	for _, s := range m.db.sessions {
		if filter.State != "" && s.State != filter.State {
			continue
		}
		if filter.CourseID != "" && s.CourseID != filter.CourseID {
			continue
		}
		if filter.BatchID != "" && s.BatchID != filter.BatchID {
			continue
		}
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SessionID < result[j].SessionID })
	return page(result, offset, limit), int64(len(result)), nil
}

func (m *mockExamSessionRepo) Update(_ context.Context, session *model.ExamSession) error {
	stored, ok := m.db.sessions[session.SessionID]
	if !ok || stored.Version != session.Version {
		return pkgerrors.ErrOptimisticLock
	}
	session.Version++
	cp := *session
	m.db.sessions[session.SessionID] = &cp
	return nil
}

func (m *mockExamSessionRepo) ExistsByCode(_ context.Context, code, excludeID string) (bool, error) {
	for _, s := range m.db.sessions {
		if s.ExamCode == code && s.SessionID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

// ── Mock ExamRepository ──

type mockExamRepo struct{ db *mockDB }

func (m *mockExamRepo) Create(_ context.Context, exam *model.Exam) error {
	if exam.ExamID == "" {
		exam.ExamID = m.db.nextID("exam")
	}
	exam.Version = 1
	cp := *exam
	cp.Session = nil
	m.db.exams[exam.ExamID] = &cp
	return nil
}

func (m *mockExamRepo) get(id string) (*model.Exam, error) {
	e, ok := m.db.exams[id]
	if !ok || e.DeletedAt.Valid {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *e
	if s, ok := m.db.sessions[e.SessionID]; ok {
		sc := *s
		cp.Session = &sc
	}
	return &cp, nil
}

func (m *mockExamRepo) GetByID(_ context.Context, id string) (*model.Exam, error) {
	return m.get(id)
}

func (m *mockExamRepo) GetForUpdate(_ context.Context, id string) (*model.Exam, error) {
	return m.get(id)
}

func (m *mockExamRepo) List(_ context.Context, filter repository.ExamFilter, offset, limit int) ([]model.Exam, int64, error) {
	var result []model.Exam
	for _, e := range m.db.exams {
		if e.DeletedAt.Valid {
			continue
		}
		if filter.SessionID != "" && e.SessionID != filter.SessionID {
			continue
		}
		if filter.SubjectID != "" && e.SubjectID != filter.SubjectID {
			continue
		}
		if filter.State != "" && e.State != filter.State {
			continue
		}
		result = append(result, *e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ExamID < result[j].ExamID })
	return page(result, offset, limit), int64(len(result)), nil
}

func (m *mockExamRepo) ListBySession(_ context.Context, sessionID string) ([]model.Exam, error) {
	var result []model.Exam
	for _, e := range m.db.exams {
		if e.SessionID == sessionID && !e.DeletedAt.Valid {
			result = append(result, *e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ExamID < result[j].ExamID })
	return result, nil
}

func (m *mockExamRepo) Update(_ context.Context, exam *model.Exam) error {
	stored, ok := m.db.exams[exam.ExamID]
	if !ok || stored.Version != exam.Version {
		return pkgerrors.ErrOptimisticLock
	}
	exam.Version++
	cp := *exam
	cp.Session = nil
	m.db.exams[exam.ExamID] = &cp
	return nil
}

func (m *mockExamRepo) Archive(_ context.Context, id string, deletedBy string) error {
	if e, ok := m.db.exams[id]; ok {
		e.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
		e.DeletedBy = &deletedBy
	}
	return nil
}

func (m *mockExamRepo) ExistsByCode(_ context.Context, code, excludeID string) (bool, error) {
	for _, e := range m.db.exams {
		if e.ExamCode == code && e.ExamID != excludeID && !e.DeletedAt.Valid {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockExamRepo) ListOverlappingBySubject(_ context.Context, subjectID string, interval model.TimeInterval, excludeID string, excludeStates []string) ([]model.Exam, error) {
	excluded := toSet(excludeStates)
	var result []model.Exam
	for _, e := range m.db.exams {
		if e.DeletedAt.Valid || e.SubjectID != subjectID || e.ExamID == excludeID {
			continue
		}
		if _, skip := excluded[e.State]; skip {
			continue
		}
		if iv, ok := e.Interval(); ok && iv.Overlaps(interval) {
			result = append(result, *e)
		}
	}
	return result, nil
}

// ── Mock ExamAttendeeRepository ──

type mockExamAttendeeRepo struct{ db *mockDB }

func (m *mockExamAttendeeRepo) Create(_ context.Context, attendee *model.ExamAttendee) error {
	for _, a := range m.db.attendees {
		if a.ExamID == attendee.ExamID && a.StudentID == attendee.StudentID {
			return gorm.ErrDuplicatedKey
		}
	}
	if attendee.AttendeeID == "" {
		attendee.AttendeeID = m.db.nextID("attendee")
	}
	cp := *attendee
	cp.Student, cp.Room = nil, nil
	m.db.attendees[attendee.AttendeeID] = &cp
	return nil
}

func (m *mockExamAttendeeRepo) BatchCreate(ctx context.Context, attendees []model.ExamAttendee) error {
	for i := range attendees {
		if err := m.Create(ctx, &attendees[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockExamAttendeeRepo) withRelations(a *model.ExamAttendee) model.ExamAttendee {
	cp := *a
	if s, ok := m.db.students[a.StudentID]; ok {
		sc := *s
		cp.Student = &sc
	}
	if a.RoomID != nil {
		if r, ok := m.db.rooms[*a.RoomID]; ok {
			rc := *r
			cp.Room = &rc
		}
	}
	return cp
}

func (m *mockExamAttendeeRepo) GetByID(_ context.Context, id string) (*model.ExamAttendee, error) {
	if a, ok := m.db.attendees[id]; ok {
		cp := m.withRelations(a)
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockExamAttendeeRepo) Update(_ context.Context, attendee *model.ExamAttendee) error {
	stored, ok := m.db.attendees[attendee.AttendeeID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.RoomID = attendee.RoomID
	stored.Status = attendee.Status
	stored.Marks = attendee.Marks
	stored.Note = attendee.Note
	stored.UpdatedBy = attendee.UpdatedBy
	return nil
}

func (m *mockExamAttendeeRepo) ListByExam(_ context.Context, examID string) ([]model.ExamAttendee, error) {
	var result []model.ExamAttendee
	for _, a := range m.db.attendees {
		if a.ExamID == examID {
			result = append(result, m.withRelations(a))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AttendeeID < result[j].AttendeeID })
	return result, nil
}

func (m *mockExamAttendeeRepo) StudentIDsByExam(_ context.Context, examID string) ([]string, error) {
	var ids []string
	for _, a := range m.db.attendees {
		if a.ExamID == examID {
			ids = append(ids, a.StudentID)
		}
	}
	return ids, nil
}

func (m *mockExamAttendeeRepo) CountByExam(_ context.Context, examID string) (int64, error) {
	var n int64
	for _, a := range m.db.attendees {
		if a.ExamID == examID {
			n++
		}
	}
	return n, nil
}

func (m *mockExamAttendeeRepo) CountWithMarksByExam(_ context.Context, examID string) (int64, error) {
	var n int64
	for _, a := range m.db.attendees {
		if a.ExamID == examID && a.Marks != nil {
			n++
		}
	}
	return n, nil
}

func (m *mockExamAttendeeRepo) DeleteByExam(_ context.Context, examID string) error {
	for id, a := range m.db.attendees {
		if a.ExamID == examID {
			delete(m.db.attendees, id)
		}
	}
	return nil
}

func (m *mockExamAttendeeRepo) ListBookings(_ context.Context, filter repository.BookingFilter) ([]model.RoomBooking, error) {
	rooms := toSet(filter.RoomIDs)
	students := toSet(filter.StudentIDs)
	states := toSet(filter.States)

	var result []model.RoomBooking
	for _, a := range m.db.attendees {
		e, ok := m.db.exams[a.ExamID]
		if !ok || e.DeletedAt.Valid || e.ExamID == filter.ExcludeExamID {
			continue
		}
		iv, ok := e.Interval()
		if !ok || !iv.Overlaps(filter.Interval) {
			continue
		}
		if _, ok := states[e.State]; len(states) > 0 && !ok {
			continue
		}
		_, studentHit := students[a.StudentID]
		roomHit := false
		if a.RoomID != nil {
			_, roomHit = rooms[*a.RoomID]
		}
		if !studentHit && !roomHit {
			continue
		}
		result = append(result, model.RoomBooking{
			AttendeeID: a.AttendeeID,
			ExamID:     a.ExamID,
			StudentID:  a.StudentID,
			RoomID:     a.RoomID,
			ExamState:  e.State,
			StartTime:  iv.Start,
			EndTime:    iv.End,
		})
	}
	return result, nil
}

func (m *mockExamAttendeeRepo) CountByRoom(_ context.Context, roomID string, examStates []string) (int64, error) {
	states := toSet(examStates)
	var n int64
	for _, a := range m.db.attendees {
		if a.RoomID == nil || *a.RoomID != roomID {
			continue
		}
		e, ok := m.db.exams[a.ExamID]
		if !ok || e.DeletedAt.Valid {
			continue
		}
		if _, ok := states[e.State]; len(states) > 0 && !ok {
			continue
		}
		n++
	}
	return n, nil
}

// ── Mock ExamRoomRepository ──

type mockExamRoomRepo struct{ db *mockDB }

func (m *mockExamRoomRepo) Create(_ context.Context, room *model.ExamRoom) error {
	if room.RoomID == "" {
		room.RoomID = m.db.nextID("room")
	}
	cp := *room
	cp.Classroom = nil
	m.db.rooms[room.RoomID] = &cp
	return nil
}

func (m *mockExamRoomRepo) GetByID(_ context.Context, id string) (*model.ExamRoom, error) {
	r, ok := m.db.rooms[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r
	if c, ok := m.db.classrooms[r.ClassroomID]; ok {
		cc := *c
		cp.Classroom = &cc
	}
	return &cp, nil
}

func (m *mockExamRoomRepo) ListByIDs(_ context.Context, ids []string) ([]model.ExamRoom, error) {
	var result []model.ExamRoom
	for _, id := range ids {
		if r, ok := m.db.rooms[id]; ok {
			result = append(result, *r)
		}
	}
	// 打乱为逆序，验证调用方按请求顺序重排
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result, nil
}

func (m *mockExamRoomRepo) List(_ context.Context, filter repository.ExamRoomFilter, offset, limit int) ([]model.ExamRoom, int64, error) {
	var result []model.ExamRoom
	for _, r := range m.db.rooms {
		if filter.ActiveOnly && !r.Active {
			continue
		}
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return page(result, offset, limit), int64(len(result)), nil
}

func (m *mockExamRoomRepo) Update(_ context.Context, room *model.ExamRoom) error {
	stored, ok := m.db.rooms[room.RoomID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Name = room.Name
	stored.Capacity = room.Capacity
	stored.Active = room.Active
	stored.UpdatedBy = room.UpdatedBy
	return nil
}

// ── Mock AttendanceRegisterRepository ──

type mockAttendanceRegisterRepo struct{ db *mockDB }

func (m *mockAttendanceRegisterRepo) Create(_ context.Context, register *model.AttendanceRegister) error {
	if register.RegisterID == "" {
		register.RegisterID = m.db.nextID("register")
	}
	cp := *register
	m.db.registers[register.RegisterID] = &cp
	return nil
}

func (m *mockAttendanceRegisterRepo) GetByID(_ context.Context, id string) (*model.AttendanceRegister, error) {
	if r, ok := m.db.registers[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAttendanceRegisterRepo) List(_ context.Context, filter repository.AttendanceRegisterFilter, offset, limit int) ([]model.AttendanceRegister, int64, error) {
	var result []model.AttendanceRegister
	for _, r := range m.db.registers {
		if filter.CourseID != "" && r.CourseID != filter.CourseID {
			continue
		}
		if filter.BatchID != "" && r.BatchID != filter.BatchID {
			continue
		}
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return page(result, offset, limit), int64(len(result)), nil
}

func (m *mockAttendanceRegisterRepo) ExistsByCode(_ context.Context, code, excludeID string) (bool, error) {
	for _, r := range m.db.registers {
		if r.Code == code && r.RegisterID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAttendanceRegisterRepo) ExistsByScope(_ context.Context, courseID, batchID string, subjectID *string, excludeID string) (bool, error) {
	for _, r := range m.db.registers {
		if r.RegisterID == excludeID || r.CourseID != courseID || r.BatchID != batchID {
			continue
		}
		if sameRef(r.SubjectID, subjectID) {
			return true, nil
		}
	}
	return false, nil
}

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ── Mock AttendanceSheetRepository ──

type mockAttendanceSheetRepo struct{ db *mockDB }

func (m *mockAttendanceSheetRepo) Create(_ context.Context, sheet *model.AttendanceSheet) error {
	if sheet.SheetID == "" {
		sheet.SheetID = m.db.nextID("sheet")
	}
	sheet.Version = 1
	cp := *sheet
	cp.Register = nil
	m.db.sheets[sheet.SheetID] = &cp
	return nil
}

func (m *mockAttendanceSheetRepo) GetByID(_ context.Context, id string) (*model.AttendanceSheet, error) {
	s, ok := m.db.sheets[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	if r, ok := m.db.registers[s.RegisterID]; ok {
		rc := *r
		cp.Register = &rc
	}
	return &cp, nil
}

func (m *mockAttendanceSheetRepo) GetForUpdate(ctx context.Context, id string) (*model.AttendanceSheet, error) {
	return m.GetByID(ctx, id)
}

func (m *mockAttendanceSheetRepo) List(_ context.Context, filter repository.AttendanceSheetFilter, offset, limit int) ([]model.AttendanceSheet, int64, error) {
	var result []model.AttendanceSheet
	for _, s := range m.db.sheets {
		if filter.RegisterID != "" && s.RegisterID != filter.RegisterID {
			continue
		}
		if filter.State != "" && s.State != filter.State {
			continue
		}
		if filter.DateFrom != nil && s.AttendanceDate.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && s.AttendanceDate.After(*filter.DateTo) {
			continue
		}
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name > result[j].Name })
	return page(result, offset, limit), int64(len(result)), nil
}

func (m *mockAttendanceSheetRepo) Update(_ context.Context, sheet *model.AttendanceSheet) error {
	stored, ok := m.db.sheets[sheet.SheetID]
	if !ok || stored.Version != sheet.Version {
		return pkgerrors.ErrOptimisticLock
	}
	sheet.Version++
	cp := *sheet
	cp.Register = nil
	m.db.sheets[sheet.SheetID] = &cp
	return nil
}

func (m *mockAttendanceSheetRepo) FindByRegisterAndDate(_ context.Context, registerID string, date time.Time) (*model.AttendanceSheet, error) {
	for _, s := range m.db.sheets {
		if s.RegisterID == registerID && s.AttendanceDate.Equal(date) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAttendanceSheetRepo) ExistsDuplicate(_ context.Context, registerID string, sessionID *string, date time.Time, excludeID string) (bool, error) {
	for _, s := range m.db.sheets {
		if s.SheetID == excludeID || s.RegisterID != registerID || !s.AttendanceDate.Equal(date) {
			continue
		}
		if sameRef(s.SessionID, sessionID) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAttendanceSheetRepo) CountByRegister(_ context.Context, registerID string) (int64, error) {
	var n int64
	for _, s := range m.db.sheets {
		if s.RegisterID == registerID {
			n++
		}
	}
	return n, nil
}

// ── Mock AttendanceLineRepository ──

type mockAttendanceLineRepo struct{ db *mockDB }

func (m *mockAttendanceLineRepo) BatchCreate(_ context.Context, lines []model.AttendanceLine) error {
	for i := range lines {
		for _, l := range m.db.lines {
			if l.SheetID == lines[i].SheetID && l.StudentID == lines[i].StudentID {
				return gorm.ErrDuplicatedKey
			}
		}
		if lines[i].LineID == "" {
			lines[i].LineID = m.db.nextID("line")
		}
		cp := lines[i]
		m.db.lines[cp.LineID] = &cp
	}
	return nil
}

func (m *mockAttendanceLineRepo) GetByID(_ context.Context, id string) (*model.AttendanceLine, error) {
	if l, ok := m.db.lines[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAttendanceLineRepo) Update(_ context.Context, line *model.AttendanceLine) error {
	stored, ok := m.db.lines[line.LineID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Status = line.Status
	stored.Remark = line.Remark
	stored.UpdatedBy = line.UpdatedBy
	return nil
}

func (m *mockAttendanceLineRepo) ListBySheet(_ context.Context, sheetID string) ([]model.AttendanceLine, error) {
	var result []model.AttendanceLine
	for _, l := range m.db.lines {
		if l.SheetID == sheetID {
			cp := *l
			if s, ok := m.db.students[l.StudentID]; ok {
				sc := *s
				cp.Student = &sc
			}
			result = append(result, cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].LineID < result[j].LineID })
	return result, nil
}

func (m *mockAttendanceLineRepo) StudentIDsBySheet(_ context.Context, sheetID string) ([]string, error) {
	var ids []string
	for _, l := range m.db.lines {
		if l.SheetID == sheetID {
			ids = append(ids, l.StudentID)
		}
	}
	return ids, nil
}

func (m *mockAttendanceLineRepo) CountBySheet(_ context.Context, sheetID string) (int64, error) {
	var n int64
	for _, l := range m.db.lines {
		if l.SheetID == sheetID {
			n++
		}
	}
	return n, nil
}

// ── Mock SequenceRepository ──

type mockSequenceRepo struct{ db *mockDB }

func (m *mockSequenceRepo) Next(_ context.Context, code string) (string, error) {
	seq, ok := m.db.sequences[code]
	if !ok {
		return "", gorm.ErrRecordNotFound
	}
	value := seq.Format(seq.NextNumber)
	seq.NextNumber++
	return value, nil
}

// ── Mock ChangeLogRepository ──

type mockChangeLogRepo struct{ db *mockDB }

func (m *mockChangeLogRepo) Create(_ context.Context, log *model.ChangeLog) error {
	if log.ChangeLogID == "" {
		log.ChangeLogID = m.db.nextID("log")
	}
	m.db.changeLogs = append(m.db.changeLogs, *log)
	return nil
}

func (m *mockChangeLogRepo) ListByEntity(_ context.Context, entityType, entityID string, offset, limit int) ([]model.ChangeLog, int64, error) {
	var result []model.ChangeLog
	for _, l := range m.db.changeLogs {
		if l.EntityType == entityType && l.EntityID == entityID {
			result = append(result, l)
		}
	}
	return page(result, offset, limit), int64(len(result)), nil
}

// ── Mock GradeConfigurationRepository ──

type mockGradeConfigurationRepo struct{ db *mockDB }

func (m *mockGradeConfigurationRepo) Create(_ context.Context, grade *model.GradeConfiguration) error {
	if grade.GradeID == "" {
		grade.GradeID = m.db.nextID("grade")
	}
	cp := *grade
	m.db.grades[grade.GradeID] = &cp
	return nil
}

func (m *mockGradeConfigurationRepo) List(_ context.Context, companyID string, offset, limit int) ([]model.GradeConfiguration, int64, error) {
	var result []model.GradeConfiguration
	for _, g := range m.db.grades {
		if companyID != "" && (g.CompanyID == nil || *g.CompanyID != companyID) {
			continue
		}
		result = append(result, *g)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].MinPer > result[j].MinPer })
	return page(result, offset, limit), int64(len(result)), nil
}

func (m *mockGradeConfigurationRepo) ListByIDs(_ context.Context, ids []string) ([]model.GradeConfiguration, error) {
	var result []model.GradeConfiguration
	for _, id := range ids {
		if g, ok := m.db.grades[id]; ok {
			result = append(result, *g)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].MinPer > result[j].MinPer })
	return result, nil
}

// ── Mock ResultTemplateRepository ──

type mockResultTemplateRepo struct{ db *mockDB }

func (m *mockResultTemplateRepo) Create(_ context.Context, template *model.ResultTemplate) error {
	if template.TemplateID == "" {
		template.TemplateID = m.db.nextID("template")
	}
	ids := make([]string, 0, len(template.Grades))
	for _, g := range template.Grades {
		ids = append(ids, g.GradeID)
	}
	cp := *template
	cp.Grades = nil
	m.db.templates[template.TemplateID] = &cp
	m.db.templateGrades[template.TemplateID] = ids
	return nil
}

func (m *mockResultTemplateRepo) GetByID(ctx context.Context, id string) (*model.ResultTemplate, error) {
	t, ok := m.db.templates[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	cp.Grades, _ = m.ListGrades(ctx, id)
	return &cp, nil
}

func (m *mockResultTemplateRepo) GetForUpdate(_ context.Context, id string) (*model.ResultTemplate, error) {
	t, ok := m.db.templates[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockResultTemplateRepo) List(ctx context.Context, filter repository.ResultTemplateFilter, offset, limit int) ([]model.ResultTemplate, int64, error) {
	var result []model.ResultTemplate
	for id, t := range m.db.templates {
		if filter.SessionID != "" && t.SessionID != filter.SessionID {
			continue
		}
		if filter.State != "" && t.State != filter.State {
			continue
		}
		cp := *t
		cp.Grades, _ = m.ListGrades(ctx, id)
		result = append(result, cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TemplateID < result[j].TemplateID })
	return page(result, offset, limit), int64(len(result)), nil
}

func (m *mockResultTemplateRepo) ListGrades(ctx context.Context, templateID string) ([]model.GradeConfiguration, error) {
	return (&mockGradeConfigurationRepo{m.db}).ListByIDs(ctx, m.db.templateGrades[templateID])
}

func (m *mockResultTemplateRepo) UpdateState(_ context.Context, template *model.ResultTemplate) error {
	stored, ok := m.db.templates[template.TemplateID]
	if !ok || stored.Version != template.Version {
		return pkgerrors.ErrOptimisticLock
	}
	stored.State = template.State
	stored.UpdatedBy = template.UpdatedBy
	stored.Version++
	template.Version = stored.Version
	return nil
}

// ── Mock MarksheetRepository ──

type mockMarksheetRepo struct{ db *mockDB }

func (m *mockMarksheetRepo) Create(_ context.Context, register *model.MarksheetRegister) error {
	register.RegisterID = m.db.nextID("marksheet")
	for i := range register.Lines {
		line := &register.Lines[i]
		line.LineID = m.db.nextID("msline")
		line.RegisterID = register.RegisterID
		for j := range line.Results {
			line.Results[j].ResultLineID = m.db.nextID("result")
			line.Results[j].LineID = line.LineID
		}
	}
	cp := *register
	m.db.marksheets[register.RegisterID] = &cp
	return nil
}

func (m *mockMarksheetRepo) GetByID(_ context.Context, id string) (*model.MarksheetRegister, error) {
	r, ok := m.db.marksheets[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r
	cp.Lines = make([]model.MarksheetLine, len(r.Lines))
	for i, line := range r.Lines {
		if s, ok := m.db.students[line.StudentID]; ok {
			student := *s
			line.Student = &student
		}
		cp.Lines[i] = line
	}
	return &cp, nil
}
