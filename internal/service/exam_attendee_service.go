package service

import (
	"context"

	"go.uber.org/zap"

	"opencampus/backend/internal/dto"
	"opencampus/backend/internal/model"
	"opencampus/backend/internal/repository"
	pkgerrors "opencampus/backend/pkg/errors"
)

// ── 考生模块业务错误 ──

var (
	ErrAttendeeNotFound        = newBizError(ErrNotFound, "考生记录不存在")
	ErrStudentNotFound         = newBizError(ErrNotFound, "学生不存在")
	ErrAttendeeDuplicate       = newBizError(ErrValidation, "该学生已是本场考试的考生")
	ErrAttendeeMarksOutOfRange = newBizError(ErrValidation, "成绩必须在 0 到总分之间")
	ErrExamClosed              = newBizError(ErrStateTransition, "考试已完成或已取消，不可修改考生")
)

// ExamAttendeeService 考生业务接口
type ExamAttendeeService interface {
	ListByExam(ctx context.Context, examID string) ([]dto.AttendeeResponse, error)
	Add(ctx context.Context, examID string, req *dto.AddAttendeeRequest, actor Actor) (*dto.AttendeeResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateAttendeeRequest, actor Actor) (*dto.AttendeeResponse, error)
}

type examAttendeeService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExamAttendeeService 创建 ExamAttendeeService 实例
func NewExamAttendeeService(repo *repository.Repository, logger *zap.Logger) ExamAttendeeService {
	return &examAttendeeService{repo: repo, logger: logger}
}

func (s *examAttendeeService) ListByExam(ctx context.Context, examID string) ([]dto.AttendeeResponse, error) {
	exam, err := s.repo.Exam.GetByID(ctx, examID)
	if err != nil {
		return nil, s.fail("查询考试失败", examID, mapNotFound(err, ErrExamNotFound))
	}
	attendees, err := s.repo.ExamAttendee.ListByExam(ctx, examID)
	if err != nil {
		return nil, s.fail("查询考生失败", examID, err)
	}

	result := make([]dto.AttendeeResponse, 0, len(attendees))
	for i := range attendees {
		result = append(result, toAttendeeResponse(&attendees[i], exam))
	}
	return result, nil
}

func (s *examAttendeeService) Add(ctx context.Context, examID string, req *dto.AddAttendeeRequest, actor Actor) (*dto.AttendeeResponse, error) {
	exam, err := s.repo.Exam.GetByID(ctx, examID)
	if err != nil {
		return nil, s.fail("查询考试失败", examID, mapNotFound(err, ErrExamNotFound))
	}
	if exam.State == model.ExamStateDone || exam.State == model.ExamStateCancelled {
		return nil, ErrExamClosed
	}

	students, err := s.repo.Academic.ListStudentsByIDs(ctx, []string{req.StudentID})
	if err != nil {
		return nil, s.fail("查询学生失败", examID, err)
	}
	if len(students) == 0 {
		return nil, ErrStudentNotFound
	}

	existing, err := s.repo.ExamAttendee.StudentIDsByExam(ctx, examID)
	if err != nil {
		return nil, s.fail("查询考生失败", examID, err)
	}
	if _, ok := toSet(existing)[req.StudentID]; ok {
		return nil, ErrAttendeeDuplicate
	}

	if req.RoomID != nil {
		if _, err := s.repo.ExamRoom.GetByID(ctx, *req.RoomID); err != nil {
			return nil, s.fail("查询考场失败", examID, mapNotFound(err, ErrExamRoomNotFound))
		}
	}

	attendee := &model.ExamAttendee{
		ExamID:    exam.ExamID,
		StudentID: req.StudentID,
		RoomID:    req.RoomID,
		Status:    req.Status,
		CourseID:  exam.CourseID,
		BatchID:   exam.BatchID,
		Student:   &students[0],
	}
	if attendee.Status == "" {
		attendee.Status = model.AttendeeStatusPresent
	}
	normalizeMarks(attendee)
	attendee.CreatedBy = actor.userRef()
	attendee.UpdatedBy = actor.userRef()

	if err := s.repo.ExamAttendee.Create(ctx, attendee); err != nil {
		if pkgerrors.IsDuplicateKey(err) {
			return nil, ErrAttendeeDuplicate
		}
		return nil, s.fail("添加考生失败", examID, err)
	}

	resp := toAttendeeResponse(attendee, exam)
	return &resp, nil
}

func (s *examAttendeeService) Update(ctx context.Context, id string, req *dto.UpdateAttendeeRequest, actor Actor) (*dto.AttendeeResponse, error) {
	attendee, err := s.repo.ExamAttendee.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询考生失败", id, mapNotFound(err, ErrAttendeeNotFound))
	}
	exam, err := s.repo.Exam.GetByID(ctx, attendee.ExamID)
	if err != nil {
		return nil, s.fail("查询考试失败", attendee.ExamID, mapNotFound(err, ErrExamNotFound))
	}
	if exam.State == model.ExamStateDone || exam.State == model.ExamStateCancelled {
		return nil, ErrExamClosed
	}

	if req.Status != nil {
		attendee.Status = *req.Status
	}
	if req.Marks != nil {
		marks := *req.Marks
		attendee.Marks = &marks
	}
	if req.Note != nil {
		attendee.Note = *req.Note
	}
	if req.RoomID != nil {
		if *req.RoomID == "" {
			attendee.RoomID, attendee.Room = nil, nil
		} else {
			room, err := s.repo.ExamRoom.GetByID(ctx, *req.RoomID)
			if err != nil {
				return nil, s.fail("查询考场失败", *req.RoomID, mapNotFound(err, ErrExamRoomNotFound))
			}
			attendee.RoomID = &room.RoomID
			attendee.Room = room
		}
	}

	normalizeMarks(attendee)
	if attendee.Marks != nil && (*attendee.Marks < 0 || *attendee.Marks > exam.TotalMarks) {
		return nil, withDetail(ErrAttendeeMarksOutOfRange, "总分 %d", exam.TotalMarks)
	}
	attendee.UpdatedBy = actor.userRef()

	if err := s.repo.ExamAttendee.Update(ctx, attendee); err != nil {
		return nil, s.fail("更新考生失败", id, err)
	}

	resp := toAttendeeResponse(attendee, exam)
	return &resp, nil
}

func (s *examAttendeeService) fail(msg, id string, err error) error {
	if !isBusinessError(err) {
		s.logger.Error(msg, zap.String("id", id), zap.Error(err))
	}
	return err
}

// normalizeMarks 缺考考生成绩记 0
func normalizeMarks(a *model.ExamAttendee) {
	if a.Status == model.AttendeeStatusAbsent {
		zero := 0
		a.Marks = &zero
	}
}

// toAttendeeResponse 计算得分率与及格结果；未录入成绩时两者为空
func toAttendeeResponse(a *model.ExamAttendee, exam *model.Exam) dto.AttendeeResponse {
	resp := dto.AttendeeResponse{
		ID:        a.AttendeeID,
		ExamID:    a.ExamID,
		StudentID: a.StudentID,
		Status:    a.Status,
		Marks:     a.Marks,
		Note:      a.Note,
	}
	if a.Student != nil {
		resp.StudentName = a.Student.DisplayName()
	}
	if a.RoomID != nil {
		resp.RoomID = *a.RoomID
	}
	if a.Room != nil {
		resp.RoomName = a.Room.Name
	}
	if a.Marks != nil && exam.TotalMarks > 0 {
		pct := float64(*a.Marks) / float64(exam.TotalMarks) * 100
		resp.Percentage = &pct
		if *a.Marks >= exam.MinMarks {
			resp.Result = "pass"
		} else {
			resp.Result = "fail"
		}
	}
	return resp
}
