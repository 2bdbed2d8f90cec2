package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"opencampus/backend/internal/dto"
	"opencampus/backend/internal/model"
	"opencampus/backend/internal/repository"
)

// ── 考试模块业务错误 ──

var (
	ErrExamNotFound        = newBizError(ErrNotFound, "考试不存在")
	ErrSubjectNotFound     = newBizError(ErrNotFound, "科目不存在")
	ErrInvalidExamMarks    = newBizError(ErrValidation, "总分与及格分必须大于 0")
	ErrMinMarksExceedTotal = newBizError(ErrValidation, "及格分不能高于总分")
	ErrInvalidExamTime     = newBizError(ErrValidation, "考试结束时间必须晚于开始时间")
	ErrExamOutsideSession  = newBizError(ErrValidation, "考试时间必须在考试场次日期范围内")
	ErrExamSubjectOverlap  = newBizError(ErrValidation, "同一科目的考试时间不能重叠")
	ErrExamCodeExists      = newBizError(ErrValidation, "考试编码已存在")
	ErrExamNotEditable     = newBizError(ErrStateTransition, "仅草稿状态的考试可修改")
	ErrExamIncomplete      = newBizError(ErrStateTransition, "排考前必须设置场次、科目与起止时间")
	ErrExamBadTransition   = newBizError(ErrStateTransition, "考试当前状态不允许此操作")
	ErrExamNoAttendees     = newBizError(ErrStateTransition, "考试至少需要一名考生")
	ErrExamMarksMissing    = newBizError(ErrStateTransition, "仍有出勤考生未录入成绩")
	ErrExamHasResults      = newBizError(ErrStateTransition, "已录入成绩的考试不能取消")
	ErrExamAlreadyDone     = newBizError(ErrStateTransition, "考试已完成，不可变更")
	ErrExamNotArchivable   = newBizError(ErrStateTransition, "仅草稿或已取消的考试可归档")
)

// ExamService 考试业务接口
type ExamService interface {
	Create(ctx context.Context, req *dto.CreateExamRequest, actor Actor) (*dto.ExamResponse, error)
	GetByID(ctx context.Context, id string) (*dto.ExamResponse, error)
	List(ctx context.Context, req *dto.ExamListRequest, actor Actor) ([]dto.ExamResponse, int64, error)
	Update(ctx context.Context, id string, req *dto.UpdateExamRequest, actor Actor) (*dto.ExamResponse, error)
	Archive(ctx context.Context, id string, actor Actor) error

	// 状态流转
	Schedule(ctx context.Context, id string, actor Actor) (*dto.ExamResponse, error)
	Held(ctx context.Context, id string, actor Actor) (*dto.ExamResponse, error)
	ResultUpdated(ctx context.Context, id string, actor Actor) (*dto.ExamResponse, error)
	Done(ctx context.Context, id string, actor Actor) (*dto.ExamResponse, error)
	Cancel(ctx context.Context, id string, actor Actor) (*dto.ExamResponse, error)
	Draft(ctx context.Context, id string, actor Actor) (*dto.ExamResponse, error)

	// AttendeesAction 打开该考试的考生列表
	AttendeesAction(ctx context.Context, id string) (*dto.ActionResponse, error)
}

type examService struct {
	repo      *repository.Repository
	generator AttendanceGenerator
	logger    *zap.Logger
}

// NewExamService 创建 ExamService 实例；排考时由 generator 按花名册补齐考生
func NewExamService(repo *repository.Repository, generator AttendanceGenerator, logger *zap.Logger) ExamService {
	return &examService{repo: repo, generator: generator, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *examService) Create(ctx context.Context, req *dto.CreateExamRequest, actor Actor) (*dto.ExamResponse, error) {
	session, err := s.repo.ExamSession.GetByID(ctx, req.SessionID)
	if err != nil {
		return nil, s.fail("查询考试场次失败", req.SessionID, mapNotFound(err, ErrSessionNotFound))
	}
	if session.State != model.SessionStateDraft && session.State != model.SessionStateScheduled {
		return nil, ErrSessionClosedForExams
	}

	exam := &model.Exam{
		SessionID:     session.SessionID,
		CourseID:      session.CourseID,
		BatchID:       session.BatchID,
		SubjectID:     req.SubjectID,
		ExamCode:      req.ExamCode,
		Name:          req.Name,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		TotalMarks:    req.TotalMarks,
		MinMarks:      req.MinMarks,
		State:         model.ExamStateDraft,
		Note:          req.Note,
		CompanyScoped: actor.scope(),
	}
	exam.CreatedBy = actor.userRef()
	exam.UpdatedBy = actor.userRef()

	if err := s.validate(ctx, exam, session); err != nil {
		return nil, s.fail("校验考试失败", "", err)
	}

	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if err := txRepo.Exam.Create(ctx, exam); err != nil {
			return err
		}
		return appendChangeLog(ctx, txRepo, model.EntityExam, exam.ExamID, "", exam.State, "创建考试", actor)
	})
	if err != nil {
		return nil, s.fail("创建考试失败", "", err)
	}

	return s.toResponse(ctx, exam)
}

// ────────────────────── GetByID / List ──────────────────────

func (s *examService) GetByID(ctx context.Context, id string) (*dto.ExamResponse, error) {
	exam, err := s.repo.Exam.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询考试失败", id, mapNotFound(err, ErrExamNotFound))
	}
	return s.toResponse(ctx, exam)
}

func (s *examService) List(ctx context.Context, req *dto.ExamListRequest, actor Actor) ([]dto.ExamResponse, int64, error) {
	exams, total, err := s.repo.Exam.List(ctx, repository.ExamFilter{
		SessionID: req.SessionID,
		SubjectID: req.SubjectID,
		State:     req.State,
		CompanyID: actor.CompanyID,
	}, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出考试失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.ExamResponse, 0, len(exams))
	for i := range exams {
		resp, err := s.toResponse(ctx, &exams[i])
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *resp)
	}
	return result, total, nil
}

// ────────────────────── Update ──────────────────────

func (s *examService) Update(ctx context.Context, id string, req *dto.UpdateExamRequest, actor Actor) (*dto.ExamResponse, error) {
	exam, err := s.repo.Exam.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询考试失败", id, mapNotFound(err, ErrExamNotFound))
	}
	if exam.State != model.ExamStateDraft {
		return nil, ErrExamNotEditable
	}

	if req.SubjectID != nil {
		exam.SubjectID = *req.SubjectID
	}
	if req.ExamCode != nil {
		exam.ExamCode = *req.ExamCode
	}
	if req.Name != nil {
		exam.Name = *req.Name
	}
	if req.StartTime != nil {
		exam.StartTime = req.StartTime
	}
	if req.EndTime != nil {
		exam.EndTime = req.EndTime
	}
	if req.TotalMarks != nil {
		exam.TotalMarks = *req.TotalMarks
	}
	if req.MinMarks != nil {
		exam.MinMarks = *req.MinMarks
	}
	if req.Note != nil {
		exam.Note = *req.Note
	}
	exam.UpdatedBy = actor.userRef()

	session, err := s.repo.ExamSession.GetByID(ctx, exam.SessionID)
	if err != nil {
		return nil, s.fail("查询考试场次失败", exam.SessionID, mapNotFound(err, ErrSessionNotFound))
	}
	if err := s.validate(ctx, exam, session); err != nil {
		return nil, s.fail("校验考试失败", id, err)
	}

	if err := s.repo.Exam.Update(ctx, exam); err != nil {
		return nil, s.fail("更新考试失败", id, err)
	}
	return s.toResponse(ctx, exam)
}

// ────────────────────── Archive ──────────────────────

func (s *examService) Archive(ctx context.Context, id string, actor Actor) error {
	exam, err := s.repo.Exam.GetByID(ctx, id)
	if err != nil {
		return s.fail("查询考试失败", id, mapNotFound(err, ErrExamNotFound))
	}
	if exam.State != model.ExamStateDraft && exam.State != model.ExamStateCancelled {
		return ErrExamNotArchivable
	}
	if err := s.repo.Exam.Archive(ctx, id, actor.UserID); err != nil {
		return s.fail("归档考试失败", id, err)
	}
	return nil
}

// ────────────────────── 状态流转 ──────────────────────

func (s *examService) Schedule(ctx context.Context, id string, actor Actor) (*dto.ExamResponse, error) {
	return s.transition(ctx, id, model.ExamStateScheduled, "排考", actor,
		func(ctx context.Context, txRepo *repository.Repository, exam *model.Exam) error {
			if exam.State != model.ExamStateDraft {
				return withDetail(ErrExamBadTransition, "%s → %s", exam.State, model.ExamStateScheduled)
			}
			iv, ok := exam.Interval()
			if exam.SessionID == "" || exam.SubjectID == "" || !ok {
				return ErrExamIncomplete
			}
			if err := iv.Validate(); err != nil {
				return ErrInvalidExamTime
			}

			attendees, err := txRepo.ExamAttendee.ListByExam(ctx, exam.ExamID)
			if err != nil {
				return err
			}
			if len(attendees) > 0 {
				// 退回草稿后可能已改期，原有考场与考生须按当前时间重新检测
				roomIDs, studentIDs := attendeeBookingIDs(attendees)
				return checkExamConflicts(ctx, txRepo, exam.ExamID, iv, roomIDs, studentIDs)
			}

			// 尚无考生时按课程班级花名册生成，写入前先检测学生冲突
			roster, err := txRepo.Academic.ListActiveStudentIDs(ctx, exam.CourseID, exam.BatchID)
			if err != nil {
				return err
			}
			if err := checkExamConflicts(ctx, txRepo, exam.ExamID, iv, nil, roster); err != nil {
				return err
			}
			_, err = s.generator.GenerateExamAttendees(ctx, txRepo, exam, roster, actor)
			return err
		})
}

func (s *examService) Held(ctx context.Context, id string, actor Actor) (*dto.ExamResponse, error) {
	return s.transition(ctx, id, model.ExamStateHeld, "开考", actor,
		func(ctx context.Context, txRepo *repository.Repository, exam *model.Exam) error {
			if exam.State != model.ExamStateScheduled {
				return withDetail(ErrExamBadTransition, "%s → %s", exam.State, model.ExamStateHeld)
			}
			count, err := txRepo.ExamAttendee.CountByExam(ctx, exam.ExamID)
			if err != nil {
				return err
			}
			if count == 0 {
				return ErrExamNoAttendees
			}
			return nil
		})
}

func (s *examService) ResultUpdated(ctx context.Context, id string, actor Actor) (*dto.ExamResponse, error) {
	return s.transition(ctx, id, model.ExamStateResultUpdated, "成绩已录入", actor,
		func(ctx context.Context, txRepo *repository.Repository, exam *model.Exam) error {
			if exam.State != model.ExamStateHeld {
				return withDetail(ErrExamBadTransition, "%s → %s", exam.State, model.ExamStateResultUpdated)
			}
			attendees, err := txRepo.ExamAttendee.ListByExam(ctx, exam.ExamID)
			if err != nil {
				return err
			}
			missing := 0
			for i := range attendees {
				if attendees[i].Status == model.AttendeeStatusPresent && attendees[i].Marks == nil {
					missing++
				}
			}
			if missing > 0 {
				return withDetail(ErrExamMarksMissing, "%d 人", missing)
			}
			return nil
		})
}

func (s *examService) Done(ctx context.Context, id string, actor Actor) (*dto.ExamResponse, error) {
	return s.transition(ctx, id, model.ExamStateDone, "考试完成", actor,
		func(ctx context.Context, txRepo *repository.Repository, exam *model.Exam) error {
			if exam.State != model.ExamStateHeld && exam.State != model.ExamStateResultUpdated {
				return withDetail(ErrExamBadTransition, "%s → %s", exam.State, model.ExamStateDone)
			}
			return nil
		})
}

func (s *examService) Cancel(ctx context.Context, id string, actor Actor) (*dto.ExamResponse, error) {
	var exam *model.Exam
	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		var err error
		exam, err = txRepo.Exam.GetForUpdate(ctx, id)
		if err != nil {
			return mapNotFound(err, ErrExamNotFound)
		}
		if exam.State == model.ExamStateDone {
			return ErrExamAlreadyDone
		}
		if exam.State == model.ExamStateResultUpdated {
			withMarks, err := txRepo.ExamAttendee.CountWithMarksByExam(ctx, exam.ExamID)
			if err != nil {
				return err
			}
			if withMarks > 0 {
				return ErrExamHasResults
			}
		}
		return cancelExam(ctx, txRepo, exam, "取消考试", actor)
	})
	if err != nil {
		return nil, s.fail("取消考试失败", id, err)
	}
	return s.toResponse(ctx, exam)
}

func (s *examService) Draft(ctx context.Context, id string, actor Actor) (*dto.ExamResponse, error) {
	return s.transition(ctx, id, model.ExamStateDraft, "退回草稿", actor,
		func(_ context.Context, _ *repository.Repository, exam *model.Exam) error {
			if exam.State == model.ExamStateDone {
				return ErrExamAlreadyDone
			}
			return nil
		})
}

// ────────────────────── AttendeesAction ──────────────────────

func (s *examService) AttendeesAction(ctx context.Context, id string) (*dto.ActionResponse, error) {
	exam, err := s.repo.Exam.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询考试失败", id, mapNotFound(err, ErrExamNotFound))
	}
	return &dto.ActionResponse{
		Type:     "open_view",
		Model:    "exam_attendee",
		ViewMode: "list",
		Domain:   map[string]interface{}{"exam_id": exam.ExamID},
		Context: map[string]interface{}{
			"default_exam_id":   exam.ExamID,
			"default_course_id": exam.CourseID,
			"default_batch_id":  exam.BatchID,
		},
	}, nil
}

// ────────────────────── 内部方法 ──────────────────────

type examGuard func(ctx context.Context, txRepo *repository.Repository, exam *model.Exam) error

// transition 在事务内加行锁读取考试，校验后写入新状态与变更日志
func (s *examService) transition(ctx context.Context, id, to, message string, actor Actor, guard examGuard) (*dto.ExamResponse, error) {
	var exam *model.Exam
	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		var err error
		exam, err = txRepo.Exam.GetForUpdate(ctx, id)
		if err != nil {
			return mapNotFound(err, ErrExamNotFound)
		}
		if err := guard(ctx, txRepo, exam); err != nil {
			return err
		}
		from := exam.State
		exam.State = to
		exam.UpdatedBy = actor.userRef()
		if err := txRepo.Exam.Update(ctx, exam); err != nil {
			return err
		}
		return appendChangeLog(ctx, txRepo, model.EntityExam, exam.ExamID, from, to, message, actor)
	})
	if err != nil {
		return nil, s.fail("考试状态变更失败", id, err)
	}
	return s.toResponse(ctx, exam)
}

// validate 考试字段校验：分数、时间区间、场次范围、同科目不重叠、编码唯一
func (s *examService) validate(ctx context.Context, exam *model.Exam, session *model.ExamSession) error {
	if _, err := s.repo.Academic.GetSubject(ctx, exam.SubjectID); err != nil {
		return mapNotFound(err, ErrSubjectNotFound)
	}

	if exam.TotalMarks <= 0 || exam.MinMarks <= 0 {
		return ErrInvalidExamMarks
	}
	if exam.MinMarks > exam.TotalMarks {
		return ErrMinMarksExceedTotal
	}

	if (exam.StartTime == nil) != (exam.EndTime == nil) {
		return withDetail(ErrInvalidExamTime, "开始与结束时间需同时设置")
	}
	if iv, ok := exam.Interval(); ok {
		if err := iv.Validate(); err != nil {
			return ErrInvalidExamTime
		}
		if !iv.Within(session.DateRange()) {
			return ErrExamOutsideSession
		}
		overlapping, err := s.repo.Exam.ListOverlappingBySubject(ctx, exam.SubjectID, iv, exam.ExamID,
			[]string{model.ExamStateCancelled})
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return withDetail(ErrExamSubjectOverlap, "%s", overlapping[0].ExamCode)
		}
	}

	exists, err := s.repo.Exam.ExistsByCode(ctx, exam.ExamCode, exam.ExamID)
	if err != nil {
		return err
	}
	if exists {
		return ErrExamCodeExists
	}
	return nil
}

// checkExamConflicts 以当前考试时间检测考场与学生占用，命中时返回带名称的冲突错误
func checkExamConflicts(ctx context.Context, txRepo *repository.Repository, examID string, iv model.TimeInterval, roomIDs, studentIDs []string) error {
	if len(roomIDs) == 0 && len(studentIDs) == 0 {
		return nil
	}
	conflicts, err := detectConflicts(ctx, txRepo, ConflictQuery{
		Interval:      iv,
		RoomIDs:       roomIDs,
		StudentIDs:    studentIDs,
		ExcludeExamID: examID,
	})
	if err != nil {
		return err
	}
	if !conflicts.HasConflict() {
		return nil
	}

	var (
		rooms    []model.ExamRoom
		students []model.Student
	)
	if len(conflicts.RoomIDs) > 0 {
		if rooms, err = txRepo.ExamRoom.ListByIDs(ctx, conflicts.RoomIDs); err != nil {
			return err
		}
	}
	if len(conflicts.StudentIDs) > 0 {
		if students, err = txRepo.Academic.ListStudentsByIDs(ctx, conflicts.StudentIDs); err != nil {
			return err
		}
	}
	return newConflictError(conflicts, rooms, students)
}

// attendeeBookingIDs 考生记录占用的考场与学生（去重，保持出现顺序）
func attendeeBookingIDs(attendees []model.ExamAttendee) (roomIDs, studentIDs []string) {
	seenRooms := make(map[string]struct{})
	for i := range attendees {
		studentIDs = append(studentIDs, attendees[i].StudentID)
		if id := attendees[i].RoomID; id != nil {
			if _, ok := seenRooms[*id]; !ok {
				seenRooms[*id] = struct{}{}
				roomIDs = append(roomIDs, *id)
			}
		}
	}
	return roomIDs, studentIDs
}

func (s *examService) toResponse(ctx context.Context, exam *model.Exam) (*dto.ExamResponse, error) {
	attendees, err := s.repo.ExamAttendee.CountByExam(ctx, exam.ExamID)
	if err != nil {
		s.logger.Error("统计考生数量失败", zap.String("exam_id", exam.ExamID), zap.Error(err))
		return nil, err
	}
	withMarks, err := s.repo.ExamAttendee.CountWithMarksByExam(ctx, exam.ExamID)
	if err != nil {
		s.logger.Error("统计成绩录入数量失败", zap.String("exam_id", exam.ExamID), zap.Error(err))
		return nil, err
	}

	return &dto.ExamResponse{
		ID:             exam.ExamID,
		SessionID:      exam.SessionID,
		CourseID:       exam.CourseID,
		BatchID:        exam.BatchID,
		SubjectID:      exam.SubjectID,
		ExamCode:       exam.ExamCode,
		Name:           exam.Name,
		StartTime:      formatTimePtr(exam.StartTime),
		EndTime:        formatTimePtr(exam.EndTime),
		TotalMarks:     exam.TotalMarks,
		MinMarks:       exam.MinMarks,
		State:          exam.State,
		Note:           exam.Note,
		AttendeesCount: attendees,
		ResultsEntered: withMarks,
		Version:        exam.Version,
		CreatedAt:      exam.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      exam.UpdatedAt.Format(time.RFC3339),
	}, nil
}

// fail 基础设施错误记录日志，业务错误原样返回
func (s *examService) fail(msg, id string, err error) error {
	if !isBusinessError(err) {
		s.logger.Error(msg, zap.String("exam_id", id), zap.Error(err))
	}
	return err
}

// cancelExam 删除考生（释放考场）并置为已取消；供考试取消与场次级联取消复用
func cancelExam(ctx context.Context, repo *repository.Repository, exam *model.Exam, message string, actor Actor) error {
	if err := repo.ExamAttendee.DeleteByExam(ctx, exam.ExamID); err != nil {
		return err
	}
	from := exam.State
	exam.State = model.ExamStateCancelled
	exam.UpdatedBy = actor.userRef()
	if err := repo.Exam.Update(ctx, exam); err != nil {
		return err
	}
	return appendChangeLog(ctx, repo, model.EntityExam, exam.ExamID, from, model.ExamStateCancelled, message, actor)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
