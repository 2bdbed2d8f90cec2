package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"opencampus/backend/internal/dto"
	"opencampus/backend/internal/model"
	"opencampus/backend/internal/repository"
)

// ── 考试场次模块业务错误 ──

var (
	ErrSessionNotFound       = newBizError(ErrNotFound, "考试场次不存在")
	ErrCourseNotFound        = newBizError(ErrNotFound, "课程不存在")
	ErrBatchNotFound         = newBizError(ErrNotFound, "班级不存在")
	ErrExamTypeNotFound      = newBizError(ErrNotFound, "考试类型不存在")
	ErrSessionDateInvalid    = newBizError(ErrValidation, "考试场次结束日期不能早于开始日期")
	ErrSessionCodeExists     = newBizError(ErrValidation, "考试场次编码已存在")
	ErrBatchCourseMismatch   = newBizError(ErrValidation, "班级不属于所选课程")
	ErrSessionNotEditable    = newBizError(ErrStateTransition, "仅草稿状态的考试场次可修改")
	ErrSessionIncomplete     = newBizError(ErrStateTransition, "排考前必须设置课程、班级和考试类型")
	ErrSessionNoExams        = newBizError(ErrStateTransition, "考试场次下至少需要一场考试")
	ErrSessionExamsNotDone   = newBizError(ErrStateTransition, "所有考试完成后才能结束考试场次")
	ErrSessionAlreadyDone    = newBizError(ErrStateTransition, "考试场次已完成，不可变更")
	ErrSessionBadTransition  = newBizError(ErrStateTransition, "考试场次当前状态不允许此操作")
	ErrSessionClosedForExams = newBizError(ErrStateTransition, "仅草稿或已排考的考试场次可新增考试")
)

const dateLayout = "2006-01-02"

// ExamSessionService 考试场次业务接口
type ExamSessionService interface {
	Create(ctx context.Context, req *dto.CreateExamSessionRequest, actor Actor) (*dto.ExamSessionResponse, error)
	GetByID(ctx context.Context, id string) (*dto.ExamSessionResponse, error)
	List(ctx context.Context, req *dto.ExamSessionListRequest, actor Actor) ([]dto.ExamSessionResponse, int64, error)
	Update(ctx context.Context, id string, req *dto.UpdateExamSessionRequest, actor Actor) (*dto.ExamSessionResponse, error)

	// 状态流转
	Schedule(ctx context.Context, id string, actor Actor) (*dto.ExamSessionResponse, error)
	Held(ctx context.Context, id string, actor Actor) (*dto.ExamSessionResponse, error)
	Done(ctx context.Context, id string, actor Actor) (*dto.ExamSessionResponse, error)
	Cancel(ctx context.Context, id string, actor Actor) (*dto.ExamSessionResponse, error)
	Draft(ctx context.Context, id string, actor Actor) (*dto.ExamSessionResponse, error)

	// NewExamAction 打开新建考试表单，默认值取自场次
	NewExamAction(ctx context.Context, id string) (*dto.ActionResponse, error)
	// ExamsAction 打开场次下的考试列表
	ExamsAction(ctx context.Context, id string) (*dto.ActionResponse, error)
}

type examSessionService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExamSessionService 创建 ExamSessionService 实例
func NewExamSessionService(repo *repository.Repository, logger *zap.Logger) ExamSessionService {
	return &examSessionService{repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *examSessionService) Create(ctx context.Context, req *dto.CreateExamSessionRequest, actor Actor) (*dto.ExamSessionResponse, error) {
	startDate, endDate, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	session := &model.ExamSession{
		Name:           req.Name,
		ExamCode:       req.ExamCode,
		CourseID:       req.CourseID,
		BatchID:        req.BatchID,
		EvaluationType: req.EvaluationType,
		StartDate:      startDate,
		EndDate:        endDate,
		Venue:          req.Venue,
		State:          model.SessionStateDraft,
		CompanyScoped:  actor.scope(),
	}
	if session.EvaluationType == "" {
		session.EvaluationType = "normal"
	}
	if req.ExamTypeID != "" {
		id := req.ExamTypeID
		session.ExamTypeID = &id
	}
	session.CreatedBy = actor.userRef()
	session.UpdatedBy = actor.userRef()

	if err := s.validate(ctx, session); err != nil {
		return nil, s.fail("校验考试场次失败", "", err)
	}

	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if err := txRepo.ExamSession.Create(ctx, session); err != nil {
			return err
		}
		return appendChangeLog(ctx, txRepo, model.EntityExamSession, session.SessionID, "", session.State, "创建考试场次", actor)
	})
	if err != nil {
		return nil, s.fail("创建考试场次失败", "", err)
	}

	return s.toResponse(ctx, session)
}

// ────────────────────── GetByID / List ──────────────────────

func (s *examSessionService) GetByID(ctx context.Context, id string) (*dto.ExamSessionResponse, error) {
	session, err := s.repo.ExamSession.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询考试场次失败", id, mapNotFound(err, ErrSessionNotFound))
	}
	return s.toResponse(ctx, session)
}

func (s *examSessionService) List(ctx context.Context, req *dto.ExamSessionListRequest, actor Actor) ([]dto.ExamSessionResponse, int64, error) {
	sessions, total, err := s.repo.ExamSession.List(ctx, repository.ExamSessionFilter{
		State:     req.State,
		CourseID:  req.CourseID,
		BatchID:   req.BatchID,
		CompanyID: actor.CompanyID,
	}, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出考试场次失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.ExamSessionResponse, 0, len(sessions))
	for i := range sessions {
		resp, err := s.toResponse(ctx, &sessions[i])
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *resp)
	}
	return result, total, nil
}

// ────────────────────── Update ──────────────────────

func (s *examSessionService) Update(ctx context.Context, id string, req *dto.UpdateExamSessionRequest, actor Actor) (*dto.ExamSessionResponse, error) {
	session, err := s.repo.ExamSession.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询考试场次失败", id, mapNotFound(err, ErrSessionNotFound))
	}
	if session.State != model.SessionStateDraft {
		return nil, ErrSessionNotEditable
	}

	if req.Name != nil {
		session.Name = *req.Name
	}
	if req.ExamCode != nil {
		session.ExamCode = *req.ExamCode
	}
	if req.ExamTypeID != nil {
		if *req.ExamTypeID == "" {
			session.ExamTypeID = nil
		} else {
			typeID := *req.ExamTypeID
			session.ExamTypeID = &typeID
		}
	}
	if req.EvaluationType != nil {
		session.EvaluationType = *req.EvaluationType
	}
	if req.Venue != nil {
		session.Venue = *req.Venue
	}
	startDate, endDate := session.StartDate.Format(dateLayout), session.EndDate.Format(dateLayout)
	if req.StartDate != nil {
		startDate = *req.StartDate
	}
	if req.EndDate != nil {
		endDate = *req.EndDate
	}
	if session.StartDate, session.EndDate, err = parseDateRange(startDate, endDate); err != nil {
		return nil, err
	}
	session.UpdatedBy = actor.userRef()

	if err := s.validate(ctx, session); err != nil {
		return nil, s.fail("校验考试场次失败", id, err)
	}
	if err := s.repo.ExamSession.Update(ctx, session); err != nil {
		return nil, s.fail("更新考试场次失败", id, err)
	}
	return s.toResponse(ctx, session)
}

// ────────────────────── 状态流转 ──────────────────────

func (s *examSessionService) Schedule(ctx context.Context, id string, actor Actor) (*dto.ExamSessionResponse, error) {
	return s.transition(ctx, id, model.SessionStateScheduled, "场次排考", actor,
		func(_ context.Context, _ *repository.Repository, session *model.ExamSession) error {
			if session.State != model.SessionStateDraft {
				return withDetail(ErrSessionBadTransition, "%s → %s", session.State, model.SessionStateScheduled)
			}
			if session.CourseID == "" || session.BatchID == "" || session.ExamTypeID == nil || *session.ExamTypeID == "" {
				return ErrSessionIncomplete
			}
			return nil
		})
}

func (s *examSessionService) Held(ctx context.Context, id string, actor Actor) (*dto.ExamSessionResponse, error) {
	return s.transition(ctx, id, model.SessionStateHeld, "场次开考", actor,
		func(ctx context.Context, txRepo *repository.Repository, session *model.ExamSession) error {
			if session.State != model.SessionStateScheduled {
				return withDetail(ErrSessionBadTransition, "%s → %s", session.State, model.SessionStateHeld)
			}
			exams, err := txRepo.Exam.ListBySession(ctx, session.SessionID)
			if err != nil {
				return err
			}
			if len(exams) == 0 {
				return ErrSessionNoExams
			}
			return nil
		})
}

func (s *examSessionService) Done(ctx context.Context, id string, actor Actor) (*dto.ExamSessionResponse, error) {
	return s.transition(ctx, id, model.SessionStateDone, "场次结束", actor,
		func(ctx context.Context, txRepo *repository.Repository, session *model.ExamSession) error {
			if session.State != model.SessionStateScheduled && session.State != model.SessionStateHeld {
				return withDetail(ErrSessionBadTransition, "%s → %s", session.State, model.SessionStateDone)
			}
			exams, err := txRepo.Exam.ListBySession(ctx, session.SessionID)
			if err != nil {
				return err
			}
			for i := range exams {
				if exams[i].State != model.ExamStateDone {
					return withDetail(ErrSessionExamsNotDone, "%s 当前为 %s", exams[i].ExamCode, exams[i].State)
				}
			}
			return nil
		})
}

// Cancel 取消场次，并级联取消其下草稿与已排考的考试
func (s *examSessionService) Cancel(ctx context.Context, id string, actor Actor) (*dto.ExamSessionResponse, error) {
	return s.transition(ctx, id, model.SessionStateCancelled, "取消考试场次", actor,
		func(ctx context.Context, txRepo *repository.Repository, session *model.ExamSession) error {
			if session.State == model.SessionStateDone {
				return ErrSessionAlreadyDone
			}
			exams, err := txRepo.Exam.ListBySession(ctx, session.SessionID)
			if err != nil {
				return err
			}
			for i := range exams {
				exam := &exams[i]
				if exam.State != model.ExamStateDraft && exam.State != model.ExamStateScheduled {
					continue
				}
				if err := cancelExam(ctx, txRepo, exam, "场次取消", actor); err != nil {
					return err
				}
			}
			return nil
		})
}

func (s *examSessionService) Draft(ctx context.Context, id string, actor Actor) (*dto.ExamSessionResponse, error) {
	return s.transition(ctx, id, model.SessionStateDraft, "场次退回草稿", actor,
		func(_ context.Context, _ *repository.Repository, session *model.ExamSession) error {
			if session.State == model.SessionStateDone {
				return ErrSessionAlreadyDone
			}
			return nil
		})
}

// ────────────────────── 界面动作 ──────────────────────

func (s *examSessionService) NewExamAction(ctx context.Context, id string) (*dto.ActionResponse, error) {
	session, err := s.repo.ExamSession.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询考试场次失败", id, mapNotFound(err, ErrSessionNotFound))
	}
	if session.State != model.SessionStateDraft && session.State != model.SessionStateScheduled {
		return nil, ErrSessionClosedForExams
	}
	return &dto.ActionResponse{
		Type:     "open_view",
		Model:    "exam",
		ViewMode: "form",
		Context: map[string]interface{}{
			"default_exam_session_id": session.SessionID,
			"default_course_id":       session.CourseID,
			"default_batch_id":        session.BatchID,
		},
	}, nil
}

func (s *examSessionService) ExamsAction(ctx context.Context, id string) (*dto.ActionResponse, error) {
	session, err := s.repo.ExamSession.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询考试场次失败", id, mapNotFound(err, ErrSessionNotFound))
	}
	return &dto.ActionResponse{
		Type:     "open_view",
		Model:    "exam",
		ViewMode: "list",
		Domain:   map[string]interface{}{"exam_session_id": session.SessionID},
		Context:  map[string]interface{}{"default_exam_session_id": session.SessionID},
	}, nil
}

// ────────────────────── 内部方法 ──────────────────────

type sessionGuard func(ctx context.Context, txRepo *repository.Repository, session *model.ExamSession) error

func (s *examSessionService) transition(ctx context.Context, id, to, message string, actor Actor, guard sessionGuard) (*dto.ExamSessionResponse, error) {
	var session *model.ExamSession
	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		var err error
		session, err = txRepo.ExamSession.GetByID(ctx, id)
		if err != nil {
			return mapNotFound(err, ErrSessionNotFound)
		}
		if err := guard(ctx, txRepo, session); err != nil {
			return err
		}
		from := session.State
		session.State = to
		session.UpdatedBy = actor.userRef()
		if err := txRepo.ExamSession.Update(ctx, session); err != nil {
			return err
		}
		return appendChangeLog(ctx, txRepo, model.EntityExamSession, session.SessionID, from, to, message, actor)
	})
	if err != nil {
		return nil, s.fail("考试场次状态变更失败", id, err)
	}
	return s.toResponse(ctx, session)
}

// validate 课程、班级归属、考试类型与编码唯一
func (s *examSessionService) validate(ctx context.Context, session *model.ExamSession) error {
	if _, err := s.repo.Academic.GetCourse(ctx, session.CourseID); err != nil {
		return mapNotFound(err, ErrCourseNotFound)
	}
	batch, err := s.repo.Academic.GetBatch(ctx, session.BatchID)
	if err != nil {
		return mapNotFound(err, ErrBatchNotFound)
	}
	if batch.CourseID != session.CourseID {
		return ErrBatchCourseMismatch
	}
	if session.ExamTypeID != nil {
		if _, err := s.repo.Academic.GetExamType(ctx, *session.ExamTypeID); err != nil {
			return mapNotFound(err, ErrExamTypeNotFound)
		}
	}

	exists, err := s.repo.ExamSession.ExistsByCode(ctx, session.ExamCode, session.SessionID)
	if err != nil {
		return err
	}
	if exists {
		return ErrSessionCodeExists
	}
	return nil
}

func (s *examSessionService) toResponse(ctx context.Context, session *model.ExamSession) (*dto.ExamSessionResponse, error) {
	exams, err := s.repo.Exam.ListBySession(ctx, session.SessionID)
	if err != nil {
		s.logger.Error("查询场次考试失败", zap.String("session_id", session.SessionID), zap.Error(err))
		return nil, err
	}

	resp := &dto.ExamSessionResponse{
		ID:             session.SessionID,
		Name:           session.Name,
		ExamCode:       session.ExamCode,
		CourseID:       session.CourseID,
		BatchID:        session.BatchID,
		EvaluationType: session.EvaluationType,
		StartDate:      session.StartDate.Format(dateLayout),
		EndDate:        session.EndDate.Format(dateLayout),
		Venue:          session.Venue,
		State:          session.State,
		ExamCount:      len(exams),
		Version:        session.Version,
		CreatedAt:      session.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      session.UpdatedAt.Format(time.RFC3339),
	}
	if session.ExamTypeID != nil {
		resp.ExamTypeID = *session.ExamTypeID
	}
	return resp, nil
}

func (s *examSessionService) fail(msg, id string, err error) error {
	if !isBusinessError(err) {
		s.logger.Error(msg, zap.String("session_id", id), zap.Error(err))
	}
	return err
}

// parseDateRange 解析 "2006-01-02" 格式的起止日期，结束日不得早于开始日
func parseDateRange(start, end string) (time.Time, time.Time, error) {
	startDate, err := time.Parse(dateLayout, start)
	if err != nil {
		return time.Time{}, time.Time{}, withDetail(ErrSessionDateInvalid, "开始日期格式错误")
	}
	endDate, err := time.Parse(dateLayout, end)
	if err != nil {
		return time.Time{}, time.Time{}, withDetail(ErrSessionDateInvalid, "结束日期格式错误")
	}
	if endDate.Before(startDate) {
		return time.Time{}, time.Time{}, ErrSessionDateInvalid
	}
	return startDate, endDate, nil
}
