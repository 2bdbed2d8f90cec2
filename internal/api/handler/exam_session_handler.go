package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"opencampus/backend/internal/dto"
	"opencampus/backend/internal/service"
	"opencampus/backend/pkg/response"
)

// ExamSessionHandler 考试场次 HTTP 处理器
type ExamSessionHandler struct {
	sessionSvc service.ExamSessionService
}

// NewExamSessionHandler 创建 ExamSessionHandler
func NewExamSessionHandler(sessionSvc service.ExamSessionService) *ExamSessionHandler {
	return &ExamSessionHandler{sessionSvc: sessionSvc}
}

// ListSessions 获取考试场次列表
// GET /api/v1/exam-sessions
func (h *ExamSessionHandler) ListSessions(c *gin.Context) {
	var req dto.ExamSessionListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, total, err := h.sessionSvc.List(c.Request.Context(), &req, actor)
	if err != nil {
		handleServiceError(c, codeSession, err)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// GetSession 获取考试场次详情
// GET /api/v1/exam-sessions/:id
func (h *ExamSessionHandler) GetSession(c *gin.Context) {
	session, err := h.sessionSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, codeSession, err)
		return
	}
	response.OK(c, session)
}

// CreateSession 创建考试场次
// POST /api/v1/exam-sessions
func (h *ExamSessionHandler) CreateSession(c *gin.Context) {
	var req dto.CreateExamSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	session, err := h.sessionSvc.Create(c.Request.Context(), &req, actor)
	if err != nil {
		handleServiceError(c, codeSession, err)
		return
	}
	response.Created(c, session)
}

// UpdateSession 更新考试场次（仅草稿）
// PUT /api/v1/exam-sessions/:id
func (h *ExamSessionHandler) UpdateSession(c *gin.Context) {
	var req dto.UpdateExamSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	session, err := h.sessionSvc.Update(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		handleServiceError(c, codeSession, err)
		return
	}
	response.OK(c, session)
}

// ── 状态流转 ──

type sessionTransition func(ctx context.Context, id string, actor service.Actor) (*dto.ExamSessionResponse, error)

func (h *ExamSessionHandler) transition(fn sessionTransition) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := MustGetActor(c)
		if !ok {
			return
		}
		session, err := fn(c.Request.Context(), c.Param("id"), actor)
		if err != nil {
			handleServiceError(c, codeSession, err)
			return
		}
		response.OK(c, session)
	}
}

// Schedule POST /api/v1/exam-sessions/:id/schedule
func (h *ExamSessionHandler) Schedule(c *gin.Context) { h.transition(h.sessionSvc.Schedule)(c) }

// Held POST /api/v1/exam-sessions/:id/held
func (h *ExamSessionHandler) Held(c *gin.Context) { h.transition(h.sessionSvc.Held)(c) }

// Done POST /api/v1/exam-sessions/:id/done
func (h *ExamSessionHandler) Done(c *gin.Context) { h.transition(h.sessionSvc.Done)(c) }

// Cancel POST /api/v1/exam-sessions/:id/cancel
func (h *ExamSessionHandler) Cancel(c *gin.Context) { h.transition(h.sessionSvc.Cancel)(c) }

// Draft POST /api/v1/exam-sessions/:id/draft
func (h *ExamSessionHandler) Draft(c *gin.Context) { h.transition(h.sessionSvc.Draft)(c) }

// ── 界面动作 ──

// NewExamAction 新建考试表单的默认值
// GET /api/v1/exam-sessions/:id/new-exam-action
func (h *ExamSessionHandler) NewExamAction(c *gin.Context) {
	action, err := h.sessionSvc.NewExamAction(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, codeSession, err)
		return
	}
	response.OK(c, action)
}

// ExamsAction 场次下的考试列表视图
// GET /api/v1/exam-sessions/:id/exams-action
func (h *ExamSessionHandler) ExamsAction(c *gin.Context) {
	action, err := h.sessionSvc.ExamsAction(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, codeSession, err)
		return
	}
	response.OK(c, action)
}
