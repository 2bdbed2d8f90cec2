package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"opencampus/backend/internal/dto"
	"opencampus/backend/internal/model"
	"opencampus/backend/internal/service"
	"opencampus/backend/pkg/response"
)

// ExamHandler 考试、考生与考场分配 HTTP 处理器
type ExamHandler struct {
	examSvc       service.ExamService
	attendeeSvc   service.ExamAttendeeService
	allocationSvc service.RoomAllocationService
	detector      service.ConflictDetector
}

// NewExamHandler 创建 ExamHandler
func NewExamHandler(
	examSvc service.ExamService,
	attendeeSvc service.ExamAttendeeService,
	allocationSvc service.RoomAllocationService,
	detector service.ConflictDetector,
) *ExamHandler {
	return &ExamHandler{
		examSvc:       examSvc,
		attendeeSvc:   attendeeSvc,
		allocationSvc: allocationSvc,
		detector:      detector,
	}
}

// ListExams 获取考试列表
// GET /api/v1/exams
func (h *ExamHandler) ListExams(c *gin.Context) {
	var req dto.ExamListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, total, err := h.examSvc.List(c.Request.Context(), &req, actor)
	if err != nil {
		handleServiceError(c, codeExam, err)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// GetExam 获取考试详情
// GET /api/v1/exams/:id
func (h *ExamHandler) GetExam(c *gin.Context) {
	exam, err := h.examSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, codeExam, err)
		return
	}
	response.OK(c, exam)
}

// CreateExam 创建考试
// POST /api/v1/exams
func (h *ExamHandler) CreateExam(c *gin.Context) {
	var req dto.CreateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	exam, err := h.examSvc.Create(c.Request.Context(), &req, actor)
	if err != nil {
		handleServiceError(c, codeExam, err)
		return
	}
	response.Created(c, exam)
}

// UpdateExam 更新考试（仅草稿）
// PUT /api/v1/exams/:id
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	var req dto.UpdateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	exam, err := h.examSvc.Update(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		handleServiceError(c, codeExam, err)
		return
	}
	response.OK(c, exam)
}

// ArchiveExam 归档考试（软删除）
// DELETE /api/v1/exams/:id
func (h *ExamHandler) ArchiveExam(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	if err := h.examSvc.Archive(c.Request.Context(), c.Param("id"), actor); err != nil {
		handleServiceError(c, codeExam, err)
		return
	}
	response.OK(c, nil)
}

// ── 状态流转 ──

type examTransition func(ctx context.Context, id string, actor service.Actor) (*dto.ExamResponse, error)

func (h *ExamHandler) transition(fn examTransition) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := MustGetActor(c)
		if !ok {
			return
		}
		exam, err := fn(c.Request.Context(), c.Param("id"), actor)
		if err != nil {
			handleServiceError(c, codeExam, err)
			return
		}
		response.OK(c, exam)
	}
}

// Schedule POST /api/v1/exams/:id/schedule
func (h *ExamHandler) Schedule(c *gin.Context) { h.transition(h.examSvc.Schedule)(c) }

// Held POST /api/v1/exams/:id/held
func (h *ExamHandler) Held(c *gin.Context) { h.transition(h.examSvc.Held)(c) }

// ResultUpdated POST /api/v1/exams/:id/result-updated
func (h *ExamHandler) ResultUpdated(c *gin.Context) { h.transition(h.examSvc.ResultUpdated)(c) }

// Done POST /api/v1/exams/:id/done
func (h *ExamHandler) Done(c *gin.Context) { h.transition(h.examSvc.Done)(c) }

// Cancel POST /api/v1/exams/:id/cancel
func (h *ExamHandler) Cancel(c *gin.Context) { h.transition(h.examSvc.Cancel)(c) }

// Draft POST /api/v1/exams/:id/draft
func (h *ExamHandler) Draft(c *gin.Context) { h.transition(h.examSvc.Draft)(c) }

// ── 考生 ──

// ListAttendees 获取考试考生列表
// GET /api/v1/exams/:id/attendees
func (h *ExamHandler) ListAttendees(c *gin.Context) {
	list, err := h.attendeeSvc.ListByExam(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, codeExam, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// AddAttendee 手动添加考生
// POST /api/v1/exams/:id/attendees
func (h *ExamHandler) AddAttendee(c *gin.Context) {
	var req dto.AddAttendeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	attendee, err := h.attendeeSvc.Add(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		handleServiceError(c, codeExam, err)
		return
	}
	response.Created(c, attendee)
}

// UpdateAttendee 登记考生出勤与成绩
// PUT /api/v1/exam-attendees/:id
func (h *ExamHandler) UpdateAttendee(c *gin.Context) {
	var req dto.UpdateAttendeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	attendee, err := h.attendeeSvc.Update(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		handleServiceError(c, codeExam, err)
		return
	}
	response.OK(c, attendee)
}

// AttendeesAction 考生列表视图
// GET /api/v1/exams/:id/attendees-action
func (h *ExamHandler) AttendeesAction(c *gin.Context) {
	action, err := h.examSvc.AttendeesAction(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, codeExam, err)
		return
	}
	response.OK(c, action)
}

// ── 考场分配 ──

// AllocationDefaults 分配表单默认值：花名册与有空位的考场
// GET /api/v1/exams/:id/allocation-defaults
func (h *ExamHandler) AllocationDefaults(c *gin.Context) {
	defaults, err := h.allocationSvc.Defaults(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, codeAllocation, err)
		return
	}
	response.OK(c, defaults)
}

// Allocate 按顺序填充考场
// POST /api/v1/exams/:id/allocate
func (h *ExamHandler) Allocate(c *gin.Context) {
	var req dto.AllocateRoomsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.allocationSvc.Allocate(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		handleServiceError(c, codeAllocation, err)
		return
	}
	response.OK(c, result)
}

// CheckConflicts 只读冲突检测
// POST /api/v1/exams/conflicts/check
func (h *ExamHandler) CheckConflicts(c *gin.Context) {
	var req dto.ConflictCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.detector.Detect(c.Request.Context(), service.ConflictQuery{
		Interval:      model.TimeInterval{Start: req.StartTime, End: req.EndTime},
		RoomIDs:       req.RoomIDs,
		StudentIDs:    req.StudentIDs,
		ExcludeExamID: req.ExcludeExamID,
	})
	if err != nil {
		handleServiceError(c, codeAllocation, err)
		return
	}
	response.OK(c, dto.ConflictCheckResponse{
		HasConflict: result.HasConflict(),
		RoomIDs:     nonNil(result.RoomIDs),
		StudentIDs:  nonNil(result.StudentIDs),
	})
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
