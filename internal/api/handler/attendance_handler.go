package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"opencampus/backend/internal/dto"
	"opencampus/backend/internal/service"
	"opencampus/backend/pkg/response"
)

// AttendanceHandler 考勤登记簿、考勤表与考勤明细 HTTP 处理器
type AttendanceHandler struct {
	registerSvc service.AttendanceRegisterService
	sheetSvc    service.AttendanceSheetService
}

// NewAttendanceHandler 创建 AttendanceHandler
func NewAttendanceHandler(registerSvc service.AttendanceRegisterService, sheetSvc service.AttendanceSheetService) *AttendanceHandler {
	return &AttendanceHandler{registerSvc: registerSvc, sheetSvc: sheetSvc}
}

// ────────────────────── 登记簿 ──────────────────────

// ListRegisters GET /api/v1/attendance-registers
func (h *AttendanceHandler) ListRegisters(c *gin.Context) {
	var req dto.AttendanceRegisterListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, total, err := h.registerSvc.List(c.Request.Context(), &req, actor)
	if err != nil {
		handleServiceError(c, codeRegister, err)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// GetRegister GET /api/v1/attendance-registers/:id
func (h *AttendanceHandler) GetRegister(c *gin.Context) {
	register, err := h.registerSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, codeRegister, err)
		return
	}
	response.OK(c, register)
}

// CreateRegister POST /api/v1/attendance-registers
func (h *AttendanceHandler) CreateRegister(c *gin.Context) {
	var req dto.CreateAttendanceRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	register, err := h.registerSvc.Create(c.Request.Context(), &req, actor)
	if err != nil {
		handleServiceError(c, codeRegister, err)
		return
	}
	response.Created(c, register)
}

// OpenTodaySheet 打开（必要时新建）登记簿当天的考勤表
// POST /api/v1/attendance-registers/:id/today-sheet
func (h *AttendanceHandler) OpenTodaySheet(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	action, err := h.registerSvc.OpenTodaySheet(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		handleServiceError(c, codeRegister, err)
		return
	}
	response.OK(c, action)
}

// ────────────────────── 考勤表 ──────────────────────

// ListSheets GET /api/v1/attendance-sheets
func (h *AttendanceHandler) ListSheets(c *gin.Context) {
	var req dto.AttendanceSheetListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, total, err := h.sheetSvc.List(c.Request.Context(), &req, actor)
	if err != nil {
		handleServiceError(c, codeSheet, err)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// GetSheet 考勤表详情（含明细）
// GET /api/v1/attendance-sheets/:id
func (h *AttendanceHandler) GetSheet(c *gin.Context) {
	sheet, err := h.sheetSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, codeSheet, err)
		return
	}
	response.OK(c, sheet)
}

// CreateSheet POST /api/v1/attendance-sheets
func (h *AttendanceHandler) CreateSheet(c *gin.Context) {
	var req dto.CreateAttendanceSheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	sheet, err := h.sheetSvc.Create(c.Request.Context(), &req, actor)
	if err != nil {
		handleServiceError(c, codeSheet, err)
		return
	}
	response.Created(c, sheet)
}

type sheetTransition func(ctx context.Context, id string, actor service.Actor) (*dto.AttendanceSheetResponse, error)

func (h *AttendanceHandler) transition(fn sheetTransition) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := MustGetActor(c)
		if !ok {
			return
		}
		sheet, err := fn(c.Request.Context(), c.Param("id"), actor)
		if err != nil {
			handleServiceError(c, codeSheet, err)
			return
		}
		response.OK(c, sheet)
	}
}

// StartSheet POST /api/v1/attendance-sheets/:id/start
func (h *AttendanceHandler) StartSheet(c *gin.Context) { h.transition(h.sheetSvc.Start)(c) }

// DraftSheet POST /api/v1/attendance-sheets/:id/draft
func (h *AttendanceHandler) DraftSheet(c *gin.Context) { h.transition(h.sheetSvc.Draft)(c) }

// DoneSheet POST /api/v1/attendance-sheets/:id/done
func (h *AttendanceHandler) DoneSheet(c *gin.Context) { h.transition(h.sheetSvc.Done)(c) }

// CancelSheet POST /api/v1/attendance-sheets/:id/cancel
func (h *AttendanceHandler) CancelSheet(c *gin.Context) { h.transition(h.sheetSvc.Cancel)(c) }

// GenerateLines 按花名册补齐明细，可重复调用
// POST /api/v1/attendance-sheets/:id/generate-lines
func (h *AttendanceHandler) GenerateLines(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.sheetSvc.GenerateLines(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		handleServiceError(c, codeSheet, err)
		return
	}
	response.OK(c, result)
}

// MarkLine 登记单个学生考勤
// PUT /api/v1/attendance-lines/:id
func (h *AttendanceHandler) MarkLine(c *gin.Context) {
	var req dto.MarkAttendanceLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	line, err := h.sheetSvc.MarkLine(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		handleServiceError(c, codeSheet, err)
		return
	}
	response.OK(c, line)
}
