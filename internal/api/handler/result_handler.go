package handler

import (
	"github.com/gin-gonic/gin"

	"opencampus/backend/internal/dto"
	"opencampus/backend/internal/service"
	"opencampus/backend/pkg/response"
)

// ResultHandler 等级配置、成绩模板与成绩单 HTTP 处理器
type ResultHandler struct {
	resultSvc service.ResultTemplateService
}

// NewResultHandler 创建 ResultHandler
func NewResultHandler(resultSvc service.ResultTemplateService) *ResultHandler {
	return &ResultHandler{resultSvc: resultSvc}
}

// ── 等级配置 ──

// ListGrades GET /api/v1/grade-configurations
func (h *ResultHandler) ListGrades(c *gin.Context) {
	var req dto.PaginationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, total, err := h.resultSvc.ListGrades(c.Request.Context(), &req, actor)
	if err != nil {
		handleServiceError(c, codeResult, err)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// CreateGrade POST /api/v1/grade-configurations
func (h *ResultHandler) CreateGrade(c *gin.Context) {
	var req dto.CreateGradeConfigurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	grade, err := h.resultSvc.CreateGrade(c.Request.Context(), &req, actor)
	if err != nil {
		handleServiceError(c, codeResult, err)
		return
	}
	response.Created(c, grade)
}

// ── 成绩模板 ──

// ListTemplates GET /api/v1/result-templates
func (h *ResultHandler) ListTemplates(c *gin.Context) {
	var req dto.ResultTemplateListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, total, err := h.resultSvc.List(c.Request.Context(), &req, actor)
	if err != nil {
		handleServiceError(c, codeResult, err)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// GetTemplate GET /api/v1/result-templates/:id
func (h *ResultHandler) GetTemplate(c *gin.Context) {
	template, err := h.resultSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, codeResult, err)
		return
	}
	response.OK(c, template)
}

// CreateTemplate POST /api/v1/result-templates
func (h *ResultHandler) CreateTemplate(c *gin.Context) {
	var req dto.CreateResultTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	template, err := h.resultSvc.Create(c.Request.Context(), &req, actor)
	if err != nil {
		handleServiceError(c, codeResult, err)
		return
	}
	response.Created(c, template)
}

// GenerateResult 生成成绩单，返回打开成绩单表单的动作
// POST /api/v1/result-templates/:id/generate
func (h *ResultHandler) GenerateResult(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	action, err := h.resultSvc.GenerateResult(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		handleServiceError(c, codeResult, err)
		return
	}
	response.OK(c, action)
}

// ── 成绩单 ──

// GetMarksheet GET /api/v1/marksheet-registers/:id
func (h *ResultHandler) GetMarksheet(c *gin.Context) {
	register, err := h.resultSvc.GetMarksheet(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, codeResult, err)
		return
	}
	response.OK(c, register)
}
