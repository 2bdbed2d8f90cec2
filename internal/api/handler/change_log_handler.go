package handler

import (
	"github.com/gin-gonic/gin"

	"opencampus/backend/internal/dto"
	"opencampus/backend/internal/service"
	"opencampus/backend/pkg/response"
)

// ChangeLogHandler 状态变更日志查询
type ChangeLogHandler struct {
	changeLogSvc service.ChangeLogService
}

// NewChangeLogHandler 创建 ChangeLogHandler
func NewChangeLogHandler(changeLogSvc service.ChangeLogService) *ChangeLogHandler {
	return &ChangeLogHandler{changeLogSvc: changeLogSvc}
}

// ListChangeLogs GET /api/v1/change-logs?entity_type=&entity_id=
func (h *ChangeLogHandler) ListChangeLogs(c *gin.Context) {
	var req dto.ChangeLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	list, total, err := h.changeLogSvc.List(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, codeChangeLog, err)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}
