package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"opencampus/backend/internal/service"
	pkgerrors "opencampus/backend/pkg/errors"
	"opencampus/backend/pkg/response"
)

// ── 业务错误码 ──
// 11xxx 认证；业务模块每个占一个千位段，段内按错误类别偏移：
// 20xxx 考试场次 / 21xxx 考试 / 22xxx 考场 / 23xxx 考场分配 / 24xxx 考勤登记簿 / 25xxx 考勤表
// 26xxx 变更日志 / 27xxx 成绩模板与成绩单

const (
	codeAuth       = 11000
	codeSession    = 20000
	codeExam       = 21000
	codeRoom       = 22000
	codeAllocation = 23000
	codeRegister   = 24000
	codeSheet      = 25000
	codeChangeLog  = 26000
	codeResult     = 27000
)

const (
	offsetNotFound = iota + 1
	offsetValidation
	offsetCapacity
	offsetConflict
	offsetNoEligible
	offsetStateTransition
	offsetOptimisticLock
)

// conflictDetail 排考冲突响应数据
type conflictDetail struct {
	Rooms    []string `json:"rooms"`
	Students []string `json:"students"`
}

// handleServiceError 按错误类别映射 HTTP 状态与错误码，message 直接使用业务错误文案
func handleServiceError(c *gin.Context, base int, err error) {
	var ce *service.SchedulingConflictError
	switch {
	case errors.As(err, &ce):
		response.ErrorWithData(c, http.StatusConflict, base+offsetConflict, err.Error(), conflictDetail{
			Rooms:    ce.Rooms,
			Students: ce.Students,
		})
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, base+offsetNotFound, err.Error())
	case errors.Is(err, service.ErrValidation):
		response.BadRequest(c, base+offsetValidation, err.Error())
	case errors.Is(err, service.ErrCapacity):
		response.BadRequest(c, base+offsetCapacity, err.Error())
	case errors.Is(err, service.ErrNoEligibleStudents):
		response.BadRequest(c, base+offsetNoEligible, err.Error())
	case errors.Is(err, service.ErrSchedulingConflict):
		response.Conflict(c, base+offsetConflict, err.Error())
	case errors.Is(err, service.ErrStateTransition):
		response.Conflict(c, base+offsetStateTransition, err.Error())
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, base+offsetOptimisticLock, err.Error())
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}

// bindError 参数绑定失败统一返回 10001；请求体超限返回 413
func bindError(c *gin.Context, err error) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeBodyTooLarge, "请求体过大")
		return
	}
	response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeBindFailed, "参数校验失败", err.Error())
}
