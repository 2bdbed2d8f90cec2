package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ── 通用错误码 ──
// 业务错误码（11xxx 认证、2xxxx 排考与考勤）由 handler 按模块分段定义，这里只放跨模块共用的部分。

const (
	CodeOK              = 0
	CodeBindFailed      = 10001
	CodeUnauthenticated = 10002
	CodeForbidden       = 10003
	CodeRateLimited     = 10004
	CodeBodyTooLarge    = 10005
	CodeInternal        = 50000
)

// Response 排考与考勤接口的统一响应外壳。
// 排考冲突时 Data 携带冲突的考场与学生；参数绑定失败时 Details 携带校验器原文。
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Details string      `json:"details,omitempty"`
}

// Pagination 分页元数据
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PageData 列表接口（场次、考试、考场、考勤表、成绩模板等）的分页数据
type PageData struct {
	List       interface{} `json:"list"`
	Pagination Pagination  `json:"pagination"`
}

func write(c *gin.Context, status int, body Response) {
	c.JSON(status, body)
}

// ── 成功 ──

// OK 200
func OK(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, Response{Code: CodeOK, Message: "success", Data: data})
}

// Created 201，创建场次、考试、考场、登记簿等
func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, Response{Code: CodeOK, Message: "success", Data: data})
}

// OKPage 200 分页列表
func OKPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	OK(c, PageData{
		List: list,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages(total, pageSize),
		},
	})
}

func totalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

// ── 失败 ──

// Error 仅含错误码与文案
func Error(c *gin.Context, httpStatus int, code int, message string) {
	write(c, httpStatus, Response{Code: code, Message: message})
}

// ErrorWithData 错误响应附带结构化数据，用于排考冲突明细
func ErrorWithData(c *gin.Context, httpStatus int, code int, message string, data interface{}) {
	write(c, httpStatus, Response{Code: code, Message: message, Data: data})
}

// ErrorWithDetails 错误响应附带原始错误文本，用于参数绑定失败
func ErrorWithDetails(c *gin.Context, httpStatus int, code int, message, details string) {
	write(c, httpStatus, Response{Code: code, Message: message, Details: details})
}

// BadRequest 400：数据校验、容量不足、无可分配学生
func BadRequest(c *gin.Context, code int, message string) {
	Error(c, http.StatusBadRequest, code, message)
}

// Unauthorized 401
func Unauthorized(c *gin.Context, code int, message string) {
	Error(c, http.StatusUnauthorized, code, message)
}

// Forbidden 403
func Forbidden(c *gin.Context, code int, message string) {
	Error(c, http.StatusForbidden, code, message)
}

// NotFound 404
func NotFound(c *gin.Context, code int, message string) {
	Error(c, http.StatusNotFound, code, message)
}

// Conflict 409：排考冲突、状态流转不合法、乐观锁冲突
func Conflict(c *gin.Context, code int, message string) {
	Error(c, http.StatusConflict, code, message)
}

// InternalError 500，不向调用方暴露内部错误
func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, CodeInternal, "服务器内部错误")
}
