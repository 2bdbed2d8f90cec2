package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"opencampus/backend/internal/dto"
	"opencampus/backend/internal/service"
	"opencampus/backend/pkg/response"
)

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc service.AuthService
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Me 当前调用方
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	exp, _ := c.Get("token_exp")
	expiresAt, _ := exp.(time.Time)
	response.OK(c, dto.CurrentUserResponse{
		UserID:    actor.UserID,
		Role:      actor.Role,
		CompanyID: actor.CompanyID,
		ExpiresAt: expiresAt,
	})
}

// Logout 用户登出：当前 Token 加入黑名单
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	exp, _ := c.Get("token_exp")
	expiresAt, _ := exp.(time.Time)
	if err := h.authSvc.Logout(c.Request.Context(), c.GetString("token_jti"), expiresAt, actor); err != nil {
		handleServiceError(c, codeAuth, err)
		return
	}

	response.OK(c, nil)
}
