package dto

import "time"

// ── 认证 ──

// CurrentUserResponse 当前 Token 携带的调用方信息
type CurrentUserResponse struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	CompanyID string    `json:"company_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}
