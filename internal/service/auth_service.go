package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

var (
	ErrAuthTokenMissing = newBizError(ErrValidation, "Token 缺少 jti，无法注销")
	ErrAuthUnavailable  = newBizError(ErrStateTransition, "Token 黑名单不可用，暂不支持注销")
)

// TokenRevoker Token 黑名单存储
type TokenRevoker interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
}

// AuthService 认证业务接口；Token 由统一身份服务签发，本服务只负责注销
type AuthService interface {
	// Logout 将 Token 的 jti 写入黑名单，有效期与 Token 剩余时间一致
	Logout(ctx context.Context, jti string, expiresAt time.Time, actor Actor) error
}

type authService struct {
	revoker TokenRevoker
	logger  *zap.Logger
	now     func() time.Time
}

// NewAuthService 创建 AuthService 实例；revoker 为 nil 时注销返回 ErrAuthUnavailable
func NewAuthService(revoker TokenRevoker, logger *zap.Logger) AuthService {
	return &authService{
		revoker: revoker,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *authService) Logout(ctx context.Context, jti string, expiresAt time.Time, actor Actor) error {
	if jti == "" {
		return ErrAuthTokenMissing
	}
	if s.revoker == nil {
		return ErrAuthUnavailable
	}

	ttl := expiresAt.Sub(s.now())
	if err := s.revoker.BlacklistToken(ctx, jti, ttl); err != nil {
		s.logger.Error("写入 Token 黑名单失败", zap.String("user_id", actor.UserID), zap.Error(err))
		return err
	}

	s.logger.Info("用户已注销", zap.String("user_id", actor.UserID), zap.Duration("ttl", ttl))
	return nil
}
