package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"opencampus/backend/internal/dto"
	"opencampus/backend/internal/model"
	"opencampus/backend/internal/repository"
)

// ChangeLogService 状态变更日志查询接口
type ChangeLogService interface {
	List(ctx context.Context, req *dto.ChangeLogListRequest) ([]dto.ChangeLogResponse, int64, error)
}

type changeLogService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewChangeLogService 创建 ChangeLogService 实例
func NewChangeLogService(repo *repository.Repository, logger *zap.Logger) ChangeLogService {
	return &changeLogService{repo: repo, logger: logger}
}

func (s *changeLogService) List(ctx context.Context, req *dto.ChangeLogListRequest) ([]dto.ChangeLogResponse, int64, error) {
	logs, total, err := s.repo.ChangeLog.ListByEntity(ctx, req.EntityType, req.EntityID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询变更日志失败", zap.String("entity_id", req.EntityID), zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.ChangeLogResponse, 0, len(logs))
	for i := range logs {
		l := &logs[i]
		result = append(result, dto.ChangeLogResponse{
			ID:         l.ChangeLogID,
			EntityType: l.EntityType,
			EntityID:   l.EntityID,
			FromState:  l.FromState,
			ToState:    l.ToState,
			Message:    l.Message,
			ActorID:    l.ActorID,
			CreatedAt:  l.CreatedAt.Format(time.RFC3339),
		})
	}
	return result, total, nil
}

// appendChangeLog 在状态流转点追加一条日志，应与业务写入处于同一事务
func appendChangeLog(ctx context.Context, repo *repository.Repository, entityType, entityID, from, to, message string, actor Actor) error {
	return repo.ChangeLog.Create(ctx, &model.ChangeLog{
		EntityType: entityType,
		EntityID:   entityID,
		FromState:  from,
		ToState:    to,
		Message:    message,
		ActorID:    actor.UserID,
		CompanyID:  actor.companyRef(),
		CreatedAt:  time.Now(),
	})
}
