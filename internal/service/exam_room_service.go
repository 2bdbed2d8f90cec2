package service

import (
	"context"

	"go.uber.org/zap"

	"opencampus/backend/internal/dto"
	"opencampus/backend/internal/model"
	"opencampus/backend/internal/repository"
)

// ── 考场模块业务错误 ──

var (
	ErrExamRoomNotFound     = newBizError(ErrNotFound, "考场不存在")
	ErrClassroomNotFound    = newBizError(ErrNotFound, "教室不存在")
	ErrRoomCapacityNegative = newBizError(ErrValidation, "考场容量不能为负数")
	ErrRoomCapacityExceeded = newBizError(ErrValidation, "考场容量不能超过教室容量")
	ErrRoomInactive         = newBizError(ErrValidation, "考场已停用")
)

// ExamRoomService 考场业务接口
type ExamRoomService interface {
	Create(ctx context.Context, req *dto.CreateExamRoomRequest, actor Actor) (*dto.ExamRoomResponse, error)
	GetByID(ctx context.Context, id string) (*dto.ExamRoomResponse, error)
	List(ctx context.Context, req *dto.ExamRoomListRequest, actor Actor) ([]dto.ExamRoomResponse, int64, error)
	Update(ctx context.Context, id string, req *dto.UpdateExamRoomRequest, actor Actor) (*dto.ExamRoomResponse, error)
}

type examRoomService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExamRoomService 创建 ExamRoomService 实例
func NewExamRoomService(repo *repository.Repository, logger *zap.Logger) ExamRoomService {
	return &examRoomService{repo: repo, logger: logger}
}

func (s *examRoomService) Create(ctx context.Context, req *dto.CreateExamRoomRequest, actor Actor) (*dto.ExamRoomResponse, error) {
	classroom, err := s.repo.Academic.GetClassroom(ctx, req.ClassroomID)
	if err != nil {
		return nil, s.fail("查询教室失败", req.ClassroomID, mapNotFound(err, ErrClassroomNotFound))
	}
	if err := checkRoomCapacity(req.Capacity, classroom); err != nil {
		return nil, err
	}

	room := &model.ExamRoom{
		Name:          req.Name,
		ClassroomID:   classroom.ClassroomID,
		Capacity:      req.Capacity,
		Active:        true,
		CompanyScoped: actor.scope(),
		Classroom:     classroom,
	}
	room.CreatedBy = actor.userRef()
	room.UpdatedBy = actor.userRef()

	if err := s.repo.ExamRoom.Create(ctx, room); err != nil {
		return nil, s.fail("创建考场失败", "", err)
	}
	return s.toResponse(ctx, room)
}

func (s *examRoomService) GetByID(ctx context.Context, id string) (*dto.ExamRoomResponse, error) {
	room, err := s.repo.ExamRoom.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询考场失败", id, mapNotFound(err, ErrExamRoomNotFound))
	}
	return s.toResponse(ctx, room)
}

func (s *examRoomService) List(ctx context.Context, req *dto.ExamRoomListRequest, actor Actor) ([]dto.ExamRoomResponse, int64, error) {
	rooms, total, err := s.repo.ExamRoom.List(ctx, repository.ExamRoomFilter{
		ActiveOnly: req.ActiveOnly,
		CompanyID:  actor.CompanyID,
	}, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出考场失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.ExamRoomResponse, 0, len(rooms))
	for i := range rooms {
		resp, err := s.toResponse(ctx, &rooms[i])
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *resp)
	}
	return result, total, nil
}

func (s *examRoomService) Update(ctx context.Context, id string, req *dto.UpdateExamRoomRequest, actor Actor) (*dto.ExamRoomResponse, error) {
	room, err := s.repo.ExamRoom.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询考场失败", id, mapNotFound(err, ErrExamRoomNotFound))
	}

	if req.Name != nil {
		room.Name = *req.Name
	}
	if req.Active != nil {
		room.Active = *req.Active
	}
	if req.Capacity != nil {
		classroom := room.Classroom
		if classroom == nil {
			if classroom, err = s.repo.Academic.GetClassroom(ctx, room.ClassroomID); err != nil {
				return nil, s.fail("查询教室失败", room.ClassroomID, mapNotFound(err, ErrClassroomNotFound))
			}
		}
		if err := checkRoomCapacity(*req.Capacity, classroom); err != nil {
			return nil, err
		}
		room.Capacity = *req.Capacity
	}
	room.UpdatedBy = actor.userRef()

	if err := s.repo.ExamRoom.Update(ctx, room); err != nil {
		return nil, s.fail("更新考场失败", id, err)
	}
	return s.toResponse(ctx, room)
}

func (s *examRoomService) toResponse(ctx context.Context, room *model.ExamRoom) (*dto.ExamRoomResponse, error) {
	resp, err := examRoomResponse(ctx, s.repo, room)
	if err != nil {
		s.logger.Error("统计考场占用失败", zap.String("room_id", room.RoomID), zap.Error(err))
		return nil, err
	}
	return resp, nil
}

func (s *examRoomService) fail(msg, id string, err error) error {
	if !isBusinessError(err) {
		s.logger.Error(msg, zap.String("id", id), zap.Error(err))
	}
	return err
}

// checkRoomCapacity 0 <= 考场容量 <= 教室容量
func checkRoomCapacity(capacity int, classroom *model.Classroom) error {
	if capacity < 0 {
		return ErrRoomCapacityNegative
	}
	if capacity > classroom.Capacity {
		return withDetail(ErrRoomCapacityExceeded, "教室容量 %d", classroom.Capacity)
	}
	return nil
}

// examRoomResponse 已分配人数只统计占用中考试的考生
func examRoomResponse(ctx context.Context, repo *repository.Repository, room *model.ExamRoom) (*dto.ExamRoomResponse, error) {
	allocated, err := repo.ExamAttendee.CountByRoom(ctx, room.RoomID, model.ActiveExamStates)
	if err != nil {
		return nil, err
	}
	available := int64(room.Capacity) - allocated
	if available < 0 {
		available = 0
	}
	return &dto.ExamRoomResponse{
		ID:             room.RoomID,
		Name:           room.Name,
		ClassroomID:    room.ClassroomID,
		Capacity:       room.Capacity,
		AllocatedCount: allocated,
		AvailableSeats: available,
		Active:         room.Active,
	}, nil
}
