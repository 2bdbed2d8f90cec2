package service

import (
	"go.uber.org/zap"

	"opencampus/backend/config"
	"opencampus/backend/internal/repository"
	"opencampus/backend/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	ConflictDetector   ConflictDetector
	Generator          AttendanceGenerator
	RoomAllocation     RoomAllocationService
	ExamSession        ExamSessionService
	Exam               ExamService
	ExamAttendee       ExamAttendeeService
	ExamRoom           ExamRoomService
	AttendanceRegister AttendanceRegisterService
	AttendanceSheet    AttendanceSheetService
	ChangeLog          ChangeLogService
	ResultTemplate     ResultTemplateService
	Auth               AuthService
}

// NewService 创建 Service 聚合；rdb 为 nil 时考场分配不加分布式锁，注销不可用
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	rdb *redis.Client,
	logger *zap.Logger,
) *Service {
	var (
		locker  Locker
		revoker TokenRevoker
	)
	if rdb != nil {
		locker = rdb
		revoker = rdb
	}

	generator := NewAttendanceGenerator(&cfg.Attendance, repo, logger)

	return &Service{
		ConflictDetector:   NewConflictDetector(repo, logger),
		Generator:          generator,
		RoomAllocation:     NewRoomAllocationService(&cfg.Exam, repo, locker, logger),
		ExamSession:        NewExamSessionService(repo, logger),
		Exam:               NewExamService(repo, generator, logger),
		ExamAttendee:       NewExamAttendeeService(repo, logger),
		ExamRoom:           NewExamRoomService(repo, logger),
		AttendanceRegister: NewAttendanceRegisterService(&cfg.Attendance, repo, logger),
		AttendanceSheet:    NewAttendanceSheetService(&cfg.Attendance, repo, generator, logger),
		ChangeLog:          NewChangeLogService(repo, logger),
		ResultTemplate:     NewResultTemplateService(repo, logger),
		Auth:               NewAuthService(revoker, logger),
	}
}
