package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"opencampus/backend/config"
	"opencampus/backend/internal/dto"
	"opencampus/backend/internal/model"
	"opencampus/backend/internal/repository"
	pkgerrors "opencampus/backend/pkg/errors"
)

// ── 考场分配业务错误 ──

var (
	ErrAllocationEmptyInput = newBizError(ErrValidation, "考场与学生列表均不能为空")
	ErrAllocationDuplicate  = newBizError(ErrValidation, "考场或学生列表中存在重复项")
	ErrAllocationCapacity   = newBizError(ErrCapacity, "所选考场总容量小于学生人数")
	ErrAllocationBusy       = newBizError(ErrSchedulingConflict, "其他排考操作正在进行，请稍后重试")
)

// Locker 跨实例互斥锁
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RoomAllocationService 考场分配：按考场顺序依次填满，整体成功或整体失败
type RoomAllocationService interface {
	Allocate(ctx context.Context, examID string, req *dto.AllocateRoomsRequest, actor Actor) (*dto.AllocationResponse, error)
	// Defaults 分配表单默认值：考试所属课程班级的在读学生与可用考场
	Defaults(ctx context.Context, examID string) (*dto.AllocationDefaultsResponse, error)
}

type roomAllocationService struct {
	repo    *repository.Repository
	locker  Locker
	lockKey string
	lockTTL time.Duration
	logger  *zap.Logger
}

// NewRoomAllocationService 创建 RoomAllocationService 实例；locker 为 nil 时仅依赖数据库行锁
func NewRoomAllocationService(cfg *config.ExamConfig, repo *repository.Repository, locker Locker, logger *zap.Logger) RoomAllocationService {
	return &roomAllocationService{
		repo:    repo,
		locker:  locker,
		lockKey: cfg.AllocationLockKey,
		lockTTL: cfg.AllocationLockTTL,
		logger:  logger,
	}
}

// ────────────────────── Allocate ──────────────────────

func (s *roomAllocationService) Allocate(ctx context.Context, examID string, req *dto.AllocateRoomsRequest, actor Actor) (*dto.AllocationResponse, error) {
	// 1. 输入校验
	if len(req.RoomIDs) == 0 || len(req.StudentIDs) == 0 {
		return nil, ErrAllocationEmptyInput
	}
	if hasDuplicates(req.RoomIDs) || hasDuplicates(req.StudentIDs) {
		return nil, ErrAllocationDuplicate
	}

	// 2. 考试必须可排考且已设置时间
	exam, err := s.repo.Exam.GetByID(ctx, examID)
	if err != nil {
		return nil, s.fail("查询考试失败", examID, mapNotFound(err, ErrExamNotFound))
	}
	if err := checkAllocatable(exam); err != nil {
		return nil, err
	}
	interval, ok := exam.Interval()
	if !ok {
		return nil, ErrExamIncomplete
	}

	// 3. 考场与学生
	rooms, err := s.loadRooms(ctx, req.RoomIDs)
	if err != nil {
		return nil, s.fail("查询考场失败", examID, err)
	}
	students, err := s.repo.Academic.ListStudentsByIDs(ctx, req.StudentIDs)
	if err != nil {
		return nil, s.fail("查询学生失败", examID, err)
	}
	if len(students) != len(req.StudentIDs) {
		return nil, ErrStudentNotFound
	}

	// 4. 容量
	total := 0
	for i := range rooms {
		total += rooms[i].Capacity
	}
	if total < len(req.StudentIDs) {
		return nil, withDetail(ErrAllocationCapacity, "总容量 %d，学生 %d 人", total, len(req.StudentIDs))
	}

	// 5. 跨实例互斥，冲突检测与写入之间不允许其他排考插入
	if s.locker != nil {
		release, err := s.locker.Lock(ctx, s.lockKey, s.lockTTL)
		switch {
		case errors.Is(err, pkgerrors.ErrLockNotAcquired):
			return nil, ErrAllocationBusy
		case err != nil:
			s.logger.Warn("获取排考锁失败，仅依赖数据库行锁", zap.String("exam_id", examID), zap.Error(err))
		default:
			defer release()
		}
	}

	var (
		assignments []roomAssignment
		finalState  string
	)
	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		locked, err := txRepo.Exam.GetForUpdate(ctx, examID)
		if err != nil {
			return mapNotFound(err, ErrExamNotFound)
		}
		if err := checkAllocatable(locked); err != nil {
			return err
		}

		// 6. 冲突检测，排除本考试已有的分配
		conflicts, err := detectConflicts(ctx, txRepo, ConflictQuery{
			Interval:      interval,
			RoomIDs:       req.RoomIDs,
			StudentIDs:    req.StudentIDs,
			ExcludeExamID: examID,
		})
		if err != nil {
			return err
		}
		if conflicts.HasConflict() {
			return newConflictError(conflicts, rooms, students)
		}

		// 7. 替换原有分配
		if err := txRepo.ExamAttendee.DeleteByExam(ctx, examID); err != nil {
			return err
		}
		assignments = firstFitAllocate(rooms, req.StudentIDs)

		attendees := make([]model.ExamAttendee, 0, len(req.StudentIDs))
		for i := range assignments {
			roomID := assignments[i].Room.RoomID
			for _, studentID := range assignments[i].StudentIDs {
				a := model.ExamAttendee{
					ExamID:    examID,
					StudentID: studentID,
					RoomID:    &roomID,
					Status:    model.AttendeeStatusPresent,
					CourseID:  locked.CourseID,
					BatchID:   locked.BatchID,
				}
				a.CreatedBy = actor.userRef()
				a.UpdatedBy = actor.userRef()
				attendees = append(attendees, a)
			}
		}
		if err := txRepo.ExamAttendee.BatchCreate(ctx, attendees); err != nil {
			return err
		}

		from := locked.State
		locked.State = model.ExamStateScheduled
		locked.UpdatedBy = actor.userRef()
		if err := txRepo.Exam.Update(ctx, locked); err != nil {
			return err
		}
		finalState = locked.State
		return appendChangeLog(ctx, txRepo, model.EntityExam, examID, from, locked.State, "考场分配", actor)
	})
	if err != nil {
		return nil, s.fail("考场分配失败", examID, err)
	}

	s.logger.Info("考场分配完成",
		zap.String("exam_id", examID),
		zap.Int("rooms", len(rooms)),
		zap.Int("students", len(req.StudentIDs)),
	)

	resp := &dto.AllocationResponse{
		ExamID:        examID,
		State:         finalState,
		TotalStudents: len(req.StudentIDs),
		Rooms:         make([]dto.RoomAllocationResponse, 0, len(assignments)),
	}
	for i := range assignments {
		resp.Rooms = append(resp.Rooms, dto.RoomAllocationResponse{
			RoomID:     assignments[i].Room.RoomID,
			RoomName:   assignments[i].Room.Name,
			Capacity:   assignments[i].Room.Capacity,
			StudentIDs: assignments[i].StudentIDs,
		})
	}
	return resp, nil
}

// ────────────────────── Defaults ──────────────────────

func (s *roomAllocationService) Defaults(ctx context.Context, examID string) (*dto.AllocationDefaultsResponse, error) {
	exam, err := s.repo.Exam.GetByID(ctx, examID)
	if err != nil {
		return nil, s.fail("查询考试失败", examID, mapNotFound(err, ErrExamNotFound))
	}

	studentIDs, err := s.repo.Academic.ListActiveStudentIDs(ctx, exam.CourseID, exam.BatchID)
	if err != nil {
		return nil, s.fail("查询花名册失败", examID, err)
	}

	var companyID string
	if exam.CompanyID != nil {
		companyID = *exam.CompanyID
	}
	rooms, _, err := s.repo.ExamRoom.List(ctx, repository.ExamRoomFilter{ActiveOnly: true, CompanyID: companyID}, 0, 500)
	if err != nil {
		return nil, s.fail("查询考场失败", examID, err)
	}

	resp := &dto.AllocationDefaultsResponse{
		ExamID:     examID,
		StudentIDs: studentIDs,
		Rooms:      make([]dto.ExamRoomResponse, 0, len(rooms)),
	}
	if resp.StudentIDs == nil {
		resp.StudentIDs = []string{}
	}
	for i := range rooms {
		room, err := examRoomResponse(ctx, s.repo, &rooms[i])
		if err != nil {
			return nil, s.fail("统计考场占用失败", examID, err)
		}
		if room.AvailableSeats > 0 {
			resp.Rooms = append(resp.Rooms, *room)
		}
	}
	return resp, nil
}

// ────────────────────── 内部方法 ──────────────────────

// loadRooms 按请求顺序返回考场，缺失或停用的考场直接报错
func (s *roomAllocationService) loadRooms(ctx context.Context, ids []string) ([]model.ExamRoom, error) {
	found, err := s.repo.ExamRoom.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.ExamRoom, len(found))
	for i := range found {
		byID[found[i].RoomID] = found[i]
	}

	rooms := make([]model.ExamRoom, 0, len(ids))
	for _, id := range ids {
		room, ok := byID[id]
		if !ok {
			return nil, withDetail(ErrExamRoomNotFound, "%s", id)
		}
		if !room.Active {
			return nil, withDetail(ErrRoomInactive, "%s", room.Name)
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (s *roomAllocationService) fail(msg, id string, err error) error {
	if !isBusinessError(err) {
		s.logger.Error(msg, zap.String("exam_id", id), zap.Error(err))
	}
	return err
}

func checkAllocatable(exam *model.Exam) error {
	if exam.State != model.ExamStateDraft && exam.State != model.ExamStateScheduled {
		return withDetail(ErrExamBadTransition, "当前状态 %s 不可分配考场", exam.State)
	}
	return nil
}

// newConflictError 将冲突 ID 解析为考场名与学生名
func newConflictError(c *ConflictResult, rooms []model.ExamRoom, students []model.Student) *SchedulingConflictError {
	roomNames := make(map[string]string, len(rooms))
	for i := range rooms {
		roomNames[rooms[i].RoomID] = rooms[i].Name
	}
	studentNames := make(map[string]string, len(students))
	for i := range students {
		studentNames[students[i].StudentID] = students[i].DisplayName()
	}

	e := &SchedulingConflictError{}
	for _, id := range c.RoomIDs {
		e.Rooms = append(e.Rooms, nameOr(roomNames, id))
	}
	for _, id := range c.StudentIDs {
		e.Students = append(e.Students, nameOr(studentNames, id))
	}
	return e
}

func nameOr(names map[string]string, id string) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return id
}

// roomAssignment 单个考场分到的学生（保持输入顺序）
type roomAssignment struct {
	Room       model.ExamRoom
	StudentIDs []string
}

// firstFitAllocate 依次填满每个考场后再进入下一个；调用方保证总容量足够
func firstFitAllocate(rooms []model.ExamRoom, studentIDs []string) []roomAssignment {
	result := make([]roomAssignment, 0, len(rooms))
	next := 0
	for _, room := range rooms {
		a := roomAssignment{Room: room, StudentIDs: []string{}}
		for len(a.StudentIDs) < room.Capacity && next < len(studentIDs) {
			a.StudentIDs = append(a.StudentIDs, studentIDs[next])
			next++
		}
		result = append(result, a)
	}
	return result
}
