package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"opencampus/backend/internal/model"
	"opencampus/backend/internal/repository"
)

// ConflictQuery 冲突检测输入
type ConflictQuery struct {
	Interval      model.TimeInterval
	RoomIDs       []string
	StudentIDs    []string
	ExcludeExamID string   // 正在（重新）排考的考试，不与自身比较
	ActiveStates  []string // 为空时使用 model.ActiveExamStates
}

// ConflictResult 冲突检测结果，两个集合均为空表示无冲突
type ConflictResult struct {
	RoomIDs    []string `json:"exam_room_ids"`
	StudentIDs []string `json:"student_ids"`
}

// HasConflict 是否存在任一冲突
func (r *ConflictResult) HasConflict() bool {
	return len(r.RoomIDs) > 0 || len(r.StudentIDs) > 0
}

// ConflictDetector 考场/考生时间冲突检测，只读
type ConflictDetector interface {
	Detect(ctx context.Context, q ConflictQuery) (*ConflictResult, error)
}

type conflictDetector struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewConflictDetector 创建 ConflictDetector 实例
func NewConflictDetector(repo *repository.Repository, logger *zap.Logger) ConflictDetector {
	return &conflictDetector{repo: repo, logger: logger}
}

func (d *conflictDetector) Detect(ctx context.Context, q ConflictQuery) (*ConflictResult, error) {
	return detectConflicts(ctx, d.repo, q)
}

// detectConflicts 供事务内复用：repo 可以是事务绑定的聚合
func detectConflicts(ctx context.Context, repo *repository.Repository, q ConflictQuery) (*ConflictResult, error) {
	if err := q.Interval.Validate(); err != nil {
		return nil, withDetail(ErrInvalidExamTime, "%v", err)
	}

	states := q.ActiveStates
	if len(states) == 0 {
		states = model.ActiveExamStates
	}

	bookings, err := repo.ExamAttendee.ListBookings(ctx, repository.BookingFilter{
		Interval:      q.Interval,
		RoomIDs:       q.RoomIDs,
		StudentIDs:    q.StudentIDs,
		ExcludeExamID: q.ExcludeExamID,
		States:        states,
	})
	if err != nil {
		return nil, err
	}

	rooms := toSet(q.RoomIDs)
	students := toSet(q.StudentIDs)
	active := toSet(states)

	roomHits := make(map[string]struct{})
	studentHits := make(map[string]struct{})
	for i := range bookings {
		b := &bookings[i]
		// 存储层已按条件过滤，这里按同一谓词再判一次，保证语义不依赖查询实现
		if b.ExamID == q.ExcludeExamID {
			continue
		}
		if _, ok := active[b.ExamState]; !ok {
			continue
		}
		if !b.Interval().Overlaps(q.Interval) {
			continue
		}
		if b.RoomID != nil {
			if _, ok := rooms[*b.RoomID]; ok {
				roomHits[*b.RoomID] = struct{}{}
			}
		}
		if _, ok := students[b.StudentID]; ok {
			studentHits[b.StudentID] = struct{}{}
		}
	}

	return &ConflictResult{
		RoomIDs:    sortedKeys(roomHits),
		StudentIDs: sortedKeys(studentHits),
	}, nil
}

// ── 集合工具 ──

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// hasDuplicates 判断切片中是否有重复元素
func hasDuplicates(ids []string) bool {
	return len(toSet(ids)) != len(ids)
}
