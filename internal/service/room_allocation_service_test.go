package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"opencampus/backend/internal/dto"
	"opencampus/backend/internal/model"
	pkgerrors "opencampus/backend/pkg/errors"
)

// ── 测试辅助 ──

type fakeLocker struct {
	held     bool
	err      error
	locks    int
	releases int
}

func (l *fakeLocker) Lock(_ context.Context, _ string, _ time.Duration) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.held {
		return nil, pkgerrors.ErrLockNotAcquired
	}
	l.locks++
	return func() { l.releases++ }, nil
}

// setupAllocationEnv 09:00-11:00 的草稿数学考试，考场 room-a(2) room-b(3)
func setupAllocationEnv() *testEnv {
	env := newTestEnv()
	env.addSession("s1", model.SessionStateScheduled)
	env.addExam("math", "s1", testMath, ptr(at(9, 0)), ptr(at(11, 0)), model.ExamStateDraft)
	env.addRoom("room-a", "A101", 2)
	env.addRoom("room-b", "B201", 3)
	return env
}

func TestFirstFitAllocate(t *testing.T) {
	rooms := []model.ExamRoom{{RoomID: "a", Capacity: 2}, {RoomID: "b", Capacity: 3}, {RoomID: "c", Capacity: 4}}
	got := firstFitAllocate(rooms, []string{"s1", "s2", "s3", "s4"})

	want := [][]string{{"s1", "s2"}, {"s3", "s4"}, {}}
	for i := range want {
		if !reflect.DeepEqual(got[i].StudentIDs, want[i]) {
			t.Errorf("考场 %s 期望 %v，实际 %v", got[i].Room.RoomID, want[i], got[i].StudentIDs)
		}
	}
}

func TestAllocate_FillsRoomsInOrder(t *testing.T) {
	env := setupAllocationEnv()

	resp, err := env.svc.RoomAllocation.Allocate(context.Background(), "math", &dto.AllocateRoomsRequest{
		RoomIDs:    []string{"room-a", "room-b"},
		StudentIDs: students(5),
	}, env.actor)
	if err != nil {
		t.Fatalf("Allocate 应成功: %v", err)
	}

	if resp.State != model.ExamStateScheduled {
		t.Errorf("分配后考试应为 scheduled，实际 %s", resp.State)
	}
	if len(resp.Rooms) != 2 {
		t.Fatalf("期望 2 个考场结果，实际 %d", len(resp.Rooms))
	}
	if resp.Rooms[0].RoomID != "room-a" || !reflect.DeepEqual(resp.Rooms[0].StudentIDs, []string{"stu-1", "stu-2"}) {
		t.Errorf("room-a 期望 [stu-1 stu-2]，实际 %s %v", resp.Rooms[0].RoomID, resp.Rooms[0].StudentIDs)
	}
	if resp.Rooms[1].RoomID != "room-b" || !reflect.DeepEqual(resp.Rooms[1].StudentIDs, []string{"stu-3", "stu-4", "stu-5"}) {
		t.Errorf("room-b 期望 [stu-3 stu-4 stu-5]，实际 %s %v", resp.Rooms[1].RoomID, resp.Rooms[1].StudentIDs)
	}

	perRoom := map[string]int{}
	for _, a := range env.attendeesOf("math") {
		if a.RoomID == nil {
			t.Fatalf("考生 %s 未分配考场", a.StudentID)
		}
		perRoom[*a.RoomID]++
		if a.Status != model.AttendeeStatusPresent {
			t.Errorf("分配生成的考生应为出勤")
		}
	}
	if perRoom["room-a"] != 2 || perRoom["room-b"] != 3 {
		t.Errorf("期望 room-a=2 room-b=3，实际 %v", perRoom)
	}
	if env.db.exams["math"].State != model.ExamStateScheduled {
		t.Errorf("考试状态未持久化")
	}
}

func TestAllocate_RequestOrderWins(t *testing.T) {
	env := setupAllocationEnv()

	resp, err := env.svc.RoomAllocation.Allocate(context.Background(), "math", &dto.AllocateRoomsRequest{
		RoomIDs:    []string{"room-b", "room-a"},
		StudentIDs: students(4),
	}, env.actor)
	if err != nil {
		t.Fatalf("Allocate 应成功: %v", err)
	}
	if resp.Rooms[0].RoomID != "room-b" || len(resp.Rooms[0].StudentIDs) != 3 {
		t.Errorf("应先填满 room-b，实际 %+v", resp.Rooms[0])
	}
	if len(resp.Rooms[1].StudentIDs) != 1 {
		t.Errorf("room-a 应只分到 1 人，实际 %v", resp.Rooms[1].StudentIDs)
	}
}

func TestAllocate_InsufficientCapacity(t *testing.T) {
	env := newTestEnv()
	env.addSession("s1", model.SessionStateScheduled)
	env.addExam("math", "s1", testMath, ptr(at(9, 0)), ptr(at(11, 0)), model.ExamStateDraft)
	env.addRoom("room-a", "A101", 4)

	_, err := env.svc.RoomAllocation.Allocate(context.Background(), "math", &dto.AllocateRoomsRequest{
		RoomIDs:    []string{"room-a"},
		StudentIDs: students(5),
	}, env.actor)
	if !errors.Is(err, ErrCapacity) {
		t.Fatalf("期望 ErrCapacity，实际: %v", err)
	}
	if n := len(env.attendeesOf("math")); n != 0 {
		t.Errorf("容量不足时不应写入考生，实际 %d", n)
	}
	if env.db.exams["math"].State != model.ExamStateDraft {
		t.Errorf("失败时考试状态不应变化")
	}
}

func TestAllocate_ConflictWithOtherExam(t *testing.T) {
	tests := []struct {
		name      string
		start     time.Time
		end       time.Time
		wantError bool
	}{
		{"10:30 开始与 09:00-11:00 重叠", at(10, 30), at(12, 0), true},
		{"11:00 开始端点相接", at(11, 0), at(13, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			env.addSession("s1", model.SessionStateScheduled)
			env.addExam("math", "s1", testMath, ptr(at(9, 0)), ptr(at(11, 0)), model.ExamStateScheduled)
			env.addExam("physics", "s1", testPhysics, ptr(tt.start), ptr(tt.end), model.ExamStateDraft)
			env.addRoom("room-a", "A101", 30)
			env.addAttendee("math", "stu-1", ptr("room-a"))

			_, err := env.svc.RoomAllocation.Allocate(context.Background(), "physics", &dto.AllocateRoomsRequest{
				RoomIDs:    []string{"room-a"},
				StudentIDs: []string{"stu-2"},
			}, env.actor)

			if tt.wantError {
				if !errors.Is(err, ErrSchedulingConflict) {
					t.Fatalf("期望 ErrSchedulingConflict，实际: %v", err)
				}
				var ce *SchedulingConflictError
				if !errors.As(err, &ce) || len(ce.Rooms) != 1 || ce.Rooms[0] != "A101" {
					t.Errorf("冲突错误应带考场名 A101，实际 %+v", ce)
				}
				if n := len(env.attendeesOf("physics")); n != 0 {
					t.Errorf("冲突时不应写入考生，实际 %d", n)
				}
				return
			}
			if err != nil {
				t.Fatalf("端点相接不应冲突: %v", err)
			}
		})
	}
}

func TestAllocate_StudentConflictReportsNames(t *testing.T) {
	env := setupAllocationEnv()
	env.addExam("physics", "s1", testPhysics, ptr(at(10, 0)), ptr(at(12, 0)), model.ExamStateScheduled)
	env.addRoom("room-c", "C301", 30)
	env.addAttendee("physics", "stu-3", ptr("room-c"))

	_, err := env.svc.RoomAllocation.Allocate(context.Background(), "math", &dto.AllocateRoomsRequest{
		RoomIDs:    []string{"room-a", "room-b"},
		StudentIDs: students(5),
	}, env.actor)

	var ce *SchedulingConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("期望 SchedulingConflictError，实际: %v", err)
	}
	if len(ce.Rooms) != 0 {
		t.Errorf("不应有考场冲突，实际 %v", ce.Rooms)
	}
	if !reflect.DeepEqual(ce.Students, []string{"学生3"}) {
		t.Errorf("期望冲突学生 [学生3]，实际 %v", ce.Students)
	}
	if !strings.Contains(err.Error(), "学生3") {
		t.Errorf("错误信息应包含学生名，实际 %s", err.Error())
	}
}

func TestAllocate_ReallocationReplaces(t *testing.T) {
	env := setupAllocationEnv()
	ctx := context.Background()

	if _, err := env.svc.RoomAllocation.Allocate(ctx, "math", &dto.AllocateRoomsRequest{
		RoomIDs: []string{"room-a", "room-b"}, StudentIDs: students(5),
	}, env.actor); err != nil {
		t.Fatalf("首次分配应成功: %v", err)
	}

	// 已排考的考试可以重新分配，且不与自身原分配冲突
	resp, err := env.svc.RoomAllocation.Allocate(ctx, "math", &dto.AllocateRoomsRequest{
		RoomIDs: []string{"room-b"}, StudentIDs: students(3),
	}, env.actor)
	if err != nil {
		t.Fatalf("重新分配应成功: %v", err)
	}
	if len(resp.Rooms) != 1 {
		t.Fatalf("期望 1 个考场结果，实际 %d", len(resp.Rooms))
	}
	if n := len(env.attendeesOf("math")); n != 3 {
		t.Errorf("重新分配应替换原考生，期望 3 人，实际 %d", n)
	}
}

func TestAllocate_InputValidation(t *testing.T) {
	tests := []struct {
		name string
		req  dto.AllocateRoomsRequest
		want error
	}{
		{"考场为空", dto.AllocateRoomsRequest{StudentIDs: students(1)}, ErrValidation},
		{"学生为空", dto.AllocateRoomsRequest{RoomIDs: []string{"room-a"}}, ErrValidation},
		{"考场重复", dto.AllocateRoomsRequest{RoomIDs: []string{"room-a", "room-a"}, StudentIDs: students(1)}, ErrValidation},
		{"学生重复", dto.AllocateRoomsRequest{RoomIDs: []string{"room-a"}, StudentIDs: []string{"stu-1", "stu-1"}}, ErrValidation},
		{"考场不存在", dto.AllocateRoomsRequest{RoomIDs: []string{"room-x"}, StudentIDs: students(1)}, ErrNotFound},
		{"学生不存在", dto.AllocateRoomsRequest{RoomIDs: []string{"room-a"}, StudentIDs: []string{"stu-x"}}, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupAllocationEnv()
			req := tt.req
			_, err := env.svc.RoomAllocation.Allocate(context.Background(), "math", &req, env.actor)
			if !errors.Is(err, tt.want) {
				t.Errorf("期望 %v，实际: %v", tt.want, err)
			}
		})
	}
}

func TestAllocate_InactiveRoom(t *testing.T) {
	env := setupAllocationEnv()
	env.db.rooms["room-a"].Active = false

	_, err := env.svc.RoomAllocation.Allocate(context.Background(), "math", &dto.AllocateRoomsRequest{
		RoomIDs: []string{"room-a", "room-b"}, StudentIDs: students(2),
	}, env.actor)
	if !errors.Is(err, ErrRoomInactive) {
		t.Errorf("期望 ErrRoomInactive，实际: %v", err)
	}
}

func TestAllocate_ExamStateGuard(t *testing.T) {
	for _, state := range []string{model.ExamStateHeld, model.ExamStateDone, model.ExamStateCancelled} {
		t.Run(state, func(t *testing.T) {
			env := setupAllocationEnv()
			env.db.exams["math"].State = state

			_, err := env.svc.RoomAllocation.Allocate(context.Background(), "math", &dto.AllocateRoomsRequest{
				RoomIDs: []string{"room-a"}, StudentIDs: students(1),
			}, env.actor)
			if !errors.Is(err, ErrStateTransition) {
				t.Errorf("期望 ErrStateTransition，实际: %v", err)
			}
		})
	}
}

func TestAllocate_ExamWithoutTime(t *testing.T) {
	env := setupAllocationEnv()
	env.addExam("untimed", "s1", testPhysics, nil, nil, model.ExamStateDraft)

	_, err := env.svc.RoomAllocation.Allocate(context.Background(), "untimed", &dto.AllocateRoomsRequest{
		RoomIDs: []string{"room-a"}, StudentIDs: students(1),
	}, env.actor)
	if !errors.Is(err, ErrExamIncomplete) {
		t.Errorf("期望 ErrExamIncomplete，实际: %v", err)
	}
}

func TestAllocate_Locking(t *testing.T) {
	t.Run("锁被占用", func(t *testing.T) {
		env := setupAllocationEnv()
		locker := &fakeLocker{held: true}
		svc := NewRoomAllocationService(&env.cfg.Exam, env.repo, locker, zap.NewNop())

		_, err := svc.Allocate(context.Background(), "math", &dto.AllocateRoomsRequest{
			RoomIDs: []string{"room-a", "room-b"}, StudentIDs: students(5),
		}, env.actor)
		if !errors.Is(err, ErrAllocationBusy) || !errors.Is(err, ErrSchedulingConflict) {
			t.Errorf("期望 ErrAllocationBusy，实际: %v", err)
		}
	})

	t.Run("成功后释放", func(t *testing.T) {
		env := setupAllocationEnv()
		locker := &fakeLocker{}
		svc := NewRoomAllocationService(&env.cfg.Exam, env.repo, locker, zap.NewNop())

		if _, err := svc.Allocate(context.Background(), "math", &dto.AllocateRoomsRequest{
			RoomIDs: []string{"room-a", "room-b"}, StudentIDs: students(5),
		}, env.actor); err != nil {
			t.Fatalf("Allocate 应成功: %v", err)
		}
		if locker.locks != 1 || locker.releases != 1 {
			t.Errorf("期望加锁释放各 1 次，实际 %d/%d", locker.locks, locker.releases)
		}
	})

	t.Run("Redis 不可用时降级", func(t *testing.T) {
		env := setupAllocationEnv()
		locker := &fakeLocker{err: errors.New("connection refused")}
		svc := NewRoomAllocationService(&env.cfg.Exam, env.repo, locker, zap.NewNop())

		if _, err := svc.Allocate(context.Background(), "math", &dto.AllocateRoomsRequest{
			RoomIDs: []string{"room-a", "room-b"}, StudentIDs: students(5),
		}, env.actor); err != nil {
			t.Fatalf("锁服务不可用时应降级继续: %v", err)
		}
	})
}

func TestAllocate_WritesChangeLog(t *testing.T) {
	env := setupAllocationEnv()

	if _, err := env.svc.RoomAllocation.Allocate(context.Background(), "math", &dto.AllocateRoomsRequest{
		RoomIDs: []string{"room-a", "room-b"}, StudentIDs: students(5),
	}, env.actor); err != nil {
		t.Fatalf("Allocate 应成功: %v", err)
	}

	if len(env.db.changeLogs) != 1 {
		t.Fatalf("期望 1 条变更日志，实际 %d", len(env.db.changeLogs))
	}
	log := env.db.changeLogs[0]
	if log.FromState != model.ExamStateDraft || log.ToState != model.ExamStateScheduled || log.ActorID != "admin-001" {
		t.Errorf("变更日志内容不正确: %+v", log)
	}
}

func TestAllocationDefaults(t *testing.T) {
	env := setupAllocationEnv()
	env.addRoom("room-full", "满员考场", 1)
	env.addExam("other", "s1", testPhysics, ptr(at(14, 0)), ptr(at(16, 0)), model.ExamStateScheduled)
	env.addAttendee("other", "stu-1", ptr("room-full"))
	env.addRoom("room-off", "停用考场", 10)
	env.db.rooms["room-off"].Active = false

	resp, err := env.svc.RoomAllocation.Defaults(context.Background(), "math")
	if err != nil {
		t.Fatalf("Defaults 应成功: %v", err)
	}
	if !reflect.DeepEqual(resp.StudentIDs, students(5)) {
		t.Errorf("默认学生应为在读花名册，实际 %v", resp.StudentIDs)
	}
	for _, r := range resp.Rooms {
		if r.ID == "room-full" || r.ID == "room-off" {
			t.Errorf("不应包含无空位或停用的考场 %s", r.ID)
		}
	}
	if len(resp.Rooms) != 2 {
		t.Errorf("期望 2 个可用考场，实际 %d", len(resp.Rooms))
	}
}
