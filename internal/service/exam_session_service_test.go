package service

import (
	"context"
	"errors"
	"testing"

	"opencampus/backend/internal/dto"
	"opencampus/backend/internal/model"
)

func validSessionRequest() *dto.CreateExamSessionRequest {
	return &dto.CreateExamSessionRequest{
		Name:       "2026 春季期末",
		ExamCode:   "ES-2026-S",
		CourseID:   testCourse,
		BatchID:    testBatch,
		ExamTypeID: testExamType,
		StartDate:  "2026-06-01",
		EndDate:    "2026-06-10",
	}
}

// ── Create / Update 测试 ──

func TestExamSessionService_Create_Success(t *testing.T) {
	env := newTestEnv()

	resp, err := env.svc.ExamSession.Create(context.Background(), validSessionRequest(), env.actor)
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if resp.State != model.SessionStateDraft {
		t.Errorf("新场次应为 draft，实际 %s", resp.State)
	}
	if resp.EvaluationType != "normal" {
		t.Errorf("评估方式默认应为 normal，实际 %s", resp.EvaluationType)
	}
	if resp.StartDate != "2026-06-01" || resp.EndDate != "2026-06-10" {
		t.Errorf("日期不正确: %s ~ %s", resp.StartDate, resp.EndDate)
	}
	if len(env.db.changeLogs) != 1 || env.db.changeLogs[0].EntityType != model.EntityExamSession {
		t.Errorf("创建场次应写入一条变更日志")
	}
}

func TestExamSessionService_Create_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *dto.CreateExamSessionRequest)
		want   error
	}{
		{"结束早于开始", func(r *dto.CreateExamSessionRequest) { r.EndDate = "2026-05-31" }, ErrSessionDateInvalid},
		{"日期格式错误", func(r *dto.CreateExamSessionRequest) { r.StartDate = "2026/06/01" }, ErrSessionDateInvalid},
		{"课程不存在", func(r *dto.CreateExamSessionRequest) { r.CourseID = "course-x" }, ErrCourseNotFound},
		{"班级不存在", func(r *dto.CreateExamSessionRequest) { r.BatchID = "batch-x" }, ErrBatchNotFound},
		{"班级不属于课程", func(r *dto.CreateExamSessionRequest) { r.BatchID = otherBatch }, ErrBatchCourseMismatch},
		{"考试类型不存在", func(r *dto.CreateExamSessionRequest) { r.ExamTypeID = "type-x" }, ErrExamTypeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			req := validSessionRequest()
			tt.mutate(req)

			_, err := env.svc.ExamSession.Create(context.Background(), req, env.actor)
			if !errors.Is(err, tt.want) {
				t.Errorf("期望 %v，实际: %v", tt.want, err)
			}
			if len(env.db.sessions) != 0 {
				t.Errorf("校验失败时不应写入场次")
			}
		})
	}
}

func TestExamSessionService_Create_SingleDay(t *testing.T) {
	env := newTestEnv()
	req := validSessionRequest()
	req.EndDate = req.StartDate

	if _, err := env.svc.ExamSession.Create(context.Background(), req, env.actor); err != nil {
		t.Errorf("起止同一天应允许: %v", err)
	}
}

func TestExamSessionService_Create_DuplicateCode(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.svc.ExamSession.Create(ctx, validSessionRequest(), env.actor); err != nil {
		t.Fatalf("首次创建应成功: %v", err)
	}
	_, err := env.svc.ExamSession.Create(ctx, validSessionRequest(), env.actor)
	if !errors.Is(err, ErrSessionCodeExists) {
		t.Errorf("期望 ErrSessionCodeExists，实际: %v", err)
	}
}

func TestExamSessionService_Update(t *testing.T) {
	env := newTestEnv()
	env.addSession("s1", model.SessionStateDraft)
	ctx := context.Background()

	resp, err := env.svc.ExamSession.Update(ctx, "s1", &dto.UpdateExamSessionRequest{
		EndDate: ptr("2026-06-15"),
		Venue:   ptr("主教学楼"),
	}, env.actor)
	if err != nil {
		t.Fatalf("Update 应成功: %v", err)
	}
	if resp.EndDate != "2026-06-15" || resp.Venue != "主教学楼" {
		t.Errorf("更新未生效: %+v", resp)
	}

	if _, err := env.svc.ExamSession.Update(ctx, "s1", &dto.UpdateExamSessionRequest{EndDate: ptr("2026-05-01")}, env.actor); !errors.Is(err, ErrSessionDateInvalid) {
		t.Errorf("结束早于开始应拒绝，实际: %v", err)
	}

	env.db.sessions["s1"].State = model.SessionStateScheduled
	if _, err := env.svc.ExamSession.Update(ctx, "s1", &dto.UpdateExamSessionRequest{Venue: ptr("x")}, env.actor); !errors.Is(err, ErrSessionNotEditable) {
		t.Errorf("非草稿场次不可修改，实际: %v", err)
	}
}

// ── 状态流转测试 ──

func TestExamSessionService_Schedule_RequiresExamType(t *testing.T) {
	env := newTestEnv()
	s := env.addSession("s1", model.SessionStateDraft)
	s.ExamTypeID = nil

	_, err := env.svc.ExamSession.Schedule(context.Background(), "s1", env.actor)
	if !errors.Is(err, ErrSessionIncomplete) {
		t.Fatalf("缺少考试类型应拒绝，实际: %v", err)
	}

	typeID := testExamType
	env.db.sessions["s1"].ExamTypeID = &typeID
	resp, err := env.svc.ExamSession.Schedule(context.Background(), "s1", env.actor)
	if err != nil {
		t.Fatalf("Schedule 应成功: %v", err)
	}
	if resp.State != model.SessionStateScheduled {
		t.Errorf("期望 scheduled，实际 %s", resp.State)
	}
}

func TestExamSessionService_Held_RequiresExams(t *testing.T) {
	env := newTestEnv()
	env.addSession("s1", model.SessionStateScheduled)

	if _, err := env.svc.ExamSession.Held(context.Background(), "s1", env.actor); !errors.Is(err, ErrSessionNoExams) {
		t.Fatalf("无考试的场次不能开考，实际: %v", err)
	}

	env.addExam("math", "s1", testMath, ptr(at(9, 0)), ptr(at(11, 0)), model.ExamStateScheduled)
	resp, err := env.svc.ExamSession.Held(context.Background(), "s1", env.actor)
	if err != nil {
		t.Fatalf("Held 应成功: %v", err)
	}
	if resp.State != model.SessionStateHeld || resp.ExamCount != 1 {
		t.Errorf("期望 held 且 1 场考试，实际 %s/%d", resp.State, resp.ExamCount)
	}
}

func TestExamSessionService_Held_FromDraft(t *testing.T) {
	env := newTestEnv()
	env.addSession("s1", model.SessionStateDraft)
	env.addExam("math", "s1", testMath, nil, nil, model.ExamStateDraft)

	if _, err := env.svc.ExamSession.Held(context.Background(), "s1", env.actor); !errors.Is(err, ErrSessionBadTransition) {
		t.Errorf("草稿场次不能直接开考，实际: %v", err)
	}
}

func TestExamSessionService_Done_RequiresAllExamsDone(t *testing.T) {
	env := newTestEnv()
	env.addSession("s1", model.SessionStateHeld)
	env.addExam("math", "s1", testMath, ptr(at(9, 0)), ptr(at(11, 0)), model.ExamStateDone)
	env.addExam("physics", "s1", testPhysics, ptr(at(14, 0)), ptr(at(16, 0)), model.ExamStateResultUpdated)

	if _, err := env.svc.ExamSession.Done(context.Background(), "s1", env.actor); !errors.Is(err, ErrSessionExamsNotDone) {
		t.Fatalf("仍有未完成考试时不能结束，实际: %v", err)
	}

	env.db.exams["physics"].State = model.ExamStateDone
	resp, err := env.svc.ExamSession.Done(context.Background(), "s1", env.actor)
	if err != nil {
		t.Fatalf("Done 应成功: %v", err)
	}
	if resp.State != model.SessionStateDone {
		t.Errorf("期望 done，实际 %s", resp.State)
	}

	if _, err := env.svc.ExamSession.Cancel(context.Background(), "s1", env.actor); !errors.Is(err, ErrSessionAlreadyDone) {
		t.Errorf("已完成场次不可取消，实际: %v", err)
	}
	if _, err := env.svc.ExamSession.Draft(context.Background(), "s1", env.actor); !errors.Is(err, ErrSessionAlreadyDone) {
		t.Errorf("已完成场次不可退回草稿，实际: %v", err)
	}
}

func TestExamSessionService_Done_ArchivedCancelledExamIgnored(t *testing.T) {
	env := newTestEnv()
	env.addSession("s1", model.SessionStateHeld)
	env.addExam("math", "s1", testMath, ptr(at(9, 0)), ptr(at(11, 0)), model.ExamStateDone)
	env.addExam("physics", "s1", testPhysics, nil, nil, model.ExamStateCancelled)
	ctx := context.Background()

	if _, err := env.svc.ExamSession.Done(ctx, "s1", env.actor); !errors.Is(err, ErrSessionExamsNotDone) {
		t.Fatalf("已取消但未归档的考试应阻止结束，实际: %v", err)
	}
	if err := env.svc.Exam.Archive(ctx, "physics", env.actor); err != nil {
		t.Fatalf("归档应成功: %v", err)
	}
	if _, err := env.svc.ExamSession.Done(ctx, "s1", env.actor); err != nil {
		t.Errorf("归档后应可结束场次: %v", err)
	}
}

func TestExamSessionService_Cancel_Cascade(t *testing.T) {
	env := newTestEnv()
	env.addSession("s1", model.SessionStateScheduled)
	env.addExam("draft", "s1", testMath, nil, nil, model.ExamStateDraft)
	env.addExam("sched", "s1", testPhysics, ptr(at(9, 0)), ptr(at(11, 0)), model.ExamStateScheduled)
	env.addExam("held", "s1", testMath, ptr(at(14, 0)), ptr(at(16, 0)), model.ExamStateHeld)
	env.addAttendee("sched", "stu-1", nil)
	env.addAttendee("held", "stu-2", nil)

	resp, err := env.svc.ExamSession.Cancel(context.Background(), "s1", env.actor)
	if err != nil {
		t.Fatalf("Cancel 应成功: %v", err)
	}
	if resp.State != model.SessionStateCancelled {
		t.Errorf("期望 cancelled，实际 %s", resp.State)
	}

	want := map[string]string{
		"draft": model.ExamStateCancelled,
		"sched": model.ExamStateCancelled,
		"held":  model.ExamStateHeld,
	}
	for id, state := range want {
		if got := env.db.exams[id].State; got != state {
			t.Errorf("考试 %s 期望 %s，实际 %s", id, state, got)
		}
	}
	if len(env.attendeesOf("sched")) != 0 {
		t.Errorf("级联取消的考试应删除考生")
	}
	if len(env.attendeesOf("held")) != 1 {
		t.Errorf("进行中的考试不应受影响")
	}
}

func TestExamSessionService_Draft_FromCancelled(t *testing.T) {
	env := newTestEnv()
	env.addSession("s1", model.SessionStateCancelled)

	resp, err := env.svc.ExamSession.Draft(context.Background(), "s1", env.actor)
	if err != nil {
		t.Fatalf("Draft 应成功: %v", err)
	}
	if resp.State != model.SessionStateDraft {
		t.Errorf("期望 draft，实际 %s", resp.State)
	}
}

// ── 界面动作测试 ──

func TestExamSessionService_NewExamAction(t *testing.T) {
	env := newTestEnv()
	env.addSession("s1", model.SessionStateScheduled)

	action, err := env.svc.ExamSession.NewExamAction(context.Background(), "s1")
	if err != nil {
		t.Fatalf("NewExamAction 应成功: %v", err)
	}
	if action.Model != "exam" || action.ViewMode != "form" {
		t.Errorf("动作描述不正确: %+v", action)
	}
	if action.Context["default_course_id"] != testCourse || action.Context["default_batch_id"] != testBatch {
		t.Errorf("表单默认值应取自场次: %+v", action.Context)
	}

	env.db.sessions["s1"].State = model.SessionStateDone
	if _, err := env.svc.ExamSession.NewExamAction(context.Background(), "s1"); !errors.Is(err, ErrSessionClosedForExams) {
		t.Errorf("已结束场次不可新增考试，实际: %v", err)
	}
}

func TestExamSessionService_ExamsAction(t *testing.T) {
	env := newTestEnv()
	env.addSession("s1", model.SessionStateDone)

	action, err := env.svc.ExamSession.ExamsAction(context.Background(), "s1")
	if err != nil {
		t.Fatalf("ExamsAction 应成功: %v", err)
	}
	if action.ViewMode != "list" || action.Domain["exam_session_id"] != "s1" {
		t.Errorf("动作描述不正确: %+v", action)
	}

	if _, err := env.svc.ExamSession.ExamsAction(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("期望 ErrSessionNotFound，实际: %v", err)
	}
}
