package handler

import "opencampus/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	ExamSession *ExamSessionHandler
	Exam        *ExamHandler
	ExamRoom    *ExamRoomHandler
	Attendance  *AttendanceHandler
	ChangeLog   *ChangeLogHandler
	Auth        *AuthHandler
	Result      *ResultHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		ExamSession: NewExamSessionHandler(svc.ExamSession),
		Exam:        NewExamHandler(svc.Exam, svc.ExamAttendee, svc.RoomAllocation, svc.ConflictDetector),
		ExamRoom:    NewExamRoomHandler(svc.ExamRoom),
		Attendance:  NewAttendanceHandler(svc.AttendanceRegister, svc.AttendanceSheet),
		ChangeLog:   NewChangeLogHandler(svc.ChangeLog),
		Auth:        NewAuthHandler(svc.Auth),
		Result:      NewResultHandler(svc.ResultTemplate),
	}
}
