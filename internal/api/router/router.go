package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"opencampus/backend/config"
	"opencampus/backend/internal/api/handler"
	"opencampus/backend/internal/api/middleware"
	"opencampus/backend/pkg/jwt"
	"opencampus/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// db 仅用于健康检查，为 nil 时跳过数据库探测
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, db *gorm.DB, logger *zap.Logger) *gin.Engine {
	r := gin.New()

	if err := handler.RegisterValidators(); err != nil {
		logger.Fatal("注册自定义校验规则失败", zap.Error(err))
	}

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// ── 健康检查 ──
	r.GET("/health", healthCheck(db))

	// 写操作：教务管理员与任课教师，按用户限流
	writer := []gin.HandlerFunc{
		middleware.RoleAuth("admin", "faculty"),
		middleware.RateLimit(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window),
	}
	w := func(fn gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, writer...), fn)
	}

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr, rdb))
	{
		// 认证
		auth := v1.Group("/auth")
		{
			auth.GET("/me", h.Auth.Me)
			auth.POST("/logout", h.Auth.Logout)
		}

		// 考试场次
		sessions := v1.Group("/exam-sessions")
		{
			sessions.GET("", h.ExamSession.ListSessions)
			sessions.GET("/:id", h.ExamSession.GetSession)
			sessions.POST("", w(h.ExamSession.CreateSession)...)
			sessions.PUT("/:id", w(h.ExamSession.UpdateSession)...)
			sessions.POST("/:id/schedule", w(h.ExamSession.Schedule)...)
			sessions.POST("/:id/held", w(h.ExamSession.Held)...)
			sessions.POST("/:id/done", w(h.ExamSession.Done)...)
			sessions.POST("/:id/cancel", w(h.ExamSession.Cancel)...)
			sessions.POST("/:id/draft", w(h.ExamSession.Draft)...)
			sessions.GET("/:id/exams-action", h.ExamSession.ExamsAction)
			sessions.GET("/:id/new-exam-action", h.ExamSession.NewExamAction)
		}

		// 考试
		exams := v1.Group("/exams")
		{
			exams.GET("", h.Exam.ListExams)
			exams.POST("", w(h.Exam.CreateExam)...)
			exams.POST("/conflicts/check", h.Exam.CheckConflicts)
			exams.GET("/:id", h.Exam.GetExam)
			exams.PUT("/:id", w(h.Exam.UpdateExam)...)
			exams.DELETE("/:id", w(h.Exam.ArchiveExam)...)
			exams.POST("/:id/schedule", w(h.Exam.Schedule)...)
			exams.POST("/:id/held", w(h.Exam.Held)...)
			exams.POST("/:id/result-updated", w(h.Exam.ResultUpdated)...)
			exams.POST("/:id/done", w(h.Exam.Done)...)
			exams.POST("/:id/cancel", w(h.Exam.Cancel)...)
			exams.POST("/:id/draft", w(h.Exam.Draft)...)
			exams.GET("/:id/attendees", h.Exam.ListAttendees)
			exams.POST("/:id/attendees", w(h.Exam.AddAttendee)...)
			exams.GET("/:id/attendees-action", h.Exam.AttendeesAction)
			exams.GET("/:id/allocation-defaults", h.Exam.AllocationDefaults)
			exams.POST("/:id/allocate", w(h.Exam.Allocate)...)
		}
		v1.PUT("/exam-attendees/:id", w(h.Exam.UpdateAttendee)...)

		// 考场
		rooms := v1.Group("/exam-rooms")
		{
			rooms.GET("", h.ExamRoom.ListRooms)
			rooms.GET("/:id", h.ExamRoom.GetRoom)
			rooms.POST("", w(h.ExamRoom.CreateRoom)...)
			rooms.PUT("/:id", w(h.ExamRoom.UpdateRoom)...)
		}

		// 考勤登记簿
		registers := v1.Group("/attendance-registers")
		{
			registers.GET("", h.Attendance.ListRegisters)
			registers.GET("/:id", h.Attendance.GetRegister)
			registers.POST("", w(h.Attendance.CreateRegister)...)
			registers.POST("/:id/today-sheet", w(h.Attendance.OpenTodaySheet)...)
		}

		// 考勤表
		sheets := v1.Group("/attendance-sheets")
		{
			sheets.GET("", h.Attendance.ListSheets)
			sheets.GET("/:id", h.Attendance.GetSheet)
			sheets.POST("", w(h.Attendance.CreateSheet)...)
			sheets.POST("/:id/start", w(h.Attendance.StartSheet)...)
			sheets.POST("/:id/draft", w(h.Attendance.DraftSheet)...)
			sheets.POST("/:id/done", w(h.Attendance.DoneSheet)...)
			sheets.POST("/:id/cancel", w(h.Attendance.CancelSheet)...)
			sheets.POST("/:id/generate-lines", w(h.Attendance.GenerateLines)...)
		}
		v1.PUT("/attendance-lines/:id", w(h.Attendance.MarkLine)...)

		// 等级配置与成绩模板
		grades := v1.Group("/grade-configurations")
		{
			grades.GET("", h.Result.ListGrades)
			grades.POST("", w(h.Result.CreateGrade)...)
		}
		templates := v1.Group("/result-templates")
		{
			templates.GET("", h.Result.ListTemplates)
			templates.GET("/:id", h.Result.GetTemplate)
			templates.POST("", w(h.Result.CreateTemplate)...)
			templates.POST("/:id/generate", w(h.Result.GenerateResult)...)
		}
		v1.GET("/marksheet-registers/:id", h.Result.GetMarksheet)

		// 状态变更日志
		v1.GET("/change-logs", h.ChangeLog.ListChangeLogs)
	}

	return r
}

func healthCheck(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
