package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"opencampus/backend/config"
	"opencampus/backend/internal/model"
	"opencampus/backend/internal/repository"
)

// ── 生成器业务错误 ──

var (
	ErrEmptyRoster = newBizError(ErrNoEligibleStudents, "该课程班级下没有在读学生")
)

// AttendanceGenerator 为考勤表/考试补齐缺失的学生记录（集合差，幂等）
type AttendanceGenerator interface {
	// GenerateSheetLines 为考勤表补齐考勤明细，新建明细默认缺勤；仅草稿或进行中的考勤表可生成
	GenerateSheetLines(ctx context.Context, sheetID string, eligible []string, actor Actor) (int, error)
	// GenerateExamAttendees 在调用方事务内为已加锁的考试补齐考生记录，新建考生默认出勤
	GenerateExamAttendees(ctx context.Context, txRepo *repository.Repository, exam *model.Exam, eligible []string, actor Actor) (int, error)
}

type attendanceGenerator struct {
	repo        *repository.Repository
	failOnEmpty bool
	logger      *zap.Logger
}

// NewAttendanceGenerator 创建 AttendanceGenerator 实例
func NewAttendanceGenerator(cfg *config.AttendanceConfig, repo *repository.Repository, logger *zap.Logger) AttendanceGenerator {
	return &attendanceGenerator{repo: repo, failOnEmpty: cfg.FailOnEmptyRoster, logger: logger}
}

func (g *attendanceGenerator) GenerateSheetLines(ctx context.Context, sheetID string, eligible []string, actor Actor) (int, error) {
	var created int
	err := g.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		// 行锁期间考勤表不会被并发完成或取消
		sheet, err := txRepo.AttendanceSheet.GetForUpdate(ctx, sheetID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSheetNotFound
			}
			return err
		}
		if sheet.State != model.SheetStateDraft && sheet.State != model.SheetStateStart {
			return ErrSheetClosed
		}
		created, err = generateSheetLines(ctx, txRepo, sheet, eligible, g.failOnEmpty, actor)
		return err
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

func (g *attendanceGenerator) GenerateExamAttendees(ctx context.Context, txRepo *repository.Repository, exam *model.Exam, eligible []string, actor Actor) (int, error) {
	created, err := generateExamAttendees(ctx, txRepo, exam, eligible, g.failOnEmpty, actor)
	if err != nil {
		return 0, err
	}
	if created == 0 && len(eligible) == 0 {
		g.logger.Info("花名册为空，未生成考生", zap.String("exam_id", exam.ExamID))
	}
	return created, nil
}

// ── 集合差生成 ──

// missingStudents eligible - existing，保持 eligible 原有顺序并去重
func missingStudents(eligible, existing []string) []string {
	seen := toSet(existing)
	missing := make([]string, 0, len(eligible))
	for _, id := range eligible {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		missing = append(missing, id)
	}
	return missing
}

func generateSheetLines(ctx context.Context, repo *repository.Repository, sheet *model.AttendanceSheet, eligible []string, failOnEmpty bool, actor Actor) (int, error) {
	if len(eligible) == 0 {
		if failOnEmpty {
			return 0, ErrEmptyRoster
		}
		return 0, nil
	}

	existing, err := repo.AttendanceLine.StudentIDsBySheet(ctx, sheet.SheetID)
	if err != nil {
		return 0, err
	}

	missing := missingStudents(eligible, existing)
	if len(missing) == 0 {
		return 0, nil
	}

	lines := make([]model.AttendanceLine, 0, len(missing))
	for _, studentID := range missing {
		line := model.AttendanceLine{
			SheetID:        sheet.SheetID,
			StudentID:      studentID,
			Status:         model.LineStatusAbsent,
			AttendanceDate: sheet.AttendanceDate,
			CourseID:       sheet.CourseID,
			BatchID:        sheet.BatchID,
		}
		line.CreatedBy = actor.userRef()
		line.UpdatedBy = actor.userRef()
		lines = append(lines, line)
	}

	if err := repo.AttendanceLine.BatchCreate(ctx, lines); err != nil {
		return 0, err
	}
	return len(lines), nil
}

func generateExamAttendees(ctx context.Context, repo *repository.Repository, exam *model.Exam, eligible []string, failOnEmpty bool, actor Actor) (int, error) {
	if len(eligible) == 0 {
		if failOnEmpty {
			return 0, ErrEmptyRoster
		}
		return 0, nil
	}

	existing, err := repo.ExamAttendee.StudentIDsByExam(ctx, exam.ExamID)
	if err != nil {
		return 0, err
	}

	missing := missingStudents(eligible, existing)
	if len(missing) == 0 {
		return 0, nil
	}

	attendees := make([]model.ExamAttendee, 0, len(missing))
	for _, studentID := range missing {
		a := model.ExamAttendee{
			ExamID:    exam.ExamID,
			StudentID: studentID,
			Status:    model.AttendeeStatusPresent,
			CourseID:  exam.CourseID,
			BatchID:   exam.BatchID,
		}
		a.CreatedBy = actor.userRef()
		a.UpdatedBy = actor.userRef()
		attendees = append(attendees, a)
	}

	if err := repo.ExamAttendee.BatchCreate(ctx, attendees); err != nil {
		return 0, err
	}
	return len(attendees), nil
}
