package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"opencampus/backend/config"
	"opencampus/backend/internal/dto"
	"opencampus/backend/internal/model"
	"opencampus/backend/internal/repository"
)

// ── 考勤登记簿业务错误 ──

var (
	ErrRegisterNotFound    = newBizError(ErrNotFound, "考勤登记簿不存在")
	ErrRegisterCodeExists  = newBizError(ErrValidation, "考勤登记簿编码已存在")
	ErrRegisterScopeExists = newBizError(ErrValidation, "该课程班级科目已有考勤登记簿")
)

// AttendanceRegisterService 考勤登记簿业务接口
type AttendanceRegisterService interface {
	Create(ctx context.Context, req *dto.CreateAttendanceRegisterRequest, actor Actor) (*dto.AttendanceRegisterResponse, error)
	GetByID(ctx context.Context, id string) (*dto.AttendanceRegisterResponse, error)
	List(ctx context.Context, req *dto.AttendanceRegisterListRequest, actor Actor) ([]dto.AttendanceRegisterResponse, int64, error)
	// OpenTodaySheet 打开登记簿当天的考勤表，不存在时新建
	OpenTodaySheet(ctx context.Context, id string, actor Actor) (*dto.ActionResponse, error)
}

type attendanceRegisterService struct {
	repo   *repository.Repository
	cfg    *config.AttendanceConfig
	now    func() time.Time
	logger *zap.Logger
}

// NewAttendanceRegisterService 创建 AttendanceRegisterService 实例
func NewAttendanceRegisterService(cfg *config.AttendanceConfig, repo *repository.Repository, logger *zap.Logger) AttendanceRegisterService {
	return &attendanceRegisterService{repo: repo, cfg: cfg, now: time.Now, logger: logger}
}

func (s *attendanceRegisterService) Create(ctx context.Context, req *dto.CreateAttendanceRegisterRequest, actor Actor) (*dto.AttendanceRegisterResponse, error) {
	if _, err := s.repo.Academic.GetCourse(ctx, req.CourseID); err != nil {
		return nil, s.fail("查询课程失败", req.CourseID, mapNotFound(err, ErrCourseNotFound))
	}
	batch, err := s.repo.Academic.GetBatch(ctx, req.BatchID)
	if err != nil {
		return nil, s.fail("查询班级失败", req.BatchID, mapNotFound(err, ErrBatchNotFound))
	}
	if batch.CourseID != req.CourseID {
		return nil, ErrBatchCourseMismatch
	}
	if req.SubjectID != nil {
		if _, err := s.repo.Academic.GetSubject(ctx, *req.SubjectID); err != nil {
			return nil, s.fail("查询科目失败", *req.SubjectID, mapNotFound(err, ErrSubjectNotFound))
		}
	}

	exists, err := s.repo.AttendanceRegister.ExistsByCode(ctx, req.Code, "")
	if err != nil {
		return nil, s.fail("校验登记簿编码失败", "", err)
	}
	if exists {
		return nil, ErrRegisterCodeExists
	}
	exists, err = s.repo.AttendanceRegister.ExistsByScope(ctx, req.CourseID, req.BatchID, req.SubjectID, "")
	if err != nil {
		return nil, s.fail("校验登记簿范围失败", "", err)
	}
	if exists {
		return nil, ErrRegisterScopeExists
	}

	register := &model.AttendanceRegister{
		Name:          req.Name,
		Code:          req.Code,
		CourseID:      req.CourseID,
		BatchID:       req.BatchID,
		SubjectID:     req.SubjectID,
		Active:        true,
		CompanyScoped: actor.scope(),
	}
	register.CreatedBy = actor.userRef()
	register.UpdatedBy = actor.userRef()

	if err := s.repo.AttendanceRegister.Create(ctx, register); err != nil {
		return nil, s.fail("创建考勤登记簿失败", "", err)
	}
	return s.toResponse(ctx, register)
}

func (s *attendanceRegisterService) GetByID(ctx context.Context, id string) (*dto.AttendanceRegisterResponse, error) {
	register, err := s.repo.AttendanceRegister.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询考勤登记簿失败", id, mapNotFound(err, ErrRegisterNotFound))
	}
	return s.toResponse(ctx, register)
}

func (s *attendanceRegisterService) List(ctx context.Context, req *dto.AttendanceRegisterListRequest, actor Actor) ([]dto.AttendanceRegisterResponse, int64, error) {
	registers, total, err := s.repo.AttendanceRegister.List(ctx, repository.AttendanceRegisterFilter{
		CourseID:  req.CourseID,
		BatchID:   req.BatchID,
		CompanyID: actor.CompanyID,
	}, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出考勤登记簿失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.AttendanceRegisterResponse, 0, len(registers))
	for i := range registers {
		resp, err := s.toResponse(ctx, &registers[i])
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *resp)
	}
	return result, total, nil
}

func (s *attendanceRegisterService) OpenTodaySheet(ctx context.Context, id string, actor Actor) (*dto.ActionResponse, error) {
	register, err := s.repo.AttendanceRegister.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询考勤登记簿失败", id, mapNotFound(err, ErrRegisterNotFound))
	}

	date := today(s.now())
	sheet, err := s.repo.AttendanceSheet.FindByRegisterAndDate(ctx, id, date)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, s.fail("查询今日考勤表失败", id, err)
	}

	if sheet == nil {
		sheet = &model.AttendanceSheet{
			RegisterID:     register.RegisterID,
			CourseID:       register.CourseID,
			BatchID:        register.BatchID,
			AttendanceDate: date,
			State:          model.SheetStateDraft,
			CompanyScoped:  actor.scope(),
			Register:       register,
		}
		sheet.CreatedBy = actor.userRef()
		sheet.UpdatedBy = actor.userRef()

		err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
			return createSheet(ctx, txRepo, sheet, s.cfg.SheetSequenceCode, actor)
		})
		if err != nil {
			return nil, s.fail("创建今日考勤表失败", id, err)
		}
		s.logger.Info("创建今日考勤表", zap.String("register_id", id), zap.String("sheet", sheet.Name))
	}

	return &dto.ActionResponse{
		Type:     "open_view",
		Model:    "attendance_sheet",
		ViewMode: "form",
		ResID:    sheet.SheetID,
	}, nil
}

func (s *attendanceRegisterService) toResponse(ctx context.Context, register *model.AttendanceRegister) (*dto.AttendanceRegisterResponse, error) {
	sheets, err := s.repo.AttendanceSheet.CountByRegister(ctx, register.RegisterID)
	if err != nil {
		s.logger.Error("统计考勤表数量失败", zap.String("register_id", register.RegisterID), zap.Error(err))
		return nil, err
	}
	roster, err := s.repo.Academic.ListActiveStudentIDs(ctx, register.CourseID, register.BatchID)
	if err != nil {
		s.logger.Error("查询花名册失败", zap.String("register_id", register.RegisterID), zap.Error(err))
		return nil, err
	}

	return &dto.AttendanceRegisterResponse{
		ID:            register.RegisterID,
		Name:          register.Name,
		Code:          register.Code,
		CourseID:      register.CourseID,
		BatchID:       register.BatchID,
		SubjectID:     register.SubjectID,
		SheetCount:    sheets,
		TotalStudents: len(roster),
	}, nil
}

func (s *attendanceRegisterService) fail(msg, id string, err error) error {
	if !isBusinessError(err) {
		s.logger.Error(msg, zap.String("id", id), zap.Error(err))
	}
	return err
}
