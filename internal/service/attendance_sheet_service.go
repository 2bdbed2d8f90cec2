package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"opencampus/backend/config"
	"opencampus/backend/internal/dto"
	"opencampus/backend/internal/model"
	"opencampus/backend/internal/repository"
	pkgerrors "opencampus/backend/pkg/errors"
)

// ── 考勤表模块业务错误 ──

var (
	ErrSheetNotFound         = newBizError(ErrNotFound, "考勤表不存在")
	ErrLineNotFound          = newBizError(ErrNotFound, "考勤明细不存在")
	ErrSheetDateInvalid      = newBizError(ErrValidation, "考勤日期格式错误")
	ErrSheetFutureDate       = newBizError(ErrValidation, "考勤日期不能晚于今天")
	ErrSheetDuplicate        = newBizError(ErrValidation, "该登记簿在同一课节同一日期已有考勤表")
	ErrSequenceNotConfigured = newBizError(ErrValidation, "考勤表编号序列未配置")
	ErrLineStatusInvalid     = newBizError(ErrValidation, "考勤状态必须是 present、excused、absent、late 之一")
	ErrSheetBadTransition    = newBizError(ErrStateTransition, "考勤表当前状态不允许此操作")
	ErrSheetHasLines         = newBizError(ErrStateTransition, "已有考勤明细的考勤表不能退回草稿")
	ErrSheetNoLines          = newBizError(ErrStateTransition, "考勤表至少需要一条考勤明细")
	ErrSheetClosed           = newBizError(ErrStateTransition, "考勤表已完成或已取消")
)

// AttendanceSheetService 考勤表业务接口
type AttendanceSheetService interface {
	Create(ctx context.Context, req *dto.CreateAttendanceSheetRequest, actor Actor) (*dto.AttendanceSheetResponse, error)
	GetByID(ctx context.Context, id string) (*dto.AttendanceSheetDetailResponse, error)
	List(ctx context.Context, req *dto.AttendanceSheetListRequest, actor Actor) ([]dto.AttendanceSheetResponse, int64, error)

	// 状态流转
	Start(ctx context.Context, id string, actor Actor) (*dto.AttendanceSheetResponse, error)
	Draft(ctx context.Context, id string, actor Actor) (*dto.AttendanceSheetResponse, error)
	Done(ctx context.Context, id string, actor Actor) (*dto.AttendanceSheetResponse, error)
	Cancel(ctx context.Context, id string, actor Actor) (*dto.AttendanceSheetResponse, error)

	// GenerateLines 按登记簿花名册补齐考勤明细
	GenerateLines(ctx context.Context, id string, actor Actor) (*dto.GenerateResponse, error)
	// MarkLine 登记单个学生的考勤状态
	MarkLine(ctx context.Context, lineID string, req *dto.MarkAttendanceLineRequest, actor Actor) (*dto.AttendanceLineResponse, error)
}

type attendanceSheetService struct {
	repo      *repository.Repository
	generator AttendanceGenerator
	cfg       *config.AttendanceConfig
	now       func() time.Time
	logger    *zap.Logger
}

// NewAttendanceSheetService 创建 AttendanceSheetService 实例
func NewAttendanceSheetService(cfg *config.AttendanceConfig, repo *repository.Repository, generator AttendanceGenerator, logger *zap.Logger) AttendanceSheetService {
	return &attendanceSheetService{repo: repo, generator: generator, cfg: cfg, now: time.Now, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *attendanceSheetService) Create(ctx context.Context, req *dto.CreateAttendanceSheetRequest, actor Actor) (*dto.AttendanceSheetResponse, error) {
	date, err := time.Parse(dateLayout, req.AttendanceDate)
	if err != nil {
		return nil, ErrSheetDateInvalid
	}
	if !s.cfg.AllowFutureDates && date.After(today(s.now())) {
		return nil, ErrSheetFutureDate
	}

	register, err := s.repo.AttendanceRegister.GetByID(ctx, req.RegisterID)
	if err != nil {
		return nil, s.fail("查询考勤登记簿失败", req.RegisterID, mapNotFound(err, ErrRegisterNotFound))
	}

	sheet := &model.AttendanceSheet{
		RegisterID:     register.RegisterID,
		SessionID:      req.SessionID,
		CourseID:       register.CourseID,
		BatchID:        register.BatchID,
		FacultyID:      req.FacultyID,
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
		return nil, s.fail("创建考勤表失败", "", err)
	}
	return s.toResponse(ctx, sheet)
}

// createSheet 校验唯一性、取号并写入；供新建考勤表与“今日考勤”复用
func createSheet(ctx context.Context, repo *repository.Repository, sheet *model.AttendanceSheet, sequenceCode string, actor Actor) error {
	dup, err := repo.AttendanceSheet.ExistsDuplicate(ctx, sheet.RegisterID, sheet.SessionID, sheet.AttendanceDate, "")
	if err != nil {
		return err
	}
	if dup {
		return ErrSheetDuplicate
	}

	seq, err := repo.Sequence.Next(ctx, sequenceCode)
	if err != nil {
		return mapNotFound(err, ErrSequenceNotConfigured)
	}
	code := ""
	if sheet.Register != nil {
		code = sheet.Register.Code
	}
	sheet.Name = code + seq

	if err := repo.AttendanceSheet.Create(ctx, sheet); err != nil {
		if pkgerrors.IsDuplicateKey(err) {
			return ErrSheetDuplicate
		}
		return err
	}
	return appendChangeLog(ctx, repo, model.EntityAttendanceSheet, sheet.SheetID, "", sheet.State, "创建考勤表", actor)
}

// ────────────────────── GetByID / List ──────────────────────

func (s *attendanceSheetService) GetByID(ctx context.Context, id string) (*dto.AttendanceSheetDetailResponse, error) {
	sheet, err := s.repo.AttendanceSheet.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询考勤表失败", id, mapNotFound(err, ErrSheetNotFound))
	}
	lines, err := s.repo.AttendanceLine.ListBySheet(ctx, id)
	if err != nil {
		return nil, s.fail("查询考勤明细失败", id, err)
	}

	detail := &dto.AttendanceSheetDetailResponse{
		AttendanceSheetResponse: toSheetResponse(sheet, int64(len(lines))),
		Lines:                   make([]dto.AttendanceLineResponse, 0, len(lines)),
	}
	for i := range lines {
		detail.Lines = append(detail.Lines, toLineResponse(&lines[i]))
	}
	return detail, nil
}

func (s *attendanceSheetService) List(ctx context.Context, req *dto.AttendanceSheetListRequest, actor Actor) ([]dto.AttendanceSheetResponse, int64, error) {
	filter := repository.AttendanceSheetFilter{
		RegisterID: req.RegisterID,
		State:      req.State,
		CompanyID:  actor.CompanyID,
	}
	if req.DateFrom != "" {
		from, err := time.Parse(dateLayout, req.DateFrom)
		if err != nil {
			return nil, 0, ErrSheetDateInvalid
		}
		filter.DateFrom = &from
	}
	if req.DateTo != "" {
		to, err := time.Parse(dateLayout, req.DateTo)
		if err != nil {
			return nil, 0, ErrSheetDateInvalid
		}
		filter.DateTo = &to
	}

	sheets, total, err := s.repo.AttendanceSheet.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出考勤表失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.AttendanceSheetResponse, 0, len(sheets))
	for i := range sheets {
		resp, err := s.toResponse(ctx, &sheets[i])
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *resp)
	}
	return result, total, nil
}

// ────────────────────── 状态流转 ──────────────────────

func (s *attendanceSheetService) Start(ctx context.Context, id string, actor Actor) (*dto.AttendanceSheetResponse, error) {
	return s.transition(ctx, id, model.SheetStateStart, "开始考勤", actor,
		func(_ context.Context, _ *repository.Repository, sheet *model.AttendanceSheet) error {
			if sheet.State != model.SheetStateDraft {
				return withDetail(ErrSheetBadTransition, "%s → %s", sheet.State, model.SheetStateStart)
			}
			return nil
		})
}

func (s *attendanceSheetService) Draft(ctx context.Context, id string, actor Actor) (*dto.AttendanceSheetResponse, error) {
	return s.transition(ctx, id, model.SheetStateDraft, "考勤表退回草稿", actor,
		func(ctx context.Context, txRepo *repository.Repository, sheet *model.AttendanceSheet) error {
			if sheet.State == model.SheetStateDone {
				return withDetail(ErrSheetBadTransition, "%s → %s", sheet.State, model.SheetStateDraft)
			}
			count, err := txRepo.AttendanceLine.CountBySheet(ctx, sheet.SheetID)
			if err != nil {
				return err
			}
			if count > 0 {
				return ErrSheetHasLines
			}
			return nil
		})
}

func (s *attendanceSheetService) Done(ctx context.Context, id string, actor Actor) (*dto.AttendanceSheetResponse, error) {
	return s.transition(ctx, id, model.SheetStateDone, "完成考勤", actor,
		func(ctx context.Context, txRepo *repository.Repository, sheet *model.AttendanceSheet) error {
			if sheet.State != model.SheetStateStart {
				return withDetail(ErrSheetBadTransition, "%s → %s", sheet.State, model.SheetStateDone)
			}
			count, err := txRepo.AttendanceLine.CountBySheet(ctx, sheet.SheetID)
			if err != nil {
				return err
			}
			if count == 0 {
				return ErrSheetNoLines
			}
			return nil
		})
}

func (s *attendanceSheetService) Cancel(ctx context.Context, id string, actor Actor) (*dto.AttendanceSheetResponse, error) {
	return s.transition(ctx, id, model.SheetStateCancel, "取消考勤", actor,
		func(context.Context, *repository.Repository, *model.AttendanceSheet) error { return nil })
}

// ────────────────────── GenerateLines ──────────────────────

func (s *attendanceSheetService) GenerateLines(ctx context.Context, id string, actor Actor) (*dto.GenerateResponse, error) {
	sheet, err := s.repo.AttendanceSheet.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询考勤表失败", id, mapNotFound(err, ErrSheetNotFound))
	}
	if sheet.State != model.SheetStateDraft && sheet.State != model.SheetStateStart {
		return nil, ErrSheetClosed
	}

	roster, err := s.repo.Academic.ListActiveStudentIDs(ctx, sheet.CourseID, sheet.BatchID)
	if err != nil {
		return nil, s.fail("查询花名册失败", id, err)
	}

	created, err := s.generator.GenerateSheetLines(ctx, id, roster, actor)
	if err != nil {
		return nil, s.fail("生成考勤明细失败", id, err)
	}

	s.logger.Info("生成考勤明细",
		zap.String("sheet_id", id),
		zap.Int("roster", len(roster)),
		zap.Int("created", created),
	)
	return &dto.GenerateResponse{Created: created}, nil
}

// ────────────────────── MarkLine ──────────────────────

func (s *attendanceSheetService) MarkLine(ctx context.Context, lineID string, req *dto.MarkAttendanceLineRequest, actor Actor) (*dto.AttendanceLineResponse, error) {
	if !model.IsValidLineStatus(req.Status) {
		return nil, ErrLineStatusInvalid
	}

	line, err := s.repo.AttendanceLine.GetByID(ctx, lineID)
	if err != nil {
		return nil, s.fail("查询考勤明细失败", lineID, mapNotFound(err, ErrLineNotFound))
	}
	sheet, err := s.repo.AttendanceSheet.GetByID(ctx, line.SheetID)
	if err != nil {
		return nil, s.fail("查询考勤表失败", line.SheetID, mapNotFound(err, ErrSheetNotFound))
	}
	if sheet.State == model.SheetStateDone || sheet.State == model.SheetStateCancel {
		return nil, ErrSheetClosed
	}

	line.Status = req.Status
	if req.Remark != nil {
		line.Remark = *req.Remark
	}
	line.UpdatedBy = actor.userRef()

	if err := s.repo.AttendanceLine.Update(ctx, line); err != nil {
		return nil, s.fail("登记考勤失败", lineID, err)
	}

	resp := toLineResponse(line)
	return &resp, nil
}

// ────────────────────── 内部方法 ──────────────────────

type sheetGuard func(ctx context.Context, txRepo *repository.Repository, sheet *model.AttendanceSheet) error

func (s *attendanceSheetService) transition(ctx context.Context, id, to, message string, actor Actor, guard sheetGuard) (*dto.AttendanceSheetResponse, error) {
	var sheet *model.AttendanceSheet
	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		var err error
		sheet, err = txRepo.AttendanceSheet.GetForUpdate(ctx, id)
		if err != nil {
			return mapNotFound(err, ErrSheetNotFound)
		}
		if err := guard(ctx, txRepo, sheet); err != nil {
			return err
		}
		from := sheet.State
		sheet.State = to
		sheet.UpdatedBy = actor.userRef()
		if err := txRepo.AttendanceSheet.Update(ctx, sheet); err != nil {
			return err
		}
		return appendChangeLog(ctx, txRepo, model.EntityAttendanceSheet, sheet.SheetID, from, to, message, actor)
	})
	if err != nil {
		return nil, s.fail("考勤表状态变更失败", id, err)
	}
	return s.toResponse(ctx, sheet)
}

func (s *attendanceSheetService) toResponse(ctx context.Context, sheet *model.AttendanceSheet) (*dto.AttendanceSheetResponse, error) {
	count, err := s.repo.AttendanceLine.CountBySheet(ctx, sheet.SheetID)
	if err != nil {
		s.logger.Error("统计考勤明细失败", zap.String("sheet_id", sheet.SheetID), zap.Error(err))
		return nil, err
	}
	resp := toSheetResponse(sheet, count)
	return &resp, nil
}

func (s *attendanceSheetService) fail(msg, id string, err error) error {
	if !isBusinessError(err) {
		s.logger.Error(msg, zap.String("id", id), zap.Error(err))
	}
	return err
}

func toSheetResponse(sheet *model.AttendanceSheet, lineCount int64) dto.AttendanceSheetResponse {
	return dto.AttendanceSheetResponse{
		ID:             sheet.SheetID,
		Name:           sheet.Name,
		RegisterID:     sheet.RegisterID,
		SessionID:      sheet.SessionID,
		CourseID:       sheet.CourseID,
		BatchID:        sheet.BatchID,
		FacultyID:      sheet.FacultyID,
		AttendanceDate: sheet.AttendanceDate.Format(dateLayout),
		State:          sheet.State,
		LineCount:      lineCount,
		Version:        sheet.Version,
	}
}

func toLineResponse(line *model.AttendanceLine) dto.AttendanceLineResponse {
	resp := dto.AttendanceLineResponse{
		ID:             line.LineID,
		SheetID:        line.SheetID,
		StudentID:      line.StudentID,
		Status:         line.Status,
		Remark:         line.Remark,
		AttendanceDate: line.AttendanceDate.Format(dateLayout),
	}
	if line.Student != nil {
		resp.StudentName = line.Student.DisplayName()
	}
	return resp
}

// today 当天零点（UTC），与按日期解析出的考勤日期可直接比较
func today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
