package service

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"opencampus/backend/internal/dto"
	"opencampus/backend/internal/model"
	"opencampus/backend/internal/repository"
)

// ── 成绩模板业务错误 ──

var (
	ErrGradeBandInvalid         = newBizError(ErrValidation, "等级区间须满足 0 <= 最低百分比 <= 最高百分比 <= 100")
	ErrGradeNotFound            = newBizError(ErrNotFound, "等级配置不存在")
	ErrGradeBandsOverlap        = newBizError(ErrValidation, "等级区间存在重叠")
	ErrResultDateInvalid        = newBizError(ErrValidation, "成绩日期格式错误")
	ErrTemplateNotFound         = newBizError(ErrNotFound, "成绩模板不存在")
	ErrTemplateAlreadyGenerated = newBizError(ErrStateTransition, "成绩模板已生成成绩单")
	ErrResultNoExams            = newBizError(ErrValidation, "考试场次下没有考试，无法生成成绩")
	ErrResultExamsPending       = newBizError(ErrStateTransition, "场次内所有考试须已举行或已登记成绩")
	ErrMarksheetNotFound        = newBizError(ErrNotFound, "成绩单不存在")
)

// ResultTemplateService 等级配置、成绩模板与成绩单生成
type ResultTemplateService interface {
	CreateGrade(ctx context.Context, req *dto.CreateGradeConfigurationRequest, actor Actor) (*dto.GradeConfigurationResponse, error)
	ListGrades(ctx context.Context, req *dto.PaginationRequest, actor Actor) ([]dto.GradeConfigurationResponse, int64, error)

	Create(ctx context.Context, req *dto.CreateResultTemplateRequest, actor Actor) (*dto.ResultTemplateResponse, error)
	GetByID(ctx context.Context, id string) (*dto.ResultTemplateResponse, error)
	List(ctx context.Context, req *dto.ResultTemplateListRequest, actor Actor) ([]dto.ResultTemplateResponse, int64, error)
	// GenerateResult 为场次生成成绩单：每个学生一行，每个考生记录一条单科成绩；模板转为 result_generated
	GenerateResult(ctx context.Context, id string, actor Actor) (*dto.ActionResponse, error)

	GetMarksheet(ctx context.Context, id string) (*dto.MarksheetRegisterResponse, error)
}

type resultTemplateService struct {
	repo   *repository.Repository
	now    func() time.Time
	logger *zap.Logger
}

// NewResultTemplateService 创建 ResultTemplateService 实例
func NewResultTemplateService(repo *repository.Repository, logger *zap.Logger) ResultTemplateService {
	return &resultTemplateService{repo: repo, now: time.Now, logger: logger}
}

// ────────────────────── 等级配置 ──────────────────────

func (s *resultTemplateService) CreateGrade(ctx context.Context, req *dto.CreateGradeConfigurationRequest, actor Actor) (*dto.GradeConfigurationResponse, error) {
	if req.MinPer < 0 || req.MaxPer > 100 || req.MinPer > req.MaxPer {
		return nil, ErrGradeBandInvalid
	}

	grade := &model.GradeConfiguration{
		Name:          req.Name,
		MinPer:        req.MinPer,
		MaxPer:        req.MaxPer,
		Result:        req.Result,
		CompanyScoped: actor.scope(),
	}
	grade.CreatedBy = actor.userRef()
	grade.UpdatedBy = actor.userRef()

	if err := s.repo.GradeConfiguration.Create(ctx, grade); err != nil {
		return nil, s.fail("创建等级配置失败", "", err)
	}
	resp := toGradeResponse(grade)
	return &resp, nil
}

func (s *resultTemplateService) ListGrades(ctx context.Context, req *dto.PaginationRequest, actor Actor) ([]dto.GradeConfigurationResponse, int64, error) {
	grades, total, err := s.repo.GradeConfiguration.List(ctx, actor.CompanyID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出等级配置失败", zap.Error(err))
		return nil, 0, err
	}
	return toGradeResponses(grades), total, nil
}

// ────────────────────── 成绩模板 ──────────────────────

func (s *resultTemplateService) Create(ctx context.Context, req *dto.CreateResultTemplateRequest, actor Actor) (*dto.ResultTemplateResponse, error) {
	resultDate := today(s.now())
	if req.ResultDate != "" {
		d, err := time.Parse(dateLayout, req.ResultDate)
		if err != nil {
			return nil, ErrResultDateInvalid
		}
		resultDate = d
	}

	session, err := s.repo.ExamSession.GetByID(ctx, req.SessionID)
	if err != nil {
		return nil, s.fail("查询考试场次失败", req.SessionID, mapNotFound(err, ErrSessionNotFound))
	}

	var gradeIDs []string
	for _, gid := range req.GradeIDs {
		if !slices.Contains(gradeIDs, gid) {
			gradeIDs = append(gradeIDs, gid)
		}
	}
	grades, err := s.repo.GradeConfiguration.ListByIDs(ctx, gradeIDs)
	if err != nil {
		return nil, s.fail("查询等级配置失败", req.SessionID, err)
	}
	if len(grades) != len(gradeIDs) {
		return nil, ErrGradeNotFound
	}
	if err := validateGradeBands(grades); err != nil {
		return nil, err
	}

	template := &model.ResultTemplate{
		SessionID:     session.SessionID,
		Name:          req.Name,
		ResultDate:    resultDate,
		State:         model.TemplateStateDraft,
		Active:        true,
		CompanyScoped: actor.scope(),
		Grades:        grades,
	}
	template.Version = 1
	template.CreatedBy = actor.userRef()
	template.UpdatedBy = actor.userRef()

	if err := s.repo.ResultTemplate.Create(ctx, template); err != nil {
		return nil, s.fail("创建成绩模板失败", "", err)
	}
	s.logger.Info("创建成绩模板", zap.String("template_id", template.TemplateID), zap.String("session_id", session.SessionID))
	return s.toResponse(template, session), nil
}

func (s *resultTemplateService) GetByID(ctx context.Context, id string) (*dto.ResultTemplateResponse, error) {
	template, err := s.repo.ResultTemplate.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询成绩模板失败", id, mapNotFound(err, ErrTemplateNotFound))
	}
	session, err := s.repo.ExamSession.GetByID(ctx, template.SessionID)
	if err != nil {
		return nil, s.fail("查询考试场次失败", template.SessionID, mapNotFound(err, ErrSessionNotFound))
	}
	return s.toResponse(template, session), nil
}

func (s *resultTemplateService) List(ctx context.Context, req *dto.ResultTemplateListRequest, actor Actor) ([]dto.ResultTemplateResponse, int64, error) {
	templates, total, err := s.repo.ResultTemplate.List(ctx, repository.ResultTemplateFilter{
		SessionID: req.SessionID,
		State:     req.State,
		CompanyID: actor.CompanyID,
	}, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出成绩模板失败", zap.Error(err))
		return nil, 0, err
	}

	sessions := make(map[string]*model.ExamSession)
	result := make([]dto.ResultTemplateResponse, 0, len(templates))
	for i := range templates {
		session, ok := sessions[templates[i].SessionID]
		if !ok {
			session, err = s.repo.ExamSession.GetByID(ctx, templates[i].SessionID)
			if err != nil {
				return nil, 0, s.fail("查询考试场次失败", templates[i].SessionID, mapNotFound(err, ErrSessionNotFound))
			}
			sessions[session.SessionID] = session
		}
		result = append(result, *s.toResponse(&templates[i], session))
	}
	return result, total, nil
}

// ────────────────────── 生成成绩单 ──────────────────────

func (s *resultTemplateService) GenerateResult(ctx context.Context, id string, actor Actor) (*dto.ActionResponse, error) {
	var register *model.MarksheetRegister

	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		// 行锁期间模板不会被并发生成两次
		template, err := txRepo.ResultTemplate.GetForUpdate(ctx, id)
		if err != nil {
			return mapNotFound(err, ErrTemplateNotFound)
		}
		if template.State != model.TemplateStateDraft {
			return ErrTemplateAlreadyGenerated
		}

		grades, err := txRepo.ResultTemplate.ListGrades(ctx, id)
		if err != nil {
			return err
		}
		if err := validateGradeBands(grades); err != nil {
			return err
		}

		session, err := txRepo.ExamSession.GetByID(ctx, template.SessionID)
		if err != nil {
			return mapNotFound(err, ErrSessionNotFound)
		}
		exams, err := txRepo.Exam.ListBySession(ctx, session.SessionID)
		if err != nil {
			return err
		}
		if len(exams) == 0 {
			return ErrResultNoExams
		}
		var pending []string
		for i := range exams {
			if !slices.Contains(model.ResultExamStates, exams[i].State) {
				pending = append(pending, fmt.Sprintf("%s(%s)", exams[i].Name, exams[i].State))
			}
		}
		if len(pending) > 0 {
			return withDetail(ErrResultExamsPending, "%s", strings.Join(pending, ", "))
		}

		attendees := make(map[string][]model.ExamAttendee, len(exams))
		for i := range exams {
			list, err := txRepo.ExamAttendee.ListByExam(ctx, exams[i].ExamID)
			if err != nil {
				return err
			}
			attendees[exams[i].ExamID] = list
		}

		register = buildMarksheet(session, template, exams, attendees, grades, today(s.now()), actor)
		if err := txRepo.Marksheet.Create(ctx, register); err != nil {
			return err
		}

		template.State = model.TemplateStateResultGenerated
		template.UpdatedBy = actor.userRef()
		if err := txRepo.ResultTemplate.UpdateState(ctx, template); err != nil {
			return err
		}
		return appendChangeLog(ctx, txRepo, model.EntityResultTemplate, template.TemplateID,
			model.TemplateStateDraft, model.TemplateStateResultGenerated, "生成成绩单 "+register.Name, actor)
	})
	if err != nil {
		return nil, s.fail("生成成绩单失败", id, err)
	}

	s.logger.Info("生成成绩单",
		zap.String("template_id", id),
		zap.String("marksheet_register_id", register.RegisterID),
		zap.Int("students", len(register.Lines)),
	)
	return &dto.ActionResponse{
		Type:     "open_view",
		Model:    "marksheet_register",
		ViewMode: "form",
		ResID:    register.RegisterID,
	}, nil
}

// buildMarksheet 按考试顺序汇总考生记录：学生首次出现的顺序即成绩行顺序，未登记分数按 0 计
func buildMarksheet(
	session *model.ExamSession,
	template *model.ResultTemplate,
	exams []model.Exam,
	attendees map[string][]model.ExamAttendee,
	grades []model.GradeConfiguration,
	generatedDate time.Time,
	actor Actor,
) *model.MarksheetRegister {
	type tally struct {
		line     *model.MarksheetLine
		maxMarks int
	}

	var order []string
	byStudent := make(map[string]*tally)
	for i := range exams {
		exam := &exams[i]
		for _, a := range attendees[exam.ExamID] {
			t, ok := byStudent[a.StudentID]
			if !ok {
				t = &tally{line: &model.MarksheetLine{StudentID: a.StudentID, Status: model.ResultStatusPass}}
				t.line.CreatedBy = actor.userRef()
				byStudent[a.StudentID] = t
				order = append(order, a.StudentID)
			}

			marks := 0
			if a.Marks != nil {
				marks = *a.Marks
			}
			status := model.ResultStatusPass
			if marks < exam.MinMarks {
				status = model.ResultStatusFail
				t.line.Status = model.ResultStatusFail
			}
			result := model.ResultLine{ExamID: exam.ExamID, StudentID: a.StudentID, Marks: marks, Status: status}
			result.CreatedBy = actor.userRef()
			t.line.Results = append(t.line.Results, result)
			t.line.TotalMarks += marks
			t.maxMarks += exam.TotalMarks
		}
	}

	register := &model.MarksheetRegister{
		SessionID:     session.SessionID,
		TemplateID:    template.TemplateID,
		Name:          "成绩单 " + session.Name,
		GeneratedDate: generatedDate,
		GeneratedBy:   actor.UserID,
		State:         model.MarksheetStateDraft,
		CompanyScoped: template.CompanyScoped,
		Lines:         make([]model.MarksheetLine, 0, len(order)),
	}
	register.CreatedBy = actor.userRef()
	register.UpdatedBy = actor.userRef()

	for _, studentID := range order {
		t := byStudent[studentID]
		if t.maxMarks > 0 {
			t.line.Percentage = math.Round(float64(t.line.TotalMarks)*10000/float64(t.maxMarks)) / 100
		}
		t.line.Grade = gradeFor(grades, t.line.Percentage)
		register.Lines = append(register.Lines, *t.line)
	}
	return register
}

// gradeFor 百分比落入的等级；不在任何区间内时为空
func gradeFor(grades []model.GradeConfiguration, percentage float64) string {
	for i := range grades {
		if grades[i].Contains(percentage) {
			return grades[i].Result
		}
	}
	return ""
}

// validateGradeBands 同一模板内的等级区间两两不得相交
func validateGradeBands(grades []model.GradeConfiguration) error {
	for i := range grades {
		if grades[i].MinPer > grades[i].MaxPer {
			return withDetail(ErrGradeBandInvalid, "%s", grades[i].Name)
		}
		for j := i + 1; j < len(grades); j++ {
			if grades[i].Overlaps(&grades[j]) {
				return withDetail(ErrGradeBandsOverlap, "%s [%d, %d] 与 %s [%d, %d]",
					grades[i].Name, grades[i].MinPer, grades[i].MaxPer,
					grades[j].Name, grades[j].MinPer, grades[j].MaxPer)
			}
		}
	}
	return nil
}

// ────────────────────── 成绩单 ──────────────────────

func (s *resultTemplateService) GetMarksheet(ctx context.Context, id string) (*dto.MarksheetRegisterResponse, error) {
	register, err := s.repo.Marksheet.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询成绩单失败", id, mapNotFound(err, ErrMarksheetNotFound))
	}

	resp := &dto.MarksheetRegisterResponse{
		ID:            register.RegisterID,
		Name:          register.Name,
		SessionID:     register.SessionID,
		TemplateID:    register.TemplateID,
		GeneratedDate: register.GeneratedDate.Format(dateLayout),
		GeneratedBy:   register.GeneratedBy,
		State:         register.State,
		Lines:         make([]dto.MarksheetLineResponse, 0, len(register.Lines)),
	}
	for _, line := range register.Lines {
		if line.Status == model.ResultStatusPass {
			resp.TotalPass++
		} else {
			resp.TotalFailed++
		}
		lr := dto.MarksheetLineResponse{
			ID:         line.LineID,
			StudentID:  line.StudentID,
			TotalMarks: line.TotalMarks,
			Percentage: line.Percentage,
			Grade:      line.Grade,
			Status:     line.Status,
			Results:    make([]dto.ResultLineResponse, 0, len(line.Results)),
		}
		if line.Student != nil && line.Student.Partner != nil {
			lr.StudentName = line.Student.Partner.Name
		}
		for _, r := range line.Results {
			lr.Results = append(lr.Results, dto.ResultLineResponse{ExamID: r.ExamID, Marks: r.Marks, Status: r.Status})
		}
		resp.Lines = append(resp.Lines, lr)
	}
	return resp, nil
}

// ────────────────────── 内部方法 ──────────────────────

func (s *resultTemplateService) toResponse(template *model.ResultTemplate, session *model.ExamSession) *dto.ResultTemplateResponse {
	return &dto.ResultTemplateResponse{
		ID:             template.TemplateID,
		SessionID:      template.SessionID,
		EvaluationType: session.EvaluationType,
		Name:           template.Name,
		ResultDate:     template.ResultDate.Format(dateLayout),
		State:          template.State,
		Grades:         toGradeResponses(template.Grades),
		Version:        template.Version,
	}
}

func toGradeResponse(g *model.GradeConfiguration) dto.GradeConfigurationResponse {
	return dto.GradeConfigurationResponse{ID: g.GradeID, Name: g.Name, MinPer: g.MinPer, MaxPer: g.MaxPer, Result: g.Result}
}

func toGradeResponses(grades []model.GradeConfiguration) []dto.GradeConfigurationResponse {
	result := make([]dto.GradeConfigurationResponse, 0, len(grades))
	for i := range grades {
		result = append(result, toGradeResponse(&grades[i]))
	}
	return result
}

func (s *resultTemplateService) fail(msg, id string, err error) error {
	if !isBusinessError(err) {
		s.logger.Error(msg, zap.String("id", id), zap.Error(err))
	}
	return err
}
