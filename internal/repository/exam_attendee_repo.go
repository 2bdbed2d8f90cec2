package repository

import (
	"context"

	"gorm.io/gorm"

	"opencampus/backend/internal/model"
)

// BookingFilter 考场/考生占用查询条件
// RoomIDs 与 StudentIDs 为或关系：命中任一考场或任一考生即返回
type BookingFilter struct {
	Interval      model.TimeInterval
	RoomIDs       []string
	StudentIDs    []string
	ExcludeExamID string
	States        []string
}

// ExamAttendeeRepository 考生数据访问接口
type ExamAttendeeRepository interface {
	Create(ctx context.Context, attendee *model.ExamAttendee) error
	BatchCreate(ctx context.Context, attendees []model.ExamAttendee) error
	GetByID(ctx context.Context, id string) (*model.ExamAttendee, error)
	Update(ctx context.Context, attendee *model.ExamAttendee) error
	ListByExam(ctx context.Context, examID string) ([]model.ExamAttendee, error)
	StudentIDsByExam(ctx context.Context, examID string) ([]string, error)
	CountByExam(ctx context.Context, examID string) (int64, error)
	CountWithMarksByExam(ctx context.Context, examID string) (int64, error)
	DeleteByExam(ctx context.Context, examID string) error
	// ListBookings 与候选时间段重叠、且所属考试处于 States 的考生记录
	ListBookings(ctx context.Context, filter BookingFilter) ([]model.RoomBooking, error)
	// CountByRoom 考场内所属考试处于 examStates 的考生数
	CountByRoom(ctx context.Context, roomID string, examStates []string) (int64, error)
}

type examAttendeeRepo struct {
	db *gorm.DB
}

// NewExamAttendeeRepo 创建 ExamAttendeeRepository 实例
func NewExamAttendeeRepo(db *gorm.DB) ExamAttendeeRepository {
	return &examAttendeeRepo{db: db}
}

func (r *examAttendeeRepo) Create(ctx context.Context, attendee *model.ExamAttendee) error {
	return r.db.WithContext(ctx).Create(attendee).Error
}

func (r *examAttendeeRepo) BatchCreate(ctx context.Context, attendees []model.ExamAttendee) error {
	if len(attendees) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&attendees, 200).Error
}

func (r *examAttendeeRepo) GetByID(ctx context.Context, id string) (*model.ExamAttendee, error) {
	var attendee model.ExamAttendee
	err := r.db.WithContext(ctx).
		Preload("Student").Preload("Student.Partner").
		Preload("Room").
		Where("exam_attendee_id = ?", id).
		First(&attendee).Error
	if err != nil {
		return nil, err
	}
	return &attendee, nil
}

func (r *examAttendeeRepo) Update(ctx context.Context, attendee *model.ExamAttendee) error {
	return r.db.WithContext(ctx).
		Model(attendee).
		Where("exam_attendee_id = ?", attendee.AttendeeID).
		Updates(map[string]interface{}{
			"exam_room_id": attendee.RoomID,
			"status":       attendee.Status,
			"marks":        attendee.Marks,
			"note":         attendee.Note,
			"updated_by":   attendee.UpdatedBy,
		}).Error
}

func (r *examAttendeeRepo) ListByExam(ctx context.Context, examID string) ([]model.ExamAttendee, error) {
	var attendees []model.ExamAttendee
	err := r.db.WithContext(ctx).
		Preload("Student").Preload("Student.Partner").
		Preload("Room").
		Where("exam_id = ?", examID).
		Order("created_at ASC, exam_attendee_id ASC").
		Find(&attendees).Error
	return attendees, err
}

func (r *examAttendeeRepo) StudentIDsByExam(ctx context.Context, examID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.ExamAttendee{}).
		Where("exam_id = ?", examID).
		Pluck("student_id", &ids).Error
	return ids, err
}

func (r *examAttendeeRepo) CountByExam(ctx context.Context, examID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ExamAttendee{}).
		Where("exam_id = ?", examID).
		Count(&count).Error
	return count, err
}

func (r *examAttendeeRepo) CountWithMarksByExam(ctx context.Context, examID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ExamAttendee{}).
		Where("exam_id = ? AND marks IS NOT NULL", examID).
		Count(&count).Error
	return count, err
}

func (r *examAttendeeRepo) DeleteByExam(ctx context.Context, examID string) error {
	return r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Delete(&model.ExamAttendee{}).Error
}

func (r *examAttendeeRepo) ListBookings(ctx context.Context, filter BookingFilter) ([]model.RoomBooking, error) {
	if len(filter.RoomIDs) == 0 && len(filter.StudentIDs) == 0 {
		return nil, nil
	}

	q := r.db.WithContext(ctx).
		Table("exam_attendees AS a").
		Select("a.exam_attendee_id AS attendee_id, a.exam_id, a.student_id, a.exam_room_id AS room_id, " +
			"e.state AS exam_state, e.start_time, e.end_time").
		Joins("JOIN exams e ON e.exam_id = a.exam_id AND e.deleted_at IS NULL").
		Where("e.start_time IS NOT NULL AND e.end_time IS NOT NULL").
		Where("e.start_time < ? AND e.end_time > ?", filter.Interval.End, filter.Interval.Start)

	if len(filter.States) > 0 {
		q = q.Where("e.state IN ?", filter.States)
	}
	if filter.ExcludeExamID != "" {
		q = q.Where("a.exam_id <> ?", filter.ExcludeExamID)
	}

	switch {
	case len(filter.RoomIDs) > 0 && len(filter.StudentIDs) > 0:
		q = q.Where("(a.exam_room_id IN ? OR a.student_id IN ?)", filter.RoomIDs, filter.StudentIDs)
	case len(filter.RoomIDs) > 0:
		q = q.Where("a.exam_room_id IN ?", filter.RoomIDs)
	default:
		q = q.Where("a.student_id IN ?", filter.StudentIDs)
	}

	var bookings []model.RoomBooking
	err := q.Scan(&bookings).Error
	return bookings, err
}

func (r *examAttendeeRepo) CountByRoom(ctx context.Context, roomID string, examStates []string) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).
		Table("exam_attendees AS a").
		Joins("JOIN exams e ON e.exam_id = a.exam_id AND e.deleted_at IS NULL").
		Where("a.exam_room_id = ?", roomID)
	if len(examStates) > 0 {
		q = q.Where("e.state IN ?", examStates)
	}
	err := q.Count(&count).Error
	return count, err
}
