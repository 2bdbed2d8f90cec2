package service

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	pkgerrors "opencampus/backend/pkg/errors"
)

// ── 错误类别 ──
// 每个具体业务错误都归属且仅归属一个类别，调用方用 errors.Is(err, ErrValidation) 等判断。

var (
	ErrValidation         = errors.New("数据校验失败")
	ErrCapacity           = errors.New("考场容量不足")
	ErrSchedulingConflict = errors.New("排考冲突")
	ErrNoEligibleStudents = errors.New("没有符合条件的学生")
	ErrStateTransition    = errors.New("状态流转不合法")
	ErrNotFound           = errors.New("记录不存在")
)

// bizError 带类别的业务错误
type bizError struct {
	msg  string
	kind error
}

func (e *bizError) Error() string { return e.msg }
func (e *bizError) Unwrap() error { return e.kind }

func newBizError(kind error, msg string) error {
	return &bizError{msg: msg, kind: kind}
}

// withDetail 在具体错误后追加上下文，保留错误链
func withDetail(err error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
}

// isBusinessError 业务规则错误直接返回调用方，不记录错误日志
func isBusinessError(err error) bool {
	var be *bizError
	var ce *SchedulingConflictError
	return errors.As(err, &be) || errors.As(err, &ce) || errors.Is(err, pkgerrors.ErrOptimisticLock)
}

// mapNotFound 将 gorm.ErrRecordNotFound 转换为具体的业务错误
func mapNotFound(err, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return err
}

// SchedulingConflictError 考场或考生时间冲突，携带冲突的考场名与学生名
type SchedulingConflictError struct {
	Rooms    []string
	Students []string
}

func (e *SchedulingConflictError) Error() string {
	var parts []string
	if len(e.Rooms) > 0 {
		parts = append(parts, "考场已被占用: "+strings.Join(e.Rooms, ", "))
	}
	if len(e.Students) > 0 {
		parts = append(parts, "学生已有其他考试: "+strings.Join(e.Students, ", "))
	}
	if len(parts) == 0 {
		return ErrSchedulingConflict.Error()
	}
	return strings.Join(parts, "；")
}

// Is 使 errors.Is(err, ErrSchedulingConflict) 成立
func (e *SchedulingConflictError) Is(target error) bool {
	return target == ErrSchedulingConflict
}
