package model

import (
	"errors"
	"time"
)

// ErrInvalidInterval 时间区间结束时间必须晚于开始时间
var ErrInvalidInterval = errors.New("结束时间必须晚于开始时间")

// TimeInterval 半开时间区间 [Start, End)
type TimeInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeInterval 构造并校验时间区间
func NewTimeInterval(start, end time.Time) (TimeInterval, error) {
	iv := TimeInterval{Start: start, End: end}
	if err := iv.Validate(); err != nil {
		return TimeInterval{}, err
	}
	return iv, nil
}

// Validate 校验 End 严格晚于 Start
func (iv TimeInterval) Validate() error {
	if !iv.End.After(iv.Start) {
		return ErrInvalidInterval
	}
	return nil
}

// Overlaps 判断两个区间是否重叠。端点相接（a.End == b.Start）不算重叠。
func (iv TimeInterval) Overlaps(other TimeInterval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Within 判断区间是否完全落在 outer 内（允许端点重合）
func (iv TimeInterval) Within(outer TimeInterval) bool {
	return !iv.Start.Before(outer.Start) && !iv.End.After(outer.End)
}

// DayRange 返回 [from 当天 00:00:00, to 当天 23:59:59] 的闭区间
func DayRange(from, to time.Time) TimeInterval {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	end := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 0, to.Location())
	return TimeInterval{Start: start, End: end}
}
