package model

import (
	"testing"
	"time"
)

func at(hour, min int) time.Time {
	return time.Date(2026, 6, 1, hour, min, 0, 0, time.UTC)
}

func TestTimeInterval_Overlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b TimeInterval
		want bool
	}{
		{"部分重叠", TimeInterval{at(10, 0), at(11, 0)}, TimeInterval{at(10, 30), at(11, 30)}, true},
		{"包含", TimeInterval{at(9, 0), at(12, 0)}, TimeInterval{at(10, 0), at(11, 0)}, true},
		{"完全相同", TimeInterval{at(10, 0), at(11, 0)}, TimeInterval{at(10, 0), at(11, 0)}, true},
		{"端点相接", TimeInterval{at(10, 0), at(11, 0)}, TimeInterval{at(11, 0), at(12, 0)}, false},
		{"端点相接（反向）", TimeInterval{at(11, 0), at(12, 0)}, TimeInterval{at(10, 0), at(11, 0)}, false},
		{"完全分离", TimeInterval{at(8, 0), at(9, 0)}, TimeInterval{at(10, 0), at(11, 0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps = %v, 期望 %v", got, tt.want)
			}
			// 对称性
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("反向 Overlaps = %v, 期望 %v", got, tt.want)
			}
		})
	}
}

func TestTimeInterval_OverlapsMatchesPredicate(t *testing.T) {
	// 穷举 0..6 小时内的所有合法区间对，与 s1 < e2 && s2 < e1 逐一比对
	for s1 := 0; s1 < 6; s1++ {
		for e1 := s1 + 1; e1 <= 6; e1++ {
			for s2 := 0; s2 < 6; s2++ {
				for e2 := s2 + 1; e2 <= 6; e2++ {
					a := TimeInterval{at(s1, 0), at(e1, 0)}
					b := TimeInterval{at(s2, 0), at(e2, 0)}
					want := s1 < e2 && s2 < e1
					if got := a.Overlaps(b); got != want {
						t.Fatalf("[%d,%d) vs [%d,%d): got %v want %v", s1, e1, s2, e2, got, want)
					}
				}
			}
		}
	}
}

func TestNewTimeInterval(t *testing.T) {
	if _, err := NewTimeInterval(at(10, 0), at(11, 0)); err != nil {
		t.Fatalf("合法区间不应报错: %v", err)
	}
	if _, err := NewTimeInterval(at(10, 0), at(10, 0)); err != ErrInvalidInterval {
		t.Errorf("起止相同应返回 ErrInvalidInterval，实际 %v", err)
	}
	if _, err := NewTimeInterval(at(11, 0), at(10, 0)); err != ErrInvalidInterval {
		t.Errorf("结束早于开始应返回 ErrInvalidInterval，实际 %v", err)
	}
}

func TestTimeInterval_Within(t *testing.T) {
	outer := DayRange(at(0, 0), at(0, 0))
	if !(TimeInterval{at(9, 0), at(11, 0)}).Within(outer) {
		t.Error("当天区间应落在 DayRange 内")
	}
	next := TimeInterval{at(23, 0), at(23, 0).Add(2 * time.Hour)}
	if next.Within(outer) {
		t.Error("跨天区间不应落在 DayRange 内")
	}
	if outer.End.Hour() != 23 || outer.End.Minute() != 59 || outer.End.Second() != 59 {
		t.Errorf("DayRange 结束时间应为 23:59:59，实际 %v", outer.End)
	}
}
