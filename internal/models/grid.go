package models

import "strings"

// PeriodTime is the wall-clock window of one period.
type PeriodTime struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// Grid is the fixed set of teaching slots for one generation run.
type Grid struct {
	Days            []int        `json:"days" yaml:"days"`
	PeriodsPerDay   int          `json:"periodsPerDay" yaml:"periodsPerDay"`
	Periods         []PeriodTime `json:"periods,omitempty" yaml:"periods"`
	Breaks          []int        `json:"breaks,omitempty" yaml:"breaks"`
	AllowCrossBreak bool         `json:"allowCrossBreak,omitempty" yaml:"allowCrossBreak"`
}

// TimeSlot identifies one period on one day. Day uses 1=Monday..7=Sunday, Period starts at 1.
type TimeSlot struct {
	Day    int    `json:"day"`
	Period int    `json:"period"`
	Start  string `json:"start,omitempty"`
	End    string `json:"end,omitempty"`
}

// Size returns the number of slots in the grid.
func (g Grid) Size() int {
	return len(g.Days) * g.PeriodsPerDay
}

// DayIndex returns the position of day inside Days or -1.
func (g Grid) DayIndex(day int) int {
	for i, d := range g.Days {
		if d == day {
			return i
		}
	}
	return -1
}

// Index maps (day, period) to a dense slot index, or -1 when outside the grid.
func (g Grid) Index(day, period int) int {
	di := g.DayIndex(day)
	if di < 0 || period < 1 || period > g.PeriodsPerDay {
		return -1
	}
	return di*g.PeriodsPerDay + period - 1
}

// Slot resolves a dense index back into a TimeSlot with wall-clock bounds when known.
func (g Grid) Slot(index int) TimeSlot {
	day := g.Days[index/g.PeriodsPerDay]
	period := index%g.PeriodsPerDay + 1
	slot := TimeSlot{Day: day, Period: period}
	if period <= len(g.Periods) {
		slot.Start = g.Periods[period-1].Start
		slot.End = g.Periods[period-1].End
	}
	return slot
}

// BreakAfter reports whether a break separates period from period+1.
func (g Grid) BreakAfter(period int) bool {
	for _, b := range g.Breaks {
		if b == period {
			return true
		}
	}
	return false
}

// Fits reports whether a block of duration periods starting at (day, period) stays on
// one day and does not straddle a break.
func (g Grid) Fits(day, period, duration int) bool {
	if duration < 1 || g.Index(day, period) < 0 {
		return false
	}
	last := period + duration - 1
	if last > g.PeriodsPerDay {
		return false
	}
	if g.AllowCrossBreak {
		return true
	}
	for p := period; p < last; p++ {
		if g.BreakAfter(p) {
			return false
		}
	}
	return true
}

// LongestRun returns the longest block of periods that never crosses a break.
func (g Grid) LongestRun() int {
	if g.AllowCrossBreak {
		return g.PeriodsPerDay
	}
	longest, run := 0, 0
	for p := 1; p <= g.PeriodsPerDay; p++ {
		run++
		if run > longest {
			longest = run
		}
		if g.BreakAfter(p) {
			run = 0
		}
	}
	return longest
}

var dayIndexMap = map[int]string{
	1: "MONDAY",
	2: "TUESDAY",
	3: "WEDNESDAY",
	4: "THURSDAY",
	5: "FRIDAY",
	6: "SATURDAY",
	7: "SUNDAY",
}

var dayNameIndex = map[string]int{
	"MONDAY":    1,
	"TUESDAY":   2,
	"WEDNESDAY": 3,
	"THURSDAY":  4,
	"FRIDAY":    5,
	"SATURDAY":  6,
	"SUNDAY":    7,
}

// DayName renders a day index for exports and logs.
func DayName(day int) string {
	if name, ok := dayIndexMap[day]; ok {
		return name
	}
	return "UNKNOWN"
}

// DayFromName parses a day name, returning 0 when unknown.
func DayFromName(name string) int {
	return dayNameIndex[strings.ToUpper(strings.TrimSpace(name))]
}
