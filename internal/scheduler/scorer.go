package scheduler

import (
	"math"

	"github.com/noah-isme/timetable-engine/internal/models"
)

// Score weights. They sum to one so a perfect schedule scores 100.
const (
	weightSoft           = 0.40
	weightRoomBalance    = 0.20
	weightFacultyBalance = 0.20
	weightCompactness    = 0.20
)

// Score rates an assignment in [0, 100]. Any hard violation scores zero.
func Score(p *Problem, a models.Assignment, ev Evaluation) (float64, models.EfficiencyMetrics) {
	l := newLedger(p)
	for si := range p.sessions {
		pl, ok := a[p.sessions[si].ID]
		if !ok {
			continue
		}
		c, _ := p.resolve(si, pl)
		if c.slot < 0 {
			continue
		}
		l.place(si, c)
	}
	return l.score(ev.SoftPenalty, len(ev.Hard))
}

func (l *ledger) score(penalty float64, hard int) (float64, models.EfficiencyMetrics) {
	m := models.EfficiencyMetrics{SoftPenalty: round2(penalty)}

	util, roomBalance := l.roomMetrics()
	m.RoomUtilization = round2(util * 100)
	m.RoomBalance = round2(roomBalance)

	variance, facultyBalance := l.facultyMetrics()
	m.FacultyLoadVariance = round2(variance)
	m.FacultyBalance = round2(facultyBalance)

	gaps, compactness := l.compactness()
	m.GapCount = gaps
	m.Compactness = round2(compactness)

	m.Efficiency = round2(100 * (roomBalance + facultyBalance + compactness) / 3)

	if hard > 0 {
		return 0, m
	}
	soft := 1 / (1 + penalty/10)
	score := 100 * (weightSoft*soft + weightRoomBalance*roomBalance +
		weightFacultyBalance*facultyBalance + weightCompactness*compactness)
	return round2(score), m
}

// roomMetrics returns overall utilisation of available rooms and one minus the
// coefficient of variation of per-room utilisation.
func (l *ledger) roomMetrics() (float64, float64) {
	if l.size == 0 {
		return 0, 1
	}
	var utils []float64
	used := 0
	for ri, room := range l.p.rooms {
		if !room.Available() {
			continue
		}
		occupied := 0
		for _, v := range l.roomAt[ri*l.size : (ri+1)*l.size] {
			if v != 0 {
				occupied++
			}
		}
		used += occupied
		utils = append(utils, float64(occupied)/float64(l.size))
	}
	if len(utils) == 0 {
		return 0, 1
	}
	util := float64(used) / float64(len(utils)*l.size)
	if len(utils) == 1 {
		return util, 1
	}
	mean, std := meanStd(utils)
	if mean == 0 {
		return util, 1
	}
	return util, 1 - math.Min(1, std/mean)
}

// facultyMetrics returns the variance of weekly hours and a balance score from the
// spread of hours-to-cap ratios.
func (l *ledger) facultyMetrics() (float64, float64) {
	var hours, ratios []float64
	for fi, f := range l.p.faculty {
		if len(l.p.facultySessions[fi]) == 0 {
			continue
		}
		h := 0
		for _, si := range l.p.facultySessions[fi] {
			if l.placed[si] {
				h += l.p.sessions[si].Duration
			}
		}
		limit := f.MaxHoursPerWeek
		if limit <= 0 {
			limit = l.size
		}
		hours = append(hours, float64(h))
		ratios = append(ratios, float64(h)/float64(limit))
	}
	if len(hours) == 0 {
		return 0, 1
	}
	_, hstd := meanStd(hours)
	_, rstd := meanStd(ratios)
	return hstd * hstd, 1 - math.Min(1, 2*rstd)
}

// compactness counts idle periods inside each batch day against the spanned periods.
func (l *ledger) compactness() (int, float64) {
	gaps, span := 0, 0
	ppd := l.p.Grid.PeriodsPerDay
	for bi := range l.p.batches {
		for di := range l.p.Grid.Days {
			row := l.day(l.batchAt, bi, di)
			first, last := -1, -1
			for i := 0; i < ppd; i++ {
				if row[i] == 0 {
					continue
				}
				if first < 0 {
					first = i
				}
				last = i
			}
			if first < 0 {
				continue
			}
			span += last - first + 1
			gaps += l.gapCount(bi, di)
		}
	}
	if span == 0 {
		return 0, 1
	}
	return gaps, 1 - float64(gaps)/float64(span)
}

func meanStd(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
