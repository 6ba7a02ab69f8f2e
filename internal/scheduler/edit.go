package scheduler

import (
	"fmt"
	"time"

	"github.com/noah-isme/timetable-engine/internal/models"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

// Move relocates one session to a new start period and room.
type Move struct {
	SessionID models.SessionID `json:"sessionId"`
	Day       int              `json:"day"`
	Period    int              `json:"period"`
	RoomID    models.RoomID    `json:"roomId"`
}

// Schedule is an alternative plus its occupancy index. It is never mutated; applying a
// move yields a new Schedule that shares nothing with the old one.
type Schedule struct {
	p   *Problem
	alt *models.Alternative
	l   *ledger
}

// NewSchedule indexes a complete, hard-valid alternative for editing.
func NewSchedule(p *Problem, alt *models.Alternative) (*Schedule, error) {
	if alt == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "alternative is required")
	}
	for id := range alt.Assignment {
		if _, ok := p.sessionIx[id]; !ok {
			return nil, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("alternative places unknown session %s", id))
		}
	}
	l := newLedger(p)
	for si := range p.sessions {
		info := &p.sessions[si]
		pl, ok := alt.Assignment[info.ID]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("alternative does not place session %s", info.ID))
		}
		c, violations := p.resolve(si, pl)
		if c.slot >= 0 {
			violations = append(violations, l.collisions(si, c)...)
		}
		if len(violations) > 0 {
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrInvalidInput,
				fmt.Sprintf("alternative breaks hard rules at session %s", info.ID)), violations)
		}
		l.place(si, c)
	}
	return &Schedule{p: p, alt: alt, l: l}, nil
}

// Alternative returns the schedule's alternative. Callers must not modify it.
func (s *Schedule) Alternative() *models.Alternative {
	return s.alt
}

// Problem returns the snapshot the schedule was indexed against.
func (s *Schedule) Problem() *Problem {
	return s.p
}

// Apply validates a move against the cells it targets. A move that breaks a hard rule
// returns CONFLICT_ON_EDIT carrying a ConflictReport and leaves s untouched. Otherwise the
// result is a new schedule whose alternative has id and points back to s as parent.
func (s *Schedule) Apply(m Move, id string, now time.Time) (*Schedule, error) {
	si, ok := s.p.sessionIx[m.SessionID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("unknown session %s", m.SessionID))
	}
	if _, ok := s.p.roomIx[m.RoomID]; !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("unknown room %s", m.RoomID))
	}

	target := models.Placement{Day: m.Day, Period: m.Period, RoomID: m.RoomID}
	c, violations := s.p.resolve(si, target)
	if c.slot >= 0 {
		violations = append(violations, s.l.collisions(si, c)...)
	}
	if len(violations) > 0 {
		report := &models.ConflictReport{SessionID: m.SessionID, Target: target, Violations: violations}
		err := appErrors.Wrap(report, appErrors.ErrConflictOnEdit.Code, appErrors.ErrConflictOnEdit.Status, report.Error())
		return nil, appErrors.WithDetails(err, report)
	}

	ppd := s.p.Grid.PeriodsPerDay
	oldDay := s.l.where[si].slot / ppd
	next := s.l.clone()
	next.remove(si)
	next.place(si, c)

	soft := s.rescope(next, si, oldDay, c.slot/ppd)
	penalty := totalPenalty(soft)
	score, metrics := next.score(penalty, 0)

	alt := &models.Alternative{
		ID:          id,
		Name:        s.alt.Name,
		Seed:        s.alt.Seed,
		Fingerprint: s.alt.Fingerprint,
		ParentID:    s.alt.ID,
		Score:       score,
		Assignment:  next.assignment(),
		Conflicts:   soft,
		Metrics:     metrics,
		GeneratedAt: now,
	}
	return &Schedule{p: s.p, alt: alt, l: next}, nil
}

// rescope keeps soft violations the move cannot affect and recomputes the rest: the
// session's batch and faculty on the days it left and joined, plus the faculty's week.
func (s *Schedule) rescope(next *ledger, si, oldDay, newDay int) []models.SoftViolation {
	info := &s.p.sessions[si]
	days := []int{oldDay}
	if newDay != oldDay {
		days = append(days, newDay)
	}
	touched := make(map[int]bool, len(days))
	for _, di := range days {
		touched[s.p.Grid.Days[di]] = true
	}

	var out []models.SoftViolation
	for _, v := range s.alt.Conflicts {
		switch {
		case v.Entity == models.ScopeBatch && v.EntityID == string(info.BatchID) && touched[v.Day]:
		case v.Entity == models.ScopeFaculty && v.EntityID == string(info.FacultyID) && (touched[v.Day] || v.Day == 0):
		default:
			out = append(out, v)
		}
	}
	for _, di := range days {
		out = append(out, next.batchDaySoft(info.batch, di)...)
		out = append(out, next.facultyDaySoft(info.faculty, di)...)
	}
	out = append(out, next.facultyWeekSoft(info.faculty)...)
	sortSoft(out)
	return out
}
