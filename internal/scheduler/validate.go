package scheduler

import (
	"fmt"
	"strings"

	"github.com/noah-isme/timetable-engine/internal/models"
)

// validateSnapshot returns every structural problem found, in a stable order.
func validateSnapshot(s Snapshot) []string {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	g := s.Grid
	if len(g.Days) == 0 {
		add("grid must contain at least one day")
	}
	seenDay := make(map[int]bool)
	for _, d := range g.Days {
		if d < 1 || d > 7 {
			add("grid day %d is outside 1..7", d)
		}
		if seenDay[d] {
			add("grid day %d listed twice", d)
		}
		seenDay[d] = true
	}
	if g.PeriodsPerDay < 1 {
		add("grid periodsPerDay must be positive")
	}
	if len(g.Periods) > 0 && len(g.Periods) != g.PeriodsPerDay {
		add("grid lists %d period times for %d periods", len(g.Periods), g.PeriodsPerDay)
	}
	for _, b := range g.Breaks {
		if b < 1 || b >= g.PeriodsPerDay {
			add("grid break after period %d is outside the day", b)
		}
	}

	subjects := make(map[models.SubjectID]models.Subject, len(s.Subjects))
	for _, subj := range s.Subjects {
		if subj.ID == "" {
			add("subject id is required")
			continue
		}
		if strings.Contains(string(subj.ID), models.SessionIDSeparator) {
			add("subject id %s must not contain %q", subj.ID, models.SessionIDSeparator)
		}
		if _, dup := subjects[subj.ID]; dup {
			add("duplicate subject id %s", subj.ID)
		}
		subjects[subj.ID] = subj
		if subj.HoursPerWeek < 1 {
			add("subject %s hoursPerWeek must be positive", subj.ID)
		}
		if subj.BlockSize < 0 {
			add("subject %s blockSize must not be negative", subj.ID)
		}
		switch subj.Type {
		case "", models.SubjectTypeTheory, models.SubjectTypePractical, models.SubjectTypeLab:
		default:
			add("subject %s has unknown type %s", subj.ID, subj.Type)
		}
	}
	for _, subj := range s.Subjects {
		for _, pre := range subj.Prerequisites {
			if _, ok := subjects[pre]; !ok {
				add("subject %s lists unknown prerequisite %s", subj.ID, pre)
			}
		}
	}

	faculty := make(map[models.FacultyID]models.Faculty, len(s.Faculty))
	for _, f := range s.Faculty {
		if f.ID == "" {
			add("faculty id is required")
			continue
		}
		if _, dup := faculty[f.ID]; dup {
			add("duplicate faculty id %s", f.ID)
		}
		faculty[f.ID] = f
		if f.MaxHoursPerWeek < 1 {
			add("faculty %s maxHoursPerWeek must be positive", f.ID)
		}
		if f.MaxHoursPerDay < 0 {
			add("faculty %s maxHoursPerDay must not be negative", f.ID)
		}
		for _, subj := range f.Subjects {
			if _, ok := subjects[subj]; !ok {
				add("faculty %s is qualified for unknown subject %s", f.ID, subj)
			}
		}
	}

	rooms := make(map[models.RoomID]bool, len(s.Rooms))
	for _, r := range s.Rooms {
		if r.ID == "" {
			add("room id is required")
			continue
		}
		if rooms[r.ID] {
			add("duplicate room id %s", r.ID)
		}
		rooms[r.ID] = true
		if r.Capacity < 1 {
			add("room %s capacity must be positive", r.ID)
		}
		switch r.Type {
		case models.RoomTypeClassroom, models.RoomTypeLaboratory, models.RoomTypeAuditorium:
		default:
			add("room %s has unknown type %s", r.ID, r.Type)
		}
	}

	batches := make(map[models.BatchID]bool, len(s.Batches))
	for _, b := range s.Batches {
		if b.ID == "" {
			add("batch id is required")
			continue
		}
		if strings.Contains(string(b.ID), models.SessionIDSeparator) {
			add("batch id %s must not contain %q", b.ID, models.SessionIDSeparator)
		}
		if batches[b.ID] {
			add("duplicate batch id %s", b.ID)
		}
		batches[b.ID] = true
		if b.StudentCount < 1 {
			add("batch %s studentCount must be positive", b.ID)
		}
		seenSubject := make(map[models.SubjectID]bool)
		for _, req := range b.Subjects {
			if seenSubject[req.SubjectID] {
				add("batch %s lists subject %s twice", b.ID, req.SubjectID)
			}
			seenSubject[req.SubjectID] = true
			if _, ok := subjects[req.SubjectID]; !ok {
				add("batch %s requires unknown subject %s", b.ID, req.SubjectID)
				continue
			}
			if req.HoursPerWeek < 0 {
				add("batch %s subject %s hoursPerWeek must not be negative", b.ID, req.SubjectID)
			}
			f, ok := faculty[req.FacultyID]
			if !ok {
				add("batch %s subject %s references unknown faculty %s", b.ID, req.SubjectID, req.FacultyID)
				continue
			}
			if !f.Active() {
				add("faculty %s assigned to batch %s is inactive", f.ID, b.ID)
			}
			if !f.Teaches(req.SubjectID) {
				add("faculty %s is not qualified to teach %s", f.ID, req.SubjectID)
			}
		}
	}

	for _, c := range s.Constraints {
		if !c.Kind.IsHard() && !c.Kind.IsSoft() {
			add("unknown constraint kind %s", c.Kind)
			continue
		}
		if c.Weight < 0 {
			add("constraint %s weight must not be negative", c.Kind)
		}
		if c.Limit < 0 {
			add("constraint %s limit must not be negative", c.Kind)
		}
		switch c.Priority {
		case "", models.PriorityHigh, models.PriorityMedium, models.PriorityLow:
		default:
			add("constraint %s has unknown priority %s", c.Kind, c.Priority)
		}
		switch c.Scope.Entity {
		case "", models.ScopeGlobal:
		case models.ScopeFaculty:
			if _, ok := faculty[models.FacultyID(c.Scope.ID)]; !ok {
				add("constraint %s scoped to unknown faculty %s", c.Kind, c.Scope.ID)
			}
		case models.ScopeBatch:
			if !batches[models.BatchID(c.Scope.ID)] {
				add("constraint %s scoped to unknown batch %s", c.Kind, c.Scope.ID)
			}
		case models.ScopeRoom:
			if !rooms[models.RoomID(c.Scope.ID)] {
				add("constraint %s scoped to unknown room %s", c.Kind, c.Scope.ID)
			}
		default:
			add("constraint %s has unknown scope %s", c.Kind, c.Scope.Entity)
			continue
		}
		if bind := c.Kind.BindsTo(); bind != "" && !c.Scope.Matches(bind, c.Scope.ID) {
			add("constraint %s cannot be scoped to %s, only %s or global", c.Kind, c.Scope.Entity, bind)
		}
	}

	return problems
}
