package scheduler

import (
	"fmt"

	"github.com/noah-isme/timetable-engine/internal/models"
)

// ledger is the occupancy index shared by the evaluator, the search and the edit
// validator. Cells hold session index + 1, zero meaning free.
type ledger struct {
	p    *Problem
	size int

	roomAt    []int32
	facultyAt []int32
	batchAt   []int32

	where    []candidate
	placed   []bool
	assigned int

	facultyAssigned []int
	batchAssigned   []int
}

func newLedger(p *Problem) *ledger {
	size := p.Grid.Size()
	l := &ledger{
		p:               p,
		size:            size,
		roomAt:          make([]int32, len(p.rooms)*size),
		facultyAt:       make([]int32, len(p.faculty)*size),
		batchAt:         make([]int32, len(p.batches)*size),
		where:           make([]candidate, len(p.sessions)),
		placed:          make([]bool, len(p.sessions)),
		facultyAssigned: make([]int, len(p.faculty)),
		batchAssigned:   make([]int, len(p.batches)),
	}
	return l
}

func (l *ledger) clone() *ledger {
	c := *l
	c.roomAt = append([]int32(nil), l.roomAt...)
	c.facultyAt = append([]int32(nil), l.facultyAt...)
	c.batchAt = append([]int32(nil), l.batchAt...)
	c.where = append([]candidate(nil), l.where...)
	c.placed = append([]bool(nil), l.placed...)
	c.facultyAssigned = append([]int(nil), l.facultyAssigned...)
	c.batchAssigned = append([]int(nil), l.batchAssigned...)
	return &c
}

// free reports whether every cell the candidate would cover is empty for room, faculty and batch.
func (l *ledger) free(si int, c candidate) bool {
	info := &l.p.sessions[si]
	r, f, b := c.room*l.size, info.faculty*l.size, info.batch*l.size
	for k := 0; k < info.Duration; k++ {
		slot := c.slot + k
		if l.roomAt[r+slot] != 0 || l.facultyAt[f+slot] != 0 || l.batchAt[b+slot] != 0 {
			return false
		}
	}
	return true
}

// place occupies cells for si. Cells that are already taken keep their first occupant.
func (l *ledger) place(si int, c candidate) {
	info := &l.p.sessions[si]
	r, f, b := c.room*l.size, info.faculty*l.size, info.batch*l.size
	mark := int32(si + 1)
	for k := 0; k < info.Duration; k++ {
		slot := c.slot + k
		if l.roomAt[r+slot] == 0 {
			l.roomAt[r+slot] = mark
		}
		if l.facultyAt[f+slot] == 0 {
			l.facultyAt[f+slot] = mark
		}
		if l.batchAt[b+slot] == 0 {
			l.batchAt[b+slot] = mark
		}
	}
	l.where[si] = c
	l.placed[si] = true
	l.assigned++
	l.facultyAssigned[info.faculty]++
	l.batchAssigned[info.batch]++
}

func (l *ledger) remove(si int) {
	if !l.placed[si] {
		return
	}
	info := &l.p.sessions[si]
	c := l.where[si]
	r, f, b := c.room*l.size, info.faculty*l.size, info.batch*l.size
	mark := int32(si + 1)
	for k := 0; k < info.Duration; k++ {
		slot := c.slot + k
		if l.roomAt[r+slot] == mark {
			l.roomAt[r+slot] = 0
		}
		if l.facultyAt[f+slot] == mark {
			l.facultyAt[f+slot] = 0
		}
		if l.batchAt[b+slot] == mark {
			l.batchAt[b+slot] = 0
		}
	}
	l.placed[si] = false
	l.assigned--
	l.facultyAssigned[info.faculty]--
	l.batchAssigned[info.batch]--
}

// collisions lists hard double-bookings si would cause at c, ignoring si itself.
func (l *ledger) collisions(si int, c candidate) []models.HardViolation {
	info := &l.p.sessions[si]
	r, f, b := c.room*l.size, info.faculty*l.size, info.batch*l.size
	self := int32(si + 1)
	seen := make(map[models.ConstraintKind]map[int32]bool)
	var out []models.HardViolation
	record := func(kind models.ConstraintKind, other int32, slot int, entity string) {
		if other == 0 || other == self {
			return
		}
		if seen[kind] == nil {
			seen[kind] = make(map[int32]bool)
		}
		if seen[kind][other] {
			return
		}
		seen[kind][other] = true
		ts := l.p.Grid.Slot(slot)
		otherID := l.p.sessions[other-1].ID
		out = append(out, models.HardViolation{
			Kind:     kind,
			Sessions: []models.SessionID{info.ID, otherID},
			Day:      ts.Day,
			Period:   ts.Period,
			EntityID: entity,
			Message:  doubleBookMessage(kind, entity, otherID, ts),
		})
	}
	for k := 0; k < info.Duration; k++ {
		slot := c.slot + k
		record(models.ConstraintNoDoubleBookRoom, l.roomAt[r+slot], slot, string(l.p.rooms[c.room].ID))
		record(models.ConstraintNoDoubleBookFaculty, l.facultyAt[f+slot], slot, string(info.FacultyID))
		record(models.ConstraintNoDoubleBookBatch, l.batchAt[b+slot], slot, string(info.BatchID))
	}
	return out
}

// day returns the per-period occupants of one entity row on one day.
func (l *ledger) day(cells []int32, row, dayIdx int) []int32 {
	ppd := l.p.Grid.PeriodsPerDay
	start := row*l.size + dayIdx*ppd
	return cells[start : start+ppd]
}

func (l *ledger) facultyDayHours(f, dayIdx int) int {
	hours := 0
	for _, v := range l.day(l.facultyAt, f, dayIdx) {
		if v != 0 {
			hours++
		}
	}
	return hours
}

func (l *ledger) facultyComplete(f int) bool {
	return l.facultyAssigned[f] == len(l.p.facultySessions[f])
}

func (l *ledger) batchComplete(b int) bool {
	return l.batchAssigned[b] == len(l.p.batchSessions[b])
}

// assignment exports placed sessions.
func (l *ledger) assignment() models.Assignment {
	out := make(models.Assignment, l.assigned)
	for si, ok := range l.placed {
		if !ok {
			continue
		}
		out[l.p.sessions[si].ID] = l.placement(l.where[si])
	}
	return out
}

func (l *ledger) placement(c candidate) models.Placement {
	ts := l.p.Grid.Slot(c.slot)
	return models.Placement{Day: ts.Day, Period: ts.Period, RoomID: l.p.rooms[c.room].ID}
}

func doubleBookMessage(kind models.ConstraintKind, entity string, other models.SessionID, ts models.TimeSlot) string {
	what := "room"
	switch kind {
	case models.ConstraintNoDoubleBookFaculty:
		what = "faculty"
	case models.ConstraintNoDoubleBookBatch:
		what = "batch"
	}
	return fmt.Sprintf("%s %s already holds %s on %s period %d", what, entity, other, models.DayName(ts.Day), ts.Period)
}
