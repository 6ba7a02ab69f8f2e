package scheduler

import (
	"fmt"
	"math"
	"sort"

	"github.com/noah-isme/timetable-engine/internal/models"
)

const (
	defaultConsecutiveLimit = 2
	defaultDailyHourCap     = 6
)

// Evaluation is the outcome of checking an assignment against every rule.
type Evaluation struct {
	Hard        []models.HardViolation `json:"hard"`
	Soft        []models.SoftViolation `json:"soft"`
	SoftPenalty float64                `json:"softPenalty"`
}

// Valid reports whether no hard rule is broken.
func (e Evaluation) Valid() bool {
	return len(e.Hard) == 0
}

// softRules is the soft constraint in effect for one entity, per kind.
type softRules struct {
	consecutive *models.Constraint
	gaps        *models.Constraint
	daily       *models.Constraint
	balance     *models.Constraint
}

// indexSoftRules resolves which soft rule governs each batch and faculty member.
// A rule scoped to the entity wins over a global one of the same kind.
func (p *Problem) indexSoftRules() {
	pick := func(kind models.ConstraintKind, entity models.ScopeEntity, id string) *models.Constraint {
		var global *models.Constraint
		for i := range p.soft {
			c := &p.soft[i]
			if c.Kind != kind {
				continue
			}
			if c.Scope.Entity == entity && c.Scope.ID == id {
				return c
			}
			if global == nil && c.Scope.Matches(entity, id) {
				global = c
			}
		}
		return global
	}

	p.batchRules = make([]softRules, len(p.batches))
	for bi, b := range p.batches {
		p.batchRules[bi] = softRules{
			consecutive: pick(models.ConstraintMaxConsecutiveTheory, models.ScopeBatch, string(b.ID)),
			gaps:        pick(models.ConstraintMinimizeGaps, models.ScopeBatch, string(b.ID)),
		}
	}

	p.facultyRules = make([]softRules, len(p.faculty))
	p.dailyLimit = make([]int, len(p.faculty))
	for fi, f := range p.faculty {
		rules := softRules{
			daily:   pick(models.ConstraintFacultyDailyHourCap, models.ScopeFaculty, string(f.ID)),
			balance: pick(models.ConstraintBalanceFacultyLoad, models.ScopeFaculty, string(f.ID)),
		}
		p.facultyRules[fi] = rules

		limit := defaultDailyHourCap
		switch {
		case rules.daily != nil && rules.daily.Scope.Entity == models.ScopeFaculty && rules.daily.Limit > 0:
			limit = rules.daily.Limit
		case f.MaxHoursPerDay > 0:
			limit = f.MaxHoursPerDay
		case rules.daily != nil && rules.daily.Limit > 0:
			limit = rules.daily.Limit
		}
		p.dailyLimit[fi] = limit
	}
}

// Evaluate checks a complete or partial assignment. Pairwise hard rules are checked for
// every placed session; soft rules only for batches and faculty whose sessions are all placed.
func Evaluate(p *Problem, a models.Assignment) Evaluation {
	l := newLedger(p)
	var hard []models.HardViolation

	for si := range p.sessions {
		info := &p.sessions[si]
		pl, ok := a[info.ID]
		if !ok {
			continue
		}
		c, violations := p.resolve(si, pl)
		hard = append(hard, violations...)
		if c.slot < 0 {
			continue
		}
		hard = append(hard, l.collisions(si, c)...)
		l.place(si, c)
	}

	for fi, f := range p.faculty {
		hours := 0
		var ids []models.SessionID
		for _, si := range p.facultySessions[fi] {
			if l.placed[si] {
				hours += p.sessions[si].Duration
				ids = append(ids, p.sessions[si].ID)
			}
		}
		if hours > f.MaxHoursPerWeek {
			hard = append(hard, models.HardViolation{
				Kind:     models.ConstraintFacultyWeeklyCap,
				Sessions: ids,
				EntityID: string(f.ID),
				Message:  fmt.Sprintf("faculty %s is booked for %d hours, cap is %d", f.ID, hours, f.MaxHoursPerWeek),
			})
		}
	}

	soft := l.allSoft()
	return Evaluation{Hard: hard, Soft: soft, SoftPenalty: totalPenalty(soft)}
}

// resolve maps a placement onto the grid and checks the rules that depend on the
// placement alone. A negative slot means the placement is off the grid.
func (p *Problem) resolve(si int, pl models.Placement) (candidate, []models.HardViolation) {
	info := &p.sessions[si]
	var out []models.HardViolation
	violation := func(kind models.ConstraintKind, entity, format string, args ...interface{}) {
		out = append(out, models.HardViolation{
			Kind:     kind,
			Sessions: []models.SessionID{info.ID},
			Day:      pl.Day,
			Period:   pl.Period,
			EntityID: entity,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	ri, ok := p.roomIx[pl.RoomID]
	if !ok {
		violation(models.ConstraintRoomAvailable, string(pl.RoomID), "room %s does not exist", pl.RoomID)
		return candidate{slot: -1}, out
	}
	if !p.Grid.Fits(pl.Day, pl.Period, info.Duration) {
		violation(models.ConstraintContiguousBlock, string(info.ID), "%d periods from %s period %d do not fit one unbroken run",
			info.Duration, models.DayName(pl.Day), pl.Period)
		return candidate{slot: -1}, out
	}

	room := p.rooms[ri]
	if !room.Available() {
		violation(models.ConstraintRoomAvailable, string(room.ID), "room %s is not available", room.ID)
	}
	want := info.subject.RequiredRoomType()
	if !room.Accepts(want) || !room.HasEquipment(info.subject.Equipment) {
		violation(models.ConstraintRoomTypeMatches, string(room.ID), "room %s (%s) cannot host %s which needs %s",
			room.ID, room.Type, info.SubjectID, want)
	}
	if room.Capacity < info.capacity {
		violation(models.ConstraintRoomCapacityFits, string(room.ID), "room %s seats %d, batch %s has %d",
			room.ID, room.Capacity, info.BatchID, info.capacity)
	}
	return candidate{slot: p.Grid.Index(pl.Day, pl.Period), room: ri}, out
}

// allSoft evaluates every soft rule over fully placed entities.
func (l *ledger) allSoft() []models.SoftViolation {
	var out []models.SoftViolation
	for bi := range l.p.batches {
		if !l.batchComplete(bi) {
			continue
		}
		for di := range l.p.Grid.Days {
			out = append(out, l.batchDaySoft(bi, di)...)
		}
	}
	for fi := range l.p.faculty {
		if !l.facultyComplete(fi) {
			continue
		}
		for di := range l.p.Grid.Days {
			out = append(out, l.facultyDaySoft(fi, di)...)
		}
		out = append(out, l.facultyWeekSoft(fi)...)
	}
	sortSoft(out)
	return out
}

func (l *ledger) batchDaySoft(bi, di int) []models.SoftViolation {
	rules := l.p.batchRules[bi]
	b := l.p.batches[bi]
	day := l.p.Grid.Days[di]
	var out []models.SoftViolation
	if c := rules.consecutive; c != nil {
		if excess := l.consecutiveExcess(bi, di, consecutiveLimit(c)); excess > 0 {
			out = append(out, softViolation(c, models.ScopeBatch, string(b.ID), day, float64(excess),
				fmt.Sprintf("batch %s has %d theory periods beyond a run of %d on %s", b.ID, excess, consecutiveLimit(c), models.DayName(day))))
		}
	}
	if c := rules.gaps; c != nil {
		if gaps := l.gapCount(bi, di); gaps > 0 {
			out = append(out, softViolation(c, models.ScopeBatch, string(b.ID), day, float64(gaps),
				fmt.Sprintf("batch %s has %d idle periods on %s", b.ID, gaps, models.DayName(day))))
		}
	}
	return out
}

func (l *ledger) facultyDaySoft(fi, di int) []models.SoftViolation {
	c := l.p.facultyRules[fi].daily
	if c == nil {
		return nil
	}
	f := l.p.faculty[fi]
	day := l.p.Grid.Days[di]
	excess := l.dailyExcess(fi, di)
	if excess <= 0 {
		return nil
	}
	return []models.SoftViolation{softViolation(c, models.ScopeFaculty, string(f.ID), day, float64(excess),
		fmt.Sprintf("faculty %s teaches %d hours over the daily cap of %d on %s", f.ID, excess, l.p.dailyLimit[fi], models.DayName(day)))}
}

func (l *ledger) facultyWeekSoft(fi int) []models.SoftViolation {
	c := l.p.facultyRules[fi].balance
	if c == nil {
		return nil
	}
	excess := l.balanceExcess(fi)
	if excess <= 0 {
		return nil
	}
	f := l.p.faculty[fi]
	return []models.SoftViolation{softViolation(c, models.ScopeFaculty, string(f.ID), 0, float64(excess),
		fmt.Sprintf("faculty %s load is uneven across the week by %d hours", f.ID, excess))}
}

// localPenalty is the soft penalty of every scope a session on dayIdx touches,
// regardless of whether those scopes are complete. Search uses it to rank candidates.
func (l *ledger) localPenalty(si, di int) float64 {
	info := &l.p.sessions[si]
	br := l.p.batchRules[info.batch]
	fr := l.p.facultyRules[info.faculty]
	var pen float64
	if br.consecutive != nil {
		pen += br.consecutive.EffectiveWeight() * float64(l.consecutiveExcess(info.batch, di, consecutiveLimit(br.consecutive)))
	}
	if br.gaps != nil {
		pen += br.gaps.EffectiveWeight() * float64(l.gapCount(info.batch, di))
	}
	if fr.daily != nil {
		pen += fr.daily.EffectiveWeight() * float64(l.dailyExcess(info.faculty, di))
	}
	if fr.balance != nil {
		pen += fr.balance.EffectiveWeight() * float64(l.balanceExcess(info.faculty))
	}
	return pen
}

func (l *ledger) consecutiveExcess(bi, di, limit int) int {
	row := l.day(l.batchAt, bi, di)
	excess, run := 0, 0
	for i, v := range row {
		if v != 0 && l.p.sessions[v-1].subject.IsTheory() {
			run++
			if run > limit {
				excess++
			}
		} else {
			run = 0
		}
		if l.p.Grid.BreakAfter(i + 1) {
			run = 0
		}
	}
	return excess
}

func (l *ledger) gapCount(bi, di int) int {
	row := l.day(l.batchAt, bi, di)
	first, last := -1, -1
	for i, v := range row {
		if v == 0 {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if first < 0 {
		return 0
	}
	gaps := 0
	for i := first; i <= last; i++ {
		if row[i] == 0 {
			gaps++
		}
	}
	return gaps
}

func (l *ledger) dailyExcess(fi, di int) int {
	return l.facultyDayHours(fi, di) - l.p.dailyLimit[fi]
}

// balanceExcess sums hours above the even share ceil(total/days) on each day.
func (l *ledger) balanceExcess(fi int) int {
	days := len(l.p.Grid.Days)
	total := l.p.facultyHours[fi]
	if total == 0 || days == 0 {
		return 0
	}
	ideal := int(math.Ceil(float64(total) / float64(days)))
	excess := 0
	for di := 0; di < days; di++ {
		if h := l.facultyDayHours(fi, di); h > ideal {
			excess += h - ideal
		}
	}
	return excess
}

func consecutiveLimit(c *models.Constraint) int {
	if c.Limit > 0 {
		return c.Limit
	}
	return defaultConsecutiveLimit
}

func softViolation(c *models.Constraint, entity models.ScopeEntity, id string, day int, magnitude float64, msg string) models.SoftViolation {
	return models.SoftViolation{
		Kind:      c.Kind,
		Severity:  c.Severity(),
		Entity:    entity,
		EntityID:  id,
		Day:       day,
		Magnitude: magnitude,
		Penalty:   c.EffectiveWeight() * magnitude,
		Message:   msg,
	}
}

func totalPenalty(vs []models.SoftViolation) float64 {
	var sum float64
	for _, v := range vs {
		sum += v.Penalty
	}
	return sum
}

func sortSoft(vs []models.SoftViolation) {
	sort.SliceStable(vs, func(i, j int) bool {
		a, b := vs[i], vs[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		return a.Day < b.Day
	})
}
