package models

// ConstraintKind names a hard or soft rule understood by the evaluator.
type ConstraintKind string

const (
	ConstraintNoDoubleBookFaculty ConstraintKind = "NO_DOUBLE_BOOK_FACULTY"
	ConstraintNoDoubleBookRoom    ConstraintKind = "NO_DOUBLE_BOOK_ROOM"
	ConstraintNoDoubleBookBatch   ConstraintKind = "NO_DOUBLE_BOOK_BATCH"
	ConstraintRoomCapacityFits    ConstraintKind = "ROOM_CAPACITY_FITS"
	ConstraintRoomTypeMatches     ConstraintKind = "ROOM_TYPE_MATCHES"
	ConstraintRoomAvailable       ConstraintKind = "ROOM_AVAILABLE"
	ConstraintContiguousBlock     ConstraintKind = "CONTIGUOUS_BLOCK"
	ConstraintFacultyWeeklyCap    ConstraintKind = "FACULTY_WEEKLY_CAP"

	ConstraintMaxConsecutiveTheory ConstraintKind = "MAX_CONSECUTIVE_THEORY"
	ConstraintFacultyDailyHourCap  ConstraintKind = "FACULTY_DAILY_HOUR_CAP"
	ConstraintMinimizeGaps         ConstraintKind = "MINIMIZE_GAPS"
	ConstraintBalanceFacultyLoad   ConstraintKind = "BALANCE_FACULTY_LOAD"
)

var hardKinds = map[ConstraintKind]bool{
	ConstraintNoDoubleBookFaculty: true,
	ConstraintNoDoubleBookRoom:    true,
	ConstraintNoDoubleBookBatch:   true,
	ConstraintRoomCapacityFits:    true,
	ConstraintRoomTypeMatches:     true,
	ConstraintRoomAvailable:       true,
	ConstraintContiguousBlock:     true,
	ConstraintFacultyWeeklyCap:    true,
}

var softKinds = map[ConstraintKind]bool{
	ConstraintMaxConsecutiveTheory: true,
	ConstraintFacultyDailyHourCap:  true,
	ConstraintMinimizeGaps:         true,
	ConstraintBalanceFacultyLoad:   true,
}

// IsHard reports whether violating the kind invalidates a schedule.
func (k ConstraintKind) IsHard() bool { return hardKinds[k] }

// IsSoft reports whether the kind only contributes penalty.
func (k ConstraintKind) IsSoft() bool { return softKinds[k] }

// BindsTo is the entity a soft kind is evaluated per. Hard kinds return "".
func (k ConstraintKind) BindsTo() ScopeEntity {
	switch k {
	case ConstraintMaxConsecutiveTheory, ConstraintMinimizeGaps:
		return ScopeBatch
	case ConstraintFacultyDailyHourCap, ConstraintBalanceFacultyLoad:
		return ScopeFaculty
	}
	return ""
}

// ScopeEntity selects what a constraint applies to.
type ScopeEntity string

const (
	ScopeGlobal  ScopeEntity = "global"
	ScopeFaculty ScopeEntity = "faculty"
	ScopeBatch   ScopeEntity = "batch"
	ScopeRoom    ScopeEntity = "room"
)

// Scope limits a constraint to one entity, or to everything when Entity is global.
type Scope struct {
	Entity ScopeEntity `json:"entity" yaml:"entity"`
	ID     string      `json:"id,omitempty" yaml:"id"`
}

// Matches reports whether the scope covers the given entity.
func (s Scope) Matches(entity ScopeEntity, id string) bool {
	if s.Entity == "" || s.Entity == ScopeGlobal {
		return true
	}
	return s.Entity == entity && s.ID == id
}

// Priority mirrors the High/Medium/Low labels operators attach to constraints.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Constraint is a tagged rule; Kind decides whether it is hard or soft.
type Constraint struct {
	Kind     ConstraintKind `json:"kind" yaml:"kind"`
	Scope    Scope          `json:"scope" yaml:"scope"`
	Weight   float64        `json:"weight,omitempty" yaml:"weight"`
	Priority Priority       `json:"priority,omitempty" yaml:"priority"`
	Limit    int            `json:"limit,omitempty" yaml:"limit"`
}

// EffectiveWeight falls back to a priority-derived weight when none was given.
func (c Constraint) EffectiveWeight() float64 {
	if c.Weight > 0 {
		return c.Weight
	}
	switch c.Priority {
	case PriorityHigh:
		return 3
	case PriorityLow:
		return 1
	default:
		return 2
	}
}

// Severity is the priority reported on violations.
func (c Constraint) Severity() Priority {
	if c.Priority == "" {
		return PriorityMedium
	}
	return c.Priority
}

// DefaultSoftConstraints is used when a request does not list any soft rules.
func DefaultSoftConstraints() []Constraint {
	return []Constraint{
		{Kind: ConstraintMaxConsecutiveTheory, Scope: Scope{Entity: ScopeGlobal}, Priority: PriorityHigh, Limit: 2},
		{Kind: ConstraintFacultyDailyHourCap, Scope: Scope{Entity: ScopeGlobal}, Priority: PriorityHigh, Limit: 6},
		{Kind: ConstraintMinimizeGaps, Scope: Scope{Entity: ScopeGlobal}, Priority: PriorityMedium},
		{Kind: ConstraintBalanceFacultyLoad, Scope: Scope{Entity: ScopeGlobal}, Priority: PriorityMedium},
	}
}
