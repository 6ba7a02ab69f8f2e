package models

import (
	"fmt"
	"strings"
)

// HardViolation identifies a broken hard rule and the sessions involved.
type HardViolation struct {
	Kind     ConstraintKind `json:"kind"`
	Sessions []SessionID    `json:"sessions"`
	Day      int            `json:"day,omitempty"`
	Period   int            `json:"period,omitempty"`
	EntityID string         `json:"entityId,omitempty"`
	Message  string         `json:"message"`
}

// SoftViolation records an undesirable but tolerated pattern.
type SoftViolation struct {
	Kind      ConstraintKind `json:"kind"`
	Severity  Priority       `json:"severity"`
	Entity    ScopeEntity    `json:"entity"`
	EntityID  string         `json:"entityId"`
	Day       int            `json:"day,omitempty"`
	Magnitude float64        `json:"magnitude"`
	Penalty   float64        `json:"penalty"`
	Message   string         `json:"message"`
}

// ConflictReport is returned when a proposed move would break hard rules.
type ConflictReport struct {
	SessionID  SessionID       `json:"sessionId"`
	Target     Placement       `json:"target"`
	Violations []HardViolation `json:"violations"`
}

// Kinds lists the distinct hard kinds in report order.
func (r *ConflictReport) Kinds() []ConstraintKind {
	seen := make(map[ConstraintKind]bool)
	var kinds []ConstraintKind
	for _, v := range r.Violations {
		if !seen[v.Kind] {
			seen[v.Kind] = true
			kinds = append(kinds, v.Kind)
		}
	}
	return kinds
}

// CollidingSessions lists the other sessions involved, excluding the moved one.
func (r *ConflictReport) CollidingSessions() []SessionID {
	seen := map[SessionID]bool{r.SessionID: true}
	var out []SessionID
	for _, v := range r.Violations {
		for _, id := range v.Sessions {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// Error implements the error interface.
func (r *ConflictReport) Error() string {
	if r == nil {
		return "<nil>"
	}
	kinds := make([]string, 0, len(r.Violations))
	for _, k := range r.Kinds() {
		kinds = append(kinds, string(k))
	}
	return fmt.Sprintf("moving %s to %s period %d room %s violates %s",
		r.SessionID, DayName(r.Target.Day), r.Target.Period, r.Target.RoomID, strings.Join(kinds, ", "))
}

// InfeasibilityCause names one hard constraint and entity that blocked scheduling.
type InfeasibilityCause struct {
	Kind     ConstraintKind `json:"kind"`
	Entity   ScopeEntity    `json:"entity"`
	EntityID string         `json:"entityId"`
	Count    int            `json:"count,omitempty"`
	Message  string         `json:"message"`
}

// InfeasibilityDiagnostic explains why no alternative could be produced.
type InfeasibilityDiagnostic struct {
	Causes []InfeasibilityCause `json:"causes"`
}

// Error implements the error interface.
func (d *InfeasibilityDiagnostic) Error() string {
	if d == nil || len(d.Causes) == 0 {
		return "infeasible input"
	}
	parts := make([]string, 0, len(d.Causes))
	for _, c := range d.Causes {
		parts = append(parts, c.Message)
	}
	return "infeasible input: " + strings.Join(parts, "; ")
}

// Names reports whether any cause references the given entity id.
func (d *InfeasibilityDiagnostic) Names(entityID string) bool {
	if d == nil {
		return false
	}
	for _, c := range d.Causes {
		if c.EntityID == entityID {
			return true
		}
	}
	return false
}
