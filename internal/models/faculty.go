package models

// FacultyStatus mirrors the active/inactive flag kept on faculty master records.
type FacultyStatus string

const (
	FacultyStatusActive   FacultyStatus = "active"
	FacultyStatusInactive FacultyStatus = "inactive"
)

// Faculty is a read-only teaching resource.
type Faculty struct {
	ID              FacultyID     `json:"id" yaml:"id"`
	Department      string        `json:"department" yaml:"department"`
	MaxHoursPerWeek int           `json:"maxHoursPerWeek" yaml:"maxHoursPerWeek"`
	MaxHoursPerDay  int           `json:"maxHoursPerDay,omitempty" yaml:"maxHoursPerDay"`
	Subjects        []SubjectID   `json:"subjects" yaml:"subjects"`
	Status          FacultyStatus `json:"status,omitempty" yaml:"status"`
}

// Active reports whether the faculty member can be scheduled. An empty status counts as active.
func (f Faculty) Active() bool {
	return f.Status == "" || f.Status == FacultyStatusActive
}

// Teaches reports whether the faculty member is qualified for the subject.
func (f Faculty) Teaches(subject SubjectID) bool {
	for _, s := range f.Subjects {
		if s == subject {
			return true
		}
	}
	return false
}
