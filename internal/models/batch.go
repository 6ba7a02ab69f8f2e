package models

// BatchSubject binds a required subject to the faculty member resolved for this batch.
type BatchSubject struct {
	SubjectID    SubjectID `json:"subjectId" yaml:"subjectId"`
	FacultyID    FacultyID `json:"facultyId" yaml:"facultyId"`
	HoursPerWeek int       `json:"hoursPerWeek,omitempty" yaml:"hoursPerWeek"`
}

// Batch is a cohort of students that attends sessions together.
type Batch struct {
	ID           BatchID        `json:"id" yaml:"id"`
	Department   string         `json:"department" yaml:"department"`
	Semester     int            `json:"semester" yaml:"semester"`
	StudentCount int            `json:"studentCount" yaml:"studentCount"`
	Subjects     []BatchSubject `json:"subjects" yaml:"subjects"`
}
