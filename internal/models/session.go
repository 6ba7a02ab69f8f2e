package models

import "fmt"

// SessionIDSeparator joins the parts of a session id; batch and subject ids must not contain it.
const SessionIDSeparator = ":"

// Session is one atomic teaching block placed on the timetable.
type Session struct {
	ID        SessionID `json:"id"`
	BatchID   BatchID   `json:"batchId"`
	SubjectID SubjectID `json:"subjectId"`
	FacultyID FacultyID `json:"facultyId"`
	Duration  int       `json:"duration"`
	Part      int       `json:"part"`
}

// NewSessionID formats the id of the n-th block of a (batch, subject) pair.
func NewSessionID(batch BatchID, subject SubjectID, part int) SessionID {
	return SessionID(fmt.Sprintf("%s%s%s%s%d", batch, SessionIDSeparator, subject, SessionIDSeparator, part))
}
