package models

// Strongly typed identifiers keep faculty, room, batch and session keys from being mixed up.
type (
	FacultyID string
	RoomID    string
	SubjectID string
	BatchID   string
	SessionID string
)
