package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TimetableStatus represents lifecycle phases for persisted alternatives.
type TimetableStatus string

const (
	TimetableStatusDraft     TimetableStatus = "DRAFT"
	TimetableStatusPublished TimetableStatus = "PUBLISHED"
	TimetableStatusArchived  TimetableStatus = "ARCHIVED"
)

// TimetableRecord is the stored header of an alternative. Seed and Fingerprint are kept so
// regenerating from the same inputs reproduces the same assignment.
type TimetableRecord struct {
	ID          string          `db:"id" json:"id"`
	ScheduleID  *string         `db:"schedule_id" json:"schedule_id,omitempty"`
	Version     int             `db:"version" json:"version"`
	Name        string          `db:"name" json:"name"`
	Seed        int64           `db:"seed" json:"seed"`
	Fingerprint string          `db:"fingerprint" json:"fingerprint"`
	Score       float64         `db:"score" json:"score"`
	Status      TimetableStatus `db:"status" json:"status"`
	Meta        types.JSONText  `db:"meta" json:"meta"`
	GeneratedAt time.Time       `db:"generated_at" json:"generated_at"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// PlacementRecord is one session placement of a stored alternative.
type PlacementRecord struct {
	ID            string    `db:"id" json:"id"`
	AlternativeID string    `db:"alternative_id" json:"alternative_id"`
	SessionID     string    `db:"session_id" json:"session_id"`
	BatchID       string    `db:"batch_id" json:"batch_id"`
	SubjectID     string    `db:"subject_id" json:"subject_id"`
	FacultyID     string    `db:"faculty_id" json:"faculty_id"`
	DayOfWeek     int       `db:"day_of_week" json:"day_of_week"`
	Period        int       `db:"period" json:"period"`
	Duration      int       `db:"duration" json:"duration"`
	RoomID        string    `db:"room_id" json:"room_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
