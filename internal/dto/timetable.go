package dto

import (
	"time"

	"github.com/noah-isme/timetable-engine/internal/models"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

// GenerateTimetableRequest carries the master data snapshot and generation knobs.
type GenerateTimetableRequest struct {
	Grid         models.Grid         `json:"grid" validate:"required"`
	Faculty      []models.Faculty    `json:"faculty" validate:"required,min=1"`
	Rooms        []models.Room       `json:"rooms" validate:"required,min=1"`
	Subjects     []models.Subject    `json:"subjects" validate:"required,min=1"`
	Batches      []models.Batch      `json:"batches" validate:"required,min=1"`
	Constraints  []models.Constraint `json:"constraints"`
	Alternatives int                 `json:"alternatives" validate:"omitempty,min=1"`
	Seed         int64               `json:"seed" validate:"min=0"`
	TimeoutMs    int                 `json:"timeoutMs" validate:"omitempty,min=1,max=600000"`
	NoCache      bool                `json:"noCache"`
}

// RunSummary reports how one seeded search run ended.
type RunSummary struct {
	Seed       int64  `json:"seed"`
	Outcome    string `json:"outcome"`
	Iterations int    `json:"iterations"`
	Backtracks int    `json:"backtracks"`
	BestDepth  int    `json:"bestDepth"`
	DurationMs int64  `json:"durationMs"`
}

// GenerateTimetableResponse lists ranked, mutually distinct alternatives.
type GenerateTimetableResponse struct {
	Fingerprint  string               `json:"fingerprint"`
	Sessions     int                  `json:"sessions"`
	Alternatives []models.Alternative `json:"alternatives"`
	Runs         []RunSummary         `json:"runs"`
	Cached       bool                 `json:"cached"`
	GeneratedAt  time.Time            `json:"generatedAt"`
}

// ExportQuery selects the export format.
type ExportQuery struct {
	Format string `form:"format" json:"format" validate:"omitempty,oneof=csv pdf"`
}

// SaveAlternativeRequest persists an in-memory alternative.
type SaveAlternativeRequest struct {
	ScheduleID string `json:"scheduleId"`
	Publish    bool   `json:"publish"`
}

// SavedTimetableQuery filters stored alternatives.
type SavedTimetableQuery struct {
	Fingerprint string `form:"fingerprint" json:"fingerprint"`
	Status      string `form:"status" json:"status" validate:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
	Page        int    `form:"page" json:"page" validate:"omitempty,min=1"`
	PageSize    int    `form:"pageSize" json:"pageSize" validate:"omitempty,min=1,max=100"`
}

// SavedTimetableResponse is a stored alternative with its placements.
type SavedTimetableResponse struct {
	Timetable  models.TimetableRecord   `json:"timetable"`
	Placements []models.PlacementRecord `json:"placements"`
}

// CreateScheduleRequest adopts an alternative as the head of an editable schedule.
type CreateScheduleRequest struct {
	AlternativeID string `json:"alternativeId" validate:"required"`
}

// ScheduleResponse describes an editable schedule and the alternatives it went through.
type ScheduleResponse struct {
	ID        string              `json:"id"`
	Head      *models.Alternative `json:"head"`
	History   []string            `json:"history"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// MoveRequest proposes relocating one session.
type MoveRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
	Day       int    `json:"day" validate:"required,min=1,max=7"`
	Period    int    `json:"period" validate:"required,min=1"`
	RoomID    string `json:"roomId" validate:"required"`
	DryRun    bool   `json:"dryRun"`
}

// MoveResponse reports an accepted move. On dry runs Applied is false and the
// schedule head is unchanged.
type MoveResponse struct {
	ScheduleID  string                 `json:"scheduleId"`
	Applied     bool                   `json:"applied"`
	Alternative *models.Alternative    `json:"alternative"`
	Warnings    []models.SoftViolation `json:"warnings"`
	ScoreDelta  float64                `json:"scoreDelta"`
}

// Job lifecycle states.
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

// JobProgress is the latest search progress of a generation job.
type JobProgress struct {
	Seed     int64 `json:"seed"`
	Assigned int   `json:"assigned"`
	Total    int   `json:"total"`
	Best     int   `json:"best"`
	Runs     int   `json:"runsFinished"`
}

// JobResponse describes a background generation job.
type JobResponse struct {
	ID         string                     `json:"id"`
	Status     string                     `json:"status"`
	Progress   *JobProgress               `json:"progress,omitempty"`
	Result     *GenerateTimetableResponse `json:"result,omitempty"`
	Error      *appErrors.Error           `json:"error,omitempty"`
	CreatedAt  time.Time                  `json:"createdAt"`
	StartedAt  *time.Time                 `json:"startedAt,omitempty"`
	FinishedAt *time.Time                 `json:"finishedAt,omitempty"`
}

// Terminal reports whether the job will not change anymore.
func (j JobResponse) Terminal() bool {
	switch j.Status {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}
