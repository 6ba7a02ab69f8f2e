package models

import "time"

// Labels given to ranked alternatives.
const (
	LabelOptimal          = "Optimal Solution"
	LabelBalanced         = "Balanced Approach"
	LabelFacultyOptimized = "Faculty Optimized"
	LabelRoomEfficient    = "Room Efficient"
	LabelStudentFriendly  = "Student Friendly"
)

// EfficiencyMetrics are the sub-scores shown next to an alternative.
type EfficiencyMetrics struct {
	RoomUtilization     float64 `json:"roomUtilization"`
	FacultyLoadVariance float64 `json:"facultyLoadVariance"`
	RoomBalance         float64 `json:"roomBalance"`
	FacultyBalance      float64 `json:"facultyBalance"`
	Compactness         float64 `json:"compactness"`
	GapCount            int     `json:"gapCount"`
	SoftPenalty         float64 `json:"softPenalty"`
	Efficiency          float64 `json:"efficiency"`
}

// Alternative is an immutable, hard-valid candidate schedule. Edits create a new one.
type Alternative struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Seed        int64             `json:"seed"`
	Fingerprint string            `json:"fingerprint"`
	ParentID    string            `json:"parentId,omitempty"`
	Score       float64           `json:"score"`
	Assignment  Assignment        `json:"assignment"`
	Conflicts   []SoftViolation   `json:"conflicts"`
	Metrics     EfficiencyMetrics `json:"metrics"`
	GeneratedAt time.Time         `json:"generatedAt"`
}
