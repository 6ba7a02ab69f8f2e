package models

// SubjectType distinguishes lecture from hands-on subjects.
type SubjectType string

const (
	SubjectTypeTheory    SubjectType = "theory"
	SubjectTypePractical SubjectType = "practical"
	SubjectTypeLab       SubjectType = "lab"
)

// Subject describes weekly teaching demand and room requirements.
type Subject struct {
	ID            SubjectID   `json:"id" yaml:"id"`
	Type          SubjectType `json:"type" yaml:"type"`
	HoursPerWeek  int         `json:"hoursPerWeek" yaml:"hoursPerWeek"`
	BlockSize     int         `json:"blockSize,omitempty" yaml:"blockSize"`
	RoomType      RoomType    `json:"roomType,omitempty" yaml:"roomType"`
	Equipment     []string    `json:"equipment,omitempty" yaml:"equipment"`
	Prerequisites []SubjectID `json:"prerequisites,omitempty" yaml:"prerequisites"`
}

// Block returns the number of consecutive periods taught per session.
func (s Subject) Block() int {
	if s.BlockSize > 0 {
		return s.BlockSize
	}
	if s.Type == SubjectTypeTheory || s.Type == "" {
		return 1
	}
	return 2
}

// RequiredRoomType returns the explicit room type or the one implied by the subject type.
func (s Subject) RequiredRoomType() RoomType {
	if s.RoomType != "" {
		return s.RoomType
	}
	if s.Type == SubjectTypeTheory || s.Type == "" {
		return RoomTypeClassroom
	}
	return RoomTypeLaboratory
}

// IsTheory reports whether the subject counts toward consecutive-theory limits.
func (s Subject) IsTheory() bool {
	return s.Type == SubjectTypeTheory || s.Type == ""
}
