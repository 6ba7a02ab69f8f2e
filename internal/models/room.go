package models

// RoomType classifies rooms for subject matching.
type RoomType string

const (
	RoomTypeClassroom  RoomType = "classroom"
	RoomTypeLaboratory RoomType = "laboratory"
	RoomTypeAuditorium RoomType = "auditorium"
)

// RoomStatus tracks whether a room may be booked at all.
type RoomStatus string

const (
	RoomStatusAvailable   RoomStatus = "available"
	RoomStatusMaintenance RoomStatus = "maintenance"
)

// Room is a read-only physical resource.
type Room struct {
	ID        RoomID     `json:"id" yaml:"id"`
	Capacity  int        `json:"capacity" yaml:"capacity"`
	Type      RoomType   `json:"type" yaml:"type"`
	Equipment []string   `json:"equipment,omitempty" yaml:"equipment"`
	Status    RoomStatus `json:"status,omitempty" yaml:"status"`
}

// Available reports whether the room can host sessions.
func (r Room) Available() bool {
	return r.Status != RoomStatusMaintenance
}

// Accepts reports whether a room of this type can host a subject that needs want.
// Auditoriums double as classrooms.
func (r Room) Accepts(want RoomType) bool {
	if r.Type == want {
		return true
	}
	return want == RoomTypeClassroom && r.Type == RoomTypeAuditorium
}

// HasEquipment reports whether every tag in required is present.
func (r Room) HasEquipment(required []string) bool {
	for _, tag := range required {
		found := false
		for _, have := range r.Equipment {
			if have == tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
