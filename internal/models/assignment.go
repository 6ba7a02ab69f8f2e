package models

// Placement is where a session lands: the first period of its block and a room.
type Placement struct {
	Day    int    `json:"day"`
	Period int    `json:"period"`
	RoomID RoomID `json:"roomId"`
}

// Assignment maps sessions to placements. Each session appears at most once by construction.
type Assignment map[SessionID]Placement

// Clone returns an independent copy.
func (a Assignment) Clone() Assignment {
	out := make(Assignment, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
