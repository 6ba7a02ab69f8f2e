package scheduler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/noah-isme/timetable-engine/internal/models"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

// Snapshot is the read-only master data a generation request works on.
type Snapshot struct {
	Grid        models.Grid         `json:"grid" yaml:"grid"`
	Faculty     []models.Faculty    `json:"faculty" yaml:"faculty"`
	Rooms       []models.Room       `json:"rooms" yaml:"rooms"`
	Subjects    []models.Subject    `json:"subjects" yaml:"subjects"`
	Batches     []models.Batch      `json:"batches" yaml:"batches"`
	Constraints []models.Constraint `json:"constraints" yaml:"constraints"`
}

// sessionInfo caches dense indices for one session so the hot paths avoid map lookups.
type sessionInfo struct {
	models.Session
	faculty  int
	batch    int
	subject  models.Subject
	statics  []candidate
	capacity int
}

// candidate is a start slot plus a room index.
type candidate struct {
	slot int
	room int
}

// Problem is the immutable, indexed form of a Snapshot. It is shared read-only by every
// search run of a generation request.
type Problem struct {
	Grid models.Grid

	faculty   []models.Faculty
	rooms     []models.Room
	batches   []models.Batch
	subjects  map[models.SubjectID]models.Subject
	facultyIx map[models.FacultyID]int
	roomIx    map[models.RoomID]int
	batchIx   map[models.BatchID]int

	sessions  []sessionInfo
	sessionIx map[models.SessionID]int

	facultySessions [][]int
	batchSessions   [][]int
	facultyHours    []int

	soft         []models.Constraint
	batchRules   []softRules
	facultyRules []softRules
	dailyLimit   []int
	fingerprint  string
}

// NewProblem validates a snapshot and derives its sessions. Malformed or inconsistent
// master data yields an INVALID_INPUT error before any search starts.
func NewProblem(s Snapshot) (*Problem, error) {
	if problems := validateSnapshot(s); len(problems) > 0 {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrInvalidInput, problems[0]), problems)
	}

	p := &Problem{
		Grid:      s.Grid,
		subjects:  make(map[models.SubjectID]models.Subject, len(s.Subjects)),
		facultyIx: make(map[models.FacultyID]int, len(s.Faculty)),
		roomIx:    make(map[models.RoomID]int, len(s.Rooms)),
		batchIx:   make(map[models.BatchID]int, len(s.Batches)),
		sessionIx: make(map[models.SessionID]int),
	}

	p.faculty = append([]models.Faculty(nil), s.Faculty...)
	sort.Slice(p.faculty, func(i, j int) bool { return p.faculty[i].ID < p.faculty[j].ID })
	for i, f := range p.faculty {
		p.facultyIx[f.ID] = i
	}

	p.rooms = append([]models.Room(nil), s.Rooms...)
	sort.Slice(p.rooms, func(i, j int) bool { return p.rooms[i].ID < p.rooms[j].ID })
	for i, r := range p.rooms {
		p.roomIx[r.ID] = i
	}

	p.batches = append([]models.Batch(nil), s.Batches...)
	sort.Slice(p.batches, func(i, j int) bool { return p.batches[i].ID < p.batches[j].ID })
	for i, b := range p.batches {
		p.batchIx[b.ID] = i
	}

	for _, subj := range s.Subjects {
		p.subjects[subj.ID] = subj
	}

	p.facultySessions = make([][]int, len(p.faculty))
	p.batchSessions = make([][]int, len(p.batches))
	p.facultyHours = make([]int, len(p.faculty))

	for bi, batch := range p.batches {
		for _, req := range batch.Subjects {
			subject := p.subjects[req.SubjectID]
			for part, duration := range splitHours(hoursFor(req, subject), subject.Block()) {
				info := sessionInfo{
					Session: models.Session{
						ID:        models.NewSessionID(batch.ID, subject.ID, part+1),
						BatchID:   batch.ID,
						SubjectID: subject.ID,
						FacultyID: req.FacultyID,
						Duration:  duration,
						Part:      part + 1,
					},
					faculty:  p.facultyIx[req.FacultyID],
					batch:    bi,
					subject:  subject,
					capacity: batch.StudentCount,
				}
				p.sessions = append(p.sessions, info)
			}
		}
	}
	sort.Slice(p.sessions, func(i, j int) bool { return p.sessions[i].ID < p.sessions[j].ID })
	for i := range p.sessions {
		info := &p.sessions[i]
		p.sessionIx[info.ID] = i
		p.facultySessions[info.faculty] = append(p.facultySessions[info.faculty], i)
		p.batchSessions[info.batch] = append(p.batchSessions[info.batch], i)
		p.facultyHours[info.faculty] += info.Duration
		info.statics = p.staticCandidates(info)
	}

	p.soft = lo.Filter(s.Constraints, func(c models.Constraint, _ int) bool { return c.Kind.IsSoft() })
	if len(p.soft) == 0 {
		p.soft = models.DefaultSoftConstraints()
	}
	p.indexSoftRules()

	fp, err := Fingerprint(s)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fingerprint snapshot")
	}
	p.fingerprint = fp
	return p, nil
}

// Sessions returns a copy of the derived sessions ordered by id.
func (p *Problem) Sessions() []models.Session {
	out := make([]models.Session, len(p.sessions))
	for i, s := range p.sessions {
		out[i] = s.Session
	}
	return out
}

// Session looks up a session by id.
func (p *Problem) Session(id models.SessionID) (models.Session, bool) {
	i, ok := p.sessionIx[id]
	if !ok {
		return models.Session{}, false
	}
	return p.sessions[i].Session, true
}

// Room looks up a room by id.
func (p *Problem) Room(id models.RoomID) (models.Room, bool) {
	i, ok := p.roomIx[id]
	if !ok {
		return models.Room{}, false
	}
	return p.rooms[i], true
}

// Subject looks up a subject by id.
func (p *Problem) Subject(id models.SubjectID) (models.Subject, bool) {
	s, ok := p.subjects[id]
	return s, ok
}

// SoftConstraints returns the soft rules in effect.
func (p *Problem) SoftConstraints() []models.Constraint {
	return append([]models.Constraint(nil), p.soft...)
}

// Fingerprint identifies the inputs; equal fingerprints and seeds reproduce equal assignments.
func (p *Problem) Fingerprint() string {
	return p.fingerprint
}

func (p *Problem) staticCandidates(info *sessionInfo) []candidate {
	want := info.subject.RequiredRoomType()
	var rooms []int
	for ri, room := range p.rooms {
		if !room.Available() || !room.Accepts(want) || !room.HasEquipment(info.subject.Equipment) || room.Capacity < info.capacity {
			continue
		}
		rooms = append(rooms, ri)
	}
	// best fit first so large rooms stay free for large batches
	sort.SliceStable(rooms, func(i, j int) bool {
		return p.rooms[rooms[i]].Capacity < p.rooms[rooms[j]].Capacity
	})

	var out []candidate
	for slot := 0; slot < p.Grid.Size(); slot++ {
		ts := p.Grid.Slot(slot)
		if !p.Grid.Fits(ts.Day, ts.Period, info.Duration) {
			continue
		}
		for _, ri := range rooms {
			out = append(out, candidate{slot: slot, room: ri})
		}
	}
	return out
}

func hoursFor(req models.BatchSubject, subject models.Subject) int {
	if req.HoursPerWeek > 0 {
		return req.HoursPerWeek
	}
	return subject.HoursPerWeek
}

// splitHours cuts weekly hours into blocks of size block with a shorter trailing remainder.
func splitHours(hours, block int) []int {
	if block < 1 {
		block = 1
	}
	var parts []int
	for hours >= block {
		parts = append(parts, block)
		hours -= block
	}
	if hours > 0 {
		parts = append(parts, hours)
	}
	return parts
}

// Fingerprint hashes a snapshot independent of the order entities were listed in.
func Fingerprint(s Snapshot) (string, error) {
	norm := s
	norm.Faculty = append([]models.Faculty(nil), s.Faculty...)
	sort.Slice(norm.Faculty, func(i, j int) bool { return norm.Faculty[i].ID < norm.Faculty[j].ID })
	norm.Rooms = append([]models.Room(nil), s.Rooms...)
	sort.Slice(norm.Rooms, func(i, j int) bool { return norm.Rooms[i].ID < norm.Rooms[j].ID })
	norm.Subjects = append([]models.Subject(nil), s.Subjects...)
	sort.Slice(norm.Subjects, func(i, j int) bool { return norm.Subjects[i].ID < norm.Subjects[j].ID })
	norm.Batches = append([]models.Batch(nil), s.Batches...)
	sort.Slice(norm.Batches, func(i, j int) bool { return norm.Batches[i].ID < norm.Batches[j].ID })

	raw, err := json.Marshal(norm)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
