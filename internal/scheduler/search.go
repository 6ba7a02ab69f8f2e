package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/noah-isme/timetable-engine/internal/models"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

const (
	defaultMaxIterations = 200000
	clockEvery           = 256
	maxBlameCauses       = 3
)

// Progress is reported whenever a run places more sessions than it ever had before.
type Progress struct {
	Seed     int64 `json:"seed"`
	Assigned int   `json:"assigned"`
	Total    int   `json:"total"`
	Best     int   `json:"best"`
}

// Options bound a single search run.
type Options struct {
	Seed          int64
	MaxIterations int
	Timeout       time.Duration
	Progress      func(Progress)
}

// Outcome classifies how a run ended.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeInfeasible     Outcome = "infeasible"
	OutcomeBudgetExceeded Outcome = "budget_exceeded"
	OutcomeCancelled      Outcome = "cancelled"
)

// RunStats describe the work one search run did.
type RunStats struct {
	Seed       int64         `json:"seed"`
	Iterations int           `json:"iterations"`
	Backtracks int           `json:"backtracks"`
	BestDepth  int           `json:"bestDepth"`
	Duration   time.Duration `json:"duration"`
	Outcome    Outcome       `json:"outcome"`
}

// Result is a complete hard-valid assignment found by one run.
type Result struct {
	Assignment models.Assignment
	Stats      RunStats
}

type frame struct {
	session  int
	cands    []candidate
	next     int
	assigned bool
}

type blameKey struct {
	kind   models.ConstraintKind
	entity models.ScopeEntity
	id     string
}

type searcher struct {
	p      *Problem
	l      *ledger
	opts   Options
	rank   []int
	blame  map[blameKey]int
	stack  []frame
	stats  RunStats
	notify func(Progress)
}

// Search runs one deterministic backtracking search. Every placement it keeps satisfies
// all hard rules, so a returned assignment is hard-valid by construction. The same
// problem and seed always yield the same assignment.
func Search(ctx context.Context, p *Problem, opts Options) (*Result, error) {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	s := &searcher{
		p:      p,
		l:      newLedger(p),
		opts:   opts,
		rank:   slotRank(p.Grid.Size(), opts.Seed),
		blame:  make(map[blameKey]int),
		notify: opts.Progress,
	}
	s.stats.Seed = opts.Seed
	return s.run(ctx)
}

// slotRank orders slots for tie-breaking. Seed zero keeps grid order; other seeds shuffle.
func slotRank(size int, seed int64) []int {
	rank := make([]int, size)
	if seed == 0 {
		for i := range rank {
			rank[i] = i
		}
		return rank
	}
	perm := rand.New(rand.NewSource(seed)).Perm(size)
	for pos, slot := range perm {
		rank[slot] = pos
	}
	return rank
}

func (s *searcher) run(ctx context.Context) (*Result, error) {
	started := time.Now()
	var deadline time.Time
	if s.opts.Timeout > 0 {
		deadline = started.Add(s.opts.Timeout)
	}
	total := len(s.p.sessions)
	finish := func(outcome Outcome) {
		s.stats.Outcome = outcome
		s.stats.Duration = time.Since(started)
	}

	for step := 0; ; step++ {
		if err := ctx.Err(); err != nil {
			finish(OutcomeCancelled)
			return &Result{Stats: s.stats}, appErrors.Wrap(err, appErrors.ErrCancelled.Code, appErrors.ErrCancelled.Status, appErrors.ErrCancelled.Message)
		}
		if s.l.assigned == total {
			finish(OutcomeSuccess)
			return &Result{Assignment: s.l.assignment(), Stats: s.stats}, nil
		}
		if s.stats.Iterations >= s.opts.MaxIterations ||
			(!deadline.IsZero() && step%clockEvery == 0 && time.Now().After(deadline)) {
			finish(OutcomeBudgetExceeded)
			return &Result{Stats: s.stats}, s.budgetError()
		}

		si, count := s.selectSession()
		if count == 0 {
			s.recordBlame(si)
			if !s.advance() {
				finish(OutcomeInfeasible)
				return &Result{Stats: s.stats}, infeasible(s.diagnostic())
			}
			continue
		}
		s.stack = append(s.stack, frame{session: si, cands: s.orderCandidates(si)})
		s.advance()
	}
}

// advance places the next untried candidate of the deepest frame, popping exhausted
// frames. It returns false once the whole tree is exhausted.
func (s *searcher) advance() bool {
	for len(s.stack) > 0 {
		top := &s.stack[len(s.stack)-1]
		if top.assigned {
			s.l.remove(top.session)
			top.assigned = false
		}
		if top.next < len(top.cands) {
			c := top.cands[top.next]
			top.next++
			s.l.place(top.session, c)
			top.assigned = true
			s.stats.Iterations++
			if s.l.assigned > s.stats.BestDepth {
				s.stats.BestDepth = s.l.assigned
				s.report()
			}
			return true
		}
		s.stack = s.stack[:len(s.stack)-1]
		s.stats.Backtracks++
	}
	return false
}

func (s *searcher) report() {
	if s.notify == nil {
		return
	}
	s.notify(Progress{
		Seed:     s.opts.Seed,
		Assigned: s.l.assigned,
		Total:    len(s.p.sessions),
		Best:     s.stats.BestDepth,
	})
}

// selectSession picks the unassigned session with the fewest legal candidates.
// Ties prefer longer blocks, then batch, subject and session id.
func (s *searcher) selectSession() (int, int) {
	best, bestCount := -1, 0
	for si := range s.p.sessions {
		if s.l.placed[si] {
			continue
		}
		limit := -1
		if best >= 0 {
			limit = bestCount
		}
		count := s.countLegal(si, limit)
		if best < 0 || count < bestCount || (count == bestCount && s.before(si, best)) {
			best, bestCount = si, count
		}
	}
	return best, bestCount
}

// countLegal counts free candidates, stopping once limit is exceeded (limit < 0 disables).
func (s *searcher) countLegal(si, limit int) int {
	count := 0
	for _, c := range s.p.sessions[si].statics {
		if !s.l.free(si, c) {
			continue
		}
		count++
		if limit >= 0 && count > limit {
			return count
		}
	}
	return count
}

func (s *searcher) before(a, b int) bool {
	x, y := &s.p.sessions[a], &s.p.sessions[b]
	if x.Duration != y.Duration {
		return x.Duration > y.Duration
	}
	if x.BatchID != y.BatchID {
		return x.BatchID < y.BatchID
	}
	if x.SubjectID != y.SubjectID {
		return x.SubjectID < y.SubjectID
	}
	return x.ID < y.ID
}

// orderCandidates returns the legal candidates of si, cheapest soft penalty increase
// first, then by the run's slot rank, room fit and room id.
func (s *searcher) orderCandidates(si int) []candidate {
	info := &s.p.sessions[si]
	ppd := s.p.Grid.PeriodsPerDay
	deltas := make(map[int]float64)
	var legal []candidate
	for _, c := range info.statics {
		if !s.l.free(si, c) {
			continue
		}
		legal = append(legal, c)
		if _, ok := deltas[c.slot]; ok {
			continue
		}
		di := c.slot / ppd
		before := s.l.localPenalty(si, di)
		s.l.place(si, c)
		after := s.l.localPenalty(si, di)
		s.l.remove(si)
		deltas[c.slot] = after - before
	}

	rooms := s.p.rooms
	sort.SliceStable(legal, func(i, j int) bool {
		a, b := legal[i], legal[j]
		if deltas[a.slot] != deltas[b.slot] {
			return deltas[a.slot] < deltas[b.slot]
		}
		if a.slot != b.slot {
			return s.rank[a.slot] < s.rank[b.slot]
		}
		if rooms[a.room].Capacity != rooms[b.room].Capacity {
			return rooms[a.room].Capacity < rooms[b.room].Capacity
		}
		return rooms[a.room].ID < rooms[b.room].ID
	})
	return legal
}

// recordBlame charges each hard rule and entity that blocks every candidate of si.
func (s *searcher) recordBlame(si int) {
	info := &s.p.sessions[si]
	size := s.l.size
	charged := make(map[blameKey]bool)
	charge := func(k blameKey) {
		if !charged[k] {
			charged[k] = true
			s.blame[k]++
		}
	}
	for _, c := range info.statics {
		for k := 0; k < info.Duration; k++ {
			slot := c.slot + k
			if s.l.roomAt[c.room*size+slot] != 0 {
				charge(blameKey{models.ConstraintNoDoubleBookRoom, models.ScopeRoom, string(s.p.rooms[c.room].ID)})
			}
			if s.l.facultyAt[info.faculty*size+slot] != 0 {
				charge(blameKey{models.ConstraintNoDoubleBookFaculty, models.ScopeFaculty, string(info.FacultyID)})
			}
			if s.l.batchAt[info.batch*size+slot] != 0 {
				charge(blameKey{models.ConstraintNoDoubleBookBatch, models.ScopeBatch, string(info.BatchID)})
			}
		}
	}
}

// diagnostic reports the rules and entities charged most often at dead ends.
func (s *searcher) diagnostic() *models.InfeasibilityDiagnostic {
	keys := make([]blameKey, 0, len(s.blame))
	for k := range s.blame {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if s.blame[a] != s.blame[b] {
			return s.blame[a] > s.blame[b]
		}
		if a.kind != b.kind {
			return a.kind < b.kind
		}
		return a.id < b.id
	})
	if len(keys) > maxBlameCauses {
		keys = keys[:maxBlameCauses]
	}
	diag := &models.InfeasibilityDiagnostic{}
	for _, k := range keys {
		diag.Causes = append(diag.Causes, models.InfeasibilityCause{
			Kind:     k.kind,
			Entity:   k.entity,
			EntityID: k.id,
			Count:    s.blame[k],
			Message:  fmt.Sprintf("%s on %s %s blocked placement %d times", k.kind, k.entity, k.id, s.blame[k]),
		})
	}
	return diag
}

func (s *searcher) budgetError() error {
	msg := fmt.Sprintf("search stopped after %d iterations with %d of %d sessions placed",
		s.stats.Iterations, s.stats.BestDepth, len(s.p.sessions))
	return appErrors.WithDetails(appErrors.Clone(appErrors.ErrBudgetExceeded, msg), s.diagnostic())
}
