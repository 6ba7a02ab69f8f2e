package scheduler

import (
	"math"
	"sort"
	"time"

	"github.com/noah-isme/timetable-engine/internal/models"
)

// DefaultDiversityRatio is the share of sessions that must sit in different slots for two
// alternatives to count as distinct.
const DefaultDiversityRatio = 0.1

const balancedSpread = 0.05

// Candidate is one scored, hard-valid search result.
type Candidate struct {
	Seed       int64
	Assignment models.Assignment
	Evaluation Evaluation
	Score      float64
	Metrics    models.EfficiencyMetrics
}

// NewCandidate evaluates and scores an assignment.
func NewCandidate(p *Problem, seed int64, a models.Assignment) Candidate {
	ev := Evaluate(p, a)
	score, metrics := Score(p, a, ev)
	return Candidate{Seed: seed, Assignment: a, Evaluation: ev, Score: score, Metrics: metrics}
}

// MinDistance is the slot distance required between kept alternatives, never below one.
func MinDistance(sessions int, ratio float64) int {
	if ratio <= 0 {
		ratio = DefaultDiversityRatio
	}
	d := int(math.Ceil(ratio * float64(sessions)))
	if d < 1 {
		return 1
	}
	return d
}

// SlotDistance counts sessions whose day or period differ between a and b. Room changes
// alone do not count. Sessions present in only one assignment count as different.
func SlotDistance(a, b models.Assignment) int {
	d := 0
	for id, pa := range a {
		pb, ok := b[id]
		if !ok || pa.Day != pb.Day || pa.Period != pb.Period {
			d++
		}
	}
	for id := range b {
		if _, ok := a[id]; !ok {
			d++
		}
	}
	return d
}

// Diversify ranks candidates by score and keeps at most n that are pairwise at least
// minDistance apart. Ties go to fewer soft violations, then the lower seed.
func Diversify(cands []Candidate, n, minDistance int) []Candidate {
	ranked := append([]Candidate(nil), cands...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if len(a.Evaluation.Soft) != len(b.Evaluation.Soft) {
			return len(a.Evaluation.Soft) < len(b.Evaluation.Soft)
		}
		return a.Seed < b.Seed
	})

	var kept []Candidate
	for _, c := range ranked {
		if len(kept) == n {
			break
		}
		distinct := true
		for _, k := range kept {
			if SlotDistance(c.Assignment, k.Assignment) < minDistance {
				distinct = false
				break
			}
		}
		if distinct {
			kept = append(kept, c)
		}
	}
	return kept
}

// Label names an alternative by rank and by the sub-metric it does best on.
func Label(rank int, m models.EfficiencyMetrics) string {
	if rank == 0 {
		return models.LabelOptimal
	}
	type metric struct {
		value float64
		label string
	}
	metrics := []metric{
		{m.FacultyBalance, models.LabelFacultyOptimized},
		{m.RoomBalance, models.LabelRoomEfficient},
		{m.Compactness, models.LabelStudentFriendly},
	}
	best, low := metrics[0], metrics[0].value
	for _, x := range metrics[1:] {
		if x.value > best.value {
			best = x
		}
		if x.value < low {
			low = x.value
		}
	}
	if best.value-low < balancedSpread {
		return models.LabelBalanced
	}
	return best.label
}

// Alternative materialises a ranked candidate.
func (c Candidate) Alternative(p *Problem, id string, rank int, now time.Time) *models.Alternative {
	return &models.Alternative{
		ID:          id,
		Name:        Label(rank, c.Metrics),
		Seed:        c.Seed,
		Fingerprint: p.Fingerprint(),
		Score:       c.Score,
		Assignment:  c.Assignment.Clone(),
		Conflicts:   append([]models.SoftViolation{}, c.Evaluation.Soft...),
		Metrics:     c.Metrics,
		GeneratedAt: now,
	}
}
