package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-engine/internal/models"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

var editNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func twoBatchSchedule(t *testing.T) (*Problem, *Schedule) {
	t.Helper()
	p := mustProblem(t, twoBatchSnapshot())
	a := models.Assignment{
		"B1:S1:1": {Day: 1, Period: 1, RoomID: "A-101"},
		"B2:S2:1": {Day: 2, Period: 1, RoomID: "A-102"},
	}
	alt := NewCandidate(p, 0, a).Alternative(p, "alt-root", 0, editNow)
	s, err := NewSchedule(p, alt)
	require.NoError(t, err)
	return p, s
}

func TestApplyRejectsRoomDoubleBooking(t *testing.T) {
	_, s := twoBatchSchedule(t)

	next, err := s.Apply(Move{SessionID: "B2:S2:1", Day: 1, Period: 1, RoomID: "A-101"}, "alt-2", editNow)
	require.Error(t, err)
	assert.Nil(t, next)
	assert.True(t, errors.Is(err, appErrors.ErrConflictOnEdit))

	report, ok := appErrors.FromError(err).Details.(*models.ConflictReport)
	require.True(t, ok)
	assert.Equal(t, []models.ConstraintKind{models.ConstraintNoDoubleBookRoom}, report.Kinds())
	assert.Equal(t, []models.SessionID{"B1:S1:1"}, report.CollidingSessions())

	assert.Equal(t, models.Placement{Day: 2, Period: 1, RoomID: "A-102"}, s.Alternative().Assignment["B2:S2:1"])
}

func TestApplyRejectsOffGridAndWrongRoom(t *testing.T) {
	_, s := twoBatchSchedule(t)

	_, err := s.Apply(Move{SessionID: "B1:S1:1", Day: 6, Period: 1, RoomID: "A-101"}, "alt-2", editNow)
	require.Error(t, err)
	report := appErrors.FromError(err).Details.(*models.ConflictReport)
	assert.Equal(t, []models.ConstraintKind{models.ConstraintContiguousBlock}, report.Kinds())

	_, err = s.Apply(Move{SessionID: "B1:S1:1", Day: 1, Period: 1, RoomID: "Z-999"}, "alt-2", editNow)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidInput))

	_, err = s.Apply(Move{SessionID: "B9:S1:1", Day: 1, Period: 1, RoomID: "A-101"}, "alt-2", editNow)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidInput))
}

func TestApplyCreatesChildAlternative(t *testing.T) {
	p, s := twoBatchSchedule(t)
	before := s.Alternative().Assignment.Clone()

	next, err := s.Apply(Move{SessionID: "B2:S2:1", Day: 1, Period: 1, RoomID: "A-102"}, "alt-2", editNow)
	require.NoError(t, err)

	alt := next.Alternative()
	assert.Equal(t, "alt-2", alt.ID)
	assert.Equal(t, "alt-root", alt.ParentID)
	assert.Equal(t, models.Placement{Day: 1, Period: 1, RoomID: "A-102"}, alt.Assignment["B2:S2:1"])
	assert.Equal(t, before, s.Alternative().Assignment)
	assertHardValid(t, p, alt.Assignment)
}

func TestApplySameMoveTwiceIsStable(t *testing.T) {
	_, s := twoBatchSchedule(t)
	move := Move{SessionID: "B1:S1:1", Day: 3, Period: 2, RoomID: "A-101"}

	once, err := s.Apply(move, "alt-2", editNow)
	require.NoError(t, err)
	twice, err := once.Apply(move, "alt-3", editNow)
	require.NoError(t, err)

	assert.Equal(t, once.Alternative().Assignment, twice.Alternative().Assignment)
	assert.Equal(t, once.Alternative().Score, twice.Alternative().Score)
	assert.Equal(t, once.Alternative().Conflicts, twice.Alternative().Conflicts)
}

func TestApplyIncrementalSoftMatchesFullEvaluation(t *testing.T) {
	p := mustProblem(t, departmentSnapshot())
	res, err := Search(context.Background(), p, Options{Seed: 3})
	require.NoError(t, err)
	alt := NewCandidate(p, 3, res.Assignment).Alternative(p, "alt-root", 0, editNow)
	s, err := NewSchedule(p, alt)
	require.NoError(t, err)

	// try every free slot for one theory session and compare with a full re-evaluation
	applied := 0
	for day := 1; day <= 5; day++ {
		for period := 1; period <= 6; period++ {
			for _, room := range []models.RoomID{"C1", "C2"} {
				next, err := s.Apply(Move{SessionID: "B1:ALG:1", Day: day, Period: period, RoomID: room}, "alt-x", editNow)
				if err != nil {
					require.True(t, errors.Is(err, appErrors.ErrConflictOnEdit))
					continue
				}
				applied++
				full := Evaluate(p, next.Alternative().Assignment)
				require.Empty(t, full.Hard)
				assert.ElementsMatch(t, full.Soft, next.Alternative().Conflicts)
				score, _ := Score(p, next.Alternative().Assignment, full)
				assert.Equal(t, score, next.Alternative().Score)
			}
		}
	}
	assert.Greater(t, applied, 0)
}

func TestNewScheduleRejectsBrokenAlternative(t *testing.T) {
	p := mustProblem(t, twoBatchSnapshot())

	_, err := NewSchedule(p, &models.Alternative{Assignment: models.Assignment{
		"B1:S1:1": {Day: 1, Period: 1, RoomID: "A-101"},
	}})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidInput))

	_, err = NewSchedule(p, &models.Alternative{Assignment: models.Assignment{
		"B1:S1:1": {Day: 1, Period: 1, RoomID: "A-101"},
		"B2:S2:1": {Day: 1, Period: 1, RoomID: "A-101"},
	}})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidInput))
}
