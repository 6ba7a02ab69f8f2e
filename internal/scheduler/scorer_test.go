package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/timetable-engine/internal/models"
)

func TestScorePerfectSingleBatch(t *testing.T) {
	p := mustProblem(t, singleBatchSnapshot(20))
	a := models.Assignment{
		"B1:S1:1": {Day: 1, Period: 1, RoomID: "R1"},
		"B1:S1:2": {Day: 2, Period: 1, RoomID: "R1"},
	}

	score, m := Score(p, a, Evaluate(p, a))
	assert.Equal(t, 100.0, score)
	assert.Equal(t, 1.0, m.RoomBalance)
	assert.Equal(t, 1.0, m.FacultyBalance)
	assert.Equal(t, 1.0, m.Compactness)
	assert.Equal(t, 0, m.GapCount)
	assert.Equal(t, 6.67, m.RoomUtilization)
}

func TestScoreZeroWithHardViolation(t *testing.T) {
	p := mustProblem(t, twoBatchSnapshot())
	a := models.Assignment{
		"B1:S1:1": {Day: 1, Period: 1, RoomID: "A-101"},
		"B2:S2:1": {Day: 1, Period: 1, RoomID: "A-101"},
	}

	score, _ := Score(p, a, Evaluate(p, a))
	assert.Zero(t, score)
}

func TestScorePenalisesGaps(t *testing.T) {
	p := mustProblem(t, singleBatchSnapshot(20))
	compact := models.Assignment{
		"B1:S1:1": {Day: 1, Period: 1, RoomID: "R1"},
		"B1:S1:2": {Day: 2, Period: 1, RoomID: "R1"},
	}
	gappy := models.Assignment{
		"B1:S1:1": {Day: 1, Period: 1, RoomID: "R1"},
		"B1:S1:2": {Day: 1, Period: 5, RoomID: "R1"},
	}

	good, _ := Score(p, compact, Evaluate(p, compact))
	bad, m := Score(p, gappy, Evaluate(p, gappy))
	assert.Greater(t, good, bad)
	assert.Equal(t, 3, m.GapCount)
	assert.Equal(t, 0.4, m.Compactness)
	assert.True(t, bad > 0 && bad <= 100)
}

func TestRoomBalanceUsesSpreadAcrossRooms(t *testing.T) {
	p := mustProblem(t, twoBatchSnapshot())
	even := models.Assignment{
		"B1:S1:1": {Day: 1, Period: 1, RoomID: "A-101"},
		"B2:S2:1": {Day: 1, Period: 1, RoomID: "A-102"},
	}
	skewed := models.Assignment{
		"B1:S1:1": {Day: 1, Period: 1, RoomID: "A-101"},
		"B2:S2:1": {Day: 1, Period: 2, RoomID: "A-101"},
	}

	_, evenMetrics := Score(p, even, Evaluate(p, even))
	_, skewedMetrics := Score(p, skewed, Evaluate(p, skewed))
	assert.Equal(t, 1.0, evenMetrics.RoomBalance)
	assert.Equal(t, 0.0, skewedMetrics.RoomBalance)
}
