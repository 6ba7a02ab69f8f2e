package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-engine/internal/models"
)

func weekGrid(periods int) models.Grid {
	return models.Grid{Days: []int{1, 2, 3, 4, 5}, PeriodsPerDay: periods}
}

// singleBatchSnapshot is one faculty member teaching one 2-hour theory subject to one batch.
func singleBatchSnapshot(facultyCap int) Snapshot {
	return Snapshot{
		Grid: weekGrid(6),
		Faculty: []models.Faculty{
			{ID: "F1", Department: "CS", MaxHoursPerWeek: facultyCap, Subjects: []models.SubjectID{"S1"}},
		},
		Rooms: []models.Room{
			{ID: "R1", Capacity: 40, Type: models.RoomTypeClassroom},
		},
		Subjects: []models.Subject{
			{ID: "S1", Type: models.SubjectTypeTheory, HoursPerWeek: 2},
		},
		Batches: []models.Batch{
			{ID: "B1", Department: "CS", Semester: 1, StudentCount: 30, Subjects: []models.BatchSubject{
				{SubjectID: "S1", FacultyID: "F1"},
			}},
		},
	}
}

// departmentSnapshot has three batches sharing faculty, two classrooms and a lab.
func departmentSnapshot() Snapshot {
	batch := func(id models.BatchID) models.Batch {
		return models.Batch{ID: id, Department: "CS", Semester: 3, StudentCount: 35, Subjects: []models.BatchSubject{
			{SubjectID: "ALG", FacultyID: "F1"},
			{SubjectID: "DB", FacultyID: "F2"},
			{SubjectID: "NETLAB", FacultyID: "F3"},
		}}
	}
	return Snapshot{
		Grid: weekGrid(6),
		Faculty: []models.Faculty{
			{ID: "F1", MaxHoursPerWeek: 20, Subjects: []models.SubjectID{"ALG"}},
			{ID: "F2", MaxHoursPerWeek: 20, Subjects: []models.SubjectID{"DB"}},
			{ID: "F3", MaxHoursPerWeek: 20, Subjects: []models.SubjectID{"NETLAB"}},
		},
		Rooms: []models.Room{
			{ID: "C1", Capacity: 40, Type: models.RoomTypeClassroom},
			{ID: "C2", Capacity: 60, Type: models.RoomTypeClassroom},
			{ID: "L1", Capacity: 40, Type: models.RoomTypeLaboratory, Equipment: []string{"network"}},
		},
		Subjects: []models.Subject{
			{ID: "ALG", Type: models.SubjectTypeTheory, HoursPerWeek: 3},
			{ID: "DB", Type: models.SubjectTypeTheory, HoursPerWeek: 2},
			{ID: "NETLAB", Type: models.SubjectTypeLab, HoursPerWeek: 2, Equipment: []string{"network"}},
		},
		Batches: []models.Batch{batch("B1"), batch("B2"), batch("B3")},
	}
}

// twoBatchSnapshot has two independent one-hour sessions and two classrooms.
func twoBatchSnapshot() Snapshot {
	return Snapshot{
		Grid: weekGrid(4),
		Faculty: []models.Faculty{
			{ID: "F1", MaxHoursPerWeek: 10, Subjects: []models.SubjectID{"S1"}},
			{ID: "F2", MaxHoursPerWeek: 10, Subjects: []models.SubjectID{"S2"}},
		},
		Rooms: []models.Room{
			{ID: "A-101", Capacity: 40, Type: models.RoomTypeClassroom},
			{ID: "A-102", Capacity: 40, Type: models.RoomTypeClassroom},
		},
		Subjects: []models.Subject{
			{ID: "S1", Type: models.SubjectTypeTheory, HoursPerWeek: 1},
			{ID: "S2", Type: models.SubjectTypeTheory, HoursPerWeek: 1},
		},
		Batches: []models.Batch{
			{ID: "B1", StudentCount: 30, Subjects: []models.BatchSubject{{SubjectID: "S1", FacultyID: "F1"}}},
			{ID: "B2", StudentCount: 30, Subjects: []models.BatchSubject{{SubjectID: "S2", FacultyID: "F2"}}},
		},
	}
}

func mustProblem(t *testing.T, s Snapshot) *Problem {
	t.Helper()
	p, err := NewProblem(s)
	require.NoError(t, err)
	return p
}

func assertHardValid(t *testing.T, p *Problem, a models.Assignment) {
	t.Helper()
	ev := Evaluate(p, a)
	require.Empty(t, ev.Hard, "unexpected hard violations: %+v", ev.Hard)
	require.Len(t, a, len(p.Sessions()))
}
