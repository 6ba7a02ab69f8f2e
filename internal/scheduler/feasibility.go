package scheduler

import (
	"fmt"
	"sort"

	"github.com/noah-isme/timetable-engine/internal/models"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

// CheckFeasibility rejects inputs that no search could satisfy, naming the entities at fault.
// It is cheap and runs before any search.
func (p *Problem) CheckFeasibility() error {
	var causes []models.InfeasibilityCause
	gridSize := p.Grid.Size()

	for fi, f := range p.faculty {
		hours := p.facultyHours[fi]
		if hours > f.MaxHoursPerWeek {
			causes = append(causes, models.InfeasibilityCause{
				Kind:     models.ConstraintFacultyWeeklyCap,
				Entity:   models.ScopeFaculty,
				EntityID: string(f.ID),
				Count:    hours - f.MaxHoursPerWeek,
				Message:  fmt.Sprintf("faculty %s needs %d hours but may teach at most %d", f.ID, hours, f.MaxHoursPerWeek),
			})
		}
		if hours > gridSize {
			causes = append(causes, models.InfeasibilityCause{
				Kind:     models.ConstraintNoDoubleBookFaculty,
				Entity:   models.ScopeFaculty,
				EntityID: string(f.ID),
				Count:    hours - gridSize,
				Message:  fmt.Sprintf("faculty %s needs %d periods but the grid has %d", f.ID, hours, gridSize),
			})
		}
	}

	for bi, b := range p.batches {
		hours := 0
		for _, si := range p.batchSessions[bi] {
			hours += p.sessions[si].Duration
		}
		if hours > gridSize {
			causes = append(causes, models.InfeasibilityCause{
				Kind:     models.ConstraintNoDoubleBookBatch,
				Entity:   models.ScopeBatch,
				EntityID: string(b.ID),
				Count:    hours - gridSize,
				Message:  fmt.Sprintf("batch %s needs %d periods but the grid has %d", b.ID, hours, gridSize),
			})
		}
	}

	longest := p.Grid.LongestRun()
	for i := range p.sessions {
		info := &p.sessions[i]
		if len(info.statics) > 0 {
			continue
		}
		causes = append(causes, p.unplaceableCause(info, longest))
	}

	causes = append(causes, p.roomTypeShortages()...)

	if len(causes) == 0 {
		return nil
	}
	return infeasible(&models.InfeasibilityDiagnostic{Causes: causes})
}

func (p *Problem) unplaceableCause(info *sessionInfo, longest int) models.InfeasibilityCause {
	if info.Duration > longest {
		return models.InfeasibilityCause{
			Kind:     models.ConstraintContiguousBlock,
			Entity:   models.ScopeBatch,
			EntityID: string(info.BatchID),
			Message:  fmt.Sprintf("session %s needs %d consecutive periods but the longest run is %d", info.ID, info.Duration, longest),
		}
	}
	want := info.subject.RequiredRoomType()
	typed := false
	for _, room := range p.rooms {
		if !room.Available() || !room.Accepts(want) || !room.HasEquipment(info.subject.Equipment) {
			continue
		}
		typed = true
	}
	if !typed {
		return models.InfeasibilityCause{
			Kind:     models.ConstraintRoomTypeMatches,
			Entity:   models.ScopeBatch,
			EntityID: string(info.BatchID),
			Message:  fmt.Sprintf("no available %s room with the equipment %s needs", want, info.SubjectID),
		}
	}
	return models.InfeasibilityCause{
		Kind:     models.ConstraintRoomCapacityFits,
		Entity:   models.ScopeBatch,
		EntityID: string(info.BatchID),
		Message:  fmt.Sprintf("no %s room seats the %d students of batch %s", want, info.capacity, info.BatchID),
	}
}

// roomTypeShortages compares period demand per room type against total supply.
func (p *Problem) roomTypeShortages() []models.InfeasibilityCause {
	demand := make(map[models.RoomType]int)
	for i := range p.sessions {
		demand[p.sessions[i].subject.RequiredRoomType()] += p.sessions[i].Duration
	}
	types := make([]models.RoomType, 0, len(demand))
	for t := range demand {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	var causes []models.InfeasibilityCause
	for _, t := range types {
		rooms := 0
		for _, room := range p.rooms {
			if room.Available() && room.Accepts(t) {
				rooms++
			}
		}
		supply := rooms * p.Grid.Size()
		if rooms == 0 || demand[t] <= supply {
			continue
		}
		causes = append(causes, models.InfeasibilityCause{
			Kind:     models.ConstraintNoDoubleBookRoom,
			Entity:   models.ScopeRoom,
			EntityID: string(t),
			Count:    demand[t] - supply,
			Message:  fmt.Sprintf("%d %s periods requested but only %d available", demand[t], t, supply),
		})
	}
	return causes
}

func infeasible(diag *models.InfeasibilityDiagnostic) error {
	err := appErrors.Wrap(diag, appErrors.ErrInfeasibleInput.Code, appErrors.ErrInfeasibleInput.Status, diag.Error())
	return appErrors.WithDetails(err, diag)
}
