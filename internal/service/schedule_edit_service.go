package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

// scheduleEntry is one editable timetable. mu serialises moves on it.
type scheduleEntry struct {
	mu        sync.Mutex
	id        string
	head      *scheduler.Schedule
	history   []string
	createdAt time.Time
	updatedAt time.Time
}

// ScheduleEditService applies interactive moves to adopted alternatives. Moves on
// the same schedule are applied one at a time; different schedules are independent.
type ScheduleEditService struct {
	alternatives *TimetableGeneratorService
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time

	mu        sync.RWMutex
	schedules map[string]*scheduleEntry
}

// NewScheduleEditService constructs the edit service.
func NewScheduleEditService(alternatives *TimetableGeneratorService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ScheduleEditService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleEditService{
		alternatives: alternatives,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
		schedules:    make(map[string]*scheduleEntry),
	}
}

// Create adopts a generated alternative as the head of a new editable schedule.
func (s *ScheduleEditService) Create(ctx context.Context, req dto.CreateScheduleRequest) (*dto.ScheduleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	item, err := s.alternatives.lookup(req.AlternativeID)
	if err != nil {
		return nil, err
	}
	head, err := scheduler.NewSchedule(item.problem, item.alt)
	if err != nil {
		return nil, err
	}
	now := s.now()
	entry := &scheduleEntry{
		id:        uuid.NewString(),
		head:      head,
		history:   []string{item.alt.ID},
		createdAt: now,
		updatedAt: now,
	}
	s.mu.Lock()
	s.schedules[entry.id] = entry
	s.mu.Unlock()

	s.logger.Info("schedule created", zap.String("schedule_id", entry.id), zap.String("alternative_id", item.alt.ID))
	return entry.response(), nil
}

// Get returns the current head and history of a schedule.
func (s *ScheduleEditService) Get(ctx context.Context, id string) (*dto.ScheduleResponse, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	s.alternatives.touch(entry.head.Alternative().ID)
	return entry.response(), nil
}

// Move validates a proposed relocation. Accepted moves create a new alternative that
// becomes the schedule head unless DryRun is set. Rejected moves return CONFLICT_ON_EDIT
// with a ConflictReport and leave the schedule untouched.
func (s *ScheduleEditService) Move(ctx context.Context, scheduleID string, req dto.MoveRequest) (*dto.MoveResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		s.metrics.ObserveEdit("invalid")
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid move payload")
	}
	entry, err := s.entry(scheduleID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrCancelled.Code, appErrors.ErrCancelled.Status, "move cancelled")
	}

	move := scheduler.Move{
		SessionID: models.SessionID(req.SessionID),
		Day:       req.Day,
		Period:    req.Period,
		RoomID:    models.RoomID(req.RoomID),
	}
	current := entry.head.Alternative()
	next, err := entry.head.Apply(move, uuid.NewString(), s.now())
	if err != nil {
		s.rejected(scheduleID, move, err)
		return nil, err
	}

	alt := next.Alternative()
	resp := &dto.MoveResponse{
		ScheduleID:  scheduleID,
		Applied:     !req.DryRun,
		Alternative: alt,
		Warnings:    alt.Conflicts,
		ScoreDelta:  math.Round((alt.Score-current.Score)*100) / 100,
	}
	if req.DryRun {
		s.metrics.ObserveEdit("dry_run")
		return resp, nil
	}

	entry.head = next
	entry.history = append(entry.history, alt.ID)
	entry.updatedAt = alt.GeneratedAt
	s.alternatives.remember(alt, next.Problem())
	s.metrics.ObserveEdit("applied")
	s.logger.Info("schedule move applied",
		zap.String("schedule_id", scheduleID),
		zap.String("session_id", req.SessionID),
		zap.String("alternative_id", alt.ID),
		zap.Float64("score", alt.Score))
	return resp, nil
}

func (s *ScheduleEditService) rejected(scheduleID string, move scheduler.Move, err error) {
	var report *models.ConflictReport
	if !errors.As(err, &report) {
		s.metrics.ObserveEdit("invalid")
		s.logger.Info("schedule move invalid", zap.String("schedule_id", scheduleID), zap.Error(err))
		return
	}
	kinds := make([]string, 0, len(report.Violations))
	for _, k := range report.Kinds() {
		kinds = append(kinds, string(k))
	}
	colliding := make([]string, 0)
	for _, id := range report.CollidingSessions() {
		colliding = append(colliding, string(id))
	}
	s.metrics.ObserveEdit("conflict")
	s.logger.Info("schedule move rejected",
		zap.String("schedule_id", scheduleID),
		zap.String("session_id", string(move.SessionID)),
		zap.Strings("kinds", kinds),
		zap.Strings("colliding", colliding))
}

func (s *ScheduleEditService) entry(id string) (*scheduleEntry, error) {
	s.mu.RLock()
	entry, ok := s.schedules[id]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
	}
	return entry, nil
}

func (e *scheduleEntry) response() *dto.ScheduleResponse {
	history := make([]string, len(e.history))
	copy(history, e.history)
	return &dto.ScheduleResponse{
		ID:        e.id,
		Head:      e.head.Alternative(),
		History:   history,
		CreatedAt: e.createdAt,
		UpdatedAt: e.updatedAt,
	}
}
