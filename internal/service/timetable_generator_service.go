package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

type timetableRepository interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, record *models.TimetableRecord) error
	ListByFingerprint(ctx context.Context, fingerprint string, status models.TimetableStatus) ([]models.TimetableRecord, error)
	FindByID(ctx context.Context, id string) (*models.TimetableRecord, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus) error
	ArchivePublished(ctx context.Context, exec sqlx.ExtContext, fingerprint, keepID string) (int64, error)
}

type placementRepository interface {
	UpsertBatch(ctx context.Context, exec sqlx.ExtContext, placements []models.PlacementRecord) error
	ListByAlternative(ctx context.Context, alternativeID string) ([]models.PlacementRecord, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

const defaultPageSize = 20

// TimetableGeneratorConfig governs generator behaviour.
type TimetableGeneratorConfig struct {
	DefaultAlternatives int
	MaxAlternatives     int
	RunsPerAlternative  int
	Workers             int
	RunTimeout          time.Duration
	MaxIterations       int
	DedupRatio          float64
	ProposalTTL         time.Duration
	CacheTTL            time.Duration
}

// TimetableGeneratorService builds ranked alternatives and persists the chosen ones.
type TimetableGeneratorService struct {
	timetables timetableRepository
	placements placementRepository
	tx         txProvider
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	store      *alternativeStore
	cfg        TimetableGeneratorConfig
	now        func() time.Time
}

// NewTimetableGeneratorService wires generator dependencies. Persistence and cache
// are optional; without them Save reports an internal error and every lookup misses.
func NewTimetableGeneratorService(
	timetables timetableRepository,
	placements placementRepository,
	tx txProvider,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableGeneratorConfig,
) *TimetableGeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultAlternatives <= 0 {
		cfg.DefaultAlternatives = 5
	}
	if cfg.MaxAlternatives < cfg.DefaultAlternatives {
		cfg.MaxAlternatives = cfg.DefaultAlternatives
	}
	if cfg.RunsPerAlternative <= 0 {
		cfg.RunsPerAlternative = 2
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Second
	}
	if cfg.DedupRatio <= 0 {
		cfg.DedupRatio = scheduler.DefaultDiversityRatio
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	now := func() time.Time { return time.Now().UTC() }
	return &TimetableGeneratorService{
		timetables: timetables,
		placements: placements,
		tx:         tx,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		store:      newAlternativeStore(cfg.ProposalTTL, now),
		cfg:        cfg,
		now:        now,
	}
}

// generationHooks let background jobs observe a generation while it runs.
type generationHooks struct {
	progress func(scheduler.Progress)
	onRun    func(scheduler.RunStats)
}

// Generate validates the snapshot, runs seeded searches concurrently and returns
// ranked, mutually distinct alternatives.
func (s *TimetableGeneratorService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	return s.generate(ctx, req, generationHooks{})
}

func (s *TimetableGeneratorService) generate(ctx context.Context, req dto.GenerateTimetableRequest, hooks generationHooks) (resp *dto.GenerateTimetableResponse, err error) {
	start := time.Now()
	defer func() {
		result := "success"
		if err != nil {
			result = appErrors.FromError(err).Code
		}
		s.metrics.ObserveGeneration(result, time.Since(start))
	}()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	alternatives := req.Alternatives
	if alternatives == 0 {
		alternatives = s.cfg.DefaultAlternatives
	}
	if alternatives > s.cfg.MaxAlternatives {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("alternatives must not exceed %d", s.cfg.MaxAlternatives))
	}

	problem, err := scheduler.NewProblem(snapshotFrom(req))
	if err != nil {
		return nil, err
	}

	timeout := s.cfg.RunTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}
	key := Key("generate", problem.Fingerprint(), req.Seed, alternatives, s.cfg.RunsPerAlternative, s.cfg.DedupRatio,
		timeout.Milliseconds(), s.cfg.MaxIterations)
	if !req.NoCache {
		var cached dto.GenerateTimetableResponse
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			for i := range cached.Alternatives {
				s.store.Save(&cached.Alternatives[i], problem)
			}
			cached.Cached = true
			s.logger.Info("timetable generation served from cache",
				zap.String("fingerprint", cached.Fingerprint),
				zap.Int("alternatives", len(cached.Alternatives)))
			return &cached, nil
		}
	}

	opts := scheduler.GenerateOptions{
		Alternatives:   alternatives,
		Runs:           alternatives * s.cfg.RunsPerAlternative,
		BaseSeed:       req.Seed,
		MaxIterations:  s.cfg.MaxIterations,
		Timeout:        timeout,
		Concurrency:    s.cfg.Workers,
		DiversityRatio: s.cfg.DedupRatio,
		Progress:       hooks.progress,
		OnRun: func(stats scheduler.RunStats) {
			s.metrics.ObserveSearchRun(string(stats.Outcome), stats.Iterations)
			s.logger.Debug("search run finished",
				zap.Int64("seed", stats.Seed),
				zap.String("outcome", string(stats.Outcome)),
				zap.Int("iterations", stats.Iterations),
				zap.Int("backtracks", stats.Backtracks),
				zap.Duration("duration", stats.Duration))
			if hooks.onRun != nil {
				hooks.onRun(stats)
			}
		},
	}

	result, err := scheduler.Generate(ctx, problem, opts)
	if err != nil {
		fields := []zap.Field{zap.String("fingerprint", problem.Fingerprint()), zap.Error(err)}
		if result != nil {
			fields = append(fields, zap.Int("runs", len(result.Runs)))
		}
		s.logger.Warn("timetable generation failed", fields...)
		return nil, err
	}

	now := s.now()
	resp = &dto.GenerateTimetableResponse{
		Fingerprint:  problem.Fingerprint(),
		Sessions:     len(problem.Sessions()),
		Alternatives: make([]models.Alternative, 0, len(result.Candidates)),
		Runs:         runSummaries(result.Runs),
		GeneratedAt:  now,
	}
	for rank, cand := range result.Candidates {
		alt := cand.Alternative(problem, uuid.NewString(), rank, now)
		s.store.Save(alt, problem)
		resp.Alternatives = append(resp.Alternatives, *alt)
	}

	s.logger.Info("timetable generated",
		zap.String("fingerprint", resp.Fingerprint),
		zap.Int("sessions", resp.Sessions),
		zap.Int("runs", len(result.Runs)),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("alternatives", len(resp.Alternatives)),
		zap.Duration("elapsed", time.Since(start)))

	if req.NoCache {
		_ = s.cache.Invalidate(ctx, Key("generate", resp.Fingerprint, "*"))
	}
	_ = s.cache.Set(ctx, key, resp, s.cfg.CacheTTL)
	return resp, nil
}

// Alternative returns an in-memory alternative by id.
func (s *TimetableGeneratorService) Alternative(id string) (*models.Alternative, error) {
	item, ok := s.store.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "alternative not found or expired")
	}
	return item.alt, nil
}

func (s *TimetableGeneratorService) lookup(id string) (storedAlternative, error) {
	item, ok := s.store.Get(id)
	if !ok {
		return storedAlternative{}, appErrors.Clone(appErrors.ErrNotFound, "alternative not found or expired")
	}
	return item, nil
}

// touch keeps an alternative alive while an edit session still points at it.
func (s *TimetableGeneratorService) touch(id string) {
	s.store.Touch(id)
}

// remember registers an alternative produced outside Generate, e.g. by an edit.
func (s *TimetableGeneratorService) remember(alt *models.Alternative, problem *scheduler.Problem) {
	s.store.Save(alt, problem)
}

// Save persists an alternative and its placements in one transaction.
func (s *TimetableGeneratorService) Save(ctx context.Context, alternativeID string, req dto.SaveAlternativeRequest) (*models.TimetableRecord, error) {
	item, err := s.lookup(alternativeID)
	if err != nil {
		return nil, err
	}
	if s.tx == nil || s.timetables == nil || s.placements == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "timetable persistence is not configured")
	}
	alt := item.alt

	metaBytes, marshalErr := json.Marshal(map[string]any{
		"alternativeId": alt.ID,
		"parentId":      alt.ParentID,
		"metrics":       alt.Metrics,
		"conflicts":     alt.Conflicts,
		"sessions":      len(alt.Assignment),
	})
	if marshalErr != nil {
		return nil, appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable metadata")
	}

	record := &models.TimetableRecord{
		Name:        alt.Name,
		Seed:        alt.Seed,
		Fingerprint: alt.Fingerprint,
		Score:       alt.Score,
		Status:      models.TimetableStatusDraft,
		Meta:        types.JSONText(metaBytes),
		GeneratedAt: alt.GeneratedAt,
	}
	if req.ScheduleID != "" {
		scheduleID := req.ScheduleID
		record.ScheduleID = &scheduleID
	}
	if req.Publish {
		record.Status = models.TimetableStatusPublished
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.timetables.CreateVersioned(ctx, tx, record); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable")
		return nil, err
	}
	if err = s.placements.UpsertBatch(ctx, tx, placementRecords(record.ID, item.problem, alt)); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable placements")
		return nil, err
	}
	if req.Publish {
		if _, err = s.timetables.ArchivePublished(ctx, tx, record.Fingerprint, record.ID); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive previous timetables")
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable transaction")
		return nil, err
	}

	s.logger.Info("timetable saved",
		zap.String("id", record.ID),
		zap.String("alternative_id", alt.ID),
		zap.Int("version", record.Version),
		zap.String("status", string(record.Status)))
	return record, nil
}

// Publish promotes a stored timetable and archives the previously published
// version for the same inputs.
func (s *TimetableGeneratorService) Publish(ctx context.Context, id string) (record *models.TimetableRecord, err error) {
	if s.tx == nil || s.timetables == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "timetable persistence is not configured")
	}
	record, err = s.findSaved(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status == models.TimetableStatusArchived {
		return nil, appErrors.Clone(appErrors.ErrConflict, "archived timetables cannot be published")
	}
	if record.Status == models.TimetableStatusPublished {
		return record, nil
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = s.timetables.ArchivePublished(ctx, tx, record.Fingerprint, record.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive previous timetables")
	}
	if err = s.timetables.UpdateStatus(ctx, tx, record.ID, models.TimetableStatusPublished); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish timetable")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable transaction")
	}
	record.Status = models.TimetableStatusPublished
	s.logger.Info("timetable published", zap.String("id", record.ID), zap.Int("version", record.Version))
	return record, nil
}

// ListSaved returns one page of stored timetables filtered by fingerprint and status,
// newest first.
func (s *TimetableGeneratorService) ListSaved(ctx context.Context, query dto.SavedTimetableQuery) ([]models.TimetableRecord, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable filter")
	}
	if s.timetables == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrInternal, "timetable persistence is not configured")
	}
	list, err := s.timetables.ListByFingerprint(ctx, query.Fingerprint, models.TimetableStatus(query.Status))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}

	page, size := query.Page, query.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: len(list)}
	from := (page - 1) * size
	if from >= len(list) {
		return []models.TimetableRecord{}, pagination, nil
	}
	to := from + size
	if to > len(list) {
		to = len(list)
	}
	return list[from:to], pagination, nil
}

// GetSaved returns a stored timetable with its placements.
func (s *TimetableGeneratorService) GetSaved(ctx context.Context, id string) (*dto.SavedTimetableResponse, error) {
	if s.timetables == nil || s.placements == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "timetable persistence is not configured")
	}
	record, err := s.findSaved(ctx, id)
	if err != nil {
		return nil, err
	}
	placements, err := s.placements.ListByAlternative(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable placements")
	}
	return &dto.SavedTimetableResponse{Timetable: *record, Placements: placements}, nil
}

// DeleteSaved removes a draft timetable version.
func (s *TimetableGeneratorService) DeleteSaved(ctx context.Context, id string) error {
	if s.timetables == nil {
		return appErrors.Clone(appErrors.ErrInternal, "timetable persistence is not configured")
	}
	record, err := s.findSaved(ctx, id)
	if err != nil {
		return err
	}
	if record.Status != models.TimetableStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft timetables can be deleted")
	}
	if err := s.timetables.Delete(ctx, nil, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
	}
	return nil
}

func (s *TimetableGeneratorService) findSaved(ctx context.Context, id string) (*models.TimetableRecord, error) {
	record, err := s.timetables.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return record, nil
}

func snapshotFrom(req dto.GenerateTimetableRequest) scheduler.Snapshot {
	return scheduler.Snapshot{
		Grid:        req.Grid,
		Faculty:     req.Faculty,
		Rooms:       req.Rooms,
		Subjects:    req.Subjects,
		Batches:     req.Batches,
		Constraints: req.Constraints,
	}
}

func runSummaries(runs []scheduler.RunStats) []dto.RunSummary {
	out := make([]dto.RunSummary, 0, len(runs))
	for _, r := range runs {
		out = append(out, dto.RunSummary{
			Seed:       r.Seed,
			Outcome:    string(r.Outcome),
			Iterations: r.Iterations,
			Backtracks: r.Backtracks,
			BestDepth:  r.BestDepth,
			DurationMs: r.Duration.Milliseconds(),
		})
	}
	return out
}

func placementRecords(timetableID string, problem *scheduler.Problem, alt *models.Alternative) []models.PlacementRecord {
	out := make([]models.PlacementRecord, 0, len(alt.Assignment))
	for _, session := range problem.Sessions() {
		pl, ok := alt.Assignment[session.ID]
		if !ok {
			continue
		}
		out = append(out, models.PlacementRecord{
			AlternativeID: timetableID,
			SessionID:     string(session.ID),
			BatchID:       string(session.BatchID),
			SubjectID:     string(session.SubjectID),
			FacultyID:     string(session.FacultyID),
			DayOfWeek:     pl.Day,
			Period:        pl.Period,
			Duration:      session.Duration,
			RoomID:        string(pl.RoomID),
		})
	}
	return out
}
