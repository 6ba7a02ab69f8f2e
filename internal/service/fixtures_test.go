package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/models"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

func weekGrid(periods int) models.Grid {
	return models.Grid{Days: []int{1, 2, 3, 4, 5}, PeriodsPerDay: periods}
}

// singleBatchRequest is one faculty member teaching a two-hour theory subject to one batch.
func singleBatchRequest() dto.GenerateTimetableRequest {
	return dto.GenerateTimetableRequest{
		Grid: weekGrid(6),
		Faculty: []models.Faculty{
			{ID: "F1", Department: "CS", MaxHoursPerWeek: 10, Subjects: []models.SubjectID{"S1"}},
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
		Alternatives: 3,
	}
}

// departmentRequest has three batches sharing faculty, two classrooms and a lab.
func departmentRequest() dto.GenerateTimetableRequest {
	batch := func(id models.BatchID) models.Batch {
		return models.Batch{ID: id, Department: "CS", Semester: 3, StudentCount: 35, Subjects: []models.BatchSubject{
			{SubjectID: "ALG", FacultyID: "F1"},
			{SubjectID: "DB", FacultyID: "F2"},
			{SubjectID: "NETLAB", FacultyID: "F3"},
		}}
	}
	return dto.GenerateTimetableRequest{
		Grid: models.Grid{
			Days:          []int{1, 2, 3, 4, 5},
			PeriodsPerDay: 6,
			Periods: []models.PeriodTime{
				{Start: "08:00", End: "08:45"}, {Start: "08:45", End: "09:30"}, {Start: "09:45", End: "10:30"},
				{Start: "10:30", End: "11:15"}, {Start: "12:00", End: "12:45"}, {Start: "12:45", End: "13:30"},
			},
			Breaks: []int{4},
		},
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
		Batches:      []models.Batch{batch("B1"), batch("B2"), batch("B3")},
		Alternatives: 3,
	}
}

// memoryCache is a CacheRepository backed by a map of JSON payloads.
type memoryCache struct {
	mu            sync.Mutex
	items         map[string][]byte
	sets          int
	invalidations int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[string][]byte)}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = raw
	m.sets++
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			delete(m.items, key)
		}
	}
	m.invalidations++
	return nil
}

type timetableRepoStub struct {
	created   []*models.TimetableRecord
	records   map[string]*models.TimetableRecord
	archived  int
	deleted   []string
	createErr error
}

func newTimetableRepoStub() *timetableRepoStub {
	return &timetableRepoStub{records: make(map[string]*models.TimetableRecord)}
}

func (s *timetableRepoStub) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, record *models.TimetableRecord) error {
	if s.createErr != nil {
		return s.createErr
	}
	record.ID = "tt-" + record.Fingerprint[:6]
	record.Version = len(s.created) + 1
	s.created = append(s.created, record)
	s.records[record.ID] = record
	return nil
}

func (s *timetableRepoStub) ListByFingerprint(ctx context.Context, fingerprint string, status models.TimetableStatus) ([]models.TimetableRecord, error) {
	var out []models.TimetableRecord
	for _, r := range s.created {
		if (fingerprint == "" || r.Fingerprint == fingerprint) && (status == "" || r.Status == status) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *timetableRepoStub) FindByID(ctx context.Context, id string) (*models.TimetableRecord, error) {
	r, ok := s.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return r, nil
}

func (s *timetableRepoStub) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, ok := s.records[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.records, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *timetableRepoStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus) error {
	r, ok := s.records[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.Status = status
	return nil
}

func (s *timetableRepoStub) ArchivePublished(ctx context.Context, exec sqlx.ExtContext, fingerprint, keepID string) (int64, error) {
	s.archived++
	return 0, nil
}

type placementRepoStub struct {
	placements []models.PlacementRecord
}

func (s *placementRepoStub) UpsertBatch(ctx context.Context, exec sqlx.ExtContext, placements []models.PlacementRecord) error {
	s.placements = append(s.placements, placements...)
	return nil
}

func (s *placementRepoStub) ListByAlternative(ctx context.Context, alternativeID string) ([]models.PlacementRecord, error) {
	var out []models.PlacementRecord
	for _, p := range s.placements {
		if p.AlternativeID == alternativeID {
			out = append(out, p)
		}
	}
	return out, nil
}

func newTxProviderMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

type generatorFixture struct {
	service    *TimetableGeneratorService
	cache      *memoryCache
	timetables *timetableRepoStub
	placements *placementRepoStub
	mock       sqlmock.Sqlmock
}

func newGeneratorFixture(t *testing.T) generatorFixture {
	t.Helper()
	db, mock := newTxProviderMock(t)
	cache := newMemoryCache()
	metrics := NewMetricsService()
	timetables := newTimetableRepoStub()
	placements := &placementRepoStub{}
	svc := NewTimetableGeneratorService(
		timetables,
		placements,
		db,
		NewCacheService(cache, metrics, time.Minute, zap.NewNop(), true),
		metrics,
		nil,
		zap.NewNop(),
		TimetableGeneratorConfig{
			DefaultAlternatives: 3,
			MaxAlternatives:     5,
			RunsPerAlternative:  2,
			Workers:             2,
			RunTimeout:          5 * time.Second,
			MaxIterations:       50000,
		},
	)
	return generatorFixture{service: svc, cache: cache, timetables: timetables, placements: placements, mock: mock}
}
