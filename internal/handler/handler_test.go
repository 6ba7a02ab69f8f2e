package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/middleware"
	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/service"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

type timetableStub struct {
	generateErr error
	captured    dto.GenerateTimetableRequest
	query       dto.SavedTimetableQuery
	deleted     string
}

func (s *timetableStub) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	s.captured = req
	if s.generateErr != nil {
		return nil, s.generateErr
	}
	return &dto.GenerateTimetableResponse{
		Fingerprint:  "fp-1",
		Sessions:     2,
		Alternatives: []models.Alternative{{ID: "alt-1", Name: models.LabelOptimal, Score: 100}},
		Cached:       true,
	}, nil
}

func (s *timetableStub) Alternative(id string) (*models.Alternative, error) {
	if id != "alt-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "alternative not found or expired")
	}
	return &models.Alternative{ID: id}, nil
}

func (s *timetableStub) Save(ctx context.Context, alternativeID string, req dto.SaveAlternativeRequest) (*models.TimetableRecord, error) {
	return &models.TimetableRecord{ID: "tt-1", Version: 1, Status: models.TimetableStatusDraft}, nil
}

func (s *timetableStub) ListSaved(ctx context.Context, query dto.SavedTimetableQuery) ([]models.TimetableRecord, *models.Pagination, error) {
	s.query = query
	return []models.TimetableRecord{{ID: "tt-1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (s *timetableStub) GetSaved(ctx context.Context, id string) (*dto.SavedTimetableResponse, error) {
	return &dto.SavedTimetableResponse{Timetable: models.TimetableRecord{ID: id}}, nil
}

func (s *timetableStub) DeleteSaved(ctx context.Context, id string) error {
	s.deleted = id
	return nil
}

func (s *timetableStub) Publish(ctx context.Context, id string) (*models.TimetableRecord, error) {
	return &models.TimetableRecord{ID: id, Status: models.TimetableStatusPublished}, nil
}

type exporterStub struct{}

func (exporterStub) Export(ctx context.Context, alternativeID string, query dto.ExportQuery) (*service.ExportResult, error) {
	return &service.ExportResult{Filename: "optimal-solution-alt-1.csv", ContentType: "text/csv; charset=utf-8", Data: []byte("Period,MONDAY\n")}, nil
}

type scheduleStub struct{}

func (scheduleStub) Create(ctx context.Context, req dto.CreateScheduleRequest) (*dto.ScheduleResponse, error) {
	return &dto.ScheduleResponse{ID: "sch-1", History: []string{req.AlternativeID}}, nil
}

func (scheduleStub) Get(ctx context.Context, id string) (*dto.ScheduleResponse, error) {
	return &dto.ScheduleResponse{ID: id}, nil
}

func (scheduleStub) Move(ctx context.Context, scheduleID string, req dto.MoveRequest) (*dto.MoveResponse, error) {
	report := &models.ConflictReport{
		SessionID: models.SessionID(req.SessionID),
		Target:    models.Placement{Day: req.Day, Period: req.Period, RoomID: models.RoomID(req.RoomID)},
		Violations: []models.HardViolation{{
			Kind:     models.ConstraintNoDoubleBookFaculty,
			Sessions: []models.SessionID{models.SessionID(req.SessionID), "B2:ALG:1"},
		}},
	}
	err := appErrors.Wrap(report, appErrors.ErrConflictOnEdit.Code, appErrors.ErrConflictOnEdit.Status, report.Error())
	return nil, appErrors.WithDetails(err, report)
}

type jobsStub struct {
	progress []dto.JobProgress
}

func (s *jobsStub) Submit(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.JobResponse, error) {
	return &dto.JobResponse{ID: "job-1", Status: dto.JobStatusQueued}, nil
}

func (s *jobsStub) Status(id string) (*dto.JobResponse, error) {
	if id != "job-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
	}
	return &dto.JobResponse{ID: id, Status: dto.JobStatusSucceeded}, nil
}

func (s *jobsStub) Subscribe(id string) (<-chan dto.JobProgress, func(), error) {
	if _, err := s.Status(id); err != nil {
		return nil, nil, err
	}
	ch := make(chan dto.JobProgress, len(s.progress))
	for _, p := range s.progress {
		ch <- p
	}
	close(ch)
	return ch, func() {}, nil
}

func (s *jobsStub) Cancel(id string) (*dto.JobResponse, error) {
	return nil, appErrors.Clone(appErrors.ErrConflict, "job already finished")
}

// closeNotifyingRecorder lets gin's Stream run against a recorder.
type closeNotifyingRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *closeNotifyingRecorder) CloseNotify() <-chan bool {
	return r.closed
}

func newTestRouter(h Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.WithResponseMeta())
	Register(r, r.Group("/api/v1"), h)
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestTimetableHandlerGenerate(t *testing.T) {
	stub := &timetableStub{}
	r := newTestRouter(Handlers{Timetables: &TimetableHandler{generator: stub, exporter: exporterStub{}}})

	w := doJSON(r, http.MethodPost, "/api/v1/timetables/generate", `{"grid":{"days":[1],"periodsPerDay":2},"alternatives":2,"seed":7}`)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Equal(t, float64(1), env.Meta["alternatives"])
	assert.Contains(t, string(env.Data), `"fingerprint":"fp-1"`)
	assert.Equal(t, 2, stub.captured.Alternatives)
	assert.Equal(t, int64(7), stub.captured.Seed)
}

func TestTimetableHandlerGenerateErrors(t *testing.T) {
	diag := &models.InfeasibilityDiagnostic{Causes: []models.InfeasibilityCause{{
		Kind: models.ConstraintFacultyWeeklyCap, Entity: models.ScopeFaculty, EntityID: "F1", Message: "faculty F1 needs 2 hours but may teach at most 1",
	}}}
	infeasible := appErrors.WithDetails(appErrors.Wrap(diag, appErrors.ErrInfeasibleInput.Code, appErrors.ErrInfeasibleInput.Status, diag.Error()), diag)

	cases := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{name: "malformed json", body: `{"grid":`, status: http.StatusBadRequest, code: appErrors.ErrValidation.Code},
		{name: "infeasible", body: `{}`, err: infeasible, status: http.StatusUnprocessableEntity, code: appErrors.ErrInfeasibleInput.Code},
		{name: "budget", body: `{}`, err: appErrors.ErrBudgetExceeded, status: http.StatusServiceUnavailable, code: appErrors.ErrBudgetExceeded.Code},
		{name: "cancelled", body: `{}`, err: appErrors.ErrCancelled, status: appErrors.StatusClientClosedRequest, code: appErrors.ErrCancelled.Code},
		{name: "unexpected", body: `{}`, err: errors.New("boom"), status: http.StatusInternalServerError, code: appErrors.ErrInternal.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(Handlers{Timetables: &TimetableHandler{generator: &timetableStub{generateErr: tc.err}}})
			w := doJSON(r, http.MethodPost, "/api/v1/timetables/generate", tc.body)
			require.Equal(t, tc.status, w.Code)
			env := decode(t, w)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestTimetableHandlerInfeasibleDetails(t *testing.T) {
	diag := &models.InfeasibilityDiagnostic{Causes: []models.InfeasibilityCause{{Kind: models.ConstraintFacultyWeeklyCap, EntityID: "F1"}}}
	err := appErrors.WithDetails(appErrors.Wrap(diag, appErrors.ErrInfeasibleInput.Code, appErrors.ErrInfeasibleInput.Status, diag.Error()), diag)
	r := newTestRouter(Handlers{Timetables: &TimetableHandler{generator: &timetableStub{generateErr: err}}})

	w := doJSON(r, http.MethodPost, "/api/v1/timetables/generate", `{}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"entityId":"F1"`)
	assert.Contains(t, w.Body.String(), `"kind":"FACULTY_WEEKLY_CAP"`)
}

func TestTimetableHandlerAlternativesAndSaved(t *testing.T) {
	stub := &timetableStub{}
	r := newTestRouter(Handlers{Timetables: &TimetableHandler{generator: stub, exporter: exporterStub{}}})

	w := doJSON(r, http.MethodGet, "/api/v1/timetables/alternatives/alt-1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/timetables/alternatives/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/timetables/alternatives/alt-1/export?format=csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="optimal-solution-alt-1.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Period,MONDAY\n", w.Body.String())

	w = doJSON(r, http.MethodPost, "/api/v1/timetables/alternatives/alt-1/save", "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"tt-1"`)

	w = doJSON(r, http.MethodGet, "/api/v1/timetables/saved?fingerprint=fp-1&status=DRAFT&page=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)
	assert.Equal(t, dto.SavedTimetableQuery{Fingerprint: "fp-1", Status: "DRAFT", Page: 1}, stub.query)

	w = doJSON(r, http.MethodGet, "/api/v1/timetables/saved/tt-1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/timetables/saved/tt-1/publish", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"PUBLISHED"`)

	w = doJSON(r, http.MethodDelete, "/api/v1/timetables/saved/tt-1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "tt-1", stub.deleted)
}

func TestScheduleHandler(t *testing.T) {
	r := newTestRouter(Handlers{Schedules: &ScheduleHandler{service: scheduleStub{}}})

	w := doJSON(r, http.MethodPost, "/api/v1/timetables/schedules", `{"alternativeId":"alt-1"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"sch-1"`)

	w = doJSON(r, http.MethodGet, "/api/v1/timetables/schedules/sch-1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/timetables/schedules/sch-1/moves", `{"sessionId":"B1:ALG:1","day":1,"period":2,"roomId":"C1"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	env := decode(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrConflictOnEdit.Code, env.Error.Code)
	assert.Contains(t, w.Body.String(), `"B2:ALG:1"`)
	assert.Contains(t, w.Body.String(), `"NO_DOUBLE_BOOK_FACULTY"`)

	w = doJSON(r, http.MethodPost, "/api/v1/timetables/schedules/sch-1/moves", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobHandler(t *testing.T) {
	stub := &jobsStub{progress: []dto.JobProgress{{Assigned: 3, Total: 6, Best: 3}, {Assigned: 6, Total: 6, Best: 6, Runs: 1}}}
	r := newTestRouter(Handlers{Jobs: &JobHandler{jobs: stub}})

	w := doJSON(r, http.MethodPost, "/api/v1/timetables/jobs", `{}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "/api/v1/timetables/jobs/job-1", w.Header().Get("Location"))

	w = doJSON(r, http.MethodGet, "/api/v1/timetables/jobs/job-1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodDelete, "/api/v1/timetables/jobs/job-1", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	stream := &closeNotifyingRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
	r.ServeHTTP(stream, httptest.NewRequest(http.MethodGet, "/api/v1/timetables/jobs/job-1/events", nil))
	body := stream.Body.String()
	assert.Equal(t, "text/event-stream", stream.Header().Get("Content-Type"))
	assert.Equal(t, 2, strings.Count(body, "event:progress"))
	assert.Contains(t, body, "event:succeeded")
	assert.Less(t, strings.LastIndex(body, "event:progress"), strings.Index(body, "event:succeeded"))

	w = doJSON(r, http.MethodGet, "/api/v1/timetables/jobs/missing/events", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsHandler(t *testing.T) {
	metrics := service.NewMetricsService()
	healthy := NewMetricsHandler(metrics, map[string]ReadinessCheck{
		"database": func(ctx context.Context) error { return nil },
	})
	r := newTestRouter(Handlers{Metrics: healthy})

	w := doJSON(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"goroutines"`)

	w = doJSON(r, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)

	failing := NewMetricsHandler(metrics, map[string]ReadinessCheck{
		"database": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	})
	r = newTestRouter(Handlers{Metrics: failing})
	w = doJSON(r, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"connection refused"`)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)
}
