package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-engine/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTimetableRepositoryCreateVersioned(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) + 1 FROM timetable_alternatives WHERE fingerprint = ?")).
		WithArgs("fp-1").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(3))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_alternatives")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 3, "Optimal Solution", int64(7), "fp-1", 96.5, string(models.TimetableStatusDraft), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	record := &models.TimetableRecord{
		Name:        "Optimal Solution",
		Seed:        7,
		Fingerprint: "fp-1",
		Score:       96.5,
		Meta:        types.JSONText(`{"sessions":12}`),
	}
	require.NoError(t, repo.CreateVersioned(context.Background(), nil, record))
	assert.Equal(t, 3, record.Version)
	assert.NotEmpty(t, record.ID)
	assert.False(t, record.GeneratedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryCreateVersionedRequiresFingerprint(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()

	err := NewTimetableRepository(db).CreateVersioned(context.Background(), nil, &models.TimetableRecord{Name: "x"})
	assert.Error(t, err)
}

func TestTimetableRepositoryListByFingerprint(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "schedule_id", "version", "name", "seed", "fingerprint", "score", "status", "meta", "generated_at", "created_at", "updated_at"}).
		AddRow("alt-2", nil, 2, "Room Efficient", 3, "fp-1", 90.1, "DRAFT", `{}`, now, now, now).
		AddRow("alt-1", nil, 1, "Optimal Solution", 0, "fp-1", 95.0, "PUBLISHED", `{}`, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_alternatives WHERE 1=1 AND fingerprint = ? ORDER BY created_at DESC, version DESC")).
		WithArgs("fp-1").
		WillReturnRows(rows)

	list, err := repo.ListByFingerprint(context.Background(), "fp-1", "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.TimetableStatusPublished, list[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_placements WHERE alternative_id = ?")).
		WithArgs("alt-1").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_alternatives WHERE id = ?")).
		WithArgs("alt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), nil, "alt-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryDeleteNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_placements WHERE alternative_id = ?")).
		WithArgs("alt-9").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_alternatives WHERE id = ?")).
		WithArgs("alt-9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), nil, "alt-9"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetable_alternatives SET status = ?, updated_at = ? WHERE id = ?")).
		WithArgs(string(models.TimetableStatusPublished), sqlmock.AnyArg(), "alt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), nil, "alt-1", models.TimetableStatusPublished))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryArchivePublished(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetable_alternatives SET status = ?, updated_at = ? WHERE fingerprint = ? AND status = ? AND id <> ?")).
		WithArgs(string(models.TimetableStatusArchived), sqlmock.AnyArg(), "fp-1", string(models.TimetableStatusPublished), "alt-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.ArchivePublished(context.Background(), nil, "fp-1", "alt-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
