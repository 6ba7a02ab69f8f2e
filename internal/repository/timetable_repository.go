package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/timetable-engine/internal/models"
)

const timetableColumns = `id, schedule_id, version, name, seed, fingerprint, score, status, meta, generated_at, created_at, updated_at`

// TimetableRepository persists versioned timetable alternatives.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts an alternative assigning the next version for its input fingerprint.
func (r *TimetableRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, record *models.TimetableRecord) error {
	if record == nil {
		return fmt.Errorf("timetable payload is nil")
	}
	if record.Fingerprint == "" {
		return fmt.Errorf("fingerprint is required")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Status == "" {
		record.Status = models.TimetableStatusDraft
	}
	if len(record.Meta) == 0 {
		record.Meta = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.GeneratedAt.IsZero() {
		record.GeneratedAt = now
	}
	record.UpdatedAt = now

	target := r.exec(exec)

	nextVersionQuery := target.Rebind(`SELECT COALESCE(MAX(version), 0) + 1 FROM timetable_alternatives WHERE fingerprint = ?`)
	if err := sqlx.GetContext(ctx, target, &record.Version, nextVersionQuery, record.Fingerprint); err != nil {
		return fmt.Errorf("compute next timetable version: %w", err)
	}

	const insertQuery = `
INSERT INTO timetable_alternatives (id, schedule_id, version, name, seed, fingerprint, score, status, meta, generated_at, created_at, updated_at)
VALUES (:id, :schedule_id, :version, :name, :seed, :fingerprint, :score, :status, :meta, :generated_at, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, record); err != nil {
		return fmt.Errorf("insert timetable alternative: %w", err)
	}
	return nil
}

// ListByFingerprint returns stored versions, newest first. An empty fingerprint lists everything.
func (r *TimetableRepository) ListByFingerprint(ctx context.Context, fingerprint string, status models.TimetableStatus) ([]models.TimetableRecord, error) {
	query := `SELECT ` + timetableColumns + ` FROM timetable_alternatives WHERE 1=1`
	var args []interface{}
	if fingerprint != "" {
		query += ` AND fingerprint = ?`
		args = append(args, fingerprint)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, version DESC`

	var records []models.TimetableRecord
	if err := r.db.SelectContext(ctx, &records, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list timetable alternatives: %w", err)
	}
	return records, nil
}

// FindByID loads a stored alternative by its identifier.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.TimetableRecord, error) {
	query := r.db.Rebind(`SELECT ` + timetableColumns + ` FROM timetable_alternatives WHERE id = ?`)
	var record models.TimetableRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// Delete removes a stored alternative. Placements go with it.
func (r *TimetableRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, target.Rebind(`DELETE FROM timetable_placements WHERE alternative_id = ?`), id); err != nil {
		return fmt.Errorf("delete timetable placements: %w", err)
	}
	result, err := target.ExecContext(ctx, target.Rebind(`DELETE FROM timetable_alternatives WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete timetable alternative: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable alternative rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus moves a stored alternative through its lifecycle.
func (r *TimetableRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus) error {
	target := r.exec(exec)
	query := target.Rebind(`UPDATE timetable_alternatives SET status = ?, updated_at = ? WHERE id = ?`)
	result, err := target.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update timetable status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ArchivePublished archives every published version sharing the fingerprint except keepID.
func (r *TimetableRepository) ArchivePublished(ctx context.Context, exec sqlx.ExtContext, fingerprint, keepID string) (int64, error) {
	target := r.exec(exec)
	query := target.Rebind(`UPDATE timetable_alternatives SET status = ?, updated_at = ? WHERE fingerprint = ? AND status = ? AND id <> ?`)
	result, err := target.ExecContext(ctx, query, models.TimetableStatusArchived, time.Now().UTC(), fingerprint, models.TimetableStatusPublished, keepID)
	if err != nil {
		return 0, fmt.Errorf("archive published timetables: %w", err)
	}
	return result.RowsAffected()
}
