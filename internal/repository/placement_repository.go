package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-engine/internal/models"
)

// PlacementRepository manages session placements of stored alternatives.
type PlacementRepository struct {
	db *sqlx.DB
}

// NewPlacementRepository builds repository.
func NewPlacementRepository(db *sqlx.DB) *PlacementRepository {
	return &PlacementRepository{db: db}
}

func (r *PlacementRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// UpsertBatch inserts or updates placements keyed by (alternative, session).
func (r *PlacementRepository) UpsertBatch(ctx context.Context, exec sqlx.ExtContext, placements []models.PlacementRecord) error {
	if len(placements) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO timetable_placements (id, alternative_id, session_id, batch_id, subject_id, faculty_id, day_of_week, period, duration, room_id, created_at)
VALUES (:id, :alternative_id, :session_id, :batch_id, :subject_id, :faculty_id, :day_of_week, :period, :duration, :room_id, :created_at)
ON CONFLICT (alternative_id, session_id) DO UPDATE
SET day_of_week = EXCLUDED.day_of_week,
    period = EXCLUDED.period,
    duration = EXCLUDED.duration,
    room_id = EXCLUDED.room_id`

	for i := range placements {
		placement := &placements[i]
		if placement.ID == "" {
			placement.ID = uuid.NewString()
		}
		if placement.CreatedAt.IsZero() {
			placement.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, placement); err != nil {
			return fmt.Errorf("upsert timetable placement %s: %w", placement.SessionID, err)
		}
	}
	return nil
}

// ListByAlternative returns placements ordered by day and period.
func (r *PlacementRepository) ListByAlternative(ctx context.Context, alternativeID string) ([]models.PlacementRecord, error) {
	query := r.db.Rebind(`SELECT id, alternative_id, session_id, batch_id, subject_id, faculty_id, day_of_week, period, duration, room_id, created_at
FROM timetable_placements WHERE alternative_id = ? ORDER BY day_of_week ASC, period ASC, session_id ASC`)
	var placements []models.PlacementRecord
	if err := r.db.SelectContext(ctx, &placements, query, alternativeID); err != nil {
		return nil, fmt.Errorf("list timetable placements: %w", err)
	}
	return placements, nil
}
