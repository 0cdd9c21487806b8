package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"tutorbase/core/database"
	"tutorbase/core/logger"
)

// SessionSnapshot is the slice of a schedule entry a reminder needs.
type SessionSnapshot struct {
	ID         uuid.UUID  `db:"id"`
	LocationID uuid.UUID  `db:"location_id"`
	StartTime  time.Time  `db:"start_time"`
	IsSkipped  bool       `db:"is_skipped"`
	ArchivedAt *time.Time `db:"archived_at"`
}

// Deliverable reports whether the session should still be announced.
func (s *SessionSnapshot) Deliverable() bool {
	return !s.IsSkipped && s.ArchivedAt == nil
}

// ReminderRepository re-reads entry state at delivery time; an entry may
// have been skipped or archived since its reminder was queued.
type ReminderRepository struct {
	db database.Queryer
}

func NewReminderRepository(db database.Queryer) *ReminderRepository {
	return &ReminderRepository{db: db}
}

func (r *ReminderRepository) GetSessionSnapshot(ctx context.Context, entryID uuid.UUID) (*SessionSnapshot, error) {
	var snap SessionSnapshot
	query := `SELECT id, location_id, start_time, is_skipped, archived_at
		FROM schedule_entries WHERE id = $1`
	if err := r.db.GetContext(ctx, &snap, query, entryID); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.Error("ReminderRepository:GetSessionSnapshot", err)
		return nil, err
	}
	return &snap, nil
}
