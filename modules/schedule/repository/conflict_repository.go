package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"tutorbase/core/database"
	"tutorbase/core/logger"
	"tutorbase/modules/schedule/entity"
)

// ResolvedFilter selects which conflicts a listing returns.
type ResolvedFilter string

const (
	FilterUnresolved   ResolvedFilter = "false"
	FilterResolved     ResolvedFilter = "true"
	FilterAllConflicts ResolvedFilter = "all"
)

func (f ResolvedFilter) Valid() bool {
	switch f {
	case FilterUnresolved, FilterResolved, FilterAllConflicts:
		return true
	}
	return false
}

// ConflictRepository handles schedule conflict persistence.
type ConflictRepository struct {
	q database.Queryer
}

func NewConflictRepository(db database.IDatabase) *ConflictRepository {
	return &ConflictRepository{q: db.SQLx()}
}

type ConflictRepositoryInterface interface {
	WithTx(tx *sqlx.Tx) ConflictRepositoryInterface

	Create(ctx context.Context, conflict *entity.ScheduleConflict) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ScheduleConflict, error)
	ListByOrganization(ctx context.Context, organizationID uuid.UUID, filter ResolvedFilter) ([]entity.ScheduleConflict, error)
	ListUnresolvedForEntry(ctx context.Context, entryID uuid.UUID) ([]entity.ScheduleConflict, error)
	DeleteUnresolvedForEntry(ctx context.Context, entryID uuid.UUID) error
	SetResolved(ctx context.Context, id uuid.UUID, resolvedAt *time.Time, resolvedBy *uuid.UUID) error
}

func (r *ConflictRepository) WithTx(tx *sqlx.Tx) ConflictRepositoryInterface {
	return &ConflictRepository{q: tx}
}

const conflictColumns = `
	id, organization_id, schedule_entry_id, conflicting_schedule_entry_id,
	conflict_type, resolved_at, resolved_by_user_id, created_at`

func (r *ConflictRepository) Create(ctx context.Context, conflict *entity.ScheduleConflict) error {
	query := `
		INSERT INTO schedule_conflicts (id, organization_id, schedule_entry_id,
			conflicting_schedule_entry_id, conflict_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := r.q.GetContext(ctx, &conflict.CreatedAt, query,
		conflict.ID, conflict.OrganizationID, conflict.ScheduleEntryID,
		conflict.ConflictingScheduleEntryID, conflict.ConflictType)
	if err != nil {
		logger.Error("ConflictRepository:Create", err)
		return err
	}
	return nil
}

func (r *ConflictRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.ScheduleConflict, error) {
	query := `SELECT ` + conflictColumns + ` FROM schedule_conflicts WHERE id = $1`
	var conflict entity.ScheduleConflict
	err := r.q.GetContext(ctx, &conflict, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.Error("ConflictRepository:GetByID", err)
		return nil, err
	}
	return &conflict, nil
}

// ListByOrganization lists conflicts ordered newest first. The unresolved
// view hides pairs where either side is archived or skipped; resolved_at is
// left untouched so the pair resurfaces if the entry comes back.
func (r *ConflictRepository) ListByOrganization(ctx context.Context, organizationID uuid.UUID, filter ResolvedFilter) ([]entity.ScheduleConflict, error) {
	query := `
		SELECT c.id, c.organization_id, c.schedule_entry_id, c.conflicting_schedule_entry_id,
		       c.conflict_type, c.resolved_at, c.resolved_by_user_id, c.created_at
		FROM schedule_conflicts c
		WHERE c.organization_id = $1`

	switch filter {
	case FilterResolved:
		query += ` AND c.resolved_at IS NOT NULL`
	case FilterAllConflicts:
		// no extra predicate
	default:
		query += ` AND c.resolved_at IS NULL
			AND EXISTS (
				SELECT 1 FROM schedule_entries a
				WHERE a.id = c.schedule_entry_id
				  AND a.archived_at IS NULL AND NOT a.is_skipped)
			AND EXISTS (
				SELECT 1 FROM schedule_entries b
				WHERE b.id = c.conflicting_schedule_entry_id
				  AND b.archived_at IS NULL AND NOT b.is_skipped)`
	}

	query += ` ORDER BY c.created_at DESC`

	var conflicts []entity.ScheduleConflict
	if err := r.q.SelectContext(ctx, &conflicts, query, organizationID); err != nil {
		logger.Error("ConflictRepository:ListByOrganization", err)
		return nil, err
	}
	return conflicts, nil
}

func (r *ConflictRepository) ListUnresolvedForEntry(ctx context.Context, entryID uuid.UUID) ([]entity.ScheduleConflict, error) {
	query := `SELECT ` + conflictColumns + `
		FROM schedule_conflicts
		WHERE resolved_at IS NULL
		  AND (schedule_entry_id = $1 OR conflicting_schedule_entry_id = $1)
		ORDER BY created_at DESC`
	var conflicts []entity.ScheduleConflict
	if err := r.q.SelectContext(ctx, &conflicts, query, entryID); err != nil {
		logger.Error("ConflictRepository:ListUnresolvedForEntry", err)
		return nil, err
	}
	return conflicts, nil
}

// DeleteUnresolvedForEntry clears the unresolved conflicts referencing an
// entry before a mutation re-derives them from current state. Resolved rows
// are history and stay.
func (r *ConflictRepository) DeleteUnresolvedForEntry(ctx context.Context, entryID uuid.UUID) error {
	query := `
		DELETE FROM schedule_conflicts
		WHERE resolved_at IS NULL
		  AND (schedule_entry_id = $1 OR conflicting_schedule_entry_id = $1)
	`
	if _, err := r.q.ExecContext(ctx, query, entryID); err != nil {
		logger.Error("ConflictRepository:DeleteUnresolvedForEntry", err)
		return err
	}
	return nil
}

func (r *ConflictRepository) SetResolved(ctx context.Context, id uuid.UUID, resolvedAt *time.Time, resolvedBy *uuid.UUID) error {
	query := `UPDATE schedule_conflicts SET resolved_at = $2, resolved_by_user_id = $3 WHERE id = $1`
	if _, err := r.q.ExecContext(ctx, query, id, resolvedAt, resolvedBy); err != nil {
		logger.Error("ConflictRepository:SetResolved", err)
		return err
	}
	return nil
}
