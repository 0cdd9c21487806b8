package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tutorbase/core/errors"
	"tutorbase/core/logger"
	"tutorbase/modules/schedule/dto"
	"tutorbase/modules/schedule/repository"
)

// ConflictCache caches the unresolved-conflict listing per organization.
// A nil cache disables caching.
type ConflictCache interface {
	Get(ctx context.Context, organizationID uuid.UUID) ([]dto.ConflictResponse, bool)
	Set(ctx context.Context, organizationID uuid.UUID, conflicts []dto.ConflictResponse)
	Invalidate(ctx context.Context, organizationID uuid.UUID)
}

// ConflictService serves the conflict log: listing and resolution
// toggling. Detection itself lives with the schedule service; this side
// only reads and flips rows.
type ConflictService struct {
	repo  repository.ConflictRepositoryInterface
	cache ConflictCache
	now   func() time.Time
}

type ConflictServiceInterface interface {
	List(ctx context.Context, organizationID uuid.UUID, resolved repository.ResolvedFilter) ([]dto.ConflictResponse, *errors.AppError)
	ToggleResolved(ctx context.Context, organizationID, conflictID, userID uuid.UUID) (*dto.ConflictResponse, *errors.AppError)
}

func NewConflictService(repo repository.ConflictRepositoryInterface, cache ConflictCache) ConflictServiceInterface {
	return &ConflictService{repo: repo, cache: cache, now: time.Now}
}

func (s *ConflictService) List(ctx context.Context, organizationID uuid.UUID, resolved repository.ResolvedFilter) ([]dto.ConflictResponse, *errors.AppError) {
	if resolved == "" {
		resolved = repository.FilterUnresolved
	}
	if !resolved.Valid() {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "resolved must be one of false, true, all", nil)
	}

	// Only the default unresolved view is cached; it is the one the
	// dashboard polls.
	cacheable := resolved == repository.FilterUnresolved && s.cache != nil
	if cacheable {
		if cached, ok := s.cache.Get(ctx, organizationID); ok {
			return cached, nil
		}
	}

	rows, err := s.repo.ListByOrganization(ctx, organizationID, resolved)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to list conflicts", err)
	}

	out := make([]dto.ConflictResponse, 0, len(rows))
	for i := range rows {
		out = append(out, *dto.ToConflictResponse(&rows[i]))
	}
	if cacheable {
		s.cache.Set(ctx, organizationID, out)
	}
	return out, nil
}

// ToggleResolved flips a conflict between resolved and unresolved. A
// resolved conflict keeps its row; the listing filters decide visibility.
func (s *ConflictService) ToggleResolved(ctx context.Context, organizationID, conflictID, userID uuid.UUID) (*dto.ConflictResponse, *errors.AppError) {
	row, err := s.repo.GetByID(ctx, conflictID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load conflict", err)
	}
	if row == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Conflict not found", nil)
	}
	if row.OrganizationID != organizationID {
		return nil, errors.NewAppError(errors.ErrForbidden, "Conflict belongs to a different organization", nil)
	}

	if row.ResolvedAt == nil {
		resolvedAt := s.now().UTC()
		if err := s.repo.SetResolved(ctx, conflictID, &resolvedAt, &userID); err != nil {
			return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to resolve conflict", err)
		}
		row.ResolvedAt = &resolvedAt
		row.ResolvedByUserID = &userID
	} else {
		if err := s.repo.SetResolved(ctx, conflictID, nil, nil); err != nil {
			return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to reopen conflict", err)
		}
		row.ResolvedAt = nil
		row.ResolvedByUserID = nil
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, organizationID)
	}
	logger.Info("ConflictService:ToggleResolved", "conflict_id", conflictID, "resolved", row.ResolvedAt != nil)
	return dto.ToConflictResponse(row), nil
}
