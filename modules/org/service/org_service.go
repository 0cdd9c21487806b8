package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"tutorbase/core/errors"
	"tutorbase/core/logger"
	"tutorbase/core/utils"
	"tutorbase/modules/org/dto"
	"tutorbase/modules/org/entity"
	"tutorbase/modules/org/repository"
)

// OrgService owns the organization-scoped lookups the scheduler validates
// against. Ownership checks happen here so the schedule service never
// touches another organization's rows.
type OrgService struct {
	repo repository.OrgRepositoryInterface
}

type OrgServiceInterface interface {
	CreateLocation(ctx context.Context, organizationID uuid.UUID, req *dto.CreateLocationRequest) (*dto.LocationResponse, *errors.AppError)
	ListLocations(ctx context.Context, organizationID uuid.UUID) ([]dto.LocationResponse, *errors.AppError)

	GetOwnedLocation(ctx context.Context, organizationID, locationID uuid.UUID) (*entity.Location, *errors.AppError)
	MissingTutorIDs(ctx context.Context, organizationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
	MissingStudentIDs(ctx context.Context, organizationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
	MissingRoomIDs(ctx context.Context, locationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
}

func NewOrgService(repo repository.OrgRepositoryInterface) OrgServiceInterface {
	return &OrgService{repo: repo}
}

func (s *OrgService) CreateLocation(ctx context.Context, organizationID uuid.UUID, req *dto.CreateLocationRequest) (*dto.LocationResponse, *errors.AppError) {
	if req.IsVirtual && req.VirtualCapacity != nil && *req.VirtualCapacity < 1 {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Virtual capacity must be at least 1", nil)
	}
	if !req.IsVirtual && req.VirtualCapacity != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Only virtual locations carry a virtual capacity", nil)
	}

	location := &entity.Location{
		OrganizationID:  organizationID,
		Name:            req.Name,
		Slug:            slug.Make(req.Name) + "-" + utils.GenerateID(),
		IsVirtual:       req.IsVirtual,
		VirtualCapacity: req.VirtualCapacity,
	}
	location.ID = uuid.New()

	if err := s.repo.CreateLocation(ctx, location); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to create location", err)
	}

	logger.Info("OrgService:CreateLocation", "location_id", location.ID, "organization_id", organizationID)
	return dto.ToLocationResponse(location), nil
}

func (s *OrgService) ListLocations(ctx context.Context, organizationID uuid.UUID) ([]dto.LocationResponse, *errors.AppError) {
	locations, err := s.repo.ListLocationsByOrganization(ctx, organizationID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to list locations", err)
	}

	result := make([]dto.LocationResponse, 0, len(locations))
	for i := range locations {
		result = append(result, *dto.ToLocationResponse(&locations[i]))
	}
	return result, nil
}

// GetOwnedLocation loads a location and enforces that it belongs to the
// caller's organization.
func (s *OrgService) GetOwnedLocation(ctx context.Context, organizationID, locationID uuid.UUID) (*entity.Location, *errors.AppError) {
	location, err := s.repo.GetLocationByID(ctx, locationID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load location", err)
	}
	if location == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Location not found", nil)
	}
	if location.OrganizationID != organizationID {
		return nil, errors.NewAppError(errors.ErrForbidden, "Location belongs to a different organization", nil)
	}
	return location, nil
}

func (s *OrgService) MissingTutorIDs(ctx context.Context, organizationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	present, err := s.repo.PresentTutorIDs(ctx, organizationID, ids)
	if err != nil {
		return nil, err
	}
	return missingFrom(ids, present), nil
}

func (s *OrgService) MissingStudentIDs(ctx context.Context, organizationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	present, err := s.repo.PresentStudentIDs(ctx, organizationID, ids)
	if err != nil {
		return nil, err
	}
	return missingFrom(ids, present), nil
}

func (s *OrgService) MissingRoomIDs(ctx context.Context, locationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	present, err := s.repo.PresentRoomIDs(ctx, locationID, ids)
	if err != nil {
		return nil, err
	}
	return missingFrom(ids, present), nil
}

func missingFrom(wanted, present []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(present))
	for _, id := range present {
		seen[id] = struct{}{}
	}
	var missing []uuid.UUID
	for _, id := range wanted {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
