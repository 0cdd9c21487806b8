package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"tutorbase/core/database"
	"tutorbase/core/logger"
	"tutorbase/modules/org/entity"
)

// OrgRepository reads the collaborator tables the scheduler validates
// against (locations, rooms, tutors, students).
type OrgRepository struct {
	q database.Queryer
}

func NewOrgRepository(db database.IDatabase) *OrgRepository {
	return &OrgRepository{q: db.SQLx()}
}

type OrgRepositoryInterface interface {
	CreateLocation(ctx context.Context, location *entity.Location) error
	GetLocationByID(ctx context.Context, id uuid.UUID) (*entity.Location, error)
	ListLocationsByOrganization(ctx context.Context, organizationID uuid.UUID) ([]entity.Location, error)
	PresentTutorIDs(ctx context.Context, organizationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
	PresentStudentIDs(ctx context.Context, organizationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
	PresentRoomIDs(ctx context.Context, locationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
}

func (r *OrgRepository) CreateLocation(ctx context.Context, location *entity.Location) error {
	query := `
		INSERT INTO locations (id, organization_id, name, slug, is_virtual, virtual_capacity)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.q.GetContext(ctx, location, query,
		location.ID, location.OrganizationID, location.Name, location.Slug,
		location.IsVirtual, location.VirtualCapacity)
	if err != nil {
		logger.Error("OrgRepository:CreateLocation", err)
		return err
	}
	return nil
}

func (r *OrgRepository) GetLocationByID(ctx context.Context, id uuid.UUID) (*entity.Location, error) {
	query := `
		SELECT id, organization_id, name, slug, is_virtual, virtual_capacity, created_at, updated_at
		FROM locations WHERE id = $1
	`
	var location entity.Location
	err := r.q.GetContext(ctx, &location, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.Error("OrgRepository:GetLocationByID", err)
		return nil, err
	}
	return &location, nil
}

func (r *OrgRepository) ListLocationsByOrganization(ctx context.Context, organizationID uuid.UUID) ([]entity.Location, error) {
	query := `
		SELECT id, organization_id, name, slug, is_virtual, virtual_capacity, created_at, updated_at
		FROM locations
		WHERE organization_id = $1
		ORDER BY name
	`
	var locations []entity.Location
	err := r.q.SelectContext(ctx, &locations, query, organizationID)
	if err != nil {
		logger.Error("OrgRepository:ListLocationsByOrganization", err)
		return nil, err
	}
	return locations, nil
}

func (r *OrgRepository) PresentTutorIDs(ctx context.Context, organizationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	return r.presentIDs(ctx,
		`SELECT id FROM tutors WHERE organization_id = $1 AND id = ANY($2::uuid[])`,
		organizationID, ids)
}

func (r *OrgRepository) PresentStudentIDs(ctx context.Context, organizationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	return r.presentIDs(ctx,
		`SELECT id FROM students WHERE organization_id = $1 AND id = ANY($2::uuid[])`,
		organizationID, ids)
}

func (r *OrgRepository) PresentRoomIDs(ctx context.Context, locationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	return r.presentIDs(ctx,
		`SELECT id FROM rooms WHERE location_id = $1 AND id = ANY($2::uuid[])`,
		locationID, ids)
}

func (r *OrgRepository) presentIDs(ctx context.Context, query string, scopeID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var present []uuid.UUID
	err := r.q.SelectContext(ctx, &present, query, scopeID, pq.Array(uuidStrings(ids)))
	if err != nil {
		logger.Error("OrgRepository:presentIDs", err)
		return nil, err
	}
	return present, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
