package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorbase/core/errors"
	"tutorbase/modules/org/dto"
	"tutorbase/modules/org/entity"
)

type stubOrgRepo struct {
	locations map[uuid.UUID]*entity.Location
	tutors    map[uuid.UUID]bool
	students  map[uuid.UUID]bool
	rooms     map[uuid.UUID]bool
}

func newStubOrgRepo() *stubOrgRepo {
	return &stubOrgRepo{
		locations: make(map[uuid.UUID]*entity.Location),
		tutors:    make(map[uuid.UUID]bool),
		students:  make(map[uuid.UUID]bool),
		rooms:     make(map[uuid.UUID]bool),
	}
}

func (r *stubOrgRepo) CreateLocation(ctx context.Context, location *entity.Location) error {
	cp := *location
	r.locations[location.ID] = &cp
	return nil
}

func (r *stubOrgRepo) GetLocationByID(ctx context.Context, id uuid.UUID) (*entity.Location, error) {
	if l, ok := r.locations[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

func (r *stubOrgRepo) ListLocationsByOrganization(ctx context.Context, organizationID uuid.UUID) ([]entity.Location, error) {
	var out []entity.Location
	for _, l := range r.locations {
		if l.OrganizationID == organizationID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *stubOrgRepo) present(known map[uuid.UUID]bool, ids []uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	for _, id := range ids {
		if known[id] {
			out = append(out, id)
		}
	}
	return out
}

func (r *stubOrgRepo) PresentTutorIDs(ctx context.Context, organizationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	return r.present(r.tutors, ids), nil
}

func (r *stubOrgRepo) PresentStudentIDs(ctx context.Context, organizationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	return r.present(r.students, ids), nil
}

func (r *stubOrgRepo) PresentRoomIDs(ctx context.Context, locationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	return r.present(r.rooms, ids), nil
}

func TestOrgService_CreateLocationSlugged(t *testing.T) {
	repo := newStubOrgRepo()
	svc := NewOrgService(repo)

	resp, appErr := svc.CreateLocation(context.Background(), uuid.New(), &dto.CreateLocationRequest{
		Name: "Westside Learning Center",
	})
	require.Nil(t, appErr)
	assert.Contains(t, resp.Slug, "westside-learning-center-")
	assert.False(t, resp.IsVirtual)
	assert.Len(t, repo.locations, 1)
}

func TestOrgService_CreateLocationVirtualCapacityRules(t *testing.T) {
	svc := NewOrgService(newStubOrgRepo())
	zero := 0
	ten := 10

	_, appErr := svc.CreateLocation(context.Background(), uuid.New(), &dto.CreateLocationRequest{
		Name: "Online", IsVirtual: true, VirtualCapacity: &zero,
	})
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrInvalidInput, appErr.Code)

	_, appErr = svc.CreateLocation(context.Background(), uuid.New(), &dto.CreateLocationRequest{
		Name: "Annex", VirtualCapacity: &ten,
	})
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrInvalidInput, appErr.Code)

	resp, appErr := svc.CreateLocation(context.Background(), uuid.New(), &dto.CreateLocationRequest{
		Name: "Online", IsVirtual: true, VirtualCapacity: &ten,
	})
	require.Nil(t, appErr)
	assert.Equal(t, &ten, resp.VirtualCapacity)
}

func TestOrgService_GetOwnedLocation(t *testing.T) {
	repo := newStubOrgRepo()
	svc := NewOrgService(repo)

	orgID := uuid.New()
	loc := &entity.Location{OrganizationID: orgID, Name: "Main"}
	loc.ID = uuid.New()
	repo.locations[loc.ID] = loc

	got, appErr := svc.GetOwnedLocation(context.Background(), orgID, loc.ID)
	require.Nil(t, appErr)
	assert.Equal(t, loc.ID, got.ID)

	_, appErr = svc.GetOwnedLocation(context.Background(), uuid.New(), loc.ID)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrForbidden, appErr.Code)

	_, appErr = svc.GetOwnedLocation(context.Background(), orgID, uuid.New())
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrNotFound, appErr.Code)
}

func TestOrgService_MissingIDs(t *testing.T) {
	repo := newStubOrgRepo()
	svc := NewOrgService(repo)

	known := uuid.New()
	unknown := uuid.New()
	repo.tutors[known] = true

	missing, err := svc.MissingTutorIDs(context.Background(), uuid.New(), []uuid.UUID{known, unknown})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{unknown}, missing)

	missing, err = svc.MissingTutorIDs(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Empty(t, missing)
}
