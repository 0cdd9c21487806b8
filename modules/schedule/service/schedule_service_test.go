package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorbase/core/errors"
	orgentity "tutorbase/modules/org/entity"
	"tutorbase/modules/schedule/dto"
	"tutorbase/modules/schedule/entity"
	"tutorbase/modules/schedule/repository"
)

// ===================== stubs =====================

// stubStore is the shared in-memory backing for the stub repositories. The
// stub transaction runner snapshots it before the callback and restores the
// snapshot on error, mirroring rollback.
type stubStore struct {
	series    map[uuid.UUID]*entity.ScheduleSeries
	entries   map[uuid.UUID]*entity.ScheduleEntry
	tutors    map[uuid.UUID][]uuid.UUID
	rooms     map[uuid.UUID][]uuid.UUID
	students  map[uuid.UUID][]uuid.UUID
	conflicts map[uuid.UUID]*entity.ScheduleConflict
}

func newStubStore() *stubStore {
	return &stubStore{
		series:    make(map[uuid.UUID]*entity.ScheduleSeries),
		entries:   make(map[uuid.UUID]*entity.ScheduleEntry),
		tutors:    make(map[uuid.UUID][]uuid.UUID),
		rooms:     make(map[uuid.UUID][]uuid.UUID),
		students:  make(map[uuid.UUID][]uuid.UUID),
		conflicts: make(map[uuid.UUID]*entity.ScheduleConflict),
	}
}

func (s *stubStore) snapshot() *stubStore {
	c := newStubStore()
	for k, v := range s.series {
		cp := *v
		c.series[k] = &cp
	}
	for k, v := range s.entries {
		cp := *v
		c.entries[k] = &cp
	}
	for k, v := range s.tutors {
		c.tutors[k] = append([]uuid.UUID(nil), v...)
	}
	for k, v := range s.rooms {
		c.rooms[k] = append([]uuid.UUID(nil), v...)
	}
	for k, v := range s.students {
		c.students[k] = append([]uuid.UUID(nil), v...)
	}
	for k, v := range s.conflicts {
		cp := *v
		c.conflicts[k] = &cp
	}
	return c
}

func (s *stubStore) restore(from *stubStore) {
	s.series = from.series
	s.entries = from.entries
	s.tutors = from.tutors
	s.rooms = from.rooms
	s.students = from.students
	s.conflicts = from.conflicts
}

type stubTxRunner struct {
	store *stubStore
}

func (r *stubTxRunner) Transact(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	snap := r.store.snapshot()
	if err := fn(nil); err != nil {
		r.store.restore(snap)
		return err
	}
	return nil
}

type stubScheduleRepo struct {
	store *stubStore
}

func (r *stubScheduleRepo) WithTx(tx *sqlx.Tx) repository.ScheduleRepositoryInterface { return r }

func (r *stubScheduleRepo) CreateSeries(ctx context.Context, series *entity.ScheduleSeries) error {
	cp := *series
	r.store.series[series.ID] = &cp
	return nil
}

func (r *stubScheduleRepo) GetSeriesByID(ctx context.Context, id uuid.UUID) (*entity.ScheduleSeries, error) {
	if s, ok := r.store.series[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (r *stubScheduleRepo) CreateEntry(ctx context.Context, entry *entity.ScheduleEntry) error {
	cp := *entry
	cp.TutorIDs, cp.RoomIDs, cp.AttendeeStudentIDs = nil, nil, nil
	r.store.entries[entry.ID] = &cp
	return nil
}

func (r *stubScheduleRepo) GetEntryByID(ctx context.Context, id uuid.UUID) (*entity.ScheduleEntry, error) {
	if e, ok := r.store.entries[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (r *stubScheduleRepo) UpdateEntry(ctx context.Context, entry *entity.ScheduleEntry) error {
	cp := *entry
	cp.TutorIDs, cp.RoomIDs, cp.AttendeeStudentIDs = nil, nil, nil
	r.store.entries[entry.ID] = &cp
	return nil
}

func (r *stubScheduleRepo) SetSkipped(ctx context.Context, id uuid.UUID, skipped bool) error {
	if e, ok := r.store.entries[id]; ok {
		e.IsSkipped = skipped
	}
	return nil
}

func (r *stubScheduleRepo) SetArchived(ctx context.Context, ids []uuid.UUID, archivedAt *time.Time) error {
	for _, id := range ids {
		if e, ok := r.store.entries[id]; ok {
			e.ArchivedAt = archivedAt
		}
	}
	return nil
}

func (r *stubScheduleRepo) ListByLocation(ctx context.Context, locationID uuid.UUID, filter repository.ListEntriesFilter) ([]entity.ScheduleEntry, error) {
	var out []entity.ScheduleEntry
	for _, e := range r.store.entries {
		if e.LocationID != locationID {
			continue
		}
		if filter.SeriesID != nil && (e.SeriesID == nil || *e.SeriesID != *filter.SeriesID) {
			continue
		}
		inactive := e.ArchivedAt != nil || e.IsSkipped
		switch filter.Archived {
		case repository.FilterArchived:
			if !inactive {
				continue
			}
		case repository.FilterAll:
		default:
			if inactive {
				continue
			}
		}
		out = append(out, *e)
	}
	sortEntries(out)
	return out, nil
}

func (r *stubScheduleRepo) ListSeriesEntriesFrom(ctx context.Context, seriesID uuid.UUID, fromDate time.Time) ([]entity.ScheduleEntry, error) {
	var out []entity.ScheduleEntry
	for _, e := range r.store.entries {
		if e.SeriesID == nil || *e.SeriesID != seriesID || e.OccurrenceDate.Before(fromDate) {
			continue
		}
		out = append(out, *e)
	}
	sortEntries(out)
	return out, nil
}

func (r *stubScheduleRepo) ListConflictCandidates(ctx context.Context, locationID uuid.UUID, from, to time.Time) ([]entity.ScheduleEntry, error) {
	var out []entity.ScheduleEntry
	for _, e := range r.store.entries {
		if e.LocationID != locationID || e.ArchivedAt != nil || e.IsSkipped {
			continue
		}
		if e.StartTime.Before(to) && from.Before(e.EndTime) {
			out = append(out, *e)
		}
	}
	sortEntries(out)
	return out, nil
}

func (r *stubScheduleRepo) LoadRelations(ctx context.Context, entries ...*entity.ScheduleEntry) error {
	for _, e := range entries {
		e.TutorIDs = append([]uuid.UUID(nil), r.store.tutors[e.ID]...)
		e.RoomIDs = append([]uuid.UUID(nil), r.store.rooms[e.ID]...)
		e.AttendeeStudentIDs = append([]uuid.UUID(nil), r.store.students[e.ID]...)
	}
	return nil
}

func (r *stubScheduleRepo) ReplaceTutors(ctx context.Context, entryID uuid.UUID, tutorIDs []uuid.UUID) error {
	r.store.tutors[entryID] = append([]uuid.UUID(nil), tutorIDs...)
	return nil
}

func (r *stubScheduleRepo) ReplaceRooms(ctx context.Context, entryID uuid.UUID, roomIDs []uuid.UUID) error {
	r.store.rooms[entryID] = append([]uuid.UUID(nil), roomIDs...)
	return nil
}

func (r *stubScheduleRepo) AddStudents(ctx context.Context, entryID uuid.UUID, studentIDs []uuid.UUID) error {
	current := r.store.students[entryID]
	for _, id := range studentIDs {
		present := false
		for _, c := range current {
			if c == id {
				present = true
				break
			}
		}
		if !present {
			current = append(current, id)
		}
	}
	r.store.students[entryID] = current
	return nil
}

func (r *stubScheduleRepo) RemoveStudents(ctx context.Context, entryID uuid.UUID, studentIDs []uuid.UUID) error {
	current := r.store.students[entryID]
	var kept []uuid.UUID
	for _, c := range current {
		drop := false
		for _, id := range studentIDs {
			if c == id {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, c)
		}
	}
	r.store.students[entryID] = kept
	return nil
}

func sortEntries(entries []entity.ScheduleEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].StartTime.Before(entries[j-1].StartTime); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

type stubConflictRepo struct {
	store *stubStore
}

func (r *stubConflictRepo) WithTx(tx *sqlx.Tx) repository.ConflictRepositoryInterface { return r }

func (r *stubConflictRepo) Create(ctx context.Context, conflict *entity.ScheduleConflict) error {
	cp := *conflict
	r.store.conflicts[conflict.ID] = &cp
	return nil
}

func (r *stubConflictRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.ScheduleConflict, error) {
	if c, ok := r.store.conflicts[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *stubConflictRepo) ListByOrganization(ctx context.Context, organizationID uuid.UUID, filter repository.ResolvedFilter) ([]entity.ScheduleConflict, error) {
	var out []entity.ScheduleConflict
	for _, c := range r.store.conflicts {
		if c.OrganizationID != organizationID {
			continue
		}
		switch filter {
		case repository.FilterResolved:
			if c.ResolvedAt == nil {
				continue
			}
		case repository.FilterAllConflicts:
		default:
			if c.ResolvedAt != nil {
				continue
			}
		}
		out = append(out, *c)
	}
	return out, nil
}

func (r *stubConflictRepo) ListUnresolvedForEntry(ctx context.Context, entryID uuid.UUID) ([]entity.ScheduleConflict, error) {
	var out []entity.ScheduleConflict
	for _, c := range r.store.conflicts {
		if c.ResolvedAt == nil && c.References(entryID) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *stubConflictRepo) DeleteUnresolvedForEntry(ctx context.Context, entryID uuid.UUID) error {
	for id, c := range r.store.conflicts {
		if c.ResolvedAt == nil && c.References(entryID) {
			delete(r.store.conflicts, id)
		}
	}
	return nil
}

func (r *stubConflictRepo) SetResolved(ctx context.Context, id uuid.UUID, resolvedAt *time.Time, resolvedBy *uuid.UUID) error {
	if c, ok := r.store.conflicts[id]; ok {
		c.ResolvedAt = resolvedAt
		c.ResolvedByUserID = resolvedBy
	}
	return nil
}

type stubOrgDirectory struct {
	locations map[uuid.UUID]*orgentity.Location
	unknown   map[uuid.UUID]bool
}

func (d *stubOrgDirectory) GetOwnedLocation(ctx context.Context, organizationID, locationID uuid.UUID) (*orgentity.Location, *errors.AppError) {
	loc, ok := d.locations[locationID]
	if !ok {
		return nil, errors.NewAppError(errors.ErrNotFound, "Location not found", nil)
	}
	if loc.OrganizationID != organizationID {
		return nil, errors.NewAppError(errors.ErrForbidden, "Location belongs to a different organization", nil)
	}
	return loc, nil
}

func (d *stubOrgDirectory) missing(ids []uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	for _, id := range ids {
		if d.unknown[id] {
			out = append(out, id)
		}
	}
	return out
}

func (d *stubOrgDirectory) MissingTutorIDs(ctx context.Context, organizationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	return d.missing(ids), nil
}

func (d *stubOrgDirectory) MissingStudentIDs(ctx context.Context, organizationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	return d.missing(ids), nil
}

func (d *stubOrgDirectory) MissingRoomIDs(ctx context.Context, locationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	return d.missing(ids), nil
}

// ===================== fixture =====================

type serviceFixture struct {
	store *stubStore
	repo  *stubScheduleRepo
	orgs  *stubOrgDirectory
	svc   ScheduleServiceInterface

	orgID      uuid.UUID
	locationID uuid.UUID
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	store := newStubStore()
	repo := &stubScheduleRepo{store: store}
	conflictRepo := &stubConflictRepo{store: store}

	orgID := uuid.New()
	locationID := uuid.New()
	orgs := &stubOrgDirectory{
		locations: map[uuid.UUID]*orgentity.Location{
			locationID: {OrganizationID: orgID, Name: "Main"},
		},
		unknown: make(map[uuid.UUID]bool),
	}
	orgs.locations[locationID].ID = locationID

	svc := NewScheduleService(&stubTxRunner{store: store}, repo, conflictRepo, orgs, nil, nil)

	return &serviceFixture{
		store:      store,
		repo:       repo,
		orgs:       orgs,
		svc:        svc,
		orgID:      orgID,
		locationID: locationID,
	}
}

func (f *serviceFixture) createRequest() *dto.CreateScheduleEntryRequest {
	return &dto.CreateScheduleEntryRequest{
		LocationID:      f.locationID.String(),
		Pattern:         "WEEKLY",
		DayOfWeek:       intPtr(2),
		StartDate:       "2024-01-02",
		SessionTime:     "15:00",
		DurationMinutes: 60,
		BufferMinutes:   15,
		OccurrenceCount: intPtr(3),
		Capacity:        5,
		TutorIDs:        []string{uuid.NewString()},
	}
}

// ===================== tests =====================

func TestScheduleService_CreateWeeklySeries(t *testing.T) {
	f := newServiceFixture(t)

	resp, appErr := f.svc.Create(context.Background(), f.orgID, f.createRequest())
	require.Nil(t, appErr)
	require.Len(t, resp.Entries, 3)
	assert.NotEmpty(t, resp.SeriesID)
	assert.Empty(t, resp.Conflicts)

	assert.Len(t, f.store.entries, 3)
	assert.Len(t, f.store.series, 1)
	for _, e := range resp.Entries {
		assert.Equal(t, resp.SeriesID, e.SeriesID)
		assert.False(t, e.IsException)
	}
}

func TestScheduleService_CreateDetectsConflictsButStillPersists(t *testing.T) {
	f := newServiceFixture(t)

	req := f.createRequest()
	_, appErr := f.svc.Create(context.Background(), f.orgID, req)
	require.Nil(t, appErr)

	// Same tutor, same slots: every occurrence collides, yet the series is
	// created and the collisions land as conflict rows.
	second, appErr := f.svc.Create(context.Background(), f.orgID, req)
	require.Nil(t, appErr)
	require.Len(t, second.Entries, 3)
	require.Len(t, second.Conflicts, 3)
	for _, c := range second.Conflicts {
		assert.Equal(t, string(entity.ConflictTutor), c.ConflictType)
	}

	assert.Len(t, f.store.entries, 6)
	assert.Len(t, f.store.conflicts, 3)
}

func TestScheduleService_CreateAdHocHasNoSeries(t *testing.T) {
	f := newServiceFixture(t)

	req := f.createRequest()
	req.Pattern = "AD_HOC"
	req.DayOfWeek = nil
	req.OccurrenceCount = nil

	resp, appErr := f.svc.Create(context.Background(), f.orgID, req)
	require.Nil(t, appErr)
	require.Len(t, resp.Entries, 1)
	assert.Empty(t, resp.SeriesID)
	assert.Empty(t, resp.Entries[0].SeriesID)
	assert.Empty(t, f.store.series)
}

func TestScheduleService_CreateRejectsOverCapacityAttendees(t *testing.T) {
	f := newServiceFixture(t)

	req := f.createRequest()
	req.Capacity = 2
	req.StudentIDs = []string{uuid.NewString(), uuid.NewString(), uuid.NewString()}

	_, appErr := f.svc.Create(context.Background(), f.orgID, req)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrCapacityExceeded, appErr.Code)
	assert.Empty(t, f.store.entries)
}

func TestScheduleService_CreateRejectsUnknownTutorBeforeWriting(t *testing.T) {
	f := newServiceFixture(t)

	ghost := uuid.New()
	f.orgs.unknown[ghost] = true

	req := f.createRequest()
	req.TutorIDs = []string{ghost.String()}

	_, appErr := f.svc.Create(context.Background(), f.orgID, req)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrNotFound, appErr.Code)
	assert.Empty(t, f.store.entries)
	assert.Empty(t, f.store.series)
}

func TestScheduleService_CreateRejectsRoomsAtVirtualLocation(t *testing.T) {
	f := newServiceFixture(t)

	capacity := 10
	virtualID := uuid.New()
	f.orgs.locations[virtualID] = &orgentity.Location{
		OrganizationID:  f.orgID,
		Name:            "Online",
		IsVirtual:       true,
		VirtualCapacity: &capacity,
	}
	f.orgs.locations[virtualID].ID = virtualID

	req := f.createRequest()
	req.LocationID = virtualID.String()
	req.RoomIDs = []string{uuid.NewString()}

	_, appErr := f.svc.Create(context.Background(), f.orgID, req)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrInvalidInput, appErr.Code)
}

func TestScheduleService_GetByIDEnforcesOwnership(t *testing.T) {
	f := newServiceFixture(t)

	resp, appErr := f.svc.Create(context.Background(), f.orgID, f.createRequest())
	require.Nil(t, appErr)
	id := uuid.MustParse(resp.Entries[0].ID)

	got, appErr := f.svc.GetByID(context.Background(), f.orgID, id)
	require.Nil(t, appErr)
	assert.Equal(t, resp.Entries[0].ID, got.ID)

	_, appErr = f.svc.GetByID(context.Background(), uuid.New(), id)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrForbidden, appErr.Code)

	_, appErr = f.svc.GetByID(context.Background(), f.orgID, uuid.New())
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrNotFound, appErr.Code)
}

func TestScheduleService_SkipOccurrenceIsIdempotent(t *testing.T) {
	f := newServiceFixture(t)

	resp, appErr := f.svc.Create(context.Background(), f.orgID, f.createRequest())
	require.Nil(t, appErr)
	id := uuid.MustParse(resp.Entries[1].ID)

	first, appErr := f.svc.SkipOccurrence(context.Background(), f.orgID, id)
	require.Nil(t, appErr)
	assert.True(t, first.IsSkipped)

	second, appErr := f.svc.SkipOccurrence(context.Background(), f.orgID, id)
	require.Nil(t, appErr)
	assert.True(t, second.IsSkipped)

	// Skipped occurrences drop out of the active listing but stay in the
	// inactive one.
	active, appErr := f.svc.ListByLocation(context.Background(), f.orgID, f.locationID, nil, repository.FilterActive)
	require.Nil(t, appErr)
	assert.Len(t, active, 2)

	inactive, appErr := f.svc.ListByLocation(context.Background(), f.orgID, f.locationID, nil, repository.FilterArchived)
	require.Nil(t, appErr)
	assert.Len(t, inactive, 1)
}

func TestScheduleService_UpdateThisScopeMarksException(t *testing.T) {
	f := newServiceFixture(t)

	resp, appErr := f.svc.Create(context.Background(), f.orgID, f.createRequest())
	require.Nil(t, appErr)
	id := uuid.MustParse(resp.Entries[1].ID)

	newTime := "10:00"
	result, appErr := f.svc.Update(context.Background(), f.orgID, id,
		&dto.UpdateScheduleEntryRequest{SessionTime: &newTime}, ScopeThis)
	require.Nil(t, appErr)
	require.Len(t, result.UpdatedEntries, 1)
	assert.True(t, result.UpdatedEntries[0].IsException)
	assert.Equal(t, 10, result.UpdatedEntries[0].StartTime.Hour())

	// Neighbors are untouched.
	other, appErr := f.svc.GetByID(context.Background(), f.orgID, uuid.MustParse(resp.Entries[0].ID))
	require.Nil(t, appErr)
	assert.False(t, other.IsException)
	assert.Equal(t, 15, other.StartTime.Hour())
}

func TestScheduleService_UpdateFollowingScope(t *testing.T) {
	f := newServiceFixture(t)

	resp, appErr := f.svc.Create(context.Background(), f.orgID, f.createRequest())
	require.Nil(t, appErr)

	// Record an exception on the last occurrence first; a later following
	// update must not clobber it.
	lastID := uuid.MustParse(resp.Entries[2].ID)
	exceptionTime := "08:00"
	_, appErr = f.svc.Update(context.Background(), f.orgID, lastID,
		&dto.UpdateScheduleEntryRequest{SessionTime: &exceptionTime}, ScopeThis)
	require.Nil(t, appErr)

	roomID := uuid.NewString()
	rooms := []string{roomID}
	middleID := uuid.MustParse(resp.Entries[1].ID)
	result, appErr := f.svc.Update(context.Background(), f.orgID, middleID,
		&dto.UpdateScheduleEntryRequest{RoomIDs: &rooms}, ScopeFollowing)
	require.Nil(t, appErr)

	// Only the named occurrence changed: the later one is an exception.
	require.Len(t, result.UpdatedEntries, 1)
	assert.Equal(t, []string{roomID}, result.UpdatedEntries[0].RoomIDs)

	firstEntry, appErr := f.svc.GetByID(context.Background(), f.orgID, uuid.MustParse(resp.Entries[0].ID))
	require.Nil(t, appErr)
	assert.Empty(t, firstEntry.RoomIDs)

	lastEntry, appErr := f.svc.GetByID(context.Background(), f.orgID, lastID)
	require.Nil(t, appErr)
	assert.Empty(t, lastEntry.RoomIDs)
	assert.Equal(t, 8, lastEntry.StartTime.Hour())
}

func TestScheduleService_UpdateThisScopeRoomOverrideIsException(t *testing.T) {
	f := newServiceFixture(t)

	resp, appErr := f.svc.Create(context.Background(), f.orgID, f.createRequest())
	require.Nil(t, appErr)

	// Give the middle occurrence its own room.
	overrideRoom := uuid.NewString()
	overrideRooms := []string{overrideRoom}
	middleID := uuid.MustParse(resp.Entries[1].ID)
	result, appErr := f.svc.Update(context.Background(), f.orgID, middleID,
		&dto.UpdateScheduleEntryRequest{RoomIDs: &overrideRooms}, ScopeThis)
	require.Nil(t, appErr)
	require.Len(t, result.UpdatedEntries, 1)
	assert.True(t, result.UpdatedEntries[0].IsException)

	// A later following edit from the first occurrence leaves the override
	// in place.
	seriesRoom := uuid.NewString()
	seriesRooms := []string{seriesRoom}
	firstID := uuid.MustParse(resp.Entries[0].ID)
	_, appErr = f.svc.Update(context.Background(), f.orgID, firstID,
		&dto.UpdateScheduleEntryRequest{RoomIDs: &seriesRooms}, ScopeFollowing)
	require.Nil(t, appErr)

	middle, appErr := f.svc.GetByID(context.Background(), f.orgID, middleID)
	require.Nil(t, appErr)
	assert.True(t, middle.IsException)
	assert.Equal(t, []string{overrideRoom}, middle.RoomIDs)

	last, appErr := f.svc.GetByID(context.Background(), f.orgID, uuid.MustParse(resp.Entries[2].ID))
	require.Nil(t, appErr)
	assert.Equal(t, []string{seriesRoom}, last.RoomIDs)
}

func TestScheduleService_UpdateAttendeesRollsBackOnCapacity(t *testing.T) {
	f := newServiceFixture(t)

	req := f.createRequest()
	req.Capacity = 2
	req.StudentIDs = []string{uuid.NewString()}
	resp, appErr := f.svc.Create(context.Background(), f.orgID, req)
	require.Nil(t, appErr)
	id := uuid.MustParse(resp.Entries[0].ID)

	// Adding two students would push the count to three.
	_, appErr = f.svc.UpdateAttendees(context.Background(), f.orgID, id,
		&dto.AttendeeChangeRequest{Add: []string{uuid.NewString(), uuid.NewString()}}, ScopeFollowing)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrCapacityExceeded, appErr.Code)

	// The original attendee set is intact on every occurrence.
	for _, e := range resp.Entries {
		got, appErr := f.svc.GetByID(context.Background(), f.orgID, uuid.MustParse(e.ID))
		require.Nil(t, appErr)
		assert.Len(t, got.AttendeeStudentIDs, 1)
	}
}

func TestScheduleService_UpdateAttendeesAddAndRemove(t *testing.T) {
	f := newServiceFixture(t)

	keep := uuid.NewString()
	drop := uuid.NewString()
	req := f.createRequest()
	req.StudentIDs = []string{keep, drop}
	resp, appErr := f.svc.Create(context.Background(), f.orgID, req)
	require.Nil(t, appErr)
	id := uuid.MustParse(resp.Entries[0].ID)

	added := uuid.NewString()
	result, appErr := f.svc.UpdateAttendees(context.Background(), f.orgID, id,
		&dto.AttendeeChangeRequest{Add: []string{added}, Remove: []string{drop}}, ScopeThis)
	require.Nil(t, appErr)
	require.Len(t, result.UpdatedEntries, 1)
	assert.ElementsMatch(t, []string{keep, added}, result.UpdatedEntries[0].AttendeeStudentIDs)

	// Attendee changes never flag the occurrence as an exception.
	assert.False(t, result.UpdatedEntries[0].IsException)
}

func TestScheduleService_ArchiveFollowingThenUnarchive(t *testing.T) {
	f := newServiceFixture(t)

	resp, appErr := f.svc.Create(context.Background(), f.orgID, f.createRequest())
	require.Nil(t, appErr)
	middleID := uuid.MustParse(resp.Entries[1].ID)

	archived, appErr := f.svc.Archive(context.Background(), f.orgID, middleID, ScopeFollowing)
	require.Nil(t, appErr)
	require.Len(t, archived.UpdatedEntries, 2)
	for _, e := range archived.UpdatedEntries {
		assert.NotNil(t, e.ArchivedAt)
	}

	active, appErr := f.svc.ListByLocation(context.Background(), f.orgID, f.locationID, nil, repository.FilterActive)
	require.Nil(t, appErr)
	assert.Len(t, active, 1)

	restored, appErr := f.svc.Unarchive(context.Background(), f.orgID, middleID, ScopeFollowing)
	require.Nil(t, appErr)
	require.Len(t, restored.UpdatedEntries, 2)
	for _, e := range restored.UpdatedEntries {
		assert.Nil(t, e.ArchivedAt)
	}

	active, appErr = f.svc.ListByLocation(context.Background(), f.orgID, f.locationID, nil, repository.FilterActive)
	require.Nil(t, appErr)
	assert.Len(t, active, 3)
}

func TestScheduleService_RestoreExceptionRevertsToTemplate(t *testing.T) {
	f := newServiceFixture(t)

	resp, appErr := f.svc.Create(context.Background(), f.orgID, f.createRequest())
	require.Nil(t, appErr)
	id := uuid.MustParse(resp.Entries[1].ID)

	newTime := "10:00"
	_, appErr = f.svc.Update(context.Background(), f.orgID, id,
		&dto.UpdateScheduleEntryRequest{SessionTime: &newTime}, ScopeThis)
	require.Nil(t, appErr)

	result, appErr := f.svc.RestoreException(context.Background(), f.orgID, id,
		&dto.RestoreExceptionRequest{}, ScopeThis)
	require.Nil(t, appErr)
	require.Len(t, result.UpdatedEntries, 1)
	assert.False(t, result.UpdatedEntries[0].IsException)
	assert.Equal(t, 15, result.UpdatedEntries[0].StartTime.Hour())
}

func TestScheduleService_UpdateRedetectsConflicts(t *testing.T) {
	f := newServiceFixture(t)

	sharedTutor := uuid.NewString()

	// Two ad-hoc sessions on the same day, 9:00 and 12:00: clean.
	mk := func(sessionTime string) uuid.UUID {
		req := f.createRequest()
		req.Pattern = "AD_HOC"
		req.DayOfWeek = nil
		req.OccurrenceCount = nil
		req.SessionTime = sessionTime
		req.TutorIDs = []string{sharedTutor}
		resp, appErr := f.svc.Create(context.Background(), f.orgID, req)
		require.Nil(t, appErr)
		return uuid.MustParse(resp.Entries[0].ID)
	}
	mk("09:00")
	second := mk("12:00")
	require.Empty(t, f.store.conflicts)

	// Moving the second onto the first produces a tutor conflict.
	newTime := "09:30"
	result, appErr := f.svc.Update(context.Background(), f.orgID, second,
		&dto.UpdateScheduleEntryRequest{SessionTime: &newTime}, ScopeThis)
	require.Nil(t, appErr)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, string(entity.ConflictTutor), result.Conflicts[0].ConflictType)

	// Moving it back clears the unresolved row again.
	oldTime := "12:00"
	result, appErr = f.svc.Update(context.Background(), f.orgID, second,
		&dto.UpdateScheduleEntryRequest{SessionTime: &oldTime}, ScopeThis)
	require.Nil(t, appErr)
	assert.Empty(t, result.Conflicts)
	assert.Empty(t, f.store.conflicts)
}
