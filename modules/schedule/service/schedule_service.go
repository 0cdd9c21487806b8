package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"tutorbase/core/database"
	"tutorbase/core/errors"
	"tutorbase/core/logger"
	orgentity "tutorbase/modules/org/entity"
	"tutorbase/modules/schedule/dto"
	"tutorbase/modules/schedule/entity"
	"tutorbase/modules/schedule/repository"
)

// OrgDirectory is the collaborator surface for existence and
// organization-ownership checks. Implemented by the org module.
type OrgDirectory interface {
	GetOwnedLocation(ctx context.Context, organizationID, locationID uuid.UUID) (*orgentity.Location, *errors.AppError)
	MissingTutorIDs(ctx context.Context, organizationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
	MissingStudentIDs(ctx context.Context, organizationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
	MissingRoomIDs(ctx context.Context, locationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
}

// ReminderScheduler queues an upcoming-session reminder. Optional; a nil
// scheduler disables reminders.
type ReminderScheduler interface {
	ScheduleSessionReminder(ctx context.Context, entryID uuid.UUID, startsAt time.Time) error
}

// ScheduleService orchestrates series creation, scoped mutation and
// conflict bookkeeping. Every operation takes the caller's organization id
// explicitly; nothing is read from ambient request state.
type ScheduleService struct {
	db        database.TxRunner
	repo      repository.ScheduleRepositoryInterface
	conflicts repository.ConflictRepositoryInterface
	orgs      OrgDirectory
	expander  *SeriesExpander
	detector  *ConflictDetector
	reminders ReminderScheduler
	cache     ConflictCache
	now       func() time.Time
}

type ScheduleServiceInterface interface {
	Create(ctx context.Context, organizationID uuid.UUID, req *dto.CreateScheduleEntryRequest) (*dto.CreateScheduleResponse, *errors.AppError)
	GetByID(ctx context.Context, organizationID, id uuid.UUID) (*dto.ScheduleEntryResponse, *errors.AppError)
	ListByLocation(ctx context.Context, organizationID, locationID uuid.UUID, seriesID *uuid.UUID, archived repository.ArchivedFilter) ([]dto.ScheduleEntryResponse, *errors.AppError)
	Update(ctx context.Context, organizationID, id uuid.UUID, req *dto.UpdateScheduleEntryRequest, scope MutationScope) (*dto.ScopedMutationResponse, *errors.AppError)
	UpdateAttendees(ctx context.Context, organizationID, id uuid.UUID, req *dto.AttendeeChangeRequest, scope MutationScope) (*dto.ScopedMutationResponse, *errors.AppError)
	SkipOccurrence(ctx context.Context, organizationID, id uuid.UUID) (*dto.ScheduleEntryResponse, *errors.AppError)
	RestoreException(ctx context.Context, organizationID, id uuid.UUID, req *dto.RestoreExceptionRequest, scope MutationScope) (*dto.ScopedMutationResponse, *errors.AppError)
	Archive(ctx context.Context, organizationID, id uuid.UUID, scope MutationScope) (*dto.ScopedMutationResponse, *errors.AppError)
	Unarchive(ctx context.Context, organizationID, id uuid.UUID, scope MutationScope) (*dto.ScopedMutationResponse, *errors.AppError)
}

func NewScheduleService(
	db database.TxRunner,
	repo repository.ScheduleRepositoryInterface,
	conflicts repository.ConflictRepositoryInterface,
	orgs OrgDirectory,
	reminders ReminderScheduler,
	cache ConflictCache,
) ScheduleServiceInterface {
	return &ScheduleService{
		db:        db,
		repo:      repo,
		conflicts: conflicts,
		orgs:      orgs,
		expander:  NewSeriesExpander(),
		detector:  NewConflictDetector(),
		reminders: reminders,
		cache:     cache,
		now:       time.Now,
	}
}

// detectionFailure marks errors raised while deriving conflicts, so the
// whole transaction aborts rather than committing a series with missing
// conflict rows.
type detectionFailure struct{ err error }

func (d *detectionFailure) Error() string { return "conflict detection: " + d.err.Error() }
func (d *detectionFailure) Unwrap() error { return d.err }

// ===================== Create =====================

// Create validates eagerly, expands the recurrence, then persists entries,
// relation sets and detected conflicts in a single transaction. Conflicts
// are warnings: the series is created even when it collides.
func (s *ScheduleService) Create(ctx context.Context, organizationID uuid.UUID, req *dto.CreateScheduleEntryRequest) (*dto.CreateScheduleResponse, *errors.AppError) {
	series, sets, appErr := s.buildSeries(organizationID, req)
	if appErr != nil {
		return nil, appErr
	}

	location, appErr := s.orgs.GetOwnedLocation(ctx, organizationID, series.LocationID)
	if appErr != nil {
		return nil, appErr
	}
	if location.IsVirtual && len(sets.rooms) > 0 {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Virtual locations cannot have rooms", nil)
	}
	if len(sets.students) > series.Capacity {
		return nil, errors.NewAppError(errors.ErrCapacityExceeded,
			fmt.Sprintf("Attendee count %d exceeds capacity %d", len(sets.students), series.Capacity), nil)
	}
	if appErr := s.ensureKnown(ctx, organizationID, series.LocationID, sets); appErr != nil {
		return nil, appErr
	}

	drafts, err := s.expander.Expand(series)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, err.Error(), err)
	}

	var (
		created   []*entity.ScheduleEntry
		conflicts []entity.ScheduleConflict
	)

	txErr := s.db.Transact(ctx, func(tx *sqlx.Tx) error {
		repo := s.repo.WithTx(tx)
		conflictRepo := s.conflicts.WithTx(tx)

		if series.Pattern != entity.PatternAdHoc {
			if err := repo.CreateSeries(ctx, series); err != nil {
				return err
			}
		}

		for _, draft := range drafts {
			entry := s.entryFromDraft(series, draft, sets, req.ResourcesNote)

			// Detection runs before each insert so occurrence N+1 sees
			// occurrence N's freshly committed-to-tx row: conflicts inside
			// a new series are found too.
			descs, err := s.detectWithin(ctx, repo, entry, location)
			if err != nil {
				return err
			}

			if err := repo.CreateEntry(ctx, entry); err != nil {
				return err
			}
			if err := repo.ReplaceTutors(ctx, entry.ID, sets.tutors); err != nil {
				return err
			}
			if err := repo.ReplaceRooms(ctx, entry.ID, sets.rooms); err != nil {
				return err
			}
			if err := repo.AddStudents(ctx, entry.ID, sets.students); err != nil {
				return err
			}

			rows, err := s.persistConflicts(ctx, conflictRepo, organizationID, descs)
			if err != nil {
				return err
			}
			conflicts = append(conflicts, rows...)
			created = append(created, entry)
		}
		return nil
	})
	if txErr != nil {
		return nil, s.storageError("Failed to create schedule entries", txErr)
	}

	s.invalidateConflictCache(ctx, organizationID)
	s.scheduleReminders(ctx, created)

	logger.Info("ScheduleService:Create",
		"organization_id", organizationID,
		"pattern", series.Pattern,
		"entries", len(created),
		"conflicts", len(conflicts),
	)

	resp := &dto.CreateScheduleResponse{
		Entries:   entryResponses(created),
		Conflicts: conflictResponses(conflicts),
	}
	if series.Pattern != entity.PatternAdHoc {
		resp.SeriesID = series.ID.String()
	}
	return resp, nil
}

// ===================== Reads =====================

func (s *ScheduleService) GetByID(ctx context.Context, organizationID, id uuid.UUID) (*dto.ScheduleEntryResponse, *errors.AppError) {
	entry, appErr := s.loadOwnedEntry(ctx, organizationID, id)
	if appErr != nil {
		return nil, appErr
	}
	if err := s.repo.LoadRelations(ctx, entry); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load entry relations", err)
	}

	resp := dto.ToEntryResponse(entry)
	unresolved, err := s.conflicts.ListUnresolvedForEntry(ctx, id)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load entry conflicts", err)
	}
	resp.Conflicts = conflictResponses(unresolved)
	return resp, nil
}

func (s *ScheduleService) ListByLocation(ctx context.Context, organizationID, locationID uuid.UUID, seriesID *uuid.UUID, archived repository.ArchivedFilter) ([]dto.ScheduleEntryResponse, *errors.AppError) {
	if archived == "" {
		archived = repository.FilterActive
	}
	if !archived.Valid() {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "archived must be one of active, archived, all", nil)
	}
	if _, appErr := s.orgs.GetOwnedLocation(ctx, organizationID, locationID); appErr != nil {
		return nil, appErr
	}

	entries, err := s.repo.ListByLocation(ctx, locationID, repository.ListEntriesFilter{SeriesID: seriesID, Archived: archived})
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to list schedule entries", err)
	}

	ptrs := make([]*entity.ScheduleEntry, len(entries))
	for i := range entries {
		ptrs[i] = &entries[i]
	}
	if err := s.repo.LoadRelations(ctx, ptrs...); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load entry relations", err)
	}

	return entryResponses(ptrs), nil
}

// ===================== Scoped update =====================

// Update applies per-field overrides to one occurrence or, with the
// following scope, to every occurrence in the series on or after the named
// occurrence's date. Past occurrences are never touched. Recorded
// exceptions on other occurrences survive a following update.
func (s *ScheduleService) Update(ctx context.Context, organizationID, id uuid.UUID, req *dto.UpdateScheduleEntryRequest, scope MutationScope) (*dto.ScopedMutationResponse, *errors.AppError) {
	entry, appErr := s.loadOwnedEntry(ctx, organizationID, id)
	if appErr != nil {
		return nil, appErr
	}
	location, appErr := s.orgs.GetOwnedLocation(ctx, organizationID, entry.LocationID)
	if appErr != nil {
		return nil, appErr
	}

	change, appErr := s.buildChange(req, location)
	if appErr != nil {
		return nil, appErr
	}
	if appErr := s.ensureChangeKnown(ctx, organizationID, entry.LocationID, change); appErr != nil {
		return nil, appErr
	}

	targets, series, appErr := s.collectTargets(ctx, entry, scope)
	if appErr != nil {
		return nil, appErr
	}
	if scope == ScopeFollowing {
		// A following edit redefines the series forward; occurrences with
		// recorded per-date overrides keep them.
		kept := targets[:0]
		for _, t := range targets {
			if t.ID == entry.ID || !t.IsException {
				kept = append(kept, t)
			}
		}
		targets = kept
	}

	var updated []*entity.ScheduleEntry
	var conflicts []entity.ScheduleConflict

	txErr := s.db.Transact(ctx, func(tx *sqlx.Tx) error {
		repo := s.repo.WithTx(tx)
		conflictRepo := s.conflicts.WithTx(tx)

		for _, target := range targets {
			if err := repo.LoadRelations(ctx, target); err != nil {
				return err
			}
			if err := s.applyChange(target, change); err != nil {
				return err
			}
			if scope == ScopeThis && series != nil {
				// A tutor/room override is a divergence too; the flag
				// clears only through RestoreException.
				target.IsException = target.IsException ||
					differsFromTemplate(target, series) ||
					relationOverride(change, target)
			}

			if err := repo.UpdateEntry(ctx, target); err != nil {
				return err
			}
			if change.tutors != nil {
				if err := repo.ReplaceTutors(ctx, target.ID, *change.tutors); err != nil {
					return err
				}
				target.TutorIDs = *change.tutors
			}
			if change.rooms != nil {
				if err := repo.ReplaceRooms(ctx, target.ID, *change.rooms); err != nil {
					return err
				}
				target.RoomIDs = *change.rooms
			}

			rows, err := s.redetect(ctx, repo, conflictRepo, target, location)
			if err != nil {
				return err
			}
			conflicts = append(conflicts, rows...)
			updated = append(updated, target)
		}
		return nil
	})
	if txErr != nil {
		if appErr, ok := asAppError(txErr); ok {
			return nil, appErr
		}
		return nil, s.storageError("Failed to update schedule entries", txErr)
	}

	s.invalidateConflictCache(ctx, organizationID)

	return &dto.ScopedMutationResponse{
		UpdatedEntries: entryResponses(updated),
		Conflicts:      conflictResponses(conflicts),
	}, nil
}

// UpdateAttendees applies a student delta to the named occurrence (and
// following ones when scoped), rejecting any target that would exceed its
// capacity. A rejection rolls the whole change back.
func (s *ScheduleService) UpdateAttendees(ctx context.Context, organizationID, id uuid.UUID, req *dto.AttendeeChangeRequest, scope MutationScope) (*dto.ScopedMutationResponse, *errors.AppError) {
	add, appErr := parseUUIDList(req.Add, "add")
	if appErr != nil {
		return nil, appErr
	}
	remove, appErr := parseUUIDList(req.Remove, "remove")
	if appErr != nil {
		return nil, appErr
	}
	if len(add) == 0 && len(remove) == 0 {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Attendee change is empty", nil)
	}

	entry, appErr := s.loadOwnedEntry(ctx, organizationID, id)
	if appErr != nil {
		return nil, appErr
	}

	if len(add) > 0 {
		missing, err := s.orgs.MissingStudentIDs(ctx, organizationID, add)
		if err != nil {
			return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to verify students", err)
		}
		if len(missing) > 0 {
			return nil, errors.NewAppError(errors.ErrNotFound, "Unknown student(s) in attendee change", nil)
		}
	}

	targets, _, appErr := s.collectTargets(ctx, entry, scope)
	if appErr != nil {
		return nil, appErr
	}

	var updated []*entity.ScheduleEntry

	txErr := s.db.Transact(ctx, func(tx *sqlx.Tx) error {
		repo := s.repo.WithTx(tx)

		for _, target := range targets {
			if target.ArchivedAt != nil {
				continue
			}
			if err := repo.LoadRelations(ctx, target); err != nil {
				return err
			}

			next := applyAttendeeDelta(target.AttendeeStudentIDs, add, remove)
			if len(next) > target.Capacity {
				return errors.NewAppError(errors.ErrCapacityExceeded,
					fmt.Sprintf("Attendee count %d exceeds capacity %d", len(next), target.Capacity), nil)
			}

			if err := repo.AddStudents(ctx, target.ID, add); err != nil {
				return err
			}
			if err := repo.RemoveStudents(ctx, target.ID, remove); err != nil {
				return err
			}
			target.AttendeeStudentIDs = next
			updated = append(updated, target)
		}
		return nil
	})
	if txErr != nil {
		if appErr, ok := asAppError(txErr); ok {
			return nil, appErr
		}
		return nil, s.storageError("Failed to update attendees", txErr)
	}

	return &dto.ScopedMutationResponse{UpdatedEntries: entryResponses(updated)}, nil
}

// SkipOccurrence marks exactly one occurrence inactive without deleting it.
// Idempotent.
func (s *ScheduleService) SkipOccurrence(ctx context.Context, organizationID, id uuid.UUID) (*dto.ScheduleEntryResponse, *errors.AppError) {
	entry, appErr := s.loadOwnedEntry(ctx, organizationID, id)
	if appErr != nil {
		return nil, appErr
	}

	if !entry.IsSkipped {
		if err := s.repo.SetSkipped(ctx, id, true); err != nil {
			return nil, s.storageError("Failed to skip occurrence", err)
		}
		entry.IsSkipped = true
		s.invalidateConflictCache(ctx, organizationID)
	}

	if err := s.repo.LoadRelations(ctx, entry); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load entry relations", err)
	}
	return dto.ToEntryResponse(entry), nil
}

// RestoreException clears recorded per-occurrence overrides back to the
// series template, applies any supplied replacement fields, and re-runs
// conflict detection before committing so a restored occurrence never
// resurrects an unnoticed overlap.
func (s *ScheduleService) RestoreException(ctx context.Context, organizationID, id uuid.UUID, req *dto.RestoreExceptionRequest, scope MutationScope) (*dto.ScopedMutationResponse, *errors.AppError) {
	entry, appErr := s.loadOwnedEntry(ctx, organizationID, id)
	if appErr != nil {
		return nil, appErr
	}
	location, appErr := s.orgs.GetOwnedLocation(ctx, organizationID, entry.LocationID)
	if appErr != nil {
		return nil, appErr
	}

	change, appErr := s.buildChange(req, location)
	if appErr != nil {
		return nil, appErr
	}
	if appErr := s.ensureChangeKnown(ctx, organizationID, entry.LocationID, change); appErr != nil {
		return nil, appErr
	}

	targets, series, appErr := s.collectTargets(ctx, entry, scope)
	if appErr != nil {
		return nil, appErr
	}

	var updated []*entity.ScheduleEntry
	var conflicts []entity.ScheduleConflict

	txErr := s.db.Transact(ctx, func(tx *sqlx.Tx) error {
		repo := s.repo.WithTx(tx)
		conflictRepo := s.conflicts.WithTx(tx)

		for _, target := range targets {
			if err := repo.LoadRelations(ctx, target); err != nil {
				return err
			}

			if series != nil {
				resetToTemplate(target, series)
			}
			target.IsSkipped = false
			target.IsException = false

			if err := s.applyChange(target, change); err != nil {
				return err
			}
			if series != nil {
				target.IsException = differsFromTemplate(target, series) ||
					relationOverride(change, target)
			}

			if err := repo.UpdateEntry(ctx, target); err != nil {
				return err
			}
			if change.tutors != nil {
				if err := repo.ReplaceTutors(ctx, target.ID, *change.tutors); err != nil {
					return err
				}
				target.TutorIDs = *change.tutors
			}
			if change.rooms != nil {
				if err := repo.ReplaceRooms(ctx, target.ID, *change.rooms); err != nil {
					return err
				}
				target.RoomIDs = *change.rooms
			}

			rows, err := s.redetect(ctx, repo, conflictRepo, target, location)
			if err != nil {
				return err
			}
			conflicts = append(conflicts, rows...)
			updated = append(updated, target)
		}
		return nil
	})
	if txErr != nil {
		if appErr, ok := asAppError(txErr); ok {
			return nil, appErr
		}
		return nil, s.storageError("Failed to restore occurrence", txErr)
	}

	s.invalidateConflictCache(ctx, organizationID)
	s.scheduleReminders(ctx, updated)

	return &dto.ScopedMutationResponse{
		UpdatedEntries: entryResponses(updated),
		Conflicts:      conflictResponses(conflicts),
	}, nil
}

// Archive soft-deletes one occurrence or this-and-following. Conflict rows
// referencing an archived entry stay unresolved but drop out of the default
// conflict listing.
func (s *ScheduleService) Archive(ctx context.Context, organizationID, id uuid.UUID, scope MutationScope) (*dto.ScopedMutationResponse, *errors.AppError) {
	entry, appErr := s.loadOwnedEntry(ctx, organizationID, id)
	if appErr != nil {
		return nil, appErr
	}

	targets, _, appErr := s.collectTargets(ctx, entry, scope)
	if appErr != nil {
		return nil, appErr
	}

	archivedAt := s.now().UTC()
	ids := make([]uuid.UUID, 0, len(targets))
	for _, t := range targets {
		if t.ArchivedAt == nil {
			ids = append(ids, t.ID)
			t.ArchivedAt = &archivedAt
		}
	}

	txErr := s.db.Transact(ctx, func(tx *sqlx.Tx) error {
		return s.repo.WithTx(tx).SetArchived(ctx, ids, &archivedAt)
	})
	if txErr != nil {
		return nil, s.storageError("Failed to archive entries", txErr)
	}

	s.invalidateConflictCache(ctx, organizationID)
	return &dto.ScopedMutationResponse{UpdatedEntries: entryResponses(targets)}, nil
}

// Unarchive restores archived occurrences and re-runs conflict detection
// against currently active entries: coming back must never create a
// conflict-free illusion.
func (s *ScheduleService) Unarchive(ctx context.Context, organizationID, id uuid.UUID, scope MutationScope) (*dto.ScopedMutationResponse, *errors.AppError) {
	entry, appErr := s.loadOwnedEntry(ctx, organizationID, id)
	if appErr != nil {
		return nil, appErr
	}
	location, appErr := s.orgs.GetOwnedLocation(ctx, organizationID, entry.LocationID)
	if appErr != nil {
		return nil, appErr
	}

	targets, _, appErr := s.collectTargets(ctx, entry, scope)
	if appErr != nil {
		return nil, appErr
	}

	var restored []*entity.ScheduleEntry
	var conflicts []entity.ScheduleConflict

	txErr := s.db.Transact(ctx, func(tx *sqlx.Tx) error {
		repo := s.repo.WithTx(tx)
		conflictRepo := s.conflicts.WithTx(tx)

		for _, target := range targets {
			if target.ArchivedAt == nil {
				continue
			}
			if err := repo.SetArchived(ctx, []uuid.UUID{target.ID}, nil); err != nil {
				return err
			}
			target.ArchivedAt = nil

			if err := repo.LoadRelations(ctx, target); err != nil {
				return err
			}
			rows, err := s.redetect(ctx, repo, conflictRepo, target, location)
			if err != nil {
				return err
			}
			conflicts = append(conflicts, rows...)
			restored = append(restored, target)
		}
		return nil
	})
	if txErr != nil {
		return nil, s.storageError("Failed to unarchive entries", txErr)
	}

	s.invalidateConflictCache(ctx, organizationID)
	s.scheduleReminders(ctx, restored)

	return &dto.ScopedMutationResponse{
		UpdatedEntries: entryResponses(restored),
		Conflicts:      conflictResponses(conflicts),
	}, nil
}

// ===================== Internals =====================

type relationSets struct {
	tutors   []uuid.UUID
	rooms    []uuid.UUID
	students []uuid.UUID
}

func (s *ScheduleService) buildSeries(organizationID uuid.UUID, req *dto.CreateScheduleEntryRequest) (*entity.ScheduleSeries, relationSets, *errors.AppError) {
	var sets relationSets

	locationID, err := uuid.Parse(req.LocationID)
	if err != nil {
		return nil, sets, errors.NewAppError(errors.ErrInvalidInput, "Invalid location_id", err)
	}

	pattern := entity.RecurrencePattern(req.Pattern)
	if !pattern.Valid() {
		return nil, sets, errors.NewAppError(errors.ErrInvalidInput, "Invalid pattern", nil)
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, sets, errors.NewAppError(errors.ErrInvalidInput, "Invalid start_date", err)
	}

	series := &entity.ScheduleSeries{
		ID:              uuid.New(),
		OrganizationID:  organizationID,
		LocationID:      locationID,
		Pattern:         pattern,
		DayOfWeek:       req.DayOfWeek,
		StartDate:       startDate,
		SessionTime:     req.SessionTime,
		DurationMinutes: req.DurationMinutes,
		BufferMinutes:   req.BufferMinutes,
		OccurrenceCount: req.OccurrenceCount,
		Capacity:        req.Capacity,
	}

	if req.EndDate != nil {
		endDate, err := time.Parse("2006-01-02", *req.EndDate)
		if err != nil {
			return nil, sets, errors.NewAppError(errors.ErrInvalidInput, "Invalid end_date", err)
		}
		series.EndDate = &endDate
	}

	// A service/subject/topic combination is validated for shape: topics
	// hang off subjects, subjects off a service code.
	if req.ServiceCode != "" {
		code := req.ServiceCode
		series.ServiceCode = &code
	}
	if req.SubjectID != nil {
		if series.ServiceCode == nil {
			return nil, sets, errors.NewAppError(errors.ErrInvalidInput, "subject_id requires a service_code", nil)
		}
		subjectID, err := uuid.Parse(*req.SubjectID)
		if err != nil {
			return nil, sets, errors.NewAppError(errors.ErrInvalidInput, "Invalid subject_id", err)
		}
		series.SubjectID = &subjectID
	}
	if req.TopicID != nil {
		if series.SubjectID == nil {
			return nil, sets, errors.NewAppError(errors.ErrInvalidInput, "topic_id requires a subject_id", nil)
		}
		topicID, err := uuid.Parse(*req.TopicID)
		if err != nil {
			return nil, sets, errors.NewAppError(errors.ErrInvalidInput, "Invalid topic_id", err)
		}
		series.TopicID = &topicID
	}

	var appErr *errors.AppError
	if sets.tutors, appErr = parseUUIDList(req.TutorIDs, "tutor_ids"); appErr != nil {
		return nil, sets, appErr
	}
	if sets.rooms, appErr = parseUUIDList(req.RoomIDs, "room_ids"); appErr != nil {
		return nil, sets, appErr
	}
	if sets.students, appErr = parseUUIDList(req.StudentIDs, "student_ids"); appErr != nil {
		return nil, sets, appErr
	}

	return series, sets, nil
}

func (s *ScheduleService) ensureKnown(ctx context.Context, organizationID, locationID uuid.UUID, sets relationSets) *errors.AppError {
	if missing, err := s.orgs.MissingTutorIDs(ctx, organizationID, sets.tutors); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to verify tutors", err)
	} else if len(missing) > 0 {
		return errors.NewAppError(errors.ErrNotFound, "Unknown tutor(s)", nil)
	}
	if missing, err := s.orgs.MissingStudentIDs(ctx, organizationID, sets.students); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to verify students", err)
	} else if len(missing) > 0 {
		return errors.NewAppError(errors.ErrNotFound, "Unknown student(s)", nil)
	}
	if missing, err := s.orgs.MissingRoomIDs(ctx, locationID, sets.rooms); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to verify rooms", err)
	} else if len(missing) > 0 {
		return errors.NewAppError(errors.ErrNotFound, "Unknown room(s) at this location", nil)
	}
	return nil
}

func (s *ScheduleService) entryFromDraft(series *entity.ScheduleSeries, draft OccurrenceDraft, sets relationSets, note string) *entity.ScheduleEntry {
	entry := &entity.ScheduleEntry{
		ID:                 uuid.New(),
		OrganizationID:     series.OrganizationID,
		LocationID:         series.LocationID,
		OccurrenceDate:     draft.Date,
		StartTime:          draft.StartTime,
		EndTime:            draft.EndTime,
		DurationMinutes:    series.DurationMinutes,
		BufferMinutes:      series.BufferMinutes,
		Capacity:           series.Capacity,
		TutorIDs:           sets.tutors,
		RoomIDs:            sets.rooms,
		AttendeeStudentIDs: sets.students,
	}
	if series.Pattern != entity.PatternAdHoc {
		seriesID := series.ID
		entry.SeriesID = &seriesID
	}
	if note != "" {
		entry.ResourcesNote = &note
	}
	return entry
}

// detectWithin loads the active overlap candidates visible to the current
// transaction and classifies conflicts against them. Any failure here is a
// detection failure and aborts the caller's transaction.
func (s *ScheduleService) detectWithin(ctx context.Context, repo repository.ScheduleRepositoryInterface, candidate *entity.ScheduleEntry, location *orgentity.Location) ([]ConflictDescriptor, error) {
	existing, err := repo.ListConflictCandidates(ctx, candidate.LocationID, candidate.StartTime, candidate.EndTime)
	if err != nil {
		return nil, &detectionFailure{err}
	}

	ptrs := make([]*entity.ScheduleEntry, 0, len(existing))
	for i := range existing {
		if existing[i].ID == candidate.ID {
			continue
		}
		ptrs = append(ptrs, &existing[i])
	}
	if err := repo.LoadRelations(ctx, ptrs...); err != nil {
		return nil, &detectionFailure{err}
	}

	others := make([]entity.ScheduleEntry, len(ptrs))
	for i, p := range ptrs {
		others[i] = *p
	}
	return s.detector.FindConflicts(candidate, others, location), nil
}

func (s *ScheduleService) redetect(ctx context.Context, repo repository.ScheduleRepositoryInterface, conflictRepo repository.ConflictRepositoryInterface, target *entity.ScheduleEntry, location *orgentity.Location) ([]entity.ScheduleConflict, error) {
	if err := conflictRepo.DeleteUnresolvedForEntry(ctx, target.ID); err != nil {
		return nil, err
	}
	descs, err := s.detectWithin(ctx, repo, target, location)
	if err != nil {
		return nil, err
	}
	return s.persistConflicts(ctx, conflictRepo, target.OrganizationID, descs)
}

func (s *ScheduleService) persistConflicts(ctx context.Context, conflictRepo repository.ConflictRepositoryInterface, organizationID uuid.UUID, descs []ConflictDescriptor) ([]entity.ScheduleConflict, error) {
	rows := make([]entity.ScheduleConflict, 0, len(descs))
	for _, desc := range descs {
		row := entity.ScheduleConflict{
			ID:                         uuid.New(),
			OrganizationID:             organizationID,
			ScheduleEntryID:            desc.EntryID,
			ConflictingScheduleEntryID: desc.OtherEntryID,
			ConflictType:               desc.Type,
		}
		if err := conflictRepo.Create(ctx, &row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// collectTargets resolves the occurrences a scoped mutation touches. For
// the following scope that is the named entry plus every series entry with
// occurrence_date >= its date; ad-hoc entries only ever have themselves.
func (s *ScheduleService) collectTargets(ctx context.Context, entry *entity.ScheduleEntry, scope MutationScope) ([]*entity.ScheduleEntry, *entity.ScheduleSeries, *errors.AppError) {
	var series *entity.ScheduleSeries
	if entry.SeriesID != nil {
		loaded, err := s.repo.GetSeriesByID(ctx, *entry.SeriesID)
		if err != nil {
			return nil, nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load series", err)
		}
		series = loaded
	}

	if scope != ScopeFollowing || entry.SeriesID == nil {
		return []*entity.ScheduleEntry{entry}, series, nil
	}

	entries, err := s.repo.ListSeriesEntriesFrom(ctx, *entry.SeriesID, entry.OccurrenceDate)
	if err != nil {
		return nil, nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load series entries", err)
	}

	targets := make([]*entity.ScheduleEntry, 0, len(entries))
	found := false
	for i := range entries {
		if entries[i].ID == entry.ID {
			targets = append(targets, entry)
			found = true
			continue
		}
		e := entries[i]
		targets = append(targets, &e)
	}
	if !found {
		targets = append([]*entity.ScheduleEntry{entry}, targets...)
	}
	return targets, series, nil
}

// entryChange is a parsed, validated field-override set.
type entryChange struct {
	sessionHour   int
	sessionMinute int
	hasTime       bool
	duration      *int
	buffer        *int
	capacity      *int
	tutors        *[]uuid.UUID
	rooms         *[]uuid.UUID
	note          *string
}

func (s *ScheduleService) buildChange(req *dto.UpdateScheduleEntryRequest, location *orgentity.Location) (entryChange, *errors.AppError) {
	var change entryChange
	if req == nil {
		return change, nil
	}

	if req.SessionTime != nil {
		t, err := time.Parse("15:04", *req.SessionTime)
		if err != nil {
			return change, errors.NewAppError(errors.ErrInvalidInput, "session_time must be HH:MM", err)
		}
		change.hasTime = true
		change.sessionHour = t.Hour()
		change.sessionMinute = t.Minute()
	}
	change.duration = req.DurationMinutes
	change.buffer = req.BufferMinutes
	change.capacity = req.Capacity
	change.note = req.ResourcesNote

	if req.TutorIDs != nil {
		ids, appErr := parseUUIDList(*req.TutorIDs, "tutor_ids")
		if appErr != nil {
			return change, appErr
		}
		change.tutors = &ids
	}
	if req.RoomIDs != nil {
		ids, appErr := parseUUIDList(*req.RoomIDs, "room_ids")
		if appErr != nil {
			return change, appErr
		}
		if location.IsVirtual && len(ids) > 0 {
			return change, errors.NewAppError(errors.ErrInvalidInput, "Virtual locations cannot have rooms", nil)
		}
		change.rooms = &ids
	}

	return change, nil
}

func (s *ScheduleService) ensureChangeKnown(ctx context.Context, organizationID, locationID uuid.UUID, change entryChange) *errors.AppError {
	sets := relationSets{}
	if change.tutors != nil {
		sets.tutors = *change.tutors
	}
	if change.rooms != nil {
		sets.rooms = *change.rooms
	}
	return s.ensureKnown(ctx, organizationID, locationID, sets)
}

// applyChange mutates the target in place, recomputing the time window
// from the target's own occurrence date.
func (s *ScheduleService) applyChange(target *entity.ScheduleEntry, change entryChange) error {
	if change.duration != nil {
		target.DurationMinutes = *change.duration
	}
	if change.buffer != nil {
		target.BufferMinutes = *change.buffer
	}
	if change.capacity != nil {
		if len(target.AttendeeStudentIDs) > *change.capacity {
			return errors.NewAppError(errors.ErrCapacityExceeded,
				fmt.Sprintf("Capacity %d is below current attendee count %d", *change.capacity, len(target.AttendeeStudentIDs)), nil)
		}
		target.Capacity = *change.capacity
	}
	if change.note != nil {
		if *change.note == "" {
			target.ResourcesNote = nil
		} else {
			note := *change.note
			target.ResourcesNote = &note
		}
	}

	if change.hasTime {
		d := target.OccurrenceDate
		target.StartTime = time.Date(d.Year(), d.Month(), d.Day(),
			change.sessionHour, change.sessionMinute, 0, 0, time.UTC)
	}
	target.EndTime = target.StartTime.Add(time.Duration(target.DurationMinutes+target.BufferMinutes) * time.Minute)
	return nil
}

// resetToTemplate restores the series-derived fields on a target.
func resetToTemplate(target *entity.ScheduleEntry, series *entity.ScheduleSeries) {
	target.DurationMinutes = series.DurationMinutes
	target.BufferMinutes = series.BufferMinutes
	target.Capacity = series.Capacity
	if t, err := time.Parse("15:04", series.SessionTime); err == nil {
		d := target.OccurrenceDate
		target.StartTime = time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
	}
	target.EndTime = target.StartTime.Add(time.Duration(target.DurationMinutes+target.BufferMinutes) * time.Minute)
}

// differsFromTemplate reports whether the occurrence's fields diverge from
// its series definition.
func differsFromTemplate(target *entity.ScheduleEntry, series *entity.ScheduleSeries) bool {
	if target.DurationMinutes != series.DurationMinutes ||
		target.BufferMinutes != series.BufferMinutes ||
		target.Capacity != series.Capacity {
		return true
	}
	if t, err := time.Parse("15:04", series.SessionTime); err == nil {
		if target.StartTime.Hour() != t.Hour() || target.StartTime.Minute() != t.Minute() {
			return true
		}
	}
	return false
}

// relationOverride reports whether the change replaces the target's tutor or
// room set with a different one. The target's sets are compared before the
// replacement is written.
func relationOverride(change entryChange, target *entity.ScheduleEntry) bool {
	if change.tutors != nil && !sameIDSet(*change.tutors, target.TutorIDs) {
		return true
	}
	if change.rooms != nil && !sameIDSet(*change.rooms, target.RoomIDs) {
		return true
	}
	return false
}

func sameIDSet(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[uuid.UUID]struct{}, len(a))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			return false
		}
	}
	return true
}

func (s *ScheduleService) loadOwnedEntry(ctx context.Context, organizationID, id uuid.UUID) (*entity.ScheduleEntry, *errors.AppError) {
	entry, err := s.repo.GetEntryByID(ctx, id)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load schedule entry", err)
	}
	if entry == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Schedule entry not found", nil)
	}
	if entry.OrganizationID != organizationID {
		return nil, errors.NewAppError(errors.ErrForbidden, "Schedule entry belongs to a different organization", nil)
	}
	return entry, nil
}

// storageError maps transaction failures onto the domain taxonomy instead
// of leaking raw storage errors.
func (s *ScheduleService) storageError(message string, err error) *errors.AppError {
	if appErr, ok := asAppError(err); ok {
		return appErr
	}
	var df *detectionFailure
	if stderrors.As(err, &df) {
		return errors.NewAppError(errors.ErrConflictDetection, "Conflict detection failed; no changes were applied", err)
	}
	if repository.IsUniqueViolation(err) {
		return errors.NewAppError(errors.ErrAlreadyExists, message, err)
	}
	if repository.IsForeignKeyViolation(err) {
		return errors.NewAppError(errors.ErrInvalidInput, message, err)
	}
	return errors.NewAppError(errors.ErrInternalServer, message, err)
}

func asAppError(err error) (*errors.AppError, bool) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func (s *ScheduleService) invalidateConflictCache(ctx context.Context, organizationID uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, organizationID)
	}
}

func (s *ScheduleService) scheduleReminders(ctx context.Context, entries []*entity.ScheduleEntry) {
	if s.reminders == nil {
		return
	}
	now := s.now()
	for _, e := range entries {
		if !e.Active() || !e.StartTime.After(now) {
			continue
		}
		if err := s.reminders.ScheduleSessionReminder(ctx, e.ID, e.StartTime); err != nil {
			logger.Warn("ScheduleService:ScheduleReminder", "entry_id", e.ID, "error", err)
		}
	}
}

func parseUUIDList(raw []string, field string) ([]uuid.UUID, *errors.AppError) {
	ids := make([]uuid.UUID, 0, len(raw))
	seen := make(map[uuid.UUID]struct{}, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, errors.NewAppError(errors.ErrInvalidInput, fmt.Sprintf("Invalid id in %s", field), err)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func applyAttendeeDelta(current, add, remove []uuid.UUID) []uuid.UUID {
	removed := make(map[uuid.UUID]struct{}, len(remove))
	for _, id := range remove {
		removed[id] = struct{}{}
	}
	present := make(map[uuid.UUID]struct{}, len(current))
	next := make([]uuid.UUID, 0, len(current)+len(add))
	for _, id := range current {
		if _, drop := removed[id]; drop {
			continue
		}
		present[id] = struct{}{}
		next = append(next, id)
	}
	for _, id := range add {
		if _, drop := removed[id]; drop {
			continue
		}
		if _, ok := present[id]; ok {
			continue
		}
		present[id] = struct{}{}
		next = append(next, id)
	}
	return next
}

func entryResponses(entries []*entity.ScheduleEntry) []dto.ScheduleEntryResponse {
	out := make([]dto.ScheduleEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, *dto.ToEntryResponse(e))
	}
	return out
}

func conflictResponses(conflicts []entity.ScheduleConflict) []dto.ConflictResponse {
	out := make([]dto.ConflictResponse, 0, len(conflicts))
	for i := range conflicts {
		out = append(out, *dto.ToConflictResponse(&conflicts[i]))
	}
	return out
}
