package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"tutorbase/core/database"
	"tutorbase/core/logger"
	"tutorbase/modules/schedule/entity"
)

// ArchivedFilter selects which entries a listing returns. The inactive view
// ("archived") covers skipped rows too, so a skipped occurrence stays
// discoverable and restorable.
type ArchivedFilter string

const (
	FilterActive   ArchivedFilter = "active"
	FilterArchived ArchivedFilter = "archived"
	FilterAll      ArchivedFilter = "all"
)

func (f ArchivedFilter) Valid() bool {
	switch f {
	case FilterActive, FilterArchived, FilterAll:
		return true
	}
	return false
}

// ListEntriesFilter narrows ListByLocation.
type ListEntriesFilter struct {
	SeriesID *uuid.UUID
	Archived ArchivedFilter
}

// ScheduleRepository handles schedule series/entry persistence, including
// the per-occurrence relation sets.
type ScheduleRepository struct {
	q database.Queryer
}

func NewScheduleRepository(db database.IDatabase) *ScheduleRepository {
	return &ScheduleRepository{q: db.SQLx()}
}

type ScheduleRepositoryInterface interface {
	WithTx(tx *sqlx.Tx) ScheduleRepositoryInterface

	CreateSeries(ctx context.Context, series *entity.ScheduleSeries) error
	GetSeriesByID(ctx context.Context, id uuid.UUID) (*entity.ScheduleSeries, error)

	CreateEntry(ctx context.Context, entry *entity.ScheduleEntry) error
	GetEntryByID(ctx context.Context, id uuid.UUID) (*entity.ScheduleEntry, error)
	UpdateEntry(ctx context.Context, entry *entity.ScheduleEntry) error
	SetSkipped(ctx context.Context, id uuid.UUID, skipped bool) error
	SetArchived(ctx context.Context, ids []uuid.UUID, archivedAt *time.Time) error

	ListByLocation(ctx context.Context, locationID uuid.UUID, filter ListEntriesFilter) ([]entity.ScheduleEntry, error)
	ListSeriesEntriesFrom(ctx context.Context, seriesID uuid.UUID, fromDate time.Time) ([]entity.ScheduleEntry, error)
	ListConflictCandidates(ctx context.Context, locationID uuid.UUID, from, to time.Time) ([]entity.ScheduleEntry, error)

	LoadRelations(ctx context.Context, entries ...*entity.ScheduleEntry) error
	ReplaceTutors(ctx context.Context, entryID uuid.UUID, tutorIDs []uuid.UUID) error
	ReplaceRooms(ctx context.Context, entryID uuid.UUID, roomIDs []uuid.UUID) error
	AddStudents(ctx context.Context, entryID uuid.UUID, studentIDs []uuid.UUID) error
	RemoveStudents(ctx context.Context, entryID uuid.UUID, studentIDs []uuid.UUID) error
}

// WithTx returns a copy of the repository bound to the transaction, so the
// whole series creation runs as one atomic unit.
func (r *ScheduleRepository) WithTx(tx *sqlx.Tx) ScheduleRepositoryInterface {
	return &ScheduleRepository{q: tx}
}

// ===================== Series =====================

func (r *ScheduleRepository) CreateSeries(ctx context.Context, series *entity.ScheduleSeries) error {
	query := `
		INSERT INTO schedule_series (id, organization_id, location_id, pattern, day_of_week,
			start_date, session_time, duration_minutes, buffer_minutes,
			occurrence_count, end_date, service_code, subject_id, topic_id, capacity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at
	`
	err := r.q.GetContext(ctx, &series.CreatedAt, query,
		series.ID, series.OrganizationID, series.LocationID, series.Pattern, series.DayOfWeek,
		series.StartDate, series.SessionTime, series.DurationMinutes, series.BufferMinutes,
		series.OccurrenceCount, series.EndDate, series.ServiceCode, series.SubjectID, series.TopicID,
		series.Capacity)
	if err != nil {
		logger.Error("ScheduleRepository:CreateSeries", err)
		return err
	}
	return nil
}

func (r *ScheduleRepository) GetSeriesByID(ctx context.Context, id uuid.UUID) (*entity.ScheduleSeries, error) {
	query := `
		SELECT id, organization_id, location_id, pattern, day_of_week, start_date, session_time,
		       duration_minutes, buffer_minutes, occurrence_count, end_date, service_code,
		       subject_id, topic_id, capacity, created_at
		FROM schedule_series WHERE id = $1
	`
	var series entity.ScheduleSeries
	err := r.q.GetContext(ctx, &series, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.Error("ScheduleRepository:GetSeriesByID", err)
		return nil, err
	}
	return &series, nil
}

// ===================== Entries =====================

const entryColumns = `
	id, series_id, organization_id, location_id, occurrence_date, start_time, end_time,
	duration_minutes, buffer_minutes, capacity, is_exception, is_skipped, archived_at,
	resources_note, created_at, updated_at`

func (r *ScheduleRepository) CreateEntry(ctx context.Context, entry *entity.ScheduleEntry) error {
	query := `
		INSERT INTO schedule_entries (id, series_id, organization_id, location_id,
			occurrence_date, start_time, end_time, duration_minutes, buffer_minutes,
			capacity, is_exception, is_skipped, resources_note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`
	row := r.q.QueryRowxContext(ctx, query,
		entry.ID, entry.SeriesID, entry.OrganizationID, entry.LocationID,
		entry.OccurrenceDate, entry.StartTime, entry.EndTime,
		entry.DurationMinutes, entry.BufferMinutes,
		entry.Capacity, entry.IsException, entry.IsSkipped, entry.ResourcesNote)
	if err := row.Scan(&entry.CreatedAt, &entry.UpdatedAt); err != nil {
		logger.Error("ScheduleRepository:CreateEntry", err)
		return err
	}
	return nil
}

func (r *ScheduleRepository) GetEntryByID(ctx context.Context, id uuid.UUID) (*entity.ScheduleEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM schedule_entries WHERE id = $1`
	var entry entity.ScheduleEntry
	err := r.q.GetContext(ctx, &entry, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.Error("ScheduleRepository:GetEntryByID", err)
		return nil, err
	}
	return &entry, nil
}

func (r *ScheduleRepository) UpdateEntry(ctx context.Context, entry *entity.ScheduleEntry) error {
	query := `
		UPDATE schedule_entries
		SET occurrence_date = $2, start_time = $3, end_time = $4, duration_minutes = $5,
		    buffer_minutes = $6, capacity = $7, is_exception = $8, is_skipped = $9,
		    archived_at = $10, resources_note = $11, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.q.ExecContext(ctx, query,
		entry.ID, entry.OccurrenceDate, entry.StartTime, entry.EndTime, entry.DurationMinutes,
		entry.BufferMinutes, entry.Capacity, entry.IsException, entry.IsSkipped,
		entry.ArchivedAt, entry.ResourcesNote)
	if err != nil {
		logger.Error("ScheduleRepository:UpdateEntry", err)
		return err
	}
	return nil
}

func (r *ScheduleRepository) SetSkipped(ctx context.Context, id uuid.UUID, skipped bool) error {
	query := `UPDATE schedule_entries SET is_skipped = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.q.ExecContext(ctx, query, id, skipped); err != nil {
		logger.Error("ScheduleRepository:SetSkipped", err)
		return err
	}
	return nil
}

func (r *ScheduleRepository) SetArchived(ctx context.Context, ids []uuid.UUID, archivedAt *time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE schedule_entries SET archived_at = $2, updated_at = NOW() WHERE id = ANY($1::uuid[])`
	if _, err := r.q.ExecContext(ctx, query, pq.Array(uuidStrings(ids)), archivedAt); err != nil {
		logger.Error("ScheduleRepository:SetArchived", err)
		return err
	}
	return nil
}

func (r *ScheduleRepository) ListByLocation(ctx context.Context, locationID uuid.UUID, filter ListEntriesFilter) ([]entity.ScheduleEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM schedule_entries WHERE location_id = $1`
	args := []any{locationID}

	if filter.SeriesID != nil {
		query += ` AND series_id = $2`
		args = append(args, *filter.SeriesID)
	}

	switch filter.Archived {
	case FilterArchived:
		query += ` AND (archived_at IS NOT NULL OR is_skipped)`
	case FilterAll:
		// no extra predicate
	default:
		query += ` AND archived_at IS NULL AND NOT is_skipped`
	}

	query += ` ORDER BY occurrence_date, start_time`

	var entries []entity.ScheduleEntry
	if err := r.q.SelectContext(ctx, &entries, query, args...); err != nil {
		logger.Error("ScheduleRepository:ListByLocation", err)
		return nil, err
	}
	return entries, nil
}

func (r *ScheduleRepository) ListSeriesEntriesFrom(ctx context.Context, seriesID uuid.UUID, fromDate time.Time) ([]entity.ScheduleEntry, error) {
	query := `SELECT ` + entryColumns + `
		FROM schedule_entries
		WHERE series_id = $1 AND occurrence_date >= $2
		ORDER BY occurrence_date, start_time`
	var entries []entity.ScheduleEntry
	if err := r.q.SelectContext(ctx, &entries, query, seriesID, fromDate); err != nil {
		logger.Error("ScheduleRepository:ListSeriesEntriesFrom", err)
		return nil, err
	}
	return entries, nil
}

// ListConflictCandidates returns the active entries at a location whose
// buffer-inclusive window intersects [from, to). Run inside the creation
// transaction it sees occurrences inserted moments earlier, so conflicts
// within a new series are detected too.
func (r *ScheduleRepository) ListConflictCandidates(ctx context.Context, locationID uuid.UUID, from, to time.Time) ([]entity.ScheduleEntry, error) {
	query := `SELECT ` + entryColumns + `
		FROM schedule_entries
		WHERE location_id = $1
		  AND archived_at IS NULL AND NOT is_skipped
		  AND start_time < $3 AND end_time > $2
		ORDER BY start_time`
	var entries []entity.ScheduleEntry
	if err := r.q.SelectContext(ctx, &entries, query, locationID, from, to); err != nil {
		logger.Error("ScheduleRepository:ListConflictCandidates", err)
		return nil, err
	}
	return entries, nil
}

// ===================== Relation sets =====================

type entryRelationRow struct {
	EntryID   uuid.UUID `db:"schedule_entry_id"`
	RelatedID uuid.UUID `db:"related_id"`
}

// LoadRelations fills the tutor/room/attendee id sets for the given entries.
func (r *ScheduleRepository) LoadRelations(ctx context.Context, entries ...*entity.ScheduleEntry) error {
	if len(entries) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*entity.ScheduleEntry, len(entries))
	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		e.TutorIDs = nil
		e.RoomIDs = nil
		e.AttendeeStudentIDs = nil
		byID[e.ID] = e
		ids = append(ids, e.ID)
	}
	arr := pq.Array(uuidStrings(ids))

	queries := []struct {
		sql    string
		assign func(e *entity.ScheduleEntry, id uuid.UUID)
	}{
		{
			`SELECT schedule_entry_id, tutor_id AS related_id FROM schedule_entry_tutors
			 WHERE schedule_entry_id = ANY($1::uuid[]) ORDER BY schedule_entry_id, position`,
			func(e *entity.ScheduleEntry, id uuid.UUID) { e.TutorIDs = append(e.TutorIDs, id) },
		},
		{
			`SELECT schedule_entry_id, room_id AS related_id FROM schedule_entry_rooms
			 WHERE schedule_entry_id = ANY($1::uuid[]) ORDER BY schedule_entry_id, position`,
			func(e *entity.ScheduleEntry, id uuid.UUID) { e.RoomIDs = append(e.RoomIDs, id) },
		},
		{
			`SELECT schedule_entry_id, student_id AS related_id FROM schedule_entry_students
			 WHERE schedule_entry_id = ANY($1::uuid[]) ORDER BY schedule_entry_id, created_at`,
			func(e *entity.ScheduleEntry, id uuid.UUID) { e.AttendeeStudentIDs = append(e.AttendeeStudentIDs, id) },
		},
	}

	for _, q := range queries {
		var rows []entryRelationRow
		if err := r.q.SelectContext(ctx, &rows, q.sql, arr); err != nil {
			logger.Error("ScheduleRepository:LoadRelations", err)
			return err
		}
		for _, row := range rows {
			if e, ok := byID[row.EntryID]; ok {
				q.assign(e, row.RelatedID)
			}
		}
	}
	return nil
}

func (r *ScheduleRepository) ReplaceTutors(ctx context.Context, entryID uuid.UUID, tutorIDs []uuid.UUID) error {
	return r.replaceOrdered(ctx, entryID, tutorIDs,
		`DELETE FROM schedule_entry_tutors WHERE schedule_entry_id = $1`,
		`INSERT INTO schedule_entry_tutors (schedule_entry_id, tutor_id, position) VALUES ($1, $2, $3)`)
}

func (r *ScheduleRepository) ReplaceRooms(ctx context.Context, entryID uuid.UUID, roomIDs []uuid.UUID) error {
	return r.replaceOrdered(ctx, entryID, roomIDs,
		`DELETE FROM schedule_entry_rooms WHERE schedule_entry_id = $1`,
		`INSERT INTO schedule_entry_rooms (schedule_entry_id, room_id, position) VALUES ($1, $2, $3)`)
}

func (r *ScheduleRepository) replaceOrdered(ctx context.Context, entryID uuid.UUID, ids []uuid.UUID, deleteSQL, insertSQL string) error {
	if _, err := r.q.ExecContext(ctx, deleteSQL, entryID); err != nil {
		logger.Error("ScheduleRepository:replaceOrdered:Delete", err)
		return err
	}
	for i, id := range ids {
		if _, err := r.q.ExecContext(ctx, insertSQL, entryID, id, i); err != nil {
			logger.Error("ScheduleRepository:replaceOrdered:Insert", err)
			return err
		}
	}
	return nil
}

func (r *ScheduleRepository) AddStudents(ctx context.Context, entryID uuid.UUID, studentIDs []uuid.UUID) error {
	query := `
		INSERT INTO schedule_entry_students (schedule_entry_id, student_id)
		VALUES ($1, $2)
		ON CONFLICT (schedule_entry_id, student_id) DO NOTHING
	`
	for _, id := range studentIDs {
		if _, err := r.q.ExecContext(ctx, query, entryID, id); err != nil {
			logger.Error("ScheduleRepository:AddStudents", err)
			return err
		}
	}
	return nil
}

func (r *ScheduleRepository) RemoveStudents(ctx context.Context, entryID uuid.UUID, studentIDs []uuid.UUID) error {
	if len(studentIDs) == 0 {
		return nil
	}
	query := `DELETE FROM schedule_entry_students WHERE schedule_entry_id = $1 AND student_id = ANY($2::uuid[])`
	if _, err := r.q.ExecContext(ctx, query, entryID, pq.Array(uuidStrings(studentIDs))); err != nil {
		logger.Error("ScheduleRepository:RemoveStudents", err)
		return err
	}
	return nil
}

// ===================== Error classification =====================

// IsUniqueViolation reports whether err is a Postgres unique violation, so
// the service can surface it as a domain error instead of a raw storage
// error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// IsForeignKeyViolation reports whether err is a Postgres FK violation.
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
