package entity

import (
	"time"

	"github.com/google/uuid"
)

// RecurrencePattern selects how a series expands into occurrences.
type RecurrencePattern string

const (
	PatternDaily  RecurrencePattern = "DAILY"
	PatternWeekly RecurrencePattern = "WEEKLY"
	PatternAdHoc  RecurrencePattern = "AD_HOC"
)

func (p RecurrencePattern) Valid() bool {
	switch p {
	case PatternDaily, PatternWeekly, PatternAdHoc:
		return true
	}
	return false
}

// ScheduleSeries is the recurrence definition that generates occurrences.
type ScheduleSeries struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	OrganizationID  uuid.UUID         `db:"organization_id" json:"organization_id"`
	LocationID      uuid.UUID         `db:"location_id" json:"location_id"`
	Pattern         RecurrencePattern `db:"pattern" json:"pattern"`
	DayOfWeek       *int              `db:"day_of_week" json:"day_of_week,omitempty"` // 0 = Sunday .. 6 = Saturday, weekly only
	StartDate       time.Time         `db:"start_date" json:"start_date"`
	SessionTime     string            `db:"session_time" json:"session_time"` // "15:04"
	DurationMinutes int               `db:"duration_minutes" json:"duration_minutes"`
	BufferMinutes   int               `db:"buffer_minutes" json:"buffer_minutes"`
	OccurrenceCount *int              `db:"occurrence_count" json:"occurrence_count,omitempty"`
	EndDate         *time.Time        `db:"end_date" json:"end_date,omitempty"`
	ServiceCode     *string           `db:"service_code" json:"service_code,omitempty"`
	SubjectID       *uuid.UUID        `db:"subject_id" json:"subject_id,omitempty"`
	TopicID         *uuid.UUID        `db:"topic_id" json:"topic_id,omitempty"`
	Capacity        int               `db:"capacity" json:"capacity"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
}

// ScheduleEntry is one concrete, dated occurrence. Duration, buffer and
// capacity are denormalized from the series so per-occurrence exceptions can
// override them independently.
type ScheduleEntry struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	SeriesID        *uuid.UUID `db:"series_id" json:"series_id,omitempty"` // nil for ad-hoc
	OrganizationID  uuid.UUID  `db:"organization_id" json:"organization_id"`
	LocationID      uuid.UUID  `db:"location_id" json:"location_id"`
	OccurrenceDate  time.Time  `db:"occurrence_date" json:"occurrence_date"`
	StartTime       time.Time  `db:"start_time" json:"start_time"`
	EndTime         time.Time  `db:"end_time" json:"end_time"` // start + duration + buffer
	DurationMinutes int        `db:"duration_minutes" json:"duration_minutes"`
	BufferMinutes   int        `db:"buffer_minutes" json:"buffer_minutes"`
	Capacity        int        `db:"capacity" json:"capacity"`
	IsException     bool       `db:"is_exception" json:"is_exception"`
	IsSkipped       bool       `db:"is_skipped" json:"is_skipped"`
	ArchivedAt      *time.Time `db:"archived_at" json:"archived_at,omitempty"`
	ResourcesNote   *string    `db:"resources_note" json:"resources_note,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`

	// Relation sets, loaded from the join tables.
	TutorIDs           []uuid.UUID `db:"-" json:"tutor_ids"`
	RoomIDs            []uuid.UUID `db:"-" json:"room_ids"`
	AttendeeStudentIDs []uuid.UUID `db:"-" json:"attendee_student_ids"`
}

// Active reports whether the entry participates in conflict detection and
// capacity accounting.
func (e *ScheduleEntry) Active() bool {
	return !e.IsSkipped && e.ArchivedAt == nil
}

// BookableEnd is the end of the teachable session, excluding buffer.
func (e *ScheduleEntry) BookableEnd() time.Time {
	return e.StartTime.Add(time.Duration(e.DurationMinutes) * time.Minute)
}

// Overlaps applies the half-open interval test over the buffer-inclusive
// ranges: back-to-back sessions do not overlap, touching buffers do.
func (e *ScheduleEntry) Overlaps(other *ScheduleEntry) bool {
	return e.StartTime.Before(other.EndTime) && other.StartTime.Before(e.EndTime)
}

// HasTutor reports membership in the ordered tutor set.
func (e *ScheduleEntry) HasTutor(id uuid.UUID) bool {
	for _, t := range e.TutorIDs {
		if t == id {
			return true
		}
	}
	return false
}

func (e *ScheduleEntry) HasRoom(id uuid.UUID) bool {
	for _, r := range e.RoomIDs {
		if r == id {
			return true
		}
	}
	return false
}
