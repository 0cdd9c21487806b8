package dto

import (
	"time"

	"github.com/google/uuid"

	"tutorbase/modules/schedule/entity"
)

// ===================== Request DTOs =====================

// CreateScheduleEntryRequest creates an ad-hoc occurrence or a recurring
// series, depending on pattern.
type CreateScheduleEntryRequest struct {
	LocationID      string   `json:"location_id" validate:"required,uuid"`
	Pattern         string   `json:"pattern" validate:"required,oneof=DAILY WEEKLY AD_HOC"`
	DayOfWeek       *int     `json:"day_of_week" validate:"omitempty,min=0,max=6"` // 0 = Sunday
	StartDate       string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	SessionTime     string   `json:"session_time" validate:"required,datetime=15:04"`
	DurationMinutes int      `json:"duration_minutes" validate:"required,min=15,max=480"`
	BufferMinutes   int      `json:"buffer_minutes" validate:"min=0,max=120"`
	OccurrenceCount *int     `json:"occurrence_count" validate:"omitempty,min=1"`
	EndDate         *string  `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	ServiceCode     string   `json:"service_code"`
	SubjectID       *string  `json:"subject_id" validate:"omitempty,uuid"`
	TopicID         *string  `json:"topic_id" validate:"omitempty,uuid"`
	Capacity        int      `json:"capacity" validate:"required,min=1"`
	TutorIDs        []string `json:"tutor_ids" validate:"dive,uuid"`
	RoomIDs         []string `json:"room_ids" validate:"dive,uuid"`
	StudentIDs      []string `json:"student_ids" validate:"dive,uuid"`
	ResourcesNote   string   `json:"resources_note"`
}

// UpdateScheduleEntryRequest carries per-field overrides. Nil fields are
// left untouched.
type UpdateScheduleEntryRequest struct {
	SessionTime     *string   `json:"session_time" validate:"omitempty,datetime=15:04"`
	DurationMinutes *int      `json:"duration_minutes" validate:"omitempty,min=15,max=480"`
	BufferMinutes   *int      `json:"buffer_minutes" validate:"omitempty,min=0,max=120"`
	Capacity        *int      `json:"capacity" validate:"omitempty,min=1"`
	TutorIDs        *[]string `json:"tutor_ids" validate:"omitempty,dive,uuid"`
	RoomIDs         *[]string `json:"room_ids" validate:"omitempty,dive,uuid"`
	ResourcesNote   *string   `json:"resources_note"`
}

// RestoreExceptionRequest resets recorded overrides to the series template,
// then applies any supplied replacement fields.
type RestoreExceptionRequest = UpdateScheduleEntryRequest

// AttendeeChangeRequest adds/removes students on an occurrence.
type AttendeeChangeRequest struct {
	Add    []string `json:"add" validate:"dive,uuid"`
	Remove []string `json:"remove" validate:"dive,uuid"`
}

// ===================== Response DTOs =====================

type ScheduleEntryResponse struct {
	ID                 string     `json:"id"`
	SeriesID           string     `json:"series_id,omitempty"`
	LocationID         string     `json:"location_id"`
	OccurrenceDate     string     `json:"occurrence_date"` // YYYY-MM-DD
	StartTime          time.Time  `json:"start_time"`
	EndTime            time.Time  `json:"end_time"`
	DurationMinutes    int        `json:"duration_minutes"`
	BufferMinutes      int        `json:"buffer_minutes"`
	Capacity           int        `json:"capacity"`
	IsException        bool       `json:"is_exception"`
	IsSkipped          bool       `json:"is_skipped"`
	ArchivedAt         *time.Time `json:"archived_at,omitempty"`
	ResourcesNote      string     `json:"resources_note,omitempty"`
	TutorIDs           []string   `json:"tutor_ids"`
	RoomIDs            []string   `json:"room_ids"`
	AttendeeStudentIDs []string   `json:"attendee_student_ids"`
	Conflicts          []ConflictResponse `json:"conflicts,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

type ConflictResponse struct {
	ID                         string     `json:"id"`
	ScheduleEntryID            string     `json:"schedule_entry_id"`
	ConflictingScheduleEntryID string     `json:"conflicting_schedule_entry_id"`
	ConflictType               string     `json:"conflict_type"`
	ResolvedAt                 *time.Time `json:"resolved_at,omitempty"`
	ResolvedByUserID           string     `json:"resolved_by_user_id,omitempty"`
	CreatedAt                  time.Time  `json:"created_at"`
}

// CreateScheduleResponse summarizes a created series (or single entry) plus
// any conflicts detected along the way. Conflicts are warnings: creation
// succeeded regardless.
type CreateScheduleResponse struct {
	SeriesID  string                  `json:"series_id,omitempty"`
	Entries   []ScheduleEntryResponse `json:"entries"`
	Conflicts []ConflictResponse      `json:"conflicts"`
}

// ScopedMutationResponse reports the occurrences a scoped mutation touched.
type ScopedMutationResponse struct {
	UpdatedEntries []ScheduleEntryResponse `json:"updated_entries"`
	Conflicts      []ConflictResponse      `json:"conflicts"`
}

// ===================== Mapper Functions =====================

func ToEntryResponse(e *entity.ScheduleEntry) *ScheduleEntryResponse {
	resp := &ScheduleEntryResponse{
		ID:                 e.ID.String(),
		LocationID:         e.LocationID.String(),
		OccurrenceDate:     e.OccurrenceDate.Format("2006-01-02"),
		StartTime:          e.StartTime,
		EndTime:            e.EndTime,
		DurationMinutes:    e.DurationMinutes,
		BufferMinutes:      e.BufferMinutes,
		Capacity:           e.Capacity,
		IsException:        e.IsException,
		IsSkipped:          e.IsSkipped,
		ArchivedAt:         e.ArchivedAt,
		TutorIDs:           uuidsToStrings(e.TutorIDs),
		RoomIDs:            uuidsToStrings(e.RoomIDs),
		AttendeeStudentIDs: uuidsToStrings(e.AttendeeStudentIDs),
		CreatedAt:          e.CreatedAt,
	}
	if e.SeriesID != nil {
		resp.SeriesID = e.SeriesID.String()
	}
	if e.ResourcesNote != nil {
		resp.ResourcesNote = *e.ResourcesNote
	}
	return resp
}

func ToConflictResponse(c *entity.ScheduleConflict) *ConflictResponse {
	resp := &ConflictResponse{
		ID:                         c.ID.String(),
		ScheduleEntryID:            c.ScheduleEntryID.String(),
		ConflictingScheduleEntryID: c.ConflictingScheduleEntryID.String(),
		ConflictType:               string(c.ConflictType),
		ResolvedAt:                 c.ResolvedAt,
		CreatedAt:                  c.CreatedAt,
	}
	if c.ResolvedByUserID != nil {
		resp.ResolvedByUserID = c.ResolvedByUserID.String()
	}
	return resp
}

func uuidsToStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
