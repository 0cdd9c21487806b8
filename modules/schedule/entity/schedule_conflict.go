package entity

import (
	"time"

	"github.com/google/uuid"
)

// ConflictType classifies why two occurrences collide. Listing order is
// TUTOR before ROOM before LOCATION_OVERLAP/BUFFER so the most actionable
// conflict surfaces first.
type ConflictType string

const (
	ConflictTutor           ConflictType = "TUTOR"
	ConflictRoom            ConflictType = "ROOM"
	ConflictLocationOverlap ConflictType = "LOCATION_OVERLAP"
	ConflictBuffer          ConflictType = "BUFFER"
)

// ScheduleConflict records an overlap found at creation/update time.
// Conflicts are warnings, not blockers: the entry is persisted regardless
// and the conflict surfaces for manual resolution.
type ScheduleConflict struct {
	ID                         uuid.UUID    `db:"id" json:"id"`
	OrganizationID             uuid.UUID    `db:"organization_id" json:"organization_id"`
	ScheduleEntryID            uuid.UUID    `db:"schedule_entry_id" json:"schedule_entry_id"`
	ConflictingScheduleEntryID uuid.UUID    `db:"conflicting_schedule_entry_id" json:"conflicting_schedule_entry_id"`
	ConflictType               ConflictType `db:"conflict_type" json:"conflict_type"`
	ResolvedAt                 *time.Time   `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedByUserID           *uuid.UUID   `db:"resolved_by_user_id" json:"resolved_by_user_id,omitempty"`
	CreatedAt                  time.Time    `db:"created_at" json:"created_at"`
}

// References reports whether the conflict involves the given entry on
// either side. Pair membership is order-independent.
func (c *ScheduleConflict) References(entryID uuid.UUID) bool {
	return c.ScheduleEntryID == entryID || c.ConflictingScheduleEntryID == entryID
}
