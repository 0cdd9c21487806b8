package service

import (
	"github.com/google/uuid"

	orgentity "tutorbase/modules/org/entity"
	"tutorbase/modules/schedule/entity"
)

// ConflictDescriptor names one detected collision between the candidate and
// an existing occurrence.
type ConflictDescriptor struct {
	EntryID      uuid.UUID
	OtherEntryID uuid.UUID
	Type         entity.ConflictType
}

// ConflictDetector finds overlaps between a proposed occurrence and the
// active occurrences already persisted at the same location. Pure over its
// inputs; callers load candidates and relations first.
type ConflictDetector struct{}

func NewConflictDetector() *ConflictDetector {
	return &ConflictDetector{}
}

// FindConflicts reports at most one conflict per existing entry, classified
// by priority: TUTOR over ROOM over LOCATION_OVERLAP/BUFFER. The overlap
// test is half-open over the buffer-inclusive window, so back-to-back
// sessions are clean while touching buffers collide. Skipped and archived
// occurrences are inert on both sides.
func (cd *ConflictDetector) FindConflicts(candidate *entity.ScheduleEntry, existing []entity.ScheduleEntry, location *orgentity.Location) []ConflictDescriptor {
	if !candidate.Active() {
		return nil
	}

	var conflicts []ConflictDescriptor
	var overlapping []*entity.ScheduleEntry

	for i := range existing {
		other := &existing[i]
		if other.ID == candidate.ID || !other.Active() || other.LocationID != candidate.LocationID {
			continue
		}
		if !candidate.Overlaps(other) {
			continue
		}
		overlapping = append(overlapping, other)

		// Overlap confined to buffer time is a BUFFER conflict; overlap of
		// the bookable windows classifies by the shared resource.
		coreOverlap := candidate.StartTime.Before(other.BookableEnd()) &&
			other.StartTime.Before(candidate.BookableEnd())

		switch {
		case coreOverlap && sharesTutor(candidate, other):
			conflicts = append(conflicts, ConflictDescriptor{candidate.ID, other.ID, entity.ConflictTutor})
		case coreOverlap && sharesRoom(candidate, other):
			conflicts = append(conflicts, ConflictDescriptor{candidate.ID, other.ID, entity.ConflictRoom})
		case !coreOverlap && (sharesTutor(candidate, other) || sharesRoom(candidate, other)):
			conflicts = append(conflicts, ConflictDescriptor{candidate.ID, other.ID, entity.ConflictBuffer})
		}
	}

	// A virtual-capacity-limited location collides when concurrent active
	// sessions would exceed its capacity, regardless of shared resources.
	if location != nil && location.IsVirtual && location.VirtualCapacity != nil &&
		len(overlapping)+1 > *location.VirtualCapacity {
		paired := make(map[uuid.UUID]struct{}, len(conflicts))
		for _, c := range conflicts {
			paired[c.OtherEntryID] = struct{}{}
		}
		for _, other := range overlapping {
			if _, ok := paired[other.ID]; ok {
				continue
			}
			conflicts = append(conflicts, ConflictDescriptor{candidate.ID, other.ID, entity.ConflictLocationOverlap})
		}
	}

	return conflicts
}

func sharesTutor(a, b *entity.ScheduleEntry) bool {
	for _, id := range a.TutorIDs {
		if b.HasTutor(id) {
			return true
		}
	}
	return false
}

func sharesRoom(a, b *entity.ScheduleEntry) bool {
	for _, id := range a.RoomIDs {
		if b.HasRoom(id) {
			return true
		}
	}
	return false
}
