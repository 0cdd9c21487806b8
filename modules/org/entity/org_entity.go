package entity

import (
	"github.com/google/uuid"

	coreEntity "tutorbase/core/entity"
)

// Location is a physical or virtual teaching site. Virtual locations carry
// an optional concurrent-session capacity and cannot have rooms.
type Location struct {
	OrganizationID  uuid.UUID `db:"organization_id" json:"organization_id"`
	Name            string    `db:"name" json:"name"`
	Slug            string    `db:"slug" json:"slug"`
	IsVirtual       bool      `db:"is_virtual" json:"is_virtual"`
	VirtualCapacity *int      `db:"virtual_capacity" json:"virtual_capacity,omitempty"`
	coreEntity.BaseEntity
}

type Room struct {
	LocationID uuid.UUID `db:"location_id" json:"location_id"`
	Name       string    `db:"name" json:"name"`
	Capacity   int       `db:"capacity" json:"capacity"`
	coreEntity.BaseEntity
}

type Tutor struct {
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	DisplayName    string    `db:"display_name" json:"display_name"`
	Email          string    `db:"email" json:"email"`
	coreEntity.BaseEntity
}

type Student struct {
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	DisplayName    string    `db:"display_name" json:"display_name"`
	coreEntity.BaseEntity
}
