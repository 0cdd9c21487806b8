package dto

import (
	"time"

	"tutorbase/modules/org/entity"
)

// CreateLocationRequest for registering a teaching site
type CreateLocationRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=120"`
	IsVirtual       bool   `json:"is_virtual"`
	VirtualCapacity *int   `json:"virtual_capacity"`
}

// LocationResponse for location details
type LocationResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Slug            string    `json:"slug"`
	IsVirtual       bool      `json:"is_virtual"`
	VirtualCapacity *int      `json:"virtual_capacity,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func ToLocationResponse(l *entity.Location) *LocationResponse {
	return &LocationResponse{
		ID:              l.ID.String(),
		Name:            l.Name,
		Slug:            l.Slug,
		IsVirtual:       l.IsVirtual,
		VirtualCapacity: l.VirtualCapacity,
		CreatedAt:       l.CreatedAt,
	}
}
