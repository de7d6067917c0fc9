package inventory

import "time"

// CreateEventRequest creates a new inventory record for an event
type CreateEventRequest struct {
	Name                 string    `json:"name" binding:"required,min=1,max=255"`
	TotalCapacity        int       `json:"total_capacity" binding:"required,min=1"`
	MaxTicketsPerBooking int       `json:"max_tickets_per_booking" binding:"omitempty,min=1,max=50"`
	BasePrice            float64   `json:"base_price" binding:"required,min=0"`
	StartsAt             time.Time `json:"starts_at" binding:"required"`
}

// UpdateCapacityRequest resizes an event. Version is the optimistic lock
// token read by the caller, a stale version is rejected.
type UpdateCapacityRequest struct {
	TotalCapacity  int `json:"total_capacity" binding:"required,min=1"`
	AvailableSeats int `json:"available_seats" binding:"min=0"`
	Version        int `json:"version" binding:"required,min=1"`
}
