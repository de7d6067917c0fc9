package inventory

import (
	"time"

	"github.com/google/uuid"
)

// EventResponse is the public shape of an inventory record
type EventResponse struct {
	EventID              uuid.UUID `json:"event_id"`
	Name                 string    `json:"name"`
	TotalCapacity        int       `json:"total_capacity"`
	AvailableSeats       int       `json:"available_seats"`
	MaxTicketsPerBooking int       `json:"max_tickets_per_booking"`
	BasePrice            float64   `json:"base_price"`
	StartsAt             time.Time `json:"starts_at"`
	SoldOut              bool      `json:"sold_out"`
	Version              int       `json:"version"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func toEventResponse(inv *EventInventory) EventResponse {
	return EventResponse{
		EventID:              inv.EventID,
		Name:                 inv.Name,
		TotalCapacity:        inv.TotalCapacity,
		AvailableSeats:       inv.AvailableSeats,
		MaxTicketsPerBooking: inv.MaxTicketsPerBooking,
		BasePrice:            inv.BasePrice,
		StartsAt:             inv.StartsAt,
		SoldOut:              inv.IsSoldOut(),
		Version:              inv.Version,
		CreatedAt:            inv.CreatedAt,
		UpdatedAt:            inv.UpdatedAt,
	}
}

// EventListResponse wraps a paginated event listing
type EventListResponse struct {
	Events []EventResponse `json:"events"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}
