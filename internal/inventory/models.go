package inventory

import (
	"time"

	"github.com/google/uuid"
)

// EventInventory is the authoritative seat ledger for one event. It is the
// only owner of available_seats; every mutation goes through the conditional
// updates in the repository so the count can never be driven negative or
// above capacity, regardless of caller concurrency.
type EventInventory struct {
	EventID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"event_id"`
	Name                 string    `gorm:"type:varchar(255);not null" json:"name"`
	TotalCapacity        int       `gorm:"not null" json:"total_capacity"`
	AvailableSeats       int       `gorm:"not null" json:"available_seats"`
	MaxTicketsPerBooking int       `gorm:"not null;default:10" json:"max_tickets_per_booking"`
	BasePrice            float64   `gorm:"not null" json:"base_price"`
	StartsAt             time.Time `gorm:"not null" json:"starts_at"`
	Version              int       `gorm:"not null;default:1" json:"version"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// TableName sets the table name for EventInventory
func (EventInventory) TableName() string {
	return "event_inventory"
}

// IsSoldOut reports whether no seats remain.
func (e *EventInventory) IsSoldOut() bool {
	return e.AvailableSeats <= 0
}

// CanSatisfy reports whether a request for quantity seats could currently
// be served.
func (e *EventInventory) CanSatisfy(quantity int) bool {
	return quantity > 0 && e.AvailableSeats >= quantity
}
