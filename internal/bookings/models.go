package bookings

import (
	"time"

	"github.com/google/uuid"
)

// Reservation is a timed hold on seats. The unique index on idempotency_key
// is what collapses concurrent retries of the same reserve request into a
// single row.
type Reservation struct {
	ReservationID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"reservation_id"`
	EventID          uuid.UUID `gorm:"type:uuid;index;not null" json:"event_id"`
	UserID           uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Quantity         int       `gorm:"not null" json:"quantity"`
	IdempotencyKey   string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"idempotency_key"`
	Status           Status    `gorm:"type:varchar(20);index;default:'held'" json:"status"`
	TotalAmount      float64   `gorm:"not null" json:"total_amount"`
	BookingReference string    `gorm:"type:varchar(32);index" json:"booking_reference"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	ExpiresAt        time.Time `gorm:"index;not null" json:"expires_at"`
}

// Booking is the confirmed outcome of a reservation.
type Booking struct {
	BookingID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"booking_id"`
	ReservationID    uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"reservation_id"`
	EventID          uuid.UUID  `gorm:"type:uuid;index;not null" json:"event_id"`
	UserID           uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	Quantity         int        `gorm:"not null" json:"quantity"`
	BookingReference string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"booking_reference"`
	TotalAmount      float64    `gorm:"not null" json:"total_amount"`
	Status           Status     `gorm:"type:varchar(20);index;default:'confirmed'" json:"status"`
	TicketURL        string     `gorm:"type:varchar(512)" json:"ticket_url,omitempty"`
	TransactionID    string     `gorm:"type:varchar(64)" json:"transaction_id,omitempty"`
	PaymentMethod    string     `gorm:"type:varchar(50)" json:"payment_method,omitempty"`
	PaymentStatus    string     `gorm:"type:varchar(20)" json:"payment_status,omitempty"`
	RefundAmount     float64    `json:"refund_amount"`
	ConfirmedAt      time.Time  `json:"confirmed_at"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName sets the table name for Reservation
func (Reservation) TableName() string {
	return "reservations"
}

// TableName sets the table name for Booking
func (Booking) TableName() string {
	return "bookings"
}

// IsExpired reports whether the hold has lapsed as of now.
func (r *Reservation) IsExpired(now time.Time) bool {
	return r.Status == StatusHeld && now.After(r.ExpiresAt)
}

// IsActive reports whether the reservation still holds seats.
func (r *Reservation) IsActive(now time.Time) bool {
	return r.Status == StatusHeld && !now.After(r.ExpiresAt)
}

func (b *Booking) IsConfirmed() bool {
	return b.Status == StatusConfirmed
}

func (b *Booking) IsCancelled() bool {
	return b.Status == StatusCancelled
}
