package waitlist

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WaitlistStatus represents the status of a waitlist entry
type WaitlistStatus string

const (
	// StatusWaiting means the user holds a queue position.
	StatusWaiting WaitlistStatus = "waiting"

	// StatusOffered means the user was promoted and has a time-limited
	// window to book. Offered entries leave the queue ordering.
	StatusOffered WaitlistStatus = "offered"

	// StatusConverted means the user booked while their offer was live.
	StatusConverted WaitlistStatus = "converted"

	// StatusCancelled means the user left the waitlist.
	StatusCancelled WaitlistStatus = "cancelled"
)

// IsActive reports whether the entry still participates in the waitlist.
func (s WaitlistStatus) IsActive() bool {
	return s == StatusWaiting || s == StatusOffered
}

func (s WaitlistStatus) String() string {
	return string(s)
}

// WaitlistEntry mirrors the Redis queue in Postgres. The ZSet is the
// ordering authority, the row carries status and audit fields.
type WaitlistEntry struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	EventID        uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:idx_waitlist_event_user" json:"event_id"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:idx_waitlist_event_user" json:"user_id"`
	Quantity       int            `gorm:"not null" json:"quantity"`
	Status         WaitlistStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	JoinedAt       time.Time      `gorm:"not null" json:"joined_at"`
	OfferedAt      *time.Time     `json:"offered_at,omitempty"`
	OfferExpiresAt *time.Time     `gorm:"index" json:"offer_expires_at,omitempty"`
	ConvertedAt    *time.Time     `json:"converted_at,omitempty"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName sets the table name for WaitlistEntry
func (WaitlistEntry) TableName() string {
	return "waitlist_entries"
}

// HasLiveOffer reports whether an offer is still open as of now.
func (e *WaitlistEntry) HasLiveOffer(now time.Time) bool {
	return e.Status == StatusOffered && e.OfferExpiresAt != nil && now.Before(*e.OfferExpiresAt)
}

// GetQueueKey returns the ZSet key holding the FIFO ordering for an event.
func GetQueueKey(eventID uuid.UUID) string {
	return fmt.Sprintf("ticketly:waitlist:queue:%s", eventID)
}
