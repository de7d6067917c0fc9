package waitlist

import "time"

// PositionResponse reports where a user stands in an event waitlist.
// Position is 1-indexed and gap-free; 0 means the user holds a live offer
// and is out of the ordering.
type PositionResponse struct {
	EventID        string     `json:"event_id"`
	Status         string     `json:"status"`
	Position       int64      `json:"position"`
	TotalWaiting   int64      `json:"total_waiting"`
	Quantity       int        `json:"quantity"`
	OfferExpiresAt *time.Time `json:"offer_expires_at,omitempty"`
}
