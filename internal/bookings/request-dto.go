package bookings

// ReserveRequest holds seats behind an idempotency key
type ReserveRequest struct {
	EventID        string `json:"event_id" binding:"required,uuid" validate:"required,uuid"`
	Quantity       int    `json:"quantity" binding:"required,min=1" validate:"required,min=1"`
	IdempotencyKey string `json:"idempotency_key" binding:"required,min=1,max=255" validate:"required,min=1,max=255"`
}

// ConfirmRequest settles payment for a held reservation
type ConfirmRequest struct {
	ReservationID string `json:"reservation_id" binding:"required,uuid" validate:"required,uuid"`
	PaymentToken  string `json:"payment_token" binding:"required" validate:"required"`
	PaymentMethod string `json:"payment_method" binding:"required" validate:"required,oneof=card upi netbanking wallet"`
}
