package bookings

import "time"

// ReservationResponse is returned by reserve and the internal lookups
type ReservationResponse struct {
	ReservationID    string    `json:"reservation_id"`
	EventID          string    `json:"event_id"`
	Quantity         int       `json:"quantity"`
	Status           string    `json:"status"`
	TotalAmount      float64   `json:"total_amount"`
	BookingReference string    `json:"booking_reference"`
	ExpiresAt        time.Time `json:"expires_at"`
	Replayed         bool      `json:"replayed,omitempty"`
}

func toReservationResponse(r *Reservation, replayed bool) ReservationResponse {
	return ReservationResponse{
		ReservationID:    r.ReservationID.String(),
		EventID:          r.EventID.String(),
		Quantity:         r.Quantity,
		Status:           r.Status.String(),
		TotalAmount:      r.TotalAmount,
		BookingReference: r.BookingReference,
		ExpiresAt:        r.ExpiresAt,
		Replayed:         replayed,
	}
}

// BookingResponse is the public shape of a booking
type BookingResponse struct {
	BookingID        string     `json:"booking_id"`
	BookingReference string     `json:"booking_reference"`
	EventID          string     `json:"event_id"`
	Quantity         int        `json:"quantity"`
	Status           string     `json:"status"`
	TotalAmount      float64    `json:"total_amount"`
	TicketURL        string     `json:"ticket_url,omitempty"`
	PaymentMethod    string     `json:"payment_method,omitempty"`
	PaymentStatus    string     `json:"payment_status,omitempty"`
	RefundAmount     float64    `json:"refund_amount,omitempty"`
	ConfirmedAt      time.Time  `json:"confirmed_at"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
}

func toBookingResponse(b *Booking) BookingResponse {
	return BookingResponse{
		BookingID:        b.BookingID.String(),
		BookingReference: b.BookingReference,
		EventID:          b.EventID.String(),
		Quantity:         b.Quantity,
		Status:           b.Status.String(),
		TotalAmount:      b.TotalAmount,
		TicketURL:        b.TicketURL,
		PaymentMethod:    b.PaymentMethod,
		PaymentStatus:    b.PaymentStatus,
		RefundAmount:     b.RefundAmount,
		ConfirmedAt:      b.ConfirmedAt,
		CancelledAt:      b.CancelledAt,
	}
}

// UserBookingsResponse wraps a paginated booking history
type UserBookingsResponse struct {
	Bookings []BookingResponse `json:"bookings"`
	Total    int64             `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// CancelResponse is returned after a successful cancellation
type CancelResponse struct {
	Message      string  `json:"message"`
	BookingID    string  `json:"booking_id"`
	RefundAmount float64 `json:"refund_amount"`
}

// ExpireSweepResponse reports an internal sweep run
type ExpireSweepResponse struct {
	Expired int `json:"expired"`
}
