package bookings

import "errors"

var (
	// ErrReservationNotFound is returned when no reservation matches.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrBookingNotFound is returned when no booking matches.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrReservationExpired is returned when the hold lapsed before the
	// caller acted on it.
	ErrReservationExpired = errors.New("reservation has expired")

	// ErrInvalidState is returned when the reservation is not in a status
	// that permits the requested transition.
	ErrInvalidState = errors.New("reservation is not in a valid state for this operation")

	// ErrIdempotencyConflict is returned when an idempotency key is reused
	// with a different request payload.
	ErrIdempotencyConflict = errors.New("idempotency key was already used with different parameters")

	// ErrNotOwner is returned when a user acts on a reservation they do
	// not own.
	ErrNotOwner = errors.New("reservation belongs to a different user")

	// ErrPaymentFailed is returned when the gateway declines the charge.
	// The hold is released and its seats go back to the ledger, the client
	// must reserve again to retry.
	ErrPaymentFailed = errors.New("payment failed")
)
