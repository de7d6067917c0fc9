package inventory

import "errors"

var (
	// ErrEventNotFound indicates the ledger has no row for the event.
	ErrEventNotFound = errors.New("event not found in inventory")

	// ErrInsufficientSeats indicates the requested quantity exceeds the
	// seats currently available. Recoverable, callers may join the waitlist.
	ErrInsufficientSeats = errors.New("not enough seats available")

	// ErrInvalidQuantity indicates a non-positive or over-limit quantity.
	ErrInvalidQuantity = errors.New("invalid seat quantity")

	// ErrCapacityExceeded indicates a release would push available_seats
	// above total_capacity. This is an internal invariant violation, it is
	// never corrected silently.
	ErrCapacityExceeded = errors.New("seat release exceeds event capacity")

	// ErrVersionConflict indicates the row changed under an optimistic
	// update. Callers retry with a fresh read.
	ErrVersionConflict = errors.New("inventory was updated by another process")
)
