package bookings

type Status string

const (
	// StatusHeld means seats are decremented from the ledger and waiting
	// for payment. Holds lapse after the configured hold duration.
	StatusHeld Status = "held"

	// StatusConfirmed means payment settled and the hold became a booking.
	StatusConfirmed Status = "confirmed"

	// StatusExpired means the hold lapsed before confirmation and its seats
	// were returned to the ledger.
	StatusExpired Status = "expired"

	// StatusCancelled means the user released the hold or cancelled the
	// confirmed booking.
	StatusCancelled Status = "cancelled"
)

// IsValid checks if the reservation status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusHeld, StatusConfirmed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusExpired || s == StatusCancelled
}

// CanTransitionTo reports whether the transition is allowed. Every legal
// path out of held is exercised by exactly one winner, the repository
// enforces that with conditional updates.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusHeld:
		return next == StatusConfirmed || next == StatusExpired || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusCancelled
	}
	return false
}
