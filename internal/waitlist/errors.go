package waitlist

import "errors"

var (
	// ErrAlreadyWaitlisted is returned when a user joins a waitlist they
	// are already on.
	ErrAlreadyWaitlisted = errors.New("user is already on the waitlist for this event")

	// ErrNotOnWaitlist is returned when no active entry matches.
	ErrNotOnWaitlist = errors.New("user is not on the waitlist for this event")

	// ErrWaitlistFull is returned when the per-event entry cap is reached.
	ErrWaitlistFull = errors.New("waitlist for this event is full")

	// ErrSeatsStillAvailable is returned when a user tries to join while
	// the event can still be booked directly.
	ErrSeatsStillAvailable = errors.New("seats are still available, book directly instead")
)
