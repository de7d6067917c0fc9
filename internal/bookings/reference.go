package bookings

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const referenceChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateBookingReference produces a human-readable reference of the form
// TKT-YYYYMMDD-XXXXXX. Uniqueness is enforced by the database index, a
// collision surfaces as a create error and the caller regenerates.
func GenerateBookingReference(now time.Time) string {
	suffix := make([]byte, 6)
	for i := range suffix {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(referenceChars))))
		if err != nil {
			// crypto/rand only fails when the platform entropy source is broken.
			num = big.NewInt(now.UnixNano() >> uint(i))
			num.Mod(num, big.NewInt(int64(len(referenceChars))))
		}
		suffix[i] = referenceChars[num.Int64()]
	}
	return fmt.Sprintf("TKT-%s-%s", now.Format("20060102"), string(suffix))
}

// TicketURL builds the downloadable ticket location for a booking.
func TicketURL(base, bookingReference string) string {
	return fmt.Sprintf("%s/%s.pdf", base, bookingReference)
}

// RefundAmount applies the tiered refund policy. Cancellations further out
// than the full window refund everything, further out than the half window
// refund half, anything closer refunds nothing.
func RefundAmount(total float64, eventStart, now time.Time, fullWindow, halfWindow time.Duration) float64 {
	until := eventStart.Sub(now)
	switch {
	case until > fullWindow:
		return total
	case until > halfWindow:
		return total / 2
	default:
		return 0
	}
}
