package bookings

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateBookingReferenceFormat(t *testing.T) {
	now := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^TKT-20260314-[A-Z0-9]{6}$`)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		ref := GenerateBookingReference(now)
		assert.Regexp(t, pattern, ref)
		seen[ref] = true
	}
	assert.Greater(t, len(seen), 1, "the random suffix must vary")
}

func TestTicketURL(t *testing.T) {
	url := TicketURL("https://tickets.ticketly.dev", "TKT-20260314-A1B2C3")
	assert.Equal(t, "https://tickets.ticketly.dev/TKT-20260314-A1B2C3.pdf", url)
}
