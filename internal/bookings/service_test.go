package bookings

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketly/internal/inventory"
	"ticketly/internal/payments"
)

// memoryRepository mirrors the conditional-update semantics of the SQL
// implementation behind a mutex, including the unique indexes.
type memoryRepository struct {
	mu           sync.Mutex
	reservations map[uuid.UUID]*Reservation
	byKey        map[string]uuid.UUID
	bookings     map[uuid.UUID]*Booking
	byReference  map[string]uuid.UUID
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		reservations: make(map[uuid.UUID]*Reservation),
		byKey:        make(map[string]uuid.UUID),
		bookings:     make(map[uuid.UUID]*Booking),
		byReference:  make(map[string]uuid.UUID),
	}
}

func (m *memoryRepository) CreateReservation(_ context.Context, res *Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byKey[res.IdempotencyKey]; exists {
		return ErrDuplicateIdempotencyKey
	}
	if res.ReservationID == uuid.Nil {
		res.ReservationID = uuid.New()
	}
	cp := *res
	m.reservations[res.ReservationID] = &cp
	m.byKey[res.IdempotencyKey] = res.ReservationID
	return nil
}

func (m *memoryRepository) GetReservation(_ context.Context, id uuid.UUID) (*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.reservations[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	cp := *res
	return &cp, nil
}

func (m *memoryRepository) GetReservationByIdempotencyKey(_ context.Context, key string) (*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byKey[key]
	if !ok {
		return nil, ErrReservationNotFound
	}
	cp := *m.reservations[id]
	return &cp, nil
}

func (m *memoryRepository) TransitionReservation(_ context.Context, id uuid.UUID, from, to Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.reservations[id]
	if !ok || res.Status != from {
		return false, nil
	}
	res.Status = to
	return true, nil
}

func (m *memoryRepository) ReviveReservation(_ context.Context, id uuid.UUID, quantity int, totalAmount float64, bookingReference string, expiresAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.reservations[id]
	if !ok || (res.Status != StatusExpired && res.Status != StatusCancelled) {
		return false, nil
	}
	res.Status = StatusHeld
	res.Quantity = quantity
	res.TotalAmount = totalAmount
	res.BookingReference = bookingReference
	res.ExpiresAt = expiresAt
	return true, nil
}

func (m *memoryRepository) ListExpiredHeld(_ context.Context, cutoff time.Time, limit int) ([]Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Reservation
	for _, res := range m.reservations {
		if res.Status == StatusHeld && res.ExpiresAt.Before(cutoff) {
			out = append(out, *res)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memoryRepository) CreateBooking(_ context.Context, booking *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byReference[booking.BookingReference]; exists {
		return ErrDuplicateReference
	}
	if booking.BookingID == uuid.Nil {
		booking.BookingID = uuid.New()
	}
	cp := *booking
	m.bookings[booking.BookingID] = &cp
	m.byReference[booking.BookingReference] = booking.BookingID
	return nil
}

func (m *memoryRepository) GetBooking(_ context.Context, id uuid.UUID) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	cp := *booking
	return &cp, nil
}

func (m *memoryRepository) GetBookingByReference(_ context.Context, reference string) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byReference[reference]
	if !ok {
		return nil, ErrBookingNotFound
	}
	cp := *m.bookings[id]
	return &cp, nil
}

func (m *memoryRepository) CancelBooking(_ context.Context, id uuid.UUID, refund float64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok || booking.Status != StatusConfirmed {
		return false, nil
	}
	booking.Status = StatusCancelled
	booking.RefundAmount = refund
	booking.CancelledAt = &at
	if refund > 0 {
		booking.PaymentStatus = "refunded"
	}
	return true, nil
}

func (m *memoryRepository) ListUserBookings(_ context.Context, userID uuid.UUID, limit, offset int) ([]Booking, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []Booking
	for _, booking := range m.bookings {
		if booking.UserID == userID {
			all = append(all, *booking)
		}
	}
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// fakeInventory is a mutex-guarded stand-in for the ledger service.
type fakeInventory struct {
	mu    sync.Mutex
	event *inventory.EventInventory
}

func newFakeInventory(capacity int, basePrice float64, startsAt time.Time) *fakeInventory {
	return &fakeInventory{
		event: &inventory.EventInventory{
			EventID:              uuid.New(),
			Name:                 "Stadium Show",
			TotalCapacity:        capacity,
			AvailableSeats:       capacity,
			MaxTicketsPerBooking: 10,
			BasePrice:            basePrice,
			StartsAt:             startsAt,
			Version:              1,
		},
	}
}

func (f *fakeInventory) GetEvent(_ context.Context, eventID uuid.UUID) (*inventory.EventInventory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if eventID != f.event.EventID {
		return nil, inventory.ErrEventNotFound
	}
	cp := *f.event
	return &cp, nil
}

func (f *fakeInventory) CheckAvailability(_ context.Context, eventID uuid.UUID, quantity int) (*inventory.Availability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if eventID != f.event.EventID {
		return nil, inventory.ErrEventNotFound
	}
	return &inventory.Availability{
		Available:      f.event.AvailableSeats >= quantity,
		AvailableSeats: f.event.AvailableSeats,
		MaxPerBooking:  f.event.MaxTicketsPerBooking,
		BasePrice:      f.event.BasePrice,
	}, nil
}

func (f *fakeInventory) Decrement(_ context.Context, eventID uuid.UUID, quantity int) (*inventory.EventInventory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if eventID != f.event.EventID {
		return nil, inventory.ErrEventNotFound
	}
	if f.event.AvailableSeats < quantity {
		return nil, inventory.ErrInsufficientSeats
	}
	f.event.AvailableSeats -= quantity
	cp := *f.event
	return &cp, nil
}

func (f *fakeInventory) Increment(_ context.Context, eventID uuid.UUID, quantity int) (*inventory.EventInventory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if eventID != f.event.EventID {
		return nil, inventory.ErrEventNotFound
	}
	if f.event.AvailableSeats+quantity > f.event.TotalCapacity {
		return nil, inventory.ErrCapacityExceeded
	}
	f.event.AvailableSeats += quantity
	cp := *f.event
	return &cp, nil
}

func (f *fakeInventory) availableSeats() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.event.AvailableSeats
}

// fakeWaitlist records promotion checks and conversions.
type fakeWaitlist struct {
	mu          sync.Mutex
	released    int
	freedSeats  []int
	converted   int
	offerExpiry *time.Time
}

func (f *fakeWaitlist) HandleSeatsReleased(_ context.Context, _ uuid.UUID, freedSeats int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	f.freedSeats = append(f.freedSeats, freedSeats)
	return nil
}

func (f *fakeWaitlist) MarkAsConverted(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.converted++
	return nil
}

func (f *fakeWaitlist) OfferExpiry(context.Context, uuid.UUID, uuid.UUID) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offerExpiry, nil
}

func (f *fakeWaitlist) releasedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

func (f *fakeWaitlist) releasedQuantities() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.freedSeats...)
}

// fakeClaimer is an in-memory stand-in for the Redis idempotency guard.
type fakeClaimer struct {
	mu       sync.Mutex
	owners   map[string]string
	claims   int
	releases int
}

func newFakeClaimer() *fakeClaimer {
	return &fakeClaimer{owners: make(map[string]string)}
}

func (f *fakeClaimer) Claim(_ context.Context, key, reservationID string, _ time.Duration) (bool, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims++
	if owner, ok := f.owners[key]; ok {
		return false, owner, nil
	}
	f.owners[key] = reservationID
	return true, reservationID, nil
}

func (f *fakeClaimer) Release(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	delete(f.owners, key)
	return nil
}

func (f *fakeClaimer) owner(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner, ok := f.owners[key]
	return owner, ok
}

type fixture struct {
	service   Service
	repo      *memoryRepository
	inventory *fakeInventory
	waitlist  *fakeWaitlist
	gateway   *payments.MockGateway
	guard     *fakeClaimer
	eventID   uuid.UUID
}

func newFixture(t *testing.T, capacity int) *fixture {
	return newGuardedFixture(t, capacity, nil)
}

func newGuardedFixture(t *testing.T, capacity int, guard *fakeClaimer) *fixture {
	t.Helper()
	repo := newMemoryRepository()
	inv := newFakeInventory(capacity, 50, time.Now().Add(72*time.Hour))
	wl := &fakeWaitlist{}
	gateway := payments.NewMockGateway(nil)

	// A typed nil would dodge the service's guard nil checks.
	var claimer IdempotencyClaimer
	if guard != nil {
		claimer = guard
	}

	svc := NewService(repo, inv, wl, gateway, claimer, nil, Policy{
		HoldDuration:         10 * time.Minute,
		MaxTicketsPerBooking: 10,
		IdempotencyTTL:       24 * time.Hour,
		FullRefundWindow:     48 * time.Hour,
		HalfRefundWindow:     24 * time.Hour,
		TicketURLBase:        "https://tickets.ticketly.dev",
	})

	return &fixture{
		service:   svc,
		repo:      repo,
		inventory: inv,
		waitlist:  wl,
		gateway:   gateway,
		guard:     guard,
		eventID:   inv.event.EventID,
	}
}

func (fx *fixture) reserve(t *testing.T, userID uuid.UUID, quantity int, key string) *Reservation {
	t.Helper()
	result, err := fx.service.Reserve(context.Background(), userID, &ReserveRequest{
		EventID:        fx.eventID.String(),
		Quantity:       quantity,
		IdempotencyKey: key,
	})
	require.NoError(t, err)
	return result.Reservation
}

func TestReserveCreatesHold(t *testing.T) {
	fx := newFixture(t, 100)
	userID := uuid.New()

	reservation := fx.reserve(t, userID, 3, "key-1")

	assert.Equal(t, StatusHeld, reservation.Status)
	assert.Equal(t, 3, reservation.Quantity)
	assert.Equal(t, 150.0, reservation.TotalAmount)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), reservation.ExpiresAt, 5*time.Second)
	assert.Equal(t, 97, fx.inventory.availableSeats())
}

func TestReserveInvalidQuantity(t *testing.T) {
	fx := newFixture(t, 100)
	userID := uuid.New()

	_, err := fx.service.Reserve(context.Background(), userID, &ReserveRequest{
		EventID:        fx.eventID.String(),
		Quantity:       11,
		IdempotencyKey: "key-too-many",
	})
	assert.ErrorIs(t, err, inventory.ErrInvalidQuantity)
	assert.Equal(t, 100, fx.inventory.availableSeats())
}

func TestReserveInsufficientSeats(t *testing.T) {
	fx := newFixture(t, 2)
	userID := uuid.New()

	_, err := fx.service.Reserve(context.Background(), userID, &ReserveRequest{
		EventID:        fx.eventID.String(),
		Quantity:       3,
		IdempotencyKey: "key-over",
	})
	assert.ErrorIs(t, err, inventory.ErrInsufficientSeats)
}

func TestReserveIdempotentReplay(t *testing.T) {
	fx := newFixture(t, 100)
	userID := uuid.New()

	first := fx.reserve(t, userID, 2, "same-key")

	result, err := fx.service.Reserve(context.Background(), userID, &ReserveRequest{
		EventID:        fx.eventID.String(),
		Quantity:       2,
		IdempotencyKey: "same-key",
	})
	require.NoError(t, err)
	assert.True(t, result.Replayed)
	assert.Equal(t, first.ReservationID, result.Reservation.ReservationID)
	assert.Equal(t, 98, fx.inventory.availableSeats(), "replay must not decrement twice")
}

func TestReserveIdempotencyKeyOtherUser(t *testing.T) {
	fx := newFixture(t, 100)
	fx.reserve(t, uuid.New(), 2, "shared-key")

	_, err := fx.service.Reserve(context.Background(), uuid.New(), &ReserveRequest{
		EventID:        fx.eventID.String(),
		Quantity:       2,
		IdempotencyKey: "shared-key",
	})
	assert.ErrorIs(t, err, ErrIdempotencyConflict)
}

func TestConcurrentReserveNeverOversells(t *testing.T) {
	fx := newFixture(t, 2)

	const workers = 3
	var wg sync.WaitGroup
	results := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, results[n] = fx.service.Reserve(context.Background(), uuid.New(), &ReserveRequest{
				EventID:        fx.eventID.String(),
				Quantity:       2,
				IdempotencyKey: uuid.New().String(),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, inventory.ErrInsufficientSeats)
		}
	}
	assert.Equal(t, 1, succeeded, "two seats can satisfy exactly one two-seat hold")
	assert.Equal(t, 0, fx.inventory.availableSeats())
}

func TestConcurrentReserveSameKeySingleHold(t *testing.T) {
	fx := newFixture(t, 100)
	userID := uuid.New()

	const workers = 10
	var wg sync.WaitGroup
	ids := make([]uuid.UUID, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			result, err := fx.service.Reserve(context.Background(), userID, &ReserveRequest{
				EventID:        fx.eventID.String(),
				Quantity:       4,
				IdempotencyKey: "racing-key",
			})
			if err == nil {
				ids[n] = result.Reservation.ReservationID
			}
		}(i)
	}
	wg.Wait()

	unique := map[uuid.UUID]bool{}
	for _, id := range ids {
		if id != uuid.Nil {
			unique[id] = true
		}
	}
	assert.Len(t, unique, 1, "every retry must converge on the winning reservation")
	assert.Equal(t, 96, fx.inventory.availableSeats(), "the key may decrement at most once")
}

func TestConfirmProducesBooking(t *testing.T) {
	fx := newFixture(t, 100)
	userID := uuid.New()
	reservation := fx.reserve(t, userID, 2, "confirm-key")

	booking, err := fx.service.Confirm(context.Background(), userID, &ConfirmRequest{
		ReservationID: reservation.ReservationID.String(),
		PaymentToken:  "tok_visa",
		PaymentMethod: "card",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed, booking.Status)
	assert.Equal(t, 100.0, booking.TotalAmount)
	assert.True(t, strings.HasPrefix(booking.BookingReference, "TKT-"))
	assert.Contains(t, booking.TicketURL, booking.BookingReference)
	assert.NotEmpty(t, booking.TransactionID)

	stored, err := fx.service.GetReservation(context.Background(), reservation.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, stored.Status)
	assert.Equal(t, 98, fx.inventory.availableSeats(), "confirmed seats stay sold")
}

func TestConfirmWrongUser(t *testing.T) {
	fx := newFixture(t, 100)
	reservation := fx.reserve(t, uuid.New(), 2, "owner-key")

	_, err := fx.service.Confirm(context.Background(), uuid.New(), &ConfirmRequest{
		ReservationID: reservation.ReservationID.String(),
		PaymentToken:  "tok_visa",
		PaymentMethod: "card",
	})
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestConfirmExpiredHoldReleasesSeats(t *testing.T) {
	fx := newFixture(t, 100)
	userID := uuid.New()
	reservation := fx.reserve(t, userID, 5, "late-key")

	// Backdate the hold so it is already lapsed
	fx.repo.mu.Lock()
	fx.repo.reservations[reservation.ReservationID].ExpiresAt = time.Now().Add(-time.Minute)
	fx.repo.mu.Unlock()

	_, err := fx.service.Confirm(context.Background(), userID, &ConfirmRequest{
		ReservationID: reservation.ReservationID.String(),
		PaymentToken:  "tok_visa",
		PaymentMethod: "card",
	})
	assert.ErrorIs(t, err, ErrReservationExpired)

	stored, err := fx.service.GetReservation(context.Background(), reservation.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, stored.Status)
	assert.Equal(t, 100, fx.inventory.availableSeats())
	assert.Equal(t, 1, fx.waitlist.releasedCount())
}

func TestConfirmPaymentDeclinedReleasesSeats(t *testing.T) {
	fx := newFixture(t, 100)
	userID := uuid.New()
	reservation := fx.reserve(t, userID, 4, "declined-key")

	_, err := fx.service.Confirm(context.Background(), userID, &ConfirmRequest{
		ReservationID: reservation.ReservationID.String(),
		PaymentToken:  "fail_insufficient_funds",
		PaymentMethod: "card",
	})
	assert.ErrorIs(t, err, ErrPaymentFailed)

	stored, err := fx.service.GetReservation(context.Background(), reservation.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stored.Status)
	assert.Equal(t, 100, fx.inventory.availableSeats())
	assert.Equal(t, 1, fx.waitlist.releasedCount())
}

func TestConfirmInvalidState(t *testing.T) {
	fx := newFixture(t, 100)
	userID := uuid.New()
	reservation := fx.reserve(t, userID, 2, "twice-key")

	_, err := fx.service.Confirm(context.Background(), userID, &ConfirmRequest{
		ReservationID: reservation.ReservationID.String(),
		PaymentToken:  "tok_visa",
		PaymentMethod: "card",
	})
	require.NoError(t, err)

	_, err = fx.service.Confirm(context.Background(), userID, &ConfirmRequest{
		ReservationID: reservation.ReservationID.String(),
		PaymentToken:  "tok_visa",
		PaymentMethod: "card",
	})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestExpirySweepConfirmRaceReleasesOnce(t *testing.T) {
	fx := newFixture(t, 100)
	userID := uuid.New()
	reservation := fx.reserve(t, userID, 5, "race-key")

	fx.repo.mu.Lock()
	fx.repo.reservations[reservation.ReservationID].ExpiresAt = time.Now().Add(-time.Second)
	fx.repo.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = fx.service.ExpireOverdue(context.Background(), 10)
	}()
	go func() {
		defer wg.Done()
		_, _ = fx.service.Confirm(context.Background(), userID, &ConfirmRequest{
			ReservationID: reservation.ReservationID.String(),
			PaymentToken:  "tok_visa",
			PaymentMethod: "card",
		})
	}()
	wg.Wait()

	stored, err := fx.service.GetReservation(context.Background(), reservation.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, stored.Status, "a lapsed hold must never confirm")
	assert.Equal(t, 100, fx.inventory.availableSeats(), "seats released exactly once")
	assert.Equal(t, 1, fx.waitlist.releasedCount())
}

func TestExpireOverdueBatch(t *testing.T) {
	fx := newFixture(t, 100)
	userID := uuid.New()

	lapsed := []*Reservation{
		fx.reserve(t, userID, 1, "sweep-1"),
		fx.reserve(t, userID, 2, "sweep-2"),
		fx.reserve(t, userID, 3, "sweep-3"),
	}
	live := fx.reserve(t, userID, 4, "sweep-live")

	fx.repo.mu.Lock()
	for _, r := range lapsed {
		fx.repo.reservations[r.ReservationID].ExpiresAt = time.Now().Add(-time.Minute)
	}
	fx.repo.mu.Unlock()

	expired, err := fx.service.ExpireOverdue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, expired)

	stored, err := fx.service.GetReservation(context.Background(), live.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, StatusHeld, stored.Status, "live holds survive the sweep")
	assert.Equal(t, 96, fx.inventory.availableSeats())
}

func TestForceExpireAllDrainsLiveHolds(t *testing.T) {
	fx := newFixture(t, 100)
	userID := uuid.New()
	fx.reserve(t, userID, 2, "drain-1")
	fx.reserve(t, userID, 3, "drain-2")

	expired, err := fx.service.ForceExpireAll(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, expired)
	assert.Equal(t, 100, fx.inventory.availableSeats())
}

func TestCancelRestoresSeatsWithFullRefund(t *testing.T) {
	fx := newFixture(t, 100)
	userID := uuid.New()
	reservation := fx.reserve(t, userID, 2, "cancel-key")

	booking, err := fx.service.Confirm(context.Background(), userID, &ConfirmRequest{
		ReservationID: reservation.ReservationID.String(),
		PaymentToken:  "tok_visa",
		PaymentMethod: "card",
	})
	require.NoError(t, err)

	result, err := fx.service.Cancel(context.Background(), userID, booking.BookingID)
	require.NoError(t, err)

	// Event is 72h out, inside the full refund tier
	assert.Equal(t, 100.0, result.RefundAmount)
	assert.Equal(t, StatusCancelled, result.Booking.Status)
	assert.Equal(t, 100, fx.inventory.availableSeats())
	assert.Equal(t, 1, fx.waitlist.releasedCount())
}

func TestCancelTwiceFails(t *testing.T) {
	fx := newFixture(t, 100)
	userID := uuid.New()
	reservation := fx.reserve(t, userID, 2, "cancel-twice")

	booking, err := fx.service.Confirm(context.Background(), userID, &ConfirmRequest{
		ReservationID: reservation.ReservationID.String(),
		PaymentToken:  "tok_visa",
		PaymentMethod: "card",
	})
	require.NoError(t, err)

	_, err = fx.service.Cancel(context.Background(), userID, booking.BookingID)
	require.NoError(t, err)

	_, err = fx.service.Cancel(context.Background(), userID, booking.BookingID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 100, fx.inventory.availableSeats(), "double cancel must not double release")
}

func TestRefundTiers(t *testing.T) {
	total := 200.0
	now := time.Now()
	full := 48 * time.Hour
	half := 24 * time.Hour

	assert.Equal(t, 200.0, RefundAmount(total, now.Add(72*time.Hour), now, full, half))
	assert.Equal(t, 100.0, RefundAmount(total, now.Add(36*time.Hour), now, full, half))
	assert.Equal(t, 0.0, RefundAmount(total, now.Add(2*time.Hour), now, full, half))
	assert.Equal(t, 0.0, RefundAmount(total, now.Add(-time.Hour), now, full, half))
}

func TestReserveSameKeyAfterExpiryCreatesFreshHold(t *testing.T) {
	fx := newFixture(t, 100)
	userID := uuid.New()

	first := fx.reserve(t, userID, 3, "retry-key")
	assert.Equal(t, 97, fx.inventory.availableSeats())

	fx.repo.mu.Lock()
	fx.repo.reservations[first.ReservationID].ExpiresAt = time.Now().Add(-time.Minute)
	fx.repo.mu.Unlock()

	expired, err := fx.service.ExpireOverdue(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, expired)
	require.Equal(t, 100, fx.inventory.availableSeats())

	// The key's hold is dead, so the retry must produce a live hold again
	// instead of replaying the expired one.
	result, err := fx.service.Reserve(context.Background(), userID, &ReserveRequest{
		EventID:        fx.eventID.String(),
		Quantity:       2,
		IdempotencyKey: "retry-key",
	})
	require.NoError(t, err)
	assert.False(t, result.Replayed)
	assert.Equal(t, StatusHeld, result.Reservation.Status)
	assert.Equal(t, 2, result.Reservation.Quantity)
	assert.Equal(t, 100.0, result.Reservation.TotalAmount)
	assert.False(t, result.Reservation.IsExpired(time.Now()))
	assert.Equal(t, 98, fx.inventory.availableSeats())
}

func TestReserveSameKeyAfterDeclineCreatesFreshHold(t *testing.T) {
	fx := newFixture(t, 100)
	userID := uuid.New()
	first := fx.reserve(t, userID, 4, "decline-retry")

	_, err := fx.service.Confirm(context.Background(), userID, &ConfirmRequest{
		ReservationID: first.ReservationID.String(),
		PaymentToken:  "fail_insufficient_funds",
		PaymentMethod: "card",
	})
	require.ErrorIs(t, err, ErrPaymentFailed)
	require.Equal(t, 100, fx.inventory.availableSeats())

	result, err := fx.service.Reserve(context.Background(), userID, &ReserveRequest{
		EventID:        fx.eventID.String(),
		Quantity:       4,
		IdempotencyKey: "decline-retry",
	})
	require.NoError(t, err)
	assert.False(t, result.Replayed)
	assert.Equal(t, StatusHeld, result.Reservation.Status)
	assert.Equal(t, 96, fx.inventory.availableSeats())
}

func TestReserveSameKeyLapsedUnsweptHold(t *testing.T) {
	fx := newFixture(t, 100)
	userID := uuid.New()
	first := fx.reserve(t, userID, 5, "lapsed-key")

	// Lapsed but the sweep has not run yet
	fx.repo.mu.Lock()
	fx.repo.reservations[first.ReservationID].ExpiresAt = time.Now().Add(-time.Minute)
	fx.repo.mu.Unlock()

	result, err := fx.service.Reserve(context.Background(), userID, &ReserveRequest{
		EventID:        fx.eventID.String(),
		Quantity:       5,
		IdempotencyKey: "lapsed-key",
	})
	require.NoError(t, err)
	assert.False(t, result.Replayed)
	assert.Equal(t, StatusHeld, result.Reservation.Status)
	assert.False(t, result.Reservation.IsExpired(time.Now()))
	assert.Equal(t, 95, fx.inventory.availableSeats(), "the lapsed seats come back before the fresh decrement")
}

func TestReserveGuardFastPathShortCircuits(t *testing.T) {
	guard := newFakeClaimer()
	fx := newGuardedFixture(t, 100, guard)
	userID := uuid.New()

	first := fx.reserve(t, userID, 2, "guarded-key")
	owner, held := guard.owner("guarded-key")
	require.True(t, held)
	assert.Equal(t, first.ReservationID.String(), owner)

	result, err := fx.service.Reserve(context.Background(), userID, &ReserveRequest{
		EventID:        fx.eventID.String(),
		Quantity:       2,
		IdempotencyKey: "guarded-key",
	})
	require.NoError(t, err)
	assert.True(t, result.Replayed)
	assert.Equal(t, first.ReservationID, result.Reservation.ReservationID)
	assert.Equal(t, 98, fx.inventory.availableSeats())
}

func TestReserveGuardReleasedOnFailure(t *testing.T) {
	guard := newFakeClaimer()
	fx := newGuardedFixture(t, 100, guard)

	_, err := fx.service.Reserve(context.Background(), uuid.New(), &ReserveRequest{
		EventID:        fx.eventID.String(),
		Quantity:       11,
		IdempotencyKey: "doomed-key",
	})
	require.ErrorIs(t, err, inventory.ErrInvalidQuantity)

	_, held := guard.owner("doomed-key")
	assert.False(t, held, "a failed reserve must not leave a stale claim")
	assert.Equal(t, 1, guard.releases)
}

func TestReserveMintsBookingReference(t *testing.T) {
	fx := newFixture(t, 100)
	userID := uuid.New()

	reservation := fx.reserve(t, userID, 2, "ref-key")
	assert.True(t, strings.HasPrefix(reservation.BookingReference, "TKT-"))

	booking, err := fx.service.Confirm(context.Background(), userID, &ConfirmRequest{
		ReservationID: reservation.ReservationID.String(),
		PaymentToken:  "tok_visa",
		PaymentMethod: "card",
	})
	require.NoError(t, err)
	assert.Equal(t, reservation.BookingReference, booking.BookingReference, "the reference minted at reserve carries into the booking")
}

func TestHoldDeadlineClampedToWaitlistOffer(t *testing.T) {
	fx := newFixture(t, 100)
	userID := uuid.New()

	offerExpiry := time.Now().Add(90 * time.Second)
	fx.waitlist.mu.Lock()
	fx.waitlist.offerExpiry = &offerExpiry
	fx.waitlist.mu.Unlock()

	reservation := fx.reserve(t, userID, 2, "offer-key")
	assert.True(t, reservation.ExpiresAt.Equal(offerExpiry), "a promoted user's hold must not outlive the offer window")
}

func TestReleaseReportsFreedQuantity(t *testing.T) {
	fx := newFixture(t, 100)
	userID := uuid.New()
	reservation := fx.reserve(t, userID, 5, "freed-key")

	fx.repo.mu.Lock()
	fx.repo.reservations[reservation.ReservationID].ExpiresAt = time.Now().Add(-time.Minute)
	fx.repo.mu.Unlock()

	_, err := fx.service.ExpireOverdue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []int{5}, fx.waitlist.releasedQuantities(), "the waitlist must learn how many seats came back")
}

func TestGetUserBookings(t *testing.T) {
	fx := newFixture(t, 100)
	userID := uuid.New()

	for i, key := range []string{"hist-1", "hist-2"} {
		reservation := fx.reserve(t, userID, i+1, key)
		_, err := fx.service.Confirm(context.Background(), userID, &ConfirmRequest{
			ReservationID: reservation.ReservationID.String(),
			PaymentToken:  "tok_visa",
			PaymentMethod: "card",
		})
		require.NoError(t, err)
	}

	bookings, total, err := fx.service.GetUserBookings(context.Background(), userID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, bookings, 2)

	_, total, err = fx.service.GetUserBookings(context.Background(), uuid.New(), 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
}
