package inventory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryRepository is a mutex-guarded in-memory ledger that mirrors the
// conditional-update semantics of the SQL implementation.
type memoryRepository struct {
	mu     sync.Mutex
	events map[uuid.UUID]*EventInventory
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{events: make(map[uuid.UUID]*EventInventory)}
}

func (m *memoryRepository) Create(_ context.Context, inv *EventInventory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv.EventID == uuid.Nil {
		inv.EventID = uuid.New()
	}
	if inv.Version == 0 {
		inv.Version = 1
	}
	cp := *inv
	m.events[inv.EventID] = &cp
	return nil
}

func (m *memoryRepository) GetByID(_ context.Context, eventID uuid.UUID) (*EventInventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *memoryRepository) List(_ context.Context, limit, offset int) ([]EventInventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EventInventory, 0, len(m.events))
	for _, inv := range m.events {
		out = append(out, *inv)
	}
	return out, nil
}

func (m *memoryRepository) Decrement(_ context.Context, eventID uuid.UUID, quantity int) (*EventInventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	if inv.AvailableSeats < quantity {
		return nil, ErrInsufficientSeats
	}
	inv.AvailableSeats -= quantity
	inv.Version++
	cp := *inv
	return &cp, nil
}

func (m *memoryRepository) Increment(_ context.Context, eventID uuid.UUID, quantity int) (*EventInventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	if inv.AvailableSeats+quantity > inv.TotalCapacity {
		return nil, ErrCapacityExceeded
	}
	inv.AvailableSeats += quantity
	inv.Version++
	cp := *inv
	return &cp, nil
}

func (m *memoryRepository) UpdateCapacity(_ context.Context, eventID uuid.UUID, totalCapacity, availableSeats, version int) (*EventInventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	if inv.Version != version {
		return nil, ErrVersionConflict
	}
	inv.TotalCapacity = totalCapacity
	inv.AvailableSeats = availableSeats
	inv.Version++
	cp := *inv
	return &cp, nil
}

func newTestService(t *testing.T) (Service, *memoryRepository) {
	t.Helper()
	repo := newMemoryRepository()
	return NewService(repo, nil, 30*time.Second), repo
}

func seedEvent(t *testing.T, svc Service, capacity int) *EventInventory {
	t.Helper()
	inv, err := svc.CreateEvent(context.Background(), &CreateEventRequest{
		Name:                 "Arena Night",
		TotalCapacity:        capacity,
		MaxTicketsPerBooking: 10,
		BasePrice:            50,
		StartsAt:             time.Now().Add(72 * time.Hour),
	})
	require.NoError(t, err)
	return inv
}

func TestCreateEventStartsFull(t *testing.T) {
	svc, _ := newTestService(t)
	inv := seedEvent(t, svc, 500)

	assert.Equal(t, 500, inv.TotalCapacity)
	assert.Equal(t, 500, inv.AvailableSeats)
	assert.Equal(t, 1, inv.Version)
	assert.False(t, inv.IsSoldOut())
}

func TestDecrementInsufficientSeats(t *testing.T) {
	svc, _ := newTestService(t)
	inv := seedEvent(t, svc, 3)

	_, err := svc.Decrement(context.Background(), inv.EventID, 5)
	assert.ErrorIs(t, err, ErrInsufficientSeats)

	got, err := svc.GetEvent(context.Background(), inv.EventID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.AvailableSeats, "failed decrement must not change the ledger")
}

func TestIncrementAboveCapacityRejected(t *testing.T) {
	svc, _ := newTestService(t)
	inv := seedEvent(t, svc, 10)

	_, err := svc.Decrement(context.Background(), inv.EventID, 4)
	require.NoError(t, err)

	_, err = svc.Increment(context.Background(), inv.EventID, 5)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	got, err := svc.GetEvent(context.Background(), inv.EventID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.AvailableSeats, "violating increment must not be silently corrected")
}

func TestConcurrentDecrementNeverOversells(t *testing.T) {
	svc, _ := newTestService(t)
	inv := seedEvent(t, svc, 10)

	const workers = 25
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Decrement(context.Background(), inv.EventID, 2); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded, "exactly capacity/quantity decrements may win")

	got, err := svc.GetEvent(context.Background(), inv.EventID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableSeats)
	assert.True(t, got.IsSoldOut())
}

func TestConcurrentMixedTrafficHoldsInvariants(t *testing.T) {
	svc, _ := newTestService(t)
	inv := seedEvent(t, svc, 50)

	const workers = 20
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ctx := context.Background()
			if n%2 == 0 {
				if _, err := svc.Decrement(ctx, inv.EventID, 3); err == nil {
					_, _ = svc.Increment(ctx, inv.EventID, 3)
				}
			} else {
				_, _ = svc.Decrement(ctx, inv.EventID, 2)
			}
		}(i)
	}
	wg.Wait()

	got, err := svc.GetEvent(context.Background(), inv.EventID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.AvailableSeats, 0)
	assert.LessOrEqual(t, got.AvailableSeats, got.TotalCapacity)
}

func TestUpdateCapacityVersionConflict(t *testing.T) {
	svc, _ := newTestService(t)
	inv := seedEvent(t, svc, 100)

	updated, err := svc.UpdateCapacity(context.Background(), inv.EventID, &UpdateCapacityRequest{
		TotalCapacity:  200,
		AvailableSeats: 200,
		Version:        inv.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, 200, updated.TotalCapacity)

	// Stale version loses
	_, err = svc.UpdateCapacity(context.Background(), inv.EventID, &UpdateCapacityRequest{
		TotalCapacity:  300,
		AvailableSeats: 300,
		Version:        inv.Version,
	})
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestCheckAvailability(t *testing.T) {
	svc, _ := newTestService(t)
	inv := seedEvent(t, svc, 8)

	availability, err := svc.CheckAvailability(context.Background(), inv.EventID, 4)
	require.NoError(t, err)
	assert.True(t, availability.Available)
	assert.Equal(t, 8, availability.AvailableSeats)
	assert.Equal(t, 50.0, availability.BasePrice)

	availability, err = svc.CheckAvailability(context.Background(), inv.EventID, 9)
	require.NoError(t, err)
	assert.False(t, availability.Available)

	_, err = svc.CheckAvailability(context.Background(), inv.EventID, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.CheckAvailability(context.Background(), uuid.New(), 1)
	assert.ErrorIs(t, err, ErrEventNotFound)
}
