package inventory

import (
	"context"
	"fmt"
	"time"

	"ticketly/pkg/cache"
	"ticketly/pkg/logger"

	"github.com/google/uuid"
)

// Availability is the read-model served to the booking flow.
type Availability struct {
	Available      bool    `json:"available"`
	AvailableSeats int     `json:"available_seats"`
	MaxPerBooking  int     `json:"max_per_booking"`
	BasePrice      float64 `json:"base_price"`
}

// Service interface defines the contract for ledger business logic
type Service interface {
	CreateEvent(ctx context.Context, req *CreateEventRequest) (*EventInventory, error)
	GetEvent(ctx context.Context, eventID uuid.UUID) (*EventInventory, error)
	ListEvents(ctx context.Context, limit, offset int) ([]EventInventory, error)
	UpdateCapacity(ctx context.Context, eventID uuid.UUID, req *UpdateCapacityRequest) (*EventInventory, error)

	// CheckAvailability is the read-only availability check. It may serve a
	// cached snapshot bounded by the configured cache TTL.
	CheckAvailability(ctx context.Context, eventID uuid.UUID, quantity int) (*Availability, error)

	// Decrement and Increment are the only mutation paths for
	// available_seats. Both invalidate the availability cache.
	Decrement(ctx context.Context, eventID uuid.UUID, quantity int) (*EventInventory, error)
	Increment(ctx context.Context, eventID uuid.UUID, quantity int) (*EventInventory, error)
}

// service implements the Service interface
type service struct {
	repo     Repository
	cache    cache.Service
	cacheTTL time.Duration
	logger   *logger.Logger
}

// NewService creates a new inventory service. The cache is optional, a nil
// cache disables the availability snapshot and every read hits the database.
func NewService(repo Repository, cacheService cache.Service, cacheTTL time.Duration) Service {
	return &service{
		repo:     repo,
		cache:    cacheService,
		cacheTTL: cacheTTL,
		logger:   logger.GetDefault(),
	}
}

func availabilityCacheKey(eventID uuid.UUID) string {
	return fmt.Sprintf("ticketly:availability:%s", eventID)
}

func (s *service) CreateEvent(ctx context.Context, req *CreateEventRequest) (*EventInventory, error) {
	if req.TotalCapacity <= 0 {
		return nil, fmt.Errorf("total capacity must be positive")
	}
	if req.MaxTicketsPerBooking <= 0 {
		req.MaxTicketsPerBooking = 10
	}

	inv := &EventInventory{
		Name:                 req.Name,
		StartsAt:             req.StartsAt,
		TotalCapacity:        req.TotalCapacity,
		AvailableSeats:       req.TotalCapacity,
		MaxTicketsPerBooking: req.MaxTicketsPerBooking,
		BasePrice:            req.BasePrice,
		Version:              1,
	}

	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to create event inventory: %w", err)
	}

	s.logger.InfoWithContext(ctx, "Event inventory created", map[string]interface{}{
		"event_id":       inv.EventID,
		"total_capacity": inv.TotalCapacity,
		"base_price":     inv.BasePrice,
	})

	return inv, nil
}

func (s *service) GetEvent(ctx context.Context, eventID uuid.UUID) (*EventInventory, error) {
	return s.repo.GetByID(ctx, eventID)
}

func (s *service) ListEvents(ctx context.Context, limit, offset int) ([]EventInventory, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *service) UpdateCapacity(ctx context.Context, eventID uuid.UUID, req *UpdateCapacityRequest) (*EventInventory, error) {
	if req.TotalCapacity <= 0 || req.AvailableSeats < 0 || req.AvailableSeats > req.TotalCapacity {
		return nil, ErrInvalidQuantity
	}

	inv, err := s.repo.UpdateCapacity(ctx, eventID, req.TotalCapacity, req.AvailableSeats, req.Version)
	if err != nil {
		return nil, err
	}

	s.invalidateAvailability(ctx, eventID)
	return inv, nil
}

func (s *service) CheckAvailability(ctx context.Context, eventID uuid.UUID, quantity int) (*Availability, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	if s.cache != nil {
		var cached Availability
		if err := s.cache.Get(ctx, availabilityCacheKey(eventID), &cached); err == nil {
			cached.Available = cached.AvailableSeats >= quantity
			return &cached, nil
		}
	}

	inv, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	availability := &Availability{
		Available:      inv.CanSatisfy(quantity),
		AvailableSeats: inv.AvailableSeats,
		MaxPerBooking:  inv.MaxTicketsPerBooking,
		BasePrice:      inv.BasePrice,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, availabilityCacheKey(eventID), availability, s.cacheTTL); err != nil {
			s.logger.WithError(err).Warn("failed to cache availability snapshot")
		}
	}

	return availability, nil
}

func (s *service) Decrement(ctx context.Context, eventID uuid.UUID, quantity int) (*EventInventory, error) {
	inv, err := s.repo.Decrement(ctx, eventID, quantity)
	if err != nil {
		return nil, err
	}

	s.invalidateAvailability(ctx, eventID)

	s.logger.InfoWithContext(ctx, "Seats decremented", map[string]interface{}{
		"event_id":        eventID,
		"quantity":        quantity,
		"remaining_seats": inv.AvailableSeats,
		"version":         inv.Version,
	})

	return inv, nil
}

func (s *service) Increment(ctx context.Context, eventID uuid.UUID, quantity int) (*EventInventory, error) {
	inv, err := s.repo.Increment(ctx, eventID, quantity)
	if err != nil {
		if err == ErrCapacityExceeded {
			s.logger.LogLedgerViolation(ctx, eventID.String(),
				fmt.Sprintf("increment of %d would exceed capacity", quantity))
		}
		return nil, err
	}

	s.invalidateAvailability(ctx, eventID)

	s.logger.InfoWithContext(ctx, "Seats released", map[string]interface{}{
		"event_id":        eventID,
		"quantity":        quantity,
		"available_seats": inv.AvailableSeats,
		"version":         inv.Version,
	})

	return inv, nil
}

func (s *service) invalidateAvailability(ctx context.Context, eventID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, availabilityCacheKey(eventID)); err != nil {
		s.logger.WithError(err).Warn("failed to invalidate availability cache")
	}
}
