package waitlist

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"ticketly/internal/inventory"
	"ticketly/pkg/logger"
)

// EventGetter is the slice of the ledger API the waitlist needs (interface
// kept here to avoid a circular dependency).
type EventGetter interface {
	GetEvent(ctx context.Context, eventID uuid.UUID) (*inventory.EventInventory, error)
}

// EventPublisher emits waitlist lifecycle events for downstream consumers.
type EventPublisher interface {
	PublishWaitlistEvent(ctx context.Context, eventType string, payload map[string]interface{}) error
}

// Policy carries the waitlist knobs.
type Policy struct {
	OfferDuration      time.Duration
	MaxEntriesPerEvent int
}

// Service interface defines the contract for waitlist business logic
type Service interface {
	Join(ctx context.Context, userID uuid.UUID, req *JoinRequest) (*PositionResponse, error)
	GetPosition(ctx context.Context, userID, eventID uuid.UUID) (*PositionResponse, error)
	Leave(ctx context.Context, userID, eventID uuid.UUID) error

	// HandleSeatsReleased promotes queue heads to time-limited offers until
	// the freed seats are consumed. Called whenever seats return to the
	// ledger.
	HandleSeatsReleased(ctx context.Context, eventID uuid.UUID, freedSeats int) error

	// MarkAsConverted closes the loop when a waitlisted user books.
	MarkAsConverted(ctx context.Context, userID, eventID, bookingID uuid.UUID) error

	// OfferExpiry reports the live offer deadline for a user, nil when the
	// user holds no live offer.
	OfferExpiry(ctx context.Context, userID, eventID uuid.UUID) (*time.Time, error)

	// ProcessExpiredOffers moves lapsed offers back to the tail of the
	// queue and returns how many were processed.
	ProcessExpiredOffers(ctx context.Context, limit int) (int, error)
}

// service implements the Service interface
type service struct {
	repo      Repository
	events    EventGetter
	publisher EventPublisher
	policy    Policy
	logger    *logger.Logger
}

// NewService creates a new waitlist service
func NewService(repo Repository, events EventGetter, publisher EventPublisher, policy Policy) Service {
	return &service{
		repo:      repo,
		events:    events,
		publisher: publisher,
		policy:    policy,
		logger:    logger.GetDefault(),
	}
}

func (s *service) Join(ctx context.Context, userID uuid.UUID, req *JoinRequest) (*PositionResponse, error) {
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return nil, inventory.ErrEventNotFound
	}

	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if req.Quantity < 1 || req.Quantity > event.MaxTicketsPerBooking {
		return nil, inventory.ErrInvalidQuantity
	}
	// The waitlist exists for sold-out events only
	if event.AvailableSeats > 0 {
		return nil, ErrSeatsStillAvailable
	}

	if s.policy.MaxEntriesPerEvent > 0 {
		length, err := s.repo.GetQueueLength(ctx, eventID)
		if err != nil {
			return nil, err
		}
		if length >= int64(s.policy.MaxEntriesPerEvent) {
			return nil, ErrWaitlistFull
		}
	}

	now := time.Now()

	existing, err := s.repo.GetEntry(ctx, eventID, userID)
	switch {
	case err == nil:
		if existing.Status.IsActive() {
			return nil, ErrAlreadyWaitlisted
		}
		// Rejoin after leaving or converting. The old row is reused, the
		// queue position starts over at the tail.
		existing.Status = StatusWaiting
		existing.Quantity = req.Quantity
		existing.JoinedAt = now
		existing.OfferedAt = nil
		existing.OfferExpiresAt = nil
		existing.ConvertedAt = nil
		if err := s.repo.AddToQueue(ctx, eventID, userID, now); err != nil {
			return nil, err
		}
		if err := s.repo.UpdateEntry(ctx, existing); err != nil {
			return nil, err
		}
	case errors.Is(err, ErrNotOnWaitlist):
		entry := &WaitlistEntry{
			ID:       uuid.New(),
			EventID:  eventID,
			UserID:   userID,
			Quantity: req.Quantity,
			Status:   StatusWaiting,
			JoinedAt: now,
		}
		if err := s.repo.AddToQueue(ctx, eventID, userID, now); err != nil {
			return nil, err
		}
		if err := s.repo.CreateEntry(ctx, entry); err != nil {
			// Keep the queue and the table consistent on insert failure.
			if remErr := s.repo.RemoveFromQueue(ctx, eventID, userID); remErr != nil && !errors.Is(remErr, ErrNotOnWaitlist) {
				s.logger.WithError(remErr).Warn("failed to roll back waitlist queue entry")
			}
			return nil, err
		}
	default:
		return nil, err
	}

	rank, err := s.repo.GetRank(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.GetQueueLength(ctx, eventID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoWithContext(ctx, "User joined waitlist", map[string]interface{}{
		"event_id": eventID,
		"user_id":  userID,
		"position": rank + 1,
	})
	s.publish(ctx, "waitlist.joined", map[string]interface{}{
		"event_id": eventID.String(),
		"user_id":  userID.String(),
		"position": rank + 1,
	})

	return &PositionResponse{
		EventID:      eventID.String(),
		Status:       StatusWaiting.String(),
		Position:     rank + 1,
		TotalWaiting: total,
		Quantity:     req.Quantity,
	}, nil
}

func (s *service) GetPosition(ctx context.Context, userID, eventID uuid.UUID) (*PositionResponse, error) {
	entry, err := s.repo.GetEntry(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	resp := &PositionResponse{
		EventID:  eventID.String(),
		Status:   entry.Status.String(),
		Quantity: entry.Quantity,
	}

	switch entry.Status {
	case StatusWaiting:
		rank, err := s.repo.GetRank(ctx, eventID, userID)
		if err != nil {
			return nil, err
		}
		total, err := s.repo.GetQueueLength(ctx, eventID)
		if err != nil {
			return nil, err
		}
		resp.Position = rank + 1
		resp.TotalWaiting = total
	case StatusOffered:
		// An offered user is out of the ordering, position 0 means "yours
		// to take".
		resp.OfferExpiresAt = entry.OfferExpiresAt
	default:
		return nil, ErrNotOnWaitlist
	}

	return resp, nil
}

func (s *service) Leave(ctx context.Context, userID, eventID uuid.UUID) error {
	entry, err := s.repo.GetEntry(ctx, eventID, userID)
	if err != nil {
		return err
	}
	if !entry.Status.IsActive() {
		return ErrNotOnWaitlist
	}

	if entry.Status == StatusWaiting {
		if err := s.repo.RemoveFromQueue(ctx, eventID, userID); err != nil && !errors.Is(err, ErrNotOnWaitlist) {
			return err
		}
	}

	entry.Status = StatusCancelled
	entry.OfferedAt = nil
	entry.OfferExpiresAt = nil
	if err := s.repo.UpdateEntry(ctx, entry); err != nil {
		return err
	}

	s.logger.InfoWithContext(ctx, "User left waitlist", map[string]interface{}{
		"event_id": eventID,
		"user_id":  userID,
	})
	s.publish(ctx, "waitlist.left", map[string]interface{}{
		"event_id": eventID.String(),
		"user_id":  userID.String(),
	})

	return nil
}

func (s *service) HandleSeatsReleased(ctx context.Context, eventID uuid.UUID, freedSeats int) error {
	remaining := freedSeats
	for remaining > 0 {
		userID, err := s.repo.NextInQueue(ctx, eventID)
		if err != nil {
			if errors.Is(err, ErrNotOnWaitlist) {
				return nil
			}
			return err
		}

		entry, err := s.repo.GetEntry(ctx, eventID, userID)
		if err != nil {
			// Queue member without a row, drop it so the next release can
			// promote someone real.
			if errors.Is(err, ErrNotOnWaitlist) {
				if remErr := s.repo.RemoveFromQueue(ctx, eventID, userID); remErr != nil && !errors.Is(remErr, ErrNotOnWaitlist) {
					return remErr
				}
				continue
			}
			return err
		}

		// Strict FIFO, the head is never skipped. A head wanting more seats
		// than remain keeps its place until a later release covers it.
		if entry.Quantity > remaining {
			return nil
		}

		if err := s.repo.RemoveFromQueue(ctx, eventID, userID); err != nil && !errors.Is(err, ErrNotOnWaitlist) {
			return err
		}

		now := time.Now()
		expiresAt := now.Add(s.policy.OfferDuration)
		entry.Status = StatusOffered
		entry.OfferedAt = &now
		entry.OfferExpiresAt = &expiresAt
		if err := s.repo.UpdateEntry(ctx, entry); err != nil {
			return err
		}
		remaining -= entry.Quantity

		s.logger.InfoWithContext(ctx, "Waitlist offer created", map[string]interface{}{
			"event_id":   eventID,
			"user_id":    userID,
			"expires_at": expiresAt,
		})
		s.publish(ctx, "waitlist.offer_created", map[string]interface{}{
			"event_id":   eventID.String(),
			"user_id":    userID.String(),
			"quantity":   entry.Quantity,
			"expires_at": expiresAt,
		})
	}

	return nil
}

func (s *service) OfferExpiry(ctx context.Context, userID, eventID uuid.UUID) (*time.Time, error) {
	entry, err := s.repo.GetEntry(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, ErrNotOnWaitlist) {
			return nil, nil
		}
		return nil, err
	}
	if !entry.HasLiveOffer(time.Now()) {
		return nil, nil
	}
	return entry.OfferExpiresAt, nil
}

func (s *service) MarkAsConverted(ctx context.Context, userID, eventID, bookingID uuid.UUID) error {
	entry, err := s.repo.GetEntry(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, ErrNotOnWaitlist) {
			return nil
		}
		return err
	}
	if !entry.Status.IsActive() {
		return nil
	}

	if entry.Status == StatusWaiting {
		if err := s.repo.RemoveFromQueue(ctx, eventID, userID); err != nil && !errors.Is(err, ErrNotOnWaitlist) {
			return err
		}
	}

	now := time.Now()
	entry.Status = StatusConverted
	entry.ConvertedAt = &now
	entry.OfferExpiresAt = nil
	if err := s.repo.UpdateEntry(ctx, entry); err != nil {
		return err
	}

	s.publish(ctx, "waitlist.converted", map[string]interface{}{
		"event_id":   eventID.String(),
		"user_id":    userID.String(),
		"booking_id": bookingID.String(),
	})

	return nil
}

func (s *service) ProcessExpiredOffers(ctx context.Context, limit int) (int, error) {
	lapsed, err := s.repo.GetExpiredOffers(ctx, time.Now(), limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range lapsed {
		entry := &lapsed[i]
		now := time.Now()

		// An expired offer goes back to the tail, not the head. Keeping
		// the original position would starve everyone behind a user who
		// never acts on offers.
		entry.Status = StatusWaiting
		entry.JoinedAt = now
		entry.OfferedAt = nil
		entry.OfferExpiresAt = nil

		if err := s.repo.AddToQueue(ctx, entry.EventID, entry.UserID, now); err != nil && !errors.Is(err, ErrAlreadyWaitlisted) {
			return processed, err
		}
		if err := s.repo.UpdateEntry(ctx, entry); err != nil {
			return processed, err
		}

		s.publish(ctx, "waitlist.offer_expired", map[string]interface{}{
			"event_id": entry.EventID.String(),
			"user_id":  entry.UserID.String(),
		})
		processed++
	}

	return processed, nil
}

func (s *service) publish(ctx context.Context, eventType string, payload map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishWaitlistEvent(ctx, eventType, payload); err != nil {
		s.logger.WithError(err).Warn("failed to publish waitlist event")
	}
}
