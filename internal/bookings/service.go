package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ticketly/internal/inventory"
	"ticketly/internal/payments"
	"ticketly/pkg/logger"
)

// InventoryService is the slice of the ledger API the booking flow needs
// (interface kept here to avoid a circular dependency).
type InventoryService interface {
	GetEvent(ctx context.Context, eventID uuid.UUID) (*inventory.EventInventory, error)
	CheckAvailability(ctx context.Context, eventID uuid.UUID, quantity int) (*inventory.Availability, error)
	Decrement(ctx context.Context, eventID uuid.UUID, quantity int) (*inventory.EventInventory, error)
	Increment(ctx context.Context, eventID uuid.UUID, quantity int) (*inventory.EventInventory, error)
}

// WaitlistService interface for waitlist-related operations (to avoid
// circular dependency).
type WaitlistService interface {
	HandleSeatsReleased(ctx context.Context, eventID uuid.UUID, freedSeats int) error
	MarkAsConverted(ctx context.Context, userID, eventID, bookingID uuid.UUID) error

	// OfferExpiry returns the user's live offer deadline for the event,
	// or nil when no offer is outstanding.
	OfferExpiry(ctx context.Context, userID, eventID uuid.UUID) (*time.Time, error)
}

// IdempotencyClaimer is the Redis fast path in front of the reservations
// unique index. Claim hands back the owning reservation ID when the key is
// already taken.
type IdempotencyClaimer interface {
	Claim(ctx context.Context, key, reservationID string, ttl time.Duration) (bool, string, error)
	Release(ctx context.Context, key string) error
}

// EventPublisher emits booking lifecycle events for downstream consumers.
type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, eventType string, payload map[string]interface{}) error
}

// Policy carries the reservation lifecycle knobs.
type Policy struct {
	HoldDuration         time.Duration
	MaxTicketsPerBooking int
	IdempotencyTTL       time.Duration
	FullRefundWindow     time.Duration
	HalfRefundWindow     time.Duration
	TicketURLBase        string
}

// ReserveResult distinguishes a fresh hold from an idempotent replay.
type ReserveResult struct {
	Reservation *Reservation
	Replayed    bool
}

// CancelResult carries the cancelled booking plus the computed refund.
type CancelResult struct {
	Booking      *Booking
	RefundAmount float64
}

// Service interface defines the contract for booking business logic
type Service interface {
	CheckAvailability(ctx context.Context, eventID uuid.UUID, quantity int) (*inventory.Availability, error)
	Reserve(ctx context.Context, userID uuid.UUID, req *ReserveRequest) (*ReserveResult, error)
	Confirm(ctx context.Context, userID uuid.UUID, req *ConfirmRequest) (*Booking, error)
	Cancel(ctx context.Context, userID, bookingID uuid.UUID) (*CancelResult, error)
	GetBooking(ctx context.Context, bookingID uuid.UUID) (*Booking, error)
	GetReservation(ctx context.Context, reservationID uuid.UUID) (*Reservation, error)
	GetUserBookings(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Booking, int64, error)

	// ExpireReservation force-expires one held reservation, releasing its
	// seats if this caller wins the transition.
	ExpireReservation(ctx context.Context, reservationID uuid.UUID) error

	// ForceExpireAll expires every live hold regardless of deadline.
	// Operations hook for draining an event before maintenance.
	ForceExpireAll(ctx context.Context, batchSize int) (int, error)

	// ExpireOverdue sweeps a batch of lapsed holds and returns how many
	// this caller expired.
	ExpireOverdue(ctx context.Context, batchSize int) (int, error)
}

// service implements the Service interface
type service struct {
	repo      Repository
	inventory InventoryService
	waitlist  WaitlistService
	gateway   payments.Gateway
	guard     IdempotencyClaimer
	publisher EventPublisher
	policy    Policy
	logger    *logger.Logger
}

// NewService creates a new booking service instance. The guard and
// publisher are optional, a nil guard skips the Redis fast path and a nil
// publisher drops lifecycle events.
func NewService(repo Repository, inventorySvc InventoryService, waitlistSvc WaitlistService, gateway payments.Gateway, guard IdempotencyClaimer, publisher EventPublisher, policy Policy) Service {
	return &service{
		repo:      repo,
		inventory: inventorySvc,
		waitlist:  waitlistSvc,
		gateway:   gateway,
		guard:     guard,
		publisher: publisher,
		policy:    policy,
		logger:    logger.GetDefault(),
	}
}

func (s *service) CheckAvailability(ctx context.Context, eventID uuid.UUID, quantity int) (*inventory.Availability, error) {
	return s.inventory.CheckAvailability(ctx, eventID, quantity)
}

func (s *service) Reserve(ctx context.Context, userID uuid.UUID, req *ReserveRequest) (*ReserveResult, error) {
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return nil, inventory.ErrEventNotFound
	}

	reservationID := uuid.New()
	claimedKey := false

	// Fast path. A lost claim hands back the winning reservation ID, so a
	// straight retry resolves without scanning the reservations table.
	if s.guard != nil {
		claimed, owner, claimErr := s.guard.Claim(ctx, req.IdempotencyKey, reservationID.String(), s.policy.IdempotencyTTL)
		switch {
		case claimErr != nil:
			s.logger.WithError(claimErr).Warn("idempotency guard claim failed, unique index remains authoritative")
		case claimed:
			claimedKey = true
		default:
			if ownerID, parseErr := uuid.Parse(owner); parseErr == nil {
				existing, getErr := s.repo.GetReservation(ctx, ownerID)
				if getErr == nil && existing.IdempotencyKey == req.IdempotencyKey {
					return s.settle(ctx, existing, userID, eventID, req)
				}
			}
		}
	}

	// Authoritative path: the unique index on idempotency_key.
	if existing, err := s.repo.GetReservationByIdempotencyKey(ctx, req.IdempotencyKey); err == nil {
		if claimedKey {
			s.releaseClaim(ctx, req.IdempotencyKey)
		}
		return s.settle(ctx, existing, userID, eventID, req)
	} else if !errors.Is(err, ErrReservationNotFound) {
		if claimedKey {
			s.releaseClaim(ctx, req.IdempotencyKey)
		}
		return nil, err
	}

	result, err := s.createHold(ctx, reservationID, userID, eventID, req)
	if claimedKey && (err != nil || result.Replayed) {
		// The stored claim points at a reservation that never landed.
		s.releaseClaim(ctx, req.IdempotencyKey)
	}
	return result, err
}

// createHold decrements the ledger and inserts a fresh held reservation,
// compensating the decrement whenever the insert fails.
func (s *service) createHold(ctx context.Context, reservationID, userID, eventID uuid.UUID, req *ReserveRequest) (*ReserveResult, error) {
	event, err := s.inventory.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.validateQuantity(req.Quantity, event); err != nil {
		return nil, err
	}

	if _, err := s.inventory.Decrement(ctx, eventID, req.Quantity); err != nil {
		return nil, err
	}

	now := time.Now()
	reservation := &Reservation{
		ReservationID:    reservationID,
		EventID:          eventID,
		UserID:           userID,
		Quantity:         req.Quantity,
		IdempotencyKey:   req.IdempotencyKey,
		Status:           StatusHeld,
		TotalAmount:      float64(req.Quantity) * event.BasePrice,
		BookingReference: GenerateBookingReference(now),
		ExpiresAt:        s.holdDeadline(ctx, userID, eventID, now),
	}

	if err := s.repo.CreateReservation(ctx, reservation); err != nil {
		if _, incErr := s.inventory.Increment(ctx, eventID, req.Quantity); incErr != nil {
			s.logger.ErrorWithContext(ctx, "Failed to compensate failed reservation insert", incErr, map[string]interface{}{
				"event_id": eventID,
				"quantity": req.Quantity,
			})
		}
		// Losing the unique-index race means another request with the same
		// key got there first. Settle against the winner.
		if errors.Is(err, ErrDuplicateIdempotencyKey) {
			winner, readErr := s.repo.GetReservationByIdempotencyKey(ctx, req.IdempotencyKey)
			if readErr != nil {
				return nil, readErr
			}
			return s.settle(ctx, winner, userID, eventID, req)
		}
		return nil, err
	}

	s.logger.LogSeatsReserved(ctx, reservation.ReservationID.String(), eventID.String(), userID.String(), req.Quantity)
	s.publish(ctx, "reservation.created", map[string]interface{}{
		"reservation_id":    reservation.ReservationID.String(),
		"booking_reference": reservation.BookingReference,
		"event_id":          eventID.String(),
		"user_id":           userID.String(),
		"quantity":          req.Quantity,
		"expires_at":        reservation.ExpiresAt,
	})

	return &ReserveResult{Reservation: reservation}, nil
}

// settle resolves a reserve request against the reservation that already
// owns its idempotency key. Live holds and confirmed reservations replay
// untouched; a dead hold stops replaying and is revived as a fresh one.
func (s *service) settle(ctx context.Context, existing *Reservation, userID, eventID uuid.UUID, req *ReserveRequest) (*ReserveResult, error) {
	if existing.UserID != userID || existing.EventID != eventID {
		return nil, ErrIdempotencyConflict
	}

	switch existing.Status {
	case StatusConfirmed:
		return &ReserveResult{Reservation: existing, Replayed: true}, nil
	case StatusHeld:
		if !existing.IsExpired(time.Now()) {
			return &ReserveResult{Reservation: existing, Replayed: true}, nil
		}
		// Lapsed but unswept. Expire it so its seats come back, then
		// start the hold over.
		if err := s.expire(ctx, existing); err != nil && !errors.Is(err, errLostExpiryRace) {
			return nil, err
		}
		return s.revive(ctx, existing, userID, req)
	default:
		return s.revive(ctx, existing, userID, req)
	}
}

// revive reuses a dead reservation row for a fresh hold, keeping the
// unique idempotency_key index intact.
func (s *service) revive(ctx context.Context, prior *Reservation, userID uuid.UUID, req *ReserveRequest) (*ReserveResult, error) {
	event, err := s.inventory.GetEvent(ctx, prior.EventID)
	if err != nil {
		return nil, err
	}
	if err := s.validateQuantity(req.Quantity, event); err != nil {
		return nil, err
	}

	if _, err := s.inventory.Decrement(ctx, prior.EventID, req.Quantity); err != nil {
		return nil, err
	}

	now := time.Now()
	refreshed := *prior
	refreshed.Status = StatusHeld
	refreshed.Quantity = req.Quantity
	refreshed.TotalAmount = float64(req.Quantity) * event.BasePrice
	refreshed.BookingReference = GenerateBookingReference(now)
	refreshed.ExpiresAt = s.holdDeadline(ctx, userID, prior.EventID, now)

	won, err := s.repo.ReviveReservation(ctx, refreshed.ReservationID, refreshed.Quantity, refreshed.TotalAmount, refreshed.BookingReference, refreshed.ExpiresAt)
	if err != nil || !won {
		if _, incErr := s.inventory.Increment(ctx, prior.EventID, req.Quantity); incErr != nil {
			s.logger.ErrorWithContext(ctx, "Failed to compensate after lost revive race", incErr, map[string]interface{}{
				"event_id": prior.EventID,
				"quantity": req.Quantity,
			})
		}
		if err != nil {
			return nil, err
		}
		// A concurrent retry revived the row first; replay what it holds.
		winner, readErr := s.repo.GetReservation(ctx, prior.ReservationID)
		if readErr != nil {
			return nil, readErr
		}
		return &ReserveResult{Reservation: winner, Replayed: true}, nil
	}

	s.logger.LogSeatsReserved(ctx, refreshed.ReservationID.String(), prior.EventID.String(), userID.String(), req.Quantity)
	s.publish(ctx, "reservation.created", map[string]interface{}{
		"reservation_id":    refreshed.ReservationID.String(),
		"booking_reference": refreshed.BookingReference,
		"event_id":          prior.EventID.String(),
		"user_id":           userID.String(),
		"quantity":          req.Quantity,
		"expires_at":        refreshed.ExpiresAt,
	})

	return &ReserveResult{Reservation: &refreshed}, nil
}

func (s *service) validateQuantity(quantity int, event *inventory.EventInventory) error {
	maxPerBooking := event.MaxTicketsPerBooking
	if maxPerBooking <= 0 {
		maxPerBooking = s.policy.MaxTicketsPerBooking
	}
	if quantity < 1 || quantity > maxPerBooking {
		return inventory.ErrInvalidQuantity
	}
	return nil
}

// holdDeadline is now plus the hold duration, clamped to the caller's live
// waitlist offer so a promoted user cannot hold seats past their window.
func (s *service) holdDeadline(ctx context.Context, userID, eventID uuid.UUID, now time.Time) time.Time {
	deadline := now.Add(s.policy.HoldDuration)
	if s.waitlist == nil {
		return deadline
	}
	offerExpiry, err := s.waitlist.OfferExpiry(ctx, userID, eventID)
	if err != nil {
		s.logger.WithError(err).Warn("waitlist offer lookup failed")
		return deadline
	}
	if offerExpiry != nil && offerExpiry.Before(deadline) {
		return *offerExpiry
	}
	return deadline
}

func (s *service) releaseClaim(ctx context.Context, key string) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Release(ctx, key); err != nil {
		s.logger.WithError(err).Warn("failed to release idempotency claim")
	}
}

func (s *service) Confirm(ctx context.Context, userID uuid.UUID, req *ConfirmRequest) (*Booking, error) {
	reservationID, err := uuid.Parse(req.ReservationID)
	if err != nil {
		return nil, ErrReservationNotFound
	}

	reservation, err := s.repo.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if reservation.UserID != userID {
		return nil, ErrNotOwner
	}
	if reservation.Status != StatusHeld {
		return nil, ErrInvalidState
	}

	now := time.Now()
	if now.After(reservation.ExpiresAt) {
		// Lapsed before confirmation. Expire it here rather than waiting
		// for the sweep, whoever wins the transition releases the seats.
		if err := s.expire(ctx, reservation); err != nil {
			return nil, err
		}
		return nil, ErrReservationExpired
	}

	charge, err := s.gateway.Charge(ctx, &payments.ChargeRequest{
		ReservationID: reservation.ReservationID.String(),
		UserID:        userID.String(),
		Amount:        reservation.TotalAmount,
		Currency:      "USD",
		Method:        req.PaymentMethod,
		PaymentToken:  req.PaymentToken,
	})
	if err != nil {
		if errors.Is(err, payments.ErrChargeDeclined) {
			s.releaseDeclined(ctx, reservation, charge)
			reason := "declined"
			if charge != nil && charge.FailureReason != "" {
				reason = charge.FailureReason
			}
			return nil, fmt.Errorf("%w: %s", ErrPaymentFailed, reason)
		}
		return nil, err
	}

	won, err := s.repo.TransitionReservation(ctx, reservation.ReservationID, StatusHeld, StatusConfirmed)
	if err != nil {
		return nil, err
	}
	if !won {
		// The expiry sweep got there first. The charge must not stand.
		if refundErr := s.gateway.Refund(ctx, charge.TransactionID, reservation.TotalAmount); refundErr != nil {
			s.logger.ErrorWithContext(ctx, "Failed to refund charge on lost confirm race", refundErr, map[string]interface{}{
				"reservation_id": reservation.ReservationID,
				"transaction_id": charge.TransactionID,
			})
		}
		return nil, ErrReservationExpired
	}

	booking, err := s.materializeBooking(ctx, reservation, charge.TransactionID, req.PaymentMethod, now)
	if err != nil {
		return nil, err
	}

	if s.waitlist != nil {
		if err := s.waitlist.MarkAsConverted(ctx, userID, reservation.EventID, booking.BookingID); err != nil {
			s.logger.WithError(err).Warn("failed to mark waitlist entry converted")
		}
	}

	s.logger.LogBookingConfirmed(ctx, booking.BookingID.String(), reservation.EventID.String(), userID.String())
	s.publish(ctx, "booking.confirmed", map[string]interface{}{
		"booking_id":        booking.BookingID.String(),
		"booking_reference": booking.BookingReference,
		"event_id":          reservation.EventID.String(),
		"user_id":           userID.String(),
		"total_amount":      booking.TotalAmount,
	})

	return booking, nil
}

// materializeBooking turns a confirmed reservation into a Booking row. The
// reference is regenerated once on a collision with the unique index.
func (s *service) materializeBooking(ctx context.Context, reservation *Reservation, transactionID, paymentMethod string, now time.Time) (*Booking, error) {
	booking := &Booking{
		BookingID:     uuid.New(),
		ReservationID: reservation.ReservationID,
		EventID:       reservation.EventID,
		UserID:        reservation.UserID,
		Quantity:      reservation.Quantity,
		TotalAmount:   reservation.TotalAmount,
		Status:        StatusConfirmed,
		TransactionID: transactionID,
		PaymentMethod: paymentMethod,
		PaymentStatus: "completed",
		ConfirmedAt:   now,
	}

	// The reference minted at reserve time carries over; it is only
	// regenerated on the rare collision with the bookings unique index.
	booking.BookingReference = reservation.BookingReference
	for attempt := 0; attempt < 3; attempt++ {
		if booking.BookingReference == "" || attempt > 0 {
			booking.BookingReference = GenerateBookingReference(now)
		}
		booking.TicketURL = TicketURL(s.policy.TicketURLBase, booking.BookingReference)
		err := s.repo.CreateBooking(ctx, booking)
		if err == nil {
			return booking, nil
		}
		if attempt == 2 || !errors.Is(err, ErrDuplicateReference) {
			return nil, err
		}
	}
	return booking, nil
}

// releaseDeclined compensates a declined charge by cancelling the hold and
// returning its seats.
func (s *service) releaseDeclined(ctx context.Context, reservation *Reservation, charge *payments.ChargeResponse) {
	won, err := s.repo.TransitionReservation(ctx, reservation.ReservationID, StatusHeld, StatusCancelled)
	if err != nil {
		s.logger.ErrorWithContext(ctx, "Failed to cancel reservation after declined charge", err, map[string]interface{}{
			"reservation_id": reservation.ReservationID,
		})
		return
	}
	if !won {
		return
	}

	s.releaseSeats(ctx, reservation.EventID, reservation.Quantity)

	reason := ""
	if charge != nil {
		reason = charge.FailureReason
	}
	s.publish(ctx, "reservation.payment_failed", map[string]interface{}{
		"reservation_id": reservation.ReservationID.String(),
		"event_id":       reservation.EventID.String(),
		"reason":         reason,
	})
}

func (s *service) Cancel(ctx context.Context, userID, bookingID uuid.UUID) (*CancelResult, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, ErrNotOwner
	}

	event, err := s.inventory.GetEvent(ctx, booking.EventID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	refund := RefundAmount(booking.TotalAmount, event.StartsAt, now, s.policy.FullRefundWindow, s.policy.HalfRefundWindow)

	won, err := s.repo.CancelBooking(ctx, bookingID, refund, now)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrInvalidState
	}

	if booking.TransactionID != "" && refund > 0 {
		if err := s.gateway.Refund(ctx, booking.TransactionID, refund); err != nil {
			s.logger.ErrorWithContext(ctx, "Failed to refund cancelled booking", err, map[string]interface{}{
				"booking_id":     bookingID,
				"transaction_id": booking.TransactionID,
			})
		}
	}

	s.releaseSeats(ctx, booking.EventID, booking.Quantity)

	booking.Status = StatusCancelled
	booking.RefundAmount = refund
	booking.CancelledAt = &now

	s.logger.LogBookingCancelled(ctx, bookingID.String(), booking.EventID.String(), userID.String(), refund)
	s.publish(ctx, "booking.cancelled", map[string]interface{}{
		"booking_id":    bookingID.String(),
		"event_id":      booking.EventID.String(),
		"user_id":       userID.String(),
		"refund_amount": refund,
	})

	return &CancelResult{Booking: booking, RefundAmount: refund}, nil
}

func (s *service) GetBooking(ctx context.Context, bookingID uuid.UUID) (*Booking, error) {
	return s.repo.GetBooking(ctx, bookingID)
}

func (s *service) GetReservation(ctx context.Context, reservationID uuid.UUID) (*Reservation, error) {
	return s.repo.GetReservation(ctx, reservationID)
}

func (s *service) GetUserBookings(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Booking, int64, error) {
	return s.repo.ListUserBookings(ctx, userID, limit, offset)
}

func (s *service) ExpireReservation(ctx context.Context, reservationID uuid.UUID) error {
	reservation, err := s.repo.GetReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	if reservation.Status != StatusHeld {
		return ErrInvalidState
	}
	return s.expire(ctx, reservation)
}

func (s *service) ExpireOverdue(ctx context.Context, batchSize int) (int, error) {
	overdue, err := s.repo.ListExpiredHeld(ctx, time.Now(), batchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range overdue {
		if err := s.expire(ctx, &overdue[i]); err != nil {
			if errors.Is(err, errLostExpiryRace) {
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func (s *service) ForceExpireAll(ctx context.Context, batchSize int) (int, error) {
	// Horizon far past any configured hold duration, so every held
	// reservation qualifies
	cutoff := time.Now().Add(24 * 365 * time.Hour)

	expired := 0
	for {
		batch, err := s.repo.ListExpiredHeld(ctx, cutoff, batchSize)
		if err != nil {
			return expired, err
		}
		if len(batch) == 0 {
			return expired, nil
		}
		for i := range batch {
			if err := s.expire(ctx, &batch[i]); err != nil {
				if errors.Is(err, errLostExpiryRace) {
					continue
				}
				return expired, err
			}
			expired++
		}
	}
}

var errLostExpiryRace = errors.New("reservation already transitioned")

// expire moves one held reservation to expired. Only the transition winner
// releases the seats, so a sweep and a concurrent Confirm can never both
// act on the same hold.
func (s *service) expire(ctx context.Context, reservation *Reservation) error {
	won, err := s.repo.TransitionReservation(ctx, reservation.ReservationID, StatusHeld, StatusExpired)
	if err != nil {
		return err
	}
	if !won {
		return errLostExpiryRace
	}

	s.releaseSeats(ctx, reservation.EventID, reservation.Quantity)

	s.logger.LogReservationExpired(ctx, reservation.ReservationID.String(), reservation.EventID.String(), reservation.Quantity)
	s.publish(ctx, "reservation.expired", map[string]interface{}{
		"reservation_id": reservation.ReservationID.String(),
		"event_id":       reservation.EventID.String(),
		"quantity":       reservation.Quantity,
	})

	return nil
}

// releaseSeats returns seats to the ledger and kicks the waitlist.
func (s *service) releaseSeats(ctx context.Context, eventID uuid.UUID, quantity int) {
	if _, err := s.inventory.Increment(ctx, eventID, quantity); err != nil {
		s.logger.ErrorWithContext(ctx, "Failed to release seats", err, map[string]interface{}{
			"event_id": eventID,
			"quantity": quantity,
		})
		return
	}

	if s.waitlist != nil {
		if err := s.waitlist.HandleSeatsReleased(ctx, eventID, quantity); err != nil {
			s.logger.WithError(err).Warn("waitlist promotion check failed")
		}
	}
}

func (s *service) publish(ctx context.Context, eventType string, payload map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishBookingEvent(ctx, eventType, payload); err != nil {
		s.logger.WithError(err).Warn("failed to publish booking event")
	}
}
