package bookings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository interface defines data access for reservations and bookings.
// Status transitions are conditional updates so exactly one caller wins any
// race on the same reservation.
type Repository interface {
	CreateReservation(ctx context.Context, res *Reservation) error
	GetReservation(ctx context.Context, reservationID uuid.UUID) (*Reservation, error)
	GetReservationByIdempotencyKey(ctx context.Context, key string) (*Reservation, error)

	// TransitionReservation moves a reservation from one status to another.
	// It reports false when the reservation was not in the expected status,
	// meaning a concurrent caller already won the transition.
	TransitionReservation(ctx context.Context, reservationID uuid.UUID, from, to Status) (bool, error)

	// ReviveReservation reuses a dead reservation row for a fresh hold.
	// Reports false when the row was not expired or cancelled, meaning a
	// concurrent retry already revived it.
	ReviveReservation(ctx context.Context, reservationID uuid.UUID, quantity int, totalAmount float64, bookingReference string, expiresAt time.Time) (bool, error)

	// ListExpiredHeld returns held reservations whose hold lapsed before
	// the cutoff, oldest first.
	ListExpiredHeld(ctx context.Context, cutoff time.Time, limit int) ([]Reservation, error)

	CreateBooking(ctx context.Context, booking *Booking) error
	GetBooking(ctx context.Context, bookingID uuid.UUID) (*Booking, error)
	GetBookingByReference(ctx context.Context, reference string) (*Booking, error)

	// CancelBooking moves a confirmed booking to cancelled and records the
	// refund. Reports false if the booking was not confirmed.
	CancelBooking(ctx context.Context, bookingID uuid.UUID, refundAmount float64, at time.Time) (bool, error)

	ListUserBookings(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Booking, int64, error)
}

// ErrDuplicateIdempotencyKey surfaces the unique index violation on
// reservations.idempotency_key. The caller re-reads the winning row.
var ErrDuplicateIdempotencyKey = errors.New("idempotency key already exists")

// ErrDuplicateReference surfaces a booking_reference collision. The caller
// regenerates and retries.
var ErrDuplicateReference = errors.New("booking reference already exists")

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateReservation(ctx context.Context, res *Reservation) error {
	if res.ReservationID == uuid.Nil {
		res.ReservationID = uuid.New()
	}
	if res.Status == "" {
		res.Status = StatusHeld
	}

	err := r.db.WithContext(ctx).Create(res).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateIdempotencyKey
		}
		return err
	}
	return nil
}

func (r *repository) GetReservation(ctx context.Context, reservationID uuid.UUID) (*Reservation, error) {
	var res Reservation
	err := r.db.WithContext(ctx).First(&res, "reservation_id = ?", reservationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return &res, nil
}

func (r *repository) GetReservationByIdempotencyKey(ctx context.Context, key string) (*Reservation, error) {
	var res Reservation
	err := r.db.WithContext(ctx).First(&res, "idempotency_key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return &res, nil
}

func (r *repository) TransitionReservation(ctx context.Context, reservationID uuid.UUID, from, to Status) (bool, error) {
	result := r.db.WithContext(ctx).Model(&Reservation{}).
		Where("reservation_id = ? AND status = ?", reservationID, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ReviveReservation(ctx context.Context, reservationID uuid.UUID, quantity int, totalAmount float64, bookingReference string, expiresAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&Reservation{}).
		Where("reservation_id = ? AND status IN ?", reservationID, []Status{StatusExpired, StatusCancelled}).
		Updates(map[string]interface{}{
			"status":            StatusHeld,
			"quantity":          quantity,
			"total_amount":      totalAmount,
			"booking_reference": bookingReference,
			"expires_at":        expiresAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ListExpiredHeld(ctx context.Context, cutoff time.Time, limit int) ([]Reservation, error) {
	var expired []Reservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", StatusHeld, cutoff).
		Order("expires_at ASC").
		Limit(limit).
		Find(&expired).Error
	return expired, err
}

func (r *repository) CreateBooking(ctx context.Context, booking *Booking) error {
	if booking.BookingID == uuid.Nil {
		booking.BookingID = uuid.New()
	}
	if booking.Status == "" {
		booking.Status = StatusConfirmed
	}
	err := r.db.WithContext(ctx).Create(booking).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateReference
	}
	return err
}

func (r *repository) GetBooking(ctx context.Context, bookingID uuid.UUID) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).First(&booking, "booking_id = ?", bookingID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repository) GetBookingByReference(ctx context.Context, reference string) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).First(&booking, "booking_reference = ?", reference).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repository) CancelBooking(ctx context.Context, bookingID uuid.UUID, refundAmount float64, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":        StatusCancelled,
		"refund_amount": refundAmount,
		"cancelled_at":  at,
	}
	if refundAmount > 0 {
		updates["payment_status"] = "refunded"
	}
	result := r.db.WithContext(ctx).Model(&Booking{}).
		Where("booking_id = ? AND status = ?", bookingID, StatusConfirmed).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ListUserBookings(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Booking, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&Booking{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var bookings []Booking
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&bookings).Error
	return bookings, total, err
}
