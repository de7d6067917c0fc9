package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository interface defines the contract for ledger data operations
type Repository interface {
	Create(ctx context.Context, inv *EventInventory) error
	GetByID(ctx context.Context, eventID uuid.UUID) (*EventInventory, error)
	List(ctx context.Context, limit, offset int) ([]EventInventory, error)

	// Decrement atomically takes quantity seats from the event. It fails
	// with ErrInsufficientSeats when fewer seats remain, without ever
	// letting the ledger go negative under concurrent callers.
	Decrement(ctx context.Context, eventID uuid.UUID, quantity int) (*EventInventory, error)

	// Increment atomically returns quantity seats to the event, capped at
	// total_capacity. Exceeding capacity fails with ErrCapacityExceeded.
	Increment(ctx context.Context, eventID uuid.UUID, quantity int) (*EventInventory, error)

	// UpdateCapacity applies an admin capacity change guarded by the
	// version counter.
	UpdateCapacity(ctx context.Context, eventID uuid.UUID, totalCapacity, availableSeats, version int) (*EventInventory, error)
}

// repository implements the Repository interface
type repository struct {
	db *gorm.DB
}

// NewRepository creates a new inventory repository
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, inv *EventInventory) error {
	if inv.EventID == uuid.Nil {
		inv.EventID = uuid.New()
	}
	if inv.Version == 0 {
		inv.Version = 1
	}
	return r.db.WithContext(ctx).Create(inv).Error
}

func (r *repository) GetByID(ctx context.Context, eventID uuid.UUID) (*EventInventory, error) {
	var inv EventInventory
	err := r.db.WithContext(ctx).First(&inv, "event_id = ?", eventID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]EventInventory, error) {
	var items []EventInventory
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	return items, err
}

func (r *repository) Decrement(ctx context.Context, eventID uuid.UUID, quantity int) (*EventInventory, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	// The availability guard lives in the WHERE clause so the check and the
	// subtraction are one atomic statement. Concurrent decrements for the
	// same event serialize on the row lock and the losers affect zero rows.
	res := r.db.WithContext(ctx).Model(&EventInventory{}).
		Where("event_id = ? AND available_seats >= ?", eventID, quantity).
		Updates(map[string]interface{}{
			"available_seats": gorm.Expr("available_seats - ?", quantity),
			"version":         gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, eventID); err != nil {
			return nil, err
		}
		return nil, ErrInsufficientSeats
	}

	return r.GetByID(ctx, eventID)
}

func (r *repository) Increment(ctx context.Context, eventID uuid.UUID, quantity int) (*EventInventory, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	res := r.db.WithContext(ctx).Model(&EventInventory{}).
		Where("event_id = ? AND available_seats + ? <= total_capacity", eventID, quantity).
		Updates(map[string]interface{}{
			"available_seats": gorm.Expr("available_seats + ?", quantity),
			"version":         gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, eventID); err != nil {
			return nil, err
		}
		return nil, ErrCapacityExceeded
	}

	return r.GetByID(ctx, eventID)
}

func (r *repository) UpdateCapacity(ctx context.Context, eventID uuid.UUID, totalCapacity, availableSeats, version int) (*EventInventory, error) {
	res := r.db.WithContext(ctx).Model(&EventInventory{}).
		Where("event_id = ? AND version = ?", eventID, version).
		Updates(map[string]interface{}{
			"total_capacity":  totalCapacity,
			"available_seats": availableSeats,
			"version":         gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, eventID); err != nil {
			return nil, err
		}
		return nil, ErrVersionConflict
	}

	return r.GetByID(ctx, eventID)
}
