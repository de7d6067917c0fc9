package database

import (
	"ticketly/internal/bookings"
	"ticketly/internal/inventory"
	"ticketly/internal/waitlist"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&inventory.EventInventory{},
		&bookings.Reservation{},
		&bookings.Booking{},
		&waitlist.WaitlistEntry{},
	)
}
