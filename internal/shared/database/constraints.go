package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds critical database constraints for concurrency control
func MigrateConstraints(db *gorm.DB) error {
	// Postgres has no ADD CONSTRAINT IF NOT EXISTS, so each constraint is
	// guarded by a pg_constraint lookup to keep reruns idempotent.
	// The ledger must never oversell or over-release, even if application
	// code regresses
	err := db.Exec(`
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM pg_constraint WHERE conname = 'chk_available_seats_non_negative'
			) THEN
				ALTER TABLE event_inventory
				ADD CONSTRAINT chk_available_seats_non_negative
				CHECK (available_seats >= 0);
			END IF;
		END
		$$;
	`).Error
	if err != nil {
		return err
	}

	err = db.Exec(`
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM pg_constraint WHERE conname = 'chk_available_seats_within_capacity'
			) THEN
				ALTER TABLE event_inventory
				ADD CONSTRAINT chk_available_seats_within_capacity
				CHECK (available_seats <= total_capacity);
			END IF;
		END
		$$;
	`).Error
	if err != nil {
		return err
	}

	// Index for the expiry sweep scanning held reservations by deadline
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_reservations_status_expires_at
		ON reservations (status, expires_at);
	`).Error
	if err != nil {
		return err
	}

	return nil
}
