package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"ticketly/internal/inventory"
	"ticketly/internal/shared/config"
	"ticketly/internal/shared/database"

	"github.com/google/uuid"
)

type Seeder struct {
	db *database.DB
}

func main() {
	fmt.Println("🌱 Starting Ticketly Database Seeder...")

	cfg := config.Load()

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db}

	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedEvents(); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates all tables in the correct order (respecting foreign key constraints)
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"waitlist_entries",
		"bookings",
		"reservations",
		"event_inventory",
	}

	pg := s.db.GetPostgreSQL()
	for _, table := range tables {
		if err := pg.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error; err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}

	if err := s.db.GetRedisClient().FlushDB(context.Background()).Err(); err != nil {
		return fmt.Errorf("failed to flush redis: %w", err)
	}

	return nil
}

// SeedEvents inserts a spread of events useful for load and demo runs:
// a near-sellout, a mid-size show, and a small event that sells out fast
// enough to exercise the waitlist.
func (s *Seeder) SeedEvents() error {
	now := time.Now()
	events := []inventory.EventInventory{
		{
			EventID:              uuid.New(),
			Name:                 "Stadium World Tour",
			TotalCapacity:        50000,
			AvailableSeats:       50000,
			MaxTicketsPerBooking: 8,
			BasePrice:            149.99,
			StartsAt:             now.Add(30 * 24 * time.Hour),
			Version:              1,
		},
		{
			EventID:              uuid.New(),
			Name:                 "Arena Night",
			TotalCapacity:        5000,
			AvailableSeats:       5000,
			MaxTicketsPerBooking: 6,
			BasePrice:            79.50,
			StartsAt:             now.Add(7 * 24 * time.Hour),
			Version:              1,
		},
		{
			EventID:              uuid.New(),
			Name:                 "Club Showcase",
			TotalCapacity:        200,
			AvailableSeats:       200,
			MaxTicketsPerBooking: 4,
			BasePrice:            35,
			StartsAt:             now.Add(48 * time.Hour),
			Version:              1,
		},
		{
			EventID:              uuid.New(),
			Name:                 "Intimate Acoustic Session",
			TotalCapacity:        40,
			AvailableSeats:       40,
			MaxTicketsPerBooking: 2,
			BasePrice:            120,
			StartsAt:             now.Add(20 * time.Hour),
			Version:              1,
		},
	}

	pg := s.db.GetPostgreSQL()
	for i := range events {
		if err := pg.Create(&events[i]).Error; err != nil {
			return fmt.Errorf("failed to seed event %q: %w", events[i].Name, err)
		}
		fmt.Printf("   📅 %s (%d seats, $%.2f)\n", events[i].Name, events[i].TotalCapacity, events[i].BasePrice)
	}

	return nil
}
