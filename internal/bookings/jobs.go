package bookings

import (
	"context"
	"log"
	"time"
)

// JobProcessor runs the expiry sweep for lapsed holds
type JobProcessor struct {
	service Service
	config  *JobConfig
	done    chan struct{}
}

// JobConfig contains configuration for background jobs
type JobConfig struct {
	SweepInterval time.Duration
	BatchSize     int
}

// DefaultJobConfig returns default job configuration
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		SweepInterval: 30 * time.Second,
		BatchSize:     100,
	}
}

// NewJobProcessor creates a new job processor
func NewJobProcessor(service Service, config *JobConfig) *JobProcessor {
	if config == nil {
		config = DefaultJobConfig()
	}

	return &JobProcessor{
		service: service,
		config:  config,
		done:    make(chan struct{}),
	}
}

// Start starts all background jobs
func (jp *JobProcessor) Start(ctx context.Context) {
	log.Println("Starting reservation expiry sweep...")
	go jp.startExpirySweep(ctx)
}

// Stop stops all background jobs
func (jp *JobProcessor) Stop() {
	log.Println("Stopping reservation expiry sweep...")
	close(jp.done)
}

func (jp *JobProcessor) startExpirySweep(ctx context.Context) {
	ticker := time.NewTicker(jp.config.SweepInterval)
	defer ticker.Stop()

	log.Printf("Started reservation expiry sweep with %v interval", jp.config.SweepInterval)

	for {
		select {
		case <-ticker.C:
			jp.sweep(ctx)
		case <-jp.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (jp *JobProcessor) sweep(ctx context.Context) {
	expired, err := jp.service.ExpireOverdue(ctx, jp.config.BatchSize)
	if err != nil {
		log.Printf("Error sweeping expired reservations: %v", err)
		return
	}

	if expired > 0 {
		log.Printf("Expired %d lapsed reservations", expired)
	}
}

// GetJobStatus returns the status of background jobs
func (jp *JobProcessor) GetJobStatus() map[string]interface{} {
	return map[string]interface{}{
		"sweep_interval": jp.config.SweepInterval.String(),
		"batch_size":     jp.config.BatchSize,
		"status":         "running",
	}
}
