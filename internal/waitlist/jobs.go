package waitlist

import (
	"context"
	"log"
	"time"
)

// JobProcessor handles background jobs for waitlist operations
type JobProcessor struct {
	service Service
	config  *JobConfig
	done    chan struct{}
}

// JobConfig contains configuration for background jobs
type JobConfig struct {
	OfferExpiryInterval time.Duration
	BatchSize           int
}

// DefaultJobConfig returns default job configuration
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		OfferExpiryInterval: 30 * time.Second,
		BatchSize:           100,
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
	log.Println("Starting waitlist background jobs...")
	go jp.startOfferExpiryProcessor(ctx)
}

// Stop stops all background jobs
func (jp *JobProcessor) Stop() {
	log.Println("Stopping waitlist background jobs...")
	close(jp.done)
}

func (jp *JobProcessor) startOfferExpiryProcessor(ctx context.Context) {
	ticker := time.NewTicker(jp.config.OfferExpiryInterval)
	defer ticker.Stop()

	log.Printf("Started waitlist offer expiry processor with %v interval", jp.config.OfferExpiryInterval)

	for {
		select {
		case <-ticker.C:
			jp.processExpiredOffers(ctx)
		case <-jp.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (jp *JobProcessor) processExpiredOffers(ctx context.Context) {
	processed, err := jp.service.ProcessExpiredOffers(ctx, jp.config.BatchSize)
	if err != nil {
		log.Printf("Error processing expired waitlist offers: %v", err)
		return
	}

	if processed > 0 {
		log.Printf("Returned %d expired waitlist offers to the queue", processed)
	}
}

// GetJobStatus returns the status of background jobs
func (jp *JobProcessor) GetJobStatus() map[string]interface{} {
	return map[string]interface{}{
		"offer_expiry_interval": jp.config.OfferExpiryInterval.String(),
		"batch_size":            jp.config.BatchSize,
		"status":                "running",
	}
}
