// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ticketly/internal/bookings"
	"ticketly/internal/inventory"
	"ticketly/internal/notifications"
	"ticketly/internal/payments"
	"ticketly/internal/shared/config"
	"ticketly/internal/shared/database"
	"ticketly/internal/waitlist"
	"ticketly/pkg/cache"
)

// Router holds all route dependencies
type Router struct {
	config    *config.Config
	db        *database.DB
	producer  notifications.Producer
	gateway   payments.Gateway
	guard     *bookings.IdempotencyGuard
	jobStatus map[string]interface{}

	inventoryService inventory.Service
	bookingService   bookings.Service
	waitlistService  waitlist.Service
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, db *database.DB, producer notifications.Producer, gateway payments.Gateway) *Router {
	return &Router{
		config:    cfg,
		db:        db,
		producer:  producer,
		gateway:   gateway,
		jobStatus: map[string]interface{}{},
	}
}

// SetupRoutes configures all application routes and wires the services
// together. Services are built here so route groups can share them.
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.buildServices()

	r.setupHealthRoutes(engine)

	api := engine.Group(r.config.GetAPIBasePath())
	{
		r.setupInventoryRoutes(api)
		r.setupBookingRoutes(api)
		r.setupWaitlistRoutes(api)
	}
}

// buildServices wires repositories, services, and cross-package consumers.
func (r *Router) buildServices() {
	cacheService := cache.NewService(r.db.GetRedisClient())

	inventoryRepo := inventory.NewRepository(r.db.GetPostgreSQL())
	r.inventoryService = inventory.NewService(inventoryRepo, cacheService, r.config.Redis.AvailabilityCacheTTL)

	waitlistRepo := waitlist.NewRepository(r.db.GetPostgreSQL(), r.db.GetRedisClient(), r.config.Redis.WaitlistKeyTTL)
	r.waitlistService = waitlist.NewService(waitlistRepo, r.inventoryService, r.producer, waitlist.Policy{
		OfferDuration:      r.config.Waitlist.OfferDuration,
		MaxEntriesPerEvent: r.config.Waitlist.MaxEntriesPerEvent,
	})

	r.guard = bookings.NewIdempotencyGuard(r.db.GetRedisClient())

	bookingRepo := bookings.NewRepository(r.db.GetPostgreSQL())
	r.bookingService = bookings.NewService(bookingRepo, r.inventoryService, r.waitlistService, r.gateway, r.guard, r.producer, bookings.Policy{
		HoldDuration:         r.config.Booking.HoldDuration,
		MaxTicketsPerBooking: r.config.Booking.MaxTicketsPerBooking,
		IdempotencyTTL:       r.config.Redis.IdempotencyTTL,
		FullRefundWindow:     r.config.Booking.FullRefundWindow,
		HalfRefundWindow:     r.config.Booking.HalfRefundWindow,
		TicketURLBase:        r.config.Booking.TicketURLBase,
	})
}

// BookingService exposes the wired booking service for background jobs.
func (r *Router) BookingService() bookings.Service {
	return r.bookingService
}

// WaitlistService exposes the wired waitlist service for background jobs.
func (r *Router) WaitlistService() waitlist.Service {
	return r.waitlistService
}

// IdempotencyGuard exposes the guard so main can preload its Lua script.
func (r *Router) IdempotencyGuard() *bookings.IdempotencyGuard {
	return r.guard
}

// SetJobStatus publishes background job info on the status endpoint.
func (r *Router) SetJobStatus(name string, status map[string]interface{}) {
	r.jobStatus[name] = status
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "ticketly-booking-engine",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "ticketly-booking-engine",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"timestamp":   time.Now(),
			"jobs":        r.jobStatus,
		})
	})
}

func (r *Router) setupInventoryRoutes(rg *gin.RouterGroup) {
	inventoryController := inventory.NewController(r.inventoryService)
	inventory.SetupInventoryRoutes(rg, inventoryController, r.config)
}

func (r *Router) setupBookingRoutes(rg *gin.RouterGroup) {
	bookingController := bookings.NewController(r.bookingService, r.config.Booking.SweepBatchSize)
	bookings.SetupBookingRoutes(rg, bookingController, r.config)
}

func (r *Router) setupWaitlistRoutes(rg *gin.RouterGroup) {
	waitlistController := waitlist.NewController(r.waitlistService)
	waitlist.SetupWaitlistRoutes(rg, waitlistController, r.config)
}
