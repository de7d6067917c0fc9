package bookings

import (
	"ticketly/internal/shared/config"
	"ticketly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupBookingRoutes(router *gin.RouterGroup, controller Controller, cfg *config.Config) {
	// Availability is a public read
	router.GET("/bookings/check-availability", controller.CheckAvailability)

	// Booking lifecycle - authenticated users only
	userBookings := router.Group("/bookings")
	userBookings.Use(middleware.JWTAuthWithConfig(cfg))
	{
		userBookings.POST("/reserve", controller.Reserve)
		userBookings.POST("/confirm", controller.Confirm)
		userBookings.GET("/:id", controller.GetBooking)
		userBookings.DELETE("/:id", controller.CancelBooking)
	}

	// Booking history
	users := router.Group("/users")
	users.Use(middleware.JWTAuthWithConfig(cfg))
	{
		users.GET("/bookings", controller.GetUserBookings)
	}

	// Internal endpoints - service-to-service only
	internal := router.Group("/internal/bookings")
	internal.Use(middleware.InternalAuth(cfg.InternalAPIKey))
	{
		internal.GET("/:id", controller.InternalGetBooking)
		internal.POST("/expire-reservations", controller.ExpireReservations)
		internal.POST("/force-expire-all", controller.ForceExpireAll)
		internal.POST("/reservations/:id/expire", controller.ForceExpireReservation)
	}
}
