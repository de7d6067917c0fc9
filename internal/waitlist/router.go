package waitlist

import (
	"ticketly/internal/shared/config"
	"ticketly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupWaitlistRoutes(router *gin.RouterGroup, controller Controller, cfg *config.Config) {
	waitlistGroup := router.Group("/waitlist")
	waitlistGroup.Use(middleware.JWTAuthWithConfig(cfg))
	{
		waitlistGroup.POST("/join", controller.Join)
		waitlistGroup.GET("/position", controller.GetPosition)
		waitlistGroup.DELETE("/leave", controller.Leave)
	}
}
