package waitlist

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ticketly/internal/inventory"
	"ticketly/internal/shared/utils/response"
)

type Controller interface {
	Join(c *gin.Context)
	GetPosition(c *gin.Context)
	Leave(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, false
	}
	id, ok := raw.(string)
	if !ok {
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}

func respondWaitlistError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, inventory.ErrEventNotFound), errors.Is(err, ErrNotOnWaitlist):
		response.RespondJSON(c, "error", http.StatusNotFound, err.Error(), nil, nil)
	case errors.Is(err, inventory.ErrInvalidQuantity):
		response.RespondJSON(c, "error", http.StatusBadRequest, err.Error(), nil, nil)
	case errors.Is(err, ErrAlreadyWaitlisted), errors.Is(err, ErrWaitlistFull), errors.Is(err, ErrSeatsStillAvailable):
		response.RespondJSON(c, "error", http.StatusConflict, err.Error(), nil, nil)
	default:
		response.RespondJSON(c, "error", http.StatusInternalServerError, err.Error(), nil, nil)
	}
}

func (ctrl *controller) Join(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	position, err := ctrl.service.Join(c.Request.Context(), userID, &req)
	if err != nil {
		respondWaitlistError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Joined waitlist successfully", position, nil)
}

func (ctrl *controller) GetPosition(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	eventID, err := uuid.Parse(c.Query("event_id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid event ID", nil, nil)
		return
	}

	position, err := ctrl.service.GetPosition(c.Request.Context(), userID, eventID)
	if err != nil {
		respondWaitlistError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Waitlist position retrieved successfully", position, nil)
}

func (ctrl *controller) Leave(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	eventID, err := uuid.Parse(c.Query("event_id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid event ID", nil, nil)
		return
	}

	if err := ctrl.service.Leave(c.Request.Context(), userID, eventID); err != nil {
		respondWaitlistError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Left waitlist successfully", nil, nil)
}
