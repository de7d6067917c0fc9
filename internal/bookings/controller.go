package bookings

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"ticketly/internal/inventory"
	"ticketly/internal/shared/utils/response"
)

type Controller interface {
	CheckAvailability(c *gin.Context)
	Reserve(c *gin.Context)
	Confirm(c *gin.Context)
	GetBooking(c *gin.Context)
	CancelBooking(c *gin.Context)
	GetUserBookings(c *gin.Context)

	// Internal endpoints, guarded by the service API key
	InternalGetBooking(c *gin.Context)
	ExpireReservations(c *gin.Context)
	ForceExpireReservation(c *gin.Context)
	ForceExpireAll(c *gin.Context)
}

type controller struct {
	service        Service
	validator      *validator.Validate
	sweepBatchSize int
}

func NewController(service Service, sweepBatchSize int) Controller {
	return &controller{
		service:        service,
		validator:      validator.New(),
		sweepBatchSize: sweepBatchSize,
	}
}

// currentUserID reads the user set by the JWT middleware.
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

// respondDomainError maps domain errors onto the HTTP taxonomy.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, inventory.ErrEventNotFound),
		errors.Is(err, ErrReservationNotFound),
		errors.Is(err, ErrBookingNotFound):
		response.RespondJSON(c, "error", http.StatusNotFound, err.Error(), nil, nil)
	case errors.Is(err, inventory.ErrInvalidQuantity):
		response.RespondJSON(c, "error", http.StatusBadRequest, err.Error(), nil, nil)
	case errors.Is(err, inventory.ErrInsufficientSeats):
		response.RespondJSON(c, "error", http.StatusConflict, err.Error(), nil, nil)
	case errors.Is(err, ErrReservationExpired):
		response.RespondJSON(c, "error", http.StatusGone, err.Error(), nil, nil)
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrIdempotencyConflict):
		response.RespondJSON(c, "error", http.StatusConflict, err.Error(), nil, nil)
	case errors.Is(err, ErrPaymentFailed):
		response.RespondJSON(c, "error", http.StatusPaymentRequired, err.Error(), nil, nil)
	case errors.Is(err, ErrNotOwner):
		response.RespondJSON(c, "error", http.StatusForbidden, err.Error(), nil, nil)
	default:
		response.RespondJSON(c, "error", http.StatusInternalServerError, err.Error(), nil, nil)
	}
}

func (ctrl *controller) CheckAvailability(c *gin.Context) {
	eventID, err := uuid.Parse(c.Query("event_id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid event ID", nil, nil)
		return
	}

	quantity, err := strconv.Atoi(c.DefaultQuery("quantity", "1"))
	if err != nil || quantity < 1 {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid quantity", nil, nil)
		return
	}

	availability, err := ctrl.service.CheckAvailability(c.Request.Context(), eventID, quantity)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Availability retrieved successfully", availability, nil)
}

func (ctrl *controller) Reserve(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var req ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}
	if err := ctrl.validator.Struct(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Validation failed", nil, err.Error())
		return
	}

	result, err := ctrl.service.Reserve(c.Request.Context(), userID, &req)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	message := "Seats reserved successfully"
	if result.Replayed {
		message = "Reservation already exists for this idempotency key"
	}
	response.RespondJSON(c, "success", http.StatusOK, message, toReservationResponse(result.Reservation, result.Replayed), nil)
}

func (ctrl *controller) Confirm(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}
	if err := ctrl.validator.Struct(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Validation failed", nil, err.Error())
		return
	}

	booking, err := ctrl.service.Confirm(c.Request.Context(), userID, &req)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Booking confirmed successfully", toBookingResponse(booking), nil)
}

func (ctrl *controller) GetBooking(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid booking ID", nil, nil)
		return
	}

	booking, err := ctrl.service.GetBooking(c.Request.Context(), bookingID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if booking.UserID != userID {
		response.RespondJSON(c, "error", http.StatusForbidden, "Booking belongs to a different user", nil, nil)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Booking retrieved successfully", toBookingResponse(booking), nil)
}

func (ctrl *controller) CancelBooking(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid booking ID", nil, nil)
		return
	}

	result, err := ctrl.service.Cancel(c.Request.Context(), userID, bookingID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	resp := CancelResponse{
		Message:      "Booking cancelled successfully",
		BookingID:    bookingID.String(),
		RefundAmount: result.RefundAmount,
	}
	response.RespondJSON(c, "success", http.StatusOK, resp.Message, resp, nil)
}

func (ctrl *controller) GetUserBookings(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	bookings, total, err := ctrl.service.GetUserBookings(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	resp := UserBookingsResponse{
		Bookings: make([]BookingResponse, 0, len(bookings)),
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	}
	for i := range bookings {
		resp.Bookings = append(resp.Bookings, toBookingResponse(&bookings[i]))
	}

	response.RespondJSON(c, "success", http.StatusOK, "Bookings retrieved successfully", resp, nil)
}

// InternalGetBooking serves service-to-service lookups; no ownership
// check because the caller already passed the API-key guard.
func (ctrl *controller) InternalGetBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid booking ID", nil, nil)
		return
	}

	booking, err := ctrl.service.GetBooking(c.Request.Context(), bookingID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Booking retrieved successfully", toBookingResponse(booking), nil)
}

func (ctrl *controller) ForceExpireAll(c *gin.Context) {
	expired, err := ctrl.service.ForceExpireAll(c.Request.Context(), ctrl.sweepBatchSize)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "All live holds expired", ExpireSweepResponse{Expired: expired}, nil)
}

func (ctrl *controller) ExpireReservations(c *gin.Context) {
	expired, err := ctrl.service.ExpireOverdue(c.Request.Context(), ctrl.sweepBatchSize)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Expiry sweep completed", ExpireSweepResponse{Expired: expired}, nil)
}

func (ctrl *controller) ForceExpireReservation(c *gin.Context) {
	reservationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid reservation ID", nil, nil)
		return
	}

	if err := ctrl.service.ExpireReservation(c.Request.Context(), reservationID); err != nil {
		respondDomainError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Reservation expired successfully", nil, nil)
}
