package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/homeserve/marketplace-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// BookingHandler handles booking lifecycle requests
type BookingHandler struct {
	bookingService *services.BookingService
	logger         *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookingService *services.BookingService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{bookingService: bookingService, logger: logger}
}

// BookingListResponse wraps a page of bookings
type BookingListResponse struct {
	Bookings []models.BookingDetails `json:"bookings"`
	Limit    int                     `json:"limit"`
	Offset   int                     `json:"offset"`
}

// CreateBooking handles POST /api/v1/bookings
// @Summary Book a provider
// @Tags Bookings
// @Accept json
// @Produce json
// @Param request body models.CreateBookingRequest true "Booking details"
// @Success 201 {object} models.Booking
// @Failure 400 {object} ErrorResponse
// @Router /bookings [post]
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	booking, err := h.bookingService.CreateBooking(c.Request.Context(), actorOf(c), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// ListBookings handles GET /api/v1/bookings
// Customers and providers see their own bookings, admins see all of them.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	var status *models.BookingStatus
	if s := c.Query("status"); s != "" {
		st := models.BookingStatus(s)
		status = &st
	}
	limit, offset := pagination(c)

	list, err := h.bookingService.ListBookings(c.Request.Context(), actorOf(c), status, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if list == nil {
		list = []models.BookingDetails{}
	}
	c.JSON(http.StatusOK, BookingListResponse{Bookings: list, Limit: limit, Offset: offset})
}

// GetBooking handles GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookingService.GetBooking(c.Request.Context(), actorOf(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// GetBookingHistory handles GET /api/v1/bookings/:id/history
func (h *BookingHandler) GetBookingHistory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	history, err := h.bookingService.BookingHistory(c.Request.Context(), actorOf(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if history == nil {
		history = []models.BookingStatusEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"booking_id": id, "history": history})
}

// EditBooking handles PATCH /api/v1/bookings/:id
func (h *BookingHandler) EditBooking(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.EditBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	booking, err := h.bookingService.EditBooking(c.Request.Context(), actorOf(c), id, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// Transition returns the handler for a lifecycle event that carries no
// payload besides an optional expected_version:
// PATCH /bookings/:id/accept, /reject, /cancel, /complete
func (h *BookingHandler) Transition(event models.BookingEvent) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}

		var req models.TransitionRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondBindError(c, err)
			return
		}

		booking, err := h.bookingService.TransitionBooking(c.Request.Context(), actorOf(c), id, event, req.ExpectedVersion)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, booking)
	}
}

// ProposeReschedule handles PATCH /api/v1/bookings/:id/reschedule
// Only the assigned provider can suggest a new slot.
func (h *BookingHandler) ProposeReschedule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.ProposeRescheduleRequest
	if err := c.ShouldBind(&req); err != nil {
		respondBindError(c, err)
		return
	}

	booking, err := h.bookingService.ProposeReschedule(c.Request.Context(), actorOf(c), id, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// RespondReschedule handles PATCH /api/v1/bookings/:id/reschedule/response
func (h *BookingHandler) RespondReschedule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.RescheduleResponseRequest
	if err := c.ShouldBind(&req); err != nil {
		respondBindError(c, err)
		return
	}

	booking, err := h.bookingService.RespondReschedule(c.Request.Context(), actorOf(c), id, *req.Accept, req.ExpectedVersion)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// ProviderEarnings handles GET /api/v1/providers/me/earnings and
// GET /api/v1/admin/providers/:id/earnings
func (h *BookingHandler) ProviderEarnings(c *gin.Context) {
	var providerID int64
	if c.Param("id") != "" {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		providerID = id
	}

	report, err := h.bookingService.ProviderEarnings(c.Request.Context(), actorOf(c), providerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
