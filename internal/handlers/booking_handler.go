package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shamaqar/booking-backend/internal/middleware"
	"github.com/shamaqar/booking-backend/internal/models"
	"github.com/shamaqar/booking-backend/internal/services"
	"github.com/shamaqar/booking-backend/internal/utils"
)

// BookingHandler handles booking lifecycle HTTP requests
type BookingHandler struct {
	bookingService        *services.BookingService
	reconciliationService *services.ReconciliationService
	paymentService        *services.PaymentService
	logger                *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(
	bookingService *services.BookingService,
	reconciliationService *services.ReconciliationService,
	paymentService *services.PaymentService,
	logger *logrus.Logger,
) *BookingHandler {
	return &BookingHandler{
		bookingService:        bookingService,
		reconciliationService: reconciliationService,
		paymentService:        paymentService,
		logger:                logger,
	}
}

// CreateBooking creates a booking with a soft hold on the requested dates
// @Summary Create booking
// @Description Prices the stay, places a 30-minute soft hold on the dates and returns the booking in pending_payment
// @Tags bookings
// @Accept json
// @Produce json
// @Param request body models.CreateBookingRequest true "Booking details"
// @Success 201 {object} models.Booking
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 409 {object} map[string]string "Dates already held or booked"
// @Router /api/v1/bookings [post]
// @Security BearerAuth
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User context not found"})
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	booking, err := h.bookingService.CreateBooking(c.Request.Context(), userCtx.UserID, &req)
	if err != nil {
		h.respondError(c, err, "Failed to create booking")
		return
	}

	c.JSON(http.StatusCreated, booking)
}

// GetBooking returns a single booking
// @Summary Get booking
// @Description Returns a booking visible to the requester (booking owner or property owner)
// @Tags bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} models.Booking
// @Failure 403 {object} map[string]string "Not your booking"
// @Router /api/v1/bookings/{id} [get]
// @Security BearerAuth
func (h *BookingHandler) GetBooking(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User context not found"})
		return
	}

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID format"})
		return
	}

	booking, err := h.bookingService.GetBooking(bookingID, userCtx.UserID)
	if err != nil {
		h.respondError(c, err, "Failed to get booking")
		return
	}

	c.JSON(http.StatusOK, booking)
}

// ListBookings returns the requester's bookings
// @Summary List bookings
// @Description Returns the requester's bookings, newest first
// @Tags bookings
// @Produce json
// @Param limit query int false "Page size (default 20, max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/bookings [get]
// @Security BearerAuth
func (h *BookingHandler) ListBookings(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User context not found"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	bookings, err := h.bookingService.ListBookings(userCtx.UserID, limit, offset)
	if err != nil {
		h.respondError(c, err, "Failed to list bookings")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"count":    len(bookings),
	})
}

// Checkout opens a payment session for a pending booking
// @Summary Checkout
// @Description Opens (or returns the existing) hosted-checkout session for the booking's deposit
// @Tags bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} models.CheckoutResponse
// @Failure 409 {object} map[string]string "Hold expired or booking not payable"
// @Router /api/v1/bookings/{id}/checkout [post]
// @Security BearerAuth
func (h *BookingHandler) Checkout(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User context not found"})
		return
	}

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID format"})
		return
	}

	checkout, err := h.bookingService.Checkout(c.Request.Context(), bookingID, userCtx.UserID)
	if err != nil {
		h.respondError(c, err, "Failed to start checkout")
		return
	}

	c.JSON(http.StatusOK, checkout)
}

// GetPaymentStatus reconciles a booking's payment against the gateway
// @Summary Payment status
// @Description Polls the gateway for the booking's open session. When the retry budget runs out with payment still in flight the response is 200 with status "pending"; a checkout the gateway cancelled reports status "canceled" so the client can prompt a retry.
// @Tags bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} models.PaymentStatusResponse
// @Router /api/v1/bookings/{id}/payment-status [get]
// @Security BearerAuth
func (h *BookingHandler) GetPaymentStatus(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User context not found"})
		return
	}

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID format"})
		return
	}

	// Ownership check before touching the gateway
	if _, err := h.bookingService.GetBooking(bookingID, userCtx.UserID); err != nil {
		h.respondError(c, err, "Failed to get booking")
		return
	}

	outcome, err := h.reconciliationService.VerifyPayment(c.Request.Context(), bookingID)
	if err != nil && !errors.Is(err, models.ErrVerificationPending) {
		h.respondError(c, err, "Failed to verify payment")
		return
	}

	booking, getErr := h.bookingService.GetBooking(bookingID, userCtx.UserID)
	if getErr != nil {
		h.respondError(c, getErr, "Failed to get booking")
		return
	}

	// The webhook may have confirmed the booking before we polled
	if booking.ReachedConfirmation() {
		outcome = services.VerificationPaid
	}

	c.JSON(http.StatusOK, models.PaymentStatusResponse{
		BookingID:     bookingID,
		Paid:          outcome == services.VerificationPaid,
		Status:        string(outcome),
		BookingStatus: booking.BookingStatus,
		PaymentStatus: booking.PaymentStatus,
	})
}

// CancelBooking cancels a booking and returns the refund outcome
// @Summary Cancel booking
// @Description Evaluates cancellation policy for the requesting party and applies the outcome. Only the booking owner or the property owner may cancel.
// @Tags bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} models.CancellationOutcome
// @Failure 403 {object} map[string]string "Not a party to the booking"
// @Failure 409 {object} map[string]string "Booking is not cancellable"
// @Router /api/v1/bookings/{id}/cancel [post]
// @Security BearerAuth
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User context not found"})
		return
	}

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID format"})
		return
	}

	outcome, err := h.bookingService.Cancel(c.Request.Context(), bookingID, userCtx.UserID)
	if err != nil {
		h.respondError(c, err, "Failed to cancel booking")
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// GetAvailability returns the blocked date ranges of a property
// @Summary Property availability
// @Description Returns date ranges blocked by live holds or confirmed bookings within [from, to). Does not distinguish hold strength.
// @Tags properties
// @Produce json
// @Param id path string true "Property ID"
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/properties/{id}/availability [get]
func (h *BookingHandler) GetAvailability(c *gin.Context) {
	propertyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property ID format"})
		return
	}

	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'from' date, expected YYYY-MM-DD"})
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'to' date, expected YYYY-MM-DD"})
		return
	}

	blocked, err := h.bookingService.Availability(propertyID, from, to)
	if err != nil {
		h.respondError(c, err, "Failed to get availability")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"property_id":    propertyID,
		"blocked_ranges": blocked,
	})
}

// HandleWebhook processes payment notifications from the gateway
// @Summary Payment webhook
// @Description Receives the gateway's payment notification, verifies it and applies the result. Always returns 200 for recognized payloads so the gateway stops redelivering.
// @Tags payments
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string "Malformed payload"
// @Router /api/v1/payments/webhook [post]
func (h *BookingHandler) HandleWebhook(c *gin.Context) {
	startTime := time.Now()
	clientIP := utils.GetRealIP(c)
	userAgent := utils.GetUserAgent(c)
	device := utils.ParseUserAgent(userAgent)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"ip":          clientIP,
		"device_type": device.DeviceType,
		"is_bot":      device.IsBot,
		"body_size":   len(body),
	}).Info("Payment webhook received")

	payload, err := h.paymentService.VerifyWebhook(body)
	if err != nil {
		h.logger.WithError(err).WithField("ip", clientIP).Warn("Rejected malformed webhook")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook payload"})
		return
	}

	if err := h.bookingService.ApplyGatewayResult(c.Request.Context(), payload); err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"uid": payload.UID,
			"ip":  clientIP,
		}).Error("Failed to apply webhook result")
		// The gateway retries on non-2xx; a processing failure here is ours
		// to reconcile later, so acknowledge receipt
		c.JSON(http.StatusOK, gin.H{"status": "received", "processed": false})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"uid":         payload.UID,
		"duration_ms": time.Since(startTime).Milliseconds(),
	}).Info("Webhook processed")

	c.JSON(http.StatusOK, gin.H{"status": "received", "processed": true})
}

// respondError maps domain errors to HTTP responses
func (h *BookingHandler) respondError(c *gin.Context, err error, logMsg string) {
	var validationErr *models.ValidationError
	var authErr *models.AuthorizationError
	var conflictErr *models.ConflictError
	var stateErr *models.InvalidStateTransitionError
	var gatewayErr *models.GatewayError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
	case errors.As(err, &authErr):
		c.JSON(http.StatusForbidden, gin.H{"error": authErr.Error()})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{"error": conflictErr.Error()})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusConflict, gin.H{"error": stateErr.Error()})
	case errors.As(err, &gatewayErr):
		h.logger.WithError(err).Error(logMsg)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway is unavailable, please try again"})
	default:
		h.logger.WithError(err).Error(logMsg)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
