package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shamaqar/booking-backend/internal/models"
)

var (
	errAmountMismatch = errors.New("amount does not match session amount")
	errBelowDeposit   = errors.New("amount paid does not cover the deposit")
)

// BookingStore is the persistence surface the booking service needs
type BookingStore interface {
	Create(booking *models.Booking) error
	GetByID(bookingID uuid.UUID) (*models.Booking, error)
	GetByUserID(userID uuid.UUID, limit, offset int) ([]*models.Booking, error)
	MarkConfirmed(bookingID uuid.UUID, amountPaid float64, paymentStatus models.PaymentStatus) error
	MarkCancelled(bookingID uuid.UUID, amountPaid float64, paymentStatus models.PaymentStatus) error
}

// ReservationStore is the availability surface the booking service needs
type ReservationStore interface {
	Reserve(propertyID, bookingID uuid.UUID, checkIn, checkOut time.Time, heldUntil time.Time) (*models.ReservationInterval, error)
	ReleaseForBooking(bookingID uuid.UUID) error
	PromoteForBooking(bookingID uuid.UUID) error
	BlockedRanges(propertyID uuid.UUID, from, to time.Time) ([]models.BlockedRange, error)
}

// PropertyStore resolves the listings bookings are placed against
type PropertyStore interface {
	GetByID(propertyID uuid.UUID) (*models.Property, error)
}

// BookingService drives the booking lifecycle from creation through
// confirmation, cancellation and expiry.
type BookingService struct {
	properties   PropertyStore
	bookings     BookingStore
	reservations ReservationStore
	pricing      *PricingService
	policy       *CancellationPolicy
	payments     *PaymentService
	holdTTL      time.Duration
	logger       *logrus.Logger

	// Serializes booking creation per property so the reserve-then-create
	// sequence cannot interleave within this process. Cross-process races
	// are settled by the row locks inside Reserve.
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewBookingService creates a new booking service
func NewBookingService(
	properties PropertyStore,
	bookings BookingStore,
	reservations ReservationStore,
	pricing *PricingService,
	policy *CancellationPolicy,
	payments *PaymentService,
	holdTTL time.Duration,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		properties:   properties,
		bookings:     bookings,
		reservations: reservations,
		pricing:      pricing,
		policy:       policy,
		payments:     payments,
		holdTTL:      holdTTL,
		logger:       logger,
		locks:        make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *BookingService) propertyLock(propertyID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[propertyID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[propertyID] = lock
	}
	return lock
}

// ============================================================================
// CREATE
// ============================================================================

// CreateBooking prices the request, places a soft hold on the dates and
// persists the booking in pending_payment. Of concurrent requests for
// overlapping dates exactly one succeeds; the rest get a ConflictError.
func (s *BookingService) CreateBooking(ctx context.Context, userID uuid.UUID, req *models.CreateBookingRequest) (*models.Booking, error) {
	propertyID, err := uuid.Parse(req.PropertyID)
	if err != nil {
		return nil, &models.ValidationError{Field: "property_id", Reason: "must be a valid UUID"}
	}

	checkIn, checkOut, err := req.Dates()
	if err != nil {
		return nil, err
	}

	property, err := s.properties.GetByID(propertyID)
	if err != nil {
		return nil, err
	}
	if property == nil {
		return nil, &models.ValidationError{Field: "property_id", Reason: "property not found"}
	}

	quote, err := s.pricing.QuoteProperty(property, checkIn, checkOut)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	holdExpiry := now.Add(s.holdTTL)
	booking := &models.Booking{
		ID:            uuid.New(),
		PropertyID:    property.ID,
		UserID:        userID,
		CheckIn:       checkIn,
		CheckOut:      checkOut,
		TotalPrice:    quote.TotalPrice,
		DepositAmount: quote.DepositAmount,
		Currency:      quote.Currency,
		BookingStatus: models.BookingStatusPendingPayment,
		PaymentStatus: models.PaymentStatusPending,
		HoldExpiresAt: &holdExpiry,
		Notes:         req.Notes,
	}

	lock := s.propertyLock(property.ID)
	lock.Lock()
	defer lock.Unlock()

	if property.IsRental() {
		if _, err := s.reservations.Reserve(property.ID, booking.ID, *checkIn, *checkOut, holdExpiry); err != nil {
			return nil, err
		}
	}

	if err := s.bookings.Create(booking); err != nil {
		if property.IsRental() {
			if relErr := s.reservations.ReleaseForBooking(booking.ID); relErr != nil {
				s.logger.WithError(relErr).WithField("booking_id", booking.ID).Error("Failed to release hold after create failure")
			}
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":  booking.ID,
		"property_id": property.ID,
		"user_id":     userID,
		"total":       booking.TotalPrice,
		"deposit":     booking.DepositAmount,
		"hold_until":  holdExpiry,
	}).Info("Booking created with soft hold")

	return booking, nil
}

// ============================================================================
// CHECKOUT AND CONFIRMATION
// ============================================================================

// Checkout opens (or returns the existing) payment session for the booking's
// deposit
func (s *BookingService) Checkout(ctx context.Context, bookingID, userID uuid.UUID) (*models.CheckoutResponse, error) {
	booking, err := s.bookings.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, &models.ValidationError{Field: "booking_id", Reason: "booking not found"}
	}
	if booking.UserID != userID {
		return nil, &models.AuthorizationError{Reason: "booking belongs to another user"}
	}
	if booking.BookingStatus != models.BookingStatusPendingPayment {
		return nil, &models.InvalidStateTransitionError{
			BookingID: booking.ID.String(),
			From:      booking.BookingStatus,
			To:        models.BookingStatusPendingPayment,
		}
	}
	if booking.HoldExpired(time.Now()) {
		return nil, &models.ConflictError{Resource: "booking", Reason: "hold has expired, create a new booking"}
	}

	session, err := s.payments.CreateSession(ctx, booking)
	if err != nil {
		return nil, err
	}

	return &models.CheckoutResponse{
		BookingID:   booking.ID,
		SessionID:   session.ID,
		RedirectURL: session.RedirectURL,
		Amount:      session.Amount,
		Currency:    session.Currency,
		ExpiresAt:   *booking.HoldExpiresAt,
	}, nil
}

// ConfirmPayment applies a cleared payment: the booking moves to confirmed
// and its soft hold becomes a hard block. Confirmation requires the total
// paid to cover the deposit; anything less is audited and refused. Idempotent:
// confirming an already confirmed booking is a no-op.
func (s *BookingService) ConfirmPayment(ctx context.Context, bookingID uuid.UUID, amountReceived float64) error {
	booking, err := s.bookings.GetByID(bookingID)
	if err != nil {
		return err
	}
	if booking == nil {
		return &models.ValidationError{Field: "booking_id", Reason: "booking not found"}
	}
	if booking.ReachedConfirmation() {
		s.logger.WithField("booking_id", bookingID).Info("Payment already confirmed, skipping")
		return nil
	}

	newPaid := booking.Currency.Round(booking.AmountPaid + amountReceived)
	if newPaid < booking.DepositAmount {
		audit := models.NewPaymentAudit(models.PaymentEventMismatch, models.PaymentSourceBackend).
			SetBooking(bookingID)
		audit.SetAmounts(booking.DepositAmount, newPaid, booking.Currency)
		s.payments.logAudit(ctx, audit)
		s.logger.WithFields(logrus.Fields{
			"booking_id": bookingID,
			"deposit":    booking.DepositAmount,
			"paid":       newPaid,
		}).Error("Payment does not cover the deposit, refusing to confirm")
		return &models.GatewayError{Op: "confirm_payment", Err: errBelowDeposit}
	}

	paymentStatus := models.PaymentStatusPartial
	if newPaid >= booking.TotalPrice {
		paymentStatus = models.PaymentStatusPaid
	}

	// The guarded update settles the race with the expiry sweeper: only one
	// of confirm and expire can win, and promotion happens strictly after
	if err := s.bookings.MarkConfirmed(bookingID, newPaid, paymentStatus); err != nil {
		return err
	}

	if booking.CheckIn != nil {
		if err := s.reservations.PromoteForBooking(bookingID); err != nil {
			s.logger.WithError(err).WithField("booking_id", bookingID).Error("Failed to promote hold after confirmation")
			return err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":     bookingID,
		"amount_paid":    newPaid,
		"payment_status": paymentStatus,
	}).Info("Booking confirmed")

	return nil
}

// ApplyGatewayResult processes a verified webhook payload: it closes the
// session and confirms the booking when payment succeeded. Duplicate
// deliveries and unknown sessions are ignored.
func (s *BookingService) ApplyGatewayResult(ctx context.Context, payload *GatewayWebhookPayload) error {
	session, err := s.payments.sessions.GetByExternalID(payload.UID)
	if err != nil {
		return err
	}
	if session == nil {
		s.logger.WithField("uid", payload.UID).Warn("Webhook for unknown session, ignoring")
		return nil
	}
	if !session.IsOpen() {
		s.logger.WithFields(logrus.Fields{
			"session_id": session.ID,
			"status":     session.Status,
		}).Info("Webhook for settled session, ignoring duplicate")
		return nil
	}

	if !s.payments.IsPaymentSuccessful(payload) {
		return s.payments.sessions.MarkCanceled(session.ID)
	}

	received, err := strconv.ParseFloat(payload.Amount, 64)
	if err != nil {
		received = session.Amount
	}

	audit := models.NewPaymentAudit(models.PaymentEventWebhookReceived, models.PaymentSourceGatewayWebhook).
		SetBooking(session.BookingID).
		SetSession(session.ID, session.ExternalSessionID).
		SetPaymentStatus(payload.PaymentStatus)
	if !audit.SetAmounts(session.Amount, received, session.Currency) {
		audit.EventType = models.PaymentEventMismatch
		s.payments.logAudit(ctx, audit)
		s.logger.WithFields(logrus.Fields{
			"session_id": session.ID,
			"expected":   session.Amount,
			"received":   received,
		}).Error("Webhook amount does not match session amount")
		return &models.GatewayError{Op: "webhook", Err: errAmountMismatch}
	}
	s.payments.logAudit(ctx, audit)

	if err := s.ConfirmPayment(ctx, session.BookingID, received); err != nil {
		return err
	}
	return s.payments.sessions.MarkCompleted(session.ID)
}

// ============================================================================
// CANCELLATION
// ============================================================================

// Cancel evaluates cancellation policy and applies the outcome exactly once.
// Only the booking owner or the property owner may cancel.
func (s *BookingService) Cancel(ctx context.Context, bookingID, requesterID uuid.UUID) (*models.CancellationOutcome, error) {
	booking, err := s.bookings.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, &models.ValidationError{Field: "booking_id", Reason: "booking not found"}
	}

	property, err := s.properties.GetByID(booking.PropertyID)
	if err != nil {
		return nil, err
	}
	if property == nil {
		return nil, &models.ValidationError{Field: "property_id", Reason: "property not found"}
	}

	party := CancelledByBuyer
	switch requesterID {
	case booking.UserID:
		party = CancelledByBuyer
	case property.OwnerID:
		party = CancelledBySeller
	default:
		return nil, &models.AuthorizationError{Reason: "only the booking owner or property owner may cancel"}
	}

	if !booking.CanCancel() {
		return nil, &models.InvalidStateTransitionError{
			BookingID: booking.ID.String(),
			From:      booking.BookingStatus,
			To:        models.BookingStatusCancelled,
		}
	}

	outcome := s.policy.Evaluate(booking, property, party, time.Now())

	// The refund leaves amount_paid holding only what the property side keeps.
	// A penalty refund that forfeits part of the deposit reads partial, not
	// refunded, so the two cases stay distinguishable on the row.
	remainingPaid := booking.Currency.Round(booking.AmountPaid - outcome.RefundAmount)
	if remainingPaid < 0 {
		remainingPaid = 0
	}
	paymentStatus := booking.PaymentStatus
	if outcome.RefundAmount > 0 {
		if remainingPaid > 0 {
			paymentStatus = models.PaymentStatusPartial
		} else {
			paymentStatus = models.PaymentStatusRefunded
		}
	}

	if err := s.bookings.MarkCancelled(bookingID, remainingPaid, paymentStatus); err != nil {
		return nil, err
	}

	if err := s.reservations.ReleaseForBooking(bookingID); err != nil {
		s.logger.WithError(err).WithField("booking_id", bookingID).Error("Failed to release hold on cancellation")
	}

	if err := s.payments.CancelOpenSession(ctx, bookingID); err != nil {
		s.logger.WithError(err).WithField("booking_id", bookingID).Error("Failed to void open session on cancellation")
	}

	s.payments.logAudit(ctx, models.NewPaymentAudit(models.PaymentEventRefundComputed, models.PaymentSourceBackend).
		SetBooking(bookingID).
		SetResponsePayload(map[string]interface{}{
			"refund_amount":     outcome.RefundAmount,
			"forfeiture_amount": outcome.ForfeitureAmount,
			"liability_amount":  outcome.LiabilityAmount,
			"rationale":         string(outcome.Rationale),
		}))

	return &outcome, nil
}

// ============================================================================
// READS
// ============================================================================

// GetBooking returns a booking visible to the requester
func (s *BookingService) GetBooking(bookingID, requesterID uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, &models.ValidationError{Field: "booking_id", Reason: "booking not found"}
	}
	if booking.UserID != requesterID {
		property, err := s.properties.GetByID(booking.PropertyID)
		if err != nil {
			return nil, err
		}
		if property == nil || property.OwnerID != requesterID {
			return nil, &models.AuthorizationError{Reason: "booking belongs to another user"}
		}
	}
	return booking, nil
}

// ListBookings returns the requester's bookings, newest first
func (s *BookingService) ListBookings(userID uuid.UUID, limit, offset int) ([]*models.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.bookings.GetByUserID(userID, limit, offset)
}

// Availability returns the blocked date ranges of a property within [from, to)
func (s *BookingService) Availability(propertyID uuid.UUID, from, to time.Time) ([]models.BlockedRange, error) {
	if !from.Before(to) {
		return nil, &models.ValidationError{Field: "to", Reason: "range end must be after range start"}
	}
	return s.reservations.BlockedRanges(propertyID, from, to)
}
