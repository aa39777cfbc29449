package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shamaqar/booking-backend/internal/models"
)

// StatusChecker queries the gateway for a session's settlement state
type StatusChecker interface {
	CheckStatus(ctx context.Context, externalSessionID string) (*GatewayStatusResponse, error)
}

// PaymentConfirmer applies a cleared payment to a booking
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, bookingID uuid.UUID, amountReceived float64) error
}

// VerificationOutcome is the reconciled state of a booking's payment
type VerificationOutcome string

const (
	VerificationPaid     VerificationOutcome = "paid"
	VerificationPending  VerificationOutcome = "pending"
	VerificationCanceled VerificationOutcome = "canceled"
)

// ReconciliationService recovers bookings whose webhook never arrived. It
// polls the gateway with a bounded retry budget; exhausting the budget
// without a definitive answer yields ErrVerificationPending, never a
// confirmation. A budget spent entirely on gateway failures surfaces the
// failure itself so callers can tell an outage apart from a slow settlement.
type ReconciliationService struct {
	gateway  StatusChecker
	sessions SessionStore
	bookings PaymentConfirmer
	retries  int
	delay    time.Duration
	logger   *logrus.Logger
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(
	gateway StatusChecker,
	sessions SessionStore,
	bookings PaymentConfirmer,
	retries int,
	delay time.Duration,
	logger *logrus.Logger,
) *ReconciliationService {
	if retries < 1 {
		retries = 1
	}
	return &ReconciliationService{
		gateway:  gateway,
		sessions: sessions,
		bookings: bookings,
		retries:  retries,
		delay:    delay,
		logger:   logger,
	}
}

// VerifyPayment reconciles a booking's open session against the gateway.
// Returns (VerificationPaid, nil) when payment cleared and was applied,
// (VerificationCanceled, nil) when the gateway definitively reported failure,
// and (VerificationPending, ErrVerificationPending) when the budget ran out
// with the payment still in flight. When every attempt failed to reach the
// gateway the last failure is returned instead, so an outage never masquerades
// as a pending payment.
func (s *ReconciliationService) VerifyPayment(ctx context.Context, bookingID uuid.UUID) (VerificationOutcome, error) {
	session, err := s.sessions.GetOpenByBookingID(bookingID)
	if err != nil {
		return VerificationPending, err
	}
	if session == nil {
		// No open session: nothing to reconcile
		return VerificationPending, nil
	}

	var lastErr error
	failures := 0
	for attempt := 1; attempt <= s.retries; attempt++ {
		resp, err := s.gateway.CheckStatus(ctx, session.ExternalSessionID)
		if err != nil {
			lastErr = err
			failures++
			s.logger.WithError(err).WithFields(logrus.Fields{
				"booking_id": bookingID,
				"attempt":    attempt,
			}).Warn("Gateway status check failed")
		} else {
			switch strings.ToLower(resp.PaymentStatus) {
			case "success":
				if err := s.applySuccess(ctx, session, resp); err != nil {
					return VerificationPending, err
				}
				return VerificationPaid, nil
			case "failed", "cancelled":
				s.logger.WithFields(logrus.Fields{
					"booking_id": bookingID,
					"status":     resp.PaymentStatus,
				}).Info("Gateway reported payment failure, voiding session")
				return VerificationCanceled, s.sessions.MarkCanceled(session.ID)
			}
			// Still pending at the gateway; fall through to retry
		}

		if attempt < s.retries {
			select {
			case <-ctx.Done():
				return VerificationPending, ctx.Err()
			case <-time.After(s.delay):
			}
		}
	}

	if failures == s.retries {
		s.logger.WithFields(logrus.Fields{
			"booking_id": bookingID,
			"attempts":   s.retries,
		}).Error("Gateway unreachable for every verification attempt")
		return VerificationPending, lastErr
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"attempts":   s.retries,
	}).Info("Verification budget exhausted, payment still pending")
	return VerificationPending, models.ErrVerificationPending
}

// applySuccess confirms the booking from a successful status response. The
// reported amount must match the session amount; a mismatch is never applied.
func (s *ReconciliationService) applySuccess(ctx context.Context, session *models.PaymentSession, resp *GatewayStatusResponse) error {
	received, err := strconv.ParseFloat(resp.Amount, 64)
	if err != nil || received <= 0 {
		received = session.Amount
	}

	if session.Currency.Round(received) != session.Currency.Round(session.Amount) {
		s.logger.WithFields(logrus.Fields{
			"session_id": session.ID,
			"expected":   session.Amount,
			"received":   received,
		}).Error("Gateway amount does not match session amount, refusing to confirm")
		return &models.GatewayError{Op: "verify", Err: errAmountMismatch}
	}

	if err := s.bookings.ConfirmPayment(ctx, session.BookingID, received); err != nil {
		return err
	}
	return s.sessions.MarkCompleted(session.ID)
}
