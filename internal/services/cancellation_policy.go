package services

import (
	"time"

	"github.com/shamaqar/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// FullRefundWindow is how far before check-in a rental guest can cancel with
// a full refund. At exactly the boundary the penalty branch applies.
const FullRefundWindow = 72 * time.Hour

// CancelParty identifies which side of the deal is cancelling
type CancelParty string

const (
	CancelledByBuyer  CancelParty = "buyer"  // The booking's user (guest, buyer, client)
	CancelledBySeller CancelParty = "seller" // The property owner
)

// CancellationPolicy evaluates refund, forfeiture and liability amounts for a
// cancellation. Evaluation is pure: it never mutates the booking, and the
// lifecycle manager applies the outcome exactly once.
type CancellationPolicy struct {
	pricing *PricingService
	logger  *logrus.Logger
}

// NewCancellationPolicy creates a new cancellation policy engine
func NewCancellationPolicy(pricing *PricingService, logger *logrus.Logger) *CancellationPolicy {
	return &CancellationPolicy{
		pricing: pricing,
		logger:  logger,
	}
}

// Evaluate computes the cancellation outcome for a booking at time now.
// The rules by transaction kind:
//
//	rental, >72h before check-in:  full refund
//	rental, within 72h:            one night's rate withheld from the refund
//	rental, on/after check-in:     no-show, everything paid is forfeited
//	sale, buyer cancels:           deposit forfeited to the seller
//	sale, seller cancels:          buyer refunded, seller owes double deposit
//	brokerage, after confirmation: brokerage fee (the deposit) retained
//
// Cancelling before any payment clears is always a full refund of the
// (possibly zero) amount paid.
func (p *CancellationPolicy) Evaluate(booking *models.Booking, property *models.Property, party CancelParty, now time.Time) models.CancellationOutcome {
	cur := booking.Currency

	outcome := models.CancellationOutcome{
		Currency: cur,
	}

	// Nothing has cleared yet; releasing the hold costs nobody anything
	if !booking.ReachedConfirmation() {
		outcome.RefundAmount = cur.Round(booking.AmountPaid)
		outcome.Rationale = models.RationaleFullRefund
		return outcome
	}

	switch property.TransactionKind {
	case models.TransactionTouristRental:
		outcome = p.evaluateRental(booking, property, now)
	case models.TransactionSale:
		outcome = p.evaluateSale(booking, party)
	case models.TransactionBrokerage:
		outcome.ForfeitureAmount = cur.Round(booking.DepositAmount)
		refund := booking.AmountPaid - booking.DepositAmount
		if refund < 0 {
			refund = 0
		}
		outcome.RefundAmount = cur.Round(refund)
		outcome.Currency = cur
		outcome.Rationale = models.RationaleBrokerageFeeRetained
	}

	p.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"rationale":  outcome.Rationale,
		"refund":     outcome.RefundAmount,
		"forfeit":    outcome.ForfeitureAmount,
	}).Info("Cancellation outcome evaluated")

	return outcome
}

func (p *CancellationPolicy) evaluateRental(booking *models.Booking, property *models.Property, now time.Time) models.CancellationOutcome {
	cur := booking.Currency
	outcome := models.CancellationOutcome{Currency: cur}

	if booking.CheckIn == nil {
		outcome.RefundAmount = cur.Round(booking.AmountPaid)
		outcome.Rationale = models.RationaleFullRefund
		return outcome
	}

	// On or after check-in without cancelling earlier is a no-show
	if !now.Before(*booking.CheckIn) {
		outcome.ForfeitureAmount = cur.Round(booking.AmountPaid)
		outcome.Rationale = models.RationaleNoShowForfeit
		return outcome
	}

	// Strictly more than 72 hours out cancels free; exactly 72 does not
	if booking.CheckIn.Sub(now) > FullRefundWindow {
		outcome.RefundAmount = cur.Round(booking.AmountPaid)
		outcome.Rationale = models.RationaleFullRefund
		return outcome
	}

	penalty := p.pricing.OneNightPenalty(property)
	refund := booking.AmountPaid - penalty
	if refund < 0 {
		refund = 0
	}
	outcome.RefundAmount = cur.Round(refund)
	outcome.ForfeitureAmount = cur.Round(booking.AmountPaid - outcome.RefundAmount)
	outcome.Rationale = models.RationaleOneNightPenalty
	return outcome
}

func (p *CancellationPolicy) evaluateSale(booking *models.Booking, party CancelParty) models.CancellationOutcome {
	cur := booking.Currency
	outcome := models.CancellationOutcome{Currency: cur}

	if party == CancelledBySeller {
		// The system can refund what it holds; the doubled deposit is a
		// recorded obligation for the legal layer to pursue
		outcome.RefundAmount = cur.Round(booking.AmountPaid)
		outcome.LiabilityAmount = cur.Round(2 * booking.DepositAmount)
		outcome.Rationale = models.RationaleSellerOwesDoubleDeposit
		return outcome
	}

	outcome.ForfeitureAmount = cur.Round(booking.DepositAmount)
	refund := booking.AmountPaid - booking.DepositAmount
	if refund < 0 {
		refund = 0
	}
	outcome.RefundAmount = cur.Round(refund)
	outcome.Rationale = models.RationaleBuyerForfeitsDeposit
	return outcome
}
