package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/shamaqar/booking-backend/internal/models"
)

func newCancellationPolicy() *CancellationPolicy {
	pricing := NewPricingService(0.30, testLogger())
	return NewCancellationPolicy(pricing, testLogger())
}

func confirmedRentalBooking(checkIn time.Time, totalPrice, deposit float64) *models.Booking {
	checkOut := checkIn.Add(72 * time.Hour)
	return &models.Booking{
		ID:            uuid.New(),
		PropertyID:    uuid.New(),
		UserID:        uuid.New(),
		CheckIn:       &checkIn,
		CheckOut:      &checkOut,
		TotalPrice:    totalPrice,
		DepositAmount: deposit,
		AmountPaid:    deposit,
		Currency:      models.CurrencyUSD,
		BookingStatus: models.BookingStatusConfirmed,
		PaymentStatus: models.PaymentStatusPartial,
	}
}

func TestEvaluateRentalCancellation(t *testing.T) {
	policy := newCancellationPolicy()
	property := rentalProperty(100, models.CurrencyUSD)
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	t.Run("More Than 72 Hours Out Is A Full Refund", func(t *testing.T) {
		booking := confirmedRentalBooking(now.Add(FullRefundWindow+time.Second), 300, 90)

		outcome := policy.Evaluate(booking, property, CancelledByBuyer, now)
		assert.Equal(t, models.RationaleFullRefund, outcome.Rationale)
		assert.Equal(t, 90.0, outcome.RefundAmount)
		assert.Equal(t, 0.0, outcome.ForfeitureAmount)
	})

	t.Run("Exactly 72 Hours Pays The Penalty", func(t *testing.T) {
		booking := confirmedRentalBooking(now.Add(FullRefundWindow), 300, 90)

		outcome := policy.Evaluate(booking, property, CancelledByBuyer, now)
		assert.Equal(t, models.RationaleOneNightPenalty, outcome.Rationale)
		// 90 paid minus one night at 100, floored at zero
		assert.Equal(t, 0.0, outcome.RefundAmount)
		assert.Equal(t, 90.0, outcome.ForfeitureAmount)
	})

	t.Run("Within 72 Hours Withholds One Night", func(t *testing.T) {
		booking := confirmedRentalBooking(now.Add(24*time.Hour), 300, 90)
		booking.AmountPaid = 300
		booking.PaymentStatus = models.PaymentStatusPaid

		outcome := policy.Evaluate(booking, property, CancelledByBuyer, now)
		assert.Equal(t, models.RationaleOneNightPenalty, outcome.Rationale)
		assert.Equal(t, 200.0, outcome.RefundAmount)
		assert.Equal(t, 100.0, outcome.ForfeitureAmount)
	})

	t.Run("After Check In Is A No Show", func(t *testing.T) {
		booking := confirmedRentalBooking(now.Add(-time.Hour), 300, 90)

		outcome := policy.Evaluate(booking, property, CancelledByBuyer, now)
		assert.Equal(t, models.RationaleNoShowForfeit, outcome.Rationale)
		assert.Equal(t, 0.0, outcome.RefundAmount)
		assert.Equal(t, 90.0, outcome.ForfeitureAmount)
	})

	t.Run("Refund Never Goes Negative", func(t *testing.T) {
		booking := confirmedRentalBooking(now.Add(time.Hour), 300, 50)
		booking.AmountPaid = 50

		outcome := policy.Evaluate(booking, property, CancelledByBuyer, now)
		assert.Equal(t, 0.0, outcome.RefundAmount)
		assert.Equal(t, 50.0, outcome.ForfeitureAmount)
	})
}

func TestEvaluateSaleCancellation(t *testing.T) {
	policy := newCancellationPolicy()
	property := &models.Property{
		ID:              uuid.New(),
		TransactionKind: models.TransactionSale,
		SalePrice:       floatPtr(100000),
		Currency:        models.CurrencyUSD,
	}
	now := time.Now()

	saleBooking := func() *models.Booking {
		return &models.Booking{
			ID:            uuid.New(),
			TotalPrice:    100000,
			DepositAmount: 30000,
			AmountPaid:    30000,
			Currency:      models.CurrencyUSD,
			BookingStatus: models.BookingStatusConfirmed,
			PaymentStatus: models.PaymentStatusPartial,
		}
	}

	t.Run("Buyer Forfeits Deposit", func(t *testing.T) {
		outcome := policy.Evaluate(saleBooking(), property, CancelledByBuyer, now)
		assert.Equal(t, models.RationaleBuyerForfeitsDeposit, outcome.Rationale)
		assert.Equal(t, 0.0, outcome.RefundAmount)
		assert.Equal(t, 30000.0, outcome.ForfeitureAmount)
		assert.Equal(t, 0.0, outcome.LiabilityAmount)
	})

	t.Run("Seller Owes Double Deposit", func(t *testing.T) {
		outcome := policy.Evaluate(saleBooking(), property, CancelledBySeller, now)
		assert.Equal(t, models.RationaleSellerOwesDoubleDeposit, outcome.Rationale)
		assert.Equal(t, 30000.0, outcome.RefundAmount)
		assert.Equal(t, 60000.0, outcome.LiabilityAmount)
	})
}

func TestEvaluateBrokerageCancellation(t *testing.T) {
	policy := newCancellationPolicy()
	property := &models.Property{
		ID:              uuid.New(),
		TransactionKind: models.TransactionBrokerage,
		SalePrice:       floatPtr(50000),
		Currency:        models.CurrencyUSD,
	}
	now := time.Now()

	t.Run("Before Confirmation Is A Full Refund", func(t *testing.T) {
		booking := &models.Booking{
			ID:            uuid.New(),
			TotalPrice:    50000,
			DepositAmount: 15000,
			AmountPaid:    0,
			Currency:      models.CurrencyUSD,
			BookingStatus: models.BookingStatusPendingPayment,
		}

		outcome := policy.Evaluate(booking, property, CancelledByBuyer, now)
		assert.Equal(t, models.RationaleFullRefund, outcome.Rationale)
		assert.Equal(t, 0.0, outcome.RefundAmount)
	})

	t.Run("After Confirmation The Fee Is Retained", func(t *testing.T) {
		booking := &models.Booking{
			ID:            uuid.New(),
			TotalPrice:    50000,
			DepositAmount: 15000,
			AmountPaid:    15000,
			Currency:      models.CurrencyUSD,
			BookingStatus: models.BookingStatusConfirmed,
		}

		outcome := policy.Evaluate(booking, property, CancelledByBuyer, now)
		assert.Equal(t, models.RationaleBrokerageFeeRetained, outcome.Rationale)
		assert.Equal(t, 0.0, outcome.RefundAmount)
		assert.Equal(t, 15000.0, outcome.ForfeitureAmount)
	})
}
