package services

import (
	"time"

	"github.com/shamaqar/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// PricingService computes booking totals and deposits. It is deterministic:
// the same property and dates always produce the same quote, and the deposit
// captured on the booking row at creation time is never recalculated.
type PricingService struct {
	depositRate float64
	logger      *logrus.Logger
}

// NewPricingService creates a new pricing service
func NewPricingService(depositRate float64, logger *logrus.Logger) *PricingService {
	return &PricingService{
		depositRate: depositRate,
		logger:      logger,
	}
}

// Quote is the priced breakdown for a prospective booking
type Quote struct {
	Nights           int             `json:"nights,omitempty"`
	TotalPrice       float64         `json:"total_price"`
	DepositAmount    float64         `json:"deposit_amount"`
	RemainingBalance float64         `json:"remaining_balance"`
	Currency         models.Currency `json:"currency"`
}

// QuoteProperty prices a booking for any transaction kind. Rentals need a
// date range; sales and brokerage deals are priced off the sale price.
func (s *PricingService) QuoteProperty(property *models.Property, checkIn, checkOut *time.Time) (*Quote, error) {
	if property.IsRental() {
		if checkIn == nil || checkOut == nil {
			return nil, &models.ValidationError{Field: "check_in", Reason: "rental bookings require check-in and check-out dates"}
		}
		return s.QuoteRental(property, *checkIn, *checkOut)
	}
	return s.QuoteSale(property)
}

// QuoteRental prices a stay of [checkIn, checkOut) nights
func (s *PricingService) QuoteRental(property *models.Property, checkIn, checkOut time.Time) (*Quote, error) {
	if property.NightlyRate == nil || *property.NightlyRate <= 0 {
		return nil, &models.ValidationError{Field: "property_id", Reason: "property has no nightly rate"}
	}

	nights := int(checkOut.Sub(checkIn).Hours() / 24)
	if nights < 1 {
		return nil, &models.ValidationError{Field: "check_out", Reason: "stay must be at least one night"}
	}

	cur := property.Currency
	total := cur.Round(*property.NightlyRate * float64(nights))
	deposit := cur.Round(total * s.depositRate)

	quote := &Quote{
		Nights:           nights,
		TotalPrice:       total,
		DepositAmount:    deposit,
		RemainingBalance: cur.Round(total - deposit),
		Currency:         cur,
	}

	s.logger.WithFields(logrus.Fields{
		"property_id": property.ID,
		"nights":      nights,
		"total":       quote.TotalPrice,
		"deposit":     quote.DepositAmount,
	}).Debug("Rental quote computed")

	return quote, nil
}

// QuoteSale prices a sale or brokerage booking off the listed sale price
func (s *PricingService) QuoteSale(property *models.Property) (*Quote, error) {
	if property.SalePrice == nil || *property.SalePrice <= 0 {
		return nil, &models.ValidationError{Field: "property_id", Reason: "property has no sale price"}
	}

	cur := property.Currency
	total := cur.Round(*property.SalePrice)
	deposit := cur.Round(total * s.depositRate)

	return &Quote{
		TotalPrice:       total,
		DepositAmount:    deposit,
		RemainingBalance: cur.Round(total - deposit),
		Currency:         cur,
	}, nil
}

// OneNightPenalty returns the late-cancellation penalty for a rental
func (s *PricingService) OneNightPenalty(property *models.Property) float64 {
	if property.NightlyRate == nil {
		return 0
	}
	return property.Currency.Round(*property.NightlyRate)
}
