package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// TransactionKind represents how a property is offered on the marketplace
// Matches PostgreSQL ENUM: transaction_kind
type TransactionKind string

const (
	TransactionSale          TransactionKind = "sale"
	TransactionTouristRental TransactionKind = "tourist_rental"
	TransactionBrokerage     TransactionKind = "brokerage"
)

// Currency represents a supported settlement currency
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencySYP Currency = "SYP"
)

// Precision returns the number of decimal places amounts in this currency
// carry. Syrian pound amounts are settled in whole pounds.
func (c Currency) Precision() int {
	switch c {
	case CurrencySYP:
		return 0
	default:
		return 2
	}
}

// Round rounds an amount to the currency's precision.
func (c Currency) Round(amount float64) float64 {
	factor := math.Pow(10, float64(c.Precision()))
	return math.Round(amount*factor) / factor
}

// Property represents a marketplace listing as seen by the booking engine.
// Listing content (photos, descriptions, map data) is owned elsewhere; this
// core only reads the fields that drive pricing and reservation decisions.
type Property struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	OwnerID         uuid.UUID       `json:"owner_id" db:"owner_id"`
	TransactionKind TransactionKind `json:"transaction_kind" db:"transaction_kind"`
	NightlyRate     *float64        `json:"nightly_rate,omitempty" db:"nightly_rate"`
	SalePrice       *float64        `json:"sale_price,omitempty" db:"sale_price"`
	Currency        Currency        `json:"currency" db:"currency"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// IsRental reports whether bookings against this property carry a date range.
func (p *Property) IsRental() bool {
	return p.TransactionKind == TransactionTouristRental
}
