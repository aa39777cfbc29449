package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// BOOKING STATUSES (matches DB ENUMs)
// ============================================================================

// BookingStatus represents the lifecycle state of a booking
// Matches PostgreSQL ENUM: booking_status
type BookingStatus string

const (
	BookingStatusDraft          BookingStatus = "draft"           // Built in memory, never persisted in this state
	BookingStatusPendingPayment BookingStatus = "pending_payment" // Soft hold placed, waiting for deposit
	BookingStatusConfirmed      BookingStatus = "confirmed"       // Deposit received, hold promoted to hard
	BookingStatusActive         BookingStatus = "active"          // Guest checked in (rentals only)
	BookingStatusCompleted      BookingStatus = "completed"       // Past check-out
	BookingStatusExpired        BookingStatus = "expired"         // Hold TTL elapsed without payment
	BookingStatusCancelled      BookingStatus = "cancelled"       // Cancelled by requester or agent
)

// PaymentStatus represents how much of the booking has been settled
// Matches PostgreSQL ENUM: payment_status
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPartial  PaymentStatus = "partial"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// ============================================================================
// BOOKING MODEL (bookings table)
// ============================================================================

// Booking represents a reservation request against a property. Rows are never
// deleted; cancelled and completed bookings are retained for audit.
type Booking struct {
	ID         uuid.UUID `json:"id" db:"id"`
	PropertyID uuid.UUID `json:"property_id" db:"property_id"`
	UserID     uuid.UUID `json:"user_id" db:"user_id"`

	// Date range (rental transactions only, half-open [check_in, check_out))
	CheckIn  *time.Time `json:"check_in,omitempty" db:"check_in"`
	CheckOut *time.Time `json:"check_out,omitempty" db:"check_out"`

	// Money. DepositAmount is fixed at creation and never recalculated.
	TotalPrice    float64  `json:"total_price" db:"total_price"`
	DepositAmount float64  `json:"deposit_amount" db:"deposit_amount"`
	AmountPaid    float64  `json:"amount_paid" db:"amount_paid"`
	Currency      Currency `json:"currency" db:"currency"`

	BookingStatus BookingStatus `json:"booking_status" db:"booking_status"`
	PaymentStatus PaymentStatus `json:"payment_status" db:"payment_status"`

	// Soft-hold TTL; set at creation, cleared on confirmation
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty" db:"hold_expires_at"`

	Notes *string `json:"notes,omitempty" db:"notes"`

	// Optimistic concurrency token, bumped on every mutation
	Version int64 `json:"version" db:"version"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RemainingBalance returns what is still owed toward the full price.
func (b *Booking) RemainingBalance() float64 {
	return b.Currency.Round(b.TotalPrice - b.AmountPaid)
}

// IsPaidUp reports whether the full price has been settled.
func (b *Booking) IsPaidUp() bool {
	return b.AmountPaid >= b.TotalPrice
}

// HoldExpired reports whether the soft hold has passed its TTL.
func (b *Booking) HoldExpired(now time.Time) bool {
	return b.HoldExpiresAt != nil && now.After(*b.HoldExpiresAt)
}

// CanCancel reports whether a cancellation request is accepted in the current state.
func (b *Booking) CanCancel() bool {
	return b.BookingStatus == BookingStatusPendingPayment || b.BookingStatus == BookingStatusConfirmed
}

// ReachedConfirmation reports whether the booking ever passed the confirmed state.
func (b *Booking) ReachedConfirmation() bool {
	switch b.BookingStatus {
	case BookingStatusConfirmed, BookingStatusActive, BookingStatusCompleted:
		return true
	}
	return false
}

// ============================================================================
// REQUEST/RESPONSE STRUCTS
// ============================================================================

// CreateBookingRequest is the request to create a booking
type CreateBookingRequest struct {
	PropertyID string  `json:"property_id" binding:"required"`
	CheckIn    *string `json:"check_in,omitempty"`  // "2006-01-02", required for rentals
	CheckOut   *string `json:"check_out,omitempty"` // "2006-01-02", required for rentals
	Notes      *string `json:"notes,omitempty"`
}

// Dates parses the request's check-in/check-out strings. Nil is returned for
// absent fields; malformed dates yield a ValidationError.
func (r *CreateBookingRequest) Dates() (*time.Time, *time.Time, error) {
	var in, out *time.Time
	if r.CheckIn != nil && *r.CheckIn != "" {
		t, err := time.Parse("2006-01-02", *r.CheckIn)
		if err != nil {
			return nil, nil, &ValidationError{Field: "check_in", Reason: "must be a date in YYYY-MM-DD format"}
		}
		in = &t
	}
	if r.CheckOut != nil && *r.CheckOut != "" {
		t, err := time.Parse("2006-01-02", *r.CheckOut)
		if err != nil {
			return nil, nil, &ValidationError{Field: "check_out", Reason: "must be a date in YYYY-MM-DD format"}
		}
		out = &t
	}
	return in, out, nil
}

// CheckoutResponse is returned when a payment session is opened for a booking
type CheckoutResponse struct {
	BookingID   uuid.UUID `json:"booking_id"`
	SessionID   uuid.UUID `json:"session_id"`
	RedirectURL string    `json:"redirect_url"`
	Amount      float64   `json:"amount"`
	Currency    Currency  `json:"currency"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// PaymentStatusResponse is returned by the payment status endpoint
type PaymentStatusResponse struct {
	BookingID     uuid.UUID     `json:"booking_id"`
	Paid          bool          `json:"paid"`
	Status        string        `json:"status"` // "pending", "paid" or "canceled"
	BookingStatus BookingStatus `json:"booking_status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
}
