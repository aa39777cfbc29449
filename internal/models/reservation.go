package models

import (
	"time"

	"github.com/google/uuid"
)

// HoldStrength distinguishes expiring soft holds from confirmed hard blocks
// Matches PostgreSQL ENUM: hold_strength
type HoldStrength string

const (
	HoldSoft HoldStrength = "soft" // Placed at booking creation, expires with the hold TTL
	HoldHard HoldStrength = "hard" // Promoted on payment confirmation, never expires
)

// ReservationInterval blocks a half-open date range [check_in, check_out)
// on a property for the booking that owns it.
type ReservationInterval struct {
	ID         uuid.UUID    `json:"id" db:"id"`
	PropertyID uuid.UUID    `json:"property_id" db:"property_id"`
	BookingID  uuid.UUID    `json:"booking_id" db:"booking_id"`
	CheckIn    time.Time    `json:"check_in" db:"check_in"`
	CheckOut   time.Time    `json:"check_out" db:"check_out"`
	Strength   HoldStrength `json:"strength" db:"strength"`
	HeldUntil  *time.Time   `json:"held_until,omitempty" db:"held_until"` // Soft holds only
	ReleasedAt *time.Time   `json:"released_at,omitempty" db:"released_at"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}

// Live reports whether the interval still blocks the range: not released, and
// for soft holds, not past its TTL.
func (r *ReservationInterval) Live(now time.Time) bool {
	if r.ReleasedAt != nil {
		return false
	}
	if r.Strength == HoldSoft && r.HeldUntil != nil && now.After(*r.HeldUntil) {
		return false
	}
	return true
}

// RangesOverlap implements the half-open overlap rule: [aIn, aOut) conflicts
// with [bIn, bOut) iff aIn < bOut && bIn < aOut.
func RangesOverlap(aIn, aOut, bIn, bOut time.Time) bool {
	return aIn.Before(bOut) && bIn.Before(aOut)
}

// BlockedRange is a date range unavailable for new reservations, as rendered
// to external calendar consumers.
type BlockedRange struct {
	CheckIn  time.Time `json:"check_in" db:"check_in"`
	CheckOut time.Time `json:"check_out" db:"check_out"`
}
