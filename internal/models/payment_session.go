package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the state of an external checkout session
// Matches PostgreSQL ENUM: session_status
type SessionStatus string

const (
	SessionStatusOpen      SessionStatus = "open"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCanceled  SessionStatus = "canceled"
	SessionStatusExpired   SessionStatus = "expired"
)

// PaymentSession tracks one hosted-checkout session at the external gateway.
// At most one open session exists per booking at any time. Sessions are soft
// state: if lost they are re-derived from the gateway, and the open-session
// invariant is re-checked against the gateway on recovery.
type PaymentSession struct {
	ID                uuid.UUID     `json:"id" db:"id"`
	BookingID         uuid.UUID     `json:"booking_id" db:"booking_id"`
	ExternalSessionID string        `json:"external_session_id" db:"external_session_id"`
	RedirectURL       string        `json:"redirect_url" db:"redirect_url"`
	Amount            float64       `json:"amount" db:"amount"`
	Currency          Currency      `json:"currency" db:"currency"`
	Status            SessionStatus `json:"status" db:"status"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
}

// IsOpen reports whether the session can still receive a payment.
func (s *PaymentSession) IsOpen() bool {
	return s.Status == SessionStatusOpen
}
