package models

import (
	"errors"
	"fmt"
)

// ErrVerificationPending marks a payment verification that exhausted its retry
// budget without a definitive answer from the gateway. The booking stays in
// pending_payment; callers should try again later. This is distinct from a
// GatewayError: the gateway answered, it just has not settled yet.
var ErrVerificationPending = errors.New("payment verification still pending")

// ValidationError rejects malformed input before any reservation attempt.
// Always recoverable by the caller correcting the request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ConflictError signals a lost race: overlapping reservation dates or a
// duplicate open payment session. Never retried automatically.
type ConflictError struct {
	Resource string
	Reason   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Resource, e.Reason)
}

// InvalidStateTransitionError signals a transition attempted from a
// non-matching booking state. The attempt is a no-op; the booking keeps its
// prior valid state.
type InvalidStateTransitionError struct {
	BookingID string
	From      BookingStatus
	To        BookingStatus
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition for booking %s: %s -> %s", e.BookingID, e.From, e.To)
}

// AuthorizationError signals that the requester is neither the booking owner
// nor an authorized agent.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	if e.Reason == "" {
		return "not authorized"
	}
	return e.Reason
}

// GatewayError wraps a failure talking to the external payment provider.
// Status checks are retried within the reconciliation budget; session
// creation failures are surfaced immediately to avoid duplicate charges.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}
