package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shamaqar/booking-backend/internal/models"
)

// PaymentSessionRepository handles payment session database operations.
// A partial unique index on (booking_id) WHERE status = 'open' backs the
// one-open-session-per-booking invariant at the database level.
type PaymentSessionRepository struct {
	db *sqlx.DB
}

// NewPaymentSessionRepository creates a new PaymentSessionRepository
func NewPaymentSessionRepository(db *sqlx.DB) *PaymentSessionRepository {
	return &PaymentSessionRepository{db: db}
}

// Create persists a new open session. A unique violation on the partial index
// is surfaced as a ConflictError so the caller can fall back to the existing
// open session.
func (r *PaymentSessionRepository) Create(session *models.PaymentSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	session.Status = models.SessionStatusOpen
	session.CreatedAt = time.Now()

	query := `
		INSERT INTO payment_sessions (
			id, booking_id, external_session_id, redirect_url,
			amount, currency, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(query,
		session.ID, session.BookingID, session.ExternalSessionID, session.RedirectURL,
		session.Amount, session.Currency, session.Status, session.CreatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return &models.ConflictError{
			Resource: "payment_session",
			Reason:   fmt.Sprintf("booking %s already has an open session", session.BookingID),
		}
	}
	return err
}

// GetOpenByBookingID retrieves the open session for a booking, if any.
// Returns nil without error when none exists.
func (r *PaymentSessionRepository) GetOpenByBookingID(bookingID uuid.UUID) (*models.PaymentSession, error) {
	var session models.PaymentSession
	query := `
		SELECT id, booking_id, external_session_id, redirect_url,
		       amount, currency, status, created_at, completed_at
		FROM payment_sessions
		WHERE booking_id = $1 AND status = 'open'`

	err := r.db.Get(&session, query, bookingID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GetByExternalID retrieves a session by the gateway's session identifier
func (r *PaymentSessionRepository) GetByExternalID(externalID string) (*models.PaymentSession, error) {
	var session models.PaymentSession
	query := `
		SELECT id, booking_id, external_session_id, redirect_url,
		       amount, currency, status, created_at, completed_at
		FROM payment_sessions
		WHERE external_session_id = $1`

	err := r.db.Get(&session, query, externalID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// MarkCompleted closes an open session after the gateway confirmed payment
func (r *PaymentSessionRepository) MarkCompleted(sessionID uuid.UUID) error {
	result, err := r.db.Exec(`
		UPDATE payment_sessions
		SET status = 'completed', completed_at = NOW()
		WHERE id = $1 AND status = 'open'`,
		sessionID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("session %s not open", sessionID)
	}
	return nil
}

// MarkCanceled voids an open session
func (r *PaymentSessionRepository) MarkCanceled(sessionID uuid.UUID) error {
	_, err := r.db.Exec(`
		UPDATE payment_sessions
		SET status = 'canceled'
		WHERE id = $1 AND status = 'open'`,
		sessionID)
	return err
}

// ExpireOpenForBooking expires any open session when a booking's hold lapses
func (r *PaymentSessionRepository) ExpireOpenForBooking(bookingID uuid.UUID) error {
	_, err := r.db.Exec(`
		UPDATE payment_sessions
		SET status = 'expired'
		WHERE booking_id = $1 AND status = 'open'`,
		bookingID)
	return err
}

// isUniqueViolation reports whether err is a Postgres unique_violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
