package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shamaqar/booking-backend/internal/models"
)

// BookingRepository handles booking database operations
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// ============================================================================
// BOOKING CRUD OPERATIONS
// ============================================================================

// Create persists a new booking in pending_payment state
func (r *BookingRepository) Create(booking *models.Booking) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	booking.Version = 1
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = time.Now()

	query := `
		INSERT INTO bookings (
			id, property_id, user_id, check_in, check_out,
			total_price, deposit_amount, amount_paid, currency,
			booking_status, payment_status, hold_expires_at, notes,
			version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)`

	_, err := r.db.Exec(query,
		booking.ID, booking.PropertyID, booking.UserID, booking.CheckIn, booking.CheckOut,
		booking.TotalPrice, booking.DepositAmount, booking.AmountPaid, booking.Currency,
		booking.BookingStatus, booking.PaymentStatus, booking.HoldExpiresAt, booking.Notes,
		booking.Version, booking.CreatedAt, booking.UpdatedAt,
	)
	return err
}

// GetByID retrieves a booking by ID. Returns nil without error when no
// booking exists.
func (r *BookingRepository) GetByID(bookingID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	query := `
		SELECT id, property_id, user_id, check_in, check_out,
		       total_price, deposit_amount, amount_paid, currency,
		       booking_status, payment_status, hold_expires_at, notes,
		       version, created_at, updated_at
		FROM bookings
		WHERE id = $1`

	err := r.db.Get(&booking, query, bookingID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// GetByUserID retrieves bookings for a user, newest first
func (r *BookingRepository) GetByUserID(userID uuid.UUID, limit, offset int) ([]*models.Booking, error) {
	var bookings []*models.Booking
	query := `
		SELECT id, property_id, user_id, check_in, check_out,
		       total_price, deposit_amount, amount_paid, currency,
		       booking_status, payment_status, hold_expires_at, notes,
		       version, created_at, updated_at
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	err := r.db.Select(&bookings, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// ============================================================================
// GUARDED STATE TRANSITIONS
// ============================================================================
// Every transition is a conditional UPDATE with the source state in the WHERE
// clause and a version bump. Zero rows affected means the booking was not in
// the expected state; the caller decides whether that is an error or a no-op.

// MarkConfirmed transitions pending_payment -> confirmed after the deposit
// clears. amountPaid is the cumulative paid total.
func (r *BookingRepository) MarkConfirmed(bookingID uuid.UUID, amountPaid float64, paymentStatus models.PaymentStatus) error {
	result, err := r.db.Exec(`
		UPDATE bookings
		SET booking_status = 'confirmed',
		    payment_status = $2,
		    amount_paid = $3,
		    hold_expires_at = NULL,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND booking_status = 'pending_payment'`,
		bookingID, paymentStatus, amountPaid)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return &models.InvalidStateTransitionError{
			BookingID: bookingID.String(),
			To:        models.BookingStatusConfirmed,
		}
	}
	return nil
}

// MarkCancelled transitions a cancellable booking to cancelled, settling
// amount_paid to what remains after any refund
func (r *BookingRepository) MarkCancelled(bookingID uuid.UUID, amountPaid float64, paymentStatus models.PaymentStatus) error {
	result, err := r.db.Exec(`
		UPDATE bookings
		SET booking_status = 'cancelled',
		    payment_status = $2,
		    amount_paid = $3,
		    hold_expires_at = NULL,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND booking_status IN ('pending_payment', 'confirmed')`,
		bookingID, paymentStatus, amountPaid)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return &models.InvalidStateTransitionError{
			BookingID: bookingID.String(),
			To:        models.BookingStatusCancelled,
		}
	}
	return nil
}

// ============================================================================
// TTL EXPIRATION (Background Job Support)
// ============================================================================

// ListExpiredPendingPayment returns bookings whose soft hold has lapsed
// without payment
func (r *BookingRepository) ListExpiredPendingPayment(limit int) ([]*models.Booking, error) {
	var bookings []*models.Booking
	query := `
		SELECT id, property_id, user_id, check_in, check_out,
		       total_price, deposit_amount, amount_paid, currency,
		       booking_status, payment_status, hold_expires_at, notes,
		       version, created_at, updated_at
		FROM bookings
		WHERE booking_status = 'pending_payment' AND hold_expires_at < NOW()
		LIMIT $1`

	err := r.db.Select(&bookings, query, limit)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// ExpireBookingAndReleaseHold atomically expires a booking and releases its
// reservation interval. The guard on booking_status means a payment that
// confirmed in the meantime wins: the whole transaction becomes a no-op.
func (r *BookingRepository) ExpireBookingAndReleaseHold(bookingID uuid.UUID) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		UPDATE bookings
		SET booking_status = 'expired',
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND booking_status = 'pending_payment'`,
		bookingID)
	if err != nil {
		return fmt.Errorf("failed to expire booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Confirmed or cancelled while we were sweeping; leave it alone
		return nil
	}

	_, err = tx.Exec(`
		UPDATE reservation_intervals
		SET released_at = NOW()
		WHERE booking_id = $1 AND released_at IS NULL`,
		bookingID)
	if err != nil {
		return fmt.Errorf("failed to release reservation interval: %w", err)
	}

	return tx.Commit()
}

// ============================================================================
// STAGE SWEEPS (Scheduled Job Support)
// ============================================================================

// ActivateDue moves confirmed rentals past their check-in date to active
func (r *BookingRepository) ActivateDue() (int, error) {
	result, err := r.db.Exec(`
		UPDATE bookings
		SET booking_status = 'active',
		    version = version + 1,
		    updated_at = NOW()
		WHERE booking_status = 'confirmed'
		  AND check_in IS NOT NULL
		  AND check_in <= NOW()`)
	if err != nil {
		return 0, err
	}
	rowsAffected, _ := result.RowsAffected()
	return int(rowsAffected), nil
}

// CompleteDue moves active rentals past their check-out date to completed
func (r *BookingRepository) CompleteDue() (int, error) {
	result, err := r.db.Exec(`
		UPDATE bookings
		SET booking_status = 'completed',
		    version = version + 1,
		    updated_at = NOW()
		WHERE booking_status = 'active'
		  AND check_out IS NOT NULL
		  AND check_out <= NOW()`)
	if err != nil {
		return 0, err
	}
	rowsAffected, _ := result.RowsAffected()
	return int(rowsAffected), nil
}
