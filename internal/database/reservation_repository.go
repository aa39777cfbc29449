package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shamaqar/booking-backend/internal/models"
)

// ReservationRepository handles reservation interval database operations
type ReservationRepository struct {
	db *sqlx.DB
}

// NewReservationRepository creates a new ReservationRepository
func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// ============================================================================
// RESERVE / RELEASE
// ============================================================================

// Reserve atomically places a soft hold on [checkIn, checkOut) for a booking.
// All live intervals of the property are locked FOR UPDATE inside the
// transaction, so of two concurrent attempts on overlapping dates exactly one
// commits; the loser gets a ConflictError.
func (r *ReservationRepository) Reserve(propertyID, bookingID uuid.UUID, checkIn, checkOut time.Time, heldUntil time.Time) (*models.ReservationInterval, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Lock every live interval on the property, then test overlap with the
	// half-open rule: a_in < b_out AND b_in < a_out
	var conflicting []uuid.UUID
	err = tx.Select(&conflicting, `
		SELECT id FROM reservation_intervals
		WHERE property_id = $1
		  AND released_at IS NULL
		  AND (strength = 'hard' OR held_until > NOW())
		  AND check_in < $3
		  AND $2 < check_out
		FOR UPDATE`,
		propertyID, checkIn, checkOut)
	if err != nil {
		return nil, fmt.Errorf("failed to lock reservation intervals: %w", err)
	}

	if len(conflicting) > 0 {
		return nil, &models.ConflictError{
			Resource: "reservation",
			Reason:   fmt.Sprintf("dates %s to %s overlap an existing hold", checkIn.Format("2006-01-02"), checkOut.Format("2006-01-02")),
		}
	}

	interval := &models.ReservationInterval{
		ID:         uuid.New(),
		PropertyID: propertyID,
		BookingID:  bookingID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Strength:   models.HoldSoft,
		HeldUntil:  &heldUntil,
		CreatedAt:  time.Now(),
	}

	_, err = tx.Exec(`
		INSERT INTO reservation_intervals (
			id, property_id, booking_id, check_in, check_out,
			strength, held_until, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		interval.ID, interval.PropertyID, interval.BookingID,
		interval.CheckIn, interval.CheckOut,
		interval.Strength, interval.HeldUntil, interval.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert reservation interval: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return interval, nil
}

// ReleaseForBooking releases all live intervals owned by a booking
func (r *ReservationRepository) ReleaseForBooking(bookingID uuid.UUID) error {
	_, err := r.db.Exec(`
		UPDATE reservation_intervals
		SET released_at = NOW()
		WHERE booking_id = $1 AND released_at IS NULL`,
		bookingID)
	return err
}

// PromoteForBooking converts a booking's soft hold into a hard block.
// Returns an error if no live soft hold exists (already expired or promoted).
func (r *ReservationRepository) PromoteForBooking(bookingID uuid.UUID) error {
	result, err := r.db.Exec(`
		UPDATE reservation_intervals
		SET strength = 'hard', held_until = NULL
		WHERE booking_id = $1 AND strength = 'soft' AND released_at IS NULL`,
		bookingID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("no live soft hold to promote for booking %s", bookingID)
	}
	return nil
}

// ============================================================================
// AVAILABILITY QUERIES
// ============================================================================

// BlockedRanges returns the date ranges currently unavailable on a property
// within [from, to). Expired soft holds are not blocking even before the
// sweeper has released them.
func (r *ReservationRepository) BlockedRanges(propertyID uuid.UUID, from, to time.Time) ([]models.BlockedRange, error) {
	var ranges []models.BlockedRange
	err := r.db.Select(&ranges, `
		SELECT check_in, check_out FROM reservation_intervals
		WHERE property_id = $1
		  AND released_at IS NULL
		  AND (strength = 'hard' OR held_until > NOW())
		  AND check_in < $3
		  AND $2 < check_out
		ORDER BY check_in ASC`,
		propertyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocked ranges: %w", err)
	}
	return ranges, nil
}

// ============================================================================
// TTL EXPIRATION (Background Job Support)
// ============================================================================

// ReleaseExpiredSoftHolds releases soft holds past their TTL whose booking is
// no longer pending. The normal path releases holds through
// ExpireBookingAndReleaseHold on the booking repository; this catches strays.
func (r *ReservationRepository) ReleaseExpiredSoftHolds() (int, error) {
	result, err := r.db.Exec(`
		UPDATE reservation_intervals ri
		SET released_at = NOW()
		WHERE ri.strength = 'soft'
		  AND ri.released_at IS NULL
		  AND ri.held_until < NOW()
		  AND NOT EXISTS (
			SELECT 1 FROM bookings b
			WHERE b.id = ri.booking_id AND b.booking_status = 'pending_payment'
		  )`)
	if err != nil {
		return 0, err
	}
	rowsAffected, _ := result.RowsAffected()
	return int(rowsAffected), nil
}
