package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shamaqar/booking-backend/internal/config"
	"github.com/shamaqar/booking-backend/internal/models"
)

// ============================================================================
// IN-MEMORY FAKES
// ============================================================================

type fakePropertyStore struct {
	mu         sync.Mutex
	properties map[uuid.UUID]*models.Property
}

func newFakePropertyStore(props ...*models.Property) *fakePropertyStore {
	store := &fakePropertyStore{properties: make(map[uuid.UUID]*models.Property)}
	for _, p := range props {
		store.properties[p.ID] = p
	}
	return store
}

func (f *fakePropertyStore) GetByID(id uuid.UUID) (*models.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.properties[id], nil
}

type fakeBookingStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*models.Booking
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{bookings: make(map[uuid.UUID]*models.Booking)}
}

func (f *fakeBookingStore) Create(b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *b
	clone.Version = 1
	f.bookings[b.ID] = &clone
	return nil
}

func (f *fakeBookingStore) GetByID(id uuid.UUID) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, nil
	}
	clone := *b
	return &clone, nil
}

func (f *fakeBookingStore) GetByUserID(userID uuid.UUID, limit, offset int) ([]*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Booking
	for _, b := range f.bookings {
		if b.UserID == userID {
			clone := *b
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeBookingStore) MarkConfirmed(id uuid.UUID, amountPaid float64, ps models.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || b.BookingStatus != models.BookingStatusPendingPayment {
		return &models.InvalidStateTransitionError{BookingID: id.String(), To: models.BookingStatusConfirmed}
	}
	b.BookingStatus = models.BookingStatusConfirmed
	b.PaymentStatus = ps
	b.AmountPaid = amountPaid
	b.HoldExpiresAt = nil
	b.Version++
	return nil
}

func (f *fakeBookingStore) MarkCancelled(id uuid.UUID, amountPaid float64, ps models.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || !b.CanCancel() {
		return &models.InvalidStateTransitionError{BookingID: id.String(), To: models.BookingStatusCancelled}
	}
	b.BookingStatus = models.BookingStatusCancelled
	b.PaymentStatus = ps
	b.AmountPaid = amountPaid
	b.Version++
	return nil
}

type fakeReservationStore struct {
	mu        sync.Mutex
	intervals []*models.ReservationInterval
}

func (f *fakeReservationStore) Reserve(propertyID, bookingID uuid.UUID, checkIn, checkOut time.Time, heldUntil time.Time) (*models.ReservationInterval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, iv := range f.intervals {
		if iv.PropertyID == propertyID && iv.Live(now) &&
			models.RangesOverlap(checkIn, checkOut, iv.CheckIn, iv.CheckOut) {
			return nil, &models.ConflictError{Resource: "reservation", Reason: "dates overlap an existing hold"}
		}
	}
	iv := &models.ReservationInterval{
		ID:         uuid.New(),
		PropertyID: propertyID,
		BookingID:  bookingID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Strength:   models.HoldSoft,
		HeldUntil:  &heldUntil,
		CreatedAt:  now,
	}
	f.intervals = append(f.intervals, iv)
	return iv, nil
}

func (f *fakeReservationStore) ReleaseForBooking(bookingID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, iv := range f.intervals {
		if iv.BookingID == bookingID && iv.ReleasedAt == nil {
			iv.ReleasedAt = &now
		}
	}
	return nil
}

func (f *fakeReservationStore) PromoteForBooking(bookingID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, iv := range f.intervals {
		if iv.BookingID == bookingID && iv.Strength == models.HoldSoft && iv.ReleasedAt == nil {
			iv.Strength = models.HoldHard
			iv.HeldUntil = nil
			return nil
		}
	}
	return assert.AnError
}

func (f *fakeReservationStore) ReleaseExpiredSoftHolds() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	released := 0
	for _, iv := range f.intervals {
		if iv.Strength == models.HoldSoft && iv.ReleasedAt == nil &&
			iv.HeldUntil != nil && iv.HeldUntil.Before(now) {
			at := now
			iv.ReleasedAt = &at
			released++
		}
	}
	return released, nil
}

func (f *fakeReservationStore) BlockedRanges(propertyID uuid.UUID, from, to time.Time) ([]models.BlockedRange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	var out []models.BlockedRange
	for _, iv := range f.intervals {
		if iv.PropertyID == propertyID && iv.Live(now) &&
			models.RangesOverlap(from, to, iv.CheckIn, iv.CheckOut) {
			out = append(out, models.BlockedRange{CheckIn: iv.CheckIn, CheckOut: iv.CheckOut})
		}
	}
	return out, nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.PaymentSession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[uuid.UUID]*models.PaymentSession)}
}

func (f *fakeSessionStore) Create(s *models.PaymentSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.sessions {
		if existing.BookingID == s.BookingID && existing.Status == models.SessionStatusOpen {
			return &models.ConflictError{Resource: "payment_session", Reason: "open session exists"}
		}
	}
	s.Status = models.SessionStatusOpen
	clone := *s
	f.sessions[s.ID] = &clone
	return nil
}

func (f *fakeSessionStore) GetOpenByBookingID(bookingID uuid.UUID) (*models.PaymentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.BookingID == bookingID && s.Status == models.SessionStatusOpen {
			clone := *s
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionStore) GetByExternalID(externalID string) (*models.PaymentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.ExternalSessionID == externalID {
			clone := *s
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionStore) MarkCompleted(sessionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[sessionID]; ok && s.Status == models.SessionStatusOpen {
		now := time.Now()
		s.Status = models.SessionStatusCompleted
		s.CompletedAt = &now
	}
	return nil
}

func (f *fakeSessionStore) MarkCanceled(sessionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[sessionID]; ok && s.Status == models.SessionStatusOpen {
		s.Status = models.SessionStatusCanceled
	}
	return nil
}

func (f *fakeSessionStore) ExpireOpenForBooking(bookingID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.BookingID == bookingID && s.Status == models.SessionStatusOpen {
			s.Status = models.SessionStatusExpired
		}
	}
	return nil
}

// ============================================================================
// SERVICE FIXTURE
// ============================================================================

type bookingFixture struct {
	service  *BookingService
	payments *PaymentService
	sessions *fakeSessionStore
	bookings *fakeBookingStore
	holds    *fakeReservationStore
	property *models.Property
	userID   uuid.UUID
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	logger := testLogger()
	property := rentalProperty(100, models.CurrencyUSD)
	sessions := newFakeSessionStore()
	bookings := newFakeBookingStore()
	holds := &fakeReservationStore{}

	pricing := NewPricingService(0.30, logger)
	policy := NewCancellationPolicy(pricing, logger)
	// Unconfigured sandbox gateway issues placeholder sessions, no HTTP
	payments := NewPaymentService(&config.PaymentConfig{Environment: "sandbox", ReturnURL: "https://app.example.com/return"}, sessions, nil, logger)

	service := NewBookingService(
		newFakePropertyStore(property), bookings, holds,
		pricing, policy, payments,
		30*time.Minute, logger,
	)

	return &bookingFixture{
		service:  service,
		payments: payments,
		sessions: sessions,
		bookings: bookings,
		holds:    holds,
		property: property,
		userID:   uuid.New(),
	}
}

func strPtr(s string) *string { return &s }

func createRequest(propertyID uuid.UUID) *models.CreateBookingRequest {
	return &models.CreateBookingRequest{
		PropertyID: propertyID.String(),
		CheckIn:    strPtr("2026-10-01"),
		CheckOut:   strPtr("2026-10-04"),
	}
}

// ============================================================================
// TESTS
// ============================================================================

func TestCreateBooking(t *testing.T) {
	fx := newBookingFixture(t)
	ctx := context.Background()

	t.Run("Prices And Holds", func(t *testing.T) {
		booking, err := fx.service.CreateBooking(ctx, fx.userID, createRequest(fx.property.ID))
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusPendingPayment, booking.BookingStatus)
		assert.Equal(t, 300.0, booking.TotalPrice)
		assert.Equal(t, 90.0, booking.DepositAmount)
		assert.NotNil(t, booking.HoldExpiresAt)

		ranges, err := fx.holds.BlockedRanges(fx.property.ID,
			time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Len(t, ranges, 1)
	})

	t.Run("Overlapping Dates Rejected", func(t *testing.T) {
		req := &models.CreateBookingRequest{
			PropertyID: fx.property.ID.String(),
			CheckIn:    strPtr("2026-10-03"),
			CheckOut:   strPtr("2026-10-06"),
		}
		_, err := fx.service.CreateBooking(ctx, uuid.New(), req)
		require.Error(t, err)
		assert.True(t, models.IsConflict(err))
	})

	t.Run("Adjacent Ranges Coexist", func(t *testing.T) {
		// Half-open intervals: checkout day equals the next check-in day
		req := &models.CreateBookingRequest{
			PropertyID: fx.property.ID.String(),
			CheckIn:    strPtr("2026-10-04"),
			CheckOut:   strPtr("2026-10-07"),
		}
		_, err := fx.service.CreateBooking(ctx, uuid.New(), req)
		assert.NoError(t, err)
	})

	t.Run("Unknown Property Rejected", func(t *testing.T) {
		_, err := fx.service.CreateBooking(ctx, fx.userID, createRequest(uuid.New()))
		assert.True(t, models.IsValidation(err))
	})

	t.Run("Malformed Property ID Rejected", func(t *testing.T) {
		_, err := fx.service.CreateBooking(ctx, fx.userID, &models.CreateBookingRequest{PropertyID: "not-a-uuid"})
		assert.True(t, models.IsValidation(err))
	})
}

func TestCreateBookingConcurrency(t *testing.T) {
	fx := newBookingFixture(t)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.service.CreateBooking(ctx, uuid.New(), createRequest(fx.property.ID))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, conflicted int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case models.IsConflict(err):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, succeeded, "exactly one concurrent request must win")
	assert.Equal(t, attempts-1, conflicted)
}

func TestConfirmPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("Confirms And Promotes The Hold", func(t *testing.T) {
		fx := newBookingFixture(t)
		booking, err := fx.service.CreateBooking(ctx, fx.userID, createRequest(fx.property.ID))
		require.NoError(t, err)

		require.NoError(t, fx.service.ConfirmPayment(ctx, booking.ID, 90))

		stored, _ := fx.bookings.GetByID(booking.ID)
		assert.Equal(t, models.BookingStatusConfirmed, stored.BookingStatus)
		assert.Equal(t, models.PaymentStatusPartial, stored.PaymentStatus)
		assert.Equal(t, 90.0, stored.AmountPaid)
		assert.Nil(t, stored.HoldExpiresAt)
		assert.Equal(t, models.HoldHard, fx.holds.intervals[0].Strength)
	})

	t.Run("Idempotent On Duplicate Delivery", func(t *testing.T) {
		fx := newBookingFixture(t)
		booking, err := fx.service.CreateBooking(ctx, fx.userID, createRequest(fx.property.ID))
		require.NoError(t, err)

		require.NoError(t, fx.service.ConfirmPayment(ctx, booking.ID, 90))
		require.NoError(t, fx.service.ConfirmPayment(ctx, booking.ID, 90))

		stored, _ := fx.bookings.GetByID(booking.ID)
		assert.Equal(t, 90.0, stored.AmountPaid, "duplicate confirmation must not double-count")
	})

	t.Run("Full Payment Marks Paid", func(t *testing.T) {
		fx := newBookingFixture(t)
		booking, err := fx.service.CreateBooking(ctx, fx.userID, createRequest(fx.property.ID))
		require.NoError(t, err)

		require.NoError(t, fx.service.ConfirmPayment(ctx, booking.ID, 300))

		stored, _ := fx.bookings.GetByID(booking.ID)
		assert.Equal(t, models.PaymentStatusPaid, stored.PaymentStatus)
	})

	t.Run("Payment Below Deposit Refused", func(t *testing.T) {
		fx := newBookingFixture(t)
		booking, err := fx.service.CreateBooking(ctx, fx.userID, createRequest(fx.property.ID))
		require.NoError(t, err)

		err = fx.service.ConfirmPayment(ctx, booking.ID, 1)
		var gwErr *models.GatewayError
		assert.ErrorAs(t, err, &gwErr)

		stored, _ := fx.bookings.GetByID(booking.ID)
		assert.Equal(t, models.BookingStatusPendingPayment, stored.BookingStatus, "an underpayment must not confirm")
		assert.Equal(t, 0.0, stored.AmountPaid)
		assert.Equal(t, models.HoldSoft, fx.holds.intervals[0].Strength, "the hold stays soft")
	})

	t.Run("Cancelled Booking Cannot Confirm", func(t *testing.T) {
		fx := newBookingFixture(t)
		booking, err := fx.service.CreateBooking(ctx, fx.userID, createRequest(fx.property.ID))
		require.NoError(t, err)

		_, err = fx.service.Cancel(ctx, booking.ID, fx.userID)
		require.NoError(t, err)

		err = fx.service.ConfirmPayment(ctx, booking.ID, 90)
		var transitionErr *models.InvalidStateTransitionError
		assert.ErrorAs(t, err, &transitionErr)
	})
}

func TestCheckout(t *testing.T) {
	ctx := context.Background()

	t.Run("Opens A Session Once", func(t *testing.T) {
		fx := newBookingFixture(t)
		booking, err := fx.service.CreateBooking(ctx, fx.userID, createRequest(fx.property.ID))
		require.NoError(t, err)

		first, err := fx.service.Checkout(ctx, booking.ID, fx.userID)
		require.NoError(t, err)
		assert.Equal(t, 90.0, first.Amount)
		assert.NotEmpty(t, first.RedirectURL)

		second, err := fx.service.Checkout(ctx, booking.ID, fx.userID)
		require.NoError(t, err)
		assert.Equal(t, first.SessionID, second.SessionID, "repeat checkout must reuse the open session")
	})

	t.Run("Foreign Booking Rejected", func(t *testing.T) {
		fx := newBookingFixture(t)
		booking, err := fx.service.CreateBooking(ctx, fx.userID, createRequest(fx.property.ID))
		require.NoError(t, err)

		_, err = fx.service.Checkout(ctx, booking.ID, uuid.New())
		var authErr *models.AuthorizationError
		assert.ErrorAs(t, err, &authErr)
	})
}

func TestCancelBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("Pending Cancel Releases The Hold", func(t *testing.T) {
		fx := newBookingFixture(t)
		booking, err := fx.service.CreateBooking(ctx, fx.userID, createRequest(fx.property.ID))
		require.NoError(t, err)

		outcome, err := fx.service.Cancel(ctx, booking.ID, fx.userID)
		require.NoError(t, err)
		assert.Equal(t, models.RationaleFullRefund, outcome.Rationale)
		assert.Equal(t, 0.0, outcome.RefundAmount)

		// The dates are bookable again
		_, err = fx.service.CreateBooking(ctx, uuid.New(), createRequest(fx.property.ID))
		assert.NoError(t, err)
	})

	t.Run("Stranger Cannot Cancel", func(t *testing.T) {
		fx := newBookingFixture(t)
		booking, err := fx.service.CreateBooking(ctx, fx.userID, createRequest(fx.property.ID))
		require.NoError(t, err)

		_, err = fx.service.Cancel(ctx, booking.ID, uuid.New())
		var authErr *models.AuthorizationError
		assert.ErrorAs(t, err, &authErr)
	})

	t.Run("Full Refund Clears Amount Paid", func(t *testing.T) {
		fx := newBookingFixture(t)
		booking, err := fx.service.CreateBooking(ctx, fx.userID, createRequest(fx.property.ID))
		require.NoError(t, err)
		require.NoError(t, fx.service.ConfirmPayment(ctx, booking.ID, 90))

		outcome, err := fx.service.Cancel(ctx, booking.ID, fx.userID)
		require.NoError(t, err)
		assert.Equal(t, models.RationaleFullRefund, outcome.Rationale)
		assert.Equal(t, 90.0, outcome.RefundAmount)

		stored, _ := fx.bookings.GetByID(booking.ID)
		assert.Equal(t, 0.0, stored.AmountPaid, "the refund comes off the booking")
		assert.Equal(t, models.PaymentStatusRefunded, stored.PaymentStatus)
	})

	t.Run("Penalty Refund Leaves The Forfeited Night Paid", func(t *testing.T) {
		fx := newBookingFixture(t)
		req := &models.CreateBookingRequest{
			PropertyID: fx.property.ID.String(),
			CheckIn:    strPtr("2026-10-01"),
			CheckOut:   strPtr("2026-10-11"),
		}
		booking, err := fx.service.CreateBooking(ctx, fx.userID, req)
		require.NoError(t, err)
		require.NoError(t, fx.service.ConfirmPayment(ctx, booking.ID, 300))

		// Move check-in inside the penalty window
		soon := time.Now().Add(48 * time.Hour)
		out := soon.Add(10 * 24 * time.Hour)
		fx.bookings.mu.Lock()
		fx.bookings.bookings[booking.ID].CheckIn = &soon
		fx.bookings.bookings[booking.ID].CheckOut = &out
		fx.bookings.mu.Unlock()

		outcome, err := fx.service.Cancel(ctx, booking.ID, fx.userID)
		require.NoError(t, err)
		assert.Equal(t, models.RationaleOneNightPenalty, outcome.Rationale)
		assert.Equal(t, 200.0, outcome.RefundAmount)

		stored, _ := fx.bookings.GetByID(booking.ID)
		assert.Equal(t, 100.0, stored.AmountPaid, "the forfeited night stays on the booking")
		assert.Equal(t, models.PaymentStatusPartial, stored.PaymentStatus, "a partial refund is not labelled refunded")
	})

	t.Run("Owner Cancel Is A Seller Cancel", func(t *testing.T) {
		fx := newBookingFixture(t)
		saleProperty := &models.Property{
			ID:              uuid.New(),
			OwnerID:         uuid.New(),
			TransactionKind: models.TransactionSale,
			SalePrice:       floatPtr(100000),
			Currency:        models.CurrencyUSD,
		}
		fx.service.properties.(*fakePropertyStore).properties[saleProperty.ID] = saleProperty

		booking, err := fx.service.CreateBooking(ctx, fx.userID, &models.CreateBookingRequest{PropertyID: saleProperty.ID.String()})
		require.NoError(t, err)
		require.NoError(t, fx.service.ConfirmPayment(ctx, booking.ID, 30000))

		outcome, err := fx.service.Cancel(ctx, booking.ID, saleProperty.OwnerID)
		require.NoError(t, err)
		assert.Equal(t, models.RationaleSellerOwesDoubleDeposit, outcome.Rationale)
		assert.Equal(t, 30000.0, outcome.RefundAmount)
		assert.Equal(t, 60000.0, outcome.LiabilityAmount)
	})

	t.Run("Completed Booking Cannot Cancel", func(t *testing.T) {
		fx := newBookingFixture(t)
		booking, err := fx.service.CreateBooking(ctx, fx.userID, createRequest(fx.property.ID))
		require.NoError(t, err)

		fx.bookings.mu.Lock()
		fx.bookings.bookings[booking.ID].BookingStatus = models.BookingStatusCompleted
		fx.bookings.mu.Unlock()

		_, err = fx.service.Cancel(ctx, booking.ID, fx.userID)
		var transitionErr *models.InvalidStateTransitionError
		assert.ErrorAs(t, err, &transitionErr)
	})
}

func TestApplyGatewayResult(t *testing.T) {
	ctx := context.Background()

	t.Run("Successful Webhook Confirms", func(t *testing.T) {
		fx := newBookingFixture(t)
		booking, err := fx.service.CreateBooking(ctx, fx.userID, createRequest(fx.property.ID))
		require.NoError(t, err)
		checkout, err := fx.service.Checkout(ctx, booking.ID, fx.userID)
		require.NoError(t, err)

		session, _ := fx.sessions.GetOpenByBookingID(booking.ID)
		err = fx.service.ApplyGatewayResult(ctx, &GatewayWebhookPayload{
			UID:           session.ExternalSessionID,
			InvoiceID:     booking.ID.String(),
			Amount:        "90.00",
			PaymentStatus: "SUCCESS",
		})
		require.NoError(t, err)

		stored, _ := fx.bookings.GetByID(booking.ID)
		assert.Equal(t, models.BookingStatusConfirmed, stored.BookingStatus)

		settled, _ := fx.sessions.GetByExternalID(session.ExternalSessionID)
		assert.Equal(t, models.SessionStatusCompleted, settled.Status)
		_ = checkout
	})

	t.Run("Duplicate Webhook Ignored", func(t *testing.T) {
		fx := newBookingFixture(t)
		booking, err := fx.service.CreateBooking(ctx, fx.userID, createRequest(fx.property.ID))
		require.NoError(t, err)
		_, err = fx.service.Checkout(ctx, booking.ID, fx.userID)
		require.NoError(t, err)

		session, _ := fx.sessions.GetOpenByBookingID(booking.ID)
		payload := &GatewayWebhookPayload{
			UID:           session.ExternalSessionID,
			InvoiceID:     booking.ID.String(),
			Amount:        "90.00",
			PaymentStatus: "SUCCESS",
		}
		require.NoError(t, fx.service.ApplyGatewayResult(ctx, payload))
		require.NoError(t, fx.service.ApplyGatewayResult(ctx, payload))

		stored, _ := fx.bookings.GetByID(booking.ID)
		assert.Equal(t, 90.0, stored.AmountPaid)
	})

	t.Run("Unknown Session Ignored", func(t *testing.T) {
		fx := newBookingFixture(t)
		err := fx.service.ApplyGatewayResult(ctx, &GatewayWebhookPayload{
			UID:           "UNKNOWN",
			InvoiceID:     uuid.New().String(),
			PaymentStatus: "SUCCESS",
		})
		assert.NoError(t, err)
	})
}
