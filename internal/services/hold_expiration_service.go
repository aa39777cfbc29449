package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shamaqar/booking-backend/internal/models"
)

// ExpirationStore lists and expires bookings whose hold TTL lapsed
type ExpirationStore interface {
	ListExpiredPendingPayment(limit int) ([]*models.Booking, error)
	ExpireBookingAndReleaseHold(bookingID uuid.UUID) error
}

// SessionExpirer closes open checkout sessions for expired bookings
type SessionExpirer interface {
	ExpireOpenForBooking(bookingID uuid.UUID) error
}

// StrayHoldReleaser cleans up soft holds left behind by crashed processes
type StrayHoldReleaser interface {
	ReleaseExpiredSoftHolds() (int, error)
}

// HoldExpirationService sweeps pending bookings whose soft hold passed its
// TTL without payment, freeing their dates for other customers.
type HoldExpirationService struct {
	bookings     ExpirationStore
	sessions     SessionExpirer
	reservations StrayHoldReleaser
	interval     time.Duration
	batchSize    int
	logger       *logrus.Logger
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewHoldExpirationService creates a new hold expiration sweeper
func NewHoldExpirationService(
	bookings ExpirationStore,
	sessions SessionExpirer,
	reservations StrayHoldReleaser,
	interval time.Duration,
	logger *logrus.Logger,
) *HoldExpirationService {
	return &HoldExpirationService{
		bookings:     bookings,
		sessions:     sessions,
		reservations: reservations,
		interval:     interval,
		batchSize:    100,
		logger:       logger,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start launches the sweep loop in a background goroutine
func (s *HoldExpirationService) Start() {
	s.logger.WithField("interval", s.interval).Info("Starting hold expiration sweeper")
	go s.run()
}

// Stop signals the sweep loop to exit and waits for it
func (s *HoldExpirationService) Stop() {
	close(s.stopChan)
	<-s.doneChan
	s.logger.Info("Hold expiration sweeper stopped")
}

func (s *HoldExpirationService) run() {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if _, err := s.RunOnce(); err != nil {
				s.logger.WithError(err).Error("Hold expiration sweep failed")
			}
		}
	}
}

// RunOnce performs a single sweep pass and returns how many bookings expired
func (s *HoldExpirationService) RunOnce() (int, error) {
	bookings, err := s.bookings.ListExpiredPendingPayment(s.batchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, booking := range bookings {
		if err := s.bookings.ExpireBookingAndReleaseHold(booking.ID); err != nil {
			s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to expire booking")
			continue
		}
		if err := s.sessions.ExpireOpenForBooking(booking.ID); err != nil {
			s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to expire open session")
		}
		expired++
	}

	strays, err := s.reservations.ReleaseExpiredSoftHolds()
	if err != nil {
		s.logger.WithError(err).Error("Failed to release stray soft holds")
	}

	if expired > 0 || strays > 0 {
		s.logger.WithFields(logrus.Fields{
			"expired_bookings": expired,
			"stray_holds":      strays,
		}).Info("Hold expiration sweep completed")
	}

	return expired, nil
}
