package services

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// StageSweepStore advances bookings through their date-driven stages
type StageSweepStore interface {
	ActivateDue() (int, error)
	CompleteDue() (int, error)
}

// CronService manages scheduled background jobs
type CronService struct {
	cron     *cron.Cron
	bookings StageSweepStore
}

// NewCronService creates a new CronService
func NewCronService(bookings StageSweepStore) *CronService {
	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	return &CronService{
		cron:     c,
		bookings: bookings,
	}
}

// Start starts all cron jobs
func (s *CronService) Start() error {
	log.Println("Starting cron service...")

	// Job 1: Move confirmed bookings past check-in to active, daily at 3 AM
	// Cron format: second minute hour day month weekday
	_, err := s.cron.AddFunc("0 0 3 * * *", s.activateDueJob)
	if err != nil {
		return fmt.Errorf("failed to schedule activation job: %w", err)
	}
	log.Println("✓ Scheduled: Activate due bookings (Daily at 3:00 AM)")

	// Job 2: Move active bookings past check-out to completed, daily at 3:10 AM
	_, err = s.cron.AddFunc("0 10 3 * * *", s.completeDueJob)
	if err != nil {
		return fmt.Errorf("failed to schedule completion job: %w", err)
	}
	log.Println("✓ Scheduled: Complete due bookings (Daily at 3:10 AM)")

	s.cron.Start()
	log.Println("✓ Cron service started successfully")

	return nil
}

// Stop stops all cron jobs
func (s *CronService) Stop() {
	log.Println("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("✓ Cron service stopped")
}

// activateDueJob moves confirmed rentals whose stay has started to active
func (s *CronService) activateDueJob() {
	log.Println("[CRON] Starting booking activation job...")
	startTime := time.Now()

	activated, err := s.bookings.ActivateDue()
	if err != nil {
		log.Printf("[CRON ERROR] Failed to activate due bookings: %v\n", err)
		return
	}

	duration := time.Since(startTime)
	log.Printf("[CRON] ✓ Activated %d bookings in %v\n", activated, duration)
}

// completeDueJob moves active rentals whose stay has ended to completed
func (s *CronService) completeDueJob() {
	log.Println("[CRON] Starting booking completion job...")
	startTime := time.Now()

	completed, err := s.bookings.CompleteDue()
	if err != nil {
		log.Printf("[CRON ERROR] Failed to complete due bookings: %v\n", err)
		return
	}

	duration := time.Since(startTime)
	log.Printf("[CRON] ✓ Completed %d bookings in %v\n", completed, duration)
}

// RunActivateDueNow runs the activation job immediately (for testing)
func (s *CronService) RunActivateDueNow() error {
	log.Println("[MANUAL] Running booking activation now...")
	s.activateDueJob()
	return nil
}

// RunCompleteDueNow runs the completion job immediately (for testing)
func (s *CronService) RunCompleteDueNow() error {
	log.Println("[MANUAL] Running booking completion now...")
	s.completeDueJob()
	return nil
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
