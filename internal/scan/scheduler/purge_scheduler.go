package scheduler

import (
	"log"
	"time"

	"relay-backend/internal/scan/repository"
)

// RetentionPurgeScheduler deletes stored email bodies whose retention
// window has lapsed. Metadata and extracted companies are kept; only the
// raw normalized content expires.
type RetentionPurgeScheduler struct {
	emailRepo repository.EmailRepository
	interval  time.Duration
	stopChan  chan struct{}
}

// NewRetentionPurgeScheduler creates a new scheduler
func NewRetentionPurgeScheduler(emailRepo repository.EmailRepository, interval time.Duration) *RetentionPurgeScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RetentionPurgeScheduler{
		emailRepo: emailRepo,
		interval:  interval,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the scheduler loop
func (s *RetentionPurgeScheduler) Start() {
	log.Printf("[PurgeScheduler] Starting retention purge scheduler (interval: %s)", s.interval)

	go func() {
		// Run immediately on start
		s.purgeExpiredBodies()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.purgeExpiredBodies()
			case <-s.stopChan:
				log.Println("[PurgeScheduler] Scheduler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler
func (s *RetentionPurgeScheduler) Stop() {
	close(s.stopChan)
}

func (s *RetentionPurgeScheduler) purgeExpiredBodies() {
	deleted, err := s.emailRepo.DeleteExpiredBodies(time.Now())
	if err != nil {
		log.Printf("[PurgeScheduler] Error purging expired email bodies: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("[PurgeScheduler] Purged %d expired email bodies", deleted)
	}
}
