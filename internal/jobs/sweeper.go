package jobs

import (
	"log"
	"time"

	"github.com/ScottJutras/chief-ai-backend/internal/storage"
)

// SweeperJob clears expired durable state on a fixed interval: pending
// actions past their TTL, idempotency records past the dedupe window,
// and lock leases whose holders died.
type SweeperJob struct {
	store    storage.Store
	interval time.Duration
	stop     chan struct{}
}

// NewSweeperJob creates the sweeper. A zero interval defaults to ten
// minutes.
func NewSweeperJob(store storage.Store, interval time.Duration) *SweeperJob {
	if interval == 0 {
		interval = 10 * time.Minute
	}
	return &SweeperJob{
		store:    store,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start begins the sweep loop in the background.
func (s *SweeperJob) Start() {
	log.Printf("🧹 Sweeper started (every %v)", s.interval)
	go s.run()
}

// Stop halts the sweep loop.
func (s *SweeperJob) Stop() {
	close(s.stop)
	log.Println("🧹 Sweeper stopped")
}

func (s *SweeperJob) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *SweeperJob) sweep() {
	if err := s.store.DeleteExpiredPendingActions(); err != nil {
		log.Printf("⚠️ sweep pending actions: %v", err)
	}
	if err := s.store.DeleteExpiredIdempotencyRecords(); err != nil {
		log.Printf("⚠️ sweep idempotency records: %v", err)
	}
	if err := s.store.DeleteExpiredLocks(); err != nil {
		log.Printf("⚠️ sweep locks: %v", err)
	}
}
