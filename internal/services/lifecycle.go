package services

import (
	"context"
	"log"
	"time"
)

// InactiveAfter is how long an active installation may stay silent before the
// sweep moves it to inactive. Coarse housekeeping, unrelated to the
// fine-grained online classifier.
const InactiveAfter = 48 * time.Hour

// LifecycleStore is the slice of the installation registry the sweep needs.
type LifecycleStore interface {
	MarkInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// LifecycleSweeper periodically demotes long-silent active installations to
// inactive. It only ever moves status toward inactive; uninstalled rows are
// untouched by the underlying store.
type LifecycleSweeper struct {
	installs LifecycleStore
	interval time.Duration
	stopChan chan struct{}
	now      func() time.Time
}

func NewLifecycleSweeper(installs LifecycleStore, interval time.Duration) *LifecycleSweeper {
	return &LifecycleSweeper{
		installs: installs,
		interval: interval,
		stopChan: make(chan struct{}),
		now:      time.Now,
	}
}

func (s *LifecycleSweeper) Start() {
	go s.loop()
	log.Printf("Lifecycle sweeper started (every %s)", s.interval)
}

func (s *LifecycleSweeper) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

func (s *LifecycleSweeper) loop() {
	// Run on startup as well as by interval.
	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *LifecycleSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	swept, err := s.RunOnce(ctx)
	if err != nil {
		log.Printf("lifecycle sweep failed: %v", err)
		return
	}
	if swept > 0 {
		log.Printf("lifecycle sweep: %d installations marked inactive", swept)
	}
}

// RunOnce performs a single sweep pass and returns how many installations
// were demoted.
func (s *LifecycleSweeper) RunOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-InactiveAfter)
	return s.installs.MarkInactiveBefore(ctx, cutoff)
}
