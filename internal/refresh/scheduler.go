package refresh

import (
	"context"
	"log"
	"sync"
	"time"
)

// Runner is the unit of work the scheduler drives on each tick.
type Runner interface {
	RefreshAll(ctx context.Context)
}

// Scheduler runs a Runner immediately on Start and then on a fixed
// interval until Stop or context cancellation. TriggerNow queues an
// out-of-band run without disturbing the interval.
type Scheduler struct {
	runner   Runner
	interval time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	trigger chan struct{}
	done    chan struct{}
}

// NewScheduler builds a stopped scheduler. An interval <= 0 defaults to
// one hour.
func NewScheduler(r Runner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		runner:   r,
		interval: interval,
		trigger:  make(chan struct{}, 1),
	}
}

// Start launches the loop. Calling Start on a scheduler that is already
// running is a no-op, so restarts after Stop are safe.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(ctx, s.stop, s.done)
}

// Stop halts the loop and waits for any in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()
	<-done
}

// TriggerNow requests an immediate run. A trigger that arrives while one
// is already pending is coalesced.
func (s *Scheduler) TriggerNow() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	log.Printf("refresh: scheduler started, interval %s", s.interval)
	s.runner.RefreshAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runner.RefreshAll(ctx)
		case <-s.trigger:
			s.runner.RefreshAll(ctx)
		case <-stop:
			log.Printf("refresh: scheduler stopped")
			return
		case <-ctx.Done():
			log.Printf("refresh: scheduler stopped: %v", ctx.Err())
			return
		}
	}
}
