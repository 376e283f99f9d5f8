// Package lifecycle hosts the background drivers that decide when, and at
// most how often, each pipeline stage runs for each session. Drivers
// coordinate only through the store's status columns and the shared permit
// registry; they never talk to each other directly.
package lifecycle

import (
	"context"
	"sync"
	"time"
)

// Scheduler fires a function immediately (optionally) and then on a fixed
// interval until stopped. Stopping cancels the timer but never the in-flight
// run: the function receives a context detached from cancellation so work
// already started runs to completion.
type Scheduler struct {
	interval  time.Duration
	immediate bool
	fn        func(context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a Scheduler.
func NewScheduler(interval time.Duration, immediate bool, fn func(context.Context)) *Scheduler {
	return &Scheduler{interval: interval, immediate: immediate, fn: fn}
}

// Start launches the firing loop. A second Start while running is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done
	runCtx := context.WithoutCancel(ctx)

	go func() {
		defer close(done)
		if s.immediate {
			s.fn(runCtx)
		}
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.fn(runCtx)
			}
		}
	}()
}

// Stop cancels the timer and waits for the loop to exit. Safe to call when
// not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the firing loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// sleepWithContext sleeps for duration d, returning early if ctx is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
