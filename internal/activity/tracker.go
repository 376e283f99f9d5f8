// Package activity keeps an ephemeral, in-memory record of which sessions
// are currently live. Liveness is derived, never persisted: it combines the
// last watcher-update time with proximity to the session's end time, so a
// session that just ended but produced no further watcher event still counts
// as live for the timeout window.
package activity

import (
	"context"
	"sync"
	"time"
)

// Default tracker windows.
const (
	DefaultTimeout       = 2 * time.Minute
	DefaultSweepInterval = 30 * time.Second
)

// Tracker maps session IDs to their last activity time.
type Tracker struct {
	mu      sync.Mutex
	timeout time.Duration
	enabled bool
	last    map[string]time.Time

	now func() time.Time // injectable clock for tests
}

// New creates a Tracker with the given liveness timeout.
func New(timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tracker{
		timeout: timeout,
		enabled: true,
		last:    make(map[string]time.Time),
		now:     time.Now,
	}
}

// MarkActive records now as the session's last activity time. A no-op while
// tracking is disabled, so bulk rescans don't flood the map.
func (t *Tracker) MarkActive(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.last[sessionID] = t.now()
}

// IsActive reports whether a session is currently live: either its last
// watcher activity is within the timeout, or it has an end time in the past
// that is within the timeout. An end time in the future never counts.
func (t *Tracker) IsActive(sessionID string, endTime *time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if last, ok := t.last[sessionID]; ok && now.Sub(last) < t.timeout {
		return true
	}
	if endTime != nil && endTime.Before(now) && now.Sub(*endTime) < t.timeout {
		return true
	}
	return false
}

// Sweep removes every entry whose age exceeds the timeout.
func (t *Tracker) Sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for id, last := range t.last {
		if now.Sub(last) >= t.timeout {
			delete(t.last, id)
		}
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep()
		}
	}
}

// SetTrackingEnabled is the global kill switch for MarkActive.
func (t *Tracker) SetTrackingEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

// ClearAll empties the map, used on logout or reset.
func (t *Tracker) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = make(map[string]time.Time)
}

// Len returns the number of tracked sessions.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.last)
}

// SetClock overrides the tracker's clock (for tests).
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}
