// Package watch defines the typed events the transcript file watcher emits
// and the in-process bus the lifecycle drivers consume them from. The watcher
// itself is an external collaborator; this package is the seam it publishes
// into. Delivery is best-effort: a full channel drops the event rather than
// blocking the watcher, because the sweep drivers exist precisely to catch
// sessions missed by event delivery.
package watch

import (
	"log"
	"sync"
	"time"
)

// SessionDetected carries the full initial field set for a newly discovered
// transcript file.
type SessionDetected struct {
	SessionID        string
	Provider         string
	ProjectName      string
	FilePath         string
	FileName         string
	FileSize         int64
	SessionStartTime time.Time
	SessionEndTime   *time.Time
	DurationMs       int64
}

// SessionUpdated signals new activity on a session's transcript.
type SessionUpdated struct {
	SessionID string
}

// SessionCompleted signals that a session's transcript has reached its end.
type SessionCompleted struct {
	SessionID string
}

const busBuffer = 64

// Bus fans watcher events out to one dedicated channel per event type.
type Bus struct {
	detected  chan SessionDetected
	updated   chan SessionUpdated
	completed chan SessionCompleted

	closeOnce sync.Once
}

// NewBus creates a Bus with buffered channels.
func NewBus() *Bus {
	return &Bus{
		detected:  make(chan SessionDetected, busBuffer),
		updated:   make(chan SessionUpdated, busBuffer),
		completed: make(chan SessionCompleted, busBuffer),
	}
}

// PublishDetected enqueues a session-detected event, dropping it if the
// consumer is backed up.
func (b *Bus) PublishDetected(e SessionDetected) {
	select {
	case b.detected <- e:
	default:
		log.Printf("watch: dropped session-detected for %s (bus full)", e.SessionID)
	}
}

// PublishUpdated enqueues a session-updated event.
func (b *Bus) PublishUpdated(e SessionUpdated) {
	select {
	case b.updated <- e:
	default:
		log.Printf("watch: dropped session-updated for %s (bus full)", e.SessionID)
	}
}

// PublishCompleted enqueues a session-completed event.
func (b *Bus) PublishCompleted(e SessionCompleted) {
	select {
	case b.completed <- e:
	default:
		log.Printf("watch: dropped session-completed for %s (bus full)", e.SessionID)
	}
}

// Detected returns the session-detected channel.
func (b *Bus) Detected() <-chan SessionDetected { return b.detected }

// Updated returns the session-updated channel.
func (b *Bus) Updated() <-chan SessionUpdated { return b.updated }

// Completed returns the session-completed channel.
func (b *Bus) Completed() <-chan SessionCompleted { return b.completed }

// Close closes all channels, releasing every subscribed driver. Publishing
// after Close panics; the daemon stops the watcher first.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		close(b.detected)
		close(b.updated)
		close(b.completed)
	})
}
