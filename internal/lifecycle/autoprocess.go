package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/quillback/quillback/internal/guard"
	"github.com/quillback/quillback/internal/processing"
	"github.com/quillback/quillback/internal/store"
	"github.com/quillback/quillback/internal/watch"
)

// AutoProcessingDriver reacts to session-completed events by running metrics
// processing immediately. Duplicate events for a session already in flight
// are dropped silently via the shared permit registry.
type AutoProcessingDriver struct {
	store       *store.Store
	coordinator *processing.Coordinator
	reader      processing.TranscriptReader
	guard       *guard.Registry
	out         io.Writer
}

// NewAutoProcessingDriver creates an AutoProcessingDriver.
func NewAutoProcessingDriver(st *store.Store, coord *processing.Coordinator, reader processing.TranscriptReader, g *guard.Registry, out io.Writer) (*AutoProcessingDriver, error) {
	if st == nil {
		return nil, fmt.Errorf("lifecycle: store is required")
	}
	if coord == nil {
		return nil, fmt.Errorf("lifecycle: coordinator is required")
	}
	if reader == nil {
		return nil, fmt.Errorf("lifecycle: transcript reader is required")
	}
	if g == nil {
		return nil, fmt.Errorf("lifecycle: guard registry is required")
	}
	if out == nil {
		out = io.Discard
	}
	return &AutoProcessingDriver{store: st, coordinator: coord, reader: reader, guard: g, out: out}, nil
}

// Run consumes completion events until the channel closes or ctx is
// cancelled. Each event is handled in its own goroutine so a slow
// processing pass never delays later events.
func (d *AutoProcessingDriver) Run(ctx context.Context, events <-chan watch.SessionCompleted) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			go d.Handle(ctx, e.SessionID)
		}
	}
}

// Handle processes one completed session. A session missing from the store
// is an application-consistency bug, not a transient condition: it is logged
// and dropped with no retry.
func (d *AutoProcessingDriver) Handle(ctx context.Context, sessionID string) {
	sess, err := d.store.GetBySessionID(sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			log.Printf("lifecycle: completed event for unknown session %s, dropped", sessionID)
			return
		}
		log.Printf("lifecycle: lookup %s: %v", sessionID, err)
		return
	}

	if !d.guard.TryAcquire(sessionID) {
		return
	}
	defer d.guard.Release(sessionID)

	content, err := d.reader.GetContent(sess.Provider, sess.FilePath, sessionID)
	if err != nil {
		log.Printf("lifecycle: read transcript %s: %v", sessionID, err)
		return
	}

	if _, err := d.coordinator.Process(ctx, sessionID, sess.Provider, content, ""); err != nil {
		log.Printf("lifecycle: auto-process %s: %v", sessionID, err)
		return
	}
	fmt.Fprintf(d.out, "Processed completed session %s\n", sessionID)
}
