package lifecycle

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/quillback/quillback/internal/models"
	"github.com/quillback/quillback/internal/store"
	"github.com/quillback/quillback/internal/watch"
)

// IngestionListener reacts to session-detected events by creating store
// rows. Deduplication is the store's atomic upsert-if-absent, so two
// detection events for the same session arriving nearly simultaneously still
// produce exactly one row.
type IngestionListener struct {
	store *store.Store
	out   io.Writer
}

// NewIngestionListener creates an IngestionListener.
func NewIngestionListener(st *store.Store, out io.Writer) (*IngestionListener, error) {
	if st == nil {
		return nil, fmt.Errorf("lifecycle: store is required")
	}
	if out == nil {
		out = io.Discard
	}
	return &IngestionListener{store: st, out: out}, nil
}

// Run consumes detection events until the channel closes or ctx is
// cancelled.
func (l *IngestionListener) Run(ctx context.Context, events <-chan watch.SessionDetected) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := l.Handle(e); err != nil {
				log.Printf("lifecycle: ingest %s: %v", e.SessionID, err)
			}
		}
	}
}

// Handle creates the session row for one detection event.
func (l *IngestionListener) Handle(e watch.SessionDetected) error {
	sess := &models.Session{
		SessionID:        e.SessionID,
		Provider:         e.Provider,
		ProjectName:      e.ProjectName,
		FilePath:         e.FilePath,
		FileName:         e.FileName,
		FileSize:         e.FileSize,
		SessionStartTime: e.SessionStartTime,
		SessionEndTime:   e.SessionEndTime,
		DurationMs:       e.DurationMs,
	}
	if err := l.store.CreateSession(sess); err != nil {
		return err
	}
	fmt.Fprintf(l.out, "Ingested session %s (%s)\n", e.SessionID, e.Provider)
	return nil
}
