package enrichment

import (
	"context"
	"fmt"
	"log"

	"github.com/quillback/quillback/internal/processing"
	"github.com/quillback/quillback/internal/store"
)

// Notifier receives best-effort notice of terminal session failures.
type Notifier interface {
	SessionFailed(sessionID, reason string)
}

// Result is the combined output of one enrichment pass.
type Result struct {
	Summary       string
	QualityScore  *float64
	Metadata      string
	PhaseAnalysis string
}

// Coordinator runs the summary and quality tasks for one session and
// persists whatever succeeded.
type Coordinator struct {
	store    *store.Store
	adapter  Adapter  // nil when no model credential is configured
	notifier Notifier // optional
}

// NewCoordinator creates a Coordinator. A nil adapter is valid and makes
// Enrich a no-op.
func NewCoordinator(st *store.Store, adapter Adapter, notifier Notifier) (*Coordinator, error) {
	if st == nil {
		return nil, fmt.Errorf("enrichment: store is required")
	}
	return &Coordinator{store: st, adapter: adapter, notifier: notifier}, nil
}

// Configured reports whether a model adapter is available. The delayed
// sweep checks this before querying for candidates.
func (c *Coordinator) Configured() bool {
	return c.adapter != nil
}

// Enrich runs both tasks for a session. Returns (nil, nil) when no adapter
// is configured. Auth-class failures mark the session terminally failed and
// stop the pass; any other task failure is logged and swallowed so the
// session stays eligible for the next sweep. If at least one task produced
// output it is persisted, with the enrichment stage marked complete only
// when both tasks succeeded.
func (c *Coordinator) Enrich(ctx context.Context, sessionID string, parsed *processing.ParsedSession) (*Result, error) {
	if c.adapter == nil {
		return nil, nil
	}
	if parsed == nil {
		return nil, fmt.Errorf("enrichment: parsed session is required")
	}

	tctx := TaskContext{SessionID: sessionID, Parsed: parsed}
	result := &Result{}
	succeeded := 0

	summary, err := c.adapter.ExecuteTask(ctx, TaskSummary, tctx)
	if err != nil {
		if c.failTerminal(sessionID, err) {
			return nil, err
		}
		log.Printf("enrichment: summary task for %s: %v (will retry next sweep)", sessionID, err)
	} else {
		result.Summary = summary.Output
		succeeded++
	}

	quality, err := c.adapter.ExecuteTask(ctx, TaskQuality, tctx)
	if err != nil {
		if c.failTerminal(sessionID, err) {
			return nil, err
		}
		log.Printf("enrichment: quality task for %s: %v (will retry next sweep)", sessionID, err)
	} else {
		result.QualityScore = quality.Score
		result.Metadata = quality.Metadata
		result.PhaseAnalysis = quality.PhaseAnalysis
		succeeded++
	}

	if succeeded == 0 {
		// Nothing to persist; the session is untouched and remains eligible.
		return nil, nil
	}

	upd := store.EnrichmentUpdate{Complete: succeeded == 2}
	if result.Summary != "" {
		upd.Summary = &result.Summary
	}
	if result.QualityScore != nil {
		upd.QualityScore = result.QualityScore
	}
	if result.Metadata != "" {
		upd.Metadata = &result.Metadata
	}
	if result.PhaseAnalysis != "" {
		upd.PhaseAnalysis = &result.PhaseAnalysis
	}
	if err := c.store.MarkEnrichment(sessionID, upd); err != nil {
		return nil, err
	}
	return result, nil
}

// failTerminal handles an auth-class task error: flips the session to
// failed and notifies. Returns true when the error was terminal.
func (c *Coordinator) failTerminal(sessionID string, taskErr error) bool {
	if !IsAuthError(taskErr) {
		return false
	}
	if err := c.store.MarkProcessingFailed(sessionID); err != nil {
		log.Printf("enrichment: mark failed %s: %v", sessionID, err)
	}
	if c.notifier != nil {
		c.notifier.SessionFailed(sessionID, taskErr.Error())
	}
	return true
}
