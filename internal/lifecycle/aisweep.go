package lifecycle

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/quillback/quillback/internal/enrichment"
	"github.com/quillback/quillback/internal/guard"
	"github.com/quillback/quillback/internal/processing"
	"github.com/quillback/quillback/internal/store"
)

// Delayed AI sweep defaults.
const (
	DefaultAiSweepInterval  = 60 * time.Second
	DefaultEnrichmentDelay  = 10 * time.Minute
	DefaultEnrichmentMaxAge = time.Hour
	DefaultAiSweepBatchSize = 10
)

// DelayedAiSweepDriver batch-scans for sessions inside the enrichment
// eligibility window and runs the AI tasks for each. It fires immediately on
// startup and then on a fixed interval. Candidates already in flight
// anywhere in the process are skipped via the shared permit registry.
type DelayedAiSweepDriver struct {
	store    *store.Store
	enricher *enrichment.Coordinator
	registry *processing.Registry
	reader   processing.TranscriptReader
	guard    *guard.Registry

	delay     time.Duration
	maxAge    time.Duration
	batchSize int
	out       io.Writer
	now       func() time.Time

	sched *Scheduler
}

// AiSweepOpts holds parameters for creating a DelayedAiSweepDriver.
type AiSweepOpts struct {
	Store    *store.Store
	Enricher *enrichment.Coordinator
	Registry *processing.Registry
	Reader   processing.TranscriptReader
	Guard    *guard.Registry

	Interval  time.Duration
	Delay     time.Duration
	MaxAge    time.Duration
	BatchSize int
	Out       io.Writer
	Clock     func() time.Time
}

// NewDelayedAiSweepDriver creates the driver.
func NewDelayedAiSweepDriver(opts AiSweepOpts) (*DelayedAiSweepDriver, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("lifecycle: store is required")
	}
	if opts.Enricher == nil {
		return nil, fmt.Errorf("lifecycle: enrichment coordinator is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("lifecycle: processor registry is required")
	}
	if opts.Reader == nil {
		return nil, fmt.Errorf("lifecycle: transcript reader is required")
	}
	if opts.Guard == nil {
		return nil, fmt.Errorf("lifecycle: guard registry is required")
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultAiSweepInterval
	}
	d := &DelayedAiSweepDriver{
		store:     opts.Store,
		enricher:  opts.Enricher,
		registry:  opts.Registry,
		reader:    opts.Reader,
		guard:     opts.Guard,
		delay:     opts.Delay,
		maxAge:    opts.MaxAge,
		batchSize: opts.BatchSize,
		out:       opts.Out,
		now:       opts.Clock,
	}
	if d.delay <= 0 {
		d.delay = DefaultEnrichmentDelay
	}
	if d.maxAge <= 0 {
		d.maxAge = DefaultEnrichmentMaxAge
	}
	if d.batchSize <= 0 {
		d.batchSize = DefaultAiSweepBatchSize
	}
	if d.out == nil {
		d.out = io.Discard
	}
	if d.now == nil {
		d.now = time.Now
	}
	d.sched = NewScheduler(interval, true, d.runOnce)
	return d, nil
}

// Start launches the sweep loop: one immediate run, then the interval.
func (d *DelayedAiSweepDriver) Start(ctx context.Context) {
	d.sched.Start(ctx)
}

// Stop cancels the loop. In-flight enrichment completes.
func (d *DelayedAiSweepDriver) Stop() {
	d.sched.Stop()
}

// RunOnce performs a single scan-and-dispatch pass.
func (d *DelayedAiSweepDriver) RunOnce(ctx context.Context) {
	d.runOnce(ctx)
}

func (d *DelayedAiSweepDriver) runOnce(ctx context.Context) {
	if !d.enricher.Configured() {
		return
	}

	candidates, err := d.store.QueryEligibleForEnrichment(d.now(), d.delay, d.maxAge, d.batchSize)
	if err != nil {
		log.Printf("lifecycle: ai sweep query: %v", err)
		return
	}

	for _, sess := range candidates {
		d.enrichOne(ctx, sess.SessionID, sess.Provider, sess.FilePath)
	}
}

// enrichOne runs enrichment for a single candidate; the permit is released
// regardless of outcome.
func (d *DelayedAiSweepDriver) enrichOne(ctx context.Context, sessionID, provider, filePath string) {
	if !d.guard.TryAcquire(sessionID) {
		return
	}
	defer d.guard.Release(sessionID)

	proc, err := d.registry.Resolve(provider)
	if err != nil {
		log.Printf("lifecycle: ai sweep %s: %v", sessionID, err)
		return
	}
	content, err := d.reader.GetContent(provider, filePath, sessionID)
	if err != nil {
		log.Printf("lifecycle: ai sweep read %s: %v", sessionID, err)
		return
	}
	parsed, err := proc.ParseSession(content)
	if err != nil {
		log.Printf("lifecycle: ai sweep parse %s: %v", sessionID, err)
		return
	}
	parsed.SessionID = sessionID
	parsed.Provider = provider

	result, err := d.enricher.Enrich(ctx, sessionID, parsed)
	if err != nil {
		log.Printf("lifecycle: enrich %s: %v", sessionID, err)
		return
	}
	if result != nil {
		fmt.Fprintf(d.out, "Enriched session %s\n", sessionID)
	}
}
