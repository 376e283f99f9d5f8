package lifecycle

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/quillback/quillback/internal/guard"
	"github.com/quillback/quillback/internal/processing"
	"github.com/quillback/quillback/internal/store"
)

// Background sweep defaults.
const (
	DefaultSweepInterval  = 10 * time.Second
	DefaultSweepBatchSize = 5
)

// BackgroundSweepDriver batch-scans for sessions missing metrics (crash
// recovery, missed events) and processes them strictly sequentially to
// bound external-API and CPU load. Disabled by default; it never runs unless
// explicitly enabled. Overlapping interval ticks or manual ProcessNow calls
// collapse into one logical run guarded by a single process-wide boolean: a
// call arriving mid-run is a no-op, not queued.
type BackgroundSweepDriver struct {
	store       *store.Store
	coordinator *processing.Coordinator
	reader      processing.TranscriptReader
	guard       *guard.Registry
	interval    time.Duration
	batchSize   int
	out         io.Writer

	mu      sync.Mutex
	running bool
	sched   *Scheduler
}

// SweepOpts holds parameters for creating a BackgroundSweepDriver.
type SweepOpts struct {
	Store       *store.Store
	Coordinator *processing.Coordinator
	Reader      processing.TranscriptReader
	Guard       *guard.Registry
	Interval    time.Duration
	BatchSize   int
	Out         io.Writer
}

// NewBackgroundSweepDriver creates the driver in the disabled state.
func NewBackgroundSweepDriver(opts SweepOpts) (*BackgroundSweepDriver, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("lifecycle: store is required")
	}
	if opts.Coordinator == nil {
		return nil, fmt.Errorf("lifecycle: coordinator is required")
	}
	if opts.Reader == nil {
		return nil, fmt.Errorf("lifecycle: transcript reader is required")
	}
	if opts.Guard == nil {
		return nil, fmt.Errorf("lifecycle: guard registry is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultSweepInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultSweepBatchSize
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	d := &BackgroundSweepDriver{
		store:       opts.Store,
		coordinator: opts.Coordinator,
		reader:      opts.Reader,
		guard:       opts.Guard,
		interval:    opts.Interval,
		batchSize:   opts.BatchSize,
		out:         opts.Out,
	}
	d.sched = NewScheduler(d.interval, true, d.runOnce)
	return d, nil
}

// Enable starts the sweep loop: one immediate run, then the fixed interval.
func (d *BackgroundSweepDriver) Enable(ctx context.Context) {
	d.sched.Start(ctx)
}

// Disable stops the loop. An in-flight run completes.
func (d *BackgroundSweepDriver) Disable() {
	d.sched.Stop()
}

// Enabled reports whether the interval loop is active.
func (d *BackgroundSweepDriver) Enabled() bool {
	return d.sched.Running()
}

// ProcessNow runs one sweep synchronously, regardless of enablement. A
// no-op when a run is already in progress.
func (d *BackgroundSweepDriver) ProcessNow(ctx context.Context) {
	d.runOnce(ctx)
}

// runOnce fetches and processes one batch. The process-wide running flag
// makes concurrent callers fall through without fetching a second batch.
func (d *BackgroundSweepDriver) runOnce(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	sessions, err := d.store.QueryUnprocessed(d.batchSize)
	if err != nil {
		log.Printf("lifecycle: sweep query: %v", err)
		return
	}

	for _, sess := range sessions {
		d.processOne(ctx, sess.SessionID, sess.Provider, sess.FilePath)
	}
}

// processOne handles a single session inside a batch; errors never abort
// the remainder of the batch.
func (d *BackgroundSweepDriver) processOne(ctx context.Context, sessionID, provider, filePath string) {
	if !d.guard.TryAcquire(sessionID) {
		return
	}
	defer d.guard.Release(sessionID)

	content, err := d.reader.GetContent(provider, filePath, sessionID)
	if err != nil {
		log.Printf("lifecycle: sweep read %s: %v", sessionID, err)
		return
	}
	if _, err := d.coordinator.Process(ctx, sessionID, provider, content, ""); err != nil {
		log.Printf("lifecycle: sweep process %s: %v", sessionID, err)
		return
	}
	fmt.Fprintf(d.out, "Sweep processed session %s\n", sessionID)
}
