package lifecycle

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/quillback/quillback/internal/activity"
	"github.com/quillback/quillback/internal/config"
	"github.com/quillback/quillback/internal/enrichment"
	"github.com/quillback/quillback/internal/guard"
	"github.com/quillback/quillback/internal/processing"
	"github.com/quillback/quillback/internal/store"
	"github.com/quillback/quillback/internal/watch"
	"gorm.io/gorm"
)

// DaemonOpts holds everything the orchestrator daemon needs.
type DaemonOpts struct {
	DB       *gorm.DB
	Config   *config.Config
	Bus      *watch.Bus
	Registry *processing.Registry
	Reader   processing.TranscriptReader
	Adapter  enrichment.Adapter  // nil disables enrichment
	Notifier enrichment.Notifier // optional
	Diff     processing.DiffSource
	DiffDir  string
	Out      io.Writer
}

// Daemon wires the event bus, the store, and the lifecycle drivers into one
// running orchestrator.
type Daemon struct {
	cfg   *config.Config
	bus   *watch.Bus
	out   io.Writer
	store *store.Store

	tracker  *activity.Tracker
	ingest   *IngestionListener
	auto     *AutoProcessingDriver
	sweep    *BackgroundSweepDriver
	aiSweep  *DelayedAiSweepDriver
	enricher *enrichment.Coordinator
}

// NewDaemon validates opts and builds all drivers.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("lifecycle: db is required")
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("lifecycle: config is required")
	}
	if opts.Bus == nil {
		return nil, fmt.Errorf("lifecycle: bus is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("lifecycle: registry is required")
	}
	if opts.Reader == nil {
		opts.Reader = processing.FileReader{}
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	st, err := store.New(opts.DB)
	if err != nil {
		return nil, err
	}

	var coordOpts []processing.CoordinatorOpt
	if opts.Diff != nil {
		coordOpts = append(coordOpts, processing.WithDiffSource(opts.Diff, opts.DiffDir))
	}
	coordinator, err := processing.NewCoordinator(st, opts.Registry, coordOpts...)
	if err != nil {
		return nil, err
	}

	enricher, err := enrichment.NewCoordinator(st, opts.Adapter, opts.Notifier)
	if err != nil {
		return nil, err
	}

	permits := guard.NewRegistry()
	tracker := activity.New(time.Duration(opts.Config.Activity.TimeoutSec) * time.Second)

	ingest, err := NewIngestionListener(st, opts.Out)
	if err != nil {
		return nil, err
	}
	auto, err := NewAutoProcessingDriver(st, coordinator, opts.Reader, permits, opts.Out)
	if err != nil {
		return nil, err
	}
	sweep, err := NewBackgroundSweepDriver(SweepOpts{
		Store:       st,
		Coordinator: coordinator,
		Reader:      opts.Reader,
		Guard:       permits,
		Interval:    time.Duration(opts.Config.Sweep.IntervalSec) * time.Second,
		BatchSize:   opts.Config.Sweep.BatchSize,
		Out:         opts.Out,
	})
	if err != nil {
		return nil, err
	}
	aiSweep, err := NewDelayedAiSweepDriver(AiSweepOpts{
		Store:     st,
		Enricher:  enricher,
		Registry:  opts.Registry,
		Reader:    opts.Reader,
		Guard:     permits,
		Interval:  time.Duration(opts.Config.Enrichment.IntervalSec) * time.Second,
		Delay:     time.Duration(opts.Config.Enrichment.DelayMin) * time.Minute,
		MaxAge:    time.Duration(opts.Config.Enrichment.MaxAgeMin) * time.Minute,
		BatchSize: opts.Config.Enrichment.BatchSize,
		Out:       opts.Out,
	})
	if err != nil {
		return nil, err
	}

	return &Daemon{
		cfg:      opts.Config,
		bus:      opts.Bus,
		out:      opts.Out,
		store:    st,
		tracker:  tracker,
		ingest:   ingest,
		auto:     auto,
		sweep:    sweep,
		aiSweep:  aiSweep,
		enricher: enricher,
	}, nil
}

// Store exposes the daemon's session store (dashboard, CLI wiring).
func (d *Daemon) Store() *store.Store { return d.store }

// Tracker exposes the daemon's activity tracker.
func (d *Daemon) Tracker() *activity.Tracker { return d.tracker }

// Sweep exposes the background sweep driver for manual control.
func (d *Daemon) Sweep() *BackgroundSweepDriver { return d.sweep }

// Run starts every driver and blocks until ctx is cancelled. Interval timers
// and event subscriptions are then released; in-flight operations are not
// force-cancelled and run to completion.
func (d *Daemon) Run(ctx context.Context) error {
	fmt.Fprintf(d.out, "Quillback orchestrator starting...\n")

	go d.ingest.Run(ctx, d.bus.Detected())
	go d.auto.Run(ctx, d.bus.Completed())
	go d.trackUpdates(ctx)
	go d.tracker.Run(ctx, time.Duration(d.cfg.Activity.SweepIntervalSec)*time.Second)

	d.aiSweep.Start(ctx)
	if d.cfg.Sweep.Enabled {
		d.sweep.Enable(ctx)
		fmt.Fprintf(d.out, "Background metrics sweep enabled (every %ds)\n", d.cfg.Sweep.IntervalSec)
	}
	if d.cfg.Sweep.Schedule != "" {
		go d.runCatchupSchedule(ctx)
		fmt.Fprintf(d.out, "Catch-up sweep scheduled (%s)\n", d.cfg.Sweep.Schedule)
	}
	if d.enricher.Configured() {
		fmt.Fprintf(d.out, "AI enrichment active (delay %dm, window %dm)\n",
			d.cfg.Enrichment.DelayMin, d.cfg.Enrichment.MaxAgeMin)
	} else {
		fmt.Fprintf(d.out, "AI enrichment disabled (no credential configured)\n")
	}

	<-ctx.Done()

	d.aiSweep.Stop()
	d.sweep.Disable()
	fmt.Fprintf(d.out, "Quillback orchestrator stopped.\n")
	return nil
}

// trackUpdates feeds session-updated events into the activity tracker.
func (d *Daemon) trackUpdates(ctx context.Context) {
	events := d.bus.Updated()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			d.tracker.MarkActive(e.SessionID)
		}
	}
}

// runCatchupSchedule triggers a manual sweep run at each cron fire time.
// Tracking is suspended for the duration of the run so the bulk rescan does
// not flood the activity map.
func (d *Daemon) runCatchupSchedule(ctx context.Context) {
	for {
		wait := nextCronDuration(d.cfg.Sweep.Schedule)
		if wait <= 0 {
			fmt.Fprintf(d.out, "Invalid catch-up schedule %q, disabled\n", d.cfg.Sweep.Schedule)
			return
		}
		sleepWithContext(ctx, wait)
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintf(d.out, "Catch-up sweep firing\n")
		d.tracker.SetTrackingEnabled(false)
		d.sweep.ProcessNow(context.WithoutCancel(ctx))
		d.tracker.SetTrackingEnabled(true)
	}
}
