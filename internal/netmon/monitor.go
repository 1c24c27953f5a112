package netmon

import (
	"context"
	"sync"
	"time"

	"github.com/dmdmdm-nz/netmond/internal/runtime"
)

// Config tunes a Monitor. The zero value is usable.
type Config struct {
	// ReconcileInterval is how often the tracker re-snapshots the
	// platform to back up the event-driven watcher.
	ReconcileInterval time.Duration

	Probe      ProberConfig
	Workers    int
	QueueDepth int

	// Backend overrides platform selection. Used by tests and by
	// callers embedding the monitor with a custom backend.
	Backend Backend
}

const defaultReconcileInterval = 30 * time.Second

// Monitor is the process-facing handle: availability queries and
// subscriptions, plus sync and async reachability probes. Construction
// never fails; a broken platform degrades to the optimistic fallback.
type Monitor struct {
	svc    *Service
	prober *Prober
	runner *Runner
}

func NewMonitor(cfg Config) *Monitor {
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = defaultReconcileInterval
	}

	backend := cfg.Backend
	if backend == nil {
		backend = selectBackend()
	}

	svc := NewService(backend, cfg.ReconcileInterval)
	prober := NewProber(backend, svc.Available, cfg.Probe)
	runner := NewRunner(prober, cfg.Workers, cfg.QueueDepth)

	return &Monitor{svc: svc, prober: prober, runner: runner}
}

var (
	defaultOnce    sync.Once
	defaultMonitor *Monitor
)

// Default returns the process-wide Monitor, constructing and starting
// it on first call. Concurrent first calls construct exactly one
// instance; it lives for the rest of the process.
func Default() *Monitor {
	defaultOnce.Do(func() {
		defaultMonitor = NewMonitor(Config{})
		go func() {
			_ = defaultMonitor.Start(context.Background())
		}()
	})
	return defaultMonitor
}

// Start runs the tracker and the probe runner until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) error {
	super := runtime.NewSupervisor()
	super.Add("tracker", m.svc.Start, m.svc.Close)
	super.Add("runner", m.runner.Start, m.runner.Close)

	if err := super.Start(ctx); err != nil {
		return err
	}
	return super.Wait(ctx)
}

// Close shuts down the runner and subscriber queues. Idempotent.
func (m *Monitor) Close() error {
	_ = m.runner.Close()
	return m.svc.Close()
}

// IsNetworkAvailable returns the last-known availability without
// blocking.
func (m *Monitor) IsNetworkAvailable() bool {
	return m.svc.Available()
}

// State returns the last-known availability with its generation.
func (m *Monitor) State() StateEvent {
	return m.svc.State()
}

// Subscribe registers for availability transitions; the current state
// arrives first. The returned func unregisters.
func (m *Monitor) Subscribe() (<-chan StateEvent, func()) {
	return m.svc.Subscribe()
}

// BackendName identifies the selected platform backend.
func (m *Monitor) BackendName() string {
	return m.svc.Backend().Name()
}

// CanReach synchronously checks route-level reachability of the
// endpoint, bounded by the probe timeout.
func (m *Monitor) CanReach(ctx context.Context, ep Endpoint) error {
	return m.prober.CanReach(ctx, ep)
}

// CanReachAsync schedules the same check on the worker pool and
// invokes complete exactly once with the outcome. Completions arrive
// in finish order, not submission order.
func (m *Monitor) CanReachAsync(ctx context.Context, ep Endpoint, complete func(ProbeResult)) string {
	return m.runner.Submit(ctx, ep, complete)
}
