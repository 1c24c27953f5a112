package netmon

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/netmond/internal/metrics"
	"github.com/dmdmdm-nz/netmond/internal/runtime"
)

// Service is the connectivity state tracker. It owns the availability
// state, runs the platform watcher plus a periodic reconcile poll, and
// fans transitions out to subscribers. All state writes happen on the
// Start goroutine; reads can come from any thread.
type Service struct {
	backend           Backend
	reconcileInterval time.Duration
	clock             clock.Clock

	mu         sync.RWMutex
	available  bool
	generation uint64
	changedAt  time.Time

	subsMu           sync.Mutex
	subs             map[int]*runtime.SubQueue[StateEvent]
	nextSubscriberID int
	closed           bool
}

// NewService creates a tracker around the given backend. The starting
// state is a fresh snapshot, so reads are meaningful before Start.
func NewService(backend Backend, reconcileInterval time.Duration) *Service {
	s := &Service{
		backend:           backend,
		reconcileInterval: reconcileInterval,
		clock:             clock.New(),
		subs:              make(map[int]*runtime.SubQueue[StateEvent]),
	}

	available, err := backend.Available()
	if err != nil {
		// Soft failure: bias toward available rather than locking
		// dependent logic out.
		log.WithError(err).Warn("Initial availability snapshot failed, assuming available")
		available = true
	}
	s.available = available
	s.changedAt = s.clock.Now()

	return s
}

// Available returns the last-known availability without blocking.
func (s *Service) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.available
}

// State returns the last-known availability with its generation.
func (s *Service) State() StateEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StateEvent{Available: s.available, Generation: s.generation, At: s.changedAt}
}

// Subscribe registers for availability transitions. The current state
// is delivered first as a snapshot, then live transitions follow in
// the order the watcher published them. Subscribing to a closed service
// returns an already-closed channel. The returned func unregisters; it
// is safe to call while draining the channel.
func (s *Service) Subscribe() (<-chan StateEvent, func()) {
	s.mu.RLock()
	snapshot := StateEvent{Available: s.available, Generation: s.generation, At: s.changedAt}
	s.mu.RUnlock()

	sub := runtime.NewSubQueue[StateEvent](8)

	s.subsMu.Lock()
	if s.closed {
		s.subsMu.Unlock()
		sub.Close()
		return sub.Chan(), func() {}
	}
	id := s.nextSubscriberID
	s.nextSubscriberID++
	s.subs[id] = sub

	// Emit the snapshot directly, then go live. Doing this before the
	// lock is released keeps Close from shutting the queue mid-snapshot,
	// and live events observed in between were queued, so nothing is
	// lost.
	sub.SnapshotSend(snapshot)
	sub.SetPaused(false)
	s.subsMu.Unlock()

	unsub := func() {
		s.subsMu.Lock()
		if q, ok := s.subs[id]; ok {
			delete(s.subs, id)
			q.Close()
		}
		s.subsMu.Unlock()
	}
	return sub.Chan(), unsub
}

// Start runs the platform watcher and the reconcile ticker until ctx is
// cancelled. Watcher failures degrade to polling rather than killing
// the service.
func (s *Service) Start(ctx context.Context) error {
	log.WithField("backend", s.backend.Name()).Info("Starting connectivity tracker")
	defer log.Info("Stopping connectivity tracker")

	watchDone := make(chan error, 1)
	go func() {
		watchDone <- s.backend.Watch(ctx, s.setAvailable)
	}()

	ticker := s.clock.Ticker(s.reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-watchDone:
			if err != nil {
				log.WithError(err).Warn("Platform watcher failed, continuing with reconcile polling only")
			}
			watchDone = nil

		case <-ticker.C:
			s.reconcile()
		}
	}
}

// Close shuts down all subscriber queues. Idempotent.
func (s *Service) Close() error {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for id, q := range s.subs {
		q.Close()
		delete(s.subs, id)
	}
	return nil
}

// Backend exposes the backend for the prober and API responses.
func (s *Service) Backend() Backend { return s.backend }

func (s *Service) reconcile() {
	available, err := s.backend.Available()
	if err != nil {
		log.WithError(err).Trace("Reconcile snapshot failed")
		return
	}
	s.setAvailable(available)
}

// setAvailable publishes a new availability observation. The mutex
// serializes the watcher callback and the reconcile poll, so the
// generation never moves backward.
func (s *Service) setAvailable(available bool) {
	s.mu.Lock()
	if s.available == available {
		s.mu.Unlock()
		return
	}
	s.available = available
	s.generation++
	s.changedAt = s.clock.Now()
	ev := StateEvent{Available: available, Generation: s.generation, At: s.changedAt}
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"available":  available,
		"generation": ev.Generation,
	}).Info("Network availability changed")

	metrics.ObserveTransition(available)
	s.broadcast(ev)
}

func (s *Service) broadcast(ev StateEvent) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, sub := range s.subs {
		sub.Enqueue(ev)
	}
}
