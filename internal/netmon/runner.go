package netmon

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	defaultWorkers    = 4
	defaultQueueDepth = 64
)

// Runner executes reachability probes off the caller's thread on a
// fixed worker pool. Every submitted probe completes exactly once:
// cancellation racing natural completion is resolved by whichever
// happens first, and shutdown drains the queue as Cancelled rather
// than dropping anything.
type Runner struct {
	prober  *Prober
	workers int

	jobs      chan *probeJob
	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type probeJob struct {
	id       string
	ep       Endpoint
	ctx      context.Context
	complete func(ProbeResult)
	once     sync.Once
}

func (j *probeJob) deliver(err error, d time.Duration) {
	j.once.Do(func() {
		j.complete(ProbeResult{ID: j.id, Endpoint: j.ep, Err: err, Duration: d})
	})
}

func NewRunner(prober *Prober, workers, queueDepth int) *Runner {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueDepth <= 0 {
		queueDepth = defaultQueueDepth
	}
	return &Runner{
		prober:  prober,
		workers: workers,
		jobs:    make(chan *probeJob, queueDepth),
		quit:    make(chan struct{}),
	}
}

// Submit schedules an async probe and returns its id without blocking,
// even when the queue is saturated. The completion callback fires
// exactly once, from a runner goroutine, with the outcome (nil,
// ErrUnreachable, ErrCancelled, or a lower-level error). A malformed
// endpoint completes immediately without being queued.
func (r *Runner) Submit(ctx context.Context, ep Endpoint, complete func(ProbeResult)) string {
	job := &probeJob{id: uuid.NewString(), ep: ep, ctx: ctx, complete: complete}

	if err := ep.Validate(); err != nil {
		job.deliver(err, 0)
		return job.id
	}

	select {
	case r.jobs <- job:
		log.WithFields(log.Fields{
			"probe":    job.id,
			"endpoint": ep.String(),
		}).Trace("Probe queued")
		r.redrain()
	case <-r.quit:
		job.deliver(cancelErr(nil), 0)
	case <-ctx.Done():
		job.deliver(cancelErr(ctx.Err()), 0)
	default:
		// Queue full. Spill the enqueue onto a feeder goroutine so the
		// caller returns immediately; the job still completes through
		// the normal paths (worker, caller cancel, or shutdown drain).
		log.WithFields(log.Fields{
			"probe":    job.id,
			"endpoint": ep.String(),
		}).Trace("Probe queue full, spilling enqueue")
		go r.enqueue(job)
	}
	return job.id
}

func (r *Runner) enqueue(job *probeJob) {
	select {
	case r.jobs <- job:
		r.redrain()
	case <-r.quit:
		job.deliver(cancelErr(nil), 0)
	case <-job.ctx.Done():
		job.deliver(cancelErr(job.ctx.Err()), 0)
	}
}

// redrain covers the race where shutdown's drain pass finished just
// before an enqueue landed. Re-running Close cannot strand anything and
// delivery is exactly-once either way.
func (r *Runner) redrain() {
	select {
	case <-r.quit:
		_ = r.Close()
	default:
	}
}

// Start runs the worker pool until ctx is cancelled, then drains any
// queued probes as Cancelled.
func (r *Runner) Start(ctx context.Context) error {
	log.WithField("workers", r.workers).Info("Starting probe runner")
	defer log.Info("Stopping probe runner")

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}

	<-ctx.Done()
	_ = r.Close()
	r.wg.Wait()
	return nil
}

// Close stops accepting work and cancels everything still queued.
// Idempotent.
func (r *Runner) Close() error {
	r.closeOnce.Do(func() { close(r.quit) })
	for {
		select {
		case job := <-r.jobs:
			job.deliver(cancelErr(nil), 0)
		default:
			return nil
		}
	}
}

func (r *Runner) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.quit:
			return
		case job := <-r.jobs:
			r.run(ctx, job)
		}
	}
}

func (r *Runner) run(ctx context.Context, job *probeJob) {
	probeCtx, cancel := context.WithCancel(job.ctx)
	defer cancel()

	// Runner shutdown cancels in-flight probes too.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	start := time.Now()
	probeDone := make(chan struct{})

	// Deliver Cancelled promptly even when the backend is slow to
	// observe the cancellation. Exactly-once is enforced by the job,
	// so the slower of the two outcomes is discarded.
	go func() {
		select {
		case <-probeCtx.Done():
			job.deliver(cancelErr(probeCtx.Err()), time.Since(start))
		case <-probeDone:
		}
	}()

	err := r.prober.CanReach(probeCtx, job.ep)
	close(probeDone)
	job.deliver(err, time.Since(start))

	log.WithFields(log.Fields{
		"probe":    job.id,
		"endpoint": job.ep.String(),
		"outcome":  outcomeLabel(err),
	}).Trace("Probe finished")
}
