package netmon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/netmond/internal/metrics"
)

const (
	// DefaultProbeTimeout bounds how long a sync probe may block.
	DefaultProbeTimeout = 5 * time.Second

	defaultCacheSize = 512
	defaultCacheTTL  = 2 * time.Second
)

// ProberConfig tunes the reachability prober. Zero values pick the
// defaults above; CacheTTL < 0 disables caching.
type ProberConfig struct {
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
}

// Prober answers route-level reachability questions with bounded
// latency. Recent determinations are cached for a short TTL so hot
// callers do not hammer the platform; cancelled and soft-failed probes
// are never cached.
type Prober struct {
	backend     Backend
	availableFn func() bool
	timeout     time.Duration
	cache       *expirable.LRU[string, error]
}

// NewProber wires a prober to a backend. availableFn, when non-nil, is
// the tracker's last-known availability: a known-down network turns
// probes into immediate confident negatives.
func NewProber(backend Backend, availableFn func() bool, cfg ProberConfig) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProbeTimeout
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}

	p := &Prober{
		backend:     backend,
		availableFn: availableFn,
		timeout:     cfg.Timeout,
	}
	if cfg.CacheTTL >= 0 {
		ttl := cfg.CacheTTL
		if ttl == 0 {
			ttl = defaultCacheTTL
		}
		p.cache = expirable.NewLRU[string, error](cfg.CacheSize, nil, ttl)
	}
	return p
}

// CanReach checks whether a route to the endpoint plausibly exists.
// Returns nil, ErrUnreachable, ErrCancelled, an *InvalidEndpointError,
// or ErrPlatformUnavailable. Never blocks past the configured timeout.
func (p *Prober) CanReach(ctx context.Context, ep Endpoint) error {
	if err := ep.Validate(); err != nil {
		return err
	}

	// A cancellation that arrived before we started must win without
	// any platform I/O happening.
	if err := ctx.Err(); err != nil {
		return cancelErr(err)
	}

	start := time.Now()
	err := p.canReach(ctx, ep)
	elapsed := time.Since(start)

	metrics.ObserveProbe(outcomeLabel(err), elapsed.Seconds())

	log.WithFields(log.Fields{
		"endpoint": ep.String(),
		"outcome":  outcomeLabel(err),
		"elapsed":  elapsed,
	}).Debug("Reachability probe finished")

	return err
}

func (p *Prober) canReach(ctx context.Context, ep Endpoint) error {
	if p.availableFn != nil && !p.availableFn() && !ep.Loopback() {
		return fmt.Errorf("%w: network is down", ErrUnreachable)
	}

	key := ep.cacheKey()
	if p.cache != nil {
		if cached, ok := p.cache.Get(key); ok {
			return cached
		}
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.backend.CanReach(probeCtx, ep)

	if IsCancelled(err) {
		switch {
		case ctx.Err() != nil:
			// Caller-requested abort.
			return cancelErr(ctx.Err())
		case probeCtx.Err() != nil:
			// Hitting our internal bound is a best-effort negative,
			// not a cancellation: the caller never asked to stop.
			err = fmt.Errorf("%w: probe timed out", ErrUnreachable)
		default:
			// Nobody on our side cancelled anything, so a cancellation
			// coming out of the backend is a platform fault. %v on
			// purpose: the context error must not leak through Is.
			err = fmt.Errorf("%w: backend reported spurious cancellation: %v", ErrPlatformUnavailable, err)
		}
	} else if ctx.Err() != nil {
		// The caller aborting outranks whatever the backend reported.
		return cancelErr(ctx.Err())
	}

	if p.cache != nil && (err == nil || errors.Is(err, ErrUnreachable)) {
		p.cache.Add(key, err)
	}

	return err
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "reachable"
	case errors.Is(err, ErrUnreachable):
		return "unreachable"
	case IsCancelled(err):
		return "cancelled"
	case errors.Is(err, ErrPlatformUnavailable):
		return "platform_unavailable"
	default:
		return "error"
	}
}
