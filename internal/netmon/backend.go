package netmon

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Backend is a platform-specific implementation of the monitor's
// capability set: a snapshot query, a change watcher, and a route-level
// reachability check. One backend is selected at construction time.
type Backend interface {
	// Name identifies the backend in logs and API responses.
	Name() string

	// Available takes a fresh snapshot of whether any network
	// connectivity is currently present.
	Available() (bool, error)

	// Watch blocks until ctx is cancelled, invoking callback with the
	// new availability whenever the platform reports a change. The
	// callback may be invoked from the watcher's goroutine only.
	Watch(ctx context.Context, callback func(available bool)) error

	// CanReach performs a best-effort, route-level-only feasibility
	// check for the endpoint. It must honor ctx cancellation and never
	// performs a connection handshake. Returns nil, ErrUnreachable,
	// ErrPlatformUnavailable, or a resolution error.
	CanReach(ctx context.Context, ep Endpoint) error
}

// selectBackend picks the best backend for this platform. It never
// fails: if the platform backend cannot initialize, the optimistic
// fallback is used so the monitor stays usable in degraded form.
func selectBackend() Backend {
	b, err := newPlatformBackend()
	if err != nil {
		log.WithError(err).Warn("Platform backend unavailable, falling back to optimistic backend")
		return newFallbackBackend()
	}
	return b
}
