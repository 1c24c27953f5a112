package netmon

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnreachable is a confident negative: no route to the endpoint
	// exists right now.
	ErrUnreachable = errors.New("endpoint unreachable")

	// ErrCancelled means the probe was aborted by the caller before a
	// determination was made. Distinct from ErrUnreachable.
	ErrCancelled = errors.New("reachability check cancelled")

	// ErrPlatformUnavailable means the OS connectivity facility could
	// not be queried. Soft failure: callers should bias toward treating
	// the network as available.
	ErrPlatformUnavailable = errors.New("platform connectivity facility unavailable")
)

// InvalidEndpointError reports a malformed or unsupported endpoint
// descriptor. Always returned synchronously, before any probing begins.
type InvalidEndpointError struct {
	Target string
	Reason string
}

func (e *InvalidEndpointError) Error() string {
	return fmt.Sprintf("invalid endpoint %q: %s", e.Target, e.Reason)
}

// cancelErr maps a context error to ErrCancelled, preserving the cause.
func cancelErr(err error) error {
	if err == nil {
		return ErrCancelled
	}
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}

// IsCancelled reports whether err represents an aborted probe, either
// our sentinel or a raw context error that escaped mapping.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
