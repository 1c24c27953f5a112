package netmon

import "time"

// StateEvent describes one availability transition published by the
// tracker. Generation increases by one on every transition and never
// goes backward, even though Available can flip both ways.
type StateEvent struct {
	Available  bool
	Generation uint64
	At         time.Time
}

// StateHandler receives availability transitions.
type StateHandler func(event StateEvent)

// ProbeResult is the outcome of one reachability probe. Err is nil when
// the endpoint looked reachable, ErrUnreachable on a confident negative,
// ErrCancelled when the probe was aborted, or a lower-level error.
type ProbeResult struct {
	ID       string
	Endpoint Endpoint
	Err      error
	Duration time.Duration
}
