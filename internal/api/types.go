package api

import "time"

// StatusResponse reports the monitor's current view of the network.
type StatusResponse struct {
	Available  bool      `json:"available"`
	Generation uint64    `json:"generation"`
	Backend    string    `json:"backend"`
	ChangedAt  time.Time `json:"changedAt"`
}

// ReachRequest asks whether a target is plausibly reachable.
type ReachRequest struct {
	Target    string `json:"target"`
	TimeoutMs int    `json:"timeoutMs,omitempty"`
}

// ReachResponse is the outcome of a reachability probe.
type ReachResponse struct {
	Target     string `json:"target"`
	Reachable  bool   `json:"reachable"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// EventMessage is one availability transition on the event stream.
type EventMessage struct {
	Available  bool      `json:"available"`
	Generation uint64    `json:"generation"`
	At         time.Time `json:"at"`
}
