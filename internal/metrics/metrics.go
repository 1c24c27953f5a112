// Package metrics exposes the daemon's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NetworkAvailable is 1 while the tracker reports connectivity.
	NetworkAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netmond_network_available",
		Help: "Whether any network connectivity is currently present (1 or 0).",
	})

	// StateTransitions counts availability flips in either direction.
	StateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netmond_state_transitions_total",
		Help: "Number of availability transitions observed.",
	}, []string{"to"})

	// Probes counts finished reachability probes by outcome.
	Probes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netmond_probes_total",
		Help: "Number of reachability probes by outcome.",
	}, []string{"outcome"})

	// ProbeDuration tracks how long probes take end to end.
	ProbeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "netmond_probe_duration_seconds",
		Help:    "Latency of reachability probes.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
	})
)

// ObserveTransition records one availability flip.
func ObserveTransition(available bool) {
	if available {
		NetworkAvailable.Set(1)
		StateTransitions.WithLabelValues("available").Inc()
	} else {
		NetworkAvailable.Set(0)
		StateTransitions.WithLabelValues("unavailable").Inc()
	}
}

// ObserveProbe records one finished probe with its outcome label.
func ObserveProbe(outcome string, seconds float64) {
	Probes.WithLabelValues(outcome).Inc()
	ProbeDuration.Observe(seconds)
}
