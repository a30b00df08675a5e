// Package metrics exposes the simulator's operational counters through
// the Prometheus client, grounded on the client_golang usage found in
// the luxfi-consensus and other_examples retrieval repos — the teacher
// itself carries no metrics surface.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// FramesSent counts frames transmitted, by intent.
	FramesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bgsim_frames_sent_total",
		Help: "Frames transmitted by a general, labeled by intent.",
	}, []string{"intent"})

	// FramesReceived counts frames successfully decoded off a listener,
	// by intent.
	FramesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bgsim_frames_received_total",
		Help: "Frames decoded by a general's receive loop, labeled by intent.",
	}, []string{"intent"})

	// TransmitFailures counts failed one-shot sends (connect/write
	// errors), by intent.
	TransmitFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bgsim_transmit_failures_total",
		Help: "Failed transmit attempts, labeled by intent.",
	}, []string{"intent"})

	// RoundsCompleted counts secondary voting rounds that reached a
	// local majority and emitted a DCSN.
	RoundsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bgsim_rounds_completed_total",
		Help: "Secondary voting rounds that completed with a DCSN sent.",
	})

	// Decisions counts collective decisions by outcome.
	Decisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bgsim_collective_decisions_total",
		Help: "Collective decisions reached by the coordinator, labeled by outcome.",
	}, []string{"outcome"})

	// LiveGenerals reports the current fleet size.
	LiveGenerals = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bgsim_live_generals",
		Help: "Number of generals currently in the fleet.",
	})
)

func init() {
	prometheus.MustRegister(FramesSent, FramesReceived, TransmitFailures, RoundsCompleted, Decisions, LiveGenerals)
}
