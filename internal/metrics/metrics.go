// Package metrics holds the process-wide Prometheus collectors. They are
// registered on the default registry and served by promhttp at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Kinds of persisted messages counted by MessagesDispatched.
const (
	KindOrigin = "origin"
	KindFanout = "fanout"
	KindBot    = "bot"
)

// Outcomes of a single generation attempt.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	MessagesDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatwave_messages_dispatched_total",
			Help: "Persisted messages by kind.",
		},
		[]string{"kind"},
	)

	DispatchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatwave_dispatch_failures_total",
			Help: "Rejected or failed sends by error code.",
		},
		[]string{"code"},
	)

	GenerationAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatwave_generation_attempts_total",
			Help: "Calls to the text generation service by outcome.",
		},
		[]string{"outcome"},
	)

	BotFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatwave_bot_fallbacks_total",
			Help: "Bot replies that fell back to the unavailable message.",
		},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatwave_ws_connections",
			Help: "Currently open websocket connections.",
		},
	)

	WSEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatwave_ws_events_total",
			Help: "Inbound websocket events by type.",
		},
		[]string{"type"},
	)

	WSDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatwave_ws_dropped_total",
			Help: "Events dropped by the gateway by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		MessagesDispatched,
		DispatchFailures,
		GenerationAttempts,
		BotFallbacks,
		WSConnections,
		WSEvents,
		WSDropped,
	)
}
