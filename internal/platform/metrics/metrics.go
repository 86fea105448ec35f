// Package metrics holds the process prometheus collectors
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vocabot"

var (
	// UpdatesTotal counts inbound chat updates by kind and outcome
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bot",
			Name:      "updates_total",
			Help:      "Inbound chat updates by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// HandlerDuration observes state machine latency per action
	HandlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bot",
			Name:      "handler_duration_seconds",
			Help:      "Time spent handling one update, per action",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"action"},
	)

	// ThrottledTotal counts events dropped by the rate limiter
	ThrottledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "throttled_total",
			Help:      "Events rejected by the per-user rate limiter",
		},
		[]string{"action"},
	)

	// SessionResets counts sessions reset by cancel or idle expiry
	SessionResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "resets_total",
			Help:      "Sessions returned to idle, by reason",
		},
		[]string{"reason"},
	)

	// TransportCalls counts outbound chat API calls by method and result
	TransportCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "calls_total",
			Help:      "Outbound chat API calls by method and result",
		},
		[]string{"method", "result"},
	)

	// BroadcastDelivered counts mass mailing deliveries by outcome
	BroadcastDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "delivered_total",
			Help:      "Broadcast deliveries by outcome",
		},
		[]string{"outcome"},
	)

	// ExternalDuration observes latency of third-party calls (translate, quotes)
	ExternalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "request_duration_seconds",
			Help:      "Third-party API latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
)

// Handler serves the default registry
func Handler() http.Handler { return promhttp.Handler() }
