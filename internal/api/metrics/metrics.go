// Package metrics defines and registers all custom Prometheus metrics for the
// booking portal. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics register with the default Prometheus registry on import; HTTP
// request metrics come from echoprometheus in the router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "portal"

// ── Session metrics ───────────────────────────────────────────────────────────

// BootstrapsTotal counts resolved session bootstraps.
// Label:
//   - outcome: "no_token", "confirmed", "rejected", "store_error" or "superseded"
var BootstrapsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bootstraps_total",
		Help:      "Total number of session bootstraps, by outcome.",
	},
	[]string{"outcome"},
)

// SessionsActive tracks browser sessions currently held in memory.
var SessionsActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Number of browser sessions held in memory.",
	},
)

// GateDecisionsTotal counts protected route outcomes.
// Label:
//   - decision: "allow", "loading", "login_redirect" or "home_redirect"
var GateDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_decisions_total",
		Help:      "Total number of protected route decisions.",
	},
	[]string{"decision"},
)

// ── Backend metrics ───────────────────────────────────────────────────────────

// BackendRequestsTotal counts calls made to the clinic backend.
// Label:
//   - result: "ok" or the failure kind ("network", "unauthorized", "forbidden", "malformed", "status")
var BackendRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backend_requests_total",
		Help:      "Total number of clinic backend calls, by result.",
	},
	[]string{"result"},
)

// BackendRequestDuration measures round-trip time of backend calls.
var BackendRequestDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backend_request_duration_seconds",
		Help:      "Duration of clinic backend calls.",
		Buckets:   prometheus.DefBuckets,
	},
)

// Observer adapts the session metrics to the service layer's hooks.
type Observer struct{}

// SessionsActive implements service.Observer.
func (Observer) SessionsActive(n int) {
	SessionsActive.Set(float64(n))
}

// Bootstrap records one bootstrap outcome.
func (Observer) Bootstrap(outcome string) {
	BootstrapsTotal.WithLabelValues(outcome).Inc()
}
