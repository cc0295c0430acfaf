// Package observability groups the Prometheus instruments used by taskflow.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the client core.
type Metrics struct {
	Registry *prometheus.Registry

	Requests       *prometheus.CounterVec
	RequestLatency *prometheus.HistogramVec
	ForcedLogouts  prometheus.Counter
	CacheLookups   *prometheus.CounterVec
	PollTicks      *prometheus.CounterVec
	ActivePolls    prometheus.Gauge
}

// NewMetrics registers the instruments on a private registry so several
// clients can live in one process.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Outbound backend requests by backend and outcome.",
		}, []string{"backend", "outcome"}),
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_ms",
			Help:      "Outbound request latency in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"backend"}),
		ForcedLogouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forced_logouts_total",
			Help:      "Sessions cleared because a backend rejected the credential.",
		}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_cache_lookups_total",
			Help:      "Analytics cache lookups by result.",
		}, []string{"result"}),
		PollTicks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Live-stats poll ticks by result.",
		}, []string{"result"}),
		ActivePolls: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_poll_subscriptions",
			Help:      "Number of live polling subscriptions.",
		}),
	}
}

// ObserveRequest records one outbound call.
func (m *Metrics) ObserveRequest(backend, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(backend, outcome).Inc()
	m.RequestLatency.WithLabelValues(backend).Observe(float64(d.Milliseconds()))
}

// ForcedLogout counts one session cleared by an authorization failure.
func (m *Metrics) ForcedLogout() {
	if m == nil {
		return
	}
	m.ForcedLogouts.Inc()
}

// CacheLookup counts one cache lookup by result (hit, miss, stale, error).
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// PollTick counts one poll tick; result is "ok" or "error".
func (m *Metrics) PollTick(result string) {
	if m == nil {
		return
	}
	m.PollTicks.WithLabelValues(result).Inc()
}

// PollSubscriptions adjusts the live subscription gauge by delta.
func (m *Metrics) PollSubscriptions(delta float64) {
	if m == nil {
		return
	}
	m.ActivePolls.Add(delta)
}

// Handler exposes the private registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
