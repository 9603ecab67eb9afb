// Package metrics exposes relay counters and latencies in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Relay outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeBadRequest = "bad_request"
	OutcomeRelayError = "relay_error"
	OutcomeInternal   = "internal_error"
	OutcomeCanceled   = "canceled"
)

// Metrics holds the collectors used by the relay service. A nil *Metrics
// records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	relays            *prometheus.CounterVec
	relayDuration     prometheus.Histogram
	responderDuration *prometheus.HistogramVec
	historyReads      prometheus.Counter
	inFlight          prometheus.Gauge
}

// New creates a registry with process and Go collectors plus the relay metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		relays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scibot",
			Name:      "relay_requests_total",
			Help:      "Relay calls by outcome.",
		}, []string{"outcome"}),
		relayDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scibot",
			Name:      "relay_duration_seconds",
			Help:      "End-to-end relay latency.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}),
		responderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scibot",
			Name:      "responder_duration_seconds",
			Help:      "Responder call latency by outcome.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"outcome"}),
		historyReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scibot",
			Name:      "history_requests_total",
			Help:      "History reads served.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scibot",
			Name:      "relay_in_flight",
			Help:      "Relays currently running or queued behind their conversation.",
		}),
	}
	reg.MustRegister(m.relays, m.relayDuration, m.responderDuration, m.historyReads, m.inFlight)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRelay records one finished relay.
func (m *Metrics) ObserveRelay(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.relays.WithLabelValues(outcome).Inc()
	m.relayDuration.Observe(elapsed.Seconds())
}

// ObserveResponder records one responder call.
func (m *Metrics) ObserveResponder(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.responderDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// IncHistory counts a history read.
func (m *Metrics) IncHistory() {
	if m == nil {
		return
	}
	m.historyReads.Inc()
}

// InFlight adjusts the number of relays in progress.
func (m *Metrics) InFlight(delta float64) {
	if m == nil {
		return
	}
	m.inFlight.Add(delta)
}
