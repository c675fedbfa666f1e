// Package metrics exposes Prometheus collectors for conversation turns.
// All recording methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sori"

// ServiceName is the AppContext service holding the shared *Metrics.
const ServiceName = "metrics"

// Turn outcomes.
const (
	OutcomeOK             = "ok"
	OutcomeInvalidInput   = "invalid_input"
	OutcomeStore          = "store_unavailable"
	OutcomeModel          = "model_invocation"
	OutcomeCanceled       = "canceled"
	OutcomeReplyNotStored = "reply_not_stored"
)

// Metrics holds the collectors and their registry.
type Metrics struct {
	registry *prometheus.Registry

	TurnsTotal        *prometheus.CounterVec
	TurnDuration      prometheus.Histogram
	ModelDuration     *prometheus.HistogramVec
	StoreErrorsTotal  *prometheus.CounterVec
	SynthesisFailures prometheus.Counter
	ProfileUpdates    prometheus.Counter
	HTTPRequestsTotal *prometheus.CounterVec
	VoiceConnections  prometheus.Gauge
}

// New creates and registers all collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		TurnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_total",
				Help:      "Total number of processed turns by outcome",
			},
			[]string{"outcome"},
		),
		TurnDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "turn_duration_seconds",
				Help:      "End-to-end turn latency including lock wait",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ModelDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "model_duration_seconds",
				Help:      "Latency of model gateway calls",
				Buckets:   []float64{.25, .5, 1, 2, 4, 8, 15, 30, 60},
			},
			[]string{"status"},
		),
		StoreErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "Store failures by turn stage",
			},
			[]string{"stage"},
		),
		SynthesisFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "synthesis_failures_total",
				Help:      "Speech synthesis failures that fell back to text",
			},
		),
		ProfileUpdates: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "profile_updates_total",
				Help:      "Successful profile upserts",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route pattern and status code",
			},
			[]string{"route", "code"},
		),
		VoiceConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "voice_connections",
				Help:      "Open voice websocket connections",
			},
		),
	}

	registry.MustRegister(
		m.TurnsTotal,
		m.TurnDuration,
		m.ModelDuration,
		m.StoreErrorsTotal,
		m.SynthesisFailures,
		m.ProfileUpdates,
		m.HTTPRequestsTotal,
		m.VoiceConnections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RegisterSessionGauge exports the live session count reported by fn.
func (m *Metrics) RegisterSessionGauge(fn func() int) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of session states held in memory",
		},
		func() float64 { return float64(fn()) },
	))
}

// ObserveTurn records a finished turn.
func (m *Metrics) ObserveTurn(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(outcome).Inc()
	m.TurnDuration.Observe(d.Seconds())
}

// ObserveModel records a gateway call.
func (m *Metrics) ObserveModel(err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ModelDuration.WithLabelValues(status).Observe(d.Seconds())
}

// StoreError counts a store failure at stage.
func (m *Metrics) StoreError(stage string) {
	if m == nil {
		return
	}
	m.StoreErrorsTotal.WithLabelValues(stage).Inc()
}

// SynthesisFailed counts a degraded audio delivery.
func (m *Metrics) SynthesisFailed() {
	if m == nil {
		return
	}
	m.SynthesisFailures.Inc()
}

// ProfileUpdated counts a profile write.
func (m *Metrics) ProfileUpdated() {
	if m == nil {
		return
	}
	m.ProfileUpdates.Inc()
}

// ObserveHTTP counts a served request. route is the router pattern, not
// the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// VoiceConnected adjusts the open voice connection gauge by delta.
func (m *Metrics) VoiceConnected(delta int) {
	if m == nil {
		return
	}
	m.VoiceConnections.Add(float64(delta))
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
