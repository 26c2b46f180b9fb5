// Package metrics exposes orchestrator activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pkt.systems/tabshell/internal/surface"
	"pkt.systems/tabshell/internal/viewregistry"
)

const namespace = "tabshell"

// Metrics holds every collector the orchestrator reports to.
type Metrics struct {
	registry *prometheus.Registry

	actions         *prometheus.CounterVec
	surfacesCreated *prometheus.CounterVec
	surfacesFailed  *prometheus.CounterVec
	surfacesLive    *prometheus.GaugeVec
	surfaceBuild    *prometheus.HistogramVec
	companion       *prometheus.CounterVec
	messages        *prometheus.CounterVec
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		actions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Tab and view actions applied, by action and whether the topology changed.",
		}, []string{"action", "changed"}),
		surfacesCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "surfaces_created_total",
			Help:      "Native surfaces constructed.",
		}, []string{"kind"}),
		surfacesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "surfaces_failed_total",
			Help:      "Native surface constructions that failed.",
		}, []string{"kind"}),
		surfacesLive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "surfaces_live",
			Help:      "Native surfaces currently registered.",
		}, []string{"kind"}),
		surfaceBuild: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "surface_build_seconds",
			Help:      "Time to construct a native surface.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		companion: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "companion_binds_total",
			Help:      "Companion bind outcomes.",
		}, []string{"status"}),
		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_messages_total",
			Help:      "Messages broadcast to windows and surfaces, by channel.",
		}, []string{"channel"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}, []string{"method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// ActionApplied implements core.Metrics.
func (m *Metrics) ActionApplied(action string, changed bool) {
	m.actions.WithLabelValues(action, strconv.FormatBool(changed)).Inc()
}

// SurfaceCreated implements viewregistry.Metrics.
func (m *Metrics) SurfaceCreated(kind surface.Kind, elapsed time.Duration) {
	m.surfacesCreated.WithLabelValues(string(kind)).Inc()
	m.surfacesLive.WithLabelValues(string(kind)).Inc()
	m.surfaceBuild.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// SurfaceDestroyed implements viewregistry.Metrics.
func (m *Metrics) SurfaceDestroyed(kind surface.Kind) {
	m.surfacesLive.WithLabelValues(string(kind)).Dec()
}

// SurfaceFailed implements viewregistry.Metrics.
func (m *Metrics) SurfaceFailed(kind surface.Kind) {
	m.surfacesFailed.WithLabelValues(string(kind)).Inc()
}

// CompanionBound implements viewregistry.Metrics.
func (m *Metrics) CompanionBound(status viewregistry.CompanionStatus) {
	m.companion.WithLabelValues(string(status)).Inc()
}

// MessageBroadcast implements desktopsync.Metrics.
func (m *Metrics) MessageBroadcast(channel string) {
	m.messages.WithLabelValues(channel).Inc()
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
