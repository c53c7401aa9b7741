package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the film sync engine.
type Metrics struct {
	registry               *prometheus.Registry
	requestsTotal          prometheus.Counter
	switchesAcceptedTotal  prometheus.Counter
	switchesDebouncedTotal prometheus.Counter
	switchesDeferredTotal  prometheus.Counter
	virtualSessionsTotal   prometheus.Counter
	noFootageTotal         prometheus.Counter
	activeSessions         prometheus.Gauge
	errorsTotal            prometheus.Counter
}

// New creates and registers Prometheus metrics for the engine.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "filmsync_requests_total",
		Help: "Total number of HTTP requests received",
	})
	switchesAcceptedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "filmsync_switches_accepted_total",
		Help: "Total number of camera switch requests accepted",
	})
	switchesDebouncedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "filmsync_switches_debounced_total",
		Help: "Total number of camera switch requests rejected by the debounce window",
	})
	switchesDeferredTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "filmsync_switches_deferred_total",
		Help: "Total number of camera switch requests deferred until the recording list refreshes",
	})
	virtualSessionsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "filmsync_virtual_sessions_total",
		Help: "Total number of virtual playback sessions started to traverse gaps",
	})
	noFootageTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "filmsync_no_footage_total",
		Help: "Total number of positions classified as having no footage",
	})
	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "filmsync_active_sessions",
		Help: "Number of open film-room sessions",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "filmsync_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})

	registry.MustRegister(
		requestsTotal,
		switchesAcceptedTotal,
		switchesDebouncedTotal,
		switchesDeferredTotal,
		virtualSessionsTotal,
		noFootageTotal,
		activeSessions,
		errorsTotal,
	)

	return &Metrics{
		registry:               registry,
		requestsTotal:          requestsTotal,
		switchesAcceptedTotal:  switchesAcceptedTotal,
		switchesDebouncedTotal: switchesDebouncedTotal,
		switchesDeferredTotal:  switchesDeferredTotal,
		virtualSessionsTotal:   virtualSessionsTotal,
		noFootageTotal:         noFootageTotal,
		activeSessions:         activeSessions,
		errorsTotal:            errorsTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncSwitchesAccepted increments the accepted switch counter.
func (m *Metrics) IncSwitchesAccepted() {
	m.switchesAcceptedTotal.Inc()
}

// IncSwitchesDebounced increments the debounced switch counter.
func (m *Metrics) IncSwitchesDebounced() {
	m.switchesDebouncedTotal.Inc()
}

// IncSwitchesDeferred increments the deferred switch counter.
func (m *Metrics) IncSwitchesDeferred() {
	m.switchesDeferredTotal.Inc()
}

// IncVirtualSessions increments the virtual playback session counter.
func (m *Metrics) IncVirtualSessions() {
	m.virtualSessionsTotal.Inc()
}

// IncNoFootage increments the no-footage classification counter.
func (m *Metrics) IncNoFootage() {
	m.noFootageTotal.Inc()
}

// SetActiveSessions sets the open session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active sessions).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
