package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "booknow"

// Metrics holds the gateway collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	seatSelections    *prometheus.CounterVec
	optimisticActions *prometheus.CounterVec
	timerExpirations  prometheus.Counter
	timerExtensions   *prometheus.CounterVec
	seatPageLoads     *prometheus.CounterVec
	flowTransitions   *prometheus.CounterVec
	activeSessions    prometheus.Gauge
	requestDuration   *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		seatSelections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seat_selections_total",
			Help:      "Seat selection gestures by outcome.",
		}, []string{"result"}),
		optimisticActions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimistic_actions_total",
			Help:      "Optimistic actions settled, by type and final status.",
		}, []string{"type", "status"}),
		timerExpirations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_timer_expirations_total",
			Help:      "Seat holds that expired before confirmation.",
		}),
		timerExtensions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_timer_extensions_total",
			Help:      "Booking timer extension attempts by outcome.",
		}, []string{"result"}),
		seatPageLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seat_page_loads_total",
			Help:      "Seat page fetches by outcome.",
		}, []string{"result"}),
		flowTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_transitions_total",
			Help:      "Booking flow transitions by destination step.",
		}, []string{"step"}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Booking sessions currently held by the gateway.",
		}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Gateway HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) SeatSelection(result string) {
	if m == nil {
		return
	}
	m.seatSelections.WithLabelValues(result).Inc()
}

func (m *Metrics) OptimisticAction(actionType, status string) {
	if m == nil {
		return
	}
	m.optimisticActions.WithLabelValues(actionType, status).Inc()
}

func (m *Metrics) TimerExpired() {
	if m == nil {
		return
	}
	m.timerExpirations.Inc()
}

func (m *Metrics) TimerExtension(result string) {
	if m == nil {
		return
	}
	m.timerExtensions.WithLabelValues(result).Inc()
}

func (m *Metrics) SeatPageLoad(result string) {
	if m == nil {
		return
	}
	m.seatPageLoads.WithLabelValues(result).Inc()
}

func (m *Metrics) FlowTransition(step string) {
	if m == nil {
		return
	}
	m.flowTransitions.WithLabelValues(step).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
