package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Provider outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
	OutcomePanic = "panic"
)

// Metrics groups the agent's collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	providerRequests *prometheus.CounterVec
	signals          *prometheus.CounterVec
	orders           *prometheus.CounterVec
	eventsDropped    prometheus.Counter
	cycleErrors      prometheus.Counter
	cycleDuration    prometheus.Histogram
	running          prometheus.Gauge
	balance          prometheus.Gauge
	openPositions    prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradesentinel",
			Name:      "provider_requests_total",
			Help:      "Historical data requests per provider and outcome.",
		}, []string{"provider", "outcome"}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradesentinel",
			Name:      "signals_total",
			Help:      "Signals generated per symbol.",
		}, []string{"symbol", "signal"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradesentinel",
			Name:      "orders_total",
			Help:      "Orders submitted to the broker by result.",
		}, []string{"side", "result"}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tradesentinel",
			Name:      "events_dropped_total",
			Help:      "Agent events dropped because the event buffer was full.",
		}),
		cycleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tradesentinel",
			Name:      "cycle_errors_total",
			Help:      "Loop cycles aborted by an unexpected error.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tradesentinel",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one loop cycle, excluding the interval wait.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tradesentinel",
			Name:      "agent_running",
			Help:      "1 while the agent loop is running.",
		}),
		balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tradesentinel",
			Name:      "account_balance",
			Help:      "Last account balance reported by the broker.",
		}),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tradesentinel",
			Name:      "open_positions",
			Help:      "Open positions in the last broker snapshot.",
		}),
	}
	m.registry.MustRegister(
		m.providerRequests, m.signals, m.orders, m.eventsDropped,
		m.cycleErrors, m.cycleDuration, m.running, m.balance, m.openPositions,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ProviderResult(provider, outcome string) {
	if m == nil {
		return
	}
	m.providerRequests.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) Signal(symbol, signal string) {
	if m == nil {
		return
	}
	m.signals.WithLabelValues(symbol, signal).Inc()
}

func (m *Metrics) Order(side, result string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(side, result).Inc()
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}

func (m *Metrics) CycleError() {
	if m == nil {
		return
	}
	m.cycleErrors.Inc()
}

func (m *Metrics) CycleDuration(seconds float64) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(seconds)
}

func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.running.Set(1)
	} else {
		m.running.Set(0)
	}
}

func (m *Metrics) SetBalance(v float64) {
	if m == nil {
		return
	}
	m.balance.Set(v)
}

func (m *Metrics) SetOpenPositions(n int) {
	if m == nil {
		return
	}
	m.openPositions.Set(float64(n))
}
