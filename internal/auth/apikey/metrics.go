package apikey

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultMetricsNamespace = "keygate"

// Lookup results.
const (
	lookupFound    = "found"
	lookupNotFound = "not_found"
	lookupError    = "error"
)

// Metrics holds Prometheus metrics for API key lookups.
type Metrics struct {
	lookupsTotal       *prometheus.CounterVec
	lookupDuration     *prometheus.HistogramVec
	breakerTransitions *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
	rateLimitedTotal   prometheus.Counter
	registerer         prometheus.Registerer
}

// NewMetrics creates a new Metrics instance registered with
// prometheus.DefaultRegisterer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates a new Metrics instance with a custom registerer.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = defaultMetricsNamespace
	}

	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		registerer: registerer,
	}

	m.lookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "apikey",
			Name:      "lookups_total",
			Help:      "Total number of API key store lookups",
		},
		[]string{"store", "result"},
	)

	m.lookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "apikey",
			Name:      "lookup_duration_seconds",
			Help:      "API key store lookup duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"store"},
	)

	m.breakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "apikey",
			Name:      "breaker_transitions_total",
			Help:      "Total number of store circuit breaker state transitions",
		},
		[]string{"store", "from", "to"},
	)

	m.breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "apikey",
			Name:      "breaker_state",
			Help:      "Store circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"store"},
	)

	m.rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "apikey",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the per-key rate limiter",
		},
	)

	collectors := []prometheus.Collector{
		m.lookupsTotal,
		m.lookupDuration,
		m.breakerTransitions,
		m.breakerState,
		m.rateLimitedTotal,
	}
	for _, c := range collectors {
		_ = m.registerer.Register(c)
	}

	return m
}

// RecordLookup records a store lookup.
func (m *Metrics) RecordLookup(store, result string, duration time.Duration) {
	m.lookupsTotal.WithLabelValues(store, result).Inc()
	m.lookupDuration.WithLabelValues(store).Observe(duration.Seconds())
}

// RecordBreakerTransition records a circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(store, from, to string, state float64) {
	m.breakerTransitions.WithLabelValues(store, from, to).Inc()
	m.breakerState.WithLabelValues(store).Set(state)
}

// RecordRateLimited records a rate-limited request.
func (m *Metrics) RecordRateLimited() {
	m.rateLimitedTotal.Inc()
}
