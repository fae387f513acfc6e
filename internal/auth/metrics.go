package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the authentication gate.
type Metrics struct {
	outcomesTotal     *prometheus.CounterVec
	gateDuration      *prometheus.HistogramVec
	authorityDuration *prometheus.HistogramVec
	contextClears     prometheus.Counter
	registerer        prometheus.Registerer
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

	m.outcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "outcomes_total",
			Help:      "Total number of gate outcomes",
		},
		[]string{"transport", "outcome"},
	)

	m.gateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "duration_seconds",
			Help:      "Gate decision duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"transport"},
	)

	m.authorityDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "authority_duration_seconds",
			Help:      "Authority call duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"verdict"},
	)

	m.contextClears = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "context_clears_total",
			Help:      "Total number of security contexts cleared after a rejection",
		},
	)

	collectors := []prometheus.Collector{
		m.outcomesTotal,
		m.gateDuration,
		m.authorityDuration,
		m.contextClears,
	}
	for _, c := range collectors {
		// Duplicate registration (e.g. in tests) is ignored.
		_ = m.registerer.Register(c)
	}

	return m
}

// Init pre-initializes label combinations so series appear immediately.
func (m *Metrics) Init() {
	for _, transport := range []string{"http", "grpc"} {
		for _, outcome := range []Outcome{OutcomeProceed, OutcomeUnauthorized, OutcomeForbidden, OutcomeUnavailable} {
			m.outcomesTotal.WithLabelValues(transport, outcome.String())
		}
		m.gateDuration.WithLabelValues(transport)
	}
	for _, verdict := range []Verdict{VerdictGranted, VerdictRejected, VerdictUnavailable} {
		m.authorityDuration.WithLabelValues(verdict.String())
	}
}

// RecordOutcome records a gate decision.
func (m *Metrics) RecordOutcome(transport string, outcome Outcome, duration time.Duration) {
	m.outcomesTotal.WithLabelValues(transport, outcome.String()).Inc()
	m.gateDuration.WithLabelValues(transport).Observe(duration.Seconds())
}

// ObserveAuthority records an authority call.
func (m *Metrics) ObserveAuthority(verdict Verdict, duration time.Duration) {
	m.authorityDuration.WithLabelValues(verdict.String()).Observe(duration.Seconds())
}

// RecordContextClear records a security context cleared after a rejection.
func (m *Metrics) RecordContextClear() {
	m.contextClears.Inc()
}
