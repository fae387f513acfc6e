package authz

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for policy evaluation.
type Metrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	policyCount        prometheus.Gauge
}

// NewMetricsWithRegisterer creates a new Metrics instance with a custom registerer.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "keygate"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "authz",
				Name:      "evaluations_total",
				Help:      "Total number of policy evaluations",
			},
			[]string{"policy", "decision"},
		),
		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "authz",
				Name:      "evaluation_duration_seconds",
				Help:      "Authorization decision duration in seconds",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .025, .05, .1},
			},
		),
		policyCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "authz",
				Name:      "policies",
				Help:      "Number of loaded policies",
			},
		),
	}

	for _, c := range []prometheus.Collector{m.evaluationsTotal, m.evaluationDuration, m.policyCount} {
		_ = registerer.Register(c)
	}

	return m
}

func (m *Metrics) recordEvaluation(policy, decision string) {
	if m == nil {
		return
	}
	m.evaluationsTotal.WithLabelValues(policy, decision).Inc()
}

func (m *Metrics) observeDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.evaluationDuration.Observe(d.Seconds())
}

func (m *Metrics) setPolicyCount(n int) {
	if m == nil {
		return
	}
	m.policyCount.Set(float64(n))
}
