package health

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for health checks.
type Metrics struct {
	checksTotal   *prometheus.CounterVec
	checkStatus   *prometheus.GaugeVec
	checkDuration *prometheus.HistogramVec
}

// NewMetricsWithRegisterer creates health metrics registered with registerer.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		checksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "checks_total",
				Help:      "Total number of readiness checks performed",
			},
			[]string{"check", "result"},
		),
		checkStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "check_status",
				Help:      "Current check status (1=healthy, 0=unhealthy)",
			},
			[]string{"check"},
		),
		checkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "check_duration_seconds",
				Help:      "Duration of readiness checks",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"check"},
		),
	}

	for _, c := range []prometheus.Collector{m.checksTotal, m.checkStatus, m.checkDuration} {
		_ = registerer.Register(c)
	}

	return m
}

// RecordCheck records one check run. Safe on a nil receiver.
func (m *Metrics) RecordCheck(check string, healthy bool, duration time.Duration) {
	if m == nil {
		return
	}

	result, status := "failure", 0.0
	if healthy {
		result, status = "success", 1.0
	}
	m.checksTotal.WithLabelValues(check, result).Inc()
	m.checkStatus.WithLabelValues(check).Set(status)
	m.checkDuration.WithLabelValues(check).Observe(duration.Seconds())
}
