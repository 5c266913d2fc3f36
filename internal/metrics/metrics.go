// Package metrics holds the prometheus collectors for contract operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	pages      *prometheus.CounterVec
}

func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contractseal_operations_total",
				Help: "Total number of contract file operations by result.",
			},
			[]string{"operation", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contractseal_operation_duration_seconds",
				Help:    "Duration of contract file operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		pages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contractseal_pages_written_total",
				Help: "Pages written to merged or sealed documents.",
			},
			[]string{"operation"},
		),
	}

	for _, c := range []prometheus.Collector{m.operations, m.duration, m.pages} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Observe(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) AddPages(operation string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pages.WithLabelValues(operation).Add(float64(n))
}
