// Package metrics exposes Prometheus instrumentation for marketplace operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const ResultOK = "ok"

// Recorder counts operations by result and times them. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "operations_total",
			Help:      "Marketplace operations by operation and result code.",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "marketplace",
			Name:      "operation_duration_seconds",
			Help:      "Latency of marketplace operations, external calls included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(r.operations, r.duration)
	}
	return r
}

func (r *Recorder) Observe(operation string, start time.Time, result string) {
	if r == nil {
		return
	}
	if result == "" {
		result = ResultOK
	}
	r.operations.WithLabelValues(operation, result).Inc()
	r.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
