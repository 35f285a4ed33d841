package cmd

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/toka-os/toka-core/internal/runtime"
)

// prometheusMetrics implements runtime.Metrics by incrementing a
// small set of prometheus collectors. internal/runtime never imports
// prometheus itself (see runtime.Metrics doc); only this composition
// root does.
type prometheusMetrics struct {
	submitAccepted prometheus.Counter
	submitRejected *prometheus.CounterVec
	drainRetries   prometheus.Counter
	busLagged      prometheus.Counter
}

func newPrometheusMetrics(reg prometheus.Registerer) *prometheusMetrics {
	m := &prometheusMetrics{
		submitAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tokad",
			Subsystem: "runtime",
			Name:      "submit_accepted_total",
			Help:      "Total submissions accepted by the kernel and durably persisted.",
		}),
		submitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokad",
			Subsystem: "runtime",
			Name:      "submit_rejected_total",
			Help:      "Total submissions rejected, partitioned by error kind.",
		}, []string{"kind"}),
		drainRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tokad",
			Subsystem: "runtime",
			Name:      "drain_retries_total",
			Help:      "Total storage append retries performed by the drain task.",
		}),
		busLagged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tokad",
			Subsystem: "runtime",
			Name:      "bus_lagged_total",
			Help:      "Total Lagged markers observed by the runtime's bus watcher.",
		}),
	}
	reg.MustRegister(m.submitAccepted, m.submitRejected, m.drainRetries, m.busLagged)
	return m
}

func (m *prometheusMetrics) SubmitAccepted()            { m.submitAccepted.Inc() }
func (m *prometheusMetrics) SubmitRejected(kind string) { m.submitRejected.WithLabelValues(kind).Inc() }
func (m *prometheusMetrics) DrainRetry(int)             { m.drainRetries.Inc() }
func (m *prometheusMetrics) BusLagged()                 { m.busLagged.Inc() }

var _ runtime.Metrics = (*prometheusMetrics)(nil)
