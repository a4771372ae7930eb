// Package observability groups the Prometheus instruments used by the
// service.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all instruments. A nil *Metrics disables recording, so
// library code can take it as an optional dependency.
type Metrics struct {
	TurnsTotal         prometheus.Counter
	StageFailures      *prometheus.CounterVec
	MemoriesRetrieved  prometheus.Histogram
	DocumentsPersisted prometheus.Counter
	TurnDuration       prometheus.Histogram
}

// NewMetrics registers all instruments under the given namespace on the
// default registry.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		TurnsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Chat turns processed by the pipeline.",
		}),
		StageFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Degraded pipeline stages by stage name.",
		}, []string{"stage"}),
		MemoriesRetrieved: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "memories_retrieved",
			Help:      "Memories returned by retrieval per turn.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10},
		}),
		DocumentsPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_persisted_total",
			Help:      "Summary documents written to the vector index.",
		}),
		TurnDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Wall time of one full pipeline invocation.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// RecordStageFailure counts one degraded stage. Safe on nil receiver.
func (m *Metrics) RecordStageFailure(stage string) {
	if m == nil {
		return
	}
	m.StageFailures.WithLabelValues(stage).Inc()
}

// RecordTurn records one completed invocation. Safe on nil receiver.
func (m *Metrics) RecordTurn(d time.Duration, retrieved int) {
	if m == nil {
		return
	}
	m.TurnsTotal.Inc()
	m.TurnDuration.Observe(d.Seconds())
	m.MemoriesRetrieved.Observe(float64(retrieved))
}

// RecordPersist counts one summary document written. Safe on nil receiver.
func (m *Metrics) RecordPersist() {
	if m == nil {
		return
	}
	m.DocumentsPersisted.Inc()
}

// MetricsHandler exposes the default registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
