package eventlog

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics receives event buffer activity.
type Metrics interface {
	RecordEnqueued()
	RecordDiscarded()
	RecordDequeued(count int)
	RecordFlush(count int, duration time.Duration, err error)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordEnqueued()                       {}
func (NoopMetrics) RecordDiscarded()                      {}
func (NoopMetrics) RecordDequeued(int)                    {}
func (NoopMetrics) RecordFlush(int, time.Duration, error) {}

// PrometheusMetrics exports event buffer activity as Prometheus series.
type PrometheusMetrics struct {
	queueLength   prometheus.Gauge
	enqueuedTotal prometheus.Counter
	discarded     prometheus.Counter
	writtenTotal  prometheus.Counter
	droppedTotal  prometheus.Counter
	flushes       *prometheus.CounterVec
	flushDuration prometheus.Histogram
}

// NewPrometheusMetrics registers event buffer metrics on the default registerer.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	return NewPrometheusMetricsWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewPrometheusMetricsWithRegistry registers event buffer metrics on registerer.
func NewPrometheusMetricsWithRegistry(namespace string, registerer prometheus.Registerer) *PrometheusMetrics {
	pm := &PrometheusMetrics{}

	pm.queueLength = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "queue_length",
		Help:      "Number of events waiting to be flushed",
	})

	pm.enqueuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "enqueued_total",
		Help:      "Total events accepted into the buffer",
	})

	pm.discarded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "discarded_total",
		Help:      "Total values rejected because they were not key-value mappings",
	})

	pm.writtenTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "written_total",
		Help:      "Total events written to the sink",
	})

	pm.droppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "dropped_total",
		Help:      "Total events lost because the sink rejected their batch",
	})

	pm.flushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "flushes_total",
			Help:      "Non-empty flushes by result",
		},
		[]string{"status"},
	)

	pm.flushDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "flush_duration_seconds",
		Help:      "Time spent in the sink bulk write",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})

	registerer.MustRegister(
		pm.queueLength,
		pm.enqueuedTotal,
		pm.discarded,
		pm.writtenTotal,
		pm.droppedTotal,
		pm.flushes,
		pm.flushDuration,
	)

	return pm
}

func (pm *PrometheusMetrics) RecordEnqueued() {
	pm.enqueuedTotal.Inc()
	pm.queueLength.Inc()
}

func (pm *PrometheusMetrics) RecordDiscarded() {
	pm.discarded.Inc()
}

func (pm *PrometheusMetrics) RecordDequeued(count int) {
	pm.queueLength.Sub(float64(count))
}

func (pm *PrometheusMetrics) RecordFlush(count int, duration time.Duration, err error) {
	pm.flushDuration.Observe(duration.Seconds())
	if err != nil {
		pm.flushes.WithLabelValues("failure").Inc()
		pm.droppedTotal.Add(float64(count))
		return
	}
	pm.flushes.WithLabelValues("success").Inc()
	pm.writtenTotal.Add(float64(count))
}
