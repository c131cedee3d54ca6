package offload

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vnykmshr/tickflow/pkg/metrics"
)

type observer interface {
	submitted()
	rejected()
	queued(n int)
	finished(d time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) submitted()                    {}
func (noopObserver) rejected()                     {}
func (noopObserver) queued(int)                    {}
func (noopObserver) finished(time.Duration, error) {}

type metricsObserver struct {
	submittedC prometheus.Counter
	rejectedC  prometheus.Counter
	completedC prometheus.Counter
	failedC    prometheus.Counter
	duration   prometheus.Observer
	queuedG    prometheus.Gauge
}

func newMetricsObserver(reg *metrics.Registry, name string) *metricsObserver {
	return &metricsObserver{
		submittedC: reg.JobsSubmitted.WithLabelValues(name),
		rejectedC:  reg.JobsRejected.WithLabelValues(name),
		completedC: reg.JobsCompleted.WithLabelValues(name),
		failedC:    reg.JobsFailed.WithLabelValues(name),
		duration:   reg.JobDuration.WithLabelValues(name),
		queuedG:    reg.JobsQueued.WithLabelValues(name),
	}
}

func (m *metricsObserver) submitted() { m.submittedC.Inc() }

func (m *metricsObserver) rejected() { m.rejectedC.Inc() }

func (m *metricsObserver) queued(n int) { m.queuedG.Set(float64(n)) }

func (m *metricsObserver) finished(d time.Duration, err error) {
	m.duration.Observe(d.Seconds())
	if err != nil {
		m.failedC.Inc()
		return
	}
	m.completedC.Inc()
}

// NewWithMetrics creates a pool instrumented with a private Prometheus
// registry, returned alongside it.
func NewWithMetrics(workerCount int, name string) (*Pool, *prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	p, err := NewWithConfig(Config{
		WorkerCount: workerCount,
		Name:        name,
		Metrics:     metrics.NewRegistry(reg),
	})
	if err != nil {
		return nil, nil, err
	}
	return p, reg, nil
}
