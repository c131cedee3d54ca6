package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vnykmshr/tickflow/pkg/metrics"
)

// observer receives scheduler lifecycle events.
type observer interface {
	started()
	resumed(n int)
	reaped(n int)
	stopped(n int)
	failed()
	active(n int)
	tick(d time.Duration)
}

type noopObserver struct{}

func (noopObserver) started()           {}
func (noopObserver) resumed(int)        {}
func (noopObserver) reaped(int)         {}
func (noopObserver) stopped(int)        {}
func (noopObserver) failed()            {}
func (noopObserver) active(int)         {}
func (noopObserver) tick(time.Duration) {}

// metricsObserver records scheduler events in a metrics.Registry.
type metricsObserver struct {
	startedC prometheus.Counter
	resumedC prometheus.Counter
	reapedC  prometheus.Counter
	stoppedC prometheus.Counter
	failedC  prometheus.Counter
	activeG  prometheus.Gauge
	ticksC   prometheus.Counter
	tickHist prometheus.Observer
}

func newMetricsObserver(reg *metrics.Registry, name string) *metricsObserver {
	return &metricsObserver{
		startedC: reg.RoutinesStarted.WithLabelValues(name),
		resumedC: reg.RoutinesResumed.WithLabelValues(name),
		reapedC:  reg.RoutinesReaped.WithLabelValues(name),
		stoppedC: reg.RoutinesStopped.WithLabelValues(name),
		failedC:  reg.RoutinesFailed.WithLabelValues(name),
		activeG:  reg.RoutinesActive.WithLabelValues(name),
		ticksC:   reg.TicksTotal.WithLabelValues(name),
		tickHist: reg.TickDuration.WithLabelValues(name),
	}
}

func (m *metricsObserver) started() { m.startedC.Inc() }

func (m *metricsObserver) resumed(n int) { m.resumedC.Add(float64(n)) }

func (m *metricsObserver) reaped(n int) { m.reapedC.Add(float64(n)) }

func (m *metricsObserver) stopped(n int) { m.stoppedC.Add(float64(n)) }

func (m *metricsObserver) failed() { m.failedC.Inc() }

func (m *metricsObserver) active(n int) { m.activeG.Set(float64(n)) }

func (m *metricsObserver) tick(d time.Duration) {
	m.ticksC.Inc()
	m.tickHist.Observe(d.Seconds())
}

// NewWithMetrics creates a scheduler instrumented with a private Prometheus
// registry, returned alongside it for scraping or inspection.
func NewWithMetrics(name string) (*Scheduler, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	s := NewWithConfig(Config{
		Name:    name,
		Metrics: metrics.NewRegistry(reg),
	})
	return s, reg
}
