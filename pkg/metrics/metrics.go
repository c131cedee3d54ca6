// Package metrics provides Prometheus instrumentation for tickflow components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for tickflow components.
type Registry struct {
	// Scheduler Metrics
	RoutinesStarted  *prometheus.CounterVec
	RoutinesResumed  *prometheus.CounterVec
	RoutinesReaped   *prometheus.CounterVec
	RoutinesStopped  *prometheus.CounterVec
	RoutinesFailed   *prometheus.CounterVec
	RoutinesActive   *prometheus.GaugeVec
	TickDuration     *prometheus.HistogramVec
	TicksTotal       *prometheus.CounterVec
	LoopTickOverruns *prometheus.CounterVec

	// Offload Pool Metrics
	JobsSubmitted *prometheus.CounterVec
	JobsRejected  *prometheus.CounterVec
	JobsCompleted *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec
	JobsQueued    *prometheus.GaugeVec
}

// DefaultRegistry is the default metrics registry used by tickflow components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return FromConfig(Config{Enabled: true, Registry: reg})
}

// FromConfig creates a registry honoring the namespace and constant labels in
// cfg. A nil cfg.Registry registers with prometheus.DefaultRegisterer.
func FromConfig(cfg Config) *Registry {
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "tickflow"
	}
	factory := promauto.With(reg)
	labels := cfg.Labels

	return &Registry{
		// Scheduler Metrics
		RoutinesStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "scheduler",
				Name:        "routines_started_total",
				Help:        "Total number of routines started",
				ConstLabels: labels,
			},
			[]string{"scheduler_name"},
		),

		RoutinesResumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "scheduler",
				Name:        "routines_resumed_total",
				Help:        "Total number of routine resumptions performed by Tick",
				ConstLabels: labels,
			},
			[]string{"scheduler_name"},
		),

		RoutinesReaped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "scheduler",
				Name:        "routines_reaped_total",
				Help:        "Total number of finished routines removed by Tick",
				ConstLabels: labels,
			},
			[]string{"scheduler_name"},
		),

		RoutinesStopped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "scheduler",
				Name:        "routines_stopped_total",
				Help:        "Total number of routines removed by Stop or Clear",
				ConstLabels: labels,
			},
			[]string{"scheduler_name"},
		),

		RoutinesFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "scheduler",
				Name:        "routines_failed_total",
				Help:        "Total number of routines removed after a recovered panic",
				ConstLabels: labels,
			},
			[]string{"scheduler_name"},
		),

		RoutinesActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "scheduler",
				Name:        "routines_active",
				Help:        "Number of routines currently registered",
				ConstLabels: labels,
			},
			[]string{"scheduler_name"},
		),

		TickDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "scheduler",
				Name:        "tick_duration_seconds",
				Help:        "Time spent in a single Tick",
				Buckets:     []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
				ConstLabels: labels,
			},
			[]string{"scheduler_name"},
		),

		TicksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "scheduler",
				Name:        "ticks_total",
				Help:        "Total number of completed ticks",
				ConstLabels: labels,
			},
			[]string{"scheduler_name"},
		),

		LoopTickOverruns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "loop",
				Name:        "tick_overruns_total",
				Help:        "Ticks that took longer than the loop interval",
				ConstLabels: labels,
			},
			[]string{"scheduler_name"},
		),

		// Offload Pool Metrics
		JobsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "offload",
				Name:        "jobs_submitted_total",
				Help:        "Total number of jobs accepted by the pool",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		JobsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "offload",
				Name:        "jobs_rejected_total",
				Help:        "Total number of jobs rejected because the queue was full or closed",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		JobsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "offload",
				Name:        "jobs_completed_total",
				Help:        "Total number of jobs completed successfully",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		JobsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "offload",
				Name:        "jobs_failed_total",
				Help:        "Total number of jobs that returned an error or panicked",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "offload",
				Name:        "job_duration_seconds",
				Help:        "Time spent executing jobs",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		JobsQueued: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "offload",
				Name:        "jobs_queued",
				Help:        "Number of jobs waiting for a worker",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),
	}
}
