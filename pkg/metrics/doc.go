// Package metrics provides Prometheus instrumentation for tickflow components.
//
// # Overview
//
// The metrics package instruments:
//   - The coroutine scheduler (routines started, resumed, reaped, stopped,
//     failed, currently active, tick count and tick duration)
//   - The host loop (ticks that overran the loop interval)
//   - The offload pool (jobs submitted, rejected, completed, failed, queued,
//     job duration)
//
// # Quick Start
//
// Enable metrics by using the metrics-enabled constructors:
//
//	s, reg := scheduler.NewWithMetrics("gameplay")
//
// or by passing a Registry through a component's Config:
//
//	cfg, reg := metrics.Isolated()
//	s := scheduler.NewWithConfig(scheduler.Config{
//		Name:    "gameplay",
//		Metrics: metrics.FromConfig(cfg),
//	})
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// # Available Metrics
//
//   - tickflow_scheduler_routines_started_total
//   - tickflow_scheduler_routines_resumed_total
//   - tickflow_scheduler_routines_reaped_total
//   - tickflow_scheduler_routines_stopped_total
//   - tickflow_scheduler_routines_failed_total
//   - tickflow_scheduler_routines_active
//   - tickflow_scheduler_ticks_total
//   - tickflow_scheduler_tick_duration_seconds
//   - tickflow_loop_tick_overruns_total
//   - tickflow_offload_jobs_submitted_total
//   - tickflow_offload_jobs_rejected_total
//   - tickflow_offload_jobs_completed_total
//   - tickflow_offload_jobs_failed_total
//   - tickflow_offload_job_duration_seconds
//   - tickflow_offload_jobs_queued
//
// Scheduler and loop metrics carry a scheduler_name label; offload metrics
// carry pool_name.
//
// # Custom Registry
//
// Each component registers its collectors with the registerer it is given.
// Registering two Registries against the same registerer panics on duplicate
// collectors, so use Isolated or a dedicated prometheus.Registry per
// component tree.
package metrics
