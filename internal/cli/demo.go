package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/vnykmshr/tickflow/internal/config"
	"github.com/vnykmshr/tickflow/internal/server"
	"github.com/vnykmshr/tickflow/pkg/coroutine/loop"
	"github.com/vnykmshr/tickflow/pkg/coroutine/offload"
	"github.com/vnykmshr/tickflow/pkg/coroutine/scheduler"
	"github.com/vnykmshr/tickflow/pkg/metrics"
)

type demoOptions struct {
	scenarios    []string
	duration     time.Duration
	tickInterval time.Duration
	metricsAddr  string
	redisAddr    string
}

func newDemoCmd() *cobra.Command {
	var opts demoOptions

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run example routines on a ticked scheduler",
		Long: `demo starts one routine per scenario and ticks the scheduler until all
routines have finished or --duration elapses.

Scenarios: ` + strings.Join(scenarioNames(), ", ") + `

Examples:
  # Run every scenario
  tickflow demo

  # Wait on predicates only, ticking every 16ms
  tickflow demo --scenario predicate --tick-interval 16ms

  # Expose metrics while running
  tickflow demo --metrics-addr :9090 --duration 1m
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("tick-interval") {
				cfg.TickInterval = opts.tickInterval
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddr = opts.metricsAddr
			}
			if cmd.Flags().Changed("redis-addr") {
				cfg.Redis.Addr = opts.redisAddr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runDemo(cmd, cfg, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.scenarios, "scenario", nil, "Scenarios to run (default: all)")
	cmd.Flags().DurationVar(&opts.duration, "duration", 30*time.Second, "Maximum run time")
	cmd.Flags().DurationVar(&opts.tickInterval, "tick-interval", 0, "Time between ticks (overrides config)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics, /healthz and /routines on this address")
	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", "", "Redis address for the redis scenario (overrides config)")
	return cmd
}

func selectScenarios(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return scenarioNames(), nil
	}
	for _, name := range requested {
		if _, ok := scenarios[name]; !ok {
			return nil, fmt.Errorf("unknown scenario %q (available: %s)", name, strings.Join(scenarioNames(), ", "))
		}
	}
	return requested, nil
}

func runDemo(cmd *cobra.Command, cfg config.Config, opts demoOptions) error {
	names, err := selectScenarios(opts.scenarios)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.NewRegistry(reg)

	sched := scheduler.NewWithConfig(scheduler.Config{
		Name:          "demo",
		Logger:        logger,
		Metrics:       m,
		RecoverPanics: cfg.RecoverPanics,
	})

	pool, err := offload.NewWithConfig(offload.Config{
		WorkerCount: cfg.Offload.Workers,
		QueueSize:   cfg.Offload.QueueSize,
		TaskTimeout: cfg.Offload.TaskTimeout,
		Name:        "demo",
		Logger:      logger,
		Metrics:     m,
	})
	if err != nil {
		return err
	}
	defer func() { <-pool.Shutdown() }()

	env := &demoEnv{
		out:   cmd.OutOrStdout(),
		sched: sched,
		pool:  pool,
		redis: cfg.Redis,
	}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()
		env.rdb = rdb
	}

	l, err := loop.New(sched, loop.Config{
		TickInterval: cfg.TickInterval,
		Logger:       logger,
		Metrics:      m,
	})
	if err != nil {
		return err
	}

	for _, name := range names {
		body := scenarios[name](env)
		if err := l.Post(func(s *scheduler.Scheduler) {
			if _, err := s.Start(body); err != nil {
				logger.Error("scenario failed to start", "scenario", name, "error", err)
			}
		}); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	if cfg.MetricsAddr != "" {
		httpServer := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           server.New(l, reg, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics server starting", "addr", cfg.MetricsAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
		}()
	}

	if err := l.Start(); err != nil {
		return err
	}
	defer func() { <-l.Stop() }()

	logger.Info("demo running", "scenarios", names, "tick_interval", cfg.TickInterval)
	return waitIdle(ctx, l, logger)
}

// waitIdle returns once the scheduler has no routines left or ctx is done.
// Running out of time is not an error.
func waitIdle(ctx context.Context, l *loop.Loop, logger *slog.Logger) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("demo interrupted", "reason", context.Cause(ctx))
			return nil
		case <-ticker.C:
			var n int
			if err := l.Do(ctx, func(s *scheduler.Scheduler) { n = s.Len() }); err != nil {
				if ctx.Err() != nil {
					continue
				}
				return err
			}
			if n == 0 {
				logger.Info("all routines finished")
				return nil
			}
		}
	}
}
